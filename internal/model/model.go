package model

import (
	"fmt"
	"time"
)

// DayFormat is the calendar-day layout used for record keys and for the
// Date column at the remote side.
const DayFormat = "2006-01-02"

// TrafficRecord is one day of clone traffic for a single repository.
// The (Repository, Date) pair is the natural key; the store never holds
// two records for the same pair.
type TrafficRecord struct {
	// Repository is the owner-qualified identifier, e.g. "octocat/hello-world"
	Repository string `json:"repository"`

	// Date is the UTC calendar day the counts belong to
	Date time.Time `json:"date"`

	// Clones is the total clone count for the day
	Clones int `json:"clones"`

	// Uniques is the unique-cloner count for the day; never exceeds Clones
	Uniques int `json:"uniques"`

	// Synced is false until the record has been confirmed at the remote store
	Synced bool `json:"synced"`
}

// Day returns the record's date as a YYYY-MM-DD key.
func (r TrafficRecord) Day() string {
	return r.Date.UTC().Format(DayFormat)
}

// SameCounts reports whether other carries identical clone and unique counts.
func (r TrafficRecord) SameCounts(other TrafficRecord) bool {
	return r.Clones == other.Clones && r.Uniques == other.Uniques
}

// RemoteRecord is the row shape accepted by the remote table. Field names
// match the remote column names, so the struct marshals straight into the
// create-record payload.
type RemoteRecord struct {
	Repository string `json:"Repository"`
	Username   string `json:"Username"`
	Link       string `json:"Link"`
	Date       string `json:"Date"`
	Count      int    `json:"Count"`
	Uniques    int    `json:"Uniques"`
}

// NewRemoteRecord builds the remote row for one traffic record.
func NewRemoteRecord(rec TrafficRecord, username, repository string) RemoteRecord {
	return RemoteRecord{
		Repository: repository,
		Username:   username,
		Link:       fmt.Sprintf("https://github.com/%s/%s", username, repository),
		Date:       rec.Day(),
		Count:      rec.Clones,
		Uniques:    rec.Uniques,
	}
}
