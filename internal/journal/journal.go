// Package journal keeps an append-only log of confirmed uploads.
//
// The record store's synced flag is the sole duplicate-prevention
// mechanism: a crash between a confirmed upload and the local flag write
// leaves a record that will be uploaded again on the next run. The journal
// exists for that documented window. It records what was actually pushed
// and when, so an operator can reconcile the remote table by hand.
//
// Journal writes are best-effort. The store's synced flag stays
// authoritative; a failed journal append is logged by the caller and never
// fails the sync.
package journal

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.etcd.io/bbolt"
)

const bucketUploads = "uploads" // key: repository|date|uploadID -> Entry JSON

// Entry is one confirmed upload.
type Entry struct {
	// ID is a unique identifier for this upload
	ID string `json:"id"`

	// Repository is the owner-qualified repository identifier
	Repository string `json:"repository"`

	// Date is the calendar day of the uploaded record (YYYY-MM-DD)
	Date string `json:"date"`

	// Clones and Uniques are the counts as uploaded
	Clones  int `json:"clones"`
	Uniques int `json:"uniques"`

	// UploadedAt is when the remote side confirmed the record
	UploadedAt time.Time `json:"uploaded_at"`
}

// Journal is the bbolt-backed upload log.
type Journal struct {
	db *bbolt.DB
}

// Open opens the journal file at path, creating it when absent.
func Open(path string) (*Journal, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, err
	}

	if err := db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketUploads))

		return err
	}); err != nil {
		_ = db.Close()

		return nil, err
	}

	return &Journal{db: db}, nil
}

func (j *Journal) Close() error {
	return j.db.Close()
}

// Append records one confirmed upload. A missing ID or timestamp is filled
// in here so callers only supply what they know.
func (j *Journal) Append(e Entry) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}

	if e.UploadedAt.IsZero() {
		e.UploadedAt = time.Now().UTC()
	}

	data, err := json.Marshal(&e)
	if err != nil {
		return err
	}

	key := e.Repository + "|" + e.Date + "|" + e.ID

	return j.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(bucketUploads)).Put([]byte(key), data)
	})
}

// Entries returns all uploads recorded for a repository, in key order
// (date ascending). An empty repository returns everything.
func (j *Journal) Entries(repository string) ([]Entry, error) {
	var out []Entry

	err := j.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(bucketUploads)).ForEach(func(k, v []byte) error {
			if repository != "" && !strings.HasPrefix(string(k), repository+"|") {
				return nil
			}

			var e Entry

			if err := json.Unmarshal(v, &e); err != nil {
				return err
			}

			out = append(out, e)

			return nil
		})
	})

	return out, err
}

// Count returns the number of uploads recorded for a repository.
func (j *Journal) Count(repository string) (int, error) {
	entries, err := j.Entries(repository)
	if err != nil {
		return 0, err
	}

	return len(entries), nil
}
