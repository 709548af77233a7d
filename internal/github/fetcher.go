package github

import (
	"context"
	"net/http"
	"time"

	gh "github.com/google/go-github/v82/github"
	"github.com/inovacc/trafficr/internal/model"
)

// Fetcher pulls a repository's clone-traffic window and normalizes it into
// traffic records. The API returns a rolling window of roughly the last 14
// days; the current UTC day is excluded because its counts are still
// accumulating.
type Fetcher struct {
	newClient func(ctx context.Context, token string) *gh.Client
	now       func() time.Time
}

// NewFetcher creates a fetcher backed by the real GitHub API.
func NewFetcher() *Fetcher {
	return &Fetcher{newClient: NewClient, now: time.Now}
}

// NewFetcherWithClient creates a fetcher whose API client is supplied by
// the caller. Used by tests to point at a stub server.
func NewFetcherWithClient(newClient func(ctx context.Context, token string) *gh.Client) *Fetcher {
	return &Fetcher{newClient: newClient, now: time.Now}
}

// Fetch returns the repository's current traffic window as records keyed
// by UTC calendar day.
func (f *Fetcher) Fetch(ctx context.Context, repo model.RepositoryConfig) ([]model.TrafficRecord, error) {
	client := f.newClient(ctx, repo.Token)

	clones, resp, err := client.Repositories.ListTrafficClones(ctx, repo.Username, repo.Repository, &gh.TrafficBreakdownOptions{Per: "day"})
	if err != nil {
		return nil, f.mapError(repo.UID(), resp, err)
	}

	today := f.today()

	records := make([]model.TrafficRecord, 0, len(clones.Clones))

	for _, c := range clones.Clones {
		ts := c.GetTimestamp().Time.UTC()
		dayStart := time.Date(ts.Year(), ts.Month(), ts.Day(), 0, 0, 0, 0, time.UTC)

		// The current day's counts are partial and would poison the
		// overwrite-on-change rule with a low value.
		if !dayStart.Before(today) {
			continue
		}

		records = append(records, model.TrafficRecord{
			Repository: repo.UID(),
			Date:       dayStart,
			Clones:     c.GetCount(),
			Uniques:    c.GetUniques(),
		})
	}

	return records, nil
}

func (f *Fetcher) today() time.Time {
	now := f.now().UTC()

	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}

func (f *Fetcher) mapError(uid string, resp *gh.Response, err error) error {
	kind := FetchTransport

	if resp != nil {
		switch resp.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			kind = FetchAuth
		case http.StatusNotFound:
			kind = FetchNotFound
		}
	}

	return &FetchError{Repository: uid, Kind: kind, Err: err}
}
