package archiver

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/inovacc/trafficr/internal/github"
	"github.com/inovacc/trafficr/internal/model"
	"github.com/inovacc/trafficr/internal/nocodb"
	"github.com/inovacc/trafficr/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockFetcher serves canned windows per repository with error injection.
type mockFetcher struct {
	windows map[string][]model.TrafficRecord
	errs    map[string]error
	calls   []string
}

func (m *mockFetcher) Fetch(_ context.Context, repo model.RepositoryConfig) ([]model.TrafficRecord, error) {
	m.calls = append(m.calls, repo.UID())

	if err := m.errs[repo.UID()]; err != nil {
		return nil, err
	}

	return m.windows[repo.UID()], nil
}

// mockUploader tracks uploads and fails with Err until Failures runs out
// (0 means always).
type mockUploader struct {
	Err      error
	Failures int

	uploaded []model.RemoteRecord
	calls    int
}

func (m *mockUploader) Upload(_ context.Context, rec model.RemoteRecord) error {
	m.calls++

	if m.Err != nil && (m.Failures == 0 || m.calls <= m.Failures) {
		return m.Err
	}

	m.uploaded = append(m.uploaded, rec)

	return nil
}

func repoCfg(username, repository string) model.RepositoryConfig {
	return model.RepositoryConfig{Username: username, Repository: repository, Token: "ghp_test"}
}

func utcDay(year, month, day int) time.Time {
	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
}

func rec(repo string, date time.Time, clones, uniques int) model.TrafficRecord {
	return model.TrafficRecord{Repository: repo, Date: date, Clones: clones, Uniques: uniques}
}

func newTestArchiver(t *testing.T, repos []model.RepositoryConfig, f Fetcher, u Uploader) (*Archiver, store.Store) {
	t.Helper()

	st, err := store.New(t.TempDir())
	require.NoError(t, err)

	t.Cleanup(func() { _ = st.Close() })

	cfg := model.DefaultConfig()
	cfg.Repositories = repos

	a := New(cfg, st, f, u, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
	a.retryInitial = time.Millisecond

	return a, st
}

func TestArchiver_CycleFetchesMergesAndSyncs(t *testing.T) {
	repo := repoCfg("octocat", "hello-world")
	fetcher := &mockFetcher{windows: map[string][]model.TrafficRecord{
		repo.UID(): {
			rec(repo.UID(), utcDay(2024, 1, 2), 9, 4),
			rec(repo.UID(), utcDay(2024, 1, 1), 5, 3),
		},
	}}
	uploader := &mockUploader{}

	a, st := newTestArchiver(t, []model.RepositoryConfig{repo}, fetcher, uploader)

	require.NoError(t, a.Cycle(context.Background()))

	require.Len(t, uploader.uploaded, 2)
	assert.Equal(t, "2024-01-01", uploader.uploaded[0].Date, "uploads must run oldest date first")
	assert.Equal(t, "2024-01-02", uploader.uploaded[1].Date)
	assert.Equal(t, "https://github.com/octocat/hello-world", uploader.uploaded[0].Link)

	pending, err := st.Pending(repo.UID())
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestArchiver_CorrectionIsReuploaded(t *testing.T) {
	repo := repoCfg("octocat", "hello-world")
	date := utcDay(2024, 1, 1)

	fetcher := &mockFetcher{windows: map[string][]model.TrafficRecord{
		repo.UID(): {rec(repo.UID(), date, 5, 3)},
	}}
	uploader := &mockUploader{}

	a, st := newTestArchiver(t, []model.RepositoryConfig{repo}, fetcher, uploader)

	require.NoError(t, a.Cycle(context.Background()))
	require.Len(t, uploader.uploaded, 1)

	// The source corrects the day retroactively; the next cycle must
	// overwrite the counts and push the correction.
	fetcher.windows[repo.UID()] = []model.TrafficRecord{rec(repo.UID(), date, 7, 4)}

	require.NoError(t, a.Cycle(context.Background()))

	require.Len(t, uploader.uploaded, 2)
	assert.Equal(t, 7, uploader.uploaded[1].Count)
	assert.Equal(t, 4, uploader.uploaded[1].Uniques)

	records, err := st.Load(repo.UID())
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, 7, records[0].Clones)
	assert.True(t, records[0].Synced)
}

func TestArchiver_UnchangedWindowUploadsNothing(t *testing.T) {
	repo := repoCfg("octocat", "hello-world")
	fetcher := &mockFetcher{windows: map[string][]model.TrafficRecord{
		repo.UID(): {rec(repo.UID(), utcDay(2024, 1, 1), 5, 3)},
	}}
	uploader := &mockUploader{}

	a, _ := newTestArchiver(t, []model.RepositoryConfig{repo}, fetcher, uploader)

	require.NoError(t, a.Cycle(context.Background()))
	require.NoError(t, a.Cycle(context.Background()))

	assert.Len(t, uploader.uploaded, 1, "an unchanged window must not be re-uploaded")
}

func TestArchiver_CapacityAbortsSyncPhaseForCycle(t *testing.T) {
	repoA := repoCfg("octocat", "first")
	repoB := repoCfg("octocat", "second")

	fetcher := &mockFetcher{windows: map[string][]model.TrafficRecord{
		repoA.UID(): {
			rec(repoA.UID(), utcDay(2024, 1, 1), 5, 3),
			rec(repoA.UID(), utcDay(2024, 1, 2), 9, 4),
		},
		repoB.UID(): {rec(repoB.UID(), utcDay(2024, 1, 1), 2, 1)},
	}}
	uploader := &mockUploader{Err: &nocodb.SyncError{Kind: nocodb.SyncCapacityExceeded, Err: errors.New("record limit exceeded")}}

	a, st := newTestArchiver(t, []model.RepositoryConfig{repoA, repoB}, fetcher, uploader)

	require.NoError(t, a.Cycle(context.Background()), "a full remote store is a cycle-level warning, not a fatal error")

	assert.Equal(t, 1, uploader.calls, "no further uploads may be attempted after the first capacity response")

	// Fetch and merge still ran for both repositories.
	assert.Equal(t, []string{repoA.UID(), repoB.UID()}, fetcher.calls)

	for _, uid := range []string{repoA.UID(), repoB.UID()} {
		pending, err := st.Pending(uid)
		require.NoError(t, err)
		assert.NotEmpty(t, pending, "records stay pending for the next cycle")
	}
}

func TestArchiver_FetchFailureDoesNotAbortCycle(t *testing.T) {
	bad := repoCfg("octocat", "bad-token")
	good := repoCfg("octocat", "good")

	fetcher := &mockFetcher{
		windows: map[string][]model.TrafficRecord{
			good.UID(): {rec(good.UID(), utcDay(2024, 1, 1), 5, 3)},
		},
		errs: map[string]error{
			bad.UID(): &github.FetchError{Repository: bad.UID(), Kind: github.FetchAuth, Err: errors.New("401")},
		},
	}
	uploader := &mockUploader{}

	a, st := newTestArchiver(t, []model.RepositoryConfig{bad, good}, fetcher, uploader)

	require.NoError(t, a.Cycle(context.Background()))

	require.Len(t, uploader.uploaded, 1)
	assert.Equal(t, "good", uploader.uploaded[0].Repository)

	pending, err := st.Pending(good.UID())
	require.NoError(t, err)
	assert.Empty(t, pending, "the healthy repository must fetch, merge and sync normally")
}

func TestArchiver_RateLimitedRetriesThenDefers(t *testing.T) {
	repo := repoCfg("octocat", "hello-world")
	fetcher := &mockFetcher{windows: map[string][]model.TrafficRecord{
		repo.UID(): {rec(repo.UID(), utcDay(2024, 1, 1), 5, 3)},
	}}
	uploader := &mockUploader{Err: &nocodb.SyncError{Kind: nocodb.SyncRateLimited, Err: errors.New("429")}}

	a, st := newTestArchiver(t, []model.RepositoryConfig{repo}, fetcher, uploader)

	require.NoError(t, a.Cycle(context.Background()))

	assert.Equal(t, 1+rateLimitRetries, uploader.calls, "rate-limited uploads are retried a bounded number of times")

	pending, err := st.Pending(repo.UID())
	require.NoError(t, err)
	assert.Len(t, pending, 1, "the record stays pending for the next cycle")
}

func TestArchiver_RateLimitClearsMidRetry(t *testing.T) {
	repo := repoCfg("octocat", "hello-world")
	fetcher := &mockFetcher{windows: map[string][]model.TrafficRecord{
		repo.UID(): {rec(repo.UID(), utcDay(2024, 1, 1), 5, 3)},
	}}
	uploader := &mockUploader{
		Err:      &nocodb.SyncError{Kind: nocodb.SyncRateLimited, Err: errors.New("429")},
		Failures: 2,
	}

	a, st := newTestArchiver(t, []model.RepositoryConfig{repo}, fetcher, uploader)

	require.NoError(t, a.Cycle(context.Background()))

	require.Len(t, uploader.uploaded, 1)

	pending, err := st.Pending(repo.UID())
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestArchiver_RejectedRecordIsSkipped(t *testing.T) {
	repo := repoCfg("octocat", "hello-world")
	fetcher := &mockFetcher{windows: map[string][]model.TrafficRecord{
		repo.UID(): {
			rec(repo.UID(), utcDay(2024, 1, 1), 5, 3),
			rec(repo.UID(), utcDay(2024, 1, 2), 9, 4),
		},
	}}
	uploader := &mockUploader{
		Err:      &nocodb.SyncError{Kind: nocodb.SyncRejected, Err: errors.New("malformed")},
		Failures: 1,
	}

	a, st := newTestArchiver(t, []model.RepositoryConfig{repo}, fetcher, uploader)

	require.NoError(t, a.Cycle(context.Background()))

	require.Len(t, uploader.uploaded, 1, "the record after a rejected one still uploads")
	assert.Equal(t, "2024-01-02", uploader.uploaded[0].Date)

	pending, err := st.Pending(repo.UID())
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "2024-01-01", pending[0].Day())
}

func TestArchiver_RunStopsOnCancellation(t *testing.T) {
	repo := repoCfg("octocat", "hello-world")
	fetcher := &mockFetcher{windows: map[string][]model.TrafficRecord{
		repo.UID(): {rec(repo.UID(), utcDay(2024, 1, 1), 5, 3)},
	}}
	uploader := &mockUploader{}

	a, _ := newTestArchiver(t, []model.RepositoryConfig{repo}, fetcher, uploader)
	a.sleep = func(ctx context.Context, d time.Duration) error {
		return context.Canceled
	}

	require.NoError(t, a.Run(context.Background()), "termination during the sleep is a clean shutdown")
	assert.Len(t, fetcher.calls, 1, "the first cycle runs immediately")
	assert.Len(t, uploader.uploaded, 1)
}
