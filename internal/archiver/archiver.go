// Package archiver drives the fetch → merge → sync cycle across all
// configured repositories.
package archiver

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/inovacc/trafficr/internal/journal"
	"github.com/inovacc/trafficr/internal/model"
	"github.com/inovacc/trafficr/internal/nocodb"
	"github.com/inovacc/trafficr/internal/store"
)

// Fetcher pulls one repository's current traffic window.
type Fetcher interface {
	Fetch(ctx context.Context, repo model.RepositoryConfig) ([]model.TrafficRecord, error)
}

// Uploader creates one record at the remote store. A nil error is the only
// success signal.
type Uploader interface {
	Upload(ctx context.Context, rec model.RemoteRecord) error
}

const (
	// wakeInterval is how often the loop re-checks whether the archiving
	// period has elapsed. The period is counted in days, so a daily wake is
	// enough and keeps restarts from shortening the period.
	wakeInterval = 24 * time.Hour

	// rateLimitRetries bounds how often one record is retried after a
	// rate-limit response before it is left for the next cycle.
	rateLimitRetries = 3
)

// Archiver is the process's only long-lived control structure. It owns the
// cycle state machine and is strictly single-threaded: one repository is
// fully processed (fetch, merge, sync) before the next, which keeps the
// process-wide upload gate trivially correct.
type Archiver struct {
	cfg      model.Config
	store    store.Store
	fetcher  Fetcher
	uploader Uploader
	journal  *journal.Journal // optional, best-effort
	log      *slog.Logger

	lastCycle time.Time

	// injectable for tests
	now          func() time.Time
	sleep        func(ctx context.Context, d time.Duration) error
	retryInitial time.Duration
}

// New creates an archiver. The journal may be nil; everything else is
// required.
func New(cfg model.Config, st store.Store, f Fetcher, u Uploader, j *journal.Journal, log *slog.Logger) *Archiver {
	return &Archiver{
		cfg:          cfg,
		store:        st,
		fetcher:      f,
		uploader:     u,
		journal:      j,
		log:          log,
		now:          time.Now,
		sleep:        sleepContext,
		retryInitial: time.Second,
	}
}

// Run executes cycles until ctx is cancelled. The first cycle starts
// immediately; afterwards a cycle runs whenever the configured period has
// elapsed since the last completed one. Only local persistence failures
// end the loop with an error; every other failure is logged and absorbed.
func (a *Archiver) Run(ctx context.Context) error {
	period := time.Duration(a.cfg.ArchiverPeriod) * 24 * time.Hour

	for {
		if a.lastCycle.IsZero() || a.now().Sub(a.lastCycle) >= period {
			if err := a.Cycle(ctx); err != nil {
				return err
			}

			a.lastCycle = a.now()
		}

		if err := a.sleep(ctx, wakeInterval); err != nil {
			// Process termination. The cycle above has already completed
			// every in-flight write.
			return nil
		}
	}
}

// Cycle runs one fetch → merge → sync pass over all configured
// repositories. Returns an error only when local persistence fails.
func (a *Archiver) Cycle(ctx context.Context) error {
	log := a.log.With(slog.String("cycle", uuid.NewString()))
	log.Info("cycle start", slog.Int("repositories", len(a.cfg.Repositories)))

	// Once the remote store reports it is full, no further upload this
	// cycle can succeed; fetching and merging continue so no local data is
	// lost while the operator makes room.
	atCapacity := false

	for _, repo := range a.cfg.Repositories {
		if ctx.Err() != nil {
			log.Info("cycle interrupted")

			return nil
		}

		records, err := a.fetcher.Fetch(ctx, repo)
		if err != nil {
			log.Error("fetch failed, skipping repository",
				slog.String("repository", repo.UID()),
				slog.String("phase", "fetch"),
				slog.Any("error", err))

			continue
		}

		if err := a.store.Merge(repo.UID(), records); err != nil {
			return err
		}

		log.Info("merged traffic window",
			slog.String("repository", repo.UID()),
			slog.String("phase", "merge"),
			slog.Int("records", len(records)))

		if atCapacity {
			continue
		}

		full, err := a.syncRepository(ctx, log, repo)
		if err != nil {
			return err
		}

		if full {
			log.Warn("remote store at capacity, sync phase aborted for this cycle",
				slog.String("repository", repo.UID()),
				slog.String("phase", "sync"))

			atCapacity = true
		}
	}

	log.Info("cycle end")

	return nil
}

// syncRepository uploads the repository's pending records oldest-first.
// The returned bool reports whether the remote store hit capacity.
func (a *Archiver) syncRepository(ctx context.Context, log *slog.Logger, repo model.RepositoryConfig) (bool, error) {
	pending, err := a.store.Pending(repo.UID())
	if err != nil {
		return false, err
	}

	for _, rec := range pending {
		if ctx.Err() != nil {
			return false, nil
		}

		uploadErr := a.uploadWithRetry(ctx, repo, rec)
		if uploadErr == nil {
			if err := a.store.MarkSynced(repo.UID(), rec.Date); err != nil {
				return false, err
			}

			a.journalUpload(log, rec)

			log.Info("record synced",
				slog.String("repository", repo.UID()),
				slog.String("date", rec.Day()),
				slog.String("phase", "sync"))

			continue
		}

		var serr *nocodb.SyncError
		if errors.As(uploadErr, &serr) {
			switch serr.Kind {
			case nocodb.SyncCapacityExceeded:
				return true, nil
			case nocodb.SyncRateLimited:
				log.Warn("rate limited after retries, record deferred to next cycle",
					slog.String("repository", repo.UID()),
					slog.String("date", rec.Day()),
					slog.String("phase", "sync"))

				continue
			}
		}

		log.Error("upload failed, skipping record",
			slog.String("repository", repo.UID()),
			slog.String("date", rec.Day()),
			slog.String("phase", "sync"),
			slog.Any("error", uploadErr))
	}

	return false, nil
}

// uploadWithRetry pushes one record, retrying only rate-limit responses
// with bounded exponential backoff. Every other failure returns
// immediately.
func (a *Archiver) uploadWithRetry(ctx context.Context, repo model.RepositoryConfig, rec model.TrafficRecord) error {
	remote := model.NewRemoteRecord(rec, repo.Username, repo.Repository)

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = a.retryInitial

	op := func() error {
		err := a.uploader.Upload(ctx, remote)
		if err == nil {
			return nil
		}

		var serr *nocodb.SyncError
		if errors.As(err, &serr) && serr.Kind == nocodb.SyncRateLimited {
			return err
		}

		return backoff.Permanent(err)
	}

	return backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(eb, rateLimitRetries), ctx))
}

func (a *Archiver) journalUpload(log *slog.Logger, rec model.TrafficRecord) {
	if a.journal == nil {
		return
	}

	err := a.journal.Append(journal.Entry{
		Repository: rec.Repository,
		Date:       rec.Day(),
		Clones:     rec.Clones,
		Uniques:    rec.Uniques,
		UploadedAt: a.now().UTC(),
	})
	if err != nil {
		// The synced flag is authoritative; a lost journal entry only
		// degrades the operator's audit trail.
		log.Warn("journal append failed",
			slog.String("repository", rec.Repository),
			slog.String("date", rec.Day()),
			slog.Any("error", err))
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
