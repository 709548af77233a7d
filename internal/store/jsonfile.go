//go:build !sqlite

package store

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/inovacc/trafficr/internal/model"
)

const recordsFileName = "clones.json"

// FileStore keeps one JSON file per repository under a storage root:
//
//	<root>/<owner>/<repo>/clones.json
//
// Files are rewritten in full on every mutation through a temp file and an
// atomic rename, then fsynced, so a crash never leaves a partial write
// behind. The format is a plain JSON array so operators can read and, if
// ever needed, hand-edit the archive.
type FileStore struct {
	root string
}

// New opens a file store rooted at the given directory, creating it when
// absent.
func New(root string) (Store, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, &PersistenceError{Op: "init", Err: err}
	}

	return &FileStore{root: root}, nil
}

func (s *FileStore) Ping() error {
	info, err := os.Stat(s.root)
	if err != nil {
		return &PersistenceError{Op: "ping", Err: err}
	}

	if !info.IsDir() {
		return &PersistenceError{Op: "ping", Err: errors.New("storage root is not a directory")}
	}

	return nil
}

func (s *FileStore) Close() error {
	return nil
}

func (s *FileStore) Load(repository string) ([]model.TrafficRecord, error) {
	records, err := s.read(repository)
	if err != nil {
		return nil, err
	}

	sortByDate(records)

	return records, nil
}

func (s *FileStore) Merge(repository string, records []model.TrafficRecord) error {
	existing, err := s.read(repository)
	if err != nil {
		return err
	}

	byDay := make(map[string]model.TrafficRecord, len(existing))
	for _, rec := range existing {
		byDay[rec.Day()] = rec
	}

	changed := false

	for _, incoming := range records {
		incoming.Repository = repository
		incoming.Date = day(incoming.Date)

		current, ok := byDay[incoming.Day()]
		if !ok {
			incoming.Synced = false
			byDay[incoming.Day()] = incoming
			changed = true

			continue
		}

		if current.SameCounts(incoming) {
			// Unchanged counts keep their sync state; re-flagging them
			// would re-upload rows the remote side already has.
			continue
		}

		current.Clones = incoming.Clones
		current.Uniques = incoming.Uniques
		current.Synced = false
		byDay[current.Day()] = current
		changed = true
	}

	if !changed {
		return nil
	}

	merged := make([]model.TrafficRecord, 0, len(byDay))
	for _, rec := range byDay {
		merged = append(merged, rec)
	}

	sortByDate(merged)

	return s.write(repository, merged)
}

func (s *FileStore) MarkSynced(repository string, date time.Time) error {
	records, err := s.read(repository)
	if err != nil {
		return err
	}

	key := day(date).UTC().Format(model.DayFormat)

	for i := range records {
		if records[i].Day() != key {
			continue
		}

		if records[i].Synced {
			return nil
		}

		records[i].Synced = true
		sortByDate(records)

		return s.write(repository, records)
	}

	// Key absent: a correction may have raced a delayed sync confirmation.
	return nil
}

func (s *FileStore) Pending(repository string) ([]model.TrafficRecord, error) {
	records, err := s.Load(repository)
	if err != nil {
		return nil, err
	}

	pending := make([]model.TrafficRecord, 0, len(records))
	for _, rec := range records {
		if !rec.Synced {
			pending = append(pending, rec)
		}
	}

	return pending, nil
}

func (s *FileStore) repoPath(repository string) string {
	return filepath.Join(s.root, filepath.FromSlash(repository), recordsFileName)
}

func (s *FileStore) read(repository string) ([]model.TrafficRecord, error) {
	data, err := os.ReadFile(s.repoPath(repository))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, &PersistenceError{Repository: repository, Op: "read", Err: err}
	}

	var records []model.TrafficRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, &PersistenceError{Repository: repository, Op: "decode", Err: err}
	}

	return records, nil
}

func (s *FileStore) write(repository string, records []model.TrafficRecord) error {
	path := s.repoPath(repository)

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return &PersistenceError{Repository: repository, Op: "write", Err: err}
	}

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return &PersistenceError{Repository: repository, Op: "encode", Err: err}
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), recordsFileName+".tmp-*")
	if err != nil {
		return &PersistenceError{Repository: repository, Op: "write", Err: err}
	}

	if _, err := tmp.Write(data); err == nil {
		err = tmp.Sync()
	}
	if err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())

		return &PersistenceError{Repository: repository, Op: "write", Err: err}
	}

	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())

		return &PersistenceError{Repository: repository, Op: "write", Err: err}
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		_ = os.Remove(tmp.Name())

		return &PersistenceError{Repository: repository, Op: "write", Err: err}
	}

	return syncDir(filepath.Dir(path), repository)
}

func syncDir(dir, repository string) error {
	d, err := os.Open(dir)
	if err != nil {
		return &PersistenceError{Repository: repository, Op: "sync", Err: err}
	}
	defer func() { _ = d.Close() }()

	if err := d.Sync(); err != nil {
		return &PersistenceError{Repository: repository, Op: "sync", Err: err}
	}

	return nil
}

func sortByDate(records []model.TrafficRecord) {
	sort.Slice(records, func(i, j int) bool {
		return records[i].Date.Before(records[j].Date)
	})
}
