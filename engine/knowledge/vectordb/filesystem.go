package vectordb

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
)

// fileStore serves queries from memory and rewrites a JSON snapshot on disk
// after each successful mutation.
type fileStore struct {
	*memoryStore
	path string
}

type snapshot struct {
	Dimension int      `json:"dimension"`
	Metric    string   `json:"metric,omitempty"`
	Records   []Record `json:"records"`
}

func newFileStore(cfg *Config) (Store, error) {
	if cfg == nil {
		return nil, errors.New("filesystem: config is required")
	}
	path := filepath.Clean(cfg.Path)
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("filesystem: create directory for %q: %w", path, err)
	}
	store := &fileStore{memoryStore: newMemoryStore(cfg), path: path}
	store.provider = ProviderFilesystem
	if err := store.restore(); err != nil {
		return nil, err
	}
	return store, nil
}

// Reset empties the collection and writes an empty snapshot.
func (s *fileStore) Reset(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	clear(s.records)
	return s.save()
}

func (s *fileStore) Upsert(_ context.Context, records []Record) error {
	if len(records) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.putLocked(records); err != nil {
		return err
	}
	return s.save()
}

func (s *fileStore) Delete(_ context.Context, filter Filter) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.deleteLocked(filter) {
		return s.save()
	}
	return nil
}

func (s *fileStore) restore() error {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("filesystem: read %q: %w", s.path, err)
	}
	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return fmt.Errorf("filesystem: decode %q: %w", s.path, err)
	}
	if snap.Dimension > 0 && snap.Dimension != s.dimension {
		return fmt.Errorf("filesystem: %q holds %d-dimensional vectors, which does not match the configured %d",
			s.path, snap.Dimension, s.dimension)
	}
	return s.putLocked(snap.Records)
}

// save writes the snapshot to a sibling temp file and renames it over the
// old one. Callers hold s.mu.
func (s *fileStore) save() error {
	snap := snapshot{Dimension: s.dimension, Metric: s.metric, Records: make([]Record, 0, len(s.records))}
	for _, rec := range s.records {
		snap.Records = append(snap.Records, rec)
	}
	slices.SortFunc(snap.Records, func(a, b Record) int { return cmp.Compare(a.ID, b.ID) })
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("filesystem: encode snapshot: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".*")
	if err != nil {
		return fmt.Errorf("filesystem: write snapshot: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("filesystem: write snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("filesystem: write snapshot: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("filesystem: replace snapshot: %w", err)
	}
	return nil
}
