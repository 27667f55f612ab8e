// Package memory provides an in-memory remote record store, used by
// tests and as the default backend of the standalone remote server.
package memory

import (
	"context"
	"fmt"
	"sync"

	"kakeibo/internal/core"
)

type Store struct {
	mu      sync.Mutex
	records []core.Record
}

func New() *Store {
	return &Store{}
}

func (s *Store) FetchAll(_ context.Context) ([]core.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Record, len(s.records))
	copy(out, s.records)
	return out, nil
}

func (s *Store) Add(_ context.Context, rec core.Record) error {
	if rec.ID == "" {
		return fmt.Errorf("record has no id")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, rec)
	return nil
}

func (s *Store) Update(_ context.Context, rec core.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.records {
		if s.records[i].ID == rec.ID {
			s.records[i] = rec
			return nil
		}
	}
	return fmt.Errorf("update %s: %w", rec.ID, core.ErrNotFound)
}

func (s *Store) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.records {
		if s.records[i].ID == id {
			s.records = append(s.records[:i], s.records[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("delete %s: %w", id, core.ErrNotFound)
}

func (s *Store) ReplaceAll(_ context.Context, records []core.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = make([]core.Record, len(records))
	copy(s.records, records)
	return nil
}
