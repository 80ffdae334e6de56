// Package memory is an in-memory TurnStore for development and tests.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/tjfontaine/eventchat/internal/storage"
)

// Store is an in-memory implementation of TurnStore.
type Store struct {
	mu    sync.RWMutex
	turns map[string]*storage.TurnRecord
	order []string
}

var _ storage.TurnStore = (*Store)(nil)

// New creates a new in-memory store.
func New() *Store {
	return &Store{
		turns: make(map[string]*storage.TurnRecord),
	}
}

func (s *Store) SaveTurn(ctx context.Context, rec *storage.TurnRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}

	if _, exists := s.turns[rec.ID]; !exists {
		s.order = append(s.order, rec.ID)
	}
	stored := *rec
	s.turns[rec.ID] = &stored
	return nil
}

func (s *Store) GetTurn(ctx context.Context, id string) (*storage.TurnRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, exists := s.turns[id]
	if !exists {
		return nil, fmt.Errorf("turn %s not found", id)
	}

	out := *rec
	return &out, nil
}

func (s *Store) ListTurns(ctx context.Context, opts storage.ListOptions) ([]*storage.TurnRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*storage.TurnRecord
	for _, id := range s.order {
		rec := s.turns[id]
		if opts.SessionID != "" && rec.SessionID != opts.SessionID {
			continue
		}
		if opts.Status != "" && rec.Status != opts.Status {
			continue
		}
		out := *rec
		result = append(result, &out)
	}

	// Simple pagination
	start := opts.Offset
	if start >= len(result) {
		return []*storage.TurnRecord{}, nil
	}

	end := start + opts.Limit
	if opts.Limit == 0 || end > len(result) {
		end = len(result)
	}

	return result[start:end], nil
}

func (s *Store) Close() error {
	return nil
}
