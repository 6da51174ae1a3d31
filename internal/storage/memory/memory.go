// Package memory implements the storage backend on process-local maps. It
// backs tests and the manager's last-resort Emergency state.
package memory

import (
	"context"
	"sort"
	"sync"

	"respondr/internal/domain"
	"respondr/internal/storage"
)

type Store struct {
	mu       sync.RWMutex
	active   map[string]domain.ResponderMessage
	archived map[string]domain.ResponderMessage
}

func New() *Store {
	return &Store{
		active:   map[string]domain.ResponderMessage{},
		archived: map[string]domain.ResponderMessage{},
	}
}

func (s *Store) Upsert(ctx context.Context, rec domain.ResponderMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec.MinutesUntilETA = nil // derived, never stored
	if rec.Deleted {
		delete(s.active, rec.ID)
		s.archived[rec.ID] = rec
	} else {
		delete(s.archived, rec.ID)
		s.active[rec.ID] = rec
	}
	return nil
}

func (s *Store) Get(ctx context.Context, id string) (domain.ResponderMessage, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if rec, ok := s.active[id]; ok {
		return rec, true, nil
	}
	if rec, ok := s.archived[id]; ok {
		return rec, true, nil
	}
	return domain.ResponderMessage{}, false, nil
}

func (s *Store) List(ctx context.Context, groupID string, includeDeleted bool) ([]domain.ResponderMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.ResponderMessage, 0, len(s.active))
	for _, rec := range s.active {
		if groupID == "" || rec.GroupID == groupID {
			out = append(out, rec)
		}
	}
	if includeDeleted {
		for _, rec := range s.archived {
			if groupID == "" || rec.GroupID == groupID {
				out = append(out, rec)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ReceivedAt.After(out[j].ReceivedAt) })
	return out, nil
}

func (s *Store) SoftDelete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.active[id]
	if !ok {
		return storage.ErrNotFound
	}
	delete(s.active, id)
	rec.Deleted = true
	s.archived[id] = rec
	return nil
}

func (s *Store) Undelete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.archived[id]
	if !ok {
		return storage.ErrNotFound
	}
	delete(s.archived, id)
	rec.Deleted = false
	s.active[id] = rec
	return nil
}

func (s *Store) Purge(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.active[id]; !ok {
		if _, ok := s.archived[id]; !ok {
			return storage.ErrNotFound
		}
	}
	delete(s.active, id)
	delete(s.archived, id)
	return nil
}

func (s *Store) Ping(ctx context.Context) error { return nil }
