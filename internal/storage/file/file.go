// Package file implements the storage backend on a single JSON file. It is
// the local fallback when the primary keyed store is unreachable.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"respondr/internal/domain"
	"respondr/internal/storage"
)

type Store struct {
	path string
	mu   sync.Mutex
	st   state
}

type state struct {
	Active   map[string]domain.ResponderMessage `json:"active"`
	Archived map[string]domain.ResponderMessage `json:"archived"`
}

func New(path string) (*Store, error) {
	if path == "" {
		return nil, errors.New("file store path required")
	}
	s := &Store{
		path: path,
		st: state{
			Active:   map[string]domain.ResponderMessage{},
			Archived: map[string]domain.ResponderMessage{},
		},
	}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) load() error {
	b, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if len(b) == 0 {
		return nil
	}
	var st state
	if err := json.Unmarshal(b, &st); err != nil {
		return err
	}
	if st.Active == nil {
		st.Active = map[string]domain.ResponderMessage{}
	}
	if st.Archived == nil {
		st.Archived = map[string]domain.ResponderMessage{}
	}
	s.st = st
	return nil
}

// saveLocked writes to a temp file and renames over the target so a crash
// mid-write never leaves a truncated store.
func (s *Store) saveLocked() error {
	b, err := json.Marshal(s.st)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(s.path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}

func (s *Store) Upsert(ctx context.Context, rec domain.ResponderMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec.MinutesUntilETA = nil
	prevActive, hadActive := s.st.Active[rec.ID]
	prevArchived, hadArchived := s.st.Archived[rec.ID]
	if rec.Deleted {
		delete(s.st.Active, rec.ID)
		s.st.Archived[rec.ID] = rec
	} else {
		delete(s.st.Archived, rec.ID)
		s.st.Active[rec.ID] = rec
	}
	if err := s.saveLocked(); err != nil {
		s.restore(rec.ID, prevActive, hadActive, prevArchived, hadArchived)
		return err
	}
	return nil
}

func (s *Store) restore(id string, active domain.ResponderMessage, hadActive bool, archived domain.ResponderMessage, hadArchived bool) {
	delete(s.st.Active, id)
	delete(s.st.Archived, id)
	if hadActive {
		s.st.Active[id] = active
	}
	if hadArchived {
		s.st.Archived[id] = archived
	}
}

func (s *Store) Get(ctx context.Context, id string) (domain.ResponderMessage, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec, ok := s.st.Active[id]; ok {
		return rec, true, nil
	}
	if rec, ok := s.st.Archived[id]; ok {
		return rec, true, nil
	}
	return domain.ResponderMessage{}, false, nil
}

func (s *Store) List(ctx context.Context, groupID string, includeDeleted bool) ([]domain.ResponderMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.ResponderMessage, 0, len(s.st.Active))
	for _, rec := range s.st.Active {
		if groupID == "" || rec.GroupID == groupID {
			out = append(out, rec)
		}
	}
	if includeDeleted {
		for _, rec := range s.st.Archived {
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
	rec, ok := s.st.Active[id]
	if !ok {
		return storage.ErrNotFound
	}
	delete(s.st.Active, id)
	rec.Deleted = true
	s.st.Archived[id] = rec
	if err := s.saveLocked(); err != nil {
		delete(s.st.Archived, id)
		rec.Deleted = false
		s.st.Active[id] = rec
		return err
	}
	return nil
}

func (s *Store) Undelete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.st.Archived[id]
	if !ok {
		return storage.ErrNotFound
	}
	delete(s.st.Archived, id)
	rec.Deleted = false
	s.st.Active[id] = rec
	if err := s.saveLocked(); err != nil {
		delete(s.st.Active, id)
		rec.Deleted = true
		s.st.Archived[id] = rec
		return err
	}
	return nil
}

func (s *Store) Purge(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	prevActive, hadActive := s.st.Active[id]
	prevArchived, hadArchived := s.st.Archived[id]
	if !hadActive && !hadArchived {
		return storage.ErrNotFound
	}
	delete(s.st.Active, id)
	delete(s.st.Archived, id)
	if err := s.saveLocked(); err != nil {
		s.restore(id, prevActive, hadActive, prevArchived, hadArchived)
		return err
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	_, err := os.Stat(filepath.Dir(s.path))
	return err
}
