package memory

import (
	"context"
	"sync"

	"subledger/internal/remote"
)

// Store keeps remote rows in process memory, per user, in insertion order.
type Store struct {
	mu    sync.Mutex
	users map[string]*table
}

type table struct {
	order []string
	rows  map[string]remote.Row
}

var _ remote.Store = (*Store)(nil)

func New() *Store {
	return &Store{users: map[string]*table{}}
}

func (s *Store) tableFor(userID string) *table {
	t, ok := s.users[userID]
	if !ok {
		t = &table{rows: map[string]remote.Row{}}
		s.users[userID] = t
	}
	return t
}

// UpsertRows inserts new ids and replaces existing ones.
func (s *Store) UpsertRows(_ context.Context, userID string, rows []remote.Row) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.tableFor(userID)
	for _, r := range rows {
		r.UserID = userID
		if _, ok := t.rows[r.ID]; !ok {
			t.order = append(t.order, r.ID)
		}
		t.rows[r.ID] = r
	}
	return nil
}

func (s *Store) ListRows(_ context.Context, userID string) ([]remote.Row, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.users[userID]
	if !ok {
		return []remote.Row{}, nil
	}
	out := make([]remote.Row, 0, len(t.order))
	for _, id := range t.order {
		out = append(out, t.rows[id])
	}
	return out, nil
}

func (s *Store) ListIDs(_ context.Context, userID string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.users[userID]
	if !ok {
		return []string{}, nil
	}
	return append([]string(nil), t.order...), nil
}

func (s *Store) DeleteRows(_ context.Context, userID string, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.users[userID]
	if !ok {
		return nil
	}
	drop := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		drop[id] = struct{}{}
		delete(t.rows, id)
	}
	kept := t.order[:0]
	for _, id := range t.order {
		if _, gone := drop[id]; !gone {
			kept = append(kept, id)
		}
	}
	t.order = kept
	return nil
}

func (s *Store) DeleteAllRows(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.users, userID)
	return nil
}
