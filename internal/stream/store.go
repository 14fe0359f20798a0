package stream

import (
	"errors"
	"sort"
	"sync"
)

// ErrNotFound is returned for unknown stream IDs.
var ErrNotFound = errors.New("stream not found")

type Store struct {
	mu      sync.RWMutex
	streams map[string]*State
}

func NewStore() *Store {
	return &Store{
		streams: make(map[string]*State),
	}
}

func (s *Store) Get(id string) (*State, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.streams[id]
	if !ok {
		return nil, ErrNotFound
	}
	return st.Clone(), nil
}

// GetAll returns copies of every stream, oldest first.
func (s *Store) GetAll() []*State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]*State, 0, len(s.streams))
	for _, st := range s.streams {
		result = append(result, st.Clone())
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].StartedAt.Equal(result[j].StartedAt) {
			return result[i].ID < result[j].ID
		}
		return result[i].StartedAt.Before(result[j].StartedAt)
	})
	return result
}

func (s *Store) Update(state *State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.streams[state.ID] = state.Clone()
}

func (s *Store) Remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.streams, id)
}

// ActiveCount returns the number of streams that have not finished.
func (s *Store) ActiveCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, st := range s.streams {
		if !st.IsTerminal() {
			count++
		}
	}
	return count
}
