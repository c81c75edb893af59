package conversation

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
)

// MemoryStateStore keeps conversation state in process memory. Used by local
// runs and tests; production uses the Postgres store.
type MemoryStateStore struct {
	mu     sync.RWMutex
	states map[string][]byte
}

// NewMemoryStateStore builds an empty in-memory store.
func NewMemoryStateStore() *MemoryStateStore {
	return &MemoryStateStore{states: make(map[string][]byte)}
}

var _ StateStore = (*MemoryStateStore)(nil)

// Save stores a deep copy so later mutations do not leak in.
func (s *MemoryStateStore) Save(ctx context.Context, st *State) error {
	data, err := json.Marshal(st)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.states[st.LeadID] = data
	s.mu.Unlock()
	return nil
}

// Load returns the stored state or ErrStateNotFound.
func (s *MemoryStateStore) Load(ctx context.Context, leadID string) (*State, error) {
	s.mu.RLock()
	data, ok := s.states[leadID]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrStateNotFound
	}
	var st State
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, err
	}
	return &st, nil
}

// ListByStage returns up to limit states in the stage, oldest contact first.
func (s *MemoryStateStore) ListByStage(ctx context.Context, stage Stage, limit int) ([]*State, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*State
	for _, data := range s.states {
		var st State
		if err := json.Unmarshal(data, &st); err != nil {
			return nil, err
		}
		if st.Stage == stage {
			out = append(out, &st)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].LastContactTime.Before(out[j].LastContactTime)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
