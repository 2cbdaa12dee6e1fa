package memory

import (
	"context"
	"sync"

	"github.com/kart-io/flowagent/flowtypes"
)

// InMemoryStore is the default Manager backend: a process-local map keyed by
// node id. It is safe for concurrent use (spec §5: memory may be docked to
// multiple nodes) and lives for exactly as long as its owning process does.
type InMemoryStore struct {
	id       string
	mu       sync.RWMutex
	history  map[string][]flowtypes.Message
	priority int
}

// NewInMemoryStore creates an empty in-memory history store. id is the
// resource id used when this store is docked onto a node (spec §3
// "Resource"); priority sets the value returned by GetPriority, used by
// consumers that dock several memories to one node.
func NewInMemoryStore(id string, priority int) *InMemoryStore {
	return &InMemoryStore{
		id:       id,
		history:  make(map[string][]flowtypes.Message),
		priority: priority,
	}
}

// ID implements engine.Resource so a memory store can be docked directly
// onto a node (e.g. the streaming assistant's "memory" dock).
func (s *InMemoryStore) ID() string { return s.id }

func (s *InMemoryStore) LoadNodeHistory(_ context.Context, nodeID string) ([]flowtypes.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	existing := s.history[nodeID]
	out := make([]flowtypes.Message, len(existing))
	copy(out, existing)
	return out, nil
}

func (s *InMemoryStore) AppendNodeHistory(_ context.Context, nodeID string, msg flowtypes.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.history[nodeID] = append(s.history[nodeID], msg)
	return nil
}

func (s *InMemoryStore) SetFeedback(_ context.Context, nodeID, messageID, feedback string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, m := range s.history[nodeID] {
		if m.ID == messageID {
			s.history[nodeID][i].Feedback = feedback
			return true, nil
		}
	}
	return false, nil
}

func (s *InMemoryStore) ResetNodeHistory(_ context.Context, nodeID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.history, nodeID)
	return nil
}

func (s *InMemoryStore) GetPriority() int {
	return s.priority
}
