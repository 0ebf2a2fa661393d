package session

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/irfndi/tanya-ai-go/internal/models"
)

type memoryEntry struct {
	conv    *models.Conversation
	expires time.Time
}

// MemoryStore keeps conversations in process. Entries idle longer than the
// TTL are dropped lazily.
type MemoryStore struct {
	mu    sync.RWMutex
	items map[string]memoryEntry
	ttl   time.Duration
	now   func() time.Time
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		items: make(map[string]memoryEntry),
		ttl:   ttl,
		now:   time.Now,
	}
}

func (s *MemoryStore) Get(_ context.Context, id string) (*models.Conversation, error) {
	s.mu.RLock()
	e, ok := s.items[id]
	s.mu.RUnlock()
	if !ok || s.expired(e) {
		return models.NewConversation(id, s.now()), nil
	}
	return clone(e.conv), nil
}

func (s *MemoryStore) Save(_ context.Context, conv *models.Conversation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[conv.ID] = memoryEntry{conv: clone(conv), expires: s.deadline()}
	return nil
}

func (s *MemoryStore) Reset(ctx context.Context, id string) (*models.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.items[id]
	conv := models.NewConversation(id, s.now())
	if ok && !s.expired(e) {
		conv = clone(e.conv)
		conv.ClearHistory()
		conv.LastInteraction = s.now()
	}
	s.items[id] = memoryEntry{conv: clone(conv), expires: s.deadline()}
	return conv, nil
}

// List returns live conversations ordered by id.
func (s *MemoryStore) List(_ context.Context) ([]*models.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*models.Conversation, 0, len(s.items))
	for id, e := range s.items {
		if s.expired(e) {
			delete(s.items, id)
			continue
		}
		out = append(out, clone(e.conv))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryStore) deadline() time.Time {
	if s.ttl <= 0 {
		return time.Time{}
	}
	return s.now().Add(s.ttl)
}

func (s *MemoryStore) expired(e memoryEntry) bool {
	return !e.expires.IsZero() && s.now().After(e.expires)
}
