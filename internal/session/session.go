// Package session keeps the ephemeral per-user dialogue context. Contents are
// process-local and lost on restart.
package session

import (
	"container/list"
	"slices"
	"sync"

	"github.com/YulsKumanikina/eco-ekb-bot/internal/data"
)

// Role of a dialogue turn.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Turn is one message of the dialogue history.
type Turn struct {
	Role    string
	Content string
}

// Context is the conversation state of one user.
type Context struct {
	History []Turn

	// Last search result and the page currently shown.
	Results  []data.RecyclingPoint
	Page     int
	City     string
	District string

	// PendingMaterial is a knowledge keyword waiting for the user to name a city.
	PendingMaterial string
}

// HasResults reports whether a paginated search is available.
func (c *Context) HasResults() bool {
	return len(c.Results) > 0
}

// AddTurns appends turns, keeping at most capacity of the newest ones.
func (c *Context) AddTurns(capacity int, turns ...Turn) {
	h := append(slices.Clone(c.History), turns...)
	if capacity > 0 && len(h) > capacity {
		h = h[len(h)-capacity:]
	}
	c.History = h
}

// Store is the dialogue context store.
type Store interface {
	// Get returns a copy of the context of userID.
	Get(userID string) (Context, bool)
	// Put replaces the context of userID.
	Put(userID string, c Context)
	// Update applies fn to the context of userID, creating it when absent.
	Update(userID string, fn func(c *Context))
	// Evict drops the context of userID.
	Evict(userID string)
	// Len returns the number of stored contexts.
	Len() int
}

type item struct {
	userID string
	ctx    Context
}

// MemoryStore is a Store bounded by a least-recently-used policy.
type MemoryStore struct {
	mu       sync.Mutex
	capacity int
	order    *list.List
	items    map[string]*list.Element
}

// NewMemoryStore creates a store holding at most capacity users.
func NewMemoryStore(capacity int) *MemoryStore {
	return &MemoryStore{
		capacity: max(capacity, 1),
		order:    list.New(),
		items:    make(map[string]*list.Element),
	}
}

// Get implements Store.
func (s *MemoryStore) Get(userID string) (Context, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	el, ok := s.items[userID]
	if !ok {
		return Context{}, false
	}
	s.order.MoveToFront(el)
	return clone(el.Value.(*item).ctx), true
}

// Put implements Store.
func (s *MemoryStore) Put(userID string, c Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.putLocked(userID, clone(c))
}

// Update implements Store.
func (s *MemoryStore) Update(userID string, fn func(c *Context)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var c Context
	if el, ok := s.items[userID]; ok {
		c = el.Value.(*item).ctx
	}
	c = clone(c)
	fn(&c)
	s.putLocked(userID, c)
}

// Evict implements Store.
func (s *MemoryStore) Evict(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if el, ok := s.items[userID]; ok {
		s.order.Remove(el)
		delete(s.items, userID)
	}
}

// Len implements Store.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.order.Len()
}

func (s *MemoryStore) putLocked(userID string, c Context) {
	if el, ok := s.items[userID]; ok {
		el.Value.(*item).ctx = c
		s.order.MoveToFront(el)
		return
	}
	s.items[userID] = s.order.PushFront(&item{userID: userID, ctx: c})
	for s.order.Len() > s.capacity {
		oldest := s.order.Back()
		s.order.Remove(oldest)
		delete(s.items, oldest.Value.(*item).userID)
	}
}

func clone(c Context) Context {
	c.History = slices.Clone(c.History)
	c.Results = slices.Clone(c.Results)
	return c
}

var _ Store = (*MemoryStore)(nil)
