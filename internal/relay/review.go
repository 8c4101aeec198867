package relay

import (
	"sort"
	"sync"

	"relaybot/internal/transport"
)

// State tracks where a review item is in the moderation flow. Approved
// and rejected are terminal: the item leaves the store as part of the
// same step that decides the outcome, so terminal states are never
// observed inside the store.
type State string

const (
	StatePending  State = "pending_review"
	StateApproved State = "approved"
	StateRejected State = "rejected"
	StateEditing  State = "editing"
)

// Key uniquely identifies a review item: one per (language, post).
type Key struct {
	Lang string
	ID   string // source message id or album id
}

func (k Key) String() string { return k.Lang + "/" + k.ID }

// Item is one (post, target language) pairing awaiting a moderation
// decision.
type Item struct {
	Key         Key
	Post        *Post // shared read-only reference
	Translated  []transport.Media
	Destination transport.ChatTarget
	State       State

	// AdminRefs are the messages rendered into the admin chat for this
	// item. AckRef is the one that gets edited into an acknowledgement;
	// AckHasCaption records whether that message is caption-bearing
	// (media) or plain text, which decides the edit operation used.
	AdminRefs     []transport.MessageRef
	AckRef        transport.MessageRef
	AckHasCaption bool
}

// Store is the in-memory table of review items awaiting a decision.
// Every mutation is a single atomic step under one mutex; slow I/O is
// never performed while holding it.
type Store struct {
	mu    sync.Mutex
	items map[Key]*Item
}

func NewStore() *Store {
	return &Store{items: make(map[Key]*Item)}
}

// Insert adds an item under its key, replacing any previous occupant
// (a key may be reused after a terminal transition).
func (s *Store) Insert(it *Item) {
	s.mu.Lock()
	s.items[it.Key] = it
	s.mu.Unlock()
}

// Pop atomically removes and returns the item for key. The second
// return is false when the key is absent — the normal outcome of a
// decision race, not an error.
func (s *Store) Pop(key Key) (*Item, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	it, ok := s.items[key]
	if ok {
		delete(s.items, key)
	}
	return it, ok
}

// Has reports whether key currently holds an item.
func (s *Store) Has(key Key) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.items[key]
	return ok
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// Keys returns the pending keys in stable order (for status/digest output).
func (s *Store) Keys() []Key {
	s.mu.Lock()
	keys := make([]Key, 0, len(s.items))
	for k := range s.items {
		keys = append(keys, k)
	}
	s.mu.Unlock()

	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Lang != keys[j].Lang {
			return keys[i].Lang < keys[j].Lang
		}
		return keys[i].ID < keys[j].ID
	})
	return keys
}
