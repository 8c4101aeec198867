package relay

import "sync"

// Sessions tracks open edit conversations, at most one per admin
// identity. Keying by admin id lets multiple admins edit different
// review items concurrently without cross-talk.
type Sessions struct {
	mu   sync.Mutex
	open map[int64]Key
}

func NewSessions() *Sessions {
	return &Sessions{open: make(map[int64]Key)}
}

// Begin opens an edit session for admin bound to key, replacing any
// session the admin already had open.
func (s *Sessions) Begin(admin int64, key Key) {
	s.mu.Lock()
	s.open[admin] = key
	s.mu.Unlock()
}

// Take consumes the admin's open session, if any.
func (s *Sessions) Take(admin int64) (Key, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key, ok := s.open[admin]
	if ok {
		delete(s.open, admin)
	}
	return key, ok
}

// Active reports whether admin has an open session.
func (s *Sessions) Active(admin int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.open[admin]
	return ok
}

func (s *Sessions) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.open)
}
