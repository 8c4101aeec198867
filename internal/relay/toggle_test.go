package relay

import (
	"sync"
	"testing"
)

func TestToggleFlip(t *testing.T) {
	t.Parallel()
	tg := NewToggle(true)
	if !tg.Enabled() {
		t.Fatal("initial state lost")
	}
	if tg.Flip() {
		t.Fatal("Flip from on should report off")
	}
	if tg.Enabled() {
		t.Fatal("state not flipped")
	}
	if !tg.Flip() {
		t.Fatal("Flip from off should report on")
	}
}

func TestToggleConcurrentFlipsStayConsistent(t *testing.T) {
	t.Parallel()
	tg := NewToggle(false)

	const flips = 100
	var wg sync.WaitGroup
	for i := 0; i < flips; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tg.Flip()
		}()
	}
	wg.Wait()

	// An even number of flips returns to the initial state.
	if tg.Enabled() {
		t.Fatalf("enabled after %d flips from off", flips)
	}
}

func TestSessionsPerAdminIsolation(t *testing.T) {
	t.Parallel()
	ss := NewSessions()
	ss.Begin(1, Key{Lang: "en", ID: "a"})
	ss.Begin(2, Key{Lang: "de", ID: "b"})

	if ss.Len() != 2 {
		t.Fatalf("Len = %d, want 2", ss.Len())
	}
	key, ok := ss.Take(1)
	if !ok || key.Lang != "en" {
		t.Fatalf("Take(1) = (%v, %v)", key, ok)
	}
	if ss.Active(1) {
		t.Fatal("session survived Take")
	}
	if !ss.Active(2) {
		t.Fatal("other admin's session was disturbed")
	}
}

func TestSessionsBeginReplaces(t *testing.T) {
	t.Parallel()
	ss := NewSessions()
	ss.Begin(1, Key{Lang: "en", ID: "old"})
	ss.Begin(1, Key{Lang: "en", ID: "new"})

	key, ok := ss.Take(1)
	if !ok || key.ID != "new" {
		t.Fatalf("Take = (%v, %v), want the replacement", key, ok)
	}
	if _, ok := ss.Take(1); ok {
		t.Fatal("second Take found a session")
	}
}
