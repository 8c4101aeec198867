package relay

import "sync/atomic"

// Toggle is the process-wide moderation switch. The planner reads it at
// the moment each post is planned, so flipping it mid-flight only
// affects posts planned afterwards; review items already created keep
// moderation semantics.
type Toggle struct {
	enabled atomic.Bool
}

func NewToggle(enabled bool) *Toggle {
	t := &Toggle{}
	t.enabled.Store(enabled)
	return t
}

func (t *Toggle) Enabled() bool { return t.enabled.Load() }

// Flip inverts the switch and returns the new state.
func (t *Toggle) Flip() bool {
	for {
		old := t.enabled.Load()
		if t.enabled.CompareAndSwap(old, !old) {
			return !old
		}
	}
}
