// Package storage persists the delivery log: one entry per terminal
// moderation outcome. It is an audit trail, not pipeline state — the
// review store itself stays in memory and is lost on restart.
package storage

import (
	"context"
	"errors"
	"time"
)

var ErrDisabled = errors.New("storage disabled")

// Config configures the delivery log.
//
// Driver values:
//   - "file": JSONL append log
//   - "sqlite": SQLite database file
//
// If Driver is empty or "none", storage is disabled.
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// Outcome classifies how a delivery concluded.
type Outcome = string

const (
	OutcomeAuto     = "auto"     // moderation off, sent directly
	OutcomeApproved = "approved" // admin approved as translated
	OutcomeRejected = "rejected" // admin rejected, nothing sent
	OutcomeEdited   = "edited"   // admin replaced the text, then sent
)

// Delivery records one terminal outcome for one (post, language) pair.
// Keep it compact and schema-stable.
type Delivery struct {
	At          time.Time `json:"at"`
	Lang        string    `json:"lang"`
	PostID      string    `json:"post_id"`
	Destination int64     `json:"destination"`
	Outcome     Outcome   `json:"outcome"`
	ActorID     int64     `json:"actor_id,omitempty"`
	Items       int       `json:"items"`
	Error       string    `json:"error,omitempty"`
}

type Store interface {
	Record(ctx context.Context, d Delivery) error
	Recent(ctx context.Context, limit int) ([]Delivery, error)
	Close() error
}
