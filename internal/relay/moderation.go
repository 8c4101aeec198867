package relay

import (
	"context"
	"fmt"
	"strings"
	"time"

	"relaybot/internal/storage"
	"relaybot/internal/transport"
	logx "relaybot/pkg/logx"
)

// Moderator enacts the review state machine. Every decision starts with
// an atomic pop from the store: under two concurrent decisions on the
// same key, exactly one wins and the other sees "not found" — which is
// a normal outcome, never an error.
type Moderator struct {
	store      *Store
	sessions   *Sessions
	ad         transport.Adapter
	adminChat  transport.ChatTarget
	deliveries storage.Store // may be nil
	log        logx.Logger
}

func NewModerator(store *Store, sessions *Sessions, ad transport.Adapter, adminChat transport.ChatTarget, deliveries storage.Store, log logx.Logger) *Moderator {
	return &Moderator{
		store:      store,
		sessions:   sessions,
		ad:         ad,
		adminChat:  adminChat,
		deliveries: deliveries,
		log:        log,
	}
}

// Approve sends the item's translated content to its destination and
// acknowledges in the admin chat.
func (m *Moderator) Approve(ctx context.Context, key Key, actor int64) {
	it, ok := m.store.Pop(key)
	if !ok {
		m.notFound(ctx, key)
		return
	}
	it.State = StateApproved

	n, err := SendTranslated(ctx, m.ad, it.Destination, it.Translated)
	recordDelivery(ctx, m.deliveries, m.log, storage.Delivery{
		At:          time.Now(),
		Lang:        key.Lang,
		PostID:      key.ID,
		Destination: it.Destination.ChatID,
		Outcome:     storage.OutcomeApproved,
		ActorID:     actor,
		Items:       n,
		Error:       errString(err),
	})
	if err != nil {
		// The item already left the store (atomic pop), so a failed send
		// must be reported loudly for manual re-send.
		m.log.Error("destination send failed after approval",
			logx.String("key", key.String()), logx.Err(err))
		m.notifyAdmin(ctx, fmt.Sprintf(
			"⚠️ Send to channel (%s) failed: %v\nThe review item is gone; re-send manually.",
			strings.ToUpper(key.Lang), err))
		return
	}

	m.ack(ctx, it, fmt.Sprintf("Sent to channel (%s).", strings.ToUpper(key.Lang)))
	m.log.Info("review item approved", logx.String("key", key.String()), logx.Int64("actor", actor))
}

// Reject removes the item without sending anything.
func (m *Moderator) Reject(ctx context.Context, key Key, actor int64) {
	it, ok := m.store.Pop(key)
	if !ok {
		m.notFound(ctx, key)
		return
	}
	it.State = StateRejected

	recordDelivery(ctx, m.deliveries, m.log, storage.Delivery{
		At:          time.Now(),
		Lang:        key.Lang,
		PostID:      key.ID,
		Destination: it.Destination.ChatID,
		Outcome:     storage.OutcomeRejected,
		ActorID:     actor,
	})
	m.ack(ctx, it, fmt.Sprintf("Rejected for channel (%s).", strings.ToUpper(key.Lang)))
	m.log.Info("review item rejected", logx.String("key", key.String()), logx.Int64("actor", actor))
}

// BeginEdit opens an edit session bound to key. The item itself is not
// mutated until the replacement text arrives.
func (m *Moderator) BeginEdit(ctx context.Context, key Key, actor int64) {
	if !m.store.Has(key) {
		m.notFound(ctx, key)
		return
	}
	m.sessions.Begin(actor, key)
	m.notifyAdmin(ctx, fmt.Sprintf("Send the new text for channel (%s):", strings.ToUpper(key.Lang)))
}

// SubmitEdit consumes the sender's open edit session, replaces the
// item's text with the submitted one, and sends immediately. Returns
// false when the sender has no open session (the message is not ours
// to handle). The session is always closed, whatever the outcome.
func (m *Moderator) SubmitEdit(ctx context.Context, actor int64, text string) bool {
	key, ok := m.sessions.Take(actor)
	if !ok {
		return false
	}

	// The item may have been approved or rejected concurrently.
	it, okItem := m.store.Pop(key)
	if !okItem {
		m.notFound(ctx, key)
		return true
	}
	it.State = StateApproved

	// Construction-time policy: the first item carries the caption,
	// the rest stay empty.
	items := make([]transport.Media, len(it.Translated))
	copy(items, it.Translated)
	for i := range items {
		if i == 0 {
			items[i].Caption = text
		} else {
			items[i].Caption = ""
		}
	}

	n, err := SendTranslated(ctx, m.ad, it.Destination, items)
	recordDelivery(ctx, m.deliveries, m.log, storage.Delivery{
		At:          time.Now(),
		Lang:        key.Lang,
		PostID:      key.ID,
		Destination: it.Destination.ChatID,
		Outcome:     storage.OutcomeEdited,
		ActorID:     actor,
		Items:       n,
		Error:       errString(err),
	})
	if err != nil {
		m.log.Error("destination send failed after edit",
			logx.String("key", key.String()), logx.Err(err))
		m.notifyAdmin(ctx, fmt.Sprintf(
			"⚠️ Send to channel (%s) failed: %v\nThe review item is gone; re-send manually.",
			strings.ToUpper(key.Lang), err))
		return true
	}

	m.notifyAdmin(ctx, fmt.Sprintf("Edited and sent to channel (%s).", strings.ToUpper(key.Lang)))
	m.log.Info("review item edited and sent", logx.String("key", key.String()), logx.Int64("actor", actor))
	return true
}

// CancelEdit closes the sender's open session without touching the
// review item, which stays pending.
func (m *Moderator) CancelEdit(ctx context.Context, actor int64) {
	if key, ok := m.sessions.Take(actor); ok {
		m.notifyAdmin(ctx, fmt.Sprintf("Edit cancelled; (%s) is still pending review.", strings.ToUpper(key.Lang)))
		return
	}
	m.notifyAdmin(ctx, "No edit in progress.")
}

// ack rewrites the admin-facing rendering in place. The message shape
// recorded at render time picks the edit operation; the other variant
// is kept as a fallback against misclassification.
func (m *Moderator) ack(ctx context.Context, it *Item, text string) {
	var err error
	if it.AckHasCaption {
		err = m.ad.EditCaption(ctx, it.AckRef, text, nil)
		if err != nil {
			err = m.ad.EditText(ctx, it.AckRef, text, nil)
		}
	} else {
		err = m.ad.EditText(ctx, it.AckRef, text, nil)
		if err != nil {
			err = m.ad.EditCaption(ctx, it.AckRef, text, nil)
		}
	}
	if err != nil {
		m.log.Warn("decision acknowledgement edit failed",
			logx.String("key", it.Key.String()), logx.Err(err))
	}
}

func (m *Moderator) notFound(ctx context.Context, key Key) {
	m.log.Debug("review item not found", logx.String("key", key.String()))
	m.notifyAdmin(ctx, "Review item not found.")
}

func (m *Moderator) notifyAdmin(ctx context.Context, text string) {
	if _, err := m.ad.SendText(ctx, m.adminChat, text, nil); err != nil {
		m.log.Warn("admin notice failed", logx.Err(err))
	}
}
