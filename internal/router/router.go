// Package router consumes transport updates and dispatches them to the
// relay pipeline: channel posts to the aggregator or planner, admin
// messages to the command handlers or an open edit session, callback
// presses to the moderation state machine.
package router

import (
	"context"
	"strings"

	"relaybot/internal/relay"
	"relaybot/internal/transport"
	logx "relaybot/pkg/logx"
	"relaybot/pkg/tgui"
)

const callbackScope = "mod"

// Spawn runs fn on a supervised goroutine. The router never blocks the
// dispatch loop on translation or network I/O; every unit of work that
// can stall goes through Spawn.
type Spawn func(name string, fn func(ctx context.Context))

type Router struct {
	sourceChannel int64
	adminChat     transport.ChatTarget
	routeCount    int

	ad       transport.Adapter
	agg      *relay.Aggregator
	planner  *relay.Planner
	mod      *relay.Moderator
	toggle   *relay.Toggle
	store    *relay.Store
	sessions *relay.Sessions
	spawn    Spawn
	log      logx.Logger
}

type Deps struct {
	SourceChannel int64
	AdminChat     transport.ChatTarget
	RouteCount    int
	Adapter       transport.Adapter
	Aggregator    *relay.Aggregator
	Planner       *relay.Planner
	Moderator     *relay.Moderator
	Toggle        *relay.Toggle
	Store         *relay.Store
	Sessions      *relay.Sessions
	Spawn         Spawn
	Log           logx.Logger
}

func New(d Deps) *Router {
	return &Router{
		sourceChannel: d.SourceChannel,
		adminChat:     d.AdminChat,
		routeCount:    d.RouteCount,
		ad:            d.Adapter,
		agg:           d.Aggregator,
		planner:       d.Planner,
		mod:           d.Moderator,
		toggle:        d.Toggle,
		store:         d.Store,
		sessions:      d.Sessions,
		spawn:         d.Spawn,
		log:           d.Log,
	}
}

// DispatchLoop drains updates until the channel closes or ctx ends.
// Dispatch itself is fast and sequential; work that translates or
// talks to the platform is spawned off the loop.
func (r *Router) DispatchLoop(ctx context.Context, updates <-chan transport.Update) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case u, ok := <-updates:
			if !ok {
				return nil
			}
			r.dispatch(ctx, u)
		}
	}
}

func (r *Router) dispatch(ctx context.Context, u transport.Update) {
	switch u.Kind {
	case transport.UpdateChannelPost:
		if u.Message != nil {
			r.onChannelPost(u.Message)
		}
	case transport.UpdateMessage:
		if u.Message != nil {
			r.onMessage(ctx, u.Message)
		}
	case transport.UpdateCallback:
		if u.Callback != nil {
			r.onCallback(ctx, u.Callback)
		}
	}
}

// onChannelPost filters source-channel posts and routes them into the
// pipeline. Posts from any other channel are ignored; forwarded posts
// are dropped here for standalone messages and by the planner for
// albums built from them.
func (r *Router) onChannelPost(m *transport.Message) {
	if m.ChatID != r.sourceChannel {
		r.log.Debug("channel post from unconfigured channel ignored",
			logx.Int64("chat_id", m.ChatID))
		return
	}
	if m.Forwarded {
		r.log.Debug("forwarded post dropped", logx.Int("message_id", m.ID))
		return
	}
	if m.AlbumID != "" {
		r.agg.OnFragment(m)
		return
	}
	post := relay.PostFromMessage(m)
	r.spawn("plan-post", func(ctx context.Context) {
		r.planner.Plan(ctx, post)
	})
}

// onMessage handles admin-chat traffic: commands, or free text feeding
// the sender's open edit session.
func (r *Router) onMessage(ctx context.Context, m *transport.Message) {
	if m.ChatID != r.adminChat.ChatID {
		return
	}
	text := strings.TrimSpace(m.Text)
	if text == "" {
		return
	}
	if strings.HasPrefix(text, "/") {
		r.onCommand(ctx, m, text)
		return
	}
	if r.sessions.Active(m.FromID) {
		actor, body := m.FromID, text
		r.spawn("submit-edit", func(ctx context.Context) {
			r.mod.SubmitEdit(ctx, actor, body)
		})
	}
}

// onCallback handles moderation button presses. The press is answered
// exactly once, before any slow work, so the client spinner always
// clears even when the decision loses a race.
func (r *Router) onCallback(ctx context.Context, cb *transport.Callback) {
	if err := r.ad.AnswerCallback(ctx, cb.ID, ""); err != nil {
		r.log.Warn("callback answer failed", logx.Err(err))
	}
	if cb.ChatID != r.adminChat.ChatID {
		r.log.Warn("callback from outside the admin chat ignored",
			logx.Int64("chat_id", cb.ChatID),
			logx.Int64("from", cb.FromID))
		return
	}

	scope, action, payload := tgui.Split(cb.Data)
	if scope != callbackScope {
		r.log.Debug("unknown callback scope", logx.String("data", cb.Data))
		return
	}
	parts := strings.SplitN(payload, ":", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		r.log.Warn("malformed callback payload", logx.String("data", cb.Data))
		return
	}
	key := relay.Key{Lang: parts[0], ID: parts[1]}
	actor := cb.FromID

	switch action {
	case "approve":
		r.spawn("approve", func(ctx context.Context) {
			r.mod.Approve(ctx, key, actor)
		})
	case "reject":
		r.spawn("reject", func(ctx context.Context) {
			r.mod.Reject(ctx, key, actor)
		})
	case "edit":
		r.spawn("begin-edit", func(ctx context.Context) {
			r.mod.BeginEdit(ctx, key, actor)
		})
	default:
		r.log.Warn("unknown moderation action", logx.String("action", action))
	}
}
