package router

import (
	"context"
	"fmt"
	"strings"

	"relaybot/internal/transport"
	logx "relaybot/pkg/logx"
)

const helpText = `Commands:
/toggle_moderation — switch moderation on or off
/pending — list posts waiting for review
/cancel — abandon your open edit
/status — pipeline state
/help — this message`

func (r *Router) onCommand(ctx context.Context, m *transport.Message, text string) {
	cmd := text
	if i := strings.IndexByte(cmd, ' '); i >= 0 {
		cmd = cmd[:i]
	}
	// Commands in groups may arrive as /cmd@botname.
	if i := strings.IndexByte(cmd, '@'); i >= 0 {
		cmd = cmd[:i]
	}

	switch cmd {
	case "/toggle_moderation":
		enabled := r.toggle.Flip()
		state := "disabled"
		if enabled {
			state = "enabled"
		}
		r.log.Info("moderation toggled",
			logx.Bool("enabled", enabled),
			logx.Int64("actor", m.FromID))
		r.reply(ctx, fmt.Sprintf("Moderation is now %s.", state))

	case "/pending":
		keys := r.store.Keys()
		if len(keys) == 0 {
			r.reply(ctx, "Nothing is waiting for review.")
			return
		}
		var b strings.Builder
		fmt.Fprintf(&b, "Waiting for review (%d):\n", len(keys))
		for _, k := range keys {
			fmt.Fprintf(&b, "• %s — post %s\n", strings.ToUpper(k.Lang), k.ID)
		}
		r.reply(ctx, strings.TrimRight(b.String(), "\n"))

	case "/cancel":
		actor := m.FromID
		r.spawn("cancel-edit", func(ctx context.Context) {
			r.mod.CancelEdit(ctx, actor)
		})

	case "/status":
		state := "off"
		if r.toggle.Enabled() {
			state = "on"
		}
		r.reply(ctx, fmt.Sprintf(
			"Moderation: %s\nRoutes: %d\nPending review: %d\nAlbums buffering: %d\nOpen edits: %d",
			state, r.routeCount, r.store.Len(), r.agg.PendingAlbums(), r.sessions.Len()))

	case "/help", "/start":
		r.reply(ctx, helpText)

	default:
		r.log.Debug("unknown command", logx.String("command", cmd))
	}
}

func (r *Router) reply(ctx context.Context, text string) {
	if _, err := r.ad.SendText(ctx, r.adminChat, text, nil); err != nil {
		r.log.Warn("command reply failed", logx.Err(err))
	}
}
