// Package reminder posts a periodic digest of review items still
// waiting for a decision, so stalled moderation does not go unnoticed.
package reminder

import (
	"context"
	"fmt"
	"strings"

	"github.com/robfig/cron/v3"

	"relaybot/internal/relay"
	"relaybot/internal/transport"
	logx "relaybot/pkg/logx"
)

type Service struct {
	schedule  string
	store     *relay.Store
	ad        transport.Adapter
	adminChat transport.ChatTarget
	log       logx.Logger

	c       *cron.Cron
	baseCtx context.Context
}

func New(schedule string, store *relay.Store, ad transport.Adapter, adminChat transport.ChatTarget, log logx.Logger) *Service {
	return &Service{
		schedule:  schedule,
		store:     store,
		ad:        ad,
		adminChat: adminChat,
		log:       log,
	}
}

// Start validates the schedule and begins firing digests. The ctx
// bounds sends triggered by later cron invocations.
func (s *Service) Start(ctx context.Context) error {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	c := cron.New(cron.WithParser(parser))
	if _, err := c.AddFunc(s.schedule, s.fire); err != nil {
		return fmt.Errorf("reminder schedule %q: %w", s.schedule, err)
	}
	s.c = c
	s.baseCtx = ctx
	c.Start()
	s.log.Info("reminder started", logx.String("schedule", s.schedule))
	return nil
}

// Stop halts the schedule and waits for an in-flight digest to finish.
func (s *Service) Stop() {
	if s.c == nil {
		return
	}
	<-s.c.Stop().Done()
}

// fire sends one digest. An empty store means silence, not an empty
// message.
func (s *Service) fire() {
	keys := s.store.Keys()
	if len(keys) == 0 {
		return
	}

	var b strings.Builder
	fmt.Fprintf(&b, "⏰ %d post(s) still waiting for review:\n", len(keys))
	for _, k := range keys {
		fmt.Fprintf(&b, "• %s — post %s\n", strings.ToUpper(k.Lang), k.ID)
	}

	if _, err := s.ad.SendText(s.baseCtx, s.adminChat, strings.TrimRight(b.String(), "\n"), nil); err != nil {
		s.log.Warn("reminder digest failed", logx.Err(err))
	}
}
