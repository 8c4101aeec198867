// Package app wires the relay pipeline together and owns its
// lifecycle: transport, logging, translation, storage, the dispatch
// loop, and shutdown ordering.
package app

import (
	"context"
	"fmt"
	"time"

	"relaybot/internal/config"
	"relaybot/internal/relay"
	"relaybot/internal/reminder"
	"relaybot/internal/router"
	"relaybot/internal/runtime/supervisor"
	"relaybot/internal/storage"
	"relaybot/internal/translate"
	"relaybot/internal/transport"
	"relaybot/internal/transport/telegram"
	logx "relaybot/pkg/logx"
)

type App struct {
	cfgPath string
	cfg     *config.Config

	log  logx.Logger
	logs *logx.Service
	sup  *supervisor.Supervisor

	adapter    *telegram.Adapter
	deliveries storage.Store
	rt         *router.Router
	rem        *reminder.Service

	updates chan transport.Update
}

func New(cfgPath string) (*App, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}

	// The adapter exists before the logging service so the Telegram log
	// sink can send through it; it boots with a console-only logger.
	bootLog := logx.NewConsole(cfg.Logging.Level).With(logx.String("comp", "telegram"))

	pollTimeout, err := config.ParseDurationOrDefault("telegram.poll_timeout", cfg.Telegram.PollTimeout, 10*time.Second)
	if err != nil {
		return nil, err
	}
	ad, err := telegram.New(telegram.Config{
		Token:          cfg.Telegram.Token,
		PollTimeout:    pollTimeout,
		SendRatePerSec: cfg.Telegram.SendRatePerSec,
	}, bootLog)
	if err != nil {
		return nil, err
	}

	logs, log := logx.New(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
		Telegram: logx.TelegramConfig{
			Enabled:    cfg.Logging.Telegram.Enabled,
			ChatID:     cfg.Telegram.AdminChat,
			MinLevel:   cfg.Logging.Telegram.MinLevel,
			RatePerSec: cfg.Logging.Telegram.RatePerSec,
		},
	}, ad)
	log = log.With(logx.String("comp", "app"))

	tr, err := translate.New(cfg.Translate)
	if err != nil {
		return nil, err
	}

	var deliveries storage.Store
	if cfg.Storage != nil {
		busy, err := config.ParseDurationOrDefault("storage.busy_timeout", cfg.Storage.BusyTimeout, 0)
		if err != nil {
			return nil, err
		}
		deliveries, err = storage.Open(storage.Config{
			Driver:      cfg.Storage.Driver,
			Path:        cfg.Storage.Path,
			BusyTimeout: busy,
		}, log.With(logx.String("comp", "storage")))
		if err != nil {
			return nil, err
		}
	}

	a := &App{
		cfgPath: cfgPath,
		cfg:     cfg,
		log:     log,
		logs:    logs,
		adapter: ad,
		updates: make(chan transport.Update, 256),
	}
	a.deliveries = deliveries

	adminChat := transport.ChatTarget{ChatID: cfg.Telegram.AdminChat}
	store := relay.NewStore()
	toggle := relay.NewToggle(cfg.Moderation.Enabled)
	sessions := relay.NewSessions()

	planner := relay.NewPlanner(relay.PlannerDeps{
		Routes:     relay.RoutesFromMap(cfg.Routes),
		SourceLang: cfg.Translate.SourceLang,
		Translator: tr,
		Adapter:    ad,
		Store:      store,
		Toggle:     toggle,
		AdminChat:  adminChat,
		Deliveries: deliveries,
		Log:        log.With(logx.String("comp", "planner")),
	})

	debounce, err := config.ParseDurationOrDefault("moderation.album_debounce", cfg.Moderation.AlbumDebounce, time.Second)
	if err != nil {
		return nil, err
	}
	agg := relay.NewAggregator(debounce, func(post *relay.Post) {
		a.spawn("plan-album", func(ctx context.Context) {
			planner.Plan(ctx, post)
		})
	}, log.With(logx.String("comp", "aggregator")))

	mod := relay.NewModerator(store, sessions, ad, adminChat, deliveries,
		log.With(logx.String("comp", "moderation")))

	a.rt = router.New(router.Deps{
		SourceChannel: cfg.Telegram.SourceChannel,
		AdminChat:     adminChat,
		RouteCount:    len(cfg.Routes),
		Adapter:       ad,
		Aggregator:    agg,
		Planner:       planner,
		Moderator:     mod,
		Toggle:        toggle,
		Store:         store,
		Sessions:      sessions,
		Spawn:         a.spawn,
		Log:           log.With(logx.String("comp", "router")),
	})

	if cfg.Reminder != nil && cfg.Reminder.Enabled {
		a.rem = reminder.New(cfg.Reminder.Schedule, store, ad, adminChat,
			log.With(logx.String("comp", "reminder")))
	}

	return a, nil
}

// spawn runs fn on the app supervisor. Valid only between Start and
// Stop; the supervisor exists before the adapter produces any update.
func (a *App) spawn(name string, fn func(ctx context.Context)) {
	a.sup.Go0(name, fn)
}

// Done is closed when the run context ends (fatal error or Stop).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error observed by the supervisor, if any.
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

func (a *App) Start(ctx context.Context) error {
	a.sup = supervisor.New(ctx,
		supervisor.WithLogger(a.log),
		supervisor.WithCancelOnError(true))

	if err := a.adapter.Start(a.sup.Context(), a.updates); err != nil {
		return err
	}

	a.sup.Go("router.dispatch", func(c context.Context) error {
		return a.rt.DispatchLoop(c, a.updates)
	})

	// Config is read once at startup. The watcher only tells the admin
	// a restart is needed when the file changes underneath us.
	a.sup.GoRestart("config.watch", func(c context.Context) error {
		return config.Watch(c, a.cfgPath, a.log, func() {
			a.log.Warn("config file changed on disk; restart to apply")
		})
	})

	if a.rem != nil {
		if err := a.rem.Start(a.sup.Context()); err != nil {
			return err
		}
	}

	a.log.Info("app started",
		logx.Int64("source_channel", a.cfg.Telegram.SourceChannel),
		logx.Int("routes", len(a.cfg.Routes)),
		logx.Bool("moderation", a.cfg.Moderation.Enabled))
	return nil
}

// Stop unwinds in dependency order with a bound per step, so one
// stalled component cannot hang the whole shutdown.
func (a *App) Stop(ctx context.Context) error {
	if a.sup == nil {
		return nil
	}
	a.log.Info("stopping")

	a.sup.Cancel()

	step := func(name string, max time.Duration, fn func(context.Context) error) {
		stepCtx, cancel := context.WithTimeout(ctx, max)
		defer cancel()

		done := make(chan error, 1)
		go func() {
			defer func() {
				if r := recover(); r != nil {
					done <- fmt.Errorf("panic in stop step %s: %v", name, r)
				}
			}()
			done <- fn(stepCtx)
		}()

		select {
		case err := <-done:
			if err != nil {
				a.log.Warn("stop step failed", logx.String("name", name), logx.Err(err))
			}
		case <-stepCtx.Done():
			a.log.Warn("stop step timed out", logx.String("name", name))
		}
	}

	if a.rem != nil {
		step("reminder", 3*time.Second, func(context.Context) error {
			a.rem.Stop()
			return nil
		})
	}
	step("adapter", 5*time.Second, a.adapter.Stop)
	step("supervisor", 5*time.Second, a.sup.Wait)
	if a.deliveries != nil {
		step("storage", 3*time.Second, func(context.Context) error {
			return a.deliveries.Close()
		})
	}
	step("logging", 2*time.Second, func(context.Context) error {
		return a.logs.Close()
	})

	return a.sup.Err()
}
