package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"blogpilot/alarm"
	"blogpilot/approval"
	"blogpilot/config"
	"blogpilot/cycle"
	"blogpilot/pipeline"
	"blogpilot/schedule"
	"blogpilot/storage"
	"blogpilot/topics"
)

func main() {
	// Set up structured logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	slog.Info("starting blogpilot")

	// Load configuration
	configPath := config.GetConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		slog.Error("failed to load config", "path", configPath, "error", err)
		os.Exit(1)
	}
	slog.Info("config loaded", "path", configPath, "writers", len(cfg.Writers), "slots", cfg.TotalSlots())

	// Initialize database
	db, err := storage.NewDB(cfg.DBPath,
		storage.WithTTL(time.Duration(cfg.DedupTTLDays)*24*time.Hour),
	)
	if err != nil {
		slog.Error("failed to initialize database", "path", cfg.DBPath, "error", err)
		os.Exit(1)
	}
	defer db.Close()

	// Clean out records past their TTL before the first selection.
	if err := db.PurgeExpired(context.Background()); err != nil {
		slog.Warn("failed to purge expired dedup records", "error", err)
	}
	records, err := db.CountRecords(context.Background())
	if err != nil {
		slog.Warn("failed to count dedup records", "error", err)
	}
	slog.Info("database initialized", "path", cfg.DBPath, "dedup_records", records)

	// Initialize Telegram bot
	tgBot, err := tgbotapi.NewBotAPI(cfg.TelegramToken)
	if err != nil {
		slog.Error("failed to initialize Telegram bot", "error", err)
		os.Exit(1)
	}
	slog.Info("telegram bot initialized", "username", tgBot.Self.UserName)

	channel := approval.NewChannel(tgBot, cfg.TelegramChatID)

	// Initialize daily alarm
	dailyAlarm, err := alarm.New(cfg.Timezone)
	if err != nil {
		slog.Error("failed to initialize alarm", "timezone", cfg.Timezone, "error", err)
		os.Exit(1)
	}

	// Topic sources and selection engine
	fetchTimeout := time.Duration(cfg.FetchTimeoutSecs) * time.Second
	sources := []topics.Source{
		topics.NewSeasonalSource(cfg.Calendar, func() time.Time {
			return time.Now().In(dailyAlarm.Location())
		}),
		topics.NewNewsSource(cfg.NewsFeedURL, fetchTimeout),
		topics.NewTrendSource(cfg.TrendsFeedURL, fetchTimeout),
		topics.NewEvergreenSource(cfg.Evergreen, db),
	}
	selector := topics.NewSelector(sources, db)

	// Content pipeline and orchestrator
	pipe := pipeline.New(cfg)
	orch := cycle.New(cycle.Params{
		Writers: cfg.Writers,
		Window: schedule.Params{
			WindowStartMin: cfg.PublishWindowStartHour * 60,
			WindowEndMin:   cfg.PublishWindowEndHour * 60,
			MinGlobalGap:   cfg.MinGlobalGapMinutes,
			MinWriterGap:   cfg.MinWriterGapMinutes,
		},
		ApprovalTimeout: time.Duration(cfg.ApprovalTimeoutMinutes) * time.Minute,
		AssetTimeout:    time.Duration(cfg.AssetTimeoutMinutes) * time.Minute,
		PostCooldown:    time.Duration(cfg.PostCooldownSeconds) * time.Second,
		Location:        dailyAlarm.Location(),
	}, selector, channel, pipe, db)

	// Set up context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		slog.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	// Discard messages queued before startup
	if err := channel.Flush(ctx); err != nil {
		slog.Warn("failed to flush pending updates", "error", err)
	}

	if err := dailyAlarm.Schedule(cfg.CycleTime, func() {
		orch.RunScheduled(context.Background())
	}); err != nil {
		slog.Error("failed to schedule daily cycle", "error", err)
		os.Exit(1)
	}
	dailyAlarm.Start()
	defer dailyAlarm.Stop()
	slog.Info("daily cycle scheduled", "time", cfg.CycleTime, "timezone", cfg.Timezone)

	channel.SendReport(ctx, "🟢 blogpilot started.")

	// Single consumer of operator input: control commands are handled
	// here, everything else goes to the active cycle's wait.
	channel.Listen(ctx, func(ev approval.Event) {
		dispatch(ctx, ev, orch, channel, dailyAlarm)
	})

	slog.Info("blogpilot stopped")
}

// dispatch routes one operator event. Control commands are serviced
// immediately without disturbing an active cycle; other input feeds the
// cycle's current wait.
func dispatch(ctx context.Context, ev approval.Event, orch *cycle.Orchestrator, channel *approval.Channel, dailyAlarm *alarm.Alarm) {
	if ev.Asset == nil {
		switch approval.ParseControl(ev.Text) {
		case approval.ControlStatus:
			status := orch.StatusText()
			if mins := dailyAlarm.MinutesUntilNext(time.Now()); mins > 0 {
				status += fmt.Sprintf("\nNext cycle in %dh%02dm.", mins/60, mins%60)
			}
			channel.SendReport(ctx, status)
			return
		case approval.ControlPause:
			orch.Pause()
			channel.SendReport(ctx, "⏸ Paused. Daily cycles are skipped until resume.")
			return
		case approval.ControlResume:
			orch.Resume()
			channel.SendReport(ctx, "▶️ Resumed. Daily cycles are back on.")
			return
		case approval.ControlStart:
			if orch.Active() {
				channel.SendReport(ctx, "A cycle is already running.")
				return
			}
			go func() {
				if err := orch.Run(ctx); err != nil {
					slog.Error("manual cycle failed", "error", err)
				}
			}()
			return
		}
	}

	if orch.Active() {
		orch.Submit(ev)
	}
}
