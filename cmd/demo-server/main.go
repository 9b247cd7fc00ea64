// Command demo-server runs an in-memory gamification service with a scripted
// learner session driven through the coordinator. Notices stream on /ws.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"time"

	"finquest/api/httpapi"
	"finquest/coordinator"
	"finquest/core"
	"finquest/engine"
	"finquest/gamify"
	"finquest/leaderboard"
	"finquest/realtime"
)

func main() {
	// Use readable text logging for development/demo
	textHandler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})
	logger := slog.New(textHandler)
	slog.SetDefault(logger)

	hub := realtime.NewHub()
	board := leaderboard.NewSkipList()
	svc := gamify.New(
		gamify.WithRealtime(hub),
		gamify.WithLeaderboard(board),
		gamify.WithLogger(logger),
	)
	defer svc.Close()

	go runSession(context.Background(), svc, logger)

	mux := httpapi.NewMux(svc, hub, httpapi.Options{
		AllowCORSOrigin: "*",
		Leaderboard:     board,
		Logger:          logger,
	})

	slog.Info("starting demo server on :8080")

	srv := &http.Server{Addr: ":8080", Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	if err := srv.ListenAndServe(); err != nil {
		slog.Error("demo server crashed", "error", err)
		os.Exit(1)
	}
}

// runSession plays a short learner journey for user "demo".
func runSession(ctx context.Context, svc *engine.GamifyService, logger *slog.Logger) {
	c := coordinator.New(engine.Bind(svc, "demo"), logNotifier(logger),
		coordinator.WithIdentity("demo"), coordinator.WithLogger(logger))
	defer c.Close()
	c.Attach()
	if err := c.Start(ctx); err != nil {
		logger.Warn("demo session load failed", "error", err)
	}

	coordinator.RaiseLogin()
	steps := []core.Event{
		core.ModuleCompleted{ModuleID: "budgeting-101", FirstTime: true},
		core.QuizCompleted{Score: 92, CompletedAt: time.Now()},
		core.PositionAdded{PositionID: "vwce"},
		core.PositionAdded{PositionID: "agg"},
		core.PositionAdded{PositionID: "gold"},
		core.PositionUpdated{PositionID: "vwce"},
	}
	for _, ev := range steps {
		if _, err := c.Trigger(ctx, ev); err != nil {
			logger.Error("demo event rejected", "event_type", ev.Type(), "error", err)
		}
	}
	c.Wait()
	logger.Info("demo session finished",
		"total_xp", c.TotalXP(),
		"level", c.Level(),
		"streak", c.CurrentStreak(),
		"badges", len(c.Badges()))
}

func logNotifier(logger *slog.Logger) coordinator.Notifier {
	return coordinator.NotifierFuncs{
		XPToast: func(amount int64, et core.EventType) {
			logger.Info("toast", "xp", amount, "event_type", et)
		},
		StreakToast: func(n int64) {
			logger.Info("toast", "streak", n)
		},
		LevelUpToast: func(level int64) {
			logger.Info("toast", "level_up", level)
		},
		BadgeModal: func(bs []core.Badge) {
			for _, b := range bs {
				logger.Info("badge unlocked", "code", b.Code, "name", b.Name)
			}
		},
	}
}
