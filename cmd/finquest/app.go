package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/google/subcommands"

	"finquest/coordinator"
	"finquest/core"
	sdk "finquest/sdk/go"
)

// Register the subcommands.
func Register(c *subcommands.Commander) {
	c.Register(&loginCmd{}, "events")
	c.Register(&moduleCmd{}, "events")
	c.Register(&quizCmd{}, "events")
	c.Register(&positionCmd{name: "position-added"}, "events")
	c.Register(&positionCmd{name: "position-updated", updated: true}, "events")

	c.Register(&stateCmd{}, "progress")
	c.Register(&badgesCmd{}, "progress")
	c.Register(&leaderboardCmd{}, "progress")
	c.Register(&watchCmd{}, "progress")
}

// as a CLI application, it has a very short lived lifecycle, so it is ok to use global variables.

var (
	serverURL = flag.String("server", envOr("FINQUEST_SERVER_URL", "http://localhost:8080/api"), "Base URL of the finquest API")
	userID    = flag.String("user", os.Getenv("FINQUEST_USER"), "User id sent as X-User-ID")
	token     = flag.String("token", os.Getenv("FINQUEST_TOKEN"), "Bearer token identifying the user")
	apiKey    = flag.String("api-key", os.Getenv("FINQUEST_API_KEY"), "API key sent as X-API-Key")
	plain     = flag.Bool("plain", false, "Print markdown without terminal styling")
	timeout   = flag.Duration("timeout", 10*time.Second, "Request timeout")
	verbose   = flag.Bool("v", false, "Log request failures")
)

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func newClient() (*sdk.Client, error) {
	var opts []sdk.Option
	if *userID != "" {
		opts = append(opts, sdk.WithUser(*userID))
	}
	if *token != "" {
		opts = append(opts, sdk.WithAuthToken(*token))
	}
	if *apiKey != "" {
		opts = append(opts, sdk.WithAPIKey(*apiKey))
	}
	return sdk.NewClient(*serverURL, opts...)
}

func logger() *slog.Logger {
	level := slog.LevelError
	if *verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// identity names the caller for the coordinator. With only a token the server
// resolves the user, so a placeholder is enough to enable sending.
func identity() core.UserID {
	if *userID != "" {
		return core.UserID(*userID)
	}
	if *token != "" {
		return "me"
	}
	return ""
}

// trigger sends one event through a coordinator and prints its notifications.
func trigger(ctx context.Context, out io.Writer, fire func(context.Context, *coordinator.Coordinator) (*core.Outcome, error)) subcommands.ExitStatus {
	client, err := newClient()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	c := coordinator.New(client, newTerminalNotifier(out, newRenderer(*plain)),
		coordinator.WithIdentity(identity()),
		coordinator.WithLogger(logger()),
		coordinator.WithTimeout(*timeout))
	defer c.Close()

	outcome, err := fire(ctx, c)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid event: %v\n", err)
		return subcommands.ExitUsageError
	}
	c.Wait()
	if outcome == nil {
		fmt.Fprintln(os.Stderr, "Event not recorded; the server did not answer (use -v for details, -user or -token to identify)")
		return subcommands.ExitFailure
	}
	fmt.Fprintf(out, "Total %d XP, level %d, %d XP to next level, streak %d\n",
		outcome.TotalXP, outcome.Level, outcome.XPToNextLevel, outcome.CurrentStreak)
	return subcommands.ExitSuccess
}
