package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"

	"github.com/google/subcommands"
)

type stateCmd struct{}

func (*stateCmd) Name() string             { return "state" }
func (*stateCmd) Synopsis() string         { return "show level, XP, streak and badges" }
func (*stateCmd) Usage() string            { return "finquest state\n" }
func (*stateCmd) SetFlags(_ *flag.FlagSet) {}

func (*stateCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	client, err := newClient()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	ctx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()
	st, err := client.GetState(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	newTerminalNotifier(os.Stdout, newRenderer(*plain)).print(stateMarkdown(st))
	return subcommands.ExitSuccess
}

type badgesCmd struct{}

func (*badgesCmd) Name() string             { return "badges" }
func (*badgesCmd) Synopsis() string         { return "list the badge catalog with earned marks" }
func (*badgesCmd) Usage() string            { return "finquest badges\n" }
func (*badgesCmd) SetFlags(_ *flag.FlagSet) {}

func (*badgesCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	client, err := newClient()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	ctx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()
	badges, err := client.Badges(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	newTerminalNotifier(os.Stdout, newRenderer(*plain)).print(catalogMarkdown(badges))
	return subcommands.ExitSuccess
}

type leaderboardCmd struct {
	n int
}

func (*leaderboardCmd) Name() string     { return "leaderboard" }
func (*leaderboardCmd) Synopsis() string { return "show the top users by XP" }
func (*leaderboardCmd) Usage() string    { return "finquest leaderboard [-n <count>]\n" }

func (l *leaderboardCmd) SetFlags(f *flag.FlagSet) {
	f.IntVar(&l.n, "n", 10, "Number of users to show (1-100)")
}

func (l *leaderboardCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	client, err := newClient()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	ctx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()
	entries, err := client.Leaderboard(ctx, l.n)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	newTerminalNotifier(os.Stdout, newRenderer(*plain)).print(leaderboardMarkdown(entries))
	return subcommands.ExitSuccess
}

type watchCmd struct{}

func (*watchCmd) Name() string             { return "watch" }
func (*watchCmd) Synopsis() string         { return "stream your notices until interrupted" }
func (*watchCmd) Usage() string            { return "finquest watch\n" }
func (*watchCmd) SetFlags(_ *flag.FlagSet) {}

func (*watchCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	client, err := newClient()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()
	notices, err := client.SubscribeNotices(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	for n := range notices {
		fmt.Println(noticeLine(n))
	}
	return subcommands.ExitSuccess
}
