package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/google/subcommands"

	"finquest/coordinator"
	"finquest/core"
)

type loginCmd struct{}

func (*loginCmd) Name() string             { return "login" }
func (*loginCmd) Synopsis() string         { return "record a daily check-in" }
func (*loginCmd) Usage() string            { return "finquest login\n" }
func (*loginCmd) SetFlags(_ *flag.FlagSet) {}

func (*loginCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	return trigger(ctx, os.Stdout, func(ctx context.Context, c *coordinator.Coordinator) (*core.Outcome, error) {
		return c.TriggerLogin(ctx)
	})
}

type moduleCmd struct {
	id    string
	first bool
}

func (*moduleCmd) Name() string     { return "module" }
func (*moduleCmd) Synopsis() string { return "record a completed learning module" }
func (*moduleCmd) Usage() string {
	return `finquest module -id <module_id> [-first]

  Reports that a learning module was completed. -first pays the first time
  completion bonus.
`
}

func (m *moduleCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&m.id, "id", "", "Module identifier")
	f.BoolVar(&m.first, "first", false, "First completion of this module")
}

func (m *moduleCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	return trigger(ctx, os.Stdout, func(ctx context.Context, c *coordinator.Coordinator) (*core.Outcome, error) {
		return c.TriggerModuleCompleted(ctx, m.id, m.first)
	})
}

type quizCmd struct {
	score float64
	at    string
}

func (*quizCmd) Name() string     { return "quiz" }
func (*quizCmd) Synopsis() string { return "record a completed quiz" }
func (*quizCmd) Usage() string {
	return `finquest quiz -score <0-100> [-at <RFC3339 time>]
`
}

func (q *quizCmd) SetFlags(f *flag.FlagSet) {
	f.Float64Var(&q.score, "score", -1, "Quiz score between 0 and 100")
	f.StringVar(&q.at, "at", "", "Completion time (RFC3339), defaults to now")
}

func (q *quizCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	at := time.Now()
	if q.at != "" {
		parsed, err := time.Parse(time.RFC3339, q.at)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error parsing -at: %v\n", err)
			return subcommands.ExitUsageError
		}
		at = parsed
	}
	return trigger(ctx, os.Stdout, func(ctx context.Context, c *coordinator.Coordinator) (*core.Outcome, error) {
		return c.TriggerQuizCompleted(ctx, q.score, at)
	})
}

// positionCmd serves both position-added and position-updated.
type positionCmd struct {
	name    string
	updated bool
	id      string
}

func (p *positionCmd) Name() string { return p.name }
func (p *positionCmd) Synopsis() string {
	if p.updated {
		return "record an updated portfolio position"
	}
	return "record a new portfolio position"
}
func (p *positionCmd) Usage() string { return fmt.Sprintf("finquest %s -id <position_id>\n", p.name) }

func (p *positionCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&p.id, "id", "", "Portfolio position identifier")
}

func (p *positionCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	return trigger(ctx, os.Stdout, func(ctx context.Context, c *coordinator.Coordinator) (*core.Outcome, error) {
		if p.updated {
			return c.TriggerPortfolioPositionUpdated(ctx, p.id)
		}
		return c.TriggerPortfolioPositionAdded(ctx, p.id)
	})
}
