// Package cli implements the operational subcommands of the microfin binary.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
)

// Options configures command output.
type Options struct {
	Stdout io.Writer
	Stderr io.Writer
	// Getenv resolves defaults; os.Getenv when nil.
	Getenv func(string) string
}

func (o Options) withDefaults() Options {
	if o.Stdout == nil {
		o.Stdout = os.Stdout
	}
	if o.Stderr == nil {
		o.Stderr = os.Stderr
	}
	if o.Getenv == nil {
		o.Getenv = os.Getenv
	}
	return o
}

const usage = `usage:
  microfin [serve]
  microfin tables validate [--classification path] [--savings path] [--json]
  microfin jobs trigger <ledger:integrity|reports:cache_invalidate> [--lookback days]
  microfin jobs stats
`

// Run dispatches args to a subcommand and returns the process exit code.
func Run(ctx context.Context, args []string, opts Options) int {
	opts = opts.withDefaults()
	if len(args) < 2 {
		_, _ = fmt.Fprint(opts.Stderr, usage)
		return 2
	}
	switch args[0] + " " + args[1] {
	case "tables validate":
		return TablesValidateCommand(args[2:], opts)
	case "jobs trigger", "jobs stats":
		redisAddr := opts.Getenv("REDIS_ADDR")
		if redisAddr == "" {
			redisAddr = "127.0.0.1:6379"
		}
		jobsCLI, err := NewJobsCLI(redisAddr)
		if err != nil {
			_, _ = fmt.Fprintf(opts.Stderr, "jobs: %v\n", err)
			return 1
		}
		defer func() { _ = jobsCLI.Close() }()
		if args[1] == "stats" {
			return jobsCLI.StatsCommand(ctx, opts)
		}
		return jobsCLI.TriggerCommand(ctx, args[2:], opts)
	default:
		_, _ = fmt.Fprint(opts.Stderr, usage)
		return 2
	}
}
