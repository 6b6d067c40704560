// Command crewctl runs allocations offline and manages report jobs.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/crewstay/crewstay/cmd/crewctl/cli"
	"github.com/crewstay/crewstay/internal/app"
	"github.com/crewstay/crewstay/internal/platform/cache"
	"github.com/crewstay/crewstay/internal/reports"
	"github.com/crewstay/crewstay/jobs"
)

const usage = `usage: crewctl <command> [flags]

commands:
  allocate    allocate a JSON file of bookings and print the rows
  generate    queue generation of a saved report (--id)
  sweep       queue the retention sweep (--retention)
  queue       print default queue statistics
  cache-bump  invalidate cached allocations
`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		_, _ = fmt.Fprint(stderr, usage)
		return cli.ExitFailure
	}
	cmd, rest := args[0], args[1:]
	fs := flag.NewFlagSet(cmd, flag.ContinueOnError)
	fs.SetOutput(stderr)

	switch cmd {
	case "allocate":
		opts := cli.AllocateOptions{Stdout: stdout, Stderr: stderr}
		fs.StringVar(&opts.Input, "input", "", `JSON input file, "-" for stdin`)
		fs.StringVar(&opts.Output, "output", "table", "table, json or csv")
		fs.StringVar(&opts.Timezone, "tz", "Europe/Moscow", "timezone of naive dates")
		fs.StringVar(&opts.Locale, "locale", "ru", "locale used for sorting and money")
		if err := fs.Parse(rest); err != nil {
			return cli.ExitFailure
		}
		return cli.AllocateCommand(ctx, opts)
	case "generate", "sweep":
		var trigger cli.TriggerOptions
		fs.StringVar(&trigger.ReportID, "id", "", "saved report id")
		fs.DurationVar(&trigger.Retention, "retention", 0, "override the configured retention")
		if err := fs.Parse(rest); err != nil {
			return cli.ExitFailure
		}
		task := jobs.TaskReportGenerate
		if cmd == "sweep" {
			task = jobs.TaskReportSweep
		}
		return withJobs(stderr, func(c *cli.JobsCLI) error {
			info, err := c.Trigger(ctx, task, trigger)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(stdout, "queued %s as %s\n", info.Type, info.ID)
			return nil
		})
	case "queue":
		if err := fs.Parse(rest); err != nil {
			return cli.ExitFailure
		}
		return withJobs(stderr, func(c *cli.JobsCLI) error {
			stats, err := c.InspectQueue(ctx)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(stdout, "%s: pending=%d active=%d scheduled=%d retry=%d archived=%d\n",
				stats.Queue, stats.Pending, stats.Active, stats.Scheduled, stats.Retry, stats.Archived)
			return nil
		})
	case "cache-bump":
		if err := fs.Parse(rest); err != nil {
			return cli.ExitFailure
		}
		cfg, err := app.LoadConfig()
		if err != nil {
			_, _ = fmt.Fprintf(stderr, "cache-bump: %v\n", err)
			return cli.ExitFailure
		}
		client, err := cache.New(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			_, _ = fmt.Fprintf(stderr, "cache-bump: %v\n", err)
			return cli.ExitFailure
		}
		defer func() { _ = client.Close() }()
		if err := reports.NewCache(client, time.Minute).Bump(ctx); err != nil {
			_, _ = fmt.Fprintf(stderr, "cache-bump: %v\n", err)
			return cli.ExitFailure
		}
		_, _ = fmt.Fprintln(stdout, "allocation cache invalidated")
		return cli.ExitOK
	default:
		_, _ = fmt.Fprintf(stderr, "unknown command %q\n\n%s", cmd, usage)
		return cli.ExitFailure
	}
}

func withJobs(stderr io.Writer, fn func(*cli.JobsCLI) error) int {
	cfg, err := app.LoadConfig()
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "jobs: %v\n", err)
		return cli.ExitFailure
	}
	c := cli.NewJobsCLI(asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
	defer func() { _ = c.Close() }()
	if err := fn(c); err != nil {
		_, _ = fmt.Fprintf(stderr, "jobs: %v\n", err)
		return cli.ExitFailure
	}
	return cli.ExitOK
}
