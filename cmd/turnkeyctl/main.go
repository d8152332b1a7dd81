package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/hibiken/asynq"

	"github.com/turnkey/turnkey/cmd/turnkeyctl/cli"
	"github.com/turnkey/turnkey/internal/app"
	"github.com/turnkey/turnkey/internal/unitturn"
	"github.com/turnkey/turnkey/jobs"
)

var version = "dev"

const usage = `usage: turnkeyctl [flags] <command>

commands:
  cost-codes                 print the cost code registry
  migrate up|down|redo|status|version
  export <instance-id>       queue an XLSX export of a saved unit turn
  queue                      show export queue counters
  retries                    list exports waiting to be retried
`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	if stdout == nil {
		stdout = io.Discard
	}
	if stderr == nil {
		stderr = io.Discard
	}

	fs := flag.NewFlagSet("turnkeyctl", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() { _, _ = fmt.Fprint(stderr, usage) }
	var (
		showVer bool
		actor   string
	)
	fs.BoolVar(&showVer, "version", false, "show version")
	fs.StringVar(&actor, "actor", os.Getenv("USER"), "name recorded as export requester")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if showVer {
		_, _ = fmt.Fprintf(stdout, "turnkeyctl %s\n", version)
		return nil
	}

	rest := fs.Args()
	command := ""
	if len(rest) > 0 {
		command = rest[0]
		rest = rest[1:]
	}

	switch command {
	case "cost-codes":
		return printCostCodes(stdout)
	case "migrate", "export", "queue", "retries":
	case "":
		fs.Usage()
		return errors.New("command required")
	default:
		return fmt.Errorf("unknown command: %s", command)
	}

	cfg, err := app.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if command == "migrate" {
		sub := "up"
		if len(rest) > 0 {
			sub = rest[0]
		}
		m, err := cli.OpenMigrator(cfg.PGDSN)
		if err != nil {
			return err
		}
		defer func() { _ = m.Close() }()
		return m.Run(ctx, sub)
	}

	jobsCLI := cli.NewJobsCLI(asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
	defer func() { _ = jobsCLI.Close() }()

	switch command {
	case "export":
		if len(rest) == 0 || strings.TrimSpace(rest[0]) == "" {
			return errors.New("export: instance id required")
		}
		info, err := jobsCLI.TriggerExport(ctx, jobs.UnitTurnExportPayload{
			InstanceID:  rest[0],
			RequestedBy: actor,
			RequestedAt: time.Now().UTC(),
		})
		if errors.Is(err, cli.ErrAlreadyQueued) {
			_, _ = fmt.Fprintf(stdout, "export for %s already queued\n", rest[0])
			return nil
		}
		if err != nil {
			return err
		}
		_, _ = fmt.Fprintf(stdout, "queued %s on %s\n", info.ID, info.Queue)
	case "queue":
		stats, err := jobsCLI.InspectQueue(ctx)
		if err != nil {
			return err
		}
		_, _ = fmt.Fprintf(stdout, "queue=%s pending=%d active=%d scheduled=%d retry=%d archived=%d\n",
			stats.Queue, stats.Pending, stats.Active, stats.Scheduled, stats.Retry, stats.Archived)
	case "retries":
		tasks, err := jobsCLI.ListRetries(ctx, 20)
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
		_, _ = fmt.Fprintln(tw, "ID\tRETRIED\tNEXT\tLAST ERROR")
		for _, task := range tasks {
			_, _ = fmt.Fprintf(tw, "%s\t%d/%d\t%s\t%s\n", task.ID, task.Retried, task.MaxRetry, task.NextProcessAt.Format(time.RFC3339), task.LastErr)
		}
		return tw.Flush()
	}
	return nil
}

func printCostCodes(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "CODE\tGL ACCOUNT\tCLASS\tDESCRIPTION")
	for _, code := range unitturn.CostCodes() {
		_, _ = fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", code.Code, code.GLAccount, code.Classification, code.Description)
	}
	return tw.Flush()
}
