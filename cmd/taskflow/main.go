// Package main provides the taskflow command: the automation engine, its HTTP
// API and offline workflow tooling.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/dukex/taskflow/pkg/actions"
	"github.com/dukex/taskflow/pkg/services"
	"github.com/urfave/cli/v3"
)

func NewApp() *cli.Command {
	return &cli.Command{
		Name:                  "taskflow",
		Usage:                 "Automate task boards with trigger, condition and action workflows",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "database-url",
				Usage:   "Persistence URL (file://, memory://, postgres://, redis://)",
				Value:   "file://./data",
				Sources: cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:    "boards-file",
				Usage:   "JSON file with the boards and users to automate",
				Sources: cli.EnvVars("BOARDS_FILE"),
			},
			&cli.IntFlag{
				Name:    "history-limit",
				Usage:   "Number of executions kept in history",
				Value:   services.DefaultHistoryLimit,
				Sources: cli.EnvVars("HISTORY_LIMIT"),
			},
			&cli.DurationFlag{
				Name:    "action-timeout",
				Usage:   "Upper bound for a single action",
				Value:   actions.DefaultTimeout,
				Sources: cli.EnvVars("ACTION_TIMEOUT"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Commands: []*cli.Command{
			RunCommand(),
			ValidateCommand(),
			ImportCommand(),
			TemplatesCommand(),
			StatsCommand(),
		},
	}
}

func main() {
	if err := NewApp().Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
