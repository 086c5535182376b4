package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/dukex/taskflow/pkg/log"
	"github.com/dukex/taskflow/pkg/models"
	"github.com/dukex/taskflow/pkg/schema"
	"github.com/urfave/cli/v3"
)

var errNoFiles = errors.New("at least one workflow file is required")

func ValidateCommand() *cli.Command {
	return &cli.Command{
		Name:      "validate",
		Usage:     "Check workflow files against the workflow schema",
		ArgsUsage: "<file>...",
		Action: func(ctx context.Context, command *cli.Command) error {
			files := command.Args().Slice()
			if len(files) == 0 {
				return errNoFiles
			}

			out := command.Root().Writer

			var failed []error

			for _, path := range files {
				workflows, err := decodeFile(path)
				if err != nil {
					fmt.Fprintf(out, "%s: %v\n", path, err)
					failed = append(failed, err)

					continue
				}

				fmt.Fprintf(out, "%s: ok (%d workflows)\n", path, len(workflows))
			}

			return errors.Join(failed...)
		},
	}
}

func ImportCommand() *cli.Command {
	return &cli.Command{
		Name:      "import",
		Usage:     "Validate workflow files and store their workflows",
		ArgsUsage: "<file>...",
		Action: func(ctx context.Context, command *cli.Command) error {
			files := command.Args().Slice()
			if len(files) == 0 {
				return errNoFiles
			}

			var pending []*models.Workflow

			for _, path := range files {
				workflows, err := decodeFile(path)
				if err != nil {
					return fmt.Errorf("%s: %w", path, err)
				}

				pending = append(pending, workflows...)
			}

			engine, err := openEngine(ctx, command)
			if err != nil {
				return err
			}
			defer engine.close(ctx)

			out := command.Root().Writer

			for _, wf := range pending {
				created, err := engine.workflows.Create(ctx, wf)
				if err != nil {
					return fmt.Errorf("failed to import %q: %w", wf.Name, err)
				}

				fmt.Fprintf(out, "%s\t%s\n", created.ID, created.Name)
			}

			return nil
		},
	}
}

func TemplatesCommand() *cli.Command {
	return &cli.Command{
		Name:  "templates",
		Usage: "List the built-in workflow templates",
		Commands: []*cli.Command{
			{
				Name:      "instantiate",
				Usage:     "Create a workflow from a template",
				ArgsUsage: "<template-id>",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "created-by",
						Usage: "User recorded as the workflow author",
						Value: "cli",
					},
				},
				Action: func(ctx context.Context, command *cli.Command) error {
					templateID := command.Args().First()
					if templateID == "" {
						return errors.New("template id is required")
					}

					engine, err := openEngine(ctx, command)
					if err != nil {
						return err
					}
					defer engine.close(ctx)

					created, ok, err := engine.catalog.Instantiate(ctx, templateID, command.String("created-by"))
					if !ok {
						return fmt.Errorf("unknown template %q", templateID)
					}

					if err != nil {
						return err
					}

					return writeJSON(command.Root().Writer, created)
				},
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			engine, err := openEngine(ctx, command)
			if err != nil {
				return err
			}
			defer engine.close(ctx)

			out := command.Root().Writer
			for _, tmpl := range engine.catalog.ListTemplates() {
				fmt.Fprintf(out, "%s\t%s\t%s\n", tmpl.ID, tmpl.Category, tmpl.Name)
			}

			return nil
		},
	}
}

func StatsCommand() *cli.Command {
	return &cli.Command{
		Name:  "stats",
		Usage: "Print workflow and execution statistics",
		Action: func(ctx context.Context, command *cli.Command) error {
			engine, err := openEngine(ctx, command)
			if err != nil {
				return err
			}
			defer engine.close(ctx)

			return writeJSON(command.Root().Writer, engine.executor.Stats(ctx))
		},
	}
}

// openEngine builds an engine for one-shot commands: no bus, no tracing.
func openEngine(ctx context.Context, command *cli.Command) (*engine, error) {
	logger := log.SetupWriter(os.Stderr, command.String("log-level"), "text")

	return newEngine(ctx, logger, engineConfig{
		DatabaseURL:   command.String("database-url"),
		BoardsFile:    command.String("boards-file"),
		HistoryLimit:  command.Int("history-limit"),
		ActionTimeout: command.Duration("action-timeout"),
	})
}

func decodeFile(path string) ([]*models.Workflow, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	return schema.Decode(data)
}

func writeJSON(w io.Writer, value any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")

	return encoder.Encode(value)
}
