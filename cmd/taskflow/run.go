package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/dukex/taskflow/pkg/cmd"
	"github.com/dukex/taskflow/pkg/events"
	"github.com/dukex/taskflow/pkg/log"
	"github.com/dukex/taskflow/pkg/otelhelper"
	"github.com/dukex/taskflow/pkg/scheduler"
	"github.com/dukex/taskflow/pkg/web"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/urfave/cli/v3"
	"go.opentelemetry.io/otel/trace"
)

const (
	defaultPort     = 9091
	shutdownTimeout = 10 * time.Second
)

func RunCommand() *cli.Command {
	return &cli.Command{
		Name:    "run",
		Aliases: []string{"r"},
		Usage:   "Start the engine, scheduler and HTTP API",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port to run the API server on",
				Value:   defaultPort,
				Sources: cli.EnvVars("PORT"),
			},
			&cli.StringFlag{
				Name:    "event-bus",
				Usage:   "Event bus type (gochannel, kafka)",
				Value:   "gochannel",
				Sources: cli.EnvVars("EVENT_BUS_TYPE"),
			},
			&cli.StringFlag{
				Name:    "kafka-brokers",
				Usage:   "Comma separated Kafka brokers",
				Value:   "localhost:9092",
				Sources: cli.EnvVars("KAFKA_BROKERS"),
			},
			&cli.StringFlag{
				Name:    "due-sweep",
				Usage:   "Cron spec of the due date sweep",
				Value:   scheduler.DefaultSweepSpec,
				Sources: cli.EnvVars("DUE_SWEEP"),
			},
			&cli.BoolFlag{
				Name:    "otel-enabled",
				Usage:   "Export traces over OTLP/HTTP",
				Sources: cli.EnvVars("OTEL_ENABLED"),
			},
			&cli.BoolFlag{
				Name:  "access-log",
				Usage: "Log every HTTP request",
				Value: true,
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
			defer stop()

			base := log.Setup(command.String("log-level"))
			logger := log.WithModule("taskflow")

			logger.InfoContext(ctx, "Initializing Taskflow")

			var tracer trace.Tracer

			if command.Bool("otel-enabled") {
				t, shutdown, err := otelhelper.NewTracer(ctx, "taskflow")
				if err != nil {
					return fmt.Errorf("failed to initialize tracer: %w", err)
				}

				defer func() {
					if err := shutdown(context.WithoutCancel(ctx)); err != nil {
						logger.ErrorContext(ctx, "Failed to shutdown tracer provider", "error", err)
					}
				}()

				tracer = t
			}

			eventBus, err := cmd.NewEventBus(command.String("event-bus"), command.String("kafka-brokers"), base)
			if err != nil {
				return err
			}

			defer func() {
				if err := eventBus.Close(); err != nil {
					logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
				}
			}()

			engine, err := newEngine(ctx, base, engineConfig{
				DatabaseURL:   command.String("database-url"),
				BoardsFile:    command.String("boards-file"),
				HistoryLimit:  command.Int("history-limit"),
				ActionTimeout: command.Duration("action-timeout"),
				Publisher:     eventBus,
				Tracer:        tracer,
			})
			if err != nil {
				return err
			}

			defer engine.close(context.WithoutCancel(ctx))

			if err := eventBus.Handle(events.TaskEventType, engine.handleTaskEvent); err != nil {
				return fmt.Errorf("failed to register task event handler: %w", err)
			}

			if err := eventBus.Subscribe(ctx); err != nil {
				return fmt.Errorf("failed to subscribe to event bus: %w", err)
			}

			sched := scheduler.New(engine.workflows, engine.executor, engine.boards, base,
				scheduler.WithSweepSpec(command.String("due-sweep")))
			if err := sched.Start(ctx); err != nil {
				return err
			}

			defer func() {
				stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
				defer cancel()

				if err := sched.Stop(stopCtx); err != nil {
					logger.ErrorContext(ctx, "Scheduler did not stop in time", "error", err)
				}
			}()

			handlers := web.NewAPIHandlers(web.Services{
				Workflows:       engine.workflows,
				History:         engine.history,
				Catalog:         engine.catalog,
				CustomFields:    engine.customFields,
				AutomationRules: engine.automationRules,
				Executor:        engine.executor,
				Boards:          engine.boards,
				Persistence:     engine.persistence,
				Publisher:       eventBus,
				Schedules:       sched,
			}, validator.New(validator.WithRequiredStructEnabled()))

			app := web.NewApp(handlers, web.AppConfig{
				Gatherer:  engine.metrics.Gatherer,
				AccessLog: command.Bool("access-log"),
			})

			return serve(ctx, app, command.Int("port"))
		},
	}
}

// serve listens until ctx is cancelled, then drains in-flight requests.
func serve(ctx context.Context, app *fiber.App, port int) error {
	errCh := make(chan error, 1)

	go func() {
		errCh <- app.Listen(":"+strconv.Itoa(port), fiber.ListenConfig{DisableStartupMessage: true})
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	return nil
}
