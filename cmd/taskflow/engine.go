package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukex/taskflow/pkg/actions"
	"github.com/dukex/taskflow/pkg/boards/memory"
	"github.com/dukex/taskflow/pkg/cmd"
	"github.com/dukex/taskflow/pkg/events"
	"github.com/dukex/taskflow/pkg/metrics"
	"github.com/dukex/taskflow/pkg/notifiers"
	"github.com/dukex/taskflow/pkg/persistence"
	"github.com/dukex/taskflow/pkg/protocol"
	"github.com/dukex/taskflow/pkg/services"
	"github.com/dukex/taskflow/pkg/workflow"
	"go.opentelemetry.io/otel/trace"
)

type engineConfig struct {
	DatabaseURL   string
	BoardsFile    string
	HistoryLimit  int
	ActionTimeout time.Duration
	Publisher     protocol.Publisher
	Tracer        trace.Tracer
}

// engine holds the stores and the orchestrator shared by every command.
type engine struct {
	logger          *slog.Logger
	persistence     persistence.Persistence
	workflows       *services.Workflow
	history         *services.History
	catalog         *services.Catalog
	customFields    *services.CustomFields
	automationRules *services.AutomationRules
	boards          *memory.Repository
	users           *memory.Directory
	metrics         *metrics.Registry
	executor        *workflow.Executor
}

func newEngine(ctx context.Context, logger *slog.Logger, cfg engineConfig) (*engine, error) {
	p, err := cmd.NewPersistence(ctx, cfg.DatabaseURL, logger)
	if err != nil {
		return nil, err
	}

	e := &engine{logger: logger, persistence: p, metrics: metrics.NewRegistry()}

	if err := e.loadStores(ctx, cfg.HistoryLimit); err != nil {
		_ = p.Close(ctx)

		return nil, err
	}

	e.boards, e.users, err = loadBoards(cfg.BoardsFile)
	if err != nil {
		_ = p.Close(ctx)

		return nil, err
	}

	delivery := []protocol.Notifier{notifiers.NewLog(logger)}
	if cfg.Publisher != nil {
		delivery = append(delivery, notifiers.NewBus(cfg.Publisher))
	}

	runner := actions.NewExecutor(e.boards, e.users, notifiers.NewFanOut(e.metrics, delivery...), logger,
		actions.WithTimeout(cfg.ActionTimeout))

	opts := []workflow.Option{workflow.WithMetrics(e.metrics)}
	if cfg.Publisher != nil {
		opts = append(opts, workflow.WithPublisher(cfg.Publisher))
	}

	if cfg.Tracer != nil {
		opts = append(opts, workflow.WithTracer(cfg.Tracer))
	}

	e.executor = workflow.NewExecutor(e.workflows, e.history, runner, e.boards, logger, opts...)

	return e, nil
}

func (e *engine) loadStores(ctx context.Context, historyLimit int) error {
	var err error

	if e.workflows, err = services.NewWorkflow(ctx, e.persistence, e.logger); err != nil {
		return fmt.Errorf("failed to load workflows: %w", err)
	}

	if e.history, err = services.NewHistory(ctx, e.persistence, e.logger, historyLimit); err != nil {
		return fmt.Errorf("failed to load execution history: %w", err)
	}

	if e.customFields, err = services.NewCustomFields(ctx, e.persistence, e.logger); err != nil {
		return fmt.Errorf("failed to load custom fields: %w", err)
	}

	if e.automationRules, err = services.NewAutomationRules(ctx, e.persistence, e.logger); err != nil {
		return fmt.Errorf("failed to load automation rules: %w", err)
	}

	e.catalog = services.NewCatalog(e.workflows)

	return nil
}

// handleTaskEvent runs the engine for a task event received from the bus.
func (e *engine) handleTaskEvent(ctx context.Context, event any) error {
	taskEvent, ok := event.(*events.TaskEvent)
	if !ok {
		return fmt.Errorf("unexpected event payload %T", event)
	}

	e.executor.Emit(ctx, taskEvent.Event)

	return nil
}

func (e *engine) close(ctx context.Context) {
	if err := e.persistence.Close(ctx); err != nil {
		e.logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
	}
}
