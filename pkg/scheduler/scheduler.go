// Package scheduler drives schedule-triggered workflows and the due date sweep.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/dukex/taskflow/pkg/models"
	"github.com/dukex/taskflow/pkg/protocol"
	"github.com/robfig/cron/v3"
)

// DefaultSweepSpec runs the due date sweep every fifteen minutes.
const DefaultSweepSpec = "*/15 * * * *"

// ActorID is recorded on events emitted by the due date sweep.
const ActorID = "scheduler"

// Runner is the part of the orchestrator the scheduler drives.
type Runner interface {
	RunScheduled(ctx context.Context, workflowID string) (*models.WorkflowExecution, error)
	Emit(ctx context.Context, event models.TriggerEvent) []*models.WorkflowExecution
}

// WorkflowLister lists the stored workflows.
type WorkflowLister interface {
	List(ctx context.Context) []*models.Workflow
}

type scheduledJob struct {
	spec    string
	entryID cron.EntryID
}

// Scheduler owns a cron instance holding one job per active schedule workflow
// plus the due date sweep.
type Scheduler struct {
	workflows WorkflowLister
	runner    Runner
	boards    protocol.BoardRepository
	logger    *slog.Logger
	sweepSpec string
	now       func() time.Time

	cron *cron.Cron

	mutex      sync.Mutex
	jobs       map[string]scheduledJob // workflow id -> cron entry
	sweepEntry cron.EntryID
	reported   map[string]time.Time // kind/board/task[/window] -> reported due date
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithSweepSpec overrides DefaultSweepSpec.
func WithSweepSpec(spec string) Option {
	return func(s *Scheduler) {
		if spec != "" {
			s.sweepSpec = spec
		}
	}
}

// WithClock overrides the clock used by the sweep.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) {
		s.now = now
	}
}

// New creates a scheduler. Nothing runs until Start.
func New(workflows WorkflowLister, runner Runner, boards protocol.BoardRepository, logger *slog.Logger, opts ...Option) *Scheduler {
	s := &Scheduler{
		workflows: workflows,
		runner:    runner,
		boards:    boards,
		logger:    logger.With("module", "scheduler"),
		sweepSpec: DefaultSweepSpec,
		now:       func() time.Time { return time.Now().UTC() },
		jobs:      make(map[string]scheduledJob),
		reported:  make(map[string]time.Time),
	}

	for _, opt := range opts {
		opt(s)
	}

	s.cron = cron.New(cron.WithLocation(time.UTC), cron.WithChain(
		cron.SkipIfStillRunning(cron.DiscardLogger),
		cron.Recover(cron.DiscardLogger),
	))

	return s
}

// Start registers the sweep and the schedule workflows and starts ticking.
func (s *Scheduler) Start(ctx context.Context) error {
	s.logger.InfoContext(ctx, "Starting scheduler", "sweep", s.sweepSpec)

	jobCtx := context.WithoutCancel(ctx)

	entryID, err := s.cron.AddFunc(s.sweepSpec, func() {
		s.Sweep(jobCtx)
	})
	if err != nil {
		return fmt.Errorf("invalid due sweep spec %q: %w", s.sweepSpec, err)
	}

	s.mutex.Lock()
	s.sweepEntry = entryID
	s.mutex.Unlock()

	if err := s.Sync(ctx); err != nil {
		s.logger.WarnContext(ctx, "Some schedule workflows could not be registered", "error", err)
	}

	s.cron.Start()

	return nil
}

// Stop stops ticking and waits for running jobs until ctx is done.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()

	select {
	case <-done.Done():
		s.logger.InfoContext(ctx, "Scheduler stopped")

		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Sync reconciles the cron jobs with the active schedule workflows. Invalid
// schedules are skipped and reported in the returned error.
func (s *Scheduler) Sync(ctx context.Context) error {
	jobCtx := context.WithoutCancel(ctx)
	wanted := make(map[string]string)

	var errs []error

	for _, workflow := range s.workflows.List(ctx) {
		if !workflow.IsActive || workflow.Trigger.Type != models.TriggerSchedule {
			continue
		}

		cfg, _ := workflow.Trigger.Config.(models.ScheduleConfig)

		spec, err := cfg.CronSpec()
		if err != nil {
			errs = append(errs, fmt.Errorf("workflow %s: %w", workflow.ID, err))

			continue
		}

		wanted[workflow.ID] = spec
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	for workflowID, job := range s.jobs {
		if spec, ok := wanted[workflowID]; ok && spec == job.spec {
			delete(wanted, workflowID)

			continue
		}

		s.cron.Remove(job.entryID)
		delete(s.jobs, workflowID)
		s.logger.DebugContext(ctx, "Removed schedule job", "workflow_id", workflowID)
	}

	for workflowID, spec := range wanted {
		entryID, err := s.cron.AddFunc(spec, func() {
			s.runScheduled(jobCtx, workflowID)
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("workflow %s: %w", workflowID, err))

			continue
		}

		s.jobs[workflowID] = scheduledJob{spec: spec, entryID: entryID}
		s.logger.InfoContext(ctx, "Added schedule job", "workflow_id", workflowID, "cron", spec, "entry_id", entryID)
	}

	return errors.Join(errs...)
}

// Jobs returns the registered cron spec per workflow id.
func (s *Scheduler) Jobs() map[string]string {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	out := make(map[string]string, len(s.jobs))
	for workflowID, job := range s.jobs {
		out[workflowID] = job.spec
	}

	return out
}

func (s *Scheduler) runScheduled(ctx context.Context, workflowID string) {
	execution, err := s.runner.RunScheduled(ctx, workflowID)
	if err != nil {
		s.logger.WarnContext(ctx, "Scheduled run skipped", "workflow_id", workflowID, "error", err)

		return
	}

	s.logger.DebugContext(ctx, "Scheduled run finished", "workflow_id", workflowID, "status", execution.Status)
}

// Sweep emits task_overdue for tasks past due and due_date_approaching for
// tasks inside the window of an active due_date_approaching workflow. An
// approaching task gets one event per distinct window it has entered, so each
// workflow sees the task once its own window opens. Each task is reported
// once per kind, window and due date; tasks in done columns are skipped. It
// returns the number of events emitted.
func (s *Scheduler) Sweep(ctx context.Context) int {
	boards, err := s.boards.Boards(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "Due sweep failed to list boards", "error", err)

		return 0
	}

	now := s.now()
	windows := s.dueWindows(ctx)
	seen := make(map[string]struct{})
	emitted := 0

	report := func(board *models.Board, task models.Task, kind models.TriggerType, windowHours int) {
		key := string(kind) + "/" + board.ID + "/" + task.ID
		if windowHours > 0 {
			key += "/" + strconv.Itoa(windowHours)
		}

		seen[key] = struct{}{}

		if s.alreadyReported(key, *task.DueDate) {
			return
		}

		s.runner.Emit(ctx, models.TriggerEvent{
			Type:        kind,
			BoardID:     board.ID,
			Task:        &task,
			ActorID:     ActorID,
			OccurredAt:  now,
			WindowHours: windowHours,
		})
		emitted++
	}

	for _, board := range boards {
		for _, column := range board.Columns {
			if column.IsDone() {
				continue
			}

			for i := range column.Tasks {
				task := column.Tasks[i]
				if task.DueDate == nil {
					continue
				}

				until := task.DueDate.Sub(now)
				if until < 0 {
					report(board, task, models.TriggerTaskOverdue, 0)

					continue
				}

				for _, hours := range windows {
					if until <= time.Duration(hours)*time.Hour {
						report(board, task, models.TriggerDueDateApproaching, hours)
					}
				}
			}
		}
	}

	s.forgetUnseen(seen)

	if emitted > 0 {
		s.logger.InfoContext(ctx, "Due sweep emitted events", "count", emitted)
	}

	return emitted
}

func (s *Scheduler) alreadyReported(key string, due time.Time) bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if previous, ok := s.reported[key]; ok && previous.Equal(due) {
		return true
	}

	s.reported[key] = due

	return false
}

func (s *Scheduler) forgetUnseen(seen map[string]struct{}) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	for key := range s.reported {
		if _, ok := seen[key]; !ok {
			delete(s.reported, key)
		}
	}
}

// dueWindows returns the distinct windows, in hours and ascending, of the
// active due_date_approaching workflows. Without any it falls back to the
// default window.
func (s *Scheduler) dueWindows(ctx context.Context) []int {
	var hours []int

	for _, workflow := range s.workflows.List(ctx) {
		if !workflow.IsActive || workflow.Trigger.Type != models.TriggerDueDateApproaching {
			continue
		}

		cfg, _ := workflow.Trigger.Config.(models.DueDateConfig)
		if !slices.Contains(hours, cfg.Window()) {
			hours = append(hours, cfg.Window())
		}
	}

	if len(hours) == 0 {
		return []int{models.DefaultDueWithinHours}
	}

	slices.Sort(hours)

	return hours
}
