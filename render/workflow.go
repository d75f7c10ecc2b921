package render

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

var (
	// ErrControlNotFound reports a host control missing from the page.
	ErrControlNotFound = errors.New("render: control not found")
	// ErrNoControls is returned when a workflow runs without a Controls binding.
	ErrNoControls = errors.New("render: no controls bound")
	// ErrWorkflowStarted is returned by a second Start on the same workflow.
	ErrWorkflowStarted = errors.New("render: workflow already started")
)

// Controls is the part of the host page a workflow can operate.
type Controls interface {
	// SelectOption sets the value of the select element with the given name.
	SelectOption(ctx context.Context, name, value string) error
	// Click activates the element with the given id once.
	Click(ctx context.Context, id string) error
}

// Scheduler runs f once after d. Scheduled calls cannot be withdrawn.
type Scheduler interface {
	AfterFunc(d time.Duration, f func())
}

// TimerScheduler schedules on the runtime timer.
type TimerScheduler struct{}

func (TimerScheduler) AfterFunc(d time.Duration, f func()) { time.AfterFunc(d, f) }

// WorkflowConfig names the host controls of the bulk export flow.
type WorkflowConfig struct {
	SelectName  string
	ExportValue string
	ToggleID    string
	// Delay between choosing the action and selecting all rows. It is a
	// heuristic: when the host needs longer the click lands on a page that is
	// not ready and nothing reports it.
	Delay time.Duration
}

// DefaultWorkflowConfig targets the Django admin action bar.
func DefaultWorkflowConfig() WorkflowConfig {
	return WorkflowConfig{
		SelectName:  "action",
		ExportValue: "export_excel",
		ToggleID:    "action-toggle",
		Delay:       200 * time.Millisecond,
	}
}

// WorkflowState is the position of a workflow in its two steps.
type WorkflowState int

const (
	AwaitingSelection WorkflowState = iota
	AwaitingSelectAll
	Done
)

func (s WorkflowState) String() string {
	switch s {
	case AwaitingSelection:
		return "awaiting_selection"
	case AwaitingSelectAll:
		return "awaiting_select_all"
	case Done:
		return "done"
	}
	return fmt.Sprintf("WorkflowState(%d)", int(s))
}

// Workflow chooses the export action, then selects every row after a delay.
type Workflow struct {
	cfg      WorkflowConfig
	controls Controls
	sched    Scheduler
	logger   *slog.Logger

	mu      sync.Mutex
	started bool
	state   WorkflowState
	err     error
	done    chan struct{}
}

// NewWorkflow binds cfg to controls. A nil scheduler uses the runtime timer.
func NewWorkflow(cfg WorkflowConfig, controls Controls, sched Scheduler, logger *slog.Logger) *Workflow {
	if sched == nil {
		sched = TimerScheduler{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Workflow{
		cfg:      cfg,
		controls: controls,
		sched:    sched,
		logger:   logger,
		done:     make(chan struct{}),
	}
}

// Start performs the selection and schedules the select-all step. A missing
// select control is returned as is; the workflow stays in AwaitingSelection.
func (w *Workflow) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.started {
		w.mu.Unlock()
		return ErrWorkflowStarted
	}
	w.started = true
	w.mu.Unlock()

	if w.controls == nil {
		return ErrNoControls
	}
	if err := w.controls.SelectOption(ctx, w.cfg.SelectName, w.cfg.ExportValue); err != nil {
		return fmt.Errorf("select %q option %q: %w", w.cfg.SelectName, w.cfg.ExportValue, err)
	}

	w.mu.Lock()
	w.state = AwaitingSelectAll
	w.mu.Unlock()
	w.logger.Debug("export action selected", "select", w.cfg.SelectName, "value", w.cfg.ExportValue, "delay", w.cfg.Delay)

	w.sched.AfterFunc(w.cfg.Delay, func() { w.selectAll(ctx) })
	return nil
}

func (w *Workflow) selectAll(ctx context.Context) {
	err := w.controls.Click(ctx, w.cfg.ToggleID)
	if err != nil {
		err = fmt.Errorf("click #%s: %w", w.cfg.ToggleID, err)
		w.logger.Warn("select all rows failed", "error", err)
	} else {
		w.logger.Debug("all rows selected", "toggle", w.cfg.ToggleID)
	}
	w.mu.Lock()
	w.state = Done
	w.err = err
	w.mu.Unlock()
	close(w.done)
}

// State reports the current step.
func (w *Workflow) State() WorkflowState {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// Err is the outcome of the select-all step once the workflow is Done.
func (w *Workflow) Err() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.err
}

// Done is closed after the select-all step ran.
func (w *Workflow) Done() <-chan struct{} { return w.done }

// Wait blocks until the workflow is Done or ctx ends.
func (w *Workflow) Wait(ctx context.Context) error {
	select {
	case <-w.done:
		return w.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}
