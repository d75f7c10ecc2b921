package render

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type manualScheduler struct {
	mu      sync.Mutex
	delays  []time.Duration
	pending []func()
}

func (s *manualScheduler) AfterFunc(d time.Duration, f func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delays = append(s.delays, d)
	s.pending = append(s.pending, f)
}

func (s *manualScheduler) fire() {
	s.mu.Lock()
	pending := s.pending
	s.pending = nil
	s.mu.Unlock()
	for _, f := range pending {
		f()
	}
}

type recordingControls struct {
	mu        sync.Mutex
	events    []string
	selectErr error
	clickErr  error
}

func (c *recordingControls) SelectOption(_ context.Context, name, value string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.selectErr != nil {
		return c.selectErr
	}
	c.events = append(c.events, "select "+name+"="+value)
	return nil
}

func (c *recordingControls) Click(_ context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.clickErr != nil {
		return c.clickErr
	}
	c.events = append(c.events, "click "+id)
	return nil
}

func (c *recordingControls) snapshot() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.events...)
}

func TestWorkflowSelectsThenClicksAfterDelay(t *testing.T) {
	t.Parallel()
	sched := &manualScheduler{}
	controls := &recordingControls{}
	wf := NewWorkflow(DefaultWorkflowConfig(), controls, sched, nil)

	if wf.State() != AwaitingSelection {
		t.Fatalf("initial state = %v", wf.State())
	}
	if err := wf.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if got := controls.snapshot(); len(got) != 1 || got[0] != "select action=export_excel" {
		t.Fatalf("events before delay = %v", got)
	}
	if wf.State() != AwaitingSelectAll {
		t.Fatalf("state before delay = %v", wf.State())
	}
	if len(sched.delays) != 1 || sched.delays[0] != 200*time.Millisecond {
		t.Fatalf("scheduled delays = %v", sched.delays)
	}
	select {
	case <-wf.Done():
		t.Fatalf("done before the delay elapsed")
	default:
	}

	sched.fire()

	got := controls.snapshot()
	if len(got) != 2 || got[1] != "click action-toggle" {
		t.Fatalf("events after delay = %v", got)
	}
	if wf.State() != Done {
		t.Fatalf("state after delay = %v", wf.State())
	}
	if err := wf.Wait(context.Background()); err != nil {
		t.Fatalf("Wait: %v", err)
	}
}

func TestWorkflowMissingSelect(t *testing.T) {
	t.Parallel()
	sched := &manualScheduler{}
	controls := &recordingControls{selectErr: ErrControlNotFound}
	wf := NewWorkflow(DefaultWorkflowConfig(), controls, sched, nil)

	if err := wf.Start(context.Background()); !errors.Is(err, ErrControlNotFound) {
		t.Fatalf("expected ErrControlNotFound, got %v", err)
	}
	if len(sched.delays) != 0 {
		t.Fatalf("select-all scheduled after a failed selection")
	}
	if wf.State() != AwaitingSelection {
		t.Fatalf("state = %v", wf.State())
	}
}

func TestWorkflowClickFailureIsRecorded(t *testing.T) {
	t.Parallel()
	sched := &manualScheduler{}
	controls := &recordingControls{clickErr: ErrControlNotFound}
	wf := NewWorkflow(DefaultWorkflowConfig(), controls, sched, nil)
	if err := wf.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	sched.fire()
	if wf.State() != Done {
		t.Fatalf("state = %v", wf.State())
	}
	if !errors.Is(wf.Err(), ErrControlNotFound) {
		t.Fatalf("Err = %v", wf.Err())
	}
	if err := wf.Wait(context.Background()); !errors.Is(err, ErrControlNotFound) {
		t.Fatalf("Wait = %v", err)
	}
}

func TestWorkflowStartsOnce(t *testing.T) {
	t.Parallel()
	wf := NewWorkflow(DefaultWorkflowConfig(), &recordingControls{}, &manualScheduler{}, nil)
	if err := wf.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := wf.Start(context.Background()); !errors.Is(err, ErrWorkflowStarted) {
		t.Fatalf("second Start = %v", err)
	}
}

func TestWorkflowWaitHonoursContext(t *testing.T) {
	t.Parallel()
	wf := NewWorkflow(DefaultWorkflowConfig(), &recordingControls{}, &manualScheduler{}, nil)
	if err := wf.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := wf.Wait(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("Wait = %v", err)
	}
}

func TestWorkflowTimerScheduler(t *testing.T) {
	t.Parallel()
	cfg := DefaultWorkflowConfig()
	cfg.Delay = 5 * time.Millisecond
	controls := &recordingControls{}
	wf := NewWorkflow(cfg, controls, nil, nil)
	if err := wf.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := wf.Wait(ctx); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if got := controls.snapshot(); len(got) != 2 {
		t.Fatalf("events = %v", got)
	}
}
