package events

import (
	"context"
	"fmt"
	"sync"
	"time"

	"mlforge/pkg/eventlog"
	"mlforge/pkg/logx"
	"mlforge/pkg/workflow"
)

// Runner executes one task run. *workflow.Driver satisfies it.
type Runner interface {
	Run(ctx context.Context, in workflow.RunInput) (*workflow.RunResult, error)
}

// Dispatcher fans run events out to a fixed pool of workers. The queue is
// buffered; Dispatch rejects events when it is full so the intake handler
// can signal backpressure instead of blocking.
type Dispatcher struct {
	runner   Runner
	queue    chan Event
	wg       sync.WaitGroup
	logger   *logx.Logger
	auditLog *eventlog.Writer
	workers  int

	mu      sync.Mutex // guards started, stopped, and sends on queue
	started bool
	stopped bool
}

// NewDispatcher creates a dispatcher with the given worker count. The queue
// holds twice the worker count.
func NewDispatcher(runner Runner, workers int) *Dispatcher {
	if workers < 1 {
		workers = 1
	}
	return &Dispatcher{
		runner:  runner,
		queue:   make(chan Event, workers*2),
		logger:  logx.NewLogger("events"),
		workers: workers,
	}
}

// SetAuditLog attaches an append-only run audit trail. Call before Start;
// the field is read without synchronization afterwards. Audit failures are
// logged and never block a run.
func (d *Dispatcher) SetAuditLog(w *eventlog.Writer) {
	d.auditLog = w
}

func (d *Dispatcher) audit(event, runID, projectID, detail string) {
	if d.auditLog == nil {
		return
	}
	if err := d.auditLog.Write(eventlog.Record{Event: event, RunID: runID, ProjectID: projectID, Detail: detail}); err != nil {
		d.logger.Warn("⚠️ audit log write failed: %v", err)
	}
}

// Start launches the worker pool. ctx cancellation stops in-flight runs.
func (d *Dispatcher) Start(ctx context.Context) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.started {
		return
	}
	d.started = true

	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go d.worker(ctx, i)
	}
	d.logger.Info("🔄 dispatcher started with %d workers", d.workers)
}

// Dispatch enqueues an event. Returns an error when the dispatcher is
// shutting down or the queue is full. The stopped check and the send happen
// under the same lock as Stop's close, so a concurrent Stop can never close
// the queue between them.
func (d *Dispatcher) Dispatch(evt Event) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return fmt.Errorf("dispatcher is shutting down")
	}

	select {
	case d.queue <- evt:
		d.audit("queued", evt.ID, evt.Data.ProjectID, "")
		return nil
	default:
		return fmt.Errorf("run queue is full")
	}
}

// Stop drains the queue and waits for workers, bounded by ctx.
func (d *Dispatcher) Stop(ctx context.Context) error {
	d.mu.Lock()
	if !d.started || d.stopped {
		d.mu.Unlock()
		return nil
	}
	d.stopped = true
	close(d.queue)
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		d.logger.Info("✅ dispatcher stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("dispatcher shutdown timed out: %w", ctx.Err())
	}
}

func (d *Dispatcher) worker(ctx context.Context, id int) {
	defer d.wg.Done()
	for evt := range d.queue {
		if ctx.Err() != nil {
			d.logger.Warn("⚠️ worker %d dropping event %s: %v", id, evt.ID, ctx.Err())
			continue
		}
		start := time.Now()
		// Run classifies and persists its own failures; nothing to do
		// here beyond logging.
		if _, err := d.runner.Run(ctx, evt.runInput()); err != nil {
			d.logger.Error("❌ worker %d: run %s: %v", id, evt.ID, err)
			d.audit("failed", evt.ID, evt.Data.ProjectID, err.Error())
			continue
		}
		d.audit("finished", evt.ID, evt.Data.ProjectID, "")
		d.logger.Debug("worker %d finished run %s in %s", id, evt.ID, time.Since(start).Round(time.Millisecond))
	}
}
