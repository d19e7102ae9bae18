package analysis

// poller.go drives the analysis job state machine. One task exists per
// submitted dataset; submitting a new dataset cancels the previous task,
// mirroring the single dataset slot the rest of the application keeps.
// Each task submits the descriptor, then re-checks the job status on a
// ticker until the job settles, the poll window times out, or the task
// is cancelled.

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dataglance/dataglance/internal/dataset"
	"github.com/dataglance/dataglance/internal/event"
)

const (
	// DefaultPollInterval is how often job status is re-checked.
	DefaultPollInterval = 2 * time.Second

	// DefaultPollTimeout is the maximum total time to wait for one job.
	DefaultPollTimeout = 2 * time.Minute
)

// Poller submits datasets for analysis and tracks the resulting job.
type Poller struct {
	client   *Client
	bus      *event.Bus
	store    *dataset.Store
	interval time.Duration
	timeout  time.Duration

	mu      sync.RWMutex
	current *task
}

// task is one tracked analysis job.
type task struct {
	datasetID string
	cancel    context.CancelFunc
	done      chan struct{}

	mu    sync.Mutex
	state JobState
}

// NewPoller wires a poller. bus may be nil when nothing consumes lifecycle
// events; non-positive durations fall back to the defaults.
func NewPoller(client *Client, bus *event.Bus, store *dataset.Store, interval, timeout time.Duration) *Poller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	if timeout <= 0 {
		timeout = DefaultPollTimeout
	}
	return &Poller{
		client:   client,
		bus:      bus,
		store:    store,
		interval: interval,
		timeout:  timeout,
	}
}

// Run consumes dataset lifecycle events until ctx is done: every created
// dataset is submitted for analysis, and clearing the dataset cancels its
// job. Run owns the tasks it spawns and cancels the active one on exit.
func (p *Poller) Run(ctx context.Context) {
	events, unsubscribe, err := p.bus.Subscribe()
	if err != nil {
		slog.Error("analysis poller could not subscribe", "error", err)
		return
	}
	defer unsubscribe()
	defer p.cancelCurrent()

	slog.Info("analysis poller started",
		"poll_interval", p.interval,
		"poll_timeout", p.timeout)

	for {
		select {
		case <-ctx.Done():
			slog.Info("analysis poller stopped")
			return
		case evt, ok := <-events:
			if !ok {
				slog.Info("analysis poller stopped", "reason", "event bus closed")
				return
			}
			switch evt.Type {
			case event.TypeDatasetCreated:
				ds, ok := p.store.Get(evt.DatasetID)
				if !ok {
					// The slot was replaced again before this event drained.
					continue
				}
				p.Submit(ds)
			case event.TypeDatasetCleared:
				p.Cancel(evt.DatasetID)
			}
		}
	}
}

// Submit starts tracking an analysis job for the dataset, cancelling any
// previous task. The submission and polling run on their own goroutine;
// progress is observable through State and the event bus.
func (p *Poller) Submit(ds *dataset.Dataset) {
	taskCtx, cancel := context.WithCancel(context.Background())
	t := &task{
		datasetID: ds.ID,
		cancel:    cancel,
		done:      make(chan struct{}),
		state: JobState{
			DatasetID:   ds.ID,
			Status:      StatusPending,
			SubmittedAt: time.Now().UTC(),
			UpdatedAt:   time.Now().UTC(),
		},
	}

	p.mu.Lock()
	previous := p.current
	p.current = t
	p.mu.Unlock()

	if previous != nil {
		previous.cancel()
	}

	go p.runTask(taskCtx, t, ds)
}

// Cancel stops the task tracking datasetID, if it is the active one.
func (p *Poller) Cancel(datasetID string) {
	p.mu.RLock()
	t := p.current
	p.mu.RUnlock()

	if t != nil && t.datasetID == datasetID {
		t.cancel()
	}
}

// State returns the job state for datasetID. False when no job is tracked
// for it (never submitted, or replaced by a newer dataset).
func (p *Poller) State(datasetID string) (JobState, bool) {
	p.mu.RLock()
	t := p.current
	p.mu.RUnlock()

	if t == nil || t.datasetID != datasetID {
		return JobState{}, false
	}
	return t.snapshot(), true
}

func (p *Poller) cancelCurrent() {
	p.mu.RLock()
	t := p.current
	p.mu.RUnlock()

	if t != nil {
		t.cancel()
		<-t.done
	}
}

// runTask is the per-job state machine: submit, then poll until terminal.
func (p *Poller) runTask(ctx context.Context, t *task, ds *dataset.Dataset) {
	defer close(t.done)

	jobID, err := p.client.Submit(ctx, ds)
	if err != nil {
		if ctx.Err() != nil {
			t.fail("analysis cancelled")
			return
		}
		p.fail(t, fmt.Sprintf("analysis submission failed: %v", err))
		return
	}

	t.setAnalysisID(jobID)
	p.publish(event.Event{
		Type:      event.TypeAnalysisStarted,
		DatasetID: t.datasetID,
		Payload:   map[string]any{"analysis_id": jobID},
	})
	slog.Info("analysis submitted",
		"dataset_id", t.datasetID,
		"analysis_id", jobID)

	pollCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	// First check runs immediately; the ticker paces the rest.
	for {
		if done := p.checkOnce(pollCtx, t, jobID); done {
			return
		}

		select {
		case <-pollCtx.Done():
			if ctx.Err() != nil {
				t.fail("analysis cancelled")
				return
			}
			p.fail(t, fmt.Sprintf("analysis timed out after %s", p.timeout))
			return
		case <-ticker.C:
		}
	}
}

// checkOnce polls the job status once and advances the state machine.
// Returns true when the job reached a terminal state.
func (p *Poller) checkOnce(ctx context.Context, t *task, jobID string) bool {
	status, err := p.client.Status(ctx, jobID)
	if err != nil {
		if ctx.Err() != nil {
			return false // let the select on ctx decide the outcome
		}
		// Transient failures are retried until the poll window closes.
		slog.Warn("analysis status check failed",
			"dataset_id", t.datasetID,
			"analysis_id", jobID,
			"error", err)
		return false
	}

	switch status {
	case StatusProcessing:
		t.setStatus(StatusProcessing)
		return false

	case StatusCompleted:
		result, err := p.client.Result(ctx, jobID)
		if err != nil {
			p.fail(t, fmt.Sprintf("analysis completed but the result could not be fetched: %v", err))
			return true
		}
		t.complete(result)
		p.publish(event.Event{
			Type:      event.TypeAnalysisCompleted,
			DatasetID: t.datasetID,
			Payload: map[string]any{
				"analysis_id": jobID,
				"charts":      len(result.Charts),
				"insights":    len(result.Insights),
				"kpis":        len(result.KPIs),
			},
		})
		slog.Info("analysis completed",
			"dataset_id", t.datasetID,
			"analysis_id", jobID,
			"charts", len(result.Charts),
			"insights", len(result.Insights))
		return true

	case StatusFailed:
		reason := "analysis failed"
		if result, err := p.client.Result(ctx, jobID); err == nil && result.Error != "" {
			reason = fmt.Sprintf("analysis failed: %s", result.Error)
		}
		p.fail(t, reason)
		return true

	default: // pending
		return false
	}
}

// fail marks the task failed and announces it.
func (p *Poller) fail(t *task, reason string) {
	t.fail(reason)
	p.publish(event.Event{
		Type:      event.TypeAnalysisFailed,
		DatasetID: t.datasetID,
		Payload:   map[string]any{"reason": reason},
	})
	slog.Warn("analysis failed",
		"dataset_id", t.datasetID,
		"reason", reason)
}

func (p *Poller) publish(evt event.Event) {
	if p.bus == nil {
		return
	}
	if err := p.bus.Publish(evt); err != nil && !errors.Is(err, event.ErrBusClosed) {
		slog.Debug("event publish skipped", "type", evt.Type, "error", err)
	}
}

// ----------------------------------------------------------------------------
// task internals
// ----------------------------------------------------------------------------

func (t *task) setAnalysisID(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state.AnalysisID = id
	t.state.UpdatedAt = time.Now().UTC()
}

func (t *task) setStatus(s Status) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state.Status.Terminal() {
		return
	}
	t.state.Status = s
	t.state.UpdatedAt = time.Now().UTC()
}

func (t *task) complete(result *Result) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state.Status.Terminal() {
		return
	}
	t.state.Status = StatusCompleted
	t.state.Result = result
	t.state.UpdatedAt = time.Now().UTC()
}

func (t *task) fail(reason string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state.Status.Terminal() {
		return
	}
	t.state.Status = StatusFailed
	t.state.Error = reason
	t.state.UpdatedAt = time.Now().UTC()
}

func (t *task) snapshot() JobState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}
