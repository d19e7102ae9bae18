package ingest

// service.go hosts pipeline runs as tracked background jobs. Start
// returns an ingest ID immediately; the run proceeds on its own
// goroutine under a concurrency limiter and a timeout. Callers observe
// the job through progress subscriptions (SSE), point-in-time snapshots,
// or by blocking on the final result. Finished jobs stay queryable for a
// retention window, then evaporate.

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dataglance/dataglance/internal/dataset"
	"github.com/dataglance/dataglance/internal/event"
)

var (
	// ErrIngestNotFound is returned for IDs that were never started or
	// whose retention window has passed.
	ErrIngestNotFound = errors.New("upload not found")

	// ErrIngestFinished is returned when cancelling a job that already
	// reached a terminal phase.
	ErrIngestFinished = errors.New("ingestion already finished")
)

const (
	// DefaultIngestTimeout bounds a single pipeline run.
	DefaultIngestTimeout = 5 * time.Minute

	// DefaultRetention is how long a finished job stays queryable.
	DefaultRetention = 5 * time.Minute

	// progressBuffer is the per-subscriber channel capacity. Slow
	// consumers miss intermediate updates, never the subscription close.
	progressBuffer = 16
)

// Service runs ingestions asynchronously.
type Service struct {
	pipeline  *Pipeline
	store     *dataset.Store
	bus       *event.Bus
	limiter   *Limiter
	timeout   time.Duration
	retention time.Duration

	mu      sync.RWMutex
	ingests map[string]*activeIngest
}

// NewService wires the ingestion host. pipeline and limiter may be nil
// for defaults; store must not be. bus may be nil when nothing consumes
// lifecycle events (tests).
func NewService(pipeline *Pipeline, store *dataset.Store, bus *event.Bus, limiter *Limiter, timeout, retention time.Duration) *Service {
	if pipeline == nil {
		pipeline = NewPipeline(nil, nil)
	}
	if limiter == nil {
		limiter = NewLimiter(0, 0)
	}
	if timeout <= 0 {
		timeout = DefaultIngestTimeout
	}
	if retention <= 0 {
		retention = DefaultRetention
	}

	return &Service{
		pipeline:  pipeline,
		store:     store,
		bus:       bus,
		limiter:   limiter,
		timeout:   timeout,
		retention: retention,
		ingests:   make(map[string]*activeIngest),
	}
}

// activeIngest tracks one running or recently finished job.
type activeIngest struct {
	id       string
	filename string
	started  time.Time
	cancel   context.CancelFunc
	done     chan struct{}

	mu           sync.Mutex
	progress     Progress
	result       *Result
	finished     bool
	nextListener int
	listeners    map[int]chan Progress
}

// Start rejects uploads failing the pre-parse checks synchronously, so a
// bad name or size never consumes a slot or appears in the queue. Past
// that gate it registers the job and hands the upload to the pipeline on
// a new goroutine; the returned ID can be used immediately for progress
// subscriptions. ctx only covers slot acquisition; the run itself is
// bounded by the service timeout. A closable Reader is closed by the job
// when the run finishes; on rejection it stays the caller's to close.
func (s *Service) Start(ctx context.Context, up Upload) (string, error) {
	if err := s.pipeline.Validate(up.Filename, up.Size); err != nil {
		return "", err
	}
	if err := s.limiter.Acquire(ctx); err != nil {
		return "", err
	}

	id := uuid.New().String()
	runCtx, cancel := context.WithTimeout(context.Background(), s.timeout)

	job := &activeIngest{
		id:        id,
		filename:  up.Filename,
		started:   time.Now(),
		cancel:    cancel,
		done:      make(chan struct{}),
		listeners: make(map[int]chan Progress),
		progress: Progress{
			IngestID:   id,
			Phase:      PhaseStarting,
			Filename:   up.Filename,
			BytesTotal: up.Size,
		},
	}

	s.mu.Lock()
	s.ingests[id] = job
	s.mu.Unlock()

	slog.Info("ingestion started",
		"ingest_id", id,
		"filename", up.Filename,
		"size", up.Size)

	go s.runIngest(runCtx, job, up)

	return id, nil
}

func (s *Service) runIngest(ctx context.Context, job *activeIngest, up Upload) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("ingestion panic",
				"ingest_id", job.id,
				"filename", job.filename,
				"panic", r)
			s.finish(job, nil, &UnexpectedError{Op: "ingestion", Err: fmt.Errorf("panic: %v", r)})
		}
	}()
	defer s.limiter.Release()
	defer job.cancel()
	defer closeReader(up.Reader)

	result, err := s.pipeline.Run(ctx, up, job.update)
	s.finish(job, result, err)
}

// closeReader releases the upload source once the run stops reading it.
// Ownership of a closable reader transfers to the job when Start accepts
// the upload.
func closeReader(r io.Reader) {
	if c, ok := r.(io.Closer); ok {
		c.Close()
	}
}

// finish records the terminal state, wakes every waiter, and announces
// the outcome on the bus. On success the dataset slot is replaced before
// the completion is visible anywhere, so a consumer reacting to the
// terminal progress event always finds the dataset in the store.
func (s *Service) finish(job *activeIngest, pr *PipelineResult, err error) {
	duration := time.Since(job.started)

	if err != nil {
		phase := PhaseFailed
		msg := err.Error()
		switch {
		case errors.Is(err, context.Canceled):
			phase = PhaseCancelled
			msg = "upload cancelled"
		case errors.Is(err, context.DeadlineExceeded):
			msg = "ingestion timed out"
		}

		job.update(Progress{Phase: phase, Error: msg})
		job.setResult(&Result{IngestID: job.id, Filename: job.filename, Duration: duration, Err: err})
		job.closeListeners()
		close(job.done)
		s.scheduleCleanup(job.id)

		s.publish(event.Event{
			Type: event.TypeIngestFailed,
			Payload: map[string]any{
				"ingest_id": job.id,
				"filename":  job.filename,
				"reason":    msg,
			},
		})
		slog.Warn("ingestion failed",
			"ingest_id", job.id,
			"filename", job.filename,
			"phase", string(phase),
			"duration_ms", duration.Milliseconds(),
			"error", err)
		return
	}

	s.store.Replace(pr.Dataset, pr.Headers, pr.Rows)

	job.update(Progress{
		Phase:     PhaseComplete,
		TotalRows: pr.Dataset.RowCount,
		DatasetID: pr.Dataset.ID,
	})
	job.setResult(&Result{
		IngestID: job.id,
		Filename: job.filename,
		Dataset:  pr.Dataset,
		Warnings: pr.Warnings,
		Duration: duration,
	})
	job.closeListeners()
	close(job.done)
	s.scheduleCleanup(job.id)

	s.publish(event.Event{
		Type:      event.TypeDatasetCreated,
		DatasetID: pr.Dataset.ID,
		Payload: map[string]any{
			"filename": job.filename,
			"rows":     pr.Dataset.RowCount,
			"columns":  pr.Dataset.ColumnCount,
		},
	})
	slog.Info("ingestion complete",
		"ingest_id", job.id,
		"filename", job.filename,
		"dataset_id", pr.Dataset.ID,
		"rows", pr.Dataset.RowCount,
		"columns", pr.Dataset.ColumnCount,
		"warnings", len(pr.Warnings),
		"duration_ms", duration.Milliseconds())
}

// Cancel requests cancellation of a running job. The job transitions to
// cancelled asynchronously, at its next context checkpoint.
func (s *Service) Cancel(id string) error {
	job, ok := s.lookup(id)
	if !ok {
		return ErrIngestNotFound
	}
	if job.snapshot().Phase.Terminal() {
		return ErrIngestFinished
	}
	job.cancel()
	return nil
}

// Progress returns the job's current progress snapshot.
func (s *Service) Progress(id string) (Progress, bool) {
	job, ok := s.lookup(id)
	if !ok {
		return Progress{}, false
	}
	return job.snapshot(), true
}

// SubscribeProgress returns a channel carrying progress updates for the
// job, primed with the current snapshot. The channel closes when the job
// finishes (after the terminal update) or on unsubscribe. Slow consumers
// miss intermediate updates; the final state is always available via
// Progress after the close.
func (s *Service) SubscribeProgress(id string) (<-chan Progress, func(), error) {
	job, ok := s.lookup(id)
	if !ok {
		return nil, nil, ErrIngestNotFound
	}
	ch, unsub := job.subscribe()
	return ch, unsub, nil
}

// Result blocks until the job finishes and returns its outcome.
func (s *Service) Result(ctx context.Context, id string) (*Result, error) {
	job, ok := s.lookup(id)
	if !ok {
		return nil, ErrIngestNotFound
	}
	select {
	case <-job.done:
		return job.getResult(), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Queue snapshots every tracked job, oldest first, running and recently
// finished alike.
func (s *Service) Queue() []Progress {
	s.mu.RLock()
	jobs := make([]*activeIngest, 0, len(s.ingests))
	for _, j := range s.ingests {
		jobs = append(jobs, j)
	}
	s.mu.RUnlock()

	sort.Slice(jobs, func(a, b int) bool {
		return jobs[a].started.Before(jobs[b].started)
	})

	out := make([]Progress, 0, len(jobs))
	for _, j := range jobs {
		out = append(out, j.snapshot())
	}
	return out
}

// LimiterStatus snapshots slot occupancy.
func (s *Service) LimiterStatus() LimiterStatus {
	return s.limiter.Status()
}

// WaitForDrain blocks until every running ingestion finishes or ctx is
// done. Used during shutdown.
func (s *Service) WaitForDrain(ctx context.Context) error {
	return s.limiter.WaitForDrain(ctx)
}

func (s *Service) lookup(id string) (*activeIngest, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.ingests[id]
	return job, ok
}

func (s *Service) scheduleCleanup(id string) {
	time.AfterFunc(s.retention, func() {
		s.mu.Lock()
		delete(s.ingests, id)
		s.mu.Unlock()
	})
}

func (s *Service) publish(evt event.Event) {
	if s.bus == nil {
		return
	}
	if err := s.bus.Publish(evt); err != nil {
		slog.Debug("event publish skipped", "type", evt.Type, "error", err)
	}
}

// ----------------------------------------------------------------------------
// activeIngest internals
// ----------------------------------------------------------------------------

// update stamps the job identity onto pr, stores it as the current
// snapshot, and fans it out to listeners without blocking.
func (j *activeIngest) update(pr Progress) {
	j.mu.Lock()
	defer j.mu.Unlock()

	pr.IngestID = j.id
	if pr.Filename == "" {
		pr.Filename = j.filename
	}
	j.progress = pr

	for _, ch := range j.listeners {
		select {
		case ch <- pr:
		default:
		}
	}
}

// subscribe registers a listener primed with the current snapshot. A
// subscription taken after the job finished yields that one terminal
// snapshot and an already-closed channel.
func (j *activeIngest) subscribe() (<-chan Progress, func()) {
	j.mu.Lock()
	defer j.mu.Unlock()

	ch := make(chan Progress, progressBuffer)
	ch <- j.progress

	if j.finished {
		close(ch)
		return ch, func() {}
	}

	id := j.nextListener
	j.nextListener++
	j.listeners[id] = ch

	unsubscribe := func() {
		j.mu.Lock()
		defer j.mu.Unlock()

		if c, ok := j.listeners[id]; ok {
			delete(j.listeners, id)
			close(c)
		}
	}
	return ch, unsubscribe
}

func (j *activeIngest) closeListeners() {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.finished = true
	for id, ch := range j.listeners {
		delete(j.listeners, id)
		close(ch)
	}
}

func (j *activeIngest) snapshot() Progress {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.progress
}

func (j *activeIngest) setResult(r *Result) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.result = r
}

func (j *activeIngest) getResult() *Result {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.result
}
