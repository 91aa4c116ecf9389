package fedtracez

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/zoobzio/clockz"
)

// Report is a completed session handed to handlers and collectors.
type Report struct {
	SessionID string `json:"sessionId"`
	Result    Result `json:"result"`
}

// ReportHandler is called when a session's execution ends.
type ReportHandler func(report Report)

type handlerEntry struct {
	handler ReportHandler
	id      uint64
	async   bool
}

// Tracer creates tracing sessions and dispatches their reports.
// Safe for concurrent use by multiple goroutines.
//
//nolint:govet // Field order optimized for functionality over memory
type Tracer struct {
	handlers       []handlerEntry
	collectors     []*Collector
	panicHook      func(handlerID uint64, r interface{})
	rewriteError   func(*Error) *Error
	workers        *workerPool
	clock          clockz.Clock
	handlersLock   sync.RWMutex
	nextID         atomic.Uint64
	droppedReports atomic.Uint64
}

// New creates a new tracer.
// Uses the real clock for production behavior.
func New() *Tracer {
	return &Tracer{
		handlers: make([]handlerEntry, 0),
		clock:    clockz.RealClock,
	}
}

// WithClock returns a new tracer with the specified clock.
// Enables clock injection for deterministic testing.
func (t *Tracer) WithClock(clock clockz.Clock) *Tracer {
	return &Tracer{
		handlers:     make([]handlerEntry, 0),
		rewriteError: t.rewriteError,
		clock:        clock,
	}
}

// WithRewriteError returns a new tracer whose sessions pass every error
// through fn before recording it. Returning nil drops the error.
func (t *Tracer) WithRewriteError(fn func(*Error) *Error) *Tracer {
	return &Tracer{
		handlers:     make([]handlerEntry, 0),
		rewriteError: fn,
		clock:        t.clock,
	}
}

// Begin starts a session when enabled is true and returns a context that
// carries it. When disabled, ctx is returned unchanged with a nil extension,
// and nothing is recorded.
func (t *Tracer) Begin(ctx context.Context, enabled bool) (context.Context, *Extension) {
	if ctx == nil {
		ctx = context.Background()
	}
	if !enabled {
		return ctx, nil
	}

	x := &Extension{
		builder:   NewTreeBuilder().WithClock(t.clock).WithRewriteError(t.rewriteError),
		tracer:    t,
		sessionID: t.generateSessionID(),
	}
	return NewContext(ctx, x), x
}

// BeginRequest starts a session if r asked for an ftv1 trace.
func (t *Tracer) BeginRequest(r *http.Request) (context.Context, *Extension) {
	return t.Begin(r.Context(), Enabled(r.Header))
}

// OnReport registers a synchronous handler called when sessions complete.
func (t *Tracer) OnReport(handler ReportHandler) uint64 {
	return t.registerHandler(handler, false)
}

// OnReportAsync registers an asynchronous handler called when sessions complete.
func (t *Tracer) OnReportAsync(handler ReportHandler) uint64 {
	return t.registerHandler(handler, true)
}

func (t *Tracer) registerHandler(handler ReportHandler, async bool) uint64 {
	if handler == nil {
		return 0
	}

	id := t.nextID.Add(1)

	t.handlersLock.Lock()
	defer t.handlersLock.Unlock()

	t.handlers = append(t.handlers, handlerEntry{
		id:      id,
		handler: handler,
		async:   async,
	})

	return id
}

// RemoveHandler removes a handler by ID.
func (t *Tracer) RemoveHandler(id uint64) {
	t.handlersLock.Lock()
	defer t.handlersLock.Unlock()

	// Preserve order
	for i, h := range t.handlers {
		if h.id == id {
			copy(t.handlers[i:], t.handlers[i+1:])
			t.handlers = t.handlers[:len(t.handlers)-1]
			return
		}
	}
}

// AddCollector attaches a collector that buffers every completed report.
func (t *Tracer) AddCollector(c *Collector) {
	if c == nil {
		return
	}
	t.handlersLock.Lock()
	defer t.handlersLock.Unlock()
	t.collectors = append(t.collectors, c)
}

// HasHandlers reports whether any handler or collector is registered.
func (t *Tracer) HasHandlers() bool {
	t.handlersLock.RLock()
	defer t.handlersLock.RUnlock()
	return len(t.handlers) > 0 || len(t.collectors) > 0
}

// SetPanicHook sets a function to be called when a handler panics.
func (t *Tracer) SetPanicHook(hook func(handlerID uint64, r interface{})) {
	t.panicHook = hook
}

// complete delivers a finished session to collectors and handlers.
func (t *Tracer) complete(report Report) {
	t.handlersLock.RLock()
	if len(t.handlers) == 0 && len(t.collectors) == 0 {
		t.handlersLock.RUnlock()
		return
	}

	handlers := make([]handlerEntry, len(t.handlers))
	copy(handlers, t.handlers)
	collectors := make([]*Collector, len(t.collectors))
	copy(collectors, t.collectors)
	workers := t.workers
	t.handlersLock.RUnlock()

	for _, c := range collectors {
		c.Collect(&report)
	}

	for _, h := range handlers {
		if h.async {
			entry := h
			if workers != nil {
				workers.submit(func() {
					t.safeCall(entry, report)
				})
			} else {
				go t.safeCall(entry, report)
			}
		} else {
			t.safeCall(h, report)
		}
	}
}

func (t *Tracer) safeCall(entry handlerEntry, report Report) {
	defer func() {
		if r := recover(); r != nil {
			if t.panicHook != nil {
				t.panicHook(entry.id, r)
			}
		}
	}()
	entry.handler(report)
}

// EnableWorkerPool creates a bounded worker pool for async handlers.
func (t *Tracer) EnableWorkerPool(workers, queueSize int) error {
	t.handlersLock.Lock()
	defer t.handlersLock.Unlock()

	if t.workers != nil {
		return errors.New("worker pool already enabled")
	}
	if workers <= 0 {
		return errors.New("workers must be > 0")
	}
	if queueSize <= 0 {
		return errors.New("queueSize must be > 0")
	}

	t.workers = &workerPool{
		tasks:   make(chan func(), queueSize),
		stop:    make(chan struct{}),
		dropped: &t.droppedReports,
	}

	t.workers.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go t.workers.run()
	}

	return nil
}

// DroppedReports returns the number of reports dropped due to a full worker queue.
func (t *Tracer) DroppedReports() uint64 {
	return t.droppedReports.Load()
}

// Close stops dispatching, waits for in-flight async handlers and closes
// attached collectors. Sessions already begun still record, but their
// reports go nowhere.
func (t *Tracer) Close() {
	t.handlersLock.Lock()
	t.handlers = nil
	collectors := t.collectors
	t.collectors = nil
	workers := t.workers
	t.workers = nil
	t.handlersLock.Unlock()

	if workers != nil {
		workers.shutdown()
	}

	for _, c := range collectors {
		c.Close()
	}
}

// generateSessionID returns a random 16-byte hex identifier.
func (t *Tracer) generateSessionID() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		// Fallback to time-based ID if crypto/rand fails.
		return hex.EncodeToString([]byte(t.clock.Now().Format(time.RFC3339Nano)))
	}
	return hex.EncodeToString(b)
}

// workerPool manages a fixed number of workers for processing async handlers.
//
//nolint:govet // Field order optimized for functionality over memory
type workerPool struct {
	tasks   chan func()
	stop    chan struct{}
	dropped *atomic.Uint64
	wg      sync.WaitGroup
	mu      sync.RWMutex
	stopped bool
}

func (w *workerPool) run() {
	defer w.wg.Done()
	for {
		select {
		case task := <-w.tasks:
			task()
		case <-w.stop:
			return
		}
	}
}

// submit queues task, or counts it dropped when the queue is full or the
// pool has shut down.
func (w *workerPool) submit(task func()) {
	w.mu.RLock()
	defer w.mu.RUnlock()

	if w.stopped {
		w.dropped.Add(1)
		return
	}
	select {
	case w.tasks <- task:
	default:
		w.dropped.Add(1)
	}
}

func (w *workerPool) shutdown() {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return
	}
	w.stopped = true
	close(w.stop)
	w.mu.Unlock()

	w.wg.Wait()
}
