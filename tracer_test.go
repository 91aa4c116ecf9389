package fedtracez

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/zoobzio/clockz"
)

func runSession(tracer *Tracer, fields ...string) *Extension {
	_, x := tracer.Begin(context.Background(), true)
	x.RequestDidStart()
	for _, f := range fields {
		x.WillResolveField(NewPath(f), "Query", "String", f)(nil, nil)
	}
	x.ExecutionDidEnd()
	return x
}

func TestNewTracer(t *testing.T) {
	tracer := New()
	defer tracer.Close()

	if tracer == nil {
		t.Fatal("Expected tracer to be created")
	}
	if tracer.HasHandlers() {
		t.Error("Expected no handlers initially")
	}
}

func TestTracerBeginAssignsSessionIDs(t *testing.T) {
	tracer := New()
	defer tracer.Close()

	_, a := tracer.Begin(context.Background(), true)
	_, b := tracer.Begin(context.Background(), true)

	if a.SessionID() == "" || b.SessionID() == "" {
		t.Error("Expected non-empty session IDs")
	}
	if a.SessionID() == b.SessionID() {
		t.Error("Expected distinct session IDs")
	}
	if len(a.SessionID()) != 32 {
		t.Errorf("Expected 32 hex characters, got %d", len(a.SessionID()))
	}
}

func TestTracerNilContext(t *testing.T) {
	tracer := New()
	defer tracer.Close()

	//nolint:staticcheck // nil context is part of the contract
	ctx, x := tracer.Begin(nil, true)
	if ctx == nil || FromContext(ctx) != x {
		t.Error("Expected a usable context for nil input")
	}
}

func TestTracerSyncHandler(t *testing.T) {
	tracer := New()
	defer tracer.Close()

	var got []Report
	tracer.OnReport(func(r Report) {
		got = append(got, r)
	})

	x := runSession(tracer, "a", "b")
	x.ExecutionDidEnd() // Second end doesn't report again.

	if len(got) != 1 {
		t.Fatalf("Expected 1 report, got %d", len(got))
	}
	if got[0].SessionID != x.SessionID() {
		t.Errorf("Expected session %s, got %s", x.SessionID(), got[0].SessionID)
	}
	if got[0].Result.Root.Count() != 3 {
		t.Errorf("Expected 3 nodes, got %d", got[0].Result.Root.Count())
	}
}

func TestTracerAsyncHandler(t *testing.T) {
	tracer := New()
	defer tracer.Close()

	received := make(chan Report, 1)
	tracer.OnReportAsync(func(r Report) {
		received <- r
	})

	x := runSession(tracer, "a")

	select {
	case r := <-received:
		if r.SessionID != x.SessionID() {
			t.Errorf("Expected session %s, got %s", x.SessionID(), r.SessionID)
		}
	case <-time.After(time.Second):
		t.Fatal("Timed out waiting for async report")
	}
}

func TestTracerRemoveHandler(t *testing.T) {
	tracer := New()
	defer tracer.Close()

	var calls atomic.Int32
	id := tracer.OnReport(func(Report) { calls.Add(1) })
	tracer.RemoveHandler(id)
	runSession(tracer, "a")

	if calls.Load() != 0 {
		t.Errorf("Expected removed handler not to run, got %d calls", calls.Load())
	}
	if tracer.OnReport(nil) != 0 {
		t.Error("Expected nil handler to be rejected")
	}
}

func TestTracerPanicHook(t *testing.T) {
	tracer := New()
	defer tracer.Close()

	var hookID uint64
	var hookValue interface{}
	tracer.SetPanicHook(func(id uint64, r interface{}) {
		hookID = id
		hookValue = r
	})
	id := tracer.OnReport(func(Report) { panic("handler failed") })

	var after atomic.Int32
	tracer.OnReport(func(Report) { after.Add(1) })

	runSession(tracer, "a")

	if hookID != id || hookValue != "handler failed" {
		t.Errorf("Expected hook for handler %d, got %d (%v)", id, hookID, hookValue)
	}
	if after.Load() != 1 {
		t.Error("Expected later handlers to run after a panic")
	}
}

func TestTracerWorkerPool(t *testing.T) {
	tracer := New()
	defer tracer.Close()

	if err := tracer.EnableWorkerPool(2, 16); err != nil {
		t.Fatal(err)
	}
	if err := tracer.EnableWorkerPool(2, 16); err == nil {
		t.Error("Expected error enabling the pool twice")
	}

	var wg sync.WaitGroup
	wg.Add(5)
	tracer.OnReportAsync(func(Report) { wg.Done() })
	for i := 0; i < 5; i++ {
		runSession(tracer, "a")
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Timed out waiting for pooled handlers")
	}
}

func TestTracerWorkerPoolValidation(t *testing.T) {
	tracer := New()
	defer tracer.Close()

	if err := tracer.EnableWorkerPool(0, 1); err == nil {
		t.Error("Expected error for zero workers")
	}
	if err := tracer.EnableWorkerPool(1, 0); err == nil {
		t.Error("Expected error for zero queue size")
	}
}

func TestTracerWorkerPoolDropsWhenFull(t *testing.T) {
	tracer := New()
	if err := tracer.EnableWorkerPool(1, 1); err != nil {
		t.Fatal(err)
	}

	release := make(chan struct{})
	tracer.OnReportAsync(func(Report) { <-release })

	for i := 0; i < 10; i++ {
		runSession(tracer, "a")
	}
	close(release)
	tracer.Close()

	if tracer.DroppedReports() == 0 {
		t.Error("Expected reports to be dropped under backpressure")
	}
}

func TestTracerSubmitAfterCloseIsDropped(t *testing.T) {
	tracer := New()
	if err := tracer.EnableWorkerPool(1, 4); err != nil {
		t.Fatal(err)
	}

	// A dispatch that copied the pool just before Close.
	pool := tracer.workers
	tracer.Close()

	ran := make(chan struct{}, 1)
	pool.submit(func() { ran <- struct{}{} })

	if tracer.DroppedReports() != 1 {
		t.Errorf("Expected 1 dropped report after close, got %d", tracer.DroppedReports())
	}
	if len(pool.tasks) != 0 {
		t.Errorf("Expected nothing queued on a stopped pool, got %d", len(pool.tasks))
	}
	select {
	case <-ran:
		t.Error("Expected task not to run after close")
	default:
	}
}

func TestTracerWithClock(t *testing.T) {
	clock := clockz.NewFakeClockAt(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	tracer := New().WithClock(clock)
	defer tracer.Close()

	collector := NewCollector("clock", 10)
	collector.SetSyncMode(true)
	tracer.AddCollector(collector)

	_, x := tracer.Begin(context.Background(), true)
	x.RequestDidStart()
	clock.Advance(3 * time.Millisecond)
	x.ExecutionDidEnd()

	reports := collector.Export()
	if len(reports) != 1 {
		t.Fatalf("Expected 1 report, got %d", len(reports))
	}
	if reports[0].Result.DurationNs != uint64(3*time.Millisecond) {
		t.Errorf("Expected duration 3ms, got %d", reports[0].Result.DurationNs)
	}
}

func TestTracerWithRewriteError(t *testing.T) {
	tracer := New().WithRewriteError(func(*Error) *Error { return nil })
	defer tracer.Close()

	var got Report
	tracer.OnReport(func(r Report) { got = r })

	_, x := tracer.Begin(context.Background(), true)
	x.RequestDidStart()
	x.DidEncounterErrors([]error{&Error{Message: "hidden"}})
	x.ExecutionDidEnd()

	if len(got.Result.Root.Errors) != 0 {
		t.Errorf("Expected rewritten errors to be dropped, got %+v", got.Result.Root.Errors)
	}
}

func TestTracerCloseClosesCollectors(t *testing.T) {
	tracer := New()
	collector := NewCollector("closing", 10)
	collector.SetSyncMode(true)
	tracer.AddCollector(collector)

	tracer.Close()
	collector.Collect(&Report{SessionID: "late"})

	if collector.Count() != 0 || collector.DroppedCount() != 1 {
		t.Errorf("Expected closed collector to drop, got count=%d dropped=%d",
			collector.Count(), collector.DroppedCount())
	}
}
