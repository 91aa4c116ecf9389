package fedtracez

import (
	"sync"
	"time"

	"github.com/zoobzio/clockz"
)

// FieldFinishFunc is returned by WillResolveField and is called once the
// field has resolved. A non-nil err is attached to the field's node.
// Safe to call multiple times - subsequent calls are no-ops.
type FieldFinishFunc func(err error, result any)

// Result is the frozen output of one timing session.
// The tree must not be modified by its receiver.
type Result struct {
	Root       *Node  `json:"root"`
	DurationNs uint64 `json:"durationNs"`
}

// TreeBuilder accumulates the timings and errors of one resolution session
// into a tree shaped like the response. One builder serves one session.
// Safe for concurrent use by multiple goroutines.
//
//nolint:govet // Field order optimized for functionality over memory
type TreeBuilder struct {
	root         *Node
	result       *Result
	rewriteError func(*Error) *Error
	clock        clockz.Clock
	origin       time.Time
	mu           sync.Mutex
	started      bool
}

// NewTreeBuilder creates a builder reading the real clock.
func NewTreeBuilder() *TreeBuilder {
	return &TreeBuilder{clock: clockz.RealClock}
}

// WithClock returns a new builder with the specified clock.
// Enables clock injection for deterministic testing.
func (b *TreeBuilder) WithClock(clock clockz.Clock) *TreeBuilder {
	return &TreeBuilder{clock: clock, rewriteError: b.rewriteError}
}

// WithRewriteError returns a new builder that passes every reported error
// through fn before recording it. fn receives a copy; returning nil drops
// the error from the trace.
func (b *TreeBuilder) WithRewriteError(fn func(*Error) *Error) *TreeBuilder {
	return &TreeBuilder{clock: b.clock, rewriteError: fn}
}

// StartTiming records the origin every offset is measured from.
// Panics if called twice.
func (b *TreeBuilder) StartTiming() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.started {
		panic("fedtracez: StartTiming called twice")
	}
	b.started = true
	b.origin = b.clock.Now()
	b.root = &Node{}
}

// WillResolveField records the start of the field at path and returns the
// function to call when it resolves. Ancestors missing from the tree are
// created without timing data. Once the session has stopped the returned
// function does nothing.
func (b *TreeBuilder) WillResolveField(path Path, parentType, returnType, fieldName string) FieldFinishFunc {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.mustBeStarted("WillResolveField")
	if b.result != nil {
		return func(error, any) {}
	}

	var node *Node
	if len(path) > 0 && path.Valid() {
		node = b.nodeAt(path)
		node.ParentType = parentType
		node.Type = returnType
		node.FieldName = fieldName
		node.StartTime = b.offset()
	}

	finished := false
	return func(err error, _ any) {
		b.mu.Lock()
		defer b.mu.Unlock()

		if finished || b.result != nil {
			return
		}
		finished = true

		target := node
		if target == nil {
			target = b.root
		} else {
			target.EndTime = b.offset()
		}
		if e := b.prepare(err); e != nil {
			target.Errors = append(target.Errors, *e)
		}
	}
}

// DidEncounterErrors attaches each error to the node at its path, creating
// the node if resolution never reached it. Errors without a usable path
// attach to the root. Calls accumulate until the session stops.
func (b *TreeBuilder) DidEncounterErrors(errs []error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.mustBeStarted("DidEncounterErrors")
	if b.result != nil {
		return
	}

	for _, err := range errs {
		e := b.prepare(err)
		if e == nil {
			continue
		}
		target := b.root
		if len(e.Path) > 0 && e.Path.Valid() {
			target = b.nodeAt(e.Path)
		}
		target.Errors = append(target.Errors, *e)
	}
}

// StopTiming freezes the tree and returns it with the session's duration.
// Fields still in flight keep only their start offset. Calling it again
// returns the same result. Panics if StartTiming was never called.
func (b *TreeBuilder) StopTiming() Result {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.mustBeStarted("StopTiming")
	if b.result != nil {
		return *b.result
	}

	b.result = &Result{
		DurationNs: b.offset(),
		Root:       b.root.clone(),
	}
	return *b.result
}

// Stopped reports whether StopTiming has frozen the tree.
func (b *TreeBuilder) Stopped() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.result != nil
}

// nodeAt returns the node at path, creating it and any missing ancestors.
// Must be called with mu held.
func (b *TreeBuilder) nodeAt(path Path) *Node {
	cur := b.root
	for _, seg := range path {
		cur = cur.child(seg)
	}
	return cur
}

// offset is the time since origin in nanoseconds.
// Must be called with mu held so offsets never exceed the final duration.
func (b *TreeBuilder) offset() uint64 {
	d := b.clock.Now().Sub(b.origin)
	if d < 0 {
		return 0
	}
	return uint64(d)
}

// prepare converts err for recording, or returns nil to skip it.
func (b *TreeBuilder) prepare(err error) *Error {
	e := AsError(err)
	if e == nil || e.fromService() {
		return nil
	}
	if b.rewriteError != nil {
		return b.rewriteError(e)
	}
	return e
}

func (b *TreeBuilder) mustBeStarted(op string) {
	if !b.started {
		panic("fedtracez: " + op + " called before StartTiming")
	}
}
