package fedtracez

import (
	"sync"
)

func noopFinish(error, any) {}

// Extension ties one request's lifecycle to a TreeBuilder.
// A nil *Extension is a disabled session: every method is a no-op.
// Safe for concurrent use by multiple goroutines.
type Extension struct {
	builder   *TreeBuilder
	tracer    *Tracer
	result    *Result
	sessionID string
	mu        sync.Mutex
}

// NewExtension creates an extension around b that reports to no tracer.
func NewExtension(b *TreeBuilder) *Extension {
	return &Extension{builder: b}
}

// SessionID returns the identifier assigned by the tracer, if any.
func (x *Extension) SessionID() string {
	if x == nil {
		return ""
	}
	return x.sessionID
}

// RequestDidStart starts the session clock.
func (x *Extension) RequestDidStart() {
	if x == nil {
		return
	}
	x.builder.StartTiming()
}

// WillResolveField records the start of a field and returns its finish func.
func (x *Extension) WillResolveField(path Path, parentType, returnType, fieldName string) FieldFinishFunc {
	if x == nil {
		return noopFinish
	}
	return x.builder.WillResolveField(path, parentType, returnType, fieldName)
}

// DidEncounterErrors records a batch of errors.
func (x *Extension) DidEncounterErrors(errs []error) {
	if x == nil {
		return
	}
	x.builder.DidEncounterErrors(errs)
}

// ExecutionDidEnd stops the session clock and, on the first call, hands
// the result to the tracer. The duration ends with execution, not with the
// request, since the record is embedded in the response.
func (x *Extension) ExecutionDidEnd() {
	if x == nil {
		return
	}
	result := x.builder.StopTiming()

	x.mu.Lock()
	first := x.result == nil
	if first {
		x.result = &result
	}
	x.mu.Unlock()

	if first && x.tracer != nil {
		x.tracer.complete(Report{SessionID: x.sessionID, Result: result})
	}
}

// Result returns the frozen result once execution has ended.
func (x *Extension) Result() (Result, bool) {
	if x == nil {
		return Result{}, false
	}
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.result == nil {
		return Result{}, false
	}
	return *x.result, true
}

// Format returns the key and record to embed in the response.
// ok is false for a disabled session. Panics if execution hasn't ended.
func (x *Extension) Format() (key string, record TransportRecord, ok bool) {
	if x == nil {
		return "", TransportRecord{}, false
	}
	result, ended := x.Result()
	if !ended {
		panic("fedtracez: Format called before end of execution")
	}
	return FormatKey, ToTransportRecord(result.DurationNs, Encode(result.Root)), true
}
