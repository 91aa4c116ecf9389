// Package fedtracez builds federated query-resolution traces.
//
// fedtracez records the timing and errors of a hierarchical field resolution
// (a GraphQL operation resolved concurrently and out of order) into a tree
// that mirrors the response shape, and encodes that tree into the compact
// ftv1 binary format a federation gateway forwards to its monitoring backend.
//
// Core Components:
//   - TreeBuilder: Accumulates one session's timings and errors into a tree.
//   - Node: One resolved field or list element in the tree.
//   - Encode/DecodeNode: The ftv1 protobuf wire format.
//   - Extension: Per-request lifecycle glue around a TreeBuilder.
//   - Tracer: Creates sessions and dispatches completed reports.
//   - Collector: Buffers completed reports for export.
//
// Basic Usage:
//
//	b := fedtracez.NewTreeBuilder()
//	b.StartTiming()
//
//	done := b.WillResolveField(fedtracez.NewPath("user"), "Query", "User", "user")
//	// ... resolve ...
//	done(nil, user)
//
//	result := b.StopTiming()
//	record := fedtracez.ToTransportRecord(result.DurationNs, fedtracez.Encode(result.Root))
//
// Thread Safety:
//
// TreeBuilder is safe for concurrent use by multiple goroutines. Field
// lifecycles on distinct paths are independent; the caller is expected to
// finish a path only after starting it.
//
// Contract Violations:
//
// Calling lifecycle operations out of order (StopTiming before StartTiming,
// StartTiming twice, formatting before execution ended) panics. These are
// programming errors in the caller, not runtime conditions.
//
// Disabled Sessions:
//
// A nil *Extension is a valid, disabled session: every method is a no-op
// and Format reports that no record exists.
package fedtracez

// FormatKey is the extension key an encoded trace is published under.
const FormatKey = "ftv1"

// HeaderName is the request header a gateway sets to ask for a trace.
const HeaderName = "apollo-federation-include-trace"

// Key represents a response key: a field alias or name.
type Key = string
