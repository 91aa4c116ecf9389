package integration

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/zoobzio/fedtracez"
)

// Field is one selection in a toy schema the engine resolves.
// Resolve returns the field's value; for list fields it returns the length.
//
//nolint:govet // Field alignment optimized for test helper readability
type Field struct {
	Name       string
	Alias      string
	ParentType string
	Type       string
	Resolve    func(ctx context.Context) (any, error)
	Children   []Field
	List       bool
}

func (f Field) key() string {
	if f.Alias != "" {
		return f.Alias
	}
	return f.Name
}

// Execute resolves the selection set concurrently, the way a GraphQL
// executor resolves sibling fields, reporting every field to the session
// carried by ctx. Resolver errors don't stop sibling fields.
func Execute(ctx context.Context, fields []Field) []error {
	var (
		mu   sync.Mutex
		errs []error
	)
	record := func(err error) {
		mu.Lock()
		errs = append(errs, err)
		mu.Unlock()
	}
	resolveSet(ctx, nil, fields, record)
	return errs
}

func resolveSet(ctx context.Context, parent fedtracez.Path, fields []Field, record func(error)) {
	g, gctx := errgroup.WithContext(ctx)
	for _, f := range fields {
		g.Go(func() error {
			resolveField(gctx, parent.Append(fedtracez.Field(f.key())), f, record)
			return nil
		})
	}
	_ = g.Wait() //nolint:errcheck // resolvers report through record
}

func resolveField(ctx context.Context, path fedtracez.Path, f Field, record func(error)) {
	value, err := fedtracez.ResolveField(ctx, path, f.ParentType, f.Type, f.Name, func(ctx context.Context) (any, error) {
		if f.Resolve == nil {
			return nil, nil
		}
		return f.Resolve(ctx)
	})
	if err != nil {
		e := fedtracez.AsError(err)
		e.Path = path
		record(e)
		return
	}
	if len(f.Children) == 0 {
		return
	}
	if !f.List {
		resolveSet(ctx, path, f.Children, record)
		return
	}

	n, _ := value.(int)
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < n; i++ {
		g.Go(func() error {
			resolveSet(gctx, path.Append(fedtracez.Index(i)), f.Children, record)
			return nil
		})
	}
	_ = g.Wait() //nolint:errcheck // resolvers report through record
}

// Sleep returns a resolver that waits d before yielding v.
func Sleep(d time.Duration, v any) func(context.Context) (any, error) {
	return func(ctx context.Context) (any, error) {
		select {
		case <-time.After(d):
			return v, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// Fail returns a resolver that yields err.
func Fail(err error) func(context.Context) (any, error) {
	return func(context.Context) (any, error) {
		return nil, err
	}
}

// MockCollector wraps a real collector with test utilities.
// Provides synchronous collection and verification helpers.
type MockCollector struct {
	*fedtracez.Collector
	t *testing.T
}

// NewMockCollector creates a synchronous collector for testing.
func NewMockCollector(t *testing.T, name string) *MockCollector {
	collector := fedtracez.NewCollector(name, 64)
	collector.SetSyncMode(true)
	t.Cleanup(collector.Close)
	return &MockCollector{Collector: collector, t: t}
}

// AssertReportCount exports and verifies the exact number of reports.
func (m *MockCollector) AssertReportCount(expected int) []fedtracez.Report {
	reports := m.Export()
	if len(reports) != expected {
		m.t.Errorf("Expected %d reports, got %d", expected, len(reports))
	}
	return reports
}

// AssertNode verifies a node exists at path and returns it.
func AssertNode(t *testing.T, root *fedtracez.Node, path fedtracez.Path) *fedtracez.Node {
	t.Helper()
	n := root.Lookup(path)
	if n == nil {
		t.Errorf("Node %s not found\n%s", path, PrintTree(root))
	}
	return n
}

// PrintTree formats a trace tree for debugging.
func PrintTree(root *fedtracez.Node) string {
	var sb strings.Builder
	root.Walk(func(p fedtracez.Path, n *fedtracez.Node) {
		indent := strings.Repeat("  ", len(p))
		label := "<root>"
		if seg, ok := p.Last(); ok {
			label = seg.String()
		}
		fmt.Fprintf(&sb, "%s%s %s [%d-%d]", indent, label, n.Type, n.StartTime, n.EndTime)
		for _, e := range n.Errors {
			fmt.Fprintf(&sb, " !%s", e.Message)
		}
		sb.WriteByte('\n')
	})
	return sb.String()
}
