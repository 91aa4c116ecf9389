package fedtracez

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/zoobzio/clockz"
)

func TestExtensionLifecycle(t *testing.T) {
	clock := clockz.NewFakeClock()
	x := NewExtension(NewTreeBuilder().WithClock(clock))

	x.RequestDidStart()
	clock.Advance(time.Millisecond)
	done := x.WillResolveField(NewPath("user"), "Query", "User", "user")
	clock.Advance(time.Millisecond)
	done(nil, nil)
	x.DidEncounterErrors([]error{errors.New("warn")})
	x.ExecutionDidEnd()

	key, record, ok := x.Format()
	if !ok || key != FormatKey {
		t.Fatalf("Expected %s record, got %q ok=%v", FormatKey, key, ok)
	}
	if record.DurationNs != uint64(2*time.Millisecond) {
		t.Errorf("Expected duration 2ms, got %d", record.DurationNs)
	}

	root, err := record.Decode()
	if err != nil {
		t.Fatal(err)
	}
	if root.Child(Field("user")) == nil {
		t.Error("Expected 'user' in formatted trace")
	}
	if len(root.Errors) != 1 {
		t.Errorf("Expected 1 root error, got %d", len(root.Errors))
	}
}

func TestExtensionFormatBeforeEndPanics(t *testing.T) {
	x := NewExtension(NewTreeBuilder())
	x.RequestDidStart()
	expectPanic(t, "Format before ExecutionDidEnd", func() {
		x.Format()
	})
}

func TestExtensionFormatIsStable(t *testing.T) {
	x := NewExtension(NewTreeBuilder())
	x.RequestDidStart()
	x.WillResolveField(NewPath("a"), "Query", "Int", "a")(nil, 1)
	x.ExecutionDidEnd()
	x.ExecutionDidEnd()

	_, first, _ := x.Format()
	_, second, _ := x.Format()
	if first != second {
		t.Error("Expected repeated Format to return the same record")
	}
}

func TestExtensionResolveFieldFromContext(t *testing.T) {
	x := NewExtension(NewTreeBuilder())
	x.RequestDidStart()
	ctx := NewContext(context.Background(), x)

	boom := errors.New("boom")
	_, err := ResolveField(ctx, NewPath("a"), "Query", "Int", "a", func(context.Context) (any, error) {
		return nil, boom
	})
	if !errors.Is(err, boom) {
		t.Errorf("Expected resolver error to pass through, got %v", err)
	}
	v, err := ResolveField(ctx, NewPath("b"), "Query", "Int", "b", func(context.Context) (any, error) {
		return 42, nil
	})
	if err != nil || v != 42 {
		t.Errorf("Expected 42, got %v, %v", v, err)
	}
	x.ExecutionDidEnd()

	result, ok := x.Result()
	if !ok {
		t.Fatal("Expected result after execution ended")
	}
	a := result.Root.Child(Field("a"))
	if len(a.Errors) != 1 || a.Errors[0].Message != "boom" {
		t.Errorf("Expected resolver error on 'a', got %+v", a.Errors)
	}
	if b := result.Root.Child(Field("b")); b == nil || len(b.Errors) != 0 {
		t.Errorf("Expected clean 'b', got %+v", b)
	}
}

func TestFromContext(t *testing.T) {
	if FromContext(context.Background()) != nil {
		t.Error("Expected nil extension in empty context")
	}
	//nolint:staticcheck // nil context is part of the contract
	if FromContext(nil) != nil {
		t.Error("Expected nil extension for nil context")
	}

	x := NewExtension(NewTreeBuilder())
	//nolint:staticcheck // nil parent is part of the contract
	if FromContext(NewContext(nil, x)) != x {
		t.Error("Expected extension to round-trip through context")
	}
}
