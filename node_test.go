package fedtracez

import (
	"testing"
)

func TestNodeChildIsCreateOrGet(t *testing.T) {
	root := &Node{}
	first := root.child(Field("a"))
	second := root.child(Field("a"))

	if first != second {
		t.Error("Expected the same node for the same key")
	}
	if len(root.Children) != 1 {
		t.Errorf("Expected 1 child, got %d", len(root.Children))
	}

	// A field key and an index key never collide.
	root.child(Index(0))
	root.child(Field("0"))
	if len(root.Children) != 3 {
		t.Errorf("Expected 3 children, got %d", len(root.Children))
	}
}

func TestNodeWalkOrder(t *testing.T) {
	root := &Node{}
	b := root.child(Field("b"))
	b.child(Index(1))
	b.child(Index(0))
	root.child(Field("a"))

	var visited []string
	root.Walk(func(p Path, _ *Node) {
		visited = append(visited, p.String())
	})

	expected := []string{"", "b", "b.1", "b.0", "a"}
	if len(visited) != len(expected) {
		t.Fatalf("Expected %v, got %v", expected, visited)
	}
	for i := range expected {
		if visited[i] != expected[i] {
			t.Errorf("Position %d: expected %q, got %q", i, expected[i], visited[i])
		}
	}
}

func TestNodeLookup(t *testing.T) {
	root := &Node{}
	leaf := root.child(Field("a")).child(Index(4)).child(Field("c"))

	if root.Lookup(NewPath("a", 4, "c")) != leaf {
		t.Error("Expected lookup to find the leaf")
	}
	if root.Lookup(NewPath("a", 5)) != nil {
		t.Error("Expected nil for a missing path")
	}
	if root.Lookup(nil) != root {
		t.Error("Expected empty path to return the receiver")
	}

	var nilNode *Node
	if nilNode.Child(Field("a")) != nil {
		t.Error("Expected nil child from nil node")
	}
}

func TestNodeCloneIsDeep(t *testing.T) {
	root := &Node{}
	a := root.child(Field("a"))
	a.Errors = []Error{{Message: "x", Path: NewPath("a"), Extensions: map[string]any{"k": "v"}}}

	c := root.clone()
	a.Errors[0].Message = "changed"
	a.Errors[0].Extensions["k"] = "changed"
	a.child(Field("late"))

	ca := c.Child(Field("a"))
	if ca == a {
		t.Fatal("Expected clone to hold distinct nodes")
	}
	if ca.Errors[0].Message != "x" || ca.Errors[0].Extensions["k"] != "v" {
		t.Errorf("Expected clone errors unaffected, got %+v", ca.Errors[0])
	}
	if len(ca.Children) != 0 {
		t.Errorf("Expected clone children unaffected, got %d", len(ca.Children))
	}
}

func TestNodeSegment(t *testing.T) {
	if seg := newNode(Index(9)).Segment(); !seg.IsIndex() || seg.Int() != 9 {
		t.Errorf("Expected index segment 9, got %v", seg)
	}
	if seg := newNode(Field("f")).Segment(); seg.IsIndex() || seg.Name() != "f" {
		t.Errorf("Expected field segment f, got %v", seg)
	}
}
