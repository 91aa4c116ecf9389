package fedtracez

// Node records the timing and errors of one resolved field or list element.
// Offsets are nanoseconds since the session's origin; zero means unset.
// Nodes are NOT thread-safe on their own - the TreeBuilder guards them while
// a session is active, and a Result's tree is never mutated afterwards.
//
//nolint:govet // Field order follows the JSON rendering order
type Node struct {
	ResponseName Key     `json:"responseName,omitempty"`
	Index        uint32  `json:"index,omitempty"`
	IsIndex      bool    `json:"isIndex,omitempty"`
	FieldName    string  `json:"fieldName,omitempty"`
	ParentType   string  `json:"parentType,omitempty"`
	Type         string  `json:"type,omitempty"`
	StartTime    uint64  `json:"startTime"`
	EndTime      uint64  `json:"endTime,omitempty"`
	Errors       []Error `json:"errors,omitempty"`
	Children     []*Node `json:"children,omitempty"`

	byKey map[Segment]*Node
}

func newNode(seg Segment) *Node {
	n := &Node{}
	if seg.isIndex {
		n.IsIndex = true
		n.Index = uint32(seg.index) //nolint:gosec // bounded by Segment.valid
	} else {
		n.ResponseName = seg.name
	}
	return n
}

// Segment returns the key that identifies n within its parent.
func (n *Node) Segment() Segment {
	if n.IsIndex {
		return Index(int(n.Index))
	}
	return Field(n.ResponseName)
}

// Child returns the direct child at seg, or nil.
func (n *Node) Child(seg Segment) *Node {
	if n == nil || n.byKey == nil {
		return nil
	}
	return n.byKey[seg]
}

// Lookup walks p from n and returns the node it names, or nil.
func (n *Node) Lookup(p Path) *Node {
	cur := n
	for _, seg := range p {
		cur = cur.Child(seg)
		if cur == nil {
			return nil
		}
	}
	return cur
}

// child returns the child at seg, creating it when absent.
// New children are appended, so iteration order is insertion order.
func (n *Node) child(seg Segment) *Node {
	if c, ok := n.byKey[seg]; ok {
		return c
	}
	return n.addChild(newNode(seg))
}

func (n *Node) addChild(c *Node) *Node {
	if n.byKey == nil {
		n.byKey = make(map[Segment]*Node)
	}
	n.byKey[c.Segment()] = c
	n.Children = append(n.Children, c)
	return c
}

// Walk visits n and every descendant depth-first, parents before children.
// The path passed for n itself is empty.
func (n *Node) Walk(fn func(p Path, node *Node)) {
	if n == nil {
		return
	}
	n.walk(nil, fn)
}

func (n *Node) walk(p Path, fn func(Path, *Node)) {
	fn(p, n)
	for _, c := range n.Children {
		c.walk(p.Append(c.Segment()), fn)
	}
}

// Count returns the number of nodes in the subtree rooted at n.
func (n *Node) Count() int {
	count := 0
	n.Walk(func(Path, *Node) { count++ })
	return count
}

// clone returns a deep copy so the caller can't reach builder-owned memory.
func (n *Node) clone() *Node {
	c := *n
	c.byKey = nil
	c.Children = nil
	if n.Errors != nil {
		c.Errors = make([]Error, len(n.Errors))
		for i := range n.Errors {
			c.Errors[i] = n.Errors[i].clone()
		}
	}
	for _, child := range n.Children {
		c.addChild(child.clone())
	}
	return &c
}
