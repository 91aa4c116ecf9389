package fedtracez

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Segment is one step of a Path: either a response key or a list index.
type Segment struct {
	name    Key
	index   int
	isIndex bool
}

// Field returns a segment that traverses into an object by response key.
func Field(name Key) Segment {
	return Segment{name: name}
}

// Index returns a segment that traverses into a list element.
func Index(i int) Segment {
	return Segment{index: i, isIndex: true}
}

// IsIndex reports whether the segment is a list index.
func (s Segment) IsIndex() bool { return s.isIndex }

// Name returns the response key of a field segment.
func (s Segment) Name() Key { return s.name }

// Int returns the list index of an index segment.
func (s Segment) Int() int { return s.index }

// String renders the segment the way it appears in a response path.
func (s Segment) String() string {
	if s.isIndex {
		return strconv.Itoa(s.index)
	}
	return s.name
}

func (s Segment) valid() bool {
	if s.isIndex {
		return s.index >= 0 && uint64(s.index) <= math.MaxUint32
	}
	return s.name != ""
}

// Path locates a node from the root of the response.
// Two events with equal paths refer to the same node.
type Path []Segment

// NewPath builds a path from string keys and int indices.
// Panics on any other element type; use ParsePath for untrusted input.
func NewPath(elems ...any) Path {
	p, err := ParsePath(elems)
	if err != nil {
		panic("fedtracez: " + err.Error())
	}
	return p
}

// ParsePath converts a response path as found in GraphQL error JSON.
// Strings become field segments and integral numbers become index segments.
func ParsePath(elems []any) (Path, error) {
	if elems == nil {
		return nil, nil
	}
	p := make(Path, 0, len(elems))
	for i, e := range elems {
		switch v := e.(type) {
		case string:
			p = append(p, Field(v))
		case int:
			p = append(p, Index(v))
		case int32:
			p = append(p, Index(int(v)))
		case int64:
			p = append(p, Index(int(v)))
		case uint32:
			p = append(p, Index(int(v)))
		case float64:
			if v != math.Trunc(v) {
				return nil, fmt.Errorf("path element %d: non-integral index %v", i, v)
			}
			p = append(p, Index(int(v)))
		case Segment:
			p = append(p, v)
		default:
			return nil, fmt.Errorf("path element %d: unsupported type %T", i, e)
		}
	}
	return p, nil
}

// Valid reports whether every segment can be placed in a tree.
func (p Path) Valid() bool {
	for _, s := range p {
		if !s.valid() {
			return false
		}
	}
	return true
}

// Append returns a new path with seg added; p is not modified.
func (p Path) Append(seg Segment) Path {
	out := make(Path, len(p), len(p)+1)
	copy(out, p)
	return append(out, seg)
}

// Last returns the final segment, or false for the root path.
func (p Path) Last() (Segment, bool) {
	if len(p) == 0 {
		return Segment{}, false
	}
	return p[len(p)-1], true
}

// String renders the path dot-joined, e.g. "user.friends.0.name".
func (p Path) String() string {
	parts := make([]string, len(p))
	for i, s := range p {
		parts[i] = s.String()
	}
	return strings.Join(parts, ".")
}

// Elems returns the path as the []any form used in GraphQL error JSON.
func (p Path) Elems() []any {
	if p == nil {
		return nil
	}
	out := make([]any, len(p))
	for i, s := range p {
		if s.isIndex {
			out[i] = s.index
		} else {
			out[i] = s.name
		}
	}
	return out
}

// MarshalJSON encodes the path as a JSON array of keys and indices.
func (p Path) MarshalJSON() ([]byte, error) {
	if p == nil {
		return []byte("null"), nil
	}
	return json.Marshal(p.Elems())
}

// UnmarshalJSON decodes a JSON array of keys and indices.
func (p *Path) UnmarshalJSON(data []byte) error {
	var elems []any
	if err := json.Unmarshal(data, &elems); err != nil {
		return err
	}
	parsed, err := ParsePath(elems)
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}
