package fedtracez

import (
	"google.golang.org/protobuf/encoding/protowire"
)

// Trace.Node field numbers. These are a wire contract with the backend.
const (
	nodeResponseName      protowire.Number = 1
	nodeIndex             protowire.Number = 2
	nodeType              protowire.Number = 3
	nodeStartTime         protowire.Number = 8
	nodeEndTime           protowire.Number = 9
	nodeError             protowire.Number = 11
	nodeChild             protowire.Number = 12
	nodeParentType        protowire.Number = 13
	nodeOriginalFieldName protowire.Number = 14
)

// Trace.Error field numbers. time_ns (3) is not recorded.
const (
	errorMessage  protowire.Number = 1
	errorLocation protowire.Number = 2
	errorJSON     protowire.Number = 4
)

// Trace.Location field numbers.
const (
	locationLine   protowire.Number = 1
	locationColumn protowire.Number = 2
)

// Encode serializes the tree rooted at root as a Trace.Node message.
// Children are written in tree order, so encoding an unmodified tree
// always yields the same bytes. Panics on a nil root.
func Encode(root *Node) []byte {
	if root == nil {
		panic("fedtracez: Encode called with nil root")
	}
	return appendNode(nil, root)
}

func appendNode(b []byte, n *Node) []byte {
	switch {
	case n.IsIndex:
		b = protowire.AppendTag(b, nodeIndex, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(n.Index))
	case n.ResponseName != "":
		b = appendString(b, nodeResponseName, n.ResponseName)
	}
	b = appendString(b, nodeType, n.Type)
	b = appendUint(b, nodeStartTime, n.StartTime)
	b = appendUint(b, nodeEndTime, n.EndTime)
	for i := range n.Errors {
		b = appendMessage(b, nodeError, appendError(nil, &n.Errors[i]))
	}
	for _, c := range n.Children {
		b = appendMessage(b, nodeChild, appendNode(nil, c))
	}
	b = appendString(b, nodeParentType, n.ParentType)
	if !n.IsIndex && n.FieldName != n.ResponseName {
		b = appendString(b, nodeOriginalFieldName, n.FieldName)
	}
	return b
}

func appendError(b []byte, e *Error) []byte {
	b = appendString(b, errorMessage, e.Message)
	for _, loc := range e.Locations {
		var lb []byte
		lb = appendUint(lb, locationLine, uint64(loc.Line))
		lb = appendUint(lb, locationColumn, uint64(loc.Column))
		b = appendMessage(b, errorLocation, lb)
	}
	return appendString(b, errorJSON, e.wireJSON())
}

// appendString writes a string field, omitting the empty string.
func appendString(b []byte, num protowire.Number, s string) []byte {
	if s == "" {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, s)
}

// appendUint writes a varint field, omitting zero.
func appendUint(b []byte, num protowire.Number, v uint64) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

// appendMessage writes an embedded message, which is emitted even when empty.
func appendMessage(b []byte, num protowire.Number, msg []byte) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, msg)
}
