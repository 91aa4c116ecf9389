package fedtracez

import (
	"encoding/json"
	"errors"
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// ErrMalformed is returned when a buffer isn't a valid Trace.Node message.
var ErrMalformed = errors.New("fedtracez: malformed trace")

// DecodeNode parses a Trace.Node message produced by Encode.
// Unknown fields are skipped. Fields the encoder omits for zero values
// decode as zero, and a node's field name falls back to its response name.
func DecodeNode(b []byte) (*Node, error) {
	n := &Node{}
	hasFieldName := false
	for len(b) > 0 {
		num, typ, tagLen := protowire.ConsumeTag(b)
		if tagLen < 0 {
			return nil, malformed("node tag", protowire.ParseError(tagLen))
		}
		b = b[tagLen:]

		var m int
		switch {
		case num == nodeResponseName && typ == protowire.BytesType:
			n.ResponseName, m = protowire.ConsumeString(b)
		case num == nodeIndex && typ == protowire.VarintType:
			var v uint64
			v, m = protowire.ConsumeVarint(b)
			n.Index, n.IsIndex = uint32(v), true //nolint:gosec // index is a uint32 on the wire
		case num == nodeType && typ == protowire.BytesType:
			n.Type, m = protowire.ConsumeString(b)
		case num == nodeStartTime && typ == protowire.VarintType:
			n.StartTime, m = protowire.ConsumeVarint(b)
		case num == nodeEndTime && typ == protowire.VarintType:
			n.EndTime, m = protowire.ConsumeVarint(b)
		case num == nodeParentType && typ == protowire.BytesType:
			n.ParentType, m = protowire.ConsumeString(b)
		case num == nodeOriginalFieldName && typ == protowire.BytesType:
			n.FieldName, m = protowire.ConsumeString(b)
			hasFieldName = true
		case num == nodeError && typ == protowire.BytesType:
			var raw []byte
			raw, m = protowire.ConsumeBytes(b)
			if m >= 0 {
				e, err := decodeError(raw)
				if err != nil {
					return nil, err
				}
				n.Errors = append(n.Errors, e)
			}
		case num == nodeChild && typ == protowire.BytesType:
			var raw []byte
			raw, m = protowire.ConsumeBytes(b)
			if m >= 0 {
				c, err := DecodeNode(raw)
				if err != nil {
					return nil, err
				}
				n.addChild(c)
			}
		default:
			m = protowire.ConsumeFieldValue(num, typ, b)
		}
		if m < 0 {
			return nil, malformed(fmt.Sprintf("node field %d", num), protowire.ParseError(m))
		}
		b = b[m:]
	}
	if !hasFieldName && !n.IsIndex {
		n.FieldName = n.ResponseName
	}
	return n, nil
}

func decodeError(b []byte) (Error, error) {
	var (
		e       Error
		rawJSON string
	)
	for len(b) > 0 {
		num, typ, tagLen := protowire.ConsumeTag(b)
		if tagLen < 0 {
			return Error{}, malformed("error tag", protowire.ParseError(tagLen))
		}
		b = b[tagLen:]

		var m int
		switch {
		case num == errorMessage && typ == protowire.BytesType:
			e.Message, m = protowire.ConsumeString(b)
		case num == errorLocation && typ == protowire.BytesType:
			var raw []byte
			raw, m = protowire.ConsumeBytes(b)
			if m >= 0 {
				loc, err := decodeLocation(raw)
				if err != nil {
					return Error{}, err
				}
				e.Locations = append(e.Locations, loc)
			}
		case num == errorJSON && typ == protowire.BytesType:
			rawJSON, m = protowire.ConsumeString(b)
		default:
			m = protowire.ConsumeFieldValue(num, typ, b)
		}
		if m < 0 {
			return Error{}, malformed(fmt.Sprintf("error field %d", num), protowire.ParseError(m))
		}
		b = b[m:]
	}

	// The JSON form carries the path and extensions the wire fields lack.
	if rawJSON != "" {
		var full Error
		if err := json.Unmarshal([]byte(rawJSON), &full); err != nil {
			return Error{}, malformed("error json", err)
		}
		e.Path = full.Path
		e.Extensions = full.Extensions
	}
	return e, nil
}

func decodeLocation(b []byte) (Location, error) {
	var loc Location
	for len(b) > 0 {
		num, typ, tagLen := protowire.ConsumeTag(b)
		if tagLen < 0 {
			return Location{}, malformed("location tag", protowire.ParseError(tagLen))
		}
		b = b[tagLen:]

		var (
			v uint64
			m int
		)
		switch {
		case num == locationLine && typ == protowire.VarintType:
			v, m = protowire.ConsumeVarint(b)
			loc.Line = uint32(v) //nolint:gosec // uint32 on the wire
		case num == locationColumn && typ == protowire.VarintType:
			v, m = protowire.ConsumeVarint(b)
			loc.Column = uint32(v) //nolint:gosec // uint32 on the wire
		default:
			m = protowire.ConsumeFieldValue(num, typ, b)
		}
		if m < 0 {
			return Location{}, malformed(fmt.Sprintf("location field %d", num), protowire.ParseError(m))
		}
		b = b[m:]
	}
	return loc, nil
}

func malformed(where string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrMalformed, where, err)
}
