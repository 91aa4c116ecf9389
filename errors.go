package fedtracez

import (
	"encoding/json"
	"errors"
)

// Location is a position in the operation document.
type Location struct {
	Line   uint32 `json:"line"`
	Column uint32 `json:"column"`
}

// Error is a resolution error as reported to the client.
// A nil Path means the error belongs to the operation as a whole.
type Error struct {
	Message    string         `json:"message"`
	Locations  []Location     `json:"locations,omitempty"`
	Path       Path           `json:"path,omitempty"`
	Extensions map[string]any `json:"extensions,omitempty"`
}

func (e *Error) Error() string {
	return e.Message
}

// AsError converts err to an *Error. Errors that wrap an *Error keep its
// path, locations and extensions; anything else keeps only its message.
// Returns nil for a nil err, including a nil *Error held in a non-nil error.
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		if e == nil {
			return nil
		}
		c := e.clone()
		return &c
	}
	return &Error{Message: err.Error()}
}

// fromService reports whether a downstream service already traced the error.
func (e *Error) fromService() bool {
	_, ok := e.Extensions["serviceName"]
	return ok
}

// wireJSON is the JSON form stored alongside the error in the trace.
// Extensions holding values JSON can't encode fall back to message-only.
func (e *Error) wireJSON() string {
	b, err := json.Marshal(e)
	if err != nil {
		b, _ = json.Marshal(Error{Message: e.Message, Locations: e.Locations, Path: e.Path}) //nolint:errcheck // plain fields always encode
	}
	return string(b)
}

func (e Error) clone() Error {
	c := e
	if e.Locations != nil {
		c.Locations = append([]Location(nil), e.Locations...)
	}
	if e.Path != nil {
		c.Path = append(Path(nil), e.Path...)
	}
	if e.Extensions != nil {
		c.Extensions = make(map[string]any, len(e.Extensions))
		for k, v := range e.Extensions {
			c.Extensions[k] = v
		}
	}
	return c
}
