package fedtracez

import (
	"encoding/base64"
	"fmt"
	"net/http"
)

// TransportRecord is the value published under FormatKey in a response.
type TransportRecord struct {
	Trace      string `json:"t"`
	DurationNs uint64 `json:"d"`
}

// ToTransportRecord wraps an encoded tree and the session duration.
func ToTransportRecord(durationNs uint64, encoded []byte) TransportRecord {
	return TransportRecord{
		DurationNs: durationNs,
		Trace:      base64.StdEncoding.EncodeToString(encoded),
	}
}

// Decode reverses ToTransportRecord and parses the tree.
func (r TransportRecord) Decode() (*Node, error) {
	raw, err := base64.StdEncoding.DecodeString(r.Trace)
	if err != nil {
		return nil, fmt.Errorf("%w: base64: %w", ErrMalformed, err)
	}
	return DecodeNode(raw)
}

// Enabled reports whether the request asked for an ftv1 trace.
func Enabled(h http.Header) bool {
	return h.Get(HeaderName) == FormatKey
}
