package fetcher

import (
	"errors"
	"fmt"
)

// Endpoint names the upstream route a request was sent to.
type Endpoint string

const (
	// EndpointXML serves the document XML once the upstream has it cached.
	EndpointXML Endpoint = "xml"
	// EndpointData makes the upstream materialize a document it has not cached yet.
	EndpointData Endpoint = "data"
)

// UpstreamError reports a non-2xx answer from the document service that the
// fetch protocol could not recover from.
type UpstreamError struct {
	Endpoint Endpoint
	Status   int
	// Primed is true when the failure happened after the priming step.
	Primed bool
}

func (e *UpstreamError) Error() string {
	if e.Primed {
		return fmt.Sprintf("document service %s endpoint returned %d after priming", e.Endpoint, e.Status)
	}
	return fmt.Sprintf("document service %s endpoint returned %d", e.Endpoint, e.Status)
}

// TransportError wraps a failure to complete the HTTP round trip at all
// (DNS, connection refused, context deadline, oversize body).
type TransportError struct {
	Endpoint Endpoint
	Err      error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("document service %s endpoint: %v", e.Endpoint, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// ErrBodyTooLarge is wrapped in a TransportError when a response exceeds the
// configured body limit.
var ErrBodyTooLarge = errors.New("response body exceeds limit")

// UpstreamStatus returns the HTTP status carried by err, or 0 when err is
// not an UpstreamError.
func UpstreamStatus(err error) int {
	var ue *UpstreamError
	if errors.As(err, &ue) {
		return ue.Status
	}
	return 0
}
