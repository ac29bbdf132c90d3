package httpclient

import "fmt"

// UpstreamError is a non-2xx answer from the routing proxy. The body is
// kept verbatim so callers can decide whether the status is retryable.
type UpstreamError struct {
	StatusCode int
	Body       []byte
	URL        string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream error: status %d from %s", e.StatusCode, e.URL)
}
