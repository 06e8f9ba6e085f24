package runner

import (
	"strings"
	"sync"
)

// transientPattern maps an output pattern to a failure classification.
type transientPattern struct {
	pattern string
	reason  string
}

// Patterns that mark a snippet failure as network-transient. These cover
// the remote service's throttling and availability responses plus plain
// connection drops; anything else is a client/application error and is
// never retried.
var transientPatterns = []transientPattern{
	{"status code: 429", "remote 429"},
	{"too many requests", "remote 429"},
	{"rate limit", "remote 429"},
	{"status code: 500", "remote 5xx"},
	{"status code: 502", "remote 5xx"},
	{"status code: 503", "remote 5xx"},
	{"status code: 504", "remote 5xx"},
	{"internal server error", "remote 5xx"},
	{"bad gateway", "remote 5xx"},
	{"service unavailable", "remote 5xx"},
	{"gateway timeout", "remote 5xx"},
	{"connection reset by peer", "connection reset"},
	{"connection refused", "connection refused"},
	{"unexpected eof", "connection dropped"},
	{"tls handshake timeout", "TLS handshake timeout"},
}

// IsTransient reports whether a failure reason warrants a retry.
func IsTransient(reason string) bool {
	switch reason {
	case "remote 429", "remote 5xx", "connection reset", "connection refused",
		"connection dropped", "TLS handshake timeout":
		return true
	}
	return false
}

// transientWriter captures subprocess output up to a byte limit and scans
// each write for transient-failure signals. All data is counted; only the
// head is retained.
type transientWriter struct {
	buf      strings.Builder
	limit    int
	detected bool
	reason   string
	mu       sync.Mutex
}

func newTransientWriter(limit int) *transientWriter {
	return &transientWriter{limit: limit}
}

func (w *transientWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if remaining := w.limit - w.buf.Len(); remaining > 0 {
		if len(p) <= remaining {
			w.buf.Write(p)
		} else {
			w.buf.Write(p[:remaining])
		}
	}

	if !w.detected {
		lower := strings.ToLower(string(p))
		for _, tp := range transientPatterns {
			if strings.Contains(lower, tp.pattern) {
				w.detected = true
				w.reason = tp.reason
				break
			}
		}
	}

	return len(p), nil
}

func (w *transientWriter) String() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.buf.String()
}

// TransientReason returns the detected classification, or "" if none.
func (w *transientWriter) TransientReason() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.reason
}
