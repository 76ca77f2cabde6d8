// Package idx mints the ULIDs that correlate log lines of one request.
package idx

import (
	"crypto/rand"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

const maxRequestIDLength = 64

var (
	mu      sync.Mutex
	entropy io.Reader = ulid.Monotonic(rand.Reader, 0)
)

// New returns a ULID for the current time. IDs from one process sort in
// creation order.
func New() string {
	return NewAt(time.Now())
}

// NewAt returns a ULID carrying t.
func NewAt(t time.Time) string {
	mu.Lock()
	defer mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(t), entropy).String()
}

// Valid reports whether s is a canonical ULID.
func Valid(s string) bool {
	_, err := ulid.ParseStrict(s)
	return err == nil
}

// RequestID keeps a caller-supplied X-Request-ID when it is short and
// printable ASCII, and mints a fresh ULID otherwise.
func RequestID(supplied string) string {
	supplied = strings.TrimSpace(supplied)
	if supplied == "" || len(supplied) > maxRequestIDLength {
		return New()
	}
	if strings.IndexFunc(supplied, func(r rune) bool { return r < '!' || r > '~' }) >= 0 {
		return New()
	}
	return supplied
}
