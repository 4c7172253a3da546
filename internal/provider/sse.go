package provider

import (
	"bufio"
	"io"
	"strings"
)

// sseScanner reads data lines from a Server-Sent Events stream.
type sseScanner struct {
	scanner *bufio.Scanner
}

func newSSEScanner(r io.Reader) *sseScanner {
	sc := bufio.NewScanner(r)
	// Provider chunks can exceed the default 64K token, in particular when a
	// whole tool call's arguments arrive in one event.
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	return &sseScanner{scanner: sc}
}

// Next returns the payload of the next "data:" line, or ok=false at stream end.
// Comment lines and other SSE fields are skipped.
func (s *sseScanner) Next() (data string, ok bool) {
	for s.scanner.Scan() {
		line := s.scanner.Text()
		if strings.HasPrefix(line, "data:") {
			return strings.TrimSpace(strings.TrimPrefix(line, "data:")), true
		}
	}
	return "", false
}

// Err reports any scanning failure other than io.EOF.
func (s *sseScanner) Err() error {
	return s.scanner.Err()
}
