package upload

import (
	"io"
	"sync"

	"github.com/zaharov-labs/stackhub/apierr"
)

// monitoredReader wraps an upload's source stream, counting bytes as
// they pass through and aborting the read with a PayloadTooLargeError
// the instant the running total exceeds limit (§4.5 step 8). done is
// closed exactly once, when the stream reaches a terminal state (EOF
// or error), so a second goroutine can await the pass-through's
// completion without reading from src a second time.
type monitoredReader struct {
	src   io.Reader
	limit int64

	mu     sync.Mutex
	read   int64
	err    error // terminal error, nil on a clean EOF
	closed bool
	done   chan struct{}
}

func newMonitoredReader(src io.Reader, limit int64) *monitoredReader {
	return &monitoredReader{src: src, limit: limit, done: make(chan struct{})}
}

func (m *monitoredReader) Read(p []byte) (int, error) {
	m.mu.Lock()
	if m.closed {
		err := m.err
		m.mu.Unlock()
		if err == nil {
			return 0, io.EOF
		}
		return 0, err
	}
	m.mu.Unlock()

	n, srcErr := m.src.Read(p)

	m.mu.Lock()
	defer m.mu.Unlock()
	if n > 0 {
		m.read += int64(n)
		if m.read > m.limit {
			m.finishLocked(&apierr.PayloadTooLargeError{Msg: "upload exceeded the maximum allowed size"})
			return 0, m.err
		}
	}
	if srcErr != nil {
		if srcErr == io.EOF {
			m.finishLocked(nil)
		} else {
			m.finishLocked(srcErr)
		}
	}
	return n, srcErr
}

// finishLocked marks the stream terminal and closes done. Callers must
// hold m.mu.
func (m *monitoredReader) finishLocked(err error) {
	if m.closed {
		return
	}
	m.err = err
	m.closed = true
	close(m.done)
}

// wait blocks until the stream reaches a terminal state and reports its
// error, if any.
func (m *monitoredReader) wait(stop <-chan struct{}) error {
	select {
	case <-m.done:
		m.mu.Lock()
		defer m.mu.Unlock()
		return m.err
	case <-stop:
		return nil
	}
}

// bytesRead reports the total accepted so far.
func (m *monitoredReader) bytesRead() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.read
}

// terminalErr reports the stream's error if it has already reached a
// terminal state, or nil if it hasn't finished yet or finished cleanly.
func (m *monitoredReader) terminalErr() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return m.err
	}
	return nil
}
