package testutil

import (
	"bytes"
	"errors"
	"sync"
	"time"
)

// ErrSimulated is returned by MockWriter when SetErrorOnNth triggers.
var ErrSimulated = errors.New("simulated error")

// MockWriter is the underlying io.Writer behind sinks under test. It
// records each Write as one chunk and can delay, fail, block or be closed.
type MockWriter struct {
	buf         *bytes.Buffer
	mu          sync.Mutex
	writeDelay  time.Duration
	errorOnNth  int
	writeCount  int
	shouldError bool
	err         error
	closed      bool
	gate        chan struct{}
	chunks      []string
}

// NewMockWriter creates a new MockWriter.
func NewMockWriter() *MockWriter {
	return &MockWriter{
		buf: &bytes.Buffer{},
	}
}

// Write waits while held, then applies the configured delay and failures.
func (mw *MockWriter) Write(p []byte) (int, error) {
	mw.mu.Lock()
	gate := mw.gate
	mw.mu.Unlock()
	if gate != nil {
		<-gate
	}

	mw.mu.Lock()
	defer mw.mu.Unlock()

	mw.writeCount++

	if mw.writeDelay > 0 {
		time.Sleep(mw.writeDelay)
	}

	if mw.shouldError {
		return 0, mw.err
	}

	if mw.errorOnNth > 0 && mw.writeCount == mw.errorOnNth {
		return 0, ErrSimulated
	}

	mw.chunks = append(mw.chunks, string(p))
	return mw.buf.Write(p)
}

// Chunks returns the successful writes in order, one entry per Write call.
func (mw *MockWriter) Chunks() []string {
	mw.mu.Lock()
	defer mw.mu.Unlock()
	out := make([]string, len(mw.chunks))
	copy(out, mw.chunks)
	return out
}

// String returns the current buffer contents.
func (mw *MockWriter) String() string {
	mw.mu.Lock()
	defer mw.mu.Unlock()
	return mw.buf.String()
}

// Len returns the current buffer length.
func (mw *MockWriter) Len() int {
	mw.mu.Lock()
	defer mw.mu.Unlock()
	return mw.buf.Len()
}

// WriteCount returns the number of Write calls.
func (mw *MockWriter) WriteCount() int {
	mw.mu.Lock()
	defer mw.mu.Unlock()
	return mw.writeCount
}

// SetWriteDelay configures a delay for each write operation.
func (mw *MockWriter) SetWriteDelay(delay time.Duration) {
	mw.mu.Lock()
	defer mw.mu.Unlock()
	mw.writeDelay = delay
}

// SetErrorOnNth configures the writer to error on the nth write.
func (mw *MockWriter) SetErrorOnNth(n int) {
	mw.mu.Lock()
	defer mw.mu.Unlock()
	mw.errorOnNth = n
}

// SetAlwaysError configures the writer to always return the given error.
func (mw *MockWriter) SetAlwaysError(err error) {
	mw.mu.Lock()
	defer mw.mu.Unlock()
	mw.shouldError = true
	mw.err = err
}

// Hold makes subsequent writes block until Release is called.
func (mw *MockWriter) Hold() {
	mw.mu.Lock()
	defer mw.mu.Unlock()
	if mw.gate == nil {
		mw.gate = make(chan struct{})
	}
}

// Release unblocks writes held by Hold.
func (mw *MockWriter) Release() {
	mw.mu.Lock()
	defer mw.mu.Unlock()
	if mw.gate != nil {
		close(mw.gate)
		mw.gate = nil
	}
}

// Close implements io.Closer and records the call.
func (mw *MockWriter) Close() error {
	mw.mu.Lock()
	defer mw.mu.Unlock()
	mw.closed = true
	return nil
}

// Closed reports whether Close was called.
func (mw *MockWriter) Closed() bool {
	mw.mu.Lock()
	defer mw.mu.Unlock()
	return mw.closed
}
