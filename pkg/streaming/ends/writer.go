package ends

import (
	"bytes"
	"context"
	"io"
	"sync"
	"time"

	gdcontext "github.com/vnykmshr/goduplex/pkg/common/context"
	gderrors "github.com/vnykmshr/goduplex/pkg/common/errors"
)

// Stats holds statistics about a Sink.
type Stats struct {
	// BytesWritten is the total number of bytes handed to the underlying writer.
	BytesWritten int64

	// WriteCount is the total number of chunks accepted by Write.
	WriteCount int64

	// FlushCount is the total number of chunks flushed to the underlying writer.
	FlushCount int64

	// ErrorCount is the total number of write errors, retried ones included.
	ErrorCount int64

	// RetryCount is the number of retried write attempts.
	RetryCount int64

	// AverageWriteTime is the average time per flushed chunk.
	AverageWriteTime time.Duration

	// TotalWriteTime is the total time spent in the underlying writer.
	TotalWriteTime time.Duration

	// LastWriteTime is the timestamp of the last flushed chunk.
	LastWriteTime time.Time

	// Buffered is the number of accepted bytes not yet written.
	Buffered int
}

// Sink is a writable-only end that hands chunks to an io.Writer on a
// background goroutine. Write reports false once the unwritten bytes reach
// the high-water mark; drain follows when the writer catches up.
type Sink struct {
	*core
	underlying io.Writer
	config     WriterConfig

	bufMu    sync.Mutex
	pending  [][]byte
	buffered int

	kick    chan struct{}
	flushCh chan chan error
	endCh   chan struct{}
	done    chan struct{}

	ctx    context.Context
	cancel context.CancelFunc

	closeOnce sync.Once
	closeErr  error

	stats   Stats
	statsMu sync.RWMutex
}

// WriterSink creates a sink writing to w.
func WriterSink(w io.Writer, config WriterConfig) *Sink {
	if config.MaxRetries < 0 {
		config.MaxRetries = DefaultWriterConfig().MaxRetries
	}
	if config.RetryDelay <= 0 {
		config.RetryDelay = DefaultWriterConfig().RetryDelay
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Sink{
		core:       newCore("writer", config.Config, false, true),
		underlying: w,
		config:     config,
		kick:       make(chan struct{}, 1),
		flushCh:    make(chan chan error, 10),
		endCh:      make(chan struct{}),
		done:       make(chan struct{}),
		ctx:        ctx,
		cancel:     cancel,
	}
	s.onDestroy = func(error) {
		s.cancel()
		s.bufMu.Lock()
		s.pending = nil
		s.buffered = 0
		s.bufMu.Unlock()
	}

	go s.writerLoop()
	return s
}

// Write queues a copy of chunk for the background writer.
func (s *Sink) Write(chunk []byte) bool {
	if !s.checkWrite() {
		return false
	}
	if len(chunk) == 0 {
		return true
	}

	s.bufMu.Lock()
	s.pending = append(s.pending, bytes.Clone(chunk))
	s.buffered += len(chunk)
	over := s.buffered >= s.hwm
	if over {
		s.requestDrain()
	}
	s.bufMu.Unlock()

	s.updateStats(func(st *Stats) {
		st.WriteCount++
	})
	if s.metrics != nil {
		s.metrics.EndChunks.WithLabelValues(s.kind, s.name).Inc()
	}

	select {
	case s.kick <- struct{}{}:
	default:
	}
	return !over
}

// End flushes the remaining chunks, optionally flushes and closes the
// underlying writer, and then emits finish and close.
func (s *Sink) End() {
	if !s.beginEnd() {
		return
	}
	s.log.Debug().Msg("end requested")
	close(s.endCh)
}

// Flush blocks until every chunk accepted so far reached the underlying
// writer or ctx is done.
func (s *Sink) Flush(ctx context.Context) error {
	if s.IsDestroyed() {
		return gderrors.ErrClosed
	}

	done := make(chan error, 1)

	select {
	case s.flushCh <- done:
	case <-ctx.Done():
		return ctx.Err()
	case <-s.done:
		return gderrors.ErrClosed
	}

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-s.done:
		return gderrors.ErrClosed
	}
}

// Done is closed when the background writer has stopped.
func (s *Sink) Done() <-chan struct{} {
	return s.done
}

// Stats returns statistics about the sink.
func (s *Sink) Stats() Stats {
	s.statsMu.RLock()
	stats := s.stats
	s.statsMu.RUnlock()

	if stats.FlushCount > 0 {
		stats.AverageWriteTime = time.Duration(int64(stats.TotalWriteTime) / stats.FlushCount)
	}

	s.bufMu.Lock()
	stats.Buffered = s.buffered
	s.bufMu.Unlock()
	return stats
}

func (s *Sink) writerLoop() {
	defer close(s.done)
	defer func() { _ = s.closeUnderlying() }()

	for {
		select {
		case <-s.kick:
			if err := s.flushPending(); err != nil {
				s.fail(err)
				return
			}

		case done := <-s.flushCh:
			err := s.flushPending()
			done <- err
			if err != nil {
				s.fail(err)
				return
			}

		case <-s.endCh:
			err := s.flushPending()
			if err == nil {
				err = s.finishUnderlying()
			}
			if err != nil {
				s.fail(err)
				return
			}
			s.emitFinish()
			return

		case <-s.ctx.Done():
			return
		}
	}
}

// flushPending writes queued chunks in order until none are left.
func (s *Sink) flushPending() error {
	for {
		if err := s.ctx.Err(); err != nil {
			return err
		}

		s.bufMu.Lock()
		if len(s.pending) == 0 {
			s.bufMu.Unlock()
			return nil
		}
		chunk := s.pending[0]
		s.pending[0] = nil
		s.pending = s.pending[1:]
		s.bufMu.Unlock()

		startTime := time.Now()
		n, err := s.writeWithRetries(chunk)
		duration := time.Since(startTime)

		s.updateStats(func(st *Stats) {
			st.FlushCount++
			st.BytesWritten += int64(n)
			st.TotalWriteTime += duration
			st.LastWriteTime = time.Now()
		})
		if s.metrics != nil {
			s.metrics.WriterFlushes.WithLabelValues(s.name).Inc()
			s.metrics.WriterBytesWritten.WithLabelValues(s.name).Add(float64(n))
		}
		if s.config.OnFlush != nil {
			s.config.OnFlush(n, duration)
		}

		s.bufMu.Lock()
		s.buffered -= len(chunk)
		below := s.buffered < s.hwm
		s.bufMu.Unlock()

		if err != nil {
			return err
		}
		if below {
			s.releaseDrain()
		}
	}
}

// writeWithRetries writes data with retry logic. Short writes continue from
// the first unwritten byte.
func (s *Sink) writeWithRetries(data []byte) (int, error) {
	var totalWritten int
	var lastErr error

	for attempt := 0; attempt <= s.config.MaxRetries; attempt++ {
		if attempt > 0 {
			s.updateStats(func(st *Stats) {
				st.RetryCount++
			})
			if s.metrics != nil {
				s.metrics.WriterRetries.WithLabelValues(s.name).Inc()
			}
			if err := gdcontext.Sleep(s.ctx, s.config.RetryDelay); err != nil {
				return totalWritten, err
			}
		}

		written, err := s.underlying.Write(data[totalWritten:])
		totalWritten += written

		if err != nil {
			lastErr = err
			s.updateStats(func(st *Stats) {
				st.ErrorCount++
			})
			if s.config.OnError != nil {
				s.config.OnError(err)
			}
			continue
		}

		if totalWritten >= len(data) {
			return totalWritten, nil
		}
		lastErr = io.ErrShortWrite
	}

	return totalWritten, lastErr
}

// finishUnderlying flushes a buffered underlying writer and closes it when
// configured to.
func (s *Sink) finishUnderlying() error {
	if f, ok := s.underlying.(interface{ Flush() error }); ok {
		if err := f.Flush(); err != nil {
			return err
		}
	}
	return s.closeUnderlying()
}

func (s *Sink) closeUnderlying() error {
	if !s.config.CloseUnderlying {
		return nil
	}
	s.closeOnce.Do(func() {
		if c, ok := s.underlying.(io.Closer); ok {
			s.closeErr = c.Close()
		}
	})
	return s.closeErr
}

func (s *Sink) fail(err error) {
	if s.IsDestroyed() {
		return
	}
	s.log.Debug().Err(err).Msg("write failed")
	s.Destroy(err)
}

// updateStats safely updates statistics.
func (s *Sink) updateStats(updater func(*Stats)) {
	s.statsMu.Lock()
	defer s.statsMu.Unlock()
	updater(&s.stats)
}
