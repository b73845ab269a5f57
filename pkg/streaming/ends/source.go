package ends

import (
	"context"
	"errors"
	"io"
	"sync"
)

// Source is a readable-only end fed by a producer.
type Source struct {
	*core
	done chan struct{}
}

func newSource(kind string, config Config) *Source {
	return &Source{
		core: newCore(kind, config, true, false),
		done: make(chan struct{}),
	}
}

// Done is closed when the producer behind the source has stopped.
func (s *Source) Done() <-chan struct{} {
	return s.done
}

// SliceSource creates a source that emits chunks in order and then ends.
func SliceSource(chunks ...[]byte) *Source {
	return SliceSourceWithConfig(DefaultConfig(), chunks...)
}

// SliceSourceWithConfig is SliceSource with an explicit configuration.
func SliceSourceWithConfig(config Config, chunks ...[]byte) *Source {
	s := newSource("slice", config)
	for _, chunk := range chunks {
		s.enqueue(chunk)
	}
	s.pushEnd()
	close(s.done)
	return s
}

// StringSource creates a source emitting each string as one chunk.
func StringSource(parts ...string) *Source {
	chunks := make([][]byte, len(parts))
	for i, p := range parts {
		chunks[i] = []byte(p)
	}
	return SliceSource(chunks...)
}

// ReaderSource creates a source that reads r in ChunkSize blocks on a
// background goroutine. Reading stops while the queue is at the high-water
// mark. io.EOF ends the source; any other error destroys it. Destroying
// the source cancels the context handed to the pump.
func ReaderSource(ctx context.Context, r io.Reader, config Config) *Source {
	return readerSource(ctx, r, config, false)
}

// ReadCloserSource is ReaderSource that closes rc when the source stops.
func ReadCloserSource(ctx context.Context, rc io.ReadCloser, config Config) *Source {
	return readerSource(ctx, rc, config, true)
}

func readerSource(ctx context.Context, r io.Reader, config Config, closeReader bool) *Source {
	s := newSource("reader", config)
	chunkSize := config.withDefaults("reader").ChunkSize

	ctx, cancel := context.WithCancel(ctx)
	var closeOnce sync.Once
	release := func() {
		cancel()
		if !closeReader {
			return
		}
		if c, ok := r.(io.Closer); ok {
			// Closing unblocks a pending Read.
			closeOnce.Do(func() { _ = c.Close() })
		}
	}
	s.onDestroy = func(error) { release() }

	go func() {
		defer close(s.done)
		defer release()
		s.pump(ctx, r, chunkSize)
	}()
	return s
}

func (s *Source) pump(ctx context.Context, r io.Reader, chunkSize int) {
	for {
		if err := s.waitSpace(ctx); err != nil {
			if !s.IsDestroyed() {
				s.Destroy(err)
			}
			return
		}

		buf := make([]byte, chunkSize)
		n, err := r.Read(buf)
		if n > 0 {
			s.push(buf[:n])
		}

		switch {
		case errors.Is(err, io.EOF):
			s.log.Debug().Msg("reader exhausted")
			s.pushEnd()
			return
		case err != nil:
			if ctx.Err() != nil && s.IsDestroyed() {
				return
			}
			s.Destroy(err)
			return
		}
	}
}

// ChannelSource creates a source fed by ch. Closing ch ends the source;
// canceling ctx destroys it with ctx.Err(). Receiving stops while the queue
// is at the high-water mark.
func ChannelSource(ctx context.Context, ch <-chan []byte, config Config) *Source {
	s := newSource("channel", config)
	ctx, cancel := context.WithCancel(ctx)
	s.onDestroy = func(error) { cancel() }

	go func() {
		defer close(s.done)
		defer cancel()
		s.receive(ctx, ch)
	}()
	return s
}

func (s *Source) receive(ctx context.Context, ch <-chan []byte) {
	for {
		if err := s.waitSpace(ctx); err != nil {
			if !s.IsDestroyed() {
				s.Destroy(err)
			}
			return
		}

		select {
		case chunk, ok := <-ch:
			if !ok {
				s.log.Debug().Msg("channel closed")
				s.pushEnd()
				return
			}
			s.push(chunk)
		case <-ctx.Done():
			if !s.IsDestroyed() {
				s.Destroy(ctx.Err())
			}
			return
		}
	}
}
