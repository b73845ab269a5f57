package duplex

import (
	"context"
	"io"

	gderrors "github.com/vnykmshr/goduplex/pkg/common/errors"
	"github.com/vnykmshr/goduplex/pkg/metrics"
	"github.com/vnykmshr/goduplex/pkg/streaming/stream"
)

// Pull asks the readable end for more data by resuming it. It never
// produces data itself; chunks arrive through the data relay.
func (c *Composer) Pull() {
	c.mu.Lock()
	r := c.readable
	if c.destroyed {
		r = nil
	}
	c.mu.Unlock()

	if r != nil {
		r.Resume()
	}
}

func (c *Composer) onData(r stream.Readable, gen uint64, chunk []byte) {
	if len(chunk) == 0 {
		return
	}

	c.mu.Lock()
	if c.destroyed || c.eofPushed || c.rgen != gen {
		c.mu.Unlock()
		return
	}
	c.queue = append(c.queue, chunk)
	c.queued += len(chunk)
	queued := c.queued
	paused := queued >= c.config.HighWaterMark
	if paused {
		// Pause does not call back, so it is safe under the lock.
		r.Pause()
	}
	c.wakeReadersLocked()
	c.mu.Unlock()

	c.obs.relayed(metrics.DirectionIn, len(chunk))
	c.obs.queued(queued)
	if paused {
		c.obs.backpressure()
	}
}

func (c *Composer) onReadableEnd(gen uint64) {
	c.mu.Lock()
	if c.destroyed || c.rgen != gen {
		c.mu.Unlock()
		return
	}
	if c.pipeline {
		c.armed = true
	}
	closeSub := c.rsubs.closed
	c.rsubs.closed = nil
	after := c.pushEOFLocked()
	c.mu.Unlock()

	if closeSub != nil {
		closeSub.Unsubscribe()
	}
	after.run()
}

// pushEOFLocked records end-of-data once and observes it if the queue is
// already empty.
func (c *Composer) pushEOFLocked() deferred {
	if c.eofPushed {
		return nil
	}
	c.eofPushed = true
	c.wakeReadersLocked()
	return c.observeEndLocked()
}

// observeEndLocked fires end-of-data once the consumer has drained the queue.
func (c *Composer) observeEndLocked() deferred {
	if !c.eofPushed || c.endObserved || len(c.queue) > 0 || c.destroyed {
		return nil
	}
	c.endObserved = true

	after := deferred{c.obs.ended}
	if c.config.OnEnd != nil {
		after = append(after, c.config.OnEnd)
	}
	if c.armed && c.barrier.Signal() {
		after = append(after, c.completeFinalLocked()...)
	}
	return append(after, c.maybeCloseLocked()...)
}

func (c *Composer) wakeReadersLocked() {
	close(c.readWake)
	c.readWake = make(chan struct{})
}

// ReadChunk returns the next inbound chunk, blocking until one arrives. It
// returns io.EOF after end-of-data, and the terminal error (or
// errors.ErrClosed) once the composer is destroyed.
func (c *Composer) ReadChunk(ctx context.Context) ([]byte, error) {
	for {
		c.mu.Lock()
		if c.destroyed {
			err := c.closedErrLocked()
			c.mu.Unlock()
			return nil, err
		}

		if len(c.queue) > 0 {
			chunk := c.queue[0]
			c.queue[0] = nil
			c.queue = c.queue[1:]
			c.queued -= len(chunk)
			queued := c.queued
			r := c.readable
			below := queued < c.config.HighWaterMark
			after := c.observeEndLocked()
			c.mu.Unlock()

			c.obs.queued(queued)
			after.run()
			if below && r != nil {
				r.Resume()
			}
			return chunk, nil
		}

		if c.eofPushed {
			c.mu.Unlock()
			return nil, io.EOF
		}

		r := c.readable
		wake := c.readWake
		c.mu.Unlock()

		if r != nil {
			r.Resume()
		}

		select {
		case <-wake:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// ReadContext reads into p, blocking until at least one byte is available.
func (c *Composer) ReadContext(ctx context.Context, p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}

	c.readMu.Lock()
	defer c.readMu.Unlock()

	if len(c.leftover) == 0 {
		chunk, err := c.ReadChunk(ctx)
		if err != nil {
			return 0, err
		}
		c.leftover = chunk
	}

	n := copy(p, c.leftover)
	c.leftover = c.leftover[n:]
	return n, nil
}

// Read implements io.Reader.
func (c *Composer) Read(p []byte) (int, error) {
	return c.ReadContext(context.Background(), p)
}

// WriteTo implements io.WriterTo by copying every inbound chunk to w until
// end-of-data.
func (c *Composer) WriteTo(w io.Writer) (int64, error) {
	var total int64

	c.readMu.Lock()
	rest := c.leftover
	c.leftover = nil
	c.readMu.Unlock()

	if len(rest) > 0 {
		n, err := w.Write(rest)
		total += int64(n)
		if err != nil {
			return total, err
		}
	}

	for {
		chunk, err := c.ReadChunk(context.Background())
		if err == io.EOF {
			return total, nil
		}
		if err != nil {
			return total, err
		}
		n, err := w.Write(chunk)
		total += int64(n)
		if err != nil {
			return total, err
		}
	}
}

func (c *Composer) closedErrLocked() error {
	if c.err != nil {
		return c.err
	}
	return gderrors.ErrClosed
}
