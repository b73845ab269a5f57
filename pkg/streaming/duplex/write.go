package duplex

import (
	"bytes"
	"context"

	"github.com/vnykmshr/goduplex/pkg/metrics"
	"github.com/vnykmshr/goduplex/pkg/streaming/stream"
)

// TryWrite forwards chunk to the writable end without blocking.
//
// accepted is false when the end reported backpressure; the write then stays
// pending until the end drains, and further writes fail with ErrWritePending
// until WaitDrain returns. With no writable end attached the chunk is held
// and forwarded once one is attached. The chunk must not be modified after
// the call.
func (c *Composer) TryWrite(chunk []byte) (accepted bool, err error) {
	c.mu.Lock()
	switch {
	case c.destroyed:
		err := c.closedErrLocked()
		c.mu.Unlock()
		return false, err
	case c.ending:
		c.mu.Unlock()
		return false, ErrWriteAfterEnd
	case c.pending != nil:
		c.mu.Unlock()
		return false, ErrWritePending
	}

	p := &pendingWrite{done: make(chan struct{})}
	c.pending = p
	w := c.writable
	if w == nil {
		c.held = chunk
		c.mu.Unlock()
		return false, nil
	}
	c.mu.Unlock()

	return c.forward(w, p, chunk), nil
}

// forward hands chunk to w with the continuation p already installed, so a
// drain emitted from inside Write is not lost.
func (c *Composer) forward(w stream.Writable, p *pendingWrite, chunk []byte) bool {
	ok := w.Write(chunk)
	c.obs.relayed(metrics.DirectionOut, len(chunk))
	if !ok {
		return false
	}

	c.mu.Lock()
	var after deferred
	if c.pending == p {
		after = c.releaseWriteLocked(false)
	}
	c.mu.Unlock()

	after.run()
	return true
}

// WaitDrain blocks until the pending write, if any, is released. Destroying
// the composer releases it with the destruction error, which is nil after
// Close or Destroy(nil).
func (c *Composer) WaitDrain(ctx context.Context) error {
	c.mu.Lock()
	p := c.pending
	if c.destroyed {
		err := c.err
		c.mu.Unlock()
		return err
	}
	c.mu.Unlock()

	if p == nil {
		return nil
	}

	select {
	case <-p.done:
	case <-ctx.Done():
		return ctx.Err()
	}

	if p.closed {
		return c.Err()
	}
	return nil
}

// WriteContext writes p and waits for drain when the end reports
// backpressure. Concurrent callers are serialized. The data is copied, so p
// may be reused once WriteContext returns.
func (c *Composer) WriteContext(ctx context.Context, p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	accepted, err := c.TryWrite(bytes.Clone(p))
	if err != nil {
		return 0, err
	}
	if !accepted {
		if err := c.WaitDrain(ctx); err != nil {
			return len(p), err
		}
	}
	return len(p), nil
}

// Write implements io.Writer.
func (c *Composer) Write(p []byte) (int, error) {
	return c.WriteContext(context.Background(), p)
}

// End starts finalization of the write face. Without a writable end it
// completes at once; otherwise the end is ended and the composer finalizes
// when it finishes (and, in pipeline mode, once the consumer has also read
// end-of-data). An End issued while a write is pending starts when that
// write is released.
func (c *Composer) End() {
	c.mu.Lock()
	if c.destroyed || c.ending {
		c.mu.Unlock()
		return
	}
	c.ending = true
	var after deferred
	if c.pending != nil {
		c.endDeferred = true
	} else {
		after = c.finalLocked()
	}
	c.mu.Unlock()

	c.obs.ending()
	after.run()
}

// CloseWrite is End under the name used by net.TCPConn and friends.
func (c *Composer) CloseWrite() error {
	c.End()
	return nil
}

// Finished returns a channel closed when the write face finalizes cleanly.
func (c *Composer) Finished() <-chan struct{} {
	return c.finishedCh
}

func (c *Composer) finalLocked() deferred {
	c.finalPending = true
	if c.writable == nil || c.finalReady {
		return c.completeFinalLocked()
	}
	return deferred{c.writable.End}
}

// completeFinalLocked releases the final continuation with no error. If
// finalization was not requested yet, the next End completes immediately.
func (c *Composer) completeFinalLocked() deferred {
	if c.finished || c.destroyed {
		return nil
	}
	if !c.finalPending {
		c.finalReady = true
		return nil
	}
	c.finalPending = false
	c.finished = true
	close(c.finishedCh)

	after := deferred{c.obs.finalized}
	if c.config.OnFinish != nil {
		after = append(after, c.config.OnFinish)
	}
	return append(after, c.maybeCloseLocked()...)
}

// releaseWriteLocked resolves the pending write continuation and starts a
// deferred End, if one was requested meanwhile.
func (c *Composer) releaseWriteLocked(closed bool) deferred {
	p := c.pending
	c.pending = nil
	c.held = nil
	if p != nil {
		p.closed = closed
		close(p.done)
	}
	if c.endDeferred && !c.destroyed {
		c.endDeferred = false
		return c.finalLocked()
	}
	return nil
}

func (c *Composer) onDrain(gen uint64) {
	c.mu.Lock()
	if c.destroyed || c.wgen != gen {
		c.mu.Unlock()
		return
	}
	released := c.pending != nil && c.held == nil
	var after deferred
	if released {
		after = c.releaseWriteLocked(false)
	}
	c.mu.Unlock()

	if released {
		c.obs.drained()
	}
	after.run()
}

func (c *Composer) onFinish(gen uint64) {
	c.mu.Lock()
	if c.destroyed || c.wgen != gen {
		c.mu.Unlock()
		return
	}
	closeSub := c.wsubs.closed
	c.wsubs.closed = nil

	var after deferred
	awaiting := 0
	if c.pipeline {
		if c.barrier.Signal() {
			after = c.completeFinalLocked()
		}
		awaiting = c.barrier.Remaining()
	} else {
		after = c.completeFinalLocked()
	}
	c.mu.Unlock()

	if closeSub != nil {
		closeSub.Unsubscribe()
	}
	c.obs.writableFinished(awaiting)
	after.run()
}
