package ends

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	gdcontext "github.com/vnykmshr/goduplex/pkg/common/context"
	gderrors "github.com/vnykmshr/goduplex/pkg/common/errors"
	"github.com/vnykmshr/goduplex/pkg/metrics"
	"github.com/vnykmshr/goduplex/pkg/streaming/stream"
)

// core carries the signals and lifecycle shared by the concrete ends.
//
// The readable half keeps a byte-bounded queue that is flushed to data
// listeners while flowing. The writable half tracks ending, finish and the
// pending drain. Close is emitted once every present half is done, or on
// Destroy.
type core struct {
	kind    string
	name    string
	log     zerolog.Logger
	metrics *metrics.Registry
	hwm     int

	hasReadable bool
	hasWritable bool

	mu sync.Mutex

	// readable half
	queue      [][]byte
	size       int
	paused     bool
	ended      bool
	endEmitted bool
	flushing   bool
	space      chan struct{}

	// writable half
	needDrain bool
	ending    bool
	finished  bool

	destroyed    bool
	closeEmitted bool
	onDestroy    func(err error)

	data                       stream.Signal[[]byte]
	errs                       stream.Signal[error]
	end, drain, finish, closed stream.Notify
}

func newCore(kind string, config Config, readable, writable bool) *core {
	config = config.withDefaults(kind)
	log := zerolog.Nop()
	if config.Logger != nil {
		log = config.Logger.With().Str("end", kind).Str("end_name", config.Name).Logger()
	}
	return &core{
		kind:        kind,
		name:        config.Name,
		log:         log,
		metrics:     config.Metrics,
		hwm:         config.HighWaterMark,
		hasReadable: readable,
		hasWritable: writable,
		paused:      true,
		space:       make(chan struct{}),
	}
}

// OnData registers fn for every chunk emitted while flowing.
func (c *core) OnData(fn func(chunk []byte)) stream.Subscription { return c.data.Subscribe(fn) }

// OnEnd registers fn for the end of data.
func (c *core) OnEnd(fn func()) stream.Subscription { return c.end.Subscribe(fn) }

// OnError registers fn for the error the end is destroyed with.
func (c *core) OnError(fn func(err error)) stream.Subscription { return c.errs.Subscribe(fn) }

// OnClose registers fn for the final close signal.
func (c *core) OnClose(fn func()) stream.Subscription { return c.closed.Subscribe(fn) }

// OnDrain registers fn for drain after Write reported false.
func (c *core) OnDrain(fn func()) stream.Subscription { return c.drain.Subscribe(fn) }

// OnFinish registers fn for the point where every accepted chunk was consumed after End.
func (c *core) OnFinish(fn func()) stream.Subscription { return c.finish.Subscribe(fn) }

// Pause stops data emission. It never emits signals.
func (c *core) Pause() {
	c.mu.Lock()
	c.paused = true
	c.mu.Unlock()
}

// Resume switches to flowing mode and flushes buffered chunks.
func (c *core) Resume() {
	c.mu.Lock()
	c.paused = false
	c.mu.Unlock()
	c.flush()
}

// IsPaused reports whether data emission is paused.
func (c *core) IsPaused() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.paused
}

// Buffered returns the number of bytes waiting in the readable queue.
func (c *core) Buffered() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.size
}

// Destroy tears the end down, emitting err (if any) and then close.
func (c *core) Destroy(err error) {
	c.mu.Lock()
	if c.destroyed {
		c.mu.Unlock()
		return
	}
	c.markDestroyedLocked()
	c.queue = nil
	c.size = 0
	c.mu.Unlock()

	if c.onDestroy != nil {
		c.onDestroy(err)
	}
	if err != nil {
		if c.metrics != nil {
			c.metrics.EndErrors.WithLabelValues(c.kind, c.name).Inc()
		}
		c.log.Debug().Err(err).Msg("end destroyed")
		c.errs.Emit(err)
	}
	c.emitClose()
}

// IsDestroyed reports whether the end was destroyed or closed.
func (c *core) IsDestroyed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.destroyed
}

func (c *core) markDestroyedLocked() {
	if !c.destroyed {
		c.destroyed = true
		close(c.space)
	}
}

func (c *core) emitClose() {
	c.mu.Lock()
	if c.closeEmitted {
		c.mu.Unlock()
		return
	}
	c.closeEmitted = true
	c.markDestroyedLocked()
	c.mu.Unlock()

	c.closed.Emit()
}

func (c *core) readyToCloseLocked() bool {
	if c.closeEmitted || c.destroyed {
		return false
	}
	readDone := !c.hasReadable || c.endEmitted
	writeDone := !c.hasWritable || c.finished
	return readDone && writeDone
}

// enqueue appends chunk to the readable queue without flushing.
func (c *core) enqueue(chunk []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.destroyed || c.ended {
		return false
	}
	if len(chunk) > 0 {
		c.queue = append(c.queue, chunk)
		c.size += len(chunk)
		if c.metrics != nil {
			c.metrics.EndChunks.WithLabelValues(c.kind, c.name).Inc()
		}
	}
	return true
}

// push enqueues chunk, flushes, and reports whether there is room for more.
func (c *core) push(chunk []byte) bool {
	if !c.enqueue(chunk) {
		return false
	}
	c.flush()
	return c.hasSpace()
}

func (c *core) hasSpace() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.destroyed && c.size < c.hwm
}

// pushEnd marks the end of data; end is emitted once the queue drains.
func (c *core) pushEnd() {
	c.mu.Lock()
	if c.destroyed || c.ended {
		c.mu.Unlock()
		return
	}
	c.ended = true
	c.mu.Unlock()
	c.flush()
}

// flush emits queued chunks and then end while flowing. Only one goroutine
// flushes at a time; others leave their work to it.
func (c *core) flush() {
	c.mu.Lock()
	if c.flushing {
		c.mu.Unlock()
		return
	}
	c.flushing = true

	for !c.destroyed && !c.paused {
		if len(c.queue) > 0 {
			chunk := c.queue[0]
			c.queue[0] = nil
			c.queue = c.queue[1:]
			c.size -= len(chunk)
			c.mu.Unlock()
			c.data.Emit(chunk)
			c.mu.Lock()
			continue
		}
		if c.ended && !c.endEmitted {
			c.endEmitted = true
			c.mu.Unlock()
			c.end.Emit()
			c.mu.Lock()
			continue
		}
		break
	}
	c.flushing = false

	drain := false
	if !c.destroyed && c.size < c.hwm {
		close(c.space)
		c.space = make(chan struct{})
		drain = c.needDrain
		c.needDrain = false
	}
	closeNow := c.readyToCloseLocked()
	c.mu.Unlock()

	if drain {
		c.drain.Emit()
	}
	if closeNow {
		c.emitClose()
	}
}

// waitSpace blocks a producer until the readable queue is below the mark.
func (c *core) waitSpace(ctx context.Context) error {
	for {
		c.mu.Lock()
		if c.destroyed {
			c.mu.Unlock()
			return gderrors.ErrClosed
		}
		if c.size < c.hwm {
			c.mu.Unlock()
			return nil
		}
		space := c.space
		c.mu.Unlock()

		if err := gdcontext.WaitSignal(ctx, space); err != nil {
			return err
		}
	}
}

// pressure reports whether the readable queue is at the mark and, if so,
// arms a drain for when it falls below.
func (c *core) pressure() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.destroyed {
		return true
	}
	if c.size >= c.hwm {
		c.needDrain = true
		return true
	}
	return false
}

// checkWrite rejects writes after End or destruction. A write after End
// destroys the end.
func (c *core) checkWrite() bool {
	c.mu.Lock()
	destroyed, ending := c.destroyed, c.ending
	c.mu.Unlock()

	if destroyed {
		return false
	}
	if ending {
		c.Destroy(ErrWriteAfterEnd)
		return false
	}
	return true
}

// beginEnd marks the writable half as ending. It reports false if End was
// already called or the end is destroyed.
func (c *core) beginEnd() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.destroyed || c.ending {
		return false
	}
	c.ending = true
	return true
}

// emitFinish emits finish once and closes the end if the readable half is
// done as well.
func (c *core) emitFinish() {
	c.mu.Lock()
	if c.destroyed || c.finished {
		c.mu.Unlock()
		return
	}
	c.finished = true
	closeNow := c.readyToCloseLocked()
	c.mu.Unlock()

	c.log.Debug().Msg("end finished")
	c.finish.Emit()
	if closeNow {
		c.emitClose()
	}
}

// requestDrain arms a drain signal for writable-only ends with their own
// capacity accounting.
func (c *core) requestDrain() {
	c.mu.Lock()
	c.needDrain = true
	c.mu.Unlock()
}

// releaseDrain emits drain if one was requested.
func (c *core) releaseDrain() {
	c.mu.Lock()
	drain := c.needDrain && !c.destroyed
	c.needDrain = false
	c.mu.Unlock()

	if drain {
		c.drain.Emit()
	}
}
