package duplex

import (
	"context"
	"reflect"

	"github.com/vnykmshr/goduplex/pkg/streaming/stream"
)

// Destroy tears the composer down with err, which may be nil.
//
// Listeners on both ends are removed, a pending write is released, a pending
// finalization fails with err, blocked readers and writers wake up, and the
// attached ends are destroyed with the same error unless
// Config.KeepEndsOnDestroy is set. Calls after the first, or after the
// composer already closed cleanly, are ignored.
func (c *Composer) Destroy(err error) {
	c.mu.Lock()
	if c.destroyed || c.closed {
		c.mu.Unlock()
		return
	}
	c.destroyed = true
	c.err = err

	subs := stream.Subscriptions{
		c.rsubs.data, c.rsubs.end, c.rsubs.errs, c.rsubs.closed,
		c.wsubs.drain, c.wsubs.finish, c.wsubs.errs, c.wsubs.closed,
	}
	c.rsubs, c.wsubs = readableSubs{}, writableSubs{}

	ends := make([]interface{ Destroy(error) }, 0, len(c.stages)+2)
	for _, s := range c.stages {
		ends = append(ends, s)
	}
	if c.writable != nil {
		ends = append(ends, c.writable)
	}
	if c.readable != nil {
		ends = append(ends, c.readable)
	}

	c.releaseWriteLocked(true)
	c.finalPending = false
	c.queue = nil
	c.queued = 0
	c.wakeReadersLocked()
	c.closed = true
	close(c.doneCh)
	c.mu.Unlock()

	subs.Unsubscribe()
	if !c.config.KeepEndsOnDestroy {
		// Destroy is idempotent on ends, so a stage that is also a face is fine.
		for _, e := range ends {
			e.Destroy(err)
		}
	}

	c.obs.destroyed(err)
	if c.config.OnClose != nil {
		c.config.OnClose(err)
	}
}

// Close destroys the composer without an error. Use End for a graceful
// shutdown of the write face.
func (c *Composer) Close() error {
	c.Destroy(nil)
	return nil
}

// maybeCloseLocked closes a composer whose write face finalized and whose
// end-of-data was observed.
func (c *Composer) maybeCloseLocked() deferred {
	if c.closed || !c.finished || !c.endObserved {
		return nil
	}
	c.closed = true
	close(c.doneCh)

	after := deferred{func() { c.obs.closed() }}
	if c.config.OnClose != nil {
		after = append(after, func() { c.config.OnClose(nil) })
	}
	return after
}

// Done returns a channel closed once the composer is closed: destroyed, or
// finalized with end-of-data observed.
func (c *Composer) Done() <-chan struct{} {
	return c.doneCh
}

// Err returns the terminal error. It is nil while the composer is open and
// after a clean close or a Destroy(nil).
func (c *Composer) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Wait blocks until the composer is closed and returns its terminal error.
func (c *Composer) Wait(ctx context.Context) error {
	select {
	case <-c.doneCh:
		return c.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// isNilEnd reports whether v is nil or an interface holding a nil pointer.
func isNilEnd(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		return rv.IsNil()
	default:
		return false
	}
}
