/*
Package stream defines the contract between a duplex composer and the ends it joins.

The contract is event based. A Readable emits data, end, error and close signals and can be
paused and resumed. A Writable accepts chunks, reports backpressure through the boolean result
of Write, and emits drain, finish, error and close. A Stage is both at once.

Signals:

Every signal method returns a Subscription. Unsubscribe is idempotent and guarantees that the
callback is not invoked by any later emission:

	sub := src.OnData(func(chunk []byte) {
		fmt.Printf("got %d bytes\n", len(chunk))
	})
	defer sub.Unsubscribe()

Implementations usually keep one Signal or Notify per event. Emit runs listeners outside of any
lock, so a listener may call back into the emitting end:

	type ticker struct {
		ticks stream.Signal[time.Time]
	}

	func (t *ticker) OnTick(fn func(time.Time)) stream.Subscription {
		return t.ticks.Subscribe(fn)
	}

Linking:

Pipe forwards one Readable into one Writable with pause/resume backpressure, end propagation and
mutual error propagation. Chain pipes a list of stages in order and is the default LinkFunc used
by duplex pipelines:

	if err := stream.Chain(parse, enrich, encode); err != nil {
		return err
	}

Concurrency:

Ends may emit from any goroutine. Pause must not emit synchronously, which lets callers invoke it
while holding their own locks. Resume may flush buffered data synchronously.
*/
package stream
