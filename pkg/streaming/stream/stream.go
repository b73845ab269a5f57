package stream

// Readable is the source side of a byte stream.
//
// A Readable starts paused. Resume switches it to flowing mode, in which
// buffered and future chunks are delivered to OnData listeners in order,
// followed by at most one end signal. Pause must not emit any signal
// synchronously; Resume may.
type Readable interface {
	OnData(fn func(chunk []byte)) Subscription
	OnEnd(fn func()) Subscription
	OnError(fn func(err error)) Subscription
	OnClose(fn func()) Subscription

	Pause()
	Resume()

	// Destroy tears the end down. A non-nil err is emitted as an error
	// signal before close. Calls after the first are ignored.
	Destroy(err error)
}

// Writable is the sink side of a byte stream.
//
// Write reports false when the sink is at or over its capacity; the caller
// should hold further writes until the next drain signal. End flushes what
// was accepted and emits finish once everything is consumed.
type Writable interface {
	Write(chunk []byte) bool
	End()

	OnDrain(fn func()) Subscription
	OnFinish(fn func()) Subscription
	OnError(fn func(err error)) Subscription
	OnClose(fn func()) Subscription

	Destroy(err error)
}

// Stage is an intermediate step that consumes on its writable side and
// produces on its readable side.
type Stage interface {
	Readable
	Writable
}

// LinkFunc connects stages so that each one feeds the next.
type LinkFunc func(stages ...Stage) error
