package ends

import (
	"sync"

	"github.com/vnykmshr/goduplex/pkg/streaming/stream"
)

// recorder captures every signal an end emits.
type recorder struct {
	mu     sync.Mutex
	chunks []string
	events []string
	errs   []error
	drains int

	ended  chan struct{}
	closed chan struct{}
}

type signalSource interface {
	OnError(fn func(error)) stream.Subscription
	OnClose(fn func()) stream.Subscription
}

func watch(e signalSource) *recorder {
	rec := &recorder{ended: make(chan struct{}), closed: make(chan struct{})}
	e.OnError(func(err error) {
		rec.mu.Lock()
		rec.errs = append(rec.errs, err)
		rec.events = append(rec.events, "error")
		rec.mu.Unlock()
	})
	e.OnClose(func() {
		rec.mu.Lock()
		rec.events = append(rec.events, "close")
		rec.mu.Unlock()
		close(rec.closed)
	})
	if r, ok := e.(stream.Readable); ok {
		r.OnData(func(chunk []byte) {
			rec.mu.Lock()
			rec.chunks = append(rec.chunks, string(chunk))
			rec.mu.Unlock()
		})
		r.OnEnd(func() {
			rec.mu.Lock()
			rec.events = append(rec.events, "end")
			rec.mu.Unlock()
			close(rec.ended)
		})
	}
	if w, ok := e.(stream.Writable); ok {
		w.OnDrain(func() {
			rec.mu.Lock()
			rec.drains++
			rec.mu.Unlock()
		})
		w.OnFinish(func() {
			rec.mu.Lock()
			rec.events = append(rec.events, "finish")
			rec.mu.Unlock()
		})
	}
	return rec
}

func (r *recorder) data() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.chunks...)
}

func (r *recorder) seen() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

func (r *recorder) errors() []error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]error(nil), r.errs...)
}

func (r *recorder) drainCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.drains
}
