package duplex

import (
	"sync"

	"github.com/vnykmshr/goduplex/pkg/streaming/stream"
)

// fakeEnd is a Stage driven by hand from tests.
type fakeEnd struct {
	data               stream.Signal[[]byte]
	errs               stream.Signal[error]
	end, drain, finish stream.Notify
	closed             stream.Notify

	mu         sync.Mutex
	writes     []string
	accept     bool
	onWrite    func()
	paused     bool
	pauses     int
	resumes    int
	endCalls   int
	destroyed  bool
	destroyErr error
}

func newFakeEnd() *fakeEnd {
	return &fakeEnd{accept: true, paused: true}
}

func (f *fakeEnd) OnData(fn func([]byte)) stream.Subscription { return f.data.Subscribe(fn) }
func (f *fakeEnd) OnEnd(fn func()) stream.Subscription        { return f.end.Subscribe(fn) }
func (f *fakeEnd) OnError(fn func(error)) stream.Subscription { return f.errs.Subscribe(fn) }
func (f *fakeEnd) OnClose(fn func()) stream.Subscription      { return f.closed.Subscribe(fn) }
func (f *fakeEnd) OnDrain(fn func()) stream.Subscription      { return f.drain.Subscribe(fn) }
func (f *fakeEnd) OnFinish(fn func()) stream.Subscription     { return f.finish.Subscribe(fn) }

func (f *fakeEnd) Pause() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.paused = true
	f.pauses++
}

func (f *fakeEnd) Resume() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.paused = false
	f.resumes++
}

func (f *fakeEnd) Write(chunk []byte) bool {
	f.mu.Lock()
	f.writes = append(f.writes, string(chunk))
	accept, hook := f.accept, f.onWrite
	f.mu.Unlock()

	if hook != nil {
		hook()
	}
	return accept
}

func (f *fakeEnd) End() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.endCalls++
}

func (f *fakeEnd) Destroy(err error) {
	f.mu.Lock()
	if f.destroyed {
		f.mu.Unlock()
		return
	}
	f.destroyed = true
	f.destroyErr = err
	f.mu.Unlock()

	if err != nil {
		f.errs.Emit(err)
	}
	f.closed.Emit()
}

func (f *fakeEnd) setAccept(v bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.accept = v
}

func (f *fakeEnd) emit(chunks ...string) {
	for _, s := range chunks {
		f.data.Emit([]byte(s))
	}
}

func (f *fakeEnd) isPaused() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.paused
}

func (f *fakeEnd) resumeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.resumes
}

func (f *fakeEnd) written() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.writes...)
}

func (f *fakeEnd) ended() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.endCalls
}

func (f *fakeEnd) wasDestroyed() (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.destroyed, f.destroyErr
}

func (f *fakeEnd) listeners() int {
	return f.data.Len() + f.errs.Len() + f.end.Len() + f.drain.Len() + f.finish.Len() + f.closed.Len()
}

// linkNothing leaves stages unlinked so tests drive each face by hand.
func linkNothing(...stream.Stage) error { return nil }

// valueEnd is a Stage passed by value whose dynamic type is not comparable.
type valueEnd struct {
	*fakeEnd
	tags []string
}
