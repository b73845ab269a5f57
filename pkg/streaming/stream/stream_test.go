package stream

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vnykmshr/goduplex/internal/testutil"
)

// fakeStage records calls and lets tests emit signals by hand.
type fakeStage struct {
	data               Signal[[]byte]
	errs               Signal[error]
	end, drain, finish Notify
	closed             Notify

	mu              sync.Mutex
	writes          [][]byte
	accept          bool
	paused          bool
	pauses, resumes int
	ended           bool
	destroyedWith   error
	destroyed       bool
}

func newFakeStage() *fakeStage {
	return &fakeStage{accept: true, paused: true}
}

func (f *fakeStage) OnData(fn func([]byte)) Subscription { return f.data.Subscribe(fn) }
func (f *fakeStage) OnEnd(fn func()) Subscription        { return f.end.Subscribe(fn) }
func (f *fakeStage) OnError(fn func(error)) Subscription { return f.errs.Subscribe(fn) }
func (f *fakeStage) OnClose(fn func()) Subscription      { return f.closed.Subscribe(fn) }
func (f *fakeStage) OnDrain(fn func()) Subscription      { return f.drain.Subscribe(fn) }
func (f *fakeStage) OnFinish(fn func()) Subscription     { return f.finish.Subscribe(fn) }

func (f *fakeStage) Pause() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.paused = true
	f.pauses++
}

func (f *fakeStage) Resume() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.paused = false
	f.resumes++
}

func (f *fakeStage) Write(chunk []byte) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writes = append(f.writes, chunk)
	return f.accept
}

func (f *fakeStage) End() {
	f.mu.Lock()
	f.ended = true
	f.mu.Unlock()
}

func (f *fakeStage) Destroy(err error) {
	f.mu.Lock()
	if f.destroyed {
		f.mu.Unlock()
		return
	}
	f.destroyed = true
	f.destroyedWith = err
	f.mu.Unlock()
	if err != nil {
		f.errs.Emit(err)
	}
	f.closed.Emit()
}

func (f *fakeStage) isPaused() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.paused
}

func (f *fakeStage) written() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.writes))
	for i, w := range f.writes {
		out[i] = string(w)
	}
	return out
}

func TestSignalOrderAndUnsubscribe(t *testing.T) {
	var sig Signal[int]
	var got []string

	first := sig.Subscribe(func(v int) { got = append(got, "first") })
	sig.Subscribe(func(v int) { got = append(got, "second") })

	sig.Emit(1)
	assert.Equal(t, []string{"first", "second"}, got)

	first.Unsubscribe()
	first.Unsubscribe()
	got = nil
	sig.Emit(2)
	assert.Equal(t, []string{"second"}, got)
	testutil.AssertEqual(t, sig.Len(), 1)
}

func TestSignalOnce(t *testing.T) {
	var n Notify
	tracker := testutil.NewCallbackTracker()
	n.Once(func() { tracker.Mark() })

	n.Emit()
	n.Emit()

	tracker.AssertCalledTimes(t, 1)
	testutil.AssertEqual(t, n.Len(), 0)
}

func TestSignalUnsubscribeDuringEmit(t *testing.T) {
	var sig Signal[string]
	var second Subscription
	calls := 0

	sig.Subscribe(func(string) { second.Unsubscribe() })
	second = sig.Subscribe(func(string) { calls++ })

	sig.Emit("x")
	testutil.AssertEqual(t, calls, 0)
}

func TestSignalReentrantEmit(t *testing.T) {
	var sig Signal[int]
	var seen []int
	sig.Subscribe(func(v int) {
		seen = append(seen, v)
		if v < 3 {
			sig.Emit(v + 1)
		}
	})

	sig.Emit(1)
	assert.Equal(t, []int{1, 2, 3}, seen)
}

func TestSignalClear(t *testing.T) {
	var n Notify
	calls := 0
	n.Subscribe(func() { calls++ })
	n.Clear()
	n.Emit()
	testutil.AssertEqual(t, calls, 0)
}

func TestSubscriptions(t *testing.T) {
	var a, b Notify
	calls := 0
	group := Subscriptions{
		a.Subscribe(func() { calls++ }),
		nil,
		b.Subscribe(func() { calls++ }),
	}
	group.Unsubscribe()
	a.Emit()
	b.Emit()
	testutil.AssertEqual(t, calls, 0)

	tracker := testutil.NewCallbackTracker()
	sub := SubscriptionFunc(func() { tracker.Mark() })
	sub.Unsubscribe()
	sub.Unsubscribe()
	tracker.AssertCalledTimes(t, 1)
}

func TestPipeForwardsAndEnds(t *testing.T) {
	src, dst := newFakeStage(), newFakeStage()
	Pipe(src, dst)

	assert.False(t, src.isPaused(), "pipe resumes the source")

	src.data.Emit([]byte("a"))
	src.data.Emit([]byte("b"))
	src.end.Emit()

	assert.Equal(t, []string{"a", "b"}, dst.written())
	assert.True(t, dst.ended)
}

func TestPipeBackpressure(t *testing.T) {
	src, dst := newFakeStage(), newFakeStage()
	dst.accept = false
	Pipe(src, dst)

	src.data.Emit([]byte("full"))
	assert.True(t, src.isPaused())

	dst.drain.Emit()
	assert.False(t, src.isPaused())

	// A drain without a preceding pause does not resume again.
	before := src.resumes
	dst.drain.Emit()
	testutil.AssertEqual(t, src.resumes, before)
}

func TestPipeErrorPropagation(t *testing.T) {
	boom := errors.New("boom")

	src, dst := newFakeStage(), newFakeStage()
	Pipe(src, dst)
	src.Destroy(boom)
	testutil.AssertErrorIs(t, dst.destroyedWith, boom)

	src, dst = newFakeStage(), newFakeStage()
	Pipe(src, dst)
	dst.Destroy(boom)
	testutil.AssertErrorIs(t, src.destroyedWith, boom)
}

func TestPipeUnlink(t *testing.T) {
	src, dst := newFakeStage(), newFakeStage()
	sub := Pipe(src, dst)
	sub.Unsubscribe()

	src.data.Emit([]byte("late"))
	src.end.Emit()
	assert.Empty(t, dst.written())
	assert.False(t, dst.ended)
}

func TestChain(t *testing.T) {
	a, b, c := newFakeStage(), newFakeStage(), newFakeStage()
	require.NoError(t, Chain(a, b, c))

	a.data.Emit([]byte("x"))
	b.data.Emit([]byte("y"))
	assert.Equal(t, []string{"x"}, b.written())
	assert.Equal(t, []string{"y"}, c.written())

	single := newFakeStage()
	require.NoError(t, Chain(single))
	assert.True(t, single.isPaused(), "a single stage is left untouched")
}

func TestChainValidation(t *testing.T) {
	testutil.AssertErrorIs(t, Chain(), ErrNoStages)

	err := Chain(newFakeStage(), nil)
	testutil.AssertErrorIs(t, err, ErrNilStage)
	assert.Contains(t, err.Error(), "position 1")
}
