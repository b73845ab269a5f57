package testutil

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestEventually(t *testing.T) {
	var counter int32
	go func() {
		time.Sleep(20 * time.Millisecond)
		atomic.StoreInt32(&counter, 1)
	}()

	Eventually(t, func() bool {
		return atomic.LoadInt32(&counter) == 1
	}, 500*time.Millisecond, 5*time.Millisecond)
}

func TestCallbackTracker(t *testing.T) {
	tracker := NewCallbackTracker()
	if tracker.Called() {
		t.Fatal("tracker should not be called initially")
	}

	tracker.Mark()
	tracker.Mark("second")

	tracker.AssertCalledTimes(t, 2)
	AssertEqual(t, tracker.Value(), interface{}("second"))
}

func TestAssertClosedAndOpen(t *testing.T) {
	ch := make(chan struct{})
	AssertOpen(t, ch, "fresh")
	close(ch)
	AssertClosed(t, ch, "closed")
}

func TestMockWriter(t *testing.T) {
	mw := NewMockWriter()

	n, err := mw.Write([]byte("abc"))
	AssertNoError(t, err)
	AssertEqual(t, n, 3)
	AssertEqual(t, mw.String(), "abc")

	mw.SetErrorOnNth(2)
	_, err = mw.Write([]byte("def"))
	AssertErrorIs(t, err, ErrSimulated)
	AssertEqual(t, mw.WriteCount(), 2)

	boom := errors.New("boom")
	mw.SetAlwaysError(boom)
	_, err = mw.Write([]byte("x"))
	AssertErrorIs(t, err, boom)

	AssertEqual(t, mw.Len(), 3)
	AssertEqual(t, len(mw.Chunks()), 1)
	AssertEqual(t, mw.Chunks()[0], "abc")

	AssertNoError(t, mw.Close())
	AssertEqual(t, mw.Closed(), true)
}

func TestWithTimeout(t *testing.T) {
	ctx, cancel := WithTimeout(t)
	defer cancel()

	deadline, ok := ctx.Deadline()
	if !ok {
		t.Fatal("context should have a deadline")
	}
	if time.Until(deadline) > TestTimeout {
		t.Error("deadline beyond TestTimeout")
	}
}
