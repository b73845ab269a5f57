package stream

import (
	"errors"
	"fmt"
	"sync"
)

var (
	// ErrNoStages is returned by Chain when called without stages.
	ErrNoStages = errors.New("stream: no stages to link")

	// ErrNilStage is returned by Chain when one of the stages is nil.
	ErrNilStage = errors.New("stream: nil stage")
)

// Pipe forwards src into dst until src ends.
//
// When dst.Write reports false, src is paused until dst drains. The end of
// src ends dst. An error on either side destroys the other with the same
// error. Pipe resumes src before returning; the returned subscription
// unlinks the two without touching their state.
func Pipe(src Readable, dst Writable) Subscription {
	p := &pipe{src: src, dst: dst}

	subs := Subscriptions{
		dst.OnDrain(p.onDrain),
		src.OnEnd(dst.End),
		src.OnError(func(err error) { dst.Destroy(err) }),
		dst.OnError(func(err error) { src.Destroy(err) }),
		src.OnData(p.onData),
	}
	src.Resume()
	return subs
}

type pipe struct {
	src Readable
	dst Writable

	mu     sync.Mutex
	drains uint64
	paused bool
}

func (p *pipe) onData(chunk []byte) {
	p.mu.Lock()
	seen := p.drains
	p.mu.Unlock()

	if p.dst.Write(chunk) {
		return
	}

	// A drain that raced the write already cleared the pressure.
	p.mu.Lock()
	if p.drains == seen {
		p.paused = true
		p.src.Pause()
	}
	p.mu.Unlock()
}

func (p *pipe) onDrain() {
	p.mu.Lock()
	p.drains++
	wasPaused := p.paused
	p.paused = false
	p.mu.Unlock()

	if wasPaused {
		p.src.Resume()
	}
}

// Chain pipes each stage into the next one. It is the default LinkFunc.
func Chain(stages ...Stage) error {
	if len(stages) == 0 {
		return ErrNoStages
	}
	for i, s := range stages {
		if s == nil {
			return fmt.Errorf("%w at position %d", ErrNilStage, i)
		}
	}
	for i := 0; i+1 < len(stages); i++ {
		Pipe(stages[i], stages[i+1])
	}
	return nil
}
