package duplex

import (
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/vnykmshr/goduplex/pkg/common/barrier"
	gderrors "github.com/vnykmshr/goduplex/pkg/common/errors"
	"github.com/vnykmshr/goduplex/pkg/streaming/stream"
)

// State describes where a Composer is in its lifecycle.
type State int

const (
	// StateUnattached means no end is attached and nothing has been requested.
	StateUnattached State = iota
	// StateAttached means at least one end is attached.
	StateAttached
	// StateEnding means End was called and finalization is in progress.
	StateEnding
	// StateFinalized means the writable face finished cleanly.
	StateFinalized
	// StateDestroyed means the composer was torn down.
	StateDestroyed
)

func (s State) String() string {
	switch s {
	case StateUnattached:
		return "unattached"
	case StateAttached:
		return "attached"
	case StateEnding:
		return "ending"
	case StateFinalized:
		return "finalized"
	case StateDestroyed:
		return "destroyed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// pendingWrite is the single-slot continuation of a write waiting for drain.
type pendingWrite struct {
	done   chan struct{}
	closed bool
}

// deferred collects calls that must run after the composer lock is released.
type deferred []func()

func (d deferred) run() {
	for _, fn := range d {
		fn()
	}
}

const (
	faceReadable = "readable"
	faceWritable = "writable"
)

type readableSubs struct {
	data, end, errs, closed stream.Subscription
}

type writableSubs struct {
	drain, finish, errs, closed stream.Subscription
}

// Composer joins a writable end and a readable end into one duplex channel.
//
// Writes go to the writable end and reads come from the readable end. In
// pipeline mode the ends are the first and last of a linked chain of stages,
// and the composer finalizes only after the chain has finished writing and
// the consumer has read everything the chain produced.
//
// All methods are safe for concurrent use. No internal lock is held while
// calling into ends, hooks or waiting callers.
type Composer struct {
	id     string
	config Config
	obs    *observer

	mu sync.Mutex

	writable stream.Writable
	readable stream.Readable
	wsubs    writableSubs
	rsubs    readableSubs
	stages   []stream.Stage

	// Attachment generations. Handlers carry the generation they were
	// registered under and ignore signals once it moved on.
	rgen, wgen uint64

	pipeline bool
	barrier  *barrier.Barrier

	// inbound queue
	queue       [][]byte
	queued      int
	eofPushed   bool
	endObserved bool
	armed       bool
	readWake    chan struct{}

	// outbound face
	pending      *pendingWrite
	held         []byte
	ending       bool
	endDeferred  bool
	finalPending bool
	finalReady   bool
	finished     bool
	finishedCh   chan struct{}

	destroyed bool
	err       error
	doneCh    chan struct{}
	closed    bool

	readMu   sync.Mutex
	leftover []byte
	writeMu  sync.Mutex
}

// New creates an empty Composer with default configuration.
func New() *Composer {
	return NewWithConfig(DefaultConfig())
}

// NewWithConfig creates an empty Composer. Invalid values in config are
// replaced by their defaults.
func NewWithConfig(config Config) *Composer {
	config = config.withDefaults()
	id := uuid.NewString()

	c := &Composer{
		id:         id,
		config:     config,
		readWake:   make(chan struct{}),
		finishedCh: make(chan struct{}),
		doneCh:     make(chan struct{}),
	}
	c.obs = newObserver(c.id, config)
	return c
}

// Pipeline creates a Composer over a linked chain of stages.
func Pipeline(stages ...stream.Stage) *Composer {
	return PipelineWithConfig(DefaultConfig(), stages...)
}

// PipelineWithConfig creates a Composer over a linked chain of stages.
func PipelineWithConfig(config Config, stages ...stream.Stage) *Composer {
	return NewWithConfig(config).SetPipeline(stages...)
}

// Duplexer creates a Composer from a separately supplied writable and
// readable end. A nil writable finalizes the write face at once; a nil
// readable ends the read face at once.
func Duplexer(w stream.Writable, r stream.Readable) *Composer {
	return DuplexerWithConfig(DefaultConfig(), w, r)
}

// DuplexerWithConfig is Duplexer with an explicit configuration.
func DuplexerWithConfig(config Config, w stream.Writable, r stream.Readable) *Composer {
	c := NewWithConfig(config)
	c.SetWritable(w)
	c.SetReadable(r)
	return c
}

// ID returns the unique identifier assigned at construction.
func (c *Composer) ID() string {
	return c.id
}

// Name returns the configured name, or DefaultName when none was set.
func (c *Composer) Name() string {
	return c.config.Name
}

// IsPipeline reports whether the composer was built from linked stages.
func (c *Composer) IsPipeline() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pipeline
}

// SetPipeline switches the composer to pipeline mode: the first stage
// becomes the writable face, the last stage the readable face, and the
// stages are linked with Config.Link. A failure to link destroys the
// composer before SetPipeline returns.
func (c *Composer) SetPipeline(stages ...stream.Stage) *Composer {
	if len(stages) == 0 {
		c.Destroy(gderrors.NewValidationError("duplex", "stages", 0, "pipeline needs at least one stage"))
		return c
	}
	for i, s := range stages {
		if isNilEnd(s) {
			c.Destroy(gderrors.NewValidationError("duplex", "stages", i, "nil stage").
				WithHint("every pipeline stage must be non-nil"))
			return c
		}
	}

	c.mu.Lock()
	if c.destroyed {
		c.mu.Unlock()
		return c
	}
	c.pipeline = true
	c.barrier = barrier.New(2)
	c.stages = append([]stream.Stage(nil), stages...)
	c.mu.Unlock()

	c.obs.pipeline(len(stages))

	c.SetWritable(stages[0])
	c.SetReadable(stages[len(stages)-1])

	if err := c.link(stages); err != nil {
		c.Destroy(linkFailed(err))
	}
	return c
}

func (c *Composer) link(stages []stream.Stage) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic while linking: %v", r)
		}
	}()
	return c.config.Link(stages...)
}

// SetReadable attaches r as the readable face, replacing the previous end.
// A nil r detaches the face and signals end-of-data to the consumer.
func (c *Composer) SetReadable(r stream.Readable) *Composer {
	if isNilEnd(r) {
		r = nil
	}

	c.mu.Lock()
	if c.destroyed {
		c.mu.Unlock()
		return c
	}
	old := c.rsubs
	c.rsubs = readableSubs{}
	c.readable = r
	c.rgen++
	gen := c.rgen

	if r == nil {
		after := c.pushEOFLocked()
		c.mu.Unlock()

		stream.Subscriptions{old.data, old.end, old.errs, old.closed}.Unsubscribe()
		c.obs.detached(faceReadable)
		after.run()
		return c
	}
	c.mu.Unlock()

	stream.Subscriptions{old.data, old.end, old.errs, old.closed}.Unsubscribe()

	// Data is subscribed last; the end starts flowing only on Resume.
	subs := readableSubs{
		end:    r.OnEnd(func() { c.onReadableEnd(gen) }),
		errs:   r.OnError(func(err error) { c.onEndError(faceReadable, gen, err) }),
		closed: r.OnClose(func() { c.onEndClose(faceReadable, gen) }),
		data:   r.OnData(func(chunk []byte) { c.onData(r, gen, chunk) }),
	}

	c.mu.Lock()
	if c.destroyed || c.rgen != gen {
		c.mu.Unlock()
		stream.Subscriptions{subs.data, subs.end, subs.errs, subs.closed}.Unsubscribe()
		return c
	}
	c.rsubs = subs
	c.mu.Unlock()

	c.obs.attached(faceReadable)
	r.Resume()
	return c
}

// SetWritable attaches w as the writable face, replacing the previous end.
// A nil w releases a pending write and finalizes the write face.
func (c *Composer) SetWritable(w stream.Writable) *Composer {
	if isNilEnd(w) {
		w = nil
	}

	c.mu.Lock()
	if c.destroyed {
		c.mu.Unlock()
		return c
	}
	old := c.wsubs
	c.wsubs = writableSubs{}
	c.writable = w
	c.wgen++
	gen := c.wgen

	if w == nil {
		after := c.releaseWriteLocked(false)
		c.mu.Unlock()

		stream.Subscriptions{old.drain, old.finish, old.errs, old.closed}.Unsubscribe()
		c.obs.detached(faceWritable)
		after.run()
		c.End()
		return c
	}
	c.mu.Unlock()

	stream.Subscriptions{old.drain, old.finish, old.errs, old.closed}.Unsubscribe()

	subs := writableSubs{
		drain:  w.OnDrain(func() { c.onDrain(gen) }),
		finish: w.OnFinish(func() { c.onFinish(gen) }),
		errs:   w.OnError(func(err error) { c.onEndError(faceWritable, gen, err) }),
		closed: w.OnClose(func() { c.onEndClose(faceWritable, gen) }),
	}

	c.mu.Lock()
	if c.destroyed || c.wgen != gen {
		c.mu.Unlock()
		stream.Subscriptions{subs.drain, subs.finish, subs.errs, subs.closed}.Unsubscribe()
		return c
	}
	c.wsubs = subs
	c.finalReady = false

	var after deferred
	switch {
	case c.held != nil:
		chunk, p := c.held, c.pending
		c.held = nil
		after = append(after, func() { c.forward(w, p, chunk) })
	case c.pending != nil:
		// The previous end never drained; the new one starts empty.
		after = c.releaseWriteLocked(false)
	case c.finalPending:
		after = append(after, w.End)
	}
	c.mu.Unlock()

	c.obs.attached(faceWritable)
	after.run()
	return c
}

// State returns the current lifecycle state.
func (c *Composer) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch {
	case c.destroyed:
		return StateDestroyed
	case c.finished:
		return StateFinalized
	case c.ending:
		return StateEnding
	case c.readable != nil || c.writable != nil:
		return StateAttached
	default:
		return StateUnattached
	}
}

func (c *Composer) onEndError(face string, gen uint64, err error) {
	if !c.isAttached(face, gen) {
		return
	}
	if err == nil {
		err = gderrors.ErrClosed
	}
	c.Destroy(endFailed(face, err))
}

func (c *Composer) onEndClose(face string, gen uint64) {
	if !c.isAttached(face, gen) {
		return
	}
	c.Destroy(prematureClose(face))
}

// isAttached reports whether the end registered under gen is still the
// attached end of face.
func (c *Composer) isAttached(face string, gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.destroyed {
		return false
	}
	if face == faceReadable {
		return c.readable != nil && c.rgen == gen
	}
	return c.writable != nil && c.wgen == gen
}
