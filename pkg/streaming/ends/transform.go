package ends

import (
	"sync"
)

// TransformFunc maps one input chunk to one output chunk. An empty result
// produces nothing; an error destroys the stage.
type TransformFunc func(chunk []byte) ([]byte, error)

// TransformStage is a synchronous in-memory Stage. Every written chunk is
// passed through the function and queued on the readable side.
type TransformStage struct {
	*core
	fn  TransformFunc
	wmu sync.Mutex
}

// Transform creates a stage applying fn to every chunk.
func Transform(fn TransformFunc, config Config) *TransformStage {
	return &TransformStage{
		core: newCore("transform", config, true, true),
		fn:   fn,
	}
}

// PassThrough creates a stage that forwards chunks unchanged.
func PassThrough(config Config) *TransformStage {
	if config.Name == "" {
		config.Name = "passthrough"
	}
	return Transform(func(chunk []byte) ([]byte, error) { return chunk, nil }, config)
}

// Write transforms chunk and queues the result. It reports false once the
// output queue reaches the high-water mark; drain follows when the reader
// brings it back below.
func (t *TransformStage) Write(chunk []byte) bool {
	if !t.checkWrite() {
		return false
	}

	t.wmu.Lock()
	out, err := t.fn(chunk)
	if err == nil {
		t.enqueue(out)
	}
	t.wmu.Unlock()

	if err != nil {
		t.log.Debug().Err(err).Msg("transform failed")
		t.Destroy(err)
		return false
	}

	t.flush()
	return !t.pressure()
}

// End finishes the writable side and ends the readable side once the
// queued output has been read.
func (t *TransformStage) End() {
	if !t.beginEnd() {
		return
	}
	t.emitFinish()
	t.pushEnd()
}
