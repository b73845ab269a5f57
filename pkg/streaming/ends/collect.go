package ends

import (
	"bytes"
	"sync"
)

// Collector is a writable-only end that keeps every chunk in memory.
//
// While held, Write reports false and End does not finish until Release.
// Tests use it to control drain and finish timing.
type Collector struct {
	*core

	cmu         sync.Mutex
	chunks      [][]byte
	held        bool
	finishOwed  bool
	writesTotal int
}

// CollectSink creates a collector.
func CollectSink(config Config) *Collector {
	return &Collector{core: newCore("collect", config, false, true)}
}

// Write stores a copy of chunk.
func (c *Collector) Write(chunk []byte) bool {
	if !c.checkWrite() {
		return false
	}

	c.cmu.Lock()
	c.writesTotal++
	if len(chunk) > 0 {
		c.chunks = append(c.chunks, bytes.Clone(chunk))
	}
	held := c.held
	if held {
		c.requestDrain()
	}
	c.cmu.Unlock()

	if c.metrics != nil && len(chunk) > 0 {
		c.metrics.EndChunks.WithLabelValues(c.kind, c.name).Inc()
	}
	return !held
}

// End finishes the collector unless it is held.
func (c *Collector) End() {
	if !c.beginEnd() {
		return
	}

	c.cmu.Lock()
	if c.held {
		c.finishOwed = true
		c.cmu.Unlock()
		return
	}
	c.cmu.Unlock()
	c.emitFinish()
}

// Hold makes Write report false and delays finish until Release.
func (c *Collector) Hold() {
	c.cmu.Lock()
	c.held = true
	c.cmu.Unlock()
}

// Release lifts a Hold, emitting drain and any finish owed.
func (c *Collector) Release() {
	c.cmu.Lock()
	c.held = false
	finish := c.finishOwed
	c.finishOwed = false
	c.cmu.Unlock()

	c.releaseDrain()
	if finish {
		c.emitFinish()
	}
}

// Chunks returns the collected chunks in write order.
func (c *Collector) Chunks() [][]byte {
	c.cmu.Lock()
	defer c.cmu.Unlock()
	out := make([][]byte, len(c.chunks))
	copy(out, c.chunks)
	return out
}

// Bytes returns the collected chunks concatenated.
func (c *Collector) Bytes() []byte {
	c.cmu.Lock()
	defer c.cmu.Unlock()
	return bytes.Join(c.chunks, nil)
}

// String returns the collected chunks as one string.
func (c *Collector) String() string {
	return string(c.Bytes())
}

// Writes returns the number of Write calls accepted, empty chunks included.
func (c *Collector) Writes() int {
	c.cmu.Lock()
	defer c.cmu.Unlock()
	return c.writesTotal
}
