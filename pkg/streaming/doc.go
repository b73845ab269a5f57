/*
Package streaming groups the byte stream packages of goduplex.

  - stream: Readable, Writable and Stage contracts, signals, Pipe and Chain
  - duplex: the Composer joining a writable and a readable end into one stream
  - ends: concrete sources, sinks and transforms
  - redisstream: Redis Streams transport wrapped as ends

Basic usage:

	c := duplex.Pipeline(
		ends.Transform(compress, ends.DefaultConfig()),
		ends.PassThrough(ends.DefaultConfig()),
	)

	go func() {
		io.Copy(c, input)
		c.End()
	}()
	c.WriteTo(output)

Every end starts paused and signals from whichever goroutine produces the
event. The composer relays backpressure in both directions and finalizes
only once both the write side has finished and the read side has been
drained.
*/
package streaming
