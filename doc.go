/*
Package goduplex provides a bidirectional stream composer for Go.

A Composer presents one writable end and one readable end as a single
duplex stream. Writes are forwarded to the writable end with its
backpressure and drain relayed to the caller; reads come from a queue fed
by the readable end, which is paused while the queue is full. Errors and
premature closes on either end destroy the composer and both ends.

In pipeline mode the ends are the first and last of a chain of stages, and
the composer finalizes only after the first stage has finished and the
consumer has read the last stage to its end.

Streaming (pkg/streaming):
  - stream: Stream end contracts, signals and linking
  - duplex: The Composer
  - ends: Sources, sinks and transforms (readers, writers, channels, cron)
  - redisstream: Redis Streams transport

Supporting packages:
  - pkg/metrics: Prometheus metrics for composers and ends
  - pkg/common: Errors, validation, context helpers and the completion barrier

Example usage:

	import (
		"github.com/vnykmshr/goduplex/pkg/streaming/duplex"
		"github.com/vnykmshr/goduplex/pkg/streaming/ends"
	)

	c := duplex.Duplexer(ends.WriterSink(conn, ends.DefaultWriterConfig()), ends.ReaderSource(ctx, conn, ends.DefaultConfig()))
	c.Write(request)
	c.End()
	reply, err := io.ReadAll(c)
*/
package goduplex
