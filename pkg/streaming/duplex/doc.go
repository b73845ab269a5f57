/*
Package duplex joins a writable end and a readable end into one bidirectional channel.

A Composer is written to like an io.Writer and read from like an io.Reader. Writes are forwarded
to the attached writable end and reads are served from the attached readable end. Apart from
coordinated shutdown the two faces are independent.

Construction:

	// Two independent ends.
	c := duplex.Duplexer(sink, source)

	// A linked chain: writes enter the first stage, reads come from the last.
	c := duplex.Pipeline(parse, enrich, encode)

	// Attach later.
	c := duplex.New()
	c.SetWritable(sink).SetReadable(source)

Backpressure:

Inbound chunks are queued until the consumer reads them. Once HighWaterMark bytes are queued the
readable end is paused; it is resumed when a read brings the queue back below the mark. On the
outbound face TryWrite reports accepted=false when the writable end is over capacity, and the next
write waits for its drain signal:

	ok, err := c.TryWrite(chunk)
	if err == nil && !ok {
		err = c.WaitDrain(ctx)
	}

Write and WriteContext do both steps.

Completion:

End finalizes the write face. In pipeline mode the composer finalizes only after the first stage
finished writing and the consumer observed end-of-data from the last stage. Otherwise it
finalizes as soon as the writable end finishes. Done is closed once the composer is finalized and
its end-of-data observed, or when it is destroyed:

	c.End()
	if err := c.Wait(ctx); err != nil {
		log.Printf("composer failed: %v", err)
	}

Errors:

An error from either end, or an end that closes before ending cleanly, destroys the composer.
Ends that close early yield an *Error of KindPrematureClose, matched by ErrPrematureClose. Link
failures while building a pipeline yield KindLink.
*/
package duplex
