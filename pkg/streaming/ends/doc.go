/*
Package ends provides concrete stream ends for composers and pipelines.

Every end implements the stream package interfaces: sources are readable,
sinks are writable, and transforms are both. All of them start paused and
only emit data or end while flowing, so subscribing before Resume never
misses a signal.

# Sources

	src := ends.StringSource("a", "b", "c")
	file := ends.ReadCloserSource(ctx, f, ends.DefaultConfig())

	ticks, err := ends.CronSource("@every 1s", func(t time.Time) ([]byte, error) {
		return []byte(t.Format(time.RFC3339) + "\n"), nil
	}, ends.CronConfig{Config: ends.DefaultConfig(), MaxTicks: 10})

# Sinks

WriterSink hands chunks to an io.Writer on a background goroutine, with
retries and statistics:

	sink := ends.WriterSink(os.Stdout, ends.DefaultWriterConfig())

CollectSink keeps chunks in memory. Hold and Release control drain and
finish, which makes it handy in tests.

# Transforms

	upper := ends.Transform(func(b []byte) ([]byte, error) {
		return bytes.ToUpper(b), nil
	}, ends.DefaultConfig())

# Backpressure

Readable ends keep a byte-bounded queue. A producer blocks while it is at
Config.HighWaterMark, and Write on a transform or sink reports false until
the queue falls below it again, at which point drain is emitted.
*/
package ends
