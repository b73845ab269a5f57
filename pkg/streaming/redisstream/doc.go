/*
Package redisstream carries byte streams over Redis streams.

A Writer appends each chunk as an entry with a "data" field and marks the
end with an "eof" entry on Close. A Reader replays entries with XREAD BLOCK
and returns io.EOF at the marker. NewSink and NewSource wrap them as stream
ends, so a composer on one host can feed a composer on another:

	rdb := redis.NewClient(&redis.Options{Addr: "localhost:6379"})

	config := redisstream.DefaultConfig()
	config.Redis = rdb
	config.Stream = "jobs:42:output"

	sink, err := redisstream.NewSink(config, ends.DefaultWriterConfig())
	...
	src, err := redisstream.NewSource(ctx, config, ends.DefaultConfig())
*/
package redisstream
