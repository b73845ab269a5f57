package redisstream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	gdcontext "github.com/vnykmshr/goduplex/pkg/common/context"
	gderrors "github.com/vnykmshr/goduplex/pkg/common/errors"
	"github.com/vnykmshr/goduplex/pkg/common/validation"
	"github.com/vnykmshr/goduplex/pkg/streaming/ends"
)

const (
	fieldData     = "data"
	fieldEOF      = "eof"
	fieldProducer = "producer"
)

// Config holds configuration for Redis stream readers and writers.
type Config struct {
	// Redis client used for XADD and XREAD.
	Redis redis.UniversalClient

	// Stream is the Redis stream key.
	Stream string

	// StartID is the entry ID reading starts after. "0" replays the whole
	// stream, "$" only sees entries added after the first read.
	// Default: "0"
	StartID string

	// Block is how long one XREAD waits for new entries.
	// Default: 1s
	Block time.Duration

	// Count is the maximum number of entries fetched per XREAD.
	// Default: 16
	Count int64

	// MaxLen trims the stream approximately to this many entries on each
	// append. Zero disables trimming.
	MaxLen int64

	// RedisTimeout bounds each append.
	// Default: 500ms
	RedisTimeout time.Duration

	// Producer is recorded with every appended entry.
	// Default: a random UUID
	Producer string
}

// DefaultConfig returns a default configuration without a client or stream.
func DefaultConfig() Config {
	return Config{
		StartID:      "0",
		Block:        time.Second,
		Count:        16,
		RedisTimeout: 500 * time.Millisecond,
	}
}

// Validate checks the configuration for missing or invalid values.
func (c Config) Validate() error {
	if err := validation.ValidateNotNil("redisstream", "Redis", c.Redis); err != nil {
		return err
	}
	if err := validation.ValidateNotEmpty("redisstream", "Stream", c.Stream); err != nil {
		return err
	}
	if c.Count < 0 {
		return gderrors.NewValidationError("redisstream", "Count", c.Count, "cannot be negative")
	}
	if c.MaxLen < 0 {
		return gderrors.NewValidationError("redisstream", "MaxLen", c.MaxLen, "cannot be negative")
	}
	return validation.ValidateNonNegativeDuration("redisstream", "Block", c.Block)
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.StartID == "" {
		c.StartID = d.StartID
	}
	if c.Block <= 0 {
		c.Block = d.Block
	}
	if c.Count <= 0 {
		c.Count = d.Count
	}
	if c.RedisTimeout <= 0 {
		c.RedisTimeout = d.RedisTimeout
	}
	if c.Producer == "" {
		c.Producer = uuid.NewString()
	}
	return c
}

// RedisError records which Redis operation failed.
type RedisError struct {
	Operation string
	Err       error
}

func (e *RedisError) Error() string {
	return fmt.Sprintf("redisstream %s: %v", e.Operation, e.Err)
}

func (e *RedisError) Unwrap() error {
	return e.Err
}

// Writer appends every Write as one stream entry. Close appends an
// end-of-stream marker.
type Writer struct {
	config Config

	mu     sync.Mutex
	closed bool
}

// NewWriter creates a writer for config.Stream.
func NewWriter(config Config) (*Writer, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &Writer{config: config.withDefaults()}, nil
}

// Write implements io.Writer.
func (w *Writer) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return 0, gderrors.ErrClosed
	}
	if err := w.add(fieldData, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

// Close appends the end-of-stream marker. Calls after the first are no-ops.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true
	return w.add(fieldEOF, "1")
}

func (w *Writer) add(field string, value interface{}) error {
	ctx, cancel := context.WithTimeout(context.Background(), w.config.RedisTimeout)
	defer cancel()

	args := &redis.XAddArgs{
		Stream: w.config.Stream,
		Values: map[string]interface{}{
			field:         value,
			fieldProducer: w.config.Producer,
		},
	}
	if w.config.MaxLen > 0 {
		args.MaxLen = w.config.MaxLen
		args.Approx = true
	}
	if err := w.config.Redis.XAdd(ctx, args).Err(); err != nil {
		return &RedisError{Operation: "xadd", Err: err}
	}
	return nil
}

// Reader reads stream entries in order until the end-of-stream marker.
type Reader struct {
	config Config

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	lastID   string
	leftover []byte
	eof      bool
}

// NewReader creates a reader for config.Stream starting after StartID.
func NewReader(config Config) (*Reader, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	config = config.withDefaults()
	ctx, cancel := context.WithCancel(context.Background())
	return &Reader{
		config: config,
		ctx:    ctx,
		cancel: cancel,
		lastID: config.StartID,
	}, nil
}

// Read implements io.Reader. It blocks until an entry arrives, the marker
// is reached (io.EOF), or the reader is closed.
func (r *Reader) Read(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for len(r.leftover) == 0 {
		if r.eof {
			return 0, io.EOF
		}
		if err := r.fetch(); err != nil {
			return 0, err
		}
	}

	n := copy(p, r.leftover)
	r.leftover = r.leftover[n:]
	return n, nil
}

// Close stops reading. A pending Read returns ErrClosed once its current
// XREAD times out, within one Block interval.
func (r *Reader) Close() error {
	r.cancel()
	return nil
}

func (r *Reader) fetch() error {
	if gdcontext.IsCanceled(r.ctx) {
		return gderrors.ErrClosed
	}
	streams, err := r.config.Redis.XRead(r.ctx, &redis.XReadArgs{
		Streams: []string{r.config.Stream, r.lastID},
		Count:   r.config.Count,
		Block:   r.config.Block,
	}).Result()
	switch {
	case errors.Is(err, redis.Nil):
		return nil
	case gdcontext.IsCanceled(r.ctx):
		return gderrors.ErrClosed
	case err != nil:
		return &RedisError{Operation: "xread", Err: err}
	}

	for _, s := range streams {
		for _, msg := range s.Messages {
			r.lastID = msg.ID
			if _, ok := msg.Values[fieldEOF]; ok {
				r.eof = true
				return nil
			}
			if data, ok := msg.Values[fieldData].(string); ok {
				r.leftover = append(r.leftover, data...)
			}
		}
	}
	return nil
}

// NewSink creates a writable end appending to the stream. End writes the
// end-of-stream marker.
func NewSink(config Config, sinkConfig ends.WriterConfig) (*ends.Sink, error) {
	w, err := NewWriter(config)
	if err != nil {
		return nil, err
	}
	sinkConfig.CloseUnderlying = true
	if sinkConfig.Name == "" {
		sinkConfig.Name = "redis:" + config.Stream
	}
	return ends.WriterSink(w, sinkConfig), nil
}

// NewSource creates a readable end replaying the stream from StartID until
// the end-of-stream marker.
func NewSource(ctx context.Context, config Config, sourceConfig ends.Config) (*ends.Source, error) {
	r, err := NewReader(config)
	if err != nil {
		return nil, err
	}
	if sourceConfig.Name == "" {
		sourceConfig.Name = "redis:" + config.Stream
	}
	return ends.ReadCloserSource(ctx, r, sourceConfig), nil
}
