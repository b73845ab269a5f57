package ends

import (
	"errors"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/vnykmshr/goduplex/pkg/common/validation"
	"github.com/vnykmshr/goduplex/pkg/metrics"
)

// ErrWriteAfterEnd is the error an end is destroyed with when written to
// after End.
var ErrWriteAfterEnd = errors.New("ends: write after end")

// Config holds the options shared by every end.
type Config struct {
	// HighWaterMark is the number of buffered bytes at which Write reports
	// false or a producer stops reading.
	// Default: 16KB
	HighWaterMark int

	// ChunkSize is the read size used by ReaderSource.
	// Default: 4KB
	ChunkSize int

	// Name labels the end in logs and metrics. Defaults to the end type.
	Name string

	// Logger receives lifecycle events. Nil disables logging.
	Logger *zerolog.Logger

	// Metrics receives end metrics. Nil disables them.
	Metrics *metrics.Registry
}

// DefaultConfig returns a default configuration.
func DefaultConfig() Config {
	return Config{
		HighWaterMark: 16 * 1024, // 16KB
		ChunkSize:     4 * 1024,  // 4KB
	}
}

// Validate checks the configuration for invalid values.
func (c Config) Validate() error {
	if err := validation.ValidateNonNegative("ends", "HighWaterMark", c.HighWaterMark); err != nil {
		return err
	}
	return validation.ValidateNonNegative("ends", "ChunkSize", c.ChunkSize)
}

func (c Config) withDefaults(kind string) Config {
	if c.HighWaterMark <= 0 {
		c.HighWaterMark = DefaultConfig().HighWaterMark
	}
	if c.ChunkSize <= 0 {
		c.ChunkSize = DefaultConfig().ChunkSize
	}
	if c.Name == "" {
		c.Name = kind
	}
	return c
}

// WriterConfig holds configuration options for WriterSink.
type WriterConfig struct {
	Config

	// MaxRetries is the number of times to retry failed write operations.
	// Default: 3
	MaxRetries int

	// RetryDelay is the delay between retries.
	// Default: 100ms
	RetryDelay time.Duration

	// CloseUnderlying closes the writer after the final flush when it
	// implements io.Closer.
	CloseUnderlying bool

	// OnError is called when write errors occur, including retried ones.
	OnError func(error)

	// OnFlush is called after each chunk reaches the underlying writer.
	OnFlush func(bytesWritten int, duration time.Duration)
}

// DefaultWriterConfig returns a default WriterSink configuration.
func DefaultWriterConfig() WriterConfig {
	return WriterConfig{
		Config:     DefaultConfig(),
		MaxRetries: 3,
		RetryDelay: 100 * time.Millisecond,
	}
}

// CronConfig holds configuration options for CronSource.
type CronConfig struct {
	Config

	// MaxTicks ends the source after that many produced chunks. Zero means
	// the source runs until destroyed.
	MaxTicks int

	// Location is the time zone the schedule is evaluated in.
	// Default: time.Local
	Location *time.Location

	// Schedule replaces the parsed expression when set.
	Schedule cron.Schedule
}
