package duplex

import (
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"

	"github.com/vnykmshr/goduplex/pkg/common/validation"
	"github.com/vnykmshr/goduplex/pkg/metrics"
	"github.com/vnykmshr/goduplex/pkg/streaming/stream"
)

const (
	// DefaultHighWaterMark is the inbound queue capacity in bytes.
	DefaultHighWaterMark = 16 * 1024

	// DefaultName labels composers that were not given a Name.
	DefaultName = "default"
)

// Config holds configuration for a Composer.
type Config struct {
	// HighWaterMark is the number of queued inbound bytes at which the
	// readable end is paused. Zero means DefaultHighWaterMark.
	HighWaterMark int

	// Link connects pipeline stages. Nil means stream.Chain.
	Link stream.LinkFunc

	// KeepEndsOnDestroy leaves the attached ends alive when the composer is
	// destroyed. By default they are destroyed with the same error.
	KeepEndsOnDestroy bool

	// Name identifies the composer in logs, spans and metrics. It is the
	// metrics label, so composers sharing a role should share a name.
	// Defaults to DefaultName; the per-composer ID is only logged and traced.
	Name string

	// Logger receives lifecycle events. Nil disables logging.
	Logger *zerolog.Logger

	// Metrics receives composer metrics. Nil disables them.
	Metrics *metrics.Registry

	// Tracer starts the lifetime span. Nil uses a no-op tracer.
	Tracer trace.Tracer

	// OnEnd runs once when the consumer has observed end-of-data.
	OnEnd func()

	// OnFinish runs once when the composer finalizes cleanly.
	OnFinish func()

	// OnClose runs once when the composer closes, with the terminal error
	// or nil.
	OnClose func(err error)
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		HighWaterMark: DefaultHighWaterMark,
		Link:          stream.Chain,
	}
}

// Validate checks the configuration for invalid values.
func (c Config) Validate() error {
	return validation.ValidateNonNegative("duplex", "HighWaterMark", c.HighWaterMark)
}

func (c Config) withDefaults() Config {
	if c.HighWaterMark <= 0 {
		c.HighWaterMark = DefaultHighWaterMark
	}
	if c.Link == nil {
		c.Link = stream.Chain
	}
	if c.Name == "" {
		c.Name = DefaultName
	}
	return c
}
