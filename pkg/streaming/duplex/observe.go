package duplex

import (
	"context"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/vnykmshr/goduplex/pkg/metrics"
)

const tracerName = "github.com/vnykmshr/goduplex/pkg/streaming/duplex"

// observer reports composer lifecycle events to the logger, the metrics
// registry and the lifetime span. Every method is safe with all three unset.
type observer struct {
	log     zerolog.Logger
	metrics *metrics.Registry
	label   string
	span    trace.Span
}

func newObserver(id string, config Config) *observer {
	log := zerolog.Nop()
	if config.Logger != nil {
		log = config.Logger.With().
			Str("composer_id", id).
			Str("composer", config.Name).
			Logger()
	}

	tracer := config.Tracer
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer(tracerName)
	}
	_, span := tracer.Start(context.Background(), "duplex.Composer",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("composer.id", id),
			attribute.String("composer.name", config.Name),
			attribute.Int("composer.high_water_mark", config.HighWaterMark),
		),
	)

	o := &observer{
		log:     log,
		metrics: config.Metrics,
		label:   config.Name,
		span:    span,
	}
	if o.metrics != nil {
		o.metrics.ActiveComposers.WithLabelValues(o.label).Inc()
	}
	o.log.Debug().Msg("composer created")
	return o
}

func (o *observer) pipeline(stages int) {
	o.span.SetAttributes(
		attribute.Bool("composer.pipeline", true),
		attribute.Int("composer.stages", stages),
	)
	o.log.Debug().Int("stages", stages).Msg("pipeline mode")
}

func (o *observer) attached(face string) {
	o.log.Debug().Str("face", face).Msg("end attached")
}

func (o *observer) detached(face string) {
	o.log.Debug().Str("face", face).Msg("end detached")
}

func (o *observer) relayed(direction string, n int) {
	if o.metrics == nil {
		return
	}
	o.metrics.ChunksRelayed.WithLabelValues(o.label, direction).Inc()
	o.metrics.BytesRelayed.WithLabelValues(o.label, direction).Add(float64(n))
}

func (o *observer) queued(n int) {
	if o.metrics != nil {
		o.metrics.QueuedBytes.WithLabelValues(o.label).Set(float64(n))
	}
}

func (o *observer) backpressure() {
	if o.metrics != nil {
		o.metrics.BackpressurePauses.WithLabelValues(o.label).Inc()
	}
	o.log.Debug().Msg("readable end paused")
}

func (o *observer) drained() {
	if o.metrics != nil {
		o.metrics.Drains.WithLabelValues(o.label).Inc()
	}
}

func (o *observer) ending() {
	o.span.AddEvent("end requested")
	o.log.Debug().Msg("write face ending")
}

func (o *observer) ended() {
	o.span.AddEvent("end of data")
	o.log.Debug().Msg("end of data observed")
}

// writableFinished records the finish of the writable end. awaiting is the
// number of pipeline completion signals still outstanding.
func (o *observer) writableFinished(awaiting int) {
	o.span.AddEvent("writable finished", trace.WithAttributes(attribute.Int("composer.awaiting", awaiting)))
	o.log.Debug().Int("awaiting", awaiting).Msg("writable end finished")
}

func (o *observer) finalized() {
	if o.metrics != nil {
		o.metrics.Finalized.WithLabelValues(o.label).Inc()
	}
	o.span.AddEvent("finalized")
	o.log.Debug().Msg("composer finalized")
}

func (o *observer) closed() {
	if o.metrics != nil {
		o.metrics.ActiveComposers.WithLabelValues(o.label).Dec()
	}
	o.span.SetStatus(codes.Ok, "")
	o.span.End()
	o.log.Debug().Msg("composer closed")
}

func (o *observer) destroyed(err error) {
	kind := "closed"
	if err != nil {
		kind = "error"
		if k, ok := KindOf(err); ok {
			kind = k.String()
		}
	}

	if o.metrics != nil {
		o.metrics.Destroyed.WithLabelValues(o.label, kind).Inc()
		o.metrics.ActiveComposers.WithLabelValues(o.label).Dec()
	}

	if err != nil {
		o.span.RecordError(err)
		o.span.SetStatus(codes.Error, err.Error())
		o.log.Error().Err(err).Str("kind", kind).Msg("composer destroyed")
	} else {
		o.log.Warn().Msg("composer destroyed")
	}
	o.span.SetAttributes(attribute.String("composer.destroy_kind", kind))
	o.span.End()
}
