package ends

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	gdcontext "github.com/vnykmshr/goduplex/pkg/common/context"
	gderrors "github.com/vnykmshr/goduplex/pkg/common/errors"
	"github.com/vnykmshr/goduplex/pkg/common/validation"
)

// ProduceFunc builds the chunk for a scheduled tick.
type ProduceFunc func(tick time.Time) ([]byte, error)

var cronParser = cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// CronSource creates a source that calls produce on every tick of a cron
// expression and emits the result. Expressions take an optional seconds
// field and descriptors such as @every 5s or @hourly.
//
// The source ends after MaxTicks chunks, or when the schedule has no next
// activation. A produce error destroys it. Ticks wait while the queue is at
// the high-water mark.
func CronSource(spec string, produce ProduceFunc, config CronConfig) (*Source, error) {
	if err := validation.ValidateNotNil("ends", "produce", produce); err != nil {
		return nil, err
	}
	if err := validation.ValidateNonNegative("ends", "MaxTicks", config.MaxTicks); err != nil {
		return nil, err
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	schedule := config.Schedule
	if schedule == nil {
		parsed, err := cronParser.Parse(spec)
		if err != nil {
			return nil, gderrors.NewValidationError("ends", "spec", spec, err.Error()).
				WithHint("use a cron expression like '*/5 * * * * *' or a descriptor like '@every 1m'")
		}
		schedule = parsed
	}

	loc := config.Location
	if loc == nil {
		loc = time.Local
	}

	s := newSource("cron", config.Config)
	ctx, cancel := context.WithCancel(context.Background())
	s.onDestroy = func(error) { cancel() }

	go func() {
		defer close(s.done)
		defer cancel()
		s.tick(ctx, schedule, loc, produce, config.MaxTicks)
	}()
	return s, nil
}

func (s *Source) tick(ctx context.Context, schedule cron.Schedule, loc *time.Location, produce ProduceFunc, maxTicks int) {
	ticks := 0
	for {
		now := time.Now().In(loc)
		next := schedule.Next(now)
		if next.IsZero() {
			s.log.Debug().Int("ticks", ticks).Msg("schedule exhausted")
			s.pushEnd()
			return
		}
		if err := gdcontext.Sleep(ctx, next.Sub(now)); err != nil {
			return
		}
		if err := s.waitSpace(ctx); err != nil {
			return
		}

		chunk, err := produce(next)
		if err != nil {
			s.Destroy(err)
			return
		}
		ticks++
		if s.metrics != nil {
			s.metrics.SourceTicks.WithLabelValues(s.name).Inc()
		}
		s.push(chunk)

		if maxTicks > 0 && ticks >= maxTicks {
			s.log.Debug().Int("ticks", ticks).Msg("tick limit reached")
			s.pushEnd()
			return
		}
	}
}
