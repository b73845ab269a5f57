// Package config loads the settings shared by the example programs and the
// integration tests: a YAML file, then .env files, then the environment.
package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	gderrors "github.com/vnykmshr/goduplex/pkg/common/errors"
	"github.com/vnykmshr/goduplex/pkg/common/validation"
	"github.com/vnykmshr/goduplex/pkg/metrics"
	"github.com/vnykmshr/goduplex/pkg/streaming/duplex"
	"github.com/vnykmshr/goduplex/pkg/streaming/ends"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "GODUPLEX_"

// Settings is the top-level settings document.
type Settings struct {
	Log      LogSettings      `yaml:"log"`
	Composer ComposerSettings `yaml:"composer"`
	Writer   WriterSettings   `yaml:"writer"`
	Redis    RedisSettings    `yaml:"redis"`
	Metrics  MetricsSettings  `yaml:"metrics"`
	Cron     CronSettings     `yaml:"cron"`
}

// LogSettings configures the zerolog logger.
type LogSettings struct {
	// Level is a zerolog level name such as "debug" or "warn".
	Level string `yaml:"level"`
	// Format is "console" or "json".
	Format string `yaml:"format"`
}

// ComposerSettings maps onto duplex.Config.
type ComposerSettings struct {
	Name              string `yaml:"name"`
	HighWaterMark     int    `yaml:"high_water_mark"`
	KeepEndsOnDestroy bool   `yaml:"keep_ends_on_destroy"`
}

// WriterSettings maps onto ends.WriterConfig.
type WriterSettings struct {
	HighWaterMark int           `yaml:"high_water_mark"`
	MaxRetries    int           `yaml:"max_retries"`
	RetryDelay    time.Duration `yaml:"retry_delay"`
}

// RedisSettings locates the Redis stream transport.
type RedisSettings struct {
	Addr   string `yaml:"addr"`
	DB     int    `yaml:"db"`
	Stream string `yaml:"stream"`
}

// MetricsSettings maps onto metrics.Config.
type MetricsSettings struct {
	Enabled   bool   `yaml:"enabled"`
	Namespace string `yaml:"namespace"`
}

// CronSettings drives the cron source of the example programs.
type CronSettings struct {
	Spec     string `yaml:"spec"`
	MaxTicks int    `yaml:"max_ticks"`
}

// Default returns the built-in settings.
func Default() Settings {
	writer := ends.DefaultWriterConfig()
	return Settings{
		Log: LogSettings{Level: "info", Format: "console"},
		Composer: ComposerSettings{
			HighWaterMark: duplex.DefaultHighWaterMark,
		},
		Writer: WriterSettings{
			HighWaterMark: writer.HighWaterMark,
			MaxRetries:    writer.MaxRetries,
			RetryDelay:    writer.RetryDelay,
		},
		Redis:   RedisSettings{Addr: "localhost:6379", Stream: "goduplex"},
		Metrics: MetricsSettings{Enabled: true, Namespace: metrics.DefaultNamespace},
		Cron:    CronSettings{Spec: "@every 1s", MaxTicks: 5},
	}
}

// Load reads the YAML file at path (skipped when empty), then the given
// .env files that exist, then GODUPLEX_* environment variables. Later
// sources win. Variables already in the environment are not overwritten
// by .env files.
func Load(path string, envFiles ...string) (Settings, error) {
	s := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Settings{}, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &s); err != nil {
			return Settings{}, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	if err := loadEnvFiles(envFiles); err != nil {
		return Settings{}, err
	}
	if err := s.applyEnv(os.LookupEnv); err != nil {
		return Settings{}, err
	}
	if err := s.Validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}

func loadEnvFiles(files []string) error {
	var present []string
	for _, f := range files {
		if _, err := os.Stat(f); err == nil {
			present = append(present, f)
		} else if !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("config: %w", err)
		}
	}
	if len(present) == 0 {
		return nil
	}
	if err := godotenv.Load(present...); err != nil {
		return fmt.Errorf("config: load env: %w", err)
	}
	return nil
}

type lookupFunc func(key string) (string, bool)

func (s *Settings) applyEnv(lookup lookupFunc) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(EnvPrefix + key); ok {
			*dst = v
		}
	}
	num := func(key string, dst *int) error {
		v, ok := lookup(EnvPrefix + key)
		if !ok {
			return nil
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return gderrors.NewValidationError("config", EnvPrefix+key, v, "not an integer")
		}
		*dst = n
		return nil
	}

	str("LOG_LEVEL", &s.Log.Level)
	str("LOG_FORMAT", &s.Log.Format)
	str("COMPOSER_NAME", &s.Composer.Name)
	str("REDIS_ADDR", &s.Redis.Addr)
	str("REDIS_STREAM", &s.Redis.Stream)
	str("CRON_SPEC", &s.Cron.Spec)

	for key, dst := range map[string]*int{
		"HIGH_WATER_MARK":    &s.Composer.HighWaterMark,
		"WRITER_MAX_RETRIES": &s.Writer.MaxRetries,
		"REDIS_DB":           &s.Redis.DB,
		"CRON_MAX_TICKS":     &s.Cron.MaxTicks,
	} {
		if err := num(key, dst); err != nil {
			return err
		}
	}

	if v, ok := lookup(EnvPrefix + "WRITER_RETRY_DELAY"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return gderrors.NewValidationError("config", EnvPrefix+"WRITER_RETRY_DELAY", v, "not a duration")
		}
		s.Writer.RetryDelay = d
	}
	if v, ok := lookup(EnvPrefix + "METRICS_ENABLED"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return gderrors.NewValidationError("config", EnvPrefix+"METRICS_ENABLED", v, "not a boolean")
		}
		s.Metrics.Enabled = b
	}
	return nil
}

// Validate checks the settings for invalid values.
func (s Settings) Validate() error {
	if _, err := zerolog.ParseLevel(strings.ToLower(s.Log.Level)); err != nil {
		return gderrors.NewValidationError("config", "log.level", s.Log.Level, "unknown level").
			WithHint("use trace, debug, info, warn, error or disabled")
	}
	if err := validation.ValidateOneOf("config", "log.format", s.Log.Format, "", "console", "json"); err != nil {
		return err
	}
	if err := validation.ValidateNonNegative("config", "composer.high_water_mark", s.Composer.HighWaterMark); err != nil {
		return err
	}
	if err := validation.ValidateNonNegative("config", "writer.max_retries", s.Writer.MaxRetries); err != nil {
		return err
	}
	if err := validation.ValidateNonNegativeDuration("config", "writer.retry_delay", s.Writer.RetryDelay); err != nil {
		return err
	}
	return validation.ValidateNonNegative("config", "cron.max_ticks", s.Cron.MaxTicks)
}

// Logger builds a zerolog logger writing to out in the configured format.
func (s Settings) Logger(out io.Writer) zerolog.Logger {
	level, err := zerolog.ParseLevel(strings.ToLower(s.Log.Level))
	if err != nil {
		level = zerolog.InfoLevel
	}
	if s.Log.Format != "json" {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.Kitchen}
	}
	return zerolog.New(out).With().Timestamp().Logger().Level(level)
}

// ComposerConfig returns a duplex.Config from the composer settings.
func (s Settings) ComposerConfig(logger *zerolog.Logger, m *metrics.Registry) duplex.Config {
	config := duplex.DefaultConfig()
	config.Name = s.Composer.Name
	config.HighWaterMark = s.Composer.HighWaterMark
	config.KeepEndsOnDestroy = s.Composer.KeepEndsOnDestroy
	config.Logger = logger
	config.Metrics = m
	return config
}

// WriterConfig returns an ends.WriterConfig from the writer settings.
func (s Settings) WriterConfig(logger *zerolog.Logger, m *metrics.Registry) ends.WriterConfig {
	config := ends.DefaultWriterConfig()
	config.HighWaterMark = s.Writer.HighWaterMark
	config.MaxRetries = s.Writer.MaxRetries
	config.RetryDelay = s.Writer.RetryDelay
	config.Logger = logger
	config.Metrics = m
	return config
}

// MetricsRegistry builds a metrics registry on reg, or returns nil when
// metrics are disabled.
func (s Settings) MetricsRegistry(reg prometheus.Registerer) *metrics.Registry {
	config := metrics.DefaultConfig()
	config.Enabled = s.Metrics.Enabled
	config.Namespace = s.Metrics.Namespace
	if reg != nil {
		config.Registry = reg
	}
	return metrics.NewRegistryWithConfig(config)
}
