package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vnykmshr/goduplex/internal/testutil"
	gderrors "github.com/vnykmshr/goduplex/pkg/common/errors"
	"github.com/vnykmshr/goduplex/pkg/streaming/duplex"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	s, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), s)
	testutil.AssertEqual(t, s.Composer.HighWaterMark, duplex.DefaultHighWaterMark)
}

func TestLoadYAML(t *testing.T) {
	path := writeFile(t, "goduplex.yaml", `
log:
  level: debug
  format: json
composer:
  name: ingest
  high_water_mark: 1024
  keep_ends_on_destroy: true
writer:
  max_retries: 5
  retry_delay: 250ms
redis:
  addr: redis:6379
  db: 2
  stream: events
metrics:
  enabled: false
cron:
  spec: "*/10 * * * * *"
  max_ticks: 3
`)

	s, err := Load(path)
	require.NoError(t, err)

	testutil.AssertEqual(t, s.Log.Level, "debug")
	testutil.AssertEqual(t, s.Log.Format, "json")
	testutil.AssertEqual(t, s.Composer.Name, "ingest")
	testutil.AssertEqual(t, s.Composer.HighWaterMark, 1024)
	testutil.AssertEqual(t, s.Composer.KeepEndsOnDestroy, true)
	testutil.AssertEqual(t, s.Writer.MaxRetries, 5)
	testutil.AssertEqual(t, s.Writer.RetryDelay, 250*time.Millisecond)
	testutil.AssertEqual(t, s.Redis.Addr, "redis:6379")
	testutil.AssertEqual(t, s.Redis.DB, 2)
	testutil.AssertEqual(t, s.Metrics.Enabled, false)
	testutil.AssertEqual(t, s.Cron.Spec, "*/10 * * * * *")
	testutil.AssertEqual(t, s.Cron.MaxTicks, 3)

	// Unset keys keep their defaults.
	testutil.AssertEqual(t, s.Writer.HighWaterMark, Default().Writer.HighWaterMark)
}

func TestLoadEnvOverrides(t *testing.T) {
	path := writeFile(t, "goduplex.yaml", "composer:\n  name: from-yaml\n")
	t.Setenv("GODUPLEX_COMPOSER_NAME", "from-env")
	t.Setenv("GODUPLEX_HIGH_WATER_MARK", "64")
	t.Setenv("GODUPLEX_WRITER_RETRY_DELAY", "2s")
	t.Setenv("GODUPLEX_METRICS_ENABLED", "false")

	s, err := Load(path)
	require.NoError(t, err)

	testutil.AssertEqual(t, s.Composer.Name, "from-env")
	testutil.AssertEqual(t, s.Composer.HighWaterMark, 64)
	testutil.AssertEqual(t, s.Writer.RetryDelay, 2*time.Second)
	testutil.AssertEqual(t, s.Metrics.Enabled, false)
}

func TestLoadDotEnv(t *testing.T) {
	envFile := writeFile(t, ".env", "GODUPLEX_REDIS_STREAM=dotenv-stream\nGODUPLEX_LOG_LEVEL=warn\n")
	t.Setenv("GODUPLEX_LOG_LEVEL", "error")
	t.Cleanup(func() { _ = os.Unsetenv("GODUPLEX_REDIS_STREAM") })

	s, err := Load("", envFile, filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	testutil.AssertEqual(t, s.Redis.Stream, "dotenv-stream")
	// The environment wins over .env files.
	testutil.AssertEqual(t, s.Log.Level, "error")
}

func TestLoadErrors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
		testutil.AssertErrorIs(t, err, os.ErrNotExist)
	})

	t.Run("bad yaml", func(t *testing.T) {
		_, err := Load(writeFile(t, "bad.yaml", "composer: [unterminated"))
		testutil.AssertError(t, err)
	})

	t.Run("bad env number", func(t *testing.T) {
		t.Setenv("GODUPLEX_HIGH_WATER_MARK", "lots")
		_, err := Load("")
		testutil.AssertEqual(t, gderrors.IsValidationError(err), true)
	})

	t.Run("bad level", func(t *testing.T) {
		_, err := Load(writeFile(t, "level.yaml", "log:\n  level: loud\n"))
		testutil.AssertEqual(t, gderrors.IsValidationError(err), true)
	})

	t.Run("bad format", func(t *testing.T) {
		_, err := Load(writeFile(t, "format.yaml", "log:\n  format: xml\n"))
		testutil.AssertEqual(t, gderrors.IsValidationError(err), true)
	})

	t.Run("negative mark", func(t *testing.T) {
		_, err := Load(writeFile(t, "hwm.yaml", "composer:\n  high_water_mark: -1\n"))
		testutil.AssertErrorIs(t, err, gderrors.ErrInvalidConfiguration)
	})
}

func TestLogger(t *testing.T) {
	var buf bytes.Buffer
	s := Default()
	s.Log = LogSettings{Level: "warn", Format: "json"}

	logger := s.Logger(&buf)
	testutil.AssertEqual(t, logger.GetLevel(), zerolog.WarnLevel)

	logger.Info().Msg("hidden")
	logger.Warn().Str("k", "v").Msg("shown")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"k":"v"`)
}

func TestDerivedConfigs(t *testing.T) {
	s := Default()
	s.Composer.Name = "c1"
	s.Composer.HighWaterMark = 10
	s.Writer.MaxRetries = 7
	logger := zerolog.Nop()

	m := s.MetricsRegistry(prometheus.NewRegistry())
	require.NotNil(t, m)

	cc := s.ComposerConfig(&logger, m)
	testutil.AssertEqual(t, cc.Name, "c1")
	testutil.AssertEqual(t, cc.HighWaterMark, 10)
	testutil.AssertEqual(t, cc.Metrics, m)
	require.NoError(t, cc.Validate())

	wc := s.WriterConfig(&logger, m)
	testutil.AssertEqual(t, wc.MaxRetries, 7)
	testutil.AssertEqual(t, wc.Logger, &logger)

	s.Metrics.Enabled = false
	assert.Nil(t, s.MetricsRegistry(prometheus.NewRegistry()))
}
