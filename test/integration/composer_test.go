package integration

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vnykmshr/goduplex/internal/config"
	"github.com/vnykmshr/goduplex/internal/testutil"
	"github.com/vnykmshr/goduplex/pkg/metrics"
	"github.com/vnykmshr/goduplex/pkg/streaming/duplex"
	"github.com/vnykmshr/goduplex/pkg/streaming/ends"
)

func payload(size int) []byte {
	var b bytes.Buffer
	for i := 0; b.Len() < size; i++ {
		b.WriteString("chunk ")
		b.WriteByte(byte('a' + i%26))
		b.WriteByte('\n')
	}
	return b.Bytes()[:size]
}

// TestPipelineUnderBackpressure streams a payload through three stages with
// small queues, writing and reading on separate goroutines.
func TestPipelineUnderBackpressure(t *testing.T) {
	small := ends.Config{HighWaterMark: 64}
	upper := ends.Transform(func(b []byte) ([]byte, error) { return bytes.ToUpper(b), nil }, small)
	relay := ends.PassThrough(small)
	tail := ends.PassThrough(small)

	c := duplex.PipelineWithConfig(duplex.Config{HighWaterMark: 128}, upper, relay, tail)
	in := payload(64 * 1024)

	writeErr := make(chan error, 1)
	go func() {
		// Hide WriteTo so the copy goes through 100 byte writes.
		buf := make([]byte, 100)
		_, err := io.CopyBuffer(c, struct{ io.Reader }{bytes.NewReader(in)}, buf)
		c.End()
		writeErr <- err
	}()

	var out bytes.Buffer
	n, err := c.WriteTo(&out)
	require.NoError(t, err)
	require.NoError(t, <-writeErr)

	testutil.AssertEqual(t, n, int64(len(in)))
	testutil.AssertEqual(t, out.String(), strings.ToUpper(string(in)))

	testutil.AssertClosed(t, c.Done(), "composer done")
	testutil.AssertEqual(t, c.State(), duplex.StateFinalized)
	testutil.AssertNoError(t, c.Err())
}

// TestDirectPairingWithWriterSink pairs a slow writer sink with a reader
// source; writes wait for the sink to drain.
func TestDirectPairingWithWriterSink(t *testing.T) {
	underlying := testutil.NewMockWriter()
	underlying.SetWriteDelay(time.Millisecond)
	wc := ends.DefaultWriterConfig()
	wc.HighWaterMark = 16
	sink := ends.WriterSink(underlying, wc)

	src := ends.ReaderSource(context.Background(), strings.NewReader("response body"), ends.DefaultConfig())
	c := duplex.Duplexer(sink, src)

	var want strings.Builder
	for i := 0; i < 20; i++ {
		line := "request line\n"
		want.WriteString(line)
		_, err := c.Write([]byte(line))
		require.NoError(t, err)
	}
	c.End()

	reply, err := io.ReadAll(c)
	require.NoError(t, err)
	testutil.AssertEqual(t, string(reply), "response body")

	testutil.AssertClosed(t, c.Done(), "composer done")
	testutil.AssertClosed(t, sink.Done(), "sink loop")
	testutil.AssertClosed(t, src.Done(), "source pump")
	testutil.AssertEqual(t, underlying.String(), want.String())
	assert.Greater(t, sink.Stats().FlushCount, int64(1))
}

// TestStageFailureTearsDownPipeline checks that one failing stage destroys
// the composer, every stage and a blocked reader.
func TestStageFailureTearsDownPipeline(t *testing.T) {
	boom := errors.New("checksum mismatch")
	first := ends.PassThrough(ends.DefaultConfig())
	failing := ends.Transform(func(b []byte) ([]byte, error) {
		if bytes.Contains(b, []byte("corrupt")) {
			return nil, boom
		}
		return b, nil
	}, ends.DefaultConfig())
	last := ends.PassThrough(ends.DefaultConfig())

	c := duplex.Pipeline(first, failing, last)

	readErr := make(chan error, 1)
	go func() {
		_, err := io.ReadAll(c)
		readErr <- err
	}()

	_, err := c.Write([]byte("good"))
	require.NoError(t, err)
	_, _ = c.Write([]byte("corrupt"))

	select {
	case err := <-readErr:
		testutil.AssertErrorIs(t, err, boom)
	case <-time.After(testutil.TestTimeout):
		t.Fatal("reader not released")
	}

	testutil.AssertClosed(t, c.Done(), "composer done")
	testutil.AssertErrorIs(t, c.Err(), boom)
	for _, s := range []interface{ IsDestroyed() bool }{first, failing, last} {
		testutil.AssertEqual(t, s.IsDestroyed(), true)
	}
}

// TestCronSourceIntoComposer reads scheduled chunks through a composer.
func TestCronSourceIntoComposer(t *testing.T) {
	src, err := ends.CronSource("", func(tick time.Time) ([]byte, error) {
		return []byte("tick\n"), nil
	}, ends.CronConfig{MaxTicks: 3, Schedule: everyMillisecond{}})
	require.NoError(t, err)

	c := duplex.Duplexer(nil, src)
	c.End()

	out, err := io.ReadAll(c)
	require.NoError(t, err)
	testutil.AssertEqual(t, string(out), "tick\ntick\ntick\n")
	testutil.AssertClosed(t, c.Done(), "composer done")
	testutil.AssertClosed(t, src.Done(), "cron source done")
}

type everyMillisecond struct{}

func (everyMillisecond) Next(t time.Time) time.Time { return t.Add(time.Millisecond) }

// TestSettingsDrivenComposer builds a composer from loaded settings and
// checks that it logs and reports metrics.
func TestSettingsDrivenComposer(t *testing.T) {
	t.Setenv("GODUPLEX_COMPOSER_NAME", "settings")
	t.Setenv("GODUPLEX_LOG_LEVEL", "debug")
	t.Setenv("GODUPLEX_LOG_FORMAT", "json")
	s, err := config.Load("")
	require.NoError(t, err)

	var logs syncBuffer
	logger := s.Logger(&logs)
	m := s.MetricsRegistry(prometheus.NewRegistry())

	sink := ends.CollectSink(ends.Config{Logger: &logger, Metrics: m})
	src := ends.StringSource("a", "b")
	c := duplex.DuplexerWithConfig(s.ComposerConfig(&logger, m), sink, src)

	_, err = c.Write([]byte("xyz"))
	require.NoError(t, err)
	c.End()
	_, err = io.ReadAll(c)
	require.NoError(t, err)
	testutil.AssertClosed(t, c.Done(), "composer done")

	testutil.AssertEqual(t, promtest.ToFloat64(m.Finalized.WithLabelValues("settings")), 1.0)
	testutil.AssertEqual(t, promtest.ToFloat64(m.BytesRelayed.WithLabelValues("settings", metrics.DirectionIn)), 2.0)
	testutil.AssertEqual(t, promtest.ToFloat64(m.BytesRelayed.WithLabelValues("settings", metrics.DirectionOut)), 3.0)
	assert.Contains(t, logs.String(), `"composer":"settings"`)
	testutil.AssertEqual(t, logger.GetLevel(), zerolog.DebugLevel)
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
