package logging

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdklog "go.opentelemetry.io/otel/sdk/log"
)

func textSink(buf *bytes.Buffer, lvl slog.Level) slog.Handler {
	return slog.NewTextHandler(buf, &slog.HandlerOptions{Level: lvl})
}

func TestSetup_Destination(t *testing.T) {
	t.Run("file", func(t *testing.T) {
		restore := captureStdout(t)
		var file bytes.Buffer
		m := NewSlogManager()
		m.Setup(&file, "debug", nil)
		m.Logger().Info("anchor placed")

		assert.Empty(t, restore())
		assert.Contains(t, file.String(), "anchor placed")
	})
	t.Run("stdout", func(t *testing.T) {
		restore := captureStdout(t)
		m := NewSlogManager()
		m.Setup(nil, "info", nil)
		m.Logger().Info("surface ready")

		assert.Contains(t, restore(), "surface ready")
	})
}

func TestSetup_LevelFiltering(t *testing.T) {
	for _, level := range []string{"debug", "info", "warn"} {
		t.Run(level, func(t *testing.T) {
			var buf bytes.Buffer
			m := NewSlogManager()
			m.Setup(&buf, level, nil)
			log := m.Logger()
			log.Debug("d-line")
			log.Info("i-line")
			log.Warn("w-line")

			out := buf.String()
			assert.Equal(t, level == "debug", strings.Contains(out, "d-line"))
			assert.Equal(t, level != "warn", strings.Contains(out, "i-line"))
			assert.Contains(t, out, "w-line")
		})
	}
}

func TestSetup_SecondCallReplacesSinks(t *testing.T) {
	var before, after bytes.Buffer
	m := NewSlogManager()

	m.Setup(&before, "info", nil)
	m.Logger().Info("old")
	m.Setup(&after, "info", nil)
	m.Logger().Info("new")

	assert.NotContains(t, before.String(), "new")
	assert.Contains(t, after.String(), "new")
}

func TestSetup_TimestampsAreUTC(t *testing.T) {
	var buf bytes.Buffer
	m := NewSlogManager()
	m.Setup(&buf, "info", nil)
	m.Logger().Info("tick")

	line := buf.String()
	i := strings.Index(line, "time=")
	require.GreaterOrEqual(t, i, 0)
	stamp := strings.Fields(line[i+len("time="):])[0]
	assert.True(t, strings.HasSuffix(stamp, "Z"), stamp)
}

func TestLogger_FallsBackToDefault(t *testing.T) {
	assert.Same(t, slog.Default(), NewSlogManager().Logger())
}

func TestComponent(t *testing.T) {
	var buf bytes.Buffer
	m := NewSlogManager()
	m.Setup(&buf, "info", nil)
	m.Component("detection").Info("scan started")
	assert.Contains(t, buf.String(), "component=detection")
}

func TestWithContext_EvaluatedPerRecord(t *testing.T) {
	var buf bytes.Buffer
	stage := "created"
	m := NewSlogManager(WithContext(func() []slog.Attr {
		return []slog.Attr{slog.String("lifecycle", stage), {}}
	}))
	m.Setup(&buf, "info", nil)

	m.Logger().Info("one")
	stage = "resumed"
	m.Logger().Info("two")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "lifecycle=created")
	assert.Contains(t, lines[1], "lifecycle=resumed")
	assert.NotContains(t, lines[1], " =")
}

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug": slog.LevelDebug,
		"Info":  slog.LevelInfo,
		"WARN":  slog.LevelWarn,
		"error": slog.LevelError,
		"":      slog.LevelInfo,
		"loud":  slog.LevelInfo,
	}
	for in, want := range cases {
		assert.Equal(t, want, parseLevel(in), "level %q", in)
	}
}

type failingSink struct{ slog.Handler }

func (failingSink) Enabled(context.Context, slog.Level) bool { return true }

func (failingSink) Handle(context.Context, slog.Record) error { return errors.New("disk full") }

func TestMultiHandler(t *testing.T) {
	t.Run("tees and skips nil", func(t *testing.T) {
		var a, b bytes.Buffer
		h := NewMultiHandler(nil, textSink(&a, slog.LevelInfo), nil, textSink(&b, slog.LevelInfo))
		require.Len(t, h.sinks, 2)

		slog.New(h).Info("plane found")
		assert.Contains(t, a.String(), "plane found")
		assert.Contains(t, b.String(), "plane found")
	})
	t.Run("enabled if any sink is", func(t *testing.T) {
		var a, b bytes.Buffer
		ctx := context.Background()
		assert.False(t, NewMultiHandler().Enabled(ctx, slog.LevelError))
		assert.False(t, NewMultiHandler(textSink(&a, slog.LevelInfo)).Enabled(ctx, slog.LevelDebug))
		assert.True(t, NewMultiHandler(textSink(&a, slog.LevelInfo), textSink(&b, slog.LevelDebug)).Enabled(ctx, slog.LevelDebug))
	})
	t.Run("failure does not stop delivery", func(t *testing.T) {
		var buf bytes.Buffer
		h := NewMultiHandler(failingSink{}, textSink(&buf, slog.LevelInfo))

		var r slog.Record
		r.Message = "still delivered"
		r.Level = slog.LevelInfo
		err := h.Handle(context.Background(), r)

		assert.EqualError(t, err, "disk full")
		assert.Contains(t, buf.String(), "still delivered")
	})
	t.Run("attrs and groups reach every sink", func(t *testing.T) {
		var buf bytes.Buffer
		h := NewMultiHandler(textSink(&buf, slog.LevelInfo))
		assert.Same(t, h, h.WithGroup(""))

		slog.New(h.WithAttrs([]slog.Attr{slog.Int("anchors", 2)}).WithGroup("hit")).Info("tap", "kind", "plane")
		assert.Contains(t, buf.String(), "anchors=2")
		assert.Contains(t, buf.String(), "hit.kind=plane")
	})
}

func TestFlush(t *testing.T) {
	assert.NoError(t, NewSlogManager().Flush(context.Background()))

	var buf bytes.Buffer
	m := NewSlogManager()
	m.Setup(&buf, "info", sdklog.NewLoggerProvider())
	m.Logger().Info("exported too")

	assert.Contains(t, buf.String(), "exported too")
	assert.NoError(t, m.Flush(context.Background()))
}

// captureStdout swaps osStdout for a pipe. The returned func restores it and
// yields what was written.
func captureStdout(t *testing.T) func() string {
	t.Helper()
	r, w, err := osPipe()
	require.NoError(t, err)
	saved := osStdout
	osStdout = w

	return func() string {
		_ = w.Close()
		osStdout = saved
		var out bytes.Buffer
		_, _ = out.ReadFrom(r)
		_ = r.Close()
		return out.String()
	}
}
