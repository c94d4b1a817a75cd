package influx

import (
	"compress/gzip"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/arlens/flicker/internal/config"
	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func unhealthyServer(t *testing.T) config.InfluxConfig {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	t.Cleanup(srv.Close)

	u, err := url.Parse(srv.URL)
	require.NoError(t, err)
	return config.InfluxConfig{
		Enabled:  true,
		Protocol: u.Scheme,
		Host:     u.Hostname(),
		Port:     u.Port(),
		Org:      "flicker",
		Bucket:   "render_performance",
	}
}

func TestConnect_Disabled(t *testing.T) {
	m := NewManager(config.InfluxConfig{}, zerolog.Nop(), "")
	assert.ErrorIs(t, m.Connect(context.Background()), ErrDisabled)
}

func TestConnect_FallsBackToBackupFile(t *testing.T) {
	backup := filepath.Join(t.TempDir(), "influx_backup.log.gz")
	m := NewManager(unhealthyServer(t), zerolog.Nop(), backup)

	require.NoError(t, m.Connect(context.Background()))
	assert.False(t, m.Online())

	point := influxdb2_write.NewPointWithMeasurement("compose").
		AddTag("tracking", "TRACKING").
		AddField("fps", 59.5).
		SetTime(time.Unix(0, 42))
	require.NoError(t, m.WritePoint(context.Background(), "render_performance", point))
	require.NoError(t, m.Close())

	f, err := os.Open(backup)
	require.NoError(t, err)
	defer f.Close()
	r, err := gzip.NewReader(f)
	require.NoError(t, err)
	body, err := io.ReadAll(r)
	require.NoError(t, err)

	assert.Contains(t, string(body), "compose,tracking=TRACKING fps=59.5 42")
}

func TestWritePoint_NoSink(t *testing.T) {
	m := NewManager(config.InfluxConfig{Bucket: "b"}, zerolog.Nop(), "")
	err := m.WritePoint(context.Background(), "b", influxdb2_write.NewPointWithMeasurement("x").AddField("v", 1))
	assert.ErrorIs(t, err, ErrNotConnected)
	assert.NoError(t, m.Close())
}
