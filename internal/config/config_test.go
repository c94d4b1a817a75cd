package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// loadJSON writes body as the config file of a fresh dir and loads it.
func loadJSON(t *testing.T, body string) {
	t.Helper()
	t.Cleanup(viper.Reset)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte(body), 0o644))
	require.NoError(t, Load(dir))
}

func TestLoad_Defaults(t *testing.T) {
	loadJSON(t, `{}`)

	for key, want := range map[string]any{
		"logLevel":                      "info",
		"logsDir":                       "./flickerlogs",
		"vision.endpoint":               "https://vision.googleapis.com",
		"vision.apiKey":                 "",
		"db.database":                   "flicker",
		"influx.bucket":                 "render_performance",
		"storage.type":                  "memory",
		"storage.memory.outputDir":      "./journal",
		"storage.sqlite.dumpInterval":   "3m",
		"otel.serviceName":              "flicker",
	} {
		assert.Equal(t, want, viper.GetString(key), key)
	}
	assert.False(t, GetBool("influx.enabled"))
	assert.False(t, GetBool("otel.enabled"))
	assert.True(t, GetBool("storage.memory.compressOutput"))
	assert.Equal(t, 10*time.Second, GetDuration("monitor.interval"))
	assert.Equal(t, 60, GetInt("render.tickRate"))
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	loadJSON(t, `{
		"logLevel": "debug",
		"vision": {"apiKey": "secret", "endpoint": "http://127.0.0.1:9999", "timeout": "5s"},
		"render": {"zFar": 50}
	}`)

	assert.Equal(t, "debug", GetString("logLevel"))

	vc := GetVisionConfig()
	assert.Equal(t, VisionConfig{Endpoint: "http://127.0.0.1:9999", APIKey: "secret", Timeout: 5 * time.Second}, vc)

	rc := GetRenderConfig()
	assert.InDelta(t, 0.1, rc.ZNear, 1e-6)
	assert.EqualValues(t, 50, rc.ZFar)
	assert.Equal(t, 60, rc.TickRate)
}

func TestLoad_MissingDir(t *testing.T) {
	t.Cleanup(viper.Reset)
	err := Load(filepath.Join(t.TempDir(), "absent"))
	assert.ErrorContains(t, err, "error reading config file")
	assert.Equal(t, "memory", GetString("storage.type"), "defaults still registered")
}

func TestGetStorageConfig(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		loadJSON(t, `{}`)
		sc := GetStorageConfig()
		assert.Equal(t, "memory", sc.Type)
		assert.True(t, sc.Memory.CompressOutput)
		assert.Equal(t, 3*time.Minute, sc.SQLite.DumpInterval)
		assert.Equal(t, "postgres", sc.DB.Username)
		assert.Equal(t, "5432", sc.DB.Port)
	})
	t.Run("sqlite", func(t *testing.T) {
		loadJSON(t, `{"storage": {"type": "sqlite", "sqlite": {"outputDir": "/data/ar", "dumpInterval": "45s"}}}`)
		sc := GetStorageConfig()
		assert.Equal(t, "sqlite", sc.Type)
		assert.Equal(t, "/data/ar", sc.SQLite.OutputDir)
		assert.Equal(t, 45*time.Second, sc.SQLite.DumpInterval)
	})
	t.Run("postgres", func(t *testing.T) {
		loadJSON(t, `{"storage": {"type": "postgres"}, "db": {"host": "10.1.2.3", "port": "6432"}}`)
		sc := GetStorageConfig()
		assert.Equal(t, "10.1.2.3", sc.DB.Host)
		assert.Equal(t, "6432", sc.DB.Port)
	})
}

func TestGetOTelConfig(t *testing.T) {
	loadJSON(t, `{"otel": {"enabled": true, "endpoint": "collector:4318", "batchTimeout": "2s", "insecure": false}}`)

	oc := GetOTelConfig()
	assert.True(t, oc.Enabled)
	assert.Equal(t, "flicker", oc.ServiceName)
	assert.Equal(t, "collector:4318", oc.Endpoint)
	assert.Equal(t, 2*time.Second, oc.BatchTimeout)
	assert.False(t, oc.Insecure)
}

func TestGetInfluxConfig(t *testing.T) {
	loadJSON(t, `{"influx": {"enabled": true, "port": "9086"}}`)

	ic := GetInfluxConfig()
	assert.True(t, ic.Enabled)
	assert.Equal(t, "9086", ic.Port)
	assert.Equal(t, "http", ic.Protocol)
	assert.Equal(t, "flicker", ic.Org)
}
