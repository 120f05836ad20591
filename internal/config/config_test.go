package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"card-scanner/internal/lookup"
)

func TestDefaults(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, lookup.DefaultBaseURL, cfg.Lookup.BaseURL)
	assert.Equal(t, 10*time.Second, cfg.Lookup.Timeout.Duration)
	assert.Equal(t, "tesseract", cfg.OCR.Engine)
	assert.Equal(t, 90, cfg.Camera.Rotation)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[lookup]
base_url = "http://localhost:8080/api"
timeout = "3s"

[ocr]
engine = "gemini"
gemini_model = "gemini-1.5-pro"

[camera]
device = 2
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080/api", cfg.Lookup.BaseURL)
	assert.Equal(t, 3*time.Second, cfg.Lookup.Timeout.Duration)
	assert.Equal(t, "gemini", cfg.OCR.Engine)
	assert.Equal(t, 2, cfg.Camera.Device)
	// Untouched sections keep defaults.
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	require.Error(t, err)
}

func TestLoadRejectsBadValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[ocr]\nengine = \"magic\"\n"), 0o644))
	_, err := Load(path)
	require.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	env := map[string]string{
		"CARDSCAN_LOOKUP_BASE_URL": "http://cards.local/api",
		"CARDSCAN_LOOKUP_TIMEOUT":  "250ms",
		"CARDSCAN_CAMERA_DEVICE":   "1",
		"CARDSCAN_BOT_TOKEN":       "secret",
	}
	cfg := Default()
	require.NoError(t, applyEnv(&cfg, func(k string) string { return env[k] }))

	assert.Equal(t, "http://cards.local/api", cfg.Lookup.BaseURL)
	assert.Equal(t, 250*time.Millisecond, cfg.Lookup.Timeout.Duration)
	assert.Equal(t, 1, cfg.Camera.Device)
	assert.Equal(t, "secret", cfg.Bot.Token)
}

func TestEnvBadNumber(t *testing.T) {
	cfg := Default()
	err := applyEnv(&cfg, func(k string) string {
		if k == "CARDSCAN_CAMERA_DEVICE" {
			return "front"
		}
		return ""
	})
	require.Error(t, err)
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "config.toml")
	cfg := Default()
	cfg.Camera.Device = 3
	require.NoError(t, Save(cfg, path))

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 3, got.Camera.Device)
}
