// Package config loads scanner settings from defaults, an optional TOML file and
// CARDSCAN_* environment variables, in that order.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"card-scanner/internal/lookup"
)

const (
	appDir     = "card-scanner"
	configFile = "config.toml"
	envPrefix  = "CARDSCAN_"
)

// Config is the full application configuration.
type Config struct {
	Lookup   Lookup   `toml:"lookup"`
	Camera   Camera   `toml:"camera"`
	OCR      OCR      `toml:"ocr"`
	Detector Detector `toml:"detector"`
	Log      Log      `toml:"log"`
	Catalog  Catalog  `toml:"catalog"`
	Bot      Bot      `toml:"bot"`
}

// Lookup configures the card lookup client.
type Lookup struct {
	BaseURL string   `toml:"base_url"`
	Timeout Duration `toml:"timeout"`
}

// Camera selects the capture device.
type Camera struct {
	Device   int     `toml:"device"`
	Width    int     `toml:"width"`
	Height   int     `toml:"height"`
	FPS      float64 `toml:"fps"`
	Rotation int     `toml:"rotation"`
}

// OCR selects and configures the text recognizer.
type OCR struct {
	Engine         string `toml:"engine"` // "tesseract" or "gemini"
	Language       string `toml:"language"`
	TessdataPrefix string `toml:"tessdata_prefix"`
	Whitelist      string `toml:"whitelist"`
	GeminiModel    string `toml:"gemini_model"`
	GeminiAPIKey   string `toml:"gemini_api_key"`
}

// Detector tunes card detection.
type Detector struct {
	MinAreaFraction float64 `toml:"min_area_fraction"`
	MaxAreaFraction float64 `toml:"max_area_fraction"`
	AspectTolerance float64 `toml:"aspect_tolerance"`
}

// Log configures the slog handler.
type Log struct {
	Level  string `toml:"level"`
	Format string `toml:"format"` // "text" or "json"
}

// Catalog configures the development lookup service.
type Catalog struct {
	Source string `toml:"source"` // path to a JSON catalog, or empty when DSN is set
	DSN    string `toml:"dsn"`
	Listen string `toml:"listen"`
	Prefix string `toml:"prefix"`
	Watch  bool   `toml:"watch"`
}

// Bot configures the Telegram front end.
type Bot struct {
	Token string `toml:"token"`
	Debug bool   `toml:"debug"`
}

// Duration is a time.Duration that decodes from TOML strings such as "10s".
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Lookup: Lookup{
			BaseURL: lookup.DefaultBaseURL,
			Timeout: Duration{10 * time.Second},
		},
		Camera: Camera{Width: 1280, Height: 720, Rotation: 90},
		OCR: OCR{
			Engine:   "tesseract",
			Language: "eng",
		},
		Detector: Detector{
			MinAreaFraction: 0.05,
			MaxAreaFraction: 0.95,
			AspectTolerance: 0.25,
		},
		Log:     Log{Level: "info", Format: "text"},
		Catalog: Catalog{Listen: ":8080", Prefix: "/api"},
	}
}

// DefaultPath returns ~/.config/card-scanner/config.toml or the platform
// equivalent.
func DefaultPath() string {
	configDir, err := os.UserConfigDir()
	if err != nil {
		configDir = filepath.Join(os.Getenv("HOME"), ".config")
	}
	return filepath.Join(configDir, appDir, configFile)
}

// Load builds the configuration. An empty path means DefaultPath, whose absence
// is not an error; an explicitly named file must exist.
func Load(path string) (Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultPath()
	}

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			// No file is fine.
		} else {
			return cfg, fmt.Errorf("failed to load config %s: %w", path, err)
		}
	}

	if err := applyEnv(&cfg, os.Getenv); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

// Validate checks values that would otherwise fail late.
func (c Config) Validate() error {
	switch c.OCR.Engine {
	case "tesseract", "gemini":
	default:
		return fmt.Errorf("unknown ocr engine %q", c.OCR.Engine)
	}
	switch c.Camera.Rotation {
	case 0, 90, 180, 270:
	default:
		return fmt.Errorf("camera rotation must be 0, 90, 180 or 270, got %d", c.Camera.Rotation)
	}
	if c.Lookup.BaseURL == "" {
		return errors.New("lookup base_url is empty")
	}
	return nil
}

// applyEnv overrides fields from CARDSCAN_* variables.
func applyEnv(cfg *Config, getenv func(string) string) error {
	str := func(key string, dst *string) {
		if v := getenv(envPrefix + key); v != "" {
			*dst = v
		}
	}
	var errs []error
	num := func(key string, dst *int) {
		if v := getenv(envPrefix + key); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", envPrefix, key, err))
				return
			}
			*dst = n
		}
	}

	str("LOOKUP_BASE_URL", &cfg.Lookup.BaseURL)
	if v := getenv(envPrefix + "LOOKUP_TIMEOUT"); v != "" {
		if err := cfg.Lookup.Timeout.UnmarshalText([]byte(v)); err != nil {
			errs = append(errs, fmt.Errorf("%sLOOKUP_TIMEOUT: %w", envPrefix, err))
		}
	}
	num("CAMERA_DEVICE", &cfg.Camera.Device)
	num("CAMERA_ROTATION", &cfg.Camera.Rotation)
	str("OCR_ENGINE", &cfg.OCR.Engine)
	str("OCR_LANGUAGE", &cfg.OCR.Language)
	str("TESSDATA_PREFIX", &cfg.OCR.TessdataPrefix)
	str("GEMINI_MODEL", &cfg.OCR.GeminiModel)
	str("GEMINI_API_KEY", &cfg.OCR.GeminiAPIKey)
	str("LOG_LEVEL", &cfg.Log.Level)
	str("LOG_FORMAT", &cfg.Log.Format)
	str("CATALOG_SOURCE", &cfg.Catalog.Source)
	str("CATALOG_DSN", &cfg.Catalog.DSN)
	str("CATALOG_LISTEN", &cfg.Catalog.Listen)
	str("BOT_TOKEN", &cfg.Bot.Token)

	return errors.Join(errs...)
}

// Save writes cfg as TOML to path, creating the directory.
func Save(cfg Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return toml.NewEncoder(f).Encode(cfg)
}

// Logger builds the process logger described by l.
func (l Log) Logger() *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(l.Level))); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(l.Format, "json") {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}
