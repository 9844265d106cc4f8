package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"

	"github.com/isocanvas/isocanvas/internal/coords"
	"github.com/isocanvas/isocanvas/internal/geometry"
	"github.com/isocanvas/isocanvas/internal/input"
	"github.com/isocanvas/isocanvas/internal/render"
	"github.com/isocanvas/isocanvas/internal/store"
)

type Config struct {
	Port               int    `envconfig:"PORT" default:"8080"`
	DatabaseURL        string `envconfig:"DATABASE_URL"`
	SQLitePath         string `envconfig:"SQLITE_PATH" default:"./data/isocanvas.db"`
	JWTSecret          string `envconfig:"JWT_SECRET" default:"dev-secret-change-in-production"`
	EditPassphraseHash string `envconfig:"EDIT_PASSPHRASE_HASH"`
	AllowedOrigins     string `envconfig:"ALLOWED_ORIGINS" default:"localhost:5173,localhost:3000"`
	LogLevel           string `envconfig:"LOG_LEVEL" default:"info"`

	// AutosaveInterval is how often live scenes are written back; 0 disables
	// periodic saves (scenes are still saved when the last editor leaves).
	AutosaveInterval time.Duration `envconfig:"AUTOSAVE_INTERVAL" default:"30s"`

	WindowWidth  int     `envconfig:"WINDOW_WIDTH" default:"1280"`
	WindowHeight int     `envconfig:"WINDOW_HEIGHT" default:"720"`
	DefaultScale int     `envconfig:"DEFAULT_SCALE" default:"10"`
	MinScale     int     `envconfig:"MIN_SCALE" default:"1"`
	MaxScale     int     `envconfig:"MAX_SCALE" default:"64"`
	PanStep      float64 `envconfig:"PAN_STEP" default:"1"`
	SnapToGrid   bool    `envconfig:"SNAP_TO_GRID" default:"true"`
	HitTolerance float64 `envconfig:"HIT_TOLERANCE" default:"0.5"`
	GridMinScale int     `envconfig:"GRID_MIN_SCALE" default:"4"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks ranges envconfig cannot express.
func (c *Config) Validate() error {
	var errs []error
	if c.WindowWidth <= 0 || c.WindowHeight <= 0 {
		errs = append(errs, fmt.Errorf("window size %dx%d must be positive", c.WindowWidth, c.WindowHeight))
	}
	if c.DefaultScale < c.MinScale || c.DefaultScale > c.MaxScale {
		errs = append(errs, fmt.Errorf("DEFAULT_SCALE %d outside [%d, %d]", c.DefaultScale, c.MinScale, c.MaxScale))
	}
	if err := c.Canvas().Validate(); err != nil {
		errs = append(errs, err)
	}
	if c.AutosaveInterval < 0 {
		errs = append(errs, fmt.Errorf("AUTOSAVE_INTERVAL %v must not be negative", c.AutosaveInterval))
	}
	if _, err := c.Level(); err != nil {
		errs = append(errs, err)
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// Canvas returns the input controller settings.
func (c *Config) Canvas() input.Settings {
	return input.Settings{
		PanStep:      c.PanStep,
		MinScale:     c.MinScale,
		MaxScale:     c.MaxScale,
		HitTolerance: c.HitTolerance,
		SnapToGrid:   c.SnapToGrid,
	}
}

// Viewport is the initial navigation state: default scale, zero offset and
// the configured window size.
func (c *Config) Viewport() (coords.Viewport, error) {
	return coords.NewViewport(c.DefaultScale, c.WindowWidth, c.WindowHeight)
}

// StoreOptions are the options for server-side scene stores.
func (c *Config) StoreOptions() (store.Options, error) {
	vp, err := c.Viewport()
	if err != nil {
		return store.Options{}, err
	}
	return store.Options{Viewport: vp, DefaultStyle: geometry.DefaultStyle}, nil
}

// Theme is the default render theme with the configured grid cutoff.
func (c *Config) Theme() render.Theme {
	t := render.DefaultTheme
	t.GridMinScale = c.GridMinScale
	return t
}

// Level parses LOG_LEVEL.
func (c *Config) Level() (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("LOG_LEVEL: %w", err)
	}
	return l, nil
}

// Origins splits ALLOWED_ORIGINS into websocket origin patterns.
func (c *Config) Origins() []string {
	var out []string
	for _, o := range strings.Split(c.AllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}
