// Package config assembles the trackmap settings from viper and validates
// them.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/MeKo-Tech/trackmap/internal/source"
	"github.com/MeKo-Tech/trackmap/internal/track"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// MapConfig is the headless viewport playback runs against.
type MapConfig struct {
	Width     int     `validate:"gt=0"`
	Height    int     `validate:"gt=0"`
	Zoom      float64 `validate:"gte=0,lte=24"`
	CenterLon float64 `validate:"gte=-180,lte=180"`
	CenterLat float64 `validate:"gte=-85.0511,lte=85.0511"`
}

// PlayConfig controls the playback timer.
type PlayConfig struct {
	Interval time.Duration `validate:"gt=0"`
	Step     float64       `validate:"gte=0"`
	Backward bool
}

// ResampleConfig controls batch resampling.
type ResampleConfig struct {
	Step      float64 `validate:"gte=0"`
	Workers   int     `validate:"gte=0"`
	OutputDir string  `validate:"required"`
	Progress  bool
}

// StoreConfig points at the SQLite track database.
type StoreConfig struct {
	DB string `validate:"required"`
}

// OverpassConfig configures the Overpass API client.
type OverpassConfig struct {
	Endpoint string `validate:"required,url"`
}

// Config is the complete CLI configuration.
type Config struct {
	Verbose  bool
	Map      MapConfig
	Play     PlayConfig
	Resample ResampleConfig
	Store    StoreConfig
	Overpass OverpassConfig
}

// Defaults used when neither a flag, the environment nor config.yaml set
// a value.
var Defaults = map[string]any{
	"map.width":           800,
	"map.height":          600,
	"map.zoom":            12.0,
	"map.center_lon":      0.0,
	"map.center_lat":      0.0,
	"play.interval":       track.DefaultInterval,
	"play.step":           track.DefaultStep,
	"play.backward":       false,
	"resample.step":       track.DefaultStep,
	"resample.workers":    0,
	"resample.output_dir": "./resampled",
	"resample.progress":   true,
	"store.db":            "tracks.db",
	"overpass.endpoint":   source.DefaultOverpassEndpoint,
}

var validate = validator.New()

// SetDefaults registers Defaults on v.
func SetDefaults(v *viper.Viper) {
	for key, value := range Defaults {
		v.SetDefault(key, value)
	}
}

// Load reads the configuration from v and validates it.
func Load(v *viper.Viper) (Config, error) {
	cfg := Config{
		Verbose: v.GetBool("verbose"),
		Map: MapConfig{
			Width:     v.GetInt("map.width"),
			Height:    v.GetInt("map.height"),
			Zoom:      v.GetFloat64("map.zoom"),
			CenterLon: v.GetFloat64("map.center_lon"),
			CenterLat: v.GetFloat64("map.center_lat"),
		},
		Play: PlayConfig{
			Interval: v.GetDuration("play.interval"),
			Step:     v.GetFloat64("play.step"),
			Backward: v.GetBool("play.backward"),
		},
		Resample: ResampleConfig{
			Step:      v.GetFloat64("resample.step"),
			Workers:   v.GetInt("resample.workers"),
			OutputDir: v.GetString("resample.output_dir"),
			Progress:  v.GetBool("resample.progress"),
		},
		Store: StoreConfig{
			DB: v.GetString("store.db"),
		},
		Overpass: OverpassConfig{
			Endpoint: v.GetString("overpass.endpoint"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks every section.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", describe(err))
	}
	return nil
}

// PlayType returns the configured playback direction.
func (c PlayConfig) PlayType() track.PlayType {
	if c.Backward {
		return track.Backward
	}
	return track.Forward
}

func describe(err error) error {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s failed %q", strings.TrimPrefix(fe.Namespace(), "Config."), fe.Tag()))
	}
	return fmt.Errorf("%s", strings.Join(msgs, "; "))
}
