// Package config loads configs/config.yml with POOL_* environment overrides.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const envPrefix = "POOL"

type Config struct {
	Port      string          `mapstructure:"port"`
	DB        DBConfig        `mapstructure:"db"`
	Log       LogConfig       `mapstructure:"log"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Location  LocationConfig  `mapstructure:"location"`
	Device    DeviceConfig    `mapstructure:"device"`
	Timers    TimersConfig    `mapstructure:"timers"`
}

type DBConfig struct {
	Path string `mapstructure:"path"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type SchedulerConfig struct {
	Tick     time.Duration `mapstructure:"tick"`
	Timezone string        `mapstructure:"timezone"`
}

// LocationConfig positions the pool for sunrise and sunset triggers.
type LocationConfig struct {
	Enabled   bool    `mapstructure:"enabled"`
	Latitude  float64 `mapstructure:"latitude"`
	Longitude float64 `mapstructure:"longitude"`
}

type DeviceConfig struct {
	AmbientC      float64       `mapstructure:"ambient_c"`
	WaterC        float64       `mapstructure:"water_c"`
	BuzzerEnabled bool          `mapstructure:"buzzer_enabled"`
	Tick          time.Duration `mapstructure:"tick"`
}

type TimersConfig struct {
	SeedFile string `mapstructure:"seed_file"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", "8080")
	v.SetDefault("db.path", "pool.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("scheduler.tick", time.Second)
	v.SetDefault("scheduler.timezone", "Local")
	v.SetDefault("location.enabled", false)
	v.SetDefault("location.latitude", 0.0)
	v.SetDefault("location.longitude", 0.0)
	v.SetDefault("device.ambient_c", 22.0)
	v.SetDefault("device.water_c", 18.0)
	v.SetDefault("device.buzzer_enabled", true)
	v.SetDefault("device.tick", time.Second)
	v.SetDefault("timers.seed_file", "configs/timers.yml")
}

// Load reads config.yml from the given directories (first match wins).
// A missing file is not an error: defaults and environment still apply.
func Load(paths ...string) (Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yml")
	for _, p := range paths {
		v.AddConfigPath(p)
	}
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// TimeLocation resolves scheduler.timezone.
func (c Config) TimeLocation() (*time.Location, error) {
	switch c.Scheduler.Timezone {
	case "", "Local":
		return time.Local, nil
	default:
		loc, err := time.LoadLocation(c.Scheduler.Timezone)
		if err != nil {
			return nil, fmt.Errorf("load timezone %q: %w", c.Scheduler.Timezone, err)
		}
		return loc, nil
	}
}

func (c Config) validate() error {
	if c.Scheduler.Tick <= 0 {
		return fmt.Errorf("scheduler.tick must be positive, got %s", c.Scheduler.Tick)
	}
	if c.Device.Tick <= 0 {
		return fmt.Errorf("device.tick must be positive, got %s", c.Device.Tick)
	}
	if c.Location.Enabled {
		if c.Location.Latitude < -90 || c.Location.Latitude > 90 {
			return fmt.Errorf("location.latitude out of range: %v", c.Location.Latitude)
		}
		if c.Location.Longitude < -180 || c.Location.Longitude > 180 {
			return fmt.Errorf("location.longitude out of range: %v", c.Location.Longitude)
		}
	}
	if _, err := c.TimeLocation(); err != nil {
		return err
	}
	return nil
}
