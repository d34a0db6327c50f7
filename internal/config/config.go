package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/matijazezelj/evroute/internal/geo"
	"github.com/matijazezelj/evroute/internal/routing"
	"github.com/spf13/viper"
)

type Config struct {
	Storage StorageConfig `mapstructure:"storage"`
	Sources SourcesConfig `mapstructure:"sources"`
	Vehicle VehicleConfig `mapstructure:"vehicle"`
	Routing RoutingConfig `mapstructure:"routing"`
	Server  ServerConfig  `mapstructure:"server"`
	Geocode GeocodeConfig `mapstructure:"geocode"`
	Imports ImportsConfig `mapstructure:"imports"`
}

type StorageConfig struct {
	Path     string         `mapstructure:"path"`
	Memgraph MemgraphConfig `mapstructure:"memgraph"`
}

type MemgraphConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	URI      string `mapstructure:"uri"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

type SourcesConfig struct {
	Networks []NetworkSource `mapstructure:"networks"`
	Stations []StationSource `mapstructure:"stations"`
}

type NetworkSource struct {
	Path string `mapstructure:"path"`
}

type StationSource struct {
	Path string `mapstructure:"path"`
	// MaxSnapDistance overrides routing.max_snap_distance for this file.
	MaxSnapDistance float64 `mapstructure:"max_snap_distance"`
}

type VehicleConfig struct {
	BatteryCapacity float64 `mapstructure:"battery_capacity"`
	ConsumptionRate float64 `mapstructure:"consumption_rate"`
}

// Vehicle converts the section to the router's vehicle.
func (v VehicleConfig) Vehicle() routing.Vehicle {
	return routing.Vehicle{BatteryCapacity: v.BatteryCapacity, ConsumptionRate: v.ConsumptionRate}
}

type RoutingConfig struct {
	Metric          string  `mapstructure:"metric"`
	Precision       int     `mapstructure:"precision"`
	SafetyMargin    float64 `mapstructure:"safety_margin"`
	MaxRechargeLegs int     `mapstructure:"max_recharge_legs"`
	MaxExpansions   int     `mapstructure:"max_expansions"`
	MaxSnapDistance float64 `mapstructure:"max_snap_distance"`
}

// Options converts the section to search options.
func (r RoutingConfig) Options() routing.Options {
	return routing.Options{
		SafetyMargin:    r.SafetyMargin,
		Precision:       r.Precision,
		MaxRechargeLegs: r.MaxRechargeLegs,
		MaxExpansions:   r.MaxExpansions,
	}
}

type ServerConfig struct {
	Listen     string `mapstructure:"listen"`
	ReadOnly   bool   `mapstructure:"read_only"`
	APIToken   string `mapstructure:"api_token"`
	CORSOrigin string `mapstructure:"cors_origin"`
}

type GeocodeConfig struct {
	Enabled       bool    `mapstructure:"enabled"`
	URL           string  `mapstructure:"url"`
	UserAgent     string  `mapstructure:"user_agent"`
	RatePerSecond float64 `mapstructure:"rate_per_second"`
	Timeout       string  `mapstructure:"timeout"`
}

type ImportsConfig struct {
	Schedule  string `mapstructure:"schedule"`
	OnStartup bool   `mapstructure:"on_startup"`
}

// ScheduleInterval parses imports.schedule. An empty schedule disables
// periodic imports and returns zero.
func (c ImportsConfig) ScheduleInterval() (time.Duration, error) {
	if c.Schedule == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.Schedule)
	if err != nil {
		return 0, fmt.Errorf("invalid imports.schedule %q: %w", c.Schedule, err)
	}
	if d < time.Minute {
		return 0, fmt.Errorf("imports.schedule %s is shorter than one minute", d)
	}
	return d, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("storage.path", "./data/evroute.db")
	v.SetDefault("storage.memgraph.enabled", false)
	v.SetDefault("storage.memgraph.uri", "bolt://localhost:7687")
	v.SetDefault("vehicle.battery_capacity", 100.0)
	v.SetDefault("vehicle.consumption_rate", 0.25)
	v.SetDefault("routing.metric", "haversine")
	v.SetDefault("routing.precision", routing.DefaultPrecision)
	v.SetDefault("routing.safety_margin", routing.DefaultSafetyMargin)
	v.SetDefault("routing.max_recharge_legs", routing.DefaultMaxRechargeLegs)
	v.SetDefault("routing.max_expansions", 2_000_000)
	v.SetDefault("routing.max_snap_distance", 500.0)
	v.SetDefault("server.listen", ":8080")
	v.SetDefault("server.read_only", false)
	v.SetDefault("geocode.enabled", false)
	v.SetDefault("geocode.url", "https://nominatim.openstreetmap.org")
	v.SetDefault("geocode.user_agent", "evroute")
	v.SetDefault("geocode.rate_per_second", 1.0)
	v.SetDefault("geocode.timeout", "10s")
	v.SetDefault("imports.on_startup", false)
}

// Load reads the configuration from file and environment variables.
func Load(cfgFile string) (*Config, error) {
	v := viper.New()
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			v.AddConfigPath(filepath.Join(home, ".evroute"))
		}
		v.AddConfigPath(".")
		v.SetConfigName("evroute")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix("EVROUTE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	// Secrets may reference the environment, e.g. api_token: ${EVROUTE_TOKEN}.
	cfg.Server.APIToken = os.ExpandEnv(cfg.Server.APIToken)
	cfg.Storage.Memgraph.Password = os.ExpandEnv(cfg.Storage.Memgraph.Password)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values that would otherwise only fail at request time.
func (c *Config) Validate() error {
	if _, err := geo.ParseMetric(c.Routing.Metric); err != nil {
		return fmt.Errorf("routing.metric: %w", err)
	}
	if c.Vehicle.BatteryCapacity <= 0 {
		return fmt.Errorf("vehicle.battery_capacity must be positive, got %v", c.Vehicle.BatteryCapacity)
	}
	if c.Vehicle.ConsumptionRate <= 0 {
		return fmt.Errorf("vehicle.consumption_rate must be positive, got %v", c.Vehicle.ConsumptionRate)
	}
	if c.Routing.SafetyMargin < 1 {
		return fmt.Errorf("routing.safety_margin must be at least 1, got %v", c.Routing.SafetyMargin)
	}
	if _, err := c.Imports.ScheduleInterval(); err != nil {
		return err
	}
	if c.Geocode.Timeout != "" {
		if _, err := time.ParseDuration(c.Geocode.Timeout); err != nil {
			return fmt.Errorf("invalid geocode.timeout %q: %w", c.Geocode.Timeout, err)
		}
	}
	return nil
}
