// Package config loads rfprofile settings from config.yaml and RFPROFILE_*
// environment variables.
package config

import (
	"fmt"
	"slices"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sells-group/rfprofile-cli/internal/model"
)

// Config holds the full application configuration.
type Config struct {
	Transmitter TransmitterConfig `yaml:"transmitter" mapstructure:"transmitter"`
	P1812       P1812Config       `yaml:"p1812" mapstructure:"p1812"`
	Receivers   ReceiversConfig   `yaml:"receivers" mapstructure:"receivers"`
	Data        DataConfig        `yaml:"data" mapstructure:"data"`
	Zones       ZonesConfig       `yaml:"zones" mapstructure:"zones"`
	Workers     WorkersConfig     `yaml:"workers" mapstructure:"workers"`
	Store       StoreConfig       `yaml:"store" mapstructure:"store"`
	Server      ServerConfig      `yaml:"server" mapstructure:"server"`
	Log         LogConfig         `yaml:"log" mapstructure:"log"`
}

// TransmitterConfig describes the default transmitter.
type TransmitterConfig struct {
	ID  string  `yaml:"id" mapstructure:"id"`
	Lon float64 `yaml:"lon" mapstructure:"lon"`
	Lat float64 `yaml:"lat" mapstructure:"lat"`
	// HTG and HRG are the transmitter and receiver antenna heights in metres.
	HTG float64 `yaml:"htg" mapstructure:"htg"`
	HRG float64 `yaml:"hrg" mapstructure:"hrg"`
}

// P1812Config holds the radio parameters copied onto every profile.
type P1812Config struct {
	FrequencyGHz   float64 `yaml:"frequency_ghz" mapstructure:"frequency_ghz"`
	TimePercentage float64 `yaml:"time_percentage" mapstructure:"time_percentage"`
	Polarization   string  `yaml:"polarization" mapstructure:"polarization"`
}

// ReceiversConfig shapes the radial receiver grid.
type ReceiversConfig struct {
	MaxDistanceKM  float64 `yaml:"max_distance_km" mapstructure:"max_distance_km"`
	DistanceStepKM float64 `yaml:"distance_step_km" mapstructure:"distance_step_km"`
	NumAzimuths    int     `yaml:"num_azimuths" mapstructure:"num_azimuths"`
	IncludeTxPoint bool    `yaml:"include_tx_point" mapstructure:"include_tx_point"`
}

// DataConfig locates the reference data and output.
type DataConfig struct {
	DEMPath        string  `yaml:"dem_path" mapstructure:"dem_path"`
	LandCoverPath  string  `yaml:"landcover_path" mapstructure:"landcover_path"`
	ZonesPath      string  `yaml:"zones_path" mapstructure:"zones_path"`
	ZonesAttribute string  `yaml:"zones_attribute" mapstructure:"zones_attribute"`
	LookupPath     string  `yaml:"lookup_path" mapstructure:"lookup_path"`
	MinElevation   float64 `yaml:"min_elevation" mapstructure:"min_elevation"`
	MaxElevation   float64 `yaml:"max_elevation" mapstructure:"max_elevation"`
	OutputDir      string  `yaml:"output_dir" mapstructure:"output_dir"`
	Format         string  `yaml:"format" mapstructure:"format"`
}

// ZonesConfig configures zone classification.
type ZonesConfig struct {
	DefaultZone int   `yaml:"default_zone" mapstructure:"default_zone"`
	ValidZones  []int `yaml:"valid_zones" mapstructure:"valid_zones"`
}

// WorkersConfig bounds enrichment parallelism.
type WorkersConfig struct {
	Concurrency int `yaml:"concurrency" mapstructure:"concurrency"`
	ShardSize   int `yaml:"shard_size" mapstructure:"shard_size"`
}

// StoreConfig selects the run store.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`

	// ConnectAttempts bounds retries of connect and migrate at startup.
	ConnectAttempts int `yaml:"connect_attempts" mapstructure:"connect_attempts"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
	// RateLimit is requests per second across all clients; 0 disables it.
	RateLimit float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
	Burst     int     `yaml:"burst" mapstructure:"burst"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from an optional ./config.yaml and environment.
func Load() (*Config, error) {
	return LoadFile("")
}

// LoadFile is Load with an explicit config file, which must exist. An empty
// path falls back to the optional ./config.yaml.
func LoadFile(path string) (*Config, error) {
	v := viper.New()

	// Config file
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
	}
	v.SetConfigType("yaml")

	// Environment
	v.SetEnvPrefix("RFPROFILE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("transmitter.id", "tx")
	v.SetDefault("transmitter.lon", -13.40694)
	v.SetDefault("transmitter.lat", 9.345)
	v.SetDefault("transmitter.htg", 30.0)
	v.SetDefault("transmitter.hrg", 1.5)
	v.SetDefault("p1812.frequency_ghz", 0.9)
	v.SetDefault("p1812.time_percentage", 50.0)
	v.SetDefault("p1812.polarization", "horizontal")
	v.SetDefault("receivers.max_distance_km", 11.0)
	v.SetDefault("receivers.distance_step_km", 0.03)
	v.SetDefault("receivers.num_azimuths", 36)
	v.SetDefault("receivers.include_tx_point", true)
	v.SetDefault("data.dem_path", "")
	v.SetDefault("data.landcover_path", "")
	v.SetDefault("data.zones_path", "")
	v.SetDefault("data.zones_attribute", "zone_type_id")
	v.SetDefault("data.lookup_path", "")
	v.SetDefault("data.min_elevation", -32000.0)
	v.SetDefault("data.max_elevation", 0.0)
	v.SetDefault("data.output_dir", "data/output")
	v.SetDefault("data.format", "jsonl")
	v.SetDefault("zones.default_zone", model.DefaultZone)
	v.SetDefault("zones.valid_zones", []int{model.ZoneSea, model.ZoneCoastal, model.ZoneInland})
	v.SetDefault("workers.concurrency", 4)
	v.SetDefault("workers.shard_size", 4096)
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "rfprofile.db")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 2)
	v.SetDefault("store.connect_attempts", 3)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.rate_limit", 20.0)
	v.SetDefault("server.burst", 40)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the sections every run depends on. Radio parameter
// domains are checked again where profiles are assembled.
func (c *Config) Validate() error {
	if _, err := c.TransmitterModel(); err != nil {
		return err
	}
	if c.Receivers.MaxDistanceKM < 0 {
		return &model.ValidationError{Field: "receivers.max_distance_km", Reason: "must be >= 0"}
	}
	if !(c.Receivers.DistanceStepKM > 0) {
		return &model.ValidationError{Field: "receivers.distance_step_km", Reason: "must be > 0"}
	}
	if c.Receivers.NumAzimuths <= 0 {
		return &model.ValidationError{Field: "receivers.num_azimuths", Reason: "must be > 0"}
	}
	if c.Workers.Concurrency < 0 {
		return &model.ValidationError{Field: "workers.concurrency", Reason: "must be >= 0"}
	}
	if len(c.Zones.ValidZones) > 0 && !slices.Contains(c.Zones.ValidZones, c.Zones.DefaultZone) {
		return &model.ValidationError{
			Field:  "zones.default_zone",
			Reason: fmt.Sprintf("%d is not one of the valid zones %v", c.Zones.DefaultZone, c.Zones.ValidZones),
		}
	}
	switch c.Store.Driver {
	case "sqlite", "postgres":
	default:
		return &model.ValidationError{Field: "store.driver", Reason: fmt.Sprintf("unknown driver %q", c.Store.Driver)}
	}
	return nil
}

// TransmitterModel converts the transmitter and P.1812 sections.
func (c *Config) TransmitterModel() (model.Transmitter, error) {
	pol, err := model.ParsePolarization(c.P1812.Polarization)
	if err != nil {
		return model.Transmitter{}, err
	}
	tx := model.Transmitter{
		ID:             c.Transmitter.ID,
		Location:       model.LonLat{Lon: c.Transmitter.Lon, Lat: c.Transmitter.Lat},
		HeightAGL:      c.Transmitter.HTG,
		FrequencyGHz:   c.P1812.FrequencyGHz,
		Polarization:   pol,
		TimePercentage: c.P1812.TimePercentage,
		RxHeightAGL:    c.Transmitter.HRG,
	}
	if err := tx.Validate(); err != nil {
		return model.Transmitter{}, err
	}
	return tx, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
