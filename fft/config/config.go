package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	internal "github.com/BenEdridge/fast-file-tracker/fft"
	"github.com/BenEdridge/fast-file-tracker/fft/filesystem/common"

	"github.com/spf13/viper"
)

// Hash error policies.
const (
	HashPolicySkip  = "skip"
	HashPolicyAbort = "abort"
)

// minReadBufferSize matches the smallest buffer bufio will allocate.
const minReadBufferSize = 16

// Config stores all configuration of the application.
// The values are read by viper from a config file, environment variables or bound flags.
type Config struct {
	Tracker TrackerConfig `mapstructure:"tracker"`
}

// DatabaseConfig stores the in-memory store connection details.
type DatabaseConfig struct {
	DSN  string `mapstructure:"dsn"`
	Type string `mapstructure:"type"`
}

// TrackerConfig stores the pipeline settings.
type TrackerConfig struct {
	RootDir         string         `mapstructure:"rootDir"`
	OutputPath      string         `mapstructure:"outputPath"`
	Workers         int            `mapstructure:"workers"`
	WalkWorkers     int            `mapstructure:"walkWorkers"`
	ReadBufferSize  int            `mapstructure:"readBufferSize"`
	PathCapacity    int            `mapstructure:"pathCapacity"`
	HashErrorPolicy string         `mapstructure:"hashErrorPolicy"`
	Excludes        []string       `mapstructure:"excludes"`
	LogLevel        string         `mapstructure:"logLevel"`
	Database        DatabaseConfig `mapstructure:"database"`
}

var AppConfig Config

// Default returns a TrackerConfig populated with the built-in defaults.
func Default() TrackerConfig {
	return TrackerConfig{
		RootDir:         internal.DefaultRootDir,
		OutputPath:      internal.DefaultOutputPath,
		Workers:         internal.DefaultHashWorkers(),
		WalkWorkers:     internal.DefaultWalkWorkers(),
		ReadBufferSize:  internal.DefaultReadBufferSize,
		PathCapacity:    internal.DefaultPathCapacity,
		HashErrorPolicy: internal.DefaultHashPolicy,
		LogLevel:        internal.DefaultLogLevel,
		Database: DatabaseConfig{
			DSN:  internal.DefaultDatabaseDSN,
			Type: internal.DefaultDatabaseType,
		},
	}
}

// Validate normalises worker counts and sizes and rejects unknown policies.
func (c *TrackerConfig) Validate() error {
	if c.Workers < 1 {
		c.Workers = internal.DefaultHashWorkers()
	}
	if c.WalkWorkers < 1 {
		c.WalkWorkers = internal.DefaultWalkWorkers()
	}
	if c.ReadBufferSize < minReadBufferSize {
		c.ReadBufferSize = internal.DefaultReadBufferSize
	}
	if c.PathCapacity < 0 {
		c.PathCapacity = 0
	}
	if c.Database.DSN == "" {
		c.Database.DSN = internal.DefaultDatabaseDSN
	}
	if c.Database.Type == "" {
		c.Database.Type = internal.DefaultDatabaseType
	}

	c.HashErrorPolicy = strings.ToLower(strings.TrimSpace(c.HashErrorPolicy))
	switch c.HashErrorPolicy {
	case "":
		c.HashErrorPolicy = HashPolicySkip
	case HashPolicySkip, HashPolicyAbort:
	default:
		return fmt.Errorf("%w: %q", common.ErrInvalidHashPolicy, c.HashErrorPolicy)
	}
	return nil
}

// SetDefaults registers the built-in defaults on v.
func SetDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("tracker.rootDir", d.RootDir)
	v.SetDefault("tracker.outputPath", d.OutputPath)
	v.SetDefault("tracker.workers", d.Workers)
	v.SetDefault("tracker.walkWorkers", d.WalkWorkers)
	v.SetDefault("tracker.readBufferSize", d.ReadBufferSize)
	v.SetDefault("tracker.pathCapacity", d.PathCapacity)
	v.SetDefault("tracker.hashErrorPolicy", d.HashErrorPolicy)
	v.SetDefault("tracker.excludes", []string{})
	v.SetDefault("tracker.logLevel", d.LogLevel)
	v.SetDefault("tracker.database.dsn", d.Database.DSN)
	v.SetDefault("tracker.database.type", d.Database.Type)
}

// LoadConfig reads configuration from file or environment variables.
func LoadConfig(configPath string) (*Config, error) {
	return LoadConfigWith(viper.New(), configPath)
}

// LoadConfigWith reads configuration into v, so callers can bind flags first.
func LoadConfigWith(v *viper.Viper, configPath string) (*Config, error) {
	if configPath != "" {
		// An explicit file must exist; only the search paths are optional.
		if _, err := os.Stat(configPath); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		v.SetConfigFile(configPath)
	} else {
		v.AddConfigPath(".")
		v.AddConfigPath(internal.DefaultConfigPath)
		v.AddConfigPath(internal.DefaultSystemConfig)
		v.SetConfigName(internal.DefaultConfigName)
		v.SetConfigType("yaml")
	}

	SetDefaults(v)

	v.SetEnvPrefix(internal.DefaultEnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_")) // tracker.workers becomes FFT_TRACKER_WORKERS
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode into struct: %w", err)
	}
	if err := cfg.Tracker.Validate(); err != nil {
		return nil, err
	}

	AppConfig = cfg
	return &cfg, nil
}
