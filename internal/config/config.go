package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the application configuration
type Config struct {
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	DataDir    string           `yaml:"data_dir" mapstructure:"data_dir"`
	Backend    BackendConfig    `yaml:"backend" mapstructure:"backend"`
	Simulation SimulationConfig `yaml:"simulation" mapstructure:"simulation"`
	Display    DisplayConfig    `yaml:"display" mapstructure:"display"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`

	// Version is injected at build time, never read from file.
	Version string `yaml:"-" mapstructure:"-"`
}

// ServerConfig configures the local HTTP server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// BackendConfig points at the external prediction service.
type BackendConfig struct {
	URL         string  `yaml:"url" mapstructure:"url"`
	TimeoutSecs int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	RateLimit   float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
	RateBurst   int     `yaml:"rate_burst" mapstructure:"rate_burst"`
}

// Timeout returns the per-request backend timeout. Zero disables it.
func (b BackendConfig) Timeout() time.Duration {
	return time.Duration(b.TimeoutSecs) * time.Second
}

// SimulationConfig configures what-if sessions.
type SimulationConfig struct {
	QuietMs  int `yaml:"quiet_ms" mapstructure:"quiet_ms"`
	IdleMins int `yaml:"idle_mins" mapstructure:"idle_mins"`
}

// QuietPeriod returns the debounce interval for slider commits.
func (s SimulationConfig) QuietPeriod() time.Duration {
	return time.Duration(s.QuietMs) * time.Millisecond
}

// IdleTimeout returns how long an untouched session lives. Zero keeps
// sessions until they are deleted.
func (s SimulationConfig) IdleTimeout() time.Duration {
	return time.Duration(s.IdleMins) * time.Minute
}

// DisplayConfig configures value formatting.
type DisplayConfig struct {
	Locale string `yaml:"locale" mapstructure:"locale"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetEnvPrefix("MOVIEPREDICT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("server.port", 8080)
	v.SetDefault("data_dir", "./data")
	v.SetDefault("backend.url", "http://localhost:8000")
	v.SetDefault("backend.timeout_secs", 0)
	v.SetDefault("backend.rate_limit", 5.0)
	v.SetDefault("backend.rate_burst", 5)
	v.SetDefault("simulation.quiet_ms", 500)
	v.SetDefault("simulation.idle_mins", 30)
	v.SetDefault("display.locale", "en-US")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate rejects values the server cannot run with.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return eris.Errorf("config: invalid server.port %d", c.Server.Port)
	}
	if c.Backend.URL == "" {
		return eris.New("config: backend.url is required")
	}
	if c.Backend.TimeoutSecs < 0 {
		return eris.Errorf("config: invalid backend.timeout_secs %d", c.Backend.TimeoutSecs)
	}
	if c.Simulation.IdleMins < 0 {
		return eris.Errorf("config: invalid simulation.idle_mins %d", c.Simulation.IdleMins)
	}
	if c.Simulation.QuietMs < 0 {
		return eris.Errorf("config: invalid simulation.quiet_ms %d", c.Simulation.QuietMs)
	}
	return nil
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
