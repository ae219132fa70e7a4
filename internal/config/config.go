package config

import (
	"strings"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sells-group/election-map/internal/registry"
)

// Config holds the full application configuration.
type Config struct {
	Server ServerConfig `yaml:"server" mapstructure:"server"`
	Log    LogConfig    `yaml:"log" mapstructure:"log"`
	Data   DataConfig   `yaml:"data" mapstructure:"data"`
	Fetch  FetchConfig  `yaml:"fetch" mapstructure:"fetch"`
	Cache  CacheConfig  `yaml:"cache" mapstructure:"cache"`
	Map    MapConfig    `yaml:"map" mapstructure:"map"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port        int      `yaml:"port" mapstructure:"port"`
	CORSOrigins []string `yaml:"cors_origins" mapstructure:"cors_origins"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// DataConfig locates the election datasets.
type DataConfig struct {
	// ResultsDir is the directory relative results paths are resolved against.
	ResultsDir string `yaml:"results_dir" mapstructure:"results_dir"`
	// RegistryFile optionally replaces the built-in year registry.
	RegistryFile string `yaml:"registry_file" mapstructure:"registry_file"`
	LSOAURL      string `yaml:"lsoa_url" mapstructure:"lsoa_url"`
	LSOACodeCol  string `yaml:"lsoa_code_col" mapstructure:"lsoa_code_col"`
	LSOANameCol  string `yaml:"lsoa_name_col" mapstructure:"lsoa_name_col"`
}

// FetchConfig configures remote boundary downloads.
type FetchConfig struct {
	UserAgent   string `yaml:"user_agent" mapstructure:"user_agent"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxRetries  int    `yaml:"max_retries" mapstructure:"max_retries"`
	TempDir     string `yaml:"temp_dir" mapstructure:"temp_dir"`
}

// CacheConfig configures the in-process dataset caches.
type CacheConfig struct {
	// FailurePolicy is one of "permanent", "none" or "all".
	FailurePolicy string `yaml:"failure_policy" mapstructure:"failure_policy"`
}

// MapConfig holds the initial map viewport.
type MapConfig struct {
	CenterLat  float64 `yaml:"center_lat" mapstructure:"center_lat"`
	CenterLng  float64 `yaml:"center_lng" mapstructure:"center_lng"`
	Zoom       int     `yaml:"zoom" mapstructure:"zoom"`
	DetailZoom int     `yaml:"detail_zoom" mapstructure:"detail_zoom"`
	TileURL    string  `yaml:"tile_url" mapstructure:"tile_url"`
}

// Load reads configuration from .env, file and environment.
func Load() (*Config, error) {
	// .env is optional; real environment variables win over it.
	_ = godotenv.Load()

	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("ELECTIONMAP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("data.results_dir", ".")
	v.SetDefault("data.registry_file", "")
	fine := registry.DefaultFineLayer()
	v.SetDefault("data.lsoa_url", fine.URL)
	v.SetDefault("data.lsoa_code_col", fine.CodeColumn)
	v.SetDefault("data.lsoa_name_col", fine.NameColumn)
	v.SetDefault("fetch.user_agent", "election-map/1.0")
	v.SetDefault("fetch.timeout_secs", 120)
	v.SetDefault("fetch.max_retries", 2)
	v.SetDefault("fetch.temp_dir", "/tmp/election-map")
	v.SetDefault("cache.failure_policy", "permanent")
	v.SetDefault("map.center_lat", 54.5)
	v.SetDefault("map.center_lng", -2.5)
	v.SetDefault("map.zoom", 6)
	v.SetDefault("map.detail_zoom", 10)
	v.SetDefault("map.tile_url", "https://{s}.tile.openstreetmap.org/{z}/{x}/{y}.png")

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

// Validate checks the values a given command depends on.
func (c *Config) Validate(mode string) error {
	var errs []string

	switch c.Cache.FailurePolicy {
	case "permanent", "none", "all":
	default:
		errs = append(errs, "cache.failure_policy must be one of permanent, none, all")
	}

	if mode == "serve" && (c.Server.Port <= 0 || c.Server.Port > 65535) {
		errs = append(errs, "server.port must be between 1 and 65535")
	}

	if c.Data.LSOAURL == "" {
		errs = append(errs, "data.lsoa_url is required")
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
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
