package config

import (
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	CORS    CORSConfig    `mapstructure:"cors"`
	Backend BackendConfig `mapstructure:"backend"`
	Owner   OwnerConfig   `mapstructure:"owner"`
	Storage StorageConfig `mapstructure:"storage"`
	Pointer PointerConfig `mapstructure:"pointer"`
	Session SessionConfig `mapstructure:"session"`
	Log     LogConfig     `mapstructure:"log"`
}

type ServerConfig struct {
	Port           int           `mapstructure:"port"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	MaxHeaderBytes int           `mapstructure:"max_header_bytes"`
}

type CORSConfig struct {
	AllowedOrigins   []string `mapstructure:"allowed_origins"`
	AllowedMethods   []string `mapstructure:"allowed_methods"`
	AllowedHeaders   []string `mapstructure:"allowed_headers"`
	ExposedHeaders   []string `mapstructure:"exposed_headers"`
	AllowCredentials bool     `mapstructure:"allow_credentials"`
	MaxAge           int      `mapstructure:"max_age"`
}

// BackendConfig points at the SQL-generation service. An empty BaseURL means
// the backend is not configured and chat creation goes straight to the
// direct-insert path.
type BackendConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type OwnerConfig struct {
	ID string `mapstructure:"id"`
}

type StorageConfig struct {
	Type      string `mapstructure:"type"`
	DataDir   string `mapstructure:"data_dir"`
	CacheSize int    `mapstructure:"cache_size"`
	DSN       string `mapstructure:"dsn"`
}

type PointerConfig struct {
	Path string `mapstructure:"path"`
}

type SessionConfig struct {
	TTL             time.Duration `mapstructure:"ttl"`
	RefreshDebounce time.Duration `mapstructure:"refresh_debounce"`
	PageSize        int           `mapstructure:"page_size"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

var cfg *Config

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 5*time.Minute)
	v.SetDefault("server.max_header_bytes", 1<<20)

	v.SetDefault("cors.allowed_origins", []string{"http://localhost:3000"})
	v.SetDefault("cors.allowed_methods", []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"})
	v.SetDefault("cors.allowed_headers", []string{"Origin", "Content-Type", "Accept"})
	v.SetDefault("cors.allow_credentials", true)
	v.SetDefault("cors.max_age", 3600)

	v.SetDefault("backend.base_url", "")
	v.SetDefault("backend.timeout", 2*time.Minute)
	v.SetDefault("owner.id", "local")

	v.SetDefault("storage.type", "memory")
	v.SetDefault("storage.data_dir", "./data")
	v.SetDefault("storage.cache_size", 100)

	v.SetDefault("session.ttl", 24*time.Hour)
	v.SetDefault("session.refresh_debounce", 150*time.Millisecond)
	v.SetDefault("session.page_size", 50)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// Default returns a configuration built from defaults and environment only.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	bindEnv(v)

	c := &Config{}
	_ = v.Unmarshal(c)
	applyEnvFallbacks(c)
	return c
}

func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")
	bindEnv(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	c := &Config{}
	if err := v.Unmarshal(c); err != nil {
		return nil, err
	}
	applyEnvFallbacks(c)

	cfg = c
	return c, nil
}

func bindEnv(v *viper.Viper) {
	v.SetEnvPrefix("QUERAI")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// The config file wins; PYTHON_BACKEND_URL is only consulted when no backend
// was configured.
func applyEnvFallbacks(c *Config) {
	if c.Backend.BaseURL == "" {
		if url := os.Getenv("PYTHON_BACKEND_URL"); url != "" {
			c.Backend.BaseURL = url
		}
	}
}

func Get() *Config {
	return cfg
}
