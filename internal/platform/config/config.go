package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/yungbote/questionbank/internal/platform/envutil"
	"github.com/yungbote/questionbank/internal/platform/logger"
)

const (
	configPathEnv     = "QB_CONFIG_PATH"
	maxRecentDatabase = 10
)

type HTTPConfig struct {
	Addr            string        `yaml:"addr"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	CORSOrigins     []string      `yaml:"cors_origins"`
}

type RedisConfig struct {
	// Addr enables the fetch cache when non-empty.
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
}

type Config struct {
	Env             string      `yaml:"env"`
	DefaultDBPath   string      `yaml:"default_db_path"`
	CreateDB        bool        `yaml:"create_db"`
	DefaultOutput   string      `yaml:"default_output_dir"`
	RecentDatabases []string    `yaml:"recent_databases"`
	PageSize        int         `yaml:"page_size"`
	HTTP            HTTPConfig  `yaml:"http"`
	Redis           RedisConfig `yaml:"redis"`
	OTelEnabled     bool        `yaml:"otel_enabled"`
	MetricsEnabled  bool        `yaml:"metrics_enabled"`

	path string
}

func Default() *Config {
	return &Config{
		Env:             "development",
		DefaultDBPath:   "data/questions.db",
		CreateDB:        true,
		DefaultOutput:   "output/",
		RecentDatabases: []string{},
		PageSize:        100,
		HTTP: HTTPConfig{
			Addr:            ":8080",
			ShutdownTimeout: 15 * time.Second,
		},
		Redis:          RedisConfig{TTL: 10 * time.Minute},
		MetricsEnabled: true,
	}
}

// Load resolves configuration from .env, an optional YAML file and environment overrides, in that order.
func Load(log *logger.Logger) (*Config, error) {
	if err := godotenv.Load(); err != nil && log != nil {
		log.Debug("no .env file loaded", "error", err)
	}

	cfg := Default()
	cfgPath := strings.TrimSpace(os.Getenv(configPathEnv))
	if cfgPath == "" {
		if wd, err := os.Getwd(); err == nil {
			p := filepath.Join(wd, "config", "questionbank.yaml")
			if _, err := os.Stat(p); err == nil {
				cfgPath = p
			}
		}
	}
	if cfgPath != "" {
		loaded, err := LoadFile(cfgPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
		if log != nil {
			log.Info("config file loaded", "path", cfgPath)
		}
	}

	applyEnv(cfg)
	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile reads a YAML config, filling unset fields from Default.
func LoadFile(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(b, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.path = path
	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.Env = envutil.String("LOG_MODE", cfg.Env)
	cfg.DefaultDBPath = envutil.String("QB_DB_PATH", cfg.DefaultDBPath)
	cfg.CreateDB = envutil.Bool("QB_DB_CREATE", cfg.CreateDB)
	cfg.DefaultOutput = envutil.String("QB_OUTPUT_DIR", cfg.DefaultOutput)
	cfg.PageSize = envutil.Int("QB_DEFAULT_PAGE_SIZE", cfg.PageSize)
	cfg.HTTP.Addr = envutil.String("QB_HTTP_ADDR", cfg.HTTP.Addr)
	cfg.HTTP.CORSOrigins = envutil.List("QB_CORS_ORIGINS", cfg.HTTP.CORSOrigins)
	cfg.Redis.Addr = envutil.String("QB_REDIS_ADDR", cfg.Redis.Addr)
	cfg.Redis.Password = envutil.String("QB_REDIS_PASSWORD", cfg.Redis.Password)
	cfg.Redis.DB = envutil.Int("QB_REDIS_DB", cfg.Redis.DB)
	cfg.Redis.TTL = envutil.Duration("QB_REDIS_TTL_SECONDS", cfg.Redis.TTL)
	cfg.OTelEnabled = envutil.Bool("OTEL_ENABLED", cfg.OTelEnabled)
	cfg.MetricsEnabled = envutil.Bool("METRICS_ENABLED", cfg.MetricsEnabled)
}

func (c *Config) normalize() error {
	if strings.TrimSpace(c.Env) == "" {
		c.Env = "development"
	}
	if strings.TrimSpace(c.DefaultDBPath) == "" {
		return errors.New("config: default_db_path is required")
	}
	if c.PageSize <= 0 {
		c.PageSize = 100
	}
	if strings.TrimSpace(c.HTTP.Addr) == "" {
		c.HTTP.Addr = ":8080"
	}
	if c.HTTP.ShutdownTimeout <= 0 {
		c.HTTP.ShutdownTimeout = 15 * time.Second
	}
	if c.Redis.TTL <= 0 {
		c.Redis.TTL = 10 * time.Minute
	}
	if c.RecentDatabases == nil {
		c.RecentDatabases = []string{}
	}
	return nil
}

// RememberDatabase moves path to the front of the recent list.
func (c *Config) RememberDatabase(path string) {
	path = strings.TrimSpace(path)
	if path == "" {
		return
	}
	out := make([]string, 0, len(c.RecentDatabases)+1)
	out = append(out, path)
	for _, p := range c.RecentDatabases {
		if p == path {
			continue
		}
		out = append(out, p)
	}
	if len(out) > maxRecentDatabase {
		out = out[:maxRecentDatabase]
	}
	c.RecentDatabases = out
}

// Path is the file the config was loaded from, if any.
func (c *Config) Path() string { return c.path }

// Save writes the config as YAML, creating the parent directory.
func (c *Config) Save(path string) error {
	if strings.TrimSpace(path) == "" {
		path = c.path
	}
	if strings.TrimSpace(path) == "" {
		return errors.New("config: no path to save to")
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	b, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return err
	}
	c.path = path
	return nil
}
