package config

import (
	"errors"
	"io/fs"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const DefaultNamespace = "default-app-id"

type Config struct {
	Server struct {
		Port string `yaml:"port"`
		// PublicURL is the address players open to join; encoded by the QR endpoint.
		PublicURL string `yaml:"public_url"`
	} `yaml:"server"`
	Redis struct {
		Addr        string `yaml:"addr"`
		Password    string `yaml:"password"`
		DB          int    `yaml:"db"`
		AttemptsMax int64  `yaml:"attempts_max"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	Auth struct {
		Secret       string `yaml:"secret"`
		AdminSubject string `yaml:"admin_subject"`
		TokenTTL     string `yaml:"token_ttl"`
	} `yaml:"auth"`
	Game struct {
		Namespace string `yaml:"namespace"`
	} `yaml:"game"`
	Questions struct {
		CacheTTL string `yaml:"cache_ttl"`
	} `yaml:"questions"`
}

// Load reads YAML config from path. A missing file yields the defaults.
func Load(path string) (Config, error) {
	cfg := Config{}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		cfg.applyDefaults()
		return cfg, nil
	}
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Game.Namespace == "" {
		c.Game.Namespace = DefaultNamespace
	}
	if c.Server.Port == "" {
		c.Server.Port = "8080"
	}
}

// TTLDuration parses a duration string or returns the fallback if empty.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}
