package config

import (
	"errors"
	"fmt"
	"io/ioutil"
	"time"

	"gopkg.in/yaml.v2"
)

// RawYamlConfig mirrors the config file. Durations are given in seconds.
type RawYamlConfig struct {
	Port          string `yaml:"port"`
	FrontendHost  string `yaml:"frontendHost"`
	StaticDir     string `yaml:"staticDir"`
	SendQueueSize int    `yaml:"sendQueueSize"`
	ReadLimit     int64  `yaml:"readLimit"`
	PingPeriod    int    `yaml:"pingPeriod"`
	PongWait      int    `yaml:"pongWait"`
	WriteWait     int    `yaml:"writeWait"`
	Debug         bool   `yaml:"debug"`
}

// Config holds everything that differs between deployments of the server.
type Config struct {
	Port         string
	FrontendHost string
	// StaticDir, when set, is served for any path not matched by a route.
	StaticDir     string
	SendQueueSize int
	ReadLimit     int64
	PingPeriod    time.Duration
	PongWait      time.Duration
	WriteWait     time.Duration
	Debug         bool
}

func Default() *Config {
	return &Config{
		SendQueueSize: 256,
		ReadLimit:     4096,
		PingPeriod:    54 * time.Second,
		PongWait:      60 * time.Second,
		WriteWait:     10 * time.Second,
	}
}

// ParseConfig reads a YAML config file over the defaults. An empty path
// returns the defaults.
func ParseConfig(path string) (*Config, error) {
	config := Default()
	if path == "" {
		return config, nil
	}

	configFile, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("unable to read config: %w", err)
	}

	var raw RawYamlConfig
	if err := yaml.UnmarshalStrict(configFile, &raw); err != nil {
		return nil, fmt.Errorf("unable to parse yaml config: %w", err)
	}
	config.apply(raw)
	return config, nil
}

func (c *Config) apply(raw RawYamlConfig) {
	if raw.Port != "" {
		c.Port = raw.Port
	}
	if raw.FrontendHost != "" {
		c.FrontendHost = raw.FrontendHost
	}
	if raw.StaticDir != "" {
		c.StaticDir = raw.StaticDir
	}
	if raw.SendQueueSize != 0 {
		c.SendQueueSize = raw.SendQueueSize
	}
	if raw.ReadLimit != 0 {
		c.ReadLimit = raw.ReadLimit
	}
	if raw.PingPeriod != 0 {
		c.PingPeriod = time.Duration(raw.PingPeriod) * time.Second
	}
	if raw.PongWait != 0 {
		c.PongWait = time.Duration(raw.PongWait) * time.Second
	}
	if raw.WriteWait != 0 {
		c.WriteWait = time.Duration(raw.WriteWait) * time.Second
	}
	c.Debug = c.Debug || raw.Debug
}

// Validate checks the settings the server cannot start without.
func (c *Config) Validate() error {
	switch {
	case c.Port == "":
		return errors.New("port must be set")
	case c.FrontendHost == "":
		return errors.New("frontendHost must be set")
	case c.SendQueueSize <= 0:
		return fmt.Errorf("sendQueueSize must be positive, got %d", c.SendQueueSize)
	case c.ReadLimit <= 0:
		return fmt.Errorf("readLimit must be positive, got %d", c.ReadLimit)
	case c.WriteWait <= 0 || c.PongWait <= 0 || c.PingPeriod <= 0:
		return errors.New("pingPeriod, pongWait and writeWait must be positive")
	case c.PingPeriod >= c.PongWait:
		return fmt.Errorf("pingPeriod (%s) must be shorter than pongWait (%s)", c.PingPeriod, c.PongWait)
	}
	return nil
}
