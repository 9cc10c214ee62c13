// internal/appconfig/appconfig.go
// Package appconfig manages loading and interpreting application configuration.
package appconfig

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
)

const (
	// DefaultConfigPath is the default path to the application's configuration file.
	DefaultConfigPath = "config/config.json"
	// defaultRequestTimeout is the default timeout for HTTP requests. Agent
	// calls can take minutes when the model is cold, so this is generous.
	defaultRequestTimeout = 600 * time.Second
	// defaultRunConcurrency caps how many test specs execute at once.
	defaultRunConcurrency = 10
	// defaultFixtureConcurrency caps in-flight index creation calls.
	defaultFixtureConcurrency = 10
	// defaultDeleteChunkSize is how many index names go into one delete call.
	defaultDeleteChunkSize = 20
)

// Config represents the top-level application configuration.
type Config struct {
	Cluster            Endpoint `json:"cluster"`
	Agent              Endpoint `json:"agent"`
	Judge              Endpoint `json:"judge"`
	Debug              bool     `json:"debug"`
	TimeoutSeconds     int      `json:"timeout,omitempty"`
	FixturesDir        string   `json:"fixturesDir,omitempty"`
	ResultsDir         string   `json:"resultsDir,omitempty"`
	PackagesDir        string   `json:"packagesDir,omitempty"`
	RunConcurrency     int      `json:"runConcurrency,omitempty"`
	FixtureConcurrency int      `json:"fixtureConcurrency,omitempty"`
	KeepFixtures       bool     `json:"keepFixtures"`
	LogFile            string   `json:"logFile,omitempty"`
	ConfigPath         string   `json:"-"`
}

// Endpoint describes one external HTTP service the harness talks to: the
// cluster under test, the agent being evaluated, or the grading model.
type Endpoint struct {
	Name     string `json:"name"`
	URL      string `json:"url"`
	Username string `json:"username,omitempty"`
	Password string `json:"password,omitempty"`
	Model    string `json:"model,omitempty"`
}

// RequestTimeout returns the timeout duration for HTTP requests, falling back to the default if not specified.
func (c Config) RequestTimeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return defaultRequestTimeout
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// FixturesDirPath returns the directory that holds fixture index groups.
func (c Config) FixturesDirPath() string {
	if dir := strings.TrimSpace(c.FixturesDir); dir != "" {
		return dir
	}
	return "data/indices"
}

// ResultsDirPath returns the directory result files are written under.
func (c Config) ResultsDirPath() string {
	if dir := strings.TrimSpace(c.ResultsDir); dir != "" {
		return dir
	}
	return "results"
}

// PackagesDirPath returns the directory that holds external scorer scripts.
func (c Config) PackagesDirPath() string {
	if dir := strings.TrimSpace(c.PackagesDir); dir != "" {
		return dir
	}
	return "packages"
}

// RunConcurrencyLimit returns how many specs may execute concurrently.
func (c Config) RunConcurrencyLimit() int {
	if c.RunConcurrency <= 0 {
		return defaultRunConcurrency
	}
	return c.RunConcurrency
}

// FixtureConcurrencyLimit returns the cap on in-flight index creation calls.
func (c Config) FixtureConcurrencyLimit() int {
	if c.FixtureConcurrency <= 0 {
		return defaultFixtureConcurrency
	}
	return c.FixtureConcurrency
}

// DeleteChunkSize returns how many index names are batched per delete call.
func (c Config) DeleteChunkSize() int {
	return defaultDeleteChunkSize
}

// LogFilePath returns the path to the application log file, applying a default if not set.
func (c Config) LogFilePath() string {
	if path := c.LogFile; strings.TrimSpace(path) != "" {
		return path
	}
	return "askbench.log"
}

// Load reads the application configuration from the specified path.
func Load(path string) (Config, error) {
	if path == "" {
		path = DefaultConfigPath
	}

	config, err := loadFromPath(path)
	if err == nil {
		if strings.TrimSpace(config.Cluster.URL) == "" {
			return Config{}, errors.New("config must set cluster.url")
		}
		config.ConfigPath = path
		return config, nil
	}

	if errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("no configuration file found at %q", path)
	}

	return Config{}, fmt.Errorf("could not read config file %q: %w", path, err)
}

// loadFromPath is a helper function that loads the configuration from a specific file path.
func loadFromPath(path string) (Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return Config{}, err
	}
	defer file.Close()

	var config Config
	if err := json.NewDecoder(file).Decode(&config); err != nil {
		return Config{}, err
	}
	if config.TimeoutSeconds <= 0 {
		config.TimeoutSeconds = int(defaultRequestTimeout.Seconds())
	}

	return config, nil
}
