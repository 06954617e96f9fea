// Package config loads habitat's YAML configuration file and resolves the
// remote store credentials.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/julianstephens/habitat/internal/constants"
	"github.com/julianstephens/habitat/internal/keyring"
	"github.com/julianstephens/habitat/internal/logger"
	"github.com/julianstephens/habitat/internal/utils"
)

type RemoteKind string

const (
	RemoteNone     RemoteKind = "none"
	RemoteMemory   RemoteKind = "memory"
	RemotePostgres RemoteKind = "postgres"
)

// Duration is a time.Duration written as "500ms" or "15m" in YAML.
type Duration time.Duration

func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	parsed, err := time.ParseDuration(node.Value)
	if err != nil {
		return fmt.Errorf("line %d: invalid duration %q", node.Line, node.Value)
	}
	*d = Duration(parsed)
	return nil
}

type Config struct {
	DataPath      string        `yaml:"data_path"`
	Timezone      string        `yaml:"timezone"`
	Debug         bool          `yaml:"debug"`
	Remote        Remote        `yaml:"remote"`
	Sync          Sync          `yaml:"sync"`
	Notifications Notifications `yaml:"notifications"`
}

type Remote struct {
	Kind    RemoteKind `yaml:"kind"`
	DSN     string     `yaml:"dsn,omitempty"`
	Timeout Duration   `yaml:"timeout"`
}

type Sync struct {
	MaxAttempts int      `yaml:"max_attempts"`
	BaseDelay   Duration `yaml:"base_delay"`
	MaxDelay    Duration `yaml:"max_delay"`
	Jitter      float64  `yaml:"jitter"`
	StaleAfter  Duration `yaml:"stale_after"`
}

type Notifications struct {
	Enabled *bool `yaml:"enabled"`
}

// NotificationsEnabled defaults to true when the key is absent.
func (n Notifications) NotificationsEnabled() bool {
	return n.Enabled == nil || *n.Enabled
}

func Default() *Config {
	c := &Config{}
	c.ApplyDefaults()
	return c
}

func (c *Config) ApplyDefaults() {
	if c.DataPath == "" {
		c.DataPath = constants.DefaultDataPath
	}
	if c.Timezone == "" {
		c.Timezone = "Local"
	}
	if c.Remote.Kind == "" {
		c.Remote.Kind = RemoteNone
	}
	if c.Remote.Timeout == 0 {
		c.Remote.Timeout = Duration(constants.DefaultRemoteTimeout)
	}
	if c.Sync.MaxAttempts == 0 {
		c.Sync.MaxAttempts = constants.DefaultSyncMaxAttempts
	}
	if c.Sync.BaseDelay == 0 {
		c.Sync.BaseDelay = Duration(constants.DefaultSyncBaseDelay)
	}
	if c.Sync.MaxDelay == 0 {
		c.Sync.MaxDelay = Duration(constants.DefaultSyncMaxDelay)
	}
	if c.Sync.Jitter == 0 {
		c.Sync.Jitter = constants.DefaultSyncJitter
	}
	if c.Sync.StaleAfter == 0 {
		c.Sync.StaleAfter = Duration(constants.DefaultSyncStaleAfter)
	}
}

// ApplyEnv lets HABITAT_DEBUG and HABITAT_REMOTE_DSN override the file.
func (c *Config) ApplyEnv() {
	if v := os.Getenv(constants.EnvDebug); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Debug = b
		}
	}
	if v := os.Getenv(constants.EnvRemoteDSN); v != "" {
		c.Remote.DSN = v
		if c.Remote.Kind == RemoteNone {
			c.Remote.Kind = RemotePostgres
		}
	}
}

func (c *Config) Validate() error {
	var errs []error
	if !utils.ValidateTimezone(c.Timezone) {
		errs = append(errs, fmt.Errorf("invalid timezone %q", c.Timezone))
	}
	switch c.Remote.Kind {
	case RemoteNone, RemoteMemory, RemotePostgres:
	default:
		errs = append(errs, fmt.Errorf("unknown remote kind %q (expected none, memory or postgres)", c.Remote.Kind))
	}
	if c.Remote.Timeout < 0 {
		errs = append(errs, errors.New("remote.timeout must not be negative"))
	}
	if c.Sync.MaxAttempts < 1 {
		errs = append(errs, errors.New("sync.max_attempts must be at least 1"))
	}
	if c.Sync.BaseDelay < 0 || c.Sync.MaxDelay < 0 {
		errs = append(errs, errors.New("sync delays must not be negative"))
	}
	if c.Sync.MaxDelay < c.Sync.BaseDelay {
		errs = append(errs, errors.New("sync.max_delay must not be shorter than sync.base_delay"))
	}
	if c.Sync.Jitter < 0 || c.Sync.Jitter > 1 {
		errs = append(errs, errors.New("sync.jitter must be between 0 and 1"))
	}
	return errors.Join(errs...)
}

// Load reads path, applies defaults and environment overrides, and
// validates the result. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	path, err := utils.ExpandHome(path)
	if err != nil {
		return nil, err
	}

	c := &Config{}
	b, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		logger.Debug("No config file, using defaults", "path", path)
	case err != nil:
		return nil, fmt.Errorf("failed to read config: %w", err)
	default:
		if err := yaml.Unmarshal(b, c); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	}

	c.ApplyDefaults()
	c.ApplyEnv()
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return c, nil
}

// Save writes the config as YAML, creating parent directories.
func (c *Config) Save(path string) error {
	path, err := utils.ExpandHome(path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	b, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0600)
}

// Location resolves the configured timezone.
func (c *Config) Location() (*time.Location, error) {
	return utils.LoadLocation(c.Timezone)
}

// ResolvedDataPath is DataPath with a leading ~ expanded.
func (c *Config) ResolvedDataPath() (string, error) {
	return utils.ExpandHome(c.DataPath)
}

var getKeyringDSN = keyring.GetRemoteDSN

// DSNSource records where a connection string came from. Only the config
// file is plaintext on disk, so only DSNFromFile is checked for embedded
// passwords by the remote store.
type DSNSource string

const (
	DSNFromEnv     DSNSource = "env"
	DSNFromKeyring DSNSource = "keyring"
	DSNFromFile    DSNSource = "config"
)

// RemoteDSN resolves the remote connection string: environment first, then
// the OS keyring, then the config file.
func (c *Config) RemoteDSN() (string, DSNSource, error) {
	if dsn := os.Getenv(constants.EnvRemoteDSN); dsn != "" {
		return dsn, DSNFromEnv, nil
	}

	stored, err := getKeyringDSN()
	switch {
	case err == nil && stored != "":
		return stored, DSNFromKeyring, nil
	case err == nil, errors.Is(err, keyring.ErrNotFound):
	default:
		logger.Warn("Keyring unavailable, falling back to config", "error", err)
	}

	if c.Remote.DSN != "" {
		return c.Remote.DSN, DSNFromFile, nil
	}
	return "", "", errors.New("no remote connection string configured; set " + constants.EnvRemoteDSN + " or run 'habitat keyring set'")
}
