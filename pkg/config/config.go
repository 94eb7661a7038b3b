// Package config loads the omecollection configuration file.
//
// The file is TOML and every setting is optional:
//
//	[store]
//	backend = "sqlite"          # memory | file | sqlite | redis | mongo
//	dsn = ""                    # path (file, sqlite), address (redis), URI (mongo)
//	database = "omecollection"  # mongo database, redis key prefix
//	concurrency = 8
//
//	[server]
//	addr = ":8080"
//
//	[log]
//	level = "info"
//
// Relative file and sqlite paths are resolved against the directory of the
// configuration file. An empty path selects a location under the user's
// data directory.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/BurntSushi/toml"

	cerrors "github.com/matzehuels/omecollection/pkg/errors"
	"github.com/matzehuels/omecollection/pkg/store"
)

const appName = "omecollection"

// Defaults.
const (
	DefaultBackend = store.BackendSQLite
	DefaultAddr    = ":8080"
	DefaultLevel   = "info"
)

// Backends lists the accepted store backends.
var Backends = []string{
	store.BackendMemory,
	store.BackendFile,
	store.BackendSQLite,
	store.BackendRedis,
	store.BackendMongo,
}

var levels = []string{"debug", "info", "warn", "error"}

// Config is the parsed configuration file.
type Config struct {
	Store  StoreConfig  `toml:"store"`
	Server ServerConfig `toml:"server"`
	Log    LogConfig    `toml:"log"`
}

// StoreConfig selects the annotation store.
type StoreConfig struct {
	Backend     string `toml:"backend"`
	DSN         string `toml:"dsn"`
	Database    string `toml:"database"`
	Concurrency int    `toml:"concurrency"`
}

// ServerConfig configures the serve command.
type ServerConfig struct {
	Addr string `toml:"addr"`
}

// LogConfig sets the default log level.
type LogConfig struct {
	Level string `toml:"level"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		Store: StoreConfig{
			Backend:     DefaultBackend,
			Database:    store.DefaultDatabase,
			Concurrency: store.DefaultConcurrency,
		},
		Server: ServerConfig{Addr: DefaultAddr},
		Log:    LogConfig{Level: DefaultLevel},
	}
}

// Path returns the default configuration file location,
// $XDG_CONFIG_HOME/omecollection/config.toml or ~/.config/omecollection/config.toml.
func Path() (string, error) {
	if home := os.Getenv("XDG_CONFIG_HOME"); home != "" {
		return filepath.Join(home, appName, "config.toml"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", appName, "config.toml"), nil
}

// DataDir returns the directory for local stores,
// $XDG_DATA_HOME/omecollection or ~/.local/share/omecollection.
func DataDir() (string, error) {
	if home := os.Getenv("XDG_DATA_HOME"); home != "" {
		return filepath.Join(home, appName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".local", "share", appName), nil
}

// Load reads the file at path over the defaults. A missing file is not an
// error. Unknown keys are rejected so that typos do not pass silently.
func Load(path string) (*Config, error) {
	cfg := Default()
	md, err := toml.DecodeFile(path, cfg)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, cerrors.Wrap(cerrors.ErrCodeInvalidInput, err, "decode %s", path)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, cerrors.New(cerrors.ErrCodeInvalidInput, "%s: unknown keys %s", path, strings.Join(keys, ", "))
	}
	cfg.resolvePaths(filepath.Dir(path))
	return cfg, nil
}

// resolvePaths makes a relative local store path relative to dir.
func (c *Config) resolvePaths(dir string) {
	if !c.Store.isLocal() || c.Store.DSN == "" || filepath.IsAbs(c.Store.DSN) {
		return
	}
	c.Store.DSN = filepath.Join(dir, c.Store.DSN)
}

func (s StoreConfig) isLocal() bool {
	return s.Backend == store.BackendFile || s.Backend == store.BackendSQLite
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if !slices.Contains(Backends, c.Store.Backend) {
		return cerrors.New(cerrors.ErrCodeInvalidInput,
			"store.backend must be one of %s, got %q", strings.Join(Backends, ", "), c.Store.Backend)
	}
	if c.Store.Concurrency <= 0 {
		return cerrors.New(cerrors.ErrCodeInvalidInput,
			"store.concurrency must be positive, got %d", c.Store.Concurrency)
	}
	if !slices.Contains(levels, c.Log.Level) {
		return cerrors.New(cerrors.ErrCodeInvalidInput,
			"log.level must be one of %s, got %q", strings.Join(levels, ", "), c.Log.Level)
	}
	return nil
}

// StoreOptions returns the options for [store.Open]. An empty local path
// is replaced by a default under [DataDir].
func (c *Config) StoreOptions() (store.Options, error) {
	opts := store.Options{
		Backend:  c.Store.Backend,
		DSN:      c.Store.DSN,
		Database: c.Store.Database,
	}
	if opts.DSN != "" || !c.Store.isLocal() {
		return opts, nil
	}
	dir, err := DataDir()
	if err != nil {
		return opts, fmt.Errorf("locate data directory: %w", err)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return opts, err
	}
	switch opts.Backend {
	case store.BackendSQLite:
		opts.DSN = filepath.Join(dir, "store.db")
	case store.BackendFile:
		opts.DSN = filepath.Join(dir, "store")
	}
	return opts, nil
}
