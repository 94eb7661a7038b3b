package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/omecollection/pkg/config"
	cerrors "github.com/matzehuels/omecollection/pkg/errors"
	"github.com/matzehuels/omecollection/pkg/store"
)

// =============================================================================
// Constants
// =============================================================================

// appName is the application name used for display.
const appName = "omecollection"

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// =============================================================================
// CLI - Central CLI State
// =============================================================================

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger
	Out    io.Writer // command output
	Err    io.Writer // status lines and spinners

	// Global flags.
	configPath string
	backend    string
	dsn        string
	verbose    bool

	cfg *config.Config
}

// New creates a new CLI instance with a default logger writing to w.
// Status lines also go to w; command output goes to stdout.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{
		Logger: newLogger(w, level),
		Out:    os.Stdout,
		Err:    w,
	}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// =============================================================================
// Configuration
// =============================================================================

// loadConfig reads the configuration file and applies flag overrides.
// It is called once before any command runs.
func (c *CLI) loadConfig() error {
	path := c.configPath
	if path == "" {
		p, err := config.Path()
		if err != nil {
			c.Logger.Debug("no config location", "err", err)
			c.cfg = config.Default()
			return c.applyOverrides()
		}
		path = p
	}

	cfg, err := config.Load(path)
	if err != nil {
		return err
	}
	c.Logger.Debug("loaded config", "path", path)
	c.cfg = cfg
	return c.applyOverrides()
}

func (c *CLI) applyOverrides() error {
	if c.backend != "" {
		c.cfg.Store.Backend = c.backend
	}
	if c.dsn != "" {
		c.cfg.Store.DSN = c.dsn
	}
	if err := c.cfg.Validate(); err != nil {
		return err
	}

	level, err := log.ParseLevel(c.cfg.Log.Level)
	if err != nil {
		return err
	}
	if c.verbose {
		level = log.DebugLevel
	}
	c.SetLogLevel(level)
	return nil
}

// config returns the loaded configuration, or the defaults when commands
// run without the root pre-run (as in tests).
func (c *CLI) config() *config.Config {
	if c.cfg == nil {
		c.cfg = config.Default()
	}
	return c.cfg
}

// =============================================================================
// Store Factory
// =============================================================================

// openTransfer opens the configured store. The caller closes the returned
// store when done.
func (c *CLI) openTransfer(ctx context.Context) (*store.Transfer, store.Store, error) {
	cfg := c.config()
	opts, err := cfg.StoreOptions()
	if err != nil {
		return nil, nil, err
	}
	c.Logger.Debug("opening store", "backend", opts.Backend, "dsn", opts.DSN)

	s, err := store.Open(ctx, opts)
	if err != nil {
		return nil, nil, err
	}
	return store.NewTransfer(s, c.Logger, cfg.Store.Concurrency), s, nil
}

// =============================================================================
// Helpers
// =============================================================================

// parseID parses a collection id argument.
func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, cerrors.New(cerrors.ErrCodeInvalidInput, "collection id must be a positive integer, got %q", s)
	}
	return id, nil
}

// ErrorMessage formats err for the terminal: validation failures name the
// broken rule and location, lookup failures say what is missing.
// Joined errors are formatted one per line.
func ErrorMessage(err error) string {
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		errs := joined.Unwrap()
		lines := make([]string, len(errs))
		for i, e := range errs {
			lines[i] = ErrorMessage(e)
		}
		return strings.Join(lines, "\n")
	}

	switch {
	case cerrors.IsSchemaViolation(err):
		return fmt.Sprintf("invalid collection [%s]: %s", cerrors.GetRule(err), cerrors.UserMessage(err))
	case cerrors.IsLookupFailure(err):
		return "not found: " + cerrors.UserMessage(err)
	case cerrors.Is(err, cerrors.ErrCodeInvalidInput), cerrors.Is(err, cerrors.ErrCodeUnsupported):
		return cerrors.UserMessage(err)
	}
	return err.Error()
}
