// Package cli implements the omecollection command-line interface.
//
// This package provides commands for validating collection documents,
// converting between trees and flat records, inspecting and rendering
// collections, and moving them through an annotation store. The CLI is
// built using cobra and logs through charmbracelet/log.
//
// # Commands
//
// The main commands are:
//   - flatten, unflatten: Convert between trees and flat records
//   - validate, show, records, browse: Inspect a collection document
//   - render: Draw a collection as DOT, SVG, PDF or PNG
//   - upload, download, delete: Work with collections in the store
//   - serve: Serve stored collections over HTTP
//   - config: Show the configuration location and settings
//
// # Logging
//
// All commands support --verbose (-v) for debug-level logging. Without it
// the level comes from the configuration file, info by default.
//
// # Example
//
//	import "github.com/matzehuels/omecollection/internal/cli"
//
//	func main() {
//	    c := cli.New(os.Stderr, cli.LogInfo)
//	    if err := c.RootCommand().Execute(); err != nil {
//	        os.Exit(1)
//	    }
//	}
package cli

import (
	"io"
	"time"

	"github.com/charmbracelet/log"
)

// newLogger creates a new logger with timestamp formatting.
// The logger writes to w and filters messages at the specified level.
// Timestamps are formatted as "HH:MM:SS.ms" (e.g., "14:32:01.45").
func newLogger(w io.Writer, level log.Level) *log.Logger {
	return log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      "15:04:05.00",
		Level:           level,
	})
}

// progress tracks the start time of an operation and logs completion with elapsed duration.
// It is safe for sequential use by a single goroutine; concurrent calls to done will race.
type progress struct {
	logger *log.Logger
	start  time.Time
}

// newProgress creates a progress tracker that captures the current time as start.
func newProgress(l *log.Logger) *progress {
	return &progress{logger: l, start: time.Now()}
}

// done logs msg along with the elapsed time since progress was created.
// The duration is rounded to the nearest millisecond.
// Example output: "Uploaded 12 leaves (1.234s)"
func (p *progress) done(msg string) {
	p.logger.Infof("%s (%s)", msg, time.Since(p.start).Round(time.Millisecond))
}
