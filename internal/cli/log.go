// Package cli implements the mprscape command-line interface.
//
// The engine commands read a problem file (JSON, TOML or YAML, chosen by
// extension) holding a host tree, a parasite tree, the tip mapping and the
// event costs, and run one stage of the reconciliation pipeline on it.
// Results are cached on disk, or in Redis (--redis) or MongoDB (--mongo),
// keyed by problem content.
//
// # Commands
//
//   - reconcile: Build the reconciliation graph and export it as CSV, JSON, DOT or SVG
//   - median, sample: Pick a median reconciliation or draw uniform samples
//   - histogram: Pairwise distance histogram of all MPRs
//   - cluster: Partition the MPRs into k groups
//   - regions: Partition a cost rectangle by optimal event-count vector
//   - stats: Tip-shuffling p-value of the optimal cost
//   - browse: Page through reconciliations interactively
//   - convert: Convert a problem file between formats
//   - serve: Run the HTTP API
//   - cache: Manage the result cache
//
// # Logging
//
// All commands support --verbose (-v) for debug-level logging. Results go to
// stdout; logs and status lines go to stderr.
package cli

import (
	"io"
	"time"

	"github.com/charmbracelet/log"
)

// newLogger creates a new logger with timestamp formatting.
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

func newProgress(l *log.Logger) *progress {
	return &progress{logger: l, start: time.Now()}
}

// done logs msg along with the elapsed time since progress was created.
// Example output: "Computed 12 cost regions (1.234s)"
func (p *progress) done(msg string, keyvals ...any) {
	p.logger.Info(msg, append(keyvals, "elapsed", time.Since(p.start).Round(time.Millisecond))...)
}
