package cli

import (
	"context"
	"io"

	"github.com/spf13/cobra"
)

// Execute runs the mprscape CLI with args, writing results to stdout and
// logs to stderr, and returns the first command error.
//
// Logging:
//   - Default: info level
//   - With --verbose (-v): debug level
//   - With --quiet (-q): errors only, unless --verbose is also set
func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	var verbose, quiet bool

	statusOut = stderr
	c := New(stderr, LogInfo)
	root := c.RootCommand()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")
	root.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "log errors only")

	root.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		switch {
		case verbose:
			c.SetLogLevel(LogDebug)
		case quiet:
			c.SetLogLevel(LogError)
		}
		return nil
	}

	return root.ExecuteContext(ctx)
}
