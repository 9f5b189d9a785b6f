// amidoor runs Amiga door programs, a console at a time.

package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "amidoor",
	Short: "Run Amiga door programs.",
	Long: `amidoor loads an AmigaDOS executable into an emulated 68000 and
runs it against the local console, as a BBS would run it against a
remote caller.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().Bool("debug", false, "log every trap, and state change, to STDERR")
}

// newLogger creates the logger we use, writing JSON to STDERR.
//
// The level defaults to warnings or higher, but "everything" is shown
// if $DEBUG is non-empty or debug is true.
func newLogger(debug bool) *slog.Logger {

	lvl := new(slog.LevelVar)
	lvl.Set(slog.LevelWarn)

	if debug || os.Getenv("DEBUG") != "" {
		lvl.Set(slog.LevelDebug)
	}

	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: lvl,
	}))
}

func main() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}
