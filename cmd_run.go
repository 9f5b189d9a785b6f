package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/skx/amidoor/consolein"
	"github.com/skx/amidoor/consoleout"
	"github.com/skx/amidoor/door"
	"github.com/skx/amidoor/memory"
	"github.com/skx/amidoor/static"
	"github.com/skx/amidoor/version"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"golang.org/x/term"
)

var runCmd = &cobra.Command{
	Use:   "run [flags] door.exe",
	Short: "run a door program against the console.",
	Long: `Load the given AmigaDOS executable and run it, sending its output
to the console and feeding it whatever is typed.  The exit code of the
door becomes our exit code.

A name such as "builtin:hello" runs one of the embedded doors instead.`,
	Args: cobra.ExactArgs(1),
	RunE: runRunCmd,
}

func init() {
	runCmd.Flags().Int("memory", memory.DefaultSize, "size of the emulated memory, in bytes")
	runCmd.Flags().Uint("stack", door.DefaultStackSize, "size of the stack, in bytes")
	runCmd.Flags().Duration("idle-timeout", door.DefaultIdleTimeout, "terminate the door after this long without input or output, 0 to disable")
	runCmd.Flags().Duration("max-duration", 0, "terminate the door after this long, 0 to disable")
	runCmd.Flags().Int("budget", door.DefaultCycleBudget, "cycles to run between checks for input and timeouts")
	runCmd.Flags().String("input", "", "input driver, 'term' for a terminal and 'file:input.txt' otherwise")
	runCmd.Flags().String("output", "amiga", "output driver")
	runCmd.Flags().String("workdir", "", "directory the door lives in, defaulting to that of the executable")
	rootCmd.AddCommand(runCmd)
}

// builtinPrefix marks the name of an embedded door.
const builtinPrefix = "builtin:"

// readDoor returns the executable at path, or the named embedded door.
func readDoor(path string) ([]byte, error) {
	if name, ok := strings.CutPrefix(path, builtinPrefix); ok {
		exe, err := static.Door(name)
		if err != nil {
			return nil, fmt.Errorf("unknown builtin door %s, try one of: %s", name, strings.Join(static.Doors(), ", "))
		}
		return exe, nil
	}

	exe, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return exe, nil
}

func runRunCmd(cmd *cobra.Command, args []string) error {
	log := newLogger(GetFlag(cmd, "debug"))

	path := args[0]
	exe, err := readDoor(path)
	if err != nil {
		return err
	}

	workDir := GetString(cmd, "workdir")
	if workDir == "" && !strings.HasPrefix(path, builtinPrefix) {
		abs, err := filepath.Abs(path)
		if err != nil {
			return err
		}
		workDir = filepath.Dir(abs)
	}

	// Piped input is read as a script.
	inName := GetString(cmd, "input")
	if inName == "" {
		inName = "term"
		if !term.IsTerminal(int(os.Stdin.Fd())) {
			inName = "file:/dev/stdin"
		}
	}

	in, err := consolein.New(inName)
	if err != nil {
		return err
	}
	out, err := consoleout.New(GetString(cmd, "output"))
	if err != nil {
		return err
	}

	log.Debug("Starting",
		slog.String("version", version.GetVersionString()),
		slog.String("door", path),
		slog.String("input", in.GetName()),
		slog.String("output", out.GetName()))

	if err := in.Setup(); err != nil {
		return fmt.Errorf("failed to setup input driver %s: %w", in.GetName(), err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code, err := runDoor(ctx, exe, in, out, log,
		door.WithMemorySize(GetInt(cmd, "memory")),
		door.WithStackSize(uint32(GetUint(cmd, "stack"))),
		door.WithIdleTimeout(GetDuration(cmd, "idle-timeout")),
		door.WithMaxDuration(GetDuration(cmd, "max-duration")),
		door.WithCycleBudget(GetInt(cmd, "budget")),
		door.WithWorkDir(workDir),
	)
	stop()

	if tErr := in.TearDown(); tErr != nil {
		log.Warn("failed to teardown input driver", slog.String("error", tErr.Error()))
	}
	if err != nil {
		return err
	}
	if code != 0 {
		os.Exit(code)
	}
	return nil
}

// runDoor runs a door to completion, copying input to it and its output
// to out, and returns its exit code.
//
// When the input runs out the door is terminated the next time it asks
// for more.
func runDoor(ctx context.Context, exe []byte, in *consolein.ConsoleIn, out *consoleout.ConsoleOut, log *slog.Logger, opts ...door.Option) (int, error) {

	handler := func(ev door.Event) {
		switch ev.Kind {
		case door.EventOutput:
			_, _ = out.Write(ev.Data)
		case door.EventTerminated:
			log.Debug("Finished", slog.String("reason", ev.Reason.String()))
		}
	}

	s, err := door.New(exe, append([]door.Option{
		door.WithLogger(log),
		door.WithEventHandler(handler),
	}, opts...)...)
	if err != nil {
		return 0, err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer cancel()
		return s.Run(gctx)
	})

	g.Go(func() error {
		err := in.Pump(gctx, s.Input)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read input: %w", err)
		}
		return starve(gctx, s)
	})

	if err := g.Wait(); err != nil {
		return 0, err
	}
	return s.ExitCode(), nil
}

// starve terminates the session once it has read everything, and wants
// more.
func starve(ctx context.Context, s *door.Session) error {
	t := time.NewTicker(10 * time.Millisecond)
	defer t.Stop()

	for s.IsActive() {
		if s.State() == door.WaitingForInput && s.Buffered() == 0 {
			s.Terminate()
			return nil
		}
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
		}
	}
	return nil
}
