// Package cmd wires chgo's cobra entry point: a single command that
// forwards its entire argument list to the session driver rather than
// exposing a conventional subcommand tree, since chgo's whole job is to be
// byte-exact with the tool it front-ends.
package cmd

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"chgo/internal/config"
	"chgo/internal/diagnostics"
	"chgo/internal/fallback"
	"chgo/internal/gate"
	"chgo/internal/logging"
	"chgo/internal/session"
	"chgo/internal/toolpath"
	"chgo/internal/xerrors"
)

// rootCmd is chgo's only command. It disables cobra's own flag parsing
// entirely: every argument, including things that look like "-h" or
// "--version", belongs to the backing tool and must reach it unmodified.
var rootCmd = &cobra.Command{
	Use:                "chgo [args...]",
	Short:              "fast client front-end for a command server",
	DisableFlagParsing: true,
	Args:               cobra.ArbitraryArgs,
	SilenceUsage:       true,
	SilenceErrors:      true,
	RunE:               runRoot,
}

var exitCode int

// Execute runs the root command and returns the process exit code to use.
func Execute() int {
	if err := rootCmd.Execute(); err != nil {
		var se *xerrors.SessionError
		if xerrors.As(err, &se) {
			return exitCodeForKind(se.Kind)
		}
		return 1
	}
	return exitCode
}

func runRoot(cmd *cobra.Command, args []string) error {
	cfg := config.LoadEnviron()
	diag := diagnostics.New(os.Stderr, cfg.Plain)

	level := slog.LevelWarn
	if cfg.Debug {
		level = slog.LevelDebug
	}
	logging.SetDefault(logging.NewLogger(logging.Config{Level: level, Format: "text", Output: os.Stderr}))

	if gate.LoopDetected(os.Environ()) {
		diag.Abort("chg started by chg detected.\n" +
			"Please make sure ${HG:-hg} is not a symlink or wrapper to chg. " +
			"Alternatively, set $CHGHG to the path of the real hg.")
		exitCode = 255
		return nil
	}

	if fallback.Unsupported(args) {
		if err := fallback.ExecOriginal(cfg, args); err != nil {
			diag.Abort("%v", err)
			exitCode = 255
			return nil
		}
		exitCode = 0
		return nil
	}

	if len(args) == 1 && args[0] == "--kill-chg-daemon" {
		if err := gate.KillDaemon(cfg); err != nil {
			diag.Warn("failed to kill command server: %v", err)
		}
		exitCode = 0
		return nil
	}

	pinnedEnv := gate.PinToolPath(cfg)
	// Pin the resolved tool path into chgo's own environment as well, so the
	// environment pushed to an already-running server carries it too.
	if tool, err := toolpath.Resolve(cfg); err == nil {
		os.Setenv(config.EnvPrefix+"HG", tool)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	code, err := session.Run(ctx, cfg, args, pinnedEnv, session.RealDeps())
	if err != nil {
		var se *xerrors.SessionError
		if xerrors.As(err, &se) {
			diag.Abort("%s", se.Error())
			exitCode = exitCodeForKind(se.Kind)
			return nil
		}
		diag.Abort("%v", err)
		exitCode = 255
		return nil
	}
	exitCode = code
	return nil
}

func exitCodeForKind(kind xerrors.Kind) int {
	switch kind {
	case xerrors.KindEnvironment, xerrors.KindSpawn, xerrors.KindSession:
		return 255
	default:
		return 1
	}
}

