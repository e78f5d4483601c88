package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"clickref/internal/logging"
)

const (
	minArgs      = 2
	consumedOne  = 1
	consumedTwo  = 2
	consumedNone = 0
	helpFlag     = "--help"
)

// Run is the main entry point. Returns exit code.
func Run(in io.Reader, out io.Writer, errOut io.Writer, args []string, env map[string]string, sigCh <-chan os.Signal) int {
	if len(args) < minArgs {
		printUsage(out, nil)

		return 0
	}

	flags, err := parseGlobalFlags(args[1:])
	if err != nil {
		fprintln(errOut, "error:", err)

		return 1
	}

	cfg, err := LoadConfig(LoadConfigInput{
		WorkDirOverride: flags.workDir,
		ConfigPath:      flags.configPath,
		Env:             env,
	})
	if err != nil {
		fprintln(errOut, "error:", err)

		return 1
	}

	if len(flags.remaining) == 0 {
		printUsage(out, nil)

		return 0
	}

	name := flags.remaining[0]
	if name == "-h" || name == helpFlag || name == "help" {
		printUsage(out, nil)

		return 0
	}

	logger, closeLog, err := logging.New(logging.Options{
		Verbose:  flags.verbose,
		Quiet:    flags.quiet,
		FilePath: cfg.LogFile,
	})
	if err != nil {
		fprintln(errOut, "error:", err)

		return 1
	}
	defer func() { _ = closeLog() }()

	app, err := newApp(cfg, logger)
	if err != nil {
		fprintln(errOut, "error:", err)

		return 1
	}
	defer func() { _ = app.Close() }()

	cmds := commands(app)

	cmd := lookupCommand(cmds, name)
	if cmd == nil {
		fprintln(errOut, "error: unknown command:", name)
		printUsage(errOut, cmds)

		return 1
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if sigCh != nil {
		go func() {
			select {
			case <-sigCh:
				cancel()
			case <-ctx.Done():
			}
		}()
	}

	ioCtx := NewIO(in, out, errOut)

	code := cmd.Run(ctx, ioCtx, flags.remaining[1:])
	if code != 0 {
		return code
	}

	return ioCtx.Finish()
}

func commands(app *App) []*Command {
	return []*Command{
		scanCommand(app),
		lsCommand(app),
		addCommand(app),
		rmCommand(app),
		setTaskCommand(app),
		refreshCommand(app),
		watchCommand(app),
		configCommand(app),
	}
}

func lookupCommand(cmds []*Command, name string) *Command {
	for _, cmd := range cmds {
		if cmd.Name() == name {
			return cmd
		}
	}

	return nil
}

type globalFlags struct {
	workDir    string
	configPath string
	verbose    bool
	quiet      bool
	remaining  []string
}

func parseGlobalFlags(args []string) (globalFlags, error) {
	var flags globalFlags

	idx := 0
	for idx < len(args) {
		consumed, err := parseFlag(args, idx, &flags)
		if err != nil {
			return globalFlags{}, err
		}

		if consumed == 0 {
			// Not a flag, this is the command
			flags.remaining = args[idx:]

			break
		}

		idx += consumed
	}

	return flags, nil
}

// parseFlag tries to parse a flag at args[idx]. Returns number of args consumed (0 if not a flag).
func parseFlag(args []string, idx int, flags *globalFlags) (int, error) {
	arg := args[idx]

	// -C/--cwd flag (work directory)
	if (arg == "-C" || arg == "--cwd") && idx+1 < len(args) {
		flags.workDir = args[idx+1]

		return consumedTwo, nil
	}

	if after, ok := strings.CutPrefix(arg, "-C"); ok {
		flags.workDir = after

		return consumedOne, nil
	}

	if after, ok := strings.CutPrefix(arg, "--cwd="); ok {
		flags.workDir = after

		return consumedOne, nil
	}

	// -c/--config flag
	if arg == "-c" || arg == "--config" {
		if idx+1 >= len(args) {
			return consumedNone, fmt.Errorf("%w: %s", errFlagRequiresArg, arg)
		}

		flags.configPath = args[idx+1]

		return consumedTwo, nil
	}

	if after, ok := strings.CutPrefix(arg, "--config="); ok {
		flags.configPath = after

		return consumedOne, nil
	}

	if arg == "-v" || arg == "--verbose" {
		flags.verbose = true

		return consumedOne, nil
	}

	if arg == "-q" || arg == "--quiet" {
		flags.quiet = true

		return consumedOne, nil
	}

	// -h/--help flags
	if arg == "-h" || arg == helpFlag {
		flags.remaining = []string{helpFlag}

		return len(args) - idx, nil
	}

	// Not a flag (commands never start with "-")
	return consumedNone, nil
}

func fprintln(w io.Writer, a ...any) {
	_, _ = fmt.Fprintln(w, a...)
}

func printUsage(writer io.Writer, cmds []*Command) {
	fprintln(writer, `clickref - task references anchored in source comments

Usage: clickref [options] <command> [args]

Options:
  -C, --cwd <dir>    Run as if started in <dir>
  -c, --config       Use specified config file
  -v, --verbose      Enable debug logging
  -q, --quiet        Only log warnings and errors

Commands:`)

	if cmds == nil {
		cmds = commands(&App{})
	}

	for _, cmd := range cmds {
		fprintln(writer, cmd.HelpLine())
	}
}
