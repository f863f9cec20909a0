// Command prepctl works with the study tracker from a terminal. It reads
// the same PREP_ configuration as the server and operates on the same store.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/pflag"

	"github.com/p-n-ai/prep-tracker/internal/app"
	"github.com/p-n-ai/prep-tracker/internal/platform/config"
	"github.com/p-n-ai/prep-tracker/internal/platform/logging"
)

// errSilent ends the process with status 1 after the command has already
// printed its own failure report.
var errSilent = errors.New("command failed")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	err := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()
	if err != nil {
		if !errors.Is(err, errSilent) {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
		os.Exit(1)
	}
}

// env is what a command runs against.
type env struct {
	app    *app.App
	stdin  io.Reader
	stdout io.Writer
}

// command is one prepctl subcommand.
type command struct {
	name    string
	args    string // positional arguments, for help
	summary string
	nargs   int // exact positional count; -1 accepts any
	flags   func(fs *pflag.FlagSet)
	run     func(ctx context.Context, e *env, fs *pflag.FlagSet, args []string) error
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	if len(args) == 0 {
		printUsage(stderr)
		return fmt.Errorf("command required")
	}
	if isHelpFlag(args[0]) || args[0] == "help" {
		printUsage(stderr)
		return nil
	}

	cmd := lookup(args[0])
	if cmd == nil {
		return fmt.Errorf("unknown command %q\n\nRun 'prepctl --help' for usage.", args[0])
	}

	fs := pflag.NewFlagSet(cmd.name, pflag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.BoolP("help", "h", false, "show help")
	if cmd.flags != nil {
		cmd.flags(fs)
	}
	if err := fs.Parse(args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			printCommandHelp(stderr, cmd, fs)
			return nil
		}
		return fmt.Errorf("%s\n\nRun 'prepctl %s --help' for usage.", err, cmd.name)
	}
	if help, _ := fs.GetBool("help"); help {
		printCommandHelp(stderr, cmd, fs)
		return nil
	}
	if cmd.nargs >= 0 && fs.NArg() != cmd.nargs {
		return fmt.Errorf("usage: prepctl %s %s", cmd.name, cmd.args)
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	slog.SetDefault(logging.New(stderr, cfg.Log.Level, "text"))

	a, err := app.Open(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	return cmd.run(ctx, &env{app: a, stdin: stdin, stdout: stdout}, fs, fs.Args())
}

func lookup(name string) *command {
	for i := range commands {
		if commands[i].name == name {
			return &commands[i]
		}
	}
	return nil
}

func isHelpFlag(arg string) bool {
	return arg == "-h" || arg == "--help"
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "prepctl - study tracker from the terminal")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  prepctl <command> [flags] [args]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, c := range commands {
		fmt.Fprintf(tw, "  %s\t%s\n", c.name, c.summary)
	}
	tw.Flush()
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Configuration is read from PREP_* environment variables and ./.env.")
}

func printCommandHelp(w io.Writer, c *command, fs *pflag.FlagSet) {
	fmt.Fprintf(w, "%s\n\nUsage:\n  prepctl %s [flags] %s\n\nFlags:\n", c.summary, c.name, c.args)
	fmt.Fprint(w, fs.FlagUsages())
}
