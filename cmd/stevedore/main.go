package main

import (
	"context"
	_ "embed"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"syscall"

	"golang.org/x/term"

	"github.com/davidmdm/x/xcontext"

	"github.com/stevedore-dev/stevedore/internal"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		if internal.IsWarning(err) {
			return
		}
		os.Exit(1)
	}
}

//go:embed cmd_help.txt
var rootHelp string

func init() {
	rootHelp = strings.TrimSpace(internal.Colorize(rootHelp))
}

func run() error {
	ctx, done := xcontext.WithSignalCancelation(context.Background(), syscall.SIGINT)
	defer done()

	settings, err := LoadSettings()
	if err != nil {
		return fmt.Errorf("failed to load settings: %w", err)
	}

	RegisterGlobalFlags(flag.CommandLine, &settings)

	flag.Usage = func() {
		fmt.Fprintln(flag.CommandLine.Output(), rootHelp)
		flag.PrintDefaults()
		fmt.Fprintln(os.Stderr)
	}

	flag.Parse()

	if len(flag.Args()) == 0 {
		flag.Usage()
		return fmt.Errorf("no command provided")
	}

	subcmdArgs := flag.Args()[1:]

	switch cmd := flag.Arg(0); cmd {
	case "apply", "up":
		{
			params, err := GetApplyParams(settings, stdinSource(), subcmdArgs)
			if err != nil {
				return err
			}
			// the subcommand flagset parses into its own copy of the settings
			return Apply(internal.WithVerboseFlag(ctx, &params.Verbose), *params)
		}
	case "rollback", "descent":
		{
			params, err := GetRollbackParams(settings, subcmdArgs)
			if err != nil {
				return err
			}
			return Rollback(internal.WithVerboseFlag(ctx, &params.Verbose), *params)
		}
	case "delete", "remove":
		{
			params, err := GetDeleteParams(settings, subcmdArgs)
			if err != nil {
				return err
			}
			return Delete(internal.WithVerboseFlag(ctx, &params.Verbose), *params)
		}
	case "status":
		{
			params, err := GetStatusParams(settings, subcmdArgs)
			if err != nil {
				return err
			}
			return Status(internal.WithVerboseFlag(ctx, &params.Verbose), *params)
		}
	case "drift", "diff":
		{
			params, err := GetDriftParams(settings, subcmdArgs)
			if err != nil {
				return err
			}
			return Drift(internal.WithVerboseFlag(ctx, &params.Verbose), *params)
		}
	case "render":
		{
			params, err := GetRenderParams(settings, stdinSource(), subcmdArgs)
			if err != nil {
				return err
			}
			return Render(internal.WithVerboseFlag(ctx, &params.Verbose), *params)
		}
	case "validate", "lint":
		{
			params, err := GetValidateParams(settings, stdinSource(), subcmdArgs)
			if err != nil {
				return err
			}
			return Validate(internal.WithVerboseFlag(ctx, &params.Verbose), *params)
		}
	case "inspect", "history":
		{
			params, err := GetInspectParams(settings, subcmdArgs)
			if err != nil {
				return err
			}
			return Inspect(internal.WithVerboseFlag(ctx, &params.Verbose), *params)
		}
	case "version":
		{
			return Version()
		}
	default:
		return fmt.Errorf("unknown command: %s", cmd)
	}
}

func stdinSource() io.Reader {
	if term.IsTerminal(int(os.Stdin.Fd())) {
		return nil
	}
	return os.Stdin
}
