package main

import (
	"context"
	_ "embed"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"golang.org/x/term"

	"github.com/stevedore-dev/stevedore/internal"
	"github.com/stevedore-dev/stevedore/pkg/stevedore"
)

type ApplyParams struct {
	GlobalSettings
	stevedore.ApplyParams
}

//go:embed cmd_apply_help.txt
var applyHelp string

func init() {
	applyHelp = strings.TrimSpace(internal.Colorize(applyHelp))
}

func GetApplyParams(settings GlobalSettings, source io.Reader, args []string) (*ApplyParams, error) {
	flagset := flag.NewFlagSet("apply", flag.ExitOnError)

	flagset.Usage = func() {
		fmt.Fprintln(flagset.Output(), applyHelp)
		flagset.PrintDefaults()
	}

	params := ApplyParams{
		GlobalSettings: settings,
		ApplyParams: stevedore.ApplyParams{
			Source: stevedore.SourceParams{Input: source},
		},
	}

	RegisterGlobalFlags(flagset, &params.GlobalSettings)

	flagset.BoolVar(&params.SkipDryRun, "skip-dry-run", false, "disables the dry run pass before resources are applied")
	flagset.BoolVar(&params.ForceConflicts, "force-conflicts", false, "force apply changes on field manager conflicts")
	flagset.BoolVar(&params.SkipSecretCheck, "skip-secret-check", false, "do not verify that referenced secret keys exist before applying")

	flagset.BoolVar(&params.DiffOnly, "diff-only", false, "show diff between the active revision and the would-be applied state. Does not apply anything to cluster")
	flagset.BoolVar(&params.Color, "color", term.IsTerminal(int(os.Stdout.Fd())), "use colored output in diffs")
	flagset.IntVar(&params.Context, "context", 4, "number of lines of context in diff (ignored if not using --diff-only)")
	flagset.StringVar(&params.Out, "out", "", "if present outputs rendered resources to the directory specified, if out is - outputs to standard out")
	flagset.DurationVar(&params.Wait, "wait", 0, "time to wait for release to be ready")
	flagset.DurationVar(&params.Poll, "poll", 5*time.Second, "interval to poll resource state at. Used with --wait")

	flagset.Parse(args)

	params.Release = flagset.Arg(0)
	params.Source.Path = flagset.Arg(1)
	params.Source.Namespace = params.Namespace

	if params.Release == "" {
		return nil, fmt.Errorf("release is required as first positional arg")
	}
	if params.Source.Input == nil && params.Source.Path == "" {
		return nil, fmt.Errorf("descriptor path is required as second positional arg")
	}

	return &params, nil
}

func Apply(ctx context.Context, params ApplyParams) error {
	commander, err := stevedore.FromKubeConfig(params.KubeConfigPath)
	if err != nil {
		return err
	}
	return commander.Apply(ctx, params.ApplyParams)
}
