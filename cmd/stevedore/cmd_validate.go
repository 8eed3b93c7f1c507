package main

import (
	"context"
	_ "embed"
	"flag"
	"fmt"
	"io"
	"strings"

	"github.com/stevedore-dev/stevedore/internal"
	"github.com/stevedore-dev/stevedore/pkg/descriptor"
	"github.com/stevedore-dev/stevedore/pkg/stevedore"
)

type ValidateParams struct {
	GlobalSettings
	Source stevedore.SourceParams
}

//go:embed cmd_validate_help.txt
var validateHelp string

func init() {
	validateHelp = strings.TrimSpace(internal.Colorize(validateHelp))
}

func GetValidateParams(settings GlobalSettings, source io.Reader, args []string) (*ValidateParams, error) {
	flagset := flag.NewFlagSet("validate", flag.ExitOnError)

	flagset.Usage = func() {
		fmt.Fprintln(flagset.Output(), validateHelp)
		flagset.PrintDefaults()
	}

	params := ValidateParams{
		GlobalSettings: settings,
		Source:         stevedore.SourceParams{Input: source},
	}

	RegisterGlobalFlags(flagset, &params.GlobalSettings)

	flagset.Parse(args)

	params.Source.Path = flagset.Arg(0)

	if params.Source.Input == nil && params.Source.Path == "" {
		return nil, fmt.Errorf("descriptor path is required as first positional arg")
	}

	return &params, nil
}

// Validate checks a descriptor without touching any cluster.
func Validate(ctx context.Context, params ValidateParams) error {
	raw, _, err := stevedore.EvalSource(ctx, params.Source)
	if err != nil {
		return fmt.Errorf("failed to evaluate descriptor source: %w", err)
	}

	deployment, err := descriptor.Parse(raw)
	if err != nil {
		return err
	}

	if err := deployment.Validate(); err != nil {
		return err
	}

	_, err = fmt.Fprintf(internal.Stdout(ctx), "descriptor %s is valid\n", deployment.Metadata.Name)
	return err
}
