package main

import (
	"context"
	_ "embed"
	"flag"
	"fmt"
	"strings"

	"github.com/stevedore-dev/stevedore/internal"
	"github.com/stevedore-dev/stevedore/pkg/stevedore"
)

type StatusParams struct {
	GlobalSettings
	stevedore.StatusParams
}

//go:embed cmd_status_help.txt
var statusHelp string

func init() {
	statusHelp = strings.TrimSpace(internal.Colorize(statusHelp))
}

func GetStatusParams(settings GlobalSettings, args []string) (*StatusParams, error) {
	flagset := flag.NewFlagSet("status", flag.ExitOnError)

	flagset.Usage = func() {
		fmt.Fprintln(flagset.Output(), statusHelp)
		flagset.PrintDefaults()
	}

	params := StatusParams{GlobalSettings: settings}

	RegisterGlobalFlags(flagset, &params.GlobalSettings)

	flagset.Parse(args)

	params.Release = flagset.Arg(0)
	if params.Release == "" {
		return nil, fmt.Errorf("release is required")
	}

	return &params, nil
}

func Status(ctx context.Context, params StatusParams) error {
	commander, err := stevedore.FromKubeConfig(params.KubeConfigPath)
	if err != nil {
		return fmt.Errorf("failed to instantiate cluster client: %w", err)
	}
	return commander.Status(ctx, params.StatusParams)
}
