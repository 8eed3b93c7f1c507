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

type DeleteParams struct {
	GlobalSettings
	Release string
}

//go:embed cmd_delete_help.txt
var deleteHelp string

func init() {
	deleteHelp = strings.TrimSpace(internal.Colorize(deleteHelp))
}

func GetDeleteParams(settings GlobalSettings, args []string) (*DeleteParams, error) {
	flagset := flag.NewFlagSet("delete", flag.ExitOnError)

	flagset.Usage = func() {
		fmt.Fprintln(flagset.Output(), deleteHelp)
		flagset.PrintDefaults()
	}

	params := DeleteParams{GlobalSettings: settings}

	RegisterGlobalFlags(flagset, &params.GlobalSettings)

	flagset.Parse(args)

	params.Release = flagset.Arg(0)
	if params.Release == "" {
		return nil, fmt.Errorf("release is required")
	}

	return &params, nil
}

func Delete(ctx context.Context, params DeleteParams) error {
	commander, err := stevedore.FromKubeConfig(params.KubeConfigPath)
	if err != nil {
		return fmt.Errorf("failed to instantiate cluster client: %w", err)
	}
	return commander.Remove(ctx, params.Release)
}
