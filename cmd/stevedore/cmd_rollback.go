package main

import (
	"context"
	_ "embed"
	"flag"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/stevedore-dev/stevedore/internal"
	"github.com/stevedore-dev/stevedore/pkg/stevedore"
)

//go:embed cmd_rollback_help.txt
var rollbackHelp string

func init() {
	rollbackHelp = strings.TrimSpace(internal.Colorize(rollbackHelp))
}

type RollbackParams struct {
	GlobalSettings
	stevedore.RollbackParams
}

func GetRollbackParams(settings GlobalSettings, args []string) (*RollbackParams, error) {
	flagset := flag.NewFlagSet("rollback", flag.ExitOnError)

	flagset.Usage = func() {
		fmt.Fprintln(flagset.Output(), rollbackHelp)
		flagset.PrintDefaults()
	}

	params := RollbackParams{GlobalSettings: settings}

	RegisterGlobalFlags(flagset, &params.GlobalSettings)

	flagset.DurationVar(&params.Wait, "wait", 0, "time to wait for release to become ready")
	flagset.DurationVar(&params.Poll, "poll", 5*time.Second, "interval to poll resource state at. Used with --wait")

	flagset.Parse(args)

	params.Release = flagset.Arg(0)
	if params.Release == "" {
		return nil, fmt.Errorf("release is required as first positional arg")
	}

	if len(flagset.Args()) < 2 {
		return nil, fmt.Errorf("revision is required as second positional arg")
	}

	revisionID, err := strconv.Atoi(flagset.Arg(1))
	if err != nil {
		return nil, fmt.Errorf("revision must be an integer ID: %w", err)
	}

	params.RevisionID = revisionID

	return &params, nil
}

func Rollback(ctx context.Context, params RollbackParams) error {
	commander, err := stevedore.FromKubeConfig(params.KubeConfigPath)
	if err != nil {
		return fmt.Errorf("failed to instantiate cluster client: %w", err)
	}
	return commander.Rollback(ctx, params.RollbackParams)
}
