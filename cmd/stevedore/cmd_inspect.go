package main

import (
	"context"
	_ "embed"
	"flag"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"gopkg.in/yaml.v3"

	"github.com/stevedore-dev/stevedore/internal"
	"github.com/stevedore-dev/stevedore/internal/k8s"
	"github.com/stevedore-dev/stevedore/internal/text"
)

type InspectParams struct {
	GlobalSettings
	Release          string
	ResourceMappings bool
	RevisionID       int
	DiffRevisionID   int
	Context          int
}

//go:embed cmd_inspect_help.txt
var inspectHelp string

func init() {
	inspectHelp = strings.TrimSpace(internal.Colorize(inspectHelp))
}

func GetInspectParams(settings GlobalSettings, args []string) (*InspectParams, error) {
	flagset := flag.NewFlagSet("inspect", flag.ExitOnError)

	flagset.Usage = func() {
		fmt.Fprintln(flagset.Output(), inspectHelp)
		flagset.PrintDefaults()
	}

	params := InspectParams{GlobalSettings: settings}

	RegisterGlobalFlags(flagset, &params.GlobalSettings)
	flagset.IntVar(&params.Context, "context", 4, "number of lines of context in diff (ignored if not comparing revisions)")
	flagset.BoolVar(&params.ResourceMappings, "mapping", false, "print release to resource mappings. If present ignores all other args")
	flagset.Parse(args)

	params.Release = flagset.Arg(0)

	// revision IDs start at 1; zero means no revision argument was given
	if revision := flagset.Arg(1); revision != "" {
		revisionID, err := strconv.Atoi(revision)
		if err != nil {
			return nil, fmt.Errorf("revision must be an integer ID: %w", err)
		}
		if revisionID < 1 {
			return nil, fmt.Errorf("revision must be a positive integer ID but got %d", revisionID)
		}
		params.RevisionID = revisionID
	}

	if revision := flagset.Arg(2); revision != "" {
		revisionID, err := strconv.Atoi(revision)
		if err != nil {
			return nil, fmt.Errorf("revision to diff must be an integer ID: %w", err)
		}
		if revisionID < 1 {
			return nil, fmt.Errorf("revision to diff must be a positive integer ID but got %d", revisionID)
		}
		params.DiffRevisionID = revisionID
	}

	return &params, nil
}

func Inspect(ctx context.Context, params InspectParams) error {
	client, err := k8s.NewClientFromKubeConfig(params.KubeConfigPath)
	if err != nil {
		return fmt.Errorf("failed to instantiate cluster client: %w", err)
	}

	if params.ResourceMappings {
		mappings, err := client.GetResourceReleaseMapping(ctx)
		if err != nil {
			return fmt.Errorf("failed to lookup resource to release mappings: %w", err)
		}

		relToRes := make(map[string][]string)
		for resource, release := range mappings {
			relToRes[release] = append(relToRes[release], resource)
		}

		encoder := yaml.NewEncoder(internal.Stdout(ctx))
		encoder.SetIndent(2)
		return encoder.Encode(relToRes)
	}

	allReleases, err := client.GetAllRevisions(ctx)
	if err != nil {
		return fmt.Errorf("failed to get revisions: %w", err)
	}

	if params.Release == "" {
		tbl := table.NewWriter()
		tbl.SetStyle(table.StyleRounded)

		tbl.AppendHeader(table.Row{"release", "active revision id"})
		for _, revisions := range allReleases {
			if active := revisions.Active(); active != nil {
				tbl.AppendRow(table.Row{revisions.Release, active.ID})
			}
		}

		_, err = io.WriteString(internal.Stdout(ctx), tbl.Render()+"\n")
		return err
	}

	revisions, ok := internal.Find(allReleases, func(revisions internal.Revisions) bool {
		return revisions.Release == params.Release
	})
	if !ok {
		return fmt.Errorf("release %q not found", params.Release)
	}

	if params.RevisionID == 0 {
		tbl := table.NewWriter()
		tbl.SetStyle(table.StyleRounded)

		history := slices.Clone(revisions.History)
		slices.Reverse(history)

		tbl.AppendHeader(table.Row{"id", "resources", "source", "sha", "created at"})
		for _, revision := range history {
			tbl.AppendRow(table.Row{revision.ID, len(revision.Resources), revision.Source.Ref, revision.Source.Checksum, revision.CreatedAt})
		}

		_, err = io.WriteString(internal.Stdout(ctx), tbl.Render()+"\n")
		return err
	}

	revision, ok := internal.Find(revisions.History, func(revision internal.Revision) bool {
		return revision.ID == params.RevisionID
	})
	if !ok {
		return fmt.Errorf("revision %d not found", params.RevisionID)
	}

	primaryRevision := internal.CanonicalObjectMap(revision.Resources)

	if params.DiffRevisionID == 0 {
		encoder := yaml.NewEncoder(internal.Stdout(ctx))
		encoder.SetIndent(2)

		if err := encoder.Encode(primaryRevision); err != nil {
			return fmt.Errorf("failed to encode resources: %w", err)
		}
		return nil
	}

	revision, ok = internal.Find(revisions.History, func(revision internal.Revision) bool {
		return revision.ID == params.DiffRevisionID
	})
	if !ok {
		return fmt.Errorf("revision %d not found", params.DiffRevisionID)
	}

	diffRevision := internal.CanonicalObjectMap(revision.Resources)

	a, err := text.ToYamlFile(fmt.Sprintf("revision %d", params.RevisionID), primaryRevision)
	if err != nil {
		return err
	}

	b, err := text.ToYamlFile(fmt.Sprintf("revision %d", params.DiffRevisionID), diffRevision)
	if err != nil {
		return err
	}

	_, err = fmt.Fprint(internal.Stdout(ctx), text.DiffColorized(a, b, params.Context))
	return err
}
