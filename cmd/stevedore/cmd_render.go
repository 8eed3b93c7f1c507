package main

import (
	"cmp"
	"context"
	_ "embed"
	"flag"
	"fmt"
	"io"
	"strings"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"

	"github.com/stevedore-dev/stevedore/internal"
	"github.com/stevedore-dev/stevedore/pkg/descriptor"
	"github.com/stevedore-dev/stevedore/pkg/stevedore"
)

type RenderParams struct {
	GlobalSettings
	Source  stevedore.SourceParams
	Release string
	Out     string
}

//go:embed cmd_render_help.txt
var renderHelp string

func init() {
	renderHelp = strings.TrimSpace(internal.Colorize(renderHelp))
}

func GetRenderParams(settings GlobalSettings, source io.Reader, args []string) (*RenderParams, error) {
	flagset := flag.NewFlagSet("render", flag.ExitOnError)

	flagset.Usage = func() {
		fmt.Fprintln(flagset.Output(), renderHelp)
		flagset.PrintDefaults()
	}

	params := RenderParams{
		GlobalSettings: settings,
		Source:         stevedore.SourceParams{Input: source},
	}

	RegisterGlobalFlags(flagset, &params.GlobalSettings)

	flagset.StringVar(&params.Release, "release", "", "tag output with release ownership labels")
	flagset.StringVar(&params.Out, "out", "-", "output directory, or - for standard out")

	flagset.Parse(args)

	params.Source.Path = flagset.Arg(0)
	params.Source.Namespace = params.Namespace

	if params.Source.Input == nil && params.Source.Path == "" {
		return nil, fmt.Errorf("descriptor path is required as first positional arg")
	}

	return &params, nil
}

// Render evaluates and validates a descriptor fully offline and writes the
// resources that apply would submit.
func Render(ctx context.Context, params RenderParams) error {
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

	if deployment.Metadata.Namespace == "" {
		deployment.Metadata.Namespace = cmp.Or(params.Source.Namespace, "default")
	}

	resource, err := deployment.Unstructured()
	if err != nil {
		return fmt.Errorf("failed to convert descriptor: %w", err)
	}

	resources := []*unstructured.Unstructured{resource}
	if params.Release != "" {
		internal.AddManagedMetadata(resources, params.Release)
	}

	if params.Out == "-" {
		return stevedore.ExportToStdout(ctx, resources)
	}
	return stevedore.ExportToFS(params.Out, cmp.Or(params.Release, deployment.Metadata.Name), resources)
}
