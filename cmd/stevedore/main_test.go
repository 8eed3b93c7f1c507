package main

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/stevedore-dev/stevedore/internal"
)

const graphNodeDescriptor = `
apiVersion: apps/v1
kind: Deployment
metadata:
  name: graph-node
spec:
  replicas: 1
  selector:
    matchLabels:
      app: graph-node
  template:
    metadata:
      labels:
        app: graph-node
    spec:
      containers:
        - name: graph-node
          image: graphprotocol/graph-node:v0.33.0
          ports:
            - name: http
              containerPort: 8000
          env:
            - name: GRAPH_SENTRY_URL
              valueFrom:
                secretKeyRef:
                  name: graph-sentry-url
                  key: value
`

func TestGetApplyParams(t *testing.T) {
	settings := GlobalSettings{KubeConfigPath: "/tmp/kubeconfig", Namespace: "default"}

	params, err := GetApplyParams(settings, nil, []string{
		"-wait", "30s",
		"-skip-dry-run",
		"graph", "deploy/graph-node.yaml",
	})
	require.NoError(t, err)
	require.Equal(t, "graph", params.Release)
	require.Equal(t, "deploy/graph-node.yaml", params.Source.Path)
	require.Equal(t, "default", params.Source.Namespace)
	require.Equal(t, 30*time.Second, params.Wait)
	require.True(t, params.SkipDryRun)

	_, err = GetApplyParams(settings, nil, []string{})
	require.ErrorContains(t, err, "release is required")

	_, err = GetApplyParams(settings, nil, []string{"graph"})
	require.ErrorContains(t, err, "descriptor path is required")

	// piped stdin stands in for the descriptor path
	params, err = GetApplyParams(settings, strings.NewReader(""), []string{"graph"})
	require.NoError(t, err)
	require.NotNil(t, params.Source.Input)
}

func TestGetDriftParamsFixImpliesConflictsOnly(t *testing.T) {
	params, err := GetDriftParams(GlobalSettings{}, []string{"-fix", "-conflict-only=false", "graph"})
	require.NoError(t, err)
	require.True(t, params.Fix)
	require.True(t, params.ConflictsOnly)
}

func TestGetInspectParams(t *testing.T) {
	params, err := GetInspectParams(GlobalSettings{}, []string{"graph", "2", "1"})
	require.NoError(t, err)
	require.Equal(t, "graph", params.Release)
	require.Equal(t, 2, params.RevisionID)
	require.Equal(t, 1, params.DiffRevisionID)

	_, err = GetInspectParams(GlobalSettings{}, []string{"graph", "two"})
	require.ErrorContains(t, err, "revision must be an integer ID")

	// zero is not a valid ID and must not fall back to listing history
	_, err = GetInspectParams(GlobalSettings{}, []string{"graph", "0"})
	require.ErrorContains(t, err, "revision must be a positive integer ID but got 0")

	_, err = GetInspectParams(GlobalSettings{}, []string{"graph", "2", "0"})
	require.ErrorContains(t, err, "revision to diff must be a positive integer ID but got 0")
}

func TestVerboseFlagAtSubcommandPosition(t *testing.T) {
	settings := GlobalSettings{}

	params, err := GetApplyParams(settings, strings.NewReader(graphNodeDescriptor), []string{"-verbose", "graph"})
	require.NoError(t, err)
	require.True(t, params.Verbose)

	// the flagset parses into the params copy, not the settings it was seeded
	// from; the debug context must be bound to the copy
	require.False(t, settings.Verbose)

	var stderr bytes.Buffer
	ctx := internal.WithStderr(context.Background(), &stderr)

	internal.DebugTimer(internal.WithVerboseFlag(ctx, &params.Verbose), "apply")()
	require.Contains(t, stderr.String(), "start: apply")

	stderr.Reset()
	internal.DebugTimer(internal.WithVerboseFlag(ctx, &settings.Verbose), "apply")()
	require.Empty(t, stderr.String())
}

func TestValidateCommand(t *testing.T) {
	var stdout bytes.Buffer
	ctx := internal.WithStdout(context.Background(), &stdout)

	params, err := GetValidateParams(GlobalSettings{}, strings.NewReader(graphNodeDescriptor), nil)
	require.NoError(t, err)

	require.NoError(t, Validate(ctx, *params))
	require.Equal(t, "descriptor graph-node is valid\n", stdout.String())
}

func TestValidateCommandRejectsBrokenSelector(t *testing.T) {
	descriptor := strings.Replace(graphNodeDescriptor, "app: graph-node\n  template", "app: mismatched\n  template", 1)

	params, err := GetValidateParams(GlobalSettings{}, strings.NewReader(descriptor), nil)
	require.NoError(t, err)

	err = Validate(context.Background(), *params)
	require.ErrorContains(t, err, "is not present in spec.template.metadata.labels")
}

func TestRenderCommand(t *testing.T) {
	var stdout bytes.Buffer
	ctx := internal.WithStdout(context.Background(), &stdout)

	params, err := GetRenderParams(
		GlobalSettings{Namespace: "default"},
		strings.NewReader(graphNodeDescriptor),
		[]string{"-release", "graph"},
	)
	require.NoError(t, err)

	require.NoError(t, Render(ctx, *params))

	var output map[string]map[string]any
	require.NoError(t, yaml.Unmarshal(stdout.Bytes(), &output))

	resource, ok := output["default.apps.v1.deployment.graph-node"]
	require.True(t, ok, "expected canonical resource name in output, got: %v", output)

	metadata := resource["metadata"].(map[string]any)
	labels := metadata["labels"].(map[string]any)
	require.Equal(t, "stevedore", labels["app.kubernetes.io/managed-by"])
	require.Equal(t, "graph", labels["app.kubernetes.io/stevedore-release"])
}
