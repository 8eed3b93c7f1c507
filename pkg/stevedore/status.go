package stevedore

import (
	"context"
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"

	"github.com/stevedore-dev/stevedore/internal"
	"github.com/stevedore-dev/stevedore/internal/k8s"
)

type StatusParams struct {
	Release string
}

// Status is the read-status operation: it reports the live readiness of
// every resource in the active revision and fails when any is unready.
func (commander Commander) Status(ctx context.Context, params StatusParams) error {
	defer internal.DebugTimer(ctx, "status")()

	revisions, err := commander.k8s.GetRevisions(ctx, params.Release)
	if err != nil {
		return fmt.Errorf("failed to get revision history: %w", err)
	}

	resources := revisions.CurrentResources()
	if len(resources) == 0 {
		return fmt.Errorf("release %q has no active revision", params.Release)
	}

	tbl := table.NewWriter()
	tbl.SetStyle(table.StyleRounded)
	tbl.AppendHeader(table.Row{"resource", "exists", "ready", "observed"})

	unready := 0
	for _, resource := range resources {
		live, err := commander.k8s.GetCurrentState(ctx, resource)
		if err != nil {
			return fmt.Errorf("failed to get %s: %w", internal.Canonical(resource), err)
		}

		if live == nil {
			unready++
			tbl.AppendRow(table.Row{internal.Canonical(resource), false, false, "-"})
			continue
		}

		ready := k8s.IsReady(live)
		if !ready {
			unready++
		}

		tbl.AppendRow(table.Row{internal.Canonical(resource), true, ready, observedSummary(live)})
	}

	if _, err := io.WriteString(internal.Stdout(ctx), tbl.Render()+"\n"); err != nil {
		return err
	}

	if unready > 0 {
		return fmt.Errorf("release %q has %d unready resource(s)", params.Release, unready)
	}

	return nil
}

func observedSummary(resource *unstructured.Unstructured) string {
	gvk := resource.GroupVersionKind()

	switch gvk.Group {
	case "":
		switch gvk.Kind {
		case "Pod", "Namespace":
			phase, _, _ := unstructured.NestedString(resource.Object, "status", "phase")
			if phase != "" {
				return phase
			}
		}
	case "apps":
		switch gvk.Kind {
		case "Deployment", "ReplicaSet", "StatefulSet":
			ready, _, _ := unstructured.NestedInt64(resource.Object, "status", "readyReplicas")
			wanted, _, _ := unstructured.NestedInt64(resource.Object, "status", "replicas")
			return fmt.Sprintf("%d/%d replicas ready", ready, wanted)
		case "DaemonSet":
			ready, _, _ := unstructured.NestedInt64(resource.Object, "status", "numberReady")
			wanted, _, _ := unstructured.NestedInt64(resource.Object, "status", "desiredNumberScheduled")
			return fmt.Sprintf("%d/%d scheduled ready", ready, wanted)
		}
	}

	return "-"
}
