package stevedore

import (
	"context"
	"fmt"

	"github.com/stevedore-dev/stevedore/internal"
	"github.com/stevedore-dev/stevedore/internal/k8s"
	"github.com/stevedore-dev/stevedore/internal/text"
)

type DriftParams struct {
	Release       string
	Context       int
	ConflictsOnly bool
	Fix           bool
	Color         bool
}

// Drift compares the live cluster state of the active revision against its
// declared state. In conflicts-only mode, server-populated fields (status,
// generated metadata, defaults) are pruned so that only fields the
// descriptor declares can show up as drift.
func (commander Commander) Drift(ctx context.Context, params DriftParams) error {
	defer internal.DebugTimer(ctx, "drift")()

	revisions, err := commander.k8s.GetRevisions(ctx, params.Release)
	if err != nil {
		return fmt.Errorf("failed to get revision history: %w", err)
	}

	declared := revisions.CurrentResources()
	if len(declared) == 0 {
		return fmt.Errorf("release %q has no active revision", params.Release)
	}

	declaredState := internal.CanonicalObjectMap(declared)
	liveState := make(map[string]any, len(declared))

	for _, resource := range declared {
		name := internal.Canonical(resource)

		live, err := commander.k8s.GetCurrentState(ctx, resource)
		if err != nil {
			return fmt.Errorf("failed to get %s: %w", name, err)
		}
		if live == nil {
			continue
		}

		if params.ConflictsOnly {
			liveState[name] = PruneToDeclared(live.Object, resource.Object)
		} else {
			liveState[name] = live.Object
		}
	}

	a, err := text.ToYamlFile("declared", declaredState)
	if err != nil {
		return err
	}
	b, err := text.ToYamlFile("live", liveState)
	if err != nil {
		return err
	}

	differ := func() text.DiffFunc {
		if params.Color {
			return text.DiffColorized
		}
		return text.Diff
	}()

	diff := differ(a, b, params.Context)
	if diff == "" {
		return internal.Warning("no drift detected")
	}

	if _, err := fmt.Fprint(internal.Stdout(ctx), diff); err != nil {
		return err
	}

	if !params.Fix {
		return nil
	}

	if err := commander.k8s.ApplyResources(ctx, declared, k8s.ApplyResourcesOpts{SkipDryRun: true, ForceConflicts: true}); err != nil {
		return fmt.Errorf("failed to fix drift: %w", err)
	}

	return nil
}

// PruneToDeclared recursively intersects a live object with the keys of the
// declared object. List elements are matched positionally.
func PruneToDeclared(live, declared map[string]any) map[string]any {
	result := make(map[string]any, len(declared))

	for key, declaredValue := range declared {
		liveValue, ok := live[key]
		if !ok {
			continue
		}

		switch declaredValue := declaredValue.(type) {
		case map[string]any:
			liveMap, ok := liveValue.(map[string]any)
			if !ok {
				result[key] = liveValue
				continue
			}
			result[key] = PruneToDeclared(liveMap, declaredValue)
		case []any:
			liveSlice, ok := liveValue.([]any)
			if !ok {
				result[key] = liveValue
				continue
			}
			pruned := make([]any, 0, len(liveSlice))
			for i, item := range liveSlice {
				if i >= len(declaredValue) {
					pruned = append(pruned, item)
					continue
				}
				declaredItem, ok := declaredValue[i].(map[string]any)
				if !ok {
					pruned = append(pruned, item)
					continue
				}
				liveItem, ok := item.(map[string]any)
				if !ok {
					pruned = append(pruned, item)
					continue
				}
				pruned = append(pruned, PruneToDeclared(liveItem, declaredItem))
			}
			result[key] = pruned
		default:
			result[key] = liveValue
		}
	}

	return result
}
