// Package stevedore implements the operations of the deployment descriptor
// lifecycle: apply a descriptor to a cluster as a named release, observe its
// status, detect drift, roll back to prior revisions, and remove it.
package stevedore

import (
	"context"
	"fmt"
	"time"

	"github.com/stevedore-dev/stevedore/internal"
	"github.com/stevedore-dev/stevedore/internal/k8s"
)

type Commander struct {
	k8s *k8s.Client
}

func FromKubeConfig(path string) (*Commander, error) {
	client, err := k8s.NewClientFromKubeConfig(path)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize cluster client: %w", err)
	}
	return &Commander{client}, nil
}

func FromK8Client(client *k8s.Client) *Commander {
	return &Commander{client}
}

type RollbackParams struct {
	Release    string
	RevisionID int
	Wait       time.Duration
	Poll       time.Duration
}

// Rollback re-applies the resources of a prior revision and marks it active.
// History is never rewritten; only the active index moves.
func (commander Commander) Rollback(ctx context.Context, params RollbackParams) error {
	defer internal.DebugTimer(ctx, "rollback")()

	revisions, err := commander.k8s.GetRevisions(ctx, params.Release)
	if err != nil {
		return fmt.Errorf("failed to get revisions: %w", err)
	}

	index := -1
	for i, revision := range revisions.History {
		if revision.ID == params.RevisionID {
			index = i
			break
		}
	}
	if index == -1 {
		return fmt.Errorf("revision %d is not within history", params.RevisionID)
	}

	next := revisions.History[index]

	if err := commander.k8s.ValidateOwnership(ctx, params.Release, next.Resources); err != nil {
		return fmt.Errorf("failed to validate ownership: %w", err)
	}

	previous := revisions.CurrentResources()

	if err := commander.k8s.ApplyResources(ctx, next.Resources, k8s.ApplyResourcesOpts{SkipDryRun: true}); err != nil {
		return fmt.Errorf("failed to apply resources: %w", err)
	}

	revisions.ActiveIndex = index

	if err := commander.k8s.UpsertRevisions(ctx, params.Release, revisions); err != nil {
		return fmt.Errorf("failed to update revision history: %w", err)
	}

	removed, err := commander.k8s.RemoveOrphans(ctx, previous, next.Resources)
	if err != nil {
		return fmt.Errorf("failed to remove orphaned resources: %w", err)
	}

	var (
		createdNames = internal.CanonicalNameList(next.Resources)
		removedNames = internal.CanonicalNameList(removed)
	)

	if err := commander.k8s.UpdateResourceReleaseMapping(ctx, params.Release, createdNames, removedNames); err != nil {
		return fmt.Errorf("failed to update resource release mapping: %w", err)
	}

	if params.Wait > 0 {
		opts := k8s.WaitOptions{Timeout: params.Wait, Interval: params.Poll}
		if err := commander.k8s.WaitForReadyMany(ctx, next.Resources, opts); err != nil {
			return fmt.Errorf("release did not become ready within wait period: %w", err)
		}
	}

	return nil
}

// Remove deletes every resource of the active revision along with the
// release's history and ownership entries.
func (commander Commander) Remove(ctx context.Context, release string) error {
	defer internal.DebugTimer(ctx, "remove")()

	revisions, err := commander.k8s.GetRevisions(ctx, release)
	if err != nil {
		return fmt.Errorf("failed to get revision history for release: %w", err)
	}

	removed, err := commander.k8s.RemoveOrphans(ctx, revisions.CurrentResources(), nil)
	if err != nil {
		return fmt.Errorf("failed to delete resources: %w", err)
	}

	if err := commander.k8s.UpdateResourceReleaseMapping(ctx, release, nil, internal.CanonicalNameList(removed)); err != nil {
		return fmt.Errorf("failed to update resource to release mapping: %w", err)
	}

	if err := commander.k8s.DeleteRevisions(ctx, release); err != nil {
		return fmt.Errorf("failed to delete revision history: %w", err)
	}

	return nil
}
