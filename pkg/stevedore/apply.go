package stevedore

import (
	"cmp"
	"context"
	"fmt"
	"io"
	"os"
	"reflect"
	"sync"
	"time"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"

	"github.com/davidmdm/x/xerr"

	"github.com/stevedore-dev/stevedore/internal"
	"github.com/stevedore-dev/stevedore/internal/git"
	"github.com/stevedore-dev/stevedore/internal/k8s"
	"github.com/stevedore-dev/stevedore/internal/text"
	"github.com/stevedore-dev/stevedore/pkg/descriptor"
)

// SourceParams locates a descriptor: a local file path, a git URL, or a
// reader (typically piped stdin).
type SourceParams struct {
	Path      string
	Input     io.Reader
	Namespace string
}

type ApplyParams struct {
	Release         string
	Source          SourceParams
	SkipDryRun      bool
	ForceConflicts  bool
	SkipSecretCheck bool
	DiffOnly        bool
	Context         int
	Color           bool
	Out             string
	Wait            time.Duration
	Poll            time.Duration
}

// EvalSource resolves a descriptor source to its raw content and a
// user-facing ref for revision history.
func EvalSource(ctx context.Context, source SourceParams) ([]byte, string, error) {
	if source.Path == "" || source.Path == "-" {
		if source.Input == nil {
			return nil, "", fmt.Errorf("no descriptor source: provide a path or pipe the descriptor via stdin")
		}
		raw, err := io.ReadAll(source.Input)
		return raw, "", err
	}

	if git.IsURL(source.Path) {
		defer internal.DebugTimer(ctx, "fetching descriptor from git")()

		src, err := git.ParseSource(source.Path)
		if err != nil {
			return nil, "", err
		}
		raw, err := git.Fetch(ctx, src)
		return raw, source.Path, err
	}

	raw, err := os.ReadFile(source.Path)
	return raw, source.Path, err
}

// Apply is the create/update operation: evaluate the source, validate the
// descriptor, and drive the cluster to the declared state as a new revision
// of the release.
func (commander Commander) Apply(ctx context.Context, params ApplyParams) error {
	defer internal.DebugTimer(ctx, "apply")()

	raw, ref, err := EvalSource(ctx, params.Source)
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
	internal.AddManagedMetadata(resources, params.Release)

	if params.Out != "" {
		if params.Out == "-" {
			return ExportToStdout(ctx, resources)
		}
		return ExportToFS(params.Out, params.Release, resources)
	}

	revisions, err := commander.k8s.GetRevisions(ctx, params.Release)
	if err != nil {
		return fmt.Errorf("failed to get revision history: %w", err)
	}

	previous := revisions.CurrentResources()

	if params.DiffOnly {
		a, err := text.ToYamlFile("current", internal.CanonicalObjectMap(previous))
		if err != nil {
			return err
		}
		b, err := text.ToYamlFile("next", internal.CanonicalObjectMap(resources))
		if err != nil {
			return err
		}

		differ := func() text.DiffFunc {
			if params.Color {
				return text.DiffColorized
			}
			return text.Diff
		}()

		_, err = fmt.Fprint(internal.Stdout(ctx), differ(a, b, params.Context))
		return err
	}

	if reflect.DeepEqual(previous, resources) {
		return internal.Warning("resources are the same as previous revision: skipping apply")
	}

	if err := commander.k8s.ValidateOwnership(ctx, params.Release, resources); err != nil {
		return fmt.Errorf("failed to validate ownership: %w", err)
	}

	if namespace := deployment.Metadata.Namespace; namespace != "" {
		if err := commander.k8s.EnsureNamespace(ctx, namespace); err != nil {
			return fmt.Errorf("failed to ensure namespace: %w", err)
		}
	}

	if !params.SkipSecretCheck {
		if err := commander.preflightSecrets(ctx, deployment); err != nil {
			return fmt.Errorf("failed secret preflight: %w", err)
		}
	}

	applyOpts := k8s.ApplyResourcesOpts{
		SkipDryRun:     params.SkipDryRun,
		ForceConflicts: params.ForceConflicts,
	}

	if err := commander.k8s.ApplyResources(ctx, resources, applyOpts); err != nil {
		return fmt.Errorf("failed to apply resources: %w", err)
	}

	revisions.Add(resources, internal.SourceFrom(ref, raw))

	if err := commander.k8s.UpsertRevisions(ctx, params.Release, revisions); err != nil {
		return fmt.Errorf("failed to create revision: %w", err)
	}

	removed, err := commander.k8s.RemoveOrphans(ctx, previous, resources)
	if err != nil {
		return fmt.Errorf("failed to remove orphans: %w", err)
	}

	var (
		createdNames = internal.CanonicalNameList(resources)
		removedNames = internal.CanonicalNameList(removed)
	)

	if err := commander.k8s.UpdateResourceReleaseMapping(ctx, params.Release, createdNames, removedNames); err != nil {
		return fmt.Errorf("failed to update resource release mapping: %w", err)
	}

	if params.Wait > 0 {
		opts := k8s.WaitOptions{Timeout: params.Wait, Interval: params.Poll}
		if err := commander.k8s.WaitForReadyMany(ctx, resources, opts); err != nil {
			return fmt.Errorf("release did not become ready within wait period: to rollback use `stevedore rollback`: %w", err)
		}
	}

	return nil
}

// preflightSecrets verifies that every secret env binding resolves in the
// target namespace before anything is written. The checks are independent
// and fan out.
func (commander Commander) preflightSecrets(ctx context.Context, deployment *descriptor.Deployment) error {
	defer internal.DebugTimer(ctx, "secret preflight")()

	refs := deployment.SecretRefs()
	if len(refs) == 0 {
		return nil
	}

	var wg sync.WaitGroup
	errs := make([]error, len(refs))

	for i, ref := range refs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = commander.k8s.LookupSecretKey(ctx, deployment.Metadata.Namespace, ref.Name, ref.Key)
		}()
	}

	wg.Wait()

	return xerr.MultiErrOrderedFrom("", errs...)
}
