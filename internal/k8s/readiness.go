package k8s

import (
	"context"
	"fmt"
	"time"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"

	"github.com/davidmdm/x/xerr"

	"github.com/stevedore-dev/stevedore/internal"
)

type WaitOptions struct {
	Timeout  time.Duration
	Interval time.Duration
}

// WaitForReady polls the live state of a declared resource until it passes
// its kind's readiness rules or the timeout elapses.
func (client Client) WaitForReady(ctx context.Context, resource *unstructured.Unstructured, opts WaitOptions) error {
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}
	if opts.Interval <= 0 {
		opts.Interval = 2 * time.Second
	}

	ticker := time.NewTicker(opts.Interval)
	defer ticker.Stop()

	for {
		live, err := client.GetCurrentState(ctx, resource)
		if err != nil {
			return fmt.Errorf("failed to get %s: %w", internal.Canonical(resource), err)
		}
		if live != nil && IsReady(live) {
			return nil
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("%s never became ready: %w", internal.Canonical(resource), ctx.Err())
		case <-ticker.C:
		}
	}
}

func (client Client) WaitForReadyMany(ctx context.Context, resources []*unstructured.Unstructured, opts WaitOptions) error {
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
		opts.Timeout = 0
	}

	var errs []error
	for _, resource := range resources {
		if err := client.WaitForReady(ctx, resource, opts); err != nil {
			errs = append(errs, err)
		}
	}

	return xerr.MultiErrOrderedFrom("", errs...)
}

// IsReady checks readiness of workload resources, namespaces, and CRDs.
// Kinds without a readiness rule are considered ready once they exist.
func IsReady(resource *unstructured.Unstructured) bool {
	gvk := resource.GroupVersionKind()

	switch gvk.Group {
	case "":
		switch gvk.Kind {
		case "Namespace":
			phase, _, _ := unstructured.NestedString(resource.Object, "status", "phase")
			return phase == "Active"
		case "Pod":
			phase, _, _ := unstructured.NestedString(resource.Object, "status", "phase")
			return phase == "Running" && meetsConditions(resource, "Ready")
		}
	case "apps":
		switch gvk.Kind {
		case "Deployment":
			return true &&
				meetsConditions(resource, "Available") &&
				equalInts(resource, "replicas", "availableReplicas", "readyReplicas", "updatedReplicas")
		case "ReplicaSet", "StatefulSet":
			return equalInts(resource, "replicas", "availableReplicas", "readyReplicas", "updatedReplicas")
		case "DaemonSet":
			return equalInts(
				resource,
				"currentNumberScheduled",
				"desiredNumberScheduled",
				"updatedNumberScheduled",
				"numberAvailable",
				"numberReady",
			)
		}
	case "apiextensions.k8s.io":
		switch gvk.Kind {
		case "CustomResourceDefinition":
			return meetsConditions(resource, "Established")
		}
	}

	return true
}

func meetsConditions(resource *unstructured.Unstructured, keys ...string) bool {
	conditions, _, _ := unstructured.NestedSlice(resource.Object, "status", "conditions")

	trueConditions := map[string]bool{}
	for _, condition := range conditions {
		values, _ := condition.(map[string]any)
		cond, _ := values["type"].(string)
		if cond == "" {
			continue
		}
		trueConditions[cond] = values["status"] == "True"
	}

	for _, key := range keys {
		if !trueConditions[key] {
			return false
		}
	}

	return true
}

func equalInts(resource *unstructured.Unstructured, keys ...string) bool {
	if len(keys) == 0 {
		return true
	}

	values := []int64{}
	for _, key := range keys {
		value, _, _ := unstructured.NestedInt64(resource.Object, "status", key)
		values = append(values, value)
	}

	wanted := values[0]
	for _, value := range values[1:] {
		if value != wanted {
			return false
		}
	}

	return true
}
