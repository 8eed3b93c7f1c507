package k8s

import (
	"testing"

	"github.com/stretchr/testify/require"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
)

func deploymentWithStatus(status map[string]any) *unstructured.Unstructured {
	return &unstructured.Unstructured{
		Object: map[string]any{
			"apiVersion": "apps/v1",
			"kind":       "Deployment",
			"metadata":   map[string]any{"name": "graph-node"},
			"status":     status,
		},
	}
}

func TestIsReadyDeployment(t *testing.T) {
	ready := deploymentWithStatus(map[string]any{
		"replicas":          int64(1),
		"availableReplicas": int64(1),
		"readyReplicas":     int64(1),
		"updatedReplicas":   int64(1),
		"conditions": []any{
			map[string]any{"type": "Available", "status": "True"},
		},
	})
	require.True(t, IsReady(ready))

	rollingOut := deploymentWithStatus(map[string]any{
		"replicas":          int64(2),
		"availableReplicas": int64(1),
		"readyReplicas":     int64(1),
		"updatedReplicas":   int64(2),
		"conditions": []any{
			map[string]any{"type": "Available", "status": "True"},
		},
	})
	require.False(t, IsReady(rollingOut))

	unavailable := deploymentWithStatus(map[string]any{
		"replicas":          int64(1),
		"availableReplicas": int64(1),
		"readyReplicas":     int64(1),
		"updatedReplicas":   int64(1),
		"conditions": []any{
			map[string]any{"type": "Available", "status": "False"},
		},
	})
	require.False(t, IsReady(unavailable))
}

func TestIsReadyNamespace(t *testing.T) {
	namespace := &unstructured.Unstructured{
		Object: map[string]any{
			"apiVersion": "v1",
			"kind":       "Namespace",
			"metadata":   map[string]any{"name": "default"},
			"status":     map[string]any{"phase": "Active"},
		},
	}
	require.True(t, IsReady(namespace))

	namespace.Object["status"] = map[string]any{"phase": "Terminating"}
	require.False(t, IsReady(namespace))
}

func TestIsReadyPod(t *testing.T) {
	pod := &unstructured.Unstructured{
		Object: map[string]any{
			"apiVersion": "v1",
			"kind":       "Pod",
			"metadata":   map[string]any{"name": "graph-node-0"},
			"status": map[string]any{
				"phase": "Running",
				"conditions": []any{
					map[string]any{"type": "Ready", "status": "True"},
				},
			},
		},
	}
	require.True(t, IsReady(pod))

	pod.Object["status"].(map[string]any)["phase"] = "Pending"
	require.False(t, IsReady(pod))
}

func TestIsReadyUnknownKindDefaultsTrue(t *testing.T) {
	configMap := &unstructured.Unstructured{
		Object: map[string]any{
			"apiVersion": "v1",
			"kind":       "ConfigMap",
			"metadata":   map[string]any{"name": "settings"},
		},
	}
	require.True(t, IsReady(configMap))
}
