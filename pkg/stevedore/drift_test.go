package stevedore

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPruneToDeclared(t *testing.T) {
	declared := map[string]any{
		"apiVersion": "apps/v1",
		"kind":       "Deployment",
		"metadata": map[string]any{
			"name": "graph-node",
		},
		"spec": map[string]any{
			"replicas": int64(1),
			"template": map[string]any{
				"spec": map[string]any{
					"containers": []any{
						map[string]any{
							"name":  "graph-node",
							"image": "graphprotocol/graph-node:v0.33.0",
						},
					},
				},
			},
		},
	}

	live := map[string]any{
		"apiVersion": "apps/v1",
		"kind":       "Deployment",
		"metadata": map[string]any{
			"name":              "graph-node",
			"uid":               "b54c...",
			"resourceVersion":   "123456",
			"creationTimestamp": "2026-01-01T00:00:00Z",
		},
		"spec": map[string]any{
			"replicas":             int64(3),
			"progressDeadlineSeconds": int64(600),
			"template": map[string]any{
				"spec": map[string]any{
					"containers": []any{
						map[string]any{
							"name":            "graph-node",
							"image":           "graphprotocol/graph-node:v0.34.0",
							"imagePullPolicy": "IfNotPresent",
						},
					},
				},
			},
		},
		"status": map[string]any{"replicas": int64(3)},
	}

	pruned := PruneToDeclared(live, declared)

	require.Equal(t, map[string]any{
		"apiVersion": "apps/v1",
		"kind":       "Deployment",
		"metadata": map[string]any{
			"name": "graph-node",
		},
		"spec": map[string]any{
			"replicas": int64(3),
			"template": map[string]any{
				"spec": map[string]any{
					"containers": []any{
						map[string]any{
							"name":  "graph-node",
							"image": "graphprotocol/graph-node:v0.34.0",
						},
					},
				},
			},
		},
	}, pruned)
}

func TestPruneToDeclaredKeepsExtraListElements(t *testing.T) {
	declared := map[string]any{
		"containers": []any{
			map[string]any{"name": "graph-node"},
		},
	}
	live := map[string]any{
		"containers": []any{
			map[string]any{"name": "graph-node", "imagePullPolicy": "Always"},
			map[string]any{"name": "sidecar"},
		},
	}

	pruned := PruneToDeclared(live, declared)

	require.Equal(t, map[string]any{
		"containers": []any{
			map[string]any{"name": "graph-node"},
			map[string]any{"name": "sidecar"},
		},
	}, pruned)
}

func TestPruneToDeclaredMissingKeys(t *testing.T) {
	declared := map[string]any{"spec": map[string]any{"replicas": int64(1)}}
	live := map[string]any{}

	require.Equal(t, map[string]any{}, PruneToDeclared(live, declared))
}
