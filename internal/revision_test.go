package internal

import (
	"testing"

	"github.com/stretchr/testify/require"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
)

func makeResource(namespace, apiVersion, kind, name string) *unstructured.Unstructured {
	resource := &unstructured.Unstructured{
		Object: map[string]any{
			"apiVersion": apiVersion,
			"kind":       kind,
			"metadata":   map[string]any{"name": name},
		},
	}
	if namespace != "" {
		resource.SetNamespace(namespace)
	}
	return resource
}

func TestCanonical(t *testing.T) {
	require.Equal(
		t,
		"default.apps.v1.deployment.graph-node",
		Canonical(makeResource("default", "apps/v1", "Deployment", "graph-node")),
	)
	require.Equal(
		t,
		"_.core.v1.namespace.default",
		Canonical(makeResource("", "v1", "Namespace", "default")),
	)
}

func TestRevisionsAdd(t *testing.T) {
	revisions := Revisions{Release: "graph", ActiveIndex: -1}

	require.Nil(t, revisions.Active())
	require.Empty(t, revisions.CurrentResources())

	first := []*unstructured.Unstructured{makeResource("default", "apps/v1", "Deployment", "graph-node")}
	revisions.Add(first, SourceFrom("deploy/graph-node.yaml", []byte("a")))

	require.Equal(t, 0, revisions.ActiveIndex)
	require.Equal(t, 1, revisions.Active().ID)
	require.Equal(t, first, revisions.CurrentResources())

	second := []*unstructured.Unstructured{makeResource("default", "apps/v1", "Deployment", "graph-node-v2")}
	revisions.Add(second, SourceFrom("deploy/graph-node.yaml", []byte("b")))

	require.Equal(t, 1, revisions.ActiveIndex)
	require.Equal(t, 2, revisions.Active().ID)
	require.Len(t, revisions.History, 2)

	// rollback moves the active index without rewriting history
	revisions.ActiveIndex = 0
	require.Equal(t, 1, revisions.Active().ID)
	require.Equal(t, first, revisions.CurrentResources())

	third := []*unstructured.Unstructured{makeResource("default", "apps/v1", "Deployment", "graph-node-v3")}
	revisions.Add(third, Source{})
	require.Equal(t, 3, revisions.Active().ID)
}

func TestSourceFrom(t *testing.T) {
	src := SourceFrom("deploy/graph-node.yaml", []byte("content"))
	require.Equal(t, "file://deploy/graph-node.yaml", src.Ref)
	require.NotEmpty(t, src.Checksum)

	src = SourceFrom("https://host/org/repo.git//deploy/graph-node.yaml", nil)
	require.Equal(t, "https://host/org/repo.git//deploy/graph-node.yaml", src.Ref)
	require.Empty(t, src.Checksum)

	// scp-style git refs have no url scheme; they must not be rewritten into
	// file:// refs or have their "//" path separator collapsed
	src = SourceFrom("git@host:org/repo.git//deploy/graph-node.yaml", nil)
	require.Equal(t, "git@host:org/repo.git//deploy/graph-node.yaml", src.Ref)

	src = SourceFrom("ssh://git@host/org/repo.git//deploy/graph-node.yaml", nil)
	require.Equal(t, "ssh://git@host/org/repo.git//deploy/graph-node.yaml", src.Ref)
}

func TestAddManagedMetadata(t *testing.T) {
	resource := makeResource("default", "apps/v1", "Deployment", "graph-node")
	AddManagedMetadata([]*unstructured.Unstructured{resource}, "graph")

	require.Equal(t, "stevedore", resource.GetLabels()["app.kubernetes.io/managed-by"])
	require.Equal(t, "graph", resource.GetLabels()["app.kubernetes.io/stevedore-release"])
}
