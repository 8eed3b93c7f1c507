package git

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIsURL(t *testing.T) {
	require.True(t, IsURL("https://host/org/repo.git//deploy/graph-node.yaml"))
	require.True(t, IsURL("git@host:org/repo.git//deploy/graph-node.yaml"))
	require.True(t, IsURL("ssh://git@host/org/repo.git//graph-node.yaml"))

	require.False(t, IsURL("deploy/graph-node.yaml"))
	require.False(t, IsURL("./relative/descriptor.yaml"))
	require.False(t, IsURL("-"))
}

func TestParseSource(t *testing.T) {
	src, err := ParseSource("https://host/org/repo.git//deploy/graph-node.yaml#v1.2.0")
	require.NoError(t, err)
	require.Equal(t, Source{
		Repo: "https://host/org/repo.git",
		Path: "deploy/graph-node.yaml",
		Ref:  "v1.2.0",
	}, src)

	src, err = ParseSource("git@host:org/repo.git//graph-node.yaml")
	require.NoError(t, err)
	require.Equal(t, Source{Repo: "git@host:org/repo.git", Path: "graph-node.yaml"}, src)

	_, err = ParseSource("https://host/org/repo.git")
	require.ErrorContains(t, err, "must locate a file within the repository")
}
