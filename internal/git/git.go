package git

import (
	"cmp"
	"context"
	"fmt"
	"strings"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/storage/memory"
)

// Source locates a descriptor file inside a git repository:
//
//	https://host/org/repo.git//deploy/descriptor.yaml#v1.2.0
//	git@host:org/repo.git//descriptor.yaml
//
// The "//" separator splits repository from file path; the fragment selects a
// revision and defaults to HEAD.
type Source struct {
	Repo string
	Path string
	Ref  string
}

func IsURL(value string) bool {
	return strings.Contains(value, ".git") && (false ||
		strings.HasPrefix(value, "git@") ||
		strings.HasPrefix(value, "ssh://") ||
		strings.HasPrefix(value, "http://") ||
		strings.HasPrefix(value, "https://"))
}

func ParseSource(value string) (Source, error) {
	var src Source

	value, src.Ref, _ = strings.Cut(value, "#")

	// the scheme's own double slash is not the separator
	var scheme string
	rest := value
	if idx := strings.Index(value, "://"); idx != -1 {
		scheme, rest = value[:idx+3], value[idx+3:]
	}

	repo, path, ok := strings.Cut(rest, "//")
	repo = scheme + repo
	if !ok || path == "" {
		return src, fmt.Errorf("git source %q must locate a file within the repository: expected <repo>//<path>", value)
	}

	src.Repo = repo
	src.Path = path

	return src, nil
}

// Fetch clones the repository into memory (bare) and reads the descriptor
// file at the requested revision.
func Fetch(ctx context.Context, src Source) ([]byte, error) {
	repo, err := git.CloneContext(ctx, memory.NewStorage(), nil, &git.CloneOptions{URL: src.Repo})
	if err != nil {
		return nil, fmt.Errorf("failed to clone %s: %w", src.Repo, err)
	}

	hash, err := repo.ResolveRevision(plumbing.Revision(cmp.Or(src.Ref, "HEAD")))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve revision %q: %w", cmp.Or(src.Ref, "HEAD"), err)
	}

	commit, err := repo.CommitObject(*hash)
	if err != nil {
		return nil, fmt.Errorf("failed to read commit %s: %w", hash, err)
	}

	file, err := commit.File(src.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to find %s at %s: %w", src.Path, hash, err)
	}

	content, err := file.Contents()
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", src.Path, err)
	}

	return []byte(content), nil
}
