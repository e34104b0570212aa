// Package scm reads source control metadata for the profiled project.
package scm

import (
	"errors"
	"fmt"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
)

// Info is the source control state of a working directory.
type Info struct {
	Commit string `json:"commit,omitempty" yaml:"commit,omitempty"`
	Branch string `json:"branch,omitempty" yaml:"branch,omitempty"`
	Remote string `json:"remote,omitempty" yaml:"remote,omitempty"`
	Dirty  bool   `json:"dirty" yaml:"dirty"`
}

// IsZero reports whether nothing was detected.
func (i Info) IsZero() bool {
	return i.Commit == "" && i.Branch == "" && i.Remote == ""
}

// Detect opens the git repository containing dir. A directory outside any
// repository yields an empty Info and no error.
func Detect(dir string) (Info, error) {
	repo, err := git.PlainOpenWithOptions(dir, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		if errors.Is(err, git.ErrRepositoryNotExists) {
			return Info{}, nil
		}
		return Info{}, fmt.Errorf("open repository: %w", err)
	}

	var info Info

	head, err := repo.Head()
	switch {
	case errors.Is(err, plumbing.ErrReferenceNotFound):
		// no commits yet
	case err != nil:
		return info, fmt.Errorf("resolve HEAD: %w", err)
	default:
		info.Commit = head.Hash().String()
		if head.Name().IsBranch() {
			info.Branch = head.Name().Short()
		}
	}

	if remote, err := repo.Remote(git.DefaultRemoteName); err == nil {
		if urls := remote.Config().URLs; len(urls) > 0 {
			info.Remote = urls[0]
		}
	}

	wt, err := repo.Worktree()
	if err != nil {
		// bare repository
		return info, nil
	}
	status, err := wt.Status()
	if err != nil {
		return info, fmt.Errorf("worktree status: %w", err)
	}
	info.Dirty = !status.IsClean()

	return info, nil
}
