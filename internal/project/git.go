package project

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/slok/iacore/internal/model"
)

// HeadCommit returns the commit id the project HEAD points to, reading the git
// files directly. Projects that are not git repositories or without commits
// return model.ErrNotFound.
func HeadCommit(root string) (string, error) {
	gitDir, err := resolveGitDir(root)
	if err != nil {
		return "", err
	}

	head, err := os.ReadFile(filepath.Join(gitDir, "HEAD"))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("git HEAD: %w", model.ErrNotFound)
		}
		return "", fmt.Errorf("could not read git HEAD: %w", err)
	}

	ref, ok := strings.CutPrefix(strings.TrimSpace(string(head)), "ref: ")
	if !ok {
		// Detached HEAD.
		return ref, nil
	}

	data, err := os.ReadFile(filepath.Join(gitDir, filepath.FromSlash(ref)))
	if err == nil {
		return strings.TrimSpace(string(data)), nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("could not read git ref %s: %w", ref, err)
	}

	return packedRef(gitDir, ref)
}

// resolveGitDir supports `.git` directories and `.git` files pointing to the
// real directory (worktrees and submodules).
func resolveGitDir(root string) (string, error) {
	dotGit := filepath.Join(root, ".git")
	info, err := os.Stat(dotGit)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("git repository: %w", model.ErrNotFound)
		}
		return "", fmt.Errorf("could not stat .git: %w", err)
	}
	if info.IsDir() {
		return dotGit, nil
	}

	data, err := os.ReadFile(dotGit)
	if err != nil {
		return "", fmt.Errorf("could not read .git file: %w", err)
	}
	dir, ok := strings.CutPrefix(strings.TrimSpace(string(data)), "gitdir: ")
	if !ok {
		return "", fmt.Errorf("invalid .git file: %w", model.ErrNotValid)
	}
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(root, dir)
	}

	return dir, nil
}

func packedRef(gitDir, ref string) (string, error) {
	data, err := os.ReadFile(filepath.Join(gitDir, "packed-refs"))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("git ref %s: %w", ref, model.ErrNotFound)
		}
		return "", fmt.Errorf("could not read packed refs: %w", err)
	}

	s := bufio.NewScanner(bytes.NewReader(data))
	for s.Scan() {
		line := s.Text()
		if line == "" || line[0] == '#' || line[0] == '^' {
			continue
		}
		id, name, ok := strings.Cut(line, " ")
		if ok && name == ref {
			return id, nil
		}
	}
	if err := s.Err(); err != nil {
		return "", fmt.Errorf("could not scan packed refs: %w", err)
	}

	return "", fmt.Errorf("git ref %s: %w", ref, model.ErrNotFound)
}
