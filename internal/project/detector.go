// Package project knows about the managed project: its type, its files, its
// git HEAD and the latest analysis the agent made of it.
package project

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Project types.
const (
	TypeUnknown    = "unknown"
	TypeReact      = "react"
	TypeVue        = "vue"
	TypeNextJS     = "nextjs"
	TypeExpress    = "express"
	TypeNode       = "node"
	TypePython     = "python"
	TypeDjango     = "django"
	TypeFastAPI    = "fastapi"
	TypeGo         = "go"
	TypeRust       = "rust"
	TypeHTMLStatic = "html_static"
)

// Detection is the result of detecting a project type from its marker files.
type Detection struct {
	Type       string
	Confidence float64
	// Files are the marker files that decided the type.
	Files []string
}

// Detect detects the project type of the directory. Only the first matching
// family of marker files is used.
func Detect(root string) (Detection, error) {
	exists := func(name string) bool {
		_, err := os.Stat(filepath.Join(root, name))
		return err == nil
	}

	switch {
	case exists("package.json"):
		return detectNode(root)

	case exists("requirements.txt") || exists("setup.py") || exists("pyproject.toml"):
		d := Detection{Type: TypePython, Confidence: 0.8}
		for _, f := range []string{"requirements.txt", "setup.py", "pyproject.toml"} {
			if exists(f) {
				d.Files = append(d.Files, f)
			}
		}

		switch {
		case exists("manage.py"):
			d.Type, d.Confidence = TypeDjango, 0.95
		case exists("requirements.txt"):
			data, err := os.ReadFile(filepath.Join(root, "requirements.txt"))
			if err == nil && strings.Contains(strings.ToLower(string(data)), "fastapi") {
				d.Type, d.Confidence = TypeFastAPI, 0.9
			}
		}
		return d, nil

	case exists("go.mod"):
		return Detection{Type: TypeGo, Confidence: 0.9, Files: []string{"go.mod"}}, nil

	case exists("Cargo.toml"):
		return Detection{Type: TypeRust, Confidence: 0.9, Files: []string{"Cargo.toml"}}, nil
	}

	html, err := filepath.Glob(filepath.Join(root, "*.html"))
	if err != nil {
		return Detection{}, fmt.Errorf("could not look for html files: %w", err)
	}
	if len(html) > 0 {
		sort.Strings(html)
		if len(html) > 5 {
			html = html[:5]
		}
		d := Detection{Type: TypeHTMLStatic, Confidence: 0.6}
		for _, f := range html {
			d.Files = append(d.Files, filepath.Base(f))
		}
		return d, nil
	}

	return Detection{Type: TypeUnknown}, nil
}

func detectNode(root string) (Detection, error) {
	data, err := os.ReadFile(filepath.Join(root, "package.json"))
	if err != nil {
		return Detection{}, fmt.Errorf("could not read package.json: %w", err)
	}

	var pkg struct {
		Dependencies map[string]string `json:"dependencies"`
	}
	if err := json.Unmarshal(data, &pkg); err != nil {
		return Detection{}, fmt.Errorf("could not parse package.json: %w", err)
	}

	d := Detection{Type: TypeNode, Confidence: 0.7, Files: []string{"package.json"}}
	has := func(dep string) bool { _, ok := pkg.Dependencies[dep]; return ok }
	switch {
	case has("react"):
		d.Type, d.Confidence = TypeReact, 0.9
	case has("vue"):
		d.Type, d.Confidence = TypeVue, 0.9
	case has("next"):
		d.Type, d.Confidence = TypeNextJS, 0.95
	case has("express"):
		d.Type, d.Confidence = TypeExpress, 0.85
	}

	return d, nil
}

var skippedTreeDirs = map[string]bool{
	"node_modules": true,
	"__pycache__":  true,
	"venv":         true,
	"env":          true,
}

// FileTree returns the sorted project relative paths up to maxDepth levels
// below the root, at most limit entries. Hidden entries and dependency
// directories are skipped.
func FileTree(root string, maxDepth, limit int) ([]string, error) {
	var files []string

	var walk func(dir string, depth int) error
	walk = func(dir string, depth int) error {
		if depth > maxDepth {
			return nil
		}

		entries, err := os.ReadDir(dir)
		if err != nil {
			if os.IsPermission(err) {
				return nil
			}
			return err
		}

		for _, e := range entries {
			name := e.Name()
			if strings.HasPrefix(name, ".") || skippedTreeDirs[name] {
				continue
			}

			path := filepath.Join(dir, name)
			rel, err := filepath.Rel(root, path)
			if err != nil {
				return err
			}
			files = append(files, filepath.ToSlash(rel))

			if e.IsDir() {
				if err := walk(path, depth+1); err != nil {
					return err
				}
			}
		}

		return nil
	}

	if err := walk(root, 0); err != nil {
		return nil, fmt.Errorf("could not walk project tree: %w", err)
	}

	sort.Strings(files)
	if limit > 0 && len(files) > limit {
		files = files[:limit]
	}

	return files, nil
}
