// Package module locates the Go module a package directory belongs to, so generated module
// tables can be registered under the package's import path.
package module

import (
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"

	"golang.org/x/mod/modfile"
)

// FileSystem abstracts the file operations needed to find go.mod.
type FileSystem interface {
	ReadFile(name string) ([]byte, error)
	Stat(path string) (os.FileInfo, error)
}

// FindRoot locates the nearest directory at or above dir containing a go.mod file.
func FindRoot(fs FileSystem, dir string) (string, error) {
	curr, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("failed to resolve %s: %w", dir, err)
	}

	for {
		_, err = fs.Stat(filepath.Join(curr, "go.mod"))
		if err == nil {
			return curr, nil
		}

		parent := filepath.Dir(curr)
		if parent == curr {
			return "", fmt.Errorf("%w: from %s", errProjectRootNotFound, dir)
		}

		curr = parent
	}
}

// ImportPath returns the import path of the package in dir: the module path declared in
// go.mod joined with dir's location below the module root.
func ImportPath(fs FileSystem, dir string) (string, error) {
	root, err := FindRoot(fs, dir)
	if err != nil {
		return "", err
	}

	content, err := fs.ReadFile(filepath.Join(root, "go.mod"))
	if err != nil {
		return "", fmt.Errorf("failed to read go.mod in %s: %w", root, err)
	}

	modulePath := modfile.ModulePath(content)
	if modulePath == "" {
		return "", fmt.Errorf("%w: %s", errNoModulePath, filepath.Join(root, "go.mod"))
	}

	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("failed to resolve %s: %w", dir, err)
	}

	rel, err := filepath.Rel(root, abs)
	if err != nil {
		return "", fmt.Errorf("failed to relate %s to %s: %w", dir, root, err)
	}

	if rel == "." {
		return modulePath, nil
	}

	return path.Join(modulePath, filepath.ToSlash(rel)), nil
}

// unexported variables.
var (
	errNoModulePath        = errors.New("go.mod declares no module path")
	errProjectRootNotFound = errors.New("could not find project root (go.mod)")
)
