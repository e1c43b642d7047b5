// mokit/mokitgen is a tool to generate module tables for mokit.
// To use it, install it with `go install github.com/toejough/mokit/mokitgen@latest`
// and in a package whose variables tests should be able to replace, add a
// `//go:generate mokitgen` comment. The generated file registers every exported package-level
// variable with mokit.DefineModule under the package's import path, so tests can mock them
// through the returned table or through "<import path>.<Name>" targets. Add `--name` to
// choose the table's variable name, `--unexported` to include unexported variables, and
// `--check` in CI to fail when a table is out of date.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/toejough/mokit/internal/config"
	"github.com/toejough/mokit/internal/run"
)

// main is the entry point of the mokitgen tool.
func main() {
	if os.Args == nil {
		return
	}

	cfg, err := config.Load(".")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)

	err = run.Run(ctx, os.Args, cfg, &realFileSystem{}, os.Stdout, cfg.Logger(os.Stderr))

	stop()

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// realFileSystem implements run.FileSystem using os package.
type realFileSystem struct{}

// ReadDir reads the named directory.
func (fs *realFileSystem) ReadDir(name string) ([]os.DirEntry, error) {
	entries, err := os.ReadDir(name)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory %s: %w", name, err)
	}

	return entries, nil
}

// ReadFile reads the file named by name and returns the contents.
func (fs *realFileSystem) ReadFile(name string) ([]byte, error) {
	data, err := os.ReadFile(name)
	if err != nil {
		return nil, fmt.Errorf("failed to read file %s: %w", name, err)
	}

	return data, nil
}

// Stat returns the file info for path.
func (fs *realFileSystem) Stat(path string) (os.FileInfo, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", path, err)
	}

	return info, nil
}

// WriteFile writes data to the file named by name.
func (fs *realFileSystem) WriteFile(name string, data []byte, perm os.FileMode) error {
	err := os.WriteFile(name, data, perm)
	if err != nil {
		return fmt.Errorf("failed to write file %s: %w", name, err)
	}

	return nil
}
