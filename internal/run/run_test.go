package run_test

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/toejough/mokit/internal/config"
	"github.com/toejough/mokit/internal/run"
	output "github.com/toejough/mokit/internal/run/6_output"
)

func TestRun_WritesModuleTable(t *testing.T) {
	t.Parallel()

	root := newProject(t)

	var out bytes.Buffer

	err := run.Run(context.Background(), []string{"mokitgen", filepath.Join(root, "store")},
		defaultConfig(), osFS{}, &out, discardLogger())
	require.NoError(t, err)

	generated := readFile(t, filepath.Join(root, "store", "generated_mokit_module.go"))
	assert.Contains(t, generated, "// Code generated by mokitgen. DO NOT EDIT.")
	assert.Contains(t, generated, "package store")
	assert.Contains(t, generated, `_mokit.DefineModule("example.com/app/store", _mokit.Vars{`)
	assert.Contains(t, generated, `"DefaultTimeout": &DefaultTimeout,`)
	assert.Regexp(t, `"Open":\s+&Open,`, generated)
	assert.NotContains(t, generated, "cache", "unexported variables are skipped by default")
	assert.NotContains(t, generated, `"_"`)
	assert.Contains(t, out.String(), "written successfully")
}

func TestRun_Options(t *testing.T) {
	t.Parallel()

	root := newProject(t)
	dir := filepath.Join(root, "store")

	err := run.Run(context.Background(),
		[]string{"mokitgen", "--name", "Table", "--output", "zz_table.go", "--unexported", "--path", "custom/store", dir},
		defaultConfig(), osFS{}, &bytes.Buffer{}, discardLogger())
	require.NoError(t, err)

	generated := readFile(t, filepath.Join(dir, "zz_table.go"))
	assert.Contains(t, generated, `Table = _mokit.DefineModule("custom/store"`)
	assert.Contains(t, generated, `"cache":`)
}

func TestRun_Check(t *testing.T) {
	t.Parallel()

	root := newProject(t)
	dir := filepath.Join(root, "store")
	args := []string{"mokitgen", "--check", dir}

	var out bytes.Buffer

	err := run.Run(context.Background(), args, defaultConfig(), osFS{}, &out, discardLogger())
	require.ErrorIs(t, err, output.ErrStale, "a missing table is stale")
	assert.Contains(t, out.String(), "(generated)")

	require.NoError(t, run.Run(context.Background(), []string{"mokitgen", dir},
		defaultConfig(), osFS{}, &bytes.Buffer{}, discardLogger()))
	require.NoError(t, run.Run(context.Background(), args, defaultConfig(), osFS{}, &bytes.Buffer{}, discardLogger()))

	writeFile(t, filepath.Join(dir, "more.go"), "package store\n\nvar Retries = 3\n")

	out.Reset()

	err = run.Run(context.Background(), args, defaultConfig(), osFS{}, &out, discardLogger())
	require.ErrorIs(t, err, output.ErrStale)
	assert.Regexp(t, `\+\s+"Retries":`, out.String())
}

func TestRun_ManyDirectories(t *testing.T) {
	t.Parallel()

	root := newProject(t)
	writeFile(t, filepath.Join(root, "api", "api.go"), "package api\n\nvar Handler func() error\n")

	err := run.Run(context.Background(),
		[]string{"mokitgen", "--jobs", "2", filepath.Join(root, "store"), filepath.Join(root, "api")},
		defaultConfig(), osFS{}, &bytes.Buffer{}, discardLogger())
	require.NoError(t, err)

	assert.Contains(t, readFile(t, filepath.Join(root, "api", "generated_mokit_module.go")),
		`_mokit.DefineModule("example.com/app/api"`)
}

func TestRun_Errors(t *testing.T) {
	t.Parallel()

	root := newProject(t)

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"unknown flag", []string{"mokitgen", "--bogus"}, "failed to parse arguments"},
		{"path with many dirs", []string{"mokitgen", "--path", "x", root, root}, "--path names one package"},
		{"no go files", []string{"mokitgen", filepath.Join(root, "empty")}, "no .go files"},
		{"no module", []string{"mokitgen", t.TempDir()}, "could not find project root"},
	}

	require.NoError(t, os.MkdirAll(filepath.Join(root, "empty"), 0o755))

	for _, test := range tests {
		err := run.Run(context.Background(), test.args, defaultConfig(), osFS{}, &bytes.Buffer{}, discardLogger())
		require.Error(t, err, test.name)
		assert.Contains(t, err.Error(), test.want, test.name)
	}
}

func TestRun_Canceled(t *testing.T) {
	t.Parallel()

	root := newProject(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := run.Run(ctx, []string{"mokitgen", filepath.Join(root, "store")},
		defaultConfig(), osFS{}, &bytes.Buffer{}, discardLogger())
	require.ErrorIs(t, err, context.Canceled)
}

// osFS implements run.FileSystem using os package.
type osFS struct{}

func (osFS) ReadDir(name string) ([]os.DirEntry, error) {
	entries, err := os.ReadDir(name)
	if err != nil {
		return nil, fmt.Errorf("read dir: %w", err)
	}

	return entries, nil
}

func (osFS) ReadFile(name string) ([]byte, error) {
	data, err := os.ReadFile(name)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	return data, nil
}

func (osFS) Stat(path string) (os.FileInfo, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat: %w", err)
	}

	return info, nil
}

func (osFS) WriteFile(name string, data []byte, perm os.FileMode) error {
	if err := os.WriteFile(name, data, perm); err != nil {
		return fmt.Errorf("write file: %w", err)
	}

	return nil
}

func defaultConfig() config.Config {
	return config.Config{Generate: config.Generate{Name: "MokitModule", Output: "generated_mokit_module.go"}}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// newProject lays out a module with one package holding a mix of variables.
func newProject(t *testing.T) string {
	t.Helper()

	root := t.TempDir()
	writeFile(t, filepath.Join(root, "go.mod"), "module example.com/app\n\ngo 1.25\n")
	writeFile(t, filepath.Join(root, "store", "store.go"), `package store

import "time"

var (
	DefaultTimeout = 5 * time.Second
	cache          = map[string]string{}
	_              = cache
)

var Open = func(path string) error { return nil }

const Version = "1"
`)
	writeFile(t, filepath.Join(root, "store", "store_test.go"), "package store\n\nvar TestOnly = 1\n")

	return root
}

func readFile(t *testing.T, path string) string {
	t.Helper()

	content, err := os.ReadFile(path)
	require.NoError(t, err)

	return string(content)
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()

	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}
