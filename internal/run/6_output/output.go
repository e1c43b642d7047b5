// Package output writes generated module tables, or checks that existing ones are current.
package output

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/akedrou/textdiff"
	"github.com/toejough/go-reorder"
)

// FileSystem abstracts the file operations for generated files.
type FileSystem interface {
	ReadFile(name string) ([]byte, error)
	WriteFile(name string, data []byte, perm os.FileMode) error
}

// ErrStale is returned by Check when a generated file differs from what would be written.
var ErrStale = errors.New("generated file is out of date")

// Check compares the file at dir/filename with code and prints a unified diff when they differ.
// A missing file is stale.
func Check(code, dir, filename string, fileSys FileSystem, out io.Writer) error {
	fullPath := filepath.Join(dir, filename)
	want := Reorder(code, fullPath, out)

	current, err := fileSys.ReadFile(fullPath)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to read %s: %w", fullPath, err)
	}

	if string(current) == want {
		return nil
	}

	diff := textdiff.Unified(fullPath+" (current)", fullPath+" (generated)", string(current), want)
	_, _ = fmt.Fprintf(out, "%s\n", diff)

	return fmt.Errorf("%w: %s", ErrStale, fullPath)
}

// Reorder orders the declarations of code by project convention. On failure it warns on out
// and returns code unchanged.
func Reorder(code, filename string, out io.Writer) string {
	reordered, err := reorder.Source(code)
	if err != nil {
		_, _ = fmt.Fprintf(out, "Warning: failed to reorder %s: %v\n", filename, err)

		return code
	}

	return reordered
}

// Write writes code to dir/filename.
func Write(code, dir, filename string, fileSys FileSystem, out io.Writer) error {
	const generatedFilePermissions = 0o600

	fullPath := filepath.Join(dir, filename)

	err := fileSys.WriteFile(fullPath, []byte(Reorder(code, fullPath, out)), generatedFilePermissions)
	if err != nil {
		return fmt.Errorf("error writing %s: %w", fullPath, err)
	}

	_, _ = fmt.Fprintf(out, "%s written successfully.\n", fullPath)

	return nil
}
