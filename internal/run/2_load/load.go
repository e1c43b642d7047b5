// Package load parses the Go files of a package directory into DST.
package load

import (
	"errors"
	"fmt"
	"go/token"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/dave/dst"
	"github.com/dave/dst/decorator"
)

// FileSystem abstracts the file operations needed to read a package.
type FileSystem interface {
	ReadDir(name string) ([]os.DirEntry, error)
	ReadFile(name string) ([]byte, error)
}

// Package is the parsed source of one package directory.
type Package struct {
	// Dir is the directory the files were read from.
	Dir string
	// Name is the package clause shared by the files.
	Name string
	// Files are the parsed non-test files, sorted by file name.
	Files []*dst.File
	// Fset positions the files.
	Fset *token.FileSet
}

// Dir parses the non-test .go files of dir, skipping files named skip (the generator's own
// output). Files that fail to parse are skipped; a directory with no parseable files is an
// error.
func Dir(fs FileSystem, dir, skip string) (*Package, error) {
	entries, err := fs.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory %s: %w", dir, err)
	}

	goFiles := make([]string, 0, len(entries))

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		name := entry.Name()
		if !strings.HasSuffix(name, ".go") || strings.HasSuffix(name, "_test.go") || name == skip {
			continue
		}

		goFiles = append(goFiles, name)
	}

	slices.Sort(goFiles)

	if len(goFiles) == 0 {
		return nil, fmt.Errorf("%w: no .go files in %s", errNoPackagesFound, dir)
	}

	fset := token.NewFileSet()
	dec := decorator.NewDecorator(fset)
	pkg := &Package{Dir: dir, Fset: fset}

	for _, name := range goFiles {
		fullPath := filepath.Join(dir, name)

		content, err := fs.ReadFile(fullPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read file %s: %w", fullPath, err)
		}

		dstFile, err := dec.ParseFile(fullPath, content, 0)
		if err != nil {
			continue
		}

		if pkg.Name == "" {
			pkg.Name = dstFile.Name.Name
		}

		if dstFile.Name.Name != pkg.Name {
			return nil, fmt.Errorf("%w: %s declares package %s, expected %s",
				errMixedPackages, fullPath, dstFile.Name.Name, pkg.Name)
		}

		pkg.Files = append(pkg.Files, dstFile)
	}

	if len(pkg.Files) == 0 {
		return nil, fmt.Errorf("%w: failed to parse any .go files in %s", errNoPackagesFound, dir)
	}

	return pkg, nil
}

// unexported variables.
var (
	errMixedPackages   = errors.New("mixed packages")
	errNoPackagesFound = errors.New("no packages found")
)
