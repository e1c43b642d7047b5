// Package detect finds the package-level variables a module table registers.
package detect

import (
	"go/token"
	"slices"
	"strings"

	"github.com/dave/dst"
)

// Var is one package-level variable.
type Var struct {
	Name string
	// Exported reports whether the name starts with an upper-case letter.
	Exported bool
}

// Vars returns the package-level variables declared in files, sorted and without duplicates.
// Blank identifiers, the variable named exclude (the table itself), and, unless
// includeUnexported is set, unexported names are left out.
func Vars(files []*dst.File, exclude string, includeUnexported bool) []Var {
	seen := make(map[string]bool)

	var vars []Var

	for _, file := range files {
		for _, decl := range file.Decls {
			genDecl, ok := decl.(*dst.GenDecl)
			if !ok || genDecl.Tok != token.VAR {
				continue
			}

			for _, spec := range genDecl.Specs {
				valueSpec, ok := spec.(*dst.ValueSpec)
				if !ok {
					continue
				}

				for _, ident := range valueSpec.Names {
					name := ident.Name
					if name == "_" || name == exclude || seen[name] {
						continue
					}

					exported := token.IsExported(name)
					if !exported && !includeUnexported {
						continue
					}

					seen[name] = true
					vars = append(vars, Var{Name: name, Exported: exported})
				}
			}
		}
	}

	slices.SortFunc(vars, func(a, b Var) int { return strings.Compare(a.Name, b.Name) })

	return vars
}
