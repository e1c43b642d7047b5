// Package generate renders module table source code.
package generate

import (
	"bytes"
	"fmt"
	"go/format"
	"text/template"

	detect "github.com/toejough/mokit/internal/run/3_detect"
)

// Info describes one module table.
type Info struct {
	// PkgName is the package clause of the generated file.
	PkgName string
	// PkgPath is the import path the table is registered under.
	PkgPath string
	// TableName is the variable the table is assigned to.
	TableName string
	// Vars are the variables the table registers.
	Vars []detect.Var
}

// ModuleTable returns formatted Go source declaring info.TableName as a mokit module table.
func ModuleTable(info Info) (string, error) {
	var buf bytes.Buffer

	err := moduleTableTmpl.Execute(&buf, info)
	if err != nil {
		return "", fmt.Errorf("failed to execute module table template: %w", err)
	}

	formatted, err := format.Source(buf.Bytes())
	if err != nil {
		return "", fmt.Errorf("failed to format module table for %s: %w\n%s", info.PkgPath, err, buf.String())
	}

	return string(formatted), nil
}

// unexported variables.
var (
	//nolint:gochecknoglobals // parsed once; the template text is a constant
	moduleTableTmpl = template.Must(template.New("moduleTable").Parse(moduleTableText))
)

const moduleTableText = `// Code generated by mokitgen. DO NOT EDIT.

package {{.PkgName}}

import _mokit "github.com/toejough/mokit"

// {{.TableName}} registers the package variables of {{.PkgPath}} so tests can replace them.
var {{.TableName}} = _mokit.DefineModule({{printf "%q" .PkgPath}}, _mokit.Vars{
{{- range .Vars}}
	{{printf "%q" .Name}}: &{{.Name}},
{{- end}}
})
`
