package core

import "strings"

// MangleName rewrites a private attribute name the way class-private names are stored:
// "__secret" on type "Vault" becomes "_Vault__secret". Names that do not start with two
// underscores, names that also end with two underscores, and dotted names are unchanged,
// as is any name whose type name is made only of underscores.
//
// Targets opt in by naming their fields in mangled form; binders try the mangled name
// after the literal one.
func MangleName(typeName, name string) string {
	if !strings.HasPrefix(name, "__") || strings.HasSuffix(name, "__") || strings.Contains(name, ".") {
		return name
	}

	stripped := strings.TrimLeft(typeName, "_")
	if stripped == "" {
		return name
	}

	return "_" + stripped + name
}
