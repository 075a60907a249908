// Package diff renders the difference between two values for test failure
// messages.
package diff

import (
	"strings"

	"github.com/k0kubun/pp/v3"
	"github.com/kylelemons/godebug/diff"
)

// Values pretty-prints want and got and returns a line diff that turns got
// into want, or "" when they print the same. Unexported fields are left out.
func Values[T any](want T, got T) string {
	printer := pp.New()
	printer.SetExportedOnly(true)
	printer.SetColoringEnabled(false)
	d := diff.Diff(printer.Sprint(got), printer.Sprint(want))
	if d == "" {
		return ""
	}
	var sb strings.Builder
	sb.WriteString("\n\ngot -> want (+ add, - remove):\n\n")
	sb.WriteString(d)
	return sb.String()
}
