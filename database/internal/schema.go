package internal

import (
	"fmt"
	"strings"
)

// Column describes one column of the history table.
type Column struct {
	Name     string
	Type     string
	Nullable bool
}

// SchemaError lists how a history table differs from the columns a backend
// reads and writes.
type SchemaError struct {
	Table      string
	Missing    []string
	Mismatched []string
}

func (e *SchemaError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "history table %s has an unexpected schema", e.Table)
	if len(e.Missing) > 0 {
		fmt.Fprintf(&b, "; missing columns: %s", strings.Join(e.Missing, ", "))
	}
	for _, m := range e.Mismatched {
		fmt.Fprintf(&b, "; %s", m)
	}
	return b.String()
}

// CompareColumns checks actual against want in the order of want. Types are
// compared case-insensitively. Extra columns in actual are allowed.
// It returns a *SchemaError, or nil when every wanted column matches.
func CompareColumns(table string, want []Column, actual map[string]Column) error {
	schemaErr := &SchemaError{Table: table}

	for _, col := range want {
		got, ok := actual[col.Name]
		if !ok {
			schemaErr.Missing = append(schemaErr.Missing, col.Name)
			continue
		}
		if !strings.EqualFold(got.Type, col.Type) {
			schemaErr.Mismatched = append(schemaErr.Mismatched,
				fmt.Sprintf("%s: expected %s, got %s", col.Name, col.Type, strings.ToLower(got.Type)))
		}
		if got.Nullable != col.Nullable {
			schemaErr.Mismatched = append(schemaErr.Mismatched,
				fmt.Sprintf("%s: expected nullable=%v, got nullable=%v", col.Name, col.Nullable, got.Nullable))
		}
	}

	if len(schemaErr.Missing) == 0 && len(schemaErr.Mismatched) == 0 {
		return nil
	}
	return schemaErr
}
