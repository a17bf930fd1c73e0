package engine

import (
	"fmt"
	"strings"
)

// Column is a typed column definition using DuckDB type names.
type Column struct {
	Name string
	Type string
}

// Schema is an ordered list of typed columns.
type Schema []Column

// ParseSchema builds a Schema from "name:type" definitions.
func ParseSchema(defs ...string) (Schema, error) {
	schema := make(Schema, 0, len(defs))
	for _, def := range defs {
		parts := strings.SplitN(def, ":", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid column definition %q: expected format 'name:type'", def)
		}
		name := strings.TrimSpace(parts[0])
		typ := strings.TrimSpace(parts[1])
		if name == "" || typ == "" {
			return nil, fmt.Errorf("invalid column definition %q: name and type are required", def)
		}
		schema = append(schema, Column{Name: name, Type: typ})
	}
	return schema, nil
}

// MustParseSchema is ParseSchema for package-level schema literals.
func MustParseSchema(defs ...string) Schema {
	schema, err := ParseSchema(defs...)
	if err != nil {
		panic(err)
	}
	return schema
}

// Names returns the column names in order.
func (s Schema) Names() []string {
	names := make([]string, len(s))
	for i, c := range s {
		names[i] = c.Name
	}
	return names
}

// Lookup returns the subset of the schema with the given column names, in
// the order requested.
func (s Schema) Lookup(names ...string) (Schema, error) {
	out := make(Schema, 0, len(names))
	for _, name := range names {
		found := false
		for _, c := range s {
			if c.Name == name {
				out = append(out, c)
				found = true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("column %q not in schema", name)
		}
	}
	return out, nil
}

// structLiteral renders the schema as a DuckDB struct literal, the form
// read_json's columns and read_parquet's hive_types parameters expect:
// {'name': 'TYPE', ...}
func (s Schema) structLiteral() string {
	fields := make([]string, len(s))
	for i, c := range s {
		fields[i] = fmt.Sprintf("%s: %s", quote(c.Name), quote(c.Type))
	}
	return "{" + strings.Join(fields, ", ") + "}"
}
