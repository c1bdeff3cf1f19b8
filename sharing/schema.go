package sharing

import (
	"encoding/json"
	"reflect"
)

// TableSchema is the parsed form of a table's schemaString.
type TableSchema struct {
	Type   string        `json:"type"`
	Fields []SchemaField `json:"fields"`
}

// SchemaField is one column of a table schema. Type stays raw JSON because
// it may be a bare type name or a nested struct/array/map object.
type SchemaField struct {
	Name     string          `json:"name"`
	Type     json.RawMessage `json:"type"`
	Nullable bool            `json:"nullable"`
	Metadata json.RawMessage `json:"metadata,omitempty"`
}

// ParseSchema parses a schemaString.
func ParseSchema(schemaString string) (*TableSchema, error) {
	var s TableSchema
	if err := json.Unmarshal([]byte(schemaString), &s); err != nil {
		return nil, ErrValidation("malformed schema string: %v", err)
	}
	return &s, nil
}

// FieldNames returns the column names in declaration order.
func (s *TableSchema) FieldNames() []string {
	names := make([]string, 0, len(s.Fields))
	for _, f := range s.Fields {
		names = append(names, f.Name)
	}
	return names
}

// CheckSchemaCompatible decides whether a scan planned against the planned
// schema may run against the live one.
//
// With structural matching enabled, the live schema may add columns but
// every planned column must still exist with an identical type, and a
// column planned non-nullable must stay non-nullable. A removed, retyped,
// or null-relaxed column fails with a SchemaMismatchError naming it.
//
// With structural matching disabled, any textual change to the schema
// string is rejected.
func CheckSchemaCompatible(planned, live string, structural bool) error {
	if !structural {
		if planned != live {
			return ErrSchemaMismatch("table schema changed since the scan was planned; re-plan the query")
		}
		return nil
	}

	plannedSchema, err := ParseSchema(planned)
	if err != nil {
		return err
	}
	liveSchema, err := ParseSchema(live)
	if err != nil {
		return err
	}

	liveFields := make(map[string]SchemaField, len(liveSchema.Fields))
	for _, f := range liveSchema.Fields {
		liveFields[f.Name] = f
	}
	for _, want := range plannedSchema.Fields {
		got, ok := liveFields[want.Name]
		if !ok {
			return ErrSchemaMismatch("column %q was removed from the table schema; re-plan the query", want.Name)
		}
		if !typeEqual(want.Type, got.Type) {
			return ErrSchemaMismatch("column %q changed type from %s to %s; re-plan the query",
				want.Name, compactJSON(want.Type), compactJSON(got.Type))
		}
		if !want.Nullable && got.Nullable {
			return ErrSchemaMismatch("column %q became nullable; re-plan the query", want.Name)
		}
	}
	return nil
}

// typeEqual compares two type declarations structurally, ignoring JSON key
// order and whitespace.
func typeEqual(a, b json.RawMessage) bool {
	var av, bv any
	if err := json.Unmarshal(a, &av); err != nil {
		return false
	}
	if err := json.Unmarshal(b, &bv); err != nil {
		return false
	}
	return reflect.DeepEqual(av, bv)
}

func compactJSON(raw json.RawMessage) string {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return string(raw)
	}
	out, err := json.Marshal(v)
	if err != nil {
		return string(raw)
	}
	return string(out)
}
