package schema

import (
	"math"
	"sort"

	"cabbooking/utils"
)

// FieldType is the JSON type a field accepts.
type FieldType string

const (
	TypeString  FieldType = "string"
	TypeInteger FieldType = "integer"
	TypeNumber  FieldType = "number"
	TypeBoolean FieldType = "boolean"
	TypeObject  FieldType = "object"
	TypeArray   FieldType = "array"
)

// Field declares one named parameter.
type Field struct {
	Name        string
	Type        FieldType
	Required    bool
	Description string
	Enum        []string // allowed values for string fields
	Items       FieldType
}

// Schema is an ordered list of fields. Order decides which offending field
// is reported first.
type Schema struct {
	Fields []Field
	// Open schemas accept fields that are not declared.
	Open bool
}

// Object is shorthand for a closed schema.
func Object(fields ...Field) Schema {
	return Schema{Fields: fields}
}

// Values are validated parameters.
type Values map[string]any

// String returns the string value of name, or "" when absent.
func (v Values) String(name string) string {
	s, _ := v[name].(string)
	return s
}

// Int returns the integer value of name and whether it was present.
func (v Values) Int(name string) (int, bool) {
	f, ok := v[name].(float64)
	if !ok {
		if i, ok := v[name].(int); ok {
			return i, true
		}
		return 0, false
	}
	return int(f), true
}

// Has reports whether name was supplied.
func (v Values) Has(name string) bool {
	_, ok := v[name]
	return ok
}

// Validate checks params against the schema. Declared fields are checked in
// declaration order, then undeclared fields in sorted order; the first
// problem found is returned.
func (s Schema) Validate(params map[string]any) (Values, error) {
	out := make(Values, len(params))
	declared := make(map[string]struct{}, len(s.Fields))

	for _, f := range s.Fields {
		declared[f.Name] = struct{}{}
		raw, ok := params[f.Name]
		if !ok || raw == nil {
			if f.Required {
				return nil, utils.NewValidationError(f.Name, "missing required field %q", f.Name)
			}
			continue
		}
		if err := f.check(raw); err != nil {
			return nil, err
		}
		out[f.Name] = raw
	}

	var unknown []string
	for name := range params {
		if _, ok := declared[name]; !ok {
			unknown = append(unknown, name)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		if !s.Open {
			return nil, utils.NewValidationError(unknown[0], "unknown field %q", unknown[0])
		}
		for _, name := range unknown {
			out[name] = params[name]
		}
	}
	return out, nil
}

func (f Field) check(raw any) error {
	if !matchesType(f.Type, raw) {
		return utils.NewValidationError(f.Name, "field %q must be of type %s", f.Name, f.Type)
	}
	switch f.Type {
	case TypeString:
		if len(f.Enum) > 0 {
			s := raw.(string)
			for _, allowed := range f.Enum {
				if s == allowed {
					return nil
				}
			}
			return utils.NewValidationError(f.Name, "field %q must be one of %v", f.Name, f.Enum)
		}
	case TypeArray:
		if f.Items != "" {
			for _, item := range raw.([]any) {
				if !matchesType(f.Items, item) {
					return utils.NewValidationError(f.Name, "field %q must contain only %s items", f.Name, f.Items)
				}
			}
		}
	}
	return nil
}

func matchesType(t FieldType, raw any) bool {
	switch t {
	case TypeString:
		_, ok := raw.(string)
		return ok
	case TypeBoolean:
		_, ok := raw.(bool)
		return ok
	case TypeNumber:
		switch raw.(type) {
		case float64, int:
			return true
		}
		return false
	case TypeInteger:
		switch n := raw.(type) {
		case int:
			return true
		case float64:
			return n == math.Trunc(n) && !math.IsInf(n, 0)
		}
		return false
	case TypeObject:
		_, ok := raw.(map[string]any)
		return ok
	case TypeArray:
		_, ok := raw.([]any)
		return ok
	}
	return false
}

// JSONSchema renders the schema as a JSON Schema object.
func (s Schema) JSONSchema() map[string]any {
	props := make(map[string]any, len(s.Fields))
	required := []string{}
	for _, f := range s.Fields {
		prop := map[string]any{"type": string(f.Type)}
		if f.Description != "" {
			prop["description"] = f.Description
		}
		if len(f.Enum) > 0 {
			prop["enum"] = f.Enum
		}
		if f.Type == TypeArray && f.Items != "" {
			prop["items"] = map[string]any{"type": string(f.Items)}
		}
		props[f.Name] = prop
		if f.Required {
			required = append(required, f.Name)
		}
	}
	return map[string]any{
		"type":                 "object",
		"properties":           props,
		"required":             required,
		"additionalProperties": s.Open,
	}
}
