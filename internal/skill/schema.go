package skill

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"
)

// FieldType is the declared type of a parameter.
type FieldType string

const (
	TypeString FieldType = "string"
	TypeInt    FieldType = "int"
	TypeBool   FieldType = "bool"
)

// Field declares one parameter of a skill.
type Field struct {
	Name        string    `json:"name"`
	Type        FieldType `json:"type"`
	Required    bool      `json:"required,omitempty"`
	Default     any       `json:"default,omitempty"`
	Min         *int      `json:"min,omitempty"`
	Max         *int      `json:"max,omitempty"`
	MaxLength   int       `json:"max_length,omitempty"`
	Description string    `json:"description,omitempty"`
}

// Schema is the declared parameter shape of a skill. Only declared fields
// are validated; any other key is passed through untouched.
type Schema struct {
	Fields []Field `json:"fields"`
}

// NewSchema builds a schema from its fields in declaration order.
func NewSchema(fields ...Field) *Schema {
	return &Schema{Fields: fields}
}

// ValidationError reports parameters that do not fit a schema.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%d validation error(s): %s", len(e.Problems), strings.Join(e.Problems, "; "))
}

// Validate checks raw against the schema and returns the normalised
// parameters with defaults applied.
func (s *Schema) Validate(raw map[string]any) (Params, error) {
	out := make(Params, len(raw))
	for k, v := range raw {
		if v == nil {
			continue
		}
		out[k] = v
	}
	if s == nil {
		return out, nil
	}

	var problems []string
	for _, f := range s.Fields {
		v, present := out[f.Name]
		if !present {
			if f.Required {
				problems = append(problems, fmt.Sprintf("%s: field required", f.Name))
				continue
			}
			if f.Default != nil {
				out[f.Name] = f.Default
			}
			continue
		}

		norm, err := f.check(v)
		if err != nil {
			problems = append(problems, fmt.Sprintf("%s: %v", f.Name, err))
			continue
		}
		out[f.Name] = norm
	}

	if len(problems) > 0 {
		return nil, &ValidationError{Problems: problems}
	}
	return out, nil
}

func (f Field) check(v any) (any, error) {
	switch f.Type {
	case TypeInt:
		n, err := toInt(v)
		if err != nil {
			return nil, err
		}
		if f.Min != nil && n < *f.Min {
			return nil, fmt.Errorf("must be greater than or equal to %d", *f.Min)
		}
		if f.Max != nil && n > *f.Max {
			return nil, fmt.Errorf("must be less than or equal to %d", *f.Max)
		}
		return n, nil
	case TypeBool:
		b, ok := v.(bool)
		if !ok {
			return nil, fmt.Errorf("must be a boolean")
		}
		return b, nil
	default:
		str, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("must be a string")
		}
		if f.MaxLength > 0 && utf8.RuneCountInString(str) > f.MaxLength {
			return nil, fmt.Errorf("must have at most %d characters", f.MaxLength)
		}
		return str, nil
	}
}

func toInt(v any) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		if n != math.Trunc(n) {
			return 0, fmt.Errorf("must be an integer")
		}
		return int(n), nil
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return 0, fmt.Errorf("must be an integer")
		}
		return int(i), nil
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(n))
		if err != nil {
			return 0, fmt.Errorf("must be an integer")
		}
		return i, nil
	}
	return 0, fmt.Errorf("must be an integer")
}

// Params are validated skill parameters.
type Params map[string]any

// String returns the string value for key, or "" when absent.
func (p Params) String(key string) string {
	if v, ok := p[key].(string); ok {
		return v
	}
	return ""
}

// Int returns the integer value for key, or def when absent.
func (p Params) Int(key string, def int) int {
	if v, ok := p[key]; ok {
		if n, err := toInt(v); err == nil {
			return n
		}
	}
	return def
}

// Bool returns the boolean value for key.
func (p Params) Bool(key string) bool {
	v, _ := p[key].(bool)
	return v
}

func intPtr(n int) *int { return &n }
