package ui

// This file contains the types used to specify a validation scheme for the
// fields of a property model.

import (
	"fmt"
	"regexp"
	"sort"
)

// FieldSchema describes one field of a property model.
// An empty Type accepts any value.
type FieldSchema struct {
	Type      string   `json:"type" yaml:"type"`
	Required  bool     `json:"required" yaml:"required"`
	Default   any      `json:"default,omitempty" yaml:"default,omitempty"`
	Pattern   string   `json:"pattern,omitempty" yaml:"pattern,omitempty"`
	Min       *float64 `json:"min,omitempty" yaml:"min,omitempty"`
	Max       *float64 `json:"max,omitempty" yaml:"max,omitempty"`
	MinLength *int     `json:"min_length,omitempty" yaml:"min_length,omitempty"`
	MaxLength *int     `json:"max_length,omitempty" yaml:"max_length,omitempty"`
	Options   []string `json:"options,omitempty" yaml:"options,omitempty"` // allowed String values
}

// Schema maps field names to their description.
type Schema map[string]FieldSchema

func NewSchema() Schema {
	return make(Schema)
}

func (s Schema) Add(field string, schema FieldSchema) Schema {
	s[field] = schema
	return s
}

// AddString adds a String field to the schema.
func (s Schema) AddString(field string, required bool, pattern string, options ...string) Schema {
	s[field] = FieldSchema{
		Type:     "String",
		Required: required,
		Pattern:  pattern,
		Options:  options,
	}
	return s
}

// AddNumber adds a Number field to the schema.
func (s Schema) AddNumber(field string, required bool, min, max *float64) Schema {
	s[field] = FieldSchema{
		Type:     "Number",
		Required: required,
		Min:      min,
		Max:      max,
	}
	return s
}

// AddBool adds a Bool field to the schema.
func (s Schema) AddBool(field string, required bool) Schema {
	s[field] = FieldSchema{
		Type:     "Bool",
		Required: required,
	}
	return s
}

// Fields returns the field names in lexical order.
func (s Schema) Fields() []string {
	names := make([]string, 0, len(s))
	for k := range s {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Check verifies that the schema itself is well-formed.
func (s Schema) Check() error {
	for _, name := range s.Fields() {
		fs := s[name]
		switch fs.Type {
		case "", "Any", "Bool", "String", "Number", "Object", "List":
		default:
			return fmt.Errorf("%w: unsupported type '%s' for field %s", ErrConfiguration, fs.Type, name)
		}
		if fs.Pattern != "" {
			if _, err := regexp.Compile(fs.Pattern); err != nil {
				return fmt.Errorf("%w: invalid regex pattern for %s: %v", ErrConfiguration, name, err)
			}
		}
		if fs.Default != nil {
			v, err := ValueOf(fs.Default)
			if err != nil {
				return fmt.Errorf("%w: default value of %s: %v", ErrConfiguration, name, err)
			}
			if err := fs.Validate(name, v); err != nil {
				return fmt.Errorf("%w: default value of %s: %v", ErrConfiguration, name, err)
			}
		}
	}
	return nil
}

// Validate checks a value against the field description.
func (fs FieldSchema) Validate(field string, v Value) error {
	if v == nil {
		if fs.Required {
			return fmt.Errorf("%w: field %s is required", ErrInvalidArgument, field)
		}
		return nil
	}
	if fs.Type != "" && fs.Type != "Any" && v.ValueType() != fs.Type {
		return fmt.Errorf("%w: field %s must be a %s, got %s", ErrInvalidArgument, field, fs.Type, v.ValueType())
	}

	switch t := v.(type) {
	case String:
		str := string(t)
		if fs.Pattern != "" {
			matched, err := regexp.MatchString(fs.Pattern, str)
			if err != nil {
				return fmt.Errorf("invalid regex pattern for %s: %w", field, err)
			}
			if !matched {
				return fmt.Errorf("%w: field %s with value '%s' does not match pattern", ErrInvalidArgument, field, str)
			}
		}
		if fs.MinLength != nil && len(str) < *fs.MinLength {
			return fmt.Errorf("%w: field %s must be at least %d characters long", ErrInvalidArgument, field, *fs.MinLength)
		}
		if fs.MaxLength != nil && len(str) > *fs.MaxLength {
			return fmt.Errorf("%w: field %s must be at most %d characters long", ErrInvalidArgument, field, *fs.MaxLength)
		}
		if len(fs.Options) > 0 {
			found := false
			for _, option := range fs.Options {
				if str == option {
					found = true
					break
				}
			}
			if !found {
				return fmt.Errorf("%w: field %s with value '%s' is not one of the allowed options", ErrInvalidArgument, field, str)
			}
		}
	case Number:
		n := float64(t)
		if fs.Min != nil && n < *fs.Min {
			return fmt.Errorf("%w: field %s must be at least %v", ErrInvalidArgument, field, *fs.Min)
		}
		if fs.Max != nil && n > *fs.Max {
			return fmt.Errorf("%w: field %s must be at most %v", ErrInvalidArgument, field, *fs.Max)
		}
	case List:
		if fs.MinLength != nil && len(t) < *fs.MinLength {
			return fmt.Errorf("%w: field %s must hold at least %d items", ErrInvalidArgument, field, *fs.MinLength)
		}
		if fs.MaxLength != nil && len(t) > *fs.MaxLength {
			return fmt.Errorf("%w: field %s must hold at most %d items", ErrInvalidArgument, field, *fs.MaxLength)
		}
	}
	return nil
}
