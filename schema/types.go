package schema

import (
	"context"
	"fmt"
	"regexp"
)

// The concrete schemas below operate on JSON-decoded values (string, bool,
// float64, []any, map[string]any). They collect every issue found rather
// than stopping at the first, so field errors report the full picture in
// one round trip.

// StringSchema validates strings.
type StringSchema struct {
	MinLength int
	MaxLength int
	Pattern   *regexp.Regexp
}

// String creates a new string schema.
func String() *StringSchema { return &StringSchema{} }

// Min sets the minimum length.
func (s *StringSchema) Min(n int) *StringSchema {
	c := *s
	c.MinLength = n
	return &c
}

// Max sets the maximum length.
func (s *StringSchema) Max(n int) *StringSchema {
	c := *s
	c.MaxLength = n
	return &c
}

// Matches sets a pattern the string must match.
func (s *StringSchema) Matches(re *regexp.Regexp) *StringSchema {
	c := *s
	c.Pattern = re
	return &c
}

// Validate implements Schema.
func (s *StringSchema) Validate(_ context.Context, value any) (any, []Issue) {
	str, ok := value.(string)
	if !ok {
		return nil, []Issue{{Message: "value is not a string"}}
	}

	var issues []Issue
	if s.MinLength > 0 && len(str) < s.MinLength {
		issues = append(issues, Issue{Message: fmt.Sprintf("string length %d is less than minimum length %d", len(str), s.MinLength)})
	}
	if s.MaxLength > 0 && len(str) > s.MaxLength {
		issues = append(issues, Issue{Message: fmt.Sprintf("string length %d is greater than maximum length %d", len(str), s.MaxLength)})
	}
	if s.Pattern != nil && !s.Pattern.MatchString(str) {
		issues = append(issues, Issue{Message: fmt.Sprintf("string does not match pattern %s", s.Pattern)})
	}
	if len(issues) > 0 {
		return nil, issues
	}
	return str, nil
}

// NumberSchema validates numbers.
type NumberSchema struct {
	Min     *float64
	Max     *float64
	Integer bool
}

// Number creates a new number schema.
func Number() *NumberSchema { return &NumberSchema{} }

// AtLeast sets the minimum value.
func (s *NumberSchema) AtLeast(n float64) *NumberSchema {
	c := *s
	c.Min = &n
	return &c
}

// AtMost sets the maximum value.
func (s *NumberSchema) AtMost(n float64) *NumberSchema {
	c := *s
	c.Max = &n
	return &c
}

// Int requires an integral value.
func (s *NumberSchema) Int() *NumberSchema {
	c := *s
	c.Integer = true
	return &c
}

// Validate implements Schema.
func (s *NumberSchema) Validate(_ context.Context, value any) (any, []Issue) {
	var num float64
	switch v := value.(type) {
	case float64:
		num = v
	case float32:
		num = float64(v)
	case int:
		num = float64(v)
	case int32:
		num = float64(v)
	case int64:
		num = float64(v)
	default:
		return nil, []Issue{{Message: "value is not a number"}}
	}

	var issues []Issue
	if s.Min != nil && num < *s.Min {
		issues = append(issues, Issue{Message: fmt.Sprintf("number %v is less than minimum %v", num, *s.Min)})
	}
	if s.Max != nil && num > *s.Max {
		issues = append(issues, Issue{Message: fmt.Sprintf("number %v is greater than maximum %v", num, *s.Max)})
	}
	if s.Integer && num != float64(int64(num)) {
		issues = append(issues, Issue{Message: "number must be an integer"})
	}
	if len(issues) > 0 {
		return nil, issues
	}
	return num, nil
}

// BooleanSchema validates booleans.
type BooleanSchema struct{}

// Boolean creates a new boolean schema.
func Boolean() *BooleanSchema { return &BooleanSchema{} }

// Validate implements Schema.
func (s *BooleanSchema) Validate(_ context.Context, value any) (any, []Issue) {
	b, ok := value.(bool)
	if !ok {
		return nil, []Issue{{Message: "value is not a boolean"}}
	}
	return b, nil
}

// ArraySchema validates arrays, optionally validating each element.
type ArraySchema struct {
	Item     Schema
	MinItems int
	MaxItems int
}

// Array creates a new array schema with an element schema.
func Array(item Schema) *ArraySchema { return &ArraySchema{Item: item} }

// Min sets the minimum element count.
func (s *ArraySchema) Min(n int) *ArraySchema {
	c := *s
	c.MinItems = n
	return &c
}

// Max sets the maximum element count.
func (s *ArraySchema) Max(n int) *ArraySchema {
	c := *s
	c.MaxItems = n
	return &c
}

// Validate implements Schema.
func (s *ArraySchema) Validate(ctx context.Context, value any) (any, []Issue) {
	arr, ok := value.([]any)
	if !ok {
		return nil, []Issue{{Message: "value is not an array"}}
	}

	var issues []Issue
	if s.MinItems > 0 && len(arr) < s.MinItems {
		issues = append(issues, Issue{Message: fmt.Sprintf("array length %d is less than minimum length %d", len(arr), s.MinItems)})
	}
	if s.MaxItems > 0 && len(arr) > s.MaxItems {
		issues = append(issues, Issue{Message: fmt.Sprintf("array length %d is greater than maximum length %d", len(arr), s.MaxItems)})
	}

	out := make([]any, len(arr))
	copy(out, arr)
	if s.Item != nil {
		for i, item := range arr {
			validated, itemIssues := s.Item.Validate(ctx, item)
			if len(itemIssues) > 0 {
				for _, issue := range itemIssues {
					issue.Path = append([]string{fmt.Sprintf("%d", i)}, issue.Path...)
					issues = append(issues, issue)
				}
				continue
			}
			out[i] = validated
		}
	}

	if len(issues) > 0 {
		return nil, issues
	}
	return out, nil
}

// ObjectSchema validates string-keyed objects property by property.
type ObjectSchema struct {
	Properties map[string]Schema
	Required   []string
}

// Object creates a new object schema.
func Object(properties map[string]Schema) *ObjectSchema {
	return &ObjectSchema{Properties: properties}
}

// Require marks property names that must be present.
func (s *ObjectSchema) Require(names ...string) *ObjectSchema {
	c := *s
	c.Required = append(append([]string{}, s.Required...), names...)
	return &c
}

// Validate implements Schema. Unknown keys pass through untouched; the
// validated object carries each property's transformed value.
func (s *ObjectSchema) Validate(ctx context.Context, value any) (any, []Issue) {
	obj, ok := value.(map[string]any)
	if !ok {
		return nil, []Issue{{Message: "value is not an object"}}
	}

	var issues []Issue
	for _, req := range s.Required {
		if _, present := obj[req]; !present {
			issues = append(issues, Issue{
				Message: fmt.Sprintf("required property %s is missing", req),
				Path:    []string{req},
			})
		}
	}

	out := make(map[string]any, len(obj))
	for k, v := range obj {
		out[k] = v
	}
	for name, prop := range s.Properties {
		raw, present := obj[name]
		if !present {
			continue
		}
		validated, propIssues := prop.Validate(ctx, raw)
		if len(propIssues) > 0 {
			for _, issue := range propIssues {
				issue.Path = append([]string{name}, issue.Path...)
				issues = append(issues, issue)
			}
			continue
		}
		out[name] = validated
	}

	if len(issues) > 0 {
		return nil, issues
	}
	return out, nil
}

// AnySchema accepts every value unchanged.
type AnySchema struct{}

// Any creates a schema that accepts any value.
func Any() *AnySchema { return &AnySchema{} }

// Validate implements Schema.
func (s *AnySchema) Validate(_ context.Context, value any) (any, []Issue) {
	return value, nil
}
