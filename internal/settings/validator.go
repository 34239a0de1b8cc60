package settings

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

//go:embed schema/dashboard_v1.json
var dashboardSchema []byte

const schemaURL = "https://sitepulse.dev/schemas/dashboard_v1.json"

// Validator handles settings validation
type Validator struct {
	schema *jsonschema.Schema
}

// NewValidator creates a new validator with the embedded schema
func NewValidator() (*Validator, error) {
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(dashboardSchema))
	if err != nil {
		return nil, fmt.Errorf("failed to parse schema: %w", err)
	}

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(schemaURL, doc); err != nil {
		return nil, fmt.Errorf("failed to add schema: %w", err)
	}

	schema, err := compiler.Compile(schemaURL)
	if err != nil {
		return nil, fmt.Errorf("failed to compile schema: %w", err)
	}

	return &Validator{schema: schema}, nil
}

// ValidateFile validates a settings file against the schema and the
// extra rules. An empty result means the file is valid.
func (v *Validator) ValidateFile(path string) []ValidationError {
	data, err := os.ReadFile(path)
	if err != nil {
		return []ValidationError{{File: path, Message: fmt.Sprintf("failed to read file: %v", err)}}
	}
	return v.Validate(path, data)
}

// Validate validates settings bytes; file is used for error reporting
func (v *Validator) Validate(file string, data []byte) []ValidationError {
	doc, err := parseDocument(data)
	if err != nil {
		return []ValidationError{{File: file, Message: fmt.Sprintf("failed to parse YAML: %v", err)}}
	}

	if err := v.schema.Validate(doc); err != nil {
		if validationErr, ok := err.(*jsonschema.ValidationError); ok {
			return extractSchemaErrors(file, validationErr)
		}
		return []ValidationError{{File: file, Message: err.Error()}}
	}

	s, err := Parse(data)
	if err != nil {
		return []ValidationError{{File: file, Message: err.Error()}}
	}

	return validateExtraRules(file, s)
}

// extractSchemaErrors converts JSON schema validation errors to ValidationErrors
func extractSchemaErrors(file string, err *jsonschema.ValidationError) []ValidationError {
	var errors []ValidationError

	path := strings.Join(err.InstanceLocation, ".")
	if path == "" {
		path = "(root)"
	}

	// Leaf errors carry the useful messages; wrappers only repeat them
	if len(err.Causes) == 0 {
		errors = append(errors, ValidationError{
			File:    file,
			Path:    path,
			Message: err.Error(),
		})
	}

	for _, cause := range err.Causes {
		errors = append(errors, extractSchemaErrors(file, cause)...)
	}

	return errors
}

// validateExtraRules applies checks the schema cannot express
func validateExtraRules(file string, s *Settings) []ValidationError {
	var errors []ValidationError
	add := func(path, format string, args ...interface{}) {
		errors = append(errors, ValidationError{File: file, Path: path, Message: fmt.Sprintf(format, args...)})
	}

	// Check for duplicate source names and mixed source kinds
	seen := make(map[string]int)
	urls, files := 0, 0
	for i, src := range s.Spec.Sources {
		if prev, exists := seen[src.Name]; exists {
			add(fmt.Sprintf("spec.sources[%d].name", i), "duplicate source name %q (also sources[%d])", src.Name, prev)
		} else {
			seen[src.Name] = i
		}
		if src.URL != "" {
			urls++
		}
		if src.File != "" {
			files++
		}
	}
	if urls > 0 && files > 0 {
		add("spec.sources", "sources must all use url or all use file, got %d url and %d file", urls, files)
	}

	if s.Spec.Timezone != "" {
		if _, err := time.LoadLocation(s.Spec.Timezone); err != nil {
			add("spec.timezone", "unknown timezone %q", s.Spec.Timezone)
		}
	}

	durations := []struct {
		path  string
		value string
	}{
		{"spec.fetch.timeout", s.Spec.Fetch.Timeout},
		{"spec.fetch.retryDelay", s.Spec.Fetch.RetryDelay},
		{"spec.refresh.interval", s.Spec.Refresh.Interval},
		{"spec.refresh.loadTimeout", s.Spec.Refresh.LoadTimeout},
		{"spec.thresholds.inactiveGrace", s.Spec.Thresholds.InactiveGrace},
	}
	for _, d := range durations {
		if d.value == "" {
			continue
		}
		dur, err := ParseDuration(d.value)
		if err != nil {
			add(d.path, "invalid duration: %v", err)
			continue
		}
		if dur == 0 && d.path != "spec.fetch.retryDelay" && d.path != "spec.thresholds.inactiveGrace" {
			add(d.path, "must be greater than zero")
		}
	}

	if w := s.Spec.Risk.Weights; w != nil && w.Delay+w.Progress+w.Mobilization == 0 {
		add("spec.risk.weights", "at least one weight must be positive")
	}

	return errors
}
