package lint

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"
)

// Issue is one schema violation
type Issue struct {
	Field   string
	Message string
}

func (i Issue) String() string {
	return fmt.Sprintf("%s: %s", i.Field, i.Message)
}

// Result holds the outcome of linting one document
type Result struct {
	File   string
	Issues []Issue
}

// Valid reports whether the document had no issues
func (r *Result) Valid() bool {
	return len(r.Issues) == 0
}

var (
	schemaOnce sync.Once
	schema     *gojsonschema.Schema
	schemaErr  error
)

func compiledSchema() (*gojsonschema.Schema, error) {
	schemaOnce.Do(func() {
		schema, schemaErr = gojsonschema.NewSchema(gojsonschema.NewStringLoader(descriptorSchema))
	})
	return schema, schemaErr
}

// Lint checks the first YAML document in data. The error is non-nil only
// when the input is not YAML at all.
func Lint(data []byte) (*Result, error) {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decoding document: %w", err)
	}

	result := &Result{}
	if doc == nil {
		result.Issues = append(result.Issues, Issue{Field: "(root)", Message: "document is empty"})
		return result, nil
	}

	s, err := compiledSchema()
	if err != nil {
		return nil, fmt.Errorf("compiling schema: %w", err)
	}

	res, err := s.Validate(gojsonschema.NewGoLoader(normalize(doc)))
	if err != nil {
		return nil, fmt.Errorf("validating document: %w", err)
	}

	for _, desc := range res.Errors() {
		result.Issues = append(result.Issues, Issue{
			Field:   desc.Field(),
			Message: desc.Description(),
		})
	}
	sort.SliceStable(result.Issues, func(i, j int) bool {
		return result.Issues[i].Field < result.Issues[j].Field
	})

	return result, nil
}

// LintReader lints everything read from r
func LintReader(r io.Reader, name string) (*Result, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	result, err := Lint(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	result.File = name
	return result, nil
}

// LintFile lints a descriptor file
func LintFile(path string) (*Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return LintReader(f, path)
}

// ErrIssues is returned by callers that treat any issue as a failure
var ErrIssues = errors.New("descriptor has lint issues")

// normalize lowercases mapping keys and turns the decoded YAML tree into
// values the JSON loader accepts.
func normalize(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[strings.ToLower(k)] = normalize(val)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[strings.ToLower(fmt.Sprint(k))] = normalize(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = normalize(val)
		}
		return out
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return fmt.Sprint(t)
		}
		return t
	default:
		return t
	}
}
