// Package schema validates decoded profiles and test descriptors against the
// embedded JSON schemas before any semantic processing happens.
package schema

import (
	_ "embed"
	"fmt"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/xeipuuv/gojsonschema"
)

//go:embed profile.json
var profileSchema string

//go:embed descriptor.json
var descriptorSchema string

// Kind selects the schema to validate against.
type Kind string

const (
	Profile    Kind = "profile"
	Descriptor Kind = "descriptor"
)

var loaders = map[Kind]gojsonschema.JSONLoader{
	Profile:    gojsonschema.NewStringLoader(profileSchema),
	Descriptor: gojsonschema.NewStringLoader(descriptorSchema),
}

// Validate checks doc (a value decoded from YAML) and returns every
// violation at once. source names the document in messages.
func Validate(kind Kind, source string, doc any) error {
	schemaLoader, ok := loaders[kind]
	if !ok {
		return fmt.Errorf("unknown schema kind %q", kind)
	}
	result, err := gojsonschema.Validate(schemaLoader, gojsonschema.NewGoLoader(Normalize(doc)))
	if err != nil {
		return fmt.Errorf("%s: cannot validate %s: %w", source, kind, err)
	}
	if result.Valid() {
		return nil
	}

	var merr *multierror.Error
	for _, desc := range result.Errors() {
		merr = multierror.Append(merr, fmt.Errorf("%s: %s: %s", source, desc.Field(), desc.Description()))
	}
	merr.ErrorFormat = listFormat
	return merr
}

func listFormat(errs []error) string {
	lines := make([]string, len(errs))
	for i, err := range errs {
		lines[i] = "  * " + err.Error()
	}
	return fmt.Sprintf("%d schema violation(s):\n%s", len(errs), strings.Join(lines, "\n"))
}

// Normalize converts YAML-decoded maps with interface keys into string-keyed
// maps so the value can be handled as JSON.
func Normalize(v any) any {
	switch x := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, val := range x {
			out[k] = Normalize(val)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(x))
		for k, val := range x {
			out[fmt.Sprint(k)] = Normalize(val)
		}
		return out
	case []any:
		out := make([]any, len(x))
		for i, val := range x {
			out[i] = Normalize(val)
		}
		return out
	default:
		return v
	}
}
