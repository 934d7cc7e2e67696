package analyze

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schemas/*.json
var schemasFS embed.FS

var (
	analysisSchema = mustCompileSchema("schemas/analysis.json")
	impactSchema   = mustCompileSchema("schemas/impact.json")
)

func mustCompileSchema(path string) *jsonschema.Schema {
	data, err := schemasFS.ReadFile(path)
	if err != nil {
		panic(fmt.Sprintf("could not read embedded schema %s: %s", path, err))
	}

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(path, bytes.NewReader(data)); err != nil {
		panic(fmt.Sprintf("could not load schema %s: %s", path, err))
	}
	schema, err := compiler.Compile(path)
	if err != nil {
		panic(fmt.Sprintf("could not compile schema %s: %s", path, err))
	}

	return schema
}

var jsonFenceRegexp = regexp.MustCompile("(?s)```json[ \t]*\n(.*?)```")

// extractJSON returns the JSON document of a model response: the whole text,
// or the content of its only ```json fenced block.
func extractJSON(response string) (string, error) {
	text := strings.TrimSpace(response)
	if strings.HasPrefix(text, "{") {
		return text, nil
	}

	fences := jsonFenceRegexp.FindAllStringSubmatch(text, -1)
	switch len(fences) {
	case 0:
		return "", fmt.Errorf("response is not a JSON document")
	case 1:
		return strings.TrimSpace(fences[0][1]), nil
	default:
		return "", fmt.Errorf("response has %d JSON blocks, expected one", len(fences))
	}
}

// decodeStrict decodes the model response into v after validating it with the schema.
func decodeStrict(response string, schema *jsonschema.Schema, v any) error {
	doc, err := extractJSON(response)
	if err != nil {
		return err
	}

	dec := json.NewDecoder(strings.NewReader(doc))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return fmt.Errorf("could not decode JSON: %w", err)
	}
	if dec.More() {
		return fmt.Errorf("trailing data after JSON document")
	}

	if err := schema.Validate(raw); err != nil {
		return fmt.Errorf("invalid JSON document: %w", err)
	}

	if err := json.Unmarshal([]byte(doc), v); err != nil {
		return fmt.Errorf("could not decode JSON: %w", err)
	}

	return nil
}
