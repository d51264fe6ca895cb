package tools

import (
	"bytes"
	"embed"
	"fmt"
	"path"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

//go:embed schemas/*.json
var schemasFS embed.FS

// argumentSchema validates decoded tool arguments.
type argumentSchema struct {
	name   string
	schema *jsonschema.Schema
}

// loadSchema compiles the embedded schema for one tool.
func loadSchema(tool string) (*argumentSchema, error) {
	file := path.Join("schemas", tool+".json")
	content, err := schemasFS.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("read %s schema: %w", tool, err)
	}

	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("unmarshal %s schema: %w", tool, err)
	}

	c := jsonschema.NewCompiler()
	if err := c.AddResource(tool+".json", doc); err != nil {
		return nil, fmt.Errorf("add %s schema resource: %w", tool, err)
	}
	schema, err := c.Compile(tool + ".json")
	if err != nil {
		return nil, fmt.Errorf("compile %s schema: %w", tool, err)
	}

	return &argumentSchema{name: tool, schema: schema}, nil
}

// validate reports whether args satisfy the schema.
func (s *argumentSchema) validate(args map[string]any) error {
	if s == nil || s.schema == nil {
		return nil
	}
	var doc any = args
	if args == nil {
		doc = map[string]any{}
	}
	return s.schema.Validate(doc)
}
