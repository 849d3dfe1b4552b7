package compiler

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/roach88/linkctl/internal/ir"
)

//go:embed linkset.schema.json
var schemaJSON []byte

const schemaURL = "https://linkctl.local/schemas/linkset.schema.json"

var (
	schemaOnce     sync.Once
	compiledSchema *jsonschema.Schema
	schemaErr      error
)

func linksetSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		c := jsonschema.NewCompiler()
		c.Draft = jsonschema.Draft2020
		if err := c.AddResource(schemaURL, bytes.NewReader(schemaJSON)); err != nil {
			schemaErr = fmt.Errorf("descriptor schema load failed: %w", err)
			return
		}
		compiledSchema, schemaErr = c.Compile(schemaURL)
		if schemaErr != nil {
			schemaErr = fmt.Errorf("descriptor schema compile failed: %w", schemaErr)
		}
	})
	return compiledSchema, schemaErr
}

// validateSchema checks a JSON-decoded document against the descriptor
// schema. Violations are returned as one *ir.ConfigurationError.
func validateSchema(doc any, source string) error {
	schema, err := linksetSchema()
	if err != nil {
		return err
	}
	err = schema.Validate(doc)
	if err == nil {
		return nil
	}

	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return fmt.Errorf("validate %s: %w", source, err)
	}
	var problems []string
	for _, e := range ve.BasicOutput().Errors {
		// the root entry only says the document failed
		if e.Error == "" || e.KeywordLocation == "" {
			continue
		}
		problems = append(problems, fmt.Sprintf("%s: %s", location(e.InstanceLocation), e.Error))
	}
	if len(problems) == 0 {
		problems = []string{ve.Error()}
	}
	return &ir.ConfigurationError{
		Message:  fmt.Sprintf("%s does not match the descriptor schema", source),
		Problems: problems,
	}
}

func location(pointer string) string {
	if pointer == "" {
		return "(document)"
	}
	return pointer
}
