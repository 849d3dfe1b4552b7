package compiler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/linkctl/internal/ir"
)

// Format is a descriptor file syntax.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
	FormatCUE  Format = "cue"
	FormatHCL  Format = "hcl"
)

// FormatOf picks the format from the file extension.
func FormatOf(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".json":
		return FormatJSON, nil
	case ".cue":
		return FormatCUE, nil
	case ".hcl":
		return FormatHCL, nil
	}
	return "", fmt.Errorf("%s: unsupported descriptor file extension (want .yaml, .yml, .json, .cue or .hcl)", path)
}

// LoadFile reads, validates and decodes a descriptor file.
//
// Syntax errors are returned as parse errors; schema, version and link
// problems as one *ir.ConfigurationError listing all of them.
func LoadFile(path string) (*File, error) {
	format, err := FormatOf(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read descriptor file: %w", err)
	}
	return Parse(data, format, path)
}

// Parse decodes a descriptor document. source names the document in
// errors.
func Parse(data []byte, format Format, source string) (*File, error) {
	doc, err := toJSON(data, format, source)
	if err != nil {
		return nil, err
	}

	var generic any
	if err := json.Unmarshal(doc, &generic); err != nil {
		return nil, fmt.Errorf("parse %s: %w", source, err)
	}
	if err := validateSchema(generic, source); err != nil {
		return nil, err
	}

	var f File
	dec := json.NewDecoder(bytes.NewReader(doc))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("decode %s: %w", source, err)
	}
	f.Source = source

	if errs := Validate(&f); len(errs) > 0 {
		problems := make([]string, len(errs))
		for i, e := range errs {
			problems[i] = e.Error()
		}
		return nil, &ir.ConfigurationError{
			Message:  fmt.Sprintf("invalid descriptor file %s", source),
			Problems: problems,
		}
	}
	return &f, nil
}

// toJSON normalizes every format to a JSON document so one schema covers
// them all.
func toJSON(data []byte, format Format, source string) ([]byte, error) {
	switch format {
	case FormatJSON:
		return data, nil
	case FormatYAML:
		var raw any
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("parse %s: %w", source, err)
		}
		out, err := json.Marshal(raw)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", source, err)
		}
		return out, nil
	case FormatCUE:
		return cueToJSON(data, source)
	case FormatHCL:
		f, err := parseHCL(data, source)
		if err != nil {
			return nil, err
		}
		return json.Marshal(f)
	}
	return nil, fmt.Errorf("%s: unknown format %q", source, format)
}
