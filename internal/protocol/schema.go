package protocol

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schemas/*.schema.json
var schemaFS embed.FS

var (
	schemasOnce sync.Once
	schemas     map[string]*jsonschema.Schema
	schemasErr  error
)

func loadSchemas() {
	entries, err := schemaFS.ReadDir("schemas")
	if err != nil {
		schemasErr = err
		return
	}
	c := jsonschema.NewCompiler()
	urls := map[string]string{}
	for _, e := range entries {
		b, err := schemaFS.ReadFile("schemas/" + e.Name())
		if err != nil {
			schemasErr = err
			return
		}
		url := "mem://protocol/" + e.Name()
		if err := c.AddResource(url, bytes.NewReader(b)); err != nil {
			schemasErr = fmt.Errorf("add schema %s: %w", e.Name(), err)
			return
		}
		msgType := strings.ToUpper(strings.TrimSuffix(e.Name(), ".schema.json"))
		urls[msgType] = url
	}
	out := make(map[string]*jsonschema.Schema, len(urls))
	for msgType, url := range urls {
		s, err := c.Compile(url)
		if err != nil {
			schemasErr = fmt.Errorf("compile %s: %w", url, err)
			return
		}
		out[msgType] = s
	}
	schemas = out
}

// Validate checks raw against the embedded schema for msgType.
func Validate(msgType string, raw []byte) error {
	schemasOnce.Do(loadSchemas)
	if schemasErr != nil {
		return schemasErr
	}
	s, ok := schemas[msgType]
	if !ok {
		return fmt.Errorf("no schema for message type %q", msgType)
	}
	var v any
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&v); err != nil {
		return fmt.Errorf("decode %s: %w", msgType, err)
	}
	return s.Validate(v)
}

// SchemaTypes lists the message types that have an embedded schema.
func SchemaTypes() []string {
	schemasOnce.Do(loadSchemas)
	out := make([]string, 0, len(schemas))
	for k := range schemas {
		out = append(out, k)
	}
	return out
}
