// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package schema loads the canonical form schema and answers questions about
// it: which sections exist, which field belongs where, and whether a record
// conforms.
//
// A schema file is YAML or JSON. Either the section map sits under a
// "sections" key next to an optional "version", or the document is the
// section map itself:
//
//	company_information:
//	  title: Company Information
//	  description: Basic facts.
//	  fields:
//	    company_name: Company Name
//
// Section and field order follow the file. Field keys must be unique across
// all sections.
package schema

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/partnerform/pkg/types"
)

//go:embed partnership.yaml
var partnershipYAML []byte

// documentSchema describes the shape of a schema file after normalisation to
// the {version, sections} layout.
const documentSchema = `{
  "type": "object",
  "required": ["sections"],
  "additionalProperties": false,
  "properties": {
    "version": {"type": ["string", "number"]},
    "sections": {
      "type": "object",
      "minProperties": 1,
      "propertyNames": {"pattern": "^\\S(.*\\S)?$"},
      "additionalProperties": {
        "type": "object",
        "required": ["fields"],
        "additionalProperties": false,
        "properties": {
          "title": {"type": "string"},
          "description": {"type": "string"},
          "fields": {
            "type": "object",
            "minProperties": 1,
            "propertyNames": {"pattern": "^\\S(.*\\S)?$"},
            "additionalProperties": {"type": "string"}
          }
        }
      }
    }
  }
}`

var documentValidator = jsonschema.MustCompileString("schema-document.json", documentSchema)

// Registry is an immutable, validated schema with lookup indexes.
type Registry struct {
	schema types.Schema

	fieldSection map[string]string // field key → section key
	fieldLabel   map[string]string // field key → label
	fieldNorm    map[string]string // normalised field key → field key
	sectionByKey map[string]int    // section key → index
	sectionNorm  map[string]string // normalised section key or title → section key

	recordOnce      sync.Once
	recordValidator *jsonschema.Schema
	recordErr       error
}

var (
	defaultOnce sync.Once
	defaultReg  *Registry
)

// Default returns the built-in partnership schema.
func Default() *Registry {
	defaultOnce.Do(func() {
		reg, err := Parse(partnershipYAML)
		if err != nil {
			panic(fmt.Sprintf("embedded partnership schema: %v", err))
		}
		defaultReg = reg
	})
	return defaultReg
}

// Load reads and validates the schema file at path. An empty path returns
// the built-in partnership schema.
func Load(path string) (*Registry, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading schema %s: %w", path, err)
	}
	reg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("schema %s: %w", path, err)
	}
	return reg, nil
}

// Parse validates a YAML or JSON schema document and builds a Registry.
func Parse(data []byte) (*Registry, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("decoding schema: %w", err)
	}
	if root.Kind != yaml.DocumentNode || len(root.Content) == 0 {
		return nil, fmt.Errorf("schema document is empty")
	}
	doc := root.Content[0]
	if doc.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("schema document must be a mapping")
	}

	version := ""
	sectionsNode := doc
	if v := mappingValue(doc, "sections"); v != nil && v.Kind == yaml.MappingNode {
		sectionsNode = v
		if vn := mappingValue(doc, "version"); vn != nil {
			version = vn.Value
		}
	} else {
		doc = &yaml.Node{Kind: yaml.MappingNode, Content: []*yaml.Node{
			{Kind: yaml.ScalarNode, Tag: "!!str", Value: "sections"},
			sectionsNode,
		}}
	}

	if err := validateDocument(doc); err != nil {
		return nil, err
	}

	s := types.Schema{Version: version}
	for i := 0; i+1 < len(sectionsNode.Content); i += 2 {
		key := sectionsNode.Content[i].Value
		body := sectionsNode.Content[i+1]

		sec := types.Section{Key: key, Title: key}
		if t := mappingValue(body, "title"); t != nil && strings.TrimSpace(t.Value) != "" {
			sec.Title = t.Value
		}
		if d := mappingValue(body, "description"); d != nil {
			sec.Description = d.Value
		}
		fields := mappingValue(body, "fields")
		for j := 0; j+1 < len(fields.Content); j += 2 {
			sec.Fields = append(sec.Fields, types.Field{
				Key:   fields.Content[j].Value,
				Label: fields.Content[j+1].Value,
			})
		}
		s.Sections = append(s.Sections, sec)
	}

	return New(s)
}

// New builds a Registry from an in-memory schema, enforcing the same
// invariants as Parse: at least one section, every section has fields,
// and no key is repeated.
func New(s types.Schema) (*Registry, error) {
	if len(s.Sections) == 0 {
		return nil, fmt.Errorf("schema has no sections")
	}

	r := &Registry{
		schema:       cloneSchema(s),
		fieldSection: make(map[string]string),
		fieldLabel:   make(map[string]string),
		fieldNorm:    make(map[string]string),
		sectionByKey: make(map[string]int),
		sectionNorm:  make(map[string]string),
	}

	for i, sec := range r.schema.Sections {
		if strings.TrimSpace(sec.Key) == "" {
			return nil, fmt.Errorf("section %d has an empty key", i)
		}
		if _, dup := r.sectionByKey[sec.Key]; dup {
			return nil, fmt.Errorf("duplicate section key %q", sec.Key)
		}
		if len(sec.Fields) == 0 {
			return nil, fmt.Errorf("section %q has no fields", sec.Key)
		}
		if sec.Title == "" {
			r.schema.Sections[i].Title = sec.Key
		}
		r.sectionByKey[sec.Key] = i
		r.sectionNorm[Normalize(sec.Key)] = sec.Key
		if t := Normalize(r.schema.Sections[i].Title); t != "" {
			if _, taken := r.sectionNorm[t]; !taken {
				r.sectionNorm[t] = sec.Key
			}
		}

		for _, f := range sec.Fields {
			if strings.TrimSpace(f.Key) == "" {
				return nil, fmt.Errorf("section %q has a field with an empty key", sec.Key)
			}
			if owner, dup := r.fieldSection[f.Key]; dup {
				return nil, fmt.Errorf("duplicate field key %q in sections %q and %q", f.Key, owner, sec.Key)
			}
			r.fieldSection[f.Key] = sec.Key
			r.fieldLabel[f.Key] = f.Label
			r.fieldNorm[Normalize(f.Key)] = f.Key
		}
	}

	// Labels resolve only where they do not collide with a key.
	for _, sec := range r.schema.Sections {
		for _, f := range sec.Fields {
			if n := Normalize(f.Label); n != "" {
				if _, taken := r.fieldNorm[n]; !taken {
					r.fieldNorm[n] = f.Key
				}
			}
		}
	}

	return r, nil
}

// Schema returns a copy of the loaded schema.
func (r *Registry) Schema() types.Schema {
	return cloneSchema(r.schema)
}

// Version returns the schema version, or "" when the file declares none.
func (r *Registry) Version() string { return r.schema.Version }

// Sections returns the sections in file order. The slice is a copy.
func (r *Registry) Sections() []types.Section {
	return cloneSchema(r.schema).Sections
}

// FieldKeys returns every field key in schema order.
func (r *Registry) FieldKeys() []string {
	keys := make([]string, 0, len(r.fieldSection))
	for _, sec := range r.schema.Sections {
		for _, f := range sec.Fields {
			keys = append(keys, f.Key)
		}
	}
	return keys
}

// SectionOf returns the section that owns field.
func (r *Registry) SectionOf(field string) (string, bool) {
	sec, ok := r.fieldSection[field]
	return sec, ok
}

// Label returns the display label of field, or "" for unknown fields.
func (r *Registry) Label(field string) string {
	return r.fieldLabel[field]
}

// HasSection reports whether key names a section exactly.
func (r *Registry) HasSection(key string) bool {
	_, ok := r.sectionByKey[key]
	return ok
}

// ResolveSection maps a section key or display title to its section key.
// Exact keys match first, then a case- and separator-insensitive comparison
// against keys and titles.
func (r *Registry) ResolveSection(name string) (string, bool) {
	if _, ok := r.sectionByKey[name]; ok {
		return name, true
	}
	key, ok := r.sectionNorm[Normalize(name)]
	return key, ok
}

// ResolveField maps a candidate key to a schema field key and its section.
// Exact keys match first, then normalised keys, then normalised labels.
func (r *Registry) ResolveField(name string) (section, field string, ok bool) {
	if sec, found := r.fieldSection[name]; found {
		return sec, name, true
	}
	key, found := r.fieldNorm[Normalize(name)]
	if !found {
		return "", "", false
	}
	return r.fieldSection[key], key, true
}

// FieldInSection resolves name against the fields of one section only.
func (r *Registry) FieldInSection(section, name string) (string, bool) {
	idx, ok := r.sectionByKey[section]
	if !ok {
		return "", false
	}
	norm := Normalize(name)
	for _, f := range r.schema.Sections[idx].Fields {
		if f.Key == name {
			return f.Key, true
		}
	}
	for _, f := range r.schema.Sections[idx].Fields {
		if Normalize(f.Key) == norm || Normalize(f.Label) == norm {
			return f.Key, true
		}
	}
	return "", false
}

// Empty returns a record with every section and field present and blank.
func (r *Registry) Empty() types.FormRecord {
	rec := make(types.FormRecord, len(r.schema.Sections))
	for _, sec := range r.schema.Sections {
		fields := make(map[string]string, len(sec.Fields))
		for _, f := range sec.Fields {
			fields[f.Key] = ""
		}
		rec[sec.Key] = fields
	}
	return rec
}

// ResponseSchema is the JSON Schema of the flat object providers are asked
// to return: every field key as an optional string property.
func (r *Registry) ResponseSchema() map[string]any {
	props := make(map[string]any, len(r.fieldSection))
	for _, key := range r.FieldKeys() {
		props[key] = map[string]any{
			"type":        "string",
			"description": r.fieldLabel[key],
		}
	}
	return map[string]any{
		"type":                 "object",
		"properties":           props,
		"additionalProperties": false,
	}
}

// RecordSchema is the JSON Schema a conforming FormRecord satisfies: every
// section and field required, nothing else allowed, all values strings.
func (r *Registry) RecordSchema() map[string]any {
	props := make(map[string]any, len(r.schema.Sections))
	required := make([]string, 0, len(r.schema.Sections))
	for _, sec := range r.schema.Sections {
		fieldProps := make(map[string]any, len(sec.Fields))
		fieldReq := make([]string, 0, len(sec.Fields))
		for _, f := range sec.Fields {
			fieldProps[f.Key] = map[string]any{"type": "string"}
			fieldReq = append(fieldReq, f.Key)
		}
		props[sec.Key] = map[string]any{
			"type":                 "object",
			"properties":           fieldProps,
			"required":             fieldReq,
			"additionalProperties": false,
		}
		required = append(required, sec.Key)
	}
	return map[string]any{
		"type":                 "object",
		"properties":           props,
		"required":             required,
		"additionalProperties": false,
	}
}

// Validate checks rec against RecordSchema.
func (r *Registry) Validate(rec types.FormRecord) error {
	r.recordOnce.Do(func() {
		b, err := json.Marshal(r.RecordSchema())
		if err != nil {
			r.recordErr = fmt.Errorf("marshal record schema: %w", err)
			return
		}
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource("record.json", bytes.NewReader(b)); err != nil {
			r.recordErr = fmt.Errorf("add record schema: %w", err)
			return
		}
		r.recordValidator, r.recordErr = compiler.Compile("record.json")
	})
	if r.recordErr != nil {
		return r.recordErr
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("unmarshal record: %w", err)
	}
	if v == nil {
		v = map[string]any{}
	}
	if err := r.recordValidator.Validate(v); err != nil {
		return fmt.Errorf("record does not match schema: %w", err)
	}
	return nil
}

// Normalize folds a key or title for loose matching: lower case, surrounding
// space trimmed, and runs of spaces, hyphens, slashes or ampersands collapsed
// to a single underscore.
func Normalize(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	var b strings.Builder
	sep := false
	for _, r := range s {
		switch r {
		case ' ', '-', '_', '/', '&', '.', '\t':
			sep = true
			continue
		}
		if sep && b.Len() > 0 {
			b.WriteByte('_')
		}
		sep = false
		b.WriteRune(r)
	}
	return b.String()
}

func validateDocument(doc *yaml.Node) error {
	var generic any
	if err := doc.Decode(&generic); err != nil {
		return fmt.Errorf("decoding schema: %w", err)
	}
	b, err := json.Marshal(generic)
	if err != nil {
		return fmt.Errorf("schema is not JSON-compatible: %w", err)
	}
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return fmt.Errorf("schema is not JSON-compatible: %w", err)
	}
	if err := documentValidator.Validate(v); err != nil {
		return fmt.Errorf("invalid schema: %w", err)
	}
	return nil
}

// mappingValue returns the value node for key in a mapping node, or nil.
func mappingValue(n *yaml.Node, key string) *yaml.Node {
	if n == nil || n.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(n.Content); i += 2 {
		if n.Content[i].Value == key {
			return n.Content[i+1]
		}
	}
	return nil
}

func cloneSchema(s types.Schema) types.Schema {
	out := types.Schema{Version: s.Version, Sections: make([]types.Section, len(s.Sections))}
	for i, sec := range s.Sections {
		sec.Fields = append([]types.Field(nil), sec.Fields...)
		out.Sections[i] = sec
	}
	return out
}
