// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package export writes a FormRecord for downstream consumers. Output keeps
// the schema's section and field order, and every record is validated
// against the schema before anything is written.
package export

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/partnerform/internal/schema"
	"github.com/pdiddy/partnerform/pkg/types"
)

// Format is an export encoding.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
	FormatText Format = "text"
)

// ParseFormat accepts "yaml", "yml", "json" and "text", case-insensitively.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "yaml", "yml":
		return FormatYAML, nil
	case "json":
		return FormatJSON, nil
	case "text", "txt":
		return FormatText, nil
	default:
		return "", fmt.Errorf("unknown export format %q (want yaml, json or text)", s)
	}
}

// FormatFromPath picks a format from a file extension, defaulting to YAML.
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON
	case ".txt":
		return FormatText
	default:
		return FormatYAML
	}
}

// Write encodes rec to w in format f.
func Write(w io.Writer, reg *schema.Registry, rec types.FormRecord, f Format) error {
	switch f {
	case FormatYAML, "":
		return WriteYAML(w, reg, rec)
	case FormatJSON:
		return WriteJSON(w, reg, rec)
	case FormatText:
		return WriteText(w, reg, rec)
	default:
		return fmt.Errorf("unknown export format %q", f)
	}
}

// WriteFile writes rec to path. The format comes from the extension.
func WriteFile(path string, reg *schema.Registry, rec types.FormRecord) error {
	var buf bytes.Buffer
	if err := Write(&buf, reg, rec, FormatFromPath(path)); err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating export directory: %w", err)
		}
	}
	return os.WriteFile(path, buf.Bytes(), 0o644)
}

// WriteYAML writes rec as a YAML mapping. Each section key carries its
// title as a comment.
func WriteYAML(w io.Writer, reg *schema.Registry, rec types.FormRecord) error {
	if err := reg.Validate(rec); err != nil {
		return err
	}

	root := &yaml.Node{Kind: yaml.MappingNode}
	for _, sec := range reg.Sections() {
		fields := &yaml.Node{Kind: yaml.MappingNode}
		for _, f := range sec.Fields {
			fields.Content = append(fields.Content,
				&yaml.Node{Kind: yaml.ScalarNode, Value: f.Key},
				&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: rec[sec.Key][f.Key]},
			)
		}
		root.Content = append(root.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Value: sec.Key, HeadComment: sec.Title},
			fields,
		)
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(root); err != nil {
		return fmt.Errorf("marshaling YAML: %w", err)
	}
	return enc.Close()
}

// WriteJSON writes rec as indented JSON.
func WriteJSON(w io.Writer, reg *schema.Registry, rec types.FormRecord) error {
	if err := reg.Validate(rec); err != nil {
		return err
	}

	var compact bytes.Buffer
	compact.WriteByte('{')
	for i, sec := range reg.Sections() {
		if i > 0 {
			compact.WriteByte(',')
		}
		writeJSONString(&compact, sec.Key)
		compact.WriteString(":{")
		for j, f := range sec.Fields {
			if j > 0 {
				compact.WriteByte(',')
			}
			writeJSONString(&compact, f.Key)
			compact.WriteByte(':')
			writeJSONString(&compact, rec[sec.Key][f.Key])
		}
		compact.WriteByte('}')
	}
	compact.WriteByte('}')

	var out bytes.Buffer
	if err := json.Indent(&out, compact.Bytes(), "", "  "); err != nil {
		return fmt.Errorf("marshaling JSON: %w", err)
	}
	out.WriteByte('\n')
	_, err := out.WriteTo(w)
	return err
}

func writeJSONString(buf *bytes.Buffer, s string) {
	b, _ := json.Marshal(s)
	buf.Write(b)
}

// WriteText renders rec for people: section titles followed by labelled
// values, blanks shown as "-".
func WriteText(w io.Writer, reg *schema.Registry, rec types.FormRecord) error {
	if err := reg.Validate(rec); err != nil {
		return err
	}
	var sb strings.Builder
	for i, sec := range reg.Sections() {
		if i > 0 {
			sb.WriteByte('\n')
		}
		sb.WriteString(sec.Title)
		sb.WriteByte('\n')
		for _, f := range sec.Fields {
			v := rec[sec.Key][f.Key]
			if strings.TrimSpace(v) == "" {
				v = "-"
			}
			fmt.Fprintf(&sb, "  %s: %s\n", f.Label, v)
		}
	}
	_, err := io.WriteString(w, sb.String())
	return err
}
