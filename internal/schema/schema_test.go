// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package schema

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/partnerform/pkg/types"
)

func TestDefault(t *testing.T) {
	reg := Default()
	require.NotNil(t, reg)

	secs := reg.Sections()
	require.Len(t, secs, 5)
	assert.Equal(t, "company_information", secs[0].Key)
	assert.Equal(t, "Company Information", secs[0].Title)
	assert.Equal(t, "miscellaneous_notes", secs[4].Key)
	assert.Empty(t, secs[4].Description)

	keys := reg.FieldKeys()
	assert.Len(t, keys, 21)
	assert.Equal(t, "company_name", keys[0])
	assert.Equal(t, "contact_email", keys[len(keys)-1])
	assert.Equal(t, "1", reg.Version())
}

func TestParseKeepsFileOrder(t *testing.T) {
	doc := `
zeta:
  title: Last Alphabetically
  fields:
    z_two: Two
    a_one: One
alpha:
  fields:
    m_three: Three
`
	reg, err := Parse([]byte(doc))
	require.NoError(t, err)

	secs := reg.Sections()
	require.Len(t, secs, 2)
	assert.Equal(t, "zeta", secs[0].Key)
	assert.Equal(t, "alpha", secs[1].Key)
	assert.Equal(t, "alpha", secs[1].Title, "title defaults to key")
	assert.Equal(t, []string{"z_two", "a_one", "m_three"}, reg.FieldKeys())
	assert.Empty(t, reg.Version())
}

func TestParseJSON(t *testing.T) {
	doc := `{"version": 2, "sections": {"Company": {"title": "Company", "fields": {"name": "Name", "url": "Website"}}}}`
	reg, err := Parse([]byte(doc))
	require.NoError(t, err)
	assert.Equal(t, "2", reg.Version())
	assert.Equal(t, []string{"name", "url"}, reg.FieldKeys())
}

func TestParseRejects(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{name: "empty document", doc: ""},
		{name: "scalar document", doc: "just text"},
		{name: "section without fields", doc: "a:\n  title: A\n"},
		{name: "empty fields", doc: "a:\n  fields: {}\n"},
		{name: "non-string label", doc: "a:\n  fields:\n    x: [1, 2]\n"},
		{name: "unknown section property", doc: "a:\n  colour: red\n  fields:\n    x: X\n"},
		{name: "duplicate field across sections", doc: "a:\n  fields:\n    x: X\nb:\n  fields:\n    x: Also X\n"},
		{name: "duplicate section key", doc: "a:\n  fields:\n    x: X\na:\n  fields:\n    y: Y\n"},
		{name: "blank field key", doc: "a:\n  fields:\n    \" \": X\n"},
		{name: "unknown top-level key", doc: "version: 1\nsections:\n  a:\n    fields:\n      x: X\nextra: true\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc))
			assert.Error(t, err)
		})
	}
}

func TestLoad(t *testing.T) {
	t.Run("empty path uses default", func(t *testing.T) {
		reg, err := Load("")
		require.NoError(t, err)
		assert.Same(t, Default(), reg)
	})

	t.Run("file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "schema.yaml")
		require.NoError(t, os.WriteFile(path, []byte("Company:\n  fields:\n    name: Name\n    url: URL\n"), 0o644))
		reg, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, []string{"name", "url"}, reg.FieldKeys())
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
		assert.Error(t, err)
	})
}

func TestNewRejectsDuplicates(t *testing.T) {
	_, err := New(types.Schema{Sections: []types.Section{
		{Key: "a", Fields: []types.Field{{Key: "x"}}},
		{Key: "b", Fields: []types.Field{{Key: "x"}}},
	}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"x"`)

	_, err = New(types.Schema{})
	assert.Error(t, err)
}

func TestResolve(t *testing.T) {
	reg := Default()

	tests := []struct {
		name      string
		in        string
		wantSec   string
		wantField string
		wantOK    bool
	}{
		{"exact key", "company_name", "company_information", "company_name", true},
		{"case and spacing", "Company Name", "company_information", "company_name", true},
		{"hyphenated", "contact-email", "miscellaneous_notes", "contact_email", true},
		{"by label", "Year Founded", "company_information", "founding_year", true},
		{"unknown", "favourite_colour", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sec, field, ok := reg.ResolveField(tt.in)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantSec, sec)
			assert.Equal(t, tt.wantField, field)
		})
	}

	sec, ok := reg.ResolveSection("Legal & Financial Information")
	assert.True(t, ok)
	assert.Equal(t, "legal_financial_information", sec)

	sec, ok = reg.ResolveSection("Product / Service Description")
	assert.True(t, ok)
	assert.Equal(t, "product_service_description", sec)

	_, ok = reg.ResolveSection("Pricing")
	assert.False(t, ok)

	f, ok := reg.FieldInSection("partnership_details", "Partner Name")
	assert.True(t, ok)
	assert.Equal(t, "partner_name", f)

	_, ok = reg.FieldInSection("partnership_details", "company_name")
	assert.False(t, ok, "field belongs to another section")
}

func TestEmptyAndValidate(t *testing.T) {
	reg := Default()

	rec := reg.Empty()
	require.NoError(t, reg.Validate(rec))
	assert.False(t, rec.HasContent())
	for _, sec := range reg.Sections() {
		for _, f := range sec.Fields {
			v, ok := rec[sec.Key][f.Key]
			assert.True(t, ok, "%s.%s missing", sec.Key, f.Key)
			assert.Equal(t, "", v)
		}
	}

	extra := reg.Empty()
	extra["company_information"]["stock_ticker"] = "ACME"
	assert.Error(t, reg.Validate(extra))

	missing := reg.Empty()
	delete(missing["partnership_details"], "partner_name")
	assert.Error(t, reg.Validate(missing))

	noSection := reg.Empty()
	delete(noSection, "miscellaneous_notes")
	assert.Error(t, reg.Validate(noSection))

	assert.Error(t, reg.Validate(nil))
}

func TestResponseSchema(t *testing.T) {
	reg := Default()
	rs := reg.ResponseSchema()
	props, ok := rs["properties"].(map[string]any)
	require.True(t, ok)
	assert.Len(t, props, len(reg.FieldKeys()))
	assert.Contains(t, props, "hq_location")
}

func TestNormalize(t *testing.T) {
	tests := map[string]string{
		"Company Name":                  "company_name",
		"  company_name ":               "company_name",
		"Product / Service Description": "product_service_description",
		"Risk & Liability":              "risk_liability",
		"contact-email":                 "contact_email",
		"":                              "",
	}
	for in, want := range tests {
		assert.Equal(t, want, Normalize(in), "Normalize(%q)", in)
	}
}
