// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/partnerform/pkg/types"
)

func TestParseAssignments(t *testing.T) {
	got, err := parseAssignments([]string{
		"company_name=Acme Corp",
		` Contact Email = "hi@acme.test" `,
		"additional_notes='a=b'",
		"risk_liability=",
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"company_name":     "Acme Corp",
		"Contact Email":    "hi@acme.test",
		"additional_notes": "a=b",
		"risk_liability":   "",
	}, got)

	for _, bad := range []string{"no-equals", "=value", "  =x"} {
		_, err := parseAssignments([]string{bad})
		assert.Error(t, err, bad)
	}
}

func TestDecodeConfig(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		v := viper.New()
		setDefaults(v)
		cfg, err := decodeConfig(v)
		require.NoError(t, err)

		assert.Equal(t, types.ProviderOpenAI, cfg.Provider.Name)
		assert.Equal(t, 60*time.Second, cfg.Provider.Timeout)
		assert.Equal(t, 1, cfg.Provider.MaxRetries)
		assert.Equal(t, 1500, cfg.Provider.MaxTokens)
		assert.Equal(t, types.FallbackLabels, cfg.Extraction.Fallback)
		assert.Equal(t, 20*time.Second, cfg.Gather.Timeout)
		assert.Equal(t, defaultUserAgent, cfg.Gather.UserAgent)
		assert.Empty(t, cfg.CallLog.Path)
	})

	t.Run("file overrides", func(t *testing.T) {
		v := viper.New()
		setDefaults(v)
		v.SetConfigType("yaml")
		require.NoError(t, v.ReadConfig(strings.NewReader(`
provider:
  name: cohere
  model: command-r
  timeout: 15s
  temperature: 0.2
extraction:
  fallback: none
gather:
  use_container: true
calllog:
  path: /tmp/calls.db
`)))
		cfg, err := decodeConfig(v)
		require.NoError(t, err)

		assert.Equal(t, types.ProviderCohere, cfg.Provider.Name)
		assert.Equal(t, "command-r", cfg.Provider.Model)
		assert.Equal(t, 15*time.Second, cfg.Provider.Timeout)
		require.NotNil(t, cfg.Provider.Temperature)
		assert.InDelta(t, 0.2, *cfg.Provider.Temperature, 1e-9)
		assert.Equal(t, types.FallbackNone, cfg.Extraction.Fallback)
		assert.True(t, cfg.Gather.UseContainer)
		assert.Equal(t, "/tmp/calls.db", cfg.CallLog.Path)
	})

	t.Run("rejects unknown names", func(t *testing.T) {
		for key, val := range map[string]string{"provider.name": "hal9000", "extraction.fallback": "guess"} {
			v := viper.New()
			setDefaults(v)
			v.Set(key, val)
			_, err := decodeConfig(v)
			assert.ErrorContains(t, err, val)
		}
	})
}

const acmeReply = `Here is the completed form:
{"company_name": "Acme Corp", "company_url": "https://acme.test", "num_employees": 250}`

func staticApp(t *testing.T, reply string) *app {
	t.Helper()
	v := viper.New()
	setDefaults(v)
	v.Set("provider.name", "static")
	v.Set("provider.static_response", reply)
	cfg, err := decodeConfig(v)
	require.NoError(t, err)

	a, err := newApp(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })
	return a
}

func TestFillSessionWebsite(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, "<html><body><h1>Acme Corp</h1><p>Rockets since 1999.</p></body></html>")
	}))
	defer srv.Close()

	a := staticApp(t, acmeReply)
	s := a.newSession()
	var status bytes.Buffer

	err := fillSession(context.Background(), a, s, srv.URL, nil,
		map[string]string{"Company Name": "ACME Corporation"}, &status)
	require.NoError(t, err)

	rec, err := s.Final()
	require.NoError(t, err)
	assert.Equal(t, "ACME Corporation", rec.Get("company_information", "company_name"))
	assert.Equal(t, "https://acme.test", rec.Get("company_information", "company_url"))
	assert.Equal(t, "250", rec.Get("company_information", "num_employees"))
	assert.Contains(t, status.String(), "Read "+srv.URL)
	assert.Contains(t, status.String(), "Extracted 3 field(s)")
}

func TestFillSessionDocumentsWithoutProvider(t *testing.T) {
	dir := t.TempDir()
	doc := filepath.Join(dir, "notes.md")
	require.NoError(t, os.WriteFile(doc, []byte("# Notes\nPartner Name: Globex\nContact Email: hi@acme.test\n"), 0o644))

	a := staticApp(t, "")
	s := a.newSession()
	var status bytes.Buffer

	require.NoError(t, fillSession(context.Background(), a, s, "", []string{doc}, nil, &status))

	rec, err := s.Final()
	require.NoError(t, err)
	assert.Equal(t, "Globex", rec.Get("partnership_details", "partner_name"))
	assert.Contains(t, status.String(), "No API key is configured")
}

func TestFillSessionNothingToExport(t *testing.T) {
	a := staticApp(t, "")
	err := fillSession(context.Background(), a, a.newSession(), "", nil, nil, &bytes.Buffer{})
	assert.ErrorContains(t, err, "no values to export")
}

func TestREPL(t *testing.T) {
	a := staticApp(t, acmeReply)
	outPath := filepath.Join(t.TempDir(), "form.yaml")

	script := strings.Join([]string{
		"help",
		"next",
		"method manual",
		"next",
		"set contact_email=hi@acme.test",
		"set mascot=coyote",
		"next",
		"extract",
		"history",
		"next",
		"edit Partner Name=Globex",
		"show",
		"state",
		"next",
		"export " + outPath,
		"frobnicate",
		"quit",
		"state",
	}, "\n")

	var out bytes.Buffer
	r := newREPL(a, &out)
	require.NoError(t, r.run(context.Background(), strings.NewReader(script)))

	text := out.String()
	assert.Contains(t, text, "commands:")
	assert.Contains(t, text, "error: choose an input method first")
	assert.Contains(t, text, `error: unknown form field "mascot"`)
	assert.Contains(t, text, "Extracted 3 field(s)")
	assert.Contains(t, text, "static")
	assert.Contains(t, text, "  Partner Name: Globex")
	assert.Contains(t, text, "step=edit_form method=manual")
	assert.Contains(t, text, "wrote "+outPath)
	assert.Contains(t, text, `unknown command "frobnicate"`)
	assert.Equal(t, 1, strings.Count(text, "step="), "nothing runs after quit")

	data, err := os.ReadFile(outPath)
	require.NoError(t, err)
	var rec types.FormRecord
	require.NoError(t, yaml.Unmarshal(data, &rec))
	assert.Equal(t, "Acme Corp", rec.Get("company_information", "company_name"))
	assert.Equal(t, "hi@acme.test", rec.Get("miscellaneous_notes", "contact_email"))
	assert.Equal(t, "Globex", rec.Get("partnership_details", "partner_name"))
}

func TestREPLReadsSourceOnce(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := hits.Add(1)
		w.Header().Set("Content-Type", "text/plain")
		fmt.Fprintf(w, "Acme Corp page %d\n", n)
	}))
	defer srv.Close()

	doc := filepath.Join(t.TempDir(), "brief.txt")
	require.NoError(t, os.WriteFile(doc, []byte("Partner Name: Globex\n"), 0o644))

	a := staticApp(t, acmeReply)
	var out bytes.Buffer
	r := newREPL(a, &out)
	script := strings.Join([]string{
		"method website",
		"next",
		"url " + srv.URL,
		"url " + srv.URL,
		"doc " + doc,
		"doc " + doc,
		"reset",
		"method website",
		"next",
		"url " + srv.URL,
	}, "\n")
	require.NoError(t, r.run(context.Background(), strings.NewReader(script)))

	assert.Equal(t, int32(2), hits.Load(), "one fetch before reset, one after")
	assert.Equal(t, 1, strings.Count(out.String(), "already read "+srv.URL))
	assert.Equal(t, 1, strings.Count(out.String(), "already read these document(s)"))

	_, text, ok := r.s.ParsedWebsite()
	require.True(t, ok)
	assert.Equal(t, "Acme Corp page 2", text)
}

func TestREPLExportGate(t *testing.T) {
	a := staticApp(t, acmeReply)
	var out bytes.Buffer
	r := newREPL(a, &out)
	require.NoError(t, r.run(context.Background(), strings.NewReader("export\nshow\n")))
	assert.Contains(t, out.String(), "not available at this step")
	assert.Contains(t, out.String(), "the form is empty")
}
