// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/partnerform/internal/export"
	"github.com/pdiddy/partnerform/internal/wizard"
	"github.com/pdiddy/partnerform/pkg/types"
)

var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Fill the form in one run from a website, documents and typed values",
	Long: `Extract gathers the given website and documents, runs one extraction
attempt, applies --set values on top and writes the completed form.

Values given with --set always win over extracted ones. Keys may be field
keys (company_name) or labels ("Company Name").`,
	Example: `  partnerform extract --url acme.example
  partnerform extract --doc deck.pdf --doc brief.docx --format json --out form.json
  partnerform extract --set company_name="Acme Corp" --set contact_email=hi@acme.example`,
	RunE: runExtract,
}

func init() {
	extractCmd.Flags().String("url", "", "company website to read")
	extractCmd.Flags().StringArray("doc", nil, "document to read (repeatable): txt, md, html, xlsx, pdf, docx, pptx")
	extractCmd.Flags().StringArray("set", nil, "manual value key=value (repeatable)")
	extractCmd.Flags().String("format", "yaml", "output format: yaml, json or text")
	extractCmd.Flags().String("out", "", "write the form to this file instead of stdout")

	rootCmd.AddCommand(extractCmd)
}

func runExtract(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	url, _ := cmd.Flags().GetString("url")
	docs, _ := cmd.Flags().GetStringArray("doc")
	sets, _ := cmd.Flags().GetStringArray("set")
	formatName, _ := cmd.Flags().GetString("format")
	out, _ := cmd.Flags().GetString("out")

	format, err := export.ParseFormat(formatName)
	if err != nil {
		return err
	}
	manual, err := parseAssignments(sets)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	s := a.newSession()
	if err := fillSession(ctx, a, s, url, docs, manual, cmd.ErrOrStderr()); err != nil {
		return err
	}

	rec, err := s.Final()
	if err != nil {
		return err
	}
	if out != "" {
		if err := export.WriteFile(out, a.reg, rec); err != nil {
			return err
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "Wrote %s\n", out)
		return nil
	}
	return export.Write(cmd.OutOrStdout(), a.reg, rec, format)
}

// fillSession drives s from ChooseMethod to Export with the given inputs.
func fillSession(ctx context.Context, a *app, s *wizard.Session, url string, docs []string, manual map[string]string, status io.Writer) error {
	method := types.MethodManual
	switch {
	case url != "":
		method = types.MethodWebsite
	case len(docs) > 0:
		method = types.MethodDocuments
	}
	if err := s.ChooseMethod(method); err != nil {
		return err
	}
	if err := s.Next(); err != nil {
		return err
	}

	if url != "" {
		page, _, err := a.loadWebsite(ctx, s, url)
		if err != nil {
			return err
		}
		fmt.Fprintf(status, "Read %s (%d bytes of text)\n", page.URL, len(page.Text))
	}
	if len(docs) > 0 {
		n, _, err := a.loadDocuments(ctx, s, docs)
		if err != nil {
			return err
		}
		fmt.Fprintf(status, "Read %d document(s) (%d bytes of text)\n", len(docs), n)
	}
	for key, value := range manual {
		if err := s.SetManual(key, value); err != nil {
			return err
		}
	}
	if err := s.Next(); err != nil {
		return err
	}

	outcome, err := s.Extract(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintln(status, outcome.Message)

	if err := s.Next(); err != nil {
		return err
	}
	return s.Next()
}

// parseAssignments splits key=value pairs. Keys are trimmed; values keep
// their inner spacing but lose surrounding quotes.
func parseAssignments(pairs []string) (map[string]string, error) {
	out := make(map[string]string, len(pairs))
	for _, p := range pairs {
		key, value, ok := strings.Cut(p, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid value %q: want key=value", p)
		}
		value = strings.TrimSpace(value)
		if len(value) >= 2 && (value[0] == '"' && value[len(value)-1] == '"' || value[0] == '\'' && value[len(value)-1] == '\'') {
			value = value[1 : len(value)-1]
		}
		out[key] = value
	}
	return out, nil
}
