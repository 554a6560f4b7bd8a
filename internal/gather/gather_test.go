// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package gather

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/goleak"

	"github.com/pdiddy/partnerform/internal/httputil"
	"github.com/pdiddy/partnerform/pkg/types"
)

func TestMain(m *testing.M) {
	httputil.RetryBaseDelay = time.Millisecond
	goleak.VerifyTestMain(m)
}

const acmePage = `<!DOCTYPE html>
<html>
<head><title> Acme Corp </title><style>body { color: red }</style></head>
<body>
  <script>var tracking = "do not include";</script>
  <!-- build 42 -->
  <h1>Acme Corp</h1>

  <p>Founded in 1999 in Springfield.</p>
  <form><input name="q"><button>Search</button></form>
  <footer><a href="mailto:hello@acme.test">hello@acme.test</a></footer>
</body>
</html>`

func TestHTMLToText(t *testing.T) {
	title, text, err := htmlToText([]byte(acmePage))
	require.NoError(t, err)

	assert.Equal(t, "Acme Corp", title)
	assert.Contains(t, text, "Acme Corp")
	assert.Contains(t, text, "Founded in 1999 in Springfield.")
	assert.Contains(t, text, "hello@acme.test")
	assert.NotContains(t, text, "tracking")
	assert.NotContains(t, text, "color: red")
	assert.NotContains(t, text, "build 42")
	assert.NotContains(t, text, "Search")
	assert.NotContains(t, text, "\n\n", "blank lines are dropped")
}

func TestNormalizeURL(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "acme.test", want: "https://acme.test"},
		{in: "  http://acme.test/about ", want: "http://acme.test/about"},
		{in: "https://acme.test/x?y=1", want: "https://acme.test/x?y=1"},
		{in: "", wantErr: true},
		{in: "ftp://acme.test", wantErr: true},
		{in: "https://", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := NormalizeURL(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFetchHTML(t *testing.T) {
	var gotUA atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA.Store(r.Header.Get("User-Agent"))
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, acmePage)
	}))
	defer srv.Close()

	f := NewWebsiteFetcher(types.HTTPConfig{UserAgent: "test-agent"}, srv.Client(), nil)
	page, err := f.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)

	assert.Equal(t, srv.URL, page.URL)
	assert.Equal(t, "Acme Corp", page.Title)
	assert.Contains(t, page.Text, "Founded in 1999")
	assert.Equal(t, "test-agent", gotUA.Load())
}

func TestFetchPlainText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		fmt.Fprint(w, "  Acme Corp  \n\n\nRockets\n")
	}))
	defer srv.Close()

	page, err := NewWebsiteFetcher(types.HTTPConfig{}, srv.Client(), nil).Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "Acme Corp\nRockets", page.Text)
	assert.Empty(t, page.Title)
}

func TestFetchRetriesRateLimit(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, "<p>ok</p>")
	}))
	defer srv.Close()

	page, err := NewWebsiteFetcher(types.HTTPConfig{}, srv.Client(), nil).Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "ok", page.Text)
	assert.Equal(t, int32(2), calls.Load())
}

func TestFetchErrors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		wantErr string
	}{
		{
			name:    "not found",
			handler: func(w http.ResponseWriter, r *http.Request) { http.NotFound(w, r) },
			wantErr: "status 404",
		},
		{
			name: "binary content",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/octet-stream")
				w.Write([]byte{0, 1, 2})
			},
			wantErr: "unsupported content type",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			_, err := NewWebsiteFetcher(types.HTTPConfig{}, srv.Client(), nil).Fetch(context.Background(), srv.URL)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestFetchTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	f := NewWebsiteFetcher(types.HTTPConfig{Timeout: 50 * time.Millisecond}, srv.Client(), nil)
	_, err := f.Fetch(context.Background(), srv.URL)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

// --- documents ---

// fakeRuntime echoes a fixed conversion for any input.
type fakeRuntime struct {
	imageErr error
	runErr   error
	output   string
	runs     atomic.Int32
}

func (f *fakeRuntime) Name() string                              { return "fake" }
func (f *fakeRuntime) Available(context.Context) bool            { return true }
func (f *fakeRuntime) ImageExists(context.Context, string) error { return f.imageErr }
func (f *fakeRuntime) Run(_ context.Context, _ string, stdin io.Reader, stdout io.Writer) error {
	f.runs.Add(1)
	if f.runErr != nil {
		return f.runErr
	}
	if _, err := io.Copy(io.Discard, stdin); err != nil {
		return err
	}
	_, err := io.WriteString(stdout, f.output)
	return err
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func writeSpreadsheet(t *testing.T, dir string) string {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	require.NoError(t, f.SetCellValue("Sheet1", "A1", "Company"))
	require.NoError(t, f.SetCellValue("Sheet1", "B1", "Acme Corp"))
	require.NoError(t, f.SetCellValue("Sheet1", "A2", "Employees"))
	require.NoError(t, f.SetCellValue("Sheet1", "B2", 250))
	path := filepath.Join(dir, "facts.xlsx")
	require.NoError(t, f.SaveAs(path))
	return path
}

func TestParseDocumentsInOrder(t *testing.T) {
	dir := t.TempDir()
	paths := []string{
		writeFile(t, dir, "notes.txt", "  first line \n\n second line\n"),
		writeFile(t, dir, "about.html", "<html><body><h2>About</h2><script>x()</script><p>Rockets</p></body></html>"),
		writeSpreadsheet(t, dir),
		writeFile(t, dir, "readme.md", "# Readme\n"),
	}

	docs, err := NewDocumentParser(nil, nil).ParseEach(context.Background(), paths)
	require.NoError(t, err)
	require.Len(t, docs, 4)

	for i, d := range docs {
		assert.Equal(t, paths[i], d.Path)
	}
	assert.Equal(t, "first line\nsecond line", docs[0].Text)
	assert.Contains(t, docs[1].Text, "About")
	assert.Contains(t, docs[1].Text, "Rockets")
	assert.NotContains(t, docs[1].Text, "x()")
	assert.Equal(t, "## Sheet1\nCompany | Acme Corp\nEmployees | 250", docs[2].Text)
	assert.Equal(t, "# Readme", docs[3].Text)

	joined, err := NewDocumentParser(nil, nil).Parse(context.Background(), paths)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(joined, "first line\nsecond line\n"))
	assert.True(t, strings.HasSuffix(joined, "\n# Readme"))
}

func TestParseDocumentsContainerFormats(t *testing.T) {
	dir := t.TempDir()
	pdf := writeFile(t, dir, "deck.pdf", "%PDF-1.4")
	docx := writeFile(t, dir, "brief.DOCX", "PK")

	rt := &fakeRuntime{output: "# Converted\n\nAcme builds rockets.\n"}
	docs, err := NewDocumentParser(rt, nil).ParseEach(context.Background(), []string{pdf, docx})
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "# Converted\nAcme builds rockets.", docs[0].Text)
	assert.Equal(t, int32(2), rt.runs.Load())
}

func TestParseDocumentsErrors(t *testing.T) {
	dir := t.TempDir()
	pdf := writeFile(t, dir, "deck.pdf", "%PDF-1.4")

	tests := []struct {
		name    string
		rt      *fakeRuntime
		paths   []string
		wantIs  error
		wantMsg string
	}{
		{
			name:   "unknown extension",
			paths:  []string{writeFile(t, dir, "image.png", "")},
			wantIs: ErrUnsupportedFormat,
		},
		{
			name:   "pdf without runtime",
			paths:  []string{pdf},
			wantIs: ErrUnsupportedFormat,
		},
		{
			name:    "image missing",
			rt:      &fakeRuntime{imageErr: errors.New("no such image")},
			paths:   []string{pdf},
			wantMsg: "markitdown image not available",
		},
		{
			name:    "empty conversion",
			rt:      &fakeRuntime{},
			paths:   []string{pdf},
			wantMsg: "empty output",
		},
		{
			name:    "missing file",
			paths:   []string{filepath.Join(dir, "gone.txt")},
			wantMsg: "gone.txt",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var p *DocumentParser
			if tt.rt != nil {
				p = NewDocumentParser(tt.rt, nil)
			} else {
				p = NewDocumentParser(nil, nil)
			}
			_, err := p.Parse(context.Background(), tt.paths)
			require.Error(t, err)
			if tt.wantIs != nil {
				assert.ErrorIs(t, err, tt.wantIs)
			}
			if tt.wantMsg != "" {
				assert.Contains(t, err.Error(), tt.wantMsg)
			}
		})
	}
}

func TestParseDocumentsCancelled(t *testing.T) {
	dir := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewDocumentParser(nil, nil).Parse(ctx, []string{writeFile(t, dir, "a.txt", "a")})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestParseNoDocuments(t *testing.T) {
	text, err := NewDocumentParser(nil, nil).Parse(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, text)
}
