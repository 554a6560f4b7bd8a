// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package gather

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/pdiddy/partnerform/internal/bundle"
	"github.com/pdiddy/partnerform/internal/container"
	"github.com/pdiddy/partnerform/internal/logging"
)

// ErrUnsupportedFormat is returned for file types the parser cannot read.
var ErrUnsupportedFormat = errors.New("unsupported document format")

// maxParallelDocs bounds concurrent conversions.
const maxParallelDocs = 4

// Document is the text read from one uploaded file.
type Document struct {
	Path string
	Text string
}

// DocumentParser turns uploaded files into text. Plain text, Markdown, HTML
// and XLSX are read in process. PDF, DOCX and PPTX go through the markitdown
// container and need a runtime.
type DocumentParser struct {
	runtime container.Runtime
	logger  *zap.Logger

	once   sync.Once
	mkd    *markitdown
	mkdErr error
}

// NewDocumentParser returns a parser. A nil runtime disables container
// formats; those files fail with ErrUnsupportedFormat.
func NewDocumentParser(rt container.Runtime, logger *zap.Logger) *DocumentParser {
	return &DocumentParser{runtime: rt, logger: logging.OrNop(logger)}
}

// Parse reads every path and joins the texts with a newline in input order.
func (p *DocumentParser) Parse(ctx context.Context, paths []string) (string, error) {
	docs, err := p.ParseEach(ctx, paths)
	if err != nil {
		return "", err
	}
	texts := make([]string, 0, len(docs))
	for _, d := range docs {
		if d.Text != "" {
			texts = append(texts, d.Text)
		}
	}
	return strings.Join(texts, "\n"), nil
}

// ParseEach reads paths concurrently and returns one Document per path in
// input order. The first failure cancels the rest.
func (p *DocumentParser) ParseEach(ctx context.Context, paths []string) ([]Document, error) {
	docs := make([]Document, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelDocs)

	for i, path := range paths {
		g.Go(func() error {
			text, err := p.parseOne(gctx, path)
			if err != nil {
				return err
			}
			docs[i] = Document{Path: path, Text: text}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return docs, nil
}

func (p *DocumentParser) parseOne(ctx context.Context, path string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	ext := strings.ToLower(filepath.Ext(path))

	var (
		text string
		err  error
	)
	switch ext {
	case ".txt", ".md", ".markdown", ".csv":
		var data []byte
		data, err = os.ReadFile(path)
		text = string(data)
	case ".html", ".htm":
		var data []byte
		if data, err = os.ReadFile(path); err == nil {
			_, text, err = htmlToText(data)
		}
	case ".xlsx":
		text, err = readSpreadsheet(path)
	case ".pdf", ".docx", ".pptx":
		var m *markitdown
		if m, err = p.converter(ctx); err == nil {
			text, err = m.convert(ctx, path)
		}
	default:
		return "", fmt.Errorf("%s: %w %q", path, ErrUnsupportedFormat, ext)
	}
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", path, err)
	}

	text = bundle.Clean(text)
	p.logger.Debug("gather.document",
		zap.String("path", path),
		zap.String("format", ext),
		zap.Int("text_bytes", len(text)))
	return text, nil
}

// converter checks the markitdown image once per parser.
func (p *DocumentParser) converter(ctx context.Context) (*markitdown, error) {
	if p.runtime == nil {
		return nil, fmt.Errorf("%w: no container runtime for PDF/DOCX/PPTX conversion", ErrUnsupportedFormat)
	}
	p.once.Do(func() {
		p.mkd, p.mkdErr = newMarkitdown(ctx, p.runtime)
	})
	return p.mkd, p.mkdErr
}

// readSpreadsheet renders each sheet as a heading followed by one line per
// row with cells separated by " | ".
func readSpreadsheet(path string) (string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	var sb strings.Builder
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return "", fmt.Errorf("sheet %s: %w", sheet, err)
		}
		if len(rows) == 0 {
			continue
		}
		fmt.Fprintf(&sb, "## %s\n", sheet)
		for _, row := range rows {
			cells := make([]string, 0, len(row))
			for _, c := range row {
				if c = strings.TrimSpace(c); c != "" {
					cells = append(cells, c)
				}
			}
			if len(cells) > 0 {
				sb.WriteString(strings.Join(cells, " | "))
				sb.WriteByte('\n')
			}
		}
	}
	return sb.String(), nil
}
