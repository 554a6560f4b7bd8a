// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package gather

import (
	"bytes"
	"context"
	"fmt"
	"os"

	"github.com/pdiddy/partnerform/internal/container"
)

// MarkitdownImage converts PDF, DOCX and PPTX documents to Markdown.
const MarkitdownImage = "markitdown:latest"

// markitdown pipes a document through the markitdown container.
type markitdown struct {
	runtime container.Runtime
}

// newMarkitdown checks that the image is present before returning.
func newMarkitdown(ctx context.Context, rt container.Runtime) (*markitdown, error) {
	if err := rt.ImageExists(ctx, MarkitdownImage); err != nil {
		return nil, fmt.Errorf("markitdown image not available in %s: %w", rt.Name(), err)
	}
	return &markitdown{runtime: rt}, nil
}

func (m *markitdown) convert(ctx context.Context, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	var out bytes.Buffer
	if err := m.runtime.Run(ctx, MarkitdownImage, f, &out); err != nil {
		return "", fmt.Errorf("converting %s with markitdown: %w", path, err)
	}
	if out.Len() == 0 {
		return "", fmt.Errorf("markitdown produced empty output for %s", path)
	}
	return out.String(), nil
}
