// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package gather

import (
	"bytes"
	"fmt"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/JohannesKaufmann/html-to-markdown/plugin"
	"golang.org/x/net/html"

	"github.com/pdiddy/partnerform/internal/bundle"
)

// invisible elements never carry company facts.
var invisible = map[string]bool{
	"script": true, "style": true, "noscript": true, "template": true,
	"svg": true, "iframe": true, "object": true, "embed": true,
	"form": true, "button": true, "input": true, "select": true,
}

// htmlToText converts an HTML page to Markdown-flavoured text. Invisible
// elements are removed and blank lines dropped. The page title is returned
// separately.
func htmlToText(content []byte) (title, text string, err error) {
	doc, err := html.Parse(bytes.NewReader(content))
	if err != nil {
		return "", "", fmt.Errorf("parsing HTML: %w", err)
	}

	title = findTitle(doc)
	prune(doc)

	root := findElement(doc, "body")
	if root == nil {
		root = doc
	}
	var sb strings.Builder
	if err := html.Render(&sb, root); err != nil {
		return "", "", fmt.Errorf("rendering HTML: %w", err)
	}

	conv := md.NewConverter("", true, nil)
	conv.Use(plugin.GitHubFlavored())
	markdown, err := conv.ConvertString(sb.String())
	if err != nil {
		return "", "", fmt.Errorf("converting HTML to markdown: %w", err)
	}
	return title, bundle.Clean(markdown), nil
}

func findTitle(n *html.Node) string {
	if t := findElement(n, "title"); t != nil && t.FirstChild != nil {
		return strings.TrimSpace(t.FirstChild.Data)
	}
	return ""
}

// findElement returns the first element with the given tag, depth first.
func findElement(n *html.Node, tag string) *html.Node {
	if n.Type == html.ElementNode && n.Data == tag {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findElement(c, tag); found != nil {
			return found
		}
	}
	return nil
}

// prune removes invisible elements and comments in place.
func prune(n *html.Node) {
	var drop []*html.Node
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.CommentNode || (c.Type == html.ElementNode && invisible[c.Data]) {
			drop = append(drop, c)
			continue
		}
		prune(c)
	}
	for _, c := range drop {
		n.RemoveChild(c)
	}
}
