// Package markdown turns untrusted author markdown into sanitized HTML plus
// derived metadata (plain-text excerpt, word count).
package markdown

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	ghtml "github.com/yuin/goldmark/renderer/html"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// DefaultExcerptLength is the excerpt cap in characters.
const DefaultExcerptLength = 160

// Result is the output of one pipeline run.
type Result struct {
	// HTML is the sanitized rendering of the source markdown.
	HTML string

	// Excerpt is the plain text of the source, whitespace-collapsed and
	// truncated.
	Excerpt string

	// WordCount counts whitespace-separated tokens of the raw markdown, not
	// of the rendered output.
	WordCount int
}

// Pipeline renders markdown. Stateless after construction; safe for
// concurrent use.
type Pipeline struct {
	md            goldmark.Markdown
	excerptLength int
}

// NewPipeline creates a Pipeline. excerptLength <= 0 selects the default.
func NewPipeline(excerptLength int) *Pipeline {
	if excerptLength <= 0 {
		excerptLength = DefaultExcerptLength
	}
	return &Pipeline{
		md: goldmark.New(
			goldmark.WithExtensions(extension.GFM),
			goldmark.WithParserOptions(parser.WithAutoHeadingID()),
			// Raw HTML passes through here so embedded fragments become real
			// nodes for the rewrite and sanitize stages. The sanitizer is the
			// trust boundary, not this renderer.
			goldmark.WithRendererOptions(ghtml.WithUnsafe()),
		),
		excerptLength: excerptLength,
	}
}

// Render runs the full pipeline on source: markdown parse (GFM), HTML
// conversion with raw fragments kept, re-parse into a node tree, img
// http->https upgrade, allow-list sanitization, serialization.
func (p *Pipeline) Render(source string) (Result, error) {
	var buf bytes.Buffer
	if err := p.md.Convert([]byte(source), &buf); err != nil {
		return Result{}, fmt.Errorf("convert markdown: %w", err)
	}

	nodes, err := parseFragment(buf.Bytes())
	if err != nil {
		return Result{}, fmt.Errorf("parse rendered html: %w", err)
	}

	upgradeImageURLs(nodes)
	nodes = sanitizeNodes(nodes)

	var out bytes.Buffer
	for _, n := range nodes {
		if err := html.Render(&out, n); err != nil {
			return Result{}, fmt.Errorf("serialize html: %w", err)
		}
	}

	return Result{
		HTML:      out.String(),
		Excerpt:   p.Excerpt(source),
		WordCount: WordCount(source),
	}, nil
}

func parseFragment(data []byte) ([]*html.Node, error) {
	body := &html.Node{
		Type:     html.ElementNode,
		Data:     "body",
		DataAtom: atom.Body,
	}
	return html.ParseFragment(bytes.NewReader(data), body)
}

// upgradeImageURLs rewrites every img src from http:// to https://, visiting
// all descendants with an explicit stack. URLs that are already secure or
// protocol-relative are left alone.
func upgradeImageURLs(nodes []*html.Node) {
	stack := make([]*html.Node, len(nodes))
	copy(stack, nodes)

	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if n.Type == html.ElementNode && n.Data == "img" {
			for i, attr := range n.Attr {
				if attr.Key == "src" && strings.HasPrefix(attr.Val, "http://") {
					n.Attr[i].Val = "https://" + strings.TrimPrefix(attr.Val, "http://")
				}
			}
		}

		for c := n.FirstChild; c != nil; c = c.NextSibling {
			stack = append(stack, c)
		}
	}
}

// WordCount counts the non-empty whitespace-separated tokens of raw
// markdown. Syntax characters count as parts of words; downstream reading
// time estimates accept that.
func WordCount(source string) int {
	return len(strings.Fields(source))
}
