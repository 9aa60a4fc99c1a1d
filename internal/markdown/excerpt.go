package markdown

import (
	"regexp"
	"strings"

	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

var whitespaceRun = regexp.MustCompile(`\s+`)

// Excerpt extracts the plain text of source: every text leaf of the markdown
// tree joined with single spaces, whitespace collapsed, trimmed, and
// truncated to the pipeline's excerpt length with a trailing ellipsis marker
// if cut. The walk is an explicit stack-based traversal.
func (p *Pipeline) Excerpt(source string) string {
	src := []byte(source)
	doc := p.md.Parser().Parse(text.NewReader(src))

	var parts []string
	stack := []ast.Node{doc}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		switch t := n.(type) {
		case *ast.Text:
			if v := string(t.Segment.Value(src)); v != "" {
				parts = append(parts, v)
			}
		case *ast.String:
			if len(t.Value) > 0 {
				parts = append(parts, string(t.Value))
			}
		}

		// push in reverse so children pop in document order
		for c := n.LastChild(); c != nil; c = c.PreviousSibling() {
			stack = append(stack, c)
		}
	}

	cleaned := strings.TrimSpace(whitespaceRun.ReplaceAllString(strings.Join(parts, " "), " "))

	runes := []rune(cleaned)
	if len(runes) > p.excerptLength {
		cleaned = string(runes[:p.excerptLength]) + "..."
	}
	return cleaned
}
