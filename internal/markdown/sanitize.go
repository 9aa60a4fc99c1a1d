package markdown

import (
	"net/url"
	"regexp"

	"golang.org/x/net/html"
)

// The sanitizer keeps only explicitly permitted tags and, per tag, explicitly
// permitted attributes. A disallowed tag is dropped and its children promoted
// into its place, except for tags whose whole subtree is unsafe. This is the
// trust boundary: author markup must never reach output unsanitized.

// allowedTags is the generic safe-markup baseline plus four extensions:
// font, mark, iframe and section.
var allowedTags = map[string]bool{
	"a": true, "abbr": true, "b": true, "blockquote": true, "br": true,
	"caption": true, "cite": true, "code": true, "dd": true, "del": true,
	"details": true, "dfn": true, "div": true, "dl": true, "dt": true,
	"em": true, "figcaption": true, "figure": true, "h1": true, "h2": true,
	"h3": true, "h4": true, "h5": true, "h6": true, "hr": true, "i": true,
	"img": true, "input": true, "ins": true, "kbd": true, "li": true,
	"ol": true, "p": true, "pre": true, "q": true, "s": true, "samp": true,
	"small": true, "span": true, "strike": true, "strong": true, "sub": true,
	"summary": true, "sup": true, "table": true, "tbody": true, "td": true,
	"tfoot": true, "th": true, "thead": true, "tr": true, "u": true,
	"ul": true, "var": true,
	"font": true, "mark": true, "iframe": true, "section": true,
}

// unsafeSubtree tags are removed along with everything inside them.
var unsafeSubtree = map[string]bool{
	"script": true, "style": true, "noscript": true, "object": true,
	"embed": true, "applet": true, "base": true, "form": true,
	"link": true, "meta": true, "textarea": true, "title": true,
}

var globalAttrs = map[string]bool{
	"id":    true,
	"class": true,
	"title": true,
	"dir":   true,
	"lang":  true,
}

var tagAttrs = map[string]map[string]bool{
	"a":   {"href": true, "rel": true},
	"img": {"src": true, "alt": true, "width": true, "height": true, "longdesc": true},
	"ol":  {"start": true, "type": true},
	"li":  {"value": true},
	"td":  {"align": true, "colspan": true, "rowspan": true},
	"th":  {"align": true, "colspan": true, "rowspan": true, "scope": true},
	"del": {"cite": true, "datetime": true},
	"ins": {"cite": true, "datetime": true},
	"q":   {"cite": true},
	// task list markers
	"input": {"type": true, "checked": true, "disabled": true},
	// text styling keeps its color
	"font": {"color": true},
	// embed widgets hang their wiring off blockquotes
	"blockquote": {
		"cite":                    true,
		"data-bluesky-uri":        true,
		"data-bluesky-cid":        true,
		"data-instgrm-captioned":  true,
		"data-instgrm-permalink":  true,
		"data-instgrm-version":    true,
	},
	// iframes are presentation-only; src is constrained separately
	"iframe": {
		"src": true, "width": true, "height": true, "frameborder": true,
		"allow": true, "referrerpolicy": true, "allowfullscreen": true,
		"style": true, "seamless": true,
	},
	// footnote container emitted by GFM renderers
	"section": {"data-footnotes": true},
}

// iframeSrcPattern is the only shape of iframe src we will serve: the two
// known video/audio hosts, always over https.
var iframeSrcPattern = regexp.MustCompile(`^https://(www\.youtube\.com|bandcamp\.com)/.*`)

// urlAttrs marks attributes whose values are URLs and need scheme vetting.
var urlAttrs = map[string]bool{
	"href":     true,
	"src":      true,
	"cite":     true,
	"longdesc": true,
}

// sanitizeNodes filters a node list against the allow-lists, returning a
// newly built tree. Input nodes are not modified.
func sanitizeNodes(nodes []*html.Node) []*html.Node {
	var out []*html.Node
	for _, n := range nodes {
		out = append(out, sanitizeNode(n)...)
	}
	return out
}

// sanitizeNode returns the sanitized replacement for n: the node itself
// (rebuilt), its promoted children, or nothing.
func sanitizeNode(n *html.Node) []*html.Node {
	switch n.Type {
	case html.TextNode:
		return []*html.Node{{Type: html.TextNode, Data: n.Data}}

	case html.ElementNode:
		tag := n.Data
		if unsafeSubtree[tag] {
			return nil
		}
		if tag == "iframe" && !iframeSrcAllowed(n) {
			return nil
		}

		var children []*html.Node
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			children = append(children, sanitizeNode(c)...)
		}

		if !allowedTags[tag] {
			return children
		}

		clean := &html.Node{
			Type:     html.ElementNode,
			Data:     tag,
			DataAtom: n.DataAtom,
			Attr:     sanitizeAttrs(tag, n.Attr),
		}
		for _, c := range children {
			clean.AppendChild(c)
		}
		return []*html.Node{clean}

	default:
		// comments, doctypes, anything exotic
		return nil
	}
}

func sanitizeAttrs(tag string, attrs []html.Attribute) []html.Attribute {
	var out []html.Attribute
	for _, attr := range attrs {
		if attr.Namespace != "" {
			continue
		}
		if !globalAttrs[attr.Key] && !tagAttrs[tag][attr.Key] {
			continue
		}
		if urlAttrs[attr.Key] && tag != "iframe" && !safeURL(attr.Val) {
			continue
		}
		out = append(out, attr)
	}
	return out
}

func iframeSrcAllowed(n *html.Node) bool {
	for _, attr := range n.Attr {
		if attr.Key == "src" {
			return iframeSrcPattern.MatchString(attr.Val)
		}
	}
	return false
}

// safeURL accepts relative URLs and the http, https and mailto schemes.
func safeURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	switch u.Scheme {
	case "", "http", "https", "mailto":
		return true
	}
	return false
}
