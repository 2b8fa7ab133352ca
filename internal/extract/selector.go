package extract

import (
	"strconv"
	"strings"

	"golang.org/x/net/html"
)

// maxSelectorDepth caps how many ancestor segments a path selector carries.
// Deeper paths add noise without improving addressability.
const maxSelectorDepth = 5

// attributeAllowlist is the attribute subset recorded on skeleton nodes.
var attributeAllowlist = []string{"id", "class", "href", "src", "type", "name", "alt"}

// BuildSelector returns a CSS selector addressing the node.
//
// An element with an id is addressed directly as #id. Otherwise the selector
// is a child path of tag segments, each qualified with its classes and an
// :nth-child position, climbing at most maxSelectorDepth levels or until an
// ancestor with an id anchors the path.
func BuildSelector(n *html.Node) string {
	if n == nil || n.Type != html.ElementNode {
		return ""
	}
	if id := attr(n, "id"); id != "" {
		return "#" + id
	}

	var segments []string
	for cur := n; cur != nil && cur.Type == html.ElementNode; cur = cur.Parent {
		if cur.Data == "html" || cur.Data == "body" {
			break
		}
		if id := attr(cur, "id"); id != "" && cur != n {
			segments = append([]string{"#" + id}, segments...)
			break
		}
		if len(segments) >= maxSelectorDepth {
			break
		}
		segments = append([]string{segment(cur)}, segments...)
	}

	return strings.Join(segments, " > ")
}

// segment renders one path element: tag, classes, :nth-child position.
func segment(n *html.Node) string {
	var b strings.Builder
	b.WriteString(n.Data)
	for _, class := range strings.Fields(attr(n, "class")) {
		b.WriteByte('.')
		b.WriteString(class)
	}
	b.WriteString(":nth-child(")
	b.WriteString(strconv.Itoa(childIndex(n)))
	b.WriteByte(')')
	return b.String()
}

// childIndex is the 1-based position of n among its element siblings.
func childIndex(n *html.Node) int {
	index := 1
	for sib := n.PrevSibling; sib != nil; sib = sib.PrevSibling {
		if sib.Type == html.ElementNode {
			index++
		}
	}
	return index
}

// ownText joins the node's direct text children, excluding descendants.
func ownText(n *html.Node) string {
	var parts []string
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.TextNode {
			if t := strings.TrimSpace(c.Data); t != "" {
				parts = append(parts, t)
			}
		}
	}
	return strings.Join(parts, " ")
}

// selectedAttributes copies the allowlisted attributes present on the node.
func selectedAttributes(n *html.Node) map[string]string {
	var attrs map[string]string
	for _, key := range attributeAllowlist {
		if v := attr(n, key); v != "" {
			if attrs == nil {
				attrs = make(map[string]string)
			}
			attrs[key] = v
		}
	}
	return attrs
}

// attr reads an attribute value, empty when absent.
func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}
