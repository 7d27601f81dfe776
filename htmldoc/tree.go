package htmldoc

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// ownerDocument walks up to the document node of the tree holding n.
func ownerDocument(n *html.Node) *html.Node {
	for n.Parent != nil {
		n = n.Parent
	}
	return n
}

// walkElements visits the element descendants of root in tree order until
// fn returns false.
func walkElements(root *html.Node, fn func(*html.Node) bool) {
	var walk func(*html.Node) bool
	walk = func(n *html.Node) bool {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type != html.ElementNode {
				continue
			}
			if !fn(c) || !walk(c) {
				return false
			}
		}
		return true
	}
	walk(root)
}

func elementByID(root *html.Node, id string) *html.Node {
	if id == "" {
		return nil
	}
	var found *html.Node
	walkElements(root, func(c *html.Node) bool {
		if getAttr(c, "id") == id {
			found = c
			return false
		}
		return true
	})
	return found
}

// textContent concatenates the descendant text nodes, like Node.textContent.
func textContent(n *html.Node) string {
	if n.Type == html.DocumentNode {
		return ""
	}
	if n.Type == html.TextNode {
		return n.Data
	}
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(c *html.Node) {
		for ch := c.FirstChild; ch != nil; ch = ch.NextSibling {
			if ch.Type == html.TextNode {
				b.WriteString(ch.Data)
			}
			walk(ch)
		}
	}
	walk(n)
	return b.String()
}

// inlineStyle parses the style attribute into lower-cased declarations.
func inlineStyle(n *html.Node) map[string]string {
	raw := getAttr(n, "style")
	if raw == "" {
		return nil
	}
	out := make(map[string]string)
	for _, decl := range strings.Split(raw, ";") {
		k, v, ok := strings.Cut(decl, ":")
		if !ok {
			continue
		}
		v = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(v), "!important"))
		out[strings.ToLower(strings.TrimSpace(k))] = strings.ToLower(v)
	}
	return out
}

// notRendered reports whether the element itself generates no box.
func notRendered(n *html.Node) bool {
	switch n.DataAtom {
	case atom.Head, atom.Script, atom.Style, atom.Template, atom.Title, atom.Meta, atom.Link, atom.Noscript:
		return true
	case atom.Input:
		if strings.EqualFold(getAttr(n, "type"), "hidden") {
			return true
		}
	}
	if hasAttr(n, "hidden") {
		return true
	}
	return inlineStyle(n)["display"] == "none"
}

// displayNone reports whether n or one of its ancestors generates no box.
func displayNone(n *html.Node) bool {
	for cur := n; cur != nil && cur.Type == html.ElementNode; cur = cur.Parent {
		if notRendered(cur) {
			return true
		}
	}
	return false
}

// visibilityHidden resolves the inherited visibility property.
func visibilityHidden(n *html.Node) bool {
	for cur := n; cur != nil && cur.Type == html.ElementNode; cur = cur.Parent {
		switch inlineStyle(cur)["visibility"] {
		case "hidden", "collapse":
			return true
		case "visible":
			return false
		}
	}
	return false
}
