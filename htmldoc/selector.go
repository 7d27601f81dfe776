package htmldoc

import (
	"fmt"
	"strings"

	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
)

// parseSelector compiles a CSS selector group ("h1 + p, li:not(.done)").
// Matching runs against the whole tree, so combinators may reach above the
// query root, as with querySelectorAll.
func parseSelector(src string) (cascadia.SelectorGroup, error) {
	src = strings.TrimSpace(src)
	if src == "" {
		return nil, fmt.Errorf("htmldoc: empty selector")
	}
	sel, err := cascadia.ParseGroup(src)
	if err != nil {
		return nil, fmt.Errorf("htmldoc: selector %q: %w", src, err)
	}
	return sel, nil
}

func elementParent(n *html.Node) *html.Node {
	p := n.Parent
	if p == nil || p.Type != html.ElementNode {
		return nil
	}
	return p
}

func getAttr(n *html.Node, key string) string {
	v, _ := lookupAttr(n, key)
	return v
}

func hasAttr(n *html.Node, key string) bool {
	_, ok := lookupAttr(n, key)
	return ok
}

func lookupAttr(n *html.Node, key string) (string, bool) {
	for _, attr := range n.Attr {
		if attr.Namespace == "" && attr.Key == key {
			return attr.Val, true
		}
	}
	return "", false
}
