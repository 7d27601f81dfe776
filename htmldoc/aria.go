package htmldoc

import (
	"strconv"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// The accessibility engine below approximates Chromium's for the common
// elements. Names from <label> association are not computed here; the
// resolver in domquery derives them from NodeFacts.Labels.

// roleOf returns the explicit or implicit ARIA role of an element.
func roleOf(n *html.Node) string {
	if n.Type != html.ElementNode {
		return ""
	}
	if r := strings.Fields(getAttr(n, "role")); len(r) > 0 {
		if r[0] == "presentation" {
			return "none"
		}
		return r[0]
	}

	switch n.DataAtom {
	case atom.A, atom.Area:
		if hasAttr(n, "href") {
			return "link"
		}
		return "generic"
	case atom.Button:
		return "button"
	case atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.H6:
		return "heading"
	case atom.Input:
		return inputRole(n)
	case atom.Select:
		if hasAttr(n, "multiple") {
			return "listbox"
		}
		if size, err := strconv.Atoi(getAttr(n, "size")); err == nil && size > 1 {
			return "listbox"
		}
		return "combobox"
	case atom.Textarea:
		return "textbox"
	case atom.Option:
		return "option"
	case atom.Ul, atom.Ol, atom.Menu:
		return "list"
	case atom.Li:
		return "listitem"
	case atom.Nav:
		return "navigation"
	case atom.Main:
		return "main"
	case atom.Header:
		return "banner"
	case atom.Footer:
		return "contentinfo"
	case atom.Aside:
		return "complementary"
	case atom.Section:
		if hasAttr(n, "aria-label") || hasAttr(n, "aria-labelledby") {
			return "region"
		}
		return "generic"
	case atom.Form:
		return "form"
	case atom.Article:
		return "article"
	case atom.Dialog:
		return "dialog"
	case atom.Table:
		return "table"
	case atom.Tr:
		return "row"
	case atom.Td:
		return "cell"
	case atom.Th:
		return "columnheader"
	case atom.Img:
		if v, ok := lookupAttr(n, "alt"); ok && v == "" {
			return "none"
		}
		return "img"
	case atom.Fieldset, atom.Details:
		return "group"
	case atom.Hr:
		return "separator"
	case atom.Progress:
		return "progressbar"
	case atom.Meter:
		return "meter"
	case atom.Output:
		return "status"
	case atom.P:
		return "paragraph"
	case atom.Div, atom.Span, atom.B, atom.I, atom.Body:
		return "generic"
	}
	return ""
}

func inputRole(n *html.Node) string {
	switch strings.ToLower(getAttr(n, "type")) {
	case "button", "submit", "reset", "image":
		return "button"
	case "checkbox":
		return "checkbox"
	case "radio":
		return "radio"
	case "range":
		return "slider"
	case "number":
		return "spinbutton"
	case "search":
		if hasAttr(n, "list") {
			return "combobox"
		}
		return "searchbox"
	case "hidden":
		return ""
	case "", "text", "email", "tel", "url", "password":
		if hasAttr(n, "list") {
			return "combobox"
		}
		return "textbox"
	}
	return "textbox"
}

// nameFromContent lists the roles whose name comes from their subtree.
var nameFromContent = map[string]bool{
	"button":           true,
	"link":             true,
	"heading":          true,
	"cell":             true,
	"columnheader":     true,
	"rowheader":        true,
	"gridcell":         true,
	"option":           true,
	"tab":              true,
	"menuitem":         true,
	"menuitemcheckbox": true,
	"menuitemradio":    true,
	"treeitem":         true,
	"tooltip":          true,
	"switch":           true,
	"checkbox":         true,
	"radio":            true,
	"row":              true,
}

// computedName returns the engine's accessible name for an element.
func computedName(n *html.Node) string {
	if n.Type != html.ElementNode {
		return ""
	}
	if name := labelledByText(n); name != "" {
		return name
	}
	if v := strings.TrimSpace(getAttr(n, "aria-label")); v != "" {
		return flatten(v)
	}

	switch n.DataAtom {
	case atom.Img, atom.Area:
		if v := getAttr(n, "alt"); v != "" {
			return flatten(v)
		}
	case atom.Input:
		switch strings.ToLower(getAttr(n, "type")) {
		case "image":
			if v := getAttr(n, "alt"); v != "" {
				return flatten(v)
			}
		case "submit":
			if v, ok := lookupAttr(n, "value"); ok {
				return flatten(v)
			}
			return "Submit"
		case "reset":
			if v, ok := lookupAttr(n, "value"); ok {
				return flatten(v)
			}
			return "Reset"
		case "button":
			return flatten(getAttr(n, "value"))
		}
	case atom.Fieldset:
		if c := firstChild(n, atom.Legend); c != nil {
			return contentName(c)
		}
	case atom.Figure:
		if c := firstChild(n, atom.Figcaption); c != nil {
			return contentName(c)
		}
	case atom.Table:
		if c := firstChild(n, atom.Caption); c != nil {
			return contentName(c)
		}
	}

	if nameFromContent[roleOf(n)] {
		if v := contentName(n); v != "" {
			return v
		}
	}
	if v := strings.TrimSpace(getAttr(n, "title")); v != "" {
		return flatten(v)
	}
	if v := strings.TrimSpace(getAttr(n, "placeholder")); v != "" {
		return flatten(v)
	}
	return ""
}

// labelledByText joins the text of the elements aria-labelledby points at.
func labelledByText(n *html.Node) string {
	ids := strings.Fields(getAttr(n, "aria-labelledby"))
	if len(ids) == 0 {
		return ""
	}
	root := ownerDocument(n)
	var parts []string
	for _, id := range ids {
		ref := elementByID(root, id)
		if ref == nil {
			continue
		}
		if v := strings.TrimSpace(getAttr(ref, "aria-label")); v != "" {
			parts = append(parts, v)
			continue
		}
		if v := contentName(ref); v != "" {
			parts = append(parts, v)
		}
	}
	return flatten(strings.Join(parts, " "))
}

// contentName computes a name from a subtree: text, image alternatives and
// child aria-labels, skipping content that is not rendered.
func contentName(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(c *html.Node) {
		for ch := c.FirstChild; ch != nil; ch = ch.NextSibling {
			switch ch.Type {
			case html.TextNode:
				b.WriteString(ch.Data)
			case html.ElementNode:
				if notRendered(ch) {
					continue
				}
				if v := strings.TrimSpace(getAttr(ch, "aria-label")); v != "" {
					b.WriteString(" " + v + " ")
					continue
				}
				if ch.DataAtom == atom.Img {
					b.WriteString(getAttr(ch, "alt"))
					continue
				}
				walk(ch)
			}
		}
	}
	walk(n)
	return flatten(b.String())
}

// properties builds the snapshot properties of an element with the given
// role. Booleans are only reported when true, except checked and pressed
// which are always reported for the roles that carry them.
func properties(n *html.Node, role string) map[string]any {
	props := make(map[string]any)
	if n.Type != html.ElementNode {
		return props
	}

	if isDisabled(n) {
		props["disabled"] = true
	}

	switch role {
	case "checkbox", "radio", "switch", "menuitemcheckbox", "menuitemradio":
		if v, ok := lookupAttr(n, "aria-checked"); ok {
			props["checked"] = tristate(v)
		} else {
			props["checked"] = n.DataAtom == atom.Input && hasAttr(n, "checked")
		}
	}
	if v, ok := lookupAttr(n, "aria-pressed"); ok {
		props["pressed"] = tristate(v)
	}
	boolAttr(props, n, "expanded", "aria-expanded")
	boolAttr(props, n, "modal", "aria-modal")

	if getAttr(n, "aria-selected") == "true" || (n.DataAtom == atom.Option && hasAttr(n, "selected")) {
		props["selected"] = true
	}
	if hasAttr(n, "required") || getAttr(n, "aria-required") == "true" {
		props["required"] = true
	}
	if ((n.DataAtom == atom.Input || n.DataAtom == atom.Textarea) && hasAttr(n, "readonly")) ||
		getAttr(n, "aria-readonly") == "true" {
		props["readonly"] = true
	}
	if n.DataAtom == atom.Textarea || getAttr(n, "aria-multiline") == "true" {
		props["multiline"] = true
	}
	if (n.DataAtom == atom.Select && hasAttr(n, "multiple")) || getAttr(n, "aria-multiselectable") == "true" {
		props["multiselectable"] = true
	}

	if level := headingLevel(n); level > 0 {
		props["level"] = level
	} else if lv, err := strconv.Atoi(getAttr(n, "aria-level")); err == nil {
		props["level"] = lv
	}

	numAttr(props, n, "valuemin", "aria-valuemin", "min")
	numAttr(props, n, "valuemax", "aria-valuemax", "max")
	strAttr(props, n, "valuetext", "aria-valuetext")
	strAttr(props, n, "description", "aria-description")
	strAttr(props, n, "roledescription", "aria-roledescription")
	strAttr(props, n, "keyshortcuts", "aria-keyshortcuts")
	strAttr(props, n, "autocomplete", "aria-autocomplete")
	strAttr(props, n, "orientation", "aria-orientation")
	if v := getAttr(n, "aria-haspopup"); v != "" && v != "false" {
		if v == "true" {
			v = "menu"
		}
		props["haspopup"] = v
	}
	if v := getAttr(n, "aria-invalid"); v != "" && v != "false" {
		props["invalid"] = v
	}

	switch role {
	case "textbox", "searchbox", "combobox", "spinbutton", "slider":
		if n.DataAtom == atom.Textarea {
			props["value"] = textContent(n)
		} else if v, ok := lookupAttr(n, "value"); ok {
			props["value"] = v
		}
	}
	return props
}

func isDisabled(n *html.Node) bool {
	if getAttr(n, "aria-disabled") == "true" {
		return true
	}
	switch n.DataAtom {
	case atom.Button, atom.Input, atom.Select, atom.Textarea, atom.Option, atom.Fieldset:
		if hasAttr(n, "disabled") {
			return true
		}
	}
	for p := elementParent(n); p != nil; p = elementParent(p) {
		if p.DataAtom == atom.Fieldset && hasAttr(p, "disabled") && isFormControl(n) {
			return true
		}
	}
	return false
}

func isFormControl(n *html.Node) bool {
	switch n.DataAtom {
	case atom.Button, atom.Input, atom.Select, atom.Textarea:
		return true
	}
	return false
}

func tristate(v string) any {
	switch v {
	case "true":
		return true
	case "mixed":
		return "mixed"
	}
	return false
}

func boolAttr(props map[string]any, n *html.Node, prop, attr string) {
	switch getAttr(n, attr) {
	case "true":
		props[prop] = true
	case "false":
		props[prop] = false
	}
}

func strAttr(props map[string]any, n *html.Node, prop, attr string) {
	if v := strings.TrimSpace(getAttr(n, attr)); v != "" {
		props[prop] = v
	}
}

func numAttr(props map[string]any, n *html.Node, prop string, attrs ...string) {
	for _, a := range attrs {
		if a != attrs[0] && n.DataAtom != atom.Input {
			continue
		}
		if f, err := strconv.ParseFloat(getAttr(n, a), 64); err == nil {
			props[prop] = f
			return
		}
	}
}

func headingLevel(n *html.Node) int {
	switch n.DataAtom {
	case atom.H1:
		return 1
	case atom.H2:
		return 2
	case atom.H3:
		return 3
	case atom.H4:
		return 4
	case atom.H5:
		return 5
	case atom.H6:
		return 6
	}
	return 0
}

// labelable elements can be the control of a <label>.
func labelable(n *html.Node) bool {
	switch n.DataAtom {
	case atom.Button, atom.Meter, atom.Output, atom.Progress, atom.Select, atom.Textarea:
		return true
	case atom.Input:
		return !strings.EqualFold(getAttr(n, "type"), "hidden")
	}
	return false
}

// labelControl returns the control a <label> labels, or nil.
func labelControl(label *html.Node) *html.Node {
	if id, ok := lookupAttr(label, "for"); ok {
		el := elementByID(ownerDocument(label), id)
		if el != nil && labelable(el) {
			return el
		}
		return nil
	}
	var found *html.Node
	walkElements(label, func(c *html.Node) bool {
		if labelable(c) {
			found = c
			return false
		}
		return true
	})
	return found
}

// labelsOf returns the <label> elements whose control is n, in tree order.
func labelsOf(n *html.Node) []*html.Node {
	if !labelable(n) {
		return nil
	}
	var out []*html.Node
	walkElements(ownerDocument(n), func(c *html.Node) bool {
		if c.DataAtom == atom.Label && labelControl(c) == n {
			out = append(out, c)
		}
		return true
	})
	return out
}

func firstChild(n *html.Node, a atom.Atom) *html.Node {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && c.DataAtom == a {
			return c
		}
	}
	return nil
}

func flatten(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
