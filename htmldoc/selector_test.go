package htmldoc

import (
	"strings"
	"testing"

	"golang.org/x/net/html"
)

func parseTree(t *testing.T, src string) *html.Node {
	t.Helper()
	root, err := html.Parse(strings.NewReader(src))
	if err != nil {
		t.Fatal(err)
	}
	return root
}

func selectIDs(t *testing.T, root *html.Node, selector string) []string {
	t.Helper()
	sel, err := parseSelector(selector)
	if err != nil {
		t.Fatalf("parseSelector(%q): %v", selector, err)
	}
	var ids []string
	walkElements(root, func(n *html.Node) bool {
		if sel.Match(n) {
			ids = append(ids, getAttr(n, "id"))
		}
		return true
	})
	return ids
}

const selectorFixture = `
<nav id="nav">
  <ul id="menu">
    <li id="li1" class="item active"><a id="a1" href="/one" data-k="x-1">One</a></li>
    <li id="li2" class="item"><span id="s2"><a id="a2" href="/two">Two</a></span></li>
  </ul>
</nav>
<main id="main"><input id="cb" type="checkbox" checked><input id="tx" type="text" lang="en-US"></main>`

func TestSelector_Matches(t *testing.T) {
	root := parseTree(t, selectorFixture)
	cases := []struct {
		sel  string
		want string
	}{
		{"a", "a1,a2"},
		{"#menu", "menu"},
		{"li.item.active", "li1"},
		{".item", "li1,li2"},
		{"li > a", "a1"},
		{"li a", "a1,a2"},
		{"nav > ul > li", "li1,li2"},
		{"input[type=checkbox]", "cb"},
		{`input[type="text"]`, "tx"},
		{"[checked]", "cb"},
		{`a[href^="/t"]`, "a2"},
		{"a[href$=one]", "a1"},
		{`a[data-k*="-"]`, "a1"},
		{"li[class~=active]", "li1"},
		{"input[lang|=en]", "tx"},
		{"h1, a#a2, #cb", "a2,cb"},
		{"main *", "cb,tx"},
		{"UL#menu", "menu"},
	}
	for _, c := range cases {
		got := strings.Join(selectIDs(t, root, c.sel), ",")
		if got != c.want {
			t.Errorf("select %q: got %q, want %q", c.sel, got, c.want)
		}
	}
}

const siblingFixture = `
<ul id="list"><li id="i1">a</li><li id="i2" class="done">b</li><li id="i3">c</li></ul>
<h1 id="h">T</h1><p id="p1">x</p><div id="d"></div><p id="p2">y</p>
<input id="on" type="checkbox" checked><input id="off" type="checkbox">`

func TestSelector_SiblingsAndPseudoClasses(t *testing.T) {
	root := parseTree(t, siblingFixture)
	cases := []struct {
		sel  string
		want string
	}{
		{"li:first-child", "i1"},
		{"li:last-child", "i3"},
		{"li:nth-child(2)", "i2"},
		{"li:not(:last-child)", "i1,i2"},
		{"li:not(.done)", "i1,i3"},
		{"h1 + p", "p1"},
		{"h1 ~ p", "p1,p2"},
		{"div + p", "p2"},
		{"input:checked", "on"},
		{"input:not(:checked)", "off"},
		{"ul:has(.done)", "list"},
	}
	for _, c := range cases {
		got := strings.Join(selectIDs(t, root, c.sel), ",")
		if got != c.want {
			t.Errorf("select %q: got %q, want %q", c.sel, got, c.want)
		}
	}
}

func TestSelector_Invalid(t *testing.T) {
	for _, sel := range []string{"", "   ", "a[href", "#", "a >", "a,,b", "li:no-such-class"} {
		if _, err := parseSelector(sel); err == nil {
			t.Errorf("parseSelector(%q): expected error", sel)
		}
	}
}
