package domquery

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// TextMatcher matches an accessible name or a text content.
// *regexp.Regexp satisfies it; use Exact for literal equality.
type TextMatcher interface {
	MatchString(s string) bool
	String() string
}

type exact string

// Exact matches a string by equality.
func Exact(s string) TextMatcher { return exact(s) }

func (e exact) MatchString(s string) bool { return string(e) == s }
func (e exact) String() string            { return strconv.Quote(string(e)) }

// Pattern compiles expr into a TextMatcher. It panics on an invalid
// expression, like regexp.MustCompile.
func Pattern(expr string) TextMatcher { return regexp.MustCompile(expr) }

func isSet(m TextMatcher) bool {
	switch v := m.(type) {
	case nil:
		return false
	case exact:
		return v != ""
	case *regexp.Regexp:
		return v != nil
	default:
		return true
	}
}

func describeMatcher(m TextMatcher) string {
	if re, ok := m.(*regexp.Regexp); ok {
		return "/" + re.String() + "/"
	}
	return m.String()
}

// Query describes the nodes to find. At least one of Role, Name, Text or
// Selector must be set.
type Query struct {
	// Role is compared exactly against the snapshot role.
	Role string
	// Name is tested against the resolved accessible name.
	Name TextMatcher
	// Text is tested against the whitespace-flattened text content.
	Text TextMatcher
	// Selector narrows candidates structurally. Empty means every element.
	Selector string
	// Props are accessibility properties compared by equality against the
	// node's snapshot, e.g. {"checked": true, "level": 2}. A property the
	// snapshot lacks compares equal to false, so {"disabled": false} matches
	// an enabled node that reports no disabled property at all.
	Props map[string]any
}

// knownProps is the accessibility property allowlist for Query.Props.
var knownProps = map[string]bool{
	"value":           true,
	"description":     true,
	"keyshortcuts":    true,
	"roledescription": true,
	"valuetext":       true,
	"disabled":        true,
	"expanded":        true,
	"focused":         true,
	"modal":           true,
	"multiline":       true,
	"multiselectable": true,
	"readonly":        true,
	"required":        true,
	"selected":        true,
	"checked":         true,
	"pressed":         true,
	"level":           true,
	"valuemin":        true,
	"valuemax":        true,
	"autocomplete":    true,
	"haspopup":        true,
	"invalid":         true,
	"orientation":     true,
}

// KnownProperty reports whether name may be used as a Query.Props key.
func KnownProperty(name string) bool { return knownProps[name] }

// Validate checks the query before any polling starts.
func (q Query) Validate() error {
	if q.Role == "" && !isSet(q.Name) && !isSet(q.Text) && q.Selector == "" {
		return newError(KindParameters,
			`At least one of "role", "name", "text", or "selector" is required in the query.`, nil, 1)
	}
	for _, k := range q.propKeys() {
		if !knownProps[k] {
			return newError(KindParameters, fmt.Sprintf("Unknown query property %q.", k), nil, 1)
		}
	}
	return nil
}

func (q Query) propKeys() []string {
	keys := make([]string, 0, len(q.Props))
	for k := range q.Props {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (q Query) String() string {
	var parts []string
	if q.Role != "" {
		parts = append(parts, "role="+q.Role)
	}
	if isSet(q.Name) {
		parts = append(parts, "name="+describeMatcher(q.Name))
	}
	if isSet(q.Text) {
		parts = append(parts, "text="+describeMatcher(q.Text))
	}
	if q.Selector != "" {
		parts = append(parts, "selector="+strconv.Quote(q.Selector))
	}
	for _, k := range q.propKeys() {
		parts = append(parts, fmt.Sprintf("%s=%v", k, q.Props[k]))
	}
	return "{" + strings.Join(parts, " ") + "}"
}
