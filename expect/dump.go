package expect

import (
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
	"github.com/microcosm-cc/bluemonday"
)

var (
	sanitizer   = bluemonday.UGCPolicy()
	mdConverter = converter.NewConverter(
		converter.WithPlugins(
			base.NewBasePlugin(),
			commonmark.NewCommonmarkPlugin(),
			table.NewTablePlugin(),
		),
	)
)

// Markdown renders an HTML subtree as markdown for failure messages.
// Scripts, styles and event handlers are stripped first. On conversion
// failure the sanitized HTML is returned.
func Markdown(src string) string {
	clean := sanitizer.Sanitize(src)
	md, err := mdConverter.ConvertString(clean)
	if err != nil || strings.TrimSpace(md) == "" {
		return strings.TrimSpace(clean)
	}
	return strings.TrimSpace(md)
}

func truncate(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !isRuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "\n[truncated]"
}

func isRuneStart(b byte) bool { return b&0xC0 != 0x80 }
