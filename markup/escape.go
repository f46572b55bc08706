// Package markup turns untrusted text into fragments that are safe to embed in HTML,
// both as element content and as quoted attribute values.
package markup

import "strings"

var (
	escaper = strings.NewReplacer(
		"&", "&amp;",
		"<", "&lt;",
		">", "&gt;",
		`"`, "&quot;",
		"'", "&#039;",
	)

	unescaper = strings.NewReplacer(
		"&amp;", "&",
		"&lt;", "<",
		"&gt;", ">",
		"&quot;", `"`,
		"&#039;", "'",
	)
)

// Escape replaces the reserved characters &, <, >, " and ' with their entities.
// The result is safe as element content and inside a double or single quoted attribute.
func Escape(text string) string {
	return escaper.Replace(text)
}

// Unescape reverses Escape. It only understands the five entities Escape produces.
func Unescape(text string) string {
	return unescaper.Replace(text)
}
