package render

import (
	"regexp"
	"strings"

	"github.com/russross/blackfriday"
)

// Telegram accepts only a small HTML subset; everything else must be gone
// from the payload or the send fails with a parse error.
var allowedTags = map[string]bool{
	"b": true, "strong": true,
	"i": true, "em": true,
	"u": true, "s": true,
	"code": true, "pre": true,
	"a": true,
}

var (
	headingOpenRe  = regexp.MustCompile(`<h[1-6][^>]*>`)
	headingCloseRe = regexp.MustCompile(`</h[1-6]>`)
	tagRe          = regexp.MustCompile(`</?([a-zA-Z][a-zA-Z0-9]*)((?:\s[^>]*)?)/?>`)
	hrefRe         = regexp.MustCompile(`href="[^"]*"`)
	classRe        = regexp.MustCompile(`class="[^"]*"`)
)

// ToHTML renders markdown into Telegram-safe HTML: headings become bold
// lines, list items become bullets, and every tag outside the allowed subset
// is stripped while its text is kept.
func ToHTML(markdown string) string {
	html := string(blackfriday.MarkdownCommon([]byte(markdown)))

	html = headingOpenRe.ReplaceAllString(html, "<b>")
	html = headingCloseRe.ReplaceAllString(html, "</b>")
	html = strings.ReplaceAll(html, "<li>", "• ")
	html = strings.ReplaceAll(html, "</li>", "\n")
	html = strings.ReplaceAll(html, "<br />", "\n")

	html = tagRe.ReplaceAllStringFunc(html, sanitizeTag)

	return strings.TrimSpace(html)
}

func sanitizeTag(tag string) string {
	m := tagRe.FindStringSubmatch(tag)
	name := strings.ToLower(m[1])
	if !allowedTags[name] {
		return ""
	}

	attrs := m[2]
	if attrs == "" {
		return tag
	}

	closing := strings.HasPrefix(tag, "</")
	if closing {
		return "</" + name + ">"
	}

	// Telegram understands href on links and language-* classes on code.
	switch name {
	case "a":
		if href := hrefRe.FindString(attrs); href != "" {
			return "<a " + href + ">"
		}
	case "code":
		if class := classRe.FindString(attrs); class != "" {
			return "<code " + class + ">"
		}
	}
	return "<" + name + ">"
}
