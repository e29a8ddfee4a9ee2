package chunk

import "strings"

const fence = "```"

// headerMargin reserves room for the fence header injected at the start of a
// continuation chunk.
const headerMargin = 15

// Split breaks text into pieces of at most maxLength, splitting at the last
// space before the boundary and falling back to a hard split when there is
// none. Concatenating the pieces reproduces the input.
func Split(text string, maxLength int) []string {
	var chunks []string
	for len(text) > maxLength {
		splitIndex := strings.LastIndex(text[:maxLength], " ")
		if splitIndex <= 0 {
			splitIndex = maxLength
		}
		chunks = append(chunks, text[:splitIndex])
		text = text[splitIndex:]
	}
	return append(chunks, text)
}

// SplitCodeBlockAware splits like Split but keeps fenced code blocks
// renderable: a chunk that ends inside a block gets a closing fence, and the
// next chunk re-opens the block with the original language tag.
func SplitCodeBlockAware(text string, maxLength int) []string {
	raw := Split(text, maxLength-headerMargin)

	chunks := make([]string, 0, len(raw))
	var language string
	var reopen bool
	for _, c := range raw {
		if reopen {
			c = fence + language + "\n" + c
			reopen = false
		}

		if lang, unclosed := unclosedFenceLanguage(c); unclosed {
			language, reopen = lang, true
			c += "\n" + fence
		}

		chunks = append(chunks, c)
	}
	return chunks
}

// unclosedFenceLanguage reports whether chunk ends inside a fenced code block
// and, if so, the language tag from the block's opening fence. An empty tag
// is a valid language.
//
// Fence parity cannot distinguish a literal backtick triple in prose from a
// real delimiter, so such input mis-toggles the tracking. Known limitation.
func unclosedFenceLanguage(chunk string) (string, bool) {
	if strings.Count(chunk, fence)%2 == 0 {
		return "", false
	}

	rest := chunk[strings.LastIndex(chunk, fence):]
	header, _, _ := strings.Cut(rest, "\n")
	return strings.TrimSpace(strings.TrimPrefix(header, fence)), true
}
