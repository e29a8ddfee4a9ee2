package chunk

import (
	"strings"
	"testing"
)

func TestSplitReconstructsInput(t *testing.T) {
	tests := []struct {
		name      string
		text      string
		maxLength int
	}{
		{"empty", "", 10},
		{"shorter than limit", "short", 10},
		{"prose with spaces", "hello world this is a test of the splitter", 10},
		{"no spaces at all", "abcdefghijklmnopqrstuvwxyz", 3},
		{"exactly at limit", "0123456789", 10},
		{"limit of one", "a b c", 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chunks := Split(tt.text, tt.maxLength)

			if got := strings.Join(chunks, ""); got != tt.text {
				t.Errorf("concatenated chunks = %q, want %q", got, tt.text)
			}
			for i, c := range chunks {
				if len(c) > tt.maxLength {
					t.Errorf("chunk %d has length %d, exceeds %d", i, len(c), tt.maxLength)
				}
				if c == "" && tt.text != "" {
					t.Errorf("chunk %d is empty for non-empty input", i)
				}
			}
		})
	}
}

func TestSplitPrefersSpaceBoundary(t *testing.T) {
	chunks := Split("hello world this is a test", 10)

	want := []string{"hello", " world", " this is", " a test"}
	if len(chunks) != len(want) {
		t.Fatalf("chunks = %q, want %q", chunks, want)
	}
	for i := range want {
		if chunks[i] != want[i] {
			t.Errorf("chunk %d = %q, want %q", i, chunks[i], want[i])
		}
	}
}

func TestSplitCodeBlockAwareBalancedBlocksUntouched(t *testing.T) {
	text := "intro text\n```go\nfmt.Println(1)\n```\noutro"

	chunks := SplitCodeBlockAware(text, 100)

	if got := strings.Join(chunks, ""); got != text {
		t.Errorf("balanced input was altered: %q", got)
	}
}

func TestSplitCodeBlockAwareReopensBlock(t *testing.T) {
	chunks := SplitCodeBlockAware("```python\nprint('hi')", 30)

	if len(chunks) != 2 {
		t.Fatalf("got %d chunks, want 2: %q", len(chunks), chunks)
	}
	if !strings.HasSuffix(chunks[0], "\n```") {
		t.Errorf("first chunk %q does not close its block", chunks[0])
	}
	if !strings.HasPrefix(chunks[1], "```python\n") {
		t.Errorf("second chunk %q does not reopen the block", chunks[1])
	}
}

func TestSplitCodeBlockAwareEmptyLanguageTag(t *testing.T) {
	chunks := SplitCodeBlockAware("```\n0123456789abcdef", 30)

	if len(chunks) != 2 {
		t.Fatalf("got %d chunks, want 2: %q", len(chunks), chunks)
	}
	if !strings.HasPrefix(chunks[1], "```\n") {
		t.Errorf("second chunk %q should reopen with a bare fence", chunks[1])
	}
	if strings.HasPrefix(chunks[1], "``` ") {
		t.Errorf("second chunk %q carries a stray space in the fence header", chunks[1])
	}
}

func TestUnclosedFenceLanguage(t *testing.T) {
	tests := []struct {
		name         string
		chunk        string
		wantLang     string
		wantUnclosed bool
	}{
		{"no fences", "plain text", "", false},
		{"open block with language", "```python\nprint('hi')", "python", true},
		{"open block without language", "```\ncode", "", true},
		{"closed block", "```go\ncode\n```", "", false},
		{"fence on last line", "text ```go", "go", true},
		{"reopened after closed block", "```a\nx\n``` and ```b\ny", "b", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lang, unclosed := unclosedFenceLanguage(tt.chunk)
			if unclosed != tt.wantUnclosed || lang != tt.wantLang {
				t.Errorf("unclosedFenceLanguage(%q) = (%q, %v), want (%q, %v)",
					tt.chunk, lang, unclosed, tt.wantLang, tt.wantUnclosed)
			}
		})
	}
}
