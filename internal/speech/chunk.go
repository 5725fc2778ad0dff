package speech

import (
	"strings"
	"unicode/utf8"

	"github.com/neurosnap/sentences"
)

type sentenceTokenizer interface {
	Tokenize(text string) []*sentences.Sentence
}

// break points for text the sentence tokenizer does not split, such as CJK
// prose without Latin terminators
const softBreaks = "。！？；，、 "

// splitIntoChunks groups whole sentences into chunks of at most limit bytes.
// A sentence longer than limit is cut at the last soft break that fits, or
// else at a rune boundary.
func splitIntoChunks(tok sentenceTokenizer, text string, limit int) []string {
	var (
		chunks  []string
		current strings.Builder
	)
	flush := func() {
		if s := strings.TrimSpace(current.String()); s != "" {
			chunks = append(chunks, s)
		}
		current.Reset()
	}

	for _, s := range tok.Tokenize(text) {
		rest := s.Text
		if current.Len()+len(rest) > limit {
			flush()
		}
		for len(rest) > limit {
			cut := cutPoint(rest, limit)
			if part := strings.TrimSpace(rest[:cut]); part != "" {
				chunks = append(chunks, part)
			}
			rest = rest[cut:]
		}
		current.WriteString(rest)
	}
	flush()

	if len(chunks) == 0 {
		chunks = append(chunks, text)
	}
	return chunks
}

// cutPoint returns the byte offset, at most limit, where s is split.
func cutPoint(s string, limit int) int {
	end := limit
	for end > 0 && !utf8.RuneStart(s[end]) {
		end--
	}
	if i := strings.LastIndexAny(s[:end], softBreaks); i > 0 {
		_, size := utf8.DecodeRuneInString(s[i:])
		return i + size
	}
	if end == 0 {
		// limit is smaller than the first rune
		_, end = utf8.DecodeRuneInString(s)
	}
	return end
}
