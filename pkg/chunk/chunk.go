// Package chunk splits long documents into bounded segments on paragraph
// boundaries.
package chunk

import (
	"strings"
	"unicode/utf8"
)

// separatorLen is the length of the "\n\n" joining paragraphs inside a chunk.
const separatorLen = 2

// Split splits text into chunks of at most maxLen runes.
//
// Rules:
//   - Paragraphs are separated by a blank line ("\n\n"); CRLF is normalized.
//   - Paragraphs are accumulated until adding the next one (plus the
//     separator) would exceed maxLen, then the buffer is flushed.
//   - A single paragraph longer than maxLen is emitted whole, never split.
//   - Chunks are trimmed; empty chunks are dropped.
//   - maxLen <= 0 returns the whole trimmed text as one chunk.
func Split(text string, maxLen int) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	if maxLen <= 0 {
		if t := strings.TrimSpace(text); t != "" {
			return []string{t}
		}
		return nil
	}

	var (
		chunks []string
		buf    strings.Builder
		bufLen int
	)

	flush := func() {
		if t := strings.TrimSpace(buf.String()); t != "" {
			chunks = append(chunks, t)
		}
		buf.Reset()
		bufLen = 0
	}

	for _, para := range strings.Split(text, "\n\n") {
		if strings.TrimSpace(para) == "" {
			continue
		}
		n := utf8.RuneCountInString(para)
		if bufLen > 0 && bufLen+separatorLen+n > maxLen {
			flush()
		}
		if bufLen > 0 {
			buf.WriteString("\n\n")
			bufLen += separatorLen
		}
		buf.WriteString(para)
		bufLen += n
	}
	flush()

	return chunks
}
