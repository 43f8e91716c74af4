package captions

import (
	"strings"
	"unicode/utf8"
)

// Wrap greedily breaks text into lines of at most columns runes. A single word
// longer than columns gets a line of its own.
func Wrap(text string, columns int) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}
	if columns <= 0 {
		return []string{strings.Join(words, " ")}
	}
	var (
		lines []string
		cur   strings.Builder
		n     int
	)
	for _, w := range words {
		wl := utf8.RuneCountInString(w)
		if n > 0 && n+1+wl > columns {
			lines = append(lines, cur.String())
			cur.Reset()
			n = 0
		}
		if n > 0 {
			cur.WriteByte(' ')
			n++
		}
		cur.WriteString(w)
		n += wl
	}
	return append(lines, cur.String())
}
