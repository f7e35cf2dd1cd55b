// Package segment splits long input text into bounded chunks along sentence boundaries.
package segment

import (
	"iter"
	"slices"
	"strings"
	"unicode/utf8"
)

// danda is the Devanagari sentence terminator
const danda = '।'

func isTerminator(r rune) bool {
	return r == '.' || r == '?' || r == '!' || r == danda
}

// keepsTerminator reports whether r stays attached to its sentence
func keepsTerminator(r rune) bool {
	return r == '?' || r == '!'
}

// Sentences yields the trimmed, non-empty sentences of text. A sentence closed by
// '.' or '।' (or by the end of input) is rendered with a trailing period; one closed
// by '?' or '!' keeps its own terminator.
func Sentences(text string) iter.Seq[string] {
	return func(yield func(string) bool) {
		start := 0
		for i, r := range text {
			if !isTerminator(r) {
				continue
			}

			end := i + utf8.RuneLen(r)
			body := text[start:i]
			if keepsTerminator(r) {
				body = text[start:end]
			}
			start = end

			if s := render(body); s != "" {
				if !yield(s) {
					return
				}
			}
		}

		if s := render(text[start:]); s != "" {
			yield(s)
		}
	}
}

func render(body string) string {
	s := strings.TrimSpace(body)
	if strings.TrimFunc(s, func(r rune) bool { return isTerminator(r) || r == ' ' }) == "" {
		return ""
	}

	last, _ := utf8.DecodeLastRuneInString(s)
	if keepsTerminator(last) {
		return s
	}
	return s + "."
}

// Normalize renders text as its sentences joined by single spaces. Joining the
// output of Chunks with a space yields exactly this string.
func Normalize(text string) string {
	return strings.Join(slices.Collect(Sentences(text)), " ")
}

// Chunks lazily packs the sentences of text into chunks of at most maxRunes
// characters. A sentence longer than the budget becomes its own oversized chunk.
// Text whose trimmed length fits the budget yields one chunk, and text without any
// sentence content yields a single chunk holding the trimmed input.
// The sequence may be ranged over any number of times.
func Chunks(text string, maxRunes int) iter.Seq[string] {
	if maxRunes < 1 {
		maxRunes = 1
	}

	return func(yield func(string) bool) {
		// input within the budget is never split, even if normalizing lengthens it
		if utf8.RuneCountInString(strings.TrimSpace(text)) <= maxRunes {
			if normalized := Normalize(text); normalized != "" {
				yield(normalized)
			} else {
				yield(strings.TrimSpace(text))
			}
			return
		}

		var (
			current strings.Builder
			length  int
			found   bool
		)

		for s := range Sentences(text) {
			found = true
			n := utf8.RuneCountInString(s)

			if length > 0 && length+1+n > maxRunes {
				if !yield(current.String()) {
					return
				}
				current.Reset()
				length = 0
			}

			if length > 0 {
				current.WriteByte(' ')
				length++
			}
			current.WriteString(s)
			length += n
		}

		if !found {
			yield(strings.TrimSpace(text))
			return
		}

		yield(current.String())
	}
}

// Split collects Chunks into a slice
func Split(text string, maxRunes int) []string {
	return slices.Collect(Chunks(text, maxRunes))
}
