package segment

import (
	"slices"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sentenceOf returns a sentence of exactly n runes including its period
func sentenceOf(n int) string {
	return strings.Repeat("a", n-1) + "."
}

func TestSentences(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{
			name: "periods",
			text: "One. Two.  Three",
			want: []string{"One.", "Two.", "Three."},
		},
		{
			name: "question and exclamation keep their terminator",
			text: "Ready? Go! Now.",
			want: []string{"Ready?", "Go!", "Now."},
		},
		{
			name: "danda normalized to period",
			text: "नमस्ते। आप कैसे हैं।",
			want: []string{"नमस्ते.", "आप कैसे हैं."},
		},
		{
			name: "runs of terminators collapse",
			text: "Wait... what?! Fine.",
			want: []string{"Wait.", "what?", "Fine."},
		},
		{
			name: "whitespace only",
			text: " \n\t ",
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := slices.Collect(Sentences(tt.text))
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSplit(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		maxRunes int
		want     []string
	}{
		{
			name:     "fits in one chunk",
			text:     "Hello world. How are you?",
			maxRunes: 1000,
			want:     []string{"Hello world. How are you?"},
		},
		{
			name:     "exact budget stays in one chunk",
			text:     "abcd. efgh.",
			maxRunes: 11,
			want:     []string{"abcd. efgh."},
		},
		{
			name:     "one over budget splits",
			text:     "abcd. efgh.",
			maxRunes: 10,
			want:     []string{"abcd.", "efgh."},
		},
		{
			name:     "oversized sentence kept whole",
			text:     "Short. " + strings.Repeat("x", 30) + ". Tail.",
			maxRunes: 12,
			want:     []string{"Short.", strings.Repeat("x", 30) + ".", "Tail."},
		},
		{
			name:     "empty input yields one empty chunk",
			text:     "",
			maxRunes: 10,
			want:     []string{""},
		},
		{
			name:     "whitespace yields one trimmed chunk",
			text:     "   \n ",
			maxRunes: 10,
			want:     []string{""},
		},
		{
			name:     "terminators only yield trimmed input",
			text:     "  ...  ",
			maxRunes: 10,
			want:     []string{"..."},
		},
		{
			name:     "budget counts characters not bytes",
			text:     "ééééé. ééééé.",
			maxRunes: 13,
			want:     []string{"ééééé. ééééé."},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Split(tt.text, tt.maxRunes))
		})
	}
}

func TestSplit_2500CharactersMakeThreeChunks(t *testing.T) {
	sentences := make([]string, 25)
	for i := range sentences {
		sentences[i] = sentenceOf(99)
	}
	text := strings.Join(sentences, " ")
	require.Equal(t, 2499, utf8.RuneCountInString(text))

	chunks := Split(text, 1000)

	require.Len(t, chunks, 3)
	assert.Equal(t, 999, utf8.RuneCountInString(chunks[0]))
	assert.Equal(t, 999, utf8.RuneCountInString(chunks[1]))
	assert.Equal(t, 499, utf8.RuneCountInString(chunks[2]))
}

func TestSplit_Properties(t *testing.T) {
	inputs := []string{
		"A.",
		"First sentence. Second one! Third? Fourth",
		strings.Repeat("The quick brown fox jumps over the lazy dog. ", 80),
		strings.Repeat("Tiny. ", 500),
		"मेरा नाम राम है। " + strings.Repeat("यह एक वाक्य है। ", 120),
		strings.Repeat("z", 2500) + ". after.",
		"no terminators at all but quite a lot of words here",
	}
	budgets := []int{1, 10, 80, 1000}

	for _, text := range inputs {
		for _, budget := range budgets {
			chunks := Split(text, budget)

			require.NotEmpty(t, chunks)
			assert.Equal(t, Normalize(text), strings.Join(chunks, " "), "lossless over content")

			fits := utf8.RuneCountInString(strings.TrimSpace(text)) <= budget
			for _, c := range chunks {
				assert.NotEmpty(t, c)
				assert.Equal(t, strings.TrimSpace(c), c)
				if !fits && utf8.RuneCountInString(c) > budget {
					// only a single sentence may exceed the budget
					assert.Len(t, slices.Collect(Sentences(c)), 1, "oversized chunk %q", c)
				}
			}

			if fits {
				assert.Len(t, chunks, 1, "input %q fits budget %d", text, budget)
			}
		}
	}
}

func TestChunks_Restartable(t *testing.T) {
	seq := Chunks(strings.Repeat("Again and again. ", 100), 100)

	first := slices.Collect(seq)
	second := slices.Collect(seq)

	assert.Equal(t, first, second)
	assert.Greater(t, len(first), 1)
}

func TestChunks_StopsEarly(t *testing.T) {
	var got []string
	for c := range Chunks(strings.Repeat("Stop me. ", 100), 20) {
		got = append(got, c)
		if len(got) == 2 {
			break
		}
	}

	assert.Len(t, got, 2)
}

func TestSplit_InputWithinBudgetIsOneChunk(t *testing.T) {
	tests := []struct {
		name   string
		text   string
		budget int
		want   string
	}{
		{
			name:   "exactly at budget",
			text:   strings.Repeat("a", 98) + ". " + strings.Repeat("b", 896) + " end",
			budget: 1000,
			want:   strings.Repeat("a", 98) + ". " + strings.Repeat("b", 896) + " end.",
		},
		{
			name:   "terminator without space",
			text:   "Hi.Bye",
			budget: 6,
			want:   "Hi. Bye.",
		},
		{
			name:   "abbreviation",
			text:   "Dr.Smith arrived.",
			budget: 17,
			want:   "Dr. Smith arrived.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, []string{tt.want}, Split(tt.text, tt.budget))
		})
	}
}
