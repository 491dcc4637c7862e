// Package lexicon computes vocabulary statistics of a user's chat messages.
package lexicon

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"unicode"

	"github.com/iamwavecut/upupa/internal/html"
	"github.com/iamwavecut/upupa/internal/i18n"
	"github.com/iamwavecut/upupa/internal/llm"
)

const minWordRunes = 3

var reURL = regexp.MustCompile(`(?i)(https?://|www\.)\S+`)

type Count struct {
	Item string
	N    int
}

type Report struct {
	Messages    int
	Words       int
	Unique      int
	Richness    float64
	AvgWords    float64
	LongestWord string
	TopWords    []Count
	TopEmojis   []Count
}

// Analyze builds the report; stop-words are counted as words but never ranked.
func Analyze(texts []string, topN int) Report {
	var r Report
	words := map[string]int{}
	emojis := map[string]int{}

	for _, text := range texts {
		if strings.TrimSpace(text) == "" || strings.HasPrefix(text, "/") {
			continue
		}
		r.Messages++
		for _, e := range Emojis(text) {
			emojis[e]++
		}
		for _, w := range Words(text) {
			r.Words++
			words[w]++
			if len([]rune(w)) > len([]rune(r.LongestWord)) {
				r.LongestWord = w
			}
		}
	}
	r.Unique = len(words)
	if r.Words > 0 {
		r.Richness = float64(r.Unique) / float64(r.Words)
	}
	if r.Messages > 0 {
		r.AvgWords = float64(r.Words) / float64(r.Messages)
	}

	for w := range words {
		if len([]rune(w)) < minWordRunes || isStopWord(w) {
			delete(words, w)
		}
	}
	r.TopWords = top(words, topN)
	r.TopEmojis = top(emojis, topN)
	return r
}

// Words splits text into lower-case words, ignoring links.
func Words(text string) []string {
	text = reURL.ReplaceAllString(text, " ")
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r) && r != '-'
	})
	out := fields[:0]
	for _, f := range fields {
		f = strings.Trim(f, "-")
		if f != "" {
			out = append(out, strings.ReplaceAll(f, "ё", "е"))
		}
	}
	return out
}

// Emojis returns the pictographic runes of text in order.
func Emojis(text string) []string {
	var out []string
	for _, r := range text {
		if isEmoji(r) {
			out = append(out, string(r))
		}
	}
	return out
}

func isEmoji(r rune) bool {
	switch {
	case r >= 0x1F300 && r <= 0x1FAFF:
		return !(r >= 0x1F3FB && r <= 0x1F3FF)
	case r >= 0x2600 && r <= 0x27BF:
		return true
	}
	return false
}

func top(counts map[string]int, n int) []Count {
	out := make([]Count, 0, len(counts))
	for item, c := range counts {
		out = append(out, Count{Item: item, N: c})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].N != out[j].N {
			return out[i].N > out[j].N
		}
		return out[i].Item < out[j].Item
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}

// Characterize asks the model for a playful portrait of the author's style.
func Characterize(ctx context.Context, gen llm.Generator, provider, name string, r Report, samples []string) (string, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "Участник чата %s. Сообщений: %d, слов: %d, уникальных: %d, богатство словаря %.2f.\n",
		name, r.Messages, r.Words, r.Unique, r.Richness)
	b.WriteString("Любимые слова: ")
	for i, c := range r.TopWords {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(c.Item)
	}
	b.WriteString("\nПримеры сообщений:\n")
	for _, s := range samples {
		b.WriteString("- " + s + "\n")
	}
	b.WriteString("\nОпиши манеру общения этого человека в 2-3 шутливых, но не обидных предложениях.")

	res, err := gen.Generate(ctx, provider, llm.Prompt("Ты остроумный лингвист.", b.String()))
	if err != nil {
		return "", err
	}
	return res.Text, nil
}

func Format(name string, r Report, lang string) string {
	if r.Messages == 0 {
		return i18n.Getf("%s has not written anything I could analyse yet.", lang, html.Escape(name))
	}
	var b strings.Builder
	b.WriteString("📚 <b>" + i18n.Getf("Lexicon of %s", lang, html.Escape(name)) + "</b>\n\n")
	b.WriteString(i18n.Getf("Messages: %d", lang, r.Messages) + "\n")
	b.WriteString(i18n.Getf("Words: %d, unique: %d", lang, r.Words, r.Unique) + "\n")
	b.WriteString(i18n.Getf("Lexical richness: %.1f%%", lang, r.Richness*100) + "\n")
	b.WriteString(i18n.Getf("Words per message: %.1f", lang, r.AvgWords) + "\n")
	if r.LongestWord != "" {
		b.WriteString(i18n.Getf("Longest word: %s", lang, html.Escape(r.LongestWord)) + "\n")
	}
	if len(r.TopWords) > 0 {
		b.WriteString("\n<b>" + i18n.Get("Favourite words", lang) + "</b>: ")
		b.WriteString(joinCounts(r.TopWords))
		b.WriteString("\n")
	}
	if len(r.TopEmojis) > 0 {
		b.WriteString("<b>" + i18n.Get("Favourite emojis", lang) + "</b>: ")
		b.WriteString(joinCounts(r.TopEmojis))
		b.WriteString("\n")
	}
	return b.String()
}

func joinCounts(counts []Count) string {
	parts := make([]string, len(counts))
	for i, c := range counts {
		parts[i] = fmt.Sprintf("%s (%d)", html.Escape(c.Item), c.N)
	}
	return strings.Join(parts, ", ")
}
