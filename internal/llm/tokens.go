package llm

import (
	"regexp"
	"strings"
	"sync"

	t "github.com/alexsergivan/transliterator"
	"github.com/iamwavecut/tool"
	"github.com/tiktoken-go/tokenizer"

	"github.com/iamwavecut/upupa/internal/reg"
)

const openaiMaxNameLen = 64

var (
	encoder     tokenizer.Codec
	encoderOnce sync.Once
	reNameChars = regexp.MustCompile(`[^a-zA-Z0-9_-]`)
)

func codec() tokenizer.Codec {
	encoderOnce.Do(func() {
		encoder = tool.MustReturn(tokenizer.Get(tokenizer.Cl100kBase))
	})
	return encoder
}

// CountTokens approximates provider token usage with cl100k.
func CountTokens(s string) int {
	ids, _, err := codec().Encode(s)
	if tool.Try(err) {
		return len(s) / 3
	}
	return len(ids)
}

// TrimToBudget drops the oldest messages until the rest fits into budget tokens.
// The newest message is always kept.
func TrimToBudget(messages []Message, budget int) []Message {
	if len(messages) == 0 {
		return messages
	}
	costs := make([]int, len(messages))
	total := 0
	for i, m := range messages {
		costs[i] = CountTokens(m.Content)
		total += costs[i]
	}
	offset := 0
	for total > budget && offset < len(messages)-1 {
		total -= costs[offset]
		offset++
	}
	return messages[offset:]
}

// SanitizeName fits a display name into the OpenAI "name" field.
func SanitizeName(name string) string {
	return reg.Get("name_"+name, func() string {
		s := t.NewTransliterator(nil).Transliterate(strings.ToLower(name), "en")
		s = reNameChars.ReplaceAllString(s, "")
		if len(s) > openaiMaxNameLen {
			s = s[:openaiMaxNameLen]
		}
		if s == "" {
			s = "user"
		}
		return s
	}())
}
