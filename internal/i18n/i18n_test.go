package i18n

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	assert.Equal(t, "ru", Normalize("RU"))
	assert.Equal(t, "pt", Normalize("pt-BR"))
	assert.Equal(t, "en", Normalize(" en_US "))
	assert.Empty(t, Normalize(""))
}

func TestGet(t *testing.T) {
	assert.Equal(t, "Викторина", Get("Quiz", "ru"))
	assert.Equal(t, "Викторина", Get("Quiz", "ru-RU"))
	assert.Equal(t, "Quiz", Get("Quiz", "en"))
	assert.Equal(t, "Quiz", Get("Quiz", ""))
	assert.Equal(t, "Quiz", Get("Quiz", "de"), "missing language falls back to the key")
	assert.Equal(t, "no such key", Get("no such key", "ru"))
	assert.Equal(t, "Сообщений: 3", Getf("Messages: %d", "ru", 3))
}

func TestLanguages(t *testing.T) {
	assert.Equal(t, []string{"en", "ru"}, GetLanguagesList())
	assert.True(t, Supported("RU"))
	assert.True(t, Supported("en-GB"))
	assert.False(t, Supported("de"))
}

func TestParseBroken(t *testing.T) {
	c := parse(nil, errors.New("missing"))
	assert.Equal(t, []string{"en"}, c.languages)
	assert.Equal(t, "Quiz", c.get("Quiz", "ru"))

	c = parse([]byte("::: not yaml"), nil)
	assert.Equal(t, "Quiz", c.get("Quiz", "ru"))
}
