// Package personality holds the bot characters a chat can switch between.
package personality

import (
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"sync"

	"github.com/iamwavecut/tool"
	"gopkg.in/yaml.v3"

	"github.com/iamwavecut/upupa/resources"
)

type Trigger struct {
	Words   []string `yaml:"words"`
	Replies []string `yaml:"replies"`
}

type Personality struct {
	ID          string    `yaml:"id"`
	Name        string    `yaml:"name"`
	Description string    `yaml:"description"`
	System      string    `yaml:"system"`
	Greeting    string    `yaml:"greeting"`
	Temperature float32   `yaml:"temperature"`
	Emojis      []string  `yaml:"emojis"`
	Fallback    []string  `yaml:"fallback"`
	Triggers    []Trigger `yaml:"triggers"`
}

type Catalog struct {
	items     []Personality
	byID      map[string]int
	defaultID string
}

var (
	ErrEmptyCatalog = errors.New("no personalities defined")

	builtin     *Catalog
	builtinOnce sync.Once
)

// Builtin returns the catalog embedded into the binary.
func Builtin(defaultID string) *Catalog {
	builtinOnce.Do(func() {
		data := tool.MustReturn(resources.FS.ReadFile("personalities.yaml"))
		builtin = tool.MustReturn(Parse(data, defaultID))
	})
	return builtin
}

func Parse(data []byte, defaultID string) (*Catalog, error) {
	var items []Personality
	if err := yaml.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("parse personalities: %w", err)
	}
	if len(items) == 0 {
		return nil, ErrEmptyCatalog
	}
	c := &Catalog{items: items, byID: map[string]int{}}
	for i, p := range items {
		if p.ID == "" {
			return nil, fmt.Errorf("personality #%d has no id", i)
		}
		c.byID[strings.ToLower(p.ID)] = i
	}
	c.defaultID = items[0].ID
	if _, ok := c.byID[strings.ToLower(defaultID)]; ok {
		c.defaultID = defaultID
	}
	return c, nil
}

func (c *Catalog) Get(id string) (Personality, bool) {
	i, ok := c.byID[strings.ToLower(id)]
	if !ok {
		return Personality{}, false
	}
	return c.items[i], true
}

// Resolve returns the personality for id or the default one.
func (c *Catalog) Resolve(id string) Personality {
	if p, ok := c.Get(id); ok {
		return p
	}
	p, _ := c.Get(c.defaultID)
	return p
}

func (c *Catalog) Default() Personality {
	return c.Resolve(c.defaultID)
}

func (c *Catalog) List() []Personality {
	return append([]Personality(nil), c.items...)
}

// SystemPrompt extends the character prompt with the chat context.
func (p Personality) SystemPrompt(chatTitle, lang string) string {
	var b strings.Builder
	b.WriteString(strings.TrimSpace(p.System))
	b.WriteString("\n\n")
	if chatTitle != "" {
		b.WriteString(fmt.Sprintf("Ты находишься в групповом чате \"%s\".\n", chatTitle))
	}
	if lang != "" {
		b.WriteString(fmt.Sprintf("Отвечай на языке с кодом \"%s\", если собеседник не пишет на другом.\n", lang))
	}
	b.WriteString("Пиши обычным текстом, допускается **жирный** и *курсив*. Не начинай ответ со своего имени.")
	return b.String()
}

func (p Personality) RandomEmoji(rng *rand.Rand) string {
	if len(p.Emojis) == 0 {
		return "👀"
	}
	return p.Emojis[rng.Intn(len(p.Emojis))]
}

func (p Personality) RandomFallback(rng *rand.Rand) string {
	if len(p.Fallback) == 0 {
		return "…"
	}
	return p.Fallback[rng.Intn(len(p.Fallback))]
}

// MatchTrigger returns a canned reply when text contains one of the trigger words.
func (p Personality) MatchTrigger(text string, rng *rand.Rand) (string, bool) {
	lower := strings.ToLower(text)
	for _, tr := range p.Triggers {
		if len(tr.Replies) == 0 {
			continue
		}
		for _, w := range tr.Words {
			if w != "" && strings.Contains(lower, strings.ToLower(w)) {
				return tr.Replies[rng.Intn(len(tr.Replies))], true
			}
		}
	}
	return "", false
}
