// Package i18n translates user-facing strings. Keys are the English texts;
// resources/i18n.yaml maps them to other languages by upper-case code.
package i18n

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/iamwavecut/upupa/resources"
)

const fallbackLanguage = "en"

type catalog struct {
	translations map[string]map[string]string // [key][LANG]translation
	languages    []string
}

var (
	loaded   catalog
	loadOnce sync.Once
)

func load() *catalog {
	loadOnce.Do(func() {
		loaded = parse(resources.FS.ReadFile("i18n.yaml"))
		log.WithField("languages", loaded.languages).Traceln("translations loaded")
	})
	return &loaded
}

func parse(data []byte, err error) catalog {
	c := catalog{translations: map[string]map[string]string{}, languages: []string{fallbackLanguage}}
	if err != nil {
		log.WithError(err).Errorln("cant load translations")
		return c
	}
	if err := yaml.Unmarshal(data, &c.translations); err != nil {
		log.WithError(err).Errorln("cant unmarshal translations")
		return c
	}
	seen := map[string]bool{fallbackLanguage: true}
	for _, langs := range c.translations {
		for lang := range langs {
			if lang = Normalize(lang); !seen[lang] {
				seen[lang] = true
				c.languages = append(c.languages, lang)
			}
		}
	}
	sort.Strings(c.languages)
	return c
}

// Normalize reduces an IETF tag such as "pt-BR" to its lower-case primary subtag.
func Normalize(lang string) string {
	lang = strings.TrimSpace(lang)
	if i := strings.IndexAny(lang, "-_"); i >= 0 {
		lang = lang[:i]
	}
	return strings.ToLower(lang)
}

func GetLanguagesList() []string {
	return append([]string(nil), load().languages...)
}

// Supported reports whether texts can be shown in lang.
func Supported(lang string) bool {
	lang = Normalize(lang)
	for _, l := range load().languages {
		if l == lang {
			return true
		}
	}
	return false
}

func (c *catalog) get(key, lang string) string {
	lang = Normalize(lang)
	if lang == "" || lang == fallbackLanguage {
		return key
	}
	if res, ok := c.translations[key][strings.ToUpper(lang)]; ok {
		return res
	}
	log.Traceln(`no "` + lang + `" translation for key "` + key + `"`)
	return key
}

func Get(key, lang string) string {
	return load().get(key, lang)
}

// Getf formats the translated key with args.
func Getf(key, lang string, args ...any) string {
	return fmt.Sprintf(Get(key, lang), args...)
}
