package html

import (
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/iamwavecut/tool"
	"golang.org/x/net/html"
)

// TelegramTags are the tags Telegram accepts in HTML parse mode that model output may carry.
var TelegramTags = []string{"b", "i", "u", "s", "code", "pre", "tg-spoiler", "blockquote"}

// MaxMessageLength is the Telegram limit for a text message, in runes.
const MaxMessageLength = 4096

var (
	reFence  = regexp.MustCompile("(?s)```[a-zA-Z0-9_+-]*\n?(.*?)```")
	reCode   = regexp.MustCompile("`([^`\n]+)`")
	reBold   = regexp.MustCompile(`\*\*([^*\n]+)\*\*`)
	reItalic = regexp.MustCompile(`(^|[^*\w])\*([^*\n]+)\*([^*\w]|$)`)
	reStrike = regexp.MustCompile(`~~([^~\n]+)~~`)
	reHeader = regexp.MustCompile(`(?m)^#{1,6}\s+(.+)$`)
)

func Sanitize(input string, allowedTags []string) (string, error) {
	var output strings.Builder

	tokenizer := html.NewTokenizer(strings.NewReader(input))
	for {
		tokenType := tokenizer.Next()
		token := tokenizer.Token()

		switch tokenType {
		case html.ErrorToken: // End of the document
			if tokenizer.Err() != io.EOF {
				return output.String(), tokenizer.Err()
			}
			return output.String(), nil
		case html.TextToken:
			output.WriteString(html.EscapeString(token.Data))
		case html.StartTagToken, html.EndTagToken:
			if tool.In(token.Data, allowedTags) {
				tag := "<" + token.Data + ">"
				if tokenType == html.EndTagToken {
					tag = "</" + token.Data + ">"
				}
				output.WriteString(tag)
			} else {
				tag := token.Data
				if tokenType == html.EndTagToken {
					tag = "/" + tag
				}
				output.WriteString(fmt.Sprintf("&lt;%s&gt;", tag))
			}
		case html.SelfClosingTagToken:
			if token.Data == "br" {
				output.WriteString("\n")
			}
		}
	}
}

// Render turns model output into Telegram HTML: it truncates to the message limit,
// escapes everything outside TelegramTags and converts common markdown emphasis.
func Render(input string) string {
	input = Truncate(strings.TrimSpace(input), MaxMessageLength-64)
	sanitized, err := Sanitize(input, TelegramTags)
	if err != nil {
		sanitized = html.EscapeString(input)
	}
	return FromMarkdown(sanitized)
}

func FromMarkdown(s string) string {
	s = reFence.ReplaceAllString(s, "<pre>$1</pre>")
	s = reCode.ReplaceAllString(s, "<code>$1</code>")
	s = reBold.ReplaceAllString(s, "<b>$1</b>")
	s = reItalic.ReplaceAllString(s, "$1<i>$2</i>$3")
	s = reStrike.ReplaceAllString(s, "<s>$1</s>")
	s = reHeader.ReplaceAllString(s, "<b>$1</b>")
	return s
}

// Escape escapes text for HTML parse mode.
func Escape(s string) string {
	return html.EscapeString(s)
}

func Truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit-1]) + "…"
}
