// Package chatlog appends every chat message to a flat text file and parses it
// back to rebuild history for prompts, statistics and search.
package chatlog

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/iamwavecut/upupa/internal/llm"
)

const timeLayout = "2006-01-02 15:04:05"

var (
	reLine = regexp.MustCompile(`^\[(\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2})\] \[chat:(-?\d+)\] (.*?) \((-?\d+)\): (.*)$`)

	escaper   = strings.NewReplacer(`\`, `\\`, "\n", `\n`, "\r", "")
	unescaper = strings.NewReplacer(`\\`, `\`, `\n`, "\n")
)

type Entry struct {
	Time   time.Time
	ChatID int64
	UserID int64
	Name   string
	Text   string
}

func (e Entry) String() string {
	return fmt.Sprintf("[%s] [chat:%d] %s (%d): %s",
		e.Time.Format(timeLayout), e.ChatID, oneLine(e.Name), e.UserID, escaper.Replace(e.Text))
}

// Parse reads a single log line.
func Parse(line string) (Entry, bool) {
	m := reLine.FindStringSubmatch(strings.TrimRight(line, "\r\n"))
	if m == nil {
		return Entry{}, false
	}
	ts, err := time.ParseInLocation(timeLayout, m[1], time.Local)
	if err != nil {
		return Entry{}, false
	}
	chatID, err := strconv.ParseInt(m[2], 10, 64)
	if err != nil {
		return Entry{}, false
	}
	userID, err := strconv.ParseInt(m[4], 10, 64)
	if err != nil {
		return Entry{}, false
	}
	return Entry{Time: ts, ChatID: chatID, Name: m[3], UserID: userID, Text: unescaper.Replace(m[5])}, true
}

type Log struct {
	mu   sync.Mutex
	path string
	out  io.WriteCloser
}

// Open appends to path, rotating it by size.
func Open(path string) *Log {
	return &Log{
		path: path,
		out: &lumberjack.Logger{
			Filename:   path,
			MaxSize:    50,
			MaxBackups: 5,
			MaxAge:     365,
		},
	}
}

func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.out.Close()
}

func (l *Log) Append(e Entry) error {
	if strings.TrimSpace(e.Text) == "" {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, err := io.WriteString(l.out, e.String()+"\n"); err != nil {
		return fmt.Errorf("append chat log: %w", err)
	}
	return nil
}

// Entries returns every parsed entry of the current log file accepted by keep.
func (l *Log) Entries(keep func(Entry) bool) ([]Entry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.Open(l.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open chat log: %w", err)
	}
	defer f.Close()

	var out []Entry
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		e, ok := Parse(scanner.Text())
		if ok && (keep == nil || keep(e)) {
			out = append(out, e)
		}
	}
	if err := scanner.Err(); err != nil {
		return out, fmt.Errorf("read chat log: %w", err)
	}
	return out, nil
}

// Tail returns the last n entries of a chat.
func (l *Log) Tail(chatID int64, n int) ([]Entry, error) {
	entries, err := l.Entries(func(e Entry) bool { return e.ChatID == chatID })
	if len(entries) > n {
		entries = entries[len(entries)-n:]
	}
	return entries, err
}

func (l *Log) ByUser(chatID, userID int64) ([]Entry, error) {
	return l.Entries(func(e Entry) bool { return e.ChatID == chatID && e.UserID == userID })
}

// ToMessages turns log entries into a conversation where the bot's own lines are
// assistant turns.
func ToMessages(entries []Entry, botID int64) []llm.Message {
	out := make([]llm.Message, 0, len(entries))
	for _, e := range entries {
		if e.UserID == botID {
			out = append(out, llm.Message{Role: llm.RoleAssistant, Content: e.Text})
			continue
		}
		out = append(out, llm.Message{Role: llm.RoleUser, Name: e.Name, Content: e.Text})
	}
	return out
}

// Transcript renders entries as "Name: text" lines for summarisation prompts.
func Transcript(entries []Entry) string {
	var b strings.Builder
	for _, e := range entries {
		b.WriteString(e.Name)
		b.WriteString(": ")
		b.WriteString(e.Text)
		b.WriteString("\n")
	}
	return b.String()
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
