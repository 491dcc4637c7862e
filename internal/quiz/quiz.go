// Package quiz runs LLM generated multiple-choice quizzes with a per-chat leaderboard.
package quiz

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/iamwavecut/upupa/internal/html"
	"github.com/iamwavecut/upupa/internal/i18n"
	"github.com/iamwavecut/upupa/internal/llm"
	"github.com/iamwavecut/upupa/internal/storage"
)

const (
	callbackPrefix = "quiz"
	quizTTL        = 24 * time.Hour
	maxOptions     = 6
)

var (
	ErrBadQuestion  = errors.New("malformed quiz question")
	ErrQuizNotFound = errors.New("quiz not found")
)

type Question struct {
	Question    string   `json:"question"`
	Options     []string `json:"options"`
	Answer      int      `json:"answer"`
	Explanation string   `json:"explanation"`
}

// ParseQuestion extracts the question object from a model reply. Code fences and
// chatter around the JSON are ignored; the answer may be an index or the option text.
func ParseQuestion(raw string) (Question, error) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return Question{}, fmt.Errorf("%w: no json object", ErrBadQuestion)
	}

	var loose struct {
		Question    string          `json:"question"`
		Options     []string        `json:"options"`
		Answer      json.RawMessage `json:"answer"`
		Explanation string          `json:"explanation"`
	}
	if err := json.Unmarshal([]byte(raw[start:end+1]), &loose); err != nil {
		return Question{}, fmt.Errorf("%w: %w", ErrBadQuestion, err)
	}

	q := Question{
		Question:    strings.TrimSpace(loose.Question),
		Explanation: strings.TrimSpace(loose.Explanation),
		Answer:      -1,
	}
	for _, o := range loose.Options {
		if o = strings.TrimSpace(o); o != "" {
			q.Options = append(q.Options, o)
		}
	}
	if q.Question == "" || len(q.Options) < 2 || len(q.Options) > maxOptions {
		return Question{}, fmt.Errorf("%w: need a question and 2..%d options", ErrBadQuestion, maxOptions)
	}

	q.Answer = resolveAnswer(loose.Answer, q.Options)
	if q.Answer < 0 || q.Answer >= len(q.Options) {
		return Question{}, fmt.Errorf("%w: answer out of range", ErrBadQuestion)
	}
	return q, nil
}

// resolveAnswer maps the model's answer to an option index. A string is matched
// against the option texts before being read as an index, so options that are
// themselves numbers resolve by text. Returns -1 when nothing matches.
func resolveAnswer(raw json.RawMessage, options []string) int {
	var text string
	if json.Unmarshal(raw, &text) != nil {
		var idx int
		if json.Unmarshal(raw, &idx) != nil {
			return -1
		}
		if idx >= 0 && idx < len(options) {
			return idx
		}
		text = strconv.Itoa(idx)
	}
	text = strings.TrimSpace(text)
	for i, o := range options {
		if strings.EqualFold(o, text) {
			return i
		}
	}
	if n, err := strconv.Atoi(text); err == nil {
		return n
	}
	return -1
}

type Store interface {
	Chat(chatID int64) (storage.ChatRecord, error)
	UpdateChat(chatID int64, fn func(*storage.ChatRecord) error) error
}

type Button struct {
	Text string
	Data string
}

type Sender interface {
	SendButtons(ctx context.Context, chatID int64, text string, buttons []Button) error
}

type Service struct {
	gen   llm.Generator
	store Store
	out   Sender
	now   func() time.Time
	newID func() string
}

func New(gen llm.Generator, store Store, out Sender) *Service {
	return &Service{
		gen:   gen,
		store: store,
		out:   out,
		now:   time.Now,
		newID: func() string { return uuid.NewString()[:8] },
	}
}

// Start generates a question on topic, stores it as pending and posts it with answer buttons.
func (s *Service) Start(ctx context.Context, chatID int64, topic string, settings storage.ChatSettings) (storage.Quiz, error) {
	q, err := s.generate(ctx, topic, settings)
	if err != nil {
		return storage.Quiz{}, err
	}

	quiz := storage.Quiz{
		ID:          s.newID(),
		Question:    q.Question,
		Options:     q.Options,
		Answer:      q.Answer,
		Explanation: q.Explanation,
		CreatedAt:   s.now(),
		Answers:     map[string]int{},
	}
	err = s.store.UpdateChat(chatID, func(rec *storage.ChatRecord) error {
		for id, old := range rec.Quizzes {
			if s.now().Sub(old.CreatedAt) > quizTTL {
				delete(rec.Quizzes, id)
			}
		}
		rec.Quizzes[quiz.ID] = quiz
		return nil
	})
	if err != nil {
		return storage.Quiz{}, fmt.Errorf("save quiz: %w", err)
	}

	buttons := make([]Button, len(quiz.Options))
	for i, o := range quiz.Options {
		buttons[i] = Button{Text: o, Data: CallbackData(chatID, quiz.ID, i)}
	}
	if err := s.out.SendButtons(ctx, chatID, FormatQuestion(quiz, settings.Language), buttons); err != nil {
		return quiz, fmt.Errorf("send quiz: %w", err)
	}
	return quiz, nil
}

func (s *Service) generate(ctx context.Context, topic string, settings storage.ChatSettings) (Question, error) {
	if strings.TrimSpace(topic) == "" {
		topic = "любая интересная тема: наука, история, география, кино или язык"
	}
	req := llm.Prompt(
		"Ты ведущий викторины. Отвечай только JSON без пояснений.",
		"Придумай один вопрос викторины на русском языке. Тема: "+topic+".\n"+
			`Формат: {"question": "...", "options": ["...", "...", "...", "..."], "answer": <индекс правильного варианта от 0>, "explanation": "короткое объяснение"}`,
	)
	req.Temperature = 1

	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		res, err := s.gen.Generate(ctx, settings.Provider, req)
		if err != nil {
			return Question{}, err
		}
		q, err := ParseQuestion(res.Text)
		if err == nil {
			return q, nil
		}
		lastErr = err
		log.WithError(err).WithField("provider", res.Provider).Debug("unparsable quiz, retrying")
	}
	return Question{}, lastErr
}

type Outcome struct {
	Correct     bool
	Already     bool
	RightOption string
	Explanation string
}

// Answer records the first answer of a user; repeated answers change nothing.
func (s *Service) Answer(chatID int64, quizID string, userID int64, name string, option int) (Outcome, error) {
	var out Outcome
	err := s.store.UpdateChat(chatID, func(rec *storage.ChatRecord) error {
		quiz, ok := rec.Quizzes[quizID]
		if !ok || option < 0 || option >= len(quiz.Options) {
			return ErrQuizNotFound
		}
		out.RightOption = quiz.Options[quiz.Answer]
		out.Explanation = quiz.Explanation

		key := storage.UserKey(userID)
		if quiz.Answers == nil {
			quiz.Answers = map[string]int{}
		}
		if prev, answered := quiz.Answers[key]; answered {
			out.Already = true
			out.Correct = prev == quiz.Answer
			return nil
		}
		quiz.Answers[key] = option
		rec.Quizzes[quizID] = quiz

		out.Correct = option == quiz.Answer
		score := rec.Scores[key]
		score.UserID = userID
		score.Name = name
		score.Answered++
		if out.Correct {
			score.Correct++
		}
		rec.Scores[key] = score
		return nil
	})
	return out, err
}

// Leaderboard returns the top n players by correct answers.
func (s *Service) Leaderboard(chatID int64, n int) ([]storage.QuizScore, error) {
	rec, err := s.store.Chat(chatID)
	if err != nil {
		return nil, err
	}
	scores := make([]storage.QuizScore, 0, len(rec.Scores))
	for _, sc := range rec.Scores {
		scores = append(scores, sc)
	}
	sort.Slice(scores, func(i, j int) bool {
		if scores[i].Correct != scores[j].Correct {
			return scores[i].Correct > scores[j].Correct
		}
		if scores[i].Answered != scores[j].Answered {
			return scores[i].Answered < scores[j].Answered
		}
		return scores[i].UserID < scores[j].UserID
	})
	if len(scores) > n {
		scores = scores[:n]
	}
	return scores, nil
}

func CallbackData(chatID int64, quizID string, option int) string {
	return fmt.Sprintf("%s:%d:%s:%d", callbackPrefix, chatID, quizID, option)
}

// ParseCallback decodes data produced by CallbackData.
func ParseCallback(data string) (chatID int64, quizID string, option int, ok bool) {
	parts := strings.Split(data, ":")
	if len(parts) != 4 || parts[0] != callbackPrefix {
		return 0, "", 0, false
	}
	chatID, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return 0, "", 0, false
	}
	option, err = strconv.Atoi(parts[3])
	if err != nil {
		return 0, "", 0, false
	}
	return chatID, parts[2], option, parts[2] != ""
}

func IsCallback(data string) bool {
	return strings.HasPrefix(data, callbackPrefix+":")
}

func FormatQuestion(q storage.Quiz, lang string) string {
	var b strings.Builder
	b.WriteString("🧠 <b>" + i18n.Get("Quiz", lang) + "</b>\n\n")
	b.WriteString(html.Escape(q.Question))
	b.WriteString("\n")
	for i, o := range q.Options {
		fmt.Fprintf(&b, "\n%d. %s", i+1, html.Escape(o))
	}
	return b.String()
}

func FormatOutcome(name string, o Outcome, lang string) string {
	name = html.Escape(name)
	if o.Correct {
		return i18n.Getf("✅ %s is right! Answer: %s", lang, name, html.Escape(o.RightOption)) + explanation(o)
	}
	return i18n.Getf("❌ %s is wrong. Right answer: %s", lang, name, html.Escape(o.RightOption)) + explanation(o)
}

func explanation(o Outcome) string {
	if o.Explanation == "" {
		return ""
	}
	return "\n<i>" + html.Escape(o.Explanation) + "</i>"
}

func FormatLeaderboard(scores []storage.QuizScore, lang string) string {
	if len(scores) == 0 {
		return i18n.Get("Nobody has answered a quiz here yet.", lang)
	}
	var b strings.Builder
	b.WriteString("🏆 <b>" + i18n.Get("Quiz leaderboard", lang) + "</b>\n")
	for i, sc := range scores {
		fmt.Fprintf(&b, "\n%d. %s: %d/%d", i+1, html.Escape(sc.Name), sc.Correct, sc.Answered)
	}
	return b.String()
}
