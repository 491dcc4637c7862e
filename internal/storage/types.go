package storage

import (
	"strconv"
	"time"
)

type ChatSettings struct {
	Personality     string  `json:"personality"`
	Provider        string  `json:"provider"`
	Language        string  `json:"language"`
	RandomEnabled   bool    `json:"random_enabled"`
	SpamFilter      bool    `json:"spam_filter"`
	ReactionChance  float64 `json:"reaction_chance"`
	ReplyChance     float64 `json:"reply_chance"`
	VoiceChance     float64 `json:"voice_chance"`
	ImageChance     float64 `json:"image_chance"`
	TriggerChance   float64 `json:"trigger_chance"`
	QuietThreshold  int     `json:"quiet_threshold"`
	CooldownSeconds int     `json:"cooldown_seconds"`
}

func (s ChatSettings) Cooldown() time.Duration {
	return time.Duration(s.CooldownSeconds) * time.Second
}

type Birthday struct {
	UserID      int64  `json:"user_id"`
	Name        string `json:"name"`
	Day         int    `json:"day"`
	Month       int    `json:"month"`
	GreetedYear int    `json:"greeted_year"`
}

// Next returns the next occurrence of the birthday at or after from (date precision).
func (b Birthday) Next(from time.Time) time.Time {
	y, m, d := from.Date()
	today := time.Date(y, m, d, 0, 0, 0, 0, from.Location())
	next := dateOf(y, b.Month, b.Day, from.Location())
	if next.Before(today) {
		next = dateOf(y+1, b.Month, b.Day, from.Location())
	}
	return next
}

// IsOn reports whether the birthday falls on t; 29 Feb is celebrated on 28 Feb in common years.
func (b Birthday) IsOn(t time.Time) bool {
	y, m, d := t.Date()
	bd := dateOf(y, b.Month, b.Day, t.Location())
	return bd.Month() == m && bd.Day() == d
}

func dateOf(year, month, day int, loc *time.Location) time.Time {
	if month == 2 && day == 29 && !isLeap(year) {
		day = 28
	}
	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, loc)
}

func isLeap(y int) bool {
	return y%4 == 0 && (y%100 != 0 || y%400 == 0)
}

type QuizScore struct {
	UserID   int64  `json:"user_id"`
	Name     string `json:"name"`
	Correct  int    `json:"correct"`
	Answered int    `json:"answered"`
}

type Quiz struct {
	ID          string         `json:"id"`
	Question    string         `json:"question"`
	Options     []string       `json:"options"`
	Answer      int            `json:"answer"`
	Explanation string         `json:"explanation"`
	CreatedAt   time.Time      `json:"created_at"`
	Answers     map[string]int `json:"answers"`
}

type Turn struct {
	Role    string `json:"role"`
	Name    string `json:"name,omitempty"`
	Content string `json:"content"`
}

type AdventureSession struct {
	Setting   string    `json:"setting"`
	History   []Turn    `json:"history"`
	Turns     int       `json:"turns"`
	StartedAt time.Time `json:"started_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Member struct {
	UserID   int64     `json:"user_id"`
	Name     string    `json:"name"`
	JoinedAt time.Time `json:"joined_at"`
	LeftAt   time.Time `json:"left_at,omitempty"`
	Messages int       `json:"messages"`
}

type ChatRecord struct {
	ID        int64                `json:"id"`
	Title     string               `json:"title"`
	Active    bool                 `json:"active"`
	Settings  ChatSettings         `json:"settings"`
	Birthdays map[string]Birthday  `json:"birthdays"`
	Scores    map[string]QuizScore `json:"scores"`
	Quizzes   map[string]Quiz      `json:"quizzes"`
	Adventure *AdventureSession    `json:"adventure,omitempty"`
	Members   map[string]Member    `json:"members"`
	UpdatedAt time.Time            `json:"updated_at"`
}

func (r *ChatRecord) ensureMaps() {
	if r.Birthdays == nil {
		r.Birthdays = map[string]Birthday{}
	}
	if r.Scores == nil {
		r.Scores = map[string]QuizScore{}
	}
	if r.Quizzes == nil {
		r.Quizzes = map[string]Quiz{}
	}
	if r.Members == nil {
		r.Members = map[string]Member{}
	}
}

// UserKey is the map key used for per-user records.
func UserKey(userID int64) string {
	return strconv.FormatInt(userID, 10)
}
