// Package birthday stores member birthdays and greets them once a year.
package birthday

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/iamwavecut/upupa/internal/html"
	"github.com/iamwavecut/upupa/internal/i18n"
	"github.com/iamwavecut/upupa/internal/llm"
	"github.com/iamwavecut/upupa/internal/storage"
)

const captionLimit = 900

var (
	ErrBadDate = errors.New("date must look like DD.MM")

	reDate = regexp.MustCompile(`^(\d{1,2})[./-](\d{1,2})(?:[./-](\d{2,4}))?$`)
)

// ParseDate accepts DD.MM with an optional year, which is ignored.
func ParseDate(s string) (day, month int, err error) {
	m := reDate.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return 0, 0, ErrBadDate
	}
	day, _ = strconv.Atoi(m[1])
	month, _ = strconv.Atoi(m[2])
	if month < 1 || month > 12 || day < 1 {
		return 0, 0, ErrBadDate
	}
	// 2024 is a leap year, so 29.02 is accepted.
	if day > time.Date(2024, time.Month(month)+1, 0, 0, 0, 0, 0, time.UTC).Day() {
		return 0, 0, ErrBadDate
	}
	return day, month, nil
}

type Store interface {
	Chat(chatID int64) (storage.ChatRecord, error)
	UpdateChat(chatID int64, fn func(*storage.ChatRecord) error) error
	ChatIDs() []int64
}

type Sender interface {
	Send(ctx context.Context, chatID int64, text string) error
	SendPhoto(ctx context.Context, chatID int64, image []byte, caption string) error
}

type Imager interface {
	GenerateImage(ctx context.Context, prompt string) ([]byte, string, error)
}

type Service struct {
	gen    llm.Generator
	imager Imager
	store  Store
	out    Sender
	loc    *time.Location
	hour   int
	now    func() time.Time
}

// New wires the service; imager may be nil, in which case greetings go without a postcard.
func New(gen llm.Generator, imager Imager, store Store, out Sender, loc *time.Location, hour int) *Service {
	if loc == nil {
		loc = time.UTC
	}
	return &Service{gen: gen, imager: imager, store: store, out: out, loc: loc, hour: hour, now: time.Now}
}

func (s *Service) Set(chatID, userID int64, name string, day, month int) error {
	return s.store.UpdateChat(chatID, func(rec *storage.ChatRecord) error {
		key := storage.UserKey(userID)
		b := rec.Birthdays[key]
		if b.Day != day || b.Month != month {
			b.GreetedYear = 0
		}
		b.UserID, b.Name, b.Day, b.Month = userID, name, day, month
		rec.Birthdays[key] = b
		return nil
	})
}

// Remove deletes the user's birthday and reports whether there was one.
func (s *Service) Remove(chatID, userID int64) (bool, error) {
	var found bool
	err := s.store.UpdateChat(chatID, func(rec *storage.ChatRecord) error {
		key := storage.UserKey(userID)
		_, found = rec.Birthdays[key]
		delete(rec.Birthdays, key)
		return nil
	})
	return found, err
}

type Upcoming struct {
	storage.Birthday
	Next     time.Time
	DaysLeft int
}

// Upcoming lists the chat's birthdays ordered by their next occurrence.
func (s *Service) Upcoming(chatID int64) ([]Upcoming, error) {
	rec, err := s.store.Chat(chatID)
	if err != nil {
		return nil, err
	}
	now := s.now().In(s.loc)
	y, m, d := now.Date()
	today := time.Date(y, m, d, 0, 0, 0, 0, s.loc)

	list := make([]Upcoming, 0, len(rec.Birthdays))
	for _, b := range rec.Birthdays {
		next := b.Next(now)
		list = append(list, Upcoming{
			Birthday: b,
			Next:     next,
			DaysLeft: int(next.Sub(today).Hours()+12) / 24,
		})
	}
	sort.Slice(list, func(i, j int) bool {
		if !list[i].Next.Equal(list[j].Next) {
			return list[i].Next.Before(list[j].Next)
		}
		return list[i].Name < list[j].Name
	})
	return list, nil
}

// Tick greets everyone whose birthday is today, once per year, at the configured hour.
func (s *Service) Tick(ctx context.Context) error {
	now := s.now().In(s.loc)
	if now.Hour() != s.hour {
		return nil
	}
	var errs []error
	for _, chatID := range s.store.ChatIDs() {
		rec, err := s.store.Chat(chatID)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if !rec.Active {
			continue
		}
		for key, b := range rec.Birthdays {
			if !b.IsOn(now) || b.GreetedYear == now.Year() {
				continue
			}
			if err := s.greet(ctx, chatID, b, rec.Settings); err != nil {
				errs = append(errs, fmt.Errorf("greet %d in %d: %w", b.UserID, chatID, err))
				continue
			}
			err := s.store.UpdateChat(chatID, func(rec *storage.ChatRecord) error {
				if cur, ok := rec.Birthdays[key]; ok {
					cur.GreetedYear = now.Year()
					rec.Birthdays[key] = cur
				}
				return nil
			})
			if err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

func (s *Service) greet(ctx context.Context, chatID int64, b storage.Birthday, settings storage.ChatSettings) error {
	text := i18n.Getf("🎉 Happy birthday, %s! Stay awesome!", settings.Language, b.Name)
	res, err := s.gen.Generate(ctx, settings.Provider, llm.Prompt(
		"Ты весёлый участник группового чата.",
		"Напиши короткое (до 4 предложений) тёплое и остроумное поздравление с днём рождения для "+b.Name+". Без хэштегов.",
	))
	if err != nil {
		log.WithError(err).WithField("chat", chatID).Warn("birthday greeting fallback")
	} else {
		text = "🎂 " + res.Text
	}

	if s.imager != nil {
		err := s.sendPostcard(ctx, chatID, b, text)
		if err == nil {
			return nil
		}
		log.WithError(err).WithField("chat", chatID).Debug("postcard skipped")
	}
	return s.out.Send(ctx, chatID, html.Render(text))
}

func (s *Service) sendPostcard(ctx context.Context, chatID int64, b storage.Birthday, text string) error {
	img, _, err := s.imager.GenerateImage(ctx, "Праздничная открытка с днём рождения для "+b.Name+", торт, шарики, яркие цвета, без надписей")
	if err != nil {
		return err
	}
	return s.out.SendPhoto(ctx, chatID, img, html.Render(html.Truncate(text, captionLimit)))
}

func FormatList(list []Upcoming, lang string) string {
	if len(list) == 0 {
		return i18n.Get("No birthdays yet. Add yours with /birthday DD.MM", lang)
	}
	var b strings.Builder
	b.WriteString("🎂 <b>" + i18n.Get("Birthdays", lang) + "</b>\n")
	for _, u := range list {
		fmt.Fprintf(&b, "\n%02d.%02d %s", u.Day, u.Month, html.Escape(u.Name))
		switch u.DaysLeft {
		case 0:
			b.WriteString(" 🎉 " + i18n.Get("today", lang))
		default:
			b.WriteString(" (" + i18n.Getf("in %d days", lang, u.DaysLeft) + ")")
		}
	}
	return b.String()
}
