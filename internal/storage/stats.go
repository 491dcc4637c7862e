package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

const statsSchema = `
CREATE TABLE IF NOT EXISTS message_stats (
	chat_id  INTEGER NOT NULL,
	user_id  INTEGER NOT NULL,
	username TEXT    NOT NULL DEFAULT '',
	day      TEXT    NOT NULL,
	count    INTEGER NOT NULL DEFAULT 0
)`

const dayLayout = "2006-01-02"

// Stats counts messages per chat, user and day in a single SQLite table.
type Stats struct {
	db *sql.DB
}

type UserCount struct {
	UserID   int64
	Username string
	Count    int
}

func OpenStats(path string) (*Stats, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open stats db: %w", err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(statsSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create stats schema: %w", err)
	}
	return &Stats{db: db}, nil
}

func (s *Stats) Close() error {
	return s.db.Close()
}

func (s *Stats) Record(ctx context.Context, chatID, userID int64, username string, at time.Time) error {
	day := at.Format(dayLayout)
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT count FROM message_stats WHERE chat_id = ? AND user_id = ? AND day = ?`,
		chatID, userID, day,
	).Scan(&count)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		_, err = s.db.ExecContext(ctx,
			`INSERT INTO message_stats (chat_id, user_id, username, day, count) VALUES (?, ?, ?, ?, 1)`,
			chatID, userID, username, day,
		)
	case err == nil:
		_, err = s.db.ExecContext(ctx,
			`UPDATE message_stats SET count = ?, username = ? WHERE chat_id = ? AND user_id = ? AND day = ?`,
			count+1, username, chatID, userID, day,
		)
	}
	if err != nil {
		return fmt.Errorf("record message stats: %w", err)
	}
	return nil
}

// Top returns the n most active users of a chat since the given day.
func (s *Stats) Top(ctx context.Context, chatID int64, since time.Time, n int) ([]UserCount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT user_id, MAX(username), SUM(count) AS total
		FROM message_stats
		WHERE chat_id = ? AND day >= ?
		GROUP BY user_id
		ORDER BY total DESC, user_id ASC
		LIMIT ?`,
		chatID, since.Format(dayLayout), n,
	)
	if err != nil {
		return nil, fmt.Errorf("query top users: %w", err)
	}
	defer rows.Close()

	var out []UserCount
	for rows.Next() {
		var uc UserCount
		if err := rows.Scan(&uc.UserID, &uc.Username, &uc.Count); err != nil {
			return nil, err
		}
		out = append(out, uc)
	}
	return out, rows.Err()
}

// Total returns the overall message and distinct user counts of a chat.
func (s *Stats) Total(ctx context.Context, chatID int64) (messages, users int, err error) {
	err = s.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(count), 0), COUNT(DISTINCT user_id) FROM message_stats WHERE chat_id = ?`,
		chatID,
	).Scan(&messages, &users)
	if err != nil {
		return 0, 0, fmt.Errorf("query totals: %w", err)
	}
	return messages, users, nil
}
