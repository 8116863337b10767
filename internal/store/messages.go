package store

import (
	"errors"
	"fmt"
	"time"
)

// DefaultRecentLimit bounds Recent when the caller passes no positive limit.
const DefaultRecentLimit = 50

// Append inserts a new chat log row and returns the persisted timestamp.
// Database failures are reported as ErrUnavailable.
func (s *Store) Append(sender Sender, text string) (time.Time, error) {
	if !sender.Valid() {
		return time.Time{}, fmt.Errorf("invalid sender %q", sender)
	}
	if text == "" {
		return time.Time{}, errors.New("message text is required")
	}

	createdAt := time.Now().UTC().Truncate(time.Millisecond)
	_, err := s.db.Exec(
		`INSERT INTO messages (sender, message, created_at) VALUES (?, ?, ?)`,
		string(sender),
		text,
		createdAt.UnixMilli(),
	)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: insert message: %v", ErrUnavailable, err)
	}

	return createdAt, nil
}

// Recent returns the most recent messages ascending by creation time.
// At most limit rows are returned; a non-positive limit falls back to
// DefaultRecentLimit.
func (s *Store) Recent(limit int) ([]Message, error) {
	if limit <= 0 {
		limit = DefaultRecentLimit
	}

	rows, err := s.db.Query(
		`SELECT sender, message, created_at
		FROM messages
		ORDER BY created_at DESC, id DESC
		LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: query recent messages: %v", ErrUnavailable, err)
	}
	defer rows.Close()

	messages := make([]Message, 0, limit)
	for rows.Next() {
		var (
			sender    string
			text      string
			createdAt int64
		)
		if err := rows.Scan(&sender, &text, &createdAt); err != nil {
			return nil, fmt.Errorf("scan message row: %w", err)
		}
		messages = append(messages, Message{
			Sender:    Sender(sender),
			Text:      text,
			CreatedAt: time.UnixMilli(createdAt).UTC(),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate message rows: %w", err)
	}

	// The query walks newest-first so LIMIT keeps the latest rows; flip back
	// to chronological order for replay.
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}

	return messages, nil
}
