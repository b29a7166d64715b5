package domain

import "time"

// Exchange is one completed turn: the farmer's raw message and the localized
// reply, both in the session's language.
type Exchange struct {
	Timestamp   time.Time `json:"timestamp"`
	UserMessage string    `json:"user_message"`
	BotResponse string    `json:"bot_response"`
}

// Session is a conversation owned by a single user. Exchanges are kept in
// append order and are never rewritten.
type Session struct {
	ID        string
	UserID    string
	Language  Language
	Exchanges []Exchange
	CreatedAt time.Time
	UpdatedAt time.Time
}

// SessionSummary is the listing shape for a user's sessions.
type SessionSummary struct {
	ID           string
	Language     Language
	MessageCount int
	LastMessage  string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Recent returns the last n exchanges in chronological order, or the whole
// log when it is shorter than n. The returned slice does not alias the session.
func (s Session) Recent(n int) []Exchange {
	if n <= 0 || len(s.Exchanges) == 0 {
		return nil
	}
	start := 0
	if len(s.Exchanges) > n {
		start = len(s.Exchanges) - n
	}
	out := make([]Exchange, len(s.Exchanges)-start)
	copy(out, s.Exchanges[start:])
	return out
}

// WithExchange returns a copy of s with ex appended and UpdatedAt moved to the
// exchange timestamp. s itself is left untouched.
func (s Session) WithExchange(ex Exchange) Session {
	next := s
	next.Exchanges = make([]Exchange, len(s.Exchanges), len(s.Exchanges)+1)
	copy(next.Exchanges, s.Exchanges)
	next.Exchanges = append(next.Exchanges, ex)
	next.UpdatedAt = ex.Timestamp
	return next
}

// Summary builds the listing view of s.
func (s Session) Summary() SessionSummary {
	sum := SessionSummary{
		ID:           s.ID,
		Language:     s.Language,
		MessageCount: len(s.Exchanges),
		CreatedAt:    s.CreatedAt,
		UpdatedAt:    s.UpdatedAt,
	}
	if n := len(s.Exchanges); n > 0 {
		sum.LastMessage = s.Exchanges[n-1].UserMessage
	}
	return sum
}
