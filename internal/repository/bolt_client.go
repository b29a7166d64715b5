package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	bolt "go.etcd.io/bbolt"

	"agri-advisor/internal/domain"
)

var sessionsBucket = []byte("sessions")

type sessionRecord struct {
	ID        string            `json:"id"`
	UserID    string            `json:"user_id"`
	Language  string            `json:"language"`
	Exchanges []domain.Exchange `json:"exchanges"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// BoltStore keeps sessions in a local BoltDB file, one JSON record per
// session. Every mutation runs in a single write transaction.
type BoltStore struct {
	db  *bolt.DB
	now func() time.Time
}

func OpenBoltStore(path string) (*BoltStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("repository: bolt path must not be empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("repository: create bolt dir: %w", err)
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("repository: open bolt: %w", err)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(sessionsBucket)
		return err
	}); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("repository: create bucket: %w", err)
	}
	return &BoltStore{db: db, now: func() time.Time { return time.Now().UTC() }}, nil
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}

// boltKey scopes session ids to their owner.
func boltKey(userID, sessionID string) []byte {
	return []byte(userID + "\x00" + sessionID)
}

func (s *BoltStore) GetOrCreate(_ context.Context, userID, sessionID string, language domain.Language) (domain.Session, error) {
	if err := validateKey(userID, sessionID); err != nil {
		return domain.Session{}, err
	}
	var rec sessionRecord
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(sessionsBucket)
		key := boltKey(userID, sessionID)
		if raw := b.Get(key); raw != nil {
			return json.Unmarshal(raw, &rec)
		}
		now := s.now()
		rec = sessionRecord{
			ID:        sessionID,
			UserID:    userID,
			Language:  string(language),
			CreatedAt: now,
			UpdatedAt: now,
		}
		return putRecord(b, key, rec)
	})
	if err != nil {
		return domain.Session{}, fmt.Errorf("repository: GetOrCreate: %w", err)
	}
	return rec.toSession(), nil
}

// Append re-reads the stored record inside the transaction so that
// concurrent appends to the same session are serialized, not overwritten.
func (s *BoltStore) Append(_ context.Context, sess domain.Session, userMessage, botResponse string) (domain.Session, error) {
	if err := validateKey(sess.UserID, sess.ID); err != nil {
		return domain.Session{}, err
	}
	var rec sessionRecord
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(sessionsBucket)
		key := boltKey(sess.UserID, sess.ID)
		raw := b.Get(key)
		if raw == nil {
			return ErrSessionNotFound
		}
		if err := json.Unmarshal(raw, &rec); err != nil {
			return err
		}
		now := s.now()
		rec.Exchanges = append(rec.Exchanges, domain.Exchange{
			Timestamp:   now,
			UserMessage: userMessage,
			BotResponse: botResponse,
		})
		rec.UpdatedAt = now
		return putRecord(b, key, rec)
	})
	if err != nil {
		return domain.Session{}, fmt.Errorf("repository: Append: %w", err)
	}
	return rec.toSession(), nil
}

func (s *BoltStore) ListSessions(_ context.Context, userID string, limit int) ([]domain.SessionSummary, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, errors.New("repository: user id must not be empty")
	}
	prefix := []byte(userID + "\x00")
	var out []domain.SessionSummary
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(sessionsBucket).Cursor()
		for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
			var rec sessionRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return fmt.Errorf("decode %q: %w", k, err)
			}
			out = append(out, rec.toSession().Summary())
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("repository: ListSessions: %w", err)
	}
	return newestFirst(out, limit), nil
}

func putRecord(b *bolt.Bucket, key []byte, rec sessionRecord) error {
	enc, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return b.Put(key, enc)
}

func (r sessionRecord) toSession() domain.Session {
	return domain.Session{
		ID:        r.ID,
		UserID:    r.UserID,
		Language:  domain.Language(r.Language),
		Exchanges: r.Exchanges,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}
