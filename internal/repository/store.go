package repository

import (
	"errors"
	"fmt"
	"strings"
)

// ErrSessionNotFound is returned when appending to a session that was never
// created.
var ErrSessionNotFound = errors.New("repository: session not found")

// ErrInvalidKey is returned for user or session ids the stores cannot key on.
var ErrInvalidKey = errors.New("repository: invalid key")

// keySeparator joins ids inside composite DynamoDB keys.
const keySeparator = "#"

func validateKey(userID, sessionID string) error {
	if strings.TrimSpace(userID) == "" {
		return fmt.Errorf("%w: user id must not be empty", ErrInvalidKey)
	}
	if strings.TrimSpace(sessionID) == "" {
		return fmt.Errorf("%w: session id must not be empty", ErrInvalidKey)
	}
	if strings.Contains(userID, keySeparator) || strings.Contains(sessionID, keySeparator) {
		return fmt.Errorf("%w: ids must not contain %q", ErrInvalidKey, keySeparator)
	}
	return nil
}
