package domain

import "errors"

// ErrUserNotFound is returned by user lookups when no farmer matches the id.
var ErrUserNotFound = errors.New("user not found")
