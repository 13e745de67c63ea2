package domain

import (
	"errors"
	"strings"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrAlreadyExists   = errors.New("already exists")
	ErrSlugTaken       = errors.New("slug already taken")
	ErrInvalidCategory = errors.New("invalid category")
	ErrJobNotFound     = errors.New("job not found")
	// ErrInvalidOutput marks generator output that no repair tier could turn
	// into a usable review.
	ErrInvalidOutput = errors.New("invalid generation output")
)

// IsAlreadyExists reports whether err means the item is already represented.
// Such errors are never retried; the item counts as skipped.
func IsAlreadyExists(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrAlreadyExists) {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "already exists")
}
