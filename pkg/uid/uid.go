package uid

import "github.com/google/uuid"

// New generates a random UUID string.
func New() string {
	return uuid.New().String()
}

// Short returns the first eight hex digits of a new UUID, enough to tell
// simulator ticks apart in logs.
func Short() string {
	return New()[:8]
}
