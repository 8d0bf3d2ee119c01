package bunx

import "github.com/google/uuid"

// NewUUIDv7 generates a time-ordered UUIDv7 string for database primary
// keys. Time ordering keeps inserts append-mostly in the primary key index
// on both supported dialects.
//
// Panics only on entropy exhaustion, at which point nothing else works
// either.
func NewUUIDv7() string {
	return uuid.Must(uuid.NewV7()).String()
}
