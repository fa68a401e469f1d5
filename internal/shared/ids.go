package shared

import (
	"time"

	"github.com/google/uuid"
)

// IDFunc produces unique identifiers.
type IDFunc func() string

// Clock returns the current time.
type Clock func() time.Time

// NewID returns a random UUID string.
func NewID() string {
	return uuid.NewString()
}

// Now returns the current UTC time.
func Now() time.Time {
	return time.Now().UTC()
}

// OrDefault fills missing collaborators.
func OrDefault(ids IDFunc, clock Clock) (IDFunc, Clock) {
	if ids == nil {
		ids = NewID
	}
	if clock == nil {
		clock = Now
	}
	return ids, clock
}
