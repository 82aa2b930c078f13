package affect

import "github.com/google/uuid"

// NewRandomID returns a random identifier for targets and events.
func NewRandomID() string {
	return uuid.NewString()
}
