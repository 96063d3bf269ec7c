package core

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// NewID generates a globally unique identifier.
func NewID() string {
	return uuid.New().String()
}

// NewConversationID generates a timestamped conversation identifier.
func NewConversationID() string {
	return fmt.Sprintf("conv_%s", time.Now().Format("20060102_150405"))
}

// NewDebateID generates a timestamped debate identifier.
func NewDebateID() string {
	return fmt.Sprintf("debate_%s", time.Now().Format("20060102_150405"))
}
