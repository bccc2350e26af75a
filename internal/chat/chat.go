// Package chat defines the conversation types shared by the orchestrator,
// the reply generators and the store.
package chat

import (
	"time"

	"github.com/mindwell-dev/mindwell/internal/emotion"
)

// Role identifies who produced a turn.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one message in a session's conversation. User turns carry the
// emotion observation derived from their text; assistant turns carry none.
type Turn struct {
	Role      Role                 `json:"role"`
	Text      string               `json:"text"`
	Emotion   *emotion.Observation `json:"emotion,omitempty"`
	Timestamp time.Time            `json:"timestamp"`
}
