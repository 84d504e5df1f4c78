package history

import "time"

// Role identifies who authored a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is a single conversational turn. Rows are never rewritten: an edit
// or delete only sets one of the tombstone flags.
type Message struct {
	ID        int64     `json:"id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Context   string    `json:"context"`
	Timestamp time.Time `json:"timestamp"`
	OwnerID   int64     `json:"user_id"`
	ParentID  *int64    `json:"parent_id"`
	IsEdited  bool      `json:"is_edited"`
	IsDeleted bool      `json:"is_deleted"`
}

// Active reports whether the message carries neither tombstone.
func (m Message) Active() bool {
	return !m.IsEdited && !m.IsDeleted
}
