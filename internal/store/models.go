package store

import "time"

type User struct {
	ID             int64     `json:"id"`
	ExternalUserID string    `json:"external_user_id"`
	PasswordHash   string    `json:"-"` // Do not expose this in JSON responses
	CreatedAt      time.Time `json:"created_at"`
}

type Chat struct {
	ID        string    `json:"id"` // Using UUID for external ID
	UserID    int64     `json:"user_id"`
	Title     *string   `json:"title"`     // Nullable, generated after first exchange
	ThreadID  *string   `json:"thread_id"` // Opaque assistant-API thread handle, set lazily
	CreatedAt time.Time `json:"created_at"`
}

type Message struct {
	ID               string    `json:"id"` // Using UUID for external ID
	ChatID           string    `json:"chat_id"`
	Sender           string    `json:"sender"` // "user" or "assistant"
	Content          string    `json:"content"`
	Timestamp        time.Time `json:"timestamp"`
	NegativeFeedback bool      `json:"negative_feedback"`
}

const (
	SenderUser      = "user"
	SenderAssistant = "assistant"
)
