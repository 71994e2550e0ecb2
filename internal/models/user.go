package models

import (
	"time"

	"github.com/google/uuid"
)

type User struct {
	UserID         uuid.UUID `json:"user_id"`
	Name           string    `json:"name"`
	Email          string    `json:"email"`
	TelegramChatID *int64    `json:"telegram_chat_id,omitempty"` // nil until registered via the webhook
	CreatedAt      time.Time `json:"created_at"`
}

// HasTelegram reports whether a chat identity is registered for the user.
func (u *User) HasTelegram() bool {
	return u.TelegramChatID != nil && *u.TelegramChatID != 0
}
