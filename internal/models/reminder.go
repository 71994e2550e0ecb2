package models

import (
	"time"

	"github.com/google/uuid"
)

type Reminder struct {
	RemindID    int64     `json:"remind_id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	RemindAt    time.Time `json:"remind_at"`
	UserID      uuid.UUID `json:"user_id"`
	Notified    bool      `json:"notified"`
	CreatedAt   time.Time `json:"created_at"`
}

// Due reports whether the reminder qualifies for delivery at the given time.
// The boundary is inclusive: a reminder due exactly now is due.
func (r *Reminder) Due(now time.Time) bool {
	return !r.Notified && !r.RemindAt.After(now)
}
