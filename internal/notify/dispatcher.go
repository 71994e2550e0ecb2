package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/muzkat/reminder/internal/models"
)

// Store is the reminder persistence boundary the notification subsystem
// depends on.
type Store interface {
	SelectDue(ctx context.Context, now time.Time) ([]*models.Reminder, error)
	MarkNotified(ctx context.Context, remindID int64) error
}

// UserDirectory resolves a reminder's owner to contact details.
type UserDirectory interface {
	GetByID(ctx context.Context, userID uuid.UUID) (*models.User, error)
}

// EmailChannel delivers one message to one address. It either succeeds or
// fails, never partially, and performs no retries of its own.
type EmailChannel interface {
	Send(ctx context.Context, to, subject, body string) error
}

// ChatChannel delivers one message to one registered Telegram chat.
type ChatChannel interface {
	Send(ctx context.Context, chatID int64, text string) error
}

// Dispatcher attempts delivery of a single reminder across channels and
// commits the notified flag on success. Email is the required channel: only
// its success drives the commit. Telegram is best-effort on top.
type Dispatcher struct {
	store   Store
	users   UserDirectory
	email   EmailChannel
	chat    ChatChannel
	timeout time.Duration
	log     zerolog.Logger
}

func NewDispatcher(store Store, users UserDirectory, email EmailChannel, chat ChatChannel, timeout time.Duration, log zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		store:   store,
		users:   users,
		email:   email,
		chat:    chat,
		timeout: timeout,
		log:     log,
	}
}

// Process handles one reminder end to end. It never returns an error and
// never panics outward: every failure is contained here so the rest of the
// batch is unaffected. The returned flag reports whether the notified state
// was committed.
func (d *Dispatcher) Process(ctx context.Context, remind *models.Reminder) (delivered bool, outcomes []Outcome) {
	defer func() {
		if p := recover(); p != nil {
			d.log.Error().
				Int64("remind_id", remind.RemindID).
				Interface("panic", p).
				Msg("panic while dispatching reminder")
			delivered = false
		}
	}()

	// The item is bounded by its own timeout but detached from the caller's
	// cancellation: a shutdown mid-item lets the started sends finish.
	itemCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.timeout)
	defer cancel()

	user, err := d.users.GetByID(itemCtx, remind.UserID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			d.log.Warn().
				Int64("remind_id", remind.RemindID).
				Str("user_id", remind.UserID.String()).
				Msg("reminder owner not found, skipping")
		} else {
			d.log.Error().Err(err).
				Int64("remind_id", remind.RemindID).
				Msg("failed to resolve reminder owner")
		}
		return false, nil
	}

	if err := d.email.Send(itemCtx, user.Email, EmailSubject(remind), EmailBody(remind)); err != nil {
		outcomes = append(outcomes, Outcome{Channel: ChannelEmail, Status: StatusFailed, Err: err})
		d.log.Warn().Err(err).
			Int64("remind_id", remind.RemindID).
			Str("channel", string(ChannelEmail)).
			Msg("failed to send reminder email, will retry next cycle")
		return false, outcomes
	}
	outcomes = append(outcomes, Outcome{Channel: ChannelEmail, Status: StatusSent})

	outcomes = append(outcomes, d.sendChat(itemCtx, remind, user))

	if err := d.store.MarkNotified(itemCtx, remind.RemindID); err != nil {
		// The email already went out; the reminder stays pending and will be
		// re-sent next cycle. Accepted at-least-once tradeoff.
		d.log.Error().Err(err).
			Int64("remind_id", remind.RemindID).
			Msg("failed to mark reminder notified after send")
		return false, outcomes
	}

	d.log.Info().
		Int64("remind_id", remind.RemindID).
		Str("user_id", user.UserID.String()).
		Msg("reminder delivered")
	return true, outcomes
}

func (d *Dispatcher) sendChat(ctx context.Context, remind *models.Reminder, user *models.User) Outcome {
	if !user.HasTelegram() {
		return Outcome{Channel: ChannelTelegram, Status: StatusSkipped}
	}

	if err := d.chat.Send(ctx, *user.TelegramChatID, ChatText(remind)); err != nil {
		// Telegram is best-effort: the failure is logged but never blocks the
		// email-driven commit.
		d.log.Warn().Err(err).
			Int64("remind_id", remind.RemindID).
			Str("channel", string(ChannelTelegram)).
			Msg("failed to send reminder to telegram")
		return Outcome{Channel: ChannelTelegram, Status: StatusFailed, Err: fmt.Errorf("telegram send: %w", err)}
	}
	return Outcome{Channel: ChannelTelegram, Status: StatusSent}
}
