package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/muzkat/reminder/internal/database"
	"github.com/muzkat/reminder/internal/models"
)

type ReminderRepository struct {
	db *database.DB
}

func NewReminderRepository(db *database.DB) *ReminderRepository {
	return &ReminderRepository{db: db}
}

func (r *ReminderRepository) Create(ctx context.Context, remind *models.Reminder) error {
	return r.db.Pool.QueryRow(ctx,
		`INSERT INTO reminds (title, description, remind_at, user_id)
		 VALUES ($1, $2, $3, $4)
		 RETURNING remind_id, notified, created_at`,
		remind.Title, remind.Description, remind.RemindAt, remind.UserID,
	).Scan(&remind.RemindID, &remind.Notified, &remind.CreatedAt)
}

func (r *ReminderRepository) GetByID(ctx context.Context, remindID int64) (*models.Reminder, error) {
	remind := &models.Reminder{}
	err := r.db.Pool.QueryRow(ctx,
		`SELECT remind_id, title, description, remind_at, user_id, notified, created_at
		 FROM reminds WHERE remind_id = $1`,
		remindID,
	).Scan(&remind.RemindID, &remind.Title, &remind.Description, &remind.RemindAt,
		&remind.UserID, &remind.Notified, &remind.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return remind, nil
}

func (r *ReminderRepository) GetByTitle(ctx context.Context, title string) (*models.Reminder, error) {
	remind := &models.Reminder{}
	err := r.db.Pool.QueryRow(ctx,
		`SELECT remind_id, title, description, remind_at, user_id, notified, created_at
		 FROM reminds WHERE title = $1
		 ORDER BY remind_id ASC LIMIT 1`,
		title,
	).Scan(&remind.RemindID, &remind.Title, &remind.Description, &remind.RemindAt,
		&remind.UserID, &remind.Notified, &remind.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return remind, nil
}

func (r *ReminderRepository) Update(ctx context.Context, remind *models.Reminder) error {
	tag, err := r.db.Pool.Exec(ctx,
		`UPDATE reminds SET title = $1, description = $2, remind_at = $3
		 WHERE remind_id = $4`,
		remind.Title, remind.Description, remind.RemindAt, remind.RemindID,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

func (r *ReminderRepository) Delete(ctx context.Context, remindID int64) error {
	tag, err := r.db.Pool.Exec(ctx,
		`DELETE FROM reminds WHERE remind_id = $1`,
		remindID,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

// List returns reminders for the CRUD surface, optionally filtered by title
// substring, owner and due day, sorted by title or due time. dateFilter is
// the start of a day; it matches reminders due within the following 24 hours.
func (r *ReminderRepository) List(ctx context.Context, userID *uuid.UUID, titleFilter string, dateFilter *time.Time, sortBy string) ([]*models.Reminder, error) {
	query := `SELECT remind_id, title, description, remind_at, user_id, notified, created_at
		 FROM reminds WHERE ($1::uuid IS NULL OR user_id = $1)
		 AND ($2 = '' OR title ILIKE '%' || $2 || '%')
		 AND ($3::timestamptz IS NULL OR (remind_at >= $3 AND remind_at < $3 + INTERVAL '1 day'))`
	switch sortBy {
	case "title":
		query += ` ORDER BY title ASC, remind_id ASC`
	default:
		query += ` ORDER BY remind_at ASC, remind_id ASC`
	}

	rows, err := r.db.Pool.Query(ctx, query, userID, titleFilter, dateFilter)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanReminders(rows)
}

// SelectDue returns the undelivered reminders whose due time is at or before
// now. The ordering is deterministic for a fixed store state so repeated
// cycles over an unchanged table produce the same batch.
func (r *ReminderRepository) SelectDue(ctx context.Context, now time.Time) ([]*models.Reminder, error) {
	rows, err := r.db.Pool.Query(ctx,
		`SELECT remind_id, title, description, remind_at, user_id, notified, created_at
		 FROM reminds WHERE notified = FALSE AND remind_at <= $1
		 ORDER BY remind_at ASC, remind_id ASC`,
		now,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanReminders(rows)
}

// MarkNotified flips the notified flag only. Title, description and due time
// are left untouched so concurrent edits through the CRUD surface are never
// clobbered. The flag is never reset to false.
func (r *ReminderRepository) MarkNotified(ctx context.Context, remindID int64) error {
	tag, err := r.db.Pool.Exec(ctx,
		`UPDATE reminds SET notified = TRUE WHERE remind_id = $1`,
		remindID,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

func scanReminders(rows pgx.Rows) ([]*models.Reminder, error) {
	var reminds []*models.Reminder
	for rows.Next() {
		remind := &models.Reminder{}
		if err := rows.Scan(&remind.RemindID, &remind.Title, &remind.Description, &remind.RemindAt,
			&remind.UserID, &remind.Notified, &remind.CreatedAt); err != nil {
			return nil, err
		}
		reminds = append(reminds, remind)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return reminds, nil
}
