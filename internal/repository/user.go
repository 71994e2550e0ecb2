package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/muzkat/reminder/internal/database"
	"github.com/muzkat/reminder/internal/models"
)

// Postgres error code for unique constraint violations.
const uniqueViolation = "23505"

type UserRepository struct {
	db *database.DB
}

func NewUserRepository(db *database.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	err := r.db.Pool.QueryRow(ctx,
		`INSERT INTO users (name, email) VALUES ($1, $2)
		 RETURNING user_id, created_at`,
		user.Name, user.Email,
	).Scan(&user.UserID, &user.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return models.ErrDuplicateEmail
		}
		return err
	}
	return nil
}

func (r *UserRepository) GetByID(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	user := &models.User{}
	err := r.db.Pool.QueryRow(ctx,
		`SELECT user_id, name, email, telegram_chat_id, created_at
		 FROM users WHERE user_id = $1`,
		userID,
	).Scan(&user.UserID, &user.Name, &user.Email, &user.TelegramChatID, &user.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	user := &models.User{}
	err := r.db.Pool.QueryRow(ctx,
		`SELECT user_id, name, email, telegram_chat_id, created_at
		 FROM users WHERE email = $1`,
		email,
	).Scan(&user.UserID, &user.Name, &user.Email, &user.TelegramChatID, &user.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}

// SetTelegramChatID attaches a chat identity to the account. Called by the
// registration webhook when a user sends their email to the bot.
func (r *UserRepository) SetTelegramChatID(ctx context.Context, userID uuid.UUID, chatID int64) error {
	tag, err := r.db.Pool.Exec(ctx,
		`UPDATE users SET telegram_chat_id = $1 WHERE user_id = $2`,
		chatID, userID,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}
