package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/muzkat/reminder/internal/models"
	"github.com/muzkat/reminder/internal/notify"
)

// ReminderStore is the persistence surface the REST handlers need.
type ReminderStore interface {
	Create(ctx context.Context, remind *models.Reminder) error
	GetByID(ctx context.Context, remindID int64) (*models.Reminder, error)
	GetByTitle(ctx context.Context, title string) (*models.Reminder, error)
	Update(ctx context.Context, remind *models.Reminder) error
	Delete(ctx context.Context, remindID int64) error
	List(ctx context.Context, userID *uuid.UUID, titleFilter string, dateFilter *time.Time, sortBy string) ([]*models.Reminder, error)
}

type UserStore interface {
	Create(ctx context.Context, user *models.User) error
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	SetTelegramChatID(ctx context.Context, userID uuid.UUID, chatID int64) error
}

// Sender dispatches a single reminder immediately, outside the scheduler's
// cadence.
type Sender interface {
	Process(ctx context.Context, remind *models.Reminder) (bool, []notify.Outcome)
}

type Server struct {
	reminds ReminderStore
	users   UserStore
	sender  Sender
	log     zerolog.Logger
}

func New(reminds ReminderStore, users UserStore, sender Sender, log zerolog.Logger) *Server {
	return &Server{
		reminds: reminds,
		users:   users,
		sender:  sender,
		log:     log,
	}
}

func (s *Server) Router() http.Handler {
	router := chi.NewRouter()
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)

	router.Route("/api", func(r chi.Router) {
		r.Post("/users", s.createUser)

		r.Post("/reminds", s.createRemind)
		r.Get("/reminds", s.listReminds)
		r.Get("/reminds/{id}", s.getRemind)
		r.Get("/reminds/title/{title}", s.getRemindByTitle)
		r.Put("/reminds/{id}", s.updateRemind)
		r.Delete("/reminds/{id}", s.deleteRemind)
		r.Post("/reminds/{id}/send", s.sendRemind)

		r.Post("/telegram/webhook", s.telegramWebhook)
	})

	return router
}

func decodeJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
