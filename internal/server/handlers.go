package server

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi"
	"github.com/google/uuid"

	"github.com/muzkat/reminder/internal/models"
)

type remindRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	// RFC 3339, or "+duration" relative to now
	RemindAt string `json:"remind_at"`
	UserID   string `json:"user_id"`
}

func parseRemindAt(value string) (time.Time, error) {
	if len(value) > 1 && value[0] == '+' {
		dur, err := time.ParseDuration(value[1:])
		if err != nil {
			return time.Time{}, err
		}
		return time.Now().UTC().Add(dur), nil
	}
	return time.Parse(time.RFC3339, value)
}

func (s *Server) createRemind(w http.ResponseWriter, r *http.Request) {
	req := &remindRequest{}
	if err := decodeJSON(r, req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Title == "" {
		writeError(w, http.StatusBadRequest, "title is empty")
		return
	}
	if req.RemindAt == "" {
		writeError(w, http.StatusBadRequest, "remind_at is empty")
		return
	}
	remindAt, err := parseRemindAt(req.RemindAt)
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to parse remind_at: "+err.Error())
		return
	}
	userID, err := uuid.Parse(req.UserID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid user_id: "+err.Error())
		return
	}

	remind := &models.Reminder{
		Title:       req.Title,
		Description: req.Description,
		RemindAt:    remindAt,
		UserID:      userID,
	}
	if err := s.reminds.Create(r.Context(), remind); err != nil {
		s.log.Error().Err(err).Msg("failed to create reminder")
		writeError(w, http.StatusInternalServerError, "failed to create reminder")
		return
	}
	writeJSON(w, http.StatusCreated, remind)
}

func (s *Server) getRemind(w http.ResponseWriter, r *http.Request) {
	remindID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid reminder id")
		return
	}
	remind, err := s.reminds.GetByID(r.Context(), remindID)
	if errors.Is(err, models.ErrNotFound) {
		writeError(w, http.StatusNotFound, "reminder not found")
		return
	}
	if err != nil {
		s.log.Error().Err(err).Int64("remind_id", remindID).Msg("failed to get reminder")
		writeError(w, http.StatusInternalServerError, "failed to get reminder")
		return
	}
	writeJSON(w, http.StatusOK, remind)
}

func (s *Server) getRemindByTitle(w http.ResponseWriter, r *http.Request) {
	title := chi.URLParam(r, "title")
	remind, err := s.reminds.GetByTitle(r.Context(), title)
	if errors.Is(err, models.ErrNotFound) {
		writeError(w, http.StatusNotFound, "reminder not found")
		return
	}
	if err != nil {
		s.log.Error().Err(err).Str("title", title).Msg("failed to get reminder by title")
		writeError(w, http.StatusInternalServerError, "failed to get reminder")
		return
	}
	writeJSON(w, http.StatusOK, remind)
}

func (s *Server) listReminds(w http.ResponseWriter, r *http.Request) {
	var userID *uuid.UUID
	if raw := r.URL.Query().Get("user_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid user_id: "+err.Error())
			return
		}
		userID = &id
	}
	var dateFilter *time.Time
	if raw := r.URL.Query().Get("date"); raw != "" {
		day, err := time.Parse("2006-01-02", raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD: "+err.Error())
			return
		}
		dateFilter = &day
	}
	sortBy := r.URL.Query().Get("sort")
	if sortBy != "" && sortBy != "title" && sortBy != "date" {
		writeError(w, http.StatusBadRequest, "sort must be one of: title, date")
		return
	}

	reminds, err := s.reminds.List(r.Context(), userID, r.URL.Query().Get("title"), dateFilter, sortBy)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to list reminders")
		writeError(w, http.StatusInternalServerError, "failed to list reminders")
		return
	}
	if reminds == nil {
		reminds = []*models.Reminder{}
	}
	writeJSON(w, http.StatusOK, reminds)
}

func (s *Server) updateRemind(w http.ResponseWriter, r *http.Request) {
	remindID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid reminder id")
		return
	}
	req := &remindRequest{}
	if err := decodeJSON(r, req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	remind, err := s.reminds.GetByID(r.Context(), remindID)
	if errors.Is(err, models.ErrNotFound) {
		writeError(w, http.StatusNotFound, "reminder not found")
		return
	}
	if err != nil {
		s.log.Error().Err(err).Int64("remind_id", remindID).Msg("failed to get reminder")
		writeError(w, http.StatusInternalServerError, "failed to update reminder")
		return
	}

	// Only the fields present in the request are changed
	if req.Title != "" {
		remind.Title = req.Title
	}
	if req.Description != "" {
		remind.Description = req.Description
	}
	if req.RemindAt != "" {
		remindAt, err := parseRemindAt(req.RemindAt)
		if err != nil {
			writeError(w, http.StatusBadRequest, "failed to parse remind_at: "+err.Error())
			return
		}
		remind.RemindAt = remindAt
	}

	if err := s.reminds.Update(r.Context(), remind); err != nil {
		s.log.Error().Err(err).Int64("remind_id", remindID).Msg("failed to update reminder")
		writeError(w, http.StatusInternalServerError, "failed to update reminder")
		return
	}
	writeJSON(w, http.StatusOK, remind)
}

func (s *Server) deleteRemind(w http.ResponseWriter, r *http.Request) {
	remindID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid reminder id")
		return
	}
	err = s.reminds.Delete(r.Context(), remindID)
	if errors.Is(err, models.ErrNotFound) {
		writeError(w, http.StatusNotFound, "reminder not found")
		return
	}
	if err != nil {
		s.log.Error().Err(err).Int64("remind_id", remindID).Msg("failed to delete reminder")
		writeError(w, http.StatusInternalServerError, "failed to delete reminder")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type outcomeResponse struct {
	Channel string `json:"channel"`
	Status  string `json:"status"`
	Error   string `json:"error,omitempty"`
}

// sendRemind dispatches one reminder immediately through the same path the
// scheduler uses.
func (s *Server) sendRemind(w http.ResponseWriter, r *http.Request) {
	remindID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid reminder id")
		return
	}
	remind, err := s.reminds.GetByID(r.Context(), remindID)
	if errors.Is(err, models.ErrNotFound) {
		writeError(w, http.StatusNotFound, "reminder not found")
		return
	}
	if err != nil {
		s.log.Error().Err(err).Int64("remind_id", remindID).Msg("failed to get reminder")
		writeError(w, http.StatusInternalServerError, "failed to send reminder")
		return
	}

	delivered, outcomes := s.sender.Process(r.Context(), remind)
	resp := struct {
		Delivered bool              `json:"delivered"`
		Outcomes  []outcomeResponse `json:"outcomes"`
	}{Delivered: delivered, Outcomes: make([]outcomeResponse, 0, len(outcomes))}
	for _, o := range outcomes {
		out := outcomeResponse{Channel: string(o.Channel), Status: string(o.Status)}
		if o.Err != nil {
			out.Error = o.Err.Error()
		}
		resp.Outcomes = append(resp.Outcomes, out)
	}
	writeJSON(w, http.StatusOK, resp)
}

type userRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

func (s *Server) createUser(w http.ResponseWriter, r *http.Request) {
	req := &userRequest{}
	if err := decodeJSON(r, req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Email == "" {
		writeError(w, http.StatusBadRequest, "email is empty")
		return
	}

	user := &models.User{Name: req.Name, Email: req.Email}
	err := s.users.Create(r.Context(), user)
	if errors.Is(err, models.ErrDuplicateEmail) {
		writeError(w, http.StatusConflict, "email already registered")
		return
	}
	if err != nil {
		s.log.Error().Err(err).Msg("failed to create user")
		writeError(w, http.StatusInternalServerError, "failed to create user")
		return
	}
	writeJSON(w, http.StatusCreated, user)
}

// telegramUpdate mirrors the Bot API webhook payload, down to the fields the
// registration flow reads.
type telegramUpdate struct {
	Message *struct {
		Chat *struct {
			ID int64 `json:"id"`
		} `json:"chat"`
		Text string `json:"text"`
	} `json:"message"`
}

// telegramWebhook links a Telegram chat to an account. The user sends their
// email address to the bot; if an account with that email exists, the chat id
// is stored and the chat channel becomes available for their reminders.
func (s *Server) telegramWebhook(w http.ResponseWriter, r *http.Request) {
	update := &telegramUpdate{}
	if err := decodeJSON(r, update); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if update.Message == nil || update.Message.Chat == nil || update.Message.Text == "" {
		writeError(w, http.StatusBadRequest, "update has no message, chat or text")
		return
	}

	email := strings.TrimSpace(update.Message.Text)
	chatID := update.Message.Chat.ID

	user, err := s.users.GetByEmail(r.Context(), email)
	if errors.Is(err, models.ErrNotFound) {
		s.log.Warn().Str("email", email).Msg("telegram registration for unknown email")
		// 200 on purpose: the reply goes back to the chat, not to an API client
		writeJSON(w, http.StatusOK, map[string]string{"result": "email not found, send the email of an existing account"})
		return
	}
	if err != nil {
		s.log.Error().Err(err).Msg("failed to look up user by email")
		writeError(w, http.StatusInternalServerError, "failed to register telegram chat")
		return
	}

	if err := s.users.SetTelegramChatID(r.Context(), user.UserID, chatID); err != nil {
		s.log.Error().Err(err).Str("user_id", user.UserID.String()).Msg("failed to store telegram chat id")
		writeError(w, http.StatusInternalServerError, "failed to register telegram chat")
		return
	}

	s.log.Info().Str("email", email).Int64("chat_id", chatID).Msg("telegram chat registered")
	writeJSON(w, http.StatusOK, map[string]string{"result": "telegram linked to account"})
}
