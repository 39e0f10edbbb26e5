// Package api exposes HTTP handlers for the exercise tracker.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"

	"example.com/exercisetracker/internal/domain"
)

// Option configures optional behaviour for the Handler.
type Option func(*Handler)

// WithLogger overrides the logger used to report server errors.
func WithLogger(logger *slog.Logger) Option {
	return func(h *Handler) {
		h.logger = logger
	}
}

// WithAdminRoutes toggles registration of the bulk-clear endpoint.
func WithAdminRoutes(enabled bool) Option {
	return func(h *Handler) {
		h.adminRoutes = enabled
	}
}

// Handler coordinates HTTP requests with the domain service.
type Handler struct {
	service     *domain.Service
	logger      *slog.Logger
	validate    *validator.Validate
	adminRoutes bool
}

// NewHandler builds a Handler.
func NewHandler(service *domain.Service, opts ...Option) *Handler {
	h := &Handler{
		service:  service,
		logger:   slog.Default(),
		validate: newValidator(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// RegisterRoutes wires endpoints to the mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/users", h.createUser)
	mux.HandleFunc("GET /api/users", h.listUsers)
	mux.HandleFunc("POST /api/users/{id}/exercises", h.logExercise)
	mux.HandleFunc("GET /api/users/{id}/logs", h.exerciseLog)
	if h.adminRoutes {
		mux.HandleFunc("GET /api/deleteAll/users", h.deleteAll)
	}
	mux.HandleFunc("GET /healthz", healthz)
}

// JSONFallback serves mux and rewrites its built-in 404 and 405 replies into
// the JSON error envelope.
func JSONFallback(mux *http.ServeMux) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fallback, pattern := mux.Handler(r)
		if pattern != "" {
			mux.ServeHTTP(w, r)
			return
		}

		capture := &statusCapture{header: w.Header()}
		fallback.ServeHTTP(capture, r)
		switch capture.status {
		case http.StatusMethodNotAllowed:
			writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		default:
			writeError(w, http.StatusNotFound, "not_found", "route not found")
		}
	})
}

// statusCapture records the status a fallback handler chose and drops its body.
type statusCapture struct {
	header http.Header
	status int
}

func (c *statusCapture) Header() http.Header         { return c.header }
func (c *statusCapture) Write(b []byte) (int, error) { return len(b), nil }
func (c *statusCapture) WriteHeader(code int)        { c.status = code }

// healthz reports a simple OK status for container health checks.
func healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (h *Handler) createUser(w http.ResponseWriter, r *http.Request) {
	fields, err := readFields(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
		return
	}

	req := CreateUserRequest{Username: fields.Get("username")}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", describeValidation(err))
		return
	}

	user, err := h.service.CreateUser(r.Context(), req.Username)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserView(*user))
}

func (h *Handler) listUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.service.ListUsers(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	views := make([]UserView, 0, len(users))
	for _, u := range users {
		views = append(views, toUserView(u))
	}
	writeJSON(w, http.StatusOK, views)
}

func (h *Handler) logExercise(w http.ResponseWriter, r *http.Request) {
	fields, err := readFields(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
		return
	}

	req := LogExerciseRequest{
		Description: fields.Get("description"),
		Duration:    fields.Get("duration"),
		Date:        fields.Get("date"),
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", describeValidation(err))
		return
	}

	duration, err := strconv.Atoi(req.Duration)
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", "duration must be a whole number of minutes")
		return
	}

	input := domain.LogExerciseInput{
		UserID:      r.PathValue("id"),
		Description: req.Description,
		DurationMin: duration,
	}
	if req.Date != "" {
		date, err := domain.ParseDate(req.Date)
		if err != nil {
			writeError(w, http.StatusBadRequest, "validation_failed", "date must be a date (YYYY-MM-DD)")
			return
		}
		input.Date = &date
	}

	logged, err := h.service.LogExercise(r.Context(), input)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, ExerciseView{
		ID:          logged.UserID,
		Username:    logged.Username,
		Description: logged.Description,
		Duration:    logged.Duration,
		Date:        domain.FormatDate(logged.Date),
	})
}

func (h *Handler) exerciseLog(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	log, err := h.service.ExerciseLog(r.Context(), r.PathValue("id"), domain.LogParams{
		From:  query.Get("from"),
		To:    query.Get("to"),
		Limit: query.Get("limit"),
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toLogView(*log))
}

func (h *Handler) deleteAll(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.ClearAll(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.logger.Warn("bulk-cleared store",
		slog.Int64("deleted_users", result.DeletedUsers),
		slog.Int64("deleted_exercises", result.DeletedExercises),
	)
	writeJSON(w, http.StatusOK, ClearView{
		DeletedUsers:     result.DeletedUsers,
		DeletedExercises: result.DeletedExercises,
	})
}

func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var validationErr *domain.ValidationError
	switch {
	case errors.As(err, &validationErr):
		writeError(w, http.StatusBadRequest, "validation_failed", validationErr.Error())
	case errors.Is(err, domain.ErrUserNotFound):
		writeError(w, http.StatusNotFound, "not_found", "user not found")
	default:
		h.logger.ErrorContext(r.Context(), "request failed",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "server_error", "internal server error")
	}
}

// ErrorResponse is the single error envelope returned by every endpoint.
type ErrorResponse struct {
	Error string `json:"error"`
	Type  string `json:"type"`
}

func writeError(w http.ResponseWriter, status int, code, detail string) {
	writeJSON(w, status, ErrorResponse{Error: detail, Type: code})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
