package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/pavelanni/examgrader/internal/auth"
	appI18n "github.com/pavelanni/examgrader/internal/i18n"
	"github.com/pavelanni/examgrader/internal/model"
	"github.com/pavelanni/examgrader/internal/results"
	"github.com/pavelanni/examgrader/internal/scoring"
)

// DefaultMaxUploadBytes bounds image upload bodies when no limit is configured.
const DefaultMaxUploadBytes = 10 << 20

// Store is the persistence the API needs. Both the SQLite and the MongoDB
// stores implement it.
type Store interface {
	CreateUser(ctx context.Context, u model.User) error
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	GetUserByID(ctx context.Context, id string) (*model.User, error)
	CreateSubject(ctx context.Context, s model.Subject) error
	ListSubjects(ctx context.Context, className string) ([]model.Subject, error)
	CreateTest(ctx context.Context, t model.Test) error
	GetTest(ctx context.Context, id string) (*model.Test, error)
	ListTests(ctx context.Context, className string, testType model.TestType) ([]model.Test, error)
	RevokeToken(ctx context.Context, id string, expiresAt time.Time) error
	IsTokenRevoked(ctx context.Context, id string) (bool, error)
}

// Handler holds shared dependencies for HTTP handlers.
type Handler struct {
	store     Store
	results   *results.Service
	tokens    *auth.Tokens
	extractor scoring.Extractor
	validate  *validator.Validate
	config    model.ServerConfig
}

// New creates a new Handler. The extractor serves image uploads and may be nil,
// in which case uploads return no OCR text.
func New(s Store, svc *results.Service, tokens *auth.Tokens, extractor scoring.Extractor, cfg model.ServerConfig) *Handler {
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = DefaultMaxUploadBytes
	}
	return &Handler{
		store:     s,
		results:   svc,
		tokens:    tokens,
		extractor: extractor,
		validate:  validator.New(validator.WithRequiredStructEnabled()),
		config:    cfg,
	}
}

// Routes registers all API routes.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/", h.handleIndex)
	r.Post("/auth/signup", h.handleSignup)
	r.Post("/auth/login", h.handleLogin)
	r.Get("/subjects", h.handleListSubjects)

	r.Group(func(r chi.Router) {
		r.Use(h.requireAuth)

		r.Get("/auth/me", h.handleMe)
		r.Post("/auth/logout", h.handleLogout)

		r.With(requireRole(model.UserRoleTeacher)).Post("/subjects", h.handleCreateSubject)

		r.Get("/tests", h.handleListTests)
		r.With(requireRole(model.UserRoleTeacher)).Post("/tests", h.handleCreateTest)
		r.Get("/tests/{testID}", h.handleGetTest)
		r.Post("/tests/{testID}/submit", h.handleSubmit)

		r.Get("/results/student/{studentID}", h.handleStudentResults)
		r.Get("/results/{resultID}", h.handleGetResult)
		r.With(requireRole(model.UserRoleTeacher)).Post("/results/{resultID}/rescore", h.handleRescore)

		r.Get("/analytics/student/{studentID}", h.handleAnalytics)
		r.Post("/upload-image", h.handleUploadImage)
	})
}

func (h *Handler) handleIndex(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": appI18n.T(r.Context(), "ServiceBanner")})
}

type errorBody struct {
	Detail string `json:"detail"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", "error", err)
	}
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, errorBody{Detail: detail})
}

// writeError maps domain errors to HTTP statuses. Anything unrecognized is
// logged and reported as a 500 without details.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	ctx := r.Context()
	var (
		nf *model.NotFoundError
		ad *model.AccessDeniedError
		ve *model.ValidationError
	)
	switch {
	case errors.As(err, &nf):
		writeDetail(w, http.StatusNotFound, appI18n.Td(ctx, "ErrNotFound", map[string]any{"Kind": nf.Kind}))
	case errors.As(err, &ad):
		slog.Info("access denied", "path", r.URL.Path, "reason", ad.Reason)
		writeDetail(w, http.StatusForbidden, appI18n.T(ctx, "ErrForbidden"))
	case errors.As(err, &ve):
		writeDetail(w, http.StatusBadRequest, appI18n.Td(ctx, "ErrValidation", map[string]any{"Detail": ve.Err.Error()}))
	default:
		slog.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		writeDetail(w, http.StatusInternalServerError, appI18n.T(ctx, "ErrInternal"))
	}
}

// decodeJSON reads the request body into dst and validates it.
func (h *Handler) decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeDetail(w, http.StatusBadRequest, appI18n.T(r.Context(), "ErrBadJSON"))
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		writeError(w, r, &model.ValidationError{Err: results.DescribeValidation(err)})
		return false
	}
	return true
}
