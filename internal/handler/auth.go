package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/pavelanni/examgrader/internal/auth"
	appI18n "github.com/pavelanni/examgrader/internal/i18n"
	"github.com/pavelanni/examgrader/internal/model"
)

type claimsCtxKey struct{}

func claimsFromContext(ctx context.Context) *auth.Claims {
	c, _ := ctx.Value(claimsCtxKey{}).(*auth.Claims)
	return c
}

// requireAuth is middleware that checks for a valid bearer token.
func (h *Handler) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || raw == "" {
			writeDetail(w, http.StatusUnauthorized, appI18n.T(r.Context(), "ErrUnauthorized"))
			return
		}

		claims, err := h.tokens.Parse(strings.TrimSpace(raw))
		if err != nil {
			slog.Debug("rejected bearer token", "error", err)
			writeDetail(w, http.StatusUnauthorized, appI18n.T(r.Context(), "ErrInvalidToken"))
			return
		}

		revoked, err := h.store.IsTokenRevoked(r.Context(), claims.ID)
		if err != nil {
			writeError(w, r, err)
			return
		}
		if revoked {
			writeDetail(w, http.StatusUnauthorized, appI18n.T(r.Context(), "ErrInvalidToken"))
			return
		}

		user, err := h.store.GetUserByID(r.Context(), claims.UserID)
		if err != nil {
			writeError(w, r, err)
			return
		}
		if user == nil {
			writeDetail(w, http.StatusUnauthorized, appI18n.T(r.Context(), "ErrInvalidToken"))
			return
		}

		ctx := model.ContextWithUser(r.Context(), user)
		ctx = context.WithValue(ctx, claimsCtxKey{}, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireRole returns middleware that checks the user has one of the allowed roles.
func requireRole(allowed ...model.UserRole) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user := model.UserFromContext(r.Context())
			if user == nil {
				writeDetail(w, http.StatusUnauthorized, appI18n.T(r.Context(), "ErrUnauthorized"))
				return
			}
			for _, role := range allowed {
				if user.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}
			writeDetail(w, http.StatusForbidden, appI18n.T(r.Context(), "ErrForbidden"))
		})
	}
}

type signupRequest struct {
	Name         string         `json:"name" validate:"required"`
	Nickname     string         `json:"nickname"`
	Email        string         `json:"email" validate:"required,email"`
	Mobile       string         `json:"mobile"`
	Password     string         `json:"password" validate:"required,min=6"`
	Role         model.UserRole `json:"role" validate:"required,oneof=student parent teacher"`
	DOB          string         `json:"dob"`
	ClassName    string         `json:"class_name"`
	Section      string         `json:"section"`
	School       string         `json:"school"`
	ParentName   string         `json:"parent_name"`
	ParentMobile string         `json:"parent_mobile"`
	ParentEmail  string         `json:"parent_email" validate:"omitempty,email"`
}

func (h *Handler) handleSignup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))

	existing, err := h.store.GetUserByEmail(r.Context(), email)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if existing != nil {
		writeDetail(w, http.StatusBadRequest, appI18n.T(r.Context(), "ErrEmailTaken"))
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}

	u := model.User{
		ID:           uuid.NewString(),
		Name:         req.Name,
		Nickname:     req.Nickname,
		Email:        email,
		Mobile:       req.Mobile,
		PasswordHash: hash,
		Role:         req.Role,
		DOB:          req.DOB,
		ClassName:    req.ClassName,
		Section:      req.Section,
		School:       req.School,
		ParentName:   req.ParentName,
		ParentMobile: req.ParentMobile,
		ParentEmail:  req.ParentEmail,
		CreatedAt:    time.Now().UTC(),
	}
	if u.Role == model.UserRoleStudent {
		u.StudentCode = auth.NewStudentCode()
	}
	if err := h.store.CreateUser(r.Context(), u); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, u)
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type loginResponse struct {
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expires_at"`
	User      *model.User `json:"user"`
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}

	user, err := h.store.GetUserByEmail(r.Context(), strings.ToLower(strings.TrimSpace(req.Email)))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if user == nil || !auth.CheckPassword(user.PasswordHash, req.Password) {
		writeDetail(w, http.StatusUnauthorized, appI18n.T(r.Context(), "ErrBadCredentials"))
		return
	}

	token, claims, err := h.tokens.Issue(*user)
	if err != nil {
		writeError(w, r, err)
		return
	}
	slog.Info("user logged in", "id", user.ID, "role", user.Role)
	writeJSON(w, http.StatusOK, loginResponse{Token: token, ExpiresAt: claims.ExpiresAt.Time, User: user})
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, model.UserFromContext(r.Context()))
}

// handleLogout revokes the presented token for the rest of its lifetime.
func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	if err := h.store.RevokeToken(r.Context(), claims.ID, claims.ExpiresAt.Time); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": appI18n.T(r.Context(), "LoggedOut")})
}
