package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/pavelanni/examgrader/internal/model"
	"github.com/pavelanni/examgrader/internal/results"
)

type subjectRequest struct {
	Name        string `json:"name" validate:"required"`
	ClassName   string `json:"class_name" validate:"required"`
	Description string `json:"description"`
}

func (h *Handler) handleCreateSubject(w http.ResponseWriter, r *http.Request) {
	var req subjectRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}
	sub := model.Subject{
		ID:          uuid.NewString(),
		Name:        req.Name,
		ClassName:   req.ClassName,
		Description: req.Description,
		CreatedAt:   time.Now().UTC(),
	}
	if err := h.store.CreateSubject(r.Context(), sub); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, sub)
}

func (h *Handler) handleListSubjects(w http.ResponseWriter, r *http.Request) {
	subjects, err := h.store.ListSubjects(r.Context(), r.URL.Query().Get("class_name"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if subjects == nil {
		subjects = []model.Subject{}
	}
	writeJSON(w, http.StatusOK, subjects)
}

type testRequest struct {
	Title           string           `json:"title" validate:"required"`
	SubjectID       string           `json:"subject_id"`
	ClassName       string           `json:"class_name"`
	TestType        model.TestType   `json:"test_type"`
	DurationMinutes int              `json:"duration_minutes" validate:"min=0"`
	TotalMarks      int              `json:"total_marks" validate:"min=0"`
	Questions       []model.Question `json:"questions" validate:"required,min=1"`
	ScheduledAt     *time.Time       `json:"scheduled_at"`
}

func (h *Handler) handleCreateTest(w http.ResponseWriter, r *http.Request) {
	var req testRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}
	user := model.UserFromContext(r.Context())
	t := model.Test{
		ID:              uuid.NewString(),
		Title:           req.Title,
		SubjectID:       req.SubjectID,
		ClassName:       req.ClassName,
		TestType:        req.TestType,
		DurationMinutes: req.DurationMinutes,
		TotalMarks:      req.TotalMarks,
		Questions:       req.Questions,
		CreatedBy:       user.ID,
		CreatedAt:       time.Now().UTC(),
		ScheduledAt:     req.ScheduledAt,
	}
	if err := results.ValidateTest(&t); err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.store.CreateTest(r.Context(), t); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

// visibleTest hides answer keys from everyone but teachers.
func visibleTest(user *model.User, t model.Test) model.Test {
	if user != nil && user.Role == model.UserRoleTeacher {
		return t
	}
	return t.Redacted()
}

func (h *Handler) handleListTests(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	tests, err := h.store.ListTests(r.Context(), q.Get("class_name"), model.TestType(q.Get("test_type")))
	if err != nil {
		writeError(w, r, err)
		return
	}
	user := model.UserFromContext(r.Context())
	out := make([]model.Test, 0, len(tests))
	for _, t := range tests {
		out = append(out, visibleTest(user, t))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) handleGetTest(w http.ResponseWriter, r *http.Request) {
	t, err := h.store.GetTest(r.Context(), chi.URLParam(r, "testID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, visibleTest(model.UserFromContext(r.Context()), *t))
}
