package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	appI18n "github.com/pavelanni/examgrader/internal/i18n"
	"github.com/pavelanni/examgrader/internal/model"
)

type submitRequest struct {
	TestID  string                  `json:"test_id"`
	Answers []model.SubmittedAnswer `json:"answers"`
}

type submitResponse struct {
	*model.Result
	Message string `json:"message"`
}

func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}
	// The path names the test; a body test_id is accepted only if it agrees.
	testID := chi.URLParam(r, "testID")
	if req.TestID != "" && req.TestID != testID {
		writeDetail(w, http.StatusBadRequest, appI18n.Td(r.Context(), "ErrValidation",
			map[string]any{"Detail": "test_id does not match the URL"}))
		return
	}

	res, err := h.results.Submit(r.Context(), model.UserFromContext(r.Context()),
		model.Submission{TestID: testID, Answers: req.Answers})
	if err != nil {
		writeError(w, r, err)
		return
	}
	msg := appI18n.Tp(r.Context(), "SubmissionScored", len(res.Outcomes),
		map[string]any{"Score": res.TotalScore, "Max": res.MaxScore})
	writeJSON(w, http.StatusOK, submitResponse{Result: res, Message: msg})
}

func (h *Handler) handleGetResult(w http.ResponseWriter, r *http.Request) {
	res, err := h.results.Result(r.Context(), model.UserFromContext(r.Context()), chi.URLParam(r, "resultID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) handleStudentResults(w http.ResponseWriter, r *http.Request) {
	list, err := h.results.StudentResults(r.Context(), model.UserFromContext(r.Context()), chi.URLParam(r, "studentID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *Handler) handleRescore(w http.ResponseWriter, r *http.Request) {
	res, err := h.results.Rescore(r.Context(), model.UserFromContext(r.Context()), chi.URLParam(r, "resultID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

func (h *Handler) handleAnalytics(w http.ResponseWriter, r *http.Request) {
	a, err := h.results.Analytics(r.Context(), model.UserFromContext(r.Context()), chi.URLParam(r, "studentID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}
