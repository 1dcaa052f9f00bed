package handler

import (
	"log/slog"
	"net/http"

	appI18n "github.com/pavelanni/examgrader/internal/i18n"
	"github.com/pavelanni/examgrader/internal/imageprep"
)

type uploadResponse struct {
	ImageBase64 string `json:"image_base64"`
	OCRText     string `json:"ocr_text"`
}

// handleUploadImage prepares a handwritten answer photo for submission and
// returns the text read from it, so the client can show it before submitting.
func (h *Handler) handleUploadImage(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.config.MaxUploadBytes)
	file, _, err := r.FormFile("file")
	if err != nil {
		writeDetail(w, http.StatusBadRequest, appI18n.T(r.Context(), "ErrImageMissing"))
		return
	}
	defer file.Close()

	payload, err := imageprep.Prepare(file)
	if err != nil {
		slog.Warn("image upload rejected", "error", err)
		writeDetail(w, http.StatusBadRequest, appI18n.T(r.Context(), "ErrImageProcessing"))
		return
	}

	var text string
	if h.extractor != nil {
		text, err = h.extractor.Extract(r.Context(), payload)
		if err != nil {
			slog.Warn("text extraction failed for upload, returning image only", "error", err)
			text = ""
		}
	}
	writeJSON(w, http.StatusOK, uploadResponse{ImageBase64: payload, OCRText: text})
}
