package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"
	"github.com/wanderlog/apiserver/internal/services"
)

const (
	maxImageBytes      = 10 << 20
	maxMultipartMemory = 4 << 20
	formFieldImage     = "image"
)

// ImageHandler provides upload and deletion of story images.
type ImageHandler struct {
	imageService *services.ImageService
	log          logrus.FieldLogger
}

func NewImageHandler(imageService *services.ImageService, log logrus.FieldLogger) *ImageHandler {
	return &ImageHandler{
		imageService: imageService,
		log:          log,
	}
}

// ImageRouter registers image routes on the given router.
func ImageRouter(r chi.Router, handler *ImageHandler, authMiddleware func(http.Handler) http.Handler) {
	r.With(authMiddleware).Post("/image-upload", handler.Upload)
	r.With(authMiddleware).Delete("/delete-image", handler.Delete)
}

// Upload stores the multipart "image" field and returns its public URL.
func (h *ImageHandler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxImageBytes+maxMultipartMemory)
	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "uploaded file too large")
			return
		}
		writeError(w, http.StatusBadRequest, "No image uploaded")
		return
	}

	file, header, err := r.FormFile(formFieldImage)
	if err != nil {
		writeError(w, http.StatusBadRequest, "No image uploaded")
		return
	}
	defer file.Close()

	if header.Size > maxImageBytes {
		writeError(w, http.StatusRequestEntityTooLarge, "uploaded file too large")
		return
	}

	imageURL, err := h.imageService.Upload(r.Context(), header.Filename, header.Header.Get("Content-Type"), file, header.Size)
	if err != nil {
		writeServiceError(w, h.log, err, "Image not found")
		return
	}
	writeJSON(w, http.StatusOK, ImageResponse{ImageURL: imageURL})
}

// Delete removes an uploaded image named by the imageUrl query parameter.
func (h *ImageHandler) Delete(w http.ResponseWriter, r *http.Request) {
	imageURL := strings.TrimSpace(r.URL.Query().Get("imageUrl"))
	if imageURL == "" {
		writeError(w, http.StatusBadRequest, "ImageUrl parameter is required")
		return
	}

	if err := h.imageService.Delete(r.Context(), imageURL); err != nil {
		writeServiceError(w, h.log, err, "Image not found")
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: "Image deleted successfully"})
}

type ImageResponse struct {
	ImageURL string `json:"imageUrl"`
}
