package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/wanderlog/apiserver/internal/access"
	"github.com/wanderlog/apiserver/internal/services"
	"github.com/wanderlog/apiserver/internal/store"
)

type contextKey string

const contextSubjectKey contextKey = "sub"

const internalErrorMessage = "Server error, please try again later."

// ErrorResponse is the payload of every failed request.
type ErrorResponse struct {
	Error   bool   `json:"error"`
	Message string `json:"message"`
}

// MessageResponse acknowledges a request that returns no resource.
type MessageResponse struct {
	Message string `json:"message"`
}

// Healthz reports that the process is serving requests.
func Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func userIDFromContext(ctx context.Context) (uuid.UUID, error) {
	switch subject := ctx.Value(contextSubjectKey).(type) {
	case uuid.UUID:
		if subject == uuid.Nil {
			return uuid.Nil, errors.New("invalid subject")
		}
		return subject, nil
	case string:
		parsed, err := uuid.Parse(strings.TrimSpace(subject))
		if err != nil || parsed == uuid.Nil {
			return uuid.Nil, errors.New("invalid subject")
		}
		return parsed, nil
	default:
		return uuid.Nil, errors.New("missing subject")
	}
}

func parseStoryID(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(chi.URLParam(r, "id")))
	if err != nil {
		return uuid.Nil, errors.New("invalid story id")
	}
	return id, nil
}

// Epoch offsets are limited to years 1 through 9999, the range both
// Postgres timestamptz and RFC 3339 JSON can carry.
var (
	minEpochMillis = time.Date(1, time.January, 1, 0, 0, 0, 0, time.UTC).UnixMilli()
	maxEpochMillis = time.Date(9999, time.December, 31, 23, 59, 59, 999_000_000, time.UTC).UnixMilli()

	errEpochOutOfRange = errors.New("epoch milliseconds out of range")
)

// parseEpochMillis parses whole milliseconds since the Unix epoch.
func parseEpochMillis(raw string) (time.Time, error) {
	ms, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	if ms < minEpochMillis || ms > maxEpochMillis {
		return time.Time{}, errEpochOutOfRange
	}
	return time.UnixMilli(ms).UTC(), nil
}

func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: true, Message: message})
}

// writeServiceError maps domain errors to HTTP responses. Unknown errors
// are logged and reported with a generic message.
func writeServiceError(w http.ResponseWriter, log logrus.FieldLogger, err error, notFoundMessage string) {
	var validation *services.ValidationError
	switch {
	case errors.As(err, &validation):
		writeError(w, http.StatusBadRequest, validation.Message)
	case errors.Is(err, services.ErrCollaboratorNotFound):
		writeError(w, http.StatusNotFound, "Collaborator not found")
	case errors.Is(err, services.ErrImageNotFound):
		writeError(w, http.StatusNotFound, "Image not found")
	case errors.Is(err, store.ErrNotFound), errors.Is(err, access.ErrForbidden):
		writeError(w, http.StatusNotFound, notFoundMessage)
	case errors.Is(err, access.ErrAlreadyCollaborator):
		writeError(w, http.StatusBadRequest, "User is already a collaborator")
	case errors.Is(err, access.ErrNotCollaborator):
		writeError(w, http.StatusBadRequest, "User is not a collaborator")
	case errors.Is(err, access.ErrSelfInvite):
		writeError(w, http.StatusBadRequest, "Owner cannot be added as a collaborator")
	case errors.Is(err, access.ErrInvalidRole):
		writeError(w, http.StatusBadRequest, "role must be viewer or editor")
	case errors.Is(err, store.ErrConflict):
		writeError(w, http.StatusBadRequest, "User already exists")
	default:
		log.WithError(err).Error("request failed")
		writeError(w, http.StatusInternalServerError, internalErrorMessage)
	}
}
