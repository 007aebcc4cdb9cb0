package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/wanderlog/apiserver/internal/services"
	"github.com/wanderlog/apiserver/types"
)

const storyNotFound = "Travel story not found"

var errInvalidVisitDate = errors.New("visitDate must be epoch milliseconds")

// StoryHandler provides HTTP handlers for travel stories.
type StoryHandler struct {
	storyService *services.StoryService
	log          logrus.FieldLogger
}

// NewStoryHandler constructs a handler with the provided service.
func NewStoryHandler(storyService *services.StoryService, log logrus.FieldLogger) *StoryHandler {
	return &StoryHandler{
		storyService: storyService,
		log:          log,
	}
}

// StoryRouter registers story routes on the given router. Every route
// requires authentication.
func StoryRouter(r chi.Router, handler *StoryHandler, authMiddleware func(http.Handler) http.Handler) {
	r.Group(func(r chi.Router) {
		r.Use(authMiddleware)

		r.Post("/add-travel-story", handler.CreateStory)
		r.Get("/get-all-story", handler.ListStories)
		r.Get("/get-shared-stories", handler.ListSharedStories)
		r.Get("/get-travel-story/{id}", handler.GetStory)
		r.Put("/edit-story/{id}", handler.EditStory)
		r.Delete("/delete-story/{id}", handler.DeleteStory)
		r.Put("/update-is-Favourite/{id}", handler.SetFavourite)
		r.Put("/add-collaborator/{id}", handler.AddCollaborator)
		r.Put("/remove-collaborator/{id}", handler.RemoveCollaborator)
		r.Get("/search", handler.SearchStories)
		r.Get("/travel-stories/filter", handler.FilterStories)
	})
}

func (h *StoryHandler) CreateStory(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}

	req, ok := decodeStoryRequest(w, r)
	if !ok {
		return
	}

	story, err := h.storyService.Create(r.Context(), userID, req.input())
	if err != nil {
		writeServiceError(w, h.log, err, storyNotFound)
		return
	}
	writeJSON(w, http.StatusCreated, StoryResponse{Story: story, Message: "Added successfully"})
}

func (h *StoryHandler) ListStories(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}

	stories, err := h.storyService.ListOwned(r.Context(), userID)
	if err != nil {
		writeServiceError(w, h.log, err, storyNotFound)
		return
	}
	writeJSON(w, http.StatusOK, StoriesResponse{Stories: stories})
}

func (h *StoryHandler) ListSharedStories(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}

	stories, err := h.storyService.ListShared(r.Context(), userID)
	if err != nil {
		writeServiceError(w, h.log, err, storyNotFound)
		return
	}
	writeJSON(w, http.StatusOK, StoriesResponse{Stories: stories})
}

func (h *StoryHandler) GetStory(w http.ResponseWriter, r *http.Request) {
	userID, storyID, ok := h.requireUserAndStory(w, r)
	if !ok {
		return
	}

	story, err := h.storyService.Get(r.Context(), userID, storyID)
	if err != nil {
		writeServiceError(w, h.log, err, storyNotFound)
		return
	}
	writeJSON(w, http.StatusOK, StoryDetailResponse{Story: story})
}

func (h *StoryHandler) EditStory(w http.ResponseWriter, r *http.Request) {
	userID, storyID, ok := h.requireUserAndStory(w, r)
	if !ok {
		return
	}

	req, ok := decodeStoryRequest(w, r)
	if !ok {
		return
	}

	story, err := h.storyService.Edit(r.Context(), userID, storyID, req.input())
	if err != nil {
		writeServiceError(w, h.log, err, storyNotFound)
		return
	}
	writeJSON(w, http.StatusOK, StoryResponse{Story: story, Message: "Update successful"})
}

func (h *StoryHandler) DeleteStory(w http.ResponseWriter, r *http.Request) {
	userID, storyID, ok := h.requireUserAndStory(w, r)
	if !ok {
		return
	}

	if err := h.storyService.Delete(r.Context(), userID, storyID); err != nil {
		writeServiceError(w, h.log, err, storyNotFound)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: "Travel story deleted successfully"})
}

func (h *StoryHandler) SetFavourite(w http.ResponseWriter, r *http.Request) {
	userID, storyID, ok := h.requireUserAndStory(w, r)
	if !ok {
		return
	}

	var req FavouriteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}
	if req.IsFavourite == nil {
		writeError(w, http.StatusBadRequest, "isFavourite is required")
		return
	}

	story, err := h.storyService.SetFavourite(r.Context(), userID, storyID, *req.IsFavourite)
	if err != nil {
		writeServiceError(w, h.log, err, storyNotFound)
		return
	}
	writeJSON(w, http.StatusOK, StoryResponse{Story: story, Message: "Update successful"})
}

func (h *StoryHandler) AddCollaborator(w http.ResponseWriter, r *http.Request) {
	userID, storyID, ok := h.requireUserAndStory(w, r)
	if !ok {
		return
	}

	var req CollaboratorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	story, err := h.storyService.AddCollaborator(r.Context(), userID, storyID, req.CollaboratorEmail, req.Role)
	if err != nil {
		writeServiceError(w, h.log, err, "Travel story not found or you're not the owner")
		return
	}
	writeJSON(w, http.StatusOK, CollaboratorResponse{Message: "Collaborator added successfully", TravelStory: story})
}

func (h *StoryHandler) RemoveCollaborator(w http.ResponseWriter, r *http.Request) {
	userID, storyID, ok := h.requireUserAndStory(w, r)
	if !ok {
		return
	}

	var req CollaboratorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	story, err := h.storyService.RemoveCollaborator(r.Context(), userID, storyID, req.CollaboratorEmail)
	if err != nil {
		writeServiceError(w, h.log, err, "Travel story not found or you're not the owner")
		return
	}
	writeJSON(w, http.StatusOK, CollaboratorResponse{Message: "Collaborator removed successfully", TravelStory: story})
}

func (h *StoryHandler) SearchStories(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}

	stories, err := h.storyService.Search(r.Context(), userID, r.URL.Query().Get("query"))
	if err != nil {
		writeServiceError(w, h.log, err, storyNotFound)
		return
	}
	writeJSON(w, http.StatusOK, StoriesResponse{Stories: stories})
}

func (h *StoryHandler) FilterStories(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}

	query := r.URL.Query()
	start, err := parseEpochMillis(query.Get("startDate"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "startDate must be epoch milliseconds")
		return
	}
	end, err := parseEpochMillis(query.Get("endDate"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "endDate must be epoch milliseconds")
		return
	}

	stories, err := h.storyService.FilterByVisitDate(r.Context(), userID, start, end)
	if err != nil {
		writeServiceError(w, h.log, err, storyNotFound)
		return
	}
	writeJSON(w, http.StatusOK, StoriesResponse{Stories: stories})
}

func (h *StoryHandler) requireUser(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	userID, err := userIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return uuid.Nil, false
	}
	return userID, true
}

func (h *StoryHandler) requireUserAndStory(w http.ResponseWriter, r *http.Request) (uuid.UUID, uuid.UUID, bool) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return uuid.Nil, uuid.Nil, false
	}
	storyID, err := parseStoryID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return uuid.Nil, uuid.Nil, false
	}
	return userID, storyID, true
}

// EpochMillis is a point in time sent as whole milliseconds since the Unix
// epoch, either as a JSON number or a numeric string.
type EpochMillis struct {
	time.Time
}

func (e *EpochMillis) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	raw := string(data)
	if len(data) > 0 && data[0] == '"' {
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
	}
	if raw == "" {
		return nil
	}
	t, err := parseEpochMillis(raw)
	if err != nil {
		return fmt.Errorf("%w: %q", errInvalidVisitDate, raw)
	}
	e.Time = t
	return nil
}

func decodeStoryRequest(w http.ResponseWriter, r *http.Request) (StoryRequest, bool) {
	var req StoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if errors.Is(err, errInvalidVisitDate) {
			writeError(w, http.StatusBadRequest, errInvalidVisitDate.Error())
			return StoryRequest{}, false
		}
		writeError(w, http.StatusBadRequest, "invalid request")
		return StoryRequest{}, false
	}
	return req, true
}

type StoryRequest struct {
	Title           string       `json:"title"`
	Story           string       `json:"story"`
	VisitedLocation []string     `json:"visitedLocation"`
	ImageURL        string       `json:"imageUrl"`
	VisitDate       *EpochMillis `json:"visitDate"`
}

func (req StoryRequest) input() services.StoryInput {
	in := services.StoryInput{
		Title:            req.Title,
		Story:            req.Story,
		VisitedLocations: req.VisitedLocation,
		ImageURL:         req.ImageURL,
	}
	if req.VisitDate != nil && !req.VisitDate.IsZero() {
		visit := req.VisitDate.Time
		in.VisitDate = &visit
	}
	return in
}

type FavouriteRequest struct {
	IsFavourite *bool `json:"isFavourite"`
}

type CollaboratorRequest struct {
	CollaboratorEmail string `json:"collaboratorEmail"`
	Role              string `json:"role,omitempty"`
}

type StoryResponse struct {
	Story   types.Story `json:"story"`
	Message string      `json:"message"`
}

type StoryDetailResponse struct {
	Story types.StoryDetail `json:"story"`
}

type StoriesResponse struct {
	Stories []types.Story `json:"stories"`
}

type CollaboratorResponse struct {
	Message     string      `json:"message"`
	TravelStory types.Story `json:"travelStory"`
}
