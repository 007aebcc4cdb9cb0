package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/wanderlog/apiserver/internal/access"
	"github.com/wanderlog/apiserver/internal/store"
	"github.com/wanderlog/apiserver/types"
)

// StoryRepository defines persistence operations for travel stories.
type StoryRepository interface {
	Get(ctx context.Context, id uuid.UUID) (types.Story, error)
	GetOwned(ctx context.Context, id, ownerID uuid.UUID) (types.Story, error)
	ListOwned(ctx context.Context, ownerID uuid.UUID) ([]types.Story, error)
	ListShared(ctx context.Context, userID uuid.UUID) ([]types.Story, error)
	Search(ctx context.Context, ownerID uuid.UUID, text string) ([]types.Story, error)
	FilterByVisitDate(ctx context.Context, ownerID uuid.UUID, start, end time.Time) ([]types.Story, error)
	Create(ctx context.Context, story types.Story) (types.Story, error)
	Update(ctx context.Context, story types.Story) (types.Story, error)
	Delete(ctx context.Context, id, ownerID uuid.UUID) error
}

// ImageReleaser frees the stored image of a deleted story.
type ImageReleaser interface {
	Release(ctx context.Context, imageURL string) error
}

// storyImageReleaser is implemented by releasers that record which story
// the image belonged to, such as the queue publisher.
type storyImageReleaser interface {
	ReleaseForStory(ctx context.Context, imageURL, storyID string) error
}

// StoryInput carries the content fields of a create or edit request.
type StoryInput struct {
	Title            string
	Story            string
	VisitedLocations []string
	ImageURL         string
	VisitDate        *time.Time
}

// StoryService encapsulates travel story use-cases. Every mutation goes
// through an ownership-scoped lookup, so a story that exists but belongs
// to someone else is reported as store.ErrNotFound.
type StoryService struct {
	repo             StoryRepository
	users            UserRepository
	images           ImageReleaser
	placeholderImage string
	log              logrus.FieldLogger
}

func NewStoryService(repo StoryRepository, users UserRepository, images ImageReleaser, placeholderImage string, log logrus.FieldLogger) *StoryService {
	return &StoryService{
		repo:             repo,
		users:            users,
		images:           images,
		placeholderImage: placeholderImage,
		log:              log,
	}
}

func (s *StoryService) Create(ctx context.Context, ownerID uuid.UUID, in StoryInput) (types.Story, error) {
	if err := validateStoryInput(in); err != nil {
		return types.Story{}, err
	}
	imageURL := strings.TrimSpace(in.ImageURL)
	if imageURL == "" {
		return types.Story{}, validationError("imageUrl is required")
	}

	return s.repo.Create(ctx, types.Story{
		OwnerID:          ownerID,
		Title:            strings.TrimSpace(in.Title),
		Story:            in.Story,
		VisitedLocations: in.VisitedLocations,
		ImageURL:         imageURL,
		VisitDate:        in.VisitDate.UTC(),
		IsFavourite:      false,
		Collaborators:    []types.Collaborator{},
	})
}

// Edit replaces the content fields of an owned story. A missing image
// falls back to the placeholder image.
func (s *StoryService) Edit(ctx context.Context, userID, storyID uuid.UUID, in StoryInput) (types.Story, error) {
	if err := validateStoryInput(in); err != nil {
		return types.Story{}, err
	}

	story, err := s.repo.GetOwned(ctx, storyID, userID)
	if err != nil {
		return types.Story{}, err
	}

	imageURL := strings.TrimSpace(in.ImageURL)
	if imageURL == "" {
		imageURL = s.placeholderImage
	}

	story.Title = strings.TrimSpace(in.Title)
	story.Story = in.Story
	story.VisitedLocations = in.VisitedLocations
	story.ImageURL = imageURL
	story.VisitDate = in.VisitDate.UTC()
	return s.repo.Update(ctx, story)
}

// Delete removes an owned story and releases its image. Image release is
// best effort: a failure is logged and the deletion still succeeds.
func (s *StoryService) Delete(ctx context.Context, userID, storyID uuid.UUID) error {
	story, err := s.repo.GetOwned(ctx, storyID, userID)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, story.ID, userID); err != nil {
		return err
	}

	if s.images != nil && story.ImageURL != "" {
		if err := s.releaseImage(ctx, story); err != nil {
			s.log.WithFields(logrus.Fields{
				"story_id":  story.ID,
				"image_url": story.ImageURL,
			}).WithError(err).Warn("failed to release story image")
		}
	}
	return nil
}

func (s *StoryService) releaseImage(ctx context.Context, story types.Story) error {
	if r, ok := s.images.(storyImageReleaser); ok {
		return r.ReleaseForStory(ctx, story.ImageURL, story.ID.String())
	}
	return s.images.Release(ctx, story.ImageURL)
}

func (s *StoryService) SetFavourite(ctx context.Context, userID, storyID uuid.UUID, favourite bool) (types.Story, error) {
	story, err := s.repo.GetOwned(ctx, storyID, userID)
	if err != nil {
		return types.Story{}, err
	}
	story.IsFavourite = favourite
	return s.repo.Update(ctx, story)
}

// Get returns a story the user may view, with collaborators resolved to
// names and emails. Stories the user cannot view are reported as
// store.ErrNotFound.
func (s *StoryService) Get(ctx context.Context, userID, storyID uuid.UUID) (types.StoryDetail, error) {
	story, err := s.repo.Get(ctx, storyID)
	if err != nil {
		return types.StoryDetail{}, err
	}
	if !access.CanView(userID, story) {
		return types.StoryDetail{}, store.ErrNotFound
	}

	details, err := s.resolveCollaborators(ctx, story.Collaborators)
	if err != nil {
		return types.StoryDetail{}, err
	}
	return types.StoryDetail{Story: story, Collaborators: details}, nil
}

// ListOwned returns the user's stories, favourites first.
func (s *StoryService) ListOwned(ctx context.Context, userID uuid.UUID) ([]types.Story, error) {
	return s.repo.ListOwned(ctx, userID)
}

// ListShared returns the stories other users shared with userID.
func (s *StoryService) ListShared(ctx context.Context, userID uuid.UUID) ([]types.Story, error) {
	return s.repo.ListShared(ctx, userID)
}

// Search matches query case-insensitively against the title, narrative and
// visited locations of the user's stories.
func (s *StoryService) Search(ctx context.Context, userID uuid.UUID, query string) ([]types.Story, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, validationError("query is required")
	}
	return s.repo.Search(ctx, userID, query)
}

// FilterByVisitDate returns the user's stories visited within [start, end].
func (s *StoryService) FilterByVisitDate(ctx context.Context, userID uuid.UUID, start, end time.Time) ([]types.Story, error) {
	if end.Before(start) {
		return nil, validationError("startDate must not be after endDate")
	}
	return s.repo.FilterByVisitDate(ctx, userID, start, end)
}

// AddCollaborator shares an owned story with the account registered under
// email. An empty role defaults to viewer.
func (s *StoryService) AddCollaborator(ctx context.Context, ownerID, storyID uuid.UUID, email, role string) (types.Story, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return types.Story{}, validationError("collaboratorEmail is required")
	}
	normalized, err := access.NormalizeRole(role)
	if err != nil {
		return types.Story{}, validationError("role must be viewer or editor")
	}

	story, err := s.repo.GetOwned(ctx, storyID, ownerID)
	if err != nil {
		return types.Story{}, err
	}
	user, err := s.lookupCollaborator(ctx, email)
	if err != nil {
		return types.Story{}, err
	}

	updated, err := access.AddCollaborator(story, ownerID, user, normalized)
	if err != nil {
		return types.Story{}, err
	}
	return s.repo.Update(ctx, updated)
}

// RemoveCollaborator revokes the access of the account registered under
// email.
func (s *StoryService) RemoveCollaborator(ctx context.Context, ownerID, storyID uuid.UUID, email string) (types.Story, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return types.Story{}, validationError("collaboratorEmail is required")
	}

	story, err := s.repo.GetOwned(ctx, storyID, ownerID)
	if err != nil {
		return types.Story{}, err
	}
	user, err := s.lookupCollaborator(ctx, email)
	if err != nil {
		return types.Story{}, err
	}

	updated, err := access.RemoveCollaborator(story, ownerID, user)
	if err != nil {
		return types.Story{}, err
	}
	return s.repo.Update(ctx, updated)
}

func (s *StoryService) lookupCollaborator(ctx context.Context, email string) (types.User, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.User{}, ErrCollaboratorNotFound
		}
		return types.User{}, err
	}
	return user, nil
}

func (s *StoryService) resolveCollaborators(ctx context.Context, collaborators []types.Collaborator) ([]types.CollaboratorDetail, error) {
	details := make([]types.CollaboratorDetail, 0, len(collaborators))
	if len(collaborators) == 0 {
		return details, nil
	}

	ids := make([]uuid.UUID, 0, len(collaborators))
	for _, c := range collaborators {
		ids = append(ids, c.UserID)
	}
	users, err := s.users.ListByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[uuid.UUID]types.User, len(users))
	for _, u := range users {
		byID[u.ID] = u
	}

	for _, c := range collaborators {
		u := byID[c.UserID]
		details = append(details, types.CollaboratorDetail{
			UserID:   c.UserID,
			Role:     c.Role,
			FullName: u.FullName,
			Email:    u.Email,
		})
	}
	return details, nil
}

func validateStoryInput(in StoryInput) error {
	if strings.TrimSpace(in.Title) == "" {
		return validationError("title is required")
	}
	if in.VisitedLocations == nil {
		return validationError("visitedLocation is required")
	}
	if in.VisitDate == nil || in.VisitDate.IsZero() {
		return validationError("visitDate is required")
	}
	if year := in.VisitDate.UTC().Year(); year < 1 || year > 9999 {
		return validationError("visitDate is out of range")
	}
	return nil
}
