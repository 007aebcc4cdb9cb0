// Package inmem holds in-memory story and user repositories with the same
// semantics as the Postgres ones. Tests use them in place of a database.
package inmem

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/wanderlog/apiserver/internal/store"
	"github.com/wanderlog/apiserver/types"
)

type StoryRepository struct {
	mu      sync.Mutex
	stories map[uuid.UUID]types.Story
	order   map[uuid.UUID]int
	seq     int
	now     func() time.Time
}

func NewStoryRepository() *StoryRepository {
	return &StoryRepository{
		stories: make(map[uuid.UUID]types.Story),
		order:   make(map[uuid.UUID]int),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (r *StoryRepository) Get(_ context.Context, id uuid.UUID) (types.Story, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	story, ok := r.stories[id]
	if !ok {
		return types.Story{}, store.ErrNotFound
	}
	return cloneStory(story), nil
}

func (r *StoryRepository) GetOwned(_ context.Context, id, ownerID uuid.UUID) (types.Story, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	story, ok := r.stories[id]
	if !ok || story.OwnerID != ownerID {
		return types.Story{}, store.ErrNotFound
	}
	return cloneStory(story), nil
}

func (r *StoryRepository) ListOwned(_ context.Context, ownerID uuid.UUID) ([]types.Story, error) {
	return r.filter(func(s types.Story) bool { return s.OwnerID == ownerID }), nil
}

func (r *StoryRepository) ListShared(_ context.Context, userID uuid.UUID) ([]types.Story, error) {
	return r.filter(func(s types.Story) bool {
		for _, c := range s.Collaborators {
			if c.UserID == userID {
				return true
			}
		}
		return false
	}), nil
}

func (r *StoryRepository) Search(_ context.Context, ownerID uuid.UUID, text string) ([]types.Story, error) {
	needle := strings.ToLower(text)
	contains := func(s string) bool { return strings.Contains(strings.ToLower(s), needle) }
	return r.filter(func(s types.Story) bool {
		if s.OwnerID != ownerID {
			return false
		}
		if contains(s.Title) || contains(s.Story) {
			return true
		}
		for _, loc := range s.VisitedLocations {
			if contains(loc) {
				return true
			}
		}
		return false
	}), nil
}

func (r *StoryRepository) FilterByVisitDate(_ context.Context, ownerID uuid.UUID, start, end time.Time) ([]types.Story, error) {
	return r.filter(func(s types.Story) bool {
		return s.OwnerID == ownerID && !s.VisitDate.Before(start) && !s.VisitDate.After(end)
	}), nil
}

func (r *StoryRepository) Create(_ context.Context, story types.Story) (types.Story, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	story.ID = uuid.New()
	story.CreatedAt = now
	story.UpdatedAt = now
	if story.VisitedLocations == nil {
		story.VisitedLocations = []string{}
	}
	if story.Collaborators == nil {
		story.Collaborators = []types.Collaborator{}
	}

	r.seq++
	r.order[story.ID] = r.seq
	r.stories[story.ID] = cloneStory(story)
	return story, nil
}

func (r *StoryRepository) Update(_ context.Context, story types.Story) (types.Story, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.stories[story.ID]
	if !ok || current.OwnerID != story.OwnerID {
		return types.Story{}, store.ErrNotFound
	}
	story.CreatedAt = current.CreatedAt
	story.UpdatedAt = r.now()
	r.stories[story.ID] = cloneStory(story)
	return story, nil
}

func (r *StoryRepository) Delete(_ context.Context, id, ownerID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	story, ok := r.stories[id]
	if !ok || story.OwnerID != ownerID {
		return store.ErrNotFound
	}
	delete(r.stories, id)
	delete(r.order, id)
	return nil
}

// filter returns matching stories favourites first, then in insertion order.
func (r *StoryRepository) filter(match func(types.Story) bool) []types.Story {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]types.Story, 0)
	for _, s := range r.stories {
		if match(s) {
			out = append(out, cloneStory(s))
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].IsFavourite != out[j].IsFavourite {
			return out[i].IsFavourite
		}
		return r.order[out[i].ID] < r.order[out[j].ID]
	})
	return out
}

func cloneStory(s types.Story) types.Story {
	s.VisitedLocations = append([]string{}, s.VisitedLocations...)
	s.Collaborators = append([]types.Collaborator{}, s.Collaborators...)
	return s
}

type UserRepository struct {
	mu    sync.Mutex
	users map[uuid.UUID]types.User
}

func NewUserRepository() *UserRepository {
	return &UserRepository{users: make(map[uuid.UUID]types.User)}
}

func (r *UserRepository) GetByID(_ context.Context, id uuid.UUID) (types.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.users[id]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	return user, nil
}

func (r *UserRepository) GetByEmail(_ context.Context, email string) (types.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	email = normalizeEmail(email)
	for _, user := range r.users {
		if user.Email == email {
			return user, nil
		}
	}
	return types.User{}, store.ErrNotFound
}

func (r *UserRepository) ListByIDs(_ context.Context, ids []uuid.UUID) ([]types.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]types.User, 0, len(ids))
	for _, id := range ids {
		if user, ok := r.users[id]; ok {
			out = append(out, user)
		}
	}
	return out, nil
}

func (r *UserRepository) Create(_ context.Context, user types.User) (types.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	user.Email = normalizeEmail(user.Email)
	for _, existing := range r.users {
		if existing.Email == user.Email {
			return types.User{}, store.ErrConflict
		}
	}
	now := time.Now().UTC()
	user.ID = uuid.New()
	user.CreatedAt = now
	user.UpdatedAt = now
	r.users[user.ID] = user
	return user, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
