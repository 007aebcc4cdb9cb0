package types

import (
	"time"

	"github.com/google/uuid"
)

// Role describes what a collaborator may do with a shared story.
type Role string

const (
	// RoleViewer grants read access to a shared story.
	RoleViewer Role = "viewer"

	// RoleEditor is recorded for collaborators who are expected to edit
	// the story. Content mutation is currently reserved to the owner.
	RoleEditor Role = "editor"
)

// Story represents a travel journal entry owned by a single user.
// It carries the narrative, the places visited, an image reference and
// the set of users the owner shared it with.
type Story struct {
	// ID is the unique identifier of the story.
	ID uuid.UUID `json:"id" db:"id"`

	// OwnerID references the user who created the story. It never changes.
	OwnerID uuid.UUID `json:"userId" db:"owner_id"`

	// Title is the human-readable headline of the story.
	Title string `json:"title" db:"title"`

	// Story is the free-form narrative text.
	Story string `json:"story" db:"story"`

	// VisitedLocations is the ordered list of place names visited.
	VisitedLocations []string `json:"visitedLocation" db:"visited_locations"`

	// ImageURL references the image attached to the story in object storage.
	ImageURL string `json:"imageUrl" db:"image_url"`

	// VisitDate is when the trip took place.
	VisitDate time.Time `json:"visitDate" db:"visit_date"`

	// IsFavourite marks stories the owner wants listed first.
	IsFavourite bool `json:"isFavourite" db:"is_favourite"`

	// Collaborators are the users the owner shared the story with.
	// A user appears at most once and the owner never appears.
	Collaborators []Collaborator `json:"collaborators" db:"collaborators"`

	// CreatedAt is the timestamp at which the story was created.
	CreatedAt time.Time `json:"createdOn" db:"created_at"`

	// UpdatedAt is the timestamp of the most recent update to the story.
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}

// Collaborator grants a user shared access to a story.
type Collaborator struct {
	UserID uuid.UUID `json:"userId"`
	Role   Role      `json:"role"`
}

// CollaboratorDetail is a collaborator with the user identity resolved
// for display.
type CollaboratorDetail struct {
	UserID   uuid.UUID `json:"userId"`
	Role     Role      `json:"role"`
	FullName string    `json:"fullName"`
	Email    string    `json:"email"`
}

// StoryDetail is a story whose collaborators have been resolved to user
// identities.
type StoryDetail struct {
	Story
	Collaborators []CollaboratorDetail `json:"collaborators"`
}
