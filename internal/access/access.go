// Package access decides who may do what with a travel story and applies
// collaborator changes without breaking the sharing invariants: one fixed
// owner, no duplicate collaborators, and the owner never listed as a
// collaborator.
//
// Mutations (edit, delete, favourite, invite, revoke) are reserved to the
// owner. Collaborator roles are stored but not consulted yet.
package access

import (
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/wanderlog/apiserver/types"
)

var (
	// ErrForbidden is returned when the acting user does not own the story.
	ErrForbidden = errors.New("only the story owner can do this")

	// ErrAlreadyCollaborator is returned when inviting a user twice.
	ErrAlreadyCollaborator = errors.New("user is already a collaborator")

	// ErrNotCollaborator is returned when revoking a user who was never invited.
	ErrNotCollaborator = errors.New("user is not a collaborator")

	// ErrSelfInvite is returned when the owner tries to invite themselves.
	ErrSelfInvite = errors.New("owner cannot be added as a collaborator")

	// ErrInvalidRole is returned for roles other than viewer and editor.
	ErrInvalidRole = errors.New("invalid collaborator role")
)

// SharingState is derived from the collaborator set of a story.
type SharingState string

const (
	Private SharingState = "private"
	Shared  SharingState = "shared"
)

// AuthorizeOwner succeeds iff userID owns the story.
func AuthorizeOwner(userID uuid.UUID, story types.Story) error {
	if userID == uuid.Nil || story.OwnerID != userID {
		return ErrForbidden
	}
	return nil
}

// CanView reports whether userID may read the story: the owner and every
// collaborator, whatever their role.
func CanView(userID uuid.UUID, story types.Story) bool {
	if userID == uuid.Nil {
		return false
	}
	if story.OwnerID == userID {
		return true
	}
	return IsCollaborator(userID, story)
}

// IsCollaborator reports whether userID is in the story's collaborator set.
func IsCollaborator(userID uuid.UUID, story types.Story) bool {
	return indexOf(story.Collaborators, userID) >= 0
}

// State returns Shared when the story has at least one collaborator.
func State(story types.Story) SharingState {
	if len(story.Collaborators) == 0 {
		return Private
	}
	return Shared
}

// NormalizeRole maps an empty role to viewer and rejects unknown roles.
func NormalizeRole(role string) (types.Role, error) {
	switch types.Role(strings.ToLower(strings.TrimSpace(role))) {
	case "", types.RoleViewer:
		return types.RoleViewer, nil
	case types.RoleEditor:
		return types.RoleEditor, nil
	default:
		return "", ErrInvalidRole
	}
}

// AddCollaborator returns a copy of story with user appended as a
// collaborator. The input story is left untouched.
func AddCollaborator(story types.Story, ownerID uuid.UUID, user types.User, role types.Role) (types.Story, error) {
	if err := AuthorizeOwner(ownerID, story); err != nil {
		return types.Story{}, err
	}
	if user.ID == story.OwnerID {
		return types.Story{}, ErrSelfInvite
	}
	if IsCollaborator(user.ID, story) {
		return types.Story{}, ErrAlreadyCollaborator
	}
	if role == "" {
		role = types.RoleViewer
	}
	if role != types.RoleViewer && role != types.RoleEditor {
		return types.Story{}, ErrInvalidRole
	}

	collaborators := make([]types.Collaborator, 0, len(story.Collaborators)+1)
	collaborators = append(collaborators, story.Collaborators...)
	collaborators = append(collaborators, types.Collaborator{UserID: user.ID, Role: role})
	story.Collaborators = collaborators
	return story, nil
}

// RemoveCollaborator returns a copy of story without user in its
// collaborator set. Remaining collaborators keep their order.
func RemoveCollaborator(story types.Story, ownerID uuid.UUID, user types.User) (types.Story, error) {
	if err := AuthorizeOwner(ownerID, story); err != nil {
		return types.Story{}, err
	}
	idx := indexOf(story.Collaborators, user.ID)
	if idx < 0 {
		return types.Story{}, ErrNotCollaborator
	}

	collaborators := make([]types.Collaborator, 0, len(story.Collaborators)-1)
	collaborators = append(collaborators, story.Collaborators[:idx]...)
	collaborators = append(collaborators, story.Collaborators[idx+1:]...)
	story.Collaborators = collaborators
	return story, nil
}

func indexOf(collaborators []types.Collaborator, userID uuid.UUID) int {
	for i, c := range collaborators {
		if c.UserID == userID {
			return i
		}
	}
	return -1
}
