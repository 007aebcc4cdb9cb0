package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/wanderlog/apiserver/types"
)

const storyColumns = `id, owner_id, title, story, visited_locations, image_url, visit_date, is_favourite, collaborators, created_at, updated_at`

// Favourites come first; ties keep creation order.
const storyOrder = `ORDER BY is_favourite DESC, created_at ASC, id ASC`

// StoryRepository handles persistence for travel stories. Collaborators and
// visited locations live in JSONB columns so that a story is always read and
// written as a single row.
type StoryRepository struct {
	db *sql.DB
}

func NewStoryRepository(db *sql.DB) *StoryRepository {
	return &StoryRepository{db: db}
}

// Get loads a story by id regardless of who owns it.
func (r *StoryRepository) Get(ctx context.Context, id uuid.UUID) (types.Story, error) {
	const query = `SELECT ` + storyColumns + ` FROM travel_stories WHERE id = $1`
	return scanStory(r.db.QueryRowContext(ctx, query, id))
}

// GetOwned loads a story only if ownerID owns it. A story owned by someone
// else is reported as ErrNotFound.
func (r *StoryRepository) GetOwned(ctx context.Context, id, ownerID uuid.UUID) (types.Story, error) {
	const query = `SELECT ` + storyColumns + ` FROM travel_stories WHERE id = $1 AND owner_id = $2`
	return scanStory(r.db.QueryRowContext(ctx, query, id, ownerID))
}

func (r *StoryRepository) ListOwned(ctx context.Context, ownerID uuid.UUID) ([]types.Story, error) {
	const query = `SELECT ` + storyColumns + ` FROM travel_stories WHERE owner_id = $1 ` + storyOrder
	return r.list(ctx, query, ownerID)
}

// ListShared returns the stories userID was invited to.
func (r *StoryRepository) ListShared(ctx context.Context, userID uuid.UUID) ([]types.Story, error) {
	filter, err := json.Marshal([]map[string]string{{"userId": userID.String()}})
	if err != nil {
		return nil, err
	}
	const query = `SELECT ` + storyColumns + ` FROM travel_stories WHERE collaborators @> $1::jsonb ` + storyOrder
	return r.list(ctx, query, string(filter))
}

// Search matches text case-insensitively as a substring of the title, the
// narrative or any visited location.
func (r *StoryRepository) Search(ctx context.Context, ownerID uuid.UUID, text string) ([]types.Story, error) {
	const query = `
		SELECT ` + storyColumns + `
		FROM travel_stories
		WHERE owner_id = $1
		  AND (
			title ILIKE $2
			OR story ILIKE $2
			OR EXISTS (
				SELECT 1 FROM jsonb_array_elements_text(visited_locations) AS loc
				WHERE loc ILIKE $2
			)
		  )
		` + storyOrder
	return r.list(ctx, query, ownerID, containsPattern(text))
}

// FilterByVisitDate returns owned stories visited within [start, end].
func (r *StoryRepository) FilterByVisitDate(ctx context.Context, ownerID uuid.UUID, start, end time.Time) ([]types.Story, error) {
	const query = `
		SELECT ` + storyColumns + `
		FROM travel_stories
		WHERE owner_id = $1
		  AND visit_date >= $2
		  AND visit_date <= $3
		` + storyOrder
	return r.list(ctx, query, ownerID, start.UTC(), end.UTC())
}

func (r *StoryRepository) Create(ctx context.Context, story types.Story) (types.Story, error) {
	now := time.Now().UTC()
	story.ID = uuid.New()
	story.CreatedAt = now
	story.UpdatedAt = now

	locationsJSON, collaboratorsJSON, err := encodeStoryJSON(story)
	if err != nil {
		return types.Story{}, err
	}

	const query = `
		INSERT INTO travel_stories (id, owner_id, title, story, visited_locations, image_url, visit_date, is_favourite, collaborators, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
	if _, err := r.db.ExecContext(
		ctx,
		query,
		story.ID,
		story.OwnerID,
		story.Title,
		story.Story,
		locationsJSON,
		story.ImageURL,
		story.VisitDate.UTC(),
		story.IsFavourite,
		collaboratorsJSON,
		story.CreatedAt,
		story.UpdatedAt,
	); err != nil {
		return types.Story{}, err
	}
	return story, nil
}

// Update overwrites the mutable fields of a story. The owner is part of the
// key and is never rewritten.
func (r *StoryRepository) Update(ctx context.Context, story types.Story) (types.Story, error) {
	story.UpdatedAt = time.Now().UTC()

	locationsJSON, collaboratorsJSON, err := encodeStoryJSON(story)
	if err != nil {
		return types.Story{}, err
	}

	const query = `
		UPDATE travel_stories
		SET title = $1,
			story = $2,
			visited_locations = $3,
			image_url = $4,
			visit_date = $5,
			is_favourite = $6,
			collaborators = $7,
			updated_at = $8
		WHERE id = $9 AND owner_id = $10`
	result, err := r.db.ExecContext(
		ctx,
		query,
		story.Title,
		story.Story,
		locationsJSON,
		story.ImageURL,
		story.VisitDate.UTC(),
		story.IsFavourite,
		collaboratorsJSON,
		story.UpdatedAt,
		story.ID,
		story.OwnerID,
	)
	if err != nil {
		return types.Story{}, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return types.Story{}, err
	}
	if affected == 0 {
		return types.Story{}, ErrNotFound
	}
	return story, nil
}

// Delete removes a story owned by ownerID.
func (r *StoryRepository) Delete(ctx context.Context, id, ownerID uuid.UUID) error {
	const query = `DELETE FROM travel_stories WHERE id = $1 AND owner_id = $2`
	result, err := r.db.ExecContext(ctx, query, id, ownerID)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *StoryRepository) list(ctx context.Context, query string, args ...any) ([]types.Story, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	stories := make([]types.Story, 0)
	for rows.Next() {
		story, err := scanStory(rows)
		if err != nil {
			return nil, err
		}
		stories = append(stories, story)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return stories, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanStory(row rowScanner) (types.Story, error) {
	var story types.Story
	var locationsJSON, collaboratorsJSON []byte
	err := row.Scan(
		&story.ID,
		&story.OwnerID,
		&story.Title,
		&story.Story,
		&locationsJSON,
		&story.ImageURL,
		&story.VisitDate,
		&story.IsFavourite,
		&collaboratorsJSON,
		&story.CreatedAt,
		&story.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Story{}, ErrNotFound
		}
		return types.Story{}, err
	}

	if err := json.Unmarshal(locationsJSON, &story.VisitedLocations); err != nil {
		return types.Story{}, fmt.Errorf("decode visited locations: %w", err)
	}
	if err := json.Unmarshal(collaboratorsJSON, &story.Collaborators); err != nil {
		return types.Story{}, fmt.Errorf("decode collaborators: %w", err)
	}
	if story.VisitedLocations == nil {
		story.VisitedLocations = []string{}
	}
	if story.Collaborators == nil {
		story.Collaborators = []types.Collaborator{}
	}
	return story, nil
}

func encodeStoryJSON(story types.Story) (string, string, error) {
	locations := story.VisitedLocations
	if locations == nil {
		locations = []string{}
	}
	collaborators := story.Collaborators
	if collaborators == nil {
		collaborators = []types.Collaborator{}
	}

	locationsJSON, err := json.Marshal(locations)
	if err != nil {
		return "", "", err
	}
	collaboratorsJSON, err := json.Marshal(collaborators)
	if err != nil {
		return "", "", err
	}
	return string(locationsJSON), string(collaboratorsJSON), nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// containsPattern builds an ILIKE pattern matching text literally anywhere.
func containsPattern(text string) string {
	return "%" + likeEscaper.Replace(text) + "%"
}
