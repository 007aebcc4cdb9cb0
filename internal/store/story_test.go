package store

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wanderlog/apiserver/types"
)

var storyRowColumns = []string{
	"id", "owner_id", "title", "story", "visited_locations", "image_url",
	"visit_date", "is_favourite", "collaborators", "created_at", "updated_at",
}

func newStoryRepoWithMock(t *testing.T) (*StoryRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return NewStoryRepository(db), mock, db
}

func TestStoryGetOwned_Found(t *testing.T) {
	repo, mock, db := newStoryRepoWithMock(t)
	defer db.Close()

	id, owner, collaborator := uuid.New(), uuid.New(), uuid.New()
	visit := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows(storyRowColumns).AddRow(
		id.String(), owner.String(), "Paris", "croissants", []byte(`["Paris","Versailles"]`),
		"http://img/1.png", visit, true,
		[]byte(`[{"userId":"`+collaborator.String()+`","role":"viewer"}]`),
		visit, visit,
	)
	mock.ExpectQuery(`(?s)SELECT .+ FROM travel_stories WHERE id = \$1 AND owner_id = \$2`).
		WithArgs(id, owner).
		WillReturnRows(rows)

	got, err := repo.GetOwned(context.Background(), id, owner)
	require.NoError(t, err)
	assert.Equal(t, id, got.ID)
	assert.Equal(t, owner, got.OwnerID)
	assert.Equal(t, []string{"Paris", "Versailles"}, got.VisitedLocations)
	assert.Equal(t, []types.Collaborator{{UserID: collaborator, Role: types.RoleViewer}}, got.Collaborators)
	assert.True(t, got.IsFavourite)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStoryGetOwned_NotFound(t *testing.T) {
	repo, mock, db := newStoryRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`FROM travel_stories WHERE id = \$1 AND owner_id = \$2`).
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetOwned(context.Background(), uuid.New(), uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStoryGet_EmptyJSONBecomesEmptySlices(t *testing.T) {
	repo, mock, db := newStoryRepoWithMock(t)
	defer db.Close()

	id := uuid.New()
	now := time.Now().UTC()
	rows := sqlmock.NewRows(storyRowColumns).AddRow(
		id.String(), uuid.New().String(), "t", "", []byte(`null`), "u", now, false, []byte(`null`), now, now,
	)
	mock.ExpectQuery(`FROM travel_stories WHERE id = \$1$`).WithArgs(id).WillReturnRows(rows)

	got, err := repo.Get(context.Background(), id)
	require.NoError(t, err)
	assert.NotNil(t, got.VisitedLocations)
	assert.Empty(t, got.VisitedLocations)
	assert.NotNil(t, got.Collaborators)
	assert.Empty(t, got.Collaborators)
}

func TestStorySearch_EscapesPattern(t *testing.T) {
	repo, mock, db := newStoryRepoWithMock(t)
	defer db.Close()

	owner := uuid.New()
	mock.ExpectQuery(`(?s)WHERE owner_id = \$1.+title ILIKE \$2.+story ILIKE \$2.+jsonb_array_elements_text\(visited_locations\).+ORDER BY is_favourite DESC, created_at ASC`).
		WithArgs(owner, `%50\%\_off%`).
		WillReturnRows(sqlmock.NewRows(storyRowColumns))

	got, err := repo.Search(context.Background(), owner, "50%_off")
	require.NoError(t, err)
	assert.Empty(t, got)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStoryFilterByVisitDate_InclusiveBounds(t *testing.T) {
	repo, mock, db := newStoryRepoWithMock(t)
	defer db.Close()

	owner := uuid.New()
	start := time.UnixMilli(1700000000000)
	end := time.UnixMilli(1700000086400)
	now := time.Now().UTC()
	rows := sqlmock.NewRows(storyRowColumns).
		AddRow(uuid.New().String(), owner.String(), "fav", "", []byte(`[]`), "u", start, true, []byte(`[]`), now, now).
		AddRow(uuid.New().String(), owner.String(), "plain", "", []byte(`[]`), "u", end, false, []byte(`[]`), now, now)
	mock.ExpectQuery(`(?s)visit_date >= \$2\s+AND visit_date <= \$3`).
		WithArgs(owner, start.UTC(), end.UTC()).
		WillReturnRows(rows)

	got, err := repo.FilterByVisitDate(context.Background(), owner, start, end)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "fav", got[0].Title)
	assert.Equal(t, "plain", got[1].Title)
}

func TestStoryListShared_UsesContainment(t *testing.T) {
	repo, mock, db := newStoryRepoWithMock(t)
	defer db.Close()

	user := uuid.New()
	mock.ExpectQuery(`collaborators @> \$1::jsonb`).
		WithArgs(`[{"userId":"` + user.String() + `"}]`).
		WillReturnRows(sqlmock.NewRows(storyRowColumns))

	_, err := repo.ListShared(context.Background(), user)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStoryCreate_AssignsIDAndTimestamps(t *testing.T) {
	repo, mock, db := newStoryRepoWithMock(t)
	defer db.Close()

	owner := uuid.New()
	mock.ExpectExec(`INSERT INTO travel_stories`).
		WithArgs(sqlmock.AnyArg(), owner, "Rome", "pasta", `["Rome"]`, "http://img/2.png",
			sqlmock.AnyArg(), false, `[]`, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	got, err := repo.Create(context.Background(), types.Story{
		OwnerID:          owner,
		Title:            "Rome",
		Story:            "pasta",
		VisitedLocations: []string{"Rome"},
		ImageURL:         "http://img/2.png",
		VisitDate:        time.UnixMilli(1700000000000),
	})
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, got.ID)
	assert.False(t, got.CreatedAt.IsZero())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStoryUpdate_NotOwned(t *testing.T) {
	repo, mock, db := newStoryRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`(?s)UPDATE travel_stories.+WHERE id = \$9 AND owner_id = \$10`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	_, err := repo.Update(context.Background(), types.Story{ID: uuid.New(), OwnerID: uuid.New()})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStoryDelete(t *testing.T) {
	repo, mock, db := newStoryRepoWithMock(t)
	defer db.Close()

	id, owner := uuid.New(), uuid.New()
	mock.ExpectExec(`DELETE FROM travel_stories WHERE id = \$1 AND owner_id = \$2`).
		WithArgs(id, owner).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`DELETE FROM travel_stories`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.Delete(context.Background(), id, owner))
	assert.ErrorIs(t, repo.Delete(context.Background(), id, owner), ErrNotFound)
}

func TestContainsPattern(t *testing.T) {
	assert.Equal(t, "%paris%", containsPattern("paris"))
	assert.Equal(t, `%a\\b%`, containsPattern(`a\b`))
}
