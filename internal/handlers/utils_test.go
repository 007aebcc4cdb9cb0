package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wanderlog/apiserver/internal/access"
	"github.com/wanderlog/apiserver/internal/logging"
	"github.com/wanderlog/apiserver/internal/services"
	"github.com/wanderlog/apiserver/internal/store"
)

func TestWriteServiceError(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		wantStatus  int
		wantMessage string
	}{
		{name: "validation", err: &services.ValidationError{Message: "title is required"}, wantStatus: http.StatusBadRequest, wantMessage: "title is required"},
		{name: "not found", err: fmt.Errorf("load: %w", store.ErrNotFound), wantStatus: http.StatusNotFound, wantMessage: storyNotFound},
		{name: "forbidden hides existence", err: access.ErrForbidden, wantStatus: http.StatusNotFound, wantMessage: storyNotFound},
		{name: "collaborator not found", err: services.ErrCollaboratorNotFound, wantStatus: http.StatusNotFound, wantMessage: "Collaborator not found"},
		{name: "already collaborator", err: access.ErrAlreadyCollaborator, wantStatus: http.StatusBadRequest, wantMessage: "User is already a collaborator"},
		{name: "not collaborator", err: access.ErrNotCollaborator, wantStatus: http.StatusBadRequest, wantMessage: "User is not a collaborator"},
		{name: "self invite", err: access.ErrSelfInvite, wantStatus: http.StatusBadRequest},
		{name: "duplicate user", err: store.ErrConflict, wantStatus: http.StatusBadRequest, wantMessage: "User already exists"},
		{name: "internal", err: errors.New("connection reset"), wantStatus: http.StatusInternalServerError, wantMessage: internalErrorMessage},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			writeServiceError(rec, logging.Discard(), tc.err, storyNotFound)

			assert.Equal(t, tc.wantStatus, rec.Code)
			var resp ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.True(t, resp.Error)
			if tc.wantMessage != "" {
				assert.Equal(t, tc.wantMessage, resp.Message)
			}
			assert.NotContains(t, resp.Message, "connection reset")
		})
	}
}

func TestEpochMillisUnmarshal(t *testing.T) {
	var req StoryRequest
	require.NoError(t, json.Unmarshal([]byte(`{"visitDate": 1700000000000}`), &req))
	require.NotNil(t, req.VisitDate)
	assert.Equal(t, int64(1700000000000), req.VisitDate.UnixMilli())

	req = StoryRequest{}
	require.NoError(t, json.Unmarshal([]byte(`{"visitDate": "1700000000001"}`), &req))
	assert.Equal(t, int64(1700000000001), req.VisitDate.UnixMilli())

	rejected := []string{
		`"soon"`,
		`"NaN"`,
		`"Inf"`,
		`"1e300"`,
		`1e300`,
		`1700000000000.5`,
		`9999999999999999999`,
		`"99999999999999999"`,
		`-99999999999999999`,
		`true`,
	}
	for _, raw := range rejected {
		t.Run(raw, func(t *testing.T) {
			var req StoryRequest
			err := json.Unmarshal([]byte(`{"visitDate": `+raw+`}`), &req)
			assert.ErrorIs(t, err, errInvalidVisitDate)
		})
	}
}

func TestParseEpochMillisBounds(t *testing.T) {
	got, err := parseEpochMillis(fmt.Sprint(maxEpochMillis))
	require.NoError(t, err)
	assert.Equal(t, 9999, got.Year())

	got, err = parseEpochMillis(fmt.Sprint(minEpochMillis))
	require.NoError(t, err)
	assert.Equal(t, 1, got.Year())

	_, err = parseEpochMillis(fmt.Sprint(maxEpochMillis + 1))
	assert.ErrorIs(t, err, errEpochOutOfRange)

	_, err = parseEpochMillis(fmt.Sprint(minEpochMillis - 1))
	assert.ErrorIs(t, err, errEpochOutOfRange)
}
