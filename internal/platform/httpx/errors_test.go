package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRespondErrorMapsSentinels(t *testing.T) {
	cases := []struct {
		err    error
		status int
		title  string
	}{
		{fmt.Errorf("report 1: %w", ErrNotFound), http.StatusNotFound, "Not Found"},
		{ErrDuplicate, http.StatusConflict, "Duplicate"},
		{fmt.Errorf("bad: %w", ErrValidation), http.StatusBadRequest, "Validation Failed"},
		{ErrNotReady, http.StatusConflict, "Not Ready"},
		{ErrUnavailable, http.StatusServiceUnavailable, "Service Unavailable"},
		{errors.New("boom"), http.StatusInternalServerError, "Internal Error"},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		RespondError(rec, tc.err)
		require.Equal(t, tc.status, rec.Code, tc.err.Error())
		assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

		var problem ProblemDetail
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&problem))
		assert.Equal(t, tc.title, problem.Title)
		assert.Equal(t, tc.status, problem.Status)
	}
}

func TestInternalErrorHidesDetail(t *testing.T) {
	rec := httptest.NewRecorder()
	RespondError(rec, errors.New("password=hunter2"))
	assert.NotContains(t, rec.Body.String(), "hunter2")
}
