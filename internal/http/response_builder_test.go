package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"tutordash/internal/apperr"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONResponseBuilder_Write(t *testing.T) {
	rec := httptest.NewRecorder()
	err := NewJSONResponse().
		Status(http.StatusCreated).
		Header("X-Test", "1").
		Cache(false).
		Body(map[string]int{"n": 3}).
		Write(rec)
	require.NoError(t, err)

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, contentTypeJSON, rec.Header().Get("Content-Type"))
	assert.Equal(t, "1", rec.Header().Get("X-Test"))
	assert.Equal(t, "MISS", rec.Header().Get("X-Cache"))
	assert.JSONEq(t, `{"n":3}`, rec.Body.String())
}

func TestJSONResponseBuilder_Raw(t *testing.T) {
	rec := httptest.NewRecorder()
	require.NoError(t, NewJSONResponse().Cache(true).Raw([]byte(`{"cached":true}`)).Write(rec))

	assert.Equal(t, "HIT", rec.Header().Get("X-Cache"))
	assert.Equal(t, `{"cached":true}`, rec.Body.String())
}

func TestJSONResponseBuilder_EncodeFailure(t *testing.T) {
	rec := httptest.NewRecorder()
	err := NewJSONResponse().Body(map[string]any{"bad": make(chan int)}).Write(rec)

	require.Error(t, err)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestErrorResponse(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
		wantMsg    string
	}{
		{
			name:       "validation",
			err:        fmt.Errorf("metrics: %w", apperr.Validation("top_n must be at most 100")),
			wantStatus: http.StatusBadRequest,
			wantCode:   "VALIDATION_ERROR",
			wantMsg:    "top_n must be at most 100",
		},
		{
			name:       "not found",
			err:        apperr.NotFound("student %q not found", "Zoe"),
			wantStatus: http.StatusNotFound,
			wantCode:   "NOT_FOUND",
			wantMsg:    `student "Zoe" not found`,
		},
		{
			name:       "data source",
			err:        apperr.DataSource(errors.New("dial tcp: timeout"), "session source unavailable"),
			wantStatus: http.StatusServiceUnavailable,
			wantCode:   "DATA_SOURCE_UNAVAILABLE",
			wantMsg:    "session source unavailable",
		},
		{
			name:       "plain error stays internal",
			err:        errors.New("secret connection string"),
			wantStatus: http.StatusInternalServerError,
			wantCode:   "INTERNAL_ERROR",
			wantMsg:    "internal server error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			require.NoError(t, ErrorResponse(tt.err, "req_1").Write(rec))

			assert.Equal(t, tt.wantStatus, rec.Code)
			var body struct {
				Error struct {
					Code    string `json:"code"`
					Message string `json:"message"`
				} `json:"error"`
				RequestID string `json:"request_id"`
			}
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.wantCode, body.Error.Code)
			assert.Equal(t, tt.wantMsg, body.Error.Message)
			assert.Equal(t, "req_1", body.RequestID)
		})
	}
}
