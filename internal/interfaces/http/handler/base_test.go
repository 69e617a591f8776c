package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/letably/backend/internal/domain/shared"
	"github.com/letably/backend/internal/interfaces/http/dto"
	"github.com/letably/backend/internal/interfaces/http/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// newTestContext builds a gin context with a GET request attached so
// header and context lookups work.
func newTestContext(t *testing.T) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	return c, w
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) dto.Response {
	t.Helper()
	var resp dto.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestGetRequestID(t *testing.T) {
	t.Run("from context", func(t *testing.T) {
		c, _ := newTestContext(t)
		c.Set(RequestIDKey, "ctx-request-id")
		assert.Equal(t, "ctx-request-id", getRequestID(c))
	})

	t.Run("falls back to header", func(t *testing.T) {
		c, _ := newTestContext(t)
		c.Request.Header.Set(RequestIDKey, "header-request-id")
		assert.Equal(t, "header-request-id", getRequestID(c))
	})

	t.Run("context wins over header", func(t *testing.T) {
		c, _ := newTestContext(t)
		c.Set(RequestIDKey, "ctx-id")
		c.Request.Header.Set(RequestIDKey, "header-id")
		assert.Equal(t, "ctx-id", getRequestID(c))
	})

	t.Run("empty when unset", func(t *testing.T) {
		c, _ := newTestContext(t)
		assert.Empty(t, getRequestID(c))
	})
}

func TestGetAgencyID(t *testing.T) {
	t.Run("resolved agency", func(t *testing.T) {
		c, _ := newTestContext(t)
		agencyID := uuid.New()
		c.Set(middleware.AgencyIDKey, agencyID.String())

		got, err := getAgencyID(c)
		require.NoError(t, err)
		assert.Equal(t, agencyID, got)
	})

	t.Run("missing agency fails closed", func(t *testing.T) {
		c, w := newTestContext(t)

		_, err := getAgencyID(c)
		require.Error(t, err)

		// The error must map to 401, never to a default agency.
		(&BaseHandler{}).HandleError(c, err)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("malformed agency ID fails closed", func(t *testing.T) {
		c, _ := newTestContext(t)
		c.Set(middleware.AgencyIDKey, "not-a-uuid")

		_, err := getAgencyID(c)
		assert.ErrorIs(t, err, shared.ErrAgencyRequired)
	})
}

func TestBaseHandler_SuccessResponses(t *testing.T) {
	h := &BaseHandler{}

	t.Run("Success", func(t *testing.T) {
		c, w := newTestContext(t)
		h.Success(c, map[string]string{"key": "value"})

		assert.Equal(t, http.StatusOK, w.Code)
		assert.True(t, decodeEnvelope(t, w).Success)
	})

	t.Run("SuccessWithMeta", func(t *testing.T) {
		c, w := newTestContext(t)
		h.SuccessWithMeta(c, []string{"a", "b"}, 100, 1, 10)

		assert.Equal(t, http.StatusOK, w.Code)
		resp := decodeEnvelope(t, w)
		require.NotNil(t, resp.Meta)
		assert.Equal(t, int64(100), resp.Meta.Total)
		assert.Equal(t, 10, resp.Meta.TotalPages)
	})

	t.Run("Created", func(t *testing.T) {
		c, w := newTestContext(t)
		h.Created(c, map[string]string{"id": "123"})

		assert.Equal(t, http.StatusCreated, w.Code)
		assert.True(t, decodeEnvelope(t, w).Success)
	})

	t.Run("NoContent", func(t *testing.T) {
		router := gin.New()
		router.DELETE("/payments/:id", func(c *gin.Context) { h.NoContent(c) })

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/payments/abc", nil))

		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.Empty(t, w.Body.Bytes())
	})
}

func TestBaseHandler_ErrorHelpers(t *testing.T) {
	h := &BaseHandler{}

	tests := []struct {
		name     string
		respond  func(*gin.Context)
		wantCode int
		wantErr  string
	}{
		{"BadRequest", func(c *gin.Context) { h.BadRequest(c, "bad input") }, http.StatusBadRequest, dto.ErrCodeBadRequest},
		{"NotFound", func(c *gin.Context) { h.NotFound(c, "no such schedule") }, http.StatusNotFound, dto.ErrCodeNotFound},
		{"Unauthorized", func(c *gin.Context) { h.Unauthorized(c, "no token") }, http.StatusUnauthorized, dto.ErrCodeUnauthorized},
		{"Forbidden", func(c *gin.Context) { h.Forbidden(c, "denied") }, http.StatusForbidden, dto.ErrCodeForbidden},
		{"Conflict", func(c *gin.Context) { h.Conflict(c, "duplicate") }, http.StatusConflict, dto.ErrCodeConflict},
		{"InternalError", func(c *gin.Context) { h.InternalError(c, "boom") }, http.StatusInternalServerError, dto.ErrCodeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, w := newTestContext(t)
			tt.respond(c)

			assert.Equal(t, tt.wantCode, w.Code)
			resp := decodeEnvelope(t, w)
			assert.False(t, resp.Success)
			assert.Equal(t, tt.wantErr, resp.Error.Code)
		})
	}
}

func TestBaseHandler_ErrorCarriesRequestID(t *testing.T) {
	c, w := newTestContext(t)
	c.Set(RequestIDKey, "req-123")

	(&BaseHandler{}).BadRequest(c, "bad input")

	assert.Equal(t, "req-123", decodeEnvelope(t, w).Error.RequestID)
}

func TestBaseHandler_ErrorWithCode(t *testing.T) {
	c, w := newTestContext(t)

	// Business rule violations travel as 422.
	(&BaseHandler{}).ErrorWithCode(c, dto.ErrCodeInvalidState, "Tenancy is not active")

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, dto.ErrCodeInvalidState, decodeEnvelope(t, w).Error.Code)
}

func TestBaseHandler_ValidationError(t *testing.T) {
	c, w := newTestContext(t)
	c.Set(RequestIDKey, "req-456")

	(&BaseHandler{}).ValidationError(c, []dto.ValidationDetail{
		{Field: "amount", Message: "Must be greater than 0"},
		{Field: "due_date", Message: "This field is required"},
	})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	resp := decodeEnvelope(t, w)
	assert.Equal(t, dto.ErrCodeValidation, resp.Error.Code)
	assert.Equal(t, "req-456", resp.Error.RequestID)
	assert.Len(t, resp.Error.Details, 2)
}

func TestBaseHandler_HandleError_DomainErrors(t *testing.T) {
	tests := []struct {
		err      error
		wantCode int
		wantErr  string
	}{
		{shared.ErrNotFound, http.StatusNotFound, dto.ErrCodeNotFound},
		{shared.ErrAlreadyExists, http.StatusConflict, dto.ErrCodeAlreadyExists},
		{shared.ErrInvalidInput, http.StatusBadRequest, dto.ErrCodeInvalidInput},
		{shared.ErrUnauthorized, http.StatusUnauthorized, dto.ErrCodeUnauthorized},
		{shared.ErrInvalidState, http.StatusUnprocessableEntity, dto.ErrCodeInvalidState},
		{shared.ErrConflict, http.StatusConflict, dto.ErrCodeConflict},
		{shared.ErrConcurrencyConflict, http.StatusConflict, dto.ErrCodeConcurrencyConflict},
		{shared.ErrAgencyRequired, http.StatusUnauthorized, dto.ErrCodeAgencyRequired},
	}

	for _, tt := range tests {
		t.Run(tt.wantErr, func(t *testing.T) {
			c, w := newTestContext(t)
			(&BaseHandler{}).HandleError(c, tt.err)

			assert.Equal(t, tt.wantCode, w.Code)
			resp := decodeEnvelope(t, w)
			assert.False(t, resp.Success)
			assert.Equal(t, tt.wantErr, resp.Error.Code)
		})
	}
}

func TestBaseHandler_HandleError(t *testing.T) {
	h := &BaseHandler{}

	t.Run("nil writes nothing", func(t *testing.T) {
		c, w := newTestContext(t)
		h.HandleError(c, nil)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Empty(t, w.Body.Bytes())
	})

	t.Run("unknown errors stay opaque", func(t *testing.T) {
		c, w := newTestContext(t)
		h.HandleError(c, assert.AnError)

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		resp := decodeEnvelope(t, w)
		assert.Equal(t, dto.ErrCodeInternal, resp.Error.Code)
		assert.Equal(t, "An unexpected error occurred", resp.Error.Message)
	})

	t.Run("wrapped domain errors unwrap", func(t *testing.T) {
		c, w := newTestContext(t)
		h.HandleError(c, fmt.Errorf("loading schedule: %w", shared.ErrNotFound))

		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, dto.ErrCodeNotFound, decodeEnvelope(t, w).Error.Code)
	})
}
