package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/letably/backend/internal/infrastructure/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// mockAgencyValidator is a test implementation of AgencyValidator
type mockAgencyValidator struct {
	ValidAgencies map[string]*AgencyInfo
	ShouldFail    bool
	FailError     error
}

func (m *mockAgencyValidator) ValidateAgency(agencyID string) (*AgencyInfo, error) {
	if m.ShouldFail {
		return nil, m.FailError
	}
	if info, exists := m.ValidAgencies[agencyID]; exists {
		return info, nil
	}
	return nil, errors.New("agency not found")
}

func TestAgencyMiddleware_HeaderExtraction(t *testing.T) {
	tests := []struct {
		name           string
		agencyID       string
		expectedStatus int
	}{
		{
			name:           "valid agency ID in header",
			agencyID:       uuid.New().String(),
			expectedStatus: http.StatusOK,
		},
		{
			name:           "missing agency ID",
			agencyID:       "",
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "invalid agency ID format",
			agencyID:       "invalid-uuid",
			expectedStatus: http.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := gin.New()
			router.Use(AgencyMiddleware())

			var capturedAgencyID string
			router.GET("/test", func(c *gin.Context) {
				capturedAgencyID = GetAgencyID(c)
				c.Status(http.StatusOK)
			})

			req := httptest.NewRequest(http.MethodGet, "/test", nil)
			if tt.agencyID != "" {
				req.Header.Set(AgencyHeaderKey, tt.agencyID)
			}
			w := httptest.NewRecorder()

			router.ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			if tt.expectedStatus == http.StatusOK {
				assert.Equal(t, tt.agencyID, capturedAgencyID)
			}
		})
	}
}

func TestAgencyMiddleware_NoFallbackAgency(t *testing.T) {
	// A request with no JWT claim and no header must be rejected, never
	// defaulted to some development agency
	router := gin.New()
	router.Use(AgencyMiddleware())

	router.GET("/test", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "AGENCY_REQUIRED")
}

func TestAgencyMiddleware_JWTExtraction(t *testing.T) {
	agencyID := uuid.New().String()

	router := gin.New()

	// Simulate JWT middleware that sets the agency claim
	router.Use(func(c *gin.Context) {
		c.Set(JWTAgencyIDKey, agencyID)
		c.Next()
	})
	router.Use(AgencyMiddleware())

	var capturedAgencyID string
	router.GET("/test", func(c *gin.Context) {
		capturedAgencyID = GetAgencyID(c)
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, agencyID, capturedAgencyID)
}

func TestAgencyMiddleware_JWTOverridesHeader(t *testing.T) {
	jwtAgencyID := uuid.New().String()
	headerAgencyID := uuid.New().String()

	router := gin.New()

	router.Use(func(c *gin.Context) {
		c.Set(JWTAgencyIDKey, jwtAgencyID)
		c.Next()
	})
	router.Use(AgencyMiddleware())

	var capturedAgencyID string
	router.GET("/test", func(c *gin.Context) {
		capturedAgencyID = GetAgencyID(c)
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set(AgencyHeaderKey, headerAgencyID)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	// The token binding wins over a client-supplied header
	assert.Equal(t, jwtAgencyID, capturedAgencyID)
}

func TestAgencyMiddleware_SkipPaths(t *testing.T) {
	tests := []struct {
		name           string
		path           string
		skipPaths      []string
		expectedStatus int
	}{
		{
			name:           "health endpoint skipped",
			path:           "/health",
			skipPaths:      []string{"/health"},
			expectedStatus: http.StatusOK,
		},
		{
			name:           "nested health path skipped",
			path:           "/health/ready",
			skipPaths:      []string{"/health"},
			expectedStatus: http.StatusOK,
		},
		{
			name:           "non-skipped path requires agency",
			path:           "/api/test",
			skipPaths:      []string{"/health"},
			expectedStatus: http.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := gin.New()
			cfg := DefaultAgencyConfig()
			cfg.SkipPaths = tt.skipPaths
			router.Use(AgencyMiddlewareWithConfig(cfg))

			router.GET(tt.path, func(c *gin.Context) {
				c.Status(http.StatusOK)
			})

			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			w := httptest.NewRecorder()

			router.ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
		})
	}
}

func TestAgencyMiddleware_WithValidator(t *testing.T) {
	validAgencyID := uuid.New().String()
	unknownAgencyID := uuid.New().String()

	validator := &mockAgencyValidator{
		ValidAgencies: map[string]*AgencyInfo{
			validAgencyID: {
				ID:   uuid.MustParse(validAgencyID),
				Code: "HARR",
			},
		},
	}

	tests := []struct {
		name           string
		agencyID       string
		expectedStatus int
		expectedCode   string
	}{
		{
			name:           "known agency passes validation",
			agencyID:       validAgencyID,
			expectedStatus: http.StatusOK,
			expectedCode:   "HARR",
		},
		{
			name:           "unknown agency fails validation",
			agencyID:       unknownAgencyID,
			expectedStatus: http.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := gin.New()
			cfg := DefaultAgencyConfig()
			cfg.Validator = validator
			router.Use(AgencyMiddlewareWithConfig(cfg))

			var capturedCode string
			router.GET("/test", func(c *gin.Context) {
				capturedCode = GetAgencyCode(c)
				c.Status(http.StatusOK)
			})

			req := httptest.NewRequest(http.MethodGet, "/test", nil)
			req.Header.Set(AgencyHeaderKey, tt.agencyID)
			w := httptest.NewRecorder()

			router.ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			if tt.expectedStatus == http.StatusOK {
				assert.Equal(t, tt.expectedCode, capturedCode)
			}
		})
	}
}

func TestAgencyMiddleware_ValidatorError(t *testing.T) {
	agencyID := uuid.New().String()

	validator := &mockAgencyValidator{
		ShouldFail: true,
		FailError:  errors.New("database connection failed"),
	}

	router := gin.New()
	cfg := DefaultAgencyConfig()
	cfg.Validator = validator
	router.Use(AgencyMiddlewareWithConfig(cfg))

	router.GET("/test", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set(AgencyHeaderKey, agencyID)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAgencyMiddleware_ContextPropagation(t *testing.T) {
	agencyID := uuid.New().String()

	router := gin.New()
	router.Use(AgencyMiddleware())

	router.GET("/test", func(c *gin.Context) {
		// The agency ID must also land in the request context; the scoped
		// DB layer reads it from there
		ctx := c.Request.Context()
		assert.Equal(t, agencyID, logger.GetAgencyID(ctx))
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set(AgencyHeaderKey, agencyID)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestGetAgencyUUID(t *testing.T) {
	agencyID := uuid.New().String()

	router := gin.New()
	router.Use(AgencyMiddleware())

	router.GET("/test", func(c *gin.Context) {
		gotUUID, err := GetAgencyUUID(c)
		require.NoError(t, err)
		assert.Equal(t, uuid.MustParse(agencyID), gotUUID)
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set(AgencyHeaderKey, agencyID)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestDefaultAgencyConfig(t *testing.T) {
	cfg := DefaultAgencyConfig()

	assert.True(t, cfg.HeaderEnabled)
	assert.True(t, cfg.JWTEnabled)
	assert.True(t, cfg.Required)
	assert.Nil(t, cfg.Validator)
	assert.Nil(t, cfg.Logger)
	assert.Contains(t, cfg.SkipPaths, "/health")
	assert.Contains(t, cfg.SkipPaths, "/metrics")
}
