package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/letably/backend/internal/infrastructure/logger"
	"go.uber.org/zap"
)

// Agency context keys
const (
	AgencyIDKey     = "agency_id"
	AgencyCodeKey   = "agency_code"
	AgencyHeaderKey = "X-Agency-ID"
)

// AgencyInfo holds the resolved agency information
type AgencyInfo struct {
	ID   uuid.UUID `json:"id"`
	Code string    `json:"code"`
}

// AgencyValidator checks that a resolved agency exists and is usable
type AgencyValidator interface {
	ValidateAgency(agencyID string) (*AgencyInfo, error)
}

// AgencyMiddlewareConfig holds configuration for the agency resolver
type AgencyMiddlewareConfig struct {
	// HeaderEnabled enables X-Agency-ID header extraction (development only;
	// production deployments resolve the agency from the JWT)
	HeaderEnabled bool
	// JWTEnabled enables JWT claim extraction (requires JWT middleware to run first)
	JWTEnabled bool
	// SkipPaths are paths that don't require agency context (e.g., health check)
	SkipPaths []string
	// Required determines if agency context is mandatory. There is no
	// fallback agency; when Required is true a request without a resolvable
	// agency is rejected.
	Required bool
	// Validator is an optional validator to check the agency exists
	Validator AgencyValidator
	// Logger for middleware logging
	Logger *zap.Logger
}

// DefaultAgencyConfig returns default agency resolver configuration
func DefaultAgencyConfig() AgencyMiddlewareConfig {
	return AgencyMiddlewareConfig{
		HeaderEnabled: true,
		JWTEnabled:    true,
		SkipPaths:     []string{"/health", "/healthz", "/ready", "/metrics", "/api/v1/health"},
		Required:      true,
		Validator:     nil,
		Logger:        nil,
	}
}

// AgencyMiddleware resolves the agency for the request.
// Resolution order: JWT claim > X-Agency-ID header.
func AgencyMiddleware() gin.HandlerFunc {
	return AgencyMiddlewareWithConfig(DefaultAgencyConfig())
}

// AgencyMiddlewareWithConfig returns the agency resolver with custom configuration
func AgencyMiddlewareWithConfig(cfg AgencyMiddlewareConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.Request.URL.Path
		for _, skipPath := range cfg.SkipPaths {
			if path == skipPath || strings.HasPrefix(path, skipPath+"/") {
				c.Next()
				return
			}
		}

		var agencyID string
		var resolution string

		// Priority 1: JWT claims (if JWT middleware has already run)
		if cfg.JWTEnabled {
			if claimAgencyID, exists := c.Get(JWTAgencyIDKey); exists {
				if aid, ok := claimAgencyID.(string); ok && aid != "" {
					agencyID = aid
					resolution = "jwt"
				}
			}
		}

		// Priority 2: X-Agency-ID header
		if agencyID == "" && cfg.HeaderEnabled {
			if headerAgencyID := c.GetHeader(AgencyHeaderKey); headerAgencyID != "" {
				agencyID = headerAgencyID
				resolution = "header"
			}
		}

		if agencyID != "" {
			if _, err := uuid.Parse(agencyID); err != nil {
				respondAgencyRequired(c, "Invalid agency ID format")
				return
			}
		}

		if agencyID == "" && cfg.Required {
			respondAgencyRequired(c, "Agency identification required")
			return
		}

		// Optional: validate agency exists
		var agencyInfo *AgencyInfo
		if agencyID != "" && cfg.Validator != nil {
			var err error
			agencyInfo, err = cfg.Validator.ValidateAgency(agencyID)
			if err != nil {
				log := cfg.Logger
				if log == nil {
					log = logger.FromContext(c.Request.Context())
				}
				log.Warn("Agency validation failed",
					zap.String("agency_id", agencyID),
					zap.Error(err),
				)
				respondAgencyRequired(c, "Invalid or unknown agency")
				return
			}
		}

		if agencyID != "" {
			c.Set(AgencyIDKey, agencyID)
			if agencyInfo != nil {
				c.Set(AgencyCodeKey, agencyInfo.Code)
			}

			// Set in request context so the persistence scope and logger
			// pick it up
			ctx := c.Request.Context()
			log := logger.FromContext(ctx)
			ctx, _ = logger.WithAgencyID(ctx, log, agencyID)
			c.Request = c.Request.WithContext(ctx)

			if cfg.Logger != nil {
				cfg.Logger.Debug("Agency resolved",
					zap.String("agency_id", agencyID),
					zap.String("method", resolution),
				)
			}
		}

		c.Next()
	}
}

// respondAgencyRequired rejects the request with 401
func respondAgencyRequired(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"success": false,
		"error": gin.H{
			"code":    "AGENCY_REQUIRED",
			"message": message,
		},
	})
}

// GetAgencyID retrieves the agency ID from gin.Context
func GetAgencyID(c *gin.Context) string {
	if agencyID, exists := c.Get(AgencyIDKey); exists {
		if aid, ok := agencyID.(string); ok {
			return aid
		}
	}
	return ""
}

// GetAgencyUUID retrieves the agency ID as UUID from gin.Context
func GetAgencyUUID(c *gin.Context) (uuid.UUID, error) {
	agencyID := GetAgencyID(c)
	if agencyID == "" {
		return uuid.Nil, nil
	}
	return uuid.Parse(agencyID)
}

// GetAgencyCode retrieves the agency code from gin.Context
func GetAgencyCode(c *gin.Context) string {
	if agencyCode, exists := c.Get(AgencyCodeKey); exists {
		if code, ok := agencyCode.(string); ok {
			return code
		}
	}
	return ""
}
