package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/letably/backend/internal/infrastructure/auth"
	"github.com/letably/backend/internal/infrastructure/logger"
	"go.uber.org/zap"
)

// Keys under which the verified claims land in the gin context.
const (
	JWTClaimsKey   = "jwt_claims"
	JWTUserIDKey   = "jwt_user_id"
	JWTAgencyIDKey = "jwt_agency_id"
	JWTEmailKey    = "jwt_email"
	JWTRoleKey     = "jwt_role"
	AuthHeaderKey  = "Authorization"
	BearerPrefix   = "Bearer "
)

// JWTMiddlewareConfig configures token verification for the API.
type JWTMiddlewareConfig struct {
	// JWTService verifies signatures and standard claims.
	JWTService *auth.JWTService
	// TokenBlacklist, when set, rejects revoked tokens and invalidated
	// user sessions.
	TokenBlacklist auth.TokenBlacklist
	// SkipPaths bypass authentication on exact match.
	SkipPaths []string
	// SkipPathPrefixes bypass authentication on prefix match.
	SkipPathPrefixes []string
	// OnError replaces the default 401 response when set.
	OnError func(c *gin.Context, err error)
	Logger  *zap.Logger
}

// DefaultJWTConfig skips the health and login endpoints and rejects
// everything else without a valid token.
func DefaultJWTConfig(jwtService *auth.JWTService) JWTMiddlewareConfig {
	return JWTMiddlewareConfig{
		JWTService: jwtService,
		SkipPaths: []string{
			"/health",
			"/healthz",
			"/ready",
			"/metrics",
			"/api/v1/health",
			"/api/v1/auth/login",
		},
	}
}

// JWTAuthMiddleware verifies bearer tokens with the default configuration.
func JWTAuthMiddleware(jwtService *auth.JWTService) gin.HandlerFunc {
	return JWTAuthMiddlewareWithConfig(DefaultJWTConfig(jwtService))
}

// JWTAuthMiddlewareWithConfig verifies the Authorization bearer token and
// exposes its claims to downstream handlers.
func JWTAuthMiddlewareWithConfig(cfg JWTMiddlewareConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		if cfg.skips(c.Request.URL.Path) {
			c.Next()
			return
		}

		tokenString, err := bearerToken(c)
		if err != nil {
			rejectToken(c, cfg, err)
			return
		}

		claims, err := cfg.JWTService.ValidateToken(tokenString)
		if err != nil {
			rejectToken(c, cfg, err)
			return
		}

		if cfg.TokenBlacklist != nil && cfg.revoked(c, claims) {
			rejectToken(c, cfg, auth.ErrTokenRevoked)
			return
		}

		c.Set(JWTClaimsKey, claims)
		c.Set(JWTUserIDKey, claims.UserID)
		c.Set(JWTAgencyIDKey, claims.AgencyID)
		c.Set(JWTEmailKey, claims.Email)
		c.Set(JWTRoleKey, claims.Role)

		// Stamp the user onto the request context so SQL and event log
		// lines carry it too.
		ctx := c.Request.Context()
		ctx, _ = logger.WithUserID(ctx, logger.FromContext(ctx), claims.UserID)
		c.Request = c.Request.WithContext(ctx)

		if cfg.Logger != nil {
			cfg.Logger.Debug("Token accepted",
				zap.String("user_id", claims.UserID),
				zap.String("agency_id", claims.AgencyID),
			)
		}

		c.Next()
	}
}

func (cfg JWTMiddlewareConfig) skips(path string) bool {
	for _, skip := range cfg.SkipPaths {
		if path == skip {
			return true
		}
	}
	for _, prefix := range cfg.SkipPathPrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

// bearerToken extracts the token from the Authorization header. Any
// malformed or absent header comes back as ErrInvalidToken.
func bearerToken(c *gin.Context) (string, error) {
	header := c.GetHeader(AuthHeaderKey)
	if !strings.HasPrefix(header, BearerPrefix) {
		return "", auth.ErrInvalidToken
	}
	token := strings.TrimPrefix(header, BearerPrefix)
	if token == "" {
		return "", auth.ErrInvalidToken
	}
	return token, nil
}

// revoked checks the token against both revocation mechanisms: single
// token revocation (logout) and whole-user invalidation (forced logout,
// password change). Blacklist lookup failures fail open so an unhealthy
// Redis does not take authentication down with it.
func (cfg JWTMiddlewareConfig) revoked(c *gin.Context, claims *auth.Claims) bool {
	ctx := c.Request.Context()

	if claims.ID != "" {
		blacklisted, err := cfg.TokenBlacklist.IsBlacklisted(ctx, claims.ID)
		switch {
		case err != nil:
			if cfg.Logger != nil {
				cfg.Logger.Error("Token blacklist lookup failed",
					zap.String("jti", claims.ID),
					zap.Error(err))
			}
		case blacklisted:
			return true
		}
	}

	if claims.UserID != "" && claims.IssuedAt != nil {
		invalidated, err := cfg.TokenBlacklist.IsUserTokenInvalidated(ctx, claims.UserID, claims.IssuedAt.Time)
		switch {
		case err != nil:
			if cfg.Logger != nil {
				cfg.Logger.Error("User invalidation lookup failed",
					zap.String("user_id", claims.UserID),
					zap.Error(err))
			}
		case invalidated:
			return true
		}
	}

	return false
}

func rejectToken(c *gin.Context, cfg JWTMiddlewareConfig, err error) {
	if cfg.OnError != nil {
		cfg.OnError(c, err)
		return
	}

	if cfg.Logger != nil {
		cfg.Logger.Warn("Token rejected",
			zap.Error(err),
			zap.String("path", c.Request.URL.Path),
		)
	}

	code, message := tokenErrorCode(err)
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"success": false,
		"error": gin.H{
			"code":    code,
			"message": message,
		},
	})
}

func tokenErrorCode(err error) (string, string) {
	switch {
	case errors.Is(err, auth.ErrExpiredToken):
		return "TOKEN_EXPIRED", "Token has expired"
	case errors.Is(err, auth.ErrTokenNotYetValid):
		return "TOKEN_NOT_VALID", "Token is not yet valid"
	case errors.Is(err, auth.ErrTokenRevoked):
		return "TOKEN_REVOKED", "Token has been revoked"
	case errors.Is(err, auth.ErrMissingAgencyID):
		return "INVALID_TOKEN", "Token is not bound to an agency"
	case errors.Is(err, auth.ErrInvalidToken):
		return "INVALID_TOKEN", "Invalid token"
	default:
		return "UNAUTHORIZED", "Authentication required"
	}
}

// GetJWTClaims returns the verified claims, nil when unauthenticated.
func GetJWTClaims(c *gin.Context) *auth.Claims {
	if claims, exists := c.Get(JWTClaimsKey); exists {
		if jwtClaims, ok := claims.(*auth.Claims); ok {
			return jwtClaims
		}
	}
	return nil
}

// GetJWTUserID returns the authenticated user ID, empty when absent.
func GetJWTUserID(c *gin.Context) string {
	return c.GetString(JWTUserIDKey)
}

// GetJWTAgencyID returns the token's agency ID, empty when absent.
func GetJWTAgencyID(c *gin.Context) string {
	return c.GetString(JWTAgencyIDKey)
}

// GetJWTRole returns the token's role, empty when absent.
func GetJWTRole(c *gin.Context) string {
	return c.GetString(JWTRoleKey)
}
