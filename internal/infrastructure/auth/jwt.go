package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/letably/backend/internal/infrastructure/config"
)

// Sentinel errors the middleware maps onto wire-format error codes.
var (
	ErrInvalidToken     = errors.New("invalid token")
	ErrExpiredToken     = errors.New("token has expired")
	ErrInvalidClaims    = errors.New("invalid token claims")
	ErrTokenNotYetValid = errors.New("token is not yet valid")
	ErrTokenRevoked     = errors.New("token has been revoked")
	ErrMissingAgencyID  = errors.New("missing agency_id in claims")
	ErrMissingUserID    = errors.New("missing user_id in claims")
)

// Role names carried in token claims
const (
	RoleAdmin = "admin"
	RoleAgent = "agent"
)

// Claims represents the custom JWT claims this service understands. Tokens
// are issued by the identity provider; every token is bound to exactly one
// agency and that binding is what the request pipeline trusts.
type Claims struct {
	jwt.RegisteredClaims
	AgencyID string `json:"agency_id"`
	UserID   string `json:"user_id"`
	Email    string `json:"email,omitempty"`
	Role     string `json:"role,omitempty"`
}

// JWTService verifies bearer tokens and extracts their identity claims.
type JWTService struct {
	secret     []byte
	issuer     string
	expiration time.Duration
}

// NewJWTService builds a verifier around the shared HMAC secret.
func NewJWTService(cfg config.JWTConfig) *JWTService {
	return &JWTService{
		secret:     []byte(cfg.Secret),
		issuer:     cfg.Issuer,
		expiration: 24 * time.Hour,
	}
}

// GenerateToken signs a token for the given identity. Used by tests and the
// local development seed flow; production tokens come from the identity
// provider with the same claim shape.
func (s *JWTService) GenerateToken(agencyID, userID uuid.UUID, email, role string) (string, error) {
	now := time.Now()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			Issuer:    s.issuer,
			Subject:   userID.String(),
			Audience:  jwt.ClaimStrings{s.issuer},
			ExpiresAt: jwt.NewNumericDate(now.Add(s.expiration)),
			NotBefore: jwt.NewNumericDate(now),
			IssuedAt:  jwt.NewNumericDate(now),
		},
		AgencyID: agencyID.String(),
		UserID:   userID.String(),
		Email:    email,
		Role:     role,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// ValidateToken validates a token and returns its claims. A token without an
// agency binding is rejected outright; there is no anonymous or cross-agency
// access path.
func (s *JWTService) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return s.secret, nil
	})

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		if errors.Is(err, jwt.ErrTokenNotValidYet) {
			return nil, ErrTokenNotYetValid
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidClaims
	}

	if claims.AgencyID == "" {
		return nil, ErrMissingAgencyID
	}
	if claims.UserID == "" {
		return nil, ErrMissingUserID
	}

	return claims, nil
}

// GetAgencyUUID parses the agency binding as a UUID.
func (c *Claims) GetAgencyUUID() (uuid.UUID, error) {
	return uuid.Parse(c.AgencyID)
}

// GetUserUUID parses the user ID as a UUID.
func (c *Claims) GetUserUUID() (uuid.UUID, error) {
	return uuid.Parse(c.UserID)
}

// IsAdmin reports whether the claims carry the admin role.
func (c *Claims) IsAdmin() bool {
	return c.Role == RoleAdmin
}
