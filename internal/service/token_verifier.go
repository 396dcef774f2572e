package service

import (
	"fmt"
	"slices"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"firmdocs/internal/config"
	"firmdocs/internal/domain"
)

const accessAudience = "access"

// Claims represents the access token claims issued by the firm's identity
// service.
type Claims struct {
	jwt.RegisteredClaims
	TenantID uuid.UUID `json:"tenant_id"`
	UserID   uuid.UUID `json:"user_id"`
	Role     string    `json:"role"`
}

// TokenVerifier validates access tokens and, for tooling and tests, issues
// them with the same key.
type TokenVerifier interface {
	ValidateToken(tokenString string) (*Claims, error)
	IssueToken(tenantID, userID uuid.UUID, role string, ttl time.Duration) (string, error)
}

type tokenVerifier struct {
	cfg config.JWTConfig
}

// NewTokenVerifier creates an HMAC TokenVerifier.
func NewTokenVerifier(cfg config.JWTConfig) TokenVerifier {
	return &tokenVerifier{cfg: cfg}
}

func (s *tokenVerifier) IssueToken(tenantID, userID uuid.UUID, role string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			Issuer:    s.cfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.New().String(),
			Audience:  jwt.ClaimStrings{accessAudience},
		},
		TenantID: tenantID,
		UserID:   userID,
		Role:     role,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.cfg.Secret))
	if err != nil {
		return "", fmt.Errorf("signing access token: %w", err)
	}
	return signed, nil
}

func (s *tokenVerifier) ValidateToken(tokenString string) (*Claims, error) {
	claims := &Claims{}
	opts := []jwt.ParserOption{jwt.WithAudience(accessAudience)}
	if s.cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.cfg.Issuer))
	}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.cfg.Secret), nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrUnauthorized, err)
	}
	if !token.Valid || claims.TenantID == uuid.Nil || claims.UserID == uuid.Nil {
		return nil, domain.ErrUnauthorized
	}
	aud, _ := claims.GetAudience()
	if !slices.Contains(aud, accessAudience) {
		return nil, domain.ErrUnauthorized
	}
	return claims, nil
}
