package services

import (
	"time"

	"shopdesk-realtime/internal/domain/user"
	shopdesk_errors "shopdesk-realtime/pkg/errors"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// AuthService verifies the access tokens the admin system issues. Nothing
// here owns sessions; an identity is whatever a valid token says.
type AuthService struct {
	jwtSecret []byte
	accessTTL time.Duration
}

func NewAuthService(secret string, accessTTL time.Duration) *AuthService {
	if accessTTL == 0 {
		accessTTL = time.Hour
	}
	return &AuthService{jwtSecret: []byte(secret), accessTTL: accessTTL}
}

type AccessClaims struct {
	UserID string `json:"sub"`
	Name   string `json:"name"`
	Avatar string `json:"avatar,omitempty"`
	Staff  bool   `json:"staff,omitempty"`
	jwt.RegisteredClaims
}

func (s *AuthService) ParseAccessToken(tokenString string) (AccessClaims, error) {
	if tokenString == "" {
		return AccessClaims{}, shopdesk_errors.ErrUnauthorized
	}

	parsed, err := jwt.ParseWithClaims(tokenString, &AccessClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, shopdesk_errors.ErrUnauthorized
		}
		return s.jwtSecret, nil
	})
	if err != nil {
		return AccessClaims{}, shopdesk_errors.ErrUnauthorized
	}

	claims, ok := parsed.Claims.(*AccessClaims)
	if !ok || !parsed.Valid {
		return AccessClaims{}, shopdesk_errors.ErrUnauthorized
	}

	return *claims, nil
}

// Authenticate resolves a bearer token into the profile it was issued for.
func (s *AuthService) Authenticate(tokenString string) (user.Profile, error) {
	claims, err := s.ParseAccessToken(tokenString)
	if err != nil {
		return user.Profile{}, err
	}
	id, err := uuid.Parse(claims.UserID)
	if err != nil {
		return user.Profile{}, shopdesk_errors.ErrUnauthorized
	}
	return user.Profile{ID: id, Name: claims.Name, Avatar: claims.Avatar, Staff: claims.Staff}, nil
}

// IssueAccessToken signs a token for p. The admin system does this in
// production; the dev token command and tests use it here.
func (s *AuthService) IssueAccessToken(p user.Profile) (string, error) {
	now := time.Now()
	claims := AccessClaims{
		UserID: p.ID.String(),
		Name:   p.Name,
		Avatar: p.Avatar,
		Staff:  p.Staff,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   p.ID.String(),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.accessTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.jwtSecret)
}
