package services

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/dgrijalva/jwt-go"
	"golang.org/x/crypto/bcrypt"
)

// ErrAdminLoginDisabled is returned when no admin credentials are configured.
var ErrAdminLoginDisabled = errors.New("admin login is disabled")

// AuthService authenticates the administrator who grants free unlocks.
type AuthService struct {
	adminUsername     string
	adminPasswordHash []byte
	jwtSecret         []byte
	tokenDurat        time.Duration // Duration for which JWT is valid
}

// NewAuthService creates a new AuthService. adminPasswordHash is a bcrypt hash.
func NewAuthService(adminUsername, adminPasswordHash, jwtSecret string) *AuthService {
	return &AuthService{
		adminUsername:     adminUsername,
		adminPasswordHash: []byte(adminPasswordHash),
		jwtSecret:         []byte(jwtSecret),
		tokenDurat:        24 * time.Hour,
	}
}

// LoginAdmin checks the admin credentials and returns a signed JWT.
func (s *AuthService) LoginAdmin(username, password string) (string, error) {
	if s.adminUsername == "" || len(s.adminPasswordHash) == 0 || len(s.jwtSecret) == 0 {
		return "", ErrAdminLoginDisabled
	}

	if subtle.ConstantTimeCompare([]byte(username), []byte(s.adminUsername)) != 1 {
		return "", fmt.Errorf("invalid credentials")
	}
	if err := bcrypt.CompareHashAndPassword(s.adminPasswordHash, []byte(password)); err != nil {
		return "", fmt.Errorf("invalid credentials")
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  username,
		"role": "admin",
		"exp":  time.Now().Add(s.tokenDurat).Unix(),
		"iat":  time.Now().Unix(),
	})

	tokenString, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	return tokenString, nil
}

// ValidateToken parses and validates a JWT token, returning the claims if valid.
func (s *AuthService) ValidateToken(tokenString string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.jwtSecret, nil
	})
	if err != nil {
		log.Printf("Token validation error: %v", err)
		return nil, fmt.Errorf("invalid token: %w", err)
	}

	if claims, ok := token.Claims.(jwt.MapClaims); ok && token.Valid {
		if claims["role"] != "admin" {
			return nil, fmt.Errorf("invalid token: missing admin role")
		}
		return claims, nil
	}

	return nil, fmt.Errorf("invalid token")
}
