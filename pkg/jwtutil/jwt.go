package jwtutil

import (
	"production-service/pkg/config"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	signingKey []byte
	expiration time.Duration
)

// Initialize sets up the JWT utility with configuration
func Initialize(cfg *config.JWTConfig) {
	signingKey = []byte(cfg.SigningKey)
	expiration = cfg.ExpirationTime
}

// UserClaims represents the JWT claims for user authentication
type UserClaims struct {
	UserID   uint   `json:"user_id"`
	UserName string `json:"user_name"`
	Email    string `json:"email,omitempty"`
	Role     string `json:"role,omitempty"` // operator or admin
	jwt.RegisteredClaims
}

// GenerateToken creates a signed token for the given user identity
func GenerateToken(userID uint, userName, email, role string) (string, error) {
	claims := UserClaims{
		UserID:   userID,
		UserName: userName,
		Email:    email,
		Role:     role,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(expiration)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(signingKey)
}

// ValidateToken validates and parses the JWT token
func ValidateToken(tokenString string) (*UserClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &UserClaims{}, func(token *jwt.Token) (interface{}, error) {
		return signingKey, nil
	})

	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*UserClaims); ok && token.Valid {
		return claims, nil
	}

	return nil, jwt.ErrSignatureInvalid
}
