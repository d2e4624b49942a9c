package auth

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"quality-hub/internal/config"
	"quality-hub/internal/models"
)

var (
	ErrInvalidToken  = errors.New("invalid token")
	ErrExpiredToken  = errors.New("token has expired")
	ErrInvalidAPIKey = errors.New("invalid api key")
)

var validRoles = map[string]bool{
	models.AuthRoleBusiness: true,
	models.AuthRoleStaff:    true,
	models.AuthRoleClient:   true,
	models.AuthRoleAppUser:  true,
}

// JWTClaims represents the claims in an access token
type JWTClaims struct {
	UserID   string `json:"user_id"`
	TenantID string `json:"tenant_id"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// Service handles token and API key operations
type Service struct {
	secret        []byte
	jwtExpiration time.Duration
}

// NewService creates a new authentication service
func NewService(cfg *config.JWTConfig) *Service {
	return &Service{
		secret:        []byte(cfg.Secret),
		jwtExpiration: cfg.Expiration,
	}
}

// GenerateToken issues an HS256 access token
func (s *Service) GenerateToken(userID, tenantID, role string) (string, error) {
	now := time.Now()
	claims := JWTClaims{
		UserID:   userID,
		TenantID: tenantID,
		Role:     role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.jwtExpiration)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return tokenString, nil
}

// ValidateToken validates an access token and returns its claims
func (s *Service) ValidateToken(tokenString string) (*JWTClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	claims, ok := token.Claims.(*JWTClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}

	if _, err := uuid.Parse(claims.UserID); err != nil {
		return nil, ErrInvalidToken
	}
	if _, err := uuid.Parse(claims.TenantID); err != nil {
		return nil, ErrInvalidToken
	}
	if !validRoles[claims.Role] {
		return nil, ErrInvalidToken
	}

	return claims, nil
}

// GenerateAPIKey returns the full key handed to the client once
// ("<prefix>.<secret>"), its prefix and the bcrypt hash to persist
func GenerateAPIKey() (key, prefix, hash string, err error) {
	prefixBytes := make([]byte, 6)
	if _, err := rand.Read(prefixBytes); err != nil {
		return "", "", "", fmt.Errorf("failed to generate api key prefix: %w", err)
	}
	secret, err := GenerateRandomToken(32)
	if err != nil {
		return "", "", "", err
	}

	prefix = "qh_" + hex.EncodeToString(prefixBytes)
	hashed, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return "", "", "", fmt.Errorf("failed to hash api key: %w", err)
	}
	return prefix + "." + secret, prefix, string(hashed), nil
}

// SplitAPIKey splits "<prefix>.<secret>"
func SplitAPIKey(key string) (prefix, secret string, err error) {
	prefix, secret, ok := strings.Cut(strings.TrimSpace(key), ".")
	if !ok || prefix == "" || secret == "" {
		return "", "", ErrInvalidAPIKey
	}
	return prefix, secret, nil
}

// VerifyAPIKeySecret compares a presented secret with the stored hash
func VerifyAPIKeySecret(hash, secret string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(secret)); err != nil {
		return ErrInvalidAPIKey
	}
	return nil
}

// GenerateRandomToken generates a URL-safe random token
func GenerateRandomToken(length int) (string, error) {
	bytes := make([]byte, length)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("failed to generate random token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(bytes), nil
}
