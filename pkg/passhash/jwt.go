package passhash

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// CredentialConfig configures the opaque bearer credentials exchanged
// between an elasticity client (C7) and the control-plane endpoint (C8).
// This is deliberately thin: one shared secret, one subject, one
// expiry — spec.md's Non-goals exclude authentication beyond opaque
// transport credentials, so no roles or refresh flow are modeled.
type CredentialConfig struct {
	SecretKey string
	Issuer    string
	TTL       time.Duration
}

// DefaultCredentialConfig returns a short-lived, dev-mode configuration.
func DefaultCredentialConfig() *CredentialConfig {
	return &CredentialConfig{
		SecretKey: "change-me",
		Issuer:    "ensemble",
		TTL:       5 * time.Minute,
	}
}

// CredentialClaims is the JWT payload carried by a service credential.
type CredentialClaims struct {
	Subject string `json:"sub_label"`
	jwt.RegisteredClaims
}

// CredentialManager mints and validates opaque bearer credentials.
type CredentialManager struct {
	config *CredentialConfig
}

// NewCredentialManager builds a manager; a nil config falls back to DefaultCredentialConfig.
func NewCredentialManager(config *CredentialConfig) *CredentialManager {
	if config == nil {
		config = DefaultCredentialConfig()
	}
	return &CredentialManager{config: config}
}

// Generate mints a bearer credential identifying the caller by subject
// (e.g. the controller instance name), with no embedded authorization scope.
func (m *CredentialManager) Generate(subject string) (string, error) {
	now := time.Now()
	claims := &CredentialClaims{
		Subject: subject,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.config.Issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.config.TTL)),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(m.config.SecretKey))
}

// Validate checks a bearer credential's signature and expiry and returns its claims.
func (m *CredentialManager) Validate(tokenString string) (*CredentialClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &CredentialClaims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(m.config.SecretKey), nil
	})
	if err != nil {
		return nil, fmt.Errorf("invalid credential: %w", err)
	}

	claims, ok := token.Claims.(*CredentialClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid credential claims")
	}

	return claims, nil
}
