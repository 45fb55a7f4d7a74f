package jwtinfra

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/go-notification-service/internal/config"
	"github.com/golang-jwt/jwt/v5"
)

// ErrSigningDisabled is returned by Sign when no private key was configured.
var ErrSigningDisabled = errors.New("jwt signing key not configured")

// Claims holds the JWT payload fields.
type Claims struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// Provider signs and verifies RS256 JWTs.
type Provider struct {
	privateKey *rsa.PrivateKey // nil when the service only verifies
	publicKey  *rsa.PublicKey
	expiry     time.Duration
	now        func() time.Time
}

// NewProvider loads the key pair. The public key is required; a missing
// private key leaves the provider in verify-only mode.
func NewProvider(cfg *config.Config) (*Provider, error) {
	pubBytes, err := os.ReadFile(cfg.JWTPublicKeyPath)
	if err != nil {
		return nil, fmt.Errorf("read public key: %w", err)
	}
	pubKey, err := jwt.ParseRSAPublicKeyFromPEM(pubBytes)
	if err != nil {
		return nil, fmt.Errorf("parse public key: %w", err)
	}

	p := &Provider{publicKey: pubKey, expiry: cfg.JWTExpiry, now: time.Now}

	privBytes, err := os.ReadFile(cfg.JWTPrivateKeyPath)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return p, nil
	case err != nil:
		return nil, fmt.Errorf("read private key: %w", err)
	}
	privKey, err := jwt.ParseRSAPrivateKeyFromPEM(privBytes)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	p.privateKey = privKey
	return p, nil
}

// CanSign reports whether a private key was loaded.
func (p *Provider) CanSign() bool { return p.privateKey != nil }

func (p *Provider) Sign(userID, role string) (string, error) {
	if p.privateKey == nil {
		return "", ErrSigningDisabled
	}
	now := p.now()
	claims := Claims{
		UserID: userID,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(now.Add(p.expiry)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	return token.SignedString(p.privateKey)
}

func (p *Provider) Verify(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return p.publicKey, nil
	}, jwt.WithTimeFunc(p.now))
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token claims")
	}
	if claims.UserID == "" {
		claims.UserID = claims.Subject
	}
	return claims, nil
}

// ServiceToken returns a TokenSource-compatible func that signs a fresh token
// for outbound service calls, reusing it until it is close to expiry.
func (p *Provider) ServiceToken(serviceID string) func() (string, error) {
	var (
		mu     sync.Mutex
		cached string
		until  time.Time
	)
	return func() (string, error) {
		mu.Lock()
		defer mu.Unlock()
		if cached != "" && p.now().Before(until) {
			return cached, nil
		}
		tok, err := p.Sign(serviceID, "SERVICE")
		if err != nil {
			return "", err
		}
		cached, until = tok, p.now().Add(p.expiry/2)
		return cached, nil
	}
}
