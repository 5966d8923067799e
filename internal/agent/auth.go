package agent

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrMissingCredential means no bearer token or agent header was sent.
	ErrMissingCredential = errors.New("missing credential")
	// ErrIdentityMismatch means the credential is valid but resolves to a
	// different agent than the one declared in the request header.
	ErrIdentityMismatch = errors.New("credential does not match declared agent")
	// ErrInvalidCredential covers expired, malformed, or badly signed tokens.
	ErrInvalidCredential = errors.New("invalid credential")
)

// Authenticator verifies agent bearer tokens. Tokens are HMAC-SHA256 JWTs
// whose subject claim names the agent. The credential and the X-Agent header
// are two correlated proofs: a token that verifies but names a different
// agent is still an authorization failure, which defends against header
// spoofing when the two are sent separately.
type Authenticator struct {
	signingKey []byte
	registry   *Registry
}

func NewAuthenticator(signingKey string, registry *Registry) *Authenticator {
	return &Authenticator{signingKey: []byte(signingKey), registry: registry}
}

// Authenticate verifies the token and checks it resolves to exactly
// declaredAgent. The agent must also be on the roster.
func (a *Authenticator) Authenticate(token, declaredAgent string) error {
	if token == "" || declaredAgent == "" {
		return ErrMissingCredential
	}
	sub, err := a.subject(token)
	if err != nil {
		return err
	}
	if sub != declaredAgent {
		return ErrIdentityMismatch
	}
	if !a.registry.Known(declaredAgent) {
		return fmt.Errorf("%w: agent %q is not on the roster", ErrIdentityMismatch, declaredAgent)
	}
	return nil
}

func (a *Authenticator) subject(token string) (string, error) {
	parsed, err := jwt.Parse(token, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return a.signingKey, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidCredential, err)
	}
	sub, err := parsed.Claims.GetSubject()
	if err != nil || sub == "" {
		return "", fmt.Errorf("%w: missing subject claim", ErrInvalidCredential)
	}
	return sub, nil
}

// MintToken issues a short-lived credential for agentName. Used by
// kernelctl and tests; production agents receive tokens out of band.
func (a *Authenticator) MintToken(agentName string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   agentName,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.signingKey)
}
