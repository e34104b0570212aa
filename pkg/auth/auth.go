package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
	ErrMissingToken = errors.New("missing bearer token")
)

type contextKey string

const clientKey contextKey = "ingest_client"

// TokenInfo describes one registered ingest token
type TokenInfo struct {
	Hash      string
	ClientID  string
	CreatedAt time.Time
	ExpiresAt time.Time // zero means no expiry
}

func (ti *TokenInfo) expired(now time.Time) bool {
	return !ti.ExpiresAt.IsZero() && now.After(ti.ExpiresAt)
}

// TokenManager holds bcrypt hashes of the tokens allowed to push events
type TokenManager struct {
	tokens map[string]*TokenInfo
	mu     sync.RWMutex
	now    func() time.Time
}

// NewTokenManager creates a new token manager
func NewTokenManager() *TokenManager {
	return &TokenManager{
		tokens: make(map[string]*TokenInfo),
		now:    time.Now,
	}
}

// IsHash reports whether s looks like a bcrypt hash rather than a raw token
func IsHash(s string) bool {
	_, err := bcrypt.Cost([]byte(s))
	return err == nil
}

// HashToken returns the bcrypt hash stored for a raw token
func HashToken(token string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(token), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash token: %w", err)
	}
	return string(hash), nil
}

// AddToken registers a token for a client. The token may be given raw or
// already bcrypt-hashed. A ttl of zero never expires.
func (tm *TokenManager) AddToken(clientID, token string, ttl time.Duration) error {
	if clientID == "" || token == "" {
		return ErrInvalidToken
	}
	hash := token
	if !IsHash(token) {
		h, err := HashToken(token)
		if err != nil {
			return err
		}
		hash = h
	}

	now := tm.now()
	info := &TokenInfo{Hash: hash, ClientID: clientID, CreatedAt: now}
	if ttl > 0 {
		info.ExpiresAt = now.Add(ttl)
	}

	tm.mu.Lock()
	tm.tokens[clientID] = info
	tm.mu.Unlock()
	return nil
}

// GenerateToken creates and registers a random token for a client
func (tm *TokenManager) GenerateToken(clientID string, ttl time.Duration) (string, error) {
	tokenBytes := make([]byte, 32)
	if _, err := rand.Read(tokenBytes); err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	token := base64.URLEncoding.EncodeToString(tokenBytes)

	if err := tm.AddToken(clientID, token, ttl); err != nil {
		return "", err
	}
	return token, nil
}

// Verify finds the client owning token
func (tm *TokenManager) Verify(token string) (string, error) {
	if token == "" {
		return "", ErrMissingToken
	}

	tm.mu.RLock()
	defer tm.mu.RUnlock()

	now := tm.now()
	expired := false
	for _, info := range tm.tokens {
		if bcrypt.CompareHashAndPassword([]byte(info.Hash), []byte(token)) != nil {
			continue
		}
		if info.expired(now) {
			expired = true
			continue
		}
		return info.ClientID, nil
	}
	if expired {
		return "", ErrTokenExpired
	}
	return "", ErrInvalidToken
}

// CleanupExpiredTokens removes expired tokens
func (tm *TokenManager) CleanupExpiredTokens() int {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	now := tm.now()
	removed := 0
	for clientID, info := range tm.tokens {
		if info.expired(now) {
			delete(tm.tokens, clientID)
			removed++
		}
	}
	return removed
}

// Len returns the number of registered tokens
func (tm *TokenManager) Len() int {
	tm.mu.RLock()
	defer tm.mu.RUnlock()
	return len(tm.tokens)
}

// BearerToken extracts the token from an Authorization header
func BearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "Bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}

// WithClient stores the authenticated client id
func WithClient(ctx context.Context, clientID string) context.Context {
	return context.WithValue(ctx, clientKey, clientID)
}

// ClientFromContext returns the authenticated client id, if any
func ClientFromContext(ctx context.Context) string {
	id, _ := ctx.Value(clientKey).(string)
	return id
}

// Middleware rejects requests without a valid bearer token. Paths listed in
// public pass through unauthenticated.
func (tm *TokenManager) Middleware(public ...string) func(http.Handler) http.Handler {
	open := make(map[string]bool, len(public))
	for _, p := range public {
		open[p] = true
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if open[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}

			clientID, err := tm.Verify(BearerToken(r))
			if err != nil {
				w.Header().Set("WWW-Authenticate", `Bearer realm="btprof"`)
				http.Error(w, `{"error":"unauthorized","message":"`+err.Error()+`"}`, http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithClient(r.Context(), clientID)))
		})
	}
}
