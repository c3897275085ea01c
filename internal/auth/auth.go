package auth

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/castellan-media/castellan/internal/httputil"
)

var ErrInvalidCredentials = errors.New("invalid credentials")

// Auth holds the bcrypt hash of the admin password and the set of issued
// session tokens. Sessions are in-memory only and expire after 24h.
type Auth struct {
	passwordHash []byte

	mu       sync.Mutex
	sessions map[string]time.Time
}

func New(adminPassword string) (*Auth, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(adminPassword), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	return &Auth{passwordHash: hash, sessions: make(map[string]time.Time)}, nil
}

// Login verifies the admin password and returns a fresh session token.
func (a *Auth) Login(password string) (string, error) {
	if bcrypt.CompareHashAndPassword(a.passwordHash, []byte(password)) != nil {
		return "", ErrInvalidCredentials
	}

	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	token := hex.EncodeToString(b)

	a.mu.Lock()
	a.sessions[token] = time.Now().Add(24 * time.Hour)
	a.mu.Unlock()
	return token, nil
}

// ValidateToken reports whether a session token is known and unexpired.
func (a *Auth) ValidateToken(token string) bool {
	if token == "" {
		return false
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	exp, ok := a.sessions[token]
	if !ok {
		return false
	}
	if time.Now().After(exp) {
		delete(a.sessions, token)
		return false
	}
	return true
}

// Middleware rejects requests without a valid Bearer token or ?token= param.
func (a *Auth) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		if token == "" {
			token = r.URL.Query().Get("token")
		}
		if !a.ValidateToken(token) {
			httputil.WriteError(w, http.StatusUnauthorized, "not authenticated")
			return
		}
		next.ServeHTTP(w, r)
	})
}
