package middleware

import (
	"context"
	"crypto/sha256"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"golang.org/x/crypto/bcrypt"
)

// Capabilities checked by route handlers.
const (
	CapGetCalendarRecords    = "getCalendarRecords"
	CapManageCalendarRecords = "manageCalendarRecords"
	CapViewPerformance       = "viewPerformance"
)

// Roles assignable to API keys.
const (
	RoleViewer = "viewer"
	RoleEditor = "editor"
	RoleAdmin  = "admin"
)

// roleCapabilities maps each role to the capabilities it grants.
var roleCapabilities = map[string][]string{
	RoleViewer: {CapGetCalendarRecords},
	RoleEditor: {CapGetCalendarRecords, CapManageCalendarRecords},
	RoleAdmin:  {CapGetCalendarRecords, CapManageCalendarRecords, CapViewPerformance},
}

// ValidRole reports whether role is one of the known roles.
func ValidRole(role string) bool {
	_, ok := roleCapabilities[role]
	return ok
}

// Can reports whether role grants capability.
func Can(role, capability string) bool {
	for _, c := range roleCapabilities[role] {
		if c == capability {
			return true
		}
	}
	return false
}

// APIKey is a configured bearer credential. TokenHash is a bcrypt hash of the token.
type APIKey struct {
	Name      string
	Role      string
	TokenHash string
}

// Principal is the authenticated caller.
type Principal struct {
	Name string
	Role string
}

// contextKey is an unexported type for context keys in this package.
type contextKey string

const principalContextKey contextKey = "principal"

// Authorizer verifies bearer tokens against configured API keys.
type Authorizer struct {
	keys []APIKey

	mu       sync.RWMutex
	verified map[[sha256.Size]byte]Principal
}

// NewAuthorizer creates an authorizer over keys.
// PRE: every key's Role satisfies ValidRole
// POST: tokens are checked with bcrypt once, then remembered by digest
func NewAuthorizer(keys []APIKey) *Authorizer {
	return &Authorizer{
		keys:     keys,
		verified: make(map[[sha256.Size]byte]Principal),
	}
}

// Authenticate resolves a bearer token to its principal.
// PRE: none
// POST: Returns false for empty or unknown tokens
func (a *Authorizer) Authenticate(token string) (Principal, bool) {
	if token == "" {
		return Principal{}, false
	}
	digest := sha256.Sum256([]byte(token))

	a.mu.RLock()
	p, ok := a.verified[digest]
	a.mu.RUnlock()
	if ok {
		return p, true
	}

	for _, k := range a.keys {
		if bcrypt.CompareHashAndPassword([]byte(k.TokenHash), []byte(token)) == nil {
			p = Principal{Name: k.Name, Role: k.Role}
			a.mu.Lock()
			a.verified[digest] = p
			a.mu.Unlock()
			return p, true
		}
	}
	return Principal{}, false
}

// Require returns middleware that admits only callers holding capability.
// Missing or unknown credentials get 401; a known caller lacking the capability gets 403.
func (a *Authorizer) Require(capability string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := a.Authenticate(bearerToken(r))
			if !ok {
				w.Header().Set("WWW-Authenticate", `Bearer realm="calendar"`)
				writeError(w, http.StatusUnauthorized, "Please authenticate")
				return
			}
			if !Can(p.Role, capability) {
				slog.Warn("forbidden", "principal", p.Name, "role", p.Role, "capability", capability)
				writeError(w, http.StatusForbidden, "Forbidden")
				return
			}
			next.ServeHTTP(w, r.WithContext(ContextWithPrincipal(r.Context(), p)))
		})
	}
}

// PrincipalFromContext extracts the caller from the request context.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalContextKey).(Principal)
	return p, ok
}

// ContextWithPrincipal returns a context with the given principal set.
func ContextWithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalContextKey, p)
}

// bearerToken returns the token from "Authorization: Bearer <token>", or "".
func bearerToken(r *http.Request) string {
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// HashToken returns the bcrypt hash to store for a new API token.
func HashToken(token string, cost int) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(token), cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
