package auth

import (
	"net/http"
	"strings"
)

// accessTokenParam carries a viewer token on report download links, which a
// browser opens without an Authorization header.
const accessTokenParam = "access_token"

// Middleware validates JWTs and enforces dashboard roles.
type Middleware struct {
	Secret []byte
	Policy Policy
}

// NewMiddleware constructs an auth middleware.
func NewMiddleware(secret []byte, policy Policy) *Middleware {
	return &Middleware{Secret: secret, Policy: policy}
}

// Wrap applies auth and role checks to the handler.
func (m *Middleware) Wrap(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.Policy.IsExempt(r) {
			next.ServeHTTP(w, r)
			return
		}
		required, ok := m.Policy.RequiredRole(r)
		if !ok {
			next.ServeHTTP(w, r)
			return
		}

		claims, err := ParseJWT(requestToken(r), m.Secret)
		if err != nil {
			w.Header().Set("WWW-Authenticate", `Bearer realm="home-energy"`)
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		role, _ := NormalizeRole(claims.Role)
		if !RoleAtLeast(role, required) {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), role, claims.Subject)))
	})
}

// requestToken reads the bearer token, or the access_token query parameter
// on report downloads.
func requestToken(r *http.Request) string {
	if token := bearerToken(r.Header.Get("Authorization")); token != "" {
		return token
	}
	if r.Method == http.MethodGet && isReportPath(r.URL.Path) {
		return strings.TrimSpace(r.URL.Query().Get(accessTokenParam))
	}
	return ""
}

func bearerToken(header string) string {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

func isReportPath(path string) bool {
	return strings.HasPrefix(path, "/api/v1/devices/") && strings.HasSuffix(path, "/report")
}
