package httpapi

import (
	"net/http"
	"strings"

	"reporta.org/internal/users"
)

// identityHeader is the trusted claim set by the app. The gateway in front of
// the service is expected to control it; the API takes it at face value.
const identityHeader = "X-User-Email"

// IdentityProvider extracts the caller's claimed identity from a request.
// Returning an empty string means no claim; the claim is resolved against
// stored accounts afterwards. The lifecycle engine never sees this layer, so
// stronger schemes can be swapped in without touching it.
type IdentityProvider interface {
	Claim(r *http.Request) string
}

// HeaderIdentity reads the trusted identity header.
type HeaderIdentity struct{}

func (HeaderIdentity) Claim(r *http.Request) string {
	return r.Header.Get(identityHeader)
}

// BearerIdentity accepts the JWT minted at login.
type BearerIdentity struct{}

func (BearerIdentity) Claim(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if !strings.HasPrefix(auth, "Bearer ") {
		return ""
	}
	token := strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
	claims, err := users.ParseAndValidate(token)
	if err != nil {
		return ""
	}
	return claims.Email
}

// chainIdentity returns the first non-empty claim.
type chainIdentity []IdentityProvider

func (c chainIdentity) Claim(r *http.Request) string {
	for _, p := range c {
		if claim := p.Claim(r); claim != "" {
			return claim
		}
	}
	return ""
}

// identityClaim extracts the caller's claimed email. The bearer token wins
// over the plain header so logged-in app sessions keep working behind
// proxies that strip custom headers.
func (a *API) identityClaim(r *http.Request) string {
	return a.identity.Claim(r)
}

// currentUser resolves the request's identity claim to a stored account.
func (a *API) currentUser(r *http.Request) (users.User, error) {
	return a.users.Resolve(r.Context(), a.identityClaim(r))
}
