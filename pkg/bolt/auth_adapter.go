package bolt

import (
	"fmt"

	"github.com/orneryd/boltcore/pkg/auth"
)

// AuthenticatorAdapter wraps auth.Authenticator to implement BoltAuthenticator.
// This allows the Bolt server to use the same user database for Bolt
// connections as any other protocol surface in the same process.
//
// The adapter translates the INIT message's auth_token fields (scheme,
// principal, credentials) to auth.Authenticator's username/password check.
//
// Example:
//
//	// Create the shared authenticator
//	authConfig := auth.DefaultAuthConfig()
//	authConfig.JWTSecret = []byte("your-secret-key")
//	authenticator, _ := auth.NewAuthenticator(authConfig)
//
//	authenticator.CreateUser("neo4j", "secure-password", []auth.Role{auth.RoleAdmin})
//
//	boltConfig := bolt.DefaultConfig()
//	boltConfig.Authenticator = bolt.NewAuthenticatorAdapter(authenticator)
//	boltConfig.RequireAuth = true
//
//	srv := bolt.NewServer(boltConfig, executor)
type AuthenticatorAdapter struct {
	auth           *auth.Authenticator
	allowAnonymous bool
}

// NewAuthenticatorAdapter creates a new BoltAuthenticator that wraps auth.Authenticator.
// This enables the Bolt server to use the same user database and authentication
// as the HTTP server, ensuring consistent auth across all protocols.
//
// Parameters:
//   - authenticator: The shared auth.Authenticator instance
//
// Example:
//
//	authenticator, _ := auth.NewAuthenticator(auth.DefaultAuthConfig())
//	boltAuth := bolt.NewAuthenticatorAdapter(authenticator)
//
//	config := bolt.DefaultConfig()
//	config.Authenticator = boltAuth
//	config.RequireAuth = true
func NewAuthenticatorAdapter(authenticator *auth.Authenticator) *AuthenticatorAdapter {
	return &AuthenticatorAdapter{
		auth:           authenticator,
		allowAnonymous: false,
	}
}

// NewAuthenticatorAdapterWithAnonymous creates an adapter that allows anonymous connections.
// Anonymous users receive "viewer" role (read-only access).
//
// Use with caution - this allows unauthenticated connections.
func NewAuthenticatorAdapterWithAnonymous(authenticator *auth.Authenticator) *AuthenticatorAdapter {
	return &AuthenticatorAdapter{
		auth:           authenticator,
		allowAnonymous: true,
	}
}

// Authenticate validates the scheme/principal/credentials fields carried
// by an INIT message's auth_token map. This method implements the
// BoltAuthenticator interface.
//
// Supported schemes:
//   - "basic": Username/password authentication
//   - "none": Anonymous access (if enabled, grants viewer role)
func (a *AuthenticatorAdapter) Authenticate(scheme, principal, credentials string) (*BoltAuthResult, error) {
	// Handle anonymous authentication
	if scheme == "none" || scheme == "" {
		if !a.allowAnonymous {
			return nil, fmt.Errorf("anonymous authentication not allowed")
		}
		return &BoltAuthResult{
			Authenticated: true,
			Username:      "anonymous",
			Roles:         []string{"viewer"},
		}, nil
	}

	// Only "basic" scheme supported for authenticated connections
	if scheme != "basic" {
		return nil, fmt.Errorf("unsupported authentication scheme: %s (only 'basic' and 'none' supported)", scheme)
	}

	// Validate credentials using the shared authenticator
	// The Authenticate method handles:
	// - Password verification (bcrypt)
	// - Account lockout (after failed attempts)
	// - Account disabled status
	// - Audit logging
	_, user, err := a.auth.Authenticate(principal, credentials, "bolt", "Bolt/1.0")
	if err != nil {
		return nil, err
	}

	// Convert auth.Role to string roles
	roles := make([]string, len(user.Roles))
	for i, r := range user.Roles {
		roles[i] = string(r)
	}

	return &BoltAuthResult{
		Authenticated: true,
		Username:      user.Username,
		Roles:         roles,
	}, nil
}

// SetAllowAnonymous enables or disables anonymous authentication.
func (a *AuthenticatorAdapter) SetAllowAnonymous(allow bool) {
	a.allowAnonymous = allow
}
