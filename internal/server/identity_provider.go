package server

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"errors"
	"os"
	"strings"

	"github.com/seedlingworks/arbor/pkg/authz"
)

var errInvalidCredentials = errors.New("server: invalid credentials")

type Identity struct {
	Email    string
	Username string
	RoleSlug string
}

type identityProvider interface {
	AuthenticatePassword(ctx context.Context, email string, password string) (Identity, error)
}

// envIdentityProvider authenticates the single bootstrap operator configured
// through the environment. Larger installations plug in their own provider
// via HandlerOptions.
type envIdentityProvider struct {
	email        string
	username     string
	roleSlug     string
	passwordHash [32]byte
}

func newEnvIdentityProviderFromEnv() (identityProvider, error) {
	email := strings.TrimSpace(strings.ToLower(os.Getenv("ARBOR_ADMIN_EMAIL")))
	password := os.Getenv("ARBOR_ADMIN_PASSWORD")
	if email == "" || password == "" {
		return nil, errors.New("server: ARBOR_ADMIN_EMAIL and ARBOR_ADMIN_PASSWORD required")
	}

	username := strings.TrimSpace(os.Getenv("ARBOR_ADMIN_USERNAME"))
	if username == "" {
		username, _, _ = strings.Cut(email, "@")
	}
	roleSlug := strings.TrimSpace(strings.ToLower(os.Getenv("ARBOR_ADMIN_ROLE")))
	if roleSlug == "" {
		roleSlug = authz.RoleSuperAdmin
	}

	return &envIdentityProvider{
		email:        email,
		username:     username,
		roleSlug:     roleSlug,
		passwordHash: sha256.Sum256([]byte(password)),
	}, nil
}

func (p *envIdentityProvider) AuthenticatePassword(_ context.Context, email string, password string) (Identity, error) {
	sum := sha256.Sum256([]byte(password))
	emailOK := strings.TrimSpace(strings.ToLower(email)) == p.email
	passOK := subtle.ConstantTimeCompare(sum[:], p.passwordHash[:]) == 1
	if !emailOK || !passOK {
		return Identity{}, errInvalidCredentials
	}
	return Identity{Email: p.email, Username: p.username, RoleSlug: p.roleSlug}, nil
}
