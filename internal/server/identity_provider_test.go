package server

import (
	"context"
	"errors"
	"testing"
)

func TestEnvIdentityProvider_RequiresConfig(t *testing.T) {
	t.Setenv("ARBOR_ADMIN_EMAIL", "")
	t.Setenv("ARBOR_ADMIN_PASSWORD", "")
	if _, err := newEnvIdentityProviderFromEnv(); err == nil {
		t.Fatal("expected error")
	}
}

func TestEnvIdentityProvider_Defaults(t *testing.T) {
	t.Setenv("ARBOR_ADMIN_EMAIL", "Ben@Example.Invalid")
	t.Setenv("ARBOR_ADMIN_PASSWORD", "s3cret")
	t.Setenv("ARBOR_ADMIN_USERNAME", "")
	t.Setenv("ARBOR_ADMIN_ROLE", "")

	p, err := newEnvIdentityProviderFromEnv()
	if err != nil {
		t.Fatal(err)
	}

	ident, err := p.AuthenticatePassword(context.Background(), "ben@example.invalid", "s3cret")
	if err != nil {
		t.Fatal(err)
	}
	if ident.Username != "ben" || ident.RoleSlug != "super-admin" {
		t.Fatalf("ident=%+v", ident)
	}
}

func TestEnvIdentityProvider_RejectsBadCredentials(t *testing.T) {
	t.Setenv("ARBOR_ADMIN_EMAIL", "ben@example.invalid")
	t.Setenv("ARBOR_ADMIN_PASSWORD", "s3cret")

	p, err := newEnvIdentityProviderFromEnv()
	if err != nil {
		t.Fatal(err)
	}

	if _, err := p.AuthenticatePassword(context.Background(), "ben@example.invalid", "wrong"); !errors.Is(err, errInvalidCredentials) {
		t.Fatalf("err=%v", err)
	}
	if _, err := p.AuthenticatePassword(context.Background(), "other@example.invalid", "s3cret"); !errors.Is(err, errInvalidCredentials) {
		t.Fatalf("err=%v", err)
	}
}
