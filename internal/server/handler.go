package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/seedlingworks/arbor/internal/cache"
	"github.com/seedlingworks/arbor/internal/routing"
	"github.com/seedlingworks/arbor/pkg/authz"
)

func NewHandler() (http.Handler, error) {
	return NewHandlerWithOptions(HandlerOptions{})
}

type HandlerOptions struct {
	IdentityProvider identityProvider
	SiteConfig       SiteConfigStore
	Principals       principalStore
	Sessions         sessionStore
	Fragments        fragmentCache
	Guards           *siteConfigGuards
}

func NewHandlerWithOptions(opts HandlerOptions) (http.Handler, error) {
	allowlistPath := os.Getenv("ALLOWLIST_PATH")
	if allowlistPath == "" {
		p, err := defaultAllowlistPath()
		if err != nil {
			return nil, err
		}
		allowlistPath = p
	}

	a, err := routing.LoadAllowlist(allowlistPath)
	if err != nil {
		return nil, err
	}

	classifier, err := routing.NewClassifier(a, "server")
	if err != nil {
		return nil, err
	}

	schema := newSiteConfigSchema()

	siteConfig := opts.SiteConfig
	principals := opts.Principals
	sessions := opts.Sessions
	provider := opts.IdentityProvider
	fragments := opts.Fragments
	guards := opts.Guards

	var pgPool *pgxpool.Pool
	if siteConfig == nil {
		dsn := dbDSNFromEnv()
		pool, err := pgxpool.New(context.Background(), dsn)
		if err != nil {
			return nil, err
		}
		pgPool = pool
		pgStore := newSiteConfigPGStore(pgPool, schema)
		if err := pgStore.Load(context.Background()); err != nil {
			return nil, err
		}
		siteConfig = pgStore
	}

	if principals == nil {
		principals = newPrincipalStore(pgPool)
	}
	if sessions == nil {
		sessions = newSessionStore(pgPool)
	}
	if fragments == nil {
		fragments = cache.NewFragmentStore(cache.DefaultFragmentTTL)
	}
	if guards == nil {
		g, err := loadSiteConfigGuards(guardsPathFromEnv())
		if err != nil {
			return nil, err
		}
		guards = g
	}

	authorizer, err := loadAuthorizer()
	if err != nil {
		return nil, err
	}

	buster := newCacheBuster(fragments, releaseFingerprint(), nil)

	router := routing.NewRouter(classifier)

	router.Handle(routing.RouteClassUI, http.MethodGet, "/", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte("<!doctype html><title>Arbor</title><p>Arbor is running.</p>\n"))
	}))

	router.Handle(routing.RouteClassOps, http.MethodGet, "/health", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	}))
	router.Handle(routing.RouteClassOps, http.MethodGet, "/healthz", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	}))

	router.Handle(routing.RouteClassInternalAPI, http.MethodPost, "/iam/api/sessions", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Email    string `json:"email"`
			Password string `json:"password"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			routing.WriteError(w, r, routing.RouteClassInternalAPI, http.StatusUnprocessableEntity, "invalid_json", "invalid json")
			return
		}
		email := strings.TrimSpace(req.Email)
		if email == "" || strings.TrimSpace(req.Password) == "" {
			routing.WriteError(w, r, routing.RouteClassInternalAPI, http.StatusUnprocessableEntity, "invalid_form", "email and password required")
			return
		}

		p := provider
		if p == nil {
			fromEnv, err := newEnvIdentityProviderFromEnv()
			if err != nil {
				routing.WriteError(w, r, routing.RouteClassInternalAPI, http.StatusInternalServerError, "identity_provider_error", "identity provider error")
				return
			}
			p = fromEnv
		}

		ident, err := p.AuthenticatePassword(r.Context(), email, req.Password)
		if err != nil {
			if errors.Is(err, errInvalidCredentials) {
				routing.WriteError(w, r, routing.RouteClassInternalAPI, http.StatusUnprocessableEntity, "invalid_credentials", "invalid credentials")
				return
			}
			routing.WriteError(w, r, routing.RouteClassInternalAPI, http.StatusInternalServerError, "identity_error", "identity error")
			return
		}

		roleSlug := strings.TrimSpace(strings.ToLower(ident.RoleSlug))
		if roleSlug == "" {
			roleSlug = authz.RoleAdmin
		}
		if roleSlug != authz.RoleSuperAdmin && roleSlug != authz.RoleAdmin && roleSlug != authz.RoleMember {
			routing.WriteError(w, r, routing.RouteClassInternalAPI, http.StatusUnprocessableEntity, "invalid_identity_role", "invalid identity role")
			return
		}

		principal, err := principals.Upsert(r.Context(), ident.Email, ident.Username, roleSlug)
		if err != nil {
			routing.WriteError(w, r, routing.RouteClassInternalAPI, http.StatusInternalServerError, "principal_error", "principal error")
			return
		}

		expiresAt := time.Now().Add(sidTTLFromEnv())
		sid, err := sessions.Create(r.Context(), principal.ID, expiresAt, r.RemoteAddr, r.UserAgent())
		if err != nil {
			routing.WriteError(w, r, routing.RouteClassInternalAPI, http.StatusInternalServerError, "session_error", "session error")
			return
		}
		setSIDCookie(w, sid)
		w.WriteHeader(http.StatusNoContent)
	}))

	router.Handle(routing.RouteClassAuthn, http.MethodPost, "/logout", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if sid, ok := readSID(r); ok {
			_ = sessions.Revoke(r.Context(), sid)
		}
		clearSIDCookie(w)
		http.Redirect(w, r, "/", http.StatusFound)
	}))

	router.Handle(routing.RouteClassInternalAPI, http.MethodGet, "/admin/api/site-config", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handleSiteConfigAPI(w, r, siteConfig, schema, authorizer, guards, buster)
	}))
	router.Handle(routing.RouteClassInternalAPI, http.MethodPost, "/admin/api/site-config", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handleSiteConfigAPI(w, r, siteConfig, schema, authorizer, guards, buster)
	}))

	guarded := withSession(classifier, principals, sessions, withAuthz(classifier, authorizer, router))
	return guarded, nil
}

func MustNewHandler() http.Handler {
	h, err := NewHandler()
	if err != nil {
		panic(errors.New("server: failed to build handler: " + err.Error()))
	}
	return h
}

func defaultAllowlistPath() (string, error) {
	path := "config/routing/allowlist.yaml"
	for i := 0; i < 8; i++ {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
		path = filepath.Join("..", path)
	}
	return "", errors.New("server: allowlist not found")
}

func withSession(classifier *routing.Classifier, principals principalStore, sessions sessionStore, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path
		rc := routing.RouteClassUI
		if classifier != nil {
			rc = classifier.Classify(path)
		}

		if path == "/" || path == "/health" || path == "/healthz" || pathHasPrefixSegment(path, "/assets") {
			next.ServeHTTP(w, r)
			return
		}
		if path == "/iam/api/sessions" && r.Method == http.MethodPost {
			next.ServeHTTP(w, r)
			return
		}

		sid, ok := readSID(r)
		if !ok {
			denySession(w, r, rc)
			return
		}

		sess, ok, err := sessions.Lookup(r.Context(), sid)
		if err != nil {
			routing.WriteError(w, r, rc, http.StatusInternalServerError, "session_lookup_error", "session lookup error")
			return
		}
		if !ok {
			clearSIDCookie(w)
			denySession(w, r, rc)
			return
		}

		p, ok, err := principals.GetByID(r.Context(), sess.PrincipalID)
		if err != nil {
			routing.WriteError(w, r, rc, http.StatusInternalServerError, "principal_lookup_error", "principal lookup error")
			return
		}
		if !ok || p.Status != "active" {
			clearSIDCookie(w)
			denySession(w, r, rc)
			return
		}
		r = r.WithContext(withPrincipal(r.Context(), p))

		next.ServeHTTP(w, r)
	})
}

func denySession(w http.ResponseWriter, r *http.Request, rc routing.RouteClass) {
	if rc == routing.RouteClassInternalAPI {
		routing.WriteError(w, r, rc, http.StatusUnauthorized, "unauthorized", "unauthorized")
		return
	}
	http.Redirect(w, r, "/", http.StatusFound)
}

func pathHasPrefixSegment(path, prefix string) bool {
	if path == prefix {
		return true
	}
	return len(path) > len(prefix) && path[:len(prefix)+1] == prefix+"/"
}
