package routing

import "testing"

func serverAllowlist(routes ...Route) Allowlist {
	return Allowlist{
		Version:     1,
		Entrypoints: map[string]Entrypoint{"server": {Routes: routes}},
	}
}

func TestClassifier_AllowlistWins(t *testing.T) {
	t.Parallel()

	c, err := NewClassifier(serverAllowlist(
		Route{Path: "/health", Methods: []string{"GET"}, RouteClass: "ops"},
		Route{Path: "/logout", Methods: []string{"POST"}, RouteClass: "authn"},
	), "server")
	if err != nil {
		t.Fatal(err)
	}

	if got := c.Classify("/health"); got != RouteClassOps {
		t.Fatalf("got=%q", got)
	}
	if got := c.Classify("/logout"); got != RouteClassAuthn {
		t.Fatalf("got=%q", got)
	}
}

func TestClassifier_FallbackSegmentBoundary(t *testing.T) {
	t.Parallel()

	c, err := NewClassifier(serverAllowlist(
		Route{Path: "/health", Methods: []string{"GET"}, RouteClass: "ops"},
	), "server")
	if err != nil {
		t.Fatal(err)
	}

	if got := c.Classify("/admin/api/site-config"); got != RouteClassInternalAPI {
		t.Fatalf("got=%q", got)
	}
	if got := c.Classify("/admin/apix"); got == RouteClassInternalAPI {
		t.Fatalf("unexpected internal api: %q", got)
	}
	if got := c.Classify("/assets/app.css"); got != RouteClassStatic {
		t.Fatalf("got=%q", got)
	}
	if got := c.Classify("/assets2/app.css"); got == RouteClassStatic {
		t.Fatalf("unexpected static: %q", got)
	}
	if got := c.Classify("/healthz"); got != RouteClassOps {
		t.Fatalf("got=%q", got)
	}
	if got := c.Classify("/"); got != RouteClassUI {
		t.Fatalf("got=%q", got)
	}
	if got := c.Classify("admin/api"); got != RouteClassUI {
		t.Fatalf("got=%q", got)
	}
}

func TestClassifier_PatternRoutes(t *testing.T) {
	t.Parallel()

	c, err := NewClassifier(serverAllowlist(
		Route{Path: "/tags/{slug}", Methods: []string{"GET"}, RouteClass: "ui"},
	), "server")
	if err != nil {
		t.Fatal(err)
	}

	if got := c.Classify("/tags/golang"); got != RouteClassUI {
		t.Fatalf("got=%q", got)
	}
	if got := c.Classify("/tags/golang/extra"); got != RouteClassUI {
		// No pattern match; falls through to the UI default anyway.
		t.Fatalf("got=%q", got)
	}
}

func TestNewClassifier_Errors(t *testing.T) {
	t.Parallel()

	if _, err := NewClassifier(serverAllowlist(), "server"); err == nil {
		t.Fatal("expected empty routes error")
	}
	if _, err := NewClassifier(serverAllowlist(Route{}), "server"); err == nil {
		t.Fatal("expected invalid route error")
	}
	if _, err := NewClassifier(serverAllowlist(Route{Path: "/x", RouteClass: "ui"}), "other"); err == nil {
		t.Fatal("expected missing entrypoint error")
	}
}
