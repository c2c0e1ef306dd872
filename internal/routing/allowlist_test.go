package routing

import "testing"

func TestParseAllowlistYAML(t *testing.T) {
	t.Parallel()

	a, err := ParseAllowlistYAML([]byte(`
version: 1
entrypoints:
  server:
    routes:
      - path: /health
        methods: [GET]
        route_class: ops
`))
	if err != nil {
		t.Fatal(err)
	}
	if len(a.Entrypoints["server"].Routes) != 1 {
		t.Fatalf("routes=%v", a.Entrypoints["server"].Routes)
	}
	if a.Entrypoints["server"].Routes[0].RouteClass != "ops" {
		t.Fatalf("route=%+v", a.Entrypoints["server"].Routes[0])
	}
}

func TestParseAllowlistYAML_Errors(t *testing.T) {
	t.Parallel()

	if _, err := ParseAllowlistYAML([]byte(`version: 2`)); err == nil {
		t.Fatal("expected version error")
	}
	if _, err := ParseAllowlistYAML([]byte(`version: 1`)); err == nil {
		t.Fatal("expected missing entrypoints error")
	}
	if _, err := ParseAllowlistYAML([]byte(`{`)); err == nil {
		t.Fatal("expected yaml error")
	}
}

func TestLoadAllowlist_MissingFile(t *testing.T) {
	t.Parallel()

	if _, err := LoadAllowlist("does-not-exist.yaml"); err == nil {
		t.Fatal("expected error")
	}
}
