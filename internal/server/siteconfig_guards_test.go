package server

import (
	"os"
	"path/filepath"
	"slices"
	"testing"
)

func TestParseGuards_CompilesAndEvaluates(t *testing.T) {
	g, err := parseSiteConfigGuards([]byte(`
version: 1
rules:
  - name: name_length
    expr: 'ctx["community_name"].size() <= 5'
    message: name too long
  - name: tagline_required_with_name
    expr: 'ctx["community_name"] == "" || ctx["community_tagline"] != ""'
`))
	if err != nil {
		t.Fatal(err)
	}

	findings := g.evaluate(map[string]string{"community_name": "toolong", "community_tagline": ""})
	want := []string{"name too long", "guard rule tagline_required_with_name rejected the update"}
	if !slices.Equal(findings, want) {
		t.Fatalf("findings=%v", findings)
	}

	if findings := g.evaluate(map[string]string{"community_name": "ok", "community_tagline": "t"}); len(findings) != 0 {
		t.Fatalf("findings=%v", findings)
	}
}

func TestParseGuards_RejectsBadInput(t *testing.T) {
	if _, err := parseSiteConfigGuards([]byte(`version: 2`)); err == nil {
		t.Fatal("expected version error")
	}
	if _, err := parseSiteConfigGuards([]byte("version: 1\nrules:\n  - name: x\n    expr: '1 +'\n")); err == nil {
		t.Fatal("expected compile error")
	}
	if _, err := parseSiteConfigGuards([]byte("version: 1\nrules:\n  - name: x\n    expr: '1 + 1'\n")); err == nil {
		t.Fatal("expected non-bool error")
	}
	if _, err := parseSiteConfigGuards([]byte("version: 1\nrules:\n  - name: ''\n    expr: 'true'\n")); err == nil {
		t.Fatal("expected missing name error")
	}
}

func TestLoadGuards_MissingFileMeansNoRules(t *testing.T) {
	g, err := loadSiteConfigGuards(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if len(g.rules) != 0 {
		t.Fatalf("rules=%d", len(g.rules))
	}
}

func TestLoadGuards_FromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "guards.yaml")
	body := "version: 1\nrules:\n  - name: ok\n    expr: 'true'\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	g, err := loadSiteConfigGuards(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(g.rules) != 1 {
		t.Fatalf("rules=%d", len(g.rules))
	}
}
