package server

import (
	"strings"
	"testing"
)

func colorUpdate(color string) *siteConfigUpdate {
	return &siteConfigUpdate{fields: []fieldUpdate{
		{Schema: FieldSchema{Key: fieldPrimaryBrandColor, Kind: FieldKindScalar}, Scalar: color},
	}}
}

func TestValidate_BrandColorContrast(t *testing.T) {
	s := newSiteConfigSchema()

	findings := validateSiteConfigUpdate(s, colorUpdate("#ffffff"), nil)
	if len(findings) != 1 || !strings.Contains(findings[0], "contrast") {
		t.Fatalf("findings=%v", findings)
	}

	if findings := validateSiteConfigUpdate(s, colorUpdate("#000000"), nil); len(findings) != 0 {
		t.Fatalf("black must pass: %v", findings)
	}
	if findings := validateSiteConfigUpdate(s, colorUpdate("#036"), nil); len(findings) != 0 {
		t.Fatalf("dark shorthand must pass: %v", findings)
	}
}

func TestValidate_BrandColorFormat(t *testing.T) {
	s := newSiteConfigSchema()

	// Parseable hex digits without the leading # fail the format rule only.
	findings := validateSiteConfigUpdate(s, colorUpdate("123abc"), nil)
	if len(findings) != 1 || !strings.Contains(findings[0], "hex digits") {
		t.Fatalf("findings=%v", findings)
	}

	findings = validateSiteConfigUpdate(s, colorUpdate("#12345"), nil)
	if len(findings) != 1 || !strings.Contains(findings[0], "hex digits") {
		t.Fatalf("five digits: %v", findings)
	}
}

func TestValidate_RulesDoNotShortCircuit(t *testing.T) {
	s := newSiteConfigSchema()

	// Light and missing the leading #: both findings, contrast first.
	findings := validateSiteConfigUpdate(s, colorUpdate("ffffff"), nil)
	if len(findings) != 2 {
		t.Fatalf("findings=%v", findings)
	}
	if !strings.Contains(findings[0], "contrast") || !strings.Contains(findings[1], "hex digits") {
		t.Fatalf("order: %v", findings)
	}
}

func TestValidate_AbsentOrEmptyColorSkips(t *testing.T) {
	s := newSiteConfigSchema()

	if findings := validateSiteConfigUpdate(s, &siteConfigUpdate{}, nil); len(findings) != 0 {
		t.Fatalf("absent: %v", findings)
	}
	if findings := validateSiteConfigUpdate(s, colorUpdate("   "), nil); len(findings) != 0 {
		t.Fatalf("blank: %v", findings)
	}
}

func TestValidate_GuardRules(t *testing.T) {
	s := newSiteConfigSchema()
	guards, err := parseSiteConfigGuards([]byte(`
version: 1
rules:
  - name: name_length
    expr: 'ctx["community_name"].size() <= 5'
    message: name too long
`))
	if err != nil {
		t.Fatal(err)
	}

	u := &siteConfigUpdate{fields: []fieldUpdate{
		{Schema: FieldSchema{Key: fieldCommunityName, Kind: FieldKindScalar}, Scalar: "A Very Long Community Name"},
	}}
	findings := validateSiteConfigUpdate(s, u, guards)
	if len(findings) != 1 || findings[0] != "name too long" {
		t.Fatalf("findings=%v", findings)
	}

	// Absent scalar fields evaluate as empty strings, so rules never miss keys.
	if findings := validateSiteConfigUpdate(s, &siteConfigUpdate{}, guards); len(findings) != 0 {
		t.Fatalf("absent: %v", findings)
	}
}

func TestParseHexColor(t *testing.T) {
	r, g, b, ok := parseHexColor("#336699")
	if !ok || r != 0x33 || g != 0x66 || b != 0x99 {
		t.Fatalf("rgb=%d,%d,%d ok=%v", r, g, b, ok)
	}
	r, g, b, ok = parseHexColor("#369")
	if !ok || r != 0x33 || g != 0x66 || b != 0x99 {
		t.Fatalf("shorthand rgb=%d,%d,%d ok=%v", r, g, b, ok)
	}
	if _, _, _, ok := parseHexColor("#12345"); ok {
		t.Fatal("expected parse failure")
	}
	if _, _, _, ok := parseHexColor("#zzzzzz"); ok {
		t.Fatal("expected parse failure")
	}
}
