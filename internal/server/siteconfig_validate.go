package server

import (
	"math"
	"regexp"
	"strings"
)

// Brand color checks follow WCAG: relative luminance from gamma-corrected
// sRGB channels, contrast = (L1+0.05)/(L2+0.05). The reference background is
// white, and 4.5:1 is the minimum passing ratio.
const minBrandContrastRatio = 4.5

var hexColorPattern = regexp.MustCompile(`^#([0-9a-fA-F]{3}|[0-9a-fA-F]{6})$`)

// validateSiteConfigUpdate evaluates every rule independently and returns the
// aggregated findings; a non-empty result aborts the update before any store
// mutation. It never mutates the update.
func validateSiteConfigUpdate(schema *siteConfigSchema, u *siteConfigUpdate, guards *siteConfigGuards) []string {
	var findings []string

	if f, ok := u.field(fieldPrimaryBrandColor); ok {
		color := strings.TrimSpace(f.Scalar)
		if color != "" {
			if !passesBrandContrast(color) {
				findings = append(findings, "primary brand color does not meet the minimum 4.5:1 contrast ratio against a white background")
			}
			if !hexColorPattern.MatchString(color) {
				findings = append(findings, "primary brand color must be # followed by exactly 3 or 6 hex digits")
			}
		}
	}

	if guards != nil {
		findings = append(findings, guards.evaluate(scalarGuardContext(schema, u))...)
	}
	return findings
}

// scalarGuardContext maps every scalar catalog field to its submitted value,
// or "" when the field is absent, so guard expressions can index ctx freely.
func scalarGuardContext(schema *siteConfigSchema, u *siteConfigUpdate) map[string]string {
	ctx := make(map[string]string)
	for _, f := range schema.PermittedFields() {
		if f.Kind == FieldKindScalar {
			ctx[f.Key] = ""
		}
	}
	for i := range u.fields {
		f := &u.fields[i]
		if f.Schema.Kind == FieldKindScalar {
			ctx[f.Schema.Key] = strings.TrimSpace(f.Scalar)
		}
	}
	return ctx
}

func passesBrandContrast(color string) bool {
	r, g, b, ok := parseHexColor(color)
	if !ok {
		// Not parseable as hex digits; the format rule reports it.
		return true
	}
	l := relativeLuminance(r, g, b)
	ratio := (1.0 + 0.05) / (l + 0.05)
	return ratio >= minBrandContrastRatio
}

func parseHexColor(s string) (r, g, b uint8, ok bool) {
	s = strings.TrimPrefix(s, "#")
	if len(s) == 3 {
		expanded := make([]byte, 6)
		for i := 0; i < 3; i++ {
			expanded[2*i] = s[i]
			expanded[2*i+1] = s[i]
		}
		s = string(expanded)
	}
	if len(s) != 6 {
		return 0, 0, 0, false
	}
	var out [3]uint8
	for i := 0; i < 3; i++ {
		hi, ok1 := hexNibble(s[2*i])
		lo, ok2 := hexNibble(s[2*i+1])
		if !ok1 || !ok2 {
			return 0, 0, 0, false
		}
		out[i] = hi<<4 | lo
	}
	return out[0], out[1], out[2], true
}

func hexNibble(c byte) (uint8, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	default:
		return 0, false
	}
}

func relativeLuminance(r, g, b uint8) float64 {
	return 0.2126*linearChannel(r) + 0.7152*linearChannel(g) + 0.0722*linearChannel(b)
}

func linearChannel(c uint8) float64 {
	v := float64(c) / 255.0
	if v <= 0.03928 {
		return v / 12.92
	}
	return math.Pow((v+0.055)/1.055, 2.4)
}
