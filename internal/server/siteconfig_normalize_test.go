package server

import (
	"slices"
	"testing"
)

func TestNormalize_FoldsTagList(t *testing.T) {
	u := &siteConfigUpdate{fields: []fieldUpdate{
		{Schema: FieldSchema{Key: fieldSidebarTags, Kind: FieldKindList}, List: []string{"  Ruby", " Go "}},
	}}

	normalizeSiteConfigUpdate(u)
	if !slices.Equal(u.fields[0].List, []string{"ruby", "go"}) {
		t.Fatalf("list=%v", u.fields[0].List)
	}

	// Already-normalized input is a fixed point.
	normalizeSiteConfigUpdate(u)
	if !slices.Equal(u.fields[0].List, []string{"ruby", "go"}) {
		t.Fatalf("second pass list=%v", u.fields[0].List)
	}
}

func TestNormalize_FoldsInternalWhitespaceAndCase(t *testing.T) {
	u := &siteConfigUpdate{fields: []fieldUpdate{
		{Schema: FieldSchema{Key: fieldSuggestedUsers, Kind: FieldKindList}, List: []string{"Jane Doe", "\tBEN\n"}},
	}}

	normalizeSiteConfigUpdate(u)
	if !slices.Equal(u.fields[0].List, []string{"janedoe", "ben"}) {
		t.Fatalf("list=%v", u.fields[0].List)
	}
}

func TestNormalize_LeavesOtherListsAlone(t *testing.T) {
	u := &siteConfigUpdate{fields: []fieldUpdate{
		{Schema: FieldSchema{Key: "suggested_tags", Kind: FieldKindList}, List: []string{" Mixed Case "}},
	}}

	normalizeSiteConfigUpdate(u)
	if !slices.Equal(u.fields[0].List, []string{" Mixed Case "}) {
		t.Fatalf("list=%v", u.fields[0].List)
	}
}

func TestNormalize_CoercesCreditPrices(t *testing.T) {
	u := &siteConfigUpdate{fields: []fieldUpdate{
		{Schema: FieldSchema{Key: fieldCreditPrices, Kind: FieldKindIntMap}, RawMap: map[string]string{
			"small":  "500",
			"medium": " 2000 ",
			"large":  "abc",
			"xlarge": "",
		}},
	}}

	normalizeSiteConfigUpdate(u)
	m := u.fields[0].IntMap
	if m["small"] != 500 || m["medium"] != 2000 {
		t.Fatalf("numeric: %v", m)
	}
	if m["large"] != 0 || m["xlarge"] != 0 {
		t.Fatalf("non-numeric must coerce to zero: %v", m)
	}
}

func TestCoerceCents(t *testing.T) {
	cases := []struct {
		in   string
		want int
	}{
		{"500", 500},
		{" 500 ", 500},
		{"+12", 12},
		{"-12", -12},
		{"12abc", 12},
		{"abc", 0},
		{"", 0},
		{"-", 0},
		{"1.99", 1},
	}
	for _, c := range cases {
		if got := coerceCents(c.in); got != c.want {
			t.Fatalf("coerceCents(%q)=%d want %d", c.in, got, c.want)
		}
	}
}
