package server

import (
	"context"
	"slices"
	"testing"
)

func TestSiteConfigSchema_PermittedFields(t *testing.T) {
	s := newSiteConfigSchema()

	fields := s.PermittedFields()
	if len(fields) != len(s.order) {
		t.Fatalf("fields=%d order=%d", len(fields), len(s.order))
	}
	if fields[0].Key != fieldCommunityName {
		t.Fatalf("first=%q", fields[0].Key)
	}
	if fields[len(fields)-1].Key != fieldCreditPrices {
		t.Fatalf("last=%q", fields[len(fields)-1].Key)
	}

	for _, f := range fields {
		if f.PermitsEmpty && f.Key != fieldSuggestedUsers {
			t.Fatalf("unexpected PermitsEmpty on %q", f.Key)
		}
	}
}

func TestSiteConfigSchema_Lookup(t *testing.T) {
	s := newSiteConfigSchema()

	f, ok := s.Lookup(fieldCreditPrices)
	if !ok || f.Kind != FieldKindIntMap {
		t.Fatalf("credit prices: ok=%v kind=%q", ok, f.Kind)
	}
	f, ok = s.Lookup(fieldSocialMediaHandles)
	if !ok || f.Kind != FieldKindKeyedMap {
		t.Fatalf("social handles: ok=%v kind=%q", ok, f.Kind)
	}
	if _, ok := s.Lookup("smtp_password"); ok {
		t.Fatal("expected unknown key")
	}
}

func TestSiteConfigSchema_PermittedSubkeys(t *testing.T) {
	s := newSiteConfigSchema()
	store := newSiteConfigMemoryStore(s)
	ctx := context.Background()

	keys, err := s.PermittedSubkeys(ctx, store, fieldSocialMediaHandles)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"github", "mastodon", "twitter"}
	if !slices.Equal(keys, want) {
		t.Fatalf("keys=%v", keys)
	}

	if _, err := s.PermittedSubkeys(ctx, store, fieldCommunityName); err == nil {
		t.Fatal("expected error for scalar field")
	}
	if _, err := s.PermittedSubkeys(ctx, store, "nope"); err == nil {
		t.Fatal("expected error for unknown field")
	}
}

func TestSiteConfigSchema_SubkeysGrowWithStore(t *testing.T) {
	s := newSiteConfigSchema()
	store := newSiteConfigMemoryStore(s)
	ctx := context.Background()

	err := store.Set(ctx, fieldSocialMediaHandles, KeyedMapSetting(map[string]string{
		"twitter": "@arbor", "bluesky": "@arbor.example",
	}), "op1")
	if err != nil {
		t.Fatal(err)
	}

	keys, err := s.PermittedSubkeys(ctx, store, fieldSocialMediaHandles)
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(keys, []string{"bluesky", "twitter"}) {
		t.Fatalf("keys=%v", keys)
	}
}
