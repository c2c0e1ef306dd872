package server

import (
	"context"
	"fmt"
)

// FieldKind is the declared shape of one site-configuration field. Every key
// has exactly one kind; the dispatcher routes writes by a fixed match over it.
type FieldKind string

const (
	FieldKindScalar   FieldKind = "scalar"
	FieldKindList     FieldKind = "list"
	FieldKindIntMap   FieldKind = "int_map"
	FieldKindKeyedMap FieldKind = "keyed_map"
)

type FieldSchema struct {
	Key  string
	Kind FieldKind
	// PermitsEmpty applies to list fields only: a submission whose entries
	// are all blank clears the stored value instead of being dropped.
	PermitsEmpty bool
}

type fieldGroup struct {
	Name   string
	Fields []FieldSchema
}

const (
	fieldCommunityName      = "community_name"
	fieldPrimaryBrandColor  = "primary_brand_color_hex"
	fieldSidebarTags        = "sidebar_tags"
	fieldSuggestedUsers     = "suggested_users"
	fieldCreditPrices       = "credit_prices_in_cents"
	fieldSocialMediaHandles = "social_media_handles"
	fieldMetaKeywords       = "meta_keywords"
)

var siteConfigGroups = []fieldGroup{
	{Name: "branding", Fields: []FieldSchema{
		{Key: fieldCommunityName, Kind: FieldKindScalar},
		{Key: "community_tagline", Kind: FieldKindScalar},
		{Key: "logo_url", Kind: FieldKindScalar},
		{Key: "favicon_url", Kind: FieldKindScalar},
		{Key: "main_social_image_url", Kind: FieldKindScalar},
		{Key: fieldPrimaryBrandColor, Kind: FieldKindScalar},
	}},
	{Name: "tags", Fields: []FieldSchema{
		{Key: fieldSidebarTags, Kind: FieldKindList},
		{Key: "suggested_tags", Kind: FieldKindList},
	}},
	{Name: "onboarding", Fields: []FieldSchema{
		{Key: "onboarding_welcome_notice", Kind: FieldKindScalar},
		{Key: "onboarding_background_image_url", Kind: FieldKindScalar},
		{Key: fieldSuggestedUsers, Kind: FieldKindList, PermitsEmpty: true},
	}},
	{Name: "rate_limits", Fields: []FieldSchema{
		{Key: "rate_limit_comment_creation", Kind: FieldKindScalar},
		{Key: "rate_limit_article_publish", Kind: FieldKindScalar},
		{Key: "rate_limit_follow_daily", Kind: FieldKindScalar},
	}},
	{Name: "integrations", Fields: []FieldSchema{
		{Key: "ga_tracking_id", Kind: FieldKindScalar},
		{Key: "stripe_publishable_key", Kind: FieldKindScalar},
		{Key: fieldSocialMediaHandles, Kind: FieldKindKeyedMap},
		{Key: fieldMetaKeywords, Kind: FieldKindKeyedMap},
	}},
	{Name: "credits", Fields: []FieldSchema{
		{Key: fieldCreditPrices, Kind: FieldKindIntMap},
	}},
}

// siteConfigSchema is the immutable catalog of permitted fields. Pure lookup,
// except PermittedSubkeys, which reads the store's current value because
// keyed-mapping subkeys are operator-extensible at runtime.
type siteConfigSchema struct {
	groups []fieldGroup
	byKey  map[string]FieldSchema
	order  []string
}

func newSiteConfigSchema() *siteConfigSchema {
	s := &siteConfigSchema{
		groups: siteConfigGroups,
		byKey:  make(map[string]FieldSchema),
	}
	for _, g := range s.groups {
		for _, f := range g.Fields {
			s.byKey[f.Key] = f
			s.order = append(s.order, f.Key)
		}
	}
	return s
}

// PermittedFields returns the union of all groups in catalog order.
func (s *siteConfigSchema) PermittedFields() []FieldSchema {
	out := make([]FieldSchema, 0, len(s.order))
	for _, key := range s.order {
		out = append(out, s.byKey[key])
	}
	return out
}

func (s *siteConfigSchema) Lookup(key string) (FieldSchema, bool) {
	f, ok := s.byKey[key]
	return f, ok
}

// PermittedSubkeys resolves, at request time, which subkeys a keyed-mapping
// field may carry: exactly the keys present in the store's current value.
func (s *siteConfigSchema) PermittedSubkeys(ctx context.Context, store SiteConfigStore, key string) ([]string, error) {
	f, ok := s.byKey[key]
	if !ok {
		return nil, fmt.Errorf("server: unknown site config field %q", key)
	}
	if f.Kind != FieldKindKeyedMap {
		return nil, fmt.Errorf("server: field %q has no dynamic subkeys", key)
	}
	return store.Subkeys(ctx, key)
}
