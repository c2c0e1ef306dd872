package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"
)

// SettingValue is the tagged variant held per site-configuration field. Kind
// selects which payload slot is meaningful.
type SettingValue struct {
	Kind   FieldKind
	Str    string
	List   []string
	IntMap map[string]int
	StrMap map[string]string
}

func StringSetting(s string) SettingValue { return SettingValue{Kind: FieldKindScalar, Str: s} }

func ListSetting(v []string) SettingValue { return SettingValue{Kind: FieldKindList, List: v} }

func IntMapSetting(m map[string]int) SettingValue {
	return SettingValue{Kind: FieldKindIntMap, IntMap: m}
}

func KeyedMapSetting(m map[string]string) SettingValue {
	return SettingValue{Kind: FieldKindKeyedMap, StrMap: m}
}

func (v SettingValue) clone() SettingValue {
	out := v
	out.List = slices.Clone(v.List)
	out.IntMap = maps.Clone(v.IntMap)
	out.StrMap = maps.Clone(v.StrMap)
	return out
}

// plain returns the value as it appears in JSON snapshots.
func (v SettingValue) plain() any {
	switch v.Kind {
	case FieldKindScalar:
		return v.Str
	case FieldKindList:
		if v.List == nil {
			return []string{}
		}
		return v.List
	case FieldKindIntMap:
		if v.IntMap == nil {
			return map[string]int{}
		}
		return v.IntMap
	case FieldKindKeyedMap:
		if v.StrMap == nil {
			return map[string]string{}
		}
		return v.StrMap
	default:
		return nil
	}
}

// SiteConfigStore is the process-wide mutable configuration state. Reads are
// cheap (served from memory); writes are field-at-a-time with no cross-field
// transaction. A write whose value kind disagrees with the field's declared
// kind is a schema defect and fails loudly.
type SiteConfigStore interface {
	Get(ctx context.Context, key string) (SettingValue, bool, error)
	Set(ctx context.Context, key string, value SettingValue, initiatorID string) error
	Subkeys(ctx context.Context, key string) ([]string, error)
	Snapshot(ctx context.Context) (map[string]SettingValue, error)
}

var errSettingKindMismatch = errors.New("server: site config value kind mismatch")

func checkSettingKind(schema *siteConfigSchema, key string, value SettingValue) error {
	f, ok := schema.Lookup(key)
	if !ok {
		return fmt.Errorf("server: unknown site config field %q", key)
	}
	if f.Kind != value.Kind {
		return fmt.Errorf("%w: field %q declared %s, got %s", errSettingKindMismatch, key, f.Kind, value.Kind)
	}
	return nil
}

func subkeysOf(schema *siteConfigSchema, key string, value SettingValue, found bool) ([]string, error) {
	f, ok := schema.Lookup(key)
	if !ok {
		return nil, fmt.Errorf("server: unknown site config field %q", key)
	}
	if f.Kind != FieldKindKeyedMap {
		return nil, fmt.Errorf("server: field %q has no dynamic subkeys", key)
	}
	if !found {
		return nil, nil
	}
	keys := make([]string, 0, len(value.StrMap))
	for k := range value.StrMap {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys, nil
}

type siteConfigMemoryStore struct {
	schema *siteConfigSchema
	mu     sync.RWMutex
	values map[string]SettingValue
}

func newSiteConfigMemoryStore(schema *siteConfigSchema) *siteConfigMemoryStore {
	return &siteConfigMemoryStore{
		schema: schema,
		values: defaultSiteSettings(),
	}
}

// defaultSiteSettings seeds a fresh store. Keyed-mapping fields start with
// the subkey sets a new installation supports; operators grow them later.
func defaultSiteSettings() map[string]SettingValue {
	return map[string]SettingValue{
		fieldCommunityName:      StringSetting("Arbor"),
		fieldPrimaryBrandColor:  StringSetting("#0f172a"),
		fieldSidebarTags:        ListSetting([]string{"meta", "welcome"}),
		fieldSuggestedUsers:     ListSetting(nil),
		fieldSocialMediaHandles: KeyedMapSetting(map[string]string{"twitter": "", "github": "", "mastodon": ""}),
		fieldMetaKeywords:       KeyedMapSetting(map[string]string{"default": "", "article": "", "tag": ""}),
		fieldCreditPrices: IntMapSetting(map[string]int{
			"small": 500, "medium": 2000, "large": 5000, "xlarge": 10000,
		}),
	}
}

func (s *siteConfigMemoryStore) Get(_ context.Context, key string) (SettingValue, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.values[key]
	if !ok {
		return SettingValue{}, false, nil
	}
	return v.clone(), true, nil
}

func (s *siteConfigMemoryStore) Set(_ context.Context, key string, value SettingValue, _ string) error {
	if err := checkSettingKind(s.schema, key, value); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value.clone()
	return nil
}

func (s *siteConfigMemoryStore) Subkeys(_ context.Context, key string) ([]string, error) {
	s.mu.RLock()
	v, ok := s.values[key]
	s.mu.RUnlock()
	return subkeysOf(s.schema, key, v, ok)
}

func (s *siteConfigMemoryStore) Snapshot(_ context.Context) (map[string]SettingValue, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]SettingValue, len(s.values))
	for k, v := range s.values {
		out[k] = v.clone()
	}
	return out, nil
}

// siteConfigPGStore persists settings in site.settings and mirrors them in
// memory so request-path reads never touch the pool. Writes go through to
// Postgres first, then update the mirror.
type siteConfigPGStore struct {
	pool   *pgxpool.Pool
	schema *siteConfigSchema
	mu     sync.RWMutex
	values map[string]SettingValue
}

func newSiteConfigPGStore(pool *pgxpool.Pool, schema *siteConfigSchema) *siteConfigPGStore {
	return &siteConfigPGStore{
		pool:   pool,
		schema: schema,
		values: make(map[string]SettingValue),
	}
}

// Load replaces the in-memory mirror from persisted state. Called once at
// process start, before the handler accepts traffic.
func (s *siteConfigPGStore) Load(ctx context.Context) error {
	rows, err := s.pool.Query(ctx, `SELECT key, kind, value FROM site.settings;`)
	if err != nil {
		return err
	}
	defer rows.Close()

	loaded := defaultSiteSettings()
	for rows.Next() {
		var key, kind string
		var raw []byte
		if err := rows.Scan(&key, &kind, &raw); err != nil {
			return err
		}
		f, ok := s.schema.Lookup(key)
		if !ok {
			// Field removed from the catalog; persisted row is inert.
			continue
		}
		if string(f.Kind) != kind {
			return fmt.Errorf("%w: persisted field %q has kind %s, catalog declares %s", errSettingKindMismatch, key, kind, f.Kind)
		}
		v, err := decodeSettingValue(f.Kind, raw)
		if err != nil {
			return fmt.Errorf("server: decode site setting %q: %w", key, err)
		}
		loaded[key] = v
	}
	if err := rows.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	s.values = loaded
	s.mu.Unlock()
	return nil
}

func (s *siteConfigPGStore) Get(_ context.Context, key string) (SettingValue, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.values[key]
	if !ok {
		return SettingValue{}, false, nil
	}
	return v.clone(), true, nil
}

func (s *siteConfigPGStore) Set(ctx context.Context, key string, value SettingValue, initiatorID string) error {
	if err := checkSettingKind(s.schema, key, value); err != nil {
		return err
	}

	raw, err := encodeSettingValue(value)
	if err != nil {
		return fmt.Errorf("server: encode site setting %q: %w", key, err)
	}
	_, err = s.pool.Exec(ctx, `
INSERT INTO site.settings (key, kind, value, updated_by, updated_at)
VALUES ($1, $2, $3::jsonb, $4, now())
ON CONFLICT (key) DO UPDATE SET
  value = EXCLUDED.value,
  updated_by = EXCLUDED.updated_by,
  updated_at = now();
`, key, string(value.Kind), raw, initiatorID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.values[key] = value.clone()
	s.mu.Unlock()
	return nil
}

func (s *siteConfigPGStore) Subkeys(_ context.Context, key string) ([]string, error) {
	s.mu.RLock()
	v, ok := s.values[key]
	s.mu.RUnlock()
	return subkeysOf(s.schema, key, v, ok)
}

func (s *siteConfigPGStore) Snapshot(_ context.Context) (map[string]SettingValue, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]SettingValue, len(s.values))
	for k, v := range s.values {
		out[k] = v.clone()
	}
	return out, nil
}

func encodeSettingValue(v SettingValue) ([]byte, error) {
	return json.Marshal(v.plain())
}

func decodeSettingValue(kind FieldKind, raw []byte) (SettingValue, error) {
	switch kind {
	case FieldKindScalar:
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return SettingValue{}, err
		}
		return StringSetting(s), nil
	case FieldKindList:
		var l []string
		if err := json.Unmarshal(raw, &l); err != nil {
			return SettingValue{}, err
		}
		return ListSetting(l), nil
	case FieldKindIntMap:
		var m map[string]int
		if err := json.Unmarshal(raw, &m); err != nil {
			return SettingValue{}, err
		}
		return IntMapSetting(m), nil
	case FieldKindKeyedMap:
		var m map[string]string
		if err := json.Unmarshal(raw, &m); err != nil {
			return SettingValue{}, err
		}
		return KeyedMapSetting(m), nil
	default:
		return SettingValue{}, fmt.Errorf("server: unknown setting kind %q", kind)
	}
}
