package server

import (
	"context"
	"strings"
)

// dispatchSiteConfigUpdate applies a validated, normalized update to the
// store, one independent typed write per field, and returns the keys that
// were actually written. Fields are independent; a kind mismatch from the
// store is a schema defect and stops the run loudly.
func dispatchSiteConfigUpdate(ctx context.Context, store SiteConfigStore, schema *siteConfigSchema, u *siteConfigUpdate, initiatorID string) ([]string, error) {
	var applied []string
	for i := range u.fields {
		f := &u.fields[i]
		wrote, err := dispatchField(ctx, store, schema, f, initiatorID)
		if err != nil {
			return applied, err
		}
		if wrote {
			applied = append(applied, f.Schema.Key)
		}
	}
	return applied, nil
}

func dispatchField(ctx context.Context, store SiteConfigStore, schema *siteConfigSchema, f *fieldUpdate, initiatorID string) (bool, error) {
	switch f.Schema.Kind {
	case FieldKindScalar:
		// Present-but-empty is a deliberate write; absence never reaches here.
		return true, store.Set(ctx, f.Schema.Key, StringSetting(strings.TrimSpace(f.Scalar)), initiatorID)

	case FieldKindList:
		filtered := dropBlankEntries(f.List)
		if len(filtered) == 0 && !f.Schema.PermitsEmpty {
			return false, nil
		}
		return true, store.Set(ctx, f.Schema.Key, ListSetting(filtered), initiatorID)

	case FieldKindIntMap:
		if len(f.IntMap) == 0 {
			return false, nil
		}
		// Full replacement, not a merge.
		return true, store.Set(ctx, f.Schema.Key, IntMapSetting(f.IntMap), initiatorID)

	case FieldKindKeyedMap:
		permitted, err := schema.PermittedSubkeys(ctx, store, f.Schema.Key)
		if err != nil {
			return false, err
		}
		filtered := filterToSubkeys(f.RawMap, permitted)
		if len(filtered) == 0 {
			return false, nil
		}
		return true, store.Set(ctx, f.Schema.Key, KeyedMapSetting(filtered), initiatorID)

	default:
		return false, errSettingKindMismatch
	}
}

func dropBlankEntries(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if strings.TrimSpace(s) == "" {
			continue
		}
		out = append(out, s)
	}
	return out
}

func filterToSubkeys(in map[string]string, permitted []string) map[string]string {
	out := make(map[string]string, len(in))
	for _, k := range permitted {
		if v, ok := in[k]; ok {
			out[k] = v
		}
	}
	return out
}
