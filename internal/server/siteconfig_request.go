package server

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/seedlingworks/arbor/pkg/httperr"
)

// fieldUpdate carries one submitted field through the pipeline. Exactly one
// payload slot is populated for the field's kind; IntMap is filled in by the
// normalizer from RawMap for int-map fields.
type fieldUpdate struct {
	Schema FieldSchema
	Scalar string
	List   []string
	RawMap map[string]string
	IntMap map[string]int
}

// siteConfigUpdate is the filtered update request: only fields present in the
// submitted payload AND in the schema's permitted set, in catalog order.
// Unknown submitted keys are dropped silently, never errored.
type siteConfigUpdate struct {
	fields []fieldUpdate
}

func (u *siteConfigUpdate) field(key string) (*fieldUpdate, bool) {
	for i := range u.fields {
		if u.fields[i].Schema.Key == key {
			return &u.fields[i], true
		}
	}
	return nil, false
}

func decodeSiteConfigUpdate(schema *siteConfigSchema, payload map[string]json.RawMessage) (*siteConfigUpdate, error) {
	u := &siteConfigUpdate{}
	for _, f := range schema.PermittedFields() {
		raw, ok := payload[f.Key]
		if !ok {
			continue
		}
		fu, err := decodeSubmittedField(f, raw)
		if err != nil {
			return nil, err
		}
		u.fields = append(u.fields, fu)
	}
	return u, nil
}

func decodeSubmittedField(f FieldSchema, raw json.RawMessage) (fieldUpdate, error) {
	fu := fieldUpdate{Schema: f}
	switch f.Kind {
	case FieldKindScalar:
		if err := json.Unmarshal(raw, &fu.Scalar); err != nil {
			return fieldUpdate{}, httperr.NewBadRequest(fmt.Sprintf("field %s must be a string", f.Key))
		}
	case FieldKindList:
		if err := json.Unmarshal(raw, &fu.List); err != nil {
			// Comma-separated single string is the form-submission shape.
			var joined string
			if err := json.Unmarshal(raw, &joined); err != nil {
				return fieldUpdate{}, httperr.NewBadRequest(fmt.Sprintf("field %s must be a list of strings", f.Key))
			}
			fu.List = strings.Split(joined, ",")
		}
	case FieldKindIntMap, FieldKindKeyedMap:
		var m map[string]any
		if err := json.Unmarshal(raw, &m); err != nil {
			return fieldUpdate{}, httperr.NewBadRequest(fmt.Sprintf("field %s must be a mapping", f.Key))
		}
		fu.RawMap = make(map[string]string, len(m))
		for k, v := range m {
			s, ok := stringifySubmittedScalar(v)
			if !ok {
				return fieldUpdate{}, httperr.NewBadRequest(fmt.Sprintf("field %s has a non-scalar value for %q", f.Key, k))
			}
			fu.RawMap[k] = s
		}
	default:
		return fieldUpdate{}, fmt.Errorf("server: unknown field kind %q for %q", f.Kind, f.Key)
	}
	return fu, nil
}

func stringifySubmittedScalar(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		return t, true
	case float64:
		if t == float64(int64(t)) {
			return strconv.FormatInt(int64(t), 10), true
		}
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case bool:
		return strconv.FormatBool(t), true
	case nil:
		return "", true
	default:
		return "", false
	}
}
