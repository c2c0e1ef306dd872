package server

import (
	"encoding/json"
	"net/http"

	"github.com/seedlingworks/arbor/internal/routing"
	"github.com/seedlingworks/arbor/pkg/httperr"
	"github.com/seedlingworks/arbor/pkg/uuidv7"
)

type siteConfigUpdateRequest struct {
	SiteConfig   map[string]json.RawMessage `json:"site_config"`
	Confirmation string                     `json:"confirmation"`
}

type siteConfigUpdateResponse struct {
	Notice  string   `json:"notice"`
	Applied []string `json:"applied"`
}

type siteConfigErrorsResponse struct {
	Errors []string `json:"errors"`
}

func handleSiteConfigAPI(w http.ResponseWriter, r *http.Request, store SiteConfigStore, schema *siteConfigSchema, az authorizer, guards *siteConfigGuards, buster *cacheBuster) {
	switch r.Method {
	case http.MethodGet:
		handleSiteConfigShow(w, r, store)
	case http.MethodPost:
		handleSiteConfigUpdate(w, r, store, schema, az, guards, buster)
	default:
		routingWriteErrorInternal(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
	}
}

func handleSiteConfigShow(w http.ResponseWriter, r *http.Request, store SiteConfigStore) {
	snapshot, err := store.Snapshot(r.Context())
	if err != nil {
		routingWriteErrorInternal(w, r, http.StatusInternalServerError, "site_config_read_error", "site config read error")
		return
	}
	out := make(map[string]any, len(snapshot))
	for k, v := range snapshot {
		out[k] = v.plain()
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	_ = json.NewEncoder(w).Encode(map[string]any{"site_config": out})
}

// handleSiteConfigUpdate runs the full pipeline: authorization gate,
// normalize, validate (abort on findings, store untouched), dispatch, then
// the cache fanout exactly once.
func handleSiteConfigUpdate(w http.ResponseWriter, r *http.Request, store SiteConfigStore, schema *siteConfigSchema, az authorizer, guards *siteConfigGuards, buster *cacheBuster) {
	principal, ok := currentPrincipal(r.Context())
	if !ok {
		routingWriteErrorInternal(w, r, http.StatusInternalServerError, "principal_missing", "principal missing")
		return
	}

	var req siteConfigUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		routingWriteErrorInternal(w, r, http.StatusUnprocessableEntity, "invalid_json", "invalid json")
		return
	}

	if err := authorizeSiteConfigUpdate(az, principal, req.Confirmation); err != nil {
		if httperr.IsForbidden(err) {
			routingWriteErrorInternal(w, r, http.StatusForbidden, "not_authorized", err.Error())
			return
		}
		routingWriteErrorInternal(w, r, http.StatusInternalServerError, "authz_error", "authz error")
		return
	}

	update, err := decodeSiteConfigUpdate(schema, req.SiteConfig)
	if err != nil {
		if httperr.IsBadRequest(err) {
			routingWriteErrorInternal(w, r, http.StatusUnprocessableEntity, "invalid_form", err.Error())
			return
		}
		routingWriteErrorInternal(w, r, http.StatusInternalServerError, "internal_error", "internal error")
		return
	}

	normalizeSiteConfigUpdate(update)

	if findings := validateSiteConfigUpdate(schema, update, guards); len(findings) > 0 {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusUnprocessableEntity)
		_ = json.NewEncoder(w).Encode(siteConfigErrorsResponse{Errors: findings})
		return
	}

	changeID, err := uuidv7.NewString()
	if err != nil {
		routingWriteErrorInternal(w, r, http.StatusInternalServerError, "internal_error", "internal error")
		return
	}

	applied, err := dispatchSiteConfigUpdate(r.Context(), store, schema, update, changeID)
	if err != nil {
		routingWriteErrorInternal(w, r, http.StatusInternalServerError, "site_config_update_failed", "site config update failed")
		return
	}

	buster.BustSiteConfigViews(r.Context())

	if applied == nil {
		applied = []string{}
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	_ = json.NewEncoder(w).Encode(siteConfigUpdateResponse{
		Notice:  "site configuration was successfully updated",
		Applied: applied,
	})
}

func routingWriteErrorInternal(w http.ResponseWriter, r *http.Request, status int, code string, msg string) {
	routing.WriteError(w, r, routing.RouteClassInternalAPI, status, code, msg)
}
