package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// DynamicOptionsRequest is the body of POST
// /schemas/:app/:operation/options/:parameter (spec.md §6.4): "body
// {connectionId, dependencies?, search?, cursor?, limit?, forceRefresh?}".
type DynamicOptionsRequest struct {
	ConnectionID string         `json:"connectionId" validate:"required"`
	Dependencies map[string]any `json:"dependencies"`
	Search       string         `json:"search"`
	Cursor       string         `json:"cursor"`
	Limit        int            `json:"limit"`
	ForceRefresh bool           `json:"forceRefresh"`
	CacheTTLMs   int64          `json:"cacheTtlMs"`
}

func (s *Server) handleDynamicOptions(w http.ResponseWriter, r *http.Request) {
	app := chi.URLParam(r, "app")
	operation := chi.URLParam(r, "operation")
	parameter := chi.URLParam(r, "parameter")

	var req DynamicOptionsRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	reqCtx := make(map[string]any, 4)
	if len(req.Dependencies) > 0 {
		reqCtx["dependencies"] = req.Dependencies
	}
	if req.Search != "" {
		reqCtx["search"] = req.Search
	}
	if req.Cursor != "" {
		reqCtx["cursor"] = req.Cursor
	}
	if req.Limit > 0 {
		reqCtx["limit"] = req.Limit
	}

	result, err := s.Facade.GetDynamicOptions(r.Context(), req.ConnectionID, app, operation, parameter, reqCtx, req.CacheTTLMs, req.ForceRefresh)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
