package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/resilientcore/execbridge/pkg/errs"
)

// MetadataResolveRequest is the body of POST /metadata/resolve. It accepts
// connector, connectionId and params only: a body carrying credentials or
// options is rejected as having unknown fields. Metadata is resolved with
// the stored credentials of the connection named by connectionId, for that
// connection's own connector; the connector field is required but not used
// to pick the resolver.
type MetadataResolveRequest struct {
	Connector    string            `json:"connector" validate:"required"`
	ConnectionID string            `json:"connectionId"`
	Params       map[string]string `json:"params"`
}

func (s *Server) handleMetadataResolve(w http.ResponseWriter, r *http.Request) {
	var req MetadataResolveRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	result, err := s.Facade.ResolveMetadata(r.Context(), req.ConnectionID, req.Params)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// handleCapabilities implements GET /api/registry/capabilities: runtime
// feature flags plus the full connector catalog including tier/scope
// detail, for authenticated internal callers.
func (s *Server) handleCapabilities(w http.ResponseWriter, r *http.Request) {
	entries := s.Connectors.List()
	writeJSON(w, http.StatusOK, map[string]any{
		"connectors": entries,
		"features": map[string]bool{
			"dynamicOptions":  true,
			"metadataResolve": true,
			"rbac":            true,
		},
	})
}

// handlePublicConnectorCatalog implements GET /metadata/v1/connectors: the
// same catalog with tier/scope detail stripped, safe to expose
// unauthenticated (spec.md §6.4: "public connector catalog (no tier/scope
// detail)").
func (s *Server) handlePublicConnectorCatalog(w http.ResponseWriter, r *http.Request) {
	entries := s.Connectors.List()
	out := make([]map[string]any, 0, len(entries))
	for _, e := range entries {
		out = append(out, map[string]any{
			"id":           e.ID,
			"displayName":  e.DisplayName,
			"category":     e.Category,
			"availability": e.Availability,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"connectors": out})
}

func (s *Server) handleSheetsMetadata(w http.ResponseWriter, r *http.Request) {
	spreadsheetID := chi.URLParam(r, "spreadsheetId")
	connectionID := r.URL.Query().Get("connectionId")
	sheetName := r.URL.Query().Get("sheetName")

	params := map[string]string{"spreadsheetId": spreadsheetID}
	if sheetName != "" {
		params["sheetName"] = sheetName
	}

	result, err := s.Facade.ResolveMetadata(r.Context(), connectionID, params)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// writeErr maps a *errs.Error to its declared status code, falling back to
// 500 for anything else (spec.md §9's error model: "string form preserved
// on the JSON envelope boundary").
func writeErr(w http.ResponseWriter, err error) {
	var status int
	if pe, ok := err.(*errs.Error); ok && pe.StatusCode != 0 {
		status = pe.StatusCode
	} else {
		status = http.StatusInternalServerError
	}
	writeJSON(w, status, map[string]string{"error": errs.GetErrorMessage(err)})
}
