package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"cratelink/internal/core"
	"cratelink/internal/db"
	"cratelink/internal/export"
)

type errorBody struct {
	Error      string   `json:"error"`
	Violations []string `json:"violations,omitempty"`
}

type enrichRequest struct {
	PlaylistURL string `json:"playlistUrl"`
	AccessToken string `json:"accessToken"`
}

type preferencesRequest struct {
	EmailNotifications bool     `json:"emailNotifications"`
	AutoExport         bool     `json:"autoExport"`
	PreferredVendors   []string `json:"preferredVendors"`
}

// selectionView is the saved purchase selection as the API exposes it,
// decoded from the activity event it is stored in.
type selectionView struct {
	TrackIDs      []string          `json:"trackIds"`
	TotalCost     float64           `json:"totalCost"`
	PurchaseLinks map[string]string `json:"purchaseLinks"`
	Status        string            `json:"status"`
	SavedAt       string            `json:"savedAt"`
}

// selectionViewFrom decodes a selection activity's metadata. Returns nil for
// a nil activity, so absent selections serialize as null.
func selectionViewFrom(activity *db.Activity) *selectionView {
	if activity == nil {
		return nil
	}

	view := &selectionView{
		TrackIDs:      []string{},
		PurchaseLinks: map[string]string{},
	}

	if raw, ok := activity.Metadata["trackIds"].([]any); ok {
		for _, v := range raw {
			if id, ok := v.(string); ok && id != "" {
				view.TrackIDs = append(view.TrackIDs, id)
			}
		}
	}
	if cost, ok := activity.Metadata["totalCost"].(float64); ok {
		view.TotalCost = cost
	}
	if links, ok := activity.Metadata["purchaseLinks"].(map[string]any); ok {
		for vendor, link := range links {
			if url, ok := link.(string); ok {
				view.PurchaseLinks[vendor] = url
			}
		}
	}
	if status, ok := activity.Metadata["status"].(string); ok {
		view.Status = status
	}
	if savedAt, ok := activity.Metadata["savedAt"].(string); ok {
		view.SavedAt = savedAt
	}

	return view
}

// handleEnrichPlaylist fetches a playlist with the caller's Spotify token and
// returns it enriched with vendor offers, without persisting anything.
func (s *Server) handleEnrichPlaylist(w http.ResponseWriter, r *http.Request) {
	var req enrichRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	if req.PlaylistURL == "" {
		s.writeJSON(w, http.StatusBadRequest, errorBody{Error: "playlistUrl is required"})
		return
	}
	if req.AccessToken == "" {
		s.writeJSON(w, http.StatusUnauthorized, errorBody{Error: "accessToken is required"})
		return
	}

	payload, err := s.enricher.Enrich(r.Context(), req.AccessToken, req.PlaylistURL)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, payload)
}

func (s *Server) handleListImports(w http.ResponseWriter, r *http.Request) {
	principal := principalFrom(r.Context())

	imports, err := s.stores.Imports.List(r.Context(), principal.UserID)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{"imports": imports})
}

func (s *Server) handleCreateImport(w http.ResponseWriter, r *http.Request) {
	principal := principalFrom(r.Context())

	var payload core.PlaylistPayload
	if !s.decodeJSON(w, r, &payload) {
		return
	}

	importID, err := s.stores.Imports.Create(r.Context(), principal, &payload)
	if err != nil {
		s.metrics.RecordImport("failed")
		s.writeError(w, err)
		return
	}
	s.metrics.RecordImport("created")

	if err := s.stores.Activities.Log(r.Context(), importID, core.EventImportStarted, nil,
		map[string]any{"trackCount": payload.TrackCount, "source": "SPOTIFY"}); err != nil {
		s.logger.Warn("Failed to record import activity",
			zap.String("importID", importID),
			zap.Error(err))
	}

	s.logger.Info("Playlist import persisted",
		zap.String("importID", importID),
		zap.String("userID", principal.UserID),
		zap.Int("trackCount", payload.TrackCount))

	s.writeJSON(w, http.StatusCreated, map[string]string{"id": importID})
}

func (s *Server) handleGetImport(w http.ResponseWriter, r *http.Request) {
	principal := principalFrom(r.Context())
	importID := chi.URLParam(r, "importID")

	record, err := s.stores.Imports.Get(r.Context(), principal.UserID, importID)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, record)
}

func (s *Server) handleGetSelection(w http.ResponseWriter, r *http.Request) {
	principal := principalFrom(r.Context())
	importID := chi.URLParam(r, "importID")

	activity, err := s.stores.Activities.LatestSelection(r.Context(), principal.UserID, importID)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{"selection": selectionViewFrom(activity)})
}

func (s *Server) handleSaveSelection(w http.ResponseWriter, r *http.Request) {
	principal := principalFrom(r.Context())
	importID := chi.URLParam(r, "importID")

	var selection core.SelectionPayload
	if !s.decodeJSON(w, r, &selection) {
		return
	}

	if err := s.stores.Activities.SaveSelection(r.Context(), principal.UserID, importID, &selection); err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]string{"status": selection.Status})
}

// handleExportImport renders the import's purchase list for download. The
// track subset comes from the tracks query parameter when given, otherwise
// from the latest saved selection, otherwise every track is included.
func (s *Server) handleExportImport(w http.ResponseWriter, r *http.Request) {
	principal := principalFrom(r.Context())
	importID := chi.URLParam(r, "importID")

	format := r.URL.Query().Get("format")
	if format == "" {
		format = export.FormatCSV
	}
	contentType := export.ContentType(format)
	if contentType == "" {
		s.writeJSON(w, http.StatusBadRequest, errorBody{Error: fmt.Sprintf("unsupported export format %q", format)})
		return
	}

	record, err := s.stores.Imports.Get(r.Context(), principal.UserID, importID)
	if err != nil {
		s.writeError(w, err)
		return
	}

	trackIDs := splitParam(r.URL.Query().Get("tracks"))
	if len(trackIDs) == 0 {
		trackIDs, err = s.selectedTrackIDs(r, principal.UserID, importID)
		if err != nil {
			s.writeError(w, err)
			return
		}
	}

	rows := export.BuildRows(record, trackIDs)

	if err := s.stores.Activities.Log(r.Context(), importID, core.EventExportTriggered, nil,
		map[string]any{"format": format, "offerCount": len(rows)}); err != nil {
		s.logger.Warn("Failed to record export activity",
			zap.String("importID", importID),
			zap.Error(err))
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=%q", fmt.Sprintf("import-%s.%s", importID, format)))

	if err := export.Render(w, format, record.Name, rows); err != nil {
		s.logger.Error("Failed to render export",
			zap.String("importID", importID),
			zap.String("format", format),
			zap.Error(err))
	}
}

func (s *Server) handleListVendors(w http.ResponseWriter, r *http.Request) {
	vendorList, err := s.stores.Vendors.List(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{"vendors": vendorList})
}

func (s *Server) handleGetPreferences(w http.ResponseWriter, r *http.Request) {
	principal := principalFrom(r.Context())

	prefs, err := s.stores.Preferences.Get(r.Context(), principal.UserID)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, prefs)
}

func (s *Server) handleUpdatePreferences(w http.ResponseWriter, r *http.Request) {
	principal := principalFrom(r.Context())

	var req preferencesRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	if req.PreferredVendors == nil {
		req.PreferredVendors = []string{}
	}

	if err := s.stores.Preferences.Update(r.Context(), principal.UserID,
		req.EmailNotifications, req.AutoExport, req.PreferredVendors); err != nil {
		s.writeError(w, err)
		return
	}

	prefs, err := s.stores.Preferences.Get(r.Context(), principal.UserID)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, prefs)
}

// selectedTrackIDs pulls the track subset out of the latest saved selection,
// or nil when no selection exists.
func (s *Server) selectedTrackIDs(r *http.Request, userID, importID string) ([]string, error) {
	activity, err := s.stores.Activities.LatestSelection(r.Context(), userID, importID)
	if err != nil {
		return nil, err
	}
	view := selectionViewFrom(activity)
	if view == nil {
		return nil, nil
	}
	return view.TrackIDs, nil
}

func splitParam(value string) []string {
	var parts []string
	for _, part := range strings.Split(value, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	return parts
}

// decodeJSON parses the request body into dst, answering 400 on malformed
// input. It reports whether decoding succeeded.
func (s *Server) decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorBody{Error: "malformed JSON body"})
		return false
	}
	return true
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Error("Failed to write response", zap.Error(err))
	}
}

// writeError maps the shared error taxonomy onto HTTP statuses.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	var validationErr *core.ValidationError
	var upstreamErr *core.UpstreamError
	var persistenceErr *core.PersistenceError

	switch {
	case errors.Is(err, core.ErrInvalidPlaylistReference):
		s.writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid playlist reference"})
	case errors.As(err, &validationErr):
		s.writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid payload", Violations: validationErr.Violations})
	case errors.Is(err, core.ErrUnauthorized):
		s.writeJSON(w, http.StatusUnauthorized, errorBody{Error: "upstream authorization failed"})
	case errors.Is(err, core.ErrNotFound):
		s.writeJSON(w, http.StatusNotFound, errorBody{Error: "not found"})
	case errors.As(err, &upstreamErr):
		status := upstreamErr.Status
		if status < 400 || status > 599 {
			status = http.StatusBadGateway
		}
		s.writeJSON(w, status, errorBody{Error: upstreamErr.Error()})
	case errors.As(err, &persistenceErr):
		s.logger.Error("Import persistence failed",
			zap.String("importID", persistenceErr.ImportID),
			zap.Error(err))
		s.writeJSON(w, http.StatusInternalServerError, errorBody{Error: "failed to persist import"})
	default:
		s.logger.Error("Request failed", zap.Error(err))
		s.writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal error"})
	}
}
