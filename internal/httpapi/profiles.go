package httpapi

import (
	"net/http"

	"github.com/fhuebner/plausch/internal/store"
)

// handleSearchProfiles handles GET /api/v1/profiles/search?q=. Debouncing
// lives on the websocket session; this endpoint runs the query directly.
func (s *Server) handleSearchProfiles(w http.ResponseWriter, r *http.Request) {
	userID := UserID(r.Context())
	query := r.URL.Query().Get("q")

	results, err := s.chat.SearchProfiles(r.Context(), query, userID, s.cfg.SearchLimit)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if results == nil {
		results = []store.ProfileSuggestion{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": results})
}
