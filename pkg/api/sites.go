package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dmitrymomot/pulse/pkg/notifications"
)

type siteBroadcastRequest struct {
	Type     string                `json:"type"`
	Content  notifications.Content `json:"content"`
	Metadata map[string]any        `json:"metadata,omitempty"`
}

// broadcastSite pushes one notification to every live stream of a site,
// ignoring targeting, the site rate limit and the ledger.
func (s *Server) broadcastSite(w http.ResponseWriter, r *http.Request) {
	var req siteBroadcastRequest
	if err := decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if req.Content.Message == "" {
		s.writeError(w, r, notifications.Required("message"))
		return
	}

	res, err := s.stream.BroadcastToSite(r.Context(), chi.URLParam(r, "siteId"), notifications.Notification{
		Type:     req.Type,
		Content:  req.Content,
		Metadata: req.Metadata,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sendResult{Success: true, Sent: res.Delivered, Failed: res.Failed})
}
