package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dmitrymomot/pulse/pkg/clientip"
	"github.com/dmitrymomot/pulse/pkg/ledger"
	"github.com/dmitrymomot/pulse/pkg/notifications"
	"github.com/dmitrymomot/pulse/pkg/router"
	"github.com/dmitrymomot/pulse/pkg/stream"
)

// sendNotification queues a notification for the streams of a site.
// Non-admins are pinned to their own site and need a site-wide token.
func (s *Server) sendNotification(w http.ResponseWriter, r *http.Request) {
	var p stream.SendParams
	if err := decode(w, r, &p); err != nil {
		s.writeError(w, r, err)
		return
	}
	c := claims(r)
	if p.SiteID == "" {
		p.SiteID = c.SiteID
	}
	if !c.CanAccess(p.SiteID, "") {
		s.writeError(w, r, forbidden("token cannot send to this site"))
		return
	}

	n, err := s.stream.SendNotification(r.Context(), p)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "notification": n})
}

func (s *Server) route(w http.ResponseWriter, r *http.Request) {
	if s.router == nil {
		s.writeError(w, r, notFound("route", r.URL.Path))
		return
	}
	var req router.Request
	if err := decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if req.ID == "" {
		req.ID = notifications.NewID()
	}
	res, err := s.router.Route(r.Context(), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) notificationStats(w http.ResponseWriter, r *http.Request) {
	if s.ledger == nil {
		s.writeError(w, r, notFound("route", r.URL.Path))
		return
	}
	st, err := s.ledger.Stats(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// ownRecord loads a delivery record and checks the caller may touch it.
// Stream records carry the site and user in their metadata; records
// without a site are admin-only.
func (s *Server) ownRecord(r *http.Request, notificationID, connectionID string) (ledger.Record, error) {
	if s.ledger == nil {
		return ledger.Record{}, notFound("route", r.URL.Path)
	}
	rec, err := s.ledger.Get(r.Context(), notificationID, connectionID)
	if err != nil {
		return ledger.Record{}, err
	}
	c := claims(r)
	if c.Admin {
		return rec, nil
	}
	site, _ := rec.Metadata["siteId"].(string)
	user, _ := rec.Metadata["userId"].(string)
	if site == "" || !c.CanAccess(site, user) {
		return ledger.Record{}, forbidden("token cannot access this delivery")
	}
	return rec, nil
}

type statusRequest struct {
	Status   notifications.DeliveryStatus `json:"status"`
	Metadata map[string]any               `json:"metadata,omitempty"`
}

func (s *Server) updateStatus(w http.ResponseWriter, r *http.Request) {
	nid, cid := chi.URLParam(r, "id"), chi.URLParam(r, "connectionId")
	var req statusRequest
	if err := decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if req.Status == "" {
		s.writeError(w, r, notifications.Required("status"))
		return
	}
	if !req.Status.Valid() {
		s.writeError(w, r, notifications.ValidationError{Field: "status", Reason: "unknown status"})
		return
	}
	if _, err := s.ownRecord(r, nid, cid); err != nil {
		s.writeError(w, r, err)
		return
	}

	rec, err := s.ledger.UpdateStatus(r.Context(), nid, cid, req.Status, req.Metadata)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

type interactionRequest struct {
	ConnectionID string                 `json:"connectionId"`
	Type         ledger.InteractionType `json:"type"`
	Metadata     map[string]any         `json:"metadata,omitempty"`
}

func (s *Server) trackInteraction(w http.ResponseWriter, r *http.Request) {
	nid := chi.URLParam(r, "id")
	var req interactionRequest
	if err := decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	switch req.Type {
	case ledger.InteractionView, ledger.InteractionClick, ledger.InteractionDismiss:
	case "":
		s.writeError(w, r, notifications.Required("type"))
		return
	default:
		s.writeError(w, r, notifications.ValidationError{Field: "type", Reason: "must be one of view, click, dismiss"})
		return
	}
	if req.ConnectionID == "" {
		s.writeError(w, r, notifications.Required("connectionId"))
		return
	}
	if _, err := s.ownRecord(r, nid, req.ConnectionID); err != nil {
		s.writeError(w, r, err)
		return
	}

	meta := make(map[string]any, len(req.Metadata)+2)
	for k, v := range req.Metadata {
		meta[k] = v
	}
	if ip := clientip.FromContext(r.Context()); ip != "" {
		meta["ip"] = ip
	}
	if ua := r.UserAgent(); ua != "" {
		meta["userAgent"] = ua
	}

	i, err := s.ledger.TrackInteraction(r.Context(), nid, req.ConnectionID, req.Type, meta)
	var terr notifications.InvalidTransitionError
	switch {
	case err == nil:
	case errors.As(err, &terr) && i.ID != "":
		// stored, but the record could not move to clicked
		writeJSON(w, http.StatusOK, map[string]any{"interaction": i, "warning": err.Error()})
		return
	default:
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"interaction": i})
}
