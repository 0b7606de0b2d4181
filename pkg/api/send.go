package api

import (
	"net/http"

	"github.com/dmitrymomot/pulse/pkg/broadcast"
	"github.com/dmitrymomot/pulse/pkg/notifications"
	"github.com/dmitrymomot/pulse/pkg/stream"
)

// EventMessage is the frame event of raw channel sends without one.
const EventMessage = "message"

type frameRequest struct {
	Channel string `json:"channel"`
	ID      string `json:"id,omitempty"`
	Event   string `json:"event,omitempty"`
	Data    any    `json:"data"`
}

func (f frameRequest) frame() broadcast.Frame {
	fr := broadcast.Frame{ID: f.ID, Event: f.Event, Data: f.Data}
	if fr.ID == "" {
		fr.ID = notifications.NewID()
	}
	if fr.Event == "" {
		fr.Event = EventMessage
	}
	return fr
}

type sendResult struct {
	Success bool `json:"success"`
	Sent    int  `json:"sent"`
	Failed  int  `json:"failed"`
}

// sendToChannel writes one frame to every handle under a channel key.
// Non-admins may only address the site and user keys of their token.
func (s *Server) sendToChannel(w http.ResponseWriter, r *http.Request) {
	var req frameRequest
	if err := decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if req.Channel == "" {
		s.writeError(w, r, notifications.Required("channel"))
		return
	}
	if c := claims(r); !c.Admin {
		site, user, ok := broadcast.ParseKey(req.Channel)
		if !ok || !c.CanAccess(site, user) {
			s.writeError(w, r, forbidden("token cannot send to this channel"))
			return
		}
	}

	res := s.registry.SendToChannel(r.Context(), req.Channel, req.frame())
	writeJSON(w, http.StatusOK, sendResult{Success: true, Sent: res.Sent, Failed: res.Failed})
}

func (s *Server) broadcastAll(w http.ResponseWriter, r *http.Request) {
	var req frameRequest
	if err := decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	res := s.registry.Broadcast(r.Context(), req.frame())
	writeJSON(w, http.StatusOK, sendResult{Success: true, Sent: res.Sent, Failed: res.Failed})
}

type statsResponse struct {
	Connections stream.Stats     `json:"connections"`
	Channels    *broadcast.Stats `json:"channels,omitempty"`
}

// stats reports connections of the caller's site, or of every site and the
// registry channels for admins.
func (s *Server) stats(w http.ResponseWriter, r *http.Request) {
	c := claims(r)
	if !c.Admin {
		writeJSON(w, http.StatusOK, statsResponse{Connections: s.stream.ConnectionStats(c.SiteID)})
		return
	}
	ch := s.registry.Stats()
	writeJSON(w, http.StatusOK, statsResponse{Connections: s.stream.ConnectionStats(""), Channels: &ch})
}
