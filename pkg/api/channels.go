package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/dmitrymomot/pulse/pkg/notifications"
	"github.com/dmitrymomot/pulse/pkg/router"
)

const defaultRateWindow = time.Hour

type channelInfo struct {
	Channel      notifications.Channel   `json:"channel"`
	Capabilities router.Capabilities     `json:"capabilities"`
	Fallbacks    []notifications.Channel `json:"fallbacks,omitempty"`
}

func (s *Server) listChannels(w http.ResponseWriter, r *http.Request) {
	out := []channelInfo{}
	if s.router != nil {
		for _, ch := range s.router.RegisteredChannels() {
			caps, _ := s.router.ChannelCapabilities(ch)
			out = append(out, channelInfo{Channel: ch, Capabilities: caps, Fallbacks: s.router.FallbackChannels(ch)})
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"channels": out})
}

// channelRate answers the delivery rate of a channel over ?window=, a Go
// duration defaulting to one hour.
func (s *Server) channelRate(w http.ResponseWriter, r *http.Request) {
	if s.ledger == nil {
		s.writeError(w, r, notFound("route", r.URL.Path))
		return
	}
	window := defaultRateWindow
	if raw := r.URL.Query().Get("window"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d <= 0 {
			s.writeError(w, r, notifications.ValidationError{Field: "window", Reason: "must be a positive duration such as 1h"})
			return
		}
		window = d
	}

	rate, err := s.ledger.ChannelRate(r.Context(), notifications.Channel(chi.URLParam(r, "channel")), window)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rate)
}
