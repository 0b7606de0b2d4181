package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/dmitrymomot/pulse/pkg/broadcast"
	"github.com/dmitrymomot/pulse/pkg/logger"
	"github.com/dmitrymomot/pulse/pkg/notifications"
	"github.com/dmitrymomot/pulse/pkg/stream"
)

// EventConnected is the first frame of every stream. Its data carries the
// connection id needed for status updates and interactions.
const EventConnected = "connected"

type streamTarget struct {
	connID    string
	siteID    string
	userID    string
	sessionID string
}

func (s *Server) resolveStream(r *http.Request) (streamTarget, error) {
	q := r.URL.Query()
	site, user, err := scope(claims(r), q.Get("siteId"), q.Get("userId"))
	if err != nil {
		return streamTarget{}, err
	}
	t := streamTarget{connID: notifications.NewID(), siteID: site, userID: user, sessionID: q.Get("sessionId")}
	if t.sessionID == "" {
		t.sessionID = t.connID
	}
	return t, nil
}

func (t streamTarget) hello() broadcast.Frame {
	return broadcast.Frame{
		ID:    t.connID,
		Event: EventConnected,
		Data:  map[string]string{"connectionId": t.connID, "sessionId": t.sessionID},
	}
}

func (s *Server) streamSSE(w http.ResponseWriter, r *http.Request) {
	t, err := s.resolveStream(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	// Streams outlive any server write timeout.
	_ = http.NewResponseController(w).SetWriteDeadline(time.Time{})

	h, err := broadcast.NewSSEHandle(r.Context(), t.connID, w)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.serveStream(r.Context(), t, stream.TypeSSE, h)
}

func (s *Server) streamWebSocket(w http.ResponseWriter, r *http.Request) {
	t, err := s.resolveStream(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	h, err := s.upgrader.Upgrade(w, r, t.connID)
	if err != nil {
		// the upgrader has already replied
		s.log.LogAttrs(r.Context(), slog.LevelDebug, "websocket upgrade failed", logger.Error(err))
		return
	}
	s.serveStream(r.Context(), t, stream.TypeWebSocket, h)
}

type closingHandle interface {
	broadcast.Handle
	Close()
}

// serveStream replays the backlog, attaches h and blocks until the
// connection goes away.
func (s *Server) serveStream(ctx context.Context, t streamTarget, typ stream.ConnectionType, h closingHandle) {
	defer h.Close()

	if err := h.Send(ctx, t.hello()); err != nil {
		return
	}
	for _, n := range s.stream.Backlog(t.siteID, t.userID, t.sessionID) {
		if err := h.Send(ctx, stream.Frame(n)); err != nil {
			return
		}
	}

	_, err := s.stream.AddConnection(ctx, stream.ConnectionParams{
		ID:        t.connID,
		SiteID:    t.siteID,
		UserID:    t.userID,
		SessionID: t.sessionID,
		Type:      typ,
		Handle:    h,
	})
	if err != nil {
		s.log.LogAttrs(ctx, slog.LevelError, "failed to attach stream", logger.ConnectionID(t.connID), logger.Error(err))
		return
	}

	<-h.Done()
	_ = s.stream.RemoveConnection(context.WithoutCancel(ctx), t.connID)
}

type pollResponse struct {
	ConnectionID  string           `json:"connectionId"`
	SessionID     string           `json:"sessionId"`
	Notifications []stream.Message `json:"notifications"`
}

// poll opens a polling connection when no connectionId is given and
// otherwise drains the frames buffered for it since the previous poll.
func (s *Server) poll(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("connectionId")
	if id == "" {
		s.openPoll(w, r)
		return
	}

	c, ok := s.stream.Connection(id)
	if !ok {
		s.writeError(w, r, notFound("connection", id))
		return
	}
	if !claims(r).CanAccess(c.SiteID, c.UserID) {
		s.writeError(w, r, forbidden("token cannot access this connection"))
		return
	}
	h, _ := s.stream.Handle(id)
	mb, ok := h.(*broadcast.Mailbox)
	if !ok {
		s.writeError(w, r, ErrNotPolling)
		return
	}
	s.stream.Touch(id)

	writeJSON(w, http.StatusOK, pollResponse{
		ConnectionID:  id,
		SessionID:     c.SessionID,
		Notifications: messages(mb.Drain()),
	})
}

func (s *Server) openPoll(w http.ResponseWriter, r *http.Request) {
	t, err := s.resolveStream(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	mb := broadcast.NewMailbox(t.connID, s.mailboxSize)
	if _, err := s.stream.AddConnection(r.Context(), stream.ConnectionParams{
		ID:        t.connID,
		SiteID:    t.siteID,
		UserID:    t.userID,
		SessionID: t.sessionID,
		Type:      stream.TypePolling,
		Handle:    mb,
	}); err != nil {
		mb.Close()
		s.writeError(w, r, err)
		return
	}

	var frames []broadcast.Frame
	for _, n := range s.stream.Backlog(t.siteID, t.userID, t.sessionID) {
		frames = append(frames, stream.Frame(n))
	}
	writeJSON(w, http.StatusOK, pollResponse{ConnectionID: t.connID, SessionID: t.sessionID, Notifications: messages(frames)})
}

func (s *Server) closePoll(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "connectionId")
	c, ok := s.stream.Connection(id)
	if !ok {
		s.writeError(w, r, notFound("connection", id))
		return
	}
	if !claims(r).CanAccess(c.SiteID, c.UserID) {
		s.writeError(w, r, forbidden("token cannot access this connection"))
		return
	}
	if err := s.stream.RemoveConnection(r.Context(), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// messages keeps notification frames only.
func messages(frames []broadcast.Frame) []stream.Message {
	out := make([]stream.Message, 0, len(frames))
	for _, f := range frames {
		if m, ok := f.Data.(stream.Message); ok {
			out = append(out, m)
		}
	}
	return out
}
