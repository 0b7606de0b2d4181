// Package broadcast keeps the registry of live streaming connections and fans
// frames out to them.
//
// Handles subscribe to one or more channel keys. A handle removes itself when
// its Done channel closes, and any handle whose write fails is dropped from
// every key during fan-out.
//
//	reg := broadcast.NewRegistry()
//	defer reg.Close()
//
//	h, err := broadcast.NewSSEHandle(r.Context(), connID, w)
//	if err != nil { ... }
//	_ = reg.Add("site:"+siteID, h)
//
//	res := reg.SendToChannel(ctx, "site:"+siteID, broadcast.Frame{
//		ID: n.ID, Event: "notification", Data: n,
//	})
//
// SSEHandle and WebSocketHandle are the two built-in transports.
package broadcast
