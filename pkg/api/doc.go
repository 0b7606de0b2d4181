// Package api is the HTTP transport of the delivery engine, built on chi.
//
// Every /v1 route requires a bearer token issued by pkg/jwt (stream routes
// also accept ?token=). Admin tokens may address any site; other tokens are
// pinned to their site_id and, when set, their user_id.
//
//	GET|POST /v1/stream                    SSE stream, backlog replayed first
//	GET      /v1/stream/ws                 WebSocket stream
//	GET      /v1/stream/poll               open or drain a polling connection
//	DELETE   /v1/stream/poll/{id}          close a polling connection
//	POST     /v1/send                      raw frame to one channel key
//	POST     /v1/broadcast                 raw frame to every channel (admin)
//	GET      /v1/stats                     connection statistics
//	POST     /v1/notifications             queue a notification for a site
//	POST     /v1/notifications/route       run the channel router (admin)
//	GET      /v1/notifications/{id}/stats  delivery stats (admin)
//	PATCH    /v1/notifications/{id}/deliveries/{connectionId}
//	POST     /v1/notifications/{id}/interactions
//	GET      /v1/channels                  registered channels
//	GET      /v1/channels/{channel}/rate   delivery rate (admin)
//	POST     /v1/sites/{siteId}/broadcast  site-wide broadcast (admin)
//
// Failures are answered as {"error":{"message":...,"details":...}} with
// 400, 401, 403, 404, 409, 429, 503 or 500.
package api
