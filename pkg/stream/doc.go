// Package stream is the notification stream service. It tracks the live
// connections of each site (SSE, WebSocket or polling), accepts
// notifications for a site and dispatches them to matching connections
// through a bounded queue and a worker pool.
//
// Every per-connection outcome is written to the delivery ledger. High and
// urgent notifications are dispatched inline as well as queued, and a
// failed delivery of theirs is retried once after RetryDelay.
//
// Streaming connections are pinged every PingInterval; connections idle for
// longer than IdleTimeout are swept every CleanupInterval. All timers go
// through a scheduler.Scheduler so tests can drive them with
// scheduler.Manual.
package stream
