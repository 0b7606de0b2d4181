// Package router delivers a notification over a set of channels.
//
// For each request the router computes the effective channel list from the
// user's preferences, then runs every channel through four gates before the
// channel processor is called:
//
//  1. rate limit on "<channel>:<recipient>" with the priority-scaled limit
//  2. channel disabled by the user
//  3. quiet hours, unless the user allows urgent notifications through
//  4. content validation by the processor
//
// Gates 1 to 3 produce skipped results with a reason; a validation or
// delivery error produces a failed result, and only failed channels walk
// their fallback chain. A limiter fault is treated as a failure, not as
// permission to send.
package router
