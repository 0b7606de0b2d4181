// Package preferences supplies per-user delivery preferences to the router:
// enabled channels, preferred ordering, quiet hours and last-contact times.
//
// Quiet hours are evaluated in the user's IANA timezone (UTC when unset). A
// window whose start hour is after its end hour wraps midnight, so
// {StartHour: 22, EndHour: 6} covers 23:00 but not 10:00.
package preferences
