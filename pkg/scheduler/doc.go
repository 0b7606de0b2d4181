// Package scheduler provides cancellable delayed and periodic callbacks.
//
// Components take a Scheduler instead of calling time.AfterFunc directly, so
// retries, keep-alive pings and idle sweeps can be driven deterministically
// in tests with Manual:
//
//	clock := scheduler.NewManual(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
//	clock.After(5*time.Second, retry)
//	clock.Advance(5 * time.Second) // retry runs here
package scheduler
