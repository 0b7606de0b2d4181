// Package notifications holds the domain vocabulary shared by the delivery
// engine: priorities and their rate-limit multipliers, channels, notification
// content, delivery statuses with their legal transitions, and the error
// taxonomy every component reports through.
//
// # Priorities
//
// Priority scales a per-channel base limit:
//
//	notifications.PriorityUrgent.ScaleLimit(100) // 500
//	notifications.PriorityLow.ScaleLimit(5)      // 2
//
// # Delivery statuses
//
// A delivery record moves forward only:
//
//	sent      -> delivered, failed
//	delivered -> read, clicked, failed
//	read      -> clicked
//	clicked, failed are terminal
//
// DeliveryStatus.Transition returns an InvalidTransitionError for anything else.
//
// # Errors
//
// Typed errors match their sentinel with errors.Is, so transports can map
// them without knowing the concrete type:
//
//	if errors.Is(err, notifications.ErrInvalidTransition) { ... }
package notifications
