package notifications

// DeliveryStatus is the state of one delivery record.
type DeliveryStatus string

const (
	StatusSent      DeliveryStatus = "sent"
	StatusDelivered DeliveryStatus = "delivered"
	StatusRead      DeliveryStatus = "read"
	StatusClicked   DeliveryStatus = "clicked"
	StatusFailed    DeliveryStatus = "failed"
)

var transitions = map[DeliveryStatus][]DeliveryStatus{
	StatusSent:      {StatusDelivered, StatusFailed},
	StatusDelivered: {StatusRead, StatusClicked, StatusFailed},
	StatusRead:      {StatusClicked},
	StatusClicked:   nil,
	StatusFailed:    nil,
}

// Valid reports whether s is a known status.
func (s DeliveryStatus) Valid() bool {
	_, ok := transitions[s]
	return ok
}

// Terminal reports whether no transition leaves s.
func (s DeliveryStatus) Terminal() bool {
	return s.Valid() && len(transitions[s]) == 0
}

// CanTransition reports whether moving from s to next is legal.
func (s DeliveryStatus) CanTransition(next DeliveryStatus) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Transition validates the move from s to next.
func (s DeliveryStatus) Transition(next DeliveryStatus) error {
	if !next.Valid() {
		return ValidationError{Field: "status", Reason: "unknown status " + string(next)}
	}
	if !s.CanTransition(next) {
		return InvalidTransitionError{From: s, To: next}
	}
	return nil
}
