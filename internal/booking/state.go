package booking

// State is a step of the commit state machine.
type State string

const (
	StateDraft               State = "draft"
	StateValidated           State = "validated"
	StateLocationPersisted   State = "location_persisted"
	StateCommitted           State = "committed"
	StateValidationFailed    State = "validation_failed"
	StateLocationWriteFailed State = "location_write_failed"
	StateBookingWriteFailed  State = "booking_write_failed"
)

var transitions = map[State][]State{
	StateDraft:             {StateValidated, StateValidationFailed},
	StateValidated:         {StateLocationPersisted, StateLocationWriteFailed},
	StateLocationPersisted: {StateCommitted, StateBookingWriteFailed},
}

// CanTransition reports whether the machine allows moving from s to next.
func (s State) CanTransition(next State) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Terminal reports whether no further transition exists.
func (s State) Terminal() bool {
	return len(transitions[s]) == 0
}
