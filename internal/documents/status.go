package documents

// StatusMachine tracks which document status moves are expected from the
// review flow. The workflow engine is authoritative; an unexpected move is
// logged by the service, not blocked.
type StatusMachine struct {
	allowedTransitions map[Status][]Status
}

func NewStatusMachine() *StatusMachine {
	return &StatusMachine{
		allowedTransitions: map[Status][]Status{
			StatusDraft:    {StatusInReview},
			StatusInReview: {StatusApproved, StatusRejected, StatusChangesRequested, StatusInReview},
			// A revision upload reopens review from either halt state.
			StatusRejected:         {StatusInReview},
			StatusChangesRequested: {StatusInReview},
			StatusApproved:         {StatusInReview},
		},
	}
}

// CanTransition checks whether a status move is part of the normal flow.
func (sm *StatusMachine) CanTransition(from, to Status) bool {
	for _, allowed := range sm.allowedTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// AllowedTransitions returns the expected next statuses for a given status.
func (sm *StatusMachine) AllowedTransitions(from Status) []Status {
	return sm.allowedTransitions[from]
}
