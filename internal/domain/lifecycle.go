package domain

// ValidateTransition enforces the lifecycle rules for a status change.
// Any status may move to any of the four, but every transition needs a
// non-empty reason and actor, and leaving invalid or suspended is reserved
// for explicit administrative action so that erroneous fraud flags can only
// be corrected deliberately.
//
// Implementations of the record store call this inside their per-id critical
// section, so the from-status cannot change between check and write.
func ValidateTransition(from, to Status, reason, actor string) error {
	if !to.IsKnown() {
		return InvalidTransitionError{From: from, To: to, Reason: "unknown target status"}
	}
	if actor == "" {
		return InvalidTransitionError{From: from, To: to, Reason: "actor is required"}
	}
	if reason == "" {
		return InvalidTransitionError{From: from, To: to, Reason: "reason is required"}
	}
	if (from == StatusInvalid || from == StatusSuspended) && actor == ActorSystem {
		return InvalidTransitionError{From: from, To: to, Reason: "leaving " + string(from) + " requires administrative action"}
	}
	return nil
}
