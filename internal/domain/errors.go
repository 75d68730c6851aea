package domain

import "errors"

var (
	ErrInvalidRange        = errors.New("invalid range")
	ErrPastDate            = errors.New("date is in the past")
	ErrSlotConflict        = errors.New("slot conflict")
	ErrInvalidTransition   = errors.New("invalid transition")
	ErrForbidden           = errors.New("forbidden")
	ErrNotFound            = errors.New("not found")
	ErrDuplicateWindow     = errors.New("duplicate window")
	ErrOutsideAvailability = errors.New("outside availability")
)

var kinds = []struct {
	err  error
	name string
}{
	{ErrInvalidRange, "invalid_range"},
	{ErrPastDate, "past_date"},
	{ErrSlotConflict, "slot_conflict"},
	{ErrInvalidTransition, "invalid_transition"},
	{ErrForbidden, "forbidden"},
	{ErrNotFound, "not_found"},
	{ErrDuplicateWindow, "duplicate_window"},
	{ErrOutsideAvailability, "outside_availability"},
}

// KindOf names the error kind err belongs to, or "" for errors outside the taxonomy.
func KindOf(err error) string {
	if err == nil {
		return ""
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.name
		}
	}
	return ""
}

// ValidationError reports a malformed argument, as opposed to a violated scheduling rule.
type ValidationError struct {
	msg string
}

func NewValidationError(msg string) *ValidationError {
	return &ValidationError{msg: msg}
}

func (e *ValidationError) Error() string {
	return e.msg
}
