package domain

import "fmt"

type Status string

const (
	StatusPending   Status = "pending"
	StatusApproved  Status = "approved"
	StatusRejected  Status = "rejected"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

var AllStatuses = []Status{StatusPending, StatusApproved, StatusRejected, StatusCompleted, StatusCancelled}

// ActiveStatuses hold their slot and take part in overlap checks.
var ActiveStatuses = []Status{StatusPending, StatusApproved}

func ParseStatus(s string) (Status, bool) {
	for _, st := range AllStatuses {
		if string(st) == s {
			return st, true
		}
	}
	return "", false
}

func (s Status) Terminal() bool {
	return s == StatusRejected || s == StatusCompleted || s == StatusCancelled
}

func (s Status) Active() bool {
	return s == StatusPending || s == StatusApproved
}

type transition struct {
	from []Status
	role Role
}

var transitions = map[Status]transition{
	StatusApproved:  {from: []Status{StatusPending}, role: RoleProvider},
	StatusRejected:  {from: []Status{StatusPending}, role: RoleProvider},
	StatusCompleted: {from: []Status{StatusPending, StatusApproved}, role: RoleProvider},
	StatusCancelled: {from: []Status{StatusPending, StatusApproved}, role: RoleCustomer},
}

// RoleFor returns the role allowed to move an appointment into target.
func RoleFor(target Status) (Role, bool) {
	t, ok := transitions[target]
	if !ok {
		return "", false
	}
	return t.role, true
}

// CheckTransition validates a status change requested through a lifecycle action.
// Moving back to pending is only possible through a reschedule.
func CheckTransition(from, to Status) error {
	t, ok := transitions[to]
	if !ok {
		return fmt.Errorf("%w: cannot move to %q", ErrInvalidTransition, to)
	}
	for _, f := range t.from {
		if f == from {
			return nil
		}
	}
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
}

// CheckReschedule validates that an appointment in status from may be rescheduled.
func CheckReschedule(from Status) error {
	if !from.Active() {
		return fmt.Errorf("%w: cannot reschedule a %s appointment", ErrInvalidTransition, from)
	}
	return nil
}
