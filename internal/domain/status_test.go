package domain

import (
	"errors"
	"testing"

	"github.com/google/uuid"
)

func TestCheckTransition(t *testing.T) {
	tests := []struct {
		from Status
		to   Status
		ok   bool
	}{
		{StatusPending, StatusApproved, true},
		{StatusPending, StatusRejected, true},
		{StatusPending, StatusCompleted, true},
		{StatusApproved, StatusCompleted, true},
		{StatusPending, StatusCancelled, true},
		{StatusApproved, StatusCancelled, true},
		{StatusApproved, StatusApproved, false},
		{StatusApproved, StatusRejected, false},
		{StatusRejected, StatusRejected, false},
		{StatusRejected, StatusApproved, false},
		{StatusCompleted, StatusCancelled, false},
		{StatusCancelled, StatusCompleted, false},
		{StatusPending, StatusPending, false},
		{StatusPending, Status("archived"), false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			err := CheckTransition(tt.from, tt.to)
			if tt.ok && err != nil {
				t.Fatalf("CheckTransition error: %v", err)
			}
			if !tt.ok && !errors.Is(err, ErrInvalidTransition) {
				t.Fatalf("err = %v, want %v", err, ErrInvalidTransition)
			}
		})
	}
}

func TestCheckReschedule(t *testing.T) {
	for _, st := range AllStatuses {
		err := CheckReschedule(st)
		if st.Active() && err != nil {
			t.Fatalf("CheckReschedule(%s) error: %v", st, err)
		}
		if st.Terminal() && !errors.Is(err, ErrInvalidTransition) {
			t.Fatalf("CheckReschedule(%s) = %v, want %v", st, err, ErrInvalidTransition)
		}
	}
}

func TestRoleFor(t *testing.T) {
	if r, _ := RoleFor(StatusCancelled); r != RoleCustomer {
		t.Fatalf("RoleFor(cancelled) = %q, want %q", r, RoleCustomer)
	}
	for _, st := range []Status{StatusApproved, StatusRejected, StatusCompleted} {
		if r, _ := RoleFor(st); r != RoleProvider {
			t.Fatalf("RoleFor(%s) = %q, want %q", st, r, RoleProvider)
		}
	}
	if _, ok := RoleFor(StatusPending); ok {
		t.Fatalf("RoleFor(pending) should not be allowed")
	}
}

func TestActorOwns(t *testing.T) {
	customerID := uuid.MustParse("00000000-0000-0000-0000-0000000000c1")
	providerID := uuid.MustParse("00000000-0000-0000-0000-0000000000b1")
	appt := Appointment{CustomerID: customerID, ProviderID: providerID}

	if !CustomerActor(customerID).Owns(appt) {
		t.Fatalf("customer should own appointment")
	}
	if !ProviderActor(providerID).Owns(appt) {
		t.Fatalf("provider should own appointment")
	}
	if CustomerActor(providerID).Owns(appt) {
		t.Fatalf("customer actor with provider id must not own appointment")
	}
	if (Actor{}).Valid() {
		t.Fatalf("zero actor must not be valid")
	}
}

func TestKindOf(t *testing.T) {
	err := errors.Join(errors.New("ctx"), ErrSlotConflict)
	if got := KindOf(err); got != "slot_conflict" {
		t.Fatalf("KindOf = %q, want %q", got, "slot_conflict")
	}
	if got := KindOf(errors.New("boom")); got != "" {
		t.Fatalf("KindOf = %q, want empty", got)
	}
}
