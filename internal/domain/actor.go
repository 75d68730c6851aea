package domain

import "github.com/google/uuid"

type Role string

const (
	RoleCustomer Role = "customer"
	RoleProvider Role = "provider"
)

func ParseRole(s string) (Role, bool) {
	switch Role(s) {
	case RoleCustomer, RoleProvider:
		return Role(s), true
	default:
		return "", false
	}
}

// Actor is the principal a request acts for. The zero value is not a valid actor;
// build one with CustomerActor or ProviderActor.
type Actor struct {
	role      Role
	profileID uuid.UUID
}

func CustomerActor(customerID uuid.UUID) Actor {
	return Actor{role: RoleCustomer, profileID: customerID}
}

func ProviderActor(providerID uuid.UUID) Actor {
	return Actor{role: RoleProvider, profileID: providerID}
}

func (a Actor) Role() Role           { return a.role }
func (a Actor) ProfileID() uuid.UUID { return a.profileID }
func (a Actor) IsCustomer() bool     { return a.role == RoleCustomer }
func (a Actor) IsProvider() bool     { return a.role == RoleProvider }

func (a Actor) Valid() bool {
	return (a.role == RoleCustomer || a.role == RoleProvider) && a.profileID != uuid.Nil
}

// Owns reports whether appt references the actor's profile under the actor's role.
func (a Actor) Owns(appt Appointment) bool {
	switch a.role {
	case RoleCustomer:
		return appt.CustomerID == a.profileID
	case RoleProvider:
		return appt.ProviderID == a.profileID
	default:
		return false
	}
}

func (a Actor) String() string {
	if !a.Valid() {
		return "anonymous"
	}
	return string(a.role) + ":" + a.profileID.String()
}
