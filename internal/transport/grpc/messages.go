package grpc

import "time"

type Appointment struct {
	ID         string    `json:"id"`
	CustomerID string    `json:"customer_id"`
	ProviderID string    `json:"provider_id"`
	Date       string    `json:"date"`
	StartTime  string    `json:"start_time"`
	EndTime    string    `json:"end_time"`
	Purpose    string    `json:"purpose"`
	Status     string    `json:"status"`
	Notes      string    `json:"notes,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type Window struct {
	ID         string `json:"id"`
	ProviderID string `json:"provider_id"`
	DayOfWeek  int    `json:"day_of_week"`
	DayName    string `json:"day_name"`
	StartTime  string `json:"start_time"`
	EndTime    string `json:"end_time"`
	Active     bool   `json:"active"`
}

type Slot struct {
	Date      string `json:"date"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

// BookAppointmentRequest takes its idempotency key from the idempotency-key metadata header.
type BookAppointmentRequest struct {
	ProviderID string `json:"provider_id"`
	Date       string `json:"date"`
	StartTime  string `json:"start_time"`
	EndTime    string `json:"end_time"`
	Purpose    string `json:"purpose"`
	Notes      string `json:"notes,omitempty"`
}

type RescheduleAppointmentRequest struct {
	AppointmentID string `json:"appointment_id"`
	Date          string `json:"date"`
	StartTime     string `json:"start_time"`
	EndTime       string `json:"end_time"`
}

type TransitionAppointmentRequest struct {
	AppointmentID string  `json:"appointment_id"`
	Target        string  `json:"target"`
	Notes         *string `json:"notes,omitempty"`
}

type GetAppointmentRequest struct {
	AppointmentID string `json:"appointment_id"`
}

type AppointmentReply struct {
	Appointment *Appointment `json:"appointment"`
}

type ListAppointmentsRequest struct {
	Status string `json:"status,omitempty"`
}

type GetSummaryRequest struct{}

type SummaryReply struct {
	Role     string         `json:"role"`
	Total    int            `json:"total"`
	Pending  int            `json:"pending,omitempty"`
	ThisWeek int            `json:"this_week,omitempty"`
	Upcoming []*Appointment `json:"upcoming"`
	Past     []*Appointment `json:"past,omitempty"`
}

type AddWindowRequest struct {
	DayOfWeek int    `json:"day_of_week"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

type SetWindowActiveRequest struct {
	WindowID string `json:"window_id"`
	Active   bool   `json:"active"`
}

type WindowReply struct {
	Window *Window `json:"window"`
}

type RemoveWindowRequest struct {
	WindowID string `json:"window_id"`
}

type RemoveWindowReply struct{}

type ListWindowsRequest struct {
	ProviderID string `json:"provider_id"`
}

type ListWindowsReply struct {
	Windows []*Window `json:"windows"`
}

type CheckAvailabilityRequest struct {
	ProviderID string `json:"provider_id"`
	Date       string `json:"date"`
	StartTime  string `json:"start_time"`
	EndTime    string `json:"end_time"`
}

type CheckAvailabilityReply struct {
	Slot               *Slot `json:"slot"`
	WithinAvailability bool  `json:"within_availability"`
	Free               bool  `json:"free"`
}

type ListOpenSlotsRequest struct {
	ProviderID string `json:"provider_id"`
	From       string `json:"from"`
	To         string `json:"to"`
}

type ListOpenSlotsReply struct {
	Slots []*Slot `json:"slots"`
}
