package scheduling

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"meetdesk/backend/internal/domain"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

type BookRequest struct {
	ProviderID     string `validate:"required,uuid"`
	Date           string `validate:"required,datetime=2006-01-02"`
	Start          string `validate:"required,datetime=15:04"`
	End            string `validate:"required,datetime=15:04"`
	Purpose        string `validate:"required,max=2000"`
	Notes          string `validate:"max=2000"`
	IdempotencyKey string `validate:"max=256"`
}

type RescheduleRequest struct {
	AppointmentID string `validate:"required,uuid"`
	Date          string `validate:"required,datetime=2006-01-02"`
	Start         string `validate:"required,datetime=15:04"`
	End           string `validate:"required,datetime=15:04"`
}

type TransitionRequest struct {
	AppointmentID string  `validate:"required,uuid"`
	Target        string  `validate:"required"`
	Notes         *string `validate:"omitempty,max=2000"`
}

type WindowRequest struct {
	DayOfWeek int    `validate:"min=0,max=6"`
	Start     string `validate:"required,datetime=15:04"`
	End       string `validate:"required,datetime=15:04"`
}

type SlotQuery struct {
	ProviderID string `validate:"required,uuid"`
	Date       string `validate:"required,datetime=2006-01-02"`
	Start      string `validate:"required,datetime=15:04"`
	End        string `validate:"required,datetime=15:04"`
}

type RangeQuery struct {
	ProviderID string `validate:"required,uuid"`
	From       string `validate:"required,datetime=2006-01-02"`
	To         string `validate:"required,datetime=2006-01-02"`
}

func trim(fields ...*string) {
	for _, f := range fields {
		*f = strings.TrimSpace(*f)
	}
}

func (r *BookRequest) normalize() {
	trim(&r.ProviderID, &r.Date, &r.Start, &r.End, &r.Purpose, &r.Notes, &r.IdempotencyKey)
}

func (r *RescheduleRequest) normalize() {
	trim(&r.AppointmentID, &r.Date, &r.Start, &r.End)
}

func (r *TransitionRequest) normalize() {
	trim(&r.AppointmentID, &r.Target)
	r.Target = strings.ToLower(r.Target)
}

func (r *WindowRequest) normalize() {
	trim(&r.Start, &r.End)
}

func (r *SlotQuery) normalize() {
	trim(&r.ProviderID, &r.Date, &r.Start, &r.End)
}

func (r *RangeQuery) normalize() {
	trim(&r.ProviderID, &r.From, &r.To)
}

var tagMessages = map[string]string{
	"required": "is required",
	"uuid":     "must be a UUID",
	"max":      "must be at most %s characters",
	"min":      "must be at least %s",
}

// validateStruct runs the struct tags and reports the first failure as a
// *domain.ValidationError.
func validateStruct(s any) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok || len(verrs) == 0 {
		return domain.NewValidationError("invalid request")
	}

	first := verrs[0]
	field := snakeCase(first.Field())
	switch first.Tag() {
	case "datetime":
		if first.Param() == domain.DateLayout {
			return domain.NewValidationError(field + " must be formatted as YYYY-MM-DD")
		}
		return domain.NewValidationError(field + " must be formatted as HH:MM")
	case "max":
		if first.Kind().String() == "int" {
			return domain.NewValidationError(field + " must be at most " + first.Param())
		}
	}
	msg, ok := tagMessages[first.Tag()]
	if !ok {
		msg = "is invalid"
	}
	if strings.Contains(msg, "%s") {
		msg = strings.Replace(msg, "%s", first.Param(), 1)
	}
	return domain.NewValidationError(field + " " + msg)
}

func snakeCase(s string) string {
	var b strings.Builder
	for i, r := range s {
		if r >= 'A' && r <= 'Z' {
			if i > 0 && !(s[i-1] >= 'A' && s[i-1] <= 'Z') {
				b.WriteByte('_')
			}
			r += 'a' - 'A'
		}
		b.WriteRune(r)
	}
	return b.String()
}

// The parsers below only run after validateStruct accepted the input.

func parseID(s string) uuid.UUID {
	return uuid.MustParse(strings.TrimSpace(s))
}

func parseDate(s string) time.Time {
	d, _ := domain.ParseDate(strings.TrimSpace(s))
	return d
}

func parseTime(s string) domain.TimeOfDay {
	t, _ := domain.ParseTimeOfDay(strings.TrimSpace(s))
	return t
}
