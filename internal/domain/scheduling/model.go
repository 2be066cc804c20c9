package scheduling

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/clinicagenda/agenda/internal/domain/collision"
)

// Status is the lifecycle state of an appointment.
type Status string

const (
	StatusNew         Status = "new"
	StatusCompleted   Status = "completed"
	StatusCancelled   Status = "cancelled"
	StatusNoShow      Status = "no_show"
	StatusRescheduled Status = "rescheduled"
)

var validStatuses = map[Status]bool{
	StatusNew: true, StatusCompleted: true, StatusCancelled: true,
	StatusNoShow: true, StatusRescheduled: true,
}

func (s Status) Valid() bool { return validStatuses[s] }

// Active reports whether the appointment still occupies its slot.
func (s Status) Active() bool {
	return s != StatusCancelled && s != StatusRescheduled
}

// PayStatus is the payment state of an appointment.
type PayStatus string

const (
	PayPending          PayStatus = "pending"
	PayPaid             PayStatus = "paid"
	PayPartial          PayStatus = "partial"
	PayInsurancePending PayStatus = "insurance_pending"
)

var validPayStatuses = map[PayStatus]bool{
	PayPending: true, PayPaid: true, PayPartial: true, PayInsurancePending: true,
}

func (p PayStatus) Valid() bool { return validPayStatuses[p] }

type Modality string

const (
	ModalityInPerson Modality = "in_person"
	ModalityVirtual  Modality = "virtual"
)

func (m Modality) Valid() bool { return m == ModalityInPerson || m == ModalityVirtual }

type Appointment struct {
	ID             uuid.UUID `db:"id" json:"id"`
	TenantID       uuid.UUID `db:"tenant_id" json:"tenant_id"`
	ProfessionalID uuid.UUID `db:"professional_id" json:"professional_id"`
	PatientID      uuid.UUID `db:"patient_id" json:"patient_id"`
	PatientName    string    `db:"-" json:"patient_name,omitempty"`
	StartAt        time.Time `db:"start_at" json:"start_at"`
	EndAt          time.Time `db:"end_at" json:"end_at"`
	DurationMin    int       `db:"duration_min" json:"duration_min"`
	Status         Status    `db:"status" json:"status"`
	PayStatus      PayStatus `db:"pay_status" json:"pay_status"`
	PaidAmount     float64   `db:"paid_amount" json:"paid_amount"`
	Price          float64   `db:"price" json:"price"`
	Modality       Modality  `db:"modality" json:"modality"`
	Notes          *string   `db:"notes" json:"notes,omitempty"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

func (a *Appointment) Interval() collision.Interval {
	return collision.Interval{Start: a.StartAt, End: a.EndAt}
}

// DurationMinutes rounds the interval length to whole minutes, at least 1.
func DurationMinutes(start, end time.Time) int {
	m := int(math.Round(end.Sub(start).Minutes()))
	if m < 1 {
		return 1
	}
	return m
}

// amountTolerance absorbs NUMERIC(12,2) rounding.
const amountTolerance = 0.005

func amountsEqual(a, b float64) bool { return math.Abs(a-b) < amountTolerance }

// ValidatePayment rejects pay status and amount combinations that cannot
// happen: pending means nothing was paid, paid means the full price, partial
// means strictly between.
func ValidatePayment(status PayStatus, paid, price float64) error {
	if price < 0 || paid < 0 {
		return fmt.Errorf("price and paid_amount cannot be negative")
	}
	switch status {
	case PayPending:
		if !amountsEqual(paid, 0) {
			return fmt.Errorf("pay_status pending requires paid_amount 0")
		}
	case PayPaid:
		if !amountsEqual(paid, price) {
			return fmt.Errorf("pay_status paid requires paid_amount equal to price")
		}
	case PayPartial:
		if paid <= amountTolerance || paid >= price-amountTolerance {
			return fmt.Errorf("pay_status partial requires 0 < paid_amount < price")
		}
	case PayInsurancePending:
		if paid > price+amountTolerance {
			return fmt.Errorf("paid_amount cannot exceed price")
		}
	default:
		return fmt.Errorf("invalid pay_status: %s", status)
	}
	return nil
}

// ConflictError is returned when a write lands on a block or outside
// availability and was not forced.
type ConflictError struct {
	Verdict collision.Verdict
}

func (e *ConflictError) Error() string {
	return "appointment conflicts with the agenda: " + strings.Join(e.Verdict.Reasons.Names(), ", ")
}
