package scheduling

import (
	"time"

	"github.com/google/uuid"
)

// SlotDuration is the fixed length of every bookable appointment.
// Every appointment interval is start..start+SlotDuration.
const SlotDuration = 30 * time.Minute

type AppointmentStatus string

const (
	StatusScheduled          AppointmentStatus = "scheduled"
	StatusCompleted          AppointmentStatus = "completed"
	StatusCancelledByAdmin   AppointmentStatus = "cancelled_by_admin"
	StatusCancelledByPatient AppointmentStatus = "cancelled_by_patient"
)

type Specialty struct {
	ID        uuid.UUID
	Name      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Doctor struct {
	ID            uuid.UUID
	Name          string
	Email         string
	SpecialtyID   uuid.UUID
	SpecialtyName string
	Active        bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

type Patient struct {
	ID        uuid.UUID
	Name      string
	Email     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// WeeklyBlock is one working-hour interval of a doctor's weekly template.
// Start and End are wall-clock minutes of day, no date component.
type WeeklyBlock struct {
	ID        uuid.UUID
	DoctorID  uuid.UUID
	Weekday   Weekday
	Start     TimeOfDay
	End       TimeOfDay
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Appointment struct {
	ID        uuid.UUID
	PatientID uuid.UUID
	DoctorID  uuid.UUID
	StartTime time.Time
	EndTime   time.Time
	Status    AppointmentStatus
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Slot is a bookable start-time within one day. Slots are derived on every
// availability query and never persisted.
type Slot struct {
	Start TimeOfDay
}

// AppointmentView is an appointment hydrated with display names for callers.
// The names are a presentation mapping done after the core write succeeds.
type AppointmentView struct {
	Appointment
	DoctorName    string
	PatientName   string
	SpecialtyName string
}

// AgendaEntry is one row of a doctor's daily agenda.
type AgendaEntry struct {
	AppointmentID uuid.UUID
	PatientName   string
	StartTime     time.Time
	EndTime       time.Time
	Status        AppointmentStatus
}
