package scheduling

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrDoctorNotFound      = errors.New("doctor not found")
	ErrPatientNotFound     = errors.New("patient not found")
	ErrBlockNotFound       = errors.New("schedule block not found")
	ErrAppointmentNotFound = errors.New("appointment not found")

	// ErrDuplicateStart surfaces the unique index on active appointments per
	// (doctor, start time). It is the storage-level backstop for double booking.
	ErrDuplicateStart = errors.New("doctor already has an active appointment at this start time")
)

// Repository contains all DB interactions needed by the scheduling service.
type Repository interface {
	ListSpecialties(ctx context.Context) ([]Specialty, error)

	GetDoctorByID(ctx context.Context, id uuid.UUID) (*Doctor, error)
	GetDoctorByEmail(ctx context.Context, email string) (*Doctor, error)
	GetPatientByEmail(ctx context.Context, email string) (*Patient, error)
	ListDoctorIDs(ctx context.Context) ([]uuid.UUID, error)
	DeactivateDoctor(ctx context.Context, id uuid.UUID) error

	// Weekly schedule template
	GetBlock(ctx context.Context, doctorID uuid.UUID, day Weekday) (*WeeklyBlock, error)
	GetBlockByID(ctx context.Context, id uuid.UUID) (*WeeklyBlock, error)
	ListBlocks(ctx context.Context, doctorID uuid.UUID) ([]WeeklyBlock, error)
	InsertBlock(ctx context.Context, block WeeklyBlock) (*WeeklyBlock, error)
	DeleteBlock(ctx context.Context, id uuid.UUID) error
	// ReplaceBlocks deletes the doctor's whole template and inserts the new
	// one in a single transaction.
	ReplaceBlocks(ctx context.Context, doctorID uuid.UUID, blocks []WeeklyBlock) ([]WeeklyBlock, error)

	// Appointments
	GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	ListDoctorAppointments(ctx context.Context, doctorID uuid.UUID, from, to time.Time) ([]Appointment, error)
	ListPatientAppointments(ctx context.Context, patientID uuid.UUID, from, to time.Time) ([]Appointment, error)
	HasActiveAppointmentInSpecialty(ctx context.Context, patientID, specialtyID uuid.UUID, asOf time.Time) (bool, error)
	ListFutureScheduledByDoctor(ctx context.Context, doctorID uuid.UUID, asOf time.Time) ([]Appointment, error)
	CreateAppointment(ctx context.Context, patientID, doctorID uuid.UUID, start, end time.Time) (*Appointment, error)
	UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, from, to AppointmentStatus) (*Appointment, error)

	// Denormalized read views
	ListDoctorAgenda(ctx context.Context, doctorID uuid.UUID, from, to time.Time) ([]AgendaEntry, error)
	ListUpcomingViews(ctx context.Context, patientID uuid.UUID, asOf time.Time) ([]AppointmentView, error)
	ListAllViews(ctx context.Context) ([]AppointmentView, error)
}
