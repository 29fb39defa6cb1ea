package scheduling

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	redisclient "github.com/medsched/clinic-booking/internal/redis"
)

var (
	ErrPastAppointment         = errors.New("cannot schedule in the past")
	ErrSpecialtyConflict       = errors.New("specialty conflict")
	ErrOverlappingAppointment  = errors.New("overlapping appointment")
	ErrSlotUnavailable         = errors.New("slot no longer available")
	ErrSlotBeingBooked         = errors.New("slot is currently being booked, please retry")
	ErrInvalidStatusTransition = errors.New("invalid status transition")

	ErrInvalidBlock     = errors.New("block end time must be after start time")
	ErrDuplicateWeekday = errors.New("doctor already has a block for this weekday")

	ErrBlockNotOwned       = errors.New("schedule block does not belong to the specified doctor")
	ErrAppointmentNotOwned = errors.New("appointment does not belong to the specified patient")
)

type Service struct {
	repo   Repository
	locker redisclient.Locker
	log    *zap.Logger

	// now is swapped out in tests
	now func() time.Time
}

func NewService(repo Repository, locker redisclient.Locker, log *zap.Logger) *Service {
	return &Service{
		repo:   repo,
		locker: locker,
		log:    log,
		now:    time.Now,
	}
}

// Availability derives the bookable slots for a doctor on one calendar date.
// An inactive doctor, or a weekday with no schedule block, yields an empty
// slice rather than an error. The result is ordered ascending by start time
// and recomputed on every call.
func (s *Service) Availability(ctx context.Context, doctorID uuid.UUID, date time.Time) ([]Slot, error) {
	doctor, err := s.repo.GetDoctorByID(ctx, doctorID)
	if err != nil {
		return nil, err
	}
	if !doctor.Active {
		return []Slot{}, nil
	}

	block, err := s.repo.GetBlock(ctx, doctorID, WeekdayOf(date))
	if err != nil {
		if errors.Is(err, ErrBlockNotFound) {
			return []Slot{}, nil
		}
		return nil, fmt.Errorf("load schedule block: %w", err)
	}

	dayStart := startOfDay(date)
	appointments, err := s.repo.ListDoctorAppointments(ctx, doctorID, dayStart, dayStart.Add(24*time.Hour))
	if err != nil {
		return nil, fmt.Errorf("load day appointments: %w", err)
	}

	// Only scheduled appointments occupy a slot. A slot is blocked solely by
	// an appointment starting exactly at the slot boundary; all bookings are
	// fixed 30 minute, slot aligned intervals, so that is sufficient.
	occupied := make(map[TimeOfDay]bool, len(appointments))
	for _, appt := range appointments {
		if appt.Status == StatusScheduled {
			occupied[TimeOfDayFrom(appt.StartTime)] = true
		}
	}

	slots := []Slot{}
	for t := block.Start; t.Before(block.End); t = t.Add(SlotDuration) {
		if !occupied[t] {
			slots = append(slots, Slot{Start: t})
		}
	}
	return slots, nil
}

// ScheduleAppointment books a patient into a doctor's slot. The business-rule
// checks run in a fixed order and the first failure wins; nothing is written
// on any failure path. The insert itself happens inside a per-(doctor,start)
// lock with the availability check re-run in the critical section, so two
// concurrent requests for the same slot cannot both commit.
func (s *Service) ScheduleAppointment(ctx context.Context, patientEmail string, doctorID uuid.UUID, start time.Time) (*AppointmentView, error) {
	patient, err := s.repo.GetPatientByEmail(ctx, patientEmail)
	if err != nil {
		return nil, err
	}
	doctor, err := s.repo.GetDoctorByID(ctx, doctorID)
	if err != nil {
		return nil, err
	}

	end := start.Add(SlotDuration)

	checks := []bookingCheck{
		s.checkNotInPast,
		s.checkSpecialtyExclusivity,
		s.checkNoPatientOverlap,
		s.checkSlotAvailable,
	}
	req := bookingRequest{patient: patient, doctor: doctor, start: start, end: end}
	for _, check := range checks {
		if err := check(ctx, req); err != nil {
			return nil, err
		}
	}

	var created *Appointment
	err = s.locker.WithBookingLock(ctx, doctorID, start, func(lockCtx context.Context) error {
		// Re-check inside the critical section: another request may have taken
		// the slot between the pipeline run and lock acquisition.
		if err := s.checkSlotAvailable(lockCtx, req); err != nil {
			return err
		}

		appt, err := s.repo.CreateAppointment(lockCtx, patient.ID, doctor.ID, start, end)
		if err != nil {
			if errors.Is(err, ErrDuplicateStart) {
				return ErrSlotUnavailable
			}
			return fmt.Errorf("create appointment: %w", err)
		}
		created = appt
		return nil
	})
	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return nil, ErrSlotBeingBooked
		}
		return nil, err
	}

	s.log.Info("appointment scheduled",
		zap.Stringer("appointment_id", created.ID),
		zap.Stringer("doctor_id", doctor.ID),
		zap.Stringer("patient_id", patient.ID),
		zap.Time("start", created.StartTime),
	)

	// Display names are attached only after the write succeeded.
	return &AppointmentView{
		Appointment:   *created,
		DoctorName:    doctor.Name,
		PatientName:   patient.Name,
		SpecialtyName: doctor.SpecialtyName,
	}, nil
}

type bookingRequest struct {
	patient *Patient
	doctor  *Doctor
	start   time.Time
	end     time.Time
}

type bookingCheck func(ctx context.Context, req bookingRequest) error

func (s *Service) checkNotInPast(_ context.Context, req bookingRequest) error {
	if !req.start.After(s.now()) {
		return ErrPastAppointment
	}
	return nil
}

func (s *Service) checkSpecialtyExclusivity(ctx context.Context, req bookingRequest) error {
	active, err := s.repo.HasActiveAppointmentInSpecialty(ctx, req.patient.ID, req.doctor.SpecialtyID, s.now())
	if err != nil {
		return fmt.Errorf("check specialty exclusivity: %w", err)
	}
	if active {
		return fmt.Errorf("%w: you already have a scheduled %s appointment pending; attend or cancel it before booking another",
			ErrSpecialtyConflict, req.doctor.SpecialtyName)
	}
	return nil
}

func (s *Service) checkNoPatientOverlap(ctx context.Context, req bookingRequest) error {
	dayStart := startOfDay(req.start)
	sameDay, err := s.repo.ListPatientAppointments(ctx, req.patient.ID, dayStart, dayStart.Add(24*time.Hour))
	if err != nil {
		return fmt.Errorf("load patient day appointments: %w", err)
	}
	for _, existing := range sameDay {
		if existing.Status != StatusScheduled {
			continue
		}
		if req.start.Before(existing.EndTime) && req.end.After(existing.StartTime) {
			return fmt.Errorf("%w: you already have an appointment at %s that clashes with this time",
				ErrOverlappingAppointment, TimeOfDayFrom(existing.StartTime))
		}
	}
	return nil
}

func (s *Service) checkSlotAvailable(ctx context.Context, req bookingRequest) error {
	slots, err := s.Availability(ctx, req.doctor.ID, req.start)
	if err != nil {
		return err
	}
	// Full-timestamp comparison: a start with a stray second or nanosecond
	// component is not one of the generated slots.
	for _, slot := range slots {
		if slot.Start.At(req.start).Equal(req.start) {
			return nil
		}
	}
	return ErrSlotUnavailable
}

// DoctorAgenda returns a doctor's appointments for one calendar date,
// resolved from the doctor's login email.
func (s *Service) DoctorAgenda(ctx context.Context, doctorEmail string, date time.Time) ([]AgendaEntry, error) {
	doctor, err := s.repo.GetDoctorByEmail(ctx, doctorEmail)
	if err != nil {
		return nil, err
	}
	dayStart := startOfDay(date)
	return s.repo.ListDoctorAgenda(ctx, doctor.ID, dayStart, dayStart.Add(24*time.Hour))
}

// UpcomingAppointments returns a patient's future appointments, ascending.
func (s *Service) UpcomingAppointments(ctx context.Context, patientEmail string) ([]AppointmentView, error) {
	patient, err := s.repo.GetPatientByEmail(ctx, patientEmail)
	if err != nil {
		return nil, err
	}
	return s.repo.ListUpcomingViews(ctx, patient.ID, s.now())
}

// ListSpecialties returns the specialty catalog, ordered by name.
func (s *Service) ListSpecialties(ctx context.Context) ([]Specialty, error) {
	return s.repo.ListSpecialties(ctx)
}

// ListAppointments returns every appointment with display fields, newest first.
func (s *Service) ListAppointments(ctx context.Context) ([]AppointmentView, error) {
	return s.repo.ListAllViews(ctx)
}

// CancelAppointment is the admin cancellation path.
func (s *Service) CancelAppointment(ctx context.Context, id uuid.UUID) error {
	return s.cancel(ctx, id, StatusCancelledByAdmin)
}

// CancelOwnAppointment lets a patient cancel their own scheduled appointment.
func (s *Service) CancelOwnAppointment(ctx context.Context, patientEmail string, id uuid.UUID) error {
	patient, err := s.repo.GetPatientByEmail(ctx, patientEmail)
	if err != nil {
		return err
	}
	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		return err
	}
	if appt.PatientID != patient.ID {
		return ErrAppointmentNotOwned
	}
	return s.cancel(ctx, id, StatusCancelledByPatient)
}

func (s *Service) cancel(ctx context.Context, id uuid.UUID, to AppointmentStatus) error {
	_, err := s.repo.UpdateAppointmentStatus(ctx, id, StatusScheduled, to)
	if err == nil {
		s.log.Info("appointment cancelled", zap.Stringer("appointment_id", id), zap.String("status", string(to)))
		return nil
	}
	if errors.Is(err, ErrAppointmentNotFound) {
		// The compare-and-set misses both absent and already-terminal
		// appointments; tell them apart for the caller.
		if _, getErr := s.repo.GetAppointmentByID(ctx, id); getErr == nil {
			return ErrInvalidStatusTransition
		}
		return ErrAppointmentNotFound
	}
	return fmt.Errorf("cancel appointment: %w", err)
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
