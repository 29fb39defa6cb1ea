package scheduling

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
)

func scheduleFixture(t *testing.T) (*fakeRepo, *Service, *Doctor) {
	t.Helper()

	repo := newFakeRepo()
	doctor := repo.addDoctor("Dr. Vega", "Dermatology")
	repo.addBlock(doctor.ID, Monday, NewTimeOfDay(8, 0), NewTimeOfDay(17, 0))

	svc, _ := newTestService(repo)
	svc.now = func() time.Time { return at(monday, 7, 0) }

	return repo, svc, doctor
}

func TestReplaceScheduleValidation(t *testing.T) {
	_, svc, doctor := scheduleFixture(t)

	_, err := svc.ReplaceSchedule(context.Background(), doctor.ID, []BlockSpec{
		{Weekday: Monday, Start: NewTimeOfDay(12, 0), End: NewTimeOfDay(9, 0)},
	})
	if !errors.Is(err, ErrInvalidBlock) {
		t.Fatalf("expected ErrInvalidBlock for end before start, got %v", err)
	}

	_, err = svc.ReplaceSchedule(context.Background(), doctor.ID, []BlockSpec{
		{Weekday: Monday, Start: NewTimeOfDay(9, 0), End: NewTimeOfDay(9, 0)},
	})
	if !errors.Is(err, ErrInvalidBlock) {
		t.Fatalf("expected ErrInvalidBlock for zero-length block, got %v", err)
	}

	_, err = svc.ReplaceSchedule(context.Background(), doctor.ID, []BlockSpec{
		{Weekday: Monday, Start: NewTimeOfDay(8, 0), End: NewTimeOfDay(12, 0)},
		{Weekday: Monday, Start: NewTimeOfDay(13, 0), End: NewTimeOfDay(17, 0)},
	})
	if !errors.Is(err, ErrDuplicateWeekday) {
		t.Fatalf("expected ErrDuplicateWeekday, got %v", err)
	}
}

func TestReplaceScheduleCancelsUncovered(t *testing.T) {
	repo, svc, doctor := scheduleFixture(t)
	patient := repo.addPatient("Ana", "ana@example.test")

	mondayAppt := repo.addAppointment(patient.ID, doctor.ID, at(monday, 10, 0), StatusScheduled)

	// Remove Monday entirely.
	blocks, err := svc.ReplaceSchedule(context.Background(), doctor.ID, []BlockSpec{
		{Weekday: Tuesday, Start: NewTimeOfDay(8, 0), End: NewTimeOfDay(17, 0)},
	})
	if err != nil {
		t.Fatalf("ReplaceSchedule: %v", err)
	}
	if len(blocks) != 1 || blocks[0].Weekday != Tuesday {
		t.Fatalf("unexpected saved blocks: %+v", blocks)
	}

	appt, _ := repo.GetAppointmentByID(context.Background(), mondayAppt.ID)
	if appt.Status != StatusCancelledByAdmin {
		t.Fatalf("uncovered appointment = %s, want %s", appt.Status, StatusCancelledByAdmin)
	}
}

func TestReplaceScheduleKeepsCovered(t *testing.T) {
	repo, svc, doctor := scheduleFixture(t)
	patient := repo.addPatient("Ana", "ana@example.test")

	appt10 := repo.addAppointment(patient.ID, doctor.ID, at(monday, 10, 0), StatusScheduled)
	appt15 := repo.addAppointment(patient.ID, doctor.ID, at(monday, 15, 0), StatusScheduled)

	// Narrow Monday to the morning: 10:00 stays covered, 15:00 does not.
	if _, err := svc.ReplaceSchedule(context.Background(), doctor.ID, []BlockSpec{
		{Weekday: Monday, Start: NewTimeOfDay(8, 0), End: NewTimeOfDay(12, 0)},
	}); err != nil {
		t.Fatalf("ReplaceSchedule: %v", err)
	}

	kept, _ := repo.GetAppointmentByID(context.Background(), appt10.ID)
	if kept.Status != StatusScheduled {
		t.Errorf("covered appointment = %s, want scheduled", kept.Status)
	}
	dropped, _ := repo.GetAppointmentByID(context.Background(), appt15.ID)
	if dropped.Status != StatusCancelledByAdmin {
		t.Errorf("uncovered appointment = %s, want cancelled_by_admin", dropped.Status)
	}
}

func TestReplaceScheduleBlockEndIsExclusive(t *testing.T) {
	repo, svc, doctor := scheduleFixture(t)
	patient := repo.addPatient("Ana", "ana@example.test")

	boundary := repo.addAppointment(patient.ID, doctor.ID, at(monday, 12, 0), StatusScheduled)

	// Coverage is [start, end): an appointment starting exactly at the block
	// end is not covered.
	if _, err := svc.ReplaceSchedule(context.Background(), doctor.ID, []BlockSpec{
		{Weekday: Monday, Start: NewTimeOfDay(8, 0), End: NewTimeOfDay(12, 0)},
	}); err != nil {
		t.Fatalf("ReplaceSchedule: %v", err)
	}

	appt, _ := repo.GetAppointmentByID(context.Background(), boundary.ID)
	if appt.Status != StatusCancelledByAdmin {
		t.Fatalf("boundary appointment = %s, want cancelled_by_admin", appt.Status)
	}
}

func TestReplaceScheduleSkipsPastAndNonScheduled(t *testing.T) {
	repo, svc, doctor := scheduleFixture(t)
	patient := repo.addPatient("Ana", "ana@example.test")

	past := repo.addAppointment(patient.ID, doctor.ID, at(monday, 6, 0), StatusScheduled)
	done := repo.addAppointment(patient.ID, doctor.ID, at(monday, 10, 0), StatusCompleted)

	if _, err := svc.ReplaceSchedule(context.Background(), doctor.ID, nil); err != nil {
		t.Fatalf("ReplaceSchedule: %v", err)
	}

	pastAppt, _ := repo.GetAppointmentByID(context.Background(), past.ID)
	if pastAppt.Status != StatusScheduled {
		t.Errorf("past appointment must not be touched, got %s", pastAppt.Status)
	}
	doneAppt, _ := repo.GetAppointmentByID(context.Background(), done.ID)
	if doneAppt.Status != StatusCompleted {
		t.Errorf("completed appointment must not be touched, got %s", doneAppt.Status)
	}
}

func TestReconcileContinuesAfterStoreError(t *testing.T) {
	repo, svc, doctor := scheduleFixture(t)
	patient := repo.addPatient("Ana", "ana@example.test")

	broken := repo.addAppointment(patient.ID, doctor.ID, at(monday, 9, 0), StatusScheduled)
	healthy := repo.addAppointment(patient.ID, doctor.ID, at(monday, 10, 0), StatusScheduled)
	repo.failStatusUpdate[broken.ID] = errors.New("connection reset")

	if _, err := svc.ReplaceSchedule(context.Background(), doctor.ID, nil); err != nil {
		t.Fatalf("ReplaceSchedule: %v", err)
	}

	// The failing appointment is skipped, the rest of the batch proceeds.
	appt, _ := repo.GetAppointmentByID(context.Background(), healthy.ID)
	if appt.Status != StatusCancelledByAdmin {
		t.Fatalf("batch did not continue past the failing appointment")
	}
}

func TestReconcileIdempotent(t *testing.T) {
	repo, svc, doctor := scheduleFixture(t)
	patient := repo.addPatient("Ana", "ana@example.test")

	appt := repo.addAppointment(patient.ID, doctor.ID, at(monday, 10, 0), StatusScheduled)

	if _, err := svc.ReplaceSchedule(context.Background(), doctor.ID, nil); err != nil {
		t.Fatalf("ReplaceSchedule: %v", err)
	}
	if err := svc.ReconcileDoctor(context.Background(), doctor.ID); err != nil {
		t.Fatalf("ReconcileDoctor rerun: %v", err)
	}

	got, _ := repo.GetAppointmentByID(context.Background(), appt.ID)
	if got.Status != StatusCancelledByAdmin {
		t.Fatalf("appointment = %s after rerun, want cancelled_by_admin", got.Status)
	}
}

func TestAddBlock(t *testing.T) {
	repo, svc, doctor := scheduleFixture(t)

	block, err := svc.AddBlock(context.Background(), doctor.ID, BlockSpec{
		Weekday: Saturday, Start: NewTimeOfDay(9, 0), End: NewTimeOfDay(13, 0),
	})
	if err != nil {
		t.Fatalf("AddBlock: %v", err)
	}
	if block.Weekday != Saturday {
		t.Errorf("weekday = %s", block.Weekday)
	}

	// Second block for the same weekday is rejected.
	_, err = svc.AddBlock(context.Background(), doctor.ID, BlockSpec{
		Weekday: Monday, Start: NewTimeOfDay(18, 0), End: NewTimeOfDay(20, 0),
	})
	if !errors.Is(err, ErrDuplicateWeekday) {
		t.Fatalf("expected ErrDuplicateWeekday, got %v", err)
	}

	// A writer that slips past the pre-check still hits the storage-level
	// uniqueness constraint, surfaced as the same sentinel.
	_, err = repo.InsertBlock(context.Background(), WeeklyBlock{
		ID: uuid.New(), DoctorID: doctor.ID, Weekday: Monday,
		Start: NewTimeOfDay(18, 0), End: NewTimeOfDay(20, 0),
	})
	if !errors.Is(err, ErrDuplicateWeekday) {
		t.Fatalf("expected ErrDuplicateWeekday from storage, got %v", err)
	}
}

func TestRemoveBlockOwnership(t *testing.T) {
	repo, svc, doctor := scheduleFixture(t)
	stranger := repo.addDoctor("Dr. Roca", "Cardiology")
	block := repo.addBlock(stranger.ID, Friday, NewTimeOfDay(8, 0), NewTimeOfDay(12, 0))

	if err := svc.RemoveBlock(context.Background(), doctor.ID, block.ID); !errors.Is(err, ErrBlockNotOwned) {
		t.Fatalf("expected ErrBlockNotOwned, got %v", err)
	}

	if err := svc.RemoveBlock(context.Background(), stranger.ID, block.ID); err != nil {
		t.Fatalf("owner removal: %v", err)
	}
	if _, err := repo.GetBlockByID(context.Background(), block.ID); !errors.Is(err, ErrBlockNotFound) {
		t.Fatal("block still present after removal")
	}
}

func TestDeactivateDoctor(t *testing.T) {
	repo, svc, doctor := scheduleFixture(t)
	patient := repo.addPatient("Ana", "ana@example.test")

	future := repo.addAppointment(patient.ID, doctor.ID, at(monday, 10, 0), StatusScheduled)

	if err := svc.DeactivateDoctor(context.Background(), doctor.ID); err != nil {
		t.Fatalf("DeactivateDoctor: %v", err)
	}

	if repo.doctors[doctor.ID].Active {
		t.Error("doctor still active")
	}
	appt, _ := repo.GetAppointmentByID(context.Background(), future.ID)
	if appt.Status != StatusCancelledByAdmin {
		t.Errorf("future appointment = %s, want cancelled_by_admin", appt.Status)
	}

	slots, err := svc.Availability(context.Background(), doctor.ID, monday)
	if err != nil {
		t.Fatalf("Availability: %v", err)
	}
	if len(slots) != 0 {
		t.Errorf("deactivated doctor should have no availability, got %d slots", len(slots))
	}
}
