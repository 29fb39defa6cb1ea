package scheduling

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
)

// 2024-01-01 was a Monday.
var monday = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func at(day time.Time, hour, minute int) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), hour, minute, 0, 0, day.Location())
}

func TestAvailabilityFullDay(t *testing.T) {
	repo := newFakeRepo()
	doctor := repo.addDoctor("Dr. Vega", "Dermatology")
	repo.addBlock(doctor.ID, Monday, NewTimeOfDay(8, 0), NewTimeOfDay(17, 0))

	svc, _ := newTestService(repo)

	slots, err := svc.Availability(context.Background(), doctor.ID, monday)
	if err != nil {
		t.Fatalf("Availability: %v", err)
	}

	if len(slots) != 18 {
		t.Fatalf("expected 18 slots for 08:00-17:00, got %d", len(slots))
	}
	if slots[0].Start.String() != "08:00" {
		t.Errorf("first slot = %s, want 08:00", slots[0].Start)
	}
	if slots[17].Start.String() != "16:30" {
		t.Errorf("last slot = %s, want 16:30", slots[17].Start)
	}
	for i := 1; i < len(slots); i++ {
		if !slots[i-1].Start.Before(slots[i].Start) {
			t.Fatalf("slots not ascending at index %d", i)
		}
	}
}

func TestAvailabilityNoBlockForWeekday(t *testing.T) {
	repo := newFakeRepo()
	doctor := repo.addDoctor("Dr. Vega", "Dermatology")
	repo.addBlock(doctor.ID, Tuesday, NewTimeOfDay(8, 0), NewTimeOfDay(12, 0))

	// An appointment on the day must not matter either.
	patient := repo.addPatient("Ana", "ana@example.test")
	repo.addAppointment(patient.ID, doctor.ID, at(monday, 9, 0), StatusScheduled)

	svc, _ := newTestService(repo)

	slots, err := svc.Availability(context.Background(), doctor.ID, monday)
	if err != nil {
		t.Fatalf("Availability: %v", err)
	}
	if len(slots) != 0 {
		t.Fatalf("expected no slots without a Monday block, got %d", len(slots))
	}
}

func TestAvailabilityInactiveDoctor(t *testing.T) {
	repo := newFakeRepo()
	doctor := repo.addDoctor("Dr. Vega", "Dermatology")
	repo.addBlock(doctor.ID, Monday, NewTimeOfDay(8, 0), NewTimeOfDay(17, 0))
	repo.doctors[doctor.ID].Active = false

	svc, _ := newTestService(repo)

	slots, err := svc.Availability(context.Background(), doctor.ID, monday)
	if err != nil {
		t.Fatalf("Availability: %v", err)
	}
	if len(slots) != 0 {
		t.Fatalf("inactive doctor should have no slots, got %d", len(slots))
	}
}

func TestAvailabilityUnknownDoctor(t *testing.T) {
	repo := newFakeRepo()
	svc, _ := newTestService(repo)

	_, err := svc.Availability(context.Background(), uuid.New(), monday)
	if err != ErrDoctorNotFound {
		t.Fatalf("expected ErrDoctorNotFound, got %v", err)
	}
}

func TestAvailabilityExcludesScheduledOnly(t *testing.T) {
	repo := newFakeRepo()
	doctor := repo.addDoctor("Dr. Vega", "Dermatology")
	repo.addBlock(doctor.ID, Monday, NewTimeOfDay(8, 0), NewTimeOfDay(17, 0))
	patient := repo.addPatient("Ana", "ana@example.test")

	repo.addAppointment(patient.ID, doctor.ID, at(monday, 9, 0), StatusScheduled)
	repo.addAppointment(patient.ID, doctor.ID, at(monday, 10, 0), StatusCancelledByAdmin)
	repo.addAppointment(patient.ID, doctor.ID, at(monday, 10, 30), StatusCancelledByPatient)

	svc, _ := newTestService(repo)

	slots, err := svc.Availability(context.Background(), doctor.ID, monday)
	if err != nil {
		t.Fatalf("Availability: %v", err)
	}

	if len(slots) != 17 {
		t.Fatalf("expected 17 slots (one occupied), got %d", len(slots))
	}
	for _, slot := range slots {
		if slot.Start.String() == "09:00" {
			t.Error("09:00 should be occupied by the scheduled appointment")
		}
	}
	if !hasSlot(slots, "10:00") || !hasSlot(slots, "10:30") {
		t.Error("cancelled appointments must not occupy slots")
	}
}

func TestAvailabilityIdempotent(t *testing.T) {
	repo := newFakeRepo()
	doctor := repo.addDoctor("Dr. Vega", "Dermatology")
	repo.addBlock(doctor.ID, Monday, NewTimeOfDay(9, 0), NewTimeOfDay(11, 0))

	svc, _ := newTestService(repo)

	first, err := svc.Availability(context.Background(), doctor.ID, monday)
	if err != nil {
		t.Fatalf("Availability: %v", err)
	}
	second, err := svc.Availability(context.Background(), doctor.ID, monday)
	if err != nil {
		t.Fatalf("Availability: %v", err)
	}

	if len(first) != len(second) {
		t.Fatalf("lengths differ: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("slot %d differs: %v vs %v", i, first[i], second[i])
		}
	}
}

func TestAvailabilityShortBlock(t *testing.T) {
	repo := newFakeRepo()
	doctor := repo.addDoctor("Dr. Vega", "Dermatology")
	repo.addBlock(doctor.ID, Monday, NewTimeOfDay(14, 0), NewTimeOfDay(15, 30))

	svc, _ := newTestService(repo)

	slots, err := svc.Availability(context.Background(), doctor.ID, monday)
	if err != nil {
		t.Fatalf("Availability: %v", err)
	}

	want := []string{"14:00", "14:30", "15:00"}
	if len(slots) != len(want) {
		t.Fatalf("expected %d slots, got %d", len(want), len(slots))
	}
	for i, w := range want {
		if slots[i].Start.String() != w {
			t.Errorf("slot %d = %s, want %s", i, slots[i].Start, w)
		}
	}
}

func hasSlot(slots []Slot, start string) bool {
	for _, s := range slots {
		if s.Start.String() == start {
			return true
		}
	}
	return false
}
