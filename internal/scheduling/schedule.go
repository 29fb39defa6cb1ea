package scheduling

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// BlockSpec is the caller-supplied shape of one weekly working-hour interval.
type BlockSpec struct {
	Weekday Weekday
	Start   TimeOfDay
	End     TimeOfDay
}

func validateBlockSpecs(specs []BlockSpec) error {
	seen := make(map[Weekday]bool, len(specs))
	for _, spec := range specs {
		if !spec.Start.Before(spec.End) {
			return fmt.Errorf("%w (%s %s-%s)", ErrInvalidBlock, spec.Weekday, spec.Start, spec.End)
		}
		if seen[spec.Weekday] {
			return fmt.Errorf("%w (%s)", ErrDuplicateWeekday, spec.Weekday)
		}
		seen[spec.Weekday] = true
	}
	return nil
}

// AddBlock appends a single working-hour block to a doctor's template. A
// doctor holds at most one block per weekday; a second one is rejected.
func (s *Service) AddBlock(ctx context.Context, doctorID uuid.UUID, spec BlockSpec) (*WeeklyBlock, error) {
	if err := validateBlockSpecs([]BlockSpec{spec}); err != nil {
		return nil, err
	}
	if _, err := s.repo.GetDoctorByID(ctx, doctorID); err != nil {
		return nil, err
	}

	if _, err := s.repo.GetBlock(ctx, doctorID, spec.Weekday); err == nil {
		return nil, fmt.Errorf("%w (%s)", ErrDuplicateWeekday, spec.Weekday)
	} else if !errors.Is(err, ErrBlockNotFound) {
		return nil, fmt.Errorf("check existing block: %w", err)
	}

	return s.repo.InsertBlock(ctx, WeeklyBlock{
		ID:       uuid.New(),
		DoctorID: doctorID,
		Weekday:  spec.Weekday,
		Start:    spec.Start,
		End:      spec.End,
	})
}

// ListSchedule returns a doctor's full weekly template.
func (s *Service) ListSchedule(ctx context.Context, doctorID uuid.UUID) ([]WeeklyBlock, error) {
	if _, err := s.repo.GetDoctorByID(ctx, doctorID); err != nil {
		return nil, err
	}
	return s.repo.ListBlocks(ctx, doctorID)
}

// RemoveBlock deletes one block, refusing blocks owned by another doctor.
func (s *Service) RemoveBlock(ctx context.Context, doctorID, blockID uuid.UUID) error {
	block, err := s.repo.GetBlockByID(ctx, blockID)
	if err != nil {
		return err
	}
	if block.DoctorID != doctorID {
		return ErrBlockNotOwned
	}
	return s.repo.DeleteBlock(ctx, blockID)
}

// ReplaceSchedule atomically swaps a doctor's whole weekly template for a new
// one, then reconciles: every future scheduled appointment that the new
// template no longer covers is cancelled on the admin's behalf. Covered
// appointments are left untouched.
func (s *Service) ReplaceSchedule(ctx context.Context, doctorID uuid.UUID, specs []BlockSpec) ([]WeeklyBlock, error) {
	if err := validateBlockSpecs(specs); err != nil {
		return nil, err
	}
	if _, err := s.repo.GetDoctorByID(ctx, doctorID); err != nil {
		return nil, err
	}

	blocks := make([]WeeklyBlock, 0, len(specs))
	for _, spec := range specs {
		blocks = append(blocks, WeeklyBlock{
			ID:       uuid.New(),
			DoctorID: doctorID,
			Weekday:  spec.Weekday,
			Start:    spec.Start,
			End:      spec.End,
		})
	}

	saved, err := s.repo.ReplaceBlocks(ctx, doctorID, blocks)
	if err != nil {
		return nil, fmt.Errorf("replace schedule blocks: %w", err)
	}

	s.reconcile(ctx, doctorID, saved)

	return saved, nil
}

// ReconcileDoctor re-runs coverage reconciliation against the doctor's
// current template. Reconciliation is idempotent, so this is safe to invoke
// repeatedly; the sweeper worker uses it to pick up interrupted runs.
func (s *Service) ReconcileDoctor(ctx context.Context, doctorID uuid.UUID) error {
	blocks, err := s.repo.ListBlocks(ctx, doctorID)
	if err != nil {
		return fmt.Errorf("load schedule blocks: %w", err)
	}
	s.reconcile(ctx, doctorID, blocks)
	return nil
}

// reconcile cancels every future scheduled appointment not covered by the
// given template. Appointments are evaluated independently; a store error on
// one is logged and the batch continues.
func (s *Service) reconcile(ctx context.Context, doctorID uuid.UUID, blocks []WeeklyBlock) {
	future, err := s.repo.ListFutureScheduledByDoctor(ctx, doctorID, s.now())
	if err != nil {
		s.log.Error("reconcile: load future appointments", zap.Stringer("doctor_id", doctorID), zap.Error(err))
		return
	}

	for _, appt := range future {
		if coveredBy(blocks, appt.StartTime) {
			continue
		}
		if _, err := s.repo.UpdateAppointmentStatus(ctx, appt.ID, StatusScheduled, StatusCancelledByAdmin); err != nil {
			if errors.Is(err, ErrAppointmentNotFound) {
				// Already cancelled by an earlier, interrupted run.
				continue
			}
			s.log.Warn("reconcile: cancel appointment",
				zap.Stringer("appointment_id", appt.ID), zap.Error(err))
			continue
		}
		s.log.Info("reconcile: appointment cancelled, no longer covered by schedule",
			zap.Stringer("appointment_id", appt.ID),
			zap.Stringer("doctor_id", doctorID),
			zap.Time("start", appt.StartTime),
		)
	}
}

// coveredBy reports whether the appointment start falls inside a template
// block for its weekday, in the half-open interval [block.Start, block.End).
func coveredBy(blocks []WeeklyBlock, start time.Time) bool {
	day := WeekdayOf(start)
	tod := TimeOfDayFrom(start)
	for _, block := range blocks {
		if block.Weekday != day {
			continue
		}
		if !tod.Before(block.Start) && tod.Before(block.End) {
			return true
		}
	}
	return false
}

// DeactivateDoctor disables a doctor and cancels all their future scheduled
// appointments, reusing the reconciliation cancellation path with an empty
// template (nothing is covered).
func (s *Service) DeactivateDoctor(ctx context.Context, doctorID uuid.UUID) error {
	if _, err := s.repo.GetDoctorByID(ctx, doctorID); err != nil {
		return err
	}
	if err := s.repo.DeactivateDoctor(ctx, doctorID); err != nil {
		return fmt.Errorf("deactivate doctor: %w", err)
	}
	s.reconcile(ctx, doctorID, nil)
	return nil
}
