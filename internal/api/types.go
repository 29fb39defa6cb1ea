package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/medsched/clinic-booking/internal/scheduling"
)

type ScheduleAppointmentRequest struct {
	PatientEmail string    `json:"patient_email" validate:"required,email"`
	DoctorID     string    `json:"doctor_id" validate:"required,uuid"`
	StartTime    time.Time `json:"start_time" validate:"required"`
}

type BlockRequest struct {
	Weekday string `json:"weekday" validate:"required"`
	Start   string `json:"start" validate:"required"`
	End     string `json:"end" validate:"required"`
}

type AppointmentResponse struct {
	ID            uuid.UUID `json:"id"`
	DoctorID      uuid.UUID `json:"doctor_id"`
	PatientID     uuid.UUID `json:"patient_id"`
	DoctorName    string    `json:"doctor_name"`
	PatientName   string    `json:"patient_name"`
	SpecialtyName string    `json:"specialty_name"`
	StartTime     time.Time `json:"start_time"`
	EndTime       time.Time `json:"end_time"`
	Status        string    `json:"status"`
}

type SlotResponse struct {
	Start string `json:"start"`
}

type AvailabilityResponse struct {
	DoctorID uuid.UUID      `json:"doctor_id"`
	Date     string         `json:"date"`
	Slots    []SlotResponse `json:"slots"`
}

type SpecialtyResponse struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}

type BlockResponse struct {
	ID      uuid.UUID `json:"id"`
	Weekday string    `json:"weekday"`
	Start   string    `json:"start"`
	End     string    `json:"end"`
}

type AgendaEntryResponse struct {
	AppointmentID uuid.UUID `json:"appointment_id"`
	PatientName   string    `json:"patient_name"`
	StartTime     time.Time `json:"start_time"`
	EndTime       time.Time `json:"end_time"`
	Status        string    `json:"status"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func toAppointmentResponse(v scheduling.AppointmentView) AppointmentResponse {
	return AppointmentResponse{
		ID:            v.ID,
		DoctorID:      v.DoctorID,
		PatientID:     v.PatientID,
		DoctorName:    v.DoctorName,
		PatientName:   v.PatientName,
		SpecialtyName: v.SpecialtyName,
		StartTime:     v.StartTime,
		EndTime:       v.EndTime,
		Status:        string(v.Status),
	}
}

func toBlockResponse(b scheduling.WeeklyBlock) BlockResponse {
	return BlockResponse{
		ID:      b.ID,
		Weekday: string(b.Weekday),
		Start:   b.Start.String(),
		End:     b.End.String(),
	}
}
