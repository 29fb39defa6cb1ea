package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	redisclient "github.com/medsched/clinic-booking/internal/redis"
	"github.com/medsched/clinic-booking/internal/scheduling"
)

const dateLayout = "2006-01-02"

var validate = validator.New()

func availabilityHandler(svc *scheduling.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doctorID, ok := parseUUIDParam(w, r, "doctorID")
		if !ok {
			return
		}

		date, err := time.Parse(dateLayout, r.URL.Query().Get("date"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_date", "date must be formatted YYYY-MM-DD")
			return
		}

		slots, err := svc.Availability(r.Context(), doctorID, date)
		if err != nil {
			handleLookupError(w, err)
			return
		}

		resp := AvailabilityResponse{
			DoctorID: doctorID,
			Date:     date.Format(dateLayout),
			Slots:    make([]SlotResponse, 0, len(slots)),
		}
		for _, slot := range slots {
			resp.Slots = append(resp.Slots, SlotResponse{Start: slot.Start.String()})
		}

		writeJSON(w, http.StatusOK, resp)
	}
}

func scheduleAppointmentHandler(svc *scheduling.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ScheduleAppointmentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}
		if err := validate.Struct(req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
			return
		}

		doctorID, err := uuid.Parse(req.DoctorID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_doctor_id", "doctor_id must be a valid UUID")
			return
		}

		view, err := svc.ScheduleAppointment(r.Context(), req.PatientEmail, doctorID, req.StartTime)
		if err != nil {
			handleBookingError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, toAppointmentResponse(*view))
	}
}

func upcomingAppointmentsHandler(svc *scheduling.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		email := chi.URLParam(r, "email")

		views, err := svc.UpcomingAppointments(r.Context(), email)
		if err != nil {
			handleLookupError(w, err)
			return
		}

		resp := make([]AppointmentResponse, 0, len(views))
		for _, v := range views {
			resp = append(resp, toAppointmentResponse(v))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func doctorAgendaHandler(svc *scheduling.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		email := r.URL.Query().Get("email")
		if email == "" {
			writeError(w, http.StatusBadRequest, "missing_email", "email query parameter is required")
			return
		}

		date, err := time.Parse(dateLayout, r.URL.Query().Get("date"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_date", "date must be formatted YYYY-MM-DD")
			return
		}

		entries, err := svc.DoctorAgenda(r.Context(), email, date)
		if err != nil {
			handleLookupError(w, err)
			return
		}

		resp := make([]AgendaEntryResponse, 0, len(entries))
		for _, e := range entries {
			resp = append(resp, AgendaEntryResponse{
				AppointmentID: e.AppointmentID,
				PatientName:   e.PatientName,
				StartTime:     e.StartTime,
				EndTime:       e.EndTime,
				Status:        string(e.Status),
			})
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func listSpecialtiesHandler(svc *scheduling.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		specialties, err := svc.ListSpecialties(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
			return
		}

		resp := make([]SpecialtyResponse, 0, len(specialties))
		for _, s := range specialties {
			resp = append(resp, SpecialtyResponse{ID: s.ID, Name: s.Name})
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func listAppointmentsHandler(svc *scheduling.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		views, err := svc.ListAppointments(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
			return
		}

		resp := make([]AppointmentResponse, 0, len(views))
		for _, v := range views {
			resp = append(resp, toAppointmentResponse(v))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func cancelAppointmentHandler(svc *scheduling.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseUUIDParam(w, r, "id")
		if !ok {
			return
		}

		if err := svc.CancelAppointment(r.Context(), id); err != nil {
			handleCancelError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func cancelOwnAppointmentHandler(svc *scheduling.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		email := chi.URLParam(r, "email")
		id, ok := parseUUIDParam(w, r, "id")
		if !ok {
			return
		}

		if err := svc.CancelOwnAppointment(r.Context(), email, id); err != nil {
			handleCancelError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func listScheduleHandler(svc *scheduling.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doctorID, ok := parseUUIDParam(w, r, "doctorID")
		if !ok {
			return
		}

		blocks, err := svc.ListSchedule(r.Context(), doctorID)
		if err != nil {
			handleLookupError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toBlockResponses(blocks))
	}
}

func addBlockHandler(svc *scheduling.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doctorID, ok := parseUUIDParam(w, r, "doctorID")
		if !ok {
			return
		}

		var req BlockRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}
		spec, ok := parseBlockRequest(w, req)
		if !ok {
			return
		}

		block, err := svc.AddBlock(r.Context(), doctorID, spec)
		if err != nil {
			handleScheduleError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, toBlockResponse(*block))
	}
}

func replaceScheduleHandler(svc *scheduling.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doctorID, ok := parseUUIDParam(w, r, "doctorID")
		if !ok {
			return
		}

		var reqs []BlockRequest
		if err := json.NewDecoder(r.Body).Decode(&reqs); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		specs := make([]scheduling.BlockSpec, 0, len(reqs))
		for _, req := range reqs {
			spec, ok := parseBlockRequest(w, req)
			if !ok {
				return
			}
			specs = append(specs, spec)
		}

		blocks, err := svc.ReplaceSchedule(r.Context(), doctorID, specs)
		if err != nil {
			handleScheduleError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toBlockResponses(blocks))
	}
}

func removeBlockHandler(svc *scheduling.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doctorID, ok := parseUUIDParam(w, r, "doctorID")
		if !ok {
			return
		}
		blockID, ok := parseUUIDParam(w, r, "blockID")
		if !ok {
			return
		}

		if err := svc.RemoveBlock(r.Context(), doctorID, blockID); err != nil {
			handleScheduleError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func deactivateDoctorHandler(svc *scheduling.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doctorID, ok := parseUUIDParam(w, r, "doctorID")
		if !ok {
			return
		}

		if err := svc.DeactivateDoctor(r.Context(), doctorID); err != nil {
			handleLookupError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// Helpers

func parseUUIDParam(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_"+name, name+" must be a valid UUID")
		return uuid.Nil, false
	}
	return id, true
}

func parseBlockRequest(w http.ResponseWriter, req BlockRequest) (scheduling.BlockSpec, bool) {
	if err := validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_block", err.Error())
		return scheduling.BlockSpec{}, false
	}

	day, err := scheduling.ParseWeekday(req.Weekday)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_weekday", err.Error())
		return scheduling.BlockSpec{}, false
	}
	start, err := scheduling.ParseTimeOfDay(req.Start)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_start", err.Error())
		return scheduling.BlockSpec{}, false
	}
	end, err := scheduling.ParseTimeOfDay(req.End)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_end", err.Error())
		return scheduling.BlockSpec{}, false
	}

	return scheduling.BlockSpec{Weekday: day, Start: start, End: end}, true
}

func toBlockResponses(blocks []scheduling.WeeklyBlock) []BlockResponse {
	resp := make([]BlockResponse, 0, len(blocks))
	for _, b := range blocks {
		resp = append(resp, toBlockResponse(b))
	}
	return resp
}

// Error mapping

func handleLookupError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, scheduling.ErrDoctorNotFound):
		writeError(w, http.StatusNotFound, "doctor_not_found", err.Error())
	case errors.Is(err, scheduling.ErrPatientNotFound):
		writeError(w, http.StatusNotFound, "patient_not_found", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}

func handleBookingError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, scheduling.ErrDoctorNotFound):
		writeError(w, http.StatusNotFound, "doctor_not_found", err.Error())
	case errors.Is(err, scheduling.ErrPatientNotFound):
		writeError(w, http.StatusNotFound, "patient_not_found", err.Error())
	case errors.Is(err, scheduling.ErrPastAppointment):
		writeError(w, http.StatusConflict, "past_appointment", err.Error())
	case errors.Is(err, scheduling.ErrSpecialtyConflict):
		writeError(w, http.StatusConflict, "specialty_conflict", err.Error())
	case errors.Is(err, scheduling.ErrOverlappingAppointment):
		writeError(w, http.StatusConflict, "overlapping_appointment", err.Error())
	case errors.Is(err, scheduling.ErrSlotUnavailable):
		writeError(w, http.StatusConflict, "slot_unavailable", err.Error())
	case errors.Is(err, scheduling.ErrSlotBeingBooked),
		errors.Is(err, redisclient.ErrLockNotAcquired):
		writeError(w, http.StatusConflict, "slot_being_booked", "slot is currently being booked, please retry shortly")
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}

func handleScheduleError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, scheduling.ErrDoctorNotFound):
		writeError(w, http.StatusNotFound, "doctor_not_found", err.Error())
	case errors.Is(err, scheduling.ErrBlockNotFound):
		writeError(w, http.StatusNotFound, "block_not_found", err.Error())
	case errors.Is(err, scheduling.ErrInvalidBlock):
		writeError(w, http.StatusBadRequest, "invalid_block", err.Error())
	case errors.Is(err, scheduling.ErrDuplicateWeekday):
		writeError(w, http.StatusConflict, "duplicate_weekday", err.Error())
	case errors.Is(err, scheduling.ErrBlockNotOwned):
		writeError(w, http.StatusForbidden, "block_not_owned", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}

func handleCancelError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, scheduling.ErrAppointmentNotFound):
		writeError(w, http.StatusNotFound, "appointment_not_found", err.Error())
	case errors.Is(err, scheduling.ErrPatientNotFound):
		writeError(w, http.StatusNotFound, "patient_not_found", err.Error())
	case errors.Is(err, scheduling.ErrAppointmentNotOwned):
		writeError(w, http.StatusForbidden, "appointment_not_owned", err.Error())
	case errors.Is(err, scheduling.ErrInvalidStatusTransition):
		writeError(w, http.StatusConflict, "invalid_status_transition", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}
