package scheduling

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	redisclient "github.com/medsched/clinic-booking/internal/redis"
)

var errLockContended = redisclient.ErrLockNotAcquired

// fakeRepo is an in-memory Repository for service tests.
type fakeRepo struct {
	specialties  map[uuid.UUID]*Specialty
	doctors      map[uuid.UUID]*Doctor
	patients     map[string]*Patient
	blocks       map[uuid.UUID]*WeeklyBlock
	appointments map[uuid.UUID]*Appointment

	// failStatusUpdate forces UpdateAppointmentStatus to fail for an ID.
	failStatusUpdate map[uuid.UUID]error
	createCalls      int
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		specialties:      make(map[uuid.UUID]*Specialty),
		doctors:          make(map[uuid.UUID]*Doctor),
		patients:         make(map[string]*Patient),
		blocks:           make(map[uuid.UUID]*WeeklyBlock),
		appointments:     make(map[uuid.UUID]*Appointment),
		failStatusUpdate: make(map[uuid.UUID]error),
	}
}

func (f *fakeRepo) addDoctor(name, specialtyName string) *Doctor {
	specialtyID := uuid.NewSHA1(uuid.NameSpaceOID, []byte(specialtyName))
	f.specialties[specialtyID] = &Specialty{ID: specialtyID, Name: specialtyName}
	d := &Doctor{
		ID:            uuid.New(),
		Name:          name,
		Email:         name + "@clinic.test",
		SpecialtyID:   specialtyID,
		SpecialtyName: specialtyName,
		Active:        true,
	}
	f.doctors[d.ID] = d
	return d
}

func (f *fakeRepo) ListSpecialties(_ context.Context) ([]Specialty, error) {
	result := make([]Specialty, 0, len(f.specialties))
	for _, s := range f.specialties {
		result = append(result, *s)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

func (f *fakeRepo) addPatient(name, email string) *Patient {
	p := &Patient{ID: uuid.New(), Name: name, Email: email}
	f.patients[email] = p
	return p
}

func (f *fakeRepo) addBlock(doctorID uuid.UUID, day Weekday, start, end TimeOfDay) *WeeklyBlock {
	b := &WeeklyBlock{ID: uuid.New(), DoctorID: doctorID, Weekday: day, Start: start, End: end}
	f.blocks[b.ID] = b
	return b
}

func (f *fakeRepo) addAppointment(patientID, doctorID uuid.UUID, start time.Time, status AppointmentStatus) *Appointment {
	a := &Appointment{
		ID:        uuid.New(),
		PatientID: patientID,
		DoctorID:  doctorID,
		StartTime: start,
		EndTime:   start.Add(SlotDuration),
		Status:    status,
	}
	f.appointments[a.ID] = a
	return a
}

func (f *fakeRepo) GetDoctorByID(_ context.Context, id uuid.UUID) (*Doctor, error) {
	if d, ok := f.doctors[id]; ok {
		copied := *d
		return &copied, nil
	}
	return nil, ErrDoctorNotFound
}

func (f *fakeRepo) GetDoctorByEmail(_ context.Context, email string) (*Doctor, error) {
	for _, d := range f.doctors {
		if d.Email == email {
			copied := *d
			return &copied, nil
		}
	}
	return nil, ErrDoctorNotFound
}

func (f *fakeRepo) GetPatientByEmail(_ context.Context, email string) (*Patient, error) {
	if p, ok := f.patients[email]; ok {
		copied := *p
		return &copied, nil
	}
	return nil, ErrPatientNotFound
}

func (f *fakeRepo) ListDoctorIDs(_ context.Context) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	for id, d := range f.doctors {
		if d.Active {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (f *fakeRepo) DeactivateDoctor(_ context.Context, id uuid.UUID) error {
	d, ok := f.doctors[id]
	if !ok {
		return ErrDoctorNotFound
	}
	d.Active = false
	return nil
}

func (f *fakeRepo) GetBlock(_ context.Context, doctorID uuid.UUID, day Weekday) (*WeeklyBlock, error) {
	for _, b := range f.blocks {
		if b.DoctorID == doctorID && b.Weekday == day {
			copied := *b
			return &copied, nil
		}
	}
	return nil, ErrBlockNotFound
}

func (f *fakeRepo) GetBlockByID(_ context.Context, id uuid.UUID) (*WeeklyBlock, error) {
	if b, ok := f.blocks[id]; ok {
		copied := *b
		return &copied, nil
	}
	return nil, ErrBlockNotFound
}

func (f *fakeRepo) ListBlocks(_ context.Context, doctorID uuid.UUID) ([]WeeklyBlock, error) {
	var result []WeeklyBlock
	for _, b := range f.blocks {
		if b.DoctorID == doctorID {
			result = append(result, *b)
		}
	}
	return result, nil
}

func (f *fakeRepo) InsertBlock(_ context.Context, block WeeklyBlock) (*WeeklyBlock, error) {
	for _, b := range f.blocks {
		if b.DoctorID == block.DoctorID && b.Weekday == block.Weekday {
			return nil, fmt.Errorf("%w (%s)", ErrDuplicateWeekday, block.Weekday)
		}
	}
	copied := block
	f.blocks[block.ID] = &copied
	returned := copied
	return &returned, nil
}

func (f *fakeRepo) DeleteBlock(_ context.Context, id uuid.UUID) error {
	if _, ok := f.blocks[id]; !ok {
		return ErrBlockNotFound
	}
	delete(f.blocks, id)
	return nil
}

func (f *fakeRepo) ReplaceBlocks(_ context.Context, doctorID uuid.UUID, blocks []WeeklyBlock) ([]WeeklyBlock, error) {
	for id, b := range f.blocks {
		if b.DoctorID == doctorID {
			delete(f.blocks, id)
		}
	}
	saved := make([]WeeklyBlock, 0, len(blocks))
	for _, b := range blocks {
		copied := b
		f.blocks[b.ID] = &copied
		saved = append(saved, copied)
	}
	return saved, nil
}

func (f *fakeRepo) GetAppointmentByID(_ context.Context, id uuid.UUID) (*Appointment, error) {
	if a, ok := f.appointments[id]; ok {
		copied := *a
		return &copied, nil
	}
	return nil, ErrAppointmentNotFound
}

func (f *fakeRepo) ListDoctorAppointments(_ context.Context, doctorID uuid.UUID, from, to time.Time) ([]Appointment, error) {
	var result []Appointment
	for _, a := range f.appointments {
		if a.DoctorID == doctorID && !a.StartTime.Before(from) && a.StartTime.Before(to) {
			result = append(result, *a)
		}
	}
	sortAppointments(result)
	return result, nil
}

func (f *fakeRepo) ListPatientAppointments(_ context.Context, patientID uuid.UUID, from, to time.Time) ([]Appointment, error) {
	var result []Appointment
	for _, a := range f.appointments {
		if a.PatientID == patientID && !a.StartTime.Before(from) && a.StartTime.Before(to) {
			result = append(result, *a)
		}
	}
	sortAppointments(result)
	return result, nil
}

func (f *fakeRepo) HasActiveAppointmentInSpecialty(_ context.Context, patientID, specialtyID uuid.UUID, asOf time.Time) (bool, error) {
	for _, a := range f.appointments {
		if a.PatientID != patientID || a.Status != StatusScheduled || !a.StartTime.After(asOf) {
			continue
		}
		if d, ok := f.doctors[a.DoctorID]; ok && d.SpecialtyID == specialtyID {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeRepo) ListFutureScheduledByDoctor(_ context.Context, doctorID uuid.UUID, asOf time.Time) ([]Appointment, error) {
	var result []Appointment
	for _, a := range f.appointments {
		if a.DoctorID == doctorID && a.Status == StatusScheduled && a.StartTime.After(asOf) {
			result = append(result, *a)
		}
	}
	sortAppointments(result)
	return result, nil
}

func (f *fakeRepo) CreateAppointment(_ context.Context, patientID, doctorID uuid.UUID, start, end time.Time) (*Appointment, error) {
	f.createCalls++
	for _, a := range f.appointments {
		if a.DoctorID == doctorID && a.StartTime.Equal(start) && a.Status == StatusScheduled {
			return nil, ErrDuplicateStart
		}
	}
	a := f.addAppointment(patientID, doctorID, start, StatusScheduled)
	copied := *a
	return &copied, nil
}

func (f *fakeRepo) UpdateAppointmentStatus(_ context.Context, id uuid.UUID, from, to AppointmentStatus) (*Appointment, error) {
	if err, ok := f.failStatusUpdate[id]; ok {
		return nil, err
	}
	a, ok := f.appointments[id]
	if !ok || a.Status != from {
		return nil, ErrAppointmentNotFound
	}
	a.Status = to
	copied := *a
	return &copied, nil
}

func (f *fakeRepo) ListDoctorAgenda(_ context.Context, doctorID uuid.UUID, from, to time.Time) ([]AgendaEntry, error) {
	appts, _ := f.ListDoctorAppointments(nil, doctorID, from, to)
	entries := make([]AgendaEntry, 0, len(appts))
	for _, a := range appts {
		name := ""
		for _, p := range f.patients {
			if p.ID == a.PatientID {
				name = p.Name
			}
		}
		entries = append(entries, AgendaEntry{
			AppointmentID: a.ID,
			PatientName:   name,
			StartTime:     a.StartTime,
			EndTime:       a.EndTime,
			Status:        a.Status,
		})
	}
	return entries, nil
}

func (f *fakeRepo) ListUpcomingViews(_ context.Context, patientID uuid.UUID, asOf time.Time) ([]AppointmentView, error) {
	var result []AppointmentView
	for _, a := range f.appointments {
		if a.PatientID == patientID && a.StartTime.After(asOf) {
			result = append(result, f.view(*a))
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].StartTime.Before(result[j].StartTime) })
	return result, nil
}

func (f *fakeRepo) ListAllViews(_ context.Context) ([]AppointmentView, error) {
	var result []AppointmentView
	for _, a := range f.appointments {
		result = append(result, f.view(*a))
	}
	sort.Slice(result, func(i, j int) bool { return result[j].StartTime.Before(result[i].StartTime) })
	return result, nil
}

func (f *fakeRepo) view(a Appointment) AppointmentView {
	v := AppointmentView{Appointment: a}
	if d, ok := f.doctors[a.DoctorID]; ok {
		v.DoctorName = d.Name
		v.SpecialtyName = d.SpecialtyName
	}
	for _, p := range f.patients {
		if p.ID == a.PatientID {
			v.PatientName = p.Name
		}
	}
	return v
}

func sortAppointments(appts []Appointment) {
	sort.Slice(appts, func(i, j int) bool { return appts[i].StartTime.Before(appts[j].StartTime) })
}

// fakeLocker runs the critical section inline, or refuses when contended.
type fakeLocker struct {
	contended bool
	calls     int
}

func (l *fakeLocker) WithBookingLock(ctx context.Context, _ uuid.UUID, _ time.Time, fn func(ctx context.Context) error) error {
	l.calls++
	if l.contended {
		return errLockContended
	}
	return fn(ctx)
}

func newTestService(repo *fakeRepo) (*Service, *fakeLocker) {
	locker := &fakeLocker{}
	svc := NewService(repo, locker, zap.NewNop())
	return svc, locker
}
