package scheduling

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

// Helpers

func scanDoctor(row pgx.Row) (*Doctor, error) {
	var d Doctor
	err := row.Scan(
		&d.ID,
		&d.Name,
		&d.Email,
		&d.SpecialtyID,
		&d.SpecialtyName,
		&d.Active,
		&d.CreatedAt,
		&d.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDoctorNotFound
		}
		return nil, err
	}
	return &d, nil
}

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	err := row.Scan(
		&p.ID,
		&p.Name,
		&p.Email,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPatientNotFound
		}
		return nil, err
	}
	return &p, nil
}

func scanBlock(row pgx.Row) (*WeeklyBlock, error) {
	var b WeeklyBlock
	var startMinute, endMinute int
	err := row.Scan(
		&b.ID,
		&b.DoctorID,
		&b.Weekday,
		&startMinute,
		&endMinute,
		&b.CreatedAt,
		&b.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrBlockNotFound
		}
		return nil, err
	}
	b.Start = TimeOfDay(startMinute)
	b.End = TimeOfDay(endMinute)
	return &b, nil
}

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	err := row.Scan(
		&a.ID,
		&a.PatientID,
		&a.DoctorID,
		&a.StartTime,
		&a.EndTime,
		&a.Status,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}
	return &a, nil
}

const doctorColumns = `
	d.id, d.name, d.email, d.specialty_id, s.name, d.active, d.created_at, d.updated_at
`

// Interface methods

func (r *PgRepository) ListSpecialties(ctx context.Context) ([]Specialty, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, created_at, updated_at
		FROM specialties
		ORDER BY name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Specialty
	for rows.Next() {
		var s Specialty
		if err := rows.Scan(&s.ID, &s.Name, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, err
		}
		result = append(result, s)
	}
	return result, rows.Err()
}

func (r *PgRepository) GetDoctorByID(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+doctorColumns+`
		FROM doctors d
		JOIN specialties s ON s.id = d.specialty_id
		WHERE d.id = $1
	`, id)
	return scanDoctor(row)
}

func (r *PgRepository) GetDoctorByEmail(ctx context.Context, email string) (*Doctor, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+doctorColumns+`
		FROM doctors d
		JOIN specialties s ON s.id = d.specialty_id
		WHERE d.email = $1
	`, email)
	return scanDoctor(row)
}

func (r *PgRepository) GetPatientByEmail(ctx context.Context, email string) (*Patient, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, name, email, created_at, updated_at
		FROM patients
		WHERE email = $1
	`, email)
	return scanPatient(row)
}

func (r *PgRepository) ListDoctorIDs(ctx context.Context) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx, `SELECT id FROM doctors WHERE active`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *PgRepository) DeactivateDoctor(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE doctors SET active = false, updated_at = now() WHERE id = $1
	`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrDoctorNotFound
	}
	return nil
}

func (r *PgRepository) GetBlock(ctx context.Context, doctorID uuid.UUID, day Weekday) (*WeeklyBlock, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, doctor_id, weekday, start_minute, end_minute, created_at, updated_at
		FROM schedule_blocks
		WHERE doctor_id = $1 AND weekday = $2
	`, doctorID, day)
	return scanBlock(row)
}

func (r *PgRepository) GetBlockByID(ctx context.Context, id uuid.UUID) (*WeeklyBlock, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, doctor_id, weekday, start_minute, end_minute, created_at, updated_at
		FROM schedule_blocks
		WHERE id = $1
	`, id)
	return scanBlock(row)
}

func (r *PgRepository) ListBlocks(ctx context.Context, doctorID uuid.UUID) ([]WeeklyBlock, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, doctor_id, weekday, start_minute, end_minute, created_at, updated_at
		FROM schedule_blocks
		WHERE doctor_id = $1
		ORDER BY array_position(
			ARRAY['MONDAY','TUESDAY','WEDNESDAY','THURSDAY','FRIDAY','SATURDAY','SUNDAY'], weekday)
	`, doctorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectBlocks(rows)
}

func (r *PgRepository) InsertBlock(ctx context.Context, block WeeklyBlock) (*WeeklyBlock, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO schedule_blocks (id, doctor_id, weekday, start_minute, end_minute, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, now(), now())
		RETURNING id, doctor_id, weekday, start_minute, end_minute, created_at, updated_at
	`, block.ID, block.DoctorID, block.Weekday, int(block.Start), int(block.End))

	inserted, err := scanBlock(row)
	if err != nil {
		// A concurrent insert can slip past the service-level weekday check;
		// the UNIQUE (doctor_id, weekday) constraint is the backstop.
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, fmt.Errorf("%w (%s)", ErrDuplicateWeekday, block.Weekday)
		}
		return nil, err
	}
	return inserted, nil
}

func (r *PgRepository) DeleteBlock(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM schedule_blocks WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrBlockNotFound
	}
	return nil
}

func (r *PgRepository) ReplaceBlocks(ctx context.Context, doctorID uuid.UUID, blocks []WeeklyBlock) ([]WeeklyBlock, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM schedule_blocks WHERE doctor_id = $1`, doctorID); err != nil {
		return nil, fmt.Errorf("delete old blocks: %w", err)
	}

	saved := make([]WeeklyBlock, 0, len(blocks))
	for _, block := range blocks {
		row := tx.QueryRow(ctx, `
			INSERT INTO schedule_blocks (id, doctor_id, weekday, start_minute, end_minute, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, now(), now())
			RETURNING id, doctor_id, weekday, start_minute, end_minute, created_at, updated_at
		`, block.ID, block.DoctorID, block.Weekday, int(block.Start), int(block.End))
		inserted, err := scanBlock(row)
		if err != nil {
			return nil, fmt.Errorf("insert block %s: %w", block.Weekday, err)
		}
		saved = append(saved, *inserted)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return saved, nil
}

func (r *PgRepository) GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, patient_id, doctor_id, start_time, end_time, status, created_at, updated_at
		FROM appointments
		WHERE id = $1
	`, id)
	return scanAppointment(row)
}

func (r *PgRepository) ListDoctorAppointments(ctx context.Context, doctorID uuid.UUID, from, to time.Time) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, patient_id, doctor_id, start_time, end_time, status, created_at, updated_at
		FROM appointments
		WHERE doctor_id = $1 AND start_time >= $2 AND start_time < $3
		ORDER BY start_time
	`, doctorID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectAppointments(rows)
}

func (r *PgRepository) ListPatientAppointments(ctx context.Context, patientID uuid.UUID, from, to time.Time) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, patient_id, doctor_id, start_time, end_time, status, created_at, updated_at
		FROM appointments
		WHERE patient_id = $1 AND start_time >= $2 AND start_time < $3
		ORDER BY start_time
	`, patientID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectAppointments(rows)
}

func (r *PgRepository) HasActiveAppointmentInSpecialty(ctx context.Context, patientID, specialtyID uuid.UUID, asOf time.Time) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1
			FROM appointments a
			JOIN doctors d ON d.id = a.doctor_id
			WHERE a.patient_id = $1
			  AND d.specialty_id = $2
			  AND a.status = 'scheduled'
			  AND a.start_time > $3
		)
	`, patientID, specialtyID, asOf).Scan(&exists)
	return exists, err
}

func (r *PgRepository) ListFutureScheduledByDoctor(ctx context.Context, doctorID uuid.UUID, asOf time.Time) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, patient_id, doctor_id, start_time, end_time, status, created_at, updated_at
		FROM appointments
		WHERE doctor_id = $1 AND status = 'scheduled' AND start_time > $2
		ORDER BY start_time
	`, doctorID, asOf)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectAppointments(rows)
}

func (r *PgRepository) CreateAppointment(ctx context.Context, patientID, doctorID uuid.UUID, start, end time.Time) (*Appointment, error) {
	id := uuid.New()

	row := r.pool.QueryRow(ctx, `
		INSERT INTO appointments (id, patient_id, doctor_id, start_time, end_time, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, 'scheduled', now(), now())
		RETURNING id, patient_id, doctor_id, start_time, end_time, status, created_at, updated_at
	`, id, patientID, doctorID, start, end)

	appt, err := scanAppointment(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, ErrDuplicateStart
		}
		return nil, err
	}
	return appt, nil
}

func (r *PgRepository) UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, from, to AppointmentStatus) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE appointments
		SET status = $2,
		    updated_at = now()
		WHERE id = $1
		  AND status = $3
		RETURNING id, patient_id, doctor_id, start_time, end_time, status, created_at, updated_at
	`, id, to, from)
	return scanAppointment(row)
}

const viewColumns = `
	a.id, a.patient_id, a.doctor_id, a.start_time, a.end_time, a.status,
	a.created_at, a.updated_at, d.name, p.name, s.name
`

func scanView(rows pgx.Rows) (*AppointmentView, error) {
	var v AppointmentView
	err := rows.Scan(
		&v.ID,
		&v.PatientID,
		&v.DoctorID,
		&v.StartTime,
		&v.EndTime,
		&v.Status,
		&v.CreatedAt,
		&v.UpdatedAt,
		&v.DoctorName,
		&v.PatientName,
		&v.SpecialtyName,
	)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func (r *PgRepository) ListUpcomingViews(ctx context.Context, patientID uuid.UUID, asOf time.Time) ([]AppointmentView, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+viewColumns+`
		FROM appointments a
		JOIN doctors d ON d.id = a.doctor_id
		JOIN patients p ON p.id = a.patient_id
		JOIN specialties s ON s.id = d.specialty_id
		WHERE a.patient_id = $1 AND a.start_time > $2
		ORDER BY a.start_time
	`, patientID, asOf)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectViews(rows)
}

func (r *PgRepository) ListAllViews(ctx context.Context) ([]AppointmentView, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+viewColumns+`
		FROM appointments a
		JOIN doctors d ON d.id = a.doctor_id
		JOIN patients p ON p.id = a.patient_id
		JOIN specialties s ON s.id = d.specialty_id
		ORDER BY a.start_time DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectViews(rows)
}

func (r *PgRepository) ListDoctorAgenda(ctx context.Context, doctorID uuid.UUID, from, to time.Time) ([]AgendaEntry, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT a.id, p.name, a.start_time, a.end_time, a.status
		FROM appointments a
		JOIN patients p ON p.id = a.patient_id
		WHERE a.doctor_id = $1 AND a.start_time >= $2 AND a.start_time < $3
		ORDER BY a.start_time
	`, doctorID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []AgendaEntry
	for rows.Next() {
		var e AgendaEntry
		if err := rows.Scan(&e.AppointmentID, &e.PatientName, &e.StartTime, &e.EndTime, &e.Status); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func collectAppointments(rows pgx.Rows) ([]Appointment, error) {
	var result []Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}
	return result, rows.Err()
}

func collectBlocks(rows pgx.Rows) ([]WeeklyBlock, error) {
	var result []WeeklyBlock
	for rows.Next() {
		b, err := scanBlock(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *b)
	}
	return result, rows.Err()
}

func collectViews(rows pgx.Rows) ([]AppointmentView, error) {
	var result []AppointmentView
	for rows.Next() {
		v, err := scanView(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *v)
	}
	return result, rows.Err()
}
