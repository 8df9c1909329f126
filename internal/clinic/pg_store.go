package clinic

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Querier is the slice of pgxpool.Pool the store needs. pgxmock satisfies it
// too, which keeps the adapter testable without a live database.
type Querier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type PgStore struct {
	q   Querier
	loc *time.Location
}

func NewPgStore(q Querier, loc *time.Location) *PgStore {
	return &PgStore{q: q, loc: loc}
}

var _ Store = (*PgStore)(nil)

func (s *PgStore) ListSpecialties(ctx context.Context) ([]Specialty, error) {
	rows, err := s.q.Query(ctx, `
		SELECT name
		FROM specialties
		ORDER BY name
	`)
	if err != nil {
		return nil, fmt.Errorf("list specialties: %w", err)
	}
	defer rows.Close()

	var result []Specialty
	for rows.Next() {
		var sp Specialty
		if err := rows.Scan(&sp.Name); err != nil {
			return nil, err
		}
		result = append(result, sp)
	}
	return result, rows.Err()
}

func (s *PgStore) ListDoctorsBySpecialty(ctx context.Context, specialty string) ([]Doctor, error) {
	rows, err := s.q.Query(ctx, `
		SELECT id, name, specialty, experience
		FROM doctors
		WHERE specialty = $1
		ORDER BY experience DESC
	`, specialty)
	if err != nil {
		return nil, fmt.Errorf("list doctors: %w", err)
	}
	defer rows.Close()

	var result []Doctor
	for rows.Next() {
		var d Doctor
		if err := rows.Scan(&d.ID, &d.Name, &d.Specialty, &d.Experience); err != nil {
			return nil, err
		}
		result = append(result, d)
	}
	return result, rows.Err()
}

func (s *PgStore) GetDoctor(ctx context.Context, id int64) (*Doctor, error) {
	row := s.q.QueryRow(ctx, `
		SELECT id, name, specialty, experience
		FROM doctors
		WHERE id = $1
	`, id)

	var d Doctor
	if err := row.Scan(&d.ID, &d.Name, &d.Specialty, &d.Experience); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDoctorNotFound
		}
		return nil, err
	}
	return &d, nil
}

func (s *PgStore) ListBookedTimes(ctx context.Context, doctorID int64, day time.Time) ([]time.Time, error) {
	rows, err := s.q.Query(ctx, `
		SELECT at
		FROM appointments
		WHERE doctor_id = $1 AND day = $2
		ORDER BY at
	`, doctorID, DayKey(day, s.loc))
	if err != nil {
		return nil, fmt.Errorf("list booked times: %w", err)
	}
	defer rows.Close()

	var result []time.Time
	for rows.Next() {
		var at time.Time
		if err := rows.Scan(&at); err != nil {
			return nil, err
		}
		result = append(result, Normalize(at, s.loc))
	}
	return result, rows.Err()
}

func (s *PgStore) ListDayAppointments(ctx context.Context, doctorID int64, day time.Time) ([]DayAppointment, error) {
	rows, err := s.q.Query(ctx, `
		SELECT a.at, p.name
		FROM appointments a
		JOIN profiles p ON p.phone = a.patient_phone
		WHERE a.doctor_id = $1 AND a.day = $2
		ORDER BY a.at
	`, doctorID, DayKey(day, s.loc))
	if err != nil {
		return nil, fmt.Errorf("list day appointments: %w", err)
	}
	defer rows.Close()

	var result []DayAppointment
	for rows.Next() {
		var rec DayAppointment
		if err := rows.Scan(&rec.At, &rec.PatientName); err != nil {
			return nil, err
		}
		rec.At = Normalize(rec.At, s.loc)
		result = append(result, rec)
	}
	return result, rows.Err()
}

func (s *PgStore) InsertAppointment(ctx context.Context, doctorID int64, phone string, at time.Time) (*Appointment, error) {
	at = Normalize(at, s.loc)
	id := uuid.New()

	_, err := s.q.Exec(ctx, `
		INSERT INTO appointments (id, doctor_id, patient_phone, at, day)
		VALUES ($1, $2, $3, $4, $5)
	`, id, doctorID, phone, at, DayKey(at, s.loc))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, ErrDuplicateAppointment
		}
		return nil, fmt.Errorf("insert appointment: %w", err)
	}

	return &Appointment{ID: id, DoctorID: doctorID, PatientPhone: phone, At: at}, nil
}

func (s *PgStore) FindProfile(ctx context.Context, phone string) (*Profile, error) {
	row := s.q.QueryRow(ctx, `
		SELECT phone, name, age
		FROM profiles
		WHERE phone = $1
	`, phone)

	var p Profile
	if err := row.Scan(&p.Phone, &p.Name, &p.Age); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProfileNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (s *PgStore) UpsertProfile(ctx context.Context, phone, name string, age int) (*Profile, error) {
	_, err := s.q.Exec(ctx, `
		INSERT INTO profiles (phone, name, age)
		VALUES ($1, $2, $3)
		ON CONFLICT (phone) DO UPDATE
		SET name = EXCLUDED.name, age = EXCLUDED.age
	`, phone, name, age)
	if err != nil {
		return nil, fmt.Errorf("upsert profile: %w", err)
	}
	return &Profile{Phone: phone, Name: name, Age: age}, nil
}

func (s *PgStore) FindDayBooking(ctx context.Context, phone string, doctorID int64, day time.Time) (*Appointment, error) {
	row := s.q.QueryRow(ctx, `
		SELECT id, doctor_id, patient_phone, at
		FROM appointments
		WHERE patient_phone = $1 AND doctor_id = $2 AND day = $3
	`, phone, doctorID, DayKey(day, s.loc))

	var a Appointment
	if err := row.Scan(&a.ID, &a.DoctorID, &a.PatientPhone, &a.At); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	a.At = Normalize(a.At, s.loc)
	return &a, nil
}
