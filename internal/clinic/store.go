package clinic

import (
	"context"
	"errors"
	"time"
)

var (
	ErrProfileNotFound      = errors.New("profile not found")
	ErrDoctorNotFound       = errors.New("doctor not found")
	ErrDuplicateAppointment = errors.New("appointment already exists for this patient, doctor and day")
)

// Store is the narrow capability set both backends implement. Conversation
// and booking logic never branch on which backend is behind it.
type Store interface {
	ListSpecialties(ctx context.Context) ([]Specialty, error)
	ListDoctorsBySpecialty(ctx context.Context, specialty string) ([]Doctor, error)
	GetDoctor(ctx context.Context, id int64) (*Doctor, error)

	// ListBookedTimes returns the booked instants for a doctor on a local
	// calendar day, normalized and ascending.
	ListBookedTimes(ctx context.Context, doctorID int64, day time.Time) ([]time.Time, error)

	// ListDayAppointments joins in the patient name for display and export.
	ListDayAppointments(ctx context.Context, doctorID int64, day time.Time) ([]DayAppointment, error)

	// InsertAppointment returns ErrDuplicateAppointment when the storage
	// uniqueness constraint on (patient_phone, doctor_id, day) fires.
	InsertAppointment(ctx context.Context, doctorID int64, phone string, at time.Time) (*Appointment, error)

	FindProfile(ctx context.Context, phone string) (*Profile, error)
	UpsertProfile(ctx context.Context, phone, name string, age int) (*Profile, error)

	// FindDayBooking is the conflict probe: any appointment held by phone
	// with doctorID on the same local calendar day as day, regardless of
	// the slot time that was requested.
	FindDayBooking(ctx context.Context, phone string, doctorID int64, day time.Time) (*Appointment, error)
}

// Normalize pins an instant to the store's location at minute precision.
// Both backends apply it on write and on read so that exact-instant
// equality between generated and stored slots is well defined.
func Normalize(t time.Time, loc *time.Location) time.Time {
	return t.In(loc).Truncate(time.Minute)
}

// DayKey renders the local calendar day of t as YYYY-MM-DD. It is the value
// stored in the day column and used in booking lock keys.
func DayKey(t time.Time, loc *time.Location) string {
	return t.In(loc).Format("2006-01-02")
}
