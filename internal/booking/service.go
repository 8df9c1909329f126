// Package booking commits appointments while enforcing the one-appointment-
// per-patient-doctor-day invariant.
package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/clinicbridge/clinic-bot/internal/clinic"
	redisclient "github.com/clinicbridge/clinic-bot/internal/redis"
)

var (
	// ErrBookingFailed means the insert could not be committed. Unlike a
	// conflict, the caller is expected to end the session on it.
	ErrBookingFailed = errors.New("booking could not be committed")

	// ErrBookingContended means another booking for the same patient,
	// doctor and day holds the lock right now.
	ErrBookingContended = errors.New("booking in progress for this patient and day, please retry")
)

// ConflictError reports that the patient already holds an appointment with
// the same doctor on the same local calendar day. It carries what the
// conversation needs to render the existing booking.
type ConflictError struct {
	ExistingAt time.Time
	DoctorName string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("already booked with %s at %s", e.DoctorName, e.ExistingAt.Format("03:04 PM on Monday, Jan 02"))
}

type Service struct {
	store  clinic.Store
	locker redisclient.Locker
	loc    *time.Location
}

func NewService(store clinic.Store, locker redisclient.Locker, loc *time.Location) *Service {
	return &Service{
		store:  store,
		locker: locker,
		loc:    loc,
	}
}

// Book places an appointment for phone with doctorID at the given instant.
// The conflict check is day-scoped: any existing appointment for the triple
// (phone, doctor, local day) rejects the attempt regardless of which slot
// time was requested. Check and insert run under a per-triple lock, and the
// storage uniqueness constraint catches whatever slips past it.
func (s *Service) Book(ctx context.Context, doctorID int64, phone string, at time.Time) (*clinic.Appointment, error) {
	at = clinic.Normalize(at, s.loc)
	day := clinic.DayKey(at, s.loc)

	doctor, err := s.store.GetDoctor(ctx, doctorID)
	if err != nil {
		if errors.Is(err, clinic.ErrDoctorNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load doctor: %w", err)
	}

	var created *clinic.Appointment

	err = s.locker.WithBookingLock(ctx, phone, doctorID, day, func(lockCtx context.Context) error {
		existing, err := s.store.FindDayBooking(lockCtx, phone, doctorID, at)
		if err != nil {
			return fmt.Errorf("check existing booking: %w", err)
		}
		if existing != nil {
			return &ConflictError{ExistingAt: existing.At, DoctorName: doctor.Name}
		}

		appt, err := s.store.InsertAppointment(lockCtx, doctorID, phone, at)
		if err != nil {
			if errors.Is(err, clinic.ErrDuplicateAppointment) {
				// Constraint backstop fired: a concurrent booking won.
				// Report it as the conflict it is.
				return s.conflictFor(lockCtx, phone, doctorID, at, doctor.Name)
			}
			return fmt.Errorf("%w: %v", ErrBookingFailed, err)
		}

		created = appt
		return nil
	})

	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return nil, ErrBookingContended
		}
		return nil, err
	}

	return created, nil
}

func (s *Service) conflictFor(ctx context.Context, phone string, doctorID int64, day time.Time, doctorName string) error {
	existing, err := s.store.FindDayBooking(ctx, phone, doctorID, day)
	if err != nil || existing == nil {
		return fmt.Errorf("%w: duplicate appointment", ErrBookingFailed)
	}
	return &ConflictError{ExistingAt: existing.At, DoctorName: doctorName}
}
