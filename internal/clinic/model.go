package clinic

import (
	"time"

	"github.com/google/uuid"
)

type Specialty struct {
	Name string
}

type Doctor struct {
	ID         int64
	Name       string
	Specialty  string
	Experience int // years, used for display ordering
}

type Profile struct {
	Phone string
	Name  string
	Age   int
}

// Appointment is immutable once created; there is no update or delete path.
type Appointment struct {
	ID           uuid.UUID
	DoctorID     int64
	PatientPhone string
	At           time.Time
}

// DayAppointment is the read-model row for a doctor's day view and export.
type DayAppointment struct {
	At          time.Time
	PatientName string
}
