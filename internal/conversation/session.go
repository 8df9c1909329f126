package conversation

import "github.com/clinicbridge/clinic-bot/internal/clinic"

// PatientState enumerates the patient booking flow. Undefined transitions
// re-prompt within the current state; they never advance the machine.
type PatientState int

const (
	PatientEntry PatientState = iota
	PatientGettingName
	PatientGettingAge
	PatientGettingPhoneNew
	PatientGettingPhoneRegular
	PatientConfirmExistingProfile
	// PatientChoosingDoctor has the specialty list on screen and waits for
	// a specialty pick, which renders that specialty's doctors.
	PatientChoosingDoctor
	// PatientChoosingSlot covers the doctor list and the slot grid: doctor
	// picks, day pagination, and concrete slot picks all land here.
	PatientChoosingSlot
	PatientPostBooking
)

type PatientSession struct {
	State PatientState

	// registration in progress
	RegName string
	RegAge  int

	// set while ConfirmExistingProfile waits for an answer
	PendingPhone   string
	PendingProfile *clinic.Profile

	// confirmed identity
	PatientName  string
	PatientPhone string

	SelectedSpecialty string
	SelectedDoctorID  int64
}

// DoctorState enumerates the doctor record-viewing flow.
type DoctorState int

const (
	DoctorAuthenticating DoctorState = iota
	DoctorViewingOptions
	DoctorGettingDate
	DoctorPostViewing
)

type DoctorSession struct {
	State      DoctorState
	DoctorID   int64
	DoctorName string
}
