package conversation

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/clinicbridge/clinic-bot/internal/booking"
	"github.com/clinicbridge/clinic-bot/internal/clinic"
	"github.com/clinicbridge/clinic-bot/internal/schedule"
)

const tryLaterText = "Sorry, the service is unavailable right now. Please try again later."

func entryReply() Reply {
	return Reply{
		Text: "Welcome to the appointment bot! Please let us know if you are a new or regular user.",
		Buttons: []Button{
			{Label: "I'm a First-time User", Data: "new_user"},
			{Label: "I'm a Regular User", Data: "regular_user"},
			{Label: "Stop", Data: choiceCancel},
		},
	}
}

func (e *Engine) handlePatientState(ctx context.Context, ev Event, s *PatientSession) (Reply, error) {
	switch s.State {
	case PatientEntry:
		return e.patientEntry(ev, s)
	case PatientGettingName:
		return e.patientGettingName(ev, s)
	case PatientGettingAge:
		return e.patientGettingAge(ev, s)
	case PatientGettingPhoneNew:
		return e.patientGettingPhoneNew(ctx, ev, s)
	case PatientGettingPhoneRegular:
		return e.patientGettingPhoneRegular(ctx, ev, s)
	case PatientConfirmExistingProfile:
		return e.patientConfirmExisting(ctx, ev, s)
	case PatientChoosingDoctor:
		return e.patientChoosingDoctor(ctx, ev, s)
	case PatientChoosingSlot:
		return e.patientChoosingSlot(ctx, ev, s)
	case PatientPostBooking:
		return e.patientPostBooking(ctx, ev, s)
	default:
		return e.endPatient(ev.ChatID, "Process cancelled."), nil
	}
}

func (e *Engine) patientEntry(ev Event, s *PatientSession) (Reply, error) {
	switch ev.Choice {
	case "new_user":
		s.State = PatientGettingName
		return Reply{Text: "Great! To register your profile, please tell me your full name."}, nil
	case "regular_user":
		s.State = PatientGettingPhoneRegular
		return Reply{Text: "Welcome back! Please enter your registered phone number to log in."}, nil
	default:
		return entryReply(), nil
	}
}

func (e *Engine) patientGettingName(ev Event, s *PatientSession) (Reply, error) {
	name := strings.TrimSpace(ev.Text)
	if name == "" {
		return Reply{Text: "Please tell me your full name."}, nil
	}
	s.RegName = name
	s.State = PatientGettingAge
	return Reply{Text: "Thank you. Now, please enter your age."}, nil
}

func (e *Engine) patientGettingAge(ev Event, s *PatientSession) (Reply, error) {
	age, err := strconv.Atoi(strings.TrimSpace(ev.Text))
	if err != nil || age <= 0 || age > 130 {
		return Reply{Text: "That doesn't look like an age. Please enter your age as a number."}, nil
	}
	s.RegAge = age
	s.State = PatientGettingPhoneNew
	return Reply{Text: "Perfect. Lastly, please provide your phone number. This will be used to create your account."}, nil
}

func (e *Engine) patientGettingPhoneNew(ctx context.Context, ev Event, s *PatientSession) (Reply, error) {
	phone := strings.TrimSpace(ev.Text)
	if phone == "" {
		return Reply{Text: "Please provide your phone number."}, nil
	}

	profile, err := e.store.FindProfile(ctx, phone)
	switch {
	case err == nil:
		// The number already belongs to someone; ask before adopting it.
		s.PendingPhone = phone
		s.PendingProfile = profile
		s.State = PatientConfirmExistingProfile
		return Reply{
			Text: fmt.Sprintf("This phone number is already registered to '%s'.\n\nDo you want to continue with this account?", profile.Name),
			Buttons: []Button{
				{Label: "Yes, continue with this account", Data: "continue_yes"},
				{Label: "No, use a different number", Data: "continue_no"},
			},
		}, nil
	case errors.Is(err, clinic.ErrProfileNotFound):
		if _, err := e.store.UpsertProfile(ctx, phone, s.RegName, s.RegAge); err != nil {
			return e.endPatient(ev.ChatID, tryLaterText), nil
		}
		s.PatientName = s.RegName
		s.PatientPhone = phone
		return e.showSpecialties(ctx, ev.ChatID, s, fmt.Sprintf("Thank you, %s! Your profile has been created.", s.RegName))
	default:
		return e.endPatient(ev.ChatID, tryLaterText), nil
	}
}

func (e *Engine) patientConfirmExisting(ctx context.Context, ev Event, s *PatientSession) (Reply, error) {
	switch ev.Choice {
	case "continue_yes":
		s.PatientName = s.PendingProfile.Name
		s.PatientPhone = s.PendingPhone
		s.PendingPhone = ""
		s.PendingProfile = nil
		return e.showSpecialties(ctx, ev.ChatID, s, fmt.Sprintf("Welcome back, %s!", s.PatientName))
	case "continue_no":
		s.PendingPhone = ""
		s.PendingProfile = nil
		s.State = PatientGettingPhoneNew
		return Reply{Text: "Understood. Please enter a new, unregistered phone number."}, nil
	default:
		return Reply{
			Text: "Please choose one of the options.",
			Buttons: []Button{
				{Label: "Yes, continue with this account", Data: "continue_yes"},
				{Label: "No, use a different number", Data: "continue_no"},
			},
		}, nil
	}
}

func (e *Engine) patientGettingPhoneRegular(ctx context.Context, ev Event, s *PatientSession) (Reply, error) {
	phone := strings.TrimSpace(ev.Text)
	if phone == "" {
		return Reply{Text: "Please enter your registered phone number."}, nil
	}

	profile, err := e.store.FindProfile(ctx, phone)
	switch {
	case err == nil:
		s.PatientName = profile.Name
		s.PatientPhone = phone
		return e.showSpecialties(ctx, ev.ChatID, s, fmt.Sprintf("Welcome back, %s!", profile.Name))
	case errors.Is(err, clinic.ErrProfileNotFound):
		// Recoverable: stay in state and re-prompt rather than terminate.
		return Reply{Text: "This phone number is not registered. Please try again, or /start to register as a new user."}, nil
	default:
		return e.endPatient(ev.ChatID, tryLaterText), nil
	}
}

// showSpecialties renders the specialty list and moves to PatientChoosingDoctor.
// An optional greeting is prepended to the prompt.
func (e *Engine) showSpecialties(ctx context.Context, chatID string, s *PatientSession, greeting string) (Reply, error) {
	specialties, err := e.store.ListSpecialties(ctx)
	if err != nil || len(specialties) == 0 {
		return e.endPatient(chatID, "Sorry, the specialties list is unavailable. Please try again later."), nil
	}

	buttons := make([]Button, 0, len(specialties)+1)
	for _, sp := range specialties {
		buttons = append(buttons, Button{Label: sp.Name, Data: "specialty:" + sp.Name})
	}
	buttons = append(buttons, Button{Label: "Stop", Data: choiceCancel})

	text := "Please select a specialty:"
	if greeting != "" {
		text = greeting + "\n\n" + text
	}

	s.State = PatientChoosingDoctor
	return Reply{Text: text, Buttons: buttons}, nil
}

func (e *Engine) patientChoosingDoctor(ctx context.Context, ev Event, s *PatientSession) (Reply, error) {
	if name, ok := strings.CutPrefix(ev.Choice, "specialty:"); ok {
		return e.showDoctors(ctx, ev.ChatID, s, name)
	}
	return e.showSpecialties(ctx, ev.ChatID, s, "")
}

// showDoctors lists a specialty's doctors ordered by descending experience
// and moves to PatientChoosingSlot.
func (e *Engine) showDoctors(ctx context.Context, chatID string, s *PatientSession, specialty string) (Reply, error) {
	doctors, err := e.store.ListDoctorsBySpecialty(ctx, specialty)
	if err != nil {
		return e.endPatient(chatID, tryLaterText), nil
	}
	if len(doctors) == 0 {
		return e.endPatient(chatID, fmt.Sprintf("Sorry, no doctors found for %s.", specialty)), nil
	}

	s.SelectedSpecialty = specialty
	buttons := make([]Button, 0, len(doctors)+1)
	for _, d := range doctors {
		buttons = append(buttons, Button{
			Label: fmt.Sprintf("%s (%d years exp.)", d.Name, d.Experience),
			Data:  fmt.Sprintf("doctor:%d", d.ID),
		})
	}
	buttons = append(buttons, Button{Label: "Stop", Data: choiceCancel})

	s.State = PatientChoosingSlot
	return Reply{Text: "Please choose a doctor:", Buttons: buttons}, nil
}

func (e *Engine) patientChoosingSlot(ctx context.Context, ev Event, s *PatientSession) (Reply, error) {
	now := e.now()

	switch {
	case strings.HasPrefix(ev.Choice, "doctor:"), strings.HasPrefix(ev.Choice, "show_today:"):
		id, err := parseIDSuffix(ev.Choice)
		if err != nil {
			return Reply{Text: "Please use the buttons to choose."}, nil
		}
		s.SelectedDoctorID = id
		return e.showSlots(ctx, ev.ChatID, s, now)

	case strings.HasPrefix(ev.Choice, "next_day:"):
		id, err := parseIDSuffix(ev.Choice)
		if err != nil {
			return Reply{Text: "Please use the buttons to choose."}, nil
		}
		s.SelectedDoctorID = id
		return e.showSlots(ctx, ev.ChatID, s, now.AddDate(0, 0, 1))

	case strings.HasPrefix(ev.Choice, "specialty:"):
		// "Show Other Doctors" from the tomorrow view.
		return e.showDoctors(ctx, ev.ChatID, s, strings.TrimPrefix(ev.Choice, "specialty:"))

	case strings.HasPrefix(ev.Choice, "book:"):
		return e.makeBooking(ctx, ev, s)

	default:
		return Reply{Text: "Please use the buttons to choose."}, nil
	}
}

// showSlots recomputes availability fresh for the chosen doctor and day and
// renders it. Exactly one day is shown at a time.
func (e *Engine) showSlots(ctx context.Context, chatID string, s *PatientSession, day time.Time) (Reply, error) {
	now := e.now()
	isToday := sameDay(day, now, e.loc)

	all := schedule.GenerateSlots(day, e.window, e.interval, e.loc)
	booked, err := e.store.ListBookedTimes(ctx, s.SelectedDoctorID, day)
	if err != nil {
		return e.endPatient(chatID, tryLaterText), nil
	}
	available := schedule.AvailableSlots(all, booked, now)

	dayLabel := "for tomorrow"
	if isToday {
		dayLabel = "for today"
	}

	var text string
	var buttons []Button
	if len(available) > 0 {
		text = fmt.Sprintf("Please select an available time slot %s:", dayLabel)
		for _, slot := range available {
			buttons = append(buttons, Button{
				Label: slot.Format("03:04 PM"),
				Data:  fmt.Sprintf("book:%d:%s", s.SelectedDoctorID, slot.Format(time.RFC3339)),
			})
		}
	} else {
		text = fmt.Sprintf("No available slots for this doctor %s.", dayLabel)
	}

	if isToday {
		buttons = append(buttons, Button{Label: "Book for Tomorrow", Data: fmt.Sprintf("next_day:%d", s.SelectedDoctorID)})
	} else {
		buttons = append(buttons,
			Button{Label: "Show Today's Slots", Data: fmt.Sprintf("show_today:%d", s.SelectedDoctorID)},
			Button{Label: "Show Other Doctors", Data: "specialty:" + s.SelectedSpecialty},
		)
	}
	buttons = append(buttons, Button{Label: "Stop", Data: choiceCancel})

	s.State = PatientChoosingSlot
	return Reply{Text: text, Buttons: buttons}, nil
}

func (e *Engine) makeBooking(ctx context.Context, ev Event, s *PatientSession) (Reply, error) {
	parts := strings.SplitN(ev.Choice, ":", 3)
	if len(parts) != 3 {
		return Reply{Text: "Please use the buttons to choose."}, nil
	}
	doctorID, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return Reply{Text: "Please use the buttons to choose."}, nil
	}
	slot, err := time.Parse(time.RFC3339, parts[2])
	if err != nil {
		return Reply{Text: "Please use the buttons to choose."}, nil
	}

	appt, err := e.booking.Book(ctx, doctorID, s.PatientPhone, slot)
	if err != nil {
		var conflict *booking.ConflictError
		switch {
		case errors.As(err, &conflict):
			s.State = PatientPostBooking
			return Reply{
				Text: fmt.Sprintf(
					"Appointment not booked!\n\nYou already have an appointment with %s on this day.\n\nExisting booking details:\nTime: %s\nDate: %s",
					conflict.DoctorName,
					conflict.ExistingAt.Format("03:04 PM"),
					conflict.ExistingAt.Format("Monday, Jan 02"),
				),
				Buttons: []Button{{Label: "Finish Session", Data: choiceEndSession}},
			}, nil
		case errors.Is(err, booking.ErrBookingContended):
			// Transient; let the user pick again from a fresh view.
			reply, rerr := e.showSlots(ctx, ev.ChatID, s, slot)
			reply.Text = "That slot is being booked right now. Please try again.\n\n" + reply.Text
			return reply, rerr
		default:
			// BookingFailed (or storage trouble) force-terminates,
			// unlike Conflict.
			return e.endPatient(ev.ChatID, "Booking failed. Please try again."), nil
		}
	}

	doctor, err := e.store.GetDoctor(ctx, doctorID)
	if err != nil {
		// Booked fine; fall back to a confirmation without doctor details.
		doctor = &clinic.Doctor{Name: "your doctor", Specialty: s.SelectedSpecialty}
	}

	s.State = PatientPostBooking
	return Reply{
		Text: fmt.Sprintf(
			"Appointment confirmed!\n\nPatient: %s\nDoctor: %s\nSpecialty: %s\nTime: %s",
			s.PatientName,
			doctor.Name,
			doctor.Specialty,
			appt.At.Format("03:04 PM on Monday, Jan 02"),
		),
		Buttons: []Button{
			{Label: "Book Another Appointment", Data: "start_over_inline"},
			{Label: "Finish Session", Data: choiceEndSession},
		},
	}, nil
}

func (e *Engine) patientPostBooking(ctx context.Context, ev Event, s *PatientSession) (Reply, error) {
	switch ev.Choice {
	case "start_over_inline":
		return e.showSpecialties(ctx, ev.ChatID, s, "")
	case choiceEndSession:
		return e.endPatient(ev.ChatID, "Thank you for using the appointment bot!"), nil
	default:
		return Reply{
			Text: "What would you like to do next?",
			Buttons: []Button{
				{Label: "Book Another Appointment", Data: "start_over_inline"},
				{Label: "Finish Session", Data: choiceEndSession},
			},
		}, nil
	}
}

func parseIDSuffix(choice string) (int64, error) {
	_, after, ok := strings.Cut(choice, ":")
	if !ok {
		return 0, fmt.Errorf("malformed choice %q", choice)
	}
	return strconv.ParseInt(after, 10, 64)
}
