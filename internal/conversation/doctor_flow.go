package conversation

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/clinicbridge/clinic-bot/internal/clinic"
	"github.com/clinicbridge/clinic-bot/internal/export"
)

func viewingOptionsReply(prefix string) Reply {
	text := "Please choose an option:"
	if prefix != "" {
		text = prefix + "\n\n" + text
	}
	return Reply{
		Text: text,
		Buttons: []Button{
			{Label: "Today's Appointments", Data: "view_today"},
			{Label: "Tomorrow's Appointments", Data: "view_tomorrow"},
			{Label: "View by Specific Date", Data: "view_specific_date"},
			{Label: "End Session", Data: choiceEndSession},
		},
	}
}

func (e *Engine) handleDoctorState(ctx context.Context, ev Event, s *DoctorSession) (Reply, error) {
	switch s.State {
	case DoctorAuthenticating:
		return e.doctorAuthenticate(ctx, ev, s)
	case DoctorViewingOptions:
		return e.doctorViewingOptions(ctx, ev, s)
	case DoctorGettingDate:
		return e.doctorGettingDate(ctx, ev, s)
	case DoctorPostViewing:
		return e.doctorPostViewing(ctx, ev, s)
	default:
		return e.endDoctor(ev.ChatID, "Your session has ended. Thank you!"), nil
	}
}

// doctorAuthenticate accepts a free-text doctor id. Invalid ids re-prompt in
// state; there is no lockout or attempt limit.
func (e *Engine) doctorAuthenticate(ctx context.Context, ev Event, s *DoctorSession) (Reply, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(ev.Text), 10, 64)
	if err != nil {
		return Reply{Text: "Authentication failed. Invalid Doctor ID. Please try again."}, nil
	}

	doctor, err := e.store.GetDoctor(ctx, id)
	if err != nil {
		if errors.Is(err, clinic.ErrDoctorNotFound) {
			return Reply{Text: "Authentication failed. Invalid Doctor ID. Please try again."}, nil
		}
		return Reply{Text: tryLaterText}, nil
	}

	s.DoctorID = doctor.ID
	s.DoctorName = doctor.Name
	s.State = DoctorViewingOptions
	return viewingOptionsReply(fmt.Sprintf("Hello Dr. %s, hope you are doing well!", doctor.Name)), nil
}

func (e *Engine) doctorViewingOptions(ctx context.Context, ev Event, s *DoctorSession) (Reply, error) {
	now := e.now()
	switch ev.Choice {
	case "view_today":
		return e.showRecords(ctx, ev.ChatID, s, now)
	case "view_tomorrow":
		return e.showRecords(ctx, ev.ChatID, s, now.AddDate(0, 0, 1))
	case "view_specific_date":
		s.State = DoctorGettingDate
		return Reply{Text: "Please enter a date. You can type 'today', 'tomorrow', 'next tuesday', or a date like 'Sep 15' or '2025-09-15'."}, nil
	case choiceEndSession:
		return e.endDoctor(ev.ChatID, "Your session has ended. Thank you!"), nil
	default:
		return viewingOptionsReply(""), nil
	}
}

// doctorGettingDate parses free text via the date collaborator. Unparseable
// input returns to the options menu with an explanation instead of retrying
// the date prompt.
func (e *Engine) doctorGettingDate(ctx context.Context, ev Event, s *DoctorSession) (Reply, error) {
	day, err := e.dates.ParseDay(ev.Text, e.now())
	if err != nil {
		s.State = DoctorViewingOptions
		return viewingOptionsReply("Sorry, I couldn't understand that date. Please try again (e.g., 'tomorrow', 'Oct 5', '2025-10-05')."), nil
	}
	return e.showRecords(ctx, ev.ChatID, s, day)
}

// showRecords fetches the day's appointments, renders them ascending with a
// trailing count, attaches the spreadsheet export when non-empty, and moves
// to DoctorPostViewing.
func (e *Engine) showRecords(ctx context.Context, chatID string, s *DoctorSession, day time.Time) (Reply, error) {
	appts, err := e.store.ListDayAppointments(ctx, s.DoctorID, day)
	if err != nil {
		s.State = DoctorViewingOptions
		return viewingOptionsReply(tryLaterText), nil
	}

	dateStr := day.In(e.loc).Format("Monday, January 02, 2006")

	var text string
	var doc *Document
	if len(appts) > 0 {
		var b strings.Builder
		fmt.Fprintf(&b, "Appointments for %s:\n\n", dateStr)
		for _, rec := range appts {
			fmt.Fprintf(&b, "- %s - %s\n", rec.At.Format("03:04 PM"), rec.PatientName)
		}
		fmt.Fprintf(&b, "\nTotal appointments: %d", len(appts))
		text = b.String()

		content, filename, err := export.Workbook(s.DoctorName, day.In(e.loc), appts)
		if err == nil {
			doc = &Document{Filename: filename, Content: content}
		}
	} else {
		text = fmt.Sprintf("No appointments found for %s.", dateStr)
	}

	s.State = DoctorPostViewing
	return Reply{
		Text:     text,
		Document: doc,
		Buttons: []Button{
			{Label: "See Other Records?", Data: "view_again"},
			{Label: "End Session", Data: choiceEndSession},
		},
	}, nil
}

func (e *Engine) doctorPostViewing(ctx context.Context, ev Event, s *DoctorSession) (Reply, error) {
	switch ev.Choice {
	case "view_again":
		s.State = DoctorViewingOptions
		return viewingOptionsReply(""), nil
	case choiceEndSession:
		return e.endDoctor(ev.ChatID, "Your session has ended. Thank you!"), nil
	default:
		return Reply{
			Text: "What would you like to do next?",
			Buttons: []Button{
				{Label: "See Other Records?", Data: "view_again"},
				{Label: "End Session", Data: choiceEndSession},
			},
		}, nil
	}
}
