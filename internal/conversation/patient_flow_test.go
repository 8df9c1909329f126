package conversation

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinicbridge/clinic-bot/internal/booking"
	"github.com/clinicbridge/clinic-bot/internal/clinic"
	"github.com/clinicbridge/clinic-bot/internal/dates"
	"github.com/clinicbridge/clinic-bot/internal/schedule"
)

// passLocker always grants the lock; cross-process contention is exercised in
// the booking package.
type passLocker struct{}

func (passLocker) WithBookingLock(ctx context.Context, phone string, doctorID int64, day string, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// testClock is 08:00 IST on Wednesday 2025-09-10, before the working window
// opens, so today's full slot grid is bookable.
var testClock = time.Date(2025, 9, 10, 8, 0, 0, 0, mustKolkata())

func mustKolkata() *time.Location {
	loc, err := time.LoadLocation("Asia/Kolkata")
	if err != nil {
		panic(err)
	}
	return loc
}

func newTestEngine(t *testing.T) (*Engine, clinic.Store) {
	t.Helper()
	loc := mustKolkata()
	dir := t.TempDir()

	fixtures := map[string]string{
		"specialties.csv": "Cardiology\nDermatology\n",
		"doctors.csv":     "5,Meera Iyer,Cardiology,12\n6,Arjun Nair,Cardiology,25\n",
		"profiles.csv":    "9999999999,Asha Rao,34\n",
	}
	for name, content := range fixtures {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}

	store, err := clinic.NewCSVStore(dir, loc)
	require.NoError(t, err)

	e := newEngineWith(store, loc)
	return e, store
}

func newEngineWith(store clinic.Store, loc *time.Location) *Engine {
	svc := booking.NewService(store, passLocker{}, loc)
	e := NewEngine(store, svc, dates.NewParser(loc), schedule.DefaultWindow, schedule.DefaultInterval, loc)
	e.now = func() time.Time { return testClock }
	return e
}

func buttonData(t *testing.T, r Reply, label string) string {
	t.Helper()
	for _, b := range r.Buttons {
		if b.Label == label {
			return b.Data
		}
	}
	t.Fatalf("no button labeled %q in %v", label, r.Buttons)
	return ""
}

func patientEvent(e *Engine, t *testing.T, ev Event) Reply {
	t.Helper()
	r, err := e.HandlePatient(context.Background(), ev)
	require.NoError(t, err)
	return r
}

func TestPatientFlow_NewUserBooksAppointment(t *testing.T) {
	e, _ := newTestEngine(t)
	chat := "chat-1"

	r := patientEvent(e, t, Event{ChatID: chat, Text: "/start"})
	assert.Contains(t, r.Text, "new or regular user")
	require.Len(t, r.Buttons, 3)

	r = patientEvent(e, t, Event{ChatID: chat, Choice: "new_user"})
	assert.Contains(t, r.Text, "full name")

	r = patientEvent(e, t, Event{ChatID: chat, Text: "Ravi Menon"})
	assert.Contains(t, r.Text, "age")

	r = patientEvent(e, t, Event{ChatID: chat, Text: "29"})
	assert.Contains(t, r.Text, "phone number")

	r = patientEvent(e, t, Event{ChatID: chat, Text: "7777777777"})
	assert.Contains(t, r.Text, "Thank you, Ravi Menon! Your profile has been created.")
	assert.Contains(t, r.Text, "select a specialty")

	r = patientEvent(e, t, Event{ChatID: chat, Choice: "specialty:Cardiology"})
	assert.Contains(t, r.Text, "choose a doctor")
	// Most experienced doctor first.
	assert.Equal(t, "Arjun Nair (25 years exp.)", r.Buttons[0].Label)
	assert.Equal(t, "doctor:6", r.Buttons[0].Data)

	r = patientEvent(e, t, Event{ChatID: chat, Choice: "doctor:5"})
	assert.Contains(t, r.Text, "for today")
	assert.Equal(t, "09:00 AM", r.Buttons[0].Label)
	bookData := r.Buttons[0].Data
	assert.True(t, strings.HasPrefix(bookData, "book:5:"))

	r = patientEvent(e, t, Event{ChatID: chat, Choice: bookData})
	assert.Contains(t, r.Text, "Appointment confirmed!")
	assert.Contains(t, r.Text, "Patient: Ravi Menon")
	assert.Contains(t, r.Text, "Doctor: Meera Iyer")
	assert.Contains(t, r.Text, "Specialty: Cardiology")
	assert.Contains(t, r.Text, "09:00 AM")

	r = patientEvent(e, t, Event{ChatID: chat, Choice: "end_session"})
	assert.True(t, r.End)
	assert.Contains(t, r.Text, "Thank you")
}

func TestPatientFlow_InvalidAgeReprompts(t *testing.T) {
	e, _ := newTestEngine(t)
	chat := "chat-2"

	patientEvent(e, t, Event{ChatID: chat, Text: "/start"})
	patientEvent(e, t, Event{ChatID: chat, Choice: "new_user"})
	patientEvent(e, t, Event{ChatID: chat, Text: "Ravi Menon"})

	for _, bad := range []string{"abc", "-3", "0", "200"} {
		r := patientEvent(e, t, Event{ChatID: chat, Text: bad})
		assert.Contains(t, r.Text, "age as a number", "input %q", bad)
		assert.False(t, r.End)
	}

	r := patientEvent(e, t, Event{ChatID: chat, Text: "29"})
	assert.Contains(t, r.Text, "phone number")
}

func TestPatientFlow_RegularUnknownPhoneRepromptsInState(t *testing.T) {
	e, _ := newTestEngine(t)
	chat := "chat-3"

	patientEvent(e, t, Event{ChatID: chat, Text: "/start"})
	r := patientEvent(e, t, Event{ChatID: chat, Choice: "regular_user"})
	assert.Contains(t, r.Text, "registered phone number")

	r = patientEvent(e, t, Event{ChatID: chat, Text: "0000000000"})
	assert.Contains(t, r.Text, "not registered")
	assert.False(t, r.End, "unknown phone is recoverable, not terminal")

	r = patientEvent(e, t, Event{ChatID: chat, Text: "9999999999"})
	assert.Contains(t, r.Text, "Welcome back, Asha Rao!")
	assert.Contains(t, r.Text, "select a specialty")
}

func TestPatientFlow_NewUserPhoneCollision(t *testing.T) {
	e, _ := newTestEngine(t)
	chat := "chat-4"

	patientEvent(e, t, Event{ChatID: chat, Text: "/start"})
	patientEvent(e, t, Event{ChatID: chat, Choice: "new_user"})
	patientEvent(e, t, Event{ChatID: chat, Text: "Ravi Menon"})
	patientEvent(e, t, Event{ChatID: chat, Text: "29"})

	r := patientEvent(e, t, Event{ChatID: chat, Text: "9999999999"})
	assert.Contains(t, r.Text, "already registered to 'Asha Rao'")

	// Anything but the two options re-prompts.
	r = patientEvent(e, t, Event{ChatID: chat, Text: "hmm"})
	assert.Contains(t, r.Text, "choose one of the options")

	r = patientEvent(e, t, Event{ChatID: chat, Choice: "continue_no"})
	assert.Contains(t, r.Text, "unregistered phone number")

	r = patientEvent(e, t, Event{ChatID: chat, Text: "7777777777"})
	assert.Contains(t, r.Text, "Your profile has been created")
}

func TestPatientFlow_NewUserAdoptsExistingProfile(t *testing.T) {
	e, _ := newTestEngine(t)
	chat := "chat-5"

	patientEvent(e, t, Event{ChatID: chat, Text: "/start"})
	patientEvent(e, t, Event{ChatID: chat, Choice: "new_user"})
	patientEvent(e, t, Event{ChatID: chat, Text: "Ravi Menon"})
	patientEvent(e, t, Event{ChatID: chat, Text: "29"})
	patientEvent(e, t, Event{ChatID: chat, Text: "9999999999"})

	r := patientEvent(e, t, Event{ChatID: chat, Choice: "continue_yes"})
	assert.Contains(t, r.Text, "Welcome back, Asha Rao!")
}

func TestPatientFlow_SameDayConflictShowsExistingBooking(t *testing.T) {
	e, store := newTestEngine(t)
	chat := "chat-6"
	ctx := context.Background()

	// Asha already holds 10:00 today with doctor 5.
	existing := time.Date(2025, 9, 10, 10, 0, 0, 0, mustKolkata())
	_, err := store.InsertAppointment(ctx, 5, "9999999999", existing)
	require.NoError(t, err)

	patientEvent(e, t, Event{ChatID: chat, Text: "/start"})
	patientEvent(e, t, Event{ChatID: chat, Choice: "regular_user"})
	patientEvent(e, t, Event{ChatID: chat, Text: "9999999999"})
	patientEvent(e, t, Event{ChatID: chat, Choice: "specialty:Cardiology"})
	r := patientEvent(e, t, Event{ChatID: chat, Choice: "doctor:5"})

	// 10:00 is taken; pick the first free slot (09:00) on the same day.
	r = patientEvent(e, t, Event{ChatID: chat, Choice: r.Buttons[0].Data})
	assert.Contains(t, r.Text, "Appointment not booked!")
	assert.Contains(t, r.Text, "already have an appointment with Meera Iyer")
	assert.Contains(t, r.Text, "10:00 AM", "conflict must report the existing booking's time")
	require.Len(t, r.Buttons, 1)
	assert.Equal(t, "Finish Session", r.Buttons[0].Label)

	r = patientEvent(e, t, Event{ChatID: chat, Choice: "end_session"})
	assert.True(t, r.End)
}

func TestPatientFlow_TomorrowPagination(t *testing.T) {
	e, _ := newTestEngine(t)
	chat := "chat-7"

	patientEvent(e, t, Event{ChatID: chat, Text: "/start"})
	patientEvent(e, t, Event{ChatID: chat, Choice: "regular_user"})
	patientEvent(e, t, Event{ChatID: chat, Text: "9999999999"})
	patientEvent(e, t, Event{ChatID: chat, Choice: "specialty:Cardiology"})

	r := patientEvent(e, t, Event{ChatID: chat, Choice: "doctor:5"})
	assert.Contains(t, r.Text, "for today")
	buttonData(t, r, "Book for Tomorrow")

	r = patientEvent(e, t, Event{ChatID: chat, Choice: "next_day:5"})
	assert.Contains(t, r.Text, "for tomorrow")
	buttonData(t, r, "Show Today's Slots")
	assert.Equal(t, "specialty:Cardiology", buttonData(t, r, "Show Other Doctors"))

	// Back to today, still one day at a time.
	r = patientEvent(e, t, Event{ChatID: chat, Choice: "show_today:5"})
	assert.Contains(t, r.Text, "for today")
}

// insertFailStore makes every appointment write fail while leaving reads alone.
type insertFailStore struct {
	clinic.Store
}

func (f insertFailStore) InsertAppointment(ctx context.Context, doctorID int64, phone string, at time.Time) (*clinic.Appointment, error) {
	return nil, errors.New("write denied")
}

func TestPatientFlow_BookingFailureEndsSession(t *testing.T) {
	_, store := newTestEngine(t)
	e := newEngineWith(insertFailStore{store}, mustKolkata())
	chat := "chat-8"

	patientEvent(e, t, Event{ChatID: chat, Text: "/start"})
	patientEvent(e, t, Event{ChatID: chat, Choice: "regular_user"})
	patientEvent(e, t, Event{ChatID: chat, Text: "9999999999"})
	patientEvent(e, t, Event{ChatID: chat, Choice: "specialty:Cardiology"})
	r := patientEvent(e, t, Event{ChatID: chat, Choice: "doctor:5"})

	r = patientEvent(e, t, Event{ChatID: chat, Choice: r.Buttons[0].Data})
	assert.True(t, r.End, "a failed commit terminates the session")
	assert.Contains(t, r.Text, "Booking failed")
}

func TestPatientFlow_CancelAnywhere(t *testing.T) {
	e, _ := newTestEngine(t)

	// Text command mid-registration.
	patientEvent(e, t, Event{ChatID: "c1", Text: "/start"})
	patientEvent(e, t, Event{ChatID: "c1", Choice: "new_user"})
	r := patientEvent(e, t, Event{ChatID: "c1", Text: "/cancel"})
	assert.True(t, r.End)
	assert.Equal(t, "Process cancelled.", r.Text)

	// Inline stop button deep in the flow.
	patientEvent(e, t, Event{ChatID: "c2", Text: "/start"})
	patientEvent(e, t, Event{ChatID: "c2", Choice: "regular_user"})
	patientEvent(e, t, Event{ChatID: "c2", Text: "9999999999"})
	r = patientEvent(e, t, Event{ChatID: "c2", Choice: "cancel_flow"})
	assert.True(t, r.End)
}

func TestPatientFlow_RestartResetsSession(t *testing.T) {
	e, _ := newTestEngine(t)
	chat := "chat-9"

	patientEvent(e, t, Event{ChatID: chat, Text: "/start"})
	patientEvent(e, t, Event{ChatID: chat, Choice: "new_user"})
	patientEvent(e, t, Event{ChatID: chat, Text: "Ravi Menon"})

	r := patientEvent(e, t, Event{ChatID: chat, Text: "start over"})
	assert.Contains(t, r.Text, "new or regular user")

	// The old registration progress is gone: the next text is a fresh entry
	// event, not an age answer.
	r = patientEvent(e, t, Event{ChatID: chat, Text: "29"})
	assert.Contains(t, r.Text, "new or regular user")
}

func TestPatientFlow_BookAnotherRestartsAtSpecialties(t *testing.T) {
	e, _ := newTestEngine(t)
	chat := "chat-10"

	patientEvent(e, t, Event{ChatID: chat, Text: "/start"})
	patientEvent(e, t, Event{ChatID: chat, Choice: "regular_user"})
	patientEvent(e, t, Event{ChatID: chat, Text: "9999999999"})
	patientEvent(e, t, Event{ChatID: chat, Choice: "specialty:Cardiology"})
	r := patientEvent(e, t, Event{ChatID: chat, Choice: "doctor:5"})
	r = patientEvent(e, t, Event{ChatID: chat, Choice: r.Buttons[0].Data})
	require.Contains(t, r.Text, "Appointment confirmed!")

	r = patientEvent(e, t, Event{ChatID: chat, Choice: "start_over_inline"})
	assert.Contains(t, r.Text, "select a specialty")
}
