// Package conversation drives the two clinic chat flows: patient booking and
// doctor record viewing. The engine consumes chat events, owns per-session
// state, and emits rendering instructions for the transport.
package conversation

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/clinicbridge/clinic-bot/internal/booking"
	"github.com/clinicbridge/clinic-bot/internal/clinic"
	"github.com/clinicbridge/clinic-bot/internal/dates"
	"github.com/clinicbridge/clinic-bot/internal/schedule"
)

const (
	choiceCancel     = "cancel_flow"
	choiceEndSession = "end_session"
)

type Engine struct {
	store    clinic.Store
	booking  *booking.Service
	dates    *dates.Parser
	window   schedule.Window
	interval time.Duration
	loc      *time.Location

	// now is replaceable in tests
	now func() time.Time

	// mu guards the session maps only. The transport delivers at most one
	// event per chat at a time, so a session is never handled concurrently.
	mu       sync.Mutex
	patients map[string]*PatientSession
	doctors  map[string]*DoctorSession
}

func NewEngine(store clinic.Store, bookingSvc *booking.Service, dateParser *dates.Parser, window schedule.Window, interval time.Duration, loc *time.Location) *Engine {
	return &Engine{
		store:    store,
		booking:  bookingSvc,
		dates:    dateParser,
		window:   window,
		interval: interval,
		loc:      loc,
		now:      func() time.Time { return time.Now().In(loc) },
		patients: make(map[string]*PatientSession),
		doctors:  make(map[string]*DoctorSession),
	}
}

// HandlePatient processes one event of the patient booking flow.
func (e *Engine) HandlePatient(ctx context.Context, ev Event) (Reply, error) {
	if isRestart(ev) {
		e.mu.Lock()
		s := &PatientSession{State: PatientEntry}
		e.patients[ev.ChatID] = s
		e.mu.Unlock()
		return entryReply(), nil
	}

	e.mu.Lock()
	s, ok := e.patients[ev.ChatID]
	if !ok {
		s = &PatientSession{State: PatientEntry}
		e.patients[ev.ChatID] = s
	}
	e.mu.Unlock()

	if isCancel(ev) {
		return e.endPatient(ev.ChatID, "Process cancelled."), nil
	}

	return e.handlePatientState(ctx, ev, s)
}

// HandleDoctor processes one event of the doctor record-viewing flow.
func (e *Engine) HandleDoctor(ctx context.Context, ev Event) (Reply, error) {
	if isRestart(ev) {
		e.mu.Lock()
		s := &DoctorSession{State: DoctorAuthenticating}
		e.doctors[ev.ChatID] = s
		e.mu.Unlock()
		return Reply{Text: "Welcome. Please enter your Doctor ID to authenticate."}, nil
	}

	e.mu.Lock()
	s, ok := e.doctors[ev.ChatID]
	if !ok {
		s = &DoctorSession{State: DoctorAuthenticating}
		e.doctors[ev.ChatID] = s
	}
	e.mu.Unlock()

	if isCancel(ev) {
		return e.endDoctor(ev.ChatID, "Process cancelled."), nil
	}

	return e.handleDoctorState(ctx, ev, s)
}

// endPatient clears the session and emits a terminal reply.
func (e *Engine) endPatient(chatID, text string) Reply {
	e.mu.Lock()
	delete(e.patients, chatID)
	e.mu.Unlock()
	return Reply{Text: text, End: true}
}

func (e *Engine) endDoctor(chatID, text string) Reply {
	e.mu.Lock()
	delete(e.doctors, chatID)
	e.mu.Unlock()
	return Reply{Text: text, End: true}
}

func isRestart(ev Event) bool {
	t := strings.TrimSpace(strings.ToLower(ev.Text))
	return t == "/start" || t == "start over"
}

// isCancel reports the cross-state cancellation signal, accepted everywhere.
func isCancel(ev Event) bool {
	if ev.Choice == choiceCancel {
		return true
	}
	return strings.TrimSpace(strings.ToLower(ev.Text)) == "/cancel"
}

func sameDay(a, b time.Time, loc *time.Location) bool {
	y1, m1, d1 := a.In(loc).Date()
	y2, m2, d2 := b.In(loc).Date()
	return y1 == y2 && m1 == m2 && d1 == d2
}
