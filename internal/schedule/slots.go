// Package schedule holds the pure slot math: grid generation over a working
// day and availability filtering against booked instants.
package schedule

import (
	"fmt"
	"time"
)

// Window is a working-hours window on whole hours, e.g. 09:00-18:00.
type Window struct {
	StartHour int
	EndHour   int
}

// DefaultWindow matches the clinic's fixed working day.
var DefaultWindow = Window{StartHour: 9, EndHour: 18}

const DefaultInterval = 15 * time.Minute

// Validate rejects a misconfigured window. It runs at configuration time,
// not per call; GenerateSlots assumes a valid window.
func (w Window) Validate() error {
	if w.StartHour < 0 || w.EndHour > 24 {
		return fmt.Errorf("working window %02d:00-%02d:00 outside the day", w.StartHour, w.EndHour)
	}
	if w.EndHour <= w.StartHour {
		return fmt.Errorf("working window end %02d:00 not after start %02d:00", w.EndHour, w.StartHour)
	}
	return nil
}

// GenerateSlots produces the ordered bookable time points for a calendar day:
// start + k*interval for k = 0 .. (end-start)/interval - 1, localized to loc.
// There is no partial trailing slot.
func GenerateSlots(day time.Time, w Window, interval time.Duration, loc *time.Location) []time.Time {
	d := day.In(loc)
	start := time.Date(d.Year(), d.Month(), d.Day(), w.StartHour, 0, 0, 0, loc)

	span := time.Duration(w.EndHour-w.StartHour) * time.Hour
	n := int(span / interval)

	slots := make([]time.Time, 0, n)
	for k := 0; k < n; k++ {
		slots = append(slots, start.Add(time.Duration(k)*interval))
	}
	return slots
}

// AvailableSlots filters slots down to the bookable subset: members of booked
// are dropped (exact-instant equality), and when a slot falls on the current
// local calendar day only instants strictly after now survive. Future days
// skip the now filter entirely. Pure; availability is recomputed fresh on
// every render, never cached.
func AvailableSlots(slots, booked []time.Time, now time.Time) []time.Time {
	taken := make(map[int64]struct{}, len(booked))
	for _, b := range booked {
		taken[b.Unix()] = struct{}{}
	}

	var result []time.Time
	for _, slot := range slots {
		if _, ok := taken[slot.Unix()]; ok {
			continue
		}
		if sameDay(slot, now) && !slot.After(now) {
			continue
		}
		result = append(result, slot)
	}
	return result
}

func sameDay(slot, now time.Time) bool {
	y1, m1, d1 := slot.Date()
	y2, m2, d2 := now.In(slot.Location()).Date()
	return y1 == y2 && m1 == m2 && d1 == d2
}
