// Package dates resolves free-text date input ("tomorrow", "next tuesday",
// "Sep 15", "2025-09-15") to a local calendar day.
package dates

import (
	"errors"
	"strings"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"
)

var ErrUnrecognized = errors.New("unrecognized date")

type Parser struct {
	w   *when.Parser
	loc *time.Location
}

func NewParser(loc *time.Location) *Parser {
	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)
	return &Parser{w: w, loc: loc}
}

// yearless layouts get the current year filled in
var layouts = []struct {
	layout   string
	yearless bool
}{
	{"2006-01-02", false},
	{"02/01/2006", false},
	{"Jan 2 2006", false},
	{"January 2 2006", false},
	{"Jan 2", true},
	{"January 2", true},
}

// ParseDay resolves text to midnight of a calendar day in the parser's
// location, relative to now. Returns ErrUnrecognized when nothing matches.
func (p *Parser) ParseDay(text string, now time.Time) (time.Time, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return time.Time{}, ErrUnrecognized
	}
	now = now.In(p.loc)

	switch strings.ToLower(text) {
	case "today":
		return midnight(now), nil
	case "tomorrow":
		return midnight(now.AddDate(0, 0, 1)), nil
	}

	for _, l := range layouts {
		t, err := time.ParseInLocation(l.layout, text, p.loc)
		if err != nil {
			continue
		}
		if l.yearless {
			t = t.AddDate(now.Year(), 0, 0)
		}
		return midnight(t), nil
	}

	r, err := p.w.Parse(text, now)
	if err != nil || r == nil {
		return time.Time{}, ErrUnrecognized
	}
	return midnight(r.Time.In(p.loc)), nil
}

func midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
