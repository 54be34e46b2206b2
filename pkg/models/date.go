package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	errs "tweetcrawl/pkg/errors"
)

const (
	// DateLayout is the primary item date format and the persisted format
	DateLayout = "2006-01-02"
	// FallbackDateLayout is the day-first format tried when DateLayout fails
	FallbackDateLayout = "02/01/2006"
)

// Date is a calendar day with no time-of-day or zone
type Date struct {
	t time.Time
}

// NewDate builds a Date from its components
func NewDate(year int, month time.Month, day int) Date {
	return Date{t: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar day in t's location
func DateOf(t time.Time) Date {
	return NewDate(t.Year(), t.Month(), t.Day())
}

// ParseDate parses raw with DateLayout, then FallbackDateLayout
func ParseDate(raw string) (Date, error) {
	raw = strings.TrimSpace(raw)
	t, err := time.Parse(DateLayout, raw)
	if err == nil {
		return Date{t: t}, nil
	}
	t, fallbackErr := time.Parse(FallbackDateLayout, raw)
	if fallbackErr == nil {
		return Date{t: t}, nil
	}
	return Date{}, errs.DateParse(raw, err)
}

// MustParseDate is ParseDate for literals; it panics on bad input
func MustParseDate(raw string) Date {
	d, err := ParseDate(raw)
	if err != nil {
		panic(err)
	}
	return d
}

func (d Date) IsZero() bool { return d.t.IsZero() }

func (d Date) Before(o Date) bool { return d.t.Before(o.t) }

func (d Date) After(o Date) bool { return d.t.After(o.t) }

func (d Date) Equal(o Date) bool { return d.t.Equal(o.t) }

// Time returns midnight UTC of the day
func (d Date) Time() time.Time { return d.t }

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.t.Format(DateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == "" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Position is where a date falls relative to a Window
type Position int

const (
	// Inside the window; the item is persisted
	Inside Position = iota
	// Before the window start; the crawl ends
	Before
	// After the window end; the item is skipped
	After
)

func (p Position) String() string {
	switch p {
	case Inside:
		return "inside"
	case Before:
		return "before"
	case After:
		return "after"
	default:
		return fmt.Sprintf("Position(%d)", int(p))
	}
}

// Window is a closed range of days [Start, End]
type Window struct {
	Start Date `json:"start"`
	End   Date `json:"end"`
}

// NewWindow parses both bounds and checks Start <= End
func NewWindow(start, end string) (Window, error) {
	s, err := ParseDate(start)
	if err != nil {
		return Window{}, fmt.Errorf("invalid start date: %w", err)
	}
	e, err := ParseDate(end)
	if err != nil {
		return Window{}, fmt.Errorf("invalid end date: %w", err)
	}
	if e.Before(s) {
		return Window{}, errs.Configuration(fmt.Sprintf("window start %s is after end %s", s, e))
	}
	return Window{Start: s, End: e}, nil
}

// Classify places d relative to the window
func (w Window) Classify(d Date) Position {
	switch {
	case d.Before(w.Start):
		return Before
	case d.After(w.End):
		return After
	default:
		return Inside
	}
}

// Equal reports whether both bounds match
func (w Window) Equal(o Window) bool {
	return w.Start.Equal(o.Start) && w.End.Equal(o.End)
}

func (w Window) String() string {
	return w.Start.String() + ".." + w.End.String()
}
