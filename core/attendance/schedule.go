package attendance

import (
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/homeroom/core"
	"github.com/trezcool/homeroom/core/school"
)

const (
	DateLayout = "2006-01-02"

	Week1 = "week1"
	Week2 = "week2"

	DefaultHomeroomName = "Homeroom"
)

var errNoAnchor = errors.New("attendance calendar: school start date is not set")

// Calendar resolves the two-week alternating schedule. Week parity is counted in whole calendar
// weeks from the anchor date, in the school's time zone.
type Calendar struct {
	anchor       time.Time
	loc          *time.Location
	homeroomName string
}

func NewCalendar(anchor time.Time, loc *time.Location, homeroomName string) (*Calendar, error) {
	if anchor.IsZero() {
		return nil, errNoAnchor
	}
	if loc == nil {
		loc = time.Local
	}
	if homeroomName = core.CleanString(homeroomName); homeroomName == "" {
		homeroomName = DefaultHomeroomName
	}
	return &Calendar{anchor: civilDay(anchor.In(loc)), loc: loc, homeroomName: homeroomName}, nil
}

// NewCalendarFromConfig builds the calendar from the attendance settings.
func NewCalendarFromConfig(conf *core.Config) (*Calendar, error) {
	return NewCalendar(conf.Attendance.SchoolStartDate, conf.Attendance.Location, conf.Attendance.HomeroomName)
}

func (c *Calendar) Location() *time.Location { return c.loc }

// Date truncates t to its calendar day in the school's time zone.
func (c *Calendar) Date(t time.Time) time.Time {
	return time.Date(t.In(c.loc).Year(), t.In(c.loc).Month(), t.In(c.loc).Day(), 0, 0, 0, 0, c.loc)
}

// ParseDate parses a YYYY-MM-DD date in the school's time zone.
func (c *Calendar) ParseDate(s string) (time.Time, error) {
	d, err := time.ParseInLocation(DateLayout, core.CleanString(s), c.loc)
	if err != nil {
		return time.Time{}, core.NewValidationError(err, core.FieldError{Field: "date", Error: "date must be formatted as YYYY-MM-DD"})
	}
	return d, nil
}

func FormatDate(t time.Time) string { return t.Format(DateLayout) }

// WeekIndex is the number of whole weeks between the anchor and date, rounded down
// (dates before the anchor yield negative indexes).
func (c *Calendar) WeekIndex(date time.Time) int {
	days := daysBetween(c.anchor, civilDay(date.In(c.loc)))
	return floorDiv(days, 7)
}

// WeekParity returns Week1 for even week indexes and Week2 for odd ones.
func (c *Calendar) WeekParity(date time.Time) string {
	if c.WeekIndex(date)%2 == 0 {
		return Week1
	}
	return Week2
}

func (c *Calendar) IsHomeroom(subj school.Subject) bool {
	return subj.IsHomeroom || strings.EqualFold(core.CleanString(subj.Name), c.homeroomName)
}

// IsScheduled reports whether subj meets on date. Homeroom meets every day.
func (c *Calendar) IsScheduled(subj school.Subject, date time.Time) bool {
	if c.IsHomeroom(subj) {
		return true
	}
	weekday := date.In(c.loc).Weekday().String()
	for _, slot := range subj.Schedule.Week(c.WeekParity(date)) {
		if strings.EqualFold(strings.TrimSpace(slot.Day), weekday) {
			return true
		}
	}
	return false
}

// Homeroom returns the first active homeroom subject.
func (c *Calendar) Homeroom(subjects []school.Subject) (school.Subject, bool) {
	for _, s := range subjects {
		if s.IsActive() && c.IsHomeroom(s) {
			return s, true
		}
	}
	return school.Subject{}, false
}

// ScheduledSubjects returns the subjects in session on date: Homeroom first, then the other
// scheduled subjects in input order. With no scheduled subject the result is [Homeroom], or empty
// when there is no homeroom. Inactive subjects are skipped.
func (c *Calendar) ScheduledSubjects(subjects []school.Subject, date time.Time) []school.Subject {
	res := make([]school.Subject, 0, len(subjects))
	homeroom, hasHomeroom := c.Homeroom(subjects)
	if hasHomeroom {
		res = append(res, homeroom)
	}
	for _, s := range subjects {
		if !s.IsActive() || c.IsHomeroom(s) {
			continue
		}
		if c.IsScheduled(s, date) {
			res = append(res, s)
		}
	}
	return res
}

// WeekDays returns the 7 consecutive days starting at weekStart.
func (c *Calendar) WeekDays(weekStart time.Time) []time.Time {
	start := c.Date(weekStart)
	days := make([]time.Time, 7)
	for i := range days {
		days[i] = start.AddDate(0, 0, i)
	}
	return days
}

// civilDay maps t to midnight UTC of its wall-clock date, so day arithmetic ignores DST shifts.
func civilDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func daysBetween(from, to time.Time) int {
	return int(to.Sub(from).Hours() / 24)
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}
