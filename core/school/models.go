package school

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/trezcool/homeroom/core"
)

// Grade is a student's year. Stored documents hold it either as a number or as a string.
type Grade string

func (g *Grade) UnmarshalJSON(data []byte) error {
	var n json.Number
	if err := json.Unmarshal(data, &n); err == nil {
		*g = Grade(n.String())
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*g = Grade(core.CleanString(s))
	return nil
}

// Int returns the numeric value of the grade, or 0 if it has none.
func (g Grade) Int() int {
	digits := strings.TrimFunc(string(g), func(r rune) bool { return r < '0' || r > '9' })
	n, _ := strconv.Atoi(digits)
	return n
}

type SubjectEnrollment struct {
	SubjectID   string `json:"subjectId"`
	SubjectName string `json:"subjectName,omitempty"`
}

type Student struct {
	ID                 string              `json:"id"`
	StudentID          string              `json:"studentId,omitempty"`
	FirstName          string              `json:"firstName"`
	LastName           string              `json:"lastName"`
	Year               Grade               `json:"year,omitempty"`
	Section            string              `json:"section,omitempty"`
	Email              string              `json:"email,omitempty"`
	Active             *bool               `json:"active,omitempty"`
	SelectedSubjects   []string            `json:"selectedSubjects,omitempty"`
	SubjectEnrollments []SubjectEnrollment `json:"subjectEnrollments,omitempty"`
	Subjects           []string            `json:"subjects,omitempty"` // legacy: ids or names
	CreatedAt          time.Time           `json:"createdAt"`
	UpdatedAt          time.Time           `json:"updatedAt"`
}

func (s Student) FullName() string {
	return strings.TrimSpace(s.FirstName + " " + s.LastName)
}

func (s Student) IsActive() bool { return s.Active == nil || *s.Active }

// InSection matches the student's section reference against the id or the name of sec.
func (s Student) InSection(sec Section) bool {
	ref := strings.TrimSpace(s.Section)
	return ref != "" && (ref == sec.ID || strings.EqualFold(ref, sec.Name))
}

// StudentsOf returns the active students of sec, sorted by name.
func StudentsOf(students []Student, sec Section) []Student {
	res := make([]Student, 0, len(students))
	for _, s := range students {
		if s.IsActive() && s.InSection(sec) {
			res = append(res, s)
		}
	}
	sortStudents(res)
	return res
}

// EnrolledSubjects merges the ids (or legacy names) of every enrollment representation, without duplicates.
func (s Student) EnrolledSubjects() []string {
	seen := make(map[string]bool)
	refs := make([]string, 0, len(s.SelectedSubjects)+len(s.SubjectEnrollments)+len(s.Subjects))
	add := func(ref string) {
		ref = core.CleanString(ref)
		if ref != "" && !seen[ref] {
			seen[ref] = true
			refs = append(refs, ref)
		}
	}
	for _, id := range s.SelectedSubjects {
		add(id)
	}
	for _, e := range s.SubjectEnrollments {
		if e.SubjectID != "" {
			add(e.SubjectID)
		} else {
			add(e.SubjectName)
		}
	}
	for _, ref := range s.Subjects {
		add(ref)
	}
	return refs
}

// HasEnrollments reports whether any enrollment representation is set.
func (s Student) HasEnrollments() bool {
	return len(s.SelectedSubjects) > 0 || len(s.SubjectEnrollments) > 0 || len(s.Subjects) > 0
}

// IsEnrolledIn matches subj against every enrollment representation, by id or by name.
func (s Student) IsEnrolledIn(subj Subject) bool {
	for _, id := range s.SelectedSubjects {
		if id == subj.ID {
			return true
		}
	}
	for _, e := range s.SubjectEnrollments {
		if e.SubjectID == subj.ID || (e.SubjectName != "" && strings.EqualFold(e.SubjectName, subj.Name)) {
			return true
		}
	}
	for _, ref := range s.Subjects {
		if ref == subj.ID || strings.EqualFold(ref, subj.Name) {
			return true
		}
	}
	return false
}

type Section struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Year      Grade     `json:"year,omitempty"`
	AdviserID string    `json:"adviserId,omitempty"`
	Room      string    `json:"room,omitempty"`
	Active    *bool     `json:"active,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (s Section) IsActive() bool { return s.Active == nil || *s.Active }

// Slot is one weekly meeting of a subject.
type Slot struct {
	Day    string `json:"day" validate:"required,weekday"`
	Period int    `json:"period,omitempty"`
	Time   string `json:"time,omitempty"`
}

// Schedule is a two-week alternating timetable.
type Schedule struct {
	Week1 []Slot `json:"week1" validate:"dive"`
	Week2 []Slot `json:"week2" validate:"dive"`
}

// Week returns the slots of the given parity ("week1" or "week2").
func (s Schedule) Week(parity string) []Slot {
	switch parity {
	case "week1":
		return s.Week1
	case "week2":
		return s.Week2
	}
	return nil
}

type Subject struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Code       string    `json:"code,omitempty"`
	Room       string    `json:"room,omitempty"`
	Color      string    `json:"color,omitempty"`
	Active     *bool     `json:"active,omitempty"`
	IsHomeroom bool      `json:"isHomeroom,omitempty"`
	TeacherIDs []string  `json:"teacherIds,omitempty"`
	Schedule   Schedule  `json:"schedule"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

func (s Subject) IsActive() bool { return s.Active == nil || *s.Active }

func (s Subject) TaughtBy(userID string) bool {
	for _, id := range s.TeacherIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// NewStudent contains information needed to create or replace a Student.
type NewStudent struct {
	StudentID          string              `json:"studentId"`
	FirstName          string              `json:"firstName" validate:"required"`
	LastName           string              `json:"lastName" validate:"required"`
	Year               Grade               `json:"year"`
	Section            string              `json:"section"`
	Email              string              `json:"email" validate:"omitempty,email"`
	Active             *bool               `json:"active"`
	SelectedSubjects   []string            `json:"selectedSubjects"`
	SubjectEnrollments []SubjectEnrollment `json:"subjectEnrollments" validate:"dive"`
}

func (ns *NewStudent) Clean() {
	ns.StudentID = core.CleanString(ns.StudentID)
	ns.FirstName = core.CleanString(ns.FirstName)
	ns.LastName = core.CleanString(ns.LastName)
	ns.Section = core.CleanString(ns.Section)
	ns.Email = core.CleanString(ns.Email, true /* lower */)
}

type NewSection struct {
	Name      string `json:"name" validate:"required"`
	Year      Grade  `json:"year"`
	AdviserID string `json:"adviserId"`
	Room      string `json:"room"`
	Active    *bool  `json:"active"`
}

func (ns *NewSection) Clean() {
	ns.Name = core.CleanString(ns.Name)
	ns.Room = core.CleanString(ns.Room)
}

type NewSubject struct {
	Name       string   `json:"name" validate:"required"`
	Code       string   `json:"code"`
	Room       string   `json:"room"`
	Color      string   `json:"color" validate:"omitempty,hexcolor"`
	Active     *bool    `json:"active"`
	IsHomeroom bool     `json:"isHomeroom"`
	TeacherIDs []string `json:"teacherIds"`
	Schedule   Schedule `json:"schedule"`
}

func (ns *NewSubject) Clean() {
	ns.Name = core.CleanString(ns.Name)
	ns.Code = core.CleanString(ns.Code)
	ns.Room = core.CleanString(ns.Room)
	for i := range ns.Schedule.Week1 {
		ns.Schedule.Week1[i].Day = core.CleanString(ns.Schedule.Week1[i].Day, true /* lower */)
	}
	for i := range ns.Schedule.Week2 {
		ns.Schedule.Week2[i].Day = core.CleanString(ns.Schedule.Week2[i].Day, true /* lower */)
	}
}

// QueryFilter narrows down list queries.
// Search does a case-insensitive substring match on names, codes and student ids.
type QueryFilter struct {
	Section string `query:"section"`
	Search  string `query:"search"`
}

func (qf *QueryFilter) Clean() {
	qf.Section = core.CleanString(qf.Section)
	qf.Search = core.CleanString(qf.Search)
}
