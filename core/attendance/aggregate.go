package attendance

import (
	"math"
	"time"

	"github.com/trezcool/homeroom/core/school"
)

const (
	SummaryTaken    = "taken"
	SummaryNotTaken = "not-taken"

	CellPending = "pending"
	CellTaken   = "taken"
)

type (
	Counts struct {
		Present int `json:"present"`
		Absent  int `json:"absent"`
		Late    int `json:"late"`
		Excused int `json:"excused"`
	}

	SubjectSummary struct {
		SubjectID      string `json:"subjectId"`
		SubjectName    string `json:"subjectName"`
		Counts
		TotalTaken     int    `json:"totalTaken"`
		AttendanceRate int    `json:"attendanceRate"`
		Status         string `json:"status"`
		Scheduled      bool   `json:"scheduled"`
	}

	DaySummary struct {
		Date      string           `json:"date"`
		DayName   string           `json:"dayName"`
		DayNumber int              `json:"dayNumber"`
		Parity    string           `json:"parity"`
		Subjects  []SubjectSummary `json:"subjects"`
	}

	OverallSummary struct {
		Date string `json:"date"`
		Counts
		NotRecorded       int      `json:"notRecorded"`
		TotalStudents     int      `json:"totalStudents"`
		HomeroomTaken     bool     `json:"homeroomTaken"`
		PendingSubjects   int      `json:"pendingSubjects"`
		PendingSubjectIDs []string `json:"pendingSubjectIds"`
		// AmbiguousStudents lists students whose homeroom record was picked among several candidates.
		AmbiguousStudents []string `json:"ambiguousStudents,omitempty"`
	}

	Cell struct {
		Type       string     `json:"type"`
		Status     Status     `json:"status,omitempty"`
		Strategy   Strategy   `json:"strategy,omitempty"`
		Confidence Confidence `json:"confidence,omitempty"`
		Ambiguous  bool       `json:"ambiguous,omitempty"`
	}

	// Snapshots holds one day's snapshots keyed by subject id.
	Snapshots map[string]Snapshot
)

func (c *Counts) add(s Status) {
	switch s {
	case StatusPresent:
		c.Present++
	case StatusAbsent:
		c.Absent++
	case StatusLate:
		c.Late++
	case StatusExcused:
		c.Excused++
	}
}

func (c Counts) Total() int { return c.Present + c.Absent + c.Late + c.Excused }

// AttendanceRate is round(100 * (present+late) / total), 0 when nothing was recorded.
func (c Counts) AttendanceRate() int {
	total := c.Total()
	if total == 0 {
		return 0
	}
	return int(math.Round(100 * float64(c.Present+c.Late) / float64(total)))
}

// Summarize computes the summary of one subject. NotRecorded records are not counted.
func Summarize(subj school.Subject, records []Record) SubjectSummary {
	sum := SubjectSummary{SubjectID: subj.ID, SubjectName: subj.Name, Status: SummaryNotTaken, Scheduled: true}
	for _, r := range records {
		sum.add(r.Status)
	}
	sum.TotalTaken = sum.Total()
	sum.AttendanceRate = sum.Counts.AttendanceRate()
	if sum.TotalTaken > 0 {
		sum.Status = SummaryTaken
	}
	return sum
}

// DailySummary summarizes every subject; a subject with no snapshot is not-taken.
func DailySummary(subjects []school.Subject, snaps Snapshots) []SubjectSummary {
	res := make([]SubjectSummary, 0, len(subjects))
	for _, subj := range subjects {
		res = append(res, Summarize(subj, snaps[subj.ID].Records))
	}
	return res
}

// WeeklySummary summarizes the 7 days starting at weekStart. byDate is keyed by YYYY-MM-DD.
func WeeklySummary(cal *Calendar, subjects []school.Subject, weekStart time.Time, byDate map[string]Snapshots) []DaySummary {
	days := cal.WeekDays(weekStart)
	res := make([]DaySummary, 0, len(days))
	for _, day := range days {
		date := FormatDate(day)
		subs := DailySummary(subjects, byDate[date])
		for i, subj := range subjects {
			subs[i].Scheduled = subj.IsActive() && cal.IsScheduled(subj, day)
		}
		res = append(res, DaySummary{
			Date:      date,
			DayName:   day.Weekday().String(),
			DayNumber: day.Day(),
			Parity:    cal.WeekParity(day),
			Subjects:  subs,
		})
	}
	return res
}

// Overall computes a section's day summary: status counts come from the homeroom snapshot only,
// pending subjects are the scheduled subjects with no (or an empty) snapshot.
func Overall(cal *Calendar, date time.Time, students []school.Student, subjects []school.Subject, snaps Snapshots) OverallSummary {
	sum := OverallSummary{
		Date:              FormatDate(cal.Date(date)),
		TotalStudents:     len(students),
		PendingSubjectIDs: []string{},
	}

	if homeroom, ok := cal.Homeroom(subjects); ok {
		snap, has := snaps[homeroom.ID]
		sum.HomeroomTaken = has && snap.Taken()
		for _, stu := range students {
			m, found := MatchStudent(stu, snap.Records)
			if !found || !m.Record.Status.Recorded() {
				sum.NotRecorded++
				continue
			}
			if m.Ambiguous {
				sum.AmbiguousStudents = append(sum.AmbiguousStudents, stu.ID)
			}
			sum.add(m.Record.Status)
		}
	} else {
		sum.NotRecorded = len(students)
	}

	for _, subj := range cal.ScheduledSubjects(subjects, date) {
		if snap, ok := snaps[subj.ID]; !ok || len(snap.Records) == 0 {
			sum.PendingSubjects++
			sum.PendingSubjectIDs = append(sum.PendingSubjectIDs, subj.ID)
		}
	}
	return sum
}

// AttendanceCell resolves one student's mark for a subject. A missing snapshot, no matching record or
// a NotRecorded record all make the cell pending.
func AttendanceCell(stu school.Student, snap *Snapshot) Cell {
	if snap == nil {
		return Cell{Type: CellPending}
	}
	m, ok := MatchStudent(stu, snap.Records)
	if !ok || !m.Record.Status.Recorded() {
		return Cell{Type: CellPending}
	}
	return Cell{
		Type:       CellTaken,
		Status:     m.Record.Status,
		Strategy:   m.Strategy,
		Confidence: m.Confidence,
		Ambiguous:  m.Ambiguous,
	}
}
