package attendance

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/homeroom/core/school"
)

func recs(statuses ...Status) []Record {
	res := make([]Record, 0, len(statuses))
	for i, s := range statuses {
		res = append(res, Record{StudentID: string(rune('A' + i)), Status: s})
	}
	return res
}

func TestSummarize(t *testing.T) {
	subj := school.Subject{ID: "math", Name: "Math"}

	tests := []struct {
		name       string
		records    []Record
		wantTotal  int
		wantRate   int
		wantStatus string
	}{
		{name: "no records", wantStatus: SummaryNotTaken},
		{name: "only not recorded", records: recs(StatusNotRecorded, StatusNotRecorded), wantStatus: SummaryNotTaken},
		{name: "all present", records: recs(StatusPresent, StatusPresent), wantTotal: 2, wantRate: 100, wantStatus: SummaryTaken},
		{name: "late counts as attending", records: recs(StatusPresent, StatusLate, StatusAbsent), wantTotal: 3, wantRate: 67, wantStatus: SummaryTaken},
		{name: "excused does not", records: recs(StatusExcused, StatusExcused, StatusPresent, StatusNotRecorded), wantTotal: 3, wantRate: 33, wantStatus: SummaryTaken},
		{name: "all absent", records: recs(StatusAbsent), wantTotal: 1, wantRate: 0, wantStatus: SummaryTaken},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sum := Summarize(subj, tt.records)
			assert.Equal(t, tt.wantTotal, sum.TotalTaken)
			assert.Equal(t, tt.wantRate, sum.AttendanceRate)
			assert.Equal(t, tt.wantStatus, sum.Status)
			assert.GreaterOrEqual(t, sum.AttendanceRate, 0)
			assert.LessOrEqual(t, sum.AttendanceRate, 100)
			assert.Equal(t, sum.TotalTaken == 0, sum.Status == SummaryNotTaken)
		})
	}
}

func TestDailySummary_MissingSnapshot(t *testing.T) {
	subjects := []school.Subject{{ID: "hr", Name: "Homeroom"}, {ID: "math", Name: "Math"}}
	snaps := Snapshots{"hr": {SubjectID: "hr", Records: recs(StatusPresent)}}

	res := DailySummary(subjects, snaps)
	require.Len(t, res, 2)
	assert.Equal(t, SummaryTaken, res[0].Status)
	assert.Equal(t, SummaryNotTaken, res[1].Status)
	assert.Equal(t, 0, res[1].TotalTaken)
}

func TestWeeklySummary(t *testing.T) {
	cal := testCalendar(t)
	math := school.Subject{ID: "math", Name: "Math", Schedule: school.Schedule{Week1: []school.Slot{{Day: "tuesday"}}}}
	subjects := []school.Subject{{ID: "hr", Name: "Homeroom"}, math}
	start, err := cal.ParseDate("2024-09-02")
	require.NoError(t, err)

	days := WeeklySummary(cal, subjects, start, map[string]Snapshots{
		"2024-09-03": {"math": {SubjectID: "math", Records: recs(StatusPresent, StatusAbsent)}},
	})
	require.Len(t, days, 7)
	assert.Equal(t, "2024-09-02", days[0].Date)
	assert.Equal(t, "Monday", days[0].DayName)
	assert.Equal(t, 2, days[0].DayNumber)
	assert.Equal(t, Week1, days[0].Parity)
	assert.False(t, days[0].Subjects[1].Scheduled)

	tue := days[1]
	assert.True(t, tue.Subjects[0].Scheduled)
	assert.True(t, tue.Subjects[1].Scheduled)
	assert.Equal(t, SummaryTaken, tue.Subjects[1].Status)
	assert.Equal(t, 50, tue.Subjects[1].AttendanceRate)
	assert.Equal(t, SummaryNotTaken, tue.Subjects[0].Status)
}

func TestOverall(t *testing.T) {
	cal := testCalendar(t)
	date, err := cal.ParseDate("2024-09-02") // week1 monday
	require.NoError(t, err)

	homeroom := school.Subject{ID: "hr", Name: "Homeroom"}
	math := school.Subject{ID: "math", Name: "Math", Schedule: school.Schedule{Week1: []school.Slot{{Day: "monday"}}}}
	art := school.Subject{ID: "art", Name: "Art", Schedule: school.Schedule{Week1: []school.Slot{{Day: "monday"}}}}
	subjects := []school.Subject{math, art, homeroom}
	students := []school.Student{
		{ID: "S1", FirstName: "Ann", LastName: "Lee"},
		{ID: "S2", FirstName: "Bo", LastName: "Chan"},
		{ID: "S3", FirstName: "Cy", LastName: "Diaz"},
	}

	t.Run("nothing taken", func(t *testing.T) {
		sum := Overall(cal, date, students, subjects, Snapshots{})
		assert.Equal(t, "2024-09-02", sum.Date)
		assert.Equal(t, 3, sum.TotalStudents)
		assert.Equal(t, 3, sum.NotRecorded)
		assert.False(t, sum.HomeroomTaken)
		assert.Equal(t, 3, sum.PendingSubjects)
		assert.Equal(t, []string{"hr", "math", "art"}, sum.PendingSubjectIDs)
	})

	t.Run("counts come from homeroom only", func(t *testing.T) {
		snaps := Snapshots{
			"hr": {SubjectID: "hr", Records: []Record{
				{StudentID: "S1", Status: StatusPresent},
				{StudentName: "Bo Chan", Status: StatusLate},
				{StudentID: "S3"},
			}},
			"math": {SubjectID: "math", Records: []Record{
				{StudentID: "S1", Status: StatusAbsent},
				{StudentID: "S2", Status: StatusAbsent},
			}},
			"art": {SubjectID: "art"},
		}
		sum := Overall(cal, date, students, subjects, snaps)
		assert.True(t, sum.HomeroomTaken)
		assert.Equal(t, 1, sum.Present)
		assert.Equal(t, 1, sum.Late)
		assert.Equal(t, 0, sum.Absent)
		assert.Equal(t, 1, sum.NotRecorded)
		assert.Equal(t, 1, sum.PendingSubjects)
		assert.Equal(t, []string{"art"}, sum.PendingSubjectIDs)
		assert.Empty(t, sum.AmbiguousStudents)
	})

	t.Run("no homeroom subject", func(t *testing.T) {
		sum := Overall(cal, date, students, []school.Subject{math}, Snapshots{})
		assert.Equal(t, 3, sum.NotRecorded)
		assert.Equal(t, []string{"math"}, sum.PendingSubjectIDs)
	})

	t.Run("ambiguous homeroom match", func(t *testing.T) {
		snaps := Snapshots{"hr": {SubjectID: "hr", Records: []Record{
			{StudentName: "Annika Sol", Status: StatusPresent},
			{StudentName: "Joanne Park", Status: StatusAbsent},
		}}}
		sum := Overall(cal, date, students[:1], subjects, snaps)
		assert.Equal(t, []string{"S1"}, sum.AmbiguousStudents)
		assert.Equal(t, 1, sum.Present)
	})
}

func TestAttendanceCell(t *testing.T) {
	ann := school.Student{ID: "S1", FirstName: "Ann", LastName: "Lee", Section: "S1"}

	t.Run("no snapshot for the day", func(t *testing.T) {
		assert.Equal(t, Cell{Type: CellPending}, AttendanceCell(ann, nil))
	})

	t.Run("no matching record", func(t *testing.T) {
		snap := &Snapshot{Records: []Record{{StudentID: "S9", Status: StatusPresent}}}
		assert.Equal(t, CellPending, AttendanceCell(ann, snap).Type)
	})

	t.Run("not recorded", func(t *testing.T) {
		snap := &Snapshot{Records: []Record{{StudentID: "S1"}}}
		assert.Equal(t, CellPending, AttendanceCell(ann, snap).Type)
	})

	t.Run("taken", func(t *testing.T) {
		snap := &Snapshot{Records: []Record{{StudentName: "Lee, Ann", Status: StatusExcused}}}
		assert.Equal(t, Cell{
			Type:       CellTaken,
			Status:     StatusExcused,
			Strategy:   ReversedName,
			Confidence: ConfidenceMedium,
		}, AttendanceCell(ann, snap))
	})
}
