package report

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/trezcool/homeroom/core/attendance"
)

func TestWeeklyWorkbook(t *testing.T) {
	hr := func(c attendance.Counts, status string) attendance.SubjectSummary {
		return attendance.SubjectSummary{
			SubjectID: "hr", SubjectName: "Homeroom", Counts: c, TotalTaken: c.Total(),
			AttendanceRate: c.AttendanceRate(), Status: status, Scheduled: true,
		}
	}
	days := []attendance.DaySummary{
		{Date: "2024-09-09", DayName: "Monday", Parity: "week2", Subjects: []attendance.SubjectSummary{
			hr(attendance.Counts{Present: 3, Late: 1}, attendance.SummaryTaken),
			{SubjectID: "music", SubjectName: "Music", Status: attendance.SummaryNotTaken},
		}},
		{Date: "2024-09-10", DayName: "Tuesday", Parity: "week2", Subjects: []attendance.SubjectSummary{
			hr(attendance.Counts{Present: 2, Absent: 2}, attendance.SummaryTaken),
			{SubjectID: "music", SubjectName: "Music", Status: attendance.SummaryNotTaken, Scheduled: true},
		}},
	}

	buf, err := WeeklyWorkbook("7A week of 2024-09-09", days)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	assert.Equal(t, []string{weekSheet, summarySheet}, f.GetSheetList())

	props, err := f.GetDocProps()
	require.NoError(t, err)
	assert.Equal(t, "7A week of 2024-09-09", props.Title)
	assert.Equal(t, "homeroom", props.Creator)

	rows, err := f.GetRows(weekSheet)
	require.NoError(t, err)
	require.Len(t, rows, 5)
	assert.Equal(t, "Date", rows[0][0])
	assert.Equal(t, []string{"2024-09-09", "Monday", "week2", "Homeroom", "yes", "taken", "3", "0", "1", "0", "4", "100"}, rows[1])
	assert.Equal(t, "not-taken", rows[2][5])

	rows, err = f.GetRows(summarySheet)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"Homeroom", "2", "5", "2", "1", "0", "8", "75"}, rows[1])
	assert.Equal(t, []string{"Music", "0", "0", "0", "0", "0", "0", "0"}, rows[2])
}

func TestWeeklyFilename(t *testing.T) {
	assert.Equal(t, "attendance_7A_2024-09-09.xlsx", WeeklyFilename("7A", "2024-09-09"))
}
