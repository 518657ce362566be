// Package report exports attendance summaries as spreadsheets.
package report

import (
	"bytes"
	"fmt"

	"github.com/pkg/errors"
	"github.com/xuri/excelize/v2"

	"github.com/trezcool/homeroom/core/attendance"
)

const (
	weekSheet    = "Week"
	summarySheet = "Summary"
	ContentType  = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

var (
	weekHeader    = []interface{}{"Date", "Day", "Week", "Subject", "Scheduled", "Status", "Present", "Absent", "Late", "Excused", "Total", "Rate (%)"}
	summaryHeader = []interface{}{"Subject", "Days taken", "Present", "Absent", "Late", "Excused", "Total", "Rate (%)"}
)

// WeeklyFilename names the workbook of a section's week.
func WeeklyFilename(sectionName, weekStart string) string {
	return fmt.Sprintf("attendance_%s_%s.xlsx", sectionName, weekStart)
}

// WeeklyWorkbook writes one row per day and subject on the Week sheet, and the week totals of each
// subject on the Summary sheet.
func WeeklyWorkbook(title string, days []attendance.DaySummary) (*bytes.Buffer, error) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", weekSheet); err != nil {
		return nil, errors.Wrap(err, "naming sheet")
	}
	if _, err := f.NewSheet(summarySheet); err != nil {
		return nil, errors.Wrap(err, "creating summary sheet")
	}
	if err := f.SetDocProps(&excelize.DocProperties{Title: title, Creator: "homeroom"}); err != nil {
		return nil, errors.Wrap(err, "setting workbook properties")
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
	})
	if err != nil {
		return nil, errors.Wrap(err, "creating header style")
	}

	if err = writeWeek(f, days, headerStyle); err != nil {
		return nil, err
	}
	if err = writeSummary(f, days, headerStyle); err != nil {
		return nil, err
	}

	buf, err := f.WriteToBuffer()
	return buf, errors.Wrap(err, "writing workbook")
}

func writeHeader(f *excelize.File, sheet string, header []interface{}, style int) error {
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return errors.Wrapf(err, "writing %s header", sheet)
	}
	last, _ := excelize.CoordinatesToCellName(len(header), 1)
	if err := f.SetCellStyle(sheet, "A1", last, style); err != nil {
		return errors.Wrapf(err, "styling %s header", sheet)
	}
	lastCol, _ := excelize.ColumnNumberToName(len(header))
	return f.SetColWidth(sheet, "A", lastCol, 14)
}

func writeWeek(f *excelize.File, days []attendance.DaySummary, headerStyle int) error {
	if err := writeHeader(f, weekSheet, weekHeader, headerStyle); err != nil {
		return err
	}
	row := 2
	for _, day := range days {
		for _, subj := range day.Subjects {
			cell, _ := excelize.CoordinatesToCellName(1, row)
			values := []interface{}{
				day.Date, day.DayName, day.Parity, subj.SubjectName, yesNo(subj.Scheduled), subj.Status,
				subj.Present, subj.Absent, subj.Late, subj.Excused, subj.TotalTaken, subj.AttendanceRate,
			}
			if err := f.SetSheetRow(weekSheet, cell, &values); err != nil {
				return errors.Wrapf(err, "writing row %d", row)
			}
			row++
		}
	}
	return f.SetPanes(weekSheet, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"})
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

type subjectTotals struct {
	name      string
	daysTaken int
	counts    attendance.Counts
}

func writeSummary(f *excelize.File, days []attendance.DaySummary, headerStyle int) error {
	if err := writeHeader(f, summarySheet, summaryHeader, headerStyle); err != nil {
		return err
	}

	var (
		order  []string
		totals = make(map[string]*subjectTotals)
	)
	for _, day := range days {
		for _, subj := range day.Subjects {
			tot, ok := totals[subj.SubjectID]
			if !ok {
				tot = &subjectTotals{name: subj.SubjectName}
				totals[subj.SubjectID] = tot
				order = append(order, subj.SubjectID)
			}
			if subj.Status == attendance.SummaryTaken {
				tot.daysTaken++
			}
			tot.counts.Present += subj.Present
			tot.counts.Absent += subj.Absent
			tot.counts.Late += subj.Late
			tot.counts.Excused += subj.Excused
		}
	}

	for i, id := range order {
		tot := totals[id]
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		values := []interface{}{
			tot.name, tot.daysTaken, tot.counts.Present, tot.counts.Absent, tot.counts.Late, tot.counts.Excused,
			tot.counts.Total(), tot.counts.AttendanceRate(),
		}
		if err := f.SetSheetRow(summarySheet, cell, &values); err != nil {
			return errors.Wrapf(err, "writing summary of %s", tot.name)
		}
	}
	return nil
}
