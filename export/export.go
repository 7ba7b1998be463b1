// Package export writes task search results as spreadsheets.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/piecework/piecework/model"

	"github.com/xuri/excelize/v2"
)

// SheetName is the name of the worksheet in XLSX exports.
const SheetName = "Tasks"

// Header is the first row of every export.
var Header = []string{
	"Task ID",
	"Process",
	"Instance ID",
	"Activity",
	"Name",
	"Assignee",
	"Candidate Groups",
	"Status",
	"Started",
	"Ended",
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func row(t *model.Task) []string {
	return []string{
		t.ID,
		t.ProcessDefinitionKey,
		t.ProcessInstanceID,
		t.ActivityKey,
		t.Name,
		t.Assignee,
		strings.Join(t.CandidateGroups, ","),
		string(t.Status),
		formatTime(t.StartTime),
		formatTime(t.EndTime),
	}
}

// CSV writes tasks to w as comma-separated values.
func CSV(w io.Writer, tasks []*model.Task) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return err
	}
	for _, t := range tasks {
		if err := cw.Write(row(t)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// XLSX writes tasks to w as an Excel workbook with a bold header row.
func XLSX(w io.Writer, tasks []*model.Task) error {
	f := excelize.NewFile()
	defer f.Close()
	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return err
	}

	bold, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"#D9E1F2"}},
	})
	if err != nil {
		return err
	}
	for i, h := range Header {
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return err
		}
		cell := col + "1"
		f.SetCellValue(SheetName, cell, h)
		f.SetCellStyle(SheetName, cell, cell, bold)
	}

	for r, t := range tasks {
		cell, err := excelize.CoordinatesToCellName(1, r+2)
		if err != nil {
			return err
		}
		values := row(t)
		if err = f.SetSheetRow(SheetName, cell, &values); err != nil {
			return fmt.Errorf("writing row %d: %w", r+2, err)
		}
	}

	return f.Write(w)
}
