package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"venuehours/internal/hours"
)

var (
	scheduleColumns = []string{"Date", "Weekday", "Status", "Open", "Close", "Overnight", "Source", "Reason", "Problem"}
	overrideColumns = []string{"ID", "Name", "Type", "Start", "End", "Recurrence", "Until", "Closed", "Hours", "Priority"}
)

// sheetWriter appends rows to the sheets of one workbook.
type sheetWriter struct {
	file         *excelize.File
	currentSheet string
	currentRow   int
}

func newSheetWriter() *sheetWriter {
	return &sheetWriter{file: excelize.NewFile()}
}

// addSheet starts a new sheet; the first call renames the default one.
func (w *sheetWriter) addSheet(name string) error {
	// Excel limit
	if len(name) > 31 {
		name = name[:31]
	}

	if w.currentSheet == "" {
		if err := w.file.SetSheetName("Sheet1", name); err != nil {
			return fmt.Errorf("rename sheet %s: %w", name, err)
		}
	} else if _, err := w.file.NewSheet(name); err != nil {
		return fmt.Errorf("create sheet %s: %w", name, err)
	}

	w.currentSheet = name
	w.currentRow = 1
	return nil
}

func (w *sheetWriter) writeHeader(columns []string) error {
	row := make([]any, len(columns))
	for i, c := range columns {
		row[i] = c
	}
	if err := w.writeRow(row); err != nil {
		return err
	}

	style, err := w.file.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err == nil {
		startCell, _ := excelize.CoordinatesToCellName(1, w.currentRow-1)
		endCell, _ := excelize.CoordinatesToCellName(len(columns), w.currentRow-1)
		_ = w.file.SetCellStyle(w.currentSheet, startCell, endCell, style)
	}
	return w.file.SetPanes(w.currentSheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	})
}

func (w *sheetWriter) writeRow(row []any) error {
	if w.currentSheet == "" {
		return fmt.Errorf("no active sheet")
	}

	cell, err := excelize.CoordinatesToCellName(1, w.currentRow)
	if err != nil {
		return err
	}
	if err := w.file.SetSheetRow(w.currentSheet, cell, &row); err != nil {
		return err
	}

	w.currentRow++
	return nil
}

// Workbook writes an .xlsx with a "Schedule" sheet holding one row per day
// and an "Overrides" sheet listing the rules behind it.
func Workbook(out io.Writer, days []hours.DaySchedule, rules []hours.OverrideRule) error {
	w := newSheetWriter()
	defer func() { _ = w.file.Close() }()

	if err := w.addSheet("Schedule"); err != nil {
		return err
	}
	if err := w.writeHeader(scheduleColumns); err != nil {
		return err
	}
	for _, d := range days {
		if err := w.writeRow(dayRow(d)); err != nil {
			return fmt.Errorf("write %s: %w", d.Date.Format(hours.DateLayout), err)
		}
	}

	if err := w.addSheet("Overrides"); err != nil {
		return err
	}
	if err := w.writeHeader(overrideColumns); err != nil {
		return err
	}
	for _, r := range rules {
		if err := w.writeRow(ruleRow(r)); err != nil {
			return fmt.Errorf("write rule %s: %w", r.ID, err)
		}
	}

	_ = w.file.SetColWidth("Schedule", "A", "A", 12)
	_ = w.file.SetColWidth("Schedule", "H", "I", 30)
	_ = w.file.SetColWidth("Overrides", "B", "B", 30)
	return w.file.Write(out)
}

func dayRow(d hours.DaySchedule) []any {
	status, open, closeAt, overnight := "closed", "", "", ""
	if h := d.Hours(); h != nil {
		status, open, closeAt = "open", h.Open, h.Close
		if h.Overnight {
			overnight = "yes"
		}
	}

	problem := ""
	if d.Err != nil {
		problem = d.Err.Error()
	}
	return []any{
		d.Date.Format(hours.DateLayout),
		d.Date.Weekday().String(),
		status,
		open,
		closeAt,
		overnight,
		string(d.Source),
		d.Reason(),
		problem,
	}
}

func ruleRow(r hours.OverrideRule) []any {
	closed := "no"
	if r.IsClosed {
		closed = "yes"
	}
	h := ""
	if r.Hours != nil && !r.IsClosed {
		h = r.Hours.String()
	} else if r.WeeklyPattern != nil && !r.IsClosed {
		h = "weekly pattern"
	}
	return []any{
		r.ID,
		r.Name,
		string(r.Type),
		r.DateStart,
		r.EndOrStart(),
		string(r.RecurrenceOrNone()),
		r.RecurrenceEndDate,
		closed,
		h,
		r.EffectivePriority(),
	}
}
