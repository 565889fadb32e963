package sheets

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/phillip-england/staffplan/internal/pto"
	"github.com/phillip-england/staffplan/internal/schedule"
)

var ErrNothingToExport = errors.New("plan has no weeks to export")

var weekHeaders = []string{
	"Date", "Weekday", "Season", "Role", "Category", "Start", "End", "Headcount", "Assigned", "Exception", "Note",
}

// ExportPlan writes one sheet per week plus the next-week approval and the
// actionable PTO overlapping the plan.
func ExportPlan(plan *schedule.Plan, requests []pto.Request) (*bytes.Buffer, string, error) {
	if len(plan.Weeks) == 0 {
		return nil, "", ErrNothingToExport
	}

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#D9E1F2"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return nil, "", err
	}

	for i, week := range plan.Weeks {
		name := fmt.Sprintf("Week %d %s", i+1, week.WeekStart)
		if _, err := f.NewSheet(name); err != nil {
			return nil, "", err
		}
		if err := writeWeek(f, name, week, headerStyle); err != nil {
			return nil, "", err
		}
	}
	if err := writeApproval(f, plan, headerStyle); err != nil {
		return nil, "", err
	}
	if err := writePTO(f, plan, requests, headerStyle); err != nil {
		return nil, "", err
	}

	if idx, err := f.GetSheetIndex(fmt.Sprintf("Week 1 %s", plan.Weeks[0].WeekStart)); err == nil {
		f.SetActiveSheet(idx)
	}
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, "", err
	}

	buf := new(bytes.Buffer)
	if err := f.Write(buf); err != nil {
		return nil, "", err
	}
	filename := fmt.Sprintf("staffplan_%s_%s.xlsx", strings.ToLower(string(plan.Location)), plan.StartDate)
	return buf, filename, nil
}

func writeHeader(f *excelize.File, sheet string, headers []string, style int) error {
	for i, h := range headers {
		if err := f.SetCellValue(sheet, cell(colName(i), 1), h); err != nil {
			return err
		}
	}
	last := cell(colName(len(headers)-1), 1)
	return f.SetCellStyle(sheet, "A1", last, style)
}

func writeWeek(f *excelize.File, sheet string, week schedule.Week, style int) error {
	if err := writeHeader(f, sheet, weekHeaders, style); err != nil {
		return err
	}
	_ = f.SetColWidth(sheet, "A", "C", 12)
	_ = f.SetColWidth(sheet, "D", "D", 18)
	_ = f.SetColWidth(sheet, "I", "I", 32)
	_ = f.SetColWidth(sheet, "K", "K", 32)

	row := 2
	for _, d := range week.Days {
		exception := ""
		if d.HasException {
			exception = "yes"
		}
		if len(d.Slots) == 0 {
			values := []any{d.Date, d.Weekday, string(d.Season), "", "", "", "", 0, "", exception, d.Note}
			if err := f.SetSheetRow(sheet, cell("A", row), &values); err != nil {
				return err
			}
			row++
			continue
		}
		for _, s := range d.Slots {
			assigned := make([]string, 0, len(s.Assignments))
			for _, name := range s.Assignments {
				if name == "" {
					name = "(open)"
				}
				assigned = append(assigned, name)
			}
			values := []any{
				d.Date, d.Weekday, string(d.Season), s.Role, string(s.Category),
				s.Start, s.End, s.Headcount, strings.Join(assigned, ", "), exception, d.Note,
			}
			if err := f.SetSheetRow(sheet, cell("A", row), &values); err != nil {
				return err
			}
			row++
		}
	}
	return nil
}

func writeApproval(f *excelize.File, plan *schedule.Plan, style int) error {
	const sheet = "Approval"
	if _, err := f.NewSheet(sheet); err != nil {
		return err
	}
	if err := writeHeader(f, sheet, []string{"Field", "Value"}, style); err != nil {
		return err
	}
	_ = f.SetColWidth(sheet, "A", "B", 24)

	a := plan.Approval
	rows := [][]any{
		{"Location", string(plan.Location)},
		{"Week", plan.Weeks[0].WeekStart},
		{"Status", string(a.Status)},
		{"Submitted", timeText(a.SubmittedAt)},
		{"Reviewed", timeText(a.ReviewedAt)},
		{"Reviewer", a.Reviewer},
	}
	pending := 0
	for _, r := range plan.Requests {
		if r.Status == schedule.RequestPending {
			pending++
		}
	}
	rows = append(rows, []any{"Pending day requests", pending})
	for i, values := range rows {
		if err := f.SetSheetRow(sheet, cell("A", i+2), &values); err != nil {
			return err
		}
	}
	return nil
}

func writePTO(f *excelize.File, plan *schedule.Plan, requests []pto.Request, style int) error {
	const sheet = "PTO"
	if _, err := f.NewSheet(sheet); err != nil {
		return err
	}
	if err := writeHeader(f, sheet, []string{"Employee", "Location", "Start", "End", "Status"}, style); err != nil {
		return err
	}
	_ = f.SetColWidth(sheet, "A", "A", 24)

	first := plan.Weeks[0].Days[0].Date
	last := plan.Weeks[len(plan.Weeks)-1].Days[6].Date
	row := 2
	for _, r := range pto.Dedupe(requests) {
		if !r.Actionable() || !r.Location.Covers(plan.Location) {
			continue
		}
		end := r.EndDate
		if end == "" {
			end = r.StartDate
		}
		if r.StartDate > last || end < first {
			continue
		}
		values := []any{r.Employee, string(r.Location), r.StartDate, end, string(r.Status)}
		if err := f.SetSheetRow(sheet, cell("A", row), &values); err != nil {
			return err
		}
		row++
	}
	return nil
}

func colName(idx int) string {
	name, _ := excelize.ColumnNumberToName(idx + 1)
	return name
}

func cell(col string, row int) string {
	return fmt.Sprintf("%s%d", col, row)
}

func timeText(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(time.RFC3339)
}
