package sheets

import (
	"bytes"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/extrame/xls"
	"github.com/xuri/excelize/v2"

	"github.com/phillip-england/staffplan/internal/metrics"
	"github.com/phillip-england/staffplan/internal/roster"
)

// Imported holds the rows read from one metrics workbook.
type Imported struct {
	Daily   []metrics.DailyRow
	Hourly  []metrics.HourlyRow
	Skipped int
}

// ImportMetrics reads a daily or hourly metrics sheet. A daily sheet has
// date and revenue columns; an hourly one has month, hour and avg revenue.
// A location column overrides loc per row.
func ImportMetrics(reader io.Reader, filename string, loc roster.Location) (Imported, error) {
	rows, err := readRowsFromSpreadsheet(reader, filename)
	if err != nil {
		return Imported{}, err
	}

	headerIndex := map[string]int{}
	for i, header := range rows[0] {
		headerIndex[normalizeHeader(header)] = i
	}
	locIdx := -1
	if idx, ok := headerIndex["location"]; ok {
		locIdx = idx
	}

	if _, ok := headerIndex["hour"]; ok {
		return importHourly(rows, headerIndex, locIdx, loc)
	}
	return importDaily(rows, headerIndex, locIdx, loc)
}

func rowLocation(row []string, idx int, fallback roster.Location) (roster.Location, bool) {
	raw := cellValue(row, idx)
	if raw == "" {
		return fallback, fallback != "" && fallback != roster.LocationBoth
	}
	parsed, err := roster.ParseLocation(raw)
	if err != nil || parsed == roster.LocationBoth {
		return "", false
	}
	return parsed, true
}

func importDaily(rows [][]string, headerIndex map[string]int, locIdx int, loc roster.Location) (Imported, error) {
	dateIdx, ok := headerIndex["date"]
	if !ok {
		return Imported{}, fmt.Errorf("missing required column: date")
	}
	revenueIdx, ok := headerIndex["revenue"]
	if !ok {
		return Imported{}, fmt.Errorf("missing required column: revenue")
	}
	deliveryIdx := optionalColumn(headerIndex, "delivery net", "delivery")
	laborIdx := optionalColumn(headerIndex, "labor cost", "labor")

	var out Imported
	for _, row := range rows[1:] {
		rowLoc, ok := rowLocation(row, locIdx, loc)
		if !ok {
			out.Skipped++
			continue
		}
		date, ok := normalizeDate(cellValue(row, dateIdx))
		if !ok {
			out.Skipped++
			continue
		}
		revenue, ok := parseAmount(cellValue(row, revenueIdx))
		if !ok {
			out.Skipped++
			continue
		}
		delivery, _ := parseAmount(cellValue(row, deliveryIdx))
		labor, _ := parseAmount(cellValue(row, laborIdx))
		out.Daily = append(out.Daily, metrics.DailyRow{
			Location:    rowLoc,
			Date:        date,
			Revenue:     revenue,
			DeliveryNet: delivery,
			LaborCost:   labor,
		})
	}
	return out, nil
}

func importHourly(rows [][]string, headerIndex map[string]int, locIdx int, loc roster.Location) (Imported, error) {
	monthIdx, ok := headerIndex["month"]
	if !ok {
		return Imported{}, fmt.Errorf("missing required column: month")
	}
	hourIdx := headerIndex["hour"]
	revenueIdx := optionalColumn(headerIndex, "avg revenue", "revenue")
	if revenueIdx == -1 {
		return Imported{}, fmt.Errorf("missing required column: avg revenue")
	}
	deliveryIdx := optionalColumn(headerIndex, "avg delivery net", "delivery net")

	var out Imported
	for _, row := range rows[1:] {
		rowLoc, ok := rowLocation(row, locIdx, loc)
		if !ok {
			out.Skipped++
			continue
		}
		month, err := roster.ParseMonth(cellValue(row, monthIdx))
		if err != nil {
			out.Skipped++
			continue
		}
		hour, err := strconv.Atoi(cellValue(row, hourIdx))
		if err != nil || hour < 0 || hour > 23 {
			out.Skipped++
			continue
		}
		revenue, ok := parseAmount(cellValue(row, revenueIdx))
		if !ok {
			out.Skipped++
			continue
		}
		delivery, _ := parseAmount(cellValue(row, deliveryIdx))
		out.Hourly = append(out.Hourly, metrics.HourlyRow{
			Location:       rowLoc,
			Month:          month.Format(roster.MonthLayout),
			Hour:           hour,
			AvgRevenue:     revenue,
			AvgDeliveryNet: delivery,
		})
	}
	return out, nil
}

func optionalColumn(headerIndex map[string]int, names ...string) int {
	for _, name := range names {
		if idx, ok := headerIndex[name]; ok {
			return idx
		}
	}
	return -1
}

func readRowsFromSpreadsheet(reader io.Reader, filename string) ([][]string, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, err
	}

	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".xls":
		workbook, err := xls.OpenReader(bytes.NewReader(data), "utf-8")
		if err != nil {
			return nil, err
		}
		if workbook.NumSheets() == 0 {
			return nil, fmt.Errorf("no worksheet found")
		}
		rows := workbook.ReadAllCells(100000)
		if len(rows) == 0 {
			return nil, fmt.Errorf("worksheet is empty")
		}
		return rows, nil
	default:
		file, err := excelize.OpenReader(bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		defer func() { _ = file.Close() }()

		sheetName := file.GetSheetName(0)
		if sheetName == "" {
			return nil, fmt.Errorf("no worksheet found")
		}

		rows, err := file.GetRows(sheetName)
		if err != nil {
			return nil, err
		}
		if len(rows) == 0 {
			return nil, fmt.Errorf("worksheet is empty")
		}
		return rows, nil
	}
}

func normalizeHeader(header string) string {
	return strings.Join(strings.Fields(strings.ToLower(header)), " ")
}

func cellValue(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

var dateFormats = []string{
	"2006-01-02",
	"1/2/2006",
	"01/02/2006",
	"1/2/06",
	"01/02/06",
	"2006/01/02",
	"Jan 2, 2006",
	"January 2, 2006",
	"2006-01-02T15:04:05",
}

// normalizeDate accepts the formats point-of-sale exports use, including
// Excel date serials.
func normalizeDate(value string) (string, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", false
	}
	if serial, err := strconv.ParseFloat(value, 64); err == nil {
		if serial >= 20000 && serial <= 80000 {
			if parsed, err := excelize.ExcelDateToTime(serial, false); err == nil {
				return parsed.Format(roster.DateLayout), true
			}
		}
		return "", false
	}
	for _, format := range dateFormats {
		if parsed, err := time.Parse(format, value); err == nil {
			return parsed.Format(roster.DateLayout), true
		}
	}
	return "", false
}

func parseAmount(value string) (float64, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, false
	}
	negative := strings.HasPrefix(value, "(") && strings.HasSuffix(value, ")")
	value = strings.NewReplacer("$", "", ",", "", "(", "", ")", "").Replace(value)
	parsed, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return 0, false
	}
	if negative {
		parsed = -parsed
	}
	return parsed, true
}
