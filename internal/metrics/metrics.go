package metrics

import (
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/phillip-england/staffplan/internal/roster"
)

type Metric string

const (
	AvgDailyRevenue Metric = "avgDailyRevenue"
	WeekendShare    Metric = "weekendShare"
	PeakShare       Metric = "peakShare"
)

// All lists the metrics in display order.
var All = []Metric{AvgDailyRevenue, WeekendShare, PeakShare}

const (
	standardHoursFrom = 12
	peakHoursFrom     = 18
	peakHoursTo       = 21
)

// DailyRow is one business day from the point-of-sale feed.
type DailyRow struct {
	Location    roster.Location `json:"location"`
	Date        string          `json:"date"`
	Revenue     float64         `json:"revenue"`
	DeliveryNet float64         `json:"deliveryNet"`
	LaborCost   float64         `json:"laborCost"`
}

// HourlyRow is the average revenue for one hour of the day across a month.
type HourlyRow struct {
	Location       roster.Location `json:"location"`
	Month          string          `json:"month"`
	Hour           int             `json:"hour"`
	AvgRevenue     float64         `json:"avgRevenue"`
	AvgDeliveryNet float64         `json:"avgDeliveryNet"`
}

type Feed struct {
	Daily  []DailyRow  `json:"daily"`
	Hourly []HourlyRow `json:"hourly"`
}

type Summary struct {
	Location        roster.Location `json:"location"`
	Month           string          `json:"month"`
	OperatingDays   int             `json:"operatingDays"`
	AvgDailyRevenue float64         `json:"avgDailyRevenue"`
	WeekendShare    float64         `json:"weekendShare"`
	PeakShare       float64         `json:"peakShare"`
	LaborCost       float64         `json:"laborCost"`
}

func (s Summary) Value(m Metric) float64 {
	switch m {
	case AvgDailyRevenue:
		return s.AvgDailyRevenue
	case WeekendShare:
		return s.WeekendShare
	case PeakShare:
		return s.PeakShare
	default:
		return 0
	}
}

func net(revenue, delivery float64, includeDelivery bool) decimal.Decimal {
	value := decimal.NewFromFloat(revenue)
	if !includeDelivery {
		value = value.Sub(decimal.NewFromFloat(delivery))
	}
	return value
}

func share(part, whole decimal.Decimal) float64 {
	if !whole.IsPositive() {
		return 0
	}
	return part.Div(whole).Mul(decimal.NewFromInt(100)).InexactFloat64()
}

// Summarize computes the demand metrics for loc in month (YYYY-MM). It reads
// the feed directly every time so toggling delivery is reflected at once.
func Summarize(feed Feed, loc roster.Location, month string, includeDelivery bool) Summary {
	s := Summary{Location: loc, Month: month}

	total := decimal.Zero
	weekend := decimal.Zero
	nonMonday := decimal.Zero
	labor := decimal.Zero
	for _, row := range feed.Daily {
		if row.Location != loc || !strings.HasPrefix(row.Date, month+"-") {
			continue
		}
		day, err := roster.ParseDate(row.Date)
		if err != nil {
			continue
		}
		revenue := net(row.Revenue, row.DeliveryNet, includeDelivery)
		if !revenue.IsPositive() {
			continue
		}
		s.OperatingDays++
		total = total.Add(revenue)
		labor = labor.Add(decimal.NewFromFloat(row.LaborCost))
		switch day.Weekday() {
		case time.Monday:
			continue
		case time.Friday, time.Saturday, time.Sunday:
			weekend = weekend.Add(revenue)
		}
		nonMonday = nonMonday.Add(revenue)
	}
	if s.OperatingDays > 0 {
		s.AvgDailyRevenue = total.Div(decimal.NewFromInt(int64(s.OperatingDays))).InexactFloat64()
	}
	s.WeekendShare = share(weekend, nonMonday)
	s.LaborCost = labor.InexactFloat64()

	standard := decimal.Zero
	peak := decimal.Zero
	for _, row := range feed.Hourly {
		if row.Location != loc || row.Month != month || row.Hour < standardHoursFrom {
			continue
		}
		revenue := net(row.AvgRevenue, row.AvgDeliveryNet, includeDelivery)
		if !revenue.IsPositive() {
			continue
		}
		standard = standard.Add(revenue)
		if row.Hour >= peakHoursFrom && row.Hour <= peakHoursTo {
			peak = peak.Add(revenue)
		}
	}
	s.PeakShare = share(peak, standard)
	return s
}

// Months lists every month with daily rows for loc, oldest first.
func Months(feed Feed, loc roster.Location) []string {
	seen := map[string]struct{}{}
	for _, row := range feed.Daily {
		if row.Location != loc || len(row.Date) < len(roster.MonthLayout) {
			continue
		}
		seen[row.Date[:len(roster.MonthLayout)]] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for m := range seen {
		out = append(out, m)
	}
	sort.Strings(out)
	return out
}

// Observed summarizes every month for loc that has nonzero revenue.
func Observed(feed Feed, loc roster.Location, includeDelivery bool) []Summary {
	var out []Summary
	for _, month := range Months(feed, loc) {
		s := Summarize(feed, loc, month, includeDelivery)
		if s.AvgDailyRevenue > 0 {
			out = append(out, s)
		}
	}
	return out
}
