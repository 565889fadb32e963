package weather

import (
	"fmt"
	"math"
	"time"

	"github.com/phillip-england/staffplan/internal/roster"
)

type Impact string

const (
	ImpactUp      Impact = "up"
	ImpactDown    Impact = "down"
	ImpactNeutral Impact = "neutral"
)

const (
	WindowEvening = "evening"

	eveningFrom = 20
	eveningTo   = 23

	heavyRainProb = 75
	heavyRainMM   = 2
	lateRainProb  = 60
	lateRainMM    = 1

	// TempDeltaF is the distance from the normal high, in Fahrenheit, that
	// moves demand.
	TempDeltaF = 10
)

// DailyRecord is one day of history or forecast for a location.
type DailyRecord struct {
	Location      roster.Location `json:"location"`
	Date          string          `json:"date"`
	HighF         float64         `json:"highF"`
	LowF          float64         `json:"lowF"`
	PrecipProb    float64         `json:"precipProb"`
	PrecipMM      float64         `json:"precipMM"`
	ConditionCode int             `json:"conditionCode"`
}

type HourlyRecord struct {
	Location   roster.Location `json:"location"`
	Date       string          `json:"date"`
	Hour       int             `json:"hour"`
	PrecipProb float64         `json:"precipProb"`
	PrecipMM   float64         `json:"precipMM"`
}

// Feed is everything the weather source returns for the plan's locations.
// History backs the day-of-year normals.
type Feed struct {
	Daily   []DailyRecord  `json:"daily"`
	Hourly  []HourlyRecord `json:"hourly"`
	History []DailyRecord  `json:"history"`
}

// Signal is the derived demand verdict for one day. It is never stored.
type Signal struct {
	Impact    Impact   `json:"impact"`
	Label     string   `json:"label"`
	Reason    string   `json:"reason"`
	Delta     *float64 `json:"delta"`
	Window    string   `json:"window,omitempty"`
	EventHour *int     `json:"eventHour"`
}

func (s Signal) Actionable() bool {
	return s.Impact == ImpactUp || s.Impact == ImpactDown
}

// Classify turns the records for one day into a Signal. A timed evening
// precipitation signal always wins over the temperature comparison.
func Classify(record *DailyRecord, hourly []HourlyRecord, normals Normals) Signal {
	if signal, ok := timedPrecipitation(hourly); ok {
		return signal
	}
	if record == nil {
		return Signal{Impact: ImpactNeutral, Label: "No weather signal", Reason: "No forecast or history for this date"}
	}
	date, err := roster.ParseDate(record.Date)
	if err != nil {
		return Signal{Impact: ImpactNeutral, Label: "No weather signal", Reason: "Weather record has no usable date"}
	}
	normal, ok := normals.High(date)
	if !ok {
		return Signal{Impact: ImpactNeutral, Label: "No baseline", Reason: "No historical normal for this calendar day"}
	}
	raw := record.HighF - normal
	delta := math.Round(raw*10) / 10
	signal := Signal{Delta: &delta}
	switch {
	case raw >= TempDeltaF:
		signal.Impact = ImpactUp
		signal.Label = "Demand Lift"
		signal.Reason = fmt.Sprintf("High of %.0f°F is %.1f°F above normal", record.HighF, delta)
	case raw <= -TempDeltaF:
		signal.Impact = ImpactDown
		signal.Label = "Demand Risk"
		signal.Reason = fmt.Sprintf("High of %.0f°F is %.1f°F below normal", record.HighF, -delta)
	default:
		signal.Impact = ImpactNeutral
		signal.Label = "Near Expected"
		signal.Reason = fmt.Sprintf("High of %.0f°F is within %d°F of normal", record.HighF, TempDeltaF)
	}
	return signal
}

func timedPrecipitation(hourly []HourlyRecord) (Signal, bool) {
	var late *HourlyRecord
	for i := range hourly {
		h := &hourly[i]
		if h.Hour < eveningFrom || h.Hour > eveningTo {
			continue
		}
		if h.PrecipProb >= heavyRainProb || h.PrecipMM >= heavyRainMM {
			return rainSignal("Evening Rain Risk", h), true
		}
		if late == nil && (h.PrecipProb >= lateRainProb || h.PrecipMM >= lateRainMM) {
			late = h
		}
	}
	if late != nil {
		return rainSignal("Late Rain Risk", late), true
	}
	return Signal{}, false
}

func rainSignal(label string, h *HourlyRecord) Signal {
	hour := h.Hour
	return Signal{
		Impact:    ImpactDown,
		Label:     label,
		Reason:    fmt.Sprintf("%.0f%% chance of rain (%.1fmm) at %s", h.PrecipProb, h.PrecipMM, roster.FormatClock(hour*60)),
		Window:    WindowEvening,
		EventHour: &hour,
	}
}

// SignalFor classifies date for loc using the feed's records.
func (f Feed) SignalFor(loc roster.Location, date string, normals Normals) Signal {
	var record *DailyRecord
	for i := range f.Daily {
		if f.Daily[i].Location == loc && f.Daily[i].Date == date {
			record = &f.Daily[i]
			break
		}
	}
	if record == nil {
		for i := range f.History {
			if f.History[i].Location == loc && f.History[i].Date == date {
				record = &f.History[i]
				break
			}
		}
	}
	var hourly []HourlyRecord
	for _, h := range f.Hourly {
		if h.Location == loc && h.Date == date {
			hourly = append(hourly, h)
		}
	}
	return Classify(record, hourly, normals)
}

// Normals maps a calendar day (MM-DD) to its mean historical high.
type Normals map[string]float64

const normalKey = "01-02"

// BuildNormals averages the highs for loc over the lookback years before
// asOf. February 29 is left out of the series.
func BuildNormals(history []DailyRecord, loc roster.Location, asOf time.Time, lookbackYears int) Normals {
	if lookbackYears < 1 {
		lookbackYears = 1
	}
	from := asOf.AddDate(-lookbackYears, 0, 0)
	sums := map[string]float64{}
	counts := map[string]int{}
	for _, r := range history {
		if r.Location != loc {
			continue
		}
		day, err := roster.ParseDate(r.Date)
		if err != nil || !day.Before(asOf) || day.Before(from) {
			continue
		}
		if day.Month() == time.February && day.Day() == 29 {
			continue
		}
		key := day.Format(normalKey)
		sums[key] += r.HighF
		counts[key]++
	}
	out := make(Normals, len(sums))
	for key, sum := range sums {
		out[key] = sum / float64(counts[key])
	}
	return out
}

// High returns the normal high for date's calendar day. February 29 reads
// the February 28 normal.
func (n Normals) High(date time.Time) (float64, bool) {
	if date.Month() == time.February && date.Day() == 29 {
		date = date.AddDate(0, 0, -1)
	}
	v, ok := n[date.Format(normalKey)]
	return v, ok
}
