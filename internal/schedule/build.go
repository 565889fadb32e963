package schedule

import (
	"time"

	"github.com/phillip-england/staffplan/internal/roster"
	"github.com/phillip-england/staffplan/internal/template"
	"github.com/phillip-england/staffplan/internal/trigger"
)

const (
	DefaultHorizonWeeks = 4
	MaxHorizonWeeks     = 12
)

// Resolver supplies the template for a location and weekday.
type Resolver interface {
	Resolve(loc roster.Location, wd time.Weekday) []template.Slot
}

// NewPlan returns an empty plan with default thresholds and settings.
func NewPlan(loc roster.Location) *Plan {
	return &Plan{
		Location: loc,
		Approval: NextWeekApproval{Status: ApprovalDraft},
		Triggers: trigger.DefaultRuleSet(),
		Settings: Settings{IncludeDelivery: true},
	}
}

// Build expands start and horizon into weeks for loc. Days from prev that
// carry edits are kept as-is, pristine days are kept only while their slot
// structure still matches the template. Building always clears exception
// requests and resets the next-week gate.
func Build(prev *Plan, r Resolver, loc roster.Location, start time.Time, horizon int) *Plan {
	if horizon < 1 {
		horizon = DefaultHorizonWeeks
	}
	if horizon > MaxHorizonWeeks {
		horizon = MaxHorizonWeeks
	}

	var next *Plan
	if prev != nil {
		next = prev.Clone()
	} else {
		next = NewPlan(loc)
	}

	existing := map[string]Day{}
	if prev != nil {
		for _, w := range prev.Weeks {
			for i, d := range w.Days {
				existing[dayKey(w.WeekStart, i)] = d
			}
		}
	}

	monday := roster.MondayOf(start)
	weeks := make([]Week, horizon)
	for wi := 0; wi < horizon; wi++ {
		weekStart := monday.AddDate(0, 0, 7*wi)
		week := Week{WeekStart: roster.FormatDate(weekStart)}
		for di, wd := range roster.Weekdays {
			date := weekStart.AddDate(0, 0, di)
			fresh := r.Resolve(loc, wd)
			if old, ok := existing[dayKey(week.WeekStart, di)]; ok {
				if !old.Pristine() || template.Equal(old.Structure(), fresh) {
					week.Days[di] = old.clone()
					continue
				}
			}
			week.Days[di] = newDay(date, fresh)
		}
		weeks[wi] = week
	}

	next.Location = loc
	next.StartDate = roster.FormatDate(monday)
	next.HorizonWeeks = horizon
	next.Weeks = weeks
	next.Requests = nil
	next.Approval = NextWeekApproval{Status: ApprovalDraft}
	// In-flight requests are gone, so their days go back to unsubmitted.
	for wi := range next.Weeks {
		for di := range next.Weeks[wi].Days {
			d := &next.Weeks[wi].Days[di]
			if d.PendingRequestID != "" {
				d.PendingRequestID = ""
				d.HasException = true
			}
		}
	}
	return next
}

func newDay(date time.Time, tpl []template.Slot) Day {
	slots := make([]Slot, len(tpl))
	for i, t := range tpl {
		slots[i] = NewSlot(t)
	}
	return Day{
		Date:    roster.FormatDate(date),
		Weekday: date.Weekday().String(),
		Season:  roster.SeasonOf(date),
		Slots:   slots,
	}
}

func dayKey(weekStart string, weekday int) string {
	return weekStart + "#" + roster.Weekdays[weekday].String()
}
