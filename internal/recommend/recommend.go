package recommend

import (
	"errors"
	"regexp"

	"github.com/phillip-england/staffplan/internal/schedule"
	"github.com/phillip-england/staffplan/internal/template"
	"github.com/phillip-england/staffplan/internal/weather"
)

type Action string

const (
	IncreaseSupport Action = "increase_support"
	DecreaseSupport Action = "decrease_support"
)

var (
	ErrNoRecommendation = errors.New("no staffing change recommended for this day")
	ErrAlreadyApplied   = errors.New("recommendation already applied to this day")
)

const (
	eveningStart = 17 * 60
	eveningEnd   = 20 * 60
)

var (
	peakRole    = regexp.MustCompile(`(?i)peak`)
	supportRole = regexp.MustCompile(`(?i)peak|support`)
)

// TemporarySlot is added when demand lifts and no support slot exists.
func TemporarySlot() template.Slot {
	return template.Slot{Start: "17:00", End: "22:00", Role: "Peak Support", Category: template.Support, Headcount: 1}
}

// Recommendation is one bounded change to a day. SlotID is empty when a
// temporary slot will be added.
type Recommendation struct {
	Date   string         `json:"date"`
	Action Action         `json:"action"`
	SlotID string         `json:"slotId,omitempty"`
	Role   string         `json:"role"`
	From   int            `json:"from"`
	To     int            `json:"to"`
	Remove bool           `json:"remove,omitempty"`
	Signal weather.Signal `json:"signal"`
}

func (r Recommendation) Key() string {
	return Key(r.Date, r.Action)
}

func Key(date string, action Action) string {
	return date + "|" + string(action)
}

// Applied reports whether this exact recommendation was already accepted.
func (r Recommendation) Applied(d *schedule.Day) bool {
	return d.LastAcceptedRecommendationKey == r.Key()
}

func ActionFor(signal weather.Signal) (Action, bool) {
	switch signal.Impact {
	case weather.ImpactUp:
		return IncreaseSupport, true
	case weather.ImpactDown:
		return DecreaseSupport, true
	default:
		return "", false
	}
}

func adjustable(d *schedule.Day) []int {
	var out []int
	for i, s := range d.Slots {
		if s.Category == template.Support {
			out = append(out, i)
		}
	}
	return out
}

// Recommend picks the change for d under signal. Neutral signals and days
// with nothing safe to adjust return ErrNoRecommendation.
func Recommend(d *schedule.Day, signal weather.Signal) (Recommendation, error) {
	rec := Recommendation{Date: d.Date, Signal: signal}
	candidates := adjustable(d)
	switch signal.Impact {
	case weather.ImpactUp:
		rec.Action = IncreaseSupport
		i, ok := pick(d, candidates, peakRole, false)
		if !ok {
			tpl := TemporarySlot()
			rec.Role = tpl.Role
			rec.To = tpl.Headcount
			return rec, nil
		}
		s := d.Slots[i]
		if s.Headcount >= template.MaxHeadcount {
			return Recommendation{}, ErrNoRecommendation
		}
		rec.SlotID, rec.Role, rec.From, rec.To = s.ID, s.Role, s.Headcount, s.Headcount+1
		return rec, nil
	case weather.ImpactDown:
		rec.Action = DecreaseSupport
		if signal.Window == weather.WindowEvening {
			if late := evening(d, candidates); len(late) > 0 {
				candidates = late
			}
		}
		i, ok := pick(d, candidates, supportRole, true)
		if !ok {
			return Recommendation{}, ErrNoRecommendation
		}
		s := d.Slots[i]
		rec.SlotID, rec.Role, rec.From = s.ID, s.Role, s.Headcount
		if s.Headcount > 1 {
			rec.To = s.Headcount - 1
		} else {
			rec.Remove = true
		}
		return rec, nil
	default:
		return Recommendation{}, ErrNoRecommendation
	}
}

// pick prefers a candidate whose role matches pattern, otherwise the first
// candidate, or the chronologically last one when last is set.
func pick(d *schedule.Day, candidates []int, pattern *regexp.Regexp, last bool) (int, bool) {
	if len(candidates) == 0 {
		return 0, false
	}
	for _, i := range candidates {
		if pattern.MatchString(d.Slots[i].Role) {
			return i, true
		}
	}
	if !last {
		return candidates[0], true
	}
	best := candidates[0]
	for _, i := range candidates[1:] {
		if later(d.Slots[i].Slot, d.Slots[best].Slot) {
			best = i
		}
	}
	return best, true
}

func later(a, b template.Slot) bool {
	aStart, aEnd := a.Minutes()
	bStart, bEnd := b.Minutes()
	if aStart != bStart {
		return aStart > bStart
	}
	return aEnd >= bEnd
}

func evening(d *schedule.Day, candidates []int) []int {
	var out []int
	for _, i := range candidates {
		start, end := d.Slots[i].Minutes()
		if start >= eveningStart || end >= eveningEnd {
			out = append(out, i)
		}
	}
	return out
}

// Apply recomputes the recommendation for date and applies it to a copy of
// p. The day is flagged as an unsubmitted exception.
func Apply(p *schedule.Plan, date string, signal weather.Signal) (*schedule.Plan, Recommendation, error) {
	current, err := p.Day(date)
	if err != nil {
		return nil, Recommendation{}, err
	}
	if action, ok := ActionFor(signal); ok && current.LastAcceptedRecommendationKey == Key(date, action) {
		return nil, Recommendation{}, ErrAlreadyApplied
	}
	rec, err := Recommend(current, signal)
	if err != nil {
		return nil, Recommendation{}, err
	}

	next := p.Clone()
	wi, di, err := next.Locate(date)
	if err != nil {
		return nil, Recommendation{}, err
	}
	d := &next.Weeks[wi].Days[di]
	switch {
	case rec.SlotID == "":
		slot := schedule.NewSlot(TemporarySlot())
		d.Slots = append(d.Slots, slot)
		rec.SlotID = slot.ID
	case rec.Remove:
		i, err := d.SlotIndex(rec.SlotID)
		if err != nil {
			return nil, Recommendation{}, err
		}
		d.Slots = append(d.Slots[:i], d.Slots[i+1:]...)
	default:
		i, err := d.SlotIndex(rec.SlotID)
		if err != nil {
			return nil, Recommendation{}, err
		}
		d.Slots[i].SetHeadcount(rec.To)
	}
	d.HasException = true
	d.LastAcceptedRecommendationKey = rec.Key()
	next.Touch(wi)
	return next, rec, nil
}

// Preview returns the recommendation for date without applying it.
func Preview(p *schedule.Plan, date string, signal weather.Signal) (*Recommendation, error) {
	d, err := p.Day(date)
	if err != nil {
		return nil, err
	}
	rec, err := Recommend(d, signal)
	if errors.Is(err, ErrNoRecommendation) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}
