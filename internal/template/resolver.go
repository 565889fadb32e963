package template

import (
	"time"

	"github.com/phillip-england/staffplan/internal/roster"
)

// Resolver merges template layers into one weekday -> slots mapping.
// Precedence, lowest first: universal default, location override,
// profile default, profile location.
type Resolver struct {
	universal Layer
	overrides map[roster.Location]Layer
	profiles  Profiles
}

func NewResolver(profiles Profiles) *Resolver {
	return &Resolver{
		universal: UniversalLayer(),
		overrides: LocationOverrides(),
		profiles:  profiles,
	}
}

func (r *Resolver) layers(loc roster.Location) []Layer {
	return []Layer{
		r.universal,
		r.overrides[loc],
		r.profiles.Default,
		r.profiles.Locations[loc],
	}
}

// Resolve returns a fresh copy of the slots for loc on wd. Monday always
// mirrors Tuesday.
func (r *Resolver) Resolve(loc roster.Location, wd time.Weekday) []Slot {
	if wd == time.Monday {
		wd = time.Tuesday
	}
	var resolved []Slot
	for _, layer := range r.layers(loc) {
		if slots := effective(layer, wd); len(slots) > 0 {
			resolved = slots
		}
	}
	if len(resolved) == 0 {
		return FallbackDay()
	}
	return resolved
}

// ResolveWeek resolves all seven days in Monday-first order.
func (r *Resolver) ResolveWeek(loc roster.Location) [7][]Slot {
	var week [7][]Slot
	for i, wd := range roster.Weekdays {
		week[i] = r.Resolve(loc, wd)
	}
	return week
}

func effective(layer Layer, wd time.Weekday) []Slot {
	if layer == nil {
		return nil
	}
	if slots := sanitizeEntries(layer[wd]); len(slots) > 0 {
		return slots
	}
	// Missing or fully malformed weekdays inherit this layer's Tuesday.
	return sanitizeEntries(layer[time.Tuesday])
}

// UniversalLayer is the chain-wide default week.
func UniversalLayer() Layer {
	weekday := []Entry{
		{Start: "06:00", End: "14:00", Role: "Opener", Category: string(Opener), Headcount: 2},
		{Start: "10:30", End: "14:30", Role: "Lunch Peak", Category: string(Support), Headcount: 2},
		{Start: "11:00", End: "17:00", Role: "Mid Support", Category: string(Support), Headcount: 1},
		{Start: "17:00", End: "21:00", Role: "Dinner Peak", Category: string(Support), Headcount: 1},
		{Start: "14:00", End: "22:30", Role: "Closer", Category: string(Closer), Headcount: 2},
	}
	weekend := []Entry{
		{Start: "06:00", End: "14:00", Role: "Opener", Category: string(Opener), Headcount: 2},
		{Start: "10:00", End: "15:00", Role: "Lunch Peak", Category: string(Support), Headcount: 3},
		{Start: "11:00", End: "17:00", Role: "Mid Support", Category: string(Support), Headcount: 2},
		{Start: "17:00", End: "21:30", Role: "Dinner Peak", Category: string(Support), Headcount: 2},
		{Start: "14:00", End: "22:30", Role: "Closer", Category: string(Closer), Headcount: 3},
	}
	sunday := []Entry{
		{Start: "07:00", End: "14:00", Role: "Opener", Category: string(Opener), Headcount: 1},
		{Start: "10:30", End: "15:00", Role: "Lunch Peak", Category: string(Support), Headcount: 2},
		{Start: "14:00", End: "21:30", Role: "Closer", Category: string(Closer), Headcount: 2},
	}
	return Layer{
		time.Tuesday:  weekday,
		time.Friday:   weekend,
		time.Saturday: weekend,
		time.Sunday:   sunday,
	}
}

// LocationOverrides carries store-specific adjustments on top of the
// universal week.
func LocationOverrides() map[roster.Location]Layer {
	return map[roster.Location]Layer{
		roster.LocationEP: {
			time.Saturday: {
				{Start: "06:00", End: "14:00", Role: "Opener", Category: string(Opener), Headcount: 2},
				{Start: "09:30", End: "15:00", Role: "Lunch Peak", Category: string(Support), Headcount: 3},
				{Start: "11:00", End: "17:00", Role: "Mid Support", Category: string(Support), Headcount: 2},
				{Start: "16:30", End: "21:30", Role: "Dinner Peak", Category: string(Support), Headcount: 3},
				{Start: "14:00", End: "22:30", Role: "Closer", Category: string(Closer), Headcount: 3},
			},
		},
		roster.LocationNL: nil,
	}
}
