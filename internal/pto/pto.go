package pto

import (
	"sort"
	"strings"
	"time"

	"github.com/phillip-england/staffplan/internal/roster"
	"github.com/phillip-england/staffplan/internal/schedule"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusApproved  Status = "approved"
	StatusDenied    Status = "denied"
	StatusCancelled Status = "cancelled"
)

type Request struct {
	ID        string          `json:"id"`
	Employee  string          `json:"employee"`
	Location  roster.Location `json:"location"`
	StartDate string          `json:"startDate"`
	EndDate   string          `json:"endDate"`
	Status    Status          `json:"status"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// Actionable requests can still keep someone off the floor.
func (r Request) Actionable() bool {
	s := Status(strings.ToLower(string(r.Status)))
	return s == StatusPending || s == StatusApproved
}

// Covers reports whether date falls inside the request's inclusive range.
// Dates compare as YYYY-MM-DD strings.
func (r Request) Covers(date string) bool {
	end := r.EndDate
	if end == "" {
		end = r.StartDate
	}
	return r.StartDate != "" && r.StartDate <= date && date <= end
}

// Dedupe keeps one request per id, the most recently updated one, ordered
// by start date then employee. Locations are normalized to their canonical
// codes; unknown locations are kept as sent and match no store.
func Dedupe(requests []Request) []Request {
	latest := map[string]Request{}
	var anonymous []Request
	for _, r := range requests {
		if loc, err := roster.ParseLocation(string(r.Location)); err == nil {
			r.Location = loc
		}
		if r.ID == "" {
			anonymous = append(anonymous, r)
			continue
		}
		if prev, ok := latest[r.ID]; ok && prev.UpdatedAt.After(r.UpdatedAt) {
			continue
		}
		latest[r.ID] = r
	}
	out := make([]Request, 0, len(latest)+len(anonymous))
	for _, r := range latest {
		out = append(out, r)
	}
	out = append(out, anonymous...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].StartDate != out[j].StartDate {
			return out[i].StartDate < out[j].StartDate
		}
		return out[i].Employee < out[j].Employee
	})
	return out
}

// InScope returns the actionable requests covering date at scope.
func InScope(scope roster.Location, date string, requests []Request) []Request {
	var out []Request
	for _, r := range requests {
		if r.Actionable() && r.Location.Covers(scope) && r.Covers(date) {
			out = append(out, r)
		}
	}
	return out
}

type Conflict struct {
	Date      string   `json:"date"`
	Count     int      `json:"count"`
	Employees []string `json:"employees"`
}

// Conflicts lists employees with actionable time off on date who are also
// assigned to a slot on day.
func Conflicts(scope roster.Location, date string, day *schedule.Day, requests []Request) Conflict {
	out := Conflict{Date: date}
	if day == nil {
		return out
	}
	assigned := map[string]struct{}{}
	for _, name := range day.AssignedNames() {
		assigned[roster.NormalizeName(name)] = struct{}{}
	}
	seen := map[string]struct{}{}
	for _, r := range InScope(scope, date, requests) {
		key := roster.NormalizeName(r.Employee)
		if key == "" {
			continue
		}
		if _, ok := assigned[key]; !ok {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out.Employees = append(out.Employees, strings.TrimSpace(r.Employee))
	}
	out.Count = len(out.Employees)
	return out
}

// WeekConflicts runs Conflicts for every day of week wi in p.
func WeekConflicts(p *schedule.Plan, wi int, requests []Request) []Conflict {
	if wi < 0 || wi >= len(p.Weeks) {
		return nil
	}
	var out []Conflict
	for i := range p.Weeks[wi].Days {
		d := &p.Weeks[wi].Days[i]
		if c := Conflicts(p.Location, d.Date, d, requests); c.Count > 0 {
			out = append(out, c)
		}
	}
	return out
}
