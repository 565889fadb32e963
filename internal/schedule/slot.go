package schedule

import (
	"strings"

	"github.com/google/uuid"

	"github.com/phillip-england/staffplan/internal/roster"
	"github.com/phillip-england/staffplan/internal/template"
)

func NewSlot(tpl template.Slot) Slot {
	s := Slot{ID: uuid.NewString(), Slot: tpl}
	s.syncAssignments()
	return s
}

// SetHeadcount clamps n to the template bounds and resizes Assignments.
func (s *Slot) SetHeadcount(n int) {
	if n < template.MinHeadcount {
		n = template.MinHeadcount
	}
	if n > template.MaxHeadcount {
		n = template.MaxHeadcount
	}
	s.Headcount = n
	s.syncAssignments()
}

func (s *Slot) syncAssignments() {
	switch {
	case len(s.Assignments) > s.Headcount:
		s.Assignments = s.Assignments[:s.Headcount]
	case len(s.Assignments) < s.Headcount:
		for len(s.Assignments) < s.Headcount {
			s.Assignments = append(s.Assignments, "")
		}
	}
}

// ValidTemplateSlot normalizes a manually entered slot.
func ValidTemplateSlot(tpl template.Slot) (template.Slot, bool) {
	tpl.Role = strings.TrimSpace(tpl.Role)
	if tpl.Role == "" {
		return tpl, false
	}
	start, ok := roster.ParseClock(tpl.Start)
	if !ok {
		return tpl, false
	}
	end, ok := roster.ParseClock(tpl.End)
	if !ok || end <= start {
		return tpl, false
	}
	if tpl.Headcount < template.MinHeadcount || tpl.Headcount > template.MaxHeadcount {
		return tpl, false
	}
	if !tpl.Category.Valid() {
		tpl.Category = template.ClassifyRole(tpl.Role)
	}
	tpl.Start = roster.FormatClock(start)
	tpl.End = roster.FormatClock(end)
	return tpl, true
}
