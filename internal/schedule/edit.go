package schedule

import (
	"strings"

	"github.com/phillip-england/staffplan/internal/template"
)

// edit clones p, runs fn against the day at date and records the change.
func edit(p *Plan, date string, exception bool, fn func(d *Day) error) (*Plan, error) {
	next := p.Clone()
	wi, di, err := next.Locate(date)
	if err != nil {
		return nil, err
	}
	d := &next.Weeks[wi].Days[di]
	if err := fn(d); err != nil {
		return nil, err
	}
	if exception {
		d.HasException = true
	}
	next.Touch(wi)
	return next, nil
}

func SetHeadcount(p *Plan, date, slotID string, headcount int) (*Plan, error) {
	return edit(p, date, true, func(d *Day) error {
		i, err := d.SlotIndex(slotID)
		if err != nil {
			return err
		}
		d.Slots[i].SetHeadcount(headcount)
		return nil
	})
}

// AssignPosition names the person working one position of a slot. Staffing
// names is not a template deviation, so it does not raise an exception.
func AssignPosition(p *Plan, date, slotID string, position int, name string) (*Plan, error) {
	return edit(p, date, false, func(d *Day) error {
		i, err := d.SlotIndex(slotID)
		if err != nil {
			return err
		}
		if position < 0 || position >= len(d.Slots[i].Assignments) {
			return ErrPosition
		}
		d.Slots[i].Assignments[position] = strings.TrimSpace(name)
		return nil
	})
}

// SetAssignments replaces every position of a slot at once. Extra names are
// dropped and missing ones are left open.
func SetAssignments(p *Plan, date, slotID string, names []string) (*Plan, error) {
	return edit(p, date, false, func(d *Day) error {
		i, err := d.SlotIndex(slotID)
		if err != nil {
			return err
		}
		slot := &d.Slots[i]
		for pos := range slot.Assignments {
			slot.Assignments[pos] = ""
			if pos < len(names) {
				slot.Assignments[pos] = strings.TrimSpace(names[pos])
			}
		}
		return nil
	})
}

func AddSlot(p *Plan, date string, tpl template.Slot) (*Plan, string, error) {
	normalized, ok := ValidTemplateSlot(tpl)
	if !ok {
		return nil, "", ErrInvalidSlot
	}
	slot := NewSlot(normalized)
	next, err := edit(p, date, true, func(d *Day) error {
		d.Slots = append(d.Slots, slot)
		return nil
	})
	if err != nil {
		return nil, "", err
	}
	return next, slot.ID, nil
}

func RemoveSlot(p *Plan, date, slotID string) (*Plan, error) {
	return edit(p, date, true, func(d *Day) error {
		i, err := d.SlotIndex(slotID)
		if err != nil {
			return err
		}
		d.Slots = append(d.Slots[:i], d.Slots[i+1:]...)
		return nil
	})
}

func SetNote(p *Plan, date, note string) (*Plan, error) {
	note = strings.TrimSpace(note)
	return edit(p, date, true, func(d *Day) error {
		d.Note = note
		return nil
	})
}

// CopyDay replaces the slots of date with a copy of the reference day,
// assignments included.
func CopyDay(p *Plan, fromDate, date string) (*Plan, error) {
	ref, err := p.Day(fromDate)
	if err != nil {
		return nil, err
	}
	source := ref.clone()
	return edit(p, date, true, func(d *Day) error {
		slots := make([]Slot, len(source.Slots))
		for i, s := range source.Slots {
			copied := NewSlot(s.Slot)
			copy(copied.Assignments, s.Assignments)
			slots[i] = copied
		}
		d.Slots = slots
		return nil
	})
}
