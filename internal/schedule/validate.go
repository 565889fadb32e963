package schedule

import (
	"strings"

	"github.com/phillip-england/staffplan/internal/template"
)

const (
	MinOpeners = 1
	MinClosers = 2
)

type Validation struct {
	OK       bool     `json:"ok"`
	Openers  int      `json:"openers"`
	Closers  int      `json:"closers"`
	Problems []string `json:"problems,omitempty"`
}

func (v Validation) Message() string {
	if v.OK {
		return "ok"
	}
	return strings.Join(v.Problems, "; ")
}

// ValidateDay checks minimum opener and closer coverage by summed headcount.
// Edits may leave a day failing this; only the workflow gates enforce it.
func ValidateDay(d *Day) Validation {
	v := Validation{}
	for _, s := range d.Slots {
		switch s.Category {
		case template.Opener:
			v.Openers += s.Headcount
		case template.Closer:
			v.Closers += s.Headcount
		}
	}
	if v.Openers < MinOpeners {
		v.Problems = append(v.Problems, "Need at least one opening position")
	}
	if v.Closers < MinClosers {
		v.Problems = append(v.Problems, "Need at least two closing positions")
	}
	v.OK = len(v.Problems) == 0
	return v
}
