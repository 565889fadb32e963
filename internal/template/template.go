package template

import (
	"regexp"
	"strings"
	"time"

	"github.com/phillip-england/staffplan/internal/roster"
)

const (
	MinHeadcount = 1
	MaxHeadcount = 6
)

type Category string

const (
	Opener  Category = "opener"
	Closer  Category = "closer"
	Support Category = "support"
)

func (c Category) Valid() bool {
	return c == Opener || c == Closer || c == Support
}

// Slot is an immutable template position. Schedules clone it, never share it.
type Slot struct {
	Start     string   `json:"start" yaml:"start"`
	End       string   `json:"end" yaml:"end"`
	Role      string   `json:"role" yaml:"role"`
	Category  Category `json:"category" yaml:"category"`
	Headcount int      `json:"headcount" yaml:"headcount"`
}

// Minutes returns start and end as minutes after midnight.
func (s Slot) Minutes() (int, int) {
	start, _ := roster.ParseClock(s.Start)
	end, _ := roster.ParseClock(s.End)
	return start, end
}

// Entry is a raw slot definition from a layer. Entries may be malformed;
// the resolver drops the ones it cannot use.
type Entry struct {
	Start     string `json:"start" yaml:"start"`
	End       string `json:"end" yaml:"end"`
	Role      string `json:"role" yaml:"role"`
	Category  string `json:"category,omitempty" yaml:"category,omitempty"`
	Headcount int    `json:"headcount" yaml:"headcount"`
}

// Layer maps weekdays to raw entries. A weekday absent from a layer inherits
// that layer's Tuesday.
type Layer map[time.Weekday][]Entry

var (
	openerPattern = regexp.MustCompile(`(?i)open`)
	closerPattern = regexp.MustCompile(`(?i)clos`)
)

// ClassifyRole maps a legacy free-text role name onto a category. Only
// externally supplied entries without an explicit category go through here.
func ClassifyRole(role string) Category {
	switch {
	case openerPattern.MatchString(role):
		return Opener
	case closerPattern.MatchString(role):
		return Closer
	default:
		return Support
	}
}

func sanitizeEntry(e Entry) (Slot, bool) {
	role := strings.TrimSpace(e.Role)
	if role == "" {
		return Slot{}, false
	}
	start, ok := roster.ParseClock(e.Start)
	if !ok {
		return Slot{}, false
	}
	end, ok := roster.ParseClock(e.End)
	if !ok || end <= start {
		return Slot{}, false
	}
	if e.Headcount < MinHeadcount || e.Headcount > MaxHeadcount {
		return Slot{}, false
	}
	category := Category(strings.ToLower(strings.TrimSpace(e.Category)))
	if !category.Valid() {
		category = ClassifyRole(role)
	}
	return Slot{
		Start:     roster.FormatClock(start),
		End:       roster.FormatClock(end),
		Role:      role,
		Category:  category,
		Headcount: e.Headcount,
	}, true
}

func sanitizeEntries(entries []Entry) []Slot {
	out := make([]Slot, 0, len(entries))
	for _, e := range entries {
		if slot, ok := sanitizeEntry(e); ok {
			out = append(out, slot)
		}
	}
	return out
}

// FallbackDay keeps coverage validation meaningful when every layer is empty.
func FallbackDay() []Slot {
	return []Slot{
		{Start: "06:00", End: "14:00", Role: "Opener", Category: Opener, Headcount: 1},
		{Start: "14:00", End: "22:00", Role: "Closer", Category: Closer, Headcount: 2},
	}
}

func Clone(slots []Slot) []Slot {
	out := make([]Slot, len(slots))
	copy(out, slots)
	return out
}

// Equal compares slot structure position by position.
func Equal(a, b []Slot) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
