package schedule

import (
	"errors"
	"time"

	"github.com/phillip-england/staffplan/internal/roster"
	"github.com/phillip-england/staffplan/internal/template"
	"github.com/phillip-england/staffplan/internal/trigger"
)

var (
	ErrDayNotFound  = errors.New("day not found in plan")
	ErrSlotNotFound = errors.New("slot not found")
	ErrInvalidSlot  = errors.New("slot needs a role, HH:MM start before end, and headcount 1-6")
	ErrPosition     = errors.New("position out of range")
)

type RequestStatus string

const (
	RequestPending  RequestStatus = "pending"
	RequestApproved RequestStatus = "approved"
	RequestRejected RequestStatus = "rejected"
)

type ApprovalStatus string

const (
	ApprovalDraft    ApprovalStatus = "draft"
	ApprovalPending  ApprovalStatus = "pending"
	ApprovalApproved ApprovalStatus = "approved"
	ApprovalRejected ApprovalStatus = "rejected"
)

// Slot is a scheduled position cloned from a template slot. Assignments
// always has exactly Headcount entries; empty strings are open positions.
type Slot struct {
	ID string `json:"id"`
	template.Slot
	Assignments []string `json:"assignments"`
}

type Decision struct {
	RequestID string        `json:"requestId"`
	Status    RequestStatus `json:"status"`
	At        time.Time     `json:"at"`
}

type Day struct {
	Date                          string        `json:"date"`
	Weekday                       string        `json:"weekday"`
	Season                        roster.Season `json:"season"`
	Slots                         []Slot        `json:"slots"`
	HasException                  bool          `json:"hasException"`
	Note                          string        `json:"note"`
	PendingRequestID              string        `json:"pendingRequestId,omitempty"`
	LastDecision                  *Decision     `json:"lastDecision,omitempty"`
	LastAcceptedRecommendationKey string        `json:"lastAcceptedRecommendationKey,omitempty"`
}

type Week struct {
	WeekStart string `json:"weekStart"`
	Days      [7]Day `json:"days"`
}

type ExceptionRequest struct {
	ID             string          `json:"id"`
	Location       roster.Location `json:"location"`
	Date           string          `json:"date"`
	Reason         string          `json:"reason"`
	Status         RequestStatus   `json:"status"`
	SlotCount      int             `json:"slotCount"`
	TotalHeadcount int             `json:"totalHeadcount"`
	SubmittedAt    time.Time       `json:"submittedAt"`
	ReviewedAt     *time.Time      `json:"reviewedAt,omitempty"`
}

type NextWeekApproval struct {
	Status      ApprovalStatus `json:"status"`
	SubmittedAt *time.Time     `json:"submittedAt,omitempty"`
	ReviewedAt  *time.Time     `json:"reviewedAt,omitempty"`
	Reviewer    string         `json:"reviewer,omitempty"`
}

type Settings struct {
	IncludeDelivery bool `json:"includeDelivery"`
}

// Plan is the single aggregate every state transition operates on.
// Transition functions clone it and return the updated copy.
type Plan struct {
	Location     roster.Location    `json:"location"`
	StartDate    string             `json:"startDate"`
	HorizonWeeks int                `json:"horizonWeeks"`
	Weeks        []Week             `json:"weeks"`
	Requests     []ExceptionRequest `json:"requests"`
	Approval     NextWeekApproval   `json:"approval"`
	Triggers     trigger.RuleSet    `json:"triggers"`
	Settings     Settings           `json:"settings"`
}

func (p *Plan) Clone() *Plan {
	out := *p
	out.Weeks = make([]Week, len(p.Weeks))
	for i, w := range p.Weeks {
		out.Weeks[i] = w
		for j := range w.Days {
			out.Weeks[i].Days[j] = w.Days[j].clone()
		}
	}
	out.Requests = make([]ExceptionRequest, len(p.Requests))
	for i, r := range p.Requests {
		out.Requests[i] = r
		if r.ReviewedAt != nil {
			at := *r.ReviewedAt
			out.Requests[i].ReviewedAt = &at
		}
	}
	out.Approval = p.Approval.clone()
	out.Triggers = p.Triggers.Clone()
	return &out
}

func (a NextWeekApproval) clone() NextWeekApproval {
	out := a
	if a.SubmittedAt != nil {
		at := *a.SubmittedAt
		out.SubmittedAt = &at
	}
	if a.ReviewedAt != nil {
		at := *a.ReviewedAt
		out.ReviewedAt = &at
	}
	return out
}

func (d Day) clone() Day {
	out := d
	out.Slots = make([]Slot, len(d.Slots))
	for i, s := range d.Slots {
		out.Slots[i] = s
		out.Slots[i].Assignments = append([]string(nil), s.Assignments...)
	}
	if d.LastDecision != nil {
		dec := *d.LastDecision
		out.LastDecision = &dec
	}
	return out
}

// Locate returns the week and day index holding date.
func (p *Plan) Locate(date string) (int, int, error) {
	for wi := range p.Weeks {
		for di := range p.Weeks[wi].Days {
			if p.Weeks[wi].Days[di].Date == date {
				return wi, di, nil
			}
		}
	}
	return 0, 0, ErrDayNotFound
}

func (p *Plan) Day(date string) (*Day, error) {
	wi, di, err := p.Locate(date)
	if err != nil {
		return nil, err
	}
	return &p.Weeks[wi].Days[di], nil
}

// Request returns the exception request with id.
func (p *Plan) Request(id string) (*ExceptionRequest, bool) {
	for i := range p.Requests {
		if p.Requests[i].ID == id {
			return &p.Requests[i], true
		}
	}
	return nil, false
}

// Touch records that content in week wi changed. An approved next-week gate
// falls back to draft; a pending one waits for an explicit decision.
func (p *Plan) Touch(wi int) {
	if wi == 0 && p.Approval.Status == ApprovalApproved {
		p.Approval.Status = ApprovalDraft
	}
}

func (d *Day) Structure() []template.Slot {
	out := make([]template.Slot, len(d.Slots))
	for i, s := range d.Slots {
		out[i] = s.Slot
	}
	return out
}

// Pristine reports whether the day is still exactly what the builder made.
func (d *Day) Pristine() bool {
	if d.HasException || d.Note != "" || d.PendingRequestID != "" || d.LastDecision != nil || d.LastAcceptedRecommendationKey != "" {
		return false
	}
	for _, s := range d.Slots {
		for _, name := range s.Assignments {
			if name != "" {
				return false
			}
		}
	}
	return true
}

func (d *Day) SlotIndex(id string) (int, error) {
	for i := range d.Slots {
		if d.Slots[i].ID == id {
			return i, nil
		}
	}
	return 0, ErrSlotNotFound
}

func (d *Day) TotalHeadcount() int {
	total := 0
	for _, s := range d.Slots {
		total += s.Headcount
	}
	return total
}

func (d *Day) UnassignedPositions() int {
	open := 0
	for _, s := range d.Slots {
		for _, name := range s.Assignments {
			if name == "" {
				open++
			}
		}
	}
	return open
}

// AssignedNames lists every non-empty assignment on the day.
func (d *Day) AssignedNames() []string {
	var names []string
	for _, s := range d.Slots {
		for _, name := range s.Assignments {
			if name != "" {
				names = append(names, name)
			}
		}
	}
	return names
}
