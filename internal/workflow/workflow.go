package workflow

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/phillip-england/staffplan/internal/pto"
	"github.com/phillip-england/staffplan/internal/schedule"
)

var (
	ErrNoException      = errors.New("day has no unsubmitted changes")
	ErrReasonRequired   = errors.New("reason is required")
	ErrRequestPending   = errors.New("day already has a pending request")
	ErrRequestNotFound  = errors.New("request not found")
	ErrNotPending       = errors.New("only pending items can be decided")
	ErrNoWeeks          = errors.New("plan has no weeks")
	ErrAlreadySubmitted = errors.New("next week is already submitted or approved")
)

const RejectedNote = "Request rejected. Revise the day and resubmit."

// CoverageError blocks a request for a day below minimum coverage.
type CoverageError struct {
	Date       string
	Validation schedule.Validation
}

func (e *CoverageError) Error() string {
	return fmt.Sprintf("%s: %s", e.Date, e.Validation.Message())
}

// GateError lists everything keeping next week from being submitted.
type GateError struct {
	PendingRequests  int            `json:"pendingRequests"`
	OpenExceptions   int            `json:"openExceptions"`
	CoverageFailures int            `json:"coverageFailures"`
	Unassigned       int            `json:"unassigned"`
	PTOConflicts     int            `json:"ptoConflicts"`
	Conflicts        []pto.Conflict `json:"conflicts,omitempty"`
}

func (e *GateError) blocked() bool {
	return e.PendingRequests+e.OpenExceptions+e.CoverageFailures+e.Unassigned+e.PTOConflicts > 0
}

func (e *GateError) Error() string {
	var parts []string
	add := func(n int, what string) {
		if n > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", n, what))
		}
	}
	add(e.PendingRequests, "pending day request(s)")
	add(e.OpenExceptions, "unsubmitted day change(s)")
	add(e.CoverageFailures, "day(s) below minimum coverage")
	add(e.Unassigned, "unassigned position(s)")
	add(e.PTOConflicts, "PTO conflict(s)")
	return "next week cannot be submitted: " + strings.Join(parts, ", ")
}

// SubmitDayRequest turns the unsubmitted changes on date into a pending
// exception request.
func SubmitDayRequest(p *schedule.Plan, date, reason string, now time.Time) (*schedule.Plan, schedule.ExceptionRequest, error) {
	reason = strings.TrimSpace(reason)
	current, err := p.Day(date)
	if err != nil {
		return nil, schedule.ExceptionRequest{}, err
	}
	switch {
	case current.PendingRequestID != "":
		return nil, schedule.ExceptionRequest{}, ErrRequestPending
	case !current.HasException:
		return nil, schedule.ExceptionRequest{}, ErrNoException
	case reason == "":
		return nil, schedule.ExceptionRequest{}, ErrReasonRequired
	}
	if v := schedule.ValidateDay(current); !v.OK {
		return nil, schedule.ExceptionRequest{}, &CoverageError{Date: date, Validation: v}
	}

	next := p.Clone()
	d, _ := next.Day(date)
	req := schedule.ExceptionRequest{
		ID:             uuid.NewString(),
		Location:       next.Location,
		Date:           date,
		Reason:         reason,
		Status:         schedule.RequestPending,
		SlotCount:      len(d.Slots),
		TotalHeadcount: d.TotalHeadcount(),
		SubmittedAt:    now,
	}
	next.Requests = append(next.Requests, req)
	d.PendingRequestID = req.ID
	d.HasException = false
	d.Note = ""
	return next, req, nil
}

func ApproveRequest(p *schedule.Plan, id string, now time.Time) (*schedule.Plan, error) {
	return decideRequest(p, id, schedule.RequestApproved, now)
}

// RejectRequest sends the day back for revision.
func RejectRequest(p *schedule.Plan, id string, now time.Time) (*schedule.Plan, error) {
	return decideRequest(p, id, schedule.RequestRejected, now)
}

func decideRequest(p *schedule.Plan, id string, status schedule.RequestStatus, now time.Time) (*schedule.Plan, error) {
	next := p.Clone()
	req, ok := next.Request(id)
	if !ok {
		return nil, ErrRequestNotFound
	}
	if req.Status != schedule.RequestPending {
		return nil, ErrNotPending
	}
	req.Status = status
	reviewed := now
	req.ReviewedAt = &reviewed

	if d, err := next.Day(req.Date); err == nil && d.PendingRequestID == id {
		d.PendingRequestID = ""
		d.LastDecision = &schedule.Decision{RequestID: id, Status: status, At: now}
		if status == schedule.RequestRejected {
			d.HasException = true
			d.Note = RejectedNote
		}
	}
	return next, nil
}

// CheckNextWeek counts what blocks week 0 from submission. It returns nil
// when nothing does.
func CheckNextWeek(p *schedule.Plan, requests []pto.Request) *GateError {
	gate := &GateError{}
	if len(p.Weeks) == 0 {
		return nil
	}
	dates := map[string]struct{}{}
	for i := range p.Weeks[0].Days {
		d := &p.Weeks[0].Days[i]
		dates[d.Date] = struct{}{}
		if d.PendingRequestID != "" {
			gate.PendingRequests++
		}
		if d.HasException {
			gate.OpenExceptions++
		}
		if !schedule.ValidateDay(d).OK {
			gate.CoverageFailures++
		}
		gate.Unassigned += d.UnassignedPositions()
	}
	for _, r := range p.Requests {
		if _, ok := dates[r.Date]; !ok || r.Status != schedule.RequestPending {
			continue
		}
		if d, err := p.Day(r.Date); err == nil && d.PendingRequestID == r.ID {
			continue
		}
		gate.PendingRequests++
	}
	gate.Conflicts = pto.WeekConflicts(p, 0, requests)
	for _, c := range gate.Conflicts {
		gate.PTOConflicts += c.Count
	}
	if !gate.blocked() {
		return nil
	}
	return gate
}

// SubmitNextWeek moves the next-week gate to pending when nothing blocks it.
func SubmitNextWeek(p *schedule.Plan, requests []pto.Request, now time.Time) (*schedule.Plan, error) {
	if len(p.Weeks) == 0 {
		return nil, ErrNoWeeks
	}
	if s := p.Approval.Status; s == schedule.ApprovalPending || s == schedule.ApprovalApproved {
		return nil, ErrAlreadySubmitted
	}
	if gate := CheckNextWeek(p, requests); gate != nil {
		return nil, gate
	}
	next := p.Clone()
	submitted := now
	next.Approval = schedule.NextWeekApproval{Status: schedule.ApprovalPending, SubmittedAt: &submitted}
	return next, nil
}

// DecideNextWeek records the manager's decision. A rejection flags every
// day of week 0 for revision.
func DecideNextWeek(p *schedule.Plan, approved bool, reviewer string, now time.Time) (*schedule.Plan, error) {
	if p.Approval.Status != schedule.ApprovalPending {
		return nil, ErrNotPending
	}
	next := p.Clone()
	reviewed := now
	next.Approval.ReviewedAt = &reviewed
	next.Approval.Reviewer = strings.TrimSpace(reviewer)
	if approved {
		next.Approval.Status = schedule.ApprovalApproved
		return next, nil
	}
	next.Approval.Status = schedule.ApprovalRejected
	if len(next.Weeks) > 0 {
		for i := range next.Weeks[0].Days {
			next.Weeks[0].Days[i].HasException = true
		}
	}
	return next, nil
}
