package workflow

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/phillip-england/staffplan/internal/pto"
	"github.com/phillip-england/staffplan/internal/roster"
	"github.com/phillip-england/staffplan/internal/schedule"
	"github.com/phillip-england/staffplan/internal/template"
)

var now = time.Date(2025, 3, 5, 9, 0, 0, 0, time.UTC)

type weekResolver struct{}

func (weekResolver) Resolve(roster.Location, time.Weekday) []template.Slot {
	return []template.Slot{
		{Start: "06:00", End: "14:00", Role: "Opener", Category: template.Opener, Headcount: 1},
		{Start: "14:00", End: "22:00", Role: "Closer", Category: template.Closer, Headcount: 2},
	}
}

func newPlan(t *testing.T) *schedule.Plan {
	t.Helper()
	start, err := roster.ParseDate("2025-03-10")
	require.NoError(t, err)
	return schedule.Build(nil, weekResolver{}, roster.LocationEP, start, 2)
}

func staffWeek(t *testing.T, p *schedule.Plan) *schedule.Plan {
	t.Helper()
	var err error
	for _, d := range p.Weeks[0].Days {
		for _, s := range d.Slots {
			names := make([]string, s.Headcount)
			for i := range names {
				names[i] = s.Role + " " + d.Weekday + string(rune('A'+i))
			}
			p, err = schedule.SetAssignments(p, d.Date, s.ID, names)
			require.NoError(t, err)
		}
	}
	return p
}

func TestSubmitDayRequestPreconditions(t *testing.T) {
	p := newPlan(t)
	date := p.Weeks[0].Days[1].Date

	_, _, err := SubmitDayRequest(p, date, "busy", now)
	require.ErrorIs(t, err, ErrNoException)

	p, err = schedule.SetNote(p, date, "school event")
	require.NoError(t, err)
	_, _, err = SubmitDayRequest(p, date, "  ", now)
	require.ErrorIs(t, err, ErrReasonRequired)

	closerID := p.Weeks[0].Days[1].Slots[1].ID
	thin, err := schedule.SetHeadcount(p, date, closerID, 1)
	require.NoError(t, err)
	_, _, err = SubmitDayRequest(thin, date, "busy", now)
	var coverage *CoverageError
	require.True(t, errors.As(err, &coverage))
	require.Equal(t, "Need at least two closing positions", coverage.Validation.Message())

	next, req, err := SubmitDayRequest(p, date, "busy", now)
	require.NoError(t, err)
	require.Equal(t, schedule.RequestPending, req.Status)
	require.Equal(t, 2, req.SlotCount)
	require.Equal(t, 3, req.TotalHeadcount)
	d, _ := next.Day(date)
	require.Equal(t, req.ID, d.PendingRequestID)
	require.False(t, d.HasException)
	require.Empty(t, d.Note)

	// the input plan is unchanged
	require.Empty(t, p.Requests)

	again, err := schedule.SetNote(next, date, "more")
	require.NoError(t, err)
	_, _, err = SubmitDayRequest(again, date, "busy", now)
	require.ErrorIs(t, err, ErrRequestPending)
}

func TestApproveAndRejectRequest(t *testing.T) {
	p := newPlan(t)
	date := p.Weeks[0].Days[2].Date
	p, err := schedule.SetNote(p, date, "catering")
	require.NoError(t, err)
	p, req, err := SubmitDayRequest(p, date, "catering order", now)
	require.NoError(t, err)

	approved, err := ApproveRequest(p, req.ID, now)
	require.NoError(t, err)
	d, _ := approved.Day(date)
	require.Empty(t, d.PendingRequestID)
	require.False(t, d.HasException)
	require.Equal(t, schedule.RequestApproved, d.LastDecision.Status)
	stored, _ := approved.Request(req.ID)
	require.NotNil(t, stored.ReviewedAt)

	_, err = ApproveRequest(approved, req.ID, now)
	require.ErrorIs(t, err, ErrNotPending)

	rejected, err := RejectRequest(p, req.ID, now)
	require.NoError(t, err)
	d, _ = rejected.Day(date)
	require.True(t, d.HasException)
	require.Equal(t, RejectedNote, d.Note)
	require.Equal(t, schedule.RequestRejected, d.LastDecision.Status)

	_, err = RejectRequest(p, "missing", now)
	require.ErrorIs(t, err, ErrRequestNotFound)
}

func TestSubmitNextWeekGate(t *testing.T) {
	p := newPlan(t)

	_, err := SubmitNextWeek(p, nil, now)
	var gate *GateError
	require.True(t, errors.As(err, &gate))
	require.Equal(t, 21, gate.Unassigned)
	require.Zero(t, gate.PendingRequests)
	require.Equal(t, schedule.ApprovalDraft, p.Approval.Status)

	p = staffWeek(t, p)
	submitted, err := SubmitNextWeek(p, nil, now)
	require.NoError(t, err)
	require.Equal(t, schedule.ApprovalPending, submitted.Approval.Status)

	_, err = SubmitNextWeek(submitted, nil, now)
	require.ErrorIs(t, err, ErrAlreadySubmitted)

	approved, err := DecideNextWeek(submitted, true, "Manager", now)
	require.NoError(t, err)
	require.Equal(t, schedule.ApprovalApproved, approved.Approval.Status)
	require.Equal(t, "Manager", approved.Approval.Reviewer)

	day := approved.Weeks[0].Days[0]
	edited, err := schedule.SetHeadcount(approved, day.Date, day.Slots[1].ID, 3)
	require.NoError(t, err)
	require.Equal(t, schedule.ApprovalDraft, edited.Approval.Status)
}

func TestSubmitNextWeekBlockedByExceptionsAndPTO(t *testing.T) {
	p := staffWeek(t, newPlan(t))
	monday := p.Weeks[0].Days[0]
	p, err := schedule.SetNote(p, p.Weeks[0].Days[3].Date, "changed")
	require.NoError(t, err)

	requests := []pto.Request{{
		ID:        "p1",
		Employee:  monday.Slots[0].Assignments[0],
		Location:  roster.LocationBoth,
		StartDate: monday.Date,
		EndDate:   monday.Date,
		Status:    pto.StatusApproved,
	}}
	_, err = SubmitNextWeek(p, requests, now)
	var gate *GateError
	require.True(t, errors.As(err, &gate))
	require.Equal(t, 1, gate.OpenExceptions)
	require.Equal(t, 1, gate.PTOConflicts)
	require.Len(t, gate.Conflicts, 1)
	require.Equal(t, monday.Date, gate.Conflicts[0].Date)
	require.Contains(t, gate.Error(), "1 PTO conflict(s)")
}

func TestSubmitNextWeekBlockedByPendingRequest(t *testing.T) {
	p := staffWeek(t, newPlan(t))
	date := p.Weeks[0].Days[4].Date
	p, err := schedule.SetNote(p, date, "changed")
	require.NoError(t, err)
	p, _, err = SubmitDayRequest(p, date, "event", now)
	require.NoError(t, err)

	_, err = SubmitNextWeek(p, nil, now)
	var gate *GateError
	require.True(t, errors.As(err, &gate))
	require.Equal(t, 1, gate.PendingRequests)
	require.Zero(t, gate.OpenExceptions)
}

func TestDecideNextWeekRejection(t *testing.T) {
	p := staffWeek(t, newPlan(t))
	_, err := DecideNextWeek(p, false, "Manager", now)
	require.ErrorIs(t, err, ErrNotPending)

	p, err = SubmitNextWeek(p, nil, now)
	require.NoError(t, err)
	rejected, err := DecideNextWeek(p, false, "Manager", now)
	require.NoError(t, err)
	require.Equal(t, schedule.ApprovalRejected, rejected.Approval.Status)
	for _, d := range rejected.Weeks[0].Days {
		require.True(t, d.HasException)
	}
	for _, d := range rejected.Weeks[1].Days {
		require.False(t, d.HasException)
	}
}
