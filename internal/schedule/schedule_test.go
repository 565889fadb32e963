package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/phillip-england/staffplan/internal/roster"
	"github.com/phillip-england/staffplan/internal/template"
)

type fixedResolver struct {
	slots []template.Slot
}

func (f fixedResolver) Resolve(roster.Location, time.Weekday) []template.Slot {
	return template.Clone(f.slots)
}

func baseSlots() []template.Slot {
	return []template.Slot{
		{Start: "06:00", End: "14:00", Role: "Opener", Category: template.Opener, Headcount: 1},
		{Start: "11:00", End: "17:00", Role: "Mid Support", Category: template.Support, Headcount: 2},
		{Start: "14:00", End: "22:00", Role: "Closer", Category: template.Closer, Headcount: 2},
	}
}

func mustDate(t *testing.T, value string) time.Time {
	t.Helper()
	d, err := roster.ParseDate(value)
	require.NoError(t, err)
	return d
}

func TestBuildNormalizesToMonday(t *testing.T) {
	plan := Build(nil, fixedResolver{baseSlots()}, roster.LocationEP, mustDate(t, "2025-03-13"), 2)

	require.Equal(t, "2025-03-10", plan.StartDate)
	require.Len(t, plan.Weeks, 2)
	require.Equal(t, "2025-03-17", plan.Weeks[1].WeekStart)
	require.Equal(t, "2025-03-10", plan.Weeks[0].Days[0].Date)
	require.Equal(t, "Monday", plan.Weeks[0].Days[0].Weekday)
	require.Equal(t, "2025-03-16", plan.Weeks[0].Days[6].Date)
	require.Equal(t, roster.Spring, plan.Weeks[0].Days[0].Season)
	require.Equal(t, ApprovalDraft, plan.Approval.Status)

	for _, w := range plan.Weeks {
		for _, d := range w.Days {
			require.Len(t, d.Slots, 3)
			for _, s := range d.Slots {
				require.NotEmpty(t, s.ID)
				require.Len(t, s.Assignments, s.Headcount)
			}
		}
	}
}

func TestBuildClampsHorizon(t *testing.T) {
	r := fixedResolver{baseSlots()}
	require.Len(t, Build(nil, r, roster.LocationEP, mustDate(t, "2025-03-10"), 0).Weeks, DefaultHorizonWeeks)
	require.Len(t, Build(nil, r, roster.LocationEP, mustDate(t, "2025-03-10"), 99).Weeks, MaxHorizonWeeks)
}

func TestRebuildPreservesEditedDays(t *testing.T) {
	start := mustDate(t, "2025-03-10")
	plan := Build(nil, fixedResolver{baseSlots()}, roster.LocationEP, start, 2)
	tuesday := plan.Weeks[0].Days[1]
	pristine := plan.Weeks[0].Days[2]

	plan, err := SetNote(plan, tuesday.Date, "inventory")
	require.NoError(t, err)

	changed := baseSlots()
	changed[1].Headcount = 3
	rebuilt := Build(plan, fixedResolver{changed}, roster.LocationEP, start, 3)

	require.Len(t, rebuilt.Weeks, 3)
	edited := rebuilt.Weeks[0].Days[1]
	require.Equal(t, "inventory", edited.Note)
	require.Equal(t, 2, edited.Slots[1].Headcount)
	require.Equal(t, tuesday.Slots[0].ID, edited.Slots[0].ID)

	refreshed := rebuilt.Weeks[0].Days[2]
	require.Equal(t, 3, refreshed.Slots[1].Headcount)
	require.NotEqual(t, pristine.Slots[0].ID, refreshed.Slots[0].ID)
}

func TestRebuildKeepsPristineDayWhenStructureMatches(t *testing.T) {
	start := mustDate(t, "2025-03-10")
	plan := Build(nil, fixedResolver{baseSlots()}, roster.LocationEP, start, 1)
	rebuilt := Build(plan, fixedResolver{baseSlots()}, roster.LocationEP, start, 1)
	require.Equal(t, plan.Weeks[0].Days[3].Slots[0].ID, rebuilt.Weeks[0].Days[3].Slots[0].ID)
}

func TestRebuildClearsRequestsAndApproval(t *testing.T) {
	start := mustDate(t, "2025-03-10")
	plan := Build(nil, fixedResolver{baseSlots()}, roster.LocationEP, start, 1)
	plan.Requests = []ExceptionRequest{{ID: "r1", Date: "2025-03-11", Status: RequestPending}}
	plan.Weeks[0].Days[1].PendingRequestID = "r1"
	plan.Approval.Status = ApprovalPending

	rebuilt := Build(plan, fixedResolver{baseSlots()}, roster.LocationEP, start, 1)
	require.Empty(t, rebuilt.Requests)
	require.Equal(t, ApprovalDraft, rebuilt.Approval.Status)
	require.Empty(t, rebuilt.Weeks[0].Days[1].PendingRequestID)
	require.True(t, rebuilt.Weeks[0].Days[1].HasException)

	// the input plan is untouched
	require.Len(t, plan.Requests, 1)
	require.Equal(t, ApprovalPending, plan.Approval.Status)
}

func TestSetHeadcountResyncsAssignments(t *testing.T) {
	plan := Build(nil, fixedResolver{baseSlots()}, roster.LocationEP, mustDate(t, "2025-03-10"), 1)
	day := plan.Weeks[0].Days[1]
	slotID := day.Slots[1].ID

	plan, err := SetAssignments(plan, day.Date, slotID, []string{"Ana", "Ben"})
	require.NoError(t, err)

	for _, n := range []int{5, 1, 0, 9, 3} {
		plan, err = SetHeadcount(plan, day.Date, slotID, n)
		require.NoError(t, err)
		got, err := plan.Day(day.Date)
		require.NoError(t, err)
		slot := got.Slots[1]
		require.Len(t, slot.Assignments, slot.Headcount)
		require.GreaterOrEqual(t, slot.Headcount, template.MinHeadcount)
		require.LessOrEqual(t, slot.Headcount, template.MaxHeadcount)
	}
	got, _ := plan.Day(day.Date)
	require.Equal(t, []string{"Ana", "", ""}, got.Slots[1].Assignments)
	require.True(t, got.HasException)
}

func TestAssignPositionDoesNotRaiseException(t *testing.T) {
	plan := Build(nil, fixedResolver{baseSlots()}, roster.LocationEP, mustDate(t, "2025-03-10"), 1)
	day := plan.Weeks[0].Days[1]

	next, err := AssignPosition(plan, day.Date, day.Slots[0].ID, 0, "  Ana ")
	require.NoError(t, err)
	got, _ := next.Day(day.Date)
	require.Equal(t, "Ana", got.Slots[0].Assignments[0])
	require.False(t, got.HasException)

	_, err = AssignPosition(plan, day.Date, day.Slots[0].ID, 4, "Ana")
	require.ErrorIs(t, err, ErrPosition)
	_, err = AssignPosition(plan, "1999-01-01", day.Slots[0].ID, 0, "Ana")
	require.ErrorIs(t, err, ErrDayNotFound)
}

func TestEditRevertsApprovedGate(t *testing.T) {
	plan := Build(nil, fixedResolver{baseSlots()}, roster.LocationEP, mustDate(t, "2025-03-10"), 2)
	plan.Approval.Status = ApprovalApproved

	later, err := SetNote(plan, plan.Weeks[1].Days[0].Date, "later week")
	require.NoError(t, err)
	require.Equal(t, ApprovalApproved, later.Approval.Status)

	next, err := SetNote(plan, plan.Weeks[0].Days[0].Date, "changed")
	require.NoError(t, err)
	require.Equal(t, ApprovalDraft, next.Approval.Status)

	plan.Approval.Status = ApprovalPending
	next, err = SetNote(plan, plan.Weeks[0].Days[0].Date, "changed")
	require.NoError(t, err)
	require.Equal(t, ApprovalPending, next.Approval.Status)
}

func TestAddRemoveAndCopy(t *testing.T) {
	plan := Build(nil, fixedResolver{baseSlots()}, roster.LocationEP, mustDate(t, "2025-03-10"), 1)
	tue := plan.Weeks[0].Days[1].Date
	wed := plan.Weeks[0].Days[2].Date

	_, _, err := AddSlot(plan, tue, template.Slot{Start: "22:00", End: "21:00", Role: "x", Headcount: 1})
	require.ErrorIs(t, err, ErrInvalidSlot)

	plan, id, err := AddSlot(plan, tue, template.Slot{Start: "9:30", End: "13:00", Role: "Lunch Support", Headcount: 2})
	require.NoError(t, err)
	day, _ := plan.Day(tue)
	require.Len(t, day.Slots, 4)
	require.Equal(t, "09:30", day.Slots[3].Start)
	require.Equal(t, template.Support, day.Slots[3].Category)

	plan, err = AssignPosition(plan, tue, id, 1, "Cam")
	require.NoError(t, err)

	plan, err = CopyDay(plan, tue, wed)
	require.NoError(t, err)
	copied, _ := plan.Day(wed)
	require.Len(t, copied.Slots, 4)
	require.Equal(t, []string{"", "Cam"}, copied.Slots[3].Assignments)
	require.NotEqual(t, id, copied.Slots[3].ID)
	require.True(t, copied.HasException)

	plan, err = RemoveSlot(plan, tue, id)
	require.NoError(t, err)
	day, _ = plan.Day(tue)
	require.Len(t, day.Slots, 3)
	_, err = RemoveSlot(plan, tue, id)
	require.ErrorIs(t, err, ErrSlotNotFound)
}

func TestValidateDayCoverage(t *testing.T) {
	day := &Day{Slots: []Slot{
		NewSlot(template.Slot{Start: "06:00", End: "14:00", Role: "Opener", Category: template.Opener, Headcount: 1}),
		NewSlot(template.Slot{Start: "14:00", End: "22:00", Role: "Closer", Category: template.Closer, Headcount: 1}),
	}}
	v := ValidateDay(day)
	require.False(t, v.OK)
	require.Equal(t, "Need at least two closing positions", v.Message())

	day.Slots = append(day.Slots, NewSlot(template.Slot{Start: "16:00", End: "22:00", Role: "Closer 2", Category: template.Closer, Headcount: 1}))
	v = ValidateDay(day)
	require.True(t, v.OK)
	require.Equal(t, 1, v.Openers)
	require.Equal(t, 2, v.Closers)
}
