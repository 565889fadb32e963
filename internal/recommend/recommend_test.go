package recommend

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/phillip-england/staffplan/internal/schedule"
	"github.com/phillip-england/staffplan/internal/template"
	"github.com/phillip-england/staffplan/internal/weather"
)

const date = "2025-03-11"

func planWith(slots ...template.Slot) *schedule.Plan {
	p := schedule.NewPlan("EP")
	day := schedule.Day{Date: date}
	for _, s := range slots {
		day.Slots = append(day.Slots, schedule.NewSlot(s))
	}
	p.Weeks = []schedule.Week{{WeekStart: "2025-03-10"}}
	p.Weeks[0].Days[1] = day
	return p
}

func opener() template.Slot {
	return template.Slot{Start: "06:00", End: "14:00", Role: "Opener", Category: template.Opener, Headcount: 1}
}

func closer() template.Slot {
	return template.Slot{Start: "14:00", End: "22:00", Role: "Closer", Category: template.Closer, Headcount: 2}
}

var (
	lift        = weather.Signal{Impact: weather.ImpactUp, Label: "Demand Lift"}
	risk        = weather.Signal{Impact: weather.ImpactDown, Label: "Demand Risk"}
	eveningRain = weather.Signal{Impact: weather.ImpactDown, Label: "Evening Rain Risk", Window: weather.WindowEvening}
)

func TestIncreasePrefersPeakSlot(t *testing.T) {
	p := planWith(opener(),
		template.Slot{Start: "11:00", End: "17:00", Role: "Mid Support", Category: template.Support, Headcount: 1},
		template.Slot{Start: "17:00", End: "21:00", Role: "Dinner Peak", Category: template.Support, Headcount: 1},
		closer())

	next, rec, err := Apply(p, date, lift)
	require.NoError(t, err)
	require.Equal(t, IncreaseSupport, rec.Action)
	require.Equal(t, "Dinner Peak", rec.Role)

	d, _ := next.Day(date)
	require.Equal(t, 2, d.Slots[2].Headcount)
	require.Len(t, d.Slots[2].Assignments, 2)
	require.True(t, d.HasException)
	require.Equal(t, date+"|increase_support", d.LastAcceptedRecommendationKey)
}

func TestIncreaseAddsTemporarySlot(t *testing.T) {
	p := planWith(opener(), closer())
	next, rec, err := Apply(p, date, lift)
	require.NoError(t, err)
	require.NotEmpty(t, rec.SlotID)

	d, _ := next.Day(date)
	require.Len(t, d.Slots, 3)
	require.Equal(t, TemporarySlot(), d.Slots[2].Slot)
}

func TestApplyIsIdempotentPerAction(t *testing.T) {
	p := planWith(opener(), closer())
	once, _, err := Apply(p, date, lift)
	require.NoError(t, err)

	_, _, err = Apply(once, date, lift)
	require.ErrorIs(t, err, ErrAlreadyApplied)

	// a different signal on the same day still applies
	twice, rec, err := Apply(once, date, risk)
	require.NoError(t, err)
	require.Equal(t, DecreaseSupport, rec.Action)
	d, _ := twice.Day(date)
	require.Len(t, d.Slots, 2)
}

func TestDecreaseRemovesSingleHeadcountSlot(t *testing.T) {
	p := planWith(opener(),
		template.Slot{Start: "11:00", End: "15:00", Role: "Lunch Help", Category: template.Support, Headcount: 1},
		closer())
	next, rec, err := Apply(p, date, risk)
	require.NoError(t, err)
	require.True(t, rec.Remove)

	d, _ := next.Day(date)
	require.Len(t, d.Slots, 2)
	for _, s := range d.Slots {
		require.NotEqual(t, "Lunch Help", s.Role)
		require.Positive(t, s.Headcount)
	}
}

func TestDecreaseNeverTouchesOpenersOrClosers(t *testing.T) {
	p := planWith(opener(), closer())
	_, _, err := Apply(p, date, risk)
	require.ErrorIs(t, err, ErrNoRecommendation)
}

func TestDecreaseEveningWindow(t *testing.T) {
	p := planWith(opener(),
		template.Slot{Start: "10:00", End: "14:00", Role: "Lunch Support", Category: template.Support, Headcount: 2},
		template.Slot{Start: "16:00", End: "21:00", Role: "Drive Thru", Category: template.Support, Headcount: 2},
		template.Slot{Start: "12:00", End: "18:00", Role: "Kitchen", Category: template.Support, Headcount: 2},
		closer())

	rec, err := Recommend(&p.Weeks[0].Days[1], eveningRain)
	require.NoError(t, err)
	require.Equal(t, "Drive Thru", rec.Role)
	require.Equal(t, 1, rec.To)

	// without the window, the support role wins
	rec, err = Recommend(&p.Weeks[0].Days[1], risk)
	require.NoError(t, err)
	require.Equal(t, "Lunch Support", rec.Role)
}

func TestDecreaseEveningWindowFallsBackToDaytimeSupport(t *testing.T) {
	p := planWith(opener(),
		template.Slot{Start: "10:30", End: "14:30", Role: "Lunch Peak", Category: template.Support, Headcount: 2},
		closer())

	rec, err := Recommend(&p.Weeks[0].Days[1], eveningRain)
	require.NoError(t, err)
	require.Equal(t, DecreaseSupport, rec.Action)
	require.Equal(t, "Lunch Peak", rec.Role)
	require.Equal(t, 2, rec.From)
	require.Equal(t, 1, rec.To)
}

func TestDecreasePicksLastWithoutRoleMatch(t *testing.T) {
	p := planWith(
		template.Slot{Start: "10:00", End: "14:00", Role: "Kitchen", Category: template.Support, Headcount: 2},
		template.Slot{Start: "12:00", End: "18:00", Role: "Drive Thru", Category: template.Support, Headcount: 2},
	)
	rec, err := Recommend(&p.Weeks[0].Days[1], risk)
	require.NoError(t, err)
	require.Equal(t, "Drive Thru", rec.Role)
}

func TestNeutralHasNoRecommendation(t *testing.T) {
	p := planWith(opener(), closer())
	rec, err := Preview(p, date, weather.Signal{Impact: weather.ImpactNeutral})
	require.NoError(t, err)
	require.Nil(t, rec)
}

func TestApplyRevertsApprovedGate(t *testing.T) {
	p := planWith(opener(), closer())
	p.Approval.Status = schedule.ApprovalApproved
	next, _, err := Apply(p, date, lift)
	require.NoError(t, err)
	require.Equal(t, schedule.ApprovalDraft, next.Approval.Status)
	require.Equal(t, schedule.ApprovalApproved, p.Approval.Status)
}
