package planner

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/phillip-england/staffplan/internal/feeds"
	"github.com/phillip-england/staffplan/internal/metrics"
	"github.com/phillip-england/staffplan/internal/pto"
	"github.com/phillip-england/staffplan/internal/recommend"
	"github.com/phillip-england/staffplan/internal/roster"
	"github.com/phillip-england/staffplan/internal/schedule"
	"github.com/phillip-england/staffplan/internal/store"
	"github.com/phillip-england/staffplan/internal/template"
	"github.com/phillip-england/staffplan/internal/trigger"
	"github.com/phillip-england/staffplan/internal/weather"
	"github.com/phillip-england/staffplan/internal/workflow"
)

type memoryStore struct {
	mu    sync.Mutex
	plans map[roster.Location]*schedule.Plan
	feed  metrics.Feed
	saves int
}

func newMemoryStore() *memoryStore {
	return &memoryStore{plans: map[roster.Location]*schedule.Plan{}}
}

func (m *memoryStore) SavePlan(_ context.Context, plan *schedule.Plan) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.plans[plan.Location] = plan.Clone()
	m.saves++
	return nil
}

func (m *memoryStore) LoadPlan(_ context.Context, loc roster.Location) (*schedule.Plan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.plans[loc]
	if !ok {
		return nil, store.ErrNotFound
	}
	return p.Clone(), nil
}

func (m *memoryStore) ReplaceDaily(_ context.Context, rows []metrics.DailyRow) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.feed.Daily = append(m.feed.Daily, rows...)
	return nil
}

func (m *memoryStore) ReplaceHourly(_ context.Context, rows []metrics.HourlyRow) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.feed.Hourly = append(m.feed.Hourly, rows...)
	return nil
}

func (m *memoryStore) LoadFeed(context.Context) (metrics.Feed, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.feed, nil
}

func hotJune() weather.Feed {
	return weather.Feed{
		Daily: []weather.DailyRecord{
			{Location: roster.LocationEP, Date: "2025-06-03", HighF: 95},
		},
		History: []weather.DailyRecord{
			{Location: roster.LocationEP, Date: "2023-06-03", HighF: 80},
			{Location: roster.LocationEP, Date: "2024-06-03", HighF: 82},
		},
	}
}

func newTestService(t *testing.T, wx weather.Feed, requests []pto.Request) (*memoryStore, Service) {
	t.Helper()
	st := newMemoryStore()
	logger := zap.NewNop()
	wxSync := feeds.NewSyncer(FeedWeather, func(context.Context) (weather.Feed, error) {
		return wx, nil
	}, nil, logger)
	ptoSync := feeds.NewSyncer(FeedPTO, func(context.Context) ([]pto.Request, error) {
		return requests, nil
	}, nil, logger)
	svc := NewService(st, template.NewResolver(template.Profiles{}), wxSync, ptoSync, Options{
		HorizonWeeks:         2,
		IncludeDelivery:      true,
		NormalsLookbackYears: 5,
	}, logger)
	return st, svc
}

func TestPlanDefaultsWhenNothingStored(t *testing.T) {
	_, svc := newTestService(t, weather.Feed{}, nil)
	plan, err := svc.Plan(context.Background(), roster.LocationNL)
	require.NoError(t, err)
	require.Equal(t, roster.LocationNL, plan.Location)
	require.Empty(t, plan.Weeks)
	require.Equal(t, trigger.ProfileBaseline, plan.Triggers.Profile)

	_, err = svc.Plan(context.Background(), roster.LocationBoth)
	require.ErrorIs(t, err, ErrLocationRequired)
}

func TestPlanSanitizesStoredTriggers(t *testing.T) {
	st, svc := newTestService(t, weather.Feed{}, nil)
	stored := schedule.NewPlan(roster.LocationEP)
	stored.Triggers = trigger.RuleSet{Profile: "mystery"}
	require.NoError(t, st.SavePlan(context.Background(), stored))

	plan, err := svc.Plan(context.Background(), roster.LocationEP)
	require.NoError(t, err)
	require.Equal(t, trigger.ProfileBaseline, plan.Triggers.Profile)
	require.Len(t, plan.Triggers.Rules[roster.LocationEP], len(trigger.Transitions))
}

func TestBuildAndEdit(t *testing.T) {
	ctx := context.Background()
	st, svc := newTestService(t, weather.Feed{}, nil)

	plan, err := svc.Build(ctx, roster.LocationEP, "2025-06-04", 0)
	require.NoError(t, err)
	require.Equal(t, "2025-06-02", plan.StartDate)
	require.Len(t, plan.Weeks, 2)
	require.Equal(t, 1, st.saves)

	_, err = svc.Build(ctx, roster.LocationEP, "June 4", 0)
	require.ErrorIs(t, err, ErrInvalidDate)

	day := plan.Weeks[0].Days[1]
	slotID := day.Slots[0].ID
	three := 3
	plan, err = svc.UpdateSlot(ctx, roster.LocationEP, day.Date, slotID, SlotUpdate{
		Headcount:   &three,
		Assignments: []string{"Ana", "Ben"},
	})
	require.NoError(t, err)
	edited, err := plan.Day(day.Date)
	require.NoError(t, err)
	require.Equal(t, []string{"Ana", "Ben", ""}, edited.Slots[0].Assignments)
	require.True(t, edited.HasException)

	plan, err = svc.SetNote(ctx, roster.LocationEP, day.Date, "patio event")
	require.NoError(t, err)
	edited, err = plan.Day(day.Date)
	require.NoError(t, err)
	require.Equal(t, "patio event", edited.Note)

	_, err = svc.UpdateSlot(ctx, roster.LocationEP, day.Date, "missing", SlotUpdate{Headcount: &three})
	require.ErrorIs(t, err, schedule.ErrSlotNotFound)
}

func TestRecommendationPreviewAndAccept(t *testing.T) {
	ctx := context.Background()
	_, svc := newTestService(t, hotJune(), nil)
	_, err := svc.Build(ctx, roster.LocationEP, "2025-06-02", 1)
	require.NoError(t, err)

	before, err := svc.Recommendation(ctx, roster.LocationEP, "2025-06-03")
	require.NoError(t, err)
	require.Equal(t, feeds.StateNotConnected, before.WeatherState)
	require.Equal(t, weather.ImpactNeutral, before.Signal.Impact)
	require.Nil(t, before.Recommendation)

	_, err = svc.Sync(ctx, FeedWeather)
	require.NoError(t, err)

	preview, err := svc.Recommendation(ctx, roster.LocationEP, "2025-06-03")
	require.NoError(t, err)
	require.Equal(t, feeds.StateConnected, preview.WeatherState)
	require.Equal(t, weather.ImpactUp, preview.Signal.Impact)
	require.NotNil(t, preview.Recommendation)
	require.Equal(t, recommend.IncreaseSupport, preview.Recommendation.Action)
	require.False(t, preview.Applied)

	plan, rec, err := svc.AcceptRecommendation(ctx, roster.LocationEP, "2025-06-03")
	require.NoError(t, err)
	require.Equal(t, rec.From+1, rec.To)
	d, err := plan.Day("2025-06-03")
	require.NoError(t, err)
	require.True(t, d.HasException)

	_, _, err = svc.AcceptRecommendation(ctx, roster.LocationEP, "2025-06-03")
	require.ErrorIs(t, err, recommend.ErrAlreadyApplied)

	after, err := svc.Recommendation(ctx, roster.LocationEP, "2025-06-03")
	require.NoError(t, err)
	require.True(t, after.Applied)
}

func TestDayRequestLifecycle(t *testing.T) {
	ctx := context.Background()
	_, svc := newTestService(t, weather.Feed{}, nil)
	plan, err := svc.Build(ctx, roster.LocationEP, "2025-06-02", 1)
	require.NoError(t, err)
	date := plan.Weeks[0].Days[1].Date

	_, _, err = svc.SubmitDayRequest(ctx, roster.LocationEP, date, "busy")
	require.ErrorIs(t, err, workflow.ErrNoException)

	_, err = svc.SetNote(ctx, roster.LocationEP, date, "band night")
	require.NoError(t, err)
	_, req, err := svc.SubmitDayRequest(ctx, roster.LocationEP, date, "band night")
	require.NoError(t, err)
	require.Equal(t, schedule.RequestPending, req.Status)

	plan, err = svc.DecideRequest(ctx, roster.LocationEP, req.ID, false)
	require.NoError(t, err)
	got, ok := plan.Request(req.ID)
	require.True(t, ok)
	require.Equal(t, schedule.RequestRejected, got.Status)

	_, err = svc.DecideRequest(ctx, roster.LocationEP, req.ID, true)
	require.ErrorIs(t, err, workflow.ErrNotPending)
}

func TestSubmitNextWeekReportsGate(t *testing.T) {
	ctx := context.Background()
	_, svc := newTestService(t, weather.Feed{}, nil)
	_, err := svc.Build(ctx, roster.LocationNL, "2025-06-02", 1)
	require.NoError(t, err)

	_, err = svc.SubmitNextWeek(ctx, roster.LocationNL)
	var gate *workflow.GateError
	require.True(t, errors.As(err, &gate))
	require.Positive(t, gate.Unassigned)
}

func TestPTOConflictsUsesFeed(t *testing.T) {
	ctx := context.Background()
	requests := []pto.Request{{
		ID: "r1", Employee: "ana lopez", Location: roster.LocationBoth,
		StartDate: "2025-06-01", EndDate: "2025-06-10", Status: pto.StatusApproved,
	}}
	_, svc := newTestService(t, weather.Feed{}, requests)
	plan, err := svc.Build(ctx, roster.LocationEP, "2025-06-02", 1)
	require.NoError(t, err)
	day := plan.Weeks[0].Days[2]
	_, err = svc.UpdateSlot(ctx, roster.LocationEP, day.Date, day.Slots[0].ID, SlotUpdate{Assignments: []string{"Ana Lopez"}})
	require.NoError(t, err)

	conflicts, err := svc.PTOConflicts(ctx, roster.LocationEP, day.Date)
	require.NoError(t, err)
	require.Empty(t, conflicts)

	_, err = svc.Sync(ctx, FeedPTO)
	require.NoError(t, err)
	conflicts, err = svc.PTOConflicts(ctx, roster.LocationEP, day.Date)
	require.NoError(t, err)
	require.Len(t, conflicts, 1)
	require.Equal(t, []string{"ana lopez"}, conflicts[0].Employees)

	week, err := svc.PTOConflicts(ctx, roster.LocationEP, "")
	require.NoError(t, err)
	require.Len(t, week, 1)
}

func TestTriggersAndProfiles(t *testing.T) {
	ctx := context.Background()
	st, svc := newTestService(t, weather.Feed{}, nil)
	st.feed.Daily = []metrics.DailyRow{
		{Location: roster.LocationEP, Date: "2025-04-05", Revenue: 6000},
		{Location: roster.LocationEP, Date: "2025-04-08", Revenue: 4000},
	}

	report, err := svc.Triggers(ctx, roster.LocationEP, "2025-04")
	require.NoError(t, err)
	require.Len(t, report.Observed, 1)
	require.Len(t, report.Evaluations, len(trigger.Transitions))
	require.NotNil(t, report.Gap)
	require.Equal(t, "2025-04", report.Gap.Month)

	_, err = svc.Triggers(ctx, roster.LocationEP, "April")
	require.ErrorIs(t, err, ErrInvalidMonth)

	rs, err := svc.ApplyProfile(ctx, trigger.ProfileConservative)
	require.NoError(t, err)
	require.Equal(t, trigger.ProfileConservative, rs.Profile)
	for _, loc := range roster.Locations {
		plan, err := svc.Plan(ctx, loc)
		require.NoError(t, err)
		require.Equal(t, trigger.ProfileConservative, plan.Triggers.Profile)
	}

	_, err = svc.ApplyProfile(ctx, trigger.ProfileCustom)
	require.ErrorIs(t, err, trigger.ErrUnknownProfile)

	rs, err = svc.SetThreshold(ctx, roster.LocationEP, trigger.Transitions[0], 0, 4321)
	require.NoError(t, err)
	require.Equal(t, trigger.ProfileCustom, rs.Profile)
	require.InDelta(t, 4300, rs.Rules[roster.LocationEP][trigger.Transitions[0]].Conditions[0].Threshold, 0.001)

	saves := st.saves
	rs, err = svc.SetThreshold(ctx, roster.LocationEP, trigger.Transitions[0], 0, 4310)
	require.NoError(t, err)
	require.InDelta(t, 4300, rs.Rules[roster.LocationEP][trigger.Transitions[0]].Conditions[0].Threshold, 0.001)
	require.Equal(t, saves, st.saves, "same normalized threshold writes nothing")
}

func TestSyncUnknownFeed(t *testing.T) {
	_, svc := newTestService(t, weather.Feed{}, nil)
	_, err := svc.Sync(context.Background(), "traffic")
	require.ErrorIs(t, err, ErrUnknownFeed)
	require.Len(t, svc.SyncStatus(), 2)
}
