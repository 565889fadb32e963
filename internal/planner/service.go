package planner

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"go.uber.org/zap"

	"github.com/phillip-england/staffplan/internal/feeds"
	"github.com/phillip-england/staffplan/internal/metrics"
	"github.com/phillip-england/staffplan/internal/pto"
	"github.com/phillip-england/staffplan/internal/recommend"
	"github.com/phillip-england/staffplan/internal/roster"
	"github.com/phillip-england/staffplan/internal/schedule"
	"github.com/phillip-england/staffplan/internal/sheets"
	"github.com/phillip-england/staffplan/internal/store"
	"github.com/phillip-england/staffplan/internal/template"
	"github.com/phillip-england/staffplan/internal/trigger"
	"github.com/phillip-england/staffplan/internal/weather"
	"github.com/phillip-england/staffplan/internal/workflow"
)

const (
	FeedWeather = "weather"
	FeedPTO     = "pto"
)

var (
	ErrLocationRequired = errors.New("location must be EP or NL")
	ErrUnknownFeed      = errors.New("unknown feed")
	ErrInvalidDate      = errors.New("date must be YYYY-MM-DD")
	ErrInvalidMonth     = errors.New("month must be YYYY-MM")
	ErrInvalidSheet     = errors.New("invalid metrics sheet")
)

// Store persists plans and the imported metrics feed.
type Store interface {
	SavePlan(ctx context.Context, plan *schedule.Plan) error
	LoadPlan(ctx context.Context, loc roster.Location) (*schedule.Plan, error)
	ReplaceDaily(ctx context.Context, rows []metrics.DailyRow) error
	ReplaceHourly(ctx context.Context, rows []metrics.HourlyRow) error
	LoadFeed(ctx context.Context) (metrics.Feed, error)
}

type Options struct {
	HorizonWeeks         int
	IncludeDelivery      bool
	NormalsLookbackYears int
}

// Service ties persisted plans to the planning engine and the live feeds.
type Service interface {
	Plan(ctx context.Context, loc roster.Location) (*schedule.Plan, error)
	Build(ctx context.Context, loc roster.Location, start string, horizon int) (*schedule.Plan, error)
	UpdateSlot(ctx context.Context, loc roster.Location, date, slotID string, update SlotUpdate) (*schedule.Plan, error)
	AddSlot(ctx context.Context, loc roster.Location, date string, slot template.Slot) (*schedule.Plan, string, error)
	RemoveSlot(ctx context.Context, loc roster.Location, date, slotID string) (*schedule.Plan, error)
	SetNote(ctx context.Context, loc roster.Location, date, note string) (*schedule.Plan, error)
	CopyDay(ctx context.Context, loc roster.Location, from, to string) (*schedule.Plan, error)
	SetIncludeDelivery(ctx context.Context, loc roster.Location, include bool) (*schedule.Plan, error)

	Recommendation(ctx context.Context, loc roster.Location, date string) (DayRecommendation, error)
	AcceptRecommendation(ctx context.Context, loc roster.Location, date string) (*schedule.Plan, recommend.Recommendation, error)

	SubmitDayRequest(ctx context.Context, loc roster.Location, date, reason string) (*schedule.Plan, schedule.ExceptionRequest, error)
	DecideRequest(ctx context.Context, loc roster.Location, id string, approve bool) (*schedule.Plan, error)
	SubmitNextWeek(ctx context.Context, loc roster.Location) (*schedule.Plan, error)
	DecideNextWeek(ctx context.Context, loc roster.Location, approve bool, reviewer string) (*schedule.Plan, error)
	PTOConflicts(ctx context.Context, loc roster.Location, date string) ([]pto.Conflict, error)

	Triggers(ctx context.Context, loc roster.Location, anchor string) (TriggerReport, error)
	ApplyProfile(ctx context.Context, name string) (trigger.RuleSet, error)
	SetThreshold(ctx context.Context, loc roster.Location, key trigger.Transition, index int, value float64) (trigger.RuleSet, error)

	ImportMetrics(ctx context.Context, r io.Reader, filename string, loc roster.Location) (sheets.Imported, error)
	Sync(ctx context.Context, feed string) (feeds.Status, error)
	SyncAll(ctx context.Context)
	SyncStatus() []feeds.Status
	Export(ctx context.Context, loc roster.Location) (*bytes.Buffer, string, error)
}

// SlotUpdate changes a slot's headcount, its assignments, or both.
// Headcount is applied first.
type SlotUpdate struct {
	Headcount   *int
	Assignments []string
}

type DayRecommendation struct {
	Date           string                    `json:"date"`
	Signal         weather.Signal            `json:"signal"`
	WeatherState   feeds.State               `json:"weatherState"`
	Recommendation *recommend.Recommendation `json:"recommendation,omitempty"`
	Applied        bool                      `json:"applied"`
}

type TriggerReport struct {
	Location    roster.Location                     `json:"location"`
	Profile     string                              `json:"profile"`
	Rules       map[trigger.Transition]trigger.Rule `json:"rules"`
	Observed    []metrics.Summary                   `json:"observed"`
	Evaluations []trigger.Evaluation                `json:"evaluations"`
	Gap         *trigger.GapReport                  `json:"gap,omitempty"`
}

type service struct {
	store    Store
	resolver schedule.Resolver
	weather  *feeds.Syncer[weather.Feed]
	pto      *feeds.Syncer[[]pto.Request]
	opts     Options
	logger   *zap.Logger
	now      func() time.Time

	// Read-modify-write of a plan is serialized per process.
	mu sync.Mutex
}

func NewService(
	st Store,
	resolver schedule.Resolver,
	weatherSync *feeds.Syncer[weather.Feed],
	ptoSync *feeds.Syncer[[]pto.Request],
	opts Options,
	logger *zap.Logger,
) Service {
	if opts.HorizonWeeks < 1 {
		opts.HorizonWeeks = schedule.DefaultHorizonWeeks
	}
	if opts.NormalsLookbackYears < 1 {
		opts.NormalsLookbackYears = 5
	}
	return &service{
		store:    st,
		resolver: resolver,
		weather:  weatherSync,
		pto:      ptoSync,
		opts:     opts,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func planLocation(loc roster.Location) error {
	if loc != roster.LocationEP && loc != roster.LocationNL {
		return ErrLocationRequired
	}
	return nil
}

func (s *service) load(ctx context.Context, loc roster.Location) (*schedule.Plan, error) {
	if err := planLocation(loc); err != nil {
		return nil, err
	}
	plan, err := s.store.LoadPlan(ctx, loc)
	if errors.Is(err, store.ErrNotFound) {
		plan = schedule.NewPlan(loc)
		plan.HorizonWeeks = s.opts.HorizonWeeks
		plan.Settings.IncludeDelivery = s.opts.IncludeDelivery
		return plan, nil
	}
	if err != nil {
		s.logger.Error("load plan failed", zap.String("location", string(loc)), zap.Error(err))
		return nil, errors.Wrap(err, "load plan")
	}
	plan.Location = loc
	plan.Triggers = trigger.Sanitize(plan.Triggers)
	return plan, nil
}

func (s *service) save(ctx context.Context, plan *schedule.Plan) error {
	if err := s.store.SavePlan(ctx, plan); err != nil {
		s.logger.Error("save plan failed", zap.String("location", string(plan.Location)), zap.Error(err))
		return errors.Wrap(err, "save plan")
	}
	s.logger.Debug("plan saved", zap.String("location", string(plan.Location)))
	return nil
}

// mutate loads the plan for loc, applies fn and saves the result. When fn
// hands back the loaded plan itself nothing changed and nothing is saved.
func (s *service) mutate(ctx context.Context, loc roster.Location, fn func(*schedule.Plan) (*schedule.Plan, error)) (*schedule.Plan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	plan, err := s.load(ctx, loc)
	if err != nil {
		return nil, err
	}
	next, err := fn(plan)
	if err != nil {
		return nil, err
	}
	if next == plan {
		return plan, nil
	}
	if err := s.save(ctx, next); err != nil {
		return nil, err
	}
	return next, nil
}

func (s *service) Plan(ctx context.Context, loc roster.Location) (*schedule.Plan, error) {
	return s.load(ctx, loc)
}

func (s *service) Build(ctx context.Context, loc roster.Location, start string, horizon int) (*schedule.Plan, error) {
	day, err := roster.ParseDate(start)
	if err != nil {
		return nil, ErrInvalidDate
	}
	return s.mutate(ctx, loc, func(p *schedule.Plan) (*schedule.Plan, error) {
		if horizon < 1 {
			horizon = p.HorizonWeeks
		}
		if horizon < 1 {
			horizon = s.opts.HorizonWeeks
		}
		var prev *schedule.Plan
		if len(p.Weeks) > 0 || len(p.Requests) > 0 {
			prev = p
		}
		next := schedule.Build(prev, s.resolver, loc, day, horizon)
		next.Triggers = p.Triggers
		next.Settings = p.Settings
		s.logger.Info("plan built",
			zap.String("location", string(loc)),
			zap.String("start", next.StartDate),
			zap.Int("weeks", next.HorizonWeeks))
		return next, nil
	})
}

func (s *service) UpdateSlot(ctx context.Context, loc roster.Location, date, slotID string, update SlotUpdate) (*schedule.Plan, error) {
	return s.mutate(ctx, loc, func(p *schedule.Plan) (*schedule.Plan, error) {
		var err error
		if update.Headcount != nil {
			if p, err = schedule.SetHeadcount(p, date, slotID, *update.Headcount); err != nil {
				return nil, err
			}
		}
		if update.Assignments != nil {
			if p, err = schedule.SetAssignments(p, date, slotID, update.Assignments); err != nil {
				return nil, err
			}
		}
		return p, nil
	})
}

func (s *service) AddSlot(ctx context.Context, loc roster.Location, date string, slot template.Slot) (*schedule.Plan, string, error) {
	var id string
	plan, err := s.mutate(ctx, loc, func(p *schedule.Plan) (*schedule.Plan, error) {
		next, slotID, err := schedule.AddSlot(p, date, slot)
		id = slotID
		return next, err
	})
	return plan, id, err
}

func (s *service) RemoveSlot(ctx context.Context, loc roster.Location, date, slotID string) (*schedule.Plan, error) {
	return s.mutate(ctx, loc, func(p *schedule.Plan) (*schedule.Plan, error) {
		return schedule.RemoveSlot(p, date, slotID)
	})
}

func (s *service) SetNote(ctx context.Context, loc roster.Location, date, note string) (*schedule.Plan, error) {
	return s.mutate(ctx, loc, func(p *schedule.Plan) (*schedule.Plan, error) {
		return schedule.SetNote(p, date, note)
	})
}

func (s *service) CopyDay(ctx context.Context, loc roster.Location, from, to string) (*schedule.Plan, error) {
	return s.mutate(ctx, loc, func(p *schedule.Plan) (*schedule.Plan, error) {
		return schedule.CopyDay(p, from, to)
	})
}

func (s *service) SetIncludeDelivery(ctx context.Context, loc roster.Location, include bool) (*schedule.Plan, error) {
	return s.mutate(ctx, loc, func(p *schedule.Plan) (*schedule.Plan, error) {
		next := p.Clone()
		next.Settings.IncludeDelivery = include
		return next, nil
	})
}

// signal classifies date from the last usable weather feed. Without one the
// day gets a neutral "No weather signal".
func (s *service) signal(ctx context.Context, loc roster.Location, date string) (weather.Signal, feeds.State, error) {
	day, err := roster.ParseDate(date)
	if err != nil {
		return weather.Signal{}, "", ErrInvalidDate
	}
	if s.weather == nil {
		return weather.Classify(nil, nil, nil), feeds.StateNotConnected, nil
	}
	res := s.weather.Latest(ctx)
	if !res.Usable() {
		return weather.Classify(nil, nil, nil), res.State, nil
	}
	normals := weather.BuildNormals(res.Data.History, loc, day, s.opts.NormalsLookbackYears)
	return res.Data.SignalFor(loc, date, normals), res.State, nil
}

func (s *service) Recommendation(ctx context.Context, loc roster.Location, date string) (DayRecommendation, error) {
	plan, err := s.load(ctx, loc)
	if err != nil {
		return DayRecommendation{}, err
	}
	sig, state, err := s.signal(ctx, loc, date)
	if err != nil {
		return DayRecommendation{}, err
	}
	out := DayRecommendation{Date: date, Signal: sig, WeatherState: state}
	rec, err := recommend.Preview(plan, date, sig)
	if err != nil {
		return DayRecommendation{}, err
	}
	out.Recommendation = rec
	if action, ok := recommend.ActionFor(sig); ok {
		d, err := plan.Day(date)
		if err != nil {
			return DayRecommendation{}, err
		}
		out.Applied = d.LastAcceptedRecommendationKey == recommend.Key(date, action)
	}
	return out, nil
}

func (s *service) AcceptRecommendation(ctx context.Context, loc roster.Location, date string) (*schedule.Plan, recommend.Recommendation, error) {
	sig, _, err := s.signal(ctx, loc, date)
	if err != nil {
		return nil, recommend.Recommendation{}, err
	}
	var rec recommend.Recommendation
	plan, err := s.mutate(ctx, loc, func(p *schedule.Plan) (*schedule.Plan, error) {
		next, applied, err := recommend.Apply(p, date, sig)
		rec = applied
		return next, err
	})
	if err != nil {
		return nil, recommend.Recommendation{}, err
	}
	recordRecommendation(rec.Action)
	s.logger.Info("recommendation applied",
		zap.String("location", string(loc)),
		zap.String("date", date),
		zap.String("action", string(rec.Action)),
		zap.String("role", rec.Role))
	return plan, rec, nil
}

func (s *service) SubmitDayRequest(ctx context.Context, loc roster.Location, date, reason string) (*schedule.Plan, schedule.ExceptionRequest, error) {
	var req schedule.ExceptionRequest
	plan, err := s.mutate(ctx, loc, func(p *schedule.Plan) (*schedule.Plan, error) {
		next, submitted, err := workflow.SubmitDayRequest(p, date, reason, s.now())
		req = submitted
		return next, err
	})
	if err != nil {
		return nil, schedule.ExceptionRequest{}, err
	}
	recordDecision("day_request", "submitted")
	return plan, req, nil
}

func (s *service) DecideRequest(ctx context.Context, loc roster.Location, id string, approve bool) (*schedule.Plan, error) {
	plan, err := s.mutate(ctx, loc, func(p *schedule.Plan) (*schedule.Plan, error) {
		if approve {
			return workflow.ApproveRequest(p, id, s.now())
		}
		return workflow.RejectRequest(p, id, s.now())
	})
	if err != nil {
		return nil, err
	}
	if approve {
		recordDecision("day_request", "approved")
	} else {
		recordDecision("day_request", "rejected")
		s.logger.Info("day request rejected", zap.String("location", string(loc)), zap.String("request", id))
	}
	return plan, nil
}

// requests returns the last usable PTO feed, or nothing.
func (s *service) requests(ctx context.Context) []pto.Request {
	if s.pto == nil {
		return nil
	}
	res := s.pto.Latest(ctx)
	if !res.Usable() {
		return nil
	}
	return res.Data
}

func (s *service) SubmitNextWeek(ctx context.Context, loc roster.Location) (*schedule.Plan, error) {
	requests := s.requests(ctx)
	plan, err := s.mutate(ctx, loc, func(p *schedule.Plan) (*schedule.Plan, error) {
		return workflow.SubmitNextWeek(p, requests, s.now())
	})
	if err != nil {
		var gate *workflow.GateError
		if errors.As(err, &gate) {
			s.logger.Info("next week submission blocked", zap.String("location", string(loc)), zap.String("reason", gate.Error()))
		}
		return nil, err
	}
	recordDecision("next_week", "submitted")
	return plan, nil
}

func (s *service) DecideNextWeek(ctx context.Context, loc roster.Location, approve bool, reviewer string) (*schedule.Plan, error) {
	reviewer = strings.TrimSpace(reviewer)
	plan, err := s.mutate(ctx, loc, func(p *schedule.Plan) (*schedule.Plan, error) {
		return workflow.DecideNextWeek(p, approve, reviewer, s.now())
	})
	if err != nil {
		return nil, err
	}
	if approve {
		recordDecision("next_week", "approved")
	} else {
		recordDecision("next_week", "rejected")
		s.logger.Info("next week rejected", zap.String("location", string(loc)), zap.String("reviewer", reviewer))
	}
	return plan, nil
}

// PTOConflicts checks one date, or the first plan week when date is empty.
func (s *service) PTOConflicts(ctx context.Context, loc roster.Location, date string) ([]pto.Conflict, error) {
	plan, err := s.load(ctx, loc)
	if err != nil {
		return nil, err
	}
	requests := s.requests(ctx)
	if date == "" {
		return pto.WeekConflicts(plan, 0, requests), nil
	}
	d, err := plan.Day(date)
	if err != nil {
		return nil, err
	}
	c := pto.Conflicts(loc, date, d, requests)
	if c.Count == 0 {
		return nil, nil
	}
	return []pto.Conflict{c}, nil
}

func (s *service) Triggers(ctx context.Context, loc roster.Location, anchor string) (TriggerReport, error) {
	if anchor != "" {
		if _, err := roster.ParseMonth(anchor); err != nil {
			return TriggerReport{}, ErrInvalidMonth
		}
	}
	plan, err := s.load(ctx, loc)
	if err != nil {
		return TriggerReport{}, err
	}
	feed, err := s.store.LoadFeed(ctx)
	if err != nil {
		return TriggerReport{}, errors.Wrap(err, "load metrics feed")
	}
	include := plan.Settings.IncludeDelivery
	observed := metrics.Observed(feed, loc, include)
	report := TriggerReport{
		Location:    loc,
		Profile:     plan.Triggers.Profile,
		Rules:       plan.Triggers.Rules[loc],
		Observed:    observed,
		Evaluations: trigger.Evaluate(plan.Triggers, loc, observed, anchor),
	}
	if anchor != "" {
		gap := trigger.Gap(plan.Triggers, loc, metrics.Summarize(feed, loc, anchor, include))
		report.Gap = &gap
	}
	return report, nil
}

// ApplyProfile resets the thresholds of every location's plan to the named
// profile.
func (s *service) ApplyProfile(ctx context.Context, name string) (trigger.RuleSet, error) {
	rs, err := trigger.ApplyProfile(name)
	if err != nil {
		return trigger.RuleSet{}, err
	}
	for _, loc := range roster.Locations {
		if _, err := s.mutate(ctx, loc, func(p *schedule.Plan) (*schedule.Plan, error) {
			next := p.Clone()
			next.Triggers = rs.Clone()
			return next, nil
		}); err != nil {
			return trigger.RuleSet{}, err
		}
	}
	s.logger.Info("trigger profile applied", zap.String("profile", name))
	return rs, nil
}

func (s *service) SetThreshold(ctx context.Context, loc roster.Location, key trigger.Transition, index int, value float64) (trigger.RuleSet, error) {
	plan, err := s.mutate(ctx, loc, func(p *schedule.Plan) (*schedule.Plan, error) {
		rs, changed, err := trigger.SetThreshold(p.Triggers, loc, key, index, value)
		if err != nil {
			return nil, err
		}
		if !changed {
			return p, nil
		}
		next := p.Clone()
		next.Triggers = rs
		return next, nil
	})
	if err != nil {
		return trigger.RuleSet{}, err
	}
	return plan.Triggers, nil
}

func (s *service) ImportMetrics(ctx context.Context, r io.Reader, filename string, loc roster.Location) (sheets.Imported, error) {
	if err := planLocation(loc); err != nil {
		return sheets.Imported{}, err
	}
	imported, err := sheets.ImportMetrics(r, filename, loc)
	if err != nil {
		return sheets.Imported{}, fmt.Errorf("%w: %v", ErrInvalidSheet, err)
	}
	if len(imported.Daily) > 0 {
		if err := s.store.ReplaceDaily(ctx, imported.Daily); err != nil {
			return sheets.Imported{}, errors.Wrap(err, "store daily metrics")
		}
	}
	if len(imported.Hourly) > 0 {
		if err := s.store.ReplaceHourly(ctx, imported.Hourly); err != nil {
			return sheets.Imported{}, errors.Wrap(err, "store hourly metrics")
		}
	}
	s.logger.Info("metrics imported",
		zap.String("file", filename),
		zap.Int("daily", len(imported.Daily)),
		zap.Int("hourly", len(imported.Hourly)),
		zap.Int("skipped", imported.Skipped))
	return imported, nil
}

func (s *service) Sync(ctx context.Context, feed string) (feeds.Status, error) {
	switch feed {
	case FeedWeather:
		if s.weather == nil {
			break
		}
		if _, err := s.weather.Sync(ctx); err != nil {
			return s.weather.Status(), err
		}
		return s.weather.Status(), nil
	case FeedPTO:
		if s.pto == nil {
			break
		}
		if _, err := s.pto.Sync(ctx); err != nil {
			return s.pto.Status(), err
		}
		return s.pto.Status(), nil
	}
	return feeds.Status{}, fmt.Errorf("%w: %q", ErrUnknownFeed, feed)
}

// SyncAll refreshes every feed. Failures are already logged by the syncers.
func (s *service) SyncAll(ctx context.Context) {
	for _, name := range []string{FeedWeather, FeedPTO} {
		if _, err := s.Sync(ctx, name); err != nil && !errors.Is(err, ErrUnknownFeed) {
			s.logger.Warn("feed sync skipped", zap.String("feed", name), zap.Error(err))
		}
	}
}

func (s *service) SyncStatus() []feeds.Status {
	var out []feeds.Status
	if s.weather != nil {
		out = append(out, s.weather.Status())
	}
	if s.pto != nil {
		out = append(out, s.pto.Status())
	}
	return out
}

func (s *service) Export(ctx context.Context, loc roster.Location) (*bytes.Buffer, string, error) {
	plan, err := s.load(ctx, loc)
	if err != nil {
		return nil, "", err
	}
	return sheets.ExportPlan(plan, s.requests(ctx))
}
