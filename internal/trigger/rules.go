package trigger

import (
	"errors"
	"math"

	"github.com/phillip-england/staffplan/internal/metrics"
	"github.com/phillip-england/staffplan/internal/roster"
)

type Operator string

const (
	AtLeast Operator = ">="
	AtMost  Operator = "<="
)

func (o Operator) Valid() bool {
	return o == AtLeast || o == AtMost
}

type Transition string

const (
	WinterToSpring Transition = "winter_to_spring"
	SpringToSummer Transition = "spring_to_summer"
	SummerToFall   Transition = "summer_to_fall"
	FallToWinter   Transition = "fall_to_winter"
)

// Transitions are the seasonal scale points in calendar order.
var Transitions = []Transition{WinterToSpring, SpringToSummer, SummerToFall, FallToWinter}

const MaxConditions = 2

var (
	ErrUnknownTransition = errors.New("unknown transition")
	ErrConditionIndex    = errors.New("condition index out of range")
	ErrUnknownProfile    = errors.New("unknown threshold profile")
)

type Condition struct {
	Metric    metrics.Metric `json:"metric"`
	Operator  Operator       `json:"operator"`
	Threshold float64        `json:"threshold"`
}

type Rule struct {
	Label      string      `json:"label"`
	Detail     string      `json:"detail"`
	Conditions []Condition `json:"conditions"`
}

func (r Rule) clone() Rule {
	out := r
	out.Conditions = append([]Condition(nil), r.Conditions...)
	return out
}

// RuleSet holds every location's transition rules and the profile they were
// derived from ("custom" once a threshold is edited by hand).
type RuleSet struct {
	Profile string                                  `json:"profile"`
	Rules   map[roster.Location]map[Transition]Rule `json:"rules"`
}

func (rs RuleSet) Clone() RuleSet {
	out := RuleSet{Profile: rs.Profile, Rules: make(map[roster.Location]map[Transition]Rule, len(rs.Rules))}
	for loc, rules := range rs.Rules {
		copied := make(map[Transition]Rule, len(rules))
		for key, rule := range rules {
			copied[key] = rule.clone()
		}
		out.Rules[loc] = copied
	}
	return out
}

type metricRange struct {
	min, max, step float64
}

var ranges = map[metrics.Metric]metricRange{
	metrics.AvgDailyRevenue: {min: 0, max: 50000, step: 50},
	metrics.WeekendShare:    {min: 0, max: 100, step: 0.5},
	metrics.PeakShare:       {min: 0, max: 100, step: 0.5},
}

func KnownMetric(m metrics.Metric) bool {
	_, ok := ranges[m]
	return ok
}

// isRevenue separates currency metrics (scaled by profile factors) from
// percentage metrics (shifted by profile points).
func isRevenue(m metrics.Metric) bool {
	return m == metrics.AvgDailyRevenue
}

// NormalizeThreshold clamps v to the metric's range and rounds it to the
// metric's step.
func NormalizeThreshold(m metrics.Metric, v float64) float64 {
	r, ok := ranges[m]
	if !ok {
		return v
	}
	if math.IsNaN(v) {
		v = r.min
	}
	v = math.Max(r.min, math.Min(r.max, v))
	v = math.Round(v/r.step) * r.step
	return math.Max(r.min, math.Min(r.max, v))
}

func ConditionMet(c Condition, value float64) bool {
	switch c.Operator {
	case AtLeast:
		return value >= c.Threshold
	case AtMost:
		return value <= c.Threshold
	default:
		return false
	}
}

func RuleMet(r Rule, s metrics.Summary) bool {
	if len(r.Conditions) == 0 {
		return false
	}
	for _, c := range r.Conditions {
		if !ConditionMet(c, s.Value(c.Metric)) {
			return false
		}
	}
	return true
}

func DefaultRuleSet() RuleSet {
	return RuleSet{Profile: ProfileBaseline, Rules: defaultRules()}
}

// CloneDefaults returns a fresh copy of the built-in rules.
func CloneDefaults() RuleSet {
	return DefaultRuleSet()
}

func defaultRules() map[roster.Location]map[Transition]Rule {
	return map[roster.Location]map[Transition]Rule{
		roster.LocationEP: {
			WinterToSpring: {
				Label:  "Scale up for spring",
				Detail: "Daily revenue is out of the winter trough and weekends are carrying the week.",
				Conditions: []Condition{
					{Metric: metrics.AvgDailyRevenue, Operator: AtLeast, Threshold: 4600},
					{Metric: metrics.WeekendShare, Operator: AtLeast, Threshold: 44},
				},
			},
			SpringToSummer: {
				Label:  "Scale up for summer",
				Detail: "Revenue at summer levels with evenings taking a larger share.",
				Conditions: []Condition{
					{Metric: metrics.AvgDailyRevenue, Operator: AtLeast, Threshold: 5400},
					{Metric: metrics.PeakShare, Operator: AtLeast, Threshold: 24},
				},
			},
			SummerToFall: {
				Label:  "Scale down for fall",
				Detail: "Summer volume has tapered off.",
				Conditions: []Condition{
					{Metric: metrics.AvgDailyRevenue, Operator: AtMost, Threshold: 4800},
				},
			},
			FallToWinter: {
				Label:  "Scale down for winter",
				Detail: "Revenue at winter levels and weekends no longer lifting the week.",
				Conditions: []Condition{
					{Metric: metrics.AvgDailyRevenue, Operator: AtMost, Threshold: 4350},
					{Metric: metrics.WeekendShare, Operator: AtMost, Threshold: 42},
				},
			},
		},
		roster.LocationNL: {
			WinterToSpring: {
				Label:  "Scale up for spring",
				Detail: "Daily revenue is out of the winter trough and weekends are carrying the week.",
				Conditions: []Condition{
					{Metric: metrics.AvgDailyRevenue, Operator: AtLeast, Threshold: 3700},
					{Metric: metrics.WeekendShare, Operator: AtLeast, Threshold: 45},
				},
			},
			SpringToSummer: {
				Label:  "Scale up for summer",
				Detail: "Revenue at summer levels with evenings taking a larger share.",
				Conditions: []Condition{
					{Metric: metrics.AvgDailyRevenue, Operator: AtLeast, Threshold: 4400},
					{Metric: metrics.PeakShare, Operator: AtLeast, Threshold: 26},
				},
			},
			SummerToFall: {
				Label:  "Scale down for fall",
				Detail: "Summer volume has tapered off.",
				Conditions: []Condition{
					{Metric: metrics.AvgDailyRevenue, Operator: AtMost, Threshold: 3900},
				},
			},
			FallToWinter: {
				Label:  "Scale down for winter",
				Detail: "Revenue at winter levels and weekends no longer lifting the week.",
				Conditions: []Condition{
					{Metric: metrics.AvgDailyRevenue, Operator: AtMost, Threshold: 3500},
					{Metric: metrics.WeekendShare, Operator: AtMost, Threshold: 43},
				},
			},
		},
	}
}
