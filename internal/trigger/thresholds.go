package trigger

import (
	"strings"

	"github.com/phillip-england/staffplan/internal/roster"
)

const (
	ProfileBaseline     = "baseline"
	ProfileConservative = "conservative"
	ProfileAggressive   = "aggressive"
	ProfileCustom       = "custom"
)

type Profile struct {
	RevenueFactor float64 `json:"revenueFactor"`
	PointDelta    float64 `json:"pointDelta"`
}

// Profiles scale the default thresholds. A positive delta or a factor above
// one makes every rule harder to hit.
var Profiles = map[string]Profile{
	ProfileBaseline:     {RevenueFactor: 1, PointDelta: 0},
	ProfileConservative: {RevenueFactor: 1.1, PointDelta: 2},
	ProfileAggressive:   {RevenueFactor: 0.9, PointDelta: -2},
}

// ApplyProfile re-derives every threshold from the defaults.
func ApplyProfile(name string) (RuleSet, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	profile, ok := Profiles[name]
	if !ok {
		return RuleSet{}, ErrUnknownProfile
	}
	rs := CloneDefaults()
	rs.Profile = name
	for _, rules := range rs.Rules {
		for key, rule := range rules {
			for i, c := range rule.Conditions {
				rule.Conditions[i].Threshold = NormalizeThreshold(c.Metric, scale(c, profile))
			}
			rules[key] = rule
		}
	}
	return rs, nil
}

func scale(c Condition, p Profile) float64 {
	if isRevenue(c.Metric) {
		if c.Operator == AtMost {
			return c.Threshold / p.RevenueFactor
		}
		return c.Threshold * p.RevenueFactor
	}
	if c.Operator == AtMost {
		return c.Threshold - p.PointDelta
	}
	return c.Threshold + p.PointDelta
}

// SetThreshold writes one normalized threshold. It reports false, and
// returns rs untouched, when the normalized value equals the current one.
func SetThreshold(rs RuleSet, loc roster.Location, key Transition, index int, value float64) (RuleSet, bool, error) {
	rule, ok := rs.Rules[loc][key]
	if !ok {
		return rs, false, ErrUnknownTransition
	}
	if index < 0 || index >= len(rule.Conditions) {
		return rs, false, ErrConditionIndex
	}
	c := rule.Conditions[index]
	normalized := NormalizeThreshold(c.Metric, value)
	if normalized == c.Threshold {
		return rs, false, nil
	}
	next := rs.Clone()
	updated := next.Rules[loc][key]
	updated.Conditions[index].Threshold = normalized
	next.Rules[loc][key] = updated
	next.Profile = ProfileCustom
	return next, true, nil
}

// Sanitize repairs a stored rule set: unknown locations and conditions are
// dropped, thresholds normalized, and missing rules filled from defaults.
func Sanitize(rs RuleSet) RuleSet {
	defaults := CloneDefaults()
	out := RuleSet{Profile: rs.Profile, Rules: map[roster.Location]map[Transition]Rule{}}
	if _, ok := Profiles[out.Profile]; !ok && out.Profile != ProfileCustom {
		out.Profile = ProfileBaseline
	}
	for _, loc := range roster.Locations {
		out.Rules[loc] = map[Transition]Rule{}
		for _, key := range Transitions {
			fallback := defaults.Rules[loc][key]
			stored, ok := rs.Rules[loc][key]
			if !ok {
				out.Rules[loc][key] = fallback
				continue
			}
			rule := Rule{Label: strings.TrimSpace(stored.Label), Detail: strings.TrimSpace(stored.Detail)}
			if rule.Label == "" {
				rule.Label = fallback.Label
			}
			if rule.Detail == "" {
				rule.Detail = fallback.Detail
			}
			for _, c := range stored.Conditions {
				if !KnownMetric(c.Metric) || !c.Operator.Valid() {
					continue
				}
				c.Threshold = NormalizeThreshold(c.Metric, c.Threshold)
				rule.Conditions = append(rule.Conditions, c)
				if len(rule.Conditions) == MaxConditions {
					break
				}
			}
			if len(rule.Conditions) == 0 {
				rule.Conditions = fallback.Conditions
			}
			out.Rules[loc][key] = rule
		}
	}
	return out
}
