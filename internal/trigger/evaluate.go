package trigger

import (
	"math"
	"sort"

	"github.com/phillip-england/staffplan/internal/metrics"
	"github.com/phillip-england/staffplan/internal/roster"
)

// Evaluation reports how often one transition rule fired across the
// observed months.
type Evaluation struct {
	Location   roster.Location `json:"location"`
	Transition Transition      `json:"transition"`
	Label      string          `json:"label"`
	Observed   int             `json:"observed"`
	Hits       int             `json:"hits"`
	HitRate    float64         `json:"hitRate"`
	FirstHit   string          `json:"firstHit,omitempty"`
	LastHit    string          `json:"lastHit,omitempty"`
	AnchorHit  bool            `json:"anchorHit"`
	HitMonths  []string        `json:"hitMonths,omitempty"`
}

// Evaluate runs every transition rule for loc over observed, which must be
// sorted oldest first. anchor is the month (YYYY-MM) treated as "now".
func Evaluate(rs RuleSet, loc roster.Location, observed []metrics.Summary, anchor string) []Evaluation {
	out := make([]Evaluation, 0, len(Transitions))
	for _, key := range Transitions {
		rule, ok := rs.Rules[loc][key]
		if !ok {
			continue
		}
		e := Evaluation{Location: loc, Transition: key, Label: rule.Label, Observed: len(observed)}
		for _, s := range observed {
			if !RuleMet(rule, s) {
				continue
			}
			e.Hits++
			e.HitMonths = append(e.HitMonths, s.Month)
			if e.FirstHit == "" {
				e.FirstHit = s.Month
			}
			e.LastHit = s.Month
			if s.Month == anchor {
				e.AnchorHit = true
			}
		}
		if e.Observed > 0 {
			e.HitRate = math.Round(float64(e.Hits)/float64(e.Observed)*1000) / 10
		}
		out = append(out, e)
	}
	return out
}

type ConditionGap struct {
	Metric    metrics.Metric `json:"metric"`
	Operator  Operator       `json:"operator"`
	Threshold float64        `json:"threshold"`
	Value     float64        `json:"value"`
	Met       bool           `json:"met"`
	Distance  float64        `json:"distance"`
	Move      float64        `json:"move"`
}

type RuleGap struct {
	Transition Transition     `json:"transition"`
	Label      string         `json:"label"`
	Met        bool           `json:"met"`
	Score      float64        `json:"score"`
	Conditions []ConditionGap `json:"conditions"`
}

type GapReport struct {
	Location roster.Location `json:"location"`
	Month    string          `json:"month"`
	Rules    []RuleGap       `json:"rules"`
	Ranked   []RuleGap       `json:"ranked"`
	Closest  *RuleGap        `json:"closest,omitempty"`
}

// Gap measures how far the anchor summary is from each unmet rule. Each
// unmet condition contributes |threshold-value| / max(|threshold|, 1).
func Gap(rs RuleSet, loc roster.Location, anchor metrics.Summary) GapReport {
	report := GapReport{Location: loc, Month: anchor.Month}
	for _, key := range Transitions {
		rule, ok := rs.Rules[loc][key]
		if !ok {
			continue
		}
		rg := RuleGap{Transition: key, Label: rule.Label, Met: len(rule.Conditions) > 0}
		for _, c := range rule.Conditions {
			value := anchor.Value(c.Metric)
			cg := ConditionGap{
				Metric:    c.Metric,
				Operator:  c.Operator,
				Threshold: c.Threshold,
				Value:     value,
				Met:       ConditionMet(c, value),
			}
			if !cg.Met {
				cg.Move = c.Threshold - value
				cg.Distance = math.Abs(cg.Move) / math.Max(math.Abs(c.Threshold), 1)
				rg.Score += cg.Distance
				rg.Met = false
			}
			rg.Conditions = append(rg.Conditions, cg)
		}
		report.Rules = append(report.Rules, rg)
		if !rg.Met {
			report.Ranked = append(report.Ranked, rg)
		}
	}
	sort.SliceStable(report.Ranked, func(i, j int) bool {
		return report.Ranked[i].Score < report.Ranked[j].Score
	})
	if len(report.Ranked) > 0 {
		closest := report.Ranked[0]
		report.Closest = &closest
	}
	return report
}
