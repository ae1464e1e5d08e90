// Package score implements optional composite scoring for human-facing
// reports: several assertion.Spec checks against the same output,
// weighted and averaged into a single 0-1 score. It never feeds back into
// report.CaseResult.Status, which is governed solely by the single
// assertion.Spec the orchestrator's pipeline evaluates (spec.md §4.1);
// this package is an additional, optional lens a suite author can apply
// when printing results for a human reviewer.
package score

import (
	"fmt"
	"strings"

	"github.com/promptmgr/evalcore/pkg/assertion"
	"github.com/promptmgr/evalcore/pkg/jsonvalue"
)

// WeightedSpec pairs an assertion.Spec with a name (for reporting) and a
// weight in the composite average. A zero Weight defaults to 1.0.
type WeightedSpec struct {
	Name   string
	Spec   assertion.Spec
	Weight float64
}

// SpecScore is one weighted spec's contribution to a Composite.
type SpecScore struct {
	Name   string
	Weight float64
	Ratio  float64 // fraction of this spec's checks that passed, in [0,1]
	Result assertion.Result
}

// Composite is the aggregated result of scoring one output against
// several weighted specs.
type Composite struct {
	Score     float64
	Passed    bool
	Breakdown []SpecScore
	Reason    string
}

// Scorer combines multiple assertion.Spec evaluations into one weighted
// average: same weighted-average-with-default-threshold shape as a
// composite judge scorer, generalized from "one weighted judge per
// rubric" to "one weighted assertion.Spec per concern".
type Scorer struct {
	Threshold float64 // pass threshold; 0 defaults to 0.5
}

// NewScorer returns a Scorer with the given pass threshold (0 defaults to
// 0.5).
func NewScorer(threshold float64) *Scorer {
	if threshold == 0 {
		threshold = 0.5
	}
	return &Scorer{Threshold: threshold}
}

// Score evaluates output against expected under every spec in specs and
// returns the weighted-average composite.
func (s *Scorer) Score(output, expected jsonvalue.Value, specs []WeightedSpec) Composite {
	var breakdown []SpecScore
	var weightedSum, totalWeight float64
	var reasons []string

	for _, ws := range specs {
		w := ws.Weight
		if w == 0 {
			w = 1.0
		}

		result := assertion.Evaluate(output, expected, ws.Spec)
		ratio := passRatio(result)

		breakdown = append(breakdown, SpecScore{Name: ws.Name, Weight: w, Ratio: ratio, Result: result})
		weightedSum += ratio * w
		totalWeight += w
		reasons = append(reasons, fmt.Sprintf("%s: ratio=%.2f", ws.Name, ratio))
	}

	var composite float64
	if totalWeight > 0 {
		composite = weightedSum / totalWeight
	}

	return Composite{
		Score:     composite,
		Passed:    composite >= s.Threshold,
		Breakdown: breakdown,
		Reason:    strings.Join(reasons, "; "),
	}
}

// passRatio converts an assertion.Result into a [0,1] pass ratio: the
// fraction of field checks, missing-key checks, and unexpected-key checks
// that passed. A spec with zero checks scores 1.0 on pass, 0.0 on fail.
func passRatio(result assertion.Result) float64 {
	total := len(result.Checks) + len(result.MissingKeys) + len(result.UnexpectedKeys)
	if total == 0 {
		if result.Passed {
			return 1.0
		}
		return 0.0
	}

	passedCount := 0
	for _, c := range result.Checks {
		if c.Passed {
			passedCount++
		}
	}
	return float64(passedCount) / float64(total)
}
