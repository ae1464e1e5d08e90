package score

import (
	"testing"

	"github.com/promptmgr/evalcore/pkg/assertion"
	"github.com/promptmgr/evalcore/pkg/jsonvalue"
)

func obj(pairs ...interface{}) jsonvalue.Value {
	o := jsonvalue.NewObject()
	for i := 0; i+1 < len(pairs); i += 2 {
		o.Set(pairs[i].(string), pairs[i+1])
	}
	return o
}

func TestScore_AllSpecsPass(t *testing.T) {
	output := obj("status", "confirmed")
	specs := []WeightedSpec{
		{Name: "required", Weight: 2, Spec: assertion.Spec{RequiredKeys: []string{"status"}, AllowAdditionalKeys: true}},
		{Name: "value", Weight: 1, Spec: assertion.Spec{
			FieldMatchers: map[string][]assertion.Matcher{
				"status": {{Op: assertion.OneOf, Value: []jsonvalue.Value{"confirmed", "pending"}}},
			},
		}},
	}

	c := NewScorer(0).Score(output, nil, specs)
	if !c.Passed {
		t.Fatalf("expected composite to pass, got score=%.2f", c.Score)
	}
	if c.Score != 1.0 {
		t.Errorf("score = %.2f, want 1.0", c.Score)
	}
	if len(c.Breakdown) != 2 {
		t.Fatalf("breakdown len = %d, want 2", len(c.Breakdown))
	}
}

func TestScore_FailingSpecYieldsZeroComposite(t *testing.T) {
	output := obj("status", "unknown")
	specs := []WeightedSpec{
		{Name: "value", Weight: 1, Spec: assertion.Spec{
			FieldMatchers: map[string][]assertion.Matcher{
				"status": {{Op: assertion.OneOf, Value: []jsonvalue.Value{"confirmed", "pending"}}},
			},
		}},
	}

	c := NewScorer(0.5).Score(output, nil, specs)
	if c.Passed {
		t.Fatalf("expected composite to fail, got score=%.2f", c.Score)
	}
	if c.Score != 0.0 {
		t.Errorf("score = %.2f, want 0.0", c.Score)
	}
}

func TestScore_EmptySpecListYieldsZeroScore(t *testing.T) {
	c := NewScorer(0).Score(obj(), nil, nil)
	if c.Score != 0 {
		t.Errorf("score = %.2f, want 0", c.Score)
	}
}
