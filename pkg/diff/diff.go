// Package diff compares two run reports and classifies per-case status
// transitions into regressions, improvements, and unchanged cases.
package diff

import (
	"encoding/json"
	"time"

	"github.com/promptmgr/evalcore/pkg/report"
)

// Transition records one case's status change between a baseline and a
// candidate report.
type Transition struct {
	HashedCaseID    string        `json:"hashedCaseId"`
	BaselineStatus  report.Status `json:"baselineStatus"`
	CandidateStatus report.Status `json:"candidateStatus"`
}

// Report is the JSON artifact produced by Compare.
type Report struct {
	BaselineSuiteID  string       `json:"baselineSuiteId"`
	CandidateSuiteID string       `json:"candidateSuiteId"`
	ComparedAt       string       `json:"comparedAt"`
	TotalCompared    int          `json:"totalCompared"`
	Regressions      []Transition `json:"regressions"`
	Improvements     []Transition `json:"improvements"`
	Unchanged        int          `json:"unchanged"`
}

// rank orders statuses pass > fail > error, per spec.md §4.7/glossary.
func rank(s report.Status) int {
	switch s {
	case report.Pass:
		return 2
	case report.Fail:
		return 1
	default:
		return 0
	}
}

// nowISO8601 returns the wall-clock time at the moment of diffing,
// formatted as ISO-8601. It is a var so tests can stub it without
// threading a clock through Compare's signature.
var nowISO8601 = func() string {
	return time.Now().UTC().Format("2006-01-02T15:04:05.000Z07:00")
}

// Compare indexes both reports by hashedCaseId (duplicate keys: last
// wins) and classifies every id present in both reports as a regression,
// an improvement, or unchanged. Ids present in only one side are
// ignored — they count toward neither transition list.
func Compare(baseline, candidate *report.RunReport) *Report {
	baseIdx := indexByHashedCaseID(baseline.Cases)
	candIdx := indexByHashedCaseID(candidate.Cases)

	d := &Report{
		BaselineSuiteID:  baseline.SuiteID,
		CandidateSuiteID: candidate.SuiteID,
		ComparedAt:       nowISO8601(),
	}

	union := make(map[string]struct{}, len(baseIdx)+len(candIdx))
	for id := range baseIdx {
		union[id] = struct{}{}
	}
	for id := range candIdx {
		union[id] = struct{}{}
	}
	d.TotalCompared = len(union)

	for id, baseCase := range baseIdx {
		candCase, ok := candIdx[id]
		if !ok {
			continue
		}

		if baseCase.Status == candCase.Status {
			d.Unchanged++
			continue
		}

		t := Transition{HashedCaseID: id, BaselineStatus: baseCase.Status, CandidateStatus: candCase.Status}
		if rank(baseCase.Status) > rank(candCase.Status) {
			d.Regressions = append(d.Regressions, t)
		} else {
			d.Improvements = append(d.Improvements, t)
		}
	}

	return d
}

func indexByHashedCaseID(cases []report.CaseResult) map[string]report.CaseResult {
	idx := make(map[string]report.CaseResult, len(cases))
	for _, c := range cases {
		idx[c.HashedCaseID] = c
	}
	return idx
}

// JSON serializes the diff report.
func (d *Report) JSON() ([]byte, error) {
	return json.MarshalIndent(d, "", "  ")
}
