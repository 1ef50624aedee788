package triage

import (
	"math"
	"sort"

	"github.com/seven-shadow/sentinel-eye/config"
)

// round3 rounds to 3 decimal places.
func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}

// contribution computes one signal's weighted share: the value clamped to
// [0, saturation], normalized by the saturation point, times the weight,
// rounded to 3 decimals. A non-positive saturation contributes nothing.
func contribution(value, saturation int, weight float64) float64 {
	if saturation <= 0 {
		return 0
	}
	clamped := value
	if clamped < 0 {
		clamped = 0
	}
	if clamped > saturation {
		clamped = saturation
	}
	return round3(float64(clamped) / float64(saturation) * weight)
}

// score fills the breakdown, risk points, and priority/trust scores of a PR.
func score(pr *ScoredPullRequest, scoring config.ScoringConfig) {
	caps, weights := scoring.Caps, scoring.Weights

	pr.Breakdown = Breakdown{
		FailingRuns:        contribution(pr.FailingRuns, caps.FailingRuns, weights.FailingRuns),
		UnresolvedComments: contribution(pr.UnresolvedComments, caps.UnresolvedComments, weights.UnresolvedComments),
		ChangedFiles:       contribution(pr.ChangedFiles, caps.ChangedFiles, weights.ChangedFiles),
		LinesChanged:       contribution(pr.LinesChanged, caps.LinesChanged, weights.LinesChanged),
		DuplicatePeers:     contribution(pr.DuplicatePeers, caps.DuplicatePeers, weights.DuplicatePeers),
	}

	pr.RiskPoints = round3(pr.Breakdown.FailingRuns +
		pr.Breakdown.UnresolvedComments +
		pr.Breakdown.ChangedFiles +
		pr.Breakdown.LinesChanged +
		pr.Breakdown.DuplicatePeers)

	priority := int(math.Round(pr.RiskPoints))
	if priority < 0 {
		priority = 0
	}
	if priority > 100 {
		priority = 100
	}
	pr.PriorityScore = priority
	pr.TrustScore = 100 - priority
}

// sortItems applies the canonical report ordering: priority descending,
// unresolved comments descending, failing runs descending, "{owner}/{repo}"
// ascending, number ascending. The predicate is total, so the order is
// deterministic for any input.
func sortItems(items []ScoredPullRequest) {
	sort.Slice(items, func(a, b int) bool {
		if items[a].PriorityScore != items[b].PriorityScore {
			return items[a].PriorityScore > items[b].PriorityScore
		}
		if items[a].UnresolvedComments != items[b].UnresolvedComments {
			return items[a].UnresolvedComments > items[b].UnresolvedComments
		}
		if items[a].FailingRuns != items[b].FailingRuns {
			return items[a].FailingRuns > items[b].FailingRuns
		}
		ra, rb := items[a].Repo.String(), items[b].Repo.String()
		if ra != rb {
			return ra < rb
		}
		return items[a].Number < items[b].Number
	})
}
