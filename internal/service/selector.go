package service

import "newswatch/internal/domain"

// selectWinner picks exactly one candidate by a fixed total order:
// breaking first, then longer summary, then original feed order. Ties
// keep the earlier candidate, so the same input set always yields the
// same winner.
func selectWinner(candidates []domain.Candidate) *domain.Candidate {
	if len(candidates) == 0 {
		return nil
	}

	best := 0
	for i := 1; i < len(candidates); i++ {
		if moreNewsworthy(candidates[i], candidates[best]) {
			best = i
		}
	}

	winner := candidates[best]
	return &winner
}

func moreNewsworthy(a, b domain.Candidate) bool {
	if a.Breaking != b.Breaking {
		return a.Breaking
	}
	if len(a.Summary) != len(b.Summary) {
		return len(a.Summary) > len(b.Summary)
	}
	if a.FeedIndex != b.FeedIndex {
		return a.FeedIndex < b.FeedIndex
	}
	return a.Position < b.Position
}
