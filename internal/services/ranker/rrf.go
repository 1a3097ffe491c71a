// Package ranker fuses keyword and semantic rankings with weighted
// reciprocal rank fusion.
package ranker

import (
	"sort"

	"github.com/ternarybob/scientia/internal/common"
	"github.com/ternarybob/scientia/internal/models"
)

// Service combines two ranked lists using reciprocal rank fusion. Each
// list contributes 1/(rank+k) per item, weighted by alpha for the
// semantic list and 1-alpha for the keyword list. Scores are normalized
// into [0,1] by dividing by the maximum attainable contribution 1/(1+k).
type Service struct {
	k int
}

// NewService creates a ranker. A non-positive k falls back to the
// conventional constant of 60.
func NewService(k int) *Service {
	if k <= 0 {
		k = common.DefaultRRFConstant
	}
	return &Service{k: k}
}

// Fuse merges the two rankings and returns the topK fused results in
// descending score order, ties broken by ascending chunk ID. Raw branch
// scores are carried through for diagnostics. With alpha=0 only the
// keyword ranking contributes; with alpha=1 only the semantic ranking.
func (s *Service) Fuse(keyword, semantic []models.ScoredID, alpha float64, topK int) []models.RankedResult {
	if alpha < 0 {
		alpha = 0
	}
	if alpha > 1 {
		alpha = 1
	}

	fused := make(map[string]*models.RankedResult)

	accumulate := func(list []models.ScoredID, weight float64, semanticBranch bool) {
		if weight == 0 {
			return
		}
		for rank, item := range list {
			r, ok := fused[item.ID]
			if !ok {
				r = &models.RankedResult{ChunkID: item.ID}
				fused[item.ID] = r
			}
			r.Score += weight / float64(rank+1+s.k)
			if semanticBranch {
				r.SemanticScore = item.Score
			} else {
				r.KeywordScore = item.Score
			}
		}
	}

	accumulate(keyword, 1-alpha, false)
	accumulate(semantic, alpha, true)

	maxContribution := 1.0 / float64(1+s.k)
	results := make([]models.RankedResult, 0, len(fused))
	for _, r := range fused {
		r.Score /= maxContribution
		results = append(results, *r)
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].ChunkID < results[j].ChunkID
	})

	if topK > 0 && len(results) > topK {
		results = results[:topK]
	}
	return results
}
