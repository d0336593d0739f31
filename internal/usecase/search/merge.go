package search

import (
	"sort"

	"github.com/kailas-cloud/prodsearch/internal/domain/search/result"
)

// mergeByName concatenates lists in order, keeps the first result for each
// product name and truncates to topK. Earlier lists win on collision.
func mergeByName(topK int, lists ...[]result.Result) []result.Result {
	seen := make(map[string]struct{})
	merged := make([]result.Result, 0, topK)

	for _, list := range lists {
		for _, r := range list {
			if len(merged) == topK {
				return merged
			}
			if _, ok := seen[r.Name()]; ok {
				continue
			}
			seen[r.Name()] = struct{}{}
			merged = append(merged, r)
		}
	}
	return merged
}

// sortByScore orders results by descending score, ties by ascending product ID.
func sortByScore(results []result.Result) {
	sort.SliceStable(results, func(i, j int) bool {
		si, _ := results[i].Score()
		sj, _ := results[j].Score()
		if si != sj {
			return si > sj
		}
		return results[i].ProductID() < results[j].ProductID()
	})
}
