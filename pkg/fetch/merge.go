package fetch

import "github.com/m-mizutani/wicket/pkg/model"

// Merge concatenates pools keeping the first record seen for each id.
func Merge[T any](id func(T) string, pools ...[]T) []T {
	seen := make(map[string]struct{})
	var out []T
	for _, pool := range pools {
		for _, v := range pool {
			k := id(v)
			if _, ok := seen[k]; ok {
				continue
			}
			seen[k] = struct{}{}
			out = append(out, v)
		}
	}
	return out
}

func MergeMatches(pools ...[]*model.Match) []*model.Match {
	return Merge(func(m *model.Match) string { return string(m.ID) }, pools...)
}

func MergeSeries(pools ...[]*model.Series) []*model.Series {
	return Merge(func(s *model.Series) string { return string(s.ID) }, pools...)
}
