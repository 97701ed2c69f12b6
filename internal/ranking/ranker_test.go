package ranking

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCosineSimilaritySymmetric(t *testing.T) {
	a := []float64{0.3, -0.2, 0.9, 0.1}
	b := []float64{0.1, 0.4, -0.5, 0.8}
	assert.Equal(t, CosineSimilarity(a, b), CosineSimilarity(b, a))
}

func TestCosineSimilaritySelf(t *testing.T) {
	a := []float64{0.5, 0.25, -1.5}
	assert.InDelta(t, 1.0, CosineSimilarity(a, a), 1e-9)
}

func TestCosineSimilarityDegenerateInputs(t *testing.T) {
	cases := []struct {
		name string
		a, b []float64
	}{
		{"both empty", nil, nil},
		{"one empty", []float64{1, 2}, nil},
		{"mismatched length", []float64{1, 2}, []float64{1, 2, 3}},
		{"zero norm", []float64{0, 0, 0}, []float64{1, 2, 3}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got := CosineSimilarity(c.a, c.b)
			assert.Equal(t, 0.0, got)
		})
	}
}

func TestInterestOverlap(t *testing.T) {
	assert.Equal(t, 0.0, InterestOverlap(nil, []string{"hiking"}))
	assert.Equal(t, 0.0, InterestOverlap([]string{"hiking"}, nil))
	assert.Equal(t, 0.5, InterestOverlap([]string{"hiking", "jazz"}, []string{"jazz", "chess"}))
	assert.Equal(t, 1.0, InterestOverlap([]string{"jazz"}, []string{"jazz", "chess"}))
}

func TestMatchScoreFallsBackToOverlap(t *testing.T) {
	// No similarity signal: overlap stands alone, unweighted.
	assert.Equal(t, 0.4, MatchScore(0, 0.4))
	assert.InDelta(t, 0.7*0.8+0.3*0.4, MatchScore(0.8, 0.4), 1e-9)
}

func TestRankScoreProximity(t *testing.T) {
	// At the center proximity is 1, at the radius edge it is 0.
	assert.InDelta(t, 0.6*0.5+0.4*1.0, RankScore(0.5, 0, 1000), 1e-9)
	assert.InDelta(t, 0.6*0.5, RankScore(0.5, 1000, 1000), 1e-9)
	// Distance beyond the radius is capped, not negative.
	assert.InDelta(t, 0.6*0.5, RankScore(0.5, 5000, 1000), 1e-9)
}

func TestSortDeterministic(t *testing.T) {
	candidates := []Candidate{
		{UserID: 3, DistanceM: 200, RankScore: 0.5},
		{UserID: 1, DistanceM: 100, RankScore: 0.9},
		{UserID: 2, DistanceM: 50, RankScore: 0.5},
		{UserID: 5, DistanceM: 200, RankScore: 0.5},
	}
	Sort(candidates)

	assert.Equal(t, []int{1, 2, 3, 5}, []int{
		candidates[0].UserID, candidates[1].UserID,
		candidates[2].UserID, candidates[3].UserID,
	})
}
