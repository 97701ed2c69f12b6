// Package ranking implements the blended proximity+affinity ordering used
// for nearby candidates and for deciding which pairs the analysis pipeline
// scores first.
package ranking

import (
	"math"
	"sort"

	"github.com/ripplehq/ripple-backend/internal/domain"
	"github.com/ripplehq/ripple-backend/internal/geo"
)

// Scoring weights. Affinity dominates proximity; within affinity the
// embedding similarity dominates tag overlap when an embedding exists.
const (
	similarityWeight = 0.7
	overlapWeight    = 0.3
	matchWeight      = 0.6
	proximityWeight  = 0.4
)

// Candidate is one scored entry of a ranked nearby listing.
type Candidate struct {
	UserID    int
	DistanceM float64
	RankScore float64
}

// CosineSimilarity returns the cosine of the angle between a and b. It
// returns 0 (never NaN, never panics) for empty, mismatched-length, or
// zero-norm vectors.
func CosineSimilarity(a, b []float64) float64 {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// InterestOverlap returns |shared| / |requester tags|, 0 when the requester
// has no tags.
func InterestOverlap(requester, candidate []string) float64 {
	if len(requester) == 0 {
		return 0
	}
	set := make(map[string]struct{}, len(candidate))
	for _, tag := range candidate {
		set[tag] = struct{}{}
	}
	shared := 0
	for _, tag := range requester {
		if _, ok := set[tag]; ok {
			shared++
		}
	}
	return float64(shared) / float64(len(requester))
}

// MatchScore blends embedding similarity with interest overlap. With no
// usable similarity the overlap stands alone.
func MatchScore(similarity, overlap float64) float64 {
	if similarity > 0 {
		return similarityWeight*similarity + overlapWeight*overlap
	}
	return overlap
}

// RankScore blends affinity with proximity. Distance is capped at the
// search radius so a candidate at the edge scores zero proximity.
func RankScore(matchScore, distanceM, radiusM float64) float64 {
	if radiusM <= 0 {
		return matchWeight * matchScore
	}
	proximity := 1 - math.Min(distanceM, radiusM)/radiusM
	return matchWeight*matchScore + proximityWeight*proximity
}

// RankProfiles runs the precise filter and scoring over a bounding-box
// candidate pool: haversine radius check, blocked-pair exclusion, blend,
// deterministic order. Candidates without a location are skipped.
func RankProfiles(requester *domain.Profile, candidates []*domain.Profile, radiusM float64, blocked map[int]struct{}) []Candidate {
	if requester == nil || !requester.HasLocation() {
		return nil
	}

	ranked := make([]Candidate, 0, len(candidates))
	for _, candidate := range candidates {
		if candidate.UserID == requester.UserID || !candidate.HasLocation() {
			continue
		}
		if _, isBlocked := blocked[candidate.UserID]; isBlocked {
			continue
		}

		distance := geo.Distance(
			*requester.LocationLat, *requester.LocationLng,
			*candidate.LocationLat, *candidate.LocationLng,
		)
		if distance > radiusM {
			continue
		}

		similarity := CosineSimilarity(requester.Embedding, candidate.Embedding)
		overlap := InterestOverlap(requester.Interests, candidate.Interests)
		ranked = append(ranked, Candidate{
			UserID:    candidate.UserID,
			DistanceM: distance,
			RankScore: RankScore(MatchScore(similarity, overlap), distance, radiusM),
		})
	}

	Sort(ranked)
	return ranked
}

// Sort orders candidates by rank score descending, ties broken by ascending
// distance, then by user id so the order is fully deterministic.
func Sort(candidates []Candidate) {
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].RankScore != candidates[j].RankScore {
			return candidates[i].RankScore > candidates[j].RankScore
		}
		if candidates[i].DistanceM != candidates[j].DistanceM {
			return candidates[i].DistanceM < candidates[j].DistanceM
		}
		return candidates[i].UserID < candidates[j].UserID
	})
}
