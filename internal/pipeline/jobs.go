package pipeline

import (
	"encoding/json"
	"fmt"
)

// Job is the sealed variant type for queue payloads. Adding a kind means
// adding a case to every exhaustive switch below; the compiler and the
// default-case errors keep the dispatcher honest.
type Job interface {
	// Key identifies the job for deduplication: re-enqueuing the same key
	// collapses into the already-pending entry.
	Key() string
	kind() string
}

const (
	kindScorePair      = "score-pair"
	kindScoreNearby    = "score-user-against-nearby"
	kindRefreshProfile = "refresh-profile"
)

// ScorePairJob scores one unordered pair. UserA < UserB always, so both
// orderings of the same pair share a key.
type ScorePairJob struct {
	UserA int `json:"user_a"`
	UserB int `json:"user_b"`
}

// NewScorePairJob normalizes the pair order.
func NewScorePairJob(userA, userB int) ScorePairJob {
	if userA > userB {
		userA, userB = userB, userA
	}
	return ScorePairJob{UserA: userA, UserB: userB}
}

func (j ScorePairJob) Key() string { return fmt.Sprintf("%s:%d:%d", kindScorePair, j.UserA, j.UserB) }
func (j ScorePairJob) kind() string { return kindScorePair }

// ScoreNearbyJob fans one user's nearby listing out into score-pair jobs,
// prioritized by rank position.
type ScoreNearbyJob struct {
	UserID  int     `json:"user_id"`
	Lat     float64 `json:"lat"`
	Lng     float64 `json:"lng"`
	RadiusM float64 `json:"radius_m"`
	Limit   int     `json:"limit"`
}

func (j ScoreNearbyJob) Key() string { return fmt.Sprintf("%s:%d", kindScoreNearby, j.UserID) }
func (j ScoreNearbyJob) kind() string { return kindScoreNearby }

// RefreshProfileJob recomputes a profile's summary, embedding and interest
// tags after an edit.
type RefreshProfileJob struct {
	UserID int `json:"user_id"`
}

func (j RefreshProfileJob) Key() string {
	return fmt.Sprintf("%s:%d", kindRefreshProfile, j.UserID)
}
func (j RefreshProfileJob) kind() string { return kindRefreshProfile }

// envelope is the persisted form: kind tag, priority for requeueing, and
// the kind-specific payload.
type envelope struct {
	Kind     string          `json:"kind"`
	Priority int             `json:"priority"`
	Payload  json.RawMessage `json:"payload"`
}

func marshalJob(job Job, priority int) ([]byte, error) {
	payload, err := json.Marshal(job)
	if err != nil {
		return nil, err
	}
	return json.Marshal(envelope{Kind: job.kind(), Priority: priority, Payload: payload})
}

func unmarshalJob(data []byte) (Job, int, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, 0, err
	}

	var job Job
	switch env.Kind {
	case kindScorePair:
		var j ScorePairJob
		if err := json.Unmarshal(env.Payload, &j); err != nil {
			return nil, 0, err
		}
		job = j
	case kindScoreNearby:
		var j ScoreNearbyJob
		if err := json.Unmarshal(env.Payload, &j); err != nil {
			return nil, 0, err
		}
		job = j
	case kindRefreshProfile:
		var j RefreshProfileJob
		if err := json.Unmarshal(env.Payload, &j); err != nil {
			return nil, 0, err
		}
		job = j
	default:
		return nil, 0, fmt.Errorf("unknown job kind %q", env.Kind)
	}
	return job, env.Priority, nil
}
