package pipeline

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ripplehq/ripple-backend/internal/config"
	"github.com/ripplehq/ripple-backend/internal/domain"
	"github.com/ripplehq/ripple-backend/internal/infrastructure/gemini"
	"github.com/ripplehq/ripple-backend/internal/realtime"
)

type fakeQueue struct {
	mu       sync.Mutex
	enqueued []enqueuedJob
}

type enqueuedJob struct {
	job      Job
	priority int
}

func (q *fakeQueue) Enqueue(_ context.Context, job Job, priority int) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, e := range q.enqueued {
		if e.job.Key() == job.Key() {
			return nil
		}
	}
	q.enqueued = append(q.enqueued, enqueuedJob{job: job, priority: priority})
	return nil
}

func (q *fakeQueue) Dequeue(context.Context) (Job, int, error) { return nil, 0, ErrQueueEmpty }
func (q *fakeQueue) Ack(context.Context, Job) error { return nil }
func (q *fakeQueue) Nack(context.Context, Job, int) error { return nil }
func (q *fakeQueue) RequeueExpired(context.Context) (int, error) { return 0, nil }

type fakeProfileRepo struct {
	profiles   map[int]*domain.Profile
	enrichedID int
	summary    string
}

func (r *fakeProfileRepo) Create(context.Context, *domain.Profile) error { return nil }
func (r *fakeProfileRepo) Update(context.Context, *domain.Profile) error { return nil }
func (r *fakeProfileRepo) UpdateLocation(context.Context, int, float64, float64) error {
	return nil
}

func (r *fakeProfileRepo) GetByUserID(_ context.Context, userID int) (*domain.Profile, error) {
	p, ok := r.profiles[userID]
	if !ok {
		return nil, domain.ErrProfileNotFound
	}
	return p, nil
}

func (r *fakeProfileRepo) UpdateEnrichment(_ context.Context, userID int, summary string, _ []float64, _ []string) error {
	r.enrichedID = userID
	r.summary = summary
	return nil
}

func (r *fakeProfileRepo) FindNearby(_ context.Context, minLat, maxLat, minLng, maxLng float64, excludeUserID int) ([]*domain.Profile, error) {
	var out []*domain.Profile
	for _, p := range r.profiles {
		if p.UserID == excludeUserID || !p.HasLocation() {
			continue
		}
		if *p.LocationLat < minLat || *p.LocationLat > maxLat ||
			*p.LocationLng < minLng || *p.LocationLng > maxLng {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

type fakeAnalysisRepo struct {
	mu       sync.Mutex
	rows     map[string]*domain.ConnectionAnalysis
	upserted int
}

func analysisKey(from, to int) string { return fmt.Sprintf("%d:%d", from, to) }

func (r *fakeAnalysisRepo) Get(_ context.Context, from, to int) (*domain.ConnectionAnalysis, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.rows[analysisKey(from, to)]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return a, nil
}

func (r *fakeAnalysisRepo) Upsert(_ context.Context, a *domain.ConnectionAnalysis) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.rows == nil {
		r.rows = map[string]*domain.ConnectionAnalysis{}
	}
	r.rows[analysisKey(a.FromUserID, a.ToUserID)] = a
	r.upserted++
	return nil
}

type fakeBlockRepo struct {
	pairs map[string]bool
}

func blockKey(a, b int) string {
	if a > b {
		a, b = b, a
	}
	return fmt.Sprintf("%d:%d", a, b)
}

func (r *fakeBlockRepo) Create(context.Context, int, int) error { return nil }
func (r *fakeBlockRepo) Delete(context.Context, int, int) error { return nil }

func (r *fakeBlockRepo) ExistsBetween(_ context.Context, a, b int) (bool, error) {
	return r.pairs[blockKey(a, b)], nil
}

func (r *fakeBlockRepo) BlockedSet(_ context.Context, userID int) (map[int]struct{}, error) {
	out := map[int]struct{}{}
	for key := range r.pairs {
		var a, b int
		fmt.Sscanf(key, "%d:%d", &a, &b)
		if a == userID {
			out[b] = struct{}{}
		}
		if b == userID {
			out[a] = struct{}{}
		}
	}
	return out, nil
}

type fakeScorer struct {
	mu         sync.Mutex
	scoreCalls int
	score      int
}

func (s *fakeScorer) ScoreConnection(_ context.Context, a, b gemini.ProfileText) (*gemini.ConnectionScore, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scoreCalls++
	return &gemini.ConnectionScore{
		Score:        s.score,
		SnippetA:     "snippet for " + a.DisplayName,
		SnippetB:     "snippet for " + b.DisplayName,
		DescriptionA: "desc a",
		DescriptionB: "desc b",
	}, nil
}

func (s *fakeScorer) Summarize(_ context.Context, bio, _ string) (string, []string, error) {
	return "summary of " + bio, []string{"hiking"}, nil
}

func (s *fakeScorer) Embed(context.Context, string) ([]float64, error) {
	return []float64{0.1, 0.2}, nil
}

type fakeBus struct {
	mu     sync.Mutex
	events map[string][]*realtime.Event
}

func (b *fakeBus) Publish(topic string, event *realtime.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.events == nil {
		b.events = map[string][]*realtime.Event{}
	}
	b.events[topic] = append(b.events[topic], event)
}

func strPtr(s string) *string { return &s }
func f64Ptr(f float64) *float64 { return &f }

func testProfile(userID int, name string) *domain.Profile {
	return &domain.Profile{
		ID:          userID,
		UserID:      userID,
		DisplayName: name,
		Bio:         strPtr("bio of " + name),
		LookingFor:  strPtr("friends"),
		Summary:     strPtr("summary of " + name),
		Interests:   []string{"music"},
		Visibility:  domain.VisibilityVisible,
	}
}

func newTestPipeline(t *testing.T, profiles *fakeProfileRepo, analyses *fakeAnalysisRepo, blocks *fakeBlockRepo, scorer *fakeScorer) (*Pipeline, *fakeQueue, *fakeBus) {
	t.Helper()
	queue := &fakeQueue{}
	bus := &fakeBus{}
	cfg := config.PipelineConfig{
		Concurrency:       2,
		MaxRetries:        3,
		CompletionsPerMin: 6000,
		LeaseTimeout:      time.Minute,
		PollInterval:      10 * time.Millisecond,
	}
	p, err := New(cfg, queue, profiles, analyses, blocks, scorer, bus)
	require.NoError(t, err)
	t.Cleanup(p.pool.Release)
	return p, queue, bus
}

func TestScorePairComputesBothDirections(t *testing.T) {
	profiles := &fakeProfileRepo{profiles: map[int]*domain.Profile{
		1: testProfile(1, "Ann"),
		2: testProfile(2, "Ben"),
	}}
	analyses := &fakeAnalysisRepo{}
	scorer := &fakeScorer{score: 82}
	p, _, bus := newTestPipeline(t, profiles, analyses, &fakeBlockRepo{}, scorer)

	err := p.handleScorePair(context.Background(), NewScorePairJob(2, 1))
	require.NoError(t, err)

	assert.Equal(t, 1, scorer.scoreCalls)
	require.Len(t, analyses.rows, 2)

	forward := analyses.rows[analysisKey(1, 2)]
	backward := analyses.rows[analysisKey(2, 1)]
	assert.Equal(t, 82, forward.Score)
	assert.Equal(t, 82, backward.Score)
	assert.Equal(t, "snippet for Ann", forward.Snippet)
	assert.Equal(t, "snippet for Ben", backward.Snippet)
	assert.Equal(t, domain.ContentHash(profiles.profiles[1].FreeText()), forward.FromHash)

	assert.Len(t, bus.events[realtime.UserTopic(1)], 1)
	assert.Len(t, bus.events[realtime.UserTopic(2)], 1)
	assert.Equal(t, realtime.EventTypeAnalysisReady, bus.events[realtime.UserTopic(1)][0].Type)
}

func TestScorePairFreshSkipsScorer(t *testing.T) {
	profiles := &fakeProfileRepo{profiles: map[int]*domain.Profile{
		1: testProfile(1, "Ann"),
		2: testProfile(2, "Ben"),
	}}
	analyses := &fakeAnalysisRepo{}
	scorer := &fakeScorer{score: 82}
	p, _, bus := newTestPipeline(t, profiles, analyses, &fakeBlockRepo{}, scorer)

	require.NoError(t, p.handleScorePair(context.Background(), NewScorePairJob(1, 2)))
	require.Equal(t, 1, scorer.scoreCalls)

	// Same text, second run is a no-op.
	require.NoError(t, p.handleScorePair(context.Background(), NewScorePairJob(1, 2)))
	assert.Equal(t, 1, scorer.scoreCalls)
	assert.Equal(t, 2, analyses.upserted)
	assert.Len(t, bus.events[realtime.UserTopic(1)], 1)
}

func TestScorePairStaleTextRecomputes(t *testing.T) {
	profiles := &fakeProfileRepo{profiles: map[int]*domain.Profile{
		1: testProfile(1, "Ann"),
		2: testProfile(2, "Ben"),
	}}
	analyses := &fakeAnalysisRepo{}
	scorer := &fakeScorer{score: 50}
	p, _, _ := newTestPipeline(t, profiles, analyses, &fakeBlockRepo{}, scorer)

	require.NoError(t, p.handleScorePair(context.Background(), NewScorePairJob(1, 2)))
	require.Equal(t, 1, scorer.scoreCalls)

	profiles.profiles[1].Bio = strPtr("rewrote everything")
	require.NoError(t, p.handleScorePair(context.Background(), NewScorePairJob(1, 2)))
	assert.Equal(t, 2, scorer.scoreCalls)
}

func TestScorePairBlockedPairIsNoop(t *testing.T) {
	profiles := &fakeProfileRepo{profiles: map[int]*domain.Profile{
		1: testProfile(1, "Ann"),
		2: testProfile(2, "Ben"),
	}}
	analyses := &fakeAnalysisRepo{}
	scorer := &fakeScorer{score: 90}
	blocks := &fakeBlockRepo{pairs: map[string]bool{blockKey(1, 2): true}}
	p, _, bus := newTestPipeline(t, profiles, analyses, blocks, scorer)

	require.NoError(t, p.handleScorePair(context.Background(), NewScorePairJob(1, 2)))
	assert.Zero(t, scorer.scoreCalls)
	assert.Empty(t, analyses.rows)
	assert.Empty(t, bus.events)
}

func TestScorePairSkipsUnsummarizedProfiles(t *testing.T) {
	raw := testProfile(2, "Ben")
	raw.Summary = nil
	profiles := &fakeProfileRepo{profiles: map[int]*domain.Profile{
		1: testProfile(1, "Ann"),
		2: raw,
	}}
	scorer := &fakeScorer{score: 90}
	p, _, _ := newTestPipeline(t, profiles, &fakeAnalysisRepo{}, &fakeBlockRepo{}, scorer)

	require.NoError(t, p.handleScorePair(context.Background(), NewScorePairJob(1, 2)))
	assert.Zero(t, scorer.scoreCalls)
}

func TestScorePairMissingProfileResolves(t *testing.T) {
	profiles := &fakeProfileRepo{profiles: map[int]*domain.Profile{
		1: testProfile(1, "Ann"),
	}}
	scorer := &fakeScorer{}
	p, _, _ := newTestPipeline(t, profiles, &fakeAnalysisRepo{}, &fakeBlockRepo{}, scorer)

	// Deleted user must not keep the job cycling through retries.
	require.NoError(t, p.handleScorePair(context.Background(), NewScorePairJob(1, 99)))
	assert.Zero(t, scorer.scoreCalls)
}

func TestScoreNearbyFansOutByRank(t *testing.T) {
	requester := testProfile(1, "Ann")
	requester.LocationLat = f64Ptr(52.2000)
	requester.LocationLng = f64Ptr(21.0000)

	near := testProfile(2, "Ben")
	near.LocationLat = f64Ptr(52.2001)
	near.LocationLng = f64Ptr(21.0001)

	far := testProfile(3, "Cat")
	far.LocationLat = f64Ptr(52.2030)
	far.LocationLng = f64Ptr(21.0040)

	outside := testProfile(4, "Dan")
	outside.LocationLat = f64Ptr(53.0)
	outside.LocationLng = f64Ptr(22.0)

	profiles := &fakeProfileRepo{profiles: map[int]*domain.Profile{
		1: requester, 2: near, 3: far, 4: outside,
	}}
	p, queue, _ := newTestPipeline(t, profiles, &fakeAnalysisRepo{}, &fakeBlockRepo{}, &fakeScorer{})

	job := ScoreNearbyJob{UserID: 1, Lat: 52.2000, Lng: 21.0000, RadiusM: 1000, Limit: 10}
	require.NoError(t, p.handleScoreNearby(context.Background(), job))

	require.Len(t, queue.enqueued, 2)
	first := queue.enqueued[0]
	second := queue.enqueued[1]
	assert.Equal(t, NewScorePairJob(1, 2), first.job)
	assert.Equal(t, 0, first.priority)
	assert.Equal(t, NewScorePairJob(1, 3), second.job)
	assert.Equal(t, 1, second.priority)
}

func TestScoreNearbyExcludesBlocked(t *testing.T) {
	requester := testProfile(1, "Ann")
	requester.LocationLat = f64Ptr(52.2000)
	requester.LocationLng = f64Ptr(21.0000)

	other := testProfile(2, "Ben")
	other.LocationLat = f64Ptr(52.2001)
	other.LocationLng = f64Ptr(21.0001)

	profiles := &fakeProfileRepo{profiles: map[int]*domain.Profile{1: requester, 2: other}}
	blocks := &fakeBlockRepo{pairs: map[string]bool{blockKey(1, 2): true}}
	p, queue, _ := newTestPipeline(t, profiles, &fakeAnalysisRepo{}, blocks, &fakeScorer{})

	job := ScoreNearbyJob{UserID: 1, Lat: 52.2000, Lng: 21.0000, RadiusM: 1000, Limit: 10}
	require.NoError(t, p.handleScoreNearby(context.Background(), job))
	assert.Empty(t, queue.enqueued)
}

func TestRefreshProfileStoresEnrichment(t *testing.T) {
	profiles := &fakeProfileRepo{profiles: map[int]*domain.Profile{
		1: testProfile(1, "Ann"),
	}}
	p, _, _ := newTestPipeline(t, profiles, &fakeAnalysisRepo{}, &fakeBlockRepo{}, &fakeScorer{})

	require.NoError(t, p.handleRefreshProfile(context.Background(), RefreshProfileJob{UserID: 1}))
	assert.Equal(t, 1, profiles.enrichedID)
	assert.Equal(t, "summary of bio of Ann", profiles.summary)
}

func TestRefreshProfileEmptyTextIsNoop(t *testing.T) {
	empty := testProfile(1, "Ann")
	empty.Bio = nil
	empty.LookingFor = nil
	profiles := &fakeProfileRepo{profiles: map[int]*domain.Profile{1: empty}}
	p, _, _ := newTestPipeline(t, profiles, &fakeAnalysisRepo{}, &fakeBlockRepo{}, &fakeScorer{})

	require.NoError(t, p.handleRefreshProfile(context.Background(), RefreshProfileJob{UserID: 1}))
	assert.Zero(t, profiles.enrichedID)
}
