package pipeline

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/ripplehq/ripple-backend/internal/config"
	"github.com/ripplehq/ripple-backend/internal/domain"
	"github.com/ripplehq/ripple-backend/internal/geo"
	"github.com/ripplehq/ripple-backend/internal/infrastructure/gemini"
	"github.com/ripplehq/ripple-backend/internal/ranking"
	"github.com/ripplehq/ripple-backend/internal/realtime"
	"github.com/ripplehq/ripple-backend/internal/repository"
	"github.com/ripplehq/ripple-backend/pkg/logger"
)

// jobQueue is what the pipeline needs from the durable queue. Tests swap
// in an in-memory fake.
type jobQueue interface {
	Enqueue(ctx context.Context, job Job, priority int) error
	Dequeue(ctx context.Context) (Job, int, error)
	Ack(ctx context.Context, job Job) error
	Nack(ctx context.Context, job Job, priority int) error
	RequeueExpired(ctx context.Context) (int, error)
}

// Scorer is the AI surface the pipeline consumes.
type Scorer interface {
	ScoreConnection(ctx context.Context, a, b gemini.ProfileText) (*gemini.ConnectionScore, error)
	Summarize(ctx context.Context, bio, lookingFor string) (string, []string, error)
	Embed(ctx context.Context, text string) ([]float64, error)
}

// Pipeline drains the analysis queue with a bounded worker pool. Completed
// scores fan out over the realtime bus; the rate limiter caps AI-backed
// completions, not job throughput, so freshness skips stay cheap.
type Pipeline struct {
	cfg      config.PipelineConfig
	queue    jobQueue
	profiles repository.ProfileRepository
	analyses repository.AnalysisRepository
	blocks   repository.BlockRepository
	scorer   Scorer
	bus      realtime.Bus

	pool    *ants.Pool
	limiter *rate.Limiter
	log     *zap.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func New(
	cfg config.PipelineConfig,
	queue jobQueue,
	profiles repository.ProfileRepository,
	analyses repository.AnalysisRepository,
	blocks repository.BlockRepository,
	scorer Scorer,
	bus realtime.Bus,
) (*Pipeline, error) {
	pool, err := ants.NewPool(cfg.Concurrency, ants.WithNonblocking(false))
	if err != nil {
		return nil, err
	}
	return &Pipeline{
		cfg:      cfg,
		queue:    queue,
		profiles: profiles,
		analyses: analyses,
		blocks:   blocks,
		scorer:   scorer,
		bus:      bus,
		pool:     pool,
		limiter:  rate.NewLimiter(rate.Limit(float64(cfg.CompletionsPerMin)/60.0), 1),
		log:      logger.L().Named("pipeline"),
	}, nil
}

// Enqueue exposes the queue to use cases without leaking its redis shape.
func (p *Pipeline) Enqueue(ctx context.Context, job Job, priority int) error {
	return p.queue.Enqueue(ctx, job, priority)
}

// Start launches the dispatcher and lease-reaper loops.
func (p *Pipeline) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel

	p.wg.Add(2)
	go p.dispatch(ctx)
	go p.reapExpired(ctx)
}

// Shutdown stops pulling jobs and waits for in-flight workers. Leased jobs
// that were not acked are redelivered after their lease expires.
func (p *Pipeline) Shutdown() {
	if p.cancel != nil {
		p.cancel()
	}
	p.wg.Wait()
	p.pool.Release()
}

func (p *Pipeline) dispatch(ctx context.Context) {
	defer p.wg.Done()
	ticker := time.NewTicker(p.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		for {
			job, priority, err := p.queue.Dequeue(ctx)
			if errors.Is(err, ErrQueueEmpty) {
				break
			}
			if err != nil {
				p.log.Warn("dequeue failed", zap.Error(err))
				break
			}

			// Submit blocks when all workers are busy, which is the
			// backpressure we want.
			submitErr := p.pool.Submit(func() {
				p.run(ctx, job, priority)
			})
			if submitErr != nil {
				p.queue.Nack(ctx, job, priority)
				break
			}
		}
	}
}

func (p *Pipeline) reapExpired(ctx context.Context) {
	defer p.wg.Done()
	ticker := time.NewTicker(p.cfg.LeaseTimeout)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := p.queue.RequeueExpired(ctx)
			if err != nil {
				p.log.Warn("requeue expired failed", zap.Error(err))
				continue
			}
			if n > 0 {
				p.log.Info("requeued expired jobs", zap.Int("count", n))
			}
		}
	}
}

func (p *Pipeline) run(ctx context.Context, job Job, priority int) {
	var err error
	switch j := job.(type) {
	case ScorePairJob:
		err = p.handleScorePair(ctx, j)
	case ScoreNearbyJob:
		err = p.handleScoreNearby(ctx, j)
	case RefreshProfileJob:
		err = p.handleRefreshProfile(ctx, j)
	default:
		p.log.Error("unhandled job kind", zap.String("key", job.Key()))
		p.queue.Ack(ctx, job)
		return
	}

	if err != nil {
		p.log.Warn("job failed", zap.String("key", job.Key()), zap.Error(err))
		if nackErr := p.queue.Nack(ctx, job, priority); nackErr != nil {
			p.log.Error("nack failed", zap.String("key", job.Key()), zap.Error(nackErr))
		}
		return
	}
	if ackErr := p.queue.Ack(ctx, job); ackErr != nil {
		p.log.Error("ack failed", zap.String("key", job.Key()), zap.Error(ackErr))
	}
}

// handleScorePair recomputes the pair analysis unless both stored
// directions are still fresh against the current profile text. Pairs with
// a block between them, or a missing summary on either side, resolve
// without calling the scorer.
func (p *Pipeline) handleScorePair(ctx context.Context, job ScorePairJob) error {
	profileA, err := p.profiles.GetByUserID(ctx, job.UserA)
	if err != nil {
		if errors.Is(err, domain.ErrProfileNotFound) {
			return nil
		}
		return err
	}
	profileB, err := p.profiles.GetByUserID(ctx, job.UserB)
	if err != nil {
		if errors.Is(err, domain.ErrProfileNotFound) {
			return nil
		}
		return err
	}

	blocked, err := p.blocks.ExistsBetween(ctx, job.UserA, job.UserB)
	if err != nil {
		return err
	}
	if blocked {
		return nil
	}

	// A profile with no summary has nothing for the scorer to read yet.
	if profileA.Summary == nil || profileB.Summary == nil {
		return nil
	}

	hashA := domain.ContentHash(profileA.FreeText())
	hashB := domain.ContentHash(profileB.FreeText())
	if p.fresh(ctx, job.UserA, job.UserB, hashA, hashB) {
		return nil
	}

	if err := p.limiter.Wait(ctx); err != nil {
		return err
	}

	score, err := p.scorer.ScoreConnection(ctx, profileText(profileA), profileText(profileB))
	if err != nil {
		return err
	}

	now := time.Now()
	forward := &domain.ConnectionAnalysis{
		FromUserID:  job.UserA,
		ToUserID:    job.UserB,
		Score:       score.Score,
		Snippet:     score.SnippetA,
		Description: score.DescriptionA,
		FromHash:    hashA,
		ToHash:      hashB,
		UpdatedAt:   now,
	}
	backward := &domain.ConnectionAnalysis{
		FromUserID:  job.UserB,
		ToUserID:    job.UserA,
		Score:       score.Score,
		Snippet:     score.SnippetB,
		Description: score.DescriptionB,
		FromHash:    hashB,
		ToHash:      hashA,
		UpdatedAt:   now,
	}
	if err := p.analyses.Upsert(ctx, forward); err != nil {
		return err
	}
	if err := p.analyses.Upsert(ctx, backward); err != nil {
		return err
	}

	p.notifyReady(job.UserA, job.UserB, score.Score)
	p.notifyReady(job.UserB, job.UserA, score.Score)
	return nil
}

// fresh reports whether both directed rows exist and their hashes match the
// current profile text.
func (p *Pipeline) fresh(ctx context.Context, userA, userB int, hashA, hashB string) bool {
	forward, err := p.analyses.Get(ctx, userA, userB)
	if err != nil || !forward.Fresh(hashA, hashB) {
		return false
	}
	backward, err := p.analyses.Get(ctx, userB, userA)
	if err != nil || !backward.Fresh(hashB, hashA) {
		return false
	}
	return true
}

// handleScoreNearby fans one user's surroundings out into score-pair jobs.
// Priority follows rank position so the people the user actually sees first
// get scored first.
func (p *Pipeline) handleScoreNearby(ctx context.Context, job ScoreNearbyJob) error {
	requester, err := p.profiles.GetByUserID(ctx, job.UserID)
	if err != nil {
		if errors.Is(err, domain.ErrProfileNotFound) {
			return nil
		}
		return err
	}

	dLat, dLng := geo.BoundingBox(job.Lat, job.RadiusM)
	candidates, err := p.profiles.FindNearby(ctx,
		job.Lat-dLat, job.Lat+dLat, job.Lng-dLng, job.Lng+dLng, job.UserID)
	if err != nil {
		return err
	}

	blocked, err := p.blocks.BlockedSet(ctx, job.UserID)
	if err != nil {
		return err
	}

	ranked := ranking.RankProfiles(requester, candidates, job.RadiusM, blocked)
	if job.Limit > 0 && len(ranked) > job.Limit {
		ranked = ranked[:job.Limit]
	}

	for i, cand := range ranked {
		pair := NewScorePairJob(job.UserID, cand.UserID)
		if err := p.queue.Enqueue(ctx, pair, i); err != nil {
			return err
		}
	}
	return nil
}

// handleRefreshProfile recomputes the AI-derived profile fields after an
// edit. Existing analyses go stale via the content hash, not via deletion.
func (p *Pipeline) handleRefreshProfile(ctx context.Context, job RefreshProfileJob) error {
	profile, err := p.profiles.GetByUserID(ctx, job.UserID)
	if err != nil {
		if errors.Is(err, domain.ErrProfileNotFound) {
			return nil
		}
		return err
	}

	var bio, looking string
	if profile.Bio != nil {
		bio = *profile.Bio
	}
	if profile.LookingFor != nil {
		looking = *profile.LookingFor
	}
	if bio == "" && looking == "" {
		return nil
	}

	if err := p.limiter.Wait(ctx); err != nil {
		return err
	}
	summary, interests, err := p.scorer.Summarize(ctx, bio, looking)
	if err != nil {
		return err
	}
	embedding, err := p.scorer.Embed(ctx, summary)
	if err != nil {
		return err
	}

	return p.profiles.UpdateEnrichment(ctx, job.UserID, summary, embedding, interests)
}

func (p *Pipeline) notifyReady(userID, otherUserID, score int) {
	event, err := realtime.NewEvent(realtime.EventTypeAnalysisReady, realtime.AnalysisReadyPayload{
		OtherUserID: otherUserID,
		Score:       score,
	})
	if err != nil {
		p.log.Error("build analysisReady event", zap.Error(err))
		return
	}
	p.bus.Publish(realtime.UserTopic(userID), event)
}

func profileText(p *domain.Profile) gemini.ProfileText {
	var summary string
	if p.Summary != nil {
		summary = *p.Summary
	}
	return gemini.ProfileText{
		DisplayName: p.DisplayName,
		Summary:     summary,
		Interests:   p.Interests,
	}
}
