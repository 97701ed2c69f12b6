package nearby

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ripplehq/ripple-backend/internal/domain"
	"github.com/ripplehq/ripple-backend/internal/pipeline"
)

type fakeProfileRepo struct {
	profiles    map[int]*domain.Profile
	locatedUser int
}

func (r *fakeProfileRepo) Create(context.Context, *domain.Profile) error { return nil }
func (r *fakeProfileRepo) Update(context.Context, *domain.Profile) error { return nil }
func (r *fakeProfileRepo) UpdateEnrichment(context.Context, int, string, []float64, []string) error {
	return nil
}

func (r *fakeProfileRepo) GetByUserID(_ context.Context, userID int) (*domain.Profile, error) {
	p, ok := r.profiles[userID]
	if !ok {
		return nil, domain.ErrProfileNotFound
	}
	return p, nil
}

func (r *fakeProfileRepo) UpdateLocation(_ context.Context, userID int, lat, lng float64) error {
	r.locatedUser = userID
	if p, ok := r.profiles[userID]; ok {
		p.LocationLat = &lat
		p.LocationLng = &lng
	}
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

type fakeBlockRepo struct {
	blocked map[int]struct{}
}

func (r *fakeBlockRepo) Create(context.Context, int, int) error { return nil }
func (r *fakeBlockRepo) Delete(context.Context, int, int) error { return nil }
func (r *fakeBlockRepo) ExistsBetween(context.Context, int, int) (bool, error) {
	return false, nil
}
func (r *fakeBlockRepo) BlockedSet(context.Context, int) (map[int]struct{}, error) {
	if r.blocked == nil {
		return map[int]struct{}{}, nil
	}
	return r.blocked, nil
}

type fakeAnalysisRepo struct {
	rows map[[2]int]*domain.ConnectionAnalysis
}

func (r *fakeAnalysisRepo) Get(_ context.Context, from, to int) (*domain.ConnectionAnalysis, error) {
	a, ok := r.rows[[2]int{from, to}]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return a, nil
}
func (r *fakeAnalysisRepo) Upsert(context.Context, *domain.ConnectionAnalysis) error { return nil }

type fakeEnqueuer struct {
	jobs []pipeline.Job
}

func (e *fakeEnqueuer) Enqueue(_ context.Context, job pipeline.Job, _ int) error {
	e.jobs = append(e.jobs, job)
	return nil
}

func locatedProfile(userID int, name string, lat, lng float64) *domain.Profile {
	bio := "bio of " + name
	return &domain.Profile{
		ID:          userID,
		UserID:      userID,
		DisplayName: name,
		Bio:         &bio,
		Interests:   []string{"music", "food"},
		LocationLat: &lat,
		LocationLng: &lng,
		Visibility:  domain.VisibilityVisible,
	}
}

func TestRankOrdersByDistanceAndHidesRawCoords(t *testing.T) {
	profiles := &fakeProfileRepo{profiles: map[int]*domain.Profile{
		1: locatedProfile(1, "Ann", 52.2000, 21.0000),
		2: locatedProfile(2, "Ben", 52.2003, 21.0004), // ~43m away
		3: locatedProfile(3, "Cat", 52.2020, 21.0030), // ~300m away
		4: locatedProfile(4, "Dan", 53.0, 22.0),       // far outside radius
	}}
	jobs := &fakeEnqueuer{}
	uc := NewNearbyUseCase(profiles, &fakeBlockRepo{}, &fakeAnalysisRepo{}, jobs)

	resp, err := uc.Rank(context.Background(), 1, &NearbyRequest{Lat: 52.2000, Lng: 21.0000, RadiusM: 500})
	require.NoError(t, err)

	require.Len(t, resp.People, 2)
	assert.Equal(t, 2, resp.People[0].UserID)
	assert.Equal(t, 3, resp.People[1].UserID)

	// Distances are rounded to 100m and only the privacy cell is exposed.
	assert.Zero(t, int(resp.People[0].DistanceM)%100)
	assert.Zero(t, int(resp.People[1].DistanceM)%100)
	assert.NotEmpty(t, resp.People[0].Cell.ID)

	// The listing schedules background scoring for the requester.
	require.Len(t, jobs.jobs, 1)
	scan, ok := jobs.jobs[0].(pipeline.ScoreNearbyJob)
	require.True(t, ok)
	assert.Equal(t, 1, scan.UserID)

	assert.Equal(t, 1, profiles.locatedUser)
}

func TestRankExcludesBlockedUsers(t *testing.T) {
	profiles := &fakeProfileRepo{profiles: map[int]*domain.Profile{
		1: locatedProfile(1, "Ann", 52.2000, 21.0000),
		2: locatedProfile(2, "Ben", 52.2003, 21.0004),
	}}
	blocks := &fakeBlockRepo{blocked: map[int]struct{}{2: {}}}
	uc := NewNearbyUseCase(profiles, blocks, &fakeAnalysisRepo{}, &fakeEnqueuer{})

	resp, err := uc.Rank(context.Background(), 1, &NearbyRequest{Lat: 52.2000, Lng: 21.0000})
	require.NoError(t, err)
	assert.Empty(t, resp.People)
}

func TestRankAttachesOnlyFreshAnalysis(t *testing.T) {
	ann := locatedProfile(1, "Ann", 52.2000, 21.0000)
	ben := locatedProfile(2, "Ben", 52.2003, 21.0004)
	profiles := &fakeProfileRepo{profiles: map[int]*domain.Profile{1: ann, 2: ben}}

	fresh := &domain.ConnectionAnalysis{
		FromUserID: 1, ToUserID: 2, Score: 77, Snippet: "loves live music",
		FromHash: domain.ContentHash(ann.FreeText()),
		ToHash:   domain.ContentHash(ben.FreeText()),
	}
	analyses := &fakeAnalysisRepo{rows: map[[2]int]*domain.ConnectionAnalysis{{1, 2}: fresh}}
	uc := NewNearbyUseCase(profiles, &fakeBlockRepo{}, analyses, &fakeEnqueuer{})

	resp, err := uc.Rank(context.Background(), 1, &NearbyRequest{Lat: 52.2000, Lng: 21.0000})
	require.NoError(t, err)
	require.Len(t, resp.People, 1)
	require.NotNil(t, resp.People[0].Score)
	assert.Equal(t, 77, *resp.People[0].Score)

	// Edit Ben's bio: the cached analysis goes stale and is withheld.
	staleBio := "completely new person"
	ben.Bio = &staleBio
	resp, err = uc.Rank(context.Background(), 1, &NearbyRequest{Lat: 52.2000, Lng: 21.0000})
	require.NoError(t, err)
	require.Len(t, resp.People, 1)
	assert.Nil(t, resp.People[0].Score)
}

func TestRankRejectsInvalidCoordinates(t *testing.T) {
	uc := NewNearbyUseCase(&fakeProfileRepo{}, &fakeBlockRepo{}, &fakeAnalysisRepo{}, &fakeEnqueuer{})

	_, err := uc.Rank(context.Background(), 1, &NearbyRequest{Lat: 91.0, Lng: 0.0})
	require.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestRankClampsRadiusAndLimit(t *testing.T) {
	assert.Equal(t, DefaultRadiusM, clampRadius(0))
	assert.Equal(t, MaxRadiusM, clampRadius(99999))
	assert.Equal(t, 250.0, clampRadius(250))
	assert.Equal(t, DefaultLimit, clampLimit(-1))
	assert.Equal(t, MaxLimit, clampLimit(1000))
}
