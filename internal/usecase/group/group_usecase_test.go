package group

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ripplehq/ripple-backend/internal/domain"
	"github.com/ripplehq/ripple-backend/internal/realtime"
	"github.com/ripplehq/ripple-backend/internal/repository"
)

type fakeConvRepo struct {
	repository.ConversationRepository

	nextID       int
	convs        map[int]*domain.Conversation
	participants map[[2]int]*domain.ConversationParticipant
	topics       []*domain.Topic
}

func newFakeConvRepo() *fakeConvRepo {
	return &fakeConvRepo{
		convs:        map[int]*domain.Conversation{},
		participants: map[[2]int]*domain.ConversationParticipant{},
	}
}

func (r *fakeConvRepo) CreateGroup(_ context.Context, conv *domain.Conversation, ownerID int, memberIDs []int, defaultTopic string) error {
	r.nextID++
	conv.ID = r.nextID
	r.convs[conv.ID] = conv
	r.participants[[2]int{conv.ID, ownerID}] = &domain.ConversationParticipant{
		ConversationID: conv.ID, UserID: ownerID, Role: domain.RoleOwner,
	}
	for _, id := range memberIDs {
		r.participants[[2]int{conv.ID, id}] = &domain.ConversationParticipant{
			ConversationID: conv.ID, UserID: id, Role: domain.RoleMember,
		}
	}
	r.topics = append(r.topics, &domain.Topic{
		ID: len(r.topics) + 1, ConversationID: conv.ID, Name: defaultTopic, Pinned: true,
	})
	return nil
}

func (r *fakeConvRepo) GetByID(_ context.Context, id int) (*domain.Conversation, error) {
	conv, ok := r.convs[id]
	if !ok {
		return nil, domain.ErrConversationNotFound
	}
	return conv, nil
}

func (r *fakeConvRepo) GetByInviteCode(_ context.Context, code string) (*domain.Conversation, error) {
	for _, conv := range r.convs {
		if conv.InviteCode != nil && *conv.InviteCode == code {
			return conv, nil
		}
	}
	return nil, domain.ErrConversationNotFound
}

func (r *fakeConvRepo) Update(_ context.Context, conv *domain.Conversation) error {
	r.convs[conv.ID] = conv
	return nil
}

func (r *fakeConvRepo) SetInviteCode(_ context.Context, id int, code string) error {
	r.convs[id].InviteCode = &code
	return nil
}

func (r *fakeConvRepo) GetParticipant(_ context.Context, conversationID, userID int) (*domain.ConversationParticipant, error) {
	p, ok := r.participants[[2]int{conversationID, userID}]
	if !ok {
		return nil, domain.ErrNotParticipant
	}
	return p, nil
}

func (r *fakeConvRepo) AddParticipant(_ context.Context, conversationID, userID int, role string) error {
	key := [2]int{conversationID, userID}
	if _, ok := r.participants[key]; ok {
		return domain.ErrAlreadyMember
	}
	var count int
	for k := range r.participants {
		if k[0] == conversationID {
			count++
		}
	}
	if count >= r.convs[conversationID].MaxMembers {
		return domain.ErrGroupFull
	}
	r.participants[key] = &domain.ConversationParticipant{
		ConversationID: conversationID, UserID: userID, Role: role,
	}
	return nil
}

func (r *fakeConvRepo) RemoveParticipant(_ context.Context, conversationID, userID int) error {
	delete(r.participants, [2]int{conversationID, userID})
	return nil
}

func (r *fakeConvRepo) SetRole(_ context.Context, conversationID, userID int, role string) error {
	r.participants[[2]int{conversationID, userID}].Role = role
	return nil
}

func (r *fakeConvRepo) TransferOwnership(_ context.Context, conversationID, fromUserID, toUserID int) error {
	r.participants[[2]int{conversationID, fromUserID}].Role = domain.RoleAdmin
	r.participants[[2]int{conversationID, toUserID}].Role = domain.RoleOwner
	return nil
}

func (r *fakeConvRepo) ListDiscoverable(context.Context) ([]*domain.Conversation, error) {
	var out []*domain.Conversation
	for _, conv := range r.convs {
		if conv.Discoverable() {
			out = append(out, conv)
		}
	}
	return out, nil
}

func (r *fakeConvRepo) CreateTopic(_ context.Context, topic *domain.Topic) error {
	topic.ID = len(r.topics) + 1
	r.topics = append(r.topics, topic)
	return nil
}

func (r *fakeConvRepo) ListTopics(_ context.Context, conversationID int) ([]*domain.Topic, error) {
	var out []*domain.Topic
	for _, t := range r.topics {
		if t.ConversationID == conversationID {
			out = append(out, t)
		}
	}
	return out, nil
}

type fakeModerator struct {
	reject bool
}

func (m *fakeModerator) Moderate(_ context.Context, _ string) (bool, error) {
	return !m.reject, nil
}

type fakeBus struct {
	events map[string][]*realtime.Event
}

func (b *fakeBus) Publish(topic string, event *realtime.Event) {
	if b.events == nil {
		b.events = map[string][]*realtime.Event{}
	}
	b.events[topic] = append(b.events[topic], event)
}

func newTestGroup() (*GroupUseCase, *fakeConvRepo, *fakeBus) {
	repo := newFakeConvRepo()
	bus := &fakeBus{}
	return NewGroupUseCase(repo, &fakeModerator{}, bus), repo, bus
}

func createGroup(t *testing.T, uc *GroupUseCase, ownerID int, maxMembers int) *domain.Conversation {
	t.Helper()
	conv, err := uc.Create(context.Background(), ownerID, &CreateGroupRequest{
		Name: "climbers", MaxMembers: maxMembers,
	})
	require.NoError(t, err)
	return conv
}

func TestCreateSetsOwnerDefaultTopicAndInviteCode(t *testing.T) {
	uc, repo, _ := newTestGroup()

	conv := createGroup(t, uc, 1, 10)
	require.NotNil(t, conv.InviteCode)
	assert.Len(t, *conv.InviteCode, 12)

	owner, err := repo.GetParticipant(context.Background(), conv.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, domain.RoleOwner, owner.Role)

	topics, err := repo.ListTopics(context.Background(), conv.ID)
	require.NoError(t, err)
	require.Len(t, topics, 1)
	assert.Equal(t, DefaultTopicName, topics[0].Name)
}

func TestCreateRejectsModeratedName(t *testing.T) {
	repo := newFakeConvRepo()
	uc := NewGroupUseCase(repo, &fakeModerator{reject: true}, &fakeBus{})

	_, err := uc.Create(context.Background(), 1, &CreateGroupRequest{Name: "bad words"})
	require.ErrorIs(t, err, domain.ErrModerationRejected)
}

func TestJoinByInviteRespectsCapacity(t *testing.T) {
	uc, _, bus := newTestGroup()
	conv := createGroup(t, uc, 1, 2)

	_, err := uc.JoinByInvite(context.Background(), 2, *conv.InviteCode)
	require.NoError(t, err)
	_, err = uc.JoinByInvite(context.Background(), 3, *conv.InviteCode)
	require.ErrorIs(t, err, domain.ErrGroupFull)

	events := bus.events[realtime.ConversationTopic(conv.ID)]
	require.Len(t, events, 1)
	assert.Equal(t, realtime.EventTypeGroupMemberJoined, events[0].Type)
}

func TestJoinTwiceIsIdempotent(t *testing.T) {
	uc, repo, bus := newTestGroup()
	conv := createGroup(t, uc, 1, 10)

	first, err := uc.JoinByInvite(context.Background(), 2, *conv.InviteCode)
	require.NoError(t, err)

	// Re-joining succeeds, returns the same conversation, and inserts no
	// second membership row.
	second, err := uc.JoinByInvite(context.Background(), 2, *conv.InviteCode)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	members := 0
	for key := range repo.participants {
		if key[0] == conv.ID {
			members++
		}
	}
	assert.Equal(t, 2, members)

	joined := 0
	for _, e := range bus.events[realtime.ConversationTopic(conv.ID)] {
		if e.Type == realtime.EventTypeGroupMemberJoined {
			joined++
		}
	}
	assert.Equal(t, 1, joined)
}

func TestJoinBadInviteCode(t *testing.T) {
	uc, _, _ := newTestGroup()
	createGroup(t, uc, 1, 10)

	_, err := uc.JoinByInvite(context.Background(), 2, "nope")
	require.ErrorIs(t, err, domain.ErrInvalidInviteCode)
}

func TestJoinDiscoverableChecksRadius(t *testing.T) {
	uc, repo, _ := newTestGroup()
	lat, lng, radius := 52.2000, 21.0000, 500
	conv, err := uc.Create(context.Background(), 1, &CreateGroupRequest{
		Name: "park runners", Lat: &lat, Lng: &lng, RadiusM: &radius,
	})
	require.NoError(t, err)

	// Inside the radius.
	_, err = uc.JoinDiscoverable(context.Background(), 2, conv.ID, 52.2002, 21.0003)
	require.NoError(t, err)

	// A few kilometers out.
	_, err = uc.JoinDiscoverable(context.Background(), 3, conv.ID, 52.2500, 21.0500)
	require.ErrorIs(t, err, domain.ErrForbidden)

	_, joined := repo.participants[[2]int{conv.ID, 2}]
	assert.True(t, joined)
}

func TestLeaveOwnerMustTransferFirst(t *testing.T) {
	uc, _, _ := newTestGroup()
	conv := createGroup(t, uc, 1, 10)
	_, err := uc.JoinByInvite(context.Background(), 2, *conv.InviteCode)
	require.NoError(t, err)

	require.ErrorIs(t, uc.Leave(context.Background(), 1, conv.ID), domain.ErrOwnerMustTransfer)

	require.NoError(t, uc.TransferOwnership(context.Background(), 1, conv.ID, 2))
	require.NoError(t, uc.Leave(context.Background(), 1, conv.ID))
}

func TestTransferOwnershipSwapsRolesAtomically(t *testing.T) {
	uc, repo, _ := newTestGroup()
	conv := createGroup(t, uc, 1, 10)
	_, err := uc.JoinByInvite(context.Background(), 2, *conv.InviteCode)
	require.NoError(t, err)

	require.NoError(t, uc.TransferOwnership(context.Background(), 1, conv.ID, 2))

	oldOwner, _ := repo.GetParticipant(context.Background(), conv.ID, 1)
	newOwner, _ := repo.GetParticipant(context.Background(), conv.ID, 2)
	assert.Equal(t, domain.RoleAdmin, oldOwner.Role)
	assert.Equal(t, domain.RoleOwner, newOwner.Role)
}

func TestTransferOwnershipOnlyByOwner(t *testing.T) {
	uc, _, _ := newTestGroup()
	conv := createGroup(t, uc, 1, 10)
	_, err := uc.JoinByInvite(context.Background(), 2, *conv.InviteCode)
	require.NoError(t, err)

	require.ErrorIs(t, uc.TransferOwnership(context.Background(), 2, conv.ID, 2), domain.ErrForbidden)
}

func TestSetRoleOwnerOnlyAndNeverOwnerRole(t *testing.T) {
	uc, repo, _ := newTestGroup()
	conv := createGroup(t, uc, 1, 10)
	_, err := uc.JoinByInvite(context.Background(), 2, *conv.InviteCode)
	require.NoError(t, err)

	require.ErrorIs(t,
		uc.SetRole(context.Background(), 2, conv.ID, &SetRoleRequest{UserID: 2, Role: domain.RoleAdmin}),
		domain.ErrNotGroupAdmin)

	require.NoError(t,
		uc.SetRole(context.Background(), 1, conv.ID, &SetRoleRequest{UserID: 2, Role: domain.RoleAdmin}))
	p, _ := repo.GetParticipant(context.Background(), conv.ID, 2)
	assert.Equal(t, domain.RoleAdmin, p.Role)
}

func TestRemoveMemberAdminCannotRemoveAdmin(t *testing.T) {
	uc, _, _ := newTestGroup()
	conv := createGroup(t, uc, 1, 10)
	for _, id := range []int{2, 3} {
		_, err := uc.JoinByInvite(context.Background(), id, *conv.InviteCode)
		require.NoError(t, err)
	}
	require.NoError(t, uc.SetRole(context.Background(), 1, conv.ID, &SetRoleRequest{UserID: 2, Role: domain.RoleAdmin}))
	require.NoError(t, uc.SetRole(context.Background(), 1, conv.ID, &SetRoleRequest{UserID: 3, Role: domain.RoleAdmin}))

	require.ErrorIs(t, uc.RemoveMember(context.Background(), 2, conv.ID, 3), domain.ErrForbidden)
	require.ErrorIs(t, uc.RemoveMember(context.Background(), 2, conv.ID, 1), domain.ErrForbidden)
	require.NoError(t, uc.RemoveMember(context.Background(), 1, conv.ID, 3))
}

func TestRegenerateInviteCodeInvalidatesOld(t *testing.T) {
	uc, _, _ := newTestGroup()
	conv := createGroup(t, uc, 1, 10)
	old := *conv.InviteCode

	fresh, err := uc.RegenerateInviteCode(context.Background(), 1, conv.ID)
	require.NoError(t, err)
	assert.NotEqual(t, old, fresh)

	_, err = uc.JoinByInvite(context.Background(), 2, old)
	require.ErrorIs(t, err, domain.ErrInvalidInviteCode)
	_, err = uc.JoinByInvite(context.Background(), 2, fresh)
	require.NoError(t, err)
}

func TestListDiscoverableFiltersAndSortsByDistance(t *testing.T) {
	uc, _, _ := newTestGroup()

	nearLat, nearLng, nearRadius := 52.2001, 21.0001, 1000
	_, err := uc.Create(context.Background(), 1, &CreateGroupRequest{
		Name: "near", Lat: &nearLat, Lng: &nearLng, RadiusM: &nearRadius,
	})
	require.NoError(t, err)

	farLat, farLng, farRadius := 52.2040, 21.0060, 1000
	_, err = uc.Create(context.Background(), 2, &CreateGroupRequest{
		Name: "farther", Lat: &farLat, Lng: &farLng, RadiusM: &farRadius,
	})
	require.NoError(t, err)

	// Private group never shows up.
	createGroup(t, uc, 3, 10)

	groups, err := uc.ListDiscoverable(context.Background(), 52.2000, 21.0000)
	require.NoError(t, err)
	require.Len(t, groups, 2)
	assert.Equal(t, "near", *groups[0].Conversation.Name)
	assert.Equal(t, "farther", *groups[1].Conversation.Name)
	assert.Zero(t, int(groups[0].DistanceM)%100)
}

func TestCreateTopicAdminOnly(t *testing.T) {
	uc, _, _ := newTestGroup()
	conv := createGroup(t, uc, 1, 10)
	_, err := uc.JoinByInvite(context.Background(), 2, *conv.InviteCode)
	require.NoError(t, err)

	_, err = uc.CreateTopic(context.Background(), 2, conv.ID, &CreateTopicRequest{Name: "routes"})
	require.ErrorIs(t, err, domain.ErrNotGroupAdmin)

	topic, err := uc.CreateTopic(context.Background(), 1, conv.ID, &CreateTopicRequest{Name: "routes"})
	require.NoError(t, err)
	assert.Equal(t, 1, topic.SortOrder)
}
