package group

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ripplehq/ripple-backend/internal/domain"
	"github.com/ripplehq/ripple-backend/internal/geo"
	"github.com/ripplehq/ripple-backend/internal/realtime"
	"github.com/ripplehq/ripple-backend/internal/repository"
	"github.com/ripplehq/ripple-backend/pkg/logger"
)

const (
	DefaultMaxMembers = 64
	HardMaxMembers    = 256
	DefaultTopicName  = "general"
)

// moderator gates user-authored group metadata. The LLM client implements
// it; tests stub it.
type moderator interface {
	Moderate(ctx context.Context, text string) (bool, error)
}

type GroupUseCase struct {
	convRepo repository.ConversationRepository
	mod      moderator
	bus      realtime.Bus
	log      *zap.Logger
}

func NewGroupUseCase(
	convRepo repository.ConversationRepository,
	mod moderator,
	bus realtime.Bus,
) *GroupUseCase {
	return &GroupUseCase{
		convRepo: convRepo,
		mod:      mod,
		bus:      bus,
		log:      logger.L().Named("group"),
	}
}

// CreateGroupRequest creates a group conversation. Setting Lat/Lng/RadiusM
// together makes the group discoverable nearby.
type CreateGroupRequest struct {
	Name        string   `json:"name" binding:"required,min=1,max=80"`
	Description *string  `json:"description" binding:"omitempty,max=500"`
	MaxMembers  int      `json:"max_members"`
	MemberIDs   []int    `json:"member_ids"`
	Lat         *float64 `json:"lat" binding:"omitempty,latitude"`
	Lng         *float64 `json:"lng" binding:"omitempty,longitude"`
	RadiusM     *int     `json:"radius_m" binding:"omitempty,min=100,max=10000"`
}

// UpdateGroupRequest edits group metadata.
type UpdateGroupRequest struct {
	Name        *string `json:"name" binding:"omitempty,min=1,max=80"`
	Description *string `json:"description" binding:"omitempty,max=500"`
	AvatarURL   *string `json:"avatar_url" binding:"omitempty,url"`
}

// SetRoleRequest changes a member's role. Owner is never assignable here;
// ownership moves only via TransferOwnership.
type SetRoleRequest struct {
	UserID int    `json:"user_id" binding:"required"`
	Role   string `json:"role" binding:"required,oneof=admin member"`
}

// DiscoverableGroup is one nearby group with its rounded distance.
type DiscoverableGroup struct {
	Conversation *domain.Conversation `json:"conversation"`
	DistanceM    float64              `json:"distance_m"`
}

// CreateTopicRequest adds a named sub-channel.
type CreateTopicRequest struct {
	Name string `json:"name" binding:"required,min=1,max=60"`
}

// Create builds the group: conversation row, owner participant, initial
// members, default topic, invite code, all in one transaction. Name and
// description pass moderation first.
func (uc *GroupUseCase) Create(ctx context.Context, ownerID int, req *CreateGroupRequest) (*domain.Conversation, error) {
	if err := uc.moderate(ctx, req.Name); err != nil {
		return nil, err
	}
	if req.Description != nil {
		if err := uc.moderate(ctx, *req.Description); err != nil {
			return nil, err
		}
	}

	maxMembers := req.MaxMembers
	if maxMembers <= 0 {
		maxMembers = DefaultMaxMembers
	}
	if maxMembers > HardMaxMembers {
		maxMembers = HardMaxMembers
	}
	if len(req.MemberIDs)+1 > maxMembers {
		return nil, fmt.Errorf("%w: more initial members than capacity", domain.ErrInvalidInput)
	}

	discoverySet := req.Lat != nil && req.Lng != nil && req.RadiusM != nil
	if (req.Lat != nil || req.Lng != nil || req.RadiusM != nil) && !discoverySet {
		return nil, fmt.Errorf("%w: discoverability needs lat, lng and radius together", domain.ErrInvalidInput)
	}
	if discoverySet {
		if err := geo.Validate(*req.Lat, *req.Lng); err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
		}
	}

	code := newInviteCode()
	conv := &domain.Conversation{
		Type:        domain.ConversationTypeGroup,
		Name:        &req.Name,
		Description: req.Description,
		InviteCode:  &code,
		CreatorID:   &ownerID,
		MaxMembers:  maxMembers,
	}
	if discoverySet {
		conv.LocationLat = req.Lat
		conv.LocationLng = req.Lng
		conv.DiscoveryM = req.RadiusM
	}

	members := make([]int, 0, len(req.MemberIDs))
	for _, id := range req.MemberIDs {
		if id != ownerID {
			members = append(members, id)
		}
	}
	if err := uc.convRepo.CreateGroup(ctx, conv, ownerID, members, DefaultTopicName); err != nil {
		return nil, fmt.Errorf("create group: %w", err)
	}

	for _, id := range members {
		uc.publish(realtime.UserTopic(id), realtime.EventTypeConversationCreated,
			realtime.ConversationPayload{Conversation: conv})
	}
	return conv, nil
}

// Update edits metadata. Admins only; fresh text passes moderation.
func (uc *GroupUseCase) Update(ctx context.Context, userID, conversationID int, req *UpdateGroupRequest) (*domain.Conversation, error) {
	conv, _, err := uc.requireManager(ctx, conversationID, userID)
	if err != nil {
		return nil, err
	}
	if req.Name != nil {
		if err := uc.moderate(ctx, *req.Name); err != nil {
			return nil, err
		}
		conv.Name = req.Name
	}
	if req.Description != nil {
		if err := uc.moderate(ctx, *req.Description); err != nil {
			return nil, err
		}
		conv.Description = req.Description
	}
	if req.AvatarURL != nil {
		conv.AvatarURL = req.AvatarURL
	}
	if err := uc.convRepo.Update(ctx, conv); err != nil {
		return nil, err
	}
	return conv, nil
}

// JoinByInvite adds the caller via an invite code, capacity permitting.
func (uc *GroupUseCase) JoinByInvite(ctx context.Context, userID int, code string) (*domain.Conversation, error) {
	conv, err := uc.convRepo.GetByInviteCode(ctx, strings.TrimSpace(code))
	if err != nil {
		return nil, domain.ErrInvalidInviteCode
	}
	return uc.join(ctx, conv, userID)
}

// JoinDiscoverable adds the caller to a nearby group. The caller's position
// must fall inside the group's discovery radius.
func (uc *GroupUseCase) JoinDiscoverable(ctx context.Context, userID, conversationID int, lat, lng float64) (*domain.Conversation, error) {
	if err := geo.Validate(lat, lng); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}
	conv, err := uc.convRepo.GetByID(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if !conv.Discoverable() {
		return nil, fmt.Errorf("%w: group is not discoverable", domain.ErrInvalidInput)
	}
	dist := geo.Distance(lat, lng, *conv.LocationLat, *conv.LocationLng)
	if dist > float64(*conv.DiscoveryM) {
		return nil, domain.ErrForbidden
	}
	return uc.join(ctx, conv, userID)
}

func (uc *GroupUseCase) join(ctx context.Context, conv *domain.Conversation, userID int) (*domain.Conversation, error) {
	if !conv.IsGroup() {
		return nil, fmt.Errorf("%w: not a group", domain.ErrInvalidInput)
	}
	if err := uc.convRepo.AddParticipant(ctx, conv.ID, userID, domain.RoleMember); err != nil {
		// Joining a group one is already in succeeds idempotently; no
		// membership change, no event.
		if errors.Is(err, domain.ErrAlreadyMember) {
			return conv, nil
		}
		return nil, err
	}
	uc.publish(realtime.ConversationTopic(conv.ID), realtime.EventTypeGroupMemberJoined,
		realtime.GroupMemberPayload{ConversationID: conv.ID, UserID: userID, Role: domain.RoleMember})
	return conv, nil
}

// Leave removes the caller. The owner must transfer ownership first so the
// group never ends up ownerless.
func (uc *GroupUseCase) Leave(ctx context.Context, userID, conversationID int) error {
	participant, err := uc.convRepo.GetParticipant(ctx, conversationID, userID)
	if err != nil {
		return domain.ErrNotParticipant
	}
	if participant.Role == domain.RoleOwner {
		return domain.ErrOwnerMustTransfer
	}
	if err := uc.convRepo.RemoveParticipant(ctx, conversationID, userID); err != nil {
		return err
	}
	uc.publish(realtime.ConversationTopic(conversationID), realtime.EventTypeGroupMemberLeft,
		realtime.GroupMemberPayload{ConversationID: conversationID, UserID: userID})
	return nil
}

// AddMember lets an admin add someone directly, capacity permitting.
func (uc *GroupUseCase) AddMember(ctx context.Context, userID, conversationID, newMemberID int) error {
	if _, _, err := uc.requireManager(ctx, conversationID, userID); err != nil {
		return err
	}
	if err := uc.convRepo.AddParticipant(ctx, conversationID, newMemberID, domain.RoleMember); err != nil {
		return err
	}
	uc.publish(realtime.ConversationTopic(conversationID), realtime.EventTypeGroupMemberJoined,
		realtime.GroupMemberPayload{ConversationID: conversationID, UserID: newMemberID, Role: domain.RoleMember})
	return nil
}

// RemoveMember lets an admin remove a non-owner member. Admins cannot
// remove other admins; that is the owner's call.
func (uc *GroupUseCase) RemoveMember(ctx context.Context, userID, conversationID, memberID int) error {
	_, actor, err := uc.requireManager(ctx, conversationID, userID)
	if err != nil {
		return err
	}
	target, err := uc.convRepo.GetParticipant(ctx, conversationID, memberID)
	if err != nil {
		return domain.ErrNotParticipant
	}
	if target.Role == domain.RoleOwner {
		return domain.ErrForbidden
	}
	if target.Role == domain.RoleAdmin && actor.Role != domain.RoleOwner {
		return domain.ErrForbidden
	}
	if err := uc.convRepo.RemoveParticipant(ctx, conversationID, memberID); err != nil {
		return err
	}
	uc.publish(realtime.ConversationTopic(conversationID), realtime.EventTypeGroupMemberLeft,
		realtime.GroupMemberPayload{ConversationID: conversationID, UserID: memberID})
	return nil
}

// SetRole grants or revokes admin. Owner only.
func (uc *GroupUseCase) SetRole(ctx context.Context, userID, conversationID int, req *SetRoleRequest) error {
	actor, err := uc.convRepo.GetParticipant(ctx, conversationID, userID)
	if err != nil {
		return domain.ErrNotParticipant
	}
	if actor.Role != domain.RoleOwner {
		return domain.ErrNotGroupAdmin
	}
	target, err := uc.convRepo.GetParticipant(ctx, conversationID, req.UserID)
	if err != nil {
		return domain.ErrNotParticipant
	}
	if target.Role == domain.RoleOwner {
		return domain.ErrForbidden
	}
	return uc.convRepo.SetRole(ctx, conversationID, req.UserID, req.Role)
}

// TransferOwnership promotes another member to owner and demotes the
// caller to admin, atomically.
func (uc *GroupUseCase) TransferOwnership(ctx context.Context, userID, conversationID, newOwnerID int) error {
	actor, err := uc.convRepo.GetParticipant(ctx, conversationID, userID)
	if err != nil {
		return domain.ErrNotParticipant
	}
	if actor.Role != domain.RoleOwner {
		return domain.ErrForbidden
	}
	if userID == newOwnerID {
		return fmt.Errorf("%w: already the owner", domain.ErrInvalidInput)
	}
	if _, err := uc.convRepo.GetParticipant(ctx, conversationID, newOwnerID); err != nil {
		return domain.ErrNotParticipant
	}
	return uc.convRepo.TransferOwnership(ctx, conversationID, userID, newOwnerID)
}

// RegenerateInviteCode invalidates the old code. Admins only.
func (uc *GroupUseCase) RegenerateInviteCode(ctx context.Context, userID, conversationID int) (string, error) {
	if _, _, err := uc.requireManager(ctx, conversationID, userID); err != nil {
		return "", err
	}
	code := newInviteCode()
	if err := uc.convRepo.SetInviteCode(ctx, conversationID, code); err != nil {
		return "", err
	}
	return code, nil
}

// ListDiscoverable returns nearby discoverable groups with distances
// rounded to 100m, sorted by proximity.
func (uc *GroupUseCase) ListDiscoverable(ctx context.Context, lat, lng float64) ([]*DiscoverableGroup, error) {
	if err := geo.Validate(lat, lng); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}
	convs, err := uc.convRepo.ListDiscoverable(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]*DiscoverableGroup, 0)
	for _, conv := range convs {
		if !conv.Discoverable() {
			continue
		}
		dist := geo.Distance(lat, lng, *conv.LocationLat, *conv.LocationLng)
		if dist > float64(*conv.DiscoveryM) {
			continue
		}
		out = append(out, &DiscoverableGroup{
			Conversation: conv,
			DistanceM:    geo.RoundDistance(dist),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DistanceM < out[j].DistanceM })
	return out, nil
}

// CreateTopic adds a sub-channel. Admins only.
func (uc *GroupUseCase) CreateTopic(ctx context.Context, userID, conversationID int, req *CreateTopicRequest) (*domain.Topic, error) {
	if _, _, err := uc.requireManager(ctx, conversationID, userID); err != nil {
		return nil, err
	}
	if err := uc.moderate(ctx, req.Name); err != nil {
		return nil, err
	}
	topics, err := uc.convRepo.ListTopics(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	topic := &domain.Topic{
		ConversationID: conversationID,
		Name:           req.Name,
		SortOrder:      len(topics),
	}
	if err := uc.convRepo.CreateTopic(ctx, topic); err != nil {
		return nil, err
	}
	return topic, nil
}

func (uc *GroupUseCase) requireManager(ctx context.Context, conversationID, userID int) (*domain.Conversation, *domain.ConversationParticipant, error) {
	participant, err := uc.convRepo.GetParticipant(ctx, conversationID, userID)
	if err != nil {
		return nil, nil, domain.ErrNotParticipant
	}
	if !participant.CanManage() {
		return nil, nil, domain.ErrNotGroupAdmin
	}
	conv, err := uc.convRepo.GetByID(ctx, conversationID)
	if err != nil {
		return nil, nil, err
	}
	if !conv.IsGroup() {
		return nil, nil, fmt.Errorf("%w: not a group", domain.ErrInvalidInput)
	}
	return conv, participant, nil
}

func (uc *GroupUseCase) moderate(ctx context.Context, text string) error {
	ok, err := uc.mod.Moderate(ctx, text)
	if err != nil {
		// Moderation outage must not take group management down with it.
		uc.log.Warn("moderation unavailable", zap.Error(err))
		return nil
	}
	if !ok {
		return domain.ErrModerationRejected
	}
	return nil
}

func (uc *GroupUseCase) publish(topic, eventType string, payload any) {
	event, err := realtime.NewEvent(eventType, payload)
	if err != nil {
		uc.log.Error("build event", zap.String("type", eventType), zap.Error(err))
		return
	}
	uc.bus.Publish(topic, event)
}

func newInviteCode() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}
