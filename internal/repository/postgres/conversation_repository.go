package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/ripplehq/ripple-backend/internal/domain"
	"github.com/ripplehq/ripple-backend/internal/repository"
)

const conversationColumns = `
	id, type, name, description, avatar_url, invite_code, creator_id,
	location_lat, location_lng, discovery_radius_m, max_members,
	last_activity_at, created_at, updated_at`

type conversationRepository struct {
	db *sqlx.DB
}

func NewConversationRepository(db *sqlx.DB) repository.ConversationRepository {
	return &conversationRepository{db: db}
}

func (r *conversationRepository) FindOrCreateDM(ctx context.Context, userA, userB int) (*domain.Conversation, bool, error) {
	// dm_user1_id < dm_user2_id carries a unique index; the ON CONFLICT
	// makes racing accepts converge on one row.
	if userA > userB {
		userA, userB = userB, userA
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, false, err
	}
	defer tx.Rollback()

	var id int
	created := true
	err = tx.QueryRowContext(ctx, `
		INSERT INTO conversations (type, dm_user1_id, dm_user2_id, max_members)
		VALUES ($1, $2, $3, 2)
		ON CONFLICT (dm_user1_id, dm_user2_id) DO NOTHING
		RETURNING id
	`, domain.ConversationTypeDM, userA, userB).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		created = false
		err = tx.QueryRowContext(ctx, `
			SELECT id FROM conversations WHERE dm_user1_id = $1 AND dm_user2_id = $2
		`, userA, userB).Scan(&id)
	}
	if err != nil {
		return nil, false, err
	}

	if created {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO conversation_participants (conversation_id, user_id, role)
			VALUES ($1, $2, $3), ($1, $4, $3)
			ON CONFLICT DO NOTHING
		`, id, userA, domain.RoleMember, userB)
		if err != nil {
			return nil, false, err
		}
	}

	var conv domain.Conversation
	if err := tx.GetContext(ctx, &conv,
		`SELECT `+conversationColumns+` FROM conversations WHERE id = $1`, id); err != nil {
		return nil, false, err
	}
	if err := tx.Commit(); err != nil {
		return nil, false, err
	}
	return &conv, created, nil
}

func (r *conversationRepository) CreateGroup(ctx context.Context, conv *domain.Conversation, ownerID int, memberIDs []int, defaultTopic string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	err = tx.QueryRowContext(ctx, `
		INSERT INTO conversations (
			type, name, description, avatar_url, invite_code, creator_id,
			location_lat, location_lng, discovery_radius_m, max_members
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, last_activity_at, created_at, updated_at
	`, domain.ConversationTypeGroup, conv.Name, conv.Description, conv.AvatarURL,
		conv.InviteCode, ownerID, conv.LocationLat, conv.LocationLng,
		conv.DiscoveryM, conv.MaxMembers,
	).Scan(&conv.ID, &conv.LastActivityAt, &conv.CreatedAt, &conv.UpdatedAt)
	if err != nil {
		return err
	}
	conv.Type = domain.ConversationTypeGroup
	conv.CreatorID = &ownerID

	_, err = tx.ExecContext(ctx, `
		INSERT INTO conversation_participants (conversation_id, user_id, role)
		VALUES ($1, $2, $3)
	`, conv.ID, ownerID, domain.RoleOwner)
	if err != nil {
		return err
	}
	for _, memberID := range memberIDs {
		if memberID == ownerID {
			continue
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO conversation_participants (conversation_id, user_id, role)
			VALUES ($1, $2, $3)
			ON CONFLICT DO NOTHING
		`, conv.ID, memberID, domain.RoleMember)
		if err != nil {
			return err
		}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO topics (conversation_id, name, pinned, sort_order)
		VALUES ($1, $2, TRUE, 0)
	`, conv.ID, defaultTopic)
	if err != nil {
		return err
	}

	return tx.Commit()
}

func (r *conversationRepository) GetByID(ctx context.Context, id int) (*domain.Conversation, error) {
	var conv domain.Conversation
	err := r.db.GetContext(ctx, &conv,
		`SELECT `+conversationColumns+` FROM conversations WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrConversationNotFound
		}
		return nil, err
	}
	return &conv, nil
}

func (r *conversationRepository) GetByInviteCode(ctx context.Context, code string) (*domain.Conversation, error) {
	var conv domain.Conversation
	err := r.db.GetContext(ctx, &conv,
		`SELECT `+conversationColumns+` FROM conversations WHERE invite_code = $1`, code)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrInvalidInviteCode
		}
		return nil, err
	}
	return &conv, nil
}

func (r *conversationRepository) Update(ctx context.Context, conv *domain.Conversation) error {
	query := `
		UPDATE conversations
		SET name = $1, description = $2, avatar_url = $3,
		    location_lat = $4, location_lng = $5, discovery_radius_m = $6,
		    max_members = $7, updated_at = CURRENT_TIMESTAMP
		WHERE id = $8
		RETURNING updated_at
	`
	err := r.db.QueryRowContext(ctx, query,
		conv.Name, conv.Description, conv.AvatarURL,
		conv.LocationLat, conv.LocationLng, conv.DiscoveryM,
		conv.MaxMembers, conv.ID,
	).Scan(&conv.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrConversationNotFound
	}
	return err
}

func (r *conversationRepository) SetInviteCode(ctx context.Context, id int, code string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE conversations SET invite_code = $1, updated_at = CURRENT_TIMESTAMP WHERE id = $2`,
		code, id)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return domain.ErrConversationNotFound
	}
	return nil
}

func (r *conversationRepository) TouchActivity(ctx context.Context, id int) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE conversations SET last_activity_at = CURRENT_TIMESTAMP WHERE id = $1`, id)
	return err
}

func (r *conversationRepository) ListByUser(ctx context.Context, userID int) ([]*domain.Conversation, error) {
	var convs []*domain.Conversation
	query := `
		SELECT c.id, c.type, c.name, c.description, c.avatar_url, c.invite_code,
		       c.creator_id, c.location_lat, c.location_lng, c.discovery_radius_m,
		       c.max_members, c.last_activity_at, c.created_at, c.updated_at
		FROM conversations c
		JOIN conversation_participants p ON p.conversation_id = c.id
		WHERE p.user_id = $1
		ORDER BY c.last_activity_at DESC
	`
	err := r.db.SelectContext(ctx, &convs, query, userID)
	return convs, err
}

func (r *conversationRepository) IDsByUser(ctx context.Context, userID int) ([]int, error) {
	var ids []int
	err := r.db.SelectContext(ctx, &ids,
		`SELECT conversation_id FROM conversation_participants WHERE user_id = $1`, userID)
	return ids, err
}

func (r *conversationRepository) ListDiscoverable(ctx context.Context) ([]*domain.Conversation, error) {
	var convs []*domain.Conversation
	query := `
		SELECT ` + conversationColumns + `
		FROM conversations
		WHERE type = $1
		  AND location_lat IS NOT NULL AND location_lng IS NOT NULL
		  AND discovery_radius_m IS NOT NULL
	`
	err := r.db.SelectContext(ctx, &convs, query, domain.ConversationTypeGroup)
	return convs, err
}

func (r *conversationRepository) GetParticipant(ctx context.Context, conversationID, userID int) (*domain.ConversationParticipant, error) {
	var p domain.ConversationParticipant
	query := `
		SELECT conversation_id, user_id, role, share_location, joined_at
		FROM conversation_participants
		WHERE conversation_id = $1 AND user_id = $2
	`
	err := r.db.GetContext(ctx, &p, query, conversationID, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotParticipant
		}
		return nil, err
	}
	return &p, nil
}

func (r *conversationRepository) ListParticipants(ctx context.Context, conversationID int) ([]*domain.ConversationParticipant, error) {
	var participants []*domain.ConversationParticipant
	query := `
		SELECT conversation_id, user_id, role, share_location, joined_at
		FROM conversation_participants
		WHERE conversation_id = $1
		ORDER BY joined_at ASC
	`
	err := r.db.SelectContext(ctx, &participants, query, conversationID)
	return participants, err
}

func (r *conversationRepository) AddParticipant(ctx context.Context, conversationID, userID int, role string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	// Lock the conversation row so the capacity check and insert are atomic
	// under concurrent joins.
	var maxMembers int
	err = tx.QueryRowContext(ctx,
		`SELECT max_members FROM conversations WHERE id = $1 FOR UPDATE`,
		conversationID).Scan(&maxMembers)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrConversationNotFound
		}
		return err
	}

	var exists bool
	err = tx.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM conversation_participants WHERE conversation_id = $1 AND user_id = $2
		)
	`, conversationID, userID).Scan(&exists)
	if err != nil {
		return err
	}
	if exists {
		return domain.ErrAlreadyMember
	}

	var count int
	err = tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM conversation_participants WHERE conversation_id = $1`,
		conversationID).Scan(&count)
	if err != nil {
		return err
	}
	if maxMembers > 0 && count >= maxMembers {
		return domain.ErrGroupFull
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO conversation_participants (conversation_id, user_id, role)
		VALUES ($1, $2, $3)
	`, conversationID, userID, role)
	if err != nil {
		return err
	}
	return tx.Commit()
}

func (r *conversationRepository) RemoveParticipant(ctx context.Context, conversationID, userID int) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM conversation_participants WHERE conversation_id = $1 AND user_id = $2`,
		conversationID, userID)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return domain.ErrNotParticipant
	}
	return nil
}

func (r *conversationRepository) SetRole(ctx context.Context, conversationID, userID int, role string) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE conversation_participants SET role = $1
		WHERE conversation_id = $2 AND user_id = $3
	`, role, conversationID, userID)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return domain.ErrNotParticipant
	}
	return nil
}

func (r *conversationRepository) TransferOwnership(ctx context.Context, conversationID, fromUserID, toUserID int) error {
	// One statement flips both roles; a concurrent read never observes two
	// owners or none.
	result, err := r.db.ExecContext(ctx, `
		UPDATE conversation_participants
		SET role = CASE user_id WHEN $1 THEN $2 WHEN $3 THEN $4 END
		WHERE conversation_id = $5 AND user_id IN ($1, $3)
	`, fromUserID, domain.RoleAdmin, toUserID, domain.RoleOwner, conversationID)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows != 2 {
		return fmt.Errorf("%w: both parties must be participants", domain.ErrNotParticipant)
	}
	return nil
}

func (r *conversationRepository) CreateTopic(ctx context.Context, topic *domain.Topic) error {
	query := `
		INSERT INTO topics (conversation_id, name, pinned, closed, sort_order)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`
	return r.db.QueryRowContext(ctx, query,
		topic.ConversationID, topic.Name, topic.Pinned, topic.Closed, topic.SortOrder,
	).Scan(&topic.ID, &topic.CreatedAt)
}

func (r *conversationRepository) GetTopic(ctx context.Context, id int) (*domain.Topic, error) {
	var topic domain.Topic
	query := `
		SELECT id, conversation_id, name, pinned, closed, sort_order, created_at
		FROM topics WHERE id = $1
	`
	err := r.db.GetContext(ctx, &topic, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &topic, nil
}

func (r *conversationRepository) ListTopics(ctx context.Context, conversationID int) ([]*domain.Topic, error) {
	var topics []*domain.Topic
	query := `
		SELECT id, conversation_id, name, pinned, closed, sort_order, created_at
		FROM topics WHERE conversation_id = $1
		ORDER BY sort_order ASC, id ASC
	`
	err := r.db.SelectContext(ctx, &topics, query, conversationID)
	return topics, err
}
