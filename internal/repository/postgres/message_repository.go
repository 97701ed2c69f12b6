package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/ripplehq/ripple-backend/internal/domain"
	"github.com/ripplehq/ripple-backend/internal/repository"
)

const messageColumns = `
	id, conversation_id, topic_id, sender_id, type, content, metadata,
	reply_to_id, read_at, deleted_at, created_at`

type messageRepository struct {
	db *sqlx.DB
}

func NewMessageRepository(db *sqlx.DB) repository.MessageRepository {
	return &messageRepository{db: db}
}

func (r *messageRepository) Create(ctx context.Context, msg *domain.Message) error {
	query := `
		INSERT INTO messages (conversation_id, topic_id, sender_id, type, content, metadata, reply_to_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at
	`
	var metadata interface{}
	if len(msg.Metadata) > 0 {
		metadata = []byte(msg.Metadata)
	}
	return r.db.QueryRowContext(ctx, query,
		msg.ConversationID, msg.TopicID, msg.SenderID, msg.Type,
		msg.Content, metadata, msg.ReplyToID,
	).Scan(&msg.ID, &msg.CreatedAt)
}

func (r *messageRepository) GetByID(ctx context.Context, id int) (*domain.Message, error) {
	var msg domain.Message
	err := r.db.GetContext(ctx, &msg,
		`SELECT `+messageColumns+` FROM messages WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrMessageNotFound
		}
		return nil, err
	}
	return &msg, nil
}

func (r *messageRepository) List(ctx context.Context, conversationID int, topicID, beforeID *int, limit int) ([]*domain.Message, error) {
	query := `SELECT ` + messageColumns + ` FROM messages WHERE conversation_id = $1`
	args := []interface{}{conversationID}
	argCount := 2

	if topicID != nil {
		query += fmt.Sprintf(" AND topic_id = $%d", argCount)
		args = append(args, *topicID)
		argCount++
	}
	if beforeID != nil {
		query += fmt.Sprintf(" AND id < $%d", argCount)
		args = append(args, *beforeID)
		argCount++
	}
	query += fmt.Sprintf(" ORDER BY id DESC LIMIT $%d", argCount)
	args = append(args, limit)

	var messages []*domain.Message
	err := r.db.SelectContext(ctx, &messages, query, args...)
	return messages, err
}

func (r *messageRepository) SoftDelete(ctx context.Context, id int) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE messages SET deleted_at = CURRENT_TIMESTAMP
		WHERE id = $1 AND deleted_at IS NULL
	`, id)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return domain.ErrMessageNotFound
	}
	return nil
}

func (r *messageRepository) MarkRead(ctx context.Context, conversationID, readerID int) ([]int, error) {
	rows, err := r.db.QueryContext(ctx, `
		UPDATE messages SET read_at = CURRENT_TIMESTAMP
		WHERE conversation_id = $1 AND sender_id <> $2 AND read_at IS NULL
		RETURNING id
	`, conversationID, readerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *messageRepository) Search(ctx context.Context, conversationID int, query string, limit int) ([]*domain.Message, error) {
	var messages []*domain.Message
	sqlQuery := `
		SELECT ` + messageColumns + `
		FROM messages
		WHERE conversation_id = $1 AND deleted_at IS NULL AND content ILIKE $2
		ORDER BY id DESC LIMIT $3
	`
	err := r.db.SelectContext(ctx, &messages, sqlQuery, conversationID, "%"+escapeLike(query)+"%", limit)
	return messages, err
}

// escapeLike neutralizes LIKE metacharacters so the user's query matches as
// a literal substring.
func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	return strings.ReplaceAll(s, `_`, `\_`)
}

func (r *messageRepository) CountUnread(ctx context.Context, conversationID, readerID int) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `
		SELECT COUNT(*) FROM messages
		WHERE conversation_id = $1 AND sender_id <> $2 AND read_at IS NULL AND deleted_at IS NULL
	`, conversationID, readerID)
	return count, err
}

func (r *messageRepository) ToggleReaction(ctx context.Context, messageID, userID int, emoji string) (bool, error) {
	result, err := r.db.ExecContext(ctx, `
		DELETE FROM reactions WHERE message_id = $1 AND user_id = $2 AND emoji = $3
	`, messageID, userID, emoji)
	if err != nil {
		return false, err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	if rows > 0 {
		return false, nil
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO reactions (message_id, user_id, emoji) VALUES ($1, $2, $3)
		ON CONFLICT DO NOTHING
	`, messageID, userID, emoji)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (r *messageRepository) ListReactions(ctx context.Context, messageID int) ([]*domain.Reaction, error) {
	var reactions []*domain.Reaction
	query := `
		SELECT message_id, user_id, emoji, created_at
		FROM reactions WHERE message_id = $1
		ORDER BY created_at ASC
	`
	err := r.db.SelectContext(ctx, &reactions, query, messageID)
	return reactions, err
}
