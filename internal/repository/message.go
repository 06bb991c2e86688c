package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/groupchat/internal/logger"
	"github.com/groupchat/internal/model"
	"github.com/groupchat/internal/storage"
)

const messageColumns = `id, message_id, room_key, sender_id, content, client_token, created_at, deleted_at`

type MessageRepository struct {
	db dbtx
}

func scanMessage(row pgx.Row, m *model.Message) error {
	return row.Scan(&m.Key, &m.ID, &m.RoomKey, &m.SenderID, &m.Content, &m.ClientToken, &m.CreatedAt, &m.DeletedAt)
}

func (r *MessageRepository) Append(ctx context.Context, m *model.Message) (*model.Message, bool, error) {
	defer logger.DeferLogDuration("message.Append", time.Now())()
	err := r.db.QueryRow(ctx,
		`INSERT INTO chat_messages (message_id, room_key, sender_id, content, client_token, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (room_key, sender_id, client_token) WHERE client_token IS NOT NULL DO NOTHING
		 RETURNING id`,
		m.ID, m.RoomKey, m.SenderID, m.Content, m.ClientToken, m.CreatedAt,
	).Scan(&m.Key)
	if errors.Is(err, pgx.ErrNoRows) {
		// повтор с тем же client_token: отдаём сохранённое ранее сообщение
		existing := &model.Message{}
		err = scanMessage(r.db.QueryRow(ctx,
			`SELECT `+messageColumns+` FROM chat_messages
			 WHERE room_key = $1 AND sender_id = $2 AND client_token = $3`,
			m.RoomKey, m.SenderID, m.ClientToken,
		), existing)
		if err != nil {
			return nil, false, fmt.Errorf("messageRepo.Append existing: %w", err)
		}
		return existing, false, nil
	}
	if isUniqueViolation(err) {
		return nil, false, fmt.Errorf("messageRepo.Append: %w", storage.ErrConflict)
	}
	if err != nil {
		return nil, false, fmt.Errorf("messageRepo.Append: %w", err)
	}
	stored := *m
	return &stored, true, nil
}

func (r *MessageRepository) FindActive(ctx context.Context, roomKey int64, id string) (*model.Message, error) {
	defer logger.DeferLogDuration("message.FindActive", time.Now())()
	m := &model.Message{}
	err := scanMessage(r.db.QueryRow(ctx,
		`SELECT `+messageColumns+` FROM chat_messages
		 WHERE room_key = $1 AND message_id = $2 AND deleted_at IS NULL`,
		roomKey, id,
	), m)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("messageRepo.FindActive: %w", err)
	}
	return m, nil
}

// Page — keyset-пагинация по (room_key, id) через idx_chat_messages_room_id, без OFFSET.
func (r *MessageRepository) Page(ctx context.Context, roomKey int64, before *int64, limit int) ([]model.Message, error) {
	defer logger.DeferLogDuration("message.Page", time.Now())()
	if limit <= 0 {
		return []model.Message{}, nil
	}
	var (
		rows pgx.Rows
		err  error
	)
	if before == nil {
		rows, err = r.db.Query(ctx,
			`SELECT `+messageColumns+` FROM chat_messages
			 WHERE room_key = $1 AND deleted_at IS NULL
			 ORDER BY id DESC LIMIT $2`,
			roomKey, limit,
		)
	} else {
		rows, err = r.db.Query(ctx,
			`SELECT `+messageColumns+` FROM chat_messages
			 WHERE room_key = $1 AND deleted_at IS NULL AND id < $2
			 ORDER BY id DESC LIMIT $3`,
			roomKey, *before, limit,
		)
	}
	if err != nil {
		return nil, fmt.Errorf("messageRepo.Page query: %w", err)
	}
	defer rows.Close()

	msgs := make([]model.Message, 0, limit)
	for rows.Next() {
		var m model.Message
		if err := scanMessage(rows, &m); err != nil {
			return nil, fmt.Errorf("messageRepo.Page scan: %w", err)
		}
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("messageRepo.Page rows: %w", err)
	}
	return msgs, nil
}

func (r *MessageRepository) SoftDelete(ctx context.Context, key int64, at time.Time) (bool, error) {
	defer logger.DeferLogDuration("message.SoftDelete", time.Now())()
	tag, err := r.db.Exec(ctx,
		`UPDATE chat_messages SET deleted_at = $2 WHERE id = $1 AND deleted_at IS NULL`,
		key, at,
	)
	if err != nil {
		return false, fmt.Errorf("messageRepo.SoftDelete: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return true, nil
	}
	var exists bool
	if err := r.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM chat_messages WHERE id = $1)`, key).Scan(&exists); err != nil {
		return false, fmt.Errorf("messageRepo.SoftDelete exists: %w", err)
	}
	if !exists {
		return false, storage.ErrNotFound
	}
	return false, nil
}
