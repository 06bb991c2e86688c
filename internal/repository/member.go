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

type MemberRepository struct {
	db dbtx
}

// Create полагается на uk_chat_room_member: повторное приглашение не создаёт вторую строку.
func (r *MemberRepository) Create(ctx context.Context, m *model.Membership) (bool, error) {
	defer logger.DeferLogDuration("member.Create", time.Now())()
	err := r.db.QueryRow(ctx,
		`INSERT INTO chat_room_members (room_key, user_id, role, joined_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (room_key, user_id) DO NOTHING
		 RETURNING id`,
		m.RoomKey, m.UserID, m.Role, m.JoinedAt,
	).Scan(&m.Key)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("memberRepo.Create: %w", err)
	}
	return true, nil
}

func (r *MemberRepository) Get(ctx context.Context, roomKey int64, userID string) (*model.Membership, error) {
	defer logger.DeferLogDuration("member.Get", time.Now())()
	m := &model.Membership{}
	err := r.db.QueryRow(ctx,
		`SELECT id, room_key, user_id, role, joined_at, left_at, last_read_message_key, last_read_at
		 FROM chat_room_members WHERE room_key = $1 AND user_id = $2`,
		roomKey, userID,
	).Scan(&m.Key, &m.RoomKey, &m.UserID, &m.Role, &m.JoinedAt, &m.LeftAt, &m.LastReadMessageKey, &m.LastReadAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("memberRepo.Get: %w", err)
	}
	return m, nil
}

func (r *MemberRepository) Leave(ctx context.Context, roomKey int64, userID string, at time.Time) (bool, error) {
	defer logger.DeferLogDuration("member.Leave", time.Now())()
	tag, err := r.db.Exec(ctx,
		`UPDATE chat_room_members SET left_at = $3
		 WHERE room_key = $1 AND user_id = $2 AND left_at IS NULL`,
		roomKey, userID, at,
	)
	if err != nil {
		return false, fmt.Errorf("memberRepo.Leave: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *MemberRepository) LeaveAll(ctx context.Context, roomKey int64, at time.Time) (int64, error) {
	defer logger.DeferLogDuration("member.LeaveAll", time.Now())()
	tag, err := r.db.Exec(ctx,
		`UPDATE chat_room_members SET left_at = $2 WHERE room_key = $1 AND left_at IS NULL`,
		roomKey, at,
	)
	if err != nil {
		return 0, fmt.Errorf("memberRepo.LeaveAll: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *MemberRepository) ActiveUserIDs(ctx context.Context, roomKey int64) ([]string, error) {
	defer logger.DeferLogDuration("member.ActiveUserIDs", time.Now())()
	rows, err := r.db.Query(ctx,
		`SELECT user_id FROM chat_room_members WHERE room_key = $1 AND left_at IS NULL ORDER BY user_id`,
		roomKey,
	)
	if err != nil {
		return nil, fmt.Errorf("memberRepo.ActiveUserIDs query: %w", err)
	}
	defer rows.Close()

	ids := make([]string, 0, 8)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("memberRepo.ActiveUserIDs scan: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("memberRepo.ActiveUserIDs rows: %w", err)
	}
	return ids, nil
}

func (r *MemberRepository) MarkRead(ctx context.Context, roomKey int64, userID string, messageKey int64, at time.Time) error {
	defer logger.DeferLogDuration("member.MarkRead", time.Now())()
	_, err := r.db.Exec(ctx,
		`UPDATE chat_room_members SET last_read_message_key = $3, last_read_at = $4
		 WHERE room_key = $1 AND user_id = $2
		   AND (last_read_message_key IS NULL OR last_read_message_key < $3)`,
		roomKey, userID, messageKey, at,
	)
	if err != nil {
		return fmt.Errorf("memberRepo.MarkRead: %w", err)
	}
	return nil
}
