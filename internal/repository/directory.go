package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/groupchat/internal/logger"
	"github.com/groupchat/internal/model"
)

type DirectoryRepository struct {
	db dbtx
}

// MyRooms: сначала комнаты с сообщениями, по убыванию времени последнего сообщения,
// при равенстве — более новые комнаты.
func (r *DirectoryRepository) MyRooms(ctx context.Context, userID string) ([]model.MyRoom, error) {
	defer logger.DeferLogDuration("directory.MyRooms", time.Now())()
	rows, err := r.db.Query(ctx,
		`SELECT r.id, r.room_id, r.title, m.role, MAX(msg.created_at) AS last_message_at
		 FROM chat_room_members m
		 JOIN chat_rooms r ON r.id = m.room_key
		 LEFT JOIN chat_messages msg ON msg.room_key = r.id AND msg.deleted_at IS NULL
		 WHERE m.user_id = $1 AND m.left_at IS NULL AND r.status = $2
		 GROUP BY r.id, r.room_id, r.title, m.role
		 ORDER BY (MAX(msg.created_at) IS NULL), MAX(msg.created_at) DESC, r.id DESC`,
		userID, model.RoomStatusActive,
	)
	if err != nil {
		return nil, fmt.Errorf("directoryRepo.MyRooms query: %w", err)
	}
	defer rows.Close()

	out := make([]model.MyRoom, 0, 16)
	for rows.Next() {
		var mr model.MyRoom
		if err := rows.Scan(&mr.RoomKey, &mr.RoomID, &mr.Title, &mr.MyRole, &mr.LastMessageAt); err != nil {
			return nil, fmt.Errorf("directoryRepo.MyRooms scan: %w", err)
		}
		out = append(out, mr)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("directoryRepo.MyRooms rows: %w", err)
	}
	return out, nil
}
