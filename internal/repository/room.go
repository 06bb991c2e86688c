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

type RoomRepository struct {
	db dbtx
}

func (r *RoomRepository) Create(ctx context.Context, room *model.Room) error {
	defer logger.DeferLogDuration("room.Create", time.Now())()
	err := r.db.QueryRow(ctx,
		`INSERT INTO chat_rooms (room_id, title, status, created_at)
		 VALUES ($1, $2, $3, $4) RETURNING id`,
		room.ID, room.Title, room.Status, room.CreatedAt,
	).Scan(&room.Key)
	if isUniqueViolation(err) {
		return fmt.Errorf("roomRepo.Create: %w", storage.ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("roomRepo.Create: %w", err)
	}
	return nil
}

func (r *RoomRepository) GetByExternalID(ctx context.Context, id string) (*model.Room, error) {
	defer logger.DeferLogDuration("room.GetByExternalID", time.Now())()
	room := &model.Room{}
	err := r.db.QueryRow(ctx,
		`SELECT id, room_id, title, status, created_at FROM chat_rooms WHERE room_id = $1`, id,
	).Scan(&room.Key, &room.ID, &room.Title, &room.Status, &room.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("roomRepo.GetByExternalID: %w", err)
	}
	return room, nil
}

func (r *RoomRepository) MarkDeleted(ctx context.Context, key int64) (bool, error) {
	defer logger.DeferLogDuration("room.MarkDeleted", time.Now())()
	tag, err := r.db.Exec(ctx,
		`UPDATE chat_rooms SET status = $2 WHERE id = $1 AND status = $3`,
		key, model.RoomStatusDeleted, model.RoomStatusActive,
	)
	if err != nil {
		return false, fmt.Errorf("roomRepo.MarkDeleted: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return true, nil
	}
	var exists bool
	err = r.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM chat_rooms WHERE id = $1)`, key).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("roomRepo.MarkDeleted exists: %w", err)
	}
	if !exists {
		return false, storage.ErrNotFound
	}
	return false, nil
}
