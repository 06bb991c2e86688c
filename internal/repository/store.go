package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/groupchat/internal/storage"
)

// dbtx — общее подмножество pgxpool.Pool и pgx.Tx.
type dbtx interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store — реализация storage.Store поверх Postgres. Вне транзакции запросы идут в пул,
// внутри InTx — в pgx.Tx.
type Store struct {
	pool *pgxpool.Pool
	db   dbtx
}

var _ storage.Store = (*Store)(nil)

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool, db: pool}
}

func (s *Store) Rooms() storage.RoomStore { return &RoomRepository{db: s.db} }

func (s *Store) Members() storage.MemberStore { return &MemberRepository{db: s.db} }

func (s *Store) Messages() storage.MessageStore { return &MessageRepository{db: s.db} }

func (s *Store) Directory() storage.DirectoryStore { return &DirectoryRepository{db: s.db} }

func (s *Store) InTx(ctx context.Context, fn func(tx storage.Store) error) error {
	if s.pool == nil {
		return fn(s)
	}
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		return fn(&Store{db: tx})
	})
}

const pgUniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}
