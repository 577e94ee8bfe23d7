// postgres — реализация storage.Storage и storage.CommentStorage на pgx.
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pribylovaa/go-blog/internal/storage"
)

// PgxPool — минимальный контракт пула; его реализуют *pgxpool.Pool и pgxmock.
type PgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
	Ping(ctx context.Context) error
	Close()
}

type Storage struct {
	db PgxPool
}

// New создаёт пул соединений и проверяет доступность БД.
func New(ctx context.Context, dbURL string) (*Storage, error) {
	const op = "storage.postgres.New"

	config, err := pgxpool.ParseConfig(dbURL)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &Storage{db: pool}, nil
}

// NewWithPool оборачивает готовый пул (в тестах — pgxmock).
func NewWithPool(pool PgxPool) *Storage {
	return &Storage{db: pool}
}

func (s *Storage) Ping(ctx context.Context) error {
	const op = "storage.postgres.Ping"

	if err := s.db.Ping(ctx); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// Close закрывает пул соединений.
func (s *Storage) Close() {
	s.db.Close()
}

// inTx выполняет fn в транзакции; при ошибке fn транзакция откатывается.
func (s *Storage) inTx(ctx context.Context, fn func(tx pgx.Tx) error) (err error) {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	if err = fn(tx); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// scanner — общее у pgx.Row и pgx.Rows.
type scanner interface {
	Scan(dest ...any) error
}

var (
	_ storage.Storage        = (*Storage)(nil)
	_ storage.CommentStorage = (*Storage)(nil)
)
