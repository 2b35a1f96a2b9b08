package repository

import (
	"context"

	"github.com/dorimori228/marketplace-bot-saas-sub001/pkg/logger"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// TxRunner выполняет функцию в границах транзакции хранилища.
// При ошибке все частичные записи откатываются.
type TxRunner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// querier общий интерфейс для pgxpool.Pool и pgx.Tx
type querier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type txKey struct{}

// querierFor возвращает транзакцию из контекста, если она открыта через
// PgxTxRunner, иначе сам пул.
func querierFor(ctx context.Context, pool *pgxpool.Pool) querier {
	if tx, ok := ctx.Value(txKey{}).(pgx.Tx); ok {
		return tx
	}
	return pool
}

// PgxTxRunner реализация TxRunner поверх pgxpool
type PgxTxRunner struct {
	pool *pgxpool.Pool
	log  *logger.Logger
}

// NewPgxTxRunner создает новый PgxTxRunner
func NewPgxTxRunner(pool *pgxpool.Pool, log *logger.Logger) *PgxTxRunner {
	return &PgxTxRunner{pool: pool, log: log}
}

// RunInTx выполняет fn в транзакции. Репозитории, вызванные внутри fn
// с переданным контекстом, пишут через эту транзакцию.
func (r *PgxTxRunner) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(context.WithValue(ctx, txKey{}, tx))
	})
}

// NoopTxRunner выполняет функцию без транзакции.
// Используется с in-memory репозиториями в тестах.
type NoopTxRunner struct{}

// RunInTx выполняет fn напрямую
func (NoopTxRunner) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}
