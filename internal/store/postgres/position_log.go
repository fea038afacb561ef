package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/edgescan/internal/domain"
)

// PositionLog implements domain.PositionLog on PostgreSQL. The position
// collection is the unit of atomic update: Save rewrites the table in a single
// transaction, so readers never observe a partially written cycle.
type PositionLog struct {
	pool *pgxpool.Pool
}

// NewPositionLog creates a PositionLog backed by the given connection pool.
func NewPositionLog(pool *pgxpool.Pool) *PositionLog {
	return &PositionLog{pool: pool}
}

const positionCols = `id, market_id, question, outcome, entry_price, entry_time,
	size, target_exit_price, stop_loss_price, status, pending_cycles,
	closed_at, exit_price, close_reason`

// Load reads the persisted collection ordered by entry time. An empty table
// yields an empty slice; only infrastructure failures are errors.
func (l *PositionLog) Load(ctx context.Context) ([]domain.Position, error) {
	rows, err := l.pool.Query(ctx,
		`SELECT `+positionCols+` FROM positions ORDER BY entry_time, id`)
	if err != nil {
		return nil, fmt.Errorf("postgres: load positions: %w", err)
	}
	defer rows.Close()

	positions := []domain.Position{}
	for rows.Next() {
		var p domain.Position
		var status, closeReason string
		if err := rows.Scan(
			&p.ID, &p.MarketID, &p.Question, &p.Outcome,
			&p.EntryPrice, &p.EntryTime,
			&p.Size, &p.TargetExitPrice, &p.StopLossPrice,
			&status, &p.PendingCycles,
			&p.ClosedAt, &p.ExitPrice, &closeReason,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan position: %w", err)
		}
		p.Status = domain.PositionStatus(status)
		p.CloseReason = domain.CloseReason(closeReason)
		positions = append(positions, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: load positions: %w", err)
	}
	return positions, nil
}

// Save replaces the persisted collection in one transaction.
func (l *PositionLog) Save(ctx context.Context, positions []domain.Position) error {
	tx, err := l.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("postgres: begin save tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM positions`); err != nil {
		return fmt.Errorf("postgres: clear positions: %w", err)
	}

	const insert = `
		INSERT INTO positions (` + positionCols + `, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, NOW())`

	for _, p := range positions {
		if _, err := tx.Exec(ctx, insert,
			p.ID, p.MarketID, p.Question, p.Outcome,
			p.EntryPrice, p.EntryTime,
			p.Size, p.TargetExitPrice, p.StopLossPrice,
			string(p.Status), p.PendingCycles,
			p.ClosedAt, p.ExitPrice, string(p.CloseReason),
		); err != nil {
			return fmt.Errorf("postgres: insert position %s: %w", p.ID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit save tx: %w", err)
	}
	return nil
}
