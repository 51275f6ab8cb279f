package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/marcwhitfield/vaultguard/internal/domain"
)

// PositionStore implements domain.PositionStore using PostgreSQL.
type PositionStore struct {
	pool *pgxpool.Pool
}

// NewPositionStore creates a PositionStore backed by the given connection pool.
func NewPositionStore(pool *pgxpool.Pool) *PositionStore {
	return &PositionStore{pool: pool}
}

const positionSelectCols = `id, owner_address, asset, status,
	collateral_amount, debt_amount, collateral_ratio, health_score, risk_level,
	last_monitored_at, alerts_sent, created_at, updated_at`

func scanPositionRow(row pgx.Row) (domain.Position, error) {
	var p domain.Position
	var status, level string

	err := row.Scan(
		&p.ID, &p.Owner, &p.Asset, &status,
		&p.CollateralAmount, &p.DebtAmount, &p.CollateralRatio, &p.HealthScore, &level,
		&p.LastMonitoredAt, &p.AlertsSent, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return domain.Position{}, err
	}
	p.Status = domain.PositionStatus(status)
	p.RiskLevel = domain.RiskLevel(level)
	return p, nil
}

// Create inserts a new position.
func (s *PositionStore) Create(ctx context.Context, p domain.Position) error {
	const query = `
		INSERT INTO positions (
			id, owner_address, asset, status,
			collateral_amount, debt_amount, collateral_ratio, health_score, risk_level,
			last_monitored_at, alerts_sent, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4,
			$5, $6, $7, $8, $9,
			$10, $11, NOW(), NOW()
		)`

	_, err := s.pool.Exec(ctx, query,
		p.ID, p.Owner, p.Asset, string(p.Status),
		p.CollateralAmount, p.DebtAmount, p.CollateralRatio, p.HealthScore, string(p.RiskLevel),
		p.LastMonitoredAt, p.AlertsSent,
	)
	if err != nil {
		return fmt.Errorf("postgres: create position %s: %w", p.ID, err)
	}
	return nil
}

// GetByID retrieves a single position by its ID.
func (s *PositionStore) GetByID(ctx context.Context, id string) (domain.Position, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+positionSelectCols+` FROM positions WHERE id = $1`, id)

	p, err := scanPositionRow(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Position{}, domain.ErrNotFound
		}
		return domain.Position{}, fmt.Errorf("postgres: get position %s: %w", id, err)
	}
	return p, nil
}

// ListActive returns all active positions in stable ascending-id order so
// sweep cycles process positions deterministically.
func (s *PositionStore) ListActive(ctx context.Context) ([]domain.Position, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+positionSelectCols+` FROM positions
		 WHERE status = 'active'
		 ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("postgres: list active positions: %w", err)
	}
	defer rows.Close()

	var positions []domain.Position
	for rows.Next() {
		var p domain.Position
		var status, level string
		if err := rows.Scan(
			&p.ID, &p.Owner, &p.Asset, &status,
			&p.CollateralAmount, &p.DebtAmount, &p.CollateralRatio, &p.HealthScore, &level,
			&p.LastMonitoredAt, &p.AlertsSent, &p.CreatedAt, &p.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan active position: %w", err)
		}
		p.Status = domain.PositionStatus(status)
		p.RiskLevel = domain.RiskLevel(level)
		positions = append(positions, p)
	}
	return positions, rows.Err()
}

// UpdateHealth persists the derived fields recomputed by a monitoring cycle.
func (s *PositionStore) UpdateHealth(ctx context.Context, id string, ratio float64, score int, level domain.RiskLevel, monitoredAt time.Time) error {
	const query = `
		UPDATE positions SET
			collateral_ratio  = $2,
			health_score      = $3,
			risk_level        = $4,
			last_monitored_at = $5,
			updated_at        = NOW()
		WHERE id = $1`

	tag, err := s.pool.Exec(ctx, query, id, ratio, score, string(level), monitoredAt)
	if err != nil {
		return fmt.Errorf("postgres: update position health %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// UpdateAmounts replaces the collateral and debt quantities after a
// confirmed ledger transaction has been reflected back.
func (s *PositionStore) UpdateAmounts(ctx context.Context, id string, collateral, debt float64) error {
	const query = `
		UPDATE positions SET
			collateral_amount = $2,
			debt_amount       = $3,
			updated_at        = NOW()
		WHERE id = $1`

	tag, err := s.pool.Exec(ctx, query, id, collateral, debt)
	if err != nil {
		return fmt.Errorf("postgres: update position amounts %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// IncrementAlerts bumps the monotonic alert counter.
func (s *PositionStore) IncrementAlerts(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE positions SET alerts_sent = alerts_sent + 1, updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("postgres: increment alerts %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// SetStatus transitions a position out of active. The status guard in the
// WHERE clause enforces that terminal states never revert.
func (s *PositionStore) SetStatus(ctx context.Context, id string, status domain.PositionStatus) error {
	const query = `
		UPDATE positions SET status = $2, updated_at = NOW()
		WHERE id = $1 AND status = 'active'`

	tag, err := s.pool.Exec(ctx, query, id, string(status))
	if err != nil {
		return fmt.Errorf("postgres: set position status %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrPositionNotActive
	}
	return nil
}

// Compile-time interface check.
var _ domain.PositionStore = (*PositionStore)(nil)
