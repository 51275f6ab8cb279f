package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/marcwhitfield/vaultguard/internal/domain"
)

// TxRecordStore implements domain.TxRecordStore using PostgreSQL.
type TxRecordStore struct {
	pool *pgxpool.Pool
}

// NewTxRecordStore creates a TxRecordStore backed by the given connection pool.
func NewTxRecordStore(pool *pgxpool.Pool) *TxRecordStore {
	return &TxRecordStore{pool: pool}
}

// terminalStates guards against double resolution in SQL: a record already
// in one of these states is never updated again.
const terminalStates = `('confirmed', 'reverted', 'timed_out', 'failed')`

// Create inserts a new transaction record in the building state.
func (s *TxRecordStore) Create(ctx context.Context, rec domain.TxRecord) error {
	params, err := json.Marshal(rec.Params)
	if err != nil {
		return fmt.Errorf("postgres: marshal tx params: %w", err)
	}

	const query = `
		INSERT INTO transaction_records (
			id, target_contract, method, params, tx_hash, state, attempt,
			block_number, last_error, created_at, updated_at
		) VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, $7, $8, $9, NOW(), NOW())`

	_, err = s.pool.Exec(ctx, query,
		rec.ID, rec.TargetContract, rec.Method, params, rec.TxHash,
		string(rec.State), rec.Attempt, rec.BlockNumber, rec.LastError,
	)
	if err != nil {
		return fmt.Errorf("postgres: create tx record %s: %w", rec.ID, err)
	}
	return nil
}

// GetByID retrieves a transaction record.
func (s *TxRecordStore) GetByID(ctx context.Context, id string) (domain.TxRecord, error) {
	const query = `
		SELECT id, target_contract, method, params, COALESCE(tx_hash, ''),
		       state, attempt, block_number, last_error, created_at, updated_at
		FROM transaction_records WHERE id = $1`

	var rec domain.TxRecord
	var state string
	var params []byte
	err := s.pool.QueryRow(ctx, query, id).Scan(
		&rec.ID, &rec.TargetContract, &rec.Method, &params, &rec.TxHash,
		&state, &rec.Attempt, &rec.BlockNumber, &rec.LastError,
		&rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.TxRecord{}, domain.ErrNotFound
		}
		return domain.TxRecord{}, fmt.Errorf("postgres: get tx record %s: %w", id, err)
	}
	rec.State = domain.TxState(state)
	if err := json.Unmarshal(params, &rec.Params); err != nil {
		return domain.TxRecord{}, fmt.Errorf("postgres: unmarshal tx params %s: %w", id, err)
	}
	return rec, nil
}

// MarkSubmitted moves a record to pending with the provider-assigned hash
// and the attempt number that succeeded.
func (s *TxRecordStore) MarkSubmitted(ctx context.Context, id, txHash string, attempt int) error {
	const query = `
		UPDATE transaction_records SET
			tx_hash    = $2,
			state      = 'pending',
			attempt    = $3,
			updated_at = NOW()
		WHERE id = $1 AND state NOT IN ` + terminalStates

	tag, err := s.pool.Exec(ctx, query, id, txHash, attempt)
	if err != nil {
		return fmt.Errorf("postgres: mark tx submitted %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrTerminalState
	}
	return nil
}

// MarkState moves a record into a resolution state. A record that is
// already terminal is left untouched and ErrTerminalState is returned.
func (s *TxRecordStore) MarkState(ctx context.Context, id string, state domain.TxState, blockNumber uint64, lastError string) error {
	const query = `
		UPDATE transaction_records SET
			state        = $2,
			block_number = $3,
			last_error   = $4,
			updated_at   = NOW()
		WHERE id = $1 AND state NOT IN ` + terminalStates

	tag, err := s.pool.Exec(ctx, query, id, string(state), blockNumber, lastError)
	if err != nil {
		return fmt.Errorf("postgres: mark tx state %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrTerminalState
	}
	return nil
}

// Compile-time interface check.
var _ domain.TxRecordStore = (*TxRecordStore)(nil)
