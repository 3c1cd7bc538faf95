package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"hod-momentum-lab/internal/domain"
	"hod-momentum-lab/internal/storage"
)

// EligibilityStore implements storage.EligibilityStore using PostgreSQL.
// Session dates are stored as DATE columns.
type EligibilityStore struct {
	pool *Pool
}

// NewEligibilityStore creates a new EligibilityStore.
func NewEligibilityStore(pool *Pool) *EligibilityStore {
	return &EligibilityStore{pool: pool}
}

var _ storage.EligibilityStore = (*EligibilityStore)(nil)

// InsertBulk stores a run's decisions in one transaction.
func (s *EligibilityStore) InsertBulk(ctx context.Context, runID string, days []domain.EligibilityDay) error {
	if runID == "" {
		return storage.ErrInvalidInput
	}
	if len(days) == 0 {
		return nil
	}

	query := `
		INSERT INTO eligibility_days (
			run_id, symbol, session_date, eligible, close, volume,
			avg_volume, relative_volume, reason
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	return s.pool.withTx(ctx, func(tx pgx.Tx) error {
		for _, d := range days {
			_, err := tx.Exec(ctx, query,
				runID, d.Symbol, d.Date.Time(time.UTC), d.Eligible, d.Close, d.Volume,
				d.AvgVolume, d.RelativeVolume, d.Reason,
			)
			if err != nil {
				if isDuplicateKeyError(err) {
					return storage.ErrDuplicateKey
				}
				return fmt.Errorf("insert eligibility %s %s: %w", d.Symbol, d.Date, err)
			}
		}
		return nil
	})
}

// GetByRunID retrieves decisions ordered by (symbol, date).
func (s *EligibilityStore) GetByRunID(ctx context.Context, runID string) ([]domain.EligibilityDay, error) {
	query := `
		SELECT symbol, session_date, eligible, close, volume, avg_volume, relative_volume, reason
		FROM eligibility_days
		WHERE run_id = $1
		ORDER BY symbol ASC, session_date ASC
	`

	rows, err := s.pool.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("get eligibility by run id: %w", err)
	}
	defer rows.Close()

	var result []domain.EligibilityDay
	for rows.Next() {
		var d domain.EligibilityDay
		var date time.Time
		if err := rows.Scan(&d.Symbol, &date, &d.Eligible, &d.Close, &d.Volume,
			&d.AvgVolume, &d.RelativeVolume, &d.Reason); err != nil {
			return nil, fmt.Errorf("scan eligibility row: %w", err)
		}
		d.Date = domain.DateOf(date, time.UTC)
		result = append(result, d)
	}
	return result, rows.Err()
}
