package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/opensalaries/teacherpay-api/internal/models"
)

// RateRepository persists monthly exchange-rate snapshots.
type RateRepository struct {
	db *sqlx.DB
}

// NewRateRepository constructs the repository.
func NewRateRepository(db *sqlx.DB) *RateRepository {
	return &RateRepository{db: db}
}

// GetSnapshot loads the snapshot for one base currency and period key.
// Returns sql.ErrNoRows via the driver when the period has no snapshot yet.
func (r *RateRepository) GetSnapshot(ctx context.Context, base, periodKey string) (*models.RateSnapshot, error) {
	const query = `SELECT base_currency, period_key, rates, fetched_at
	FROM exchange_rate_snapshots WHERE base_currency = $1 AND period_key = $2`

	var row struct {
		BaseCurrency string    `db:"base_currency"`
		PeriodKey    string    `db:"period_key"`
		Rates        []byte    `db:"rates"`
		FetchedAt    time.Time `db:"fetched_at"`
	}
	if err := r.db.GetContext(ctx, &row, query, base, periodKey); err != nil {
		return nil, err
	}

	snapshot := &models.RateSnapshot{
		BaseCurrency: row.BaseCurrency,
		PeriodKey:    row.PeriodKey,
		FetchedAt:    row.FetchedAt,
	}
	if err := json.Unmarshal(row.Rates, &snapshot.Rates); err != nil {
		return nil, fmt.Errorf("decode rate snapshot %s/%s: %w", base, periodKey, err)
	}
	return snapshot, nil
}

// Upsert writes a snapshot keyed by (base, period). Last writer wins when
// two first-of-period fetches race; the payloads are interchangeable.
func (r *RateRepository) Upsert(ctx context.Context, snapshot *models.RateSnapshot) error {
	payload, err := json.Marshal(snapshot.Rates)
	if err != nil {
		return fmt.Errorf("encode rate snapshot: %w", err)
	}
	if snapshot.FetchedAt.IsZero() {
		snapshot.FetchedAt = time.Now().UTC()
	}

	const query = `INSERT INTO exchange_rate_snapshots (base_currency, period_key, rates, fetched_at)
	VALUES ($1, $2, $3, $4)
	ON CONFLICT (base_currency, period_key)
	DO UPDATE SET rates = EXCLUDED.rates, fetched_at = EXCLUDED.fetched_at`
	if _, err := r.db.ExecContext(ctx, query, snapshot.BaseCurrency, snapshot.PeriodKey, payload, snapshot.FetchedAt); err != nil {
		return fmt.Errorf("upsert rate snapshot %s/%s: %w", snapshot.BaseCurrency, snapshot.PeriodKey, err)
	}
	return nil
}
