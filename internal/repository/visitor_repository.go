package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/opensalaries/teacherpay-api/internal/models"
)

// VisitorRepository records unique visitor IPs for abuse review.
type VisitorRepository struct {
	db *sqlx.DB
}

// NewVisitorRepository constructs the repository.
func NewVisitorRepository(db *sqlx.DB) *VisitorRepository {
	return &VisitorRepository{db: db}
}

// Upsert inserts the IP or bumps its visit count and last-seen timestamp.
func (r *VisitorRepository) Upsert(ctx context.Context, ip string) error {
	now := time.Now().UTC()
	const query = `INSERT INTO visitor_ips (ip_address, visit_count, first_seen, last_seen)
	VALUES ($1, 1, $2, $2)
	ON CONFLICT (ip_address)
	DO UPDATE SET visit_count = visitor_ips.visit_count + 1, last_seen = EXCLUDED.last_seen`
	if _, err := r.db.ExecContext(ctx, query, ip, now); err != nil {
		return fmt.Errorf("upsert visitor ip: %w", err)
	}
	return nil
}

// List returns recently seen visitors, most recent first.
func (r *VisitorRepository) List(ctx context.Context, limit int) ([]models.VisitorIP, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	query := fmt.Sprintf(`SELECT ip_address, visit_count, first_seen, last_seen
	FROM visitor_ips ORDER BY last_seen DESC LIMIT %d`, limit)
	var visitors []models.VisitorIP
	if err := r.db.SelectContext(ctx, &visitors, query); err != nil {
		return nil, fmt.Errorf("list visitor ips: %w", err)
	}
	return visitors, nil
}
