package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/opensalaries/teacherpay-api/internal/models"
)

// CountryRepository reads seed-time country reference data.
type CountryRepository struct {
	db *sqlx.DB
}

// NewCountryRepository constructs the repository.
func NewCountryRepository(db *sqlx.DB) *CountryRepository {
	return &CountryRepository{db: db}
}

// GetByID fetches a country by identifier.
func (r *CountryRepository) GetByID(ctx context.Context, id string) (*models.Country, error) {
	const query = `SELECT id, name, currency_code, currency_name FROM countries WHERE id = $1`
	var country models.Country
	if err := r.db.GetContext(ctx, &country, query, id); err != nil {
		return nil, err
	}
	return &country, nil
}

// GetByName fetches a country by its case-insensitive display name.
func (r *CountryRepository) GetByName(ctx context.Context, name string) (*models.Country, error) {
	const query = `SELECT id, name, currency_code, currency_name FROM countries WHERE LOWER(name) = LOWER($1)`
	var country models.Country
	if err := r.db.GetContext(ctx, &country, query, name); err != nil {
		return nil, err
	}
	return &country, nil
}

// List returns all countries ordered by name, for the submission form.
func (r *CountryRepository) List(ctx context.Context) ([]models.Country, error) {
	const query = `SELECT id, name, currency_code, currency_name FROM countries ORDER BY name`
	var countries []models.Country
	if err := r.db.SelectContext(ctx, &countries, query); err != nil {
		return nil, fmt.Errorf("list countries: %w", err)
	}
	return countries, nil
}

// ListWithApprovedData returns countries that have at least one school with
// an approved submission, with the count of such schools.
func (r *CountryRepository) ListWithApprovedData(ctx context.Context) ([]models.CountryStats, error) {
	const query = `SELECT c.id, c.name, c.currency_code, c.currency_name,
       COUNT(DISTINCT s.id) AS school_count
	FROM countries c
	JOIN schools s ON s.country_id = c.id
	JOIN submissions sub ON sub.school_id = s.id AND sub.status = $1
	GROUP BY c.id, c.name, c.currency_code, c.currency_name
	ORDER BY c.name`

	rows, err := r.db.QueryxContext(ctx, query, models.StatusApproved)
	if err != nil {
		return nil, fmt.Errorf("list countries with data: %w", err)
	}
	defer rows.Close()

	var result []models.CountryStats
	for rows.Next() {
		var stats models.CountryStats
		if err := rows.Scan(&stats.ID, &stats.Name, &stats.CurrencyCode, &stats.CurrencyName, &stats.SchoolCount); err != nil {
			return nil, fmt.Errorf("scan country stats: %w", err)
		}
		result = append(result, stats)
	}
	return result, rows.Err()
}
