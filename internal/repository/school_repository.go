package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/opensalaries/teacherpay-api/internal/models"
)

// SchoolRepository persists schools and their normalized names.
type SchoolRepository struct {
	db *sqlx.DB
}

// NewSchoolRepository constructs the repository.
func NewSchoolRepository(db *sqlx.DB) *SchoolRepository {
	return &SchoolRepository{db: db}
}

// Create inserts a school row. Used at approval time for new-school
// submissions; duplicate creations under a concurrent approval race are
// tolerated and corrected by administrative re-matching.
func (r *SchoolRepository) Create(ctx context.Context, school *models.School) error {
	if school.ID == "" {
		school.ID = uuid.NewString()
	}
	const query = `INSERT INTO schools (id, name, name_normalized, country_id, is_user_submitted, created_at)
	VALUES (:id, :name, :name_normalized, :country_id, :is_user_submitted, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, map[string]interface{}{
		"id":                school.ID,
		"name":              school.Name,
		"name_normalized":   school.NameNormalized,
		"country_id":        school.CountryID,
		"is_user_submitted": school.IsUserSubmitted,
		"created_at":        time.Now().UTC(),
	}); err != nil {
		return fmt.Errorf("create school: %w", err)
	}
	return nil
}

// GetByID fetches a school by identifier.
func (r *SchoolRepository) GetByID(ctx context.Context, id string) (*models.School, error) {
	const query = `SELECT id, name, name_normalized, country_id, is_user_submitted FROM schools WHERE id = $1`
	var school models.School
	if err := r.db.GetContext(ctx, &school, query, id); err != nil {
		return nil, err
	}
	return &school, nil
}

// GetWithCountry fetches a school joined with its country reference.
func (r *SchoolRepository) GetWithCountry(ctx context.Context, id string) (*models.SchoolWithCountry, error) {
	const query = `SELECT s.id, s.name, s.name_normalized, s.country_id, s.is_user_submitted,
       c.name AS country_name, c.currency_code, c.currency_name
	FROM schools s
	JOIN countries c ON c.id = s.country_id
	WHERE s.id = $1`
	var school models.SchoolWithCountry
	if err := r.db.GetContext(ctx, &school, query, id); err != nil {
		return nil, err
	}
	return &school, nil
}

// SearchNormalized runs the autocomplete substring search: every word of
// the normalized query must appear in order within name_normalized.
func (r *SchoolRepository) SearchNormalized(ctx context.Context, normalized string, countryID string, limit int) ([]models.SchoolWithCountry, error) {
	words := strings.Fields(normalized)
	if len(words) == 0 {
		return nil, nil
	}
	pattern := "%" + strings.Join(words, "%") + "%"
	if limit <= 0 || limit > 50 {
		limit = 15
	}

	builder := strings.Builder{}
	builder.WriteString(`SELECT s.id, s.name, s.name_normalized, s.country_id, s.is_user_submitted,
       c.name AS country_name, c.currency_code, c.currency_name
	FROM schools s
	JOIN countries c ON c.id = s.country_id
	WHERE s.name_normalized LIKE $1`)
	args := []interface{}{pattern}
	if countryID != "" {
		args = append(args, countryID)
		builder.WriteString(fmt.Sprintf(" AND s.country_id = $%d", len(args)))
	}
	builder.WriteString(fmt.Sprintf(" ORDER BY s.name LIMIT %d", limit))

	var schools []models.SchoolWithCountry
	if err := r.db.SelectContext(ctx, &schools, builder.String(), args...); err != nil {
		return nil, fmt.Errorf("search schools: %w", err)
	}
	return schools, nil
}

// CatalogByCountry returns every school in a country for the matcher.
func (r *SchoolRepository) CatalogByCountry(ctx context.Context, countryID string) ([]models.School, error) {
	const query = `SELECT id, name, name_normalized, country_id, is_user_submitted
	FROM schools WHERE country_id = $1 ORDER BY created_at, id`
	var schools []models.School
	if err := r.db.SelectContext(ctx, &schools, query, countryID); err != nil {
		return nil, fmt.Errorf("school catalog for country %s: %w", countryID, err)
	}
	return schools, nil
}

// ListWithApprovedByCountry returns the schools in a country that have
// approved submissions.
func (r *SchoolRepository) ListWithApprovedByCountry(ctx context.Context, countryID string) ([]models.School, error) {
	const query = `SELECT DISTINCT s.id, s.name, s.name_normalized, s.country_id, s.is_user_submitted
	FROM schools s
	JOIN submissions sub ON sub.school_id = s.id AND sub.status = $2
	WHERE s.country_id = $1
	ORDER BY s.name`
	var schools []models.School
	if err := r.db.SelectContext(ctx, &schools, query, countryID, models.StatusApproved); err != nil {
		return nil, fmt.Errorf("schools with data for country %s: %w", countryID, err)
	}
	return schools, nil
}
