package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opensalaries/teacherpay-api/internal/models"
)

func newSchoolMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestSchoolRepositoryCreateAssignsID(t *testing.T) {
	db, mock, cleanup := newSchoolMock(t)
	defer cleanup()
	repo := NewSchoolRepository(db)

	mock.ExpectExec("INSERT INTO schools").
		WillReturnResult(sqlmock.NewResult(0, 1))

	school := &models.School{
		Name:            "Riverside Academy",
		NameNormalized:  "riverside academy",
		CountryID:       "country-th",
		IsUserSubmitted: true,
	}
	err := repo.Create(context.Background(), school)
	require.NoError(t, err)
	assert.NotEmpty(t, school.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSchoolRepositoryGetWithCountry(t *testing.T) {
	db, mock, cleanup := newSchoolMock(t)
	defer cleanup()
	repo := NewSchoolRepository(db)

	rows := sqlmock.NewRows([]string{"id", "name", "name_normalized", "country_id", "is_user_submitted", "country_name", "currency_code", "currency_name"}).
		AddRow("school-1", "Riverside Academy", "riverside academy", "country-th", false, "Thailand", "THB", "Thai Baht")
	mock.ExpectQuery("SELECT s.id, s.name").WithArgs("school-1").WillReturnRows(rows)

	school, err := repo.GetWithCountry(context.Background(), "school-1")
	require.NoError(t, err)
	assert.Equal(t, "Thailand", school.CountryName)
	assert.Equal(t, "THB", school.CurrencyCode)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSchoolRepositoryGetWithCountryMiss(t *testing.T) {
	db, mock, cleanup := newSchoolMock(t)
	defer cleanup()
	repo := NewSchoolRepository(db)

	mock.ExpectQuery("SELECT s.id, s.name").WithArgs("missing").WillReturnError(sql.ErrNoRows)

	_, err := repo.GetWithCountry(context.Background(), "missing")
	require.ErrorIs(t, err, sql.ErrNoRows)
}

func TestSchoolRepositorySearchNormalizedPattern(t *testing.T) {
	db, mock, cleanup := newSchoolMock(t)
	defer cleanup()
	repo := NewSchoolRepository(db)

	rows := sqlmock.NewRows([]string{"id", "name", "name_normalized", "country_id", "is_user_submitted", "country_name", "currency_code", "currency_name"}).
		AddRow("school-1", "Saint Andrews International School", "saint andrews international school", "country-th", false, "Thailand", "THB", "Thai Baht")
	mock.ExpectQuery("SELECT s.id, s.name").
		WithArgs("%saint%andrews%").
		WillReturnRows(rows)

	schools, err := repo.SearchNormalized(context.Background(), "saint andrews", "", 10)
	require.NoError(t, err)
	require.Len(t, schools, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSchoolRepositorySearchNormalizedCountryFilter(t *testing.T) {
	db, mock, cleanup := newSchoolMock(t)
	defer cleanup()
	repo := NewSchoolRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("AND s.country_id = $2")).
		WithArgs("%riverside%", "country-th").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "name_normalized", "country_id", "is_user_submitted", "country_name", "currency_code", "currency_name"}))

	_, err := repo.SearchNormalized(context.Background(), "riverside", "country-th", 10)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSchoolRepositorySearchNormalizedEmptyQuery(t *testing.T) {
	db, _, cleanup := newSchoolMock(t)
	defer cleanup()
	repo := NewSchoolRepository(db)

	schools, err := repo.SearchNormalized(context.Background(), "   ", "", 10)
	require.NoError(t, err)
	assert.Nil(t, schools)
}

func TestSchoolRepositoryCatalogOrderIsStable(t *testing.T) {
	db, mock, cleanup := newSchoolMock(t)
	defer cleanup()
	repo := NewSchoolRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY created_at, id")).
		WithArgs("country-th").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "name_normalized", "country_id", "is_user_submitted"}).
			AddRow("school-1", "Alpha School", "alpha school", "country-th", false).
			AddRow("school-2", "Beta School", "beta school", "country-th", false))

	schools, err := repo.CatalogByCountry(context.Background(), "country-th")
	require.NoError(t, err)
	require.Len(t, schools, 2)
	assert.Equal(t, "school-1", schools[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
