package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opensalaries/teacherpay-api/internal/models"
)

func newSubmissionMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

var submissionRowColumns = []string{
	"id", "school_id", "new_school_name", "new_school_country",
	"position", "accommodation_type",
	"gross_pay", "gross_currency", "gross_usd", "gross_gbp", "gross_eur", "gross_local",
	"accommodation_allowance", "accommodation_currency", "accommodation_usd", "accommodation_gbp", "accommodation_eur", "accommodation_local",
	"net_pay", "net_currency", "net_usd", "net_gbp", "net_eur", "net_local",
	"local_currency_code", "exchange_rate_date",
	"tax_not_applicable", "pension_offered", "pension_percentage",
	"child_places", "child_places_detail", "medical_insurance", "medical_insurance_detail",
	"flagged", "is_vpn", "is_tor", "is_proxy", "is_abuser", "ip_address", "ip_country",
	"status", "submitted_at", "reviewed_at",
	"school_name", "country_name",
}

func addSubmissionRow(rows *sqlmock.Rows, id string, schoolID interface{}, withNet bool) *sqlmock.Rows {
	rateDate := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	var netPay, netCurrency, netUSD, netGBP, netEUR, netLocal interface{}
	if withNet {
		netPay, netCurrency = 40000.0, "USD"
		netUSD, netGBP, netEUR, netLocal = 40000.0, 31200.0, 36800.0, 1400000.0
	}
	return rows.AddRow(
		id, schoolID, nil, nil,
		"classroom_teacher", "not_provided",
		45000.0, "USD", 45000.0, 35100.0, 41400.0, 1575000.0,
		nil, nil, nil, nil, nil, nil,
		netPay, netCurrency, netUSD, netGBP, netEUR, netLocal,
		"THB", rateDate,
		false, true, 10.0,
		nil, nil, false, nil,
		false, false, false, false, false, "203.0.113.7", "Thailand",
		"approved", time.Date(2026, 2, 10, 9, 0, 0, 0, time.UTC), nil,
		"Riverside Academy", "Thailand",
	)
}

func TestSubmissionRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newSubmissionMock(t)
	defer cleanup()
	repo := NewSubmissionRepository(db)

	mock.ExpectExec("INSERT INTO submissions").
		WillReturnResult(sqlmock.NewResult(0, 1))

	submission := &models.Submission{
		Position:          models.PositionClassroomTeacher,
		AccommodationType: models.AccommodationNone,
		Gross: models.MoneyProjection{
			SourceAmount: 45000, SourceCurrency: "USD",
			USD: 45000, GBP: 35100, EUR: 41400, Local: 1575000,
			RateDate: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		},
		LocalCurrencyCode: "THB",
	}
	err := repo.Create(context.Background(), submission)
	require.NoError(t, err)
	assert.NotEmpty(t, submission.ID)
	assert.Equal(t, models.StatusPending, submission.Status)
	assert.False(t, submission.SubmittedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSubmissionRepositoryGetByIDHydratesBases(t *testing.T) {
	db, mock, cleanup := newSubmissionMock(t)
	defer cleanup()
	repo := NewSubmissionRepository(db)

	rows := addSubmissionRow(sqlmock.NewRows(submissionRowColumns), "sub-1", "school-1", true)
	mock.ExpectQuery("SELECT sub.id,").WithArgs("sub-1").WillReturnRows(rows)

	submission, err := repo.GetByID(context.Background(), "sub-1")
	require.NoError(t, err)

	require.NotNil(t, submission.SchoolID)
	assert.Equal(t, "school-1", *submission.SchoolID)
	assert.Equal(t, 45000.0, submission.Gross.USD)
	assert.Nil(t, submission.Accommodation)
	require.NotNil(t, submission.Net)
	assert.Equal(t, 40000.0, submission.Net.SourceAmount)
	assert.Equal(t, submission.Gross.RateDate, submission.Net.RateDate)
	require.NotNil(t, submission.PensionPercentage)
	assert.Equal(t, 10.0, *submission.PensionPercentage)
	require.NotNil(t, submission.SchoolName)
	assert.Equal(t, "Riverside Academy", *submission.SchoolName)
	assert.Equal(t, "203.0.113.7", submission.Fraud.IPAddress)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSubmissionRepositoryListFilters(t *testing.T) {
	db, mock, cleanup := newSubmissionMock(t)
	defer cleanup()
	repo := NewSubmissionRepository(db)

	rows := addSubmissionRow(sqlmock.NewRows(submissionRowColumns), "sub-1", "school-1", false)
	mock.ExpectQuery("SELECT sub.id,").
		WithArgs("approved", "school-1").
		WillReturnRows(rows)

	submissions, err := repo.List(context.Background(), models.SubmissionFilter{
		Status:   models.StatusApproved,
		SchoolID: "school-1",
	})
	require.NoError(t, err)
	require.Len(t, submissions, 1)
	assert.Equal(t, "sub-1", submissions[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSubmissionRepositoryUpdateStatusGuardsExpected(t *testing.T) {
	db, mock, cleanup := newSubmissionMock(t)
	defer cleanup()
	repo := NewSubmissionRepository(db)

	now := time.Now().UTC()
	mock.ExpectExec("UPDATE submissions SET status").
		WithArgs("approved", sqlmock.AnyArg(), "sub-1", "pending").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.UpdateStatus(context.Background(), "sub-1", models.StatusPending, models.StatusApproved, &now)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSubmissionRepositoryUpdateStatusStaleRow(t *testing.T) {
	db, mock, cleanup := newSubmissionMock(t)
	defer cleanup()
	repo := NewSubmissionRepository(db)

	mock.ExpectExec("UPDATE submissions SET status").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdateStatus(context.Background(), "sub-1", models.StatusPending, models.StatusApproved, nil)
	require.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSubmissionRepositoryBulkUpdateStatus(t *testing.T) {
	db, mock, cleanup := newSubmissionMock(t)
	defer cleanup()
	repo := NewSubmissionRepository(db)

	mock.ExpectExec("UPDATE submissions SET status").
		WillReturnResult(sqlmock.NewResult(0, 2))

	moved, err := repo.BulkUpdateStatus(context.Background(), []string{"a", "b", "c"},
		models.StatusApproved, models.StatusPending, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(2), moved)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSubmissionRepositoryBulkUpdateStatusEmptyIDs(t *testing.T) {
	db, _, cleanup := newSubmissionMock(t)
	defer cleanup()
	repo := NewSubmissionRepository(db)

	moved, err := repo.BulkUpdateStatus(context.Background(), nil,
		models.StatusApproved, models.StatusPending, nil)
	require.NoError(t, err)
	assert.Zero(t, moved)
}

func TestSubmissionRepositoryLinkSchool(t *testing.T) {
	db, mock, cleanup := newSubmissionMock(t)
	defer cleanup()
	repo := NewSubmissionRepository(db)

	mock.ExpectExec("UPDATE submissions").
		WithArgs("school-1", "THB", "sub-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.LinkSchool(context.Background(), "sub-1", "school-1", "THB")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSubmissionRepositoryUpdatePendingNameOnlyPendingUnmatched(t *testing.T) {
	db, mock, cleanup := newSubmissionMock(t)
	defer cleanup()
	repo := NewSubmissionRepository(db)

	mock.ExpectExec("UPDATE submissions SET new_school_name").
		WithArgs("Corrected Name", "sub-1", "pending").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdatePendingName(context.Background(), "sub-1", "Corrected Name")
	require.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSubmissionRepositoryAverageGross(t *testing.T) {
	db, mock, cleanup := newSubmissionMock(t)
	defer cleanup()
	repo := NewSubmissionRepository(db)

	rows := sqlmock.NewRows([]string{"usd", "gbp", "eur", "local", "local_currency_code", "count"}).
		AddRow(45000.0, 35100.0, 41400.0, 1575000.0, "THB", 4)
	mock.ExpectQuery("SELECT").WillReturnRows(rows)

	averages, err := repo.AverageGross(context.Background(), "school-1")
	require.NoError(t, err)
	require.NotNil(t, averages)
	assert.Equal(t, 45000.0, averages.USD)
	assert.Equal(t, "THB", averages.LocalCurrencyCode)
	assert.Equal(t, 4, averages.Count)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSubmissionRepositoryAverageGrossNoData(t *testing.T) {
	db, mock, cleanup := newSubmissionMock(t)
	defer cleanup()
	repo := NewSubmissionRepository(db)

	rows := sqlmock.NewRows([]string{"usd", "gbp", "eur", "local", "local_currency_code", "count"}).
		AddRow(nil, nil, nil, nil, nil, 0)
	mock.ExpectQuery("SELECT").WillReturnRows(rows)

	averages, err := repo.AverageGross(context.Background(), "school-1")
	require.NoError(t, err)
	assert.Nil(t, averages)
	assert.NoError(t, mock.ExpectationsWereMet())
}
