package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/opensalaries/teacherpay-api/internal/models"
)

// SubmissionRepository persists salary submissions. Monetary bases are
// stored as flat column quintuples; the row type below converts between
// that shape and the model's present-or-absent projections.
type SubmissionRepository struct {
	db *sqlx.DB
}

// NewSubmissionRepository constructs the repository.
func NewSubmissionRepository(db *sqlx.DB) *SubmissionRepository {
	return &SubmissionRepository{db: db}
}

type submissionRow struct {
	ID               string         `db:"id"`
	SchoolID         sql.NullString `db:"school_id"`
	NewSchoolName    sql.NullString `db:"new_school_name"`
	NewSchoolCountry sql.NullString `db:"new_school_country"`

	Position          string `db:"position"`
	AccommodationType string `db:"accommodation_type"`

	GrossPay      float64 `db:"gross_pay"`
	GrossCurrency string  `db:"gross_currency"`
	GrossUSD      float64 `db:"gross_usd"`
	GrossGBP      float64 `db:"gross_gbp"`
	GrossEUR      float64 `db:"gross_eur"`
	GrossLocal    float64 `db:"gross_local"`

	AccommodationAllowance sql.NullFloat64 `db:"accommodation_allowance"`
	AccommodationCurrency  sql.NullString  `db:"accommodation_currency"`
	AccommodationUSD       sql.NullFloat64 `db:"accommodation_usd"`
	AccommodationGBP       sql.NullFloat64 `db:"accommodation_gbp"`
	AccommodationEUR       sql.NullFloat64 `db:"accommodation_eur"`
	AccommodationLocal     sql.NullFloat64 `db:"accommodation_local"`

	NetPay      sql.NullFloat64 `db:"net_pay"`
	NetCurrency sql.NullString  `db:"net_currency"`
	NetUSD      sql.NullFloat64 `db:"net_usd"`
	NetGBP      sql.NullFloat64 `db:"net_gbp"`
	NetEUR      sql.NullFloat64 `db:"net_eur"`
	NetLocal    sql.NullFloat64 `db:"net_local"`

	LocalCurrencyCode string    `db:"local_currency_code"`
	ExchangeRateDate  time.Time `db:"exchange_rate_date"`

	TaxNotApplicable       bool            `db:"tax_not_applicable"`
	PensionOffered         bool            `db:"pension_offered"`
	PensionPercentage      sql.NullFloat64 `db:"pension_percentage"`
	ChildPlaces            sql.NullString  `db:"child_places"`
	ChildPlacesDetail      sql.NullString  `db:"child_places_detail"`
	MedicalInsurance       bool            `db:"medical_insurance"`
	MedicalInsuranceDetail sql.NullString  `db:"medical_insurance_detail"`

	Flagged   bool           `db:"flagged"`
	IsVPN     bool           `db:"is_vpn"`
	IsTor     bool           `db:"is_tor"`
	IsProxy   bool           `db:"is_proxy"`
	IsAbuser  bool           `db:"is_abuser"`
	IPAddress sql.NullString `db:"ip_address"`
	IPCountry sql.NullString `db:"ip_country"`

	Status      string       `db:"status"`
	SubmittedAt time.Time    `db:"submitted_at"`
	ReviewedAt  sql.NullTime `db:"reviewed_at"`

	SchoolName  sql.NullString `db:"school_name"`
	CountryName sql.NullString `db:"country_name"`
}

const submissionColumns = `sub.id, sub.school_id, sub.new_school_name, sub.new_school_country,
       sub.position, sub.accommodation_type,
       sub.gross_pay, sub.gross_currency, sub.gross_usd, sub.gross_gbp, sub.gross_eur, sub.gross_local,
       sub.accommodation_allowance, sub.accommodation_currency, sub.accommodation_usd, sub.accommodation_gbp, sub.accommodation_eur, sub.accommodation_local,
       sub.net_pay, sub.net_currency, sub.net_usd, sub.net_gbp, sub.net_eur, sub.net_local,
       sub.local_currency_code, sub.exchange_rate_date,
       sub.tax_not_applicable, sub.pension_offered, sub.pension_percentage,
       sub.child_places, sub.child_places_detail, sub.medical_insurance, sub.medical_insurance_detail,
       sub.flagged, sub.is_vpn, sub.is_tor, sub.is_proxy, sub.is_abuser, sub.ip_address, sub.ip_country,
       sub.status, sub.submitted_at, sub.reviewed_at`

func (row *submissionRow) toModel() *models.Submission {
	s := &models.Submission{
		ID:                row.ID,
		Position:          models.Position(row.Position),
		AccommodationType: models.AccommodationType(row.AccommodationType),
		Gross: models.MoneyProjection{
			SourceAmount:   row.GrossPay,
			SourceCurrency: row.GrossCurrency,
			USD:            row.GrossUSD,
			GBP:            row.GrossGBP,
			EUR:            row.GrossEUR,
			Local:          row.GrossLocal,
			RateDate:       row.ExchangeRateDate,
		},
		LocalCurrencyCode: row.LocalCurrencyCode,
		TaxNotApplicable:  row.TaxNotApplicable,
		PensionOffered:    row.PensionOffered,
		MedicalInsurance:  row.MedicalInsurance,
		Fraud: models.FraudSignals{
			Flagged:  row.Flagged,
			IsVPN:    row.IsVPN,
			IsTor:    row.IsTor,
			IsProxy:  row.IsProxy,
			IsAbuser: row.IsAbuser,
		},
		Status:      models.SubmissionStatus(row.Status),
		SubmittedAt: row.SubmittedAt,
	}

	s.SchoolID = nullableString(row.SchoolID)
	s.NewSchoolName = nullableString(row.NewSchoolName)
	s.NewSchoolCountry = nullableString(row.NewSchoolCountry)
	s.PensionPercentage = nullableFloat(row.PensionPercentage)
	s.ChildPlaces = nullableString(row.ChildPlaces)
	s.ChildPlacesDetail = nullableString(row.ChildPlacesDetail)
	s.MedicalInsuranceDetail = nullableString(row.MedicalInsuranceDetail)
	s.Fraud.IPCountry = nullableString(row.IPCountry)
	if row.IPAddress.Valid {
		s.Fraud.IPAddress = row.IPAddress.String
	}
	if row.ReviewedAt.Valid {
		t := row.ReviewedAt.Time
		s.ReviewedAt = &t
	}
	s.SchoolName = nullableString(row.SchoolName)
	s.CountryName = nullableString(row.CountryName)

	// A basis is present only when its full quintuple was written.
	if row.AccommodationAllowance.Valid && row.AccommodationCurrency.Valid {
		s.Accommodation = &models.MoneyProjection{
			SourceAmount:   row.AccommodationAllowance.Float64,
			SourceCurrency: row.AccommodationCurrency.String,
			USD:            row.AccommodationUSD.Float64,
			GBP:            row.AccommodationGBP.Float64,
			EUR:            row.AccommodationEUR.Float64,
			Local:          row.AccommodationLocal.Float64,
			RateDate:       row.ExchangeRateDate,
		}
	}
	if row.NetPay.Valid && row.NetCurrency.Valid {
		s.Net = &models.MoneyProjection{
			SourceAmount:   row.NetPay.Float64,
			SourceCurrency: row.NetCurrency.String,
			USD:            row.NetUSD.Float64,
			GBP:            row.NetGBP.Float64,
			EUR:            row.NetEUR.Float64,
			Local:          row.NetLocal.Float64,
			RateDate:       row.ExchangeRateDate,
		}
	}
	return s
}

func fromModel(s *models.Submission) map[string]interface{} {
	args := map[string]interface{}{
		"id":                       s.ID,
		"school_id":                s.SchoolID,
		"new_school_name":          s.NewSchoolName,
		"new_school_country":       s.NewSchoolCountry,
		"position":                 string(s.Position),
		"accommodation_type":       string(s.AccommodationType),
		"gross_pay":                s.Gross.SourceAmount,
		"gross_currency":           s.Gross.SourceCurrency,
		"gross_usd":                s.Gross.USD,
		"gross_gbp":                s.Gross.GBP,
		"gross_eur":                s.Gross.EUR,
		"gross_local":              s.Gross.Local,
		"accommodation_allowance":  nil,
		"accommodation_currency":   nil,
		"accommodation_usd":        nil,
		"accommodation_gbp":        nil,
		"accommodation_eur":        nil,
		"accommodation_local":      nil,
		"net_pay":                  nil,
		"net_currency":             nil,
		"net_usd":                  nil,
		"net_gbp":                  nil,
		"net_eur":                  nil,
		"net_local":                nil,
		"local_currency_code":      s.LocalCurrencyCode,
		"exchange_rate_date":       s.Gross.RateDate,
		"tax_not_applicable":       s.TaxNotApplicable,
		"pension_offered":          s.PensionOffered,
		"pension_percentage":       s.PensionPercentage,
		"child_places":             s.ChildPlaces,
		"child_places_detail":      s.ChildPlacesDetail,
		"medical_insurance":        s.MedicalInsurance,
		"medical_insurance_detail": s.MedicalInsuranceDetail,
		"flagged":                  s.Fraud.Flagged,
		"is_vpn":                   s.Fraud.IsVPN,
		"is_tor":                   s.Fraud.IsTor,
		"is_proxy":                 s.Fraud.IsProxy,
		"is_abuser":                s.Fraud.IsAbuser,
		"ip_address":               nilIfEmpty(s.Fraud.IPAddress),
		"ip_country":               s.Fraud.IPCountry,
		"status":                   string(s.Status),
		"submitted_at":             s.SubmittedAt,
		"reviewed_at":              s.ReviewedAt,
	}
	if a := s.Accommodation; a != nil {
		args["accommodation_allowance"] = a.SourceAmount
		args["accommodation_currency"] = a.SourceCurrency
		args["accommodation_usd"] = a.USD
		args["accommodation_gbp"] = a.GBP
		args["accommodation_eur"] = a.EUR
		args["accommodation_local"] = a.Local
	}
	if n := s.Net; n != nil {
		args["net_pay"] = n.SourceAmount
		args["net_currency"] = n.SourceCurrency
		args["net_usd"] = n.USD
		args["net_gbp"] = n.GBP
		args["net_eur"] = n.EUR
		args["net_local"] = n.Local
	}
	return args
}

func nullableString(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}

func nullableFloat(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

func nilIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// Create inserts a new submission row.
func (r *SubmissionRepository) Create(ctx context.Context, submission *models.Submission) error {
	if submission.ID == "" {
		submission.ID = uuid.NewString()
	}
	if submission.Status == "" {
		submission.Status = models.StatusPending
	}
	if submission.SubmittedAt.IsZero() {
		submission.SubmittedAt = time.Now().UTC()
	}
	const query = `INSERT INTO submissions
	(id, school_id, new_school_name, new_school_country, position, accommodation_type,
	 gross_pay, gross_currency, gross_usd, gross_gbp, gross_eur, gross_local,
	 accommodation_allowance, accommodation_currency, accommodation_usd, accommodation_gbp, accommodation_eur, accommodation_local,
	 net_pay, net_currency, net_usd, net_gbp, net_eur, net_local,
	 local_currency_code, exchange_rate_date,
	 tax_not_applicable, pension_offered, pension_percentage, child_places, child_places_detail,
	 medical_insurance, medical_insurance_detail,
	 flagged, is_vpn, is_tor, is_proxy, is_abuser, ip_address, ip_country,
	 status, submitted_at, reviewed_at)
	VALUES (:id, :school_id, :new_school_name, :new_school_country, :position, :accommodation_type,
	 :gross_pay, :gross_currency, :gross_usd, :gross_gbp, :gross_eur, :gross_local,
	 :accommodation_allowance, :accommodation_currency, :accommodation_usd, :accommodation_gbp, :accommodation_eur, :accommodation_local,
	 :net_pay, :net_currency, :net_usd, :net_gbp, :net_eur, :net_local,
	 :local_currency_code, :exchange_rate_date,
	 :tax_not_applicable, :pension_offered, :pension_percentage, :child_places, :child_places_detail,
	 :medical_insurance, :medical_insurance_detail,
	 :flagged, :is_vpn, :is_tor, :is_proxy, :is_abuser, :ip_address, :ip_country,
	 :status, :submitted_at, :reviewed_at)`
	if _, err := r.db.NamedExecContext(ctx, query, fromModel(submission)); err != nil {
		return fmt.Errorf("create submission: %w", err)
	}
	return nil
}

// GetByID fetches a submission by identifier.
func (r *SubmissionRepository) GetByID(ctx context.Context, id string) (*models.Submission, error) {
	query := `SELECT ` + submissionColumns + `,
       s.name AS school_name, c.name AS country_name
	FROM submissions sub
	LEFT JOIN schools s ON s.id = sub.school_id
	LEFT JOIN countries c ON c.id = s.country_id
	WHERE sub.id = $1`
	var row submissionRow
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		return nil, err
	}
	return row.toModel(), nil
}

// List returns submissions matching the filter, newest first.
func (r *SubmissionRepository) List(ctx context.Context, filter models.SubmissionFilter) ([]models.Submission, error) {
	builder := strings.Builder{}
	builder.WriteString(`SELECT ` + submissionColumns + `,
       s.name AS school_name, c.name AS country_name
	FROM submissions sub
	LEFT JOIN schools s ON s.id = sub.school_id
	LEFT JOIN countries c ON c.id = s.country_id`)

	args := make([]interface{}, 0, 2)
	conditions := make([]string, 0, 2)
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		conditions = append(conditions, fmt.Sprintf("sub.status = $%d", len(args)))
	}
	if filter.SchoolID != "" {
		args = append(args, filter.SchoolID)
		conditions = append(conditions, fmt.Sprintf("sub.school_id = $%d", len(args)))
	}
	if len(conditions) > 0 {
		builder.WriteString(" WHERE ")
		builder.WriteString(strings.Join(conditions, " AND "))
	}
	builder.WriteString(" ORDER BY sub.submitted_at DESC")

	limit := filter.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	builder.WriteString(fmt.Sprintf(" LIMIT %d OFFSET %d", limit, offset))

	var rows []submissionRow
	if err := r.db.SelectContext(ctx, &rows, builder.String(), args...); err != nil {
		return nil, fmt.Errorf("list submissions: %w", err)
	}
	result := make([]models.Submission, 0, len(rows))
	for i := range rows {
		result = append(result, *rows[i].toModel())
	}
	return result, nil
}

// UpdateStatus transitions one submission, guarded by its expected current
// status so the transition is atomic at row granularity. Returns
// sql.ErrNoRows when the row was not in the expected state.
func (r *SubmissionRepository) UpdateStatus(ctx context.Context, id string, from, to models.SubmissionStatus, reviewedAt *time.Time) error {
	const query = `UPDATE submissions SET status = $1, reviewed_at = $2 WHERE id = $3 AND status = $4`
	result, err := r.db.ExecContext(ctx, query, string(to), reviewedAt, id, string(from))
	if err != nil {
		return fmt.Errorf("update submission status: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check submission update rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// BulkUpdateStatus re-files a set of submissions from one status to
// another, returning how many rows actually moved.
func (r *SubmissionRepository) BulkUpdateStatus(ctx context.Context, ids []string, from, to models.SubmissionStatus, reviewedAt *time.Time) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	query, args, err := sqlx.In(
		`UPDATE submissions SET status = ?, reviewed_at = ? WHERE id IN (?) AND status = ?`,
		string(to), reviewedAt, ids, string(from),
	)
	if err != nil {
		return 0, fmt.Errorf("build bulk status query: %w", err)
	}
	result, err := r.db.ExecContext(ctx, r.db.Rebind(query), args...)
	if err != nil {
		return 0, fmt.Errorf("bulk update submission status: %w", err)
	}
	return result.RowsAffected()
}

// LinkSchool replaces the pending school fields with a direct reference
// and refreshes the local currency from the matched school's country.
func (r *SubmissionRepository) LinkSchool(ctx context.Context, id, schoolID, localCurrencyCode string) error {
	const query = `UPDATE submissions
	SET school_id = $1, new_school_name = NULL, new_school_country = NULL, local_currency_code = $2
	WHERE id = $3`
	result, err := r.db.ExecContext(ctx, query, schoolID, localCurrencyCode, id)
	if err != nil {
		return fmt.Errorf("link submission school: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check link school rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// UpdatePendingName edits the free-text school name of an unmatched
// pending submission.
func (r *SubmissionRepository) UpdatePendingName(ctx context.Context, id, name string) error {
	const query = `UPDATE submissions SET new_school_name = $1
	WHERE id = $2 AND school_id IS NULL AND status = $3`
	result, err := r.db.ExecContext(ctx, query, name, id, string(models.StatusPending))
	if err != nil {
		return fmt.Errorf("update pending school name: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check pending name rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// AverageGross aggregates approved teacher-tier gross pay for one school.
// Returns nil when the school has no qualifying submissions.
func (r *SubmissionRepository) AverageGross(ctx context.Context, schoolID string) (*models.SalaryAverages, error) {
	query, args, err := sqlx.In(`SELECT
       ROUND(AVG(gross_usd)) AS usd, ROUND(AVG(gross_gbp)) AS gbp,
       ROUND(AVG(gross_eur)) AS eur, ROUND(AVG(gross_local)) AS local,
       MIN(local_currency_code) AS local_currency_code, COUNT(*) AS count
	FROM submissions
	WHERE school_id = ? AND status = ? AND position IN (?)`,
		schoolID, string(models.StatusApproved), teacherPositionStrings(),
	)
	if err != nil {
		return nil, fmt.Errorf("build average gross query: %w", err)
	}

	var row struct {
		USD               sql.NullFloat64 `db:"usd"`
		GBP               sql.NullFloat64 `db:"gbp"`
		EUR               sql.NullFloat64 `db:"eur"`
		Local             sql.NullFloat64 `db:"local"`
		LocalCurrencyCode sql.NullString  `db:"local_currency_code"`
		Count             int             `db:"count"`
	}
	if err := r.db.GetContext(ctx, &row, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("average gross for school %s: %w", schoolID, err)
	}
	if row.Count == 0 {
		return nil, nil
	}
	return &models.SalaryAverages{
		USD:               row.USD.Float64,
		GBP:               row.GBP.Float64,
		EUR:               row.EUR.Float64,
		Local:             row.Local.Float64,
		LocalCurrencyCode: row.LocalCurrencyCode.String,
		Count:             row.Count,
	}, nil
}

func teacherPositionStrings() []string {
	out := make([]string, len(models.TeacherPositions))
	for i, p := range models.TeacherPositions {
		out[i] = string(p)
	}
	return out
}
