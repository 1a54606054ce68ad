package service

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/opensalaries/teacherpay-api/internal/models"
	appErrors "github.com/opensalaries/teacherpay-api/pkg/errors"
	"github.com/opensalaries/teacherpay-api/pkg/export"
)

type exportSubmissionLister interface {
	List(ctx context.Context, filter models.SubmissionFilter) ([]models.Submission, error)
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

// ExportFormat selects the rendered output type.
type ExportFormat string

const (
	FormatCSV ExportFormat = "csv"
	FormatPDF ExportFormat = "pdf"
)

// ExportResult is a rendered document ready to stream.
type ExportResult struct {
	Filename    string
	ContentType string
	Data        []byte
}

// ExportService renders the approved salary dataset for offline analysis.
type ExportService struct {
	submissions exportSubmissionLister
	csv         csvRenderer
	pdf         pdfRenderer
	logger      *zap.Logger
	now         func() time.Time
}

// NewExportService constructs an ExportService.
func NewExportService(submissions exportSubmissionLister, csv csvRenderer, pdf pdfRenderer, logger *zap.Logger) *ExportService {
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportService{submissions: submissions, csv: csv, pdf: pdf, logger: logger, now: time.Now}
}

// Generate renders every approved submission in the requested format.
func (s *ExportService) Generate(ctx context.Context, format ExportFormat) (*ExportResult, error) {
	submissions, err := s.submissions.List(ctx, models.SubmissionFilter{Status: models.StatusApproved})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load approved submissions")
	}

	dataset := buildSubmissionDataset(submissions)
	stamp := s.now().UTC().Format("2006-01-02")

	switch format {
	case FormatCSV:
		data, err := s.csv.Render(dataset)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "csv render failed")
		}
		return &ExportResult{
			Filename:    fmt.Sprintf("approved-salaries-%s.csv", stamp),
			ContentType: "text/csv",
			Data:        data,
		}, nil
	case FormatPDF:
		data, err := s.pdf.Render(dataset, "Approved Salary Submissions")
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "pdf render failed")
		}
		return &ExportResult{
			Filename:    fmt.Sprintf("approved-salaries-%s.pdf", stamp),
			ContentType: "application/pdf",
			Data:        data,
		}, nil
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported export format: %s", format))
	}
}

func buildSubmissionDataset(submissions []models.Submission) export.Dataset {
	dataset := export.Dataset{
		Headers: []string{
			"School", "Country", "Position", "Local Currency",
			"Gross (USD)", "Gross (GBP)", "Gross (EUR)", "Gross (Local)",
			"Net (USD)", "Accommodation", "Submitted",
		},
	}
	for _, submission := range submissions {
		netUSD := ""
		if submission.Net != nil {
			netUSD = formatAmount(submission.Net.USD)
		}
		accommodation := string(submission.AccommodationType)
		if submission.Accommodation != nil {
			accommodation = formatAmount(submission.Accommodation.USD) + " USD"
		}
		dataset.Rows = append(dataset.Rows, map[string]string{
			"School":         stringOrDash(submission.SchoolName),
			"Country":        stringOrDash(submission.CountryName),
			"Position":       string(submission.Position),
			"Local Currency": submission.LocalCurrencyCode,
			"Gross (USD)":    formatAmount(submission.Gross.USD),
			"Gross (GBP)":    formatAmount(submission.Gross.GBP),
			"Gross (EUR)":    formatAmount(submission.Gross.EUR),
			"Gross (Local)":  formatAmount(submission.Gross.Local),
			"Net (USD)":      netUSD,
			"Accommodation":  accommodation,
			"Submitted":      submission.SubmittedAt.UTC().Format("2006-01-02"),
		})
	}
	return dataset
}

func formatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

func stringOrDash(s *string) string {
	if s == nil || *s == "" {
		return "-"
	}
	return *s
}
