package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/opensalaries/teacherpay-api/internal/dto"
	"github.com/opensalaries/teacherpay-api/internal/models"
	"github.com/opensalaries/teacherpay-api/internal/normalize"
	appErrors "github.com/opensalaries/teacherpay-api/pkg/errors"
)

type submissionStore interface {
	Create(ctx context.Context, submission *models.Submission) error
	GetByID(ctx context.Context, id string) (*models.Submission, error)
	List(ctx context.Context, filter models.SubmissionFilter) ([]models.Submission, error)
	UpdateStatus(ctx context.Context, id string, from, to models.SubmissionStatus, reviewedAt *time.Time) error
	BulkUpdateStatus(ctx context.Context, ids []string, from, to models.SubmissionStatus, reviewedAt *time.Time) (int64, error)
	LinkSchool(ctx context.Context, id, schoolID, localCurrencyCode string) error
	UpdatePendingName(ctx context.Context, id, name string) error
}

type schoolStore interface {
	Create(ctx context.Context, school *models.School) error
	GetWithCountry(ctx context.Context, id string) (*models.SchoolWithCountry, error)
	CatalogByCountry(ctx context.Context, countryID string) ([]models.School, error)
}

type countryStore interface {
	GetByName(ctx context.Context, name string) (*models.Country, error)
}

type amountConverter interface {
	Convert(ctx context.Context, amount float64, fromCurrency, localCurrencyCode string) (*models.MoneyProjection, error)
}

type fraudSignaler interface {
	Signals(ctx context.Context, ip string) models.FraudSignals
}

type readCacheInvalidator interface {
	DeleteByPattern(ctx context.Context, pattern string) error
}

// SubmissionService owns the submission lifecycle: intake (normalization,
// matching, conversion, fraud annotation) and every moderation transition.
// All status changes go through the central transition table; anything not
// in the table is rejected before any mutation.
type SubmissionService struct {
	repo      submissionStore
	schools   schoolStore
	countries countryStore
	converter amountConverter
	fraud     fraudSignaler
	cache     readCacheInvalidator
	validator *validator.Validate
	logger    *zap.Logger
}

// NewSubmissionService constructs the service.
func NewSubmissionService(
	repo submissionStore,
	schools schoolStore,
	countries countryStore,
	converter amountConverter,
	fraud fraudSignaler,
	cache readCacheInvalidator,
	logger *zap.Logger,
) *SubmissionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SubmissionService{
		repo:      repo,
		schools:   schools,
		countries: countries,
		converter: converter,
		fraud:     fraud,
		cache:     cache,
		validator: validator.New(),
		logger:    logger,
	}
}

// Create runs the full intake pipeline and persists the submission as
// pending. Conversion failures reject the submission; fraud-signal
// failures never do.
func (s *SubmissionService) Create(ctx context.Context, req dto.CreateSubmissionRequest, clientIP string) (*models.Submission, error) {
	if err := s.validateCreate(req); err != nil {
		return nil, err
	}

	submission := &models.Submission{
		Position:               req.Position,
		AccommodationType:      req.AccommodationType,
		TaxNotApplicable:       req.TaxNotApplicable,
		PensionOffered:         req.PensionOffered,
		PensionPercentage:      req.PensionPercentage,
		ChildPlaces:            req.ChildPlaces,
		ChildPlacesDetail:      req.ChildPlacesDetail,
		MedicalInsurance:       req.MedicalInsurance,
		MedicalInsuranceDetail: req.MedicalInsuranceDetail,
		Status:                 models.StatusPending,
	}

	localCurrency, err := s.resolveSchool(ctx, req, submission)
	if err != nil {
		return nil, err
	}
	submission.LocalCurrencyCode = localCurrency

	gross, err := s.converter.Convert(ctx, req.GrossPay, req.GrossCurrency, localCurrency)
	if err != nil {
		return nil, err
	}
	submission.Gross = *gross

	if req.AccommodationType == models.AccommodationAllowance &&
		req.AccommodationAllowance != nil && req.AccommodationCurrency != "" {
		accommodation, err := s.converter.Convert(ctx, *req.AccommodationAllowance, req.AccommodationCurrency, localCurrency)
		if err != nil {
			return nil, err
		}
		submission.Accommodation = accommodation
	}

	if req.NetPay != nil && req.NetCurrency != "" {
		net, err := s.converter.Convert(ctx, *req.NetPay, req.NetCurrency, localCurrency)
		if err != nil {
			return nil, err
		}
		submission.Net = net
	}

	submission.Fraud = s.fraud.Signals(ctx, clientIP)

	if err := s.repo.Create(ctx, submission); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist submission")
	}

	s.logger.Info("submission created",
		zap.String("id", submission.ID),
		zap.String("position", string(submission.Position)),
		zap.Bool("new_school", submission.SchoolID == nil),
		zap.Bool("flagged", submission.Fraud.Flagged),
	)
	return submission, nil
}

func (s *SubmissionService) validateCreate(req dto.CreateSubmissionRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid submission payload")
	}
	if !req.Position.Valid() {
		return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("invalid position: %s", req.Position))
	}
	if !req.AccommodationType.Valid() {
		return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("invalid accommodation type: %s", req.AccommodationType))
	}
	if req.SchoolID == "" && req.NewSchoolName == "" {
		return appErrors.Clone(appErrors.ErrValidation, "school is required")
	}
	if req.SchoolID != "" && req.NewSchoolName != "" {
		return appErrors.Clone(appErrors.ErrValidation, "provide either an existing school or a new school name, not both")
	}
	if req.SchoolID == "" && req.NewSchoolCountry == "" {
		return appErrors.Clone(appErrors.ErrValidation, "country is required for a new school")
	}
	return nil
}

// resolveSchool fills the submission's school reference or pending-name
// fields and returns the local currency code. A new-school name is first
// run through the matcher; a hit collapses it to a direct reference so
// the moderation queue only carries genuinely unknown schools.
func (s *SubmissionService) resolveSchool(ctx context.Context, req dto.CreateSubmissionRequest, submission *models.Submission) (string, error) {
	if req.SchoolID != "" {
		school, err := s.schools.GetWithCountry(ctx, req.SchoolID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return "", appErrors.Clone(appErrors.ErrValidation, "school not found")
			}
			return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load school")
		}
		id := school.ID
		submission.SchoolID = &id
		return school.CurrencyCode, nil
	}

	name := req.NewSchoolName
	country, err := s.countries.GetByName(ctx, req.NewSchoolCountry)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown country: %s", req.NewSchoolCountry))
		}
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load country")
	}

	if match := s.matchExisting(ctx, name, country.ID); match != nil {
		submission.SchoolID = &match.ID
		s.logger.Info("new-school submission matched existing school",
			zap.String("name", name), zap.String("school_id", match.ID))
		return country.CurrencyCode, nil
	}

	countryName := country.Name
	submission.NewSchoolName = &name
	submission.NewSchoolCountry = &countryName
	return country.CurrencyCode, nil
}

func (s *SubmissionService) matchExisting(ctx context.Context, name, countryID string) *normalize.Candidate {
	schools, err := s.schools.CatalogByCountry(ctx, countryID)
	if err != nil {
		// Matching is an optimization over the moderation queue, not a
		// gate; on catalog trouble the submission stays a new-school one.
		s.logger.Warn("school catalog load failed, skipping match", zap.Error(err))
		return nil
	}
	catalog := make([]normalize.Candidate, len(schools))
	for i, school := range schools {
		catalog[i] = normalize.Candidate{ID: school.ID, Name: school.Name, Norm: school.NameNormalized}
	}
	return normalize.Match(name, catalog)
}

// Get fetches one submission.
func (s *SubmissionService) Get(ctx context.Context, id string) (*models.Submission, error) {
	submission, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "submission not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load submission")
	}
	return submission, nil
}

// List returns submissions filtered by status and/or school. For school
// listings the result is ordered by position tier then recency, matching
// the public salary tables.
func (s *SubmissionService) List(ctx context.Context, filter models.SubmissionFilter) ([]models.Submission, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("invalid status: %s", filter.Status))
	}
	submissions, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list submissions")
	}
	if filter.SchoolID != "" {
		sort.SliceStable(submissions, func(i, j int) bool {
			return submissions[i].Position.Rank() < submissions[j].Position.Rank()
		})
	}
	return submissions, nil
}

// Approve moves a pending submission to approved, creating and linking a
// School row first when the submission describes a new school.
func (s *SubmissionService) Approve(ctx context.Context, id string) (*models.Submission, error) {
	submission, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	next, ok := models.NextStatus(submission.Status, models.ActionApprove)
	if !ok {
		return nil, transitionError(submission.Status, models.ActionApprove)
	}

	if submission.SchoolID == nil && submission.NewSchoolName != nil {
		if err := s.createAndLinkSchool(ctx, submission); err != nil {
			return nil, err
		}
	}

	if err := s.applyTransition(ctx, submission, next, reviewedNow()); err != nil {
		return nil, err
	}
	s.invalidateReadCache(ctx)
	return submission, nil
}

// Deny moves a pending submission to denied. No school side effects.
func (s *SubmissionService) Deny(ctx context.Context, id string) (*models.Submission, error) {
	return s.transition(ctx, id, models.ActionDeny, reviewedNow())
}

// Restore moves a denied submission back to pending and clears the review
// timestamp.
func (s *SubmissionService) Restore(ctx context.Context, id string) (*models.Submission, error) {
	return s.transition(ctx, id, models.ActionRestore, nil)
}

func (s *SubmissionService) transition(ctx context.Context, id string, action models.ModerationAction, reviewedAt *time.Time) (*models.Submission, error) {
	submission, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	next, ok := models.NextStatus(submission.Status, action)
	if !ok {
		return nil, transitionError(submission.Status, action)
	}
	if err := s.applyTransition(ctx, submission, next, reviewedAt); err != nil {
		return nil, err
	}
	s.invalidateReadCache(ctx)
	return submission, nil
}

func (s *SubmissionService) applyTransition(ctx context.Context, submission *models.Submission, next models.SubmissionStatus, reviewedAt *time.Time) error {
	if err := s.repo.UpdateStatus(ctx, submission.ID, submission.Status, next, reviewedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// Lost a race with another moderator; the row is no longer in
			// the state this decision was made against.
			return appErrors.Clone(appErrors.ErrInvalidTransition,
				fmt.Sprintf("submission %s is no longer %s", submission.ID, submission.Status))
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update submission status")
	}
	submission.Status = next
	submission.ReviewedAt = reviewedAt
	return nil
}

// BulkRefile re-files previously approved submissions to pending or
// denied. Refiling to denied stamps the review timestamp; to pending
// clears it.
func (s *SubmissionService) BulkRefile(ctx context.Context, req dto.BulkRefileRequest) (int64, error) {
	if err := s.validator.Struct(req); err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid bulk refile payload")
	}

	var action models.ModerationAction
	var reviewedAt *time.Time
	switch req.Status {
	case models.StatusPending:
		action = models.ActionRefilePending
	case models.StatusDenied:
		action = models.ActionRefileDenied
		reviewedAt = reviewedNow()
	default:
		return 0, appErrors.Clone(appErrors.ErrValidation, "refile target must be pending or denied")
	}

	next, ok := models.NextStatus(models.StatusApproved, action)
	if !ok || next != req.Status {
		return 0, transitionError(models.StatusApproved, action)
	}

	moved, err := s.repo.BulkUpdateStatus(ctx, req.IDs, models.StatusApproved, req.Status, reviewedAt)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to refile submissions")
	}
	s.invalidateReadCache(ctx)
	s.logger.Info("bulk refile applied", zap.Int64("moved", moved), zap.String("target", string(req.Status)))
	return moved, nil
}

// MatchToSchool resolves a pending new-school submission to an existing
// school, replacing the pending-name fields and refreshing the local
// currency from the matched school's country.
func (s *SubmissionService) MatchToSchool(ctx context.Context, id, schoolID string) (*models.Submission, error) {
	submission, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if submission.Status != models.StatusPending {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition,
			fmt.Sprintf("cannot match school on a %s submission", submission.Status))
	}

	school, err := s.schools.GetWithCountry(ctx, schoolID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "school not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load school")
	}

	if err := s.repo.LinkSchool(ctx, id, school.ID, school.CurrencyCode); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to link school")
	}

	linked := school.ID
	submission.SchoolID = &linked
	submission.NewSchoolName = nil
	submission.NewSchoolCountry = nil
	submission.LocalCurrencyCode = school.CurrencyCode
	return submission, nil
}

// EditPendingName corrects the free-text school name of a pending,
// unmatched submission before approval.
func (s *SubmissionService) EditPendingName(ctx context.Context, id, name string) error {
	if len(name) < 2 {
		return appErrors.Clone(appErrors.ErrValidation, "school name too short")
	}
	if err := s.repo.UpdatePendingName(ctx, id, name); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrInvalidTransition,
				"submission is not an unmatched pending submission")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to edit school name")
	}
	return nil
}

func (s *SubmissionService) createAndLinkSchool(ctx context.Context, submission *models.Submission) error {
	country, err := s.countries.GetByName(ctx, *submission.NewSchoolCountry)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// Approval proceeds without a school link; an administrator
			// can re-match once the country data is corrected.
			s.logger.Warn("approving submission with unknown country, school not created",
				zap.String("id", submission.ID), zap.String("country", *submission.NewSchoolCountry))
			return nil
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load country")
	}

	school := &models.School{
		Name:            *submission.NewSchoolName,
		NameNormalized:  normalize.Name(*submission.NewSchoolName),
		CountryID:       country.ID,
		IsUserSubmitted: true,
	}
	if err := s.schools.Create(ctx, school); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create school")
	}
	if err := s.repo.LinkSchool(ctx, submission.ID, school.ID, country.CurrencyCode); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to link new school")
	}

	submission.SchoolID = &school.ID
	submission.NewSchoolName = nil
	submission.NewSchoolCountry = nil
	submission.LocalCurrencyCode = country.CurrencyCode
	s.logger.Info("school created from approved submission",
		zap.String("school_id", school.ID), zap.String("submission_id", submission.ID))
	return nil
}

func (s *SubmissionService) invalidateReadCache(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DeleteByPattern(ctx, "read:*"); err != nil {
		s.logger.Warn("read cache invalidation failed", zap.Error(err))
	}
}

func transitionError(current models.SubmissionStatus, action models.ModerationAction) error {
	return appErrors.Clone(appErrors.ErrInvalidTransition,
		fmt.Sprintf("action %s is not legal for status %s", action, current))
}

func reviewedNow() *time.Time {
	now := time.Now().UTC()
	return &now
}
