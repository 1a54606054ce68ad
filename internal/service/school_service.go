package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/opensalaries/teacherpay-api/internal/dto"
	"github.com/opensalaries/teacherpay-api/internal/models"
	"github.com/opensalaries/teacherpay-api/internal/normalize"
	appErrors "github.com/opensalaries/teacherpay-api/pkg/errors"
)

type schoolReadStore interface {
	GetWithCountry(ctx context.Context, id string) (*models.SchoolWithCountry, error)
	SearchNormalized(ctx context.Context, normalized string, countryID string, limit int) ([]models.SchoolWithCountry, error)
}

type salaryAggregator interface {
	AverageGross(ctx context.Context, schoolID string) (*models.SalaryAverages, error)
	List(ctx context.Context, filter models.SubmissionFilter) ([]models.Submission, error)
}

type readCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

// SchoolServiceConfig tunes search behaviour.
type SchoolServiceConfig struct {
	SearchLimit int
	CacheTTL    time.Duration
}

// SchoolService serves the public school pages: autocomplete search,
// school detail with averages and the approved salary table.
type SchoolService struct {
	schools  schoolReadStore
	salaries salaryAggregator
	cache    readCache
	logger   *zap.Logger
	cfg      SchoolServiceConfig
}

// NewSchoolService constructs the service with sane defaults.
func NewSchoolService(schools schoolReadStore, salaries salaryAggregator, cache readCache, logger *zap.Logger, cfg SchoolServiceConfig) *SchoolService {
	if cfg.SearchLimit <= 0 {
		cfg.SearchLimit = 20
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 5 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SchoolService{schools: schools, salaries: salaries, cache: cache, logger: logger, cfg: cfg}
}

// Search runs normalized autocomplete over the catalog. Queries are
// canonicalized first so "St Andrews Intl" and "Saint Andrew's
// International" hit the same cache entry and the same rows.
func (s *SchoolService) Search(ctx context.Context, query, countryID string) ([]dto.SchoolSearchResult, error) {
	normalized := normalize.Name(query)
	if len(normalized) < 2 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "search query too short")
	}

	cacheKey := fmt.Sprintf("read:schools:search:%s:%s", countryID, strings.ReplaceAll(normalized, " ", "+"))
	var cached []dto.SchoolSearchResult
	if s.cache != nil {
		if err := s.cache.Get(ctx, cacheKey, &cached); err == nil {
			return cached, nil
		}
	}

	schools, err := s.schools.SearchNormalized(ctx, normalized, countryID, s.cfg.SearchLimit)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "school search failed")
	}

	results := make([]dto.SchoolSearchResult, len(schools))
	for i, school := range schools {
		results[i] = dto.SchoolSearchResult{
			ID:          school.ID,
			Name:        school.Name,
			CountryID:   school.CountryID,
			CountryName: school.CountryName,
		}
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, cacheKey, results, s.cfg.CacheTTL); err != nil {
			s.logger.Warn("search cache write failed", zap.Error(err))
		}
	}
	return results, nil
}

// Detail returns a school with its teacher-tier salary averages. Schools
// with no approved teacher-tier data have nil averages.
func (s *SchoolService) Detail(ctx context.Context, id string) (*dto.SchoolDetail, error) {
	cacheKey := "read:schools:detail:" + id
	var cached dto.SchoolDetail
	if s.cache != nil {
		if err := s.cache.Get(ctx, cacheKey, &cached); err == nil {
			return &cached, nil
		}
	}

	school, err := s.schools.GetWithCountry(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "school not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load school")
	}

	averages, err := s.salaries.AverageGross(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to compute averages")
	}

	detail := &dto.SchoolDetail{SchoolWithCountry: *school, Averages: averages}
	if s.cache != nil {
		if err := s.cache.Set(ctx, cacheKey, detail, s.cfg.CacheTTL); err != nil {
			s.logger.Warn("detail cache write failed", zap.Error(err))
		}
	}
	return detail, nil
}

// Submissions returns the approved salary table for a school, ordered by
// position tier.
func (s *SchoolService) Submissions(ctx context.Context, schoolID string) ([]models.Submission, error) {
	submissions, err := s.salaries.List(ctx, models.SubmissionFilter{
		Status:   models.StatusApproved,
		SchoolID: schoolID,
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list school submissions")
	}
	sort.SliceStable(submissions, func(i, j int) bool {
		return submissions[i].Position.Rank() < submissions[j].Position.Rank()
	})
	return submissions, nil
}
