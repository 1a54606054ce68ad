package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/opensalaries/teacherpay-api/internal/dto"
	"github.com/opensalaries/teacherpay-api/internal/models"
	appErrors "github.com/opensalaries/teacherpay-api/pkg/errors"
)

type countryReadStore interface {
	GetByID(ctx context.Context, id string) (*models.Country, error)
	List(ctx context.Context) ([]models.Country, error)
	ListWithApprovedData(ctx context.Context) ([]models.CountryStats, error)
}

type countrySchoolStore interface {
	ListWithApprovedByCountry(ctx context.Context, countryID string) ([]models.School, error)
}

type schoolSalaryAggregator interface {
	AverageGross(ctx context.Context, schoolID string) (*models.SalaryAverages, error)
}

// StatsService serves the country browse pages.
type StatsService struct {
	countries countryReadStore
	schools   countrySchoolStore
	salaries  schoolSalaryAggregator
	cache     readCache
	logger    *zap.Logger
	cacheTTL  time.Duration
}

// NewStatsService constructs the service.
func NewStatsService(countries countryReadStore, schools countrySchoolStore, salaries schoolSalaryAggregator, cache readCache, logger *zap.Logger, cacheTTL time.Duration) *StatsService {
	if cacheTTL <= 0 {
		cacheTTL = 5 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StatsService{countries: countries, schools: schools, salaries: salaries, cache: cache, logger: logger, cacheTTL: cacheTTL}
}

// Countries lists every country in the reference set.
func (s *StatsService) Countries(ctx context.Context) ([]models.Country, error) {
	countries, err := s.countries.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list countries")
	}
	return countries, nil
}

// CountriesWithData lists only countries that have at least one school
// with approved salary data, with school counts.
func (s *StatsService) CountriesWithData(ctx context.Context) ([]models.CountryStats, error) {
	cacheKey := "read:countries:with-data"
	var cached []models.CountryStats
	if s.cache != nil {
		if err := s.cache.Get(ctx, cacheKey, &cached); err == nil {
			return cached, nil
		}
	}

	stats, err := s.countries.ListWithApprovedData(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list countries with data")
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, cacheKey, stats, s.cacheTTL); err != nil {
			s.logger.Warn("country stats cache write failed", zap.Error(err))
		}
	}
	return stats, nil
}

// CountrySchools lists a country's schools that carry approved data,
// each with its teacher-tier averages.
func (s *StatsService) CountrySchools(ctx context.Context, countryID string) ([]dto.CountrySchool, error) {
	if _, err := s.countries.GetByID(ctx, countryID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "country not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load country")
	}

	cacheKey := "read:countries:schools:" + countryID
	var cached []dto.CountrySchool
	if s.cache != nil {
		if err := s.cache.Get(ctx, cacheKey, &cached); err == nil {
			return cached, nil
		}
	}

	schools, err := s.schools.ListWithApprovedByCountry(ctx, countryID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list country schools")
	}

	results := make([]dto.CountrySchool, 0, len(schools))
	for _, school := range schools {
		averages, err := s.salaries.AverageGross(ctx, school.ID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to compute averages")
		}
		results = append(results, dto.CountrySchool{School: school, Averages: averages})
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, cacheKey, results, s.cacheTTL); err != nil {
			s.logger.Warn("country schools cache write failed", zap.Error(err))
		}
	}
	return results, nil
}
