package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/opensalaries/teacherpay-api/internal/models"
	"github.com/opensalaries/teacherpay-api/pkg/config"
	appErrors "github.com/opensalaries/teacherpay-api/pkg/errors"
)

type rateStore interface {
	GetSnapshot(ctx context.Context, base, periodKey string) (*models.RateSnapshot, error)
	Upsert(ctx context.Context, snapshot *models.RateSnapshot) error
}

// RateProvider fetches the latest rate table for a base currency from the
// remote exchange-rate API.
type RateProvider interface {
	FetchLatest(ctx context.Context, base string) (models.RateTable, error)
}

// CurrencyService serves the month-keyed rate cache. The first call of a
// calendar period fetches from the remote provider and persists a
// snapshot; every later call in that period is served from storage.
// Concurrent first-of-period callers may both hit the provider; the
// snapshot upsert is idempotent and last writer wins, so the race costs
// one redundant fetch and is deliberately not locked away.
type CurrencyService struct {
	store    rateStore
	provider RateProvider
	base     string
	logger   *zap.Logger
	now      func() time.Time
}

// NewCurrencyService constructs the service.
func NewCurrencyService(store rateStore, provider RateProvider, baseCurrency string, logger *zap.Logger) *CurrencyService {
	if baseCurrency == "" {
		baseCurrency = "USD"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CurrencyService{
		store:    store,
		provider: provider,
		base:     baseCurrency,
		logger:   logger,
		now:      time.Now,
	}
}

// BaseCurrency returns the fixed reference currency.
func (s *CurrencyService) BaseCurrency() string {
	return s.base
}

// GetRates returns the rate table valid for the current calendar period.
func (s *CurrencyService) GetRates(ctx context.Context) (models.RateTable, error) {
	period := models.PeriodKey(s.now())

	snapshot, err := s.store.GetSnapshot(ctx, s.base, period)
	if err == nil {
		return snapshot.Rates, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		// Storage trouble is treated as a miss; the provider is the
		// source of truth and the upsert below will retry persistence.
		s.logger.Warn("rate snapshot lookup failed", zap.String("period", period), zap.Error(err))
	}

	rates, err := s.provider.FetchLatest(ctx, s.base)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrRateProvider.Code, appErrors.ErrRateProvider.Status, "failed to fetch exchange rates")
	}

	if err := s.store.Upsert(ctx, &models.RateSnapshot{
		BaseCurrency: s.base,
		PeriodKey:    period,
		Rates:        rates,
		FetchedAt:    s.now().UTC(),
	}); err != nil {
		// The fetched rates are still good; only the cache write failed.
		s.logger.Warn("rate snapshot upsert failed", zap.String("period", period), zap.Error(err))
	}

	return rates, nil
}

// HTTPRateProvider calls the exchangerate-api style endpoint:
// GET {base_url}/{key}/latest/{base} -> {"result":"success","conversion_rates":{...}}.
type HTTPRateProvider struct {
	cfg    config.RatesConfig
	client *http.Client
}

// NewHTTPRateProvider constructs the provider with a bounded client.
func NewHTTPRateProvider(cfg config.RatesConfig) *HTTPRateProvider {
	return &HTTPRateProvider{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

// FetchLatest implements RateProvider.
func (p *HTTPRateProvider) FetchLatest(ctx context.Context, base string) (models.RateTable, error) {
	if p.cfg.APIKey == "" {
		return nil, fmt.Errorf("exchange rate api key not configured")
	}
	url := fmt.Sprintf("%s/%s/latest/%s", p.cfg.BaseURL, p.cfg.APIKey, base)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build rate request: %w", err)
	}

	res, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call rate provider: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("rate provider returned status %d", res.StatusCode)
	}

	var payload struct {
		Result          string           `json:"result"`
		ErrorType       string           `json:"error-type"`
		ConversionRates models.RateTable `json:"conversion_rates"`
	}
	if err := json.NewDecoder(res.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode rate payload: %w", err)
	}
	if payload.Result != "success" {
		return nil, fmt.Errorf("rate provider failed: %s", payload.ErrorType)
	}
	if len(payload.ConversionRates) == 0 {
		return nil, fmt.Errorf("rate provider returned empty table")
	}
	return payload.ConversionRates, nil
}
