package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/opensalaries/teacherpay-api/internal/models"
	appErrors "github.com/opensalaries/teacherpay-api/pkg/errors"
)

type mockRateStore struct {
	snapshots map[string]*models.RateSnapshot
	getErr    error
	upsertErr error
	upserts   int
}

func (m *mockRateStore) GetSnapshot(_ context.Context, base, periodKey string) (*models.RateSnapshot, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	snapshot, ok := m.snapshots[base+"|"+periodKey]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return snapshot, nil
}

func (m *mockRateStore) Upsert(_ context.Context, snapshot *models.RateSnapshot) error {
	m.upserts++
	if m.upsertErr != nil {
		return m.upsertErr
	}
	if m.snapshots == nil {
		m.snapshots = make(map[string]*models.RateSnapshot)
	}
	m.snapshots[snapshot.BaseCurrency+"|"+snapshot.PeriodKey] = snapshot
	return nil
}

type mockRateProvider struct {
	rates models.RateTable
	err   error
	calls int
}

func (m *mockRateProvider) FetchLatest(_ context.Context, _ string) (models.RateTable, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return m.rates, nil
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestGetRatesFetchesOncePerPeriod(t *testing.T) {
	store := &mockRateStore{}
	provider := &mockRateProvider{rates: models.RateTable{"USD": 1, "GBP": 0.78}}
	svc := NewCurrencyService(store, provider, "USD", zap.NewNop())
	svc.now = fixedClock(time.Date(2026, 3, 5, 10, 0, 0, 0, time.UTC))

	for i := 0; i < 3; i++ {
		rates, err := svc.GetRates(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 0.78, rates["GBP"])
	}

	assert.Equal(t, 1, provider.calls)
	assert.Equal(t, 1, store.upserts)
	assert.Contains(t, store.snapshots, "USD|2026-03-01")
}

func TestGetRatesNewPeriodTriggersRefetch(t *testing.T) {
	store := &mockRateStore{}
	provider := &mockRateProvider{rates: models.RateTable{"USD": 1}}
	svc := NewCurrencyService(store, provider, "USD", zap.NewNop())

	svc.now = fixedClock(time.Date(2026, 3, 31, 23, 0, 0, 0, time.UTC))
	_, err := svc.GetRates(context.Background())
	require.NoError(t, err)

	svc.now = fixedClock(time.Date(2026, 4, 1, 1, 0, 0, 0, time.UTC))
	_, err = svc.GetRates(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, provider.calls)
	assert.Contains(t, store.snapshots, "USD|2026-03-01")
	assert.Contains(t, store.snapshots, "USD|2026-04-01")
}

func TestGetRatesProviderFailureSurfacesRateError(t *testing.T) {
	store := &mockRateStore{}
	provider := &mockRateProvider{err: errors.New("upstream 503")}
	svc := NewCurrencyService(store, provider, "USD", zap.NewNop())

	_, err := svc.GetRates(context.Background())
	require.Error(t, err)

	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrRateProvider.Code, appErr.Code)
}

func TestGetRatesUpsertFailureStillReturnsRates(t *testing.T) {
	store := &mockRateStore{upsertErr: errors.New("db down")}
	provider := &mockRateProvider{rates: models.RateTable{"USD": 1, "EUR": 0.92}}
	svc := NewCurrencyService(store, provider, "USD", zap.NewNop())

	rates, err := svc.GetRates(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0.92, rates["EUR"])
}

func TestGetRatesStorageReadFailureFallsThroughToProvider(t *testing.T) {
	store := &mockRateStore{getErr: errors.New("connection reset")}
	provider := &mockRateProvider{rates: models.RateTable{"USD": 1}}
	svc := NewCurrencyService(store, provider, "USD", zap.NewNop())

	rates, err := svc.GetRates(context.Background())
	require.NoError(t, err)
	assert.Equal(t, float64(1), rates["USD"])
	assert.Equal(t, 1, provider.calls)
}

func TestPeriodKeyIsFirstOfMonthUTC(t *testing.T) {
	// Early April 1st in UTC+7 is still March 31st in UTC.
	loc := time.FixedZone("UTC+7", 7*3600)
	assert.Equal(t, "2026-03-01", models.PeriodKey(time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)))
	assert.Equal(t, "2026-03-01", models.PeriodKey(time.Date(2026, 4, 1, 5, 0, 0, 0, loc)))
}
