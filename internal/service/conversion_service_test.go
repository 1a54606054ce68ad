package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opensalaries/teacherpay-api/internal/models"
	appErrors "github.com/opensalaries/teacherpay-api/pkg/errors"
)

type stubRatesSource struct {
	rates models.RateTable
	err   error
}

func (s *stubRatesSource) GetRates(_ context.Context) (models.RateTable, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.rates, nil
}

func newConversionFixture(rates models.RateTable) *ConversionService {
	svc := NewConversionService(&stubRatesSource{rates: rates})
	svc.now = fixedClock(time.Date(2026, 3, 5, 14, 30, 0, 0, time.UTC))
	return svc
}

func TestConvertUSDSourceProjection(t *testing.T) {
	svc := newConversionFixture(models.RateTable{"USD": 1, "THB": 35, "GBP": 0.78, "EUR": 0.92})

	projection, err := svc.Convert(context.Background(), 45000, "USD", "THB")
	require.NoError(t, err)

	assert.Equal(t, 45000.0, projection.SourceAmount)
	assert.Equal(t, "USD", projection.SourceCurrency)
	assert.Equal(t, 45000.0, projection.USD)
	assert.Equal(t, 35100.0, projection.GBP)
	assert.Equal(t, 41400.0, projection.EUR)
	assert.Equal(t, 1575000.0, projection.Local)
	assert.Equal(t, time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC), projection.RateDate)
}

func TestConvertNonUSDSourceDividesThroughBase(t *testing.T) {
	svc := newConversionFixture(models.RateTable{"USD": 1, "THB": 35, "GBP": 0.78, "EUR": 0.92})

	projection, err := svc.Convert(context.Background(), 1575000, "THB", "THB")
	require.NoError(t, err)

	assert.Equal(t, 45000.0, projection.USD)
	assert.Equal(t, 35100.0, projection.GBP)
	assert.Equal(t, 1575000.0, projection.Local)
}

func TestConvertUnknownSourceCurrency(t *testing.T) {
	svc := newConversionFixture(models.RateTable{"USD": 1})

	_, err := svc.Convert(context.Background(), 100, "XXX", "USD")
	require.Error(t, err)

	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrUnknownCurrency.Code, appErr.Code)
	assert.Contains(t, appErr.Message, "XXX")
}

func TestConvertZeroRateTreatedAsUnknown(t *testing.T) {
	svc := newConversionFixture(models.RateTable{"USD": 1, "ZWL": 0})

	_, err := svc.Convert(context.Background(), 100, "ZWL", "USD")
	require.Error(t, err)

	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrUnknownCurrency.Code, appErr.Code)
}

func TestConvertMissingDisplayRatesDefaultToUnit(t *testing.T) {
	svc := newConversionFixture(models.RateTable{"USD": 1})

	projection, err := svc.Convert(context.Background(), 500, "USD", "THB")
	require.NoError(t, err)
	assert.Equal(t, 500.0, projection.USD)
	assert.Equal(t, 500.0, projection.GBP)
	assert.Equal(t, 500.0, projection.EUR)
	assert.Equal(t, 500.0, projection.Local)
}

func TestConvertRoundsHalfUp(t *testing.T) {
	svc := newConversionFixture(models.RateTable{"USD": 1, "GBP": 0.333333, "EUR": 0.666666})

	projection, err := svc.Convert(context.Background(), 100, "USD", "USD")
	require.NoError(t, err)
	assert.Equal(t, 33.33, projection.GBP)
	assert.Equal(t, 66.67, projection.EUR)
}

func TestConvertRatesFailurePropagates(t *testing.T) {
	svc := NewConversionService(&stubRatesSource{err: appErrors.Clone(appErrors.ErrRateProvider, "provider down")})

	_, err := svc.Convert(context.Background(), 100, "USD", "USD")
	require.Error(t, err)

	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrRateProvider.Code, appErr.Code)
}

func TestConvertRoundTripWithinTolerance(t *testing.T) {
	rates := models.RateTable{"USD": 1, "THB": 35.7214, "GBP": 0.7814, "EUR": 0.9203}
	svc := newConversionFixture(rates)

	forward, err := svc.Convert(context.Background(), 52345.67, "USD", "THB")
	require.NoError(t, err)

	back, err := svc.Convert(context.Background(), forward.Local, "THB", "THB")
	require.NoError(t, err)
	assert.InDelta(t, 52345.67, back.USD, 0.01)
}

func TestConvertUnknownErrorDistinctFromProviderError(t *testing.T) {
	unknown := errors.New("plain failure")
	svc := NewConversionService(&stubRatesSource{err: unknown})

	_, err := svc.Convert(context.Background(), 100, "USD", "USD")
	require.ErrorIs(t, err, unknown)
}
