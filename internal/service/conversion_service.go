package service

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/opensalaries/teacherpay-api/internal/models"
	appErrors "github.com/opensalaries/teacherpay-api/pkg/errors"
)

type ratesSource interface {
	GetRates(ctx context.Context) (models.RateTable, error)
}

// ConversionService projects an amount into the three display currencies
// plus the submission's local currency, using the current period's rate
// snapshot. All rates are relative to the base currency (USD), so the
// amount is first divided into base and then multiplied out.
type ConversionService struct {
	rates ratesSource
	now   func() time.Time
}

// NewConversionService constructs the service.
func NewConversionService(rates ratesSource) *ConversionService {
	return &ConversionService{rates: rates, now: time.Now}
}

// Convert builds the four-way projection for an amount. The source
// currency must have a rate entry; GBP, EUR and the local currency
// degrade to rate 1 when absent since local output is best-effort
// metadata. Outputs are rounded half-up to 2 decimal places.
func (s *ConversionService) Convert(ctx context.Context, amount float64, fromCurrency, localCurrencyCode string) (*models.MoneyProjection, error) {
	rates, err := s.rates.GetRates(ctx)
	if err != nil {
		return nil, err
	}

	fromRate, ok := rates[fromCurrency]
	if !ok || fromRate == 0 {
		return nil, appErrors.Clone(appErrors.ErrUnknownCurrency, fmt.Sprintf("unknown currency: %s", fromCurrency))
	}

	amountInBase := amount / fromRate

	now := s.now().UTC()
	return &models.MoneyProjection{
		SourceAmount:   amount,
		SourceCurrency: fromCurrency,
		USD:            round2(amountInBase),
		GBP:            round2(amountInBase * rateOrUnit(rates, "GBP")),
		EUR:            round2(amountInBase * rateOrUnit(rates, "EUR")),
		Local:          round2(amountInBase * rateOrUnit(rates, localCurrencyCode)),
		RateDate:       time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC),
	}, nil
}

func rateOrUnit(rates models.RateTable, code string) float64 {
	if rate, ok := rates[code]; ok && rate != 0 {
		return rate
	}
	return 1
}

// round2 rounds half away from zero to 2 decimal places, matching the
// documented half-up behaviour for the positive amounts this API handles.
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
