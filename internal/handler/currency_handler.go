package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/opensalaries/teacherpay-api/internal/dto"
	"github.com/opensalaries/teacherpay-api/internal/service"
	"github.com/opensalaries/teacherpay-api/pkg/response"
)

// CurrencyHandler exposes the current period's exchange rates.
type CurrencyHandler struct {
	currency *service.CurrencyService
	metrics  *service.MetricsService
}

// NewCurrencyHandler constructs CurrencyHandler.
func NewCurrencyHandler(currency *service.CurrencyService, metrics *service.MetricsService) *CurrencyHandler {
	return &CurrencyHandler{currency: currency, metrics: metrics}
}

// Rates godoc
// @Summary Current period exchange rates
// @Tags Currency
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /currency/rates [get]
func (h *CurrencyHandler) Rates(c *gin.Context) {
	rates, err := h.currency.GetRates(c.Request.Context())
	if err != nil {
		h.metrics.RecordRateFetch("error")
		response.Error(c, err)
		return
	}
	h.metrics.RecordRateFetch("ok")
	response.JSON(c, http.StatusOK, dto.RatesResponse{Base: h.currency.BaseCurrency(), Rates: rates}, nil)
}
