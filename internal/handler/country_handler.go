package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/opensalaries/teacherpay-api/internal/service"
	"github.com/opensalaries/teacherpay-api/pkg/response"
)

// CountryHandler exposes country browse endpoints.
type CountryHandler struct {
	stats *service.StatsService
}

// NewCountryHandler constructs CountryHandler.
func NewCountryHandler(stats *service.StatsService) *CountryHandler {
	return &CountryHandler{stats: stats}
}

// List godoc
// @Summary List all countries
// @Tags Countries
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /countries [get]
func (h *CountryHandler) List(c *gin.Context) {
	countries, err := h.stats.Countries(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, countries, nil)
}

// ListWithData godoc
// @Summary Countries with approved salary data
// @Tags Countries
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /countries/with-data [get]
func (h *CountryHandler) ListWithData(c *gin.Context) {
	stats, err := h.stats.CountriesWithData(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, stats, nil)
}

// Schools godoc
// @Summary Schools with approved data in a country
// @Tags Countries
// @Produce json
// @Param id path string true "Country ID"
// @Success 200 {object} response.Envelope
// @Router /countries/{id}/schools [get]
func (h *CountryHandler) Schools(c *gin.Context) {
	schools, err := h.stats.CountrySchools(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, schools, nil)
}
