package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/opensalaries/teacherpay-api/internal/service"
	"github.com/opensalaries/teacherpay-api/pkg/response"
)

// SchoolHandler exposes the public school read endpoints.
type SchoolHandler struct {
	schools *service.SchoolService
}

// NewSchoolHandler constructs SchoolHandler.
func NewSchoolHandler(schools *service.SchoolService) *SchoolHandler {
	return &SchoolHandler{schools: schools}
}

// Search godoc
// @Summary Autocomplete school search
// @Tags Schools
// @Produce json
// @Param q query string true "Search query"
// @Param countryId query string false "Restrict to a country"
// @Success 200 {object} response.Envelope
// @Router /schools/search [get]
func (h *SchoolHandler) Search(c *gin.Context) {
	results, err := h.schools.Search(c.Request.Context(), strings.TrimSpace(c.Query("q")), c.Query("countryId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, results, nil)
}

// Get godoc
// @Summary School detail with salary averages
// @Tags Schools
// @Produce json
// @Param id path string true "School ID"
// @Success 200 {object} response.Envelope
// @Router /schools/{id} [get]
func (h *SchoolHandler) Get(c *gin.Context) {
	detail, err := h.schools.Detail(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, detail, nil)
}

// Submissions godoc
// @Summary Approved salary table for a school
// @Tags Schools
// @Produce json
// @Param id path string true "School ID"
// @Success 200 {object} response.Envelope
// @Router /schools/{id}/submissions [get]
func (h *SchoolHandler) Submissions(c *gin.Context) {
	submissions, err := h.schools.Submissions(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, submissions, nil)
}
