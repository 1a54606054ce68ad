package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/opensalaries/teacherpay-api/internal/dto"
	"github.com/opensalaries/teacherpay-api/internal/service"
	appErrors "github.com/opensalaries/teacherpay-api/pkg/errors"
	"github.com/opensalaries/teacherpay-api/pkg/response"
)

// SubmissionHandler exposes the public salary submission endpoint.
type SubmissionHandler struct {
	submissions *service.SubmissionService
	metrics     *service.MetricsService
}

// NewSubmissionHandler constructs SubmissionHandler.
func NewSubmissionHandler(submissions *service.SubmissionService, metrics *service.MetricsService) *SubmissionHandler {
	return &SubmissionHandler{submissions: submissions, metrics: metrics}
}

// Create godoc
// @Summary Submit a salary report
// @Tags Submissions
// @Accept json
// @Produce json
// @Param payload body dto.CreateSubmissionRequest true "Submission payload"
// @Success 201 {object} response.Envelope
// @Router /submissions [post]
func (h *SubmissionHandler) Create(c *gin.Context) {
	var req dto.CreateSubmissionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	submission, err := h.submissions.Create(c.Request.Context(), req, c.ClientIP())
	if err != nil {
		h.metrics.RecordSubmission("rejected", false)
		response.Error(c, err)
		return
	}

	h.metrics.RecordSubmission("accepted", submission.Fraud.Flagged)
	response.Created(c, dto.CreateSubmissionResponse{ID: submission.ID, Status: submission.Status})
}
