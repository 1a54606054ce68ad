package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/opensalaries/teacherpay-api/internal/dto"
	"github.com/opensalaries/teacherpay-api/internal/models"
	"github.com/opensalaries/teacherpay-api/internal/service"
	appErrors "github.com/opensalaries/teacherpay-api/pkg/errors"
	"github.com/opensalaries/teacherpay-api/pkg/response"
)

// AdminHandler exposes the moderation surface: the review queue, status
// transitions, school corrections, IP inspection and dataset exports.
type AdminHandler struct {
	submissions *service.SubmissionService
	fraud       *service.FraudService
	visitors    *service.VisitorService
	exports     *service.ExportService
	metrics     *service.MetricsService
}

// NewAdminHandler constructs AdminHandler.
func NewAdminHandler(
	submissions *service.SubmissionService,
	fraud *service.FraudService,
	visitors *service.VisitorService,
	exports *service.ExportService,
	metrics *service.MetricsService,
) *AdminHandler {
	return &AdminHandler{
		submissions: submissions,
		fraud:       fraud,
		visitors:    visitors,
		exports:     exports,
		metrics:     metrics,
	}
}

// ListSubmissions godoc
// @Summary List submissions for moderation
// @Tags Admin
// @Produce json
// @Param status query string false "Filter by status"
// @Param limit query int false "Page size"
// @Param offset query int false "Offset"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /admin/submissions [get]
func (h *AdminHandler) ListSubmissions(c *gin.Context) {
	filter := models.SubmissionFilter{
		Status:   models.SubmissionStatus(c.Query("status")),
		SchoolID: c.Query("schoolId"),
	}
	if limit, err := strconv.Atoi(c.DefaultQuery("limit", "50")); err == nil {
		filter.Limit = limit
	}
	if offset, err := strconv.Atoi(c.DefaultQuery("offset", "0")); err == nil {
		filter.Offset = offset
	}

	submissions, err := h.submissions.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, submissions, nil)
}

// GetSubmission godoc
// @Summary Submission detail
// @Tags Admin
// @Produce json
// @Param id path string true "Submission ID"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /admin/submissions/{id} [get]
func (h *AdminHandler) GetSubmission(c *gin.Context) {
	submission, err := h.submissions.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, submission, nil)
}

// Approve godoc
// @Summary Approve a pending submission
// @Tags Admin
// @Produce json
// @Param id path string true "Submission ID"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /admin/submissions/{id}/approve [post]
func (h *AdminHandler) Approve(c *gin.Context) {
	submission, err := h.submissions.Approve(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	h.metrics.RecordModeration(string(models.ActionApprove))
	response.JSON(c, http.StatusOK, submission, nil)
}

// Deny godoc
// @Summary Deny a pending submission
// @Tags Admin
// @Produce json
// @Param id path string true "Submission ID"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /admin/submissions/{id}/deny [post]
func (h *AdminHandler) Deny(c *gin.Context) {
	submission, err := h.submissions.Deny(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	h.metrics.RecordModeration(string(models.ActionDeny))
	response.JSON(c, http.StatusOK, submission, nil)
}

// Restore godoc
// @Summary Restore a denied submission to pending
// @Tags Admin
// @Produce json
// @Param id path string true "Submission ID"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /admin/submissions/{id}/restore [post]
func (h *AdminHandler) Restore(c *gin.Context) {
	submission, err := h.submissions.Restore(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	h.metrics.RecordModeration(string(models.ActionRestore))
	response.JSON(c, http.StatusOK, submission, nil)
}

// BulkRefile godoc
// @Summary Re-file approved submissions to pending or denied
// @Tags Admin
// @Accept json
// @Produce json
// @Param payload body dto.BulkRefileRequest true "Refile payload"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /admin/submissions/refile [post]
func (h *AdminHandler) BulkRefile(c *gin.Context) {
	var req dto.BulkRefileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	moved, err := h.submissions.BulkRefile(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.metrics.RecordModeration("refile")
	response.JSON(c, http.StatusOK, dto.BulkRefileResponse{Moved: moved, Status: req.Status}, nil)
}

// MatchSchool godoc
// @Summary Link a pending submission to an existing school
// @Tags Admin
// @Accept json
// @Produce json
// @Param id path string true "Submission ID"
// @Param payload body dto.MatchSchoolRequest true "Match payload"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /admin/submissions/{id}/match [post]
func (h *AdminHandler) MatchSchool(c *gin.Context) {
	var req dto.MatchSchoolRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	submission, err := h.submissions.MatchToSchool(c.Request.Context(), c.Param("id"), req.SchoolID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, submission, nil)
}

// EditSchoolName godoc
// @Summary Correct the school name of a pending submission
// @Tags Admin
// @Accept json
// @Produce json
// @Param id path string true "Submission ID"
// @Param payload body dto.EditPendingNameRequest true "Name payload"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /admin/submissions/{id}/school-name [patch]
func (h *AdminHandler) EditSchoolName(c *gin.Context) {
	var req dto.EditPendingNameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	if err := h.submissions.EditPendingName(c.Request.Context(), c.Param("id"), req.Name); err != nil {
		response.Error(c, err)
		return
	}
	response.Message(c, http.StatusOK, "school name updated")
}

// LookupIP godoc
// @Summary Full IP reputation payload
// @Tags Admin
// @Produce json
// @Param ip path string true "IP address"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /admin/ip/{ip} [get]
func (h *AdminHandler) LookupIP(c *gin.Context) {
	reputation, err := h.fraud.Lookup(c.Request.Context(), c.Param("ip"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, reputation, nil)
}

// ListVisitors godoc
// @Summary Tracked visitor IPs
// @Tags Admin
// @Produce json
// @Param limit query int false "Result limit"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /admin/visitors [get]
func (h *AdminHandler) ListVisitors(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	visitors, err := h.visitors.List(c.Request.Context(), limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, visitors, nil)
}

// Export godoc
// @Summary Export approved submissions
// @Tags Admin
// @Produce text/csv
// @Produce application/pdf
// @Param format query string true "Export format (csv or pdf)"
// @Success 200 {file} binary
// @Security BearerAuth
// @Router /admin/export [get]
func (h *AdminHandler) Export(c *gin.Context) {
	result, err := h.exports.Generate(c.Request.Context(), service.ExportFormat(c.DefaultQuery("format", "csv")))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+result.Filename+`"`)
	c.Data(http.StatusOK, result.ContentType, result.Data)
}
