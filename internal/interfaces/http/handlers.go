package http

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/approval-workflow/internal/application/service"
	"github.com/garyjia/approval-workflow/internal/domain/apperr"
	"github.com/garyjia/approval-workflow/internal/domain/entity"
	"github.com/garyjia/approval-workflow/pkg/utils"
)

const (
	xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	xlsxExtension   = ".xlsx"
)

// Handlers contains all HTTP request handlers
type Handlers struct {
	services Services
	logger   Logger
}

// NewHandlers creates a new Handlers instance
func NewHandlers(services Services, logger Logger) *Handlers {
	return &Handlers{
		services: services,
		logger:   logger,
	}
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
}

// SubmitLeaveRequest is the body of POST /api/applications/leave
type SubmitLeaveRequest struct {
	LeaveType  int       `json:"leave_type" binding:"required,leave_type"`
	StartTime  time.Time `json:"start_time" binding:"required"`
	EndTime    time.Time `json:"end_time" binding:"required,gtefield=StartTime"`
	Days       float64   `json:"days" binding:"required,gt=0"`
	Reason     string    `json:"reason" binding:"required,notblank,max=500"`
	Attachment string    `json:"attachment" binding:"omitempty,max=255"`
}

// SubmitReimburseRequest is the body of POST /api/applications/reimburse
type SubmitReimburseRequest struct {
	ExpenseType       int        `json:"expense_type" binding:"required,expense_type"`
	Amount            float64    `json:"amount" binding:"required,amount"`
	Reason            string     `json:"reason" binding:"required,notblank,max=500"`
	InvoiceAttachment string     `json:"invoice_attachment" binding:"omitempty,max=255"`
	OccurDate         *time.Time `json:"occur_date"`
}

// DecisionRequest is the body of POST /api/tasks/:id/decision. Action 1 approves, 2 rejects.
type DecisionRequest struct {
	Action  entity.Action `json:"action" binding:"required,oneof=1 2"`
	Comment string        `json:"comment" binding:"max=500"`
}

// PageQuery holds the paging parameters shared by list endpoints
type PageQuery struct {
	PageNum  int `form:"page_num" binding:"omitempty,min=1"`
	PageSize int `form:"page_size" binding:"omitempty,min=1,max=100"`
}

func (q PageQuery) page() service.PageRequest {
	return service.PageRequest{PageNum: q.PageNum, PageSize: q.PageSize}
}

// ApplicationListQuery filters GET /api/applications and its admin variant
type ApplicationListQuery struct {
	Kind   string `form:"app_type" binding:"omitempty,oneof=leave reimburse"`
	Status *int   `form:"status" binding:"omitempty,min=0,max=5"`
	AppNo  string `form:"app_no" binding:"max=32"`
	PageQuery
}

func (q ApplicationListQuery) query() service.ApplicationQuery {
	query := service.ApplicationQuery{
		Kind:        entity.Kind(q.Kind),
		AppNo:       q.AppNo,
		PageRequest: q.page(),
	}
	if q.Status != nil {
		status := entity.ApplicationStatus(*q.Status)
		query.Status = &status
	}
	return query
}

// HistoryQuery filters GET /api/history. Dates are inclusive calendar days.
type HistoryQuery struct {
	SubmitFrom   *time.Time `form:"submit_from" time_format:"2006-01-02"`
	SubmitTo     *time.Time `form:"submit_to" time_format:"2006-01-02"`
	ApproverName string     `form:"approver_name" binding:"max=64"`
	LeaveType    *int       `form:"leave_type" binding:"omitempty,leave_type"`
	ExpenseType  *int       `form:"expense_type" binding:"omitempty,expense_type"`
	Status       *int       `form:"status" binding:"omitempty,min=0,max=5"`
	PageQuery
}

func (q HistoryQuery) filter() service.HistoryFilter {
	filter := service.HistoryFilter{
		SubmitFrom:   q.SubmitFrom,
		ApproverName: q.ApproverName,
		LeaveType:    q.LeaveType,
		ExpenseType:  q.ExpenseType,
		PageRequest:  q.page(),
	}
	if q.SubmitTo != nil {
		endOfDay := q.SubmitTo.Add(24*time.Hour - time.Nanosecond)
		filter.SubmitTo = &endOfDay
	}
	if q.Status != nil {
		status := entity.ApplicationStatus(*q.Status)
		filter.Status = &status
	}
	return filter
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	respondOK(c, http.StatusOK, HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Version:   "1.0.0",
	})
}

// SubmitLeave handles POST /api/applications/leave
func (h *Handlers) SubmitLeave(c *gin.Context) {
	var req SubmitLeaveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	detail := &entity.LeaveDetail{
		LeaveType:  req.LeaveType,
		StartTime:  req.StartTime,
		EndTime:    req.EndTime,
		Days:       req.Days,
		Reason:     utils.SanitizeString(req.Reason),
		Attachment: req.Attachment,
	}
	h.submit(c, detail)
}

// SubmitReimburse handles POST /api/applications/reimburse
func (h *Handlers) SubmitReimburse(c *gin.Context) {
	var req SubmitReimburseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	detail := &entity.ReimburseDetail{
		ExpenseType:       req.ExpenseType,
		Amount:            req.Amount,
		Reason:            utils.SanitizeString(req.Reason),
		InvoiceAttachment: req.InvoiceAttachment,
		OccurDate:         req.OccurDate,
	}
	h.submit(c, detail)
}

func (h *Handlers) submit(c *gin.Context, detail entity.Detail) {
	appID, err := h.services.Applications.Submit(c.Request.Context(), currentUserID(c), detail)
	if err != nil {
		h.respondError(c, "submit application", err)
		return
	}

	respondOK(c, http.StatusCreated, gin.H{"app_id": appID})
}

// Withdraw handles POST /api/applications/:id/withdraw
func (h *Handlers) Withdraw(c *gin.Context) {
	appID, ok := pathID(c)
	if !ok {
		return
	}

	if err := h.services.Applications.Withdraw(c.Request.Context(), appID, currentUserID(c)); err != nil {
		h.respondError(c, "withdraw application", err)
		return
	}

	respondOK(c, http.StatusOK, gin.H{"app_id": appID})
}

// GetApplication handles GET /api/applications/:id for the applicant and its approvers
func (h *Handlers) GetApplication(c *gin.Context) {
	appID, ok := pathID(c)
	if !ok {
		return
	}

	detail, err := h.services.Applications.ViewApplication(c.Request.Context(), appID, currentUserID(c))
	if err != nil {
		h.respondError(c, "get application", err)
		return
	}

	respondOK(c, http.StatusOK, detail)
}

// AdminGetApplication handles GET /api/admin/applications/:id
func (h *Handlers) AdminGetApplication(c *gin.Context) {
	appID, ok := pathID(c)
	if !ok {
		return
	}

	detail, err := h.services.Applications.GetApplicationDetail(c.Request.Context(), appID)
	if err != nil {
		h.respondError(c, "get application", err)
		return
	}

	respondOK(c, http.StatusOK, detail)
}

// ListMyApplications handles GET /api/applications
func (h *Handlers) ListMyApplications(c *gin.Context) {
	var q ApplicationListQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		respondBindError(c, err)
		return
	}

	page, err := h.services.Applications.ListMyApplications(c.Request.Context(), currentUserID(c), q.query())
	if err != nil {
		h.respondError(c, "list applications", err)
		return
	}

	respondOK(c, http.StatusOK, page)
}

// ListAllApplications handles GET /api/admin/applications
func (h *Handlers) ListAllApplications(c *gin.Context) {
	var q ApplicationListQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		respondBindError(c, err)
		return
	}

	page, err := h.services.Applications.ListAllApplications(c.Request.Context(), q.query())
	if err != nil {
		h.respondError(c, "list all applications", err)
		return
	}

	respondOK(c, http.StatusOK, page)
}

// ListTodoTasks handles GET /api/tasks/todo
func (h *Handlers) ListTodoTasks(c *gin.Context) {
	var q PageQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		respondBindError(c, err)
		return
	}

	page, err := h.services.Tasks.ListTodoTasks(c.Request.Context(), currentUserID(c), q.page())
	if err != nil {
		h.respondError(c, "list todo tasks", err)
		return
	}

	respondOK(c, http.StatusOK, page)
}

// ListDoneTasks handles GET /api/tasks/done
func (h *Handlers) ListDoneTasks(c *gin.Context) {
	var q PageQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		respondBindError(c, err)
		return
	}

	page, err := h.services.Tasks.ListDoneTasks(c.Request.Context(), currentUserID(c), q.page())
	if err != nil {
		h.respondError(c, "list done tasks", err)
		return
	}

	respondOK(c, http.StatusOK, page)
}

// Decide handles POST /api/tasks/:id/decision
func (h *Handlers) Decide(c *gin.Context) {
	taskID, ok := pathID(c)
	if !ok {
		return
	}

	var req DecisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	err := h.services.Decisions.Decide(c.Request.Context(), service.DecideCommand{
		TaskID:     taskID,
		ApproverID: currentUserID(c),
		Action:     req.Action,
		Comment:    utils.SanitizeString(req.Comment),
	})
	if err != nil {
		h.respondError(c, "decide task", err)
		return
	}

	respondOK(c, http.StatusOK, gin.H{"task_id": taskID, "action": req.Action.String()})
}

// ListHistory handles GET /api/history
func (h *Handlers) ListHistory(c *gin.Context) {
	var q HistoryQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		respondBindError(c, err)
		return
	}

	page, err := h.services.History.ListHistory(c.Request.Context(), currentUserID(c), q.filter())
	if err != nil {
		h.respondError(c, "list history", err)
		return
	}

	respondOK(c, http.StatusOK, page)
}

// ExportHistory handles GET /api/history/export; paging parameters are ignored
func (h *Handlers) ExportHistory(c *gin.Context) {
	var q HistoryQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		respondBindError(c, err)
		return
	}

	userID := currentUserID(c)
	var buf bytes.Buffer
	if err := h.services.History.ExportHistory(c.Request.Context(), userID, q.filter(), &buf); err != nil {
		h.respondError(c, "export history", err)
		return
	}

	contentType, extension := xlsxContentType, xlsxExtension
	if h.services.Exporter != nil {
		contentType, extension = h.services.Exporter.ContentType(), h.services.Exporter.FileExtension()
	}
	filename := fmt.Sprintf("history_%d_%s%s", userID, time.Now().Format("20060102"), extension)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, contentType, buf.Bytes())
}

// Summary handles GET /api/summary
func (h *Handlers) Summary(c *gin.Context) {
	summary, err := h.services.History.Summarize(c.Request.Context(), currentUserID(c))
	if err != nil {
		h.respondError(c, "summarize applications", err)
		return
	}

	respondOK(c, http.StatusOK, summary)
}

// pathID parses the :id parameter, answering 400 itself when it is not a positive integer
func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, Response{
			Success: false,
			Error:   "invalid id " + strconv.Quote(c.Param("id")),
			Code:    apperr.KindValidation.String(),
		})
		return 0, false
	}
	return id, true
}
