package entity

import "time"

// Page is one page of a paginated result
type Page[T any] struct {
	Records  []T   `json:"records"`
	Total    int64 `json:"total"`
	PageNum  int   `json:"page_num"`
	PageSize int   `json:"page_size"`
}

// ApplicationView is a list row for an application
type ApplicationView struct {
	ID            int64             `json:"app_id"`
	AppNo         string            `json:"app_no"`
	Kind          Kind              `json:"app_type"`
	Title         string            `json:"title"`
	ApplicantName string            `json:"applicant_name"`
	DeptName      string            `json:"dept_name"`
	Status        ApplicationStatus `json:"status"`
	CurrentNode   string            `json:"current_node,omitempty"`
	SubmitTime    time.Time         `json:"submit_time"`
	FinishTime    *time.Time        `json:"finish_time,omitempty"`
}

// HistoryView joins an application with its latest decision and detail fields
type HistoryView struct {
	AppID         int64             `json:"app_id"`
	AppNo         string            `json:"app_no"`
	Kind          Kind              `json:"app_type"`
	Title         string            `json:"title"`
	Status        ApplicationStatus `json:"status"`
	ApplicantName string            `json:"applicant_name"`
	DeptName      string            `json:"dept_name"`
	CurrentNode   string            `json:"current_node,omitempty"`
	ApproverName  string            `json:"approver_name,omitempty"`
	Action        *Action           `json:"action,omitempty"`
	Comment       string            `json:"comment,omitempty"`
	LeaveType     *int              `json:"leave_type,omitempty"`
	LeaveDays     *float64          `json:"leave_days,omitempty"`
	ExpenseType   *int              `json:"expense_type,omitempty"`
	ExpenseAmount *float64          `json:"expense_amount,omitempty"`
	SubmitTime    time.Time         `json:"submit_time"`
	ApproveTime   *time.Time        `json:"approve_time,omitempty"`
	FinishTime    *time.Time        `json:"finish_time,omitempty"`
}

// TaskView is a todo/done list row
type TaskView struct {
	TaskID        int64      `json:"task_id"`
	AppID         int64      `json:"app_id"`
	AppNo         string     `json:"app_no"`
	Kind          Kind       `json:"app_type"`
	Title         string     `json:"title"`
	ApplicantName string     `json:"applicant_name"`
	NodeName      string     `json:"node_name"`
	CreatedAt     time.Time  `json:"create_time"`
	Action        *Action    `json:"action,omitempty"`
	Comment       string     `json:"comment,omitempty"`
	FinishTime    *time.Time `json:"finish_time,omitempty"`
}

// ApplicationDetail is an application with its detail record and audit trail
type ApplicationDetail struct {
	Application *Application `json:"application"`
	Detail      Detail       `json:"detail"`
	History     []*History   `json:"history"`
}

// Summary aggregates a user's applications
type Summary struct {
	UserID               int64      `json:"user_id"`
	RealName             string     `json:"real_name"`
	DeptName             string     `json:"dept_name"`
	PostName             string     `json:"post_name"`
	TotalCount           int64      `json:"total_count"`
	PendingCount         int64      `json:"pending_count"`
	ApprovedCount        int64      `json:"approved_count"`
	RejectedCount        int64      `json:"rejected_count"`
	WithdrawnCount       int64      `json:"withdrawn_count"`
	LeaveCount           int64      `json:"leave_count"`
	ReimburseCount       int64      `json:"reimburse_count"`
	TotalLeaveDays       float64    `json:"total_leave_days"`
	TotalReimburseAmount float64    `json:"total_reimburse_amount"`
	ApprovalRate         float64    `json:"approval_rate"`
	LastSubmitTime       *time.Time `json:"last_submit_time,omitempty"`
}
