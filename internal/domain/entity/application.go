package entity

import "time"

// Application is the subject of the approval workflow
type Application struct {
	ID          int64             `json:"app_id"`
	AppNo       string            `json:"app_no"`
	Kind        Kind              `json:"app_type"`
	Title       string            `json:"title"`
	ApplicantID int64             `json:"applicant_id"`
	DeptID      int64             `json:"dept_id"`
	Status      ApplicationStatus `json:"status"`
	CurrentNode string            `json:"current_node,omitempty"`
	NodeIndex   int               `json:"node_index"`
	SubmitTime  time.Time         `json:"submit_time"`
	FinishTime  *time.Time        `json:"finish_time,omitempty"`
	DelFlag     bool              `json:"-"`
	CreatedAt   time.Time         `json:"create_time"`
	UpdatedAt   time.Time         `json:"update_time"`
}

// Finish moves the application into a terminal status
func (a *Application) Finish(status ApplicationStatus, at time.Time) {
	a.Status = status
	a.CurrentNode = ""
	a.FinishTime = &at
}
