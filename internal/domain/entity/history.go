package entity

import "time"

// History is the audit entry written for every decision.
// Entries are append-only; a withdrawal never produces one.
type History struct {
	ID           int64     `json:"history_id"`
	AppID        int64     `json:"app_id"`
	TaskID       int64     `json:"task_id"`
	NodeName     string    `json:"node_name"`
	ApproverID   int64     `json:"approver_id"`
	ApproverName string    `json:"approver_name"`
	Action       Action    `json:"action"`
	Comment      string    `json:"comment,omitempty"`
	ApproveTime  time.Time `json:"approve_time"`
	NextNode     string    `json:"next_node"`
	CreatedAt    time.Time `json:"create_time"`
}
