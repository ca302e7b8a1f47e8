package entity

import "time"

// Task is one unit of pending approval work.
// The assignee is resolved when the task is opened and never changes.
type Task struct {
	ID           int64      `json:"task_id"`
	AppID        int64      `json:"app_id"`
	NodeName     string     `json:"node_name"`
	NodeIndex    int        `json:"node_index"`
	AssigneeID   int64      `json:"assignee_id"`
	AssigneeName string     `json:"assignee_name"`
	Status       TaskStatus `json:"status"`
	CreatedAt    time.Time  `json:"create_time"`
	FinishTime   *time.Time `json:"finish_time,omitempty"`
}

// IsOpen reports whether the task still awaits a decision
func (t *Task) IsOpen() bool {
	return t.Status == TaskStatusOpen
}
