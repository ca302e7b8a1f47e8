package entity

import "time"

// User is a directory user. The workflow only reads users.
type User struct {
	ID        int64     `json:"user_id"`
	Username  string    `json:"username"`
	RealName  string    `json:"real_name"`
	DeptID    int64     `json:"dept_id"`
	PostID    int64     `json:"post_id"`
	Status    int       `json:"status"`
	Roles     []string  `json:"roles,omitempty"`
	CreatedAt time.Time `json:"create_time"`
}

// IsActive reports whether the user may take part in a workflow
func (u *User) IsActive() bool {
	return u.Status == UserStatusActive
}

// HasRole reports whether the user holds roleCode
func (u *User) HasRole(roleCode string) bool {
	for _, r := range u.Roles {
		if r == roleCode {
			return true
		}
	}
	return false
}

// RoleAdmin grants the read-only administrative views
const RoleAdmin = "admin"

// Dept is a department
type Dept struct {
	ID       int64  `json:"dept_id"`
	ParentID int64  `json:"parent_id"`
	Name     string `json:"dept_name"`
	LeaderID int64  `json:"leader_id"`
	Status   int    `json:"status"`
}

// Post is a job post
type Post struct {
	ID     int64  `json:"post_id"`
	Code   string `json:"post_code"`
	Name   string `json:"post_name"`
	Status int    `json:"status"`
}
