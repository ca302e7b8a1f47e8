package entity

import (
	"time"
)

// Kind tags an application with the type of its detail record.
// A new kind needs a label here, a detail table and a case in the detail repository.
type Kind string

const (
	KindLeave     Kind = "leave"
	KindReimburse Kind = "reimburse"
)

var kindLabels = map[Kind]string{
	KindLeave:     "请假申请",
	KindReimburse: "报销申请",
}

// Label returns the display label used in application titles
func (k Kind) Label() string {
	if label, ok := kindLabels[k]; ok {
		return label
	}
	return string(k)
}

// IsValid reports whether k is a known kind
func (k Kind) IsValid() bool {
	_, ok := kindLabels[k]
	return ok
}

// String returns the kind tag
func (k Kind) String() string {
	return string(k)
}

// Detail is the type-specific payload of an application.
// It is written once together with its application and never updated.
type Detail interface {
	Kind() Kind
	// Purpose is the free-text reason used to derive the application title
	Purpose() string
	// BindApplication links the detail to its owning application, created at at
	BindApplication(appID int64, at time.Time)
}

// LeaveDetail holds the fields of a leave request
type LeaveDetail struct {
	ID         int64     `json:"leave_id"`
	AppID      int64     `json:"app_id"`
	LeaveType  int       `json:"leave_type"` // 1=personal 2=sick 3=annual 4=compensatory
	StartTime  time.Time `json:"start_time"`
	EndTime    time.Time `json:"end_time"`
	Days       float64   `json:"days"`
	Reason     string    `json:"reason"`
	Attachment string    `json:"attachment,omitempty"`
	CreatedAt  time.Time `json:"create_time"`
}

func (d *LeaveDetail) Kind() Kind      { return KindLeave }
func (d *LeaveDetail) Purpose() string { return d.Reason }

func (d *LeaveDetail) BindApplication(appID int64, at time.Time) {
	d.AppID = appID
	d.CreatedAt = at
}

// ReimburseDetail holds the fields of an expense claim
type ReimburseDetail struct {
	ID                int64      `json:"reimburse_id"`
	AppID             int64      `json:"app_id"`
	ExpenseType       int        `json:"expense_type"` // 1=travel 2=meal 3=office 4=other
	Amount            float64    `json:"amount"`
	Reason            string     `json:"reason"`
	InvoiceAttachment string     `json:"invoice_attachment"`
	OccurDate         *time.Time `json:"occur_date,omitempty"`
	CreatedAt         time.Time  `json:"create_time"`
}

func (d *ReimburseDetail) Kind() Kind      { return KindReimburse }
func (d *ReimburseDetail) Purpose() string { return d.Reason }

func (d *ReimburseDetail) BindApplication(appID int64, at time.Time) {
	d.AppID = appID
	d.CreatedAt = at
}

// Leave type constants
const (
	LeaveTypePersonal     = 1
	LeaveTypeSick         = 2
	LeaveTypeAnnual       = 3
	LeaveTypeCompensatory = 4
)

// Expense type constants
const (
	ExpenseTypeTravel = 1
	ExpenseTypeMeal   = 2
	ExpenseTypeOffice = 3
	ExpenseTypeOther  = 4
)

var leaveTypeNames = map[int]string{
	LeaveTypePersonal:     "事假",
	LeaveTypeSick:         "病假",
	LeaveTypeAnnual:       "年假",
	LeaveTypeCompensatory: "调休",
}

var expenseTypeNames = map[int]string{
	ExpenseTypeTravel: "差旅费",
	ExpenseTypeMeal:   "餐饮费",
	ExpenseTypeOffice: "办公费",
	ExpenseTypeOther:  "其他",
}

// LeaveTypeName returns the display name of a leave type, or "" if unknown
func LeaveTypeName(t int) string {
	return leaveTypeNames[t]
}

// ExpenseTypeName returns the display name of an expense type, or "" if unknown
func ExpenseTypeName(t int) string {
	return expenseTypeNames[t]
}

// IsValidLeaveType reports whether t is a known leave type
func IsValidLeaveType(t int) bool {
	_, ok := leaveTypeNames[t]
	return ok
}

// IsValidExpenseType reports whether t is a known expense type
func IsValidExpenseType(t int) bool {
	_, ok := expenseTypeNames[t]
	return ok
}
