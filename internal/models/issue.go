package models

import (
	"time"

	"github.com/google/uuid"
)

type IssueStatus string

const (
	IssueStatusOpen     IssueStatus = "open"
	IssueStatusResolved IssueStatus = "resolved"
	IssueStatusClosed   IssueStatus = "closed"
	IssueStatusReopened IssueStatus = "reopened"
)

type IssueCategory string

const (
	CategoryUploadOrSave  IssueCategory = "Upload or Save"
	CategoryPerformance   IssueCategory = "Performance"
	CategoryWorkflow      IssueCategory = "Workflow"
	CategoryDisplayOrView IssueCategory = "Display or View"
	CategoryLoginOrAccess IssueCategory = "Login or Access"
	CategoryOther         IssueCategory = "Other"
)

// AllCategories lists the closed category set in a fixed order.
func AllCategories() []IssueCategory {
	return []IssueCategory{
		CategoryUploadOrSave,
		CategoryPerformance,
		CategoryWorkflow,
		CategoryDisplayOrView,
		CategoryLoginOrAccess,
		CategoryOther,
	}
}

// IssueRecord mirrors the ticket rows owned by the ticket lifecycle service.
// The matching core only ever reads these; status transitions arrive as
// events. An empty Category means the ticket was never classified.
type IssueRecord struct {
	ID          uuid.UUID     `db:"id"`
	TenantID    string        `db:"tenant_id"`
	Category    IssueCategory `db:"category"`
	Subject     string        `db:"subject"`
	Description string        `db:"description"`
	Status      IssueStatus   `db:"status"`
	CreatedAt   time.Time     `db:"created_at"`
}
