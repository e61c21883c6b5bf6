package dto

// Lifecycle events posted by the ticket service. Tenant always comes from the
// auth claims, never from the body.

type IssueCreatedEvent struct {
	IssueID     string `json:"issue_id"`
	Category    string `json:"category,omitempty"`
	Subject     string `json:"subject"`
	Description string `json:"description"`
	CreatedAt   string `json:"created_at,omitempty"`
}

type StatusChangedEvent struct {
	IssueID string `json:"issue_id"`
	Status  string `json:"status"`
}

type ResolutionAddedEvent struct {
	IssueID    string `json:"issue_id"`
	Resolution string `json:"resolution"`
}

// AttachmentsDeprecatedEvent retires specific embedding records, typically
// log chunks whose attachment was deleted upstream.
type AttachmentsDeprecatedEvent struct {
	EmbeddingIDs []string `json:"embedding_ids"`
	Reason       string   `json:"reason,omitempty"`
}

type EventAcceptedResponse struct {
	Status string `json:"status"`
}
