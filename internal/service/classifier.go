package service

import (
	"strings"

	"ticketmatch/internal/models"
)

// categoryKeywords maps categories to the phrases that indicate them. Order
// matters: the first category with a hit wins, so classification is
// deterministic for the same input. The table is a placeholder heuristic;
// any classifier may replace it as long as it stays deterministic and closed
// over the category enum.
var categoryKeywords = []struct {
	category models.IssueCategory
	keywords []string
}{
	{models.CategoryUploadOrSave, []string{
		"save", "saving", "upload", "export", "import", "file", "attachment",
	}},
	{models.CategoryLoginOrAccess, []string{
		"login", "log in", "sign in", "password", "access denied", "permission", "account", "locked out",
	}},
	{models.CategoryPerformance, []string{
		"slow", "lag", "freeze", "frozen", "crash", "hang", "memory", "timeout", "performance",
	}},
	{models.CategoryWorkflow, []string{
		"workflow", "approval", "assignment", "process step", "task", "routing",
	}},
	{models.CategoryDisplayOrView, []string{
		"display", "render", "view", "screen", "blank page", "missing element", "zoom", "layout",
	}},
}

// ClassifyCategory infers an issue category from free text. Unrecognized
// input lands in Other.
func ClassifyCategory(text string) models.IssueCategory {
	lower := strings.ToLower(text)
	for _, entry := range categoryKeywords {
		for _, keyword := range entry.keywords {
			if strings.Contains(lower, keyword) {
				return entry.category
			}
		}
	}
	return models.CategoryOther
}
