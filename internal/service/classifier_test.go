package service

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"ticketmatch/internal/models"
)

func TestClassifyCategory(t *testing.T) {
	tests := []struct {
		name string
		text string
		want models.IssueCategory
	}{
		{"upload keyword", "Cannot upload my expense receipt", models.CategoryUploadOrSave},
		{"save keyword", "Changes are not saving in the editor", models.CategoryUploadOrSave},
		{"login keyword", "I am locked out of my account", models.CategoryLoginOrAccess},
		{"performance keyword", "The dashboard is painfully slow today", models.CategoryPerformance},
		{"workflow keyword", "Approval step never triggers", models.CategoryWorkflow},
		{"display keyword", "Report shows a blank page", models.CategoryDisplayOrView},
		{"no keyword", "Something strange happened yesterday", models.CategoryOther},
		{"empty", "", models.CategoryOther},
		{"case insensitive", "UPLOAD FAILED AGAIN", models.CategoryUploadOrSave},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ClassifyCategory(tc.text))
		})
	}
}

func TestClassifyCategoryDeterministic(t *testing.T) {
	// "file" (Upload or Save) and "slow" (Performance) both appear; the table
	// order makes Upload or Save win, every time.
	text := "slow file upload"
	first := ClassifyCategory(text)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, ClassifyCategory(text))
	}
	assert.Equal(t, models.CategoryUploadOrSave, first)
}
