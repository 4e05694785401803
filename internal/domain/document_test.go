package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewKnowledgeDocument(t *testing.T) {
	now := time.Now().UTC()
	doc := NewKnowledgeDocument(
		"doc-1", "org-1", "Integrations",
		SourceTypeManual, "",
		AccessLevelPublic, "ru",
		"Prometric integrates with Kaspi Business.",
		now,
	)

	assert.Equal(t, DocumentStatusProcessing, doc.Status)
	assert.Equal(t, 5, doc.WordCount)
	assert.Equal(t, now, doc.CreatedAt)
	assert.Equal(t, now, doc.UpdatedAt)
	require.NoError(t, ValidateDocument(doc))
}

func TestValidateDocument(t *testing.T) {
	now := time.Now().UTC()
	base := func() *KnowledgeDocument {
		return NewKnowledgeDocument("doc-1", "org-1", "T", SourceTypeManual, "", AccessLevelPublic, "en", "body", now)
	}

	tests := []struct {
		name    string
		mutate  func(*KnowledgeDocument)
		wantErr error
	}{
		{
			name:   "valid",
			mutate: func(d *KnowledgeDocument) {},
		},
		{
			name:    "missing org",
			mutate:  func(d *KnowledgeDocument) { d.OrgID = "" },
			wantErr: ErrMissingOrgID,
		},
		{
			name:    "blank content",
			mutate:  func(d *KnowledgeDocument) { d.Content = "   \n\t" },
			wantErr: ErrEmptyContent,
		},
		{
			name:    "bad source type",
			mutate:  func(d *KnowledgeDocument) { d.SourceType = "carrier-pigeon" },
			wantErr: ErrInvalidSourceType,
		},
		{
			name:    "bad access level",
			mutate:  func(d *KnowledgeDocument) { d.AccessLevel = "secret" },
			wantErr: ErrInvalidAccessLevel,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := base()
			tt.mutate(doc)
			err := ValidateDocument(doc)
			if tt.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestValidateDocumentNil(t *testing.T) {
	assert.Error(t, ValidateDocument(nil))
}

func TestCountWords(t *testing.T) {
	assert.Equal(t, 0, CountWords(""))
	assert.Equal(t, 0, CountWords("  \n "))
	assert.Equal(t, 3, CountWords("a  b\nc"))
}
