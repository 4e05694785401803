package domain

import (
	"strings"
	"time"
)

// SourceType represents where a knowledge document was ingested from
type SourceType string

const (
	SourceTypeWebsite SourceType = "website"
	SourceTypeFile    SourceType = "file"
	SourceTypeManual  SourceType = "manual"
)

// AccessLevel represents the confidentiality tier of a document
type AccessLevel string

const (
	AccessLevelPublic       AccessLevel = "public"
	AccessLevelConfidential AccessLevel = "confidential"
	AccessLevelRestricted   AccessLevel = "restricted"
)

// DocumentStatus represents the lifecycle status of a knowledge document
type DocumentStatus string

const (
	DocumentStatusProcessing DocumentStatus = "processing"
	DocumentStatusActive     DocumentStatus = "active"
	DocumentStatusArchived   DocumentStatus = "archived"
)

// KnowledgeDocument represents an org-scoped source record. It is created on
// ingestion and mutated only by re-ingestion or archival, never by retrieval.
type KnowledgeDocument struct {
	ID          string
	OrgID       string
	Title       string
	SourceType  SourceType
	SourceURL   string // Optional origin (website URL or object key)
	AccessLevel AccessLevel
	Language    string
	Status      DocumentStatus
	Content     string
	WordCount   int
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// NewKnowledgeDocument creates a KnowledgeDocument in the processing state.
func NewKnowledgeDocument(
	id, orgID, title string,
	sourceType SourceType,
	sourceURL string,
	accessLevel AccessLevel,
	language, content string,
	now time.Time,
) *KnowledgeDocument {
	return &KnowledgeDocument{
		ID:          id,
		OrgID:       orgID,
		Title:       title,
		SourceType:  sourceType,
		SourceURL:   sourceURL,
		AccessLevel: accessLevel,
		Language:    language,
		Status:      DocumentStatusProcessing,
		Content:     content,
		WordCount:   CountWords(content),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// ValidateDocument validates a KnowledgeDocument instance
func ValidateDocument(d *KnowledgeDocument) error {
	if d == nil {
		return NewDomainError(ErrCodeValidation, "document cannot be nil")
	}
	if d.ID == "" {
		return NewDomainError(ErrCodeValidation, "document ID is required")
	}
	if d.OrgID == "" {
		return ErrMissingOrgID
	}
	if strings.TrimSpace(d.Content) == "" {
		return ErrEmptyContent
	}
	if !IsValidSourceType(d.SourceType) {
		return ErrInvalidSourceType
	}
	if !IsValidAccessLevel(d.AccessLevel) {
		return ErrInvalidAccessLevel
	}
	if !isValidDocumentStatus(d.Status) {
		return NewDomainError(ErrCodeValidation, "invalid document status")
	}
	return nil
}

// IsValidSourceType checks if a SourceType is valid
func IsValidSourceType(t SourceType) bool {
	switch t {
	case SourceTypeWebsite, SourceTypeFile, SourceTypeManual:
		return true
	}
	return false
}

// IsValidAccessLevel checks if an AccessLevel is valid
func IsValidAccessLevel(l AccessLevel) bool {
	switch l {
	case AccessLevelPublic, AccessLevelConfidential, AccessLevelRestricted:
		return true
	}
	return false
}

func isValidDocumentStatus(s DocumentStatus) bool {
	switch s {
	case DocumentStatusProcessing, DocumentStatusActive, DocumentStatusArchived:
		return true
	}
	return false
}

// CountWords returns the number of whitespace-delimited words in text.
func CountWords(text string) int {
	return len(strings.Fields(text))
}
