package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/prometric-ai/prometric/internal/domain"
	"github.com/prometric-ai/prometric/internal/pagination"
	"github.com/prometric-ai/prometric/internal/service"
)

// DocumentRepository handles persistence of knowledge documents. Every read
// is organization-scoped; there is no cross-tenant query path.
type DocumentRepository struct {
	db dbtx
}

func NewDocumentRepository(pool *pgxpool.Pool) *DocumentRepository {
	return &DocumentRepository{db: pool}
}

func NewDocumentRepositoryWithTx(tx pgx.Tx) *DocumentRepository {
	return &DocumentRepository{db: tx}
}

func (r *DocumentRepository) Create(ctx context.Context, d *domain.KnowledgeDocument) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO knowledge_documents
			(id, org_id, title, source_type, source_url, access_level, language, status, content, word_count, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		d.ID, d.OrgID, d.Title, d.SourceType, nullableString(d.SourceURL), d.AccessLevel,
		d.Language, d.Status, d.Content, d.WordCount, d.CreatedAt, d.UpdatedAt,
	)
	return err
}

func (r *DocumentRepository) GetByID(ctx context.Context, orgID, id string) (*domain.KnowledgeDocument, error) {
	var d domain.KnowledgeDocument
	var sourceURL *string
	err := r.db.QueryRow(ctx,
		`SELECT id, org_id, title, source_type, source_url, access_level, language, status, content, word_count, created_at, updated_at
		 FROM knowledge_documents WHERE id = $1 AND org_id = $2`,
		id, orgID,
	).Scan(&d.ID, &d.OrgID, &d.Title, &d.SourceType, &sourceURL, &d.AccessLevel,
		&d.Language, &d.Status, &d.Content, &d.WordCount, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrDocumentNotFound
		}
		return nil, err
	}
	if sourceURL != nil {
		d.SourceURL = *sourceURL
	}
	return &d, nil
}

func (r *DocumentRepository) ListByOrgWithCursor(ctx context.Context, orgID string, cursor *pagination.Cursor, limit int) (*service.DocumentPageResult, error) {
	if limit <= 0 {
		limit = 20
	}

	var rows pgx.Rows
	var err error

	if cursor != nil {
		rows, err = r.db.Query(ctx,
			`SELECT id, org_id, title, source_type, source_url, access_level, language, status, content, word_count, created_at, updated_at
			 FROM knowledge_documents
			 WHERE org_id = $1 AND (updated_at, id) < ($2, $3)
			 ORDER BY updated_at DESC, id DESC
			 LIMIT $4`,
			orgID, cursor.Timestamp, cursor.LastID, limit+1,
		)
	} else {
		rows, err = r.db.Query(ctx,
			`SELECT id, org_id, title, source_type, source_url, access_level, language, status, content, word_count, created_at, updated_at
			 FROM knowledge_documents
			 WHERE org_id = $1
			 ORDER BY updated_at DESC, id DESC
			 LIMIT $2`,
			orgID, limit+1,
		)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items, err := scanDocumentRows(rows)
	if err != nil {
		return nil, err
	}

	hasMore := len(items) > limit
	if hasMore {
		items = items[:limit]
	}

	var nextCursor string
	if hasMore && len(items) > 0 {
		lastItem := items[len(items)-1]
		nextCursor = pagination.EncodeCursor(lastItem.ID, lastItem.UpdatedAt)
	}

	return &service.DocumentPageResult{
		Items:      items,
		NextCursor: nextCursor,
		HasMore:    hasMore,
	}, nil
}

// UpdateContent replaces the document body on re-ingestion and resets the
// document to processing until its chunks are re-embedded.
func (r *DocumentRepository) UpdateContent(ctx context.Context, d *domain.KnowledgeDocument) error {
	d.UpdatedAt = time.Now().UTC()
	cmdTag, err := r.db.Exec(ctx,
		`UPDATE knowledge_documents
		 SET title = $1, source_type = $2, source_url = $3, access_level = $4, language = $5,
		     status = $6, content = $7, word_count = $8, updated_at = $9
		 WHERE id = $10 AND org_id = $11`,
		d.Title, d.SourceType, nullableString(d.SourceURL), d.AccessLevel, d.Language,
		d.Status, d.Content, d.WordCount, d.UpdatedAt, d.ID, d.OrgID,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrDocumentNotFound
	}
	return nil
}

func (r *DocumentRepository) UpdateStatus(ctx context.Context, id string, status domain.DocumentStatus) error {
	cmdTag, err := r.db.Exec(ctx,
		`UPDATE knowledge_documents SET status = $1, updated_at = $2 WHERE id = $3`,
		status, time.Now().UTC(), id,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrDocumentNotFound
	}
	return nil
}

// Delete removes a document; chunks cascade at the schema level.
func (r *DocumentRepository) Delete(ctx context.Context, orgID, id string) error {
	cmdTag, err := r.db.Exec(ctx,
		`DELETE FROM knowledge_documents WHERE id = $1 AND org_id = $2`,
		id, orgID,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrDocumentNotFound
	}
	return nil
}

func scanDocumentRows(rows pgx.Rows) ([]*domain.KnowledgeDocument, error) {
	var results []*domain.KnowledgeDocument
	for rows.Next() {
		var d domain.KnowledgeDocument
		var sourceURL *string
		if err := rows.Scan(&d.ID, &d.OrgID, &d.Title, &d.SourceType, &sourceURL, &d.AccessLevel,
			&d.Language, &d.Status, &d.Content, &d.WordCount, &d.CreatedAt, &d.UpdatedAt); err != nil {
			return nil, err
		}
		if sourceURL != nil {
			d.SourceURL = *sourceURL
		}
		results = append(results, &d)
	}
	return results, rows.Err()
}
