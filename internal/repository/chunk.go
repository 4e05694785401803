package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/prometric-ai/prometric/internal/domain"
	"github.com/prometric-ai/prometric/internal/service"
)

// ChunkRepository handles persistence of document chunks and nearest-neighbor
// search over their embeddings.
type ChunkRepository struct {
	db dbtx
}

func NewChunkRepository(pool *pgxpool.Pool) *ChunkRepository {
	return &ChunkRepository{db: pool}
}

func NewChunkRepositoryWithTx(tx dbtx) *ChunkRepository {
	return &ChunkRepository{db: tx}
}

// ReplaceChunks deletes existing chunks for a document and inserts new ones.
// Used on ingestion and re-ingestion; embeddings start out null.
func (r *ChunkRepository) ReplaceChunks(ctx context.Context, documentID string, chunks []domain.DocumentChunk) error {
	_, err := r.db.Exec(ctx, `DELETE FROM document_chunks WHERE document_id = $1`, documentID)
	if err != nil {
		return err
	}

	for _, c := range chunks {
		createdAt := c.CreatedAt
		if createdAt.IsZero() {
			createdAt = time.Now().UTC()
		}

		var embedding any
		if c.Embedding != nil {
			embedding = pgvector.NewVector(c.Embedding)
		}

		_, err := r.db.Exec(ctx,
			`INSERT INTO document_chunks
				(id, document_id, org_id, chunk_index, content, embedding, access_level, language, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			c.ID, c.DocumentID, c.OrgID, c.ChunkIndex, c.Content, embedding,
			c.AccessLevel, c.Language, createdAt,
		)
		if err != nil {
			return err
		}
	}

	return nil
}

// ListUnembedded returns a document's chunks that still lack an embedding,
// in chunk order.
func (r *ChunkRepository) ListUnembedded(ctx context.Context, documentID string) ([]*domain.DocumentChunk, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, document_id, org_id, chunk_index, content, access_level, language, created_at
		 FROM document_chunks
		 WHERE document_id = $1 AND embedding IS NULL
		 ORDER BY chunk_index ASC`,
		documentID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var chunks []*domain.DocumentChunk
	for rows.Next() {
		var c domain.DocumentChunk
		if err := rows.Scan(&c.ID, &c.DocumentID, &c.OrgID, &c.ChunkIndex, &c.Content,
			&c.AccessLevel, &c.Language, &c.CreatedAt); err != nil {
			return nil, err
		}
		chunks = append(chunks, &c)
	}
	return chunks, rows.Err()
}

func (r *ChunkRepository) UpdateEmbedding(ctx context.Context, chunkID string, embedding []float32) error {
	cmdTag, err := r.db.Exec(ctx,
		`UPDATE document_chunks SET embedding = $1 WHERE id = $2`,
		pgvector.NewVector(embedding), chunkID,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrDocumentNotFound
	}
	return nil
}

// Search runs cosine nearest-neighbor search over embedded chunks. The
// organization and access-level predicates are part of the query itself, not
// post-filtering: a row outside the caller's tenant or tiers is never read.
// Ranking is similarity descending with chunk_index ascending as the
// deterministic tie-break.
func (r *ChunkRepository) Search(ctx context.Context, q service.ChunkSearchQuery) ([]*domain.ChunkMatch, error) {
	levels := make([]string, 0, len(q.AccessLevels))
	for _, l := range q.AccessLevels {
		levels = append(levels, string(l))
	}

	rows, err := r.db.Query(ctx,
		`SELECT c.id, c.document_id, d.title, c.content, c.chunk_index,
		        1 - (c.embedding <=> $1) AS similarity,
		        COALESCE(d.source_url, '')
		 FROM document_chunks c
		 JOIN knowledge_documents d ON d.id = c.document_id
		 WHERE c.org_id = $2
		   AND c.access_level = ANY($3)
		   AND c.embedding IS NOT NULL
		   AND d.status = $4
		   AND 1 - (c.embedding <=> $1) >= $5
		 ORDER BY similarity DESC, c.chunk_index ASC
		 LIMIT $6`,
		pgvector.NewVector(q.Vector), q.OrgID, levels, domain.DocumentStatusActive,
		q.MinSimilarity, q.TopK,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var matches []*domain.ChunkMatch
	for rows.Next() {
		var m domain.ChunkMatch
		if err := rows.Scan(&m.ChunkID, &m.DocumentID, &m.Title, &m.Content,
			&m.ChunkIndex, &m.Similarity, &m.SourceURL); err != nil {
			return nil, err
		}
		matches = append(matches, &m)
	}
	return matches, rows.Err()
}
