package service

import "context"

// TxRepositories exposes the repositories participating in one transaction.
type TxRepositories interface {
	Documents() DocumentRepositoryInterface
	Chunks() ChunkRepositoryInterface
	EmbeddingJobs() EmbeddingJobRepositoryInterface
}

// TxRunner runs a function inside a single database transaction. Ingestion
// uses it so a document, its chunks and the embedding job commit atomically.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(repos TxRepositories) error) error
}
