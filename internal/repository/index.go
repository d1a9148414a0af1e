package repository

import "context"

// Entity types partitioning the vector collection. Search always filters on
// entity type, which keeps query vectors out of screenshot results.
const (
	EntityTypeScreenshot = "screenshot"
	EntityTypeQuery      = "query"
)

// VectorHit is one similarity match from the index.
type VectorHit struct {
	VectorID   string
	EntityID   string
	EntityType string
	OwnerID    string
	Score      float32
}

// VectorIndex stores embeddings and answers owner-scoped similarity
// searches. Implementations degrade rather than fail: an unavailable backend
// reports Connected() == false, upserts return an empty vector ID, and
// searches return no hits.
type VectorIndex interface {
	// Upsert stores an embedding and returns its opaque vector ID.
	Upsert(ctx context.Context, entityID, entityType, ownerID string, embedding []float32) (string, error)

	// Search returns the closest entries of the given entity type owned by
	// any of the given owners, best score first.
	Search(ctx context.Context, embedding []float32, ownerIDs []string, entityType string, limit int) ([]VectorHit, error)

	// Remove deletes an entry by its vector ID.
	Remove(ctx context.Context, vectorID string) error

	// Connected reports whether the backend is reachable.
	Connected() bool
}
