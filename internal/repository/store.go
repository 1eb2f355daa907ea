package repository

import (
	"context"

	"earningbot/internal/firestore"
)

// Store is the slice of the document store client the repositories use.
// *firestore.Client satisfies it; tests substitute an in-memory fake.
type Store interface {
	Get(ctx context.Context, collection, id string) (map[string]firestore.Value, error)
	Set(ctx context.Context, collection, id string, fields map[string]firestore.Value) error
	Patch(ctx context.Context, collection, id string, fields map[string]firestore.Value) error
	Create(ctx context.Context, collection, id string, fields map[string]firestore.Value) error
	QueryEquals(ctx context.Context, collection, field string, value firestore.Value) ([]map[string]firestore.Value, error)
}

var _ Store = (*firestore.Client)(nil)
