package options

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/goliatone/go-enqueue/layering"
)

// Ref identifies one stored option group.
type Ref struct {
	Option string
	Scope  layering.Scope
}

// Identifier returns the deterministic storage key for the ref.
func (r Ref) Identifier() (string, error) {
	if r.Option == "" {
		return "", fmt.Errorf("options: option name is required")
	}
	if err := r.Scope.Validate(); err != nil {
		return "", err
	}
	return r.Scope.Identifier(r.Option), nil
}

// Meta is storage-owned metadata used for optimistic concurrency.
type Meta struct {
	SnapshotID string    `json:"snapshot_id,omitempty"`
	ETag       string    `json:"etag,omitempty"`
	UpdatedAt  time.Time `json:"updated_at,omitempty"`
}

// Store persists option groups. Save and Delete compare expected.ETag with
// the stored one when both are set and fail with ErrETagMismatch on a
// difference. Save assigns a fresh SnapshotID and ETag.
type Store interface {
	Load(ctx context.Context, ref Ref) (values map[string]any, meta Meta, ok bool, err error)
	Save(ctx context.Context, ref Ref, values map[string]any, expected Meta) (Meta, error)
	Delete(ctx context.Context, ref Ref, expected Meta) error
}

// StorageContext routes a scope to the store backing its level, so user
// scoped groups can live apart from site options.
type StorageContext struct {
	Scope    layering.Scope
	fallback Store
	routes   map[layering.Level]Store
}

// NewStorageContext binds scope to the default store.
func NewStorageContext(scope layering.Scope, store Store) StorageContext {
	return StorageContext{Scope: scope, fallback: store}
}

// Route returns a copy that sends level to store.
func (s StorageContext) Route(level layering.Level, store Store) StorageContext {
	routes := make(map[layering.Level]Store, len(s.routes)+1)
	for k, v := range s.routes {
		routes[k] = v
	}
	routes[level] = store
	s.routes = routes
	return s
}

// WithScope returns a copy addressing another scope with the same routes.
func (s StorageContext) WithScope(scope layering.Scope) StorageContext {
	s.Scope = scope
	return s
}

// Store returns the store for level.
func (s StorageContext) Store(level layering.Level) (Store, error) {
	if store, ok := s.routes[level]; ok && store != nil {
		return store, nil
	}
	if s.fallback == nil {
		return nil, fmt.Errorf("options: no store for %s scope", level)
	}
	return s.fallback, nil
}

// Ref builds the ref for option in the bound scope.
func (s StorageContext) Ref(option string) Ref {
	return Ref{Option: option, Scope: s.Scope}
}

func nextMeta() Meta {
	return Meta{
		SnapshotID: uuid.NewString(),
		ETag:       uuid.NewString(),
		UpdatedAt:  time.Now().UTC(),
	}
}

func checkETag(expected, current Meta) error {
	if expected.ETag != "" && current.ETag != "" && expected.ETag != current.ETag {
		return fmt.Errorf("%w: expected %q, got %q", ErrETagMismatch, expected.ETag, current.ETag)
	}
	return nil
}
