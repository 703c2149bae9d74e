package storage

import (
	"context"

	"github.com/google/uuid"
	"github.com/jwebster45206/modforge/pkg/state"
)

// Storage persists sessions between requests. The api and worker share one
// backing store.
type Storage interface {
	// Health and lifecycle
	Ping(ctx context.Context) error
	Close() error

	SaveSession(ctx context.Context, s *state.Session) error
	// LoadSession returns nil, nil when no session exists for id.
	LoadSession(ctx context.Context, id uuid.UUID) (*state.Session, error)
	DeleteSession(ctx context.Context, id uuid.UUID) error
}
