package adapter

import (
	"context"

	"lms-enrollment-engine/internal/domain/model"
)

// ProfileStore is the read-only snapshot of user profile completeness
// consulted by the completion gate.
type ProfileStore interface {
	Snapshot(ctx context.Context, userID string) (*model.ProfileSnapshot, error)
}
