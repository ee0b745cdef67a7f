package adapter

import (
	"context"

	"lms-enrollment-engine/internal/domain/model"
)

// SignatureProvider exposes the e-sign integration's status contract only.
type SignatureProvider interface {
	Name() string
	Status(ctx context.Context, enrollmentID string) (model.SignatureStatus, error)
}
