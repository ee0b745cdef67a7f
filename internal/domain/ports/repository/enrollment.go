package repository

import (
	"context"

	"lms-enrollment-engine/internal/domain/model"
)

type EnrollmentRepository interface {
	Save(ctx context.Context, tx Tx, e *model.Enrollment) error
	// FindByID locks the row FOR UPDATE when called inside a transaction so
	// that concurrent aggregate recomputes serialize on the enrollment.
	FindByID(ctx context.Context, tx Tx, id string) (*model.Enrollment, error)
	ListByUser(ctx context.Context, tx Tx, userID string) ([]*model.Enrollment, error)
	// Delete removes the enrollment row only; schedules and payments must be
	// deleted first (cascading deletion tooling).
	Delete(ctx context.Context, tx Tx, id string) error
}
