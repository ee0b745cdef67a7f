package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"lms-enrollment-engine/internal/domain"
	"lms-enrollment-engine/internal/domain/model"
	"lms-enrollment-engine/internal/domain/ports/adapter"
)

var _ adapter.ProfileStore = (*profileStore)(nil)

// profileStore reads user_profiles rows maintained by the account service.
// This side only ever reads; profile writes live elsewhere.
type profileStore struct{ pool *pgxpool.Pool }

func NewProfileStore(pool *pgxpool.Pool) *profileStore {
	return &profileStore{pool: pool}
}

func (s *profileStore) Snapshot(ctx context.Context, userID string) (*model.ProfileSnapshot, error) {
	const q = `
SELECT COALESCE(name,''), COALESCE(contact,''), COALESCE(phone,''),
       COALESCE(address,''), COALESCE(locality,''), COALESCE(country,'')
FROM user_profiles WHERE user_id=$1;`

	p := &model.ProfileSnapshot{}
	err := s.pool.QueryRow(ctx, q, userID).Scan(
		&p.Name, &p.Contact, &p.Phone, &p.Address, &p.Locality, &p.Country)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// No profile row yet reads as an all-empty snapshot, so the gate
			// simply reports the profile requirement unmet.
			return &model.ProfileSnapshot{}, nil
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return p, nil
}
