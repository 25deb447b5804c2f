package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/edusched/edusched-api/internal/models"
)

// MembershipRepository answers user-in-school role questions for the engine.
type MembershipRepository struct {
	db *sqlx.DB
}

// NewMembershipRepository creates a new membership repository.
func NewMembershipRepository(db *sqlx.DB) *MembershipRepository {
	return &MembershipRepository{db: db}
}

// Find loads the membership linking a user to a school.
func (r *MembershipRepository) Find(ctx context.Context, userID, schoolID string) (*models.Membership, error) {
	const query = `SELECT id, user_id, school_id, role, active FROM memberships WHERE user_id = $1 AND school_id = $2`
	var membership models.Membership
	if err := r.db.GetContext(ctx, &membership, query, userID, schoolID); err != nil {
		return nil, err
	}
	return &membership, nil
}

// ListActiveSchoolIDs returns the ids of every school the user is an active
// member of, used for cross-school conflict detection.
func (r *MembershipRepository) ListActiveSchoolIDs(ctx context.Context, userID string) ([]string, error) {
	const query = `SELECT school_id FROM memberships WHERE user_id = $1 AND active = TRUE`
	var ids []string
	if err := r.db.SelectContext(ctx, &ids, query, userID); err != nil {
		return nil, fmt.Errorf("list member schools: %w", err)
	}
	return ids, nil
}
