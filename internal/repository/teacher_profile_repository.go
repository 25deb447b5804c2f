package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/edusched/edusched-api/internal/models"
)

// TeacherProfileRepository stores per-teacher scheduling policy overrides.
type TeacherProfileRepository struct {
	db *sqlx.DB
}

// NewTeacherProfileRepository creates a new profile repository.
func NewTeacherProfileRepository(db *sqlx.DB) *TeacherProfileRepository {
	return &TeacherProfileRepository{db: db}
}

// GetByTeacherSchool loads a teacher's overrides for one school. Returns
// sql.ErrNoRows when the teacher has none.
func (r *TeacherProfileRepository) GetByTeacherSchool(ctx context.Context, teacherID, schoolID string) (*models.TeacherSchedulingProfile, error) {
	const query = `SELECT id, teacher_id, school_id, minimum_notice_minutes, buffer_minutes, daily_cap, weekly_cap, updated_at FROM teacher_scheduling_profiles WHERE teacher_id = $1 AND school_id = $2`
	var profile models.TeacherSchedulingProfile
	if err := r.db.GetContext(ctx, &profile, query, teacherID, schoolID); err != nil {
		return nil, err
	}
	return &profile, nil
}

// Upsert stores a teacher's overrides.
func (r *TeacherProfileRepository) Upsert(ctx context.Context, profile *models.TeacherSchedulingProfile) error {
	if profile.ID == "" {
		profile.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	profile.UpdatedAt = &now

	const query = `INSERT INTO teacher_scheduling_profiles (id, teacher_id, school_id, minimum_notice_minutes, buffer_minutes, daily_cap, weekly_cap, updated_at)
VALUES (:id, :teacher_id, :school_id, :minimum_notice_minutes, :buffer_minutes, :daily_cap, :weekly_cap, :updated_at)
ON CONFLICT (teacher_id, school_id) DO UPDATE SET minimum_notice_minutes = EXCLUDED.minimum_notice_minutes, buffer_minutes = EXCLUDED.buffer_minutes, daily_cap = EXCLUDED.daily_cap, weekly_cap = EXCLUDED.weekly_cap, updated_at = EXCLUDED.updated_at`
	if _, err := r.db.NamedExecContext(ctx, query, profile); err != nil {
		return err
	}
	return nil
}
