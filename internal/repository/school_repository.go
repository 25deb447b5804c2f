package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/edusched/edusched-api/internal/models"
)

// SchoolRepository provides read access to schools and their policy settings.
type SchoolRepository struct {
	db *sqlx.DB
}

// NewSchoolRepository creates a new school repository.
func NewSchoolRepository(db *sqlx.DB) *SchoolRepository {
	return &SchoolRepository{db: db}
}

// FindByID loads a school by id.
func (r *SchoolRepository) FindByID(ctx context.Context, id string) (*models.School, error) {
	const query = `SELECT id, name, timezone, active, created_at, updated_at FROM schools WHERE id = $1`
	var school models.School
	if err := r.db.GetContext(ctx, &school, query, id); err != nil {
		return nil, err
	}
	return &school, nil
}

// GetSettings loads a school's booking-policy defaults. Returns sql.ErrNoRows
// when the school has never configured any.
func (r *SchoolRepository) GetSettings(ctx context.Context, schoolID string) (*models.SchoolSettings, error) {
	const query = `SELECT school_id, minimum_notice_minutes, buffer_minutes, group_buffer_minutes, trial_buffer_minutes, teacher_daily_cap, teacher_weekly_cap, student_daily_cap, student_weekly_cap, updated_at FROM school_settings WHERE school_id = $1`
	var settings models.SchoolSettings
	if err := r.db.GetContext(ctx, &settings, query, schoolID); err != nil {
		return nil, err
	}
	return &settings, nil
}

// ListTimezones returns the timezone for each requested school id.
func (r *SchoolRepository) ListTimezones(ctx context.Context, schoolIDs []string) (map[string]string, error) {
	if len(schoolIDs) == 0 {
		return map[string]string{}, nil
	}
	query, args, err := sqlx.In(`SELECT id, timezone FROM schools WHERE id IN (?)`, schoolIDs)
	if err != nil {
		return nil, fmt.Errorf("build timezone query: %w", err)
	}
	query = r.db.Rebind(query)

	rows := []struct {
		ID       string `db:"id"`
		Timezone string `db:"timezone"`
	}{}
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list school timezones: %w", err)
	}

	result := make(map[string]string, len(rows))
	for _, row := range rows {
		result[row.ID] = row.Timezone
	}
	return result, nil
}
