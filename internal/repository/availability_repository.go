package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/edusched/edusched-api/internal/models"
)

// AvailabilityRepository provides persistence for recurring weekly windows.
type AvailabilityRepository struct {
	db *sqlx.DB
}

// NewAvailabilityRepository creates a new availability repository.
func NewAvailabilityRepository(db *sqlx.DB) *AvailabilityRepository {
	return &AvailabilityRepository{db: db}
}

const availabilityColumns = `id, teacher_id, school_id, day_of_week, start_time, end_time, active, created_by, created_at, updated_at`

// ListActiveByTeacherDay returns the active windows for one teacher/day pair,
// ordered by start time.
func (r *AvailabilityRepository) ListActiveByTeacherDay(ctx context.Context, teacherID, schoolID, dayOfWeek string) ([]models.TeacherAvailability, error) {
	query := fmt.Sprintf(`SELECT %s FROM teacher_availability WHERE teacher_id = $1 AND school_id = $2 AND day_of_week = $3 AND active = TRUE ORDER BY start_time ASC`, availabilityColumns)
	var windows []models.TeacherAvailability
	if err := r.db.SelectContext(ctx, &windows, query, teacherID, schoolID, dayOfWeek); err != nil {
		return nil, fmt.Errorf("list availability by day: %w", err)
	}
	return windows, nil
}

// ListByTeacher returns all windows for a teacher in a school.
func (r *AvailabilityRepository) ListByTeacher(ctx context.Context, teacherID, schoolID string) ([]models.TeacherAvailability, error) {
	query := fmt.Sprintf(`SELECT %s FROM teacher_availability WHERE teacher_id = $1 AND school_id = $2 ORDER BY day_of_week ASC, start_time ASC`, availabilityColumns)
	var windows []models.TeacherAvailability
	if err := r.db.SelectContext(ctx, &windows, query, teacherID, schoolID); err != nil {
		return nil, fmt.Errorf("list availability: %w", err)
	}
	return windows, nil
}

// FindByID loads one window by id.
func (r *AvailabilityRepository) FindByID(ctx context.Context, id string) (*models.TeacherAvailability, error) {
	query := fmt.Sprintf(`SELECT %s FROM teacher_availability WHERE id = $1`, availabilityColumns)
	var window models.TeacherAvailability
	if err := r.db.GetContext(ctx, &window, query, id); err != nil {
		return nil, err
	}
	return &window, nil
}

// Create stores a new window.
func (r *AvailabilityRepository) Create(ctx context.Context, window *models.TeacherAvailability) error {
	if window.ID == "" {
		window.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	window.CreatedAt = now
	window.UpdatedAt = now

	const query = `INSERT INTO teacher_availability (id, teacher_id, school_id, day_of_week, start_time, end_time, active, created_by, created_at, updated_at) VALUES (:id, :teacher_id, :school_id, :day_of_week, :start_time, :end_time, :active, :created_by, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, window); err != nil {
		return fmt.Errorf("create availability: %w", err)
	}
	return nil
}

// Update modifies a window's times and active flag.
func (r *AvailabilityRepository) Update(ctx context.Context, window *models.TeacherAvailability) error {
	window.UpdatedAt = time.Now().UTC()
	const query = `UPDATE teacher_availability SET day_of_week = :day_of_week, start_time = :start_time, end_time = :end_time, active = :active, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, window); err != nil {
		return fmt.Errorf("update availability: %w", err)
	}
	return nil
}

// Deactivate soft-disables a window instead of deleting it.
func (r *AvailabilityRepository) Deactivate(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `UPDATE teacher_availability SET active = FALSE, updated_at = $1 WHERE id = $2`, time.Now().UTC(), id); err != nil {
		return fmt.Errorf("deactivate availability: %w", err)
	}
	return nil
}
