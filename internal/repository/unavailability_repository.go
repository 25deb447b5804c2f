package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/edusched/edusched-api/internal/models"
)

// UnavailabilityRepository provides persistence for date-scoped exceptions.
type UnavailabilityRepository struct {
	db *sqlx.DB
}

// NewUnavailabilityRepository creates a new unavailability repository.
func NewUnavailabilityRepository(db *sqlx.DB) *UnavailabilityRepository {
	return &UnavailabilityRepository{db: db}
}

const unavailabilityColumns = `id, teacher_id, school_id, unavailable_date, start_time, end_time, is_all_day, reason, created_by, created_at`

// ListByTeacherDate returns exceptions for one teacher on one date.
func (r *UnavailabilityRepository) ListByTeacherDate(ctx context.Context, teacherID, schoolID string, date time.Time) ([]models.TeacherUnavailability, error) {
	query := fmt.Sprintf(`SELECT %s FROM teacher_unavailability WHERE teacher_id = $1 AND school_id = $2 AND unavailable_date = $3 ORDER BY start_time ASC NULLS FIRST`, unavailabilityColumns)
	var entries []models.TeacherUnavailability
	if err := r.db.SelectContext(ctx, &entries, query, teacherID, schoolID, date); err != nil {
		return nil, fmt.Errorf("list unavailability by date: %w", err)
	}
	return entries, nil
}

// ListByTeacherDateRange returns exceptions across [from, to] inclusive,
// letting range consumers batch one query instead of one per date.
func (r *UnavailabilityRepository) ListByTeacherDateRange(ctx context.Context, teacherID, schoolID string, from, to time.Time) ([]models.TeacherUnavailability, error) {
	query := fmt.Sprintf(`SELECT %s FROM teacher_unavailability WHERE teacher_id = $1 AND school_id = $2 AND unavailable_date BETWEEN $3 AND $4 ORDER BY unavailable_date ASC`, unavailabilityColumns)
	var entries []models.TeacherUnavailability
	if err := r.db.SelectContext(ctx, &entries, query, teacherID, schoolID, from, to); err != nil {
		return nil, fmt.Errorf("list unavailability by range: %w", err)
	}
	return entries, nil
}

// FindByID loads one exception by id.
func (r *UnavailabilityRepository) FindByID(ctx context.Context, id string) (*models.TeacherUnavailability, error) {
	query := fmt.Sprintf(`SELECT %s FROM teacher_unavailability WHERE id = $1`, unavailabilityColumns)
	var entry models.TeacherUnavailability
	if err := r.db.GetContext(ctx, &entry, query, id); err != nil {
		return nil, err
	}
	return &entry, nil
}

// Create stores a new exception.
func (r *UnavailabilityRepository) Create(ctx context.Context, entry *models.TeacherUnavailability) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	entry.CreatedAt = time.Now().UTC()

	const query = `INSERT INTO teacher_unavailability (id, teacher_id, school_id, unavailable_date, start_time, end_time, is_all_day, reason, created_by, created_at) VALUES (:id, :teacher_id, :school_id, :unavailable_date, :start_time, :end_time, :is_all_day, :reason, :created_by, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, entry); err != nil {
		return fmt.Errorf("create unavailability: %w", err)
	}
	return nil
}

// Delete removes an exception.
func (r *UnavailabilityRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM teacher_unavailability WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete unavailability: %w", err)
	}
	return nil
}
