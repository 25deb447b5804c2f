package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/edusched/edusched-api/internal/models"
)

// TemplateRepository provides persistence for recurring session templates.
type TemplateRepository struct {
	db *sqlx.DB
}

// NewTemplateRepository creates a new template repository.
func NewTemplateRepository(db *sqlx.DB) *TemplateRepository {
	return &TemplateRepository{db: db}
}

const templateColumns = `id, teacher_id, student_id, school_id, day_of_week, start_time, end_time, duration_minutes, kind, start_date, end_date, active, created_by, created_at, updated_at`

// FindByID loads a template by id.
func (r *TemplateRepository) FindByID(ctx context.Context, id string) (*models.RecurringSessionTemplate, error) {
	query := fmt.Sprintf(`SELECT %s FROM recurring_session_templates WHERE id = $1`, templateColumns)
	var template models.RecurringSessionTemplate
	if err := r.db.GetContext(ctx, &template, query, id); err != nil {
		return nil, err
	}
	return &template, nil
}

// ListActive returns every active template, optionally scoped to one school.
func (r *TemplateRepository) ListActive(ctx context.Context, schoolID string) ([]models.RecurringSessionTemplate, error) {
	var templates []models.RecurringSessionTemplate
	if schoolID != "" {
		query := fmt.Sprintf(`SELECT %s FROM recurring_session_templates WHERE school_id = $1 AND active = TRUE ORDER BY created_at ASC`, templateColumns)
		if err := r.db.SelectContext(ctx, &templates, query, schoolID); err != nil {
			return nil, fmt.Errorf("list active templates: %w", err)
		}
		return templates, nil
	}
	query := fmt.Sprintf(`SELECT %s FROM recurring_session_templates WHERE active = TRUE ORDER BY created_at ASC`, templateColumns)
	if err := r.db.SelectContext(ctx, &templates, query); err != nil {
		return nil, fmt.Errorf("list active templates: %w", err)
	}
	return templates, nil
}

// Create stores a new template.
func (r *TemplateRepository) Create(ctx context.Context, template *models.RecurringSessionTemplate) error {
	if template.ID == "" {
		template.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	template.CreatedAt = now
	template.UpdatedAt = now

	const query = `INSERT INTO recurring_session_templates (id, teacher_id, student_id, school_id, day_of_week, start_time, end_time, duration_minutes, kind, start_date, end_date, active, created_by, created_at, updated_at) VALUES (:id, :teacher_id, :student_id, :school_id, :day_of_week, :start_time, :end_time, :duration_minutes, :kind, :start_date, :end_date, :active, :created_by, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, template); err != nil {
		return fmt.Errorf("create template: %w", err)
	}
	return nil
}

// Deactivate stops future expansion of a template.
func (r *TemplateRepository) Deactivate(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `UPDATE recurring_session_templates SET active = FALSE, updated_at = $1 WHERE id = $2`, time.Now().UTC(), id); err != nil {
		return fmt.Errorf("deactivate template: %w", err)
	}
	return nil
}
