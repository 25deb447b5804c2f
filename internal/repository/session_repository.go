package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/edusched/edusched-api/internal/models"
)

// SessionRepository provides persistence for class sessions and their
// participant sets.
type SessionRepository struct {
	db *sqlx.DB
}

// NewSessionRepository creates a new session repository.
func NewSessionRepository(db *sqlx.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

const sessionColumns = `id, teacher_id, student_id, school_id, template_id, session_date, start_time, end_time, duration_minutes, kind, status, max_participants, metadata, notes, created_by, created_at, updated_at, confirmed_at, confirmed_by, cancelled_at, cancelled_by, cancel_reason, completed_at, completed_by, actual_duration_minutes, rejected_at, rejected_by, no_show_at, no_show_by, no_show_type, no_show_reason`

var activeStatuses = []string{string(models.SessionScheduled), string(models.SessionConfirmed)}

// FindByID loads a session with its participant set.
func (r *SessionRepository) FindByID(ctx context.Context, id string) (*models.ClassSession, error) {
	query := fmt.Sprintf(`SELECT %s FROM class_sessions WHERE id = $1`, sessionColumns)
	var session models.ClassSession
	if err := r.db.GetContext(ctx, &session, query, id); err != nil {
		return nil, err
	}
	if err := r.loadParticipants(ctx, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

// List returns sessions with optional filtering and pagination.
func (r *SessionRepository) List(ctx context.Context, filter models.SessionFilter) ([]models.ClassSession, int, error) {
	base := "FROM class_sessions WHERE 1=1"
	var conditions []string
	var args []interface{}

	if filter.SchoolID != "" {
		conditions = append(conditions, fmt.Sprintf("school_id = $%d", len(args)+1))
		args = append(args, filter.SchoolID)
	}
	if filter.TeacherID != "" {
		conditions = append(conditions, fmt.Sprintf("teacher_id = $%d", len(args)+1))
		args = append(args, filter.TeacherID)
	}
	if filter.StudentID != "" {
		conditions = append(conditions, fmt.Sprintf("student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, strings.ToUpper(filter.Status))
	}
	if filter.Kind != "" {
		conditions = append(conditions, fmt.Sprintf("kind = $%d", len(args)+1))
		args = append(args, strings.ToUpper(filter.Kind))
	}
	if filter.DateFrom != nil {
		conditions = append(conditions, fmt.Sprintf("session_date >= $%d", len(args)+1))
		args = append(args, *filter.DateFrom)
	}
	if filter.DateTo != nil {
		conditions = append(conditions, fmt.Sprintf("session_date <= $%d", len(args)+1))
		args = append(args, *filter.DateTo)
	}

	if len(conditions) > 0 {
		base += " AND " + strings.Join(conditions, " AND ")
	}

	sortBy := filter.SortBy
	allowedSorts := map[string]bool{
		"session_date": true,
		"start_time":   true,
		"status":       true,
		"created_at":   true,
	}
	if !allowedSorts[sortBy] {
		sortBy = "session_date"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "ASC"
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf("SELECT %s %s ORDER BY %s %s, start_time ASC LIMIT %d OFFSET %d", sessionColumns, base, sortBy, order, size, offset)
	var sessions []models.ClassSession
	if err := r.db.SelectContext(ctx, &sessions, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list sessions: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count sessions: %w", err)
	}

	return sessions, total, nil
}

// ListActiveByTeacherDateRange returns scheduled/confirmed sessions for a
// teacher across [from, to] inclusive, participants included.
func (r *SessionRepository) ListActiveByTeacherDateRange(ctx context.Context, teacherID, schoolID string, from, to time.Time) ([]models.ClassSession, error) {
	query, args, err := sqlx.In(fmt.Sprintf(`SELECT %s FROM class_sessions WHERE teacher_id = ? AND school_id = ? AND session_date BETWEEN ? AND ? AND status IN (?) ORDER BY session_date ASC, start_time ASC`, sessionColumns), teacherID, schoolID, from, to, activeStatuses)
	if err != nil {
		return nil, fmt.Errorf("build teacher session query: %w", err)
	}
	query = r.db.Rebind(query)

	var sessions []models.ClassSession
	if err := r.db.SelectContext(ctx, &sessions, query, args...); err != nil {
		return nil, fmt.Errorf("list teacher sessions: %w", err)
	}
	if err := r.loadParticipantsBulk(ctx, sessions); err != nil {
		return nil, err
	}
	return sessions, nil
}

// ListActiveByStudentSchools returns scheduled/confirmed sessions across the
// given schools where the student is primary or an additional participant.
func (r *SessionRepository) ListActiveByStudentSchools(ctx context.Context, studentID string, schoolIDs []string, from, to time.Time) ([]models.ClassSession, error) {
	if len(schoolIDs) == 0 {
		return nil, nil
	}
	query, args, err := sqlx.In(fmt.Sprintf(`SELECT DISTINCT %s FROM class_sessions s
LEFT JOIN class_session_participants p ON p.session_id = s.id
WHERE (s.student_id = ? OR p.user_id = ?) AND s.school_id IN (?) AND s.session_date BETWEEN ? AND ? AND s.status IN (?)
ORDER BY s.session_date ASC, s.start_time ASC`, prefixColumns("s", sessionColumns)), studentID, studentID, schoolIDs, from, to, activeStatuses)
	if err != nil {
		return nil, fmt.Errorf("build student session query: %w", err)
	}
	query = r.db.Rebind(query)

	var sessions []models.ClassSession
	if err := r.db.SelectContext(ctx, &sessions, query, args...); err != nil {
		return nil, fmt.Errorf("list student sessions: %w", err)
	}
	if err := r.loadParticipantsBulk(ctx, sessions); err != nil {
		return nil, err
	}
	return sessions, nil
}

// CountActiveByTeacherRange counts a teacher's scheduled/confirmed sessions
// across [from, to] inclusive, for daily and weekly cap checks.
func (r *SessionRepository) CountActiveByTeacherRange(ctx context.Context, teacherID, schoolID string, from, to time.Time) (int, error) {
	query, args, err := sqlx.In(`SELECT COUNT(*) FROM class_sessions WHERE teacher_id = ? AND school_id = ? AND session_date BETWEEN ? AND ? AND status IN (?)`, teacherID, schoolID, from, to, activeStatuses)
	if err != nil {
		return 0, fmt.Errorf("build teacher count query: %w", err)
	}
	query = r.db.Rebind(query)

	var count int
	if err := r.db.GetContext(ctx, &count, query, args...); err != nil {
		return 0, fmt.Errorf("count teacher sessions: %w", err)
	}
	return count, nil
}

// CountActiveByStudentRange counts a student's scheduled/confirmed sessions in
// one school across [from, to] inclusive.
func (r *SessionRepository) CountActiveByStudentRange(ctx context.Context, studentID, schoolID string, from, to time.Time) (int, error) {
	query, args, err := sqlx.In(`SELECT COUNT(DISTINCT s.id) FROM class_sessions s
LEFT JOIN class_session_participants p ON p.session_id = s.id
WHERE (s.student_id = ? OR p.user_id = ?) AND s.school_id = ? AND s.session_date BETWEEN ? AND ? AND s.status IN (?)`, studentID, studentID, schoolID, from, to, activeStatuses)
	if err != nil {
		return 0, fmt.Errorf("build student count query: %w", err)
	}
	query = r.db.Rebind(query)

	var count int
	if err := r.db.GetContext(ctx, &count, query, args...); err != nil {
		return 0, fmt.Errorf("count student sessions: %w", err)
	}
	return count, nil
}

// ExistsForTemplateSlot reports whether a session already occupies the
// template's (teacher, student, school, date, start_time) slot, regardless of
// status, keeping expansion idempotent.
func (r *SessionRepository) ExistsForTemplateSlot(ctx context.Context, teacherID, studentID, schoolID string, date time.Time, startTime string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM class_sessions WHERE teacher_id = $1 AND student_id = $2 AND school_id = $3 AND session_date = $4 AND start_time = $5)`
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, teacherID, studentID, schoolID, date, startTime); err != nil {
		return false, fmt.Errorf("check template slot: %w", err)
	}
	return exists, nil
}

// Create stores a session and its additional participants in one transaction.
func (r *SessionRepository) Create(ctx context.Context, session *models.ClassSession) error {
	if session.ID == "" {
		session.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if session.CreatedAt.IsZero() {
		session.CreatedAt = now
	}
	session.UpdatedAt = now

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create session: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	const query = `INSERT INTO class_sessions (id, teacher_id, student_id, school_id, template_id, session_date, start_time, end_time, duration_minutes, kind, status, max_participants, metadata, notes, created_by, created_at, updated_at) VALUES (:id, :teacher_id, :student_id, :school_id, :template_id, :session_date, :start_time, :end_time, :duration_minutes, :kind, :status, :max_participants, :metadata, :notes, :created_by, :created_at, :updated_at)`
	if _, err = tx.NamedExecContext(ctx, query, session); err != nil {
		return fmt.Errorf("create session: %w", err)
	}

	for _, userID := range session.Participants {
		if _, err = tx.ExecContext(ctx, `INSERT INTO class_session_participants (session_id, user_id, joined_at) VALUES ($1, $2, $3)`, session.ID, userID, now); err != nil {
			return fmt.Errorf("add session participant: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit create session: %w", err)
	}
	return nil
}

// Update persists lifecycle fields after a status transition.
func (r *SessionRepository) Update(ctx context.Context, session *models.ClassSession) error {
	session.UpdatedAt = time.Now().UTC()
	const query = `UPDATE class_sessions SET status = :status, notes = :notes, updated_at = :updated_at,
confirmed_at = :confirmed_at, confirmed_by = :confirmed_by,
cancelled_at = :cancelled_at, cancelled_by = :cancelled_by, cancel_reason = :cancel_reason,
completed_at = :completed_at, completed_by = :completed_by, actual_duration_minutes = :actual_duration_minutes,
rejected_at = :rejected_at, rejected_by = :rejected_by,
no_show_at = :no_show_at, no_show_by = :no_show_by, no_show_type = :no_show_type, no_show_reason = :no_show_reason
WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, session); err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	return nil
}

// AddParticipant appends a participant to a group session.
func (r *SessionRepository) AddParticipant(ctx context.Context, sessionID, userID string) error {
	if _, err := r.db.ExecContext(ctx, `INSERT INTO class_session_participants (session_id, user_id, joined_at) VALUES ($1, $2, $3)`, sessionID, userID, time.Now().UTC()); err != nil {
		return fmt.Errorf("add participant: %w", err)
	}
	return nil
}

func (r *SessionRepository) loadParticipants(ctx context.Context, session *models.ClassSession) error {
	var userIDs []string
	if err := r.db.SelectContext(ctx, &userIDs, `SELECT user_id FROM class_session_participants WHERE session_id = $1 ORDER BY joined_at ASC`, session.ID); err != nil {
		return fmt.Errorf("load participants: %w", err)
	}
	session.Participants = userIDs
	return nil
}

func (r *SessionRepository) loadParticipantsBulk(ctx context.Context, sessions []models.ClassSession) error {
	if len(sessions) == 0 {
		return nil
	}
	ids := make([]string, len(sessions))
	for i := range sessions {
		ids[i] = sessions[i].ID
	}

	query, args, err := sqlx.In(`SELECT session_id, user_id FROM class_session_participants WHERE session_id IN (?) ORDER BY joined_at ASC`, ids)
	if err != nil {
		return fmt.Errorf("build participants query: %w", err)
	}
	query = r.db.Rebind(query)

	rows := []struct {
		SessionID string `db:"session_id"`
		UserID    string `db:"user_id"`
	}{}
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return fmt.Errorf("load participants: %w", err)
	}

	byID := make(map[string][]string, len(sessions))
	for _, row := range rows {
		byID[row.SessionID] = append(byID[row.SessionID], row.UserID)
	}
	for i := range sessions {
		sessions[i].Participants = byID[sessions[i].ID]
	}
	return nil
}

func prefixColumns(alias, columns string) string {
	parts := strings.Split(columns, ", ")
	for i, part := range parts {
		parts[i] = alias + "." + part
	}
	return strings.Join(parts, ", ")
}
