package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/pavelanni/examgrader/internal/model"

	_ "modernc.org/sqlite"
)

type Store struct {
	db *sql.DB
}

func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if dbPath == ":memory:" {
		// Each connection would otherwise get its own empty database.
		db.SetMaxOpenConns(1)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		nickname TEXT NOT NULL DEFAULT '',
		email TEXT NOT NULL UNIQUE,
		mobile TEXT NOT NULL DEFAULT '',
		password_hash TEXT NOT NULL,
		role TEXT NOT NULL,
		dob TEXT NOT NULL DEFAULT '',
		class_name TEXT NOT NULL DEFAULT '',
		section TEXT NOT NULL DEFAULT '',
		school TEXT NOT NULL DEFAULT '',
		student_code TEXT NOT NULL DEFAULT '',
		parent_name TEXT NOT NULL DEFAULT '',
		parent_mobile TEXT NOT NULL DEFAULT '',
		parent_email TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS subjects (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		class_name TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS tests (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		subject_id TEXT NOT NULL DEFAULT '',
		class_name TEXT NOT NULL DEFAULT '',
		test_type TEXT NOT NULL DEFAULT '',
		duration_minutes INTEGER NOT NULL DEFAULT 0,
		total_marks INTEGER NOT NULL,
		questions TEXT NOT NULL,
		created_by TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL,
		scheduled_at DATETIME
	);

	CREATE TABLE IF NOT EXISTS results (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		test_id TEXT NOT NULL,
		student_id TEXT NOT NULL,
		answers TEXT NOT NULL,
		outcomes TEXT NOT NULL,
		total_score REAL NOT NULL,
		max_score INTEGER NOT NULL,
		submitted_at DATETIME NOT NULL,
		evaluated INTEGER NOT NULL DEFAULT 0,
		rescored_from TEXT NOT NULL DEFAULT ''
	);

	CREATE INDEX IF NOT EXISTS idx_results_student ON results(student_id);

	CREATE TABLE IF NOT EXISTS revoked_tokens (
		id TEXT PRIMARY KEY,
		expires_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS exam_metadata (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// CreateSubject stores a subject.
func (s *Store) CreateSubject(ctx context.Context, sub model.Subject) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO subjects (id, name, class_name, description, created_at) VALUES (?, ?, ?, ?, ?)`,
		sub.ID, sub.Name, sub.ClassName, sub.Description, sub.CreatedAt,
	)
	return err
}

// ListSubjects returns subjects, optionally filtered by class. An empty
// className means no filtering.
func (s *Store) ListSubjects(ctx context.Context, className string) ([]model.Subject, error) {
	query := `SELECT id, name, class_name, description, created_at FROM subjects WHERE 1=1`
	var args []any
	if className != "" {
		query += ` AND class_name = ?`
		args = append(args, className)
	}
	query += ` ORDER BY created_at`
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var subjects []model.Subject
	for rows.Next() {
		var sub model.Subject
		if err := rows.Scan(&sub.ID, &sub.Name, &sub.ClassName, &sub.Description, &sub.CreatedAt); err != nil {
			return nil, err
		}
		subjects = append(subjects, sub)
	}
	return subjects, rows.Err()
}

// CreateTest stores a test together with its answer key.
func (s *Store) CreateTest(ctx context.Context, t model.Test) error {
	questions, err := json.Marshal(t.Questions)
	if err != nil {
		return fmt.Errorf("marshal questions: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO tests (id, title, subject_id, class_name, test_type, duration_minutes, total_marks, questions, created_by, created_at, scheduled_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.Title, t.SubjectID, t.ClassName, t.TestType, t.DurationMinutes, t.TotalMarks,
		string(questions), t.CreatedBy, t.CreatedAt, t.ScheduledAt,
	)
	if err != nil {
		slog.Error("failed to create test", "id", t.ID, "error", err)
	}
	return err
}

const testColumns = `id, title, subject_id, class_name, test_type, duration_minutes, total_marks, questions, created_by, created_at, scheduled_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanTest(row scanner) (model.Test, error) {
	var t model.Test
	var questions string
	err := row.Scan(&t.ID, &t.Title, &t.SubjectID, &t.ClassName, &t.TestType, &t.DurationMinutes,
		&t.TotalMarks, &questions, &t.CreatedBy, &t.CreatedAt, &t.ScheduledAt)
	if err != nil {
		return t, err
	}
	if err := json.Unmarshal([]byte(questions), &t.Questions); err != nil {
		return t, fmt.Errorf("unmarshal questions of test %s: %w", t.ID, err)
	}
	return t, nil
}

// GetTest returns a test by ID.
func (s *Store) GetTest(ctx context.Context, id string) (*model.Test, error) {
	t, err := scanTest(s.db.QueryRowContext(ctx, `SELECT `+testColumns+` FROM tests WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &model.NotFoundError{Kind: "test", ID: id}
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// ListTests returns tests matching the given filters.
// Empty strings mean no filtering on that field.
func (s *Store) ListTests(ctx context.Context, className string, testType model.TestType) ([]model.Test, error) {
	query := `SELECT ` + testColumns + ` FROM tests WHERE 1=1`
	var args []any
	if className != "" {
		query += ` AND class_name = ?`
		args = append(args, className)
	}
	if testType != "" {
		query += ` AND test_type = ?`
		args = append(args, testType)
	}
	query += ` ORDER BY created_at`
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var tests []model.Test
	for rows.Next() {
		t, err := scanTest(rows)
		if err != nil {
			return nil, err
		}
		tests = append(tests, t)
	}
	return tests, rows.Err()
}

// SaveResult inserts a new result. Results are never updated.
func (s *Store) SaveResult(ctx context.Context, r model.Result) (string, error) {
	answers, err := json.Marshal(r.Answers)
	if err != nil {
		return "", fmt.Errorf("marshal answers: %w", err)
	}
	outcomes, err := json.Marshal(r.Outcomes)
	if err != nil {
		return "", fmt.Errorf("marshal outcomes: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO results (id, test_id, student_id, answers, outcomes, total_score, max_score, submitted_at, evaluated, rescored_from)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.TestID, r.StudentID, string(answers), string(outcomes), r.TotalScore, r.MaxScore,
		r.SubmittedAt, r.Evaluated, r.RescoredFrom,
	)
	if err != nil {
		return "", err
	}
	return r.ID, nil
}

const resultColumns = `id, test_id, student_id, answers, outcomes, total_score, max_score, submitted_at, evaluated, rescored_from`

func scanResult(row scanner) (model.Result, error) {
	var r model.Result
	var answers, outcomes string
	err := row.Scan(&r.ID, &r.TestID, &r.StudentID, &answers, &outcomes, &r.TotalScore, &r.MaxScore,
		&r.SubmittedAt, &r.Evaluated, &r.RescoredFrom)
	if err != nil {
		return r, err
	}
	if err := json.Unmarshal([]byte(answers), &r.Answers); err != nil {
		return r, fmt.Errorf("unmarshal answers of result %s: %w", r.ID, err)
	}
	if err := json.Unmarshal([]byte(outcomes), &r.Outcomes); err != nil {
		return r, fmt.Errorf("unmarshal outcomes of result %s: %w", r.ID, err)
	}
	return r, nil
}

// GetResult returns a result by ID.
func (s *Store) GetResult(ctx context.Context, id string) (*model.Result, error) {
	r, err := scanResult(s.db.QueryRowContext(ctx, `SELECT `+resultColumns+` FROM results WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &model.NotFoundError{Kind: "result", ID: id}
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// ListResultsByStudent returns a student's results in insertion order.
func (s *Store) ListResultsByStudent(ctx context.Context, studentID string) ([]model.Result, error) {
	return s.queryResults(ctx, `SELECT `+resultColumns+` FROM results WHERE student_id = ? ORDER BY seq`, studentID)
}

// ListResults returns all results in insertion order.
func (s *Store) ListResults(ctx context.Context) ([]model.Result, error) {
	return s.queryResults(ctx, `SELECT `+resultColumns+` FROM results ORDER BY seq`)
}

func (s *Store) queryResults(ctx context.Context, query string, args ...any) ([]model.Result, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var results []model.Result
	for rows.Next() {
		r, err := scanResult(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, r)
	}
	return results, rows.Err()
}
