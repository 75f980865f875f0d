// Package storage persists the interaction log and automation jobs in a
// local SQLite database.
package storage

import (
	"database/sql"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/luna-svc/luna/internal/mcp"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store wraps a SQLite database with methods for the interaction log and
// automation jobs.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) a SQLite database in dataDir and runs pending
// migrations. Pass ":memory:" as dataDir for an in-memory database (used
// by tests).
func Open(dataDir string) (*Store, error) {
	var dsn string
	if dataDir == ":memory:" {
		dsn = ":memory:"
	} else {
		if err := os.MkdirAll(dataDir, 0o755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
		dsn = filepath.Join(dataDir, "luna.db")
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	// Limit to single connection to avoid "database is locked" errors.
	db.SetMaxOpenConns(1)

	// Set busy timeout so concurrent access waits briefly instead of failing immediately.
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	// Enable WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting journal mode: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate reads embedded SQL migration files and applies any that haven't been run yet.
func (s *Store) migrate() error {
	// Ensure schema_version table exists (bootstrap).
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		return fmt.Errorf("creating schema_version table: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	// Sort by filename to guarantee ascending order.
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}

		version, err := parseMigrationVersion(entry.Name())
		if err != nil {
			return err
		}

		// Check if already applied.
		var exists int
		if err := s.db.QueryRow("SELECT COUNT(*) FROM schema_version WHERE version = ?", version).Scan(&exists); err != nil {
			return fmt.Errorf("checking migration %d: %w", version, err)
		}
		if exists > 0 {
			continue
		}

		content, err := migrationsFS.ReadFile("migrations/" + entry.Name())
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", entry.Name(), err)
		}

		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("beginning transaction for migration %d: %w", version, err)
		}

		if _, err := tx.Exec(string(content)); err != nil {
			tx.Rollback()
			return fmt.Errorf("applying migration %d: %w", version, err)
		}

		if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", version); err != nil {
			tx.Rollback()
			return fmt.Errorf("recording migration %d: %w", version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("committing migration %d: %w", version, err)
		}
	}

	return nil
}

func parseMigrationVersion(filename string) (int, error) {
	var version int
	if _, err := fmt.Sscanf(filename, "%d_", &version); err != nil {
		return 0, fmt.Errorf("parsing migration version from %q: %w", filename, err)
	}
	return version, nil
}

// AppliedMigrations returns the list of applied migration versions in ascending order.
func (s *Store) AppliedMigrations() ([]int, error) {
	rows, err := s.db.Query("SELECT version FROM schema_version ORDER BY version ASC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var versions []int
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		versions = append(versions, v)
	}
	return versions, rows.Err()
}

// --- Interaction log ---

func (s *Store) SaveInteraction(i Interaction) error {
	if i.ID == "" {
		i.ID = uuid.New().String()
	}
	if i.CreatedAt.IsZero() {
		i.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.Exec(`
		INSERT INTO interactions (id, request_id, session_id, user_id, task_type, language, success, response_time, tokens_used, error_message, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		i.ID, i.RequestID, i.SessionID, i.UserID, i.TaskType, i.Language,
		i.Success, i.ResponseTime, i.TokensUsed, i.ErrorMessage,
		i.CreatedAt.UTC().Format(time.RFC3339),
	)
	return err
}

func (s *Store) GetInteraction(id string) (Interaction, error) {
	var i Interaction
	var createdAt string
	err := s.db.QueryRow(`
		SELECT id, request_id, session_id, user_id, task_type, language, success, response_time, tokens_used, error_message, created_at
		FROM interactions WHERE id = ?`, id,
	).Scan(&i.ID, &i.RequestID, &i.SessionID, &i.UserID, &i.TaskType, &i.Language,
		&i.Success, &i.ResponseTime, &i.TokensUsed, &i.ErrorMessage, &createdAt)
	if err == sql.ErrNoRows {
		return Interaction{}, mcp.ErrNotFound
	}
	if err != nil {
		return Interaction{}, err
	}
	t, err := time.Parse(time.RFC3339, createdAt)
	if err != nil {
		return Interaction{}, fmt.Errorf("parsing created_at: %w", err)
	}
	i.CreatedAt = t
	return i, nil
}

func (s *Store) RecentInteractions(limit int) ([]Interaction, error) {
	rows, err := s.db.Query(`
		SELECT id, request_id, session_id, user_id, task_type, language, success, response_time, tokens_used, error_message, created_at
		FROM interactions ORDER BY created_at DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []Interaction
	for rows.Next() {
		var i Interaction
		var createdAt string
		if err := rows.Scan(&i.ID, &i.RequestID, &i.SessionID, &i.UserID, &i.TaskType, &i.Language,
			&i.Success, &i.ResponseTime, &i.TokensUsed, &i.ErrorMessage, &createdAt); err != nil {
			return nil, err
		}
		t, err := time.Parse(time.RFC3339, createdAt)
		if err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}
		i.CreatedAt = t
		results = append(results, i)
	}
	return results, rows.Err()
}

// WriteRecord persists an analytics record as an interaction row. It makes
// Store usable as the analytics recorder's durable sink.
func (s *Store) WriteRecord(rec mcp.AnalyticsRecord) error {
	return s.SaveInteraction(Interaction{
		ID:           rec.ID,
		RequestID:    rec.RequestID,
		SessionID:    rec.SessionID,
		UserID:       rec.UserID,
		TaskType:     string(rec.TaskType),
		Language:     rec.Language,
		Success:      rec.Success,
		ResponseTime: rec.ResponseTime,
		TokensUsed:   rec.TokensUsed,
		CreatedAt:    rec.CreatedAt,
	})
}

// --- Automation jobs ---

func (s *Store) CreateAutomationJob(job AutomationJob) (AutomationJob, error) {
	if job.ID == "" {
		job.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if job.CreatedAt.IsZero() {
		job.CreatedAt = now
	}
	job.UpdatedAt = now
	if job.Status == "" {
		job.Status = JobStatusActive
	}
	if job.ConfigJSON == "" {
		job.ConfigJSON = "{}"
	}

	var lastRun any
	if !job.LastRun.IsZero() {
		lastRun = job.LastRun.UTC().Format(time.RFC3339)
	}
	_, err := s.db.Exec(`
		INSERT INTO automation_jobs (id, name, description, type, status, config_json, last_run, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		job.ID, job.Name, job.Description, job.Type, job.Status, job.ConfigJSON,
		lastRun, job.CreatedAt.Format(time.RFC3339), job.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return AutomationJob{}, err
	}
	return job, nil
}

func (s *Store) GetAutomationJob(id string) (AutomationJob, error) {
	row := s.db.QueryRow(`
		SELECT id, name, description, type, status, config_json, last_run, created_at, updated_at
		FROM automation_jobs WHERE id = ?`, id)
	job, err := scanAutomationJob(row)
	if err == sql.ErrNoRows {
		return AutomationJob{}, mcp.ErrNotFound
	}
	return job, err
}

func (s *Store) ListAutomationJobs() ([]AutomationJob, error) {
	rows, err := s.db.Query(`
		SELECT id, name, description, type, status, config_json, last_run, created_at, updated_at
		FROM automation_jobs ORDER BY created_at ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []AutomationJob
	for rows.Next() {
		job, err := scanAutomationJob(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, job)
	}
	return results, rows.Err()
}

func (s *Store) UpdateAutomationJob(job AutomationJob) error {
	job.UpdatedAt = time.Now().UTC()
	var lastRun any
	if !job.LastRun.IsZero() {
		lastRun = job.LastRun.UTC().Format(time.RFC3339)
	}
	res, err := s.db.Exec(`
		UPDATE automation_jobs
		SET name = ?, description = ?, type = ?, status = ?, config_json = ?, last_run = ?, updated_at = ?
		WHERE id = ?`,
		job.Name, job.Description, job.Type, job.Status, job.ConfigJSON,
		lastRun, job.UpdatedAt.Format(time.RFC3339), job.ID,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return mcp.ErrNotFound
	}
	return nil
}

func (s *Store) DeleteAutomationJob(id string) error {
	res, err := s.db.Exec(`DELETE FROM automation_jobs WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return mcp.ErrNotFound
	}
	return nil
}

// scanner covers both sql.Row and sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanAutomationJob(row scanner) (AutomationJob, error) {
	var job AutomationJob
	var lastRun sql.NullString
	var createdAt, updatedAt string
	err := row.Scan(&job.ID, &job.Name, &job.Description, &job.Type, &job.Status,
		&job.ConfigJSON, &lastRun, &createdAt, &updatedAt)
	if err != nil {
		return AutomationJob{}, err
	}
	if lastRun.Valid {
		if job.LastRun, err = time.Parse(time.RFC3339, lastRun.String); err != nil {
			return AutomationJob{}, fmt.Errorf("parsing last_run: %w", err)
		}
	}
	if job.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
		return AutomationJob{}, fmt.Errorf("parsing created_at: %w", err)
	}
	if job.UpdatedAt, err = time.Parse(time.RFC3339, updatedAt); err != nil {
		return AutomationJob{}, fmt.Errorf("parsing updated_at: %w", err)
	}
	return job, nil
}

// SeedDemoJobs inserts a small set of demo automation jobs when the table
// is empty, so a fresh install has data to show.
func (s *Store) SeedDemoJobs() error {
	var count int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM automation_jobs").Scan(&count); err != nil {
		return fmt.Errorf("counting automation jobs: %w", err)
	}
	if count > 0 {
		return nil
	}

	demos := []AutomationJob{
		{
			Name:        "Nightly code review digest",
			Description: "Summarizes open review findings every night",
			Type:        "scheduled",
			Status:      JobStatusActive,
			ConfigJSON:  `{"schedule":"0 2 * * *","channels":["email"]}`,
		},
		{
			Name:        "Failing test triage",
			Description: "Runs debugging analysis when CI reports a failure",
			Type:        "triggered",
			Status:      JobStatusActive,
			ConfigJSON:  `{"trigger":"ci_failure","max_depth":3}`,
		},
		{
			Name:        "Docs refresh",
			Description: "Regenerates API documentation on demand",
			Type:        "manual",
			Status:      JobStatusPaused,
			ConfigJSON:  `{"doc_type":"API","audience":"developers"}`,
		},
	}
	for _, job := range demos {
		if _, err := s.CreateAutomationJob(job); err != nil {
			return fmt.Errorf("seeding job %q: %w", job.Name, err)
		}
	}
	return nil
}
