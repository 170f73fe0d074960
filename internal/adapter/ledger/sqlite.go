package ledger

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // SQLite driver

	"ragalert/internal/adapter/ledger/migrations"
	"ragalert/internal/domain"
)

// Ledger records classified incidents in SQLite.
type Ledger struct {
	db   *sql.DB
	path string
	now  func() time.Time
}

// Open opens or creates the ledger database at path.
func Open(path string) (*Ledger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating ledger directory: %w", err)
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening ledger: %w", err)
	}

	l := &Ledger{db: db, path: path, now: time.Now}
	if err := l.migrate(migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return l, nil
}

func (l *Ledger) Close() error {
	return l.db.Close()
}

func (l *Ledger) Path() string {
	return l.path
}

func (l *Ledger) migrate(fsys embed.FS) error {
	_, err := l.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	var current int
	if err := l.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&current); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}
	var upFiles []string
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".up.sql") {
			upFiles = append(upFiles, e.Name())
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue
		}
		if version <= current {
			continue
		}
		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}
		if _, err := l.db.Exec(string(content)); err != nil {
			return fmt.Errorf("executing migration %s: %w", name, err)
		}
	}
	return nil
}

// Record stores an incident. A missing ID or timestamp is filled in.
func (l *Ledger) Record(ctx context.Context, inc domain.Incident) error {
	if inc.ID == "" {
		inc.ID = uuid.NewString()
	}
	if inc.CreatedAt.IsZero() {
		inc.CreatedAt = l.now()
	}

	_, err := l.db.ExecContext(ctx, `
		INSERT INTO incidents (id, query, answer, context_url, notified, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, inc.ID, inc.Query, inc.Answer, inc.ContextURL, inc.Notified, inc.CreatedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("recording incident: %w", err)
	}
	return nil
}

// List returns the most recent incidents first. limit <= 0 returns all.
func (l *Ledger) List(ctx context.Context, limit int) ([]domain.Incident, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := l.db.QueryContext(ctx, `
		SELECT id, query, answer, context_url, notified, created_at
		FROM incidents
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing incidents: %w", err)
	}
	defer rows.Close()

	var out []domain.Incident
	for rows.Next() {
		var (
			inc     domain.Incident
			created string
		)
		if err := rows.Scan(&inc.ID, &inc.Query, &inc.Answer, &inc.ContextURL, &inc.Notified, &created); err != nil {
			return nil, fmt.Errorf("scanning incident: %w", err)
		}
		inc.CreatedAt, err = time.Parse(time.RFC3339Nano, created)
		if err != nil {
			return nil, fmt.Errorf("parsing incident time %q: %w", created, err)
		}
		out = append(out, inc)
	}
	return out, rows.Err()
}
