package repository

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"structify/internal/web/models"

	"github.com/google/uuid"
	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

// ============================================================
// SQLite Store
// ============================================================

//go:embed migrations/001_init_sessions.sql
var initSessionsSQL string

type SQLiteStore struct {
	db  *sql.DB
	mu  sync.Mutex
	now func() time.Time
}

func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db, now: time.Now}
}

// Init применяет миграции.
func (s *SQLiteStore) Init(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, initSessionsSQL); err != nil {
		return fmt.Errorf("apply migration: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Create(ctx context.Context) (*models.Session, error) {
	sess := models.NewSession(uuid.NewString(), s.now().UTC())

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := insertSession(ctx, s.db, sess); err != nil {
		return nil, fmt.Errorf("insert session: %w", err)
	}
	return sess, nil
}

func (s *SQLiteStore) Get(ctx context.Context, id string) (*models.Session, error) {
	return scanSession(s.db.QueryRowContext(ctx, selectSessionSQL, id))
}

func (s *SQLiteStore) Update(ctx context.Context, id string, fn func(*models.Session) error) (*models.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	sess, err := scanSession(tx.QueryRowContext(ctx, selectSessionSQL, id))
	if err != nil {
		return nil, err
	}
	if err := fn(sess); err != nil {
		return nil, err
	}
	sess.ID = id
	sess.UpdatedAt = s.now().UTC()

	if err := updateSession(ctx, tx, sess); err != nil {
		return nil, fmt.Errorf("update session: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return sess, nil
}

func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ============================================================
// Row mapping
// ============================================================

const selectSessionSQL = `
    SELECT id, image_name, image_size, image_type, image_last_modified, image_ref,
           archive_ref, thresholds, notices, created_at, updated_at
    FROM sessions
    WHERE id = ?
`

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertSession(ctx context.Context, db execer, sess *models.Session) error {
	args, err := sessionArgs(sess)
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, `
        INSERT INTO sessions (image_name, image_size, image_type, image_last_modified, image_ref,
                              archive_ref, thresholds, notices, created_at, updated_at, id)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
    `, args...)
	return err
}

func updateSession(ctx context.Context, db execer, sess *models.Session) error {
	args, err := sessionArgs(sess)
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, `
        UPDATE sessions
        SET image_name = ?, image_size = ?, image_type = ?, image_last_modified = ?, image_ref = ?,
            archive_ref = ?, thresholds = ?, notices = ?, created_at = ?, updated_at = ?
        WHERE id = ?
    `, args...)
	return err
}

// sessionArgs порядок совпадает с INSERT/UPDATE выше, id последним.
func sessionArgs(sess *models.Session) ([]any, error) {
	thresholds, err := json.Marshal(sess.Thresholds.Normalize())
	if err != nil {
		return nil, fmt.Errorf("encode thresholds: %w", err)
	}
	notices := sess.Notices
	if notices == nil {
		notices = []models.Notice{}
	}
	noticesJSON, err := json.Marshal(notices)
	if err != nil {
		return nil, fmt.Errorf("encode notices: %w", err)
	}

	var img models.SelectedImage
	if sess.Image != nil {
		img = *sess.Image
	}

	return []any{
		img.Name, img.Size, img.Type, img.LastModified, img.Ref,
		sess.ArchiveRef, string(thresholds), string(noticesJSON),
		sess.CreatedAt.Format(time.RFC3339Nano), sess.UpdatedAt.Format(time.RFC3339Nano),
		sess.ID,
	}, nil
}

func scanSession(row *sql.Row) (*models.Session, error) {
	var (
		sess                 models.Session
		img                  models.SelectedImage
		thresholds, notices  string
		createdAt, updatedAt string
	)
	err := row.Scan(&sess.ID, &img.Name, &img.Size, &img.Type, &img.LastModified, &img.Ref,
		&sess.ArchiveRef, &thresholds, &notices, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	if img.Ref != "" {
		sess.Image = &img
	}
	if err := json.Unmarshal([]byte(thresholds), &sess.Thresholds); err != nil {
		return nil, fmt.Errorf("decode thresholds: %w", err)
	}
	sess.Thresholds = sess.Thresholds.Normalize()
	if err := json.Unmarshal([]byte(notices), &sess.Notices); err != nil {
		return nil, fmt.Errorf("decode notices: %w", err)
	}
	if len(sess.Notices) == 0 {
		sess.Notices = nil
	}
	sess.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	sess.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)
	return &sess, nil
}

// OpenSQLite открывает sqlite по указанному пути.
func OpenSQLite(dbPath string) (*sql.DB, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("mkdir db dir: %w", err)
	}

	dsn := fmt.Sprintf("file:%s?mode=rwc&_pragma=busy_timeout(5000)", dbPath)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	return db, nil
}
