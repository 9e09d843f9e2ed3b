package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hyperjump/kanren/internal/models"
)

// schemaVersion is stored in PRAGMA user_version. Databases written with another version are rejected.
const schemaVersion = 2

// SQLiteStorage implements Storage using SQLite. Documents are stored as JSON.
type SQLiteStorage struct {
	db    *sql.DB
	locks *LockManager
}

// Option configures SQLiteStorage.
type Option func(*SQLiteStorage)

// WithLockDir enables cross-process lock files under dir.
func WithLockDir(dir string) Option {
	return func(s *SQLiteStorage) { s.locks = NewLockManager(dir) }
}

// NewSQLiteStorage opens or creates a SQLite database at dbPath and initializes the schema.
// Parent directories are created if they do not exist. ":memory:" opens a private in-memory database.
func NewSQLiteStorage(dbPath string, opts ...Option) (*SQLiteStorage, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == ":memory:" {
		// Every connection would otherwise see its own empty database.
		db.SetMaxOpenConns(1)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	s := &SQLiteStorage{db: db, locks: NewLockManager("")}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func initSchema(db *sql.DB) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return err
	}
	if version != 0 && version != schemaVersion {
		return fmt.Errorf("unsupported schema version %d (want %d)", version, schemaVersion)
	}
	schema := `
	CREATE TABLE IF NOT EXISTS videos (
		id TEXT PRIMARY KEY,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS scenes (
		video_id TEXT PRIMARY KEY,
		scene_count INTEGER NOT NULL,
		document TEXT NOT NULL,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (video_id) REFERENCES videos(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS transcripts (
		video_id TEXT NOT NULL,
		source TEXT NOT NULL,
		document TEXT NOT NULL,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (video_id, source),
		FOREIGN KEY (video_id) REFERENCES videos(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS relationships (
		video_id TEXT PRIMARY KEY,
		schema_version INTEGER NOT NULL,
		document TEXT NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (video_id) REFERENCES videos(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS markers (
		video_id TEXT NOT NULL,
		stage TEXT NOT NULL,
		kind TEXT NOT NULL,
		message TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (video_id, stage, kind)
	);

	CREATE INDEX IF NOT EXISTS idx_videos_updated_at ON videos(updated_at);
	`
	if _, err := db.Exec(schema); err != nil {
		return err
	}
	_, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", schemaVersion))
	return err
}

func touchVideo(ctx context.Context, tx *sql.Tx, videoID string, now time.Time) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO videos (id, created_at, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET updated_at = excluded.updated_at`,
		videoID, now, now,
	)
	return err
}

// withVideoTx runs fn in a transaction while holding the video's write lock.
func (s *SQLiteStorage) withVideoTx(ctx context.Context, videoID string, fn func(tx *sql.Tx, now time.Time) error) error {
	unlock, err := s.locks.Lock(ctx, videoID)
	if err != nil {
		return err
	}
	defer unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	now := time.Now()
	if err := touchVideo(ctx, tx, videoID, now); err != nil {
		return fmt.Errorf("failed to record video: %w", err)
	}
	if err := fn(tx, now); err != nil {
		return err
	}
	return tx.Commit()
}

func writeScenes(ctx context.Context, tx *sql.Tx, videoID string, scenes []models.Scene, now time.Time) error {
	if scenes == nil {
		scenes = []models.Scene{}
	}
	doc, err := json.Marshal(scenes)
	if err != nil {
		return fmt.Errorf("failed to marshal scenes: %w", err)
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO scenes (video_id, scene_count, document, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(video_id) DO UPDATE SET scene_count = excluded.scene_count,
		 document = excluded.document, updated_at = excluded.updated_at`,
		videoID, len(scenes), string(doc), now,
	)
	return err
}

// SaveScenes replaces the scene list of a video.
func (s *SQLiteStorage) SaveScenes(ctx context.Context, videoID string, scenes []models.Scene) error {
	return s.withVideoTx(ctx, videoID, func(tx *sql.Tx, now time.Time) error {
		return writeScenes(ctx, tx, videoID, scenes, now)
	})
}

func readScenes(ctx context.Context, q interface {
	QueryRowContext(context.Context, string, ...any) *sql.Row
}, videoID string) ([]models.Scene, error) {
	var doc string
	err := q.QueryRowContext(ctx, `SELECT document FROM scenes WHERE video_id = ?`, videoID).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("scenes for %s: %w", videoID, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	var scenes []models.Scene
	if err := json.Unmarshal([]byte(doc), &scenes); err != nil {
		return nil, fmt.Errorf("failed to unmarshal scenes: %w", err)
	}
	return scenes, nil
}

// GetScenes returns the scene list of a video.
func (s *SQLiteStorage) GetScenes(ctx context.Context, videoID string) ([]models.Scene, error) {
	return readScenes(ctx, s.db, videoID)
}

// UpdateScenes reads, modifies, and writes the scene list in one locked transaction.
func (s *SQLiteStorage) UpdateScenes(ctx context.Context, videoID string, fn func([]models.Scene) error) error {
	return s.withVideoTx(ctx, videoID, func(tx *sql.Tx, now time.Time) error {
		scenes, err := readScenes(ctx, tx, videoID)
		if err != nil {
			return err
		}
		if err := fn(scenes); err != nil {
			return err
		}
		return writeScenes(ctx, tx, videoID, scenes, now)
	})
}

// SaveTranscript replaces the transcript of a video for one source.
func (s *SQLiteStorage) SaveTranscript(ctx context.Context, videoID string, source models.TranscriptSource, entries []models.TranscriptEntry) error {
	if entries == nil {
		entries = []models.TranscriptEntry{}
	}
	doc, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("failed to marshal transcript: %w", err)
	}
	return s.withVideoTx(ctx, videoID, func(tx *sql.Tx, now time.Time) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO transcripts (video_id, source, document, updated_at) VALUES (?, ?, ?, ?)
			 ON CONFLICT(video_id, source) DO UPDATE SET document = excluded.document, updated_at = excluded.updated_at`,
			videoID, string(source), string(doc), now,
		)
		return err
	})
}

// GetTranscript returns the transcript of a video for one source.
func (s *SQLiteStorage) GetTranscript(ctx context.Context, videoID string, source models.TranscriptSource) ([]models.TranscriptEntry, error) {
	var doc string
	err := s.db.QueryRowContext(ctx,
		`SELECT document FROM transcripts WHERE video_id = ? AND source = ?`, videoID, string(source),
	).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s transcript for %s: %w", source, videoID, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	var entries []models.TranscriptEntry
	if err := json.Unmarshal([]byte(doc), &entries); err != nil {
		return nil, fmt.Errorf("failed to unmarshal transcript: %w", err)
	}
	return entries, nil
}

// PreferredTranscript returns the whisper transcript when present, else the youtube one.
func (s *SQLiteStorage) PreferredTranscript(ctx context.Context, videoID string) ([]models.TranscriptEntry, models.TranscriptSource, error) {
	for _, src := range []models.TranscriptSource{models.TranscriptWhisper, models.TranscriptYouTube} {
		entries, err := s.GetTranscript(ctx, videoID, src)
		if err == nil {
			return entries, src, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return nil, "", err
		}
	}
	return nil, "", fmt.Errorf("transcript for %s: %w", videoID, ErrNotFound)
}

// SaveRelationships stores graph, replacing any previous graph of the same video.
func (s *SQLiteStorage) SaveRelationships(ctx context.Context, graph *models.RelationshipGraph) error {
	if graph.SchemaVersion == 0 {
		graph.SchemaVersion = models.RelationshipSchemaVersion
	}
	if graph.CreatedAt.IsZero() {
		graph.CreatedAt = time.Now()
	}
	doc, err := json.Marshal(graph)
	if err != nil {
		return fmt.Errorf("failed to marshal relationships: %w", err)
	}
	return s.withVideoTx(ctx, graph.VideoID, func(tx *sql.Tx, _ time.Time) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO relationships (video_id, schema_version, document, created_at) VALUES (?, ?, ?, ?)
			 ON CONFLICT(video_id) DO UPDATE SET schema_version = excluded.schema_version,
			 document = excluded.document, created_at = excluded.created_at`,
			graph.VideoID, graph.SchemaVersion, string(doc), graph.CreatedAt,
		)
		return err
	})
}

// GetRelationships returns the stored graph. Graphs of another schema version are reported as not found.
func (s *SQLiteStorage) GetRelationships(ctx context.Context, videoID string) (*models.RelationshipGraph, error) {
	var doc string
	var version int
	err := s.db.QueryRowContext(ctx,
		`SELECT schema_version, document FROM relationships WHERE video_id = ?`, videoID,
	).Scan(&version, &doc)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && version != models.RelationshipSchemaVersion) {
		return nil, fmt.Errorf("relationships for %s: %w", videoID, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	var graph models.RelationshipGraph
	if err := json.Unmarshal([]byte(doc), &graph); err != nil {
		return nil, fmt.Errorf("failed to unmarshal relationships: %w", err)
	}
	return &graph, nil
}

// DeleteRelationships removes the stored graph of a video.
func (s *SQLiteStorage) DeleteRelationships(ctx context.Context, videoID string) error {
	unlock, err := s.locks.Lock(ctx, videoID)
	if err != nil {
		return err
	}
	defer unlock()
	_, err = s.db.ExecContext(ctx, `DELETE FROM relationships WHERE video_id = ?`, videoID)
	return err
}

// SetMarker creates or replaces a marker.
func (s *SQLiteStorage) SetMarker(ctx context.Context, videoID string, stage Stage, kind MarkerKind, message string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO markers (video_id, stage, kind, message, created_at) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(video_id, stage, kind) DO UPDATE SET message = excluded.message, created_at = excluded.created_at`,
		videoID, string(stage), string(kind), message, time.Now(),
	)
	return err
}

// GetMarker returns the marker, or nil when it does not exist.
func (s *SQLiteStorage) GetMarker(ctx context.Context, videoID string, stage Stage, kind MarkerKind) (*Marker, error) {
	m := Marker{VideoID: videoID, Stage: stage, Kind: kind}
	var message sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT message, created_at FROM markers WHERE video_id = ? AND stage = ? AND kind = ?`,
		videoID, string(stage), string(kind),
	).Scan(&message, &m.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	m.Message = message.String
	return &m, nil
}

// ClearMarker removes a marker if present.
func (s *SQLiteStorage) ClearMarker(ctx context.Context, videoID string, stage Stage, kind MarkerKind) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM markers WHERE video_id = ? AND stage = ? AND kind = ?`,
		videoID, string(stage), string(kind),
	)
	return err
}

// ListVideos returns every known video, most recently updated first.
func (s *SQLiteStorage) ListVideos(ctx context.Context) ([]VideoSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT v.id, v.updated_at,
			COALESCE((SELECT scene_count FROM scenes WHERE video_id = v.id), 0),
			EXISTS(SELECT 1 FROM transcripts WHERE video_id = v.id),
			EXISTS(SELECT 1 FROM relationships WHERE video_id = v.id)
		FROM videos v ORDER BY v.updated_at DESC, v.id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []VideoSummary
	for rows.Next() {
		var v VideoSummary
		if err := rows.Scan(&v.ID, &v.UpdatedAt, &v.SceneCount, &v.HasTranscript, &v.HasRelationships); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// CountVideos returns the number of known videos.
func (s *SQLiteStorage) CountVideos(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM videos`).Scan(&count)
	return count, err
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}
