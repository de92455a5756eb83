// Package history persists generated speech artifacts in SQLite so they
// survive restarts.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/narrata-labs/narrata-core/internal/config"
	_ "modernc.org/sqlite"
)

// Item is one generated speech artifact: metadata plus the encoded WAV bytes.
type Item struct {
	ID        string
	Text      string
	Voice     string
	CreatedAt time.Time
	Duration  time.Duration
	Audio     []byte
}

// Store wraps a SQLite-backed history of generated items.
type Store struct {
	db    *sql.DB
	cfg   config.HistoryConfig
	log   *slog.Logger
	clock func() time.Time
}

// Open initializes the history store according to config.
func Open(ctx context.Context, cfg config.HistoryConfig, log *slog.Logger) (*Store, error) {
	dir := filepath.Dir(cfg.Path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)", cfg.Path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	s := &Store{db: db, cfg: cfg, log: log, clock: time.Now}

	if err := s.initSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}

	if cfg.VacuumOnStart {
		if _, err := s.db.ExecContext(ctx, "VACUUM"); err != nil {
			log.Warn("history vacuum failed", slog.String("error", err.Error()))
		}
	}

	return s, nil
}

func (s *Store) initSchema(ctx context.Context) error {
	ddl := `
CREATE TABLE IF NOT EXISTS items (
    id TEXT PRIMARY KEY,
    text TEXT NOT NULL,
    voice TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL,
    duration_ms INTEGER NOT NULL,
    audio BLOB NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_items_created ON items(created_at);
`
	_, err := s.db.ExecContext(ctx, ddl)
	return err
}

// Close releases underlying resources.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Save upserts an item by id: existing rows are updated in place.
func (s *Store) Save(ctx context.Context, item Item) error {
	if item.CreatedAt.IsZero() {
		item.CreatedAt = s.clock().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO items(id, text, voice, created_at, duration_ms, audio)
		 VALUES(?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   text=excluded.text, voice=excluded.voice, created_at=excluded.created_at,
		   duration_ms=excluded.duration_ms, audio=excluded.audio`,
		item.ID, item.Text, item.Voice, item.CreatedAt.UTC().Format(time.RFC3339Nano),
		item.Duration.Milliseconds(), item.Audio)
	if err != nil {
		return fmt.Errorf("save item: %w", err)
	}
	return nil
}

// Get fetches a single item by id. The second return reports presence.
func (s *Store) Get(ctx context.Context, id string) (Item, bool, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, text, voice, created_at, duration_ms, audio FROM items WHERE id = ?`, id)
	item, err := scanItem(row.Scan)
	if err == sql.ErrNoRows {
		return Item{}, false, nil
	}
	if err != nil {
		return Item{}, false, fmt.Errorf("get item: %w", err)
	}
	return item, true, nil
}

// List retrieves all stored items. Order is unspecified; callers re-sort.
func (s *Store) List(ctx context.Context) ([]Item, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, text, voice, created_at, duration_ms, audio FROM items`)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		item, err := scanItem(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// Delete removes an item if present; deleting an unknown id is a no-op.
func (s *Store) Delete(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM items WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete item: %w", err)
	}
	return nil
}

// Clear empties the store.
func (s *Store) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM items`); err != nil {
		return fmt.Errorf("clear items: %w", err)
	}
	return nil
}

// Prune applies configured retention: drop items past the age cutoff, then
// keep at most max_items of the newest remainder. Zero values disable the
// corresponding rule.
func (s *Store) Prune(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	if s.cfg.RetentionDays > 0 {
		cutoff := s.clock().Add(-time.Duration(s.cfg.RetentionDays) * 24 * time.Hour)
		if _, err = tx.ExecContext(ctx, `DELETE FROM items WHERE created_at < ?`,
			cutoff.UTC().Format(time.RFC3339Nano)); err != nil {
			return err
		}
	}
	if s.cfg.MaxItems > 0 {
		_, err = tx.ExecContext(ctx, `DELETE FROM items WHERE id IN (
			SELECT id FROM items ORDER BY created_at DESC LIMIT -1 OFFSET ?
		)`, s.cfg.MaxItems)
		if err != nil {
			return err
		}
	}
	err = tx.Commit()
	return err
}

func scanItem(scan func(dest ...any) error) (Item, error) {
	var item Item
	var created string
	var durationMS int64
	if err := scan(&item.ID, &item.Text, &item.Voice, &created, &durationMS, &item.Audio); err != nil {
		return Item{}, err
	}
	if ts, err := time.Parse(time.RFC3339Nano, created); err == nil {
		item.CreatedAt = ts
	}
	item.Duration = time.Duration(durationMS) * time.Millisecond
	return item, nil
}
