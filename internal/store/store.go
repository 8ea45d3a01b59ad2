// Package store caches encoded graphs in SQLite, keyed by file path and
// content hash, so unchanged files are not parsed twice.
package store

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/vmihailenco/msgpack/v5"
	_ "modernc.org/sqlite"

	"github.com/phobologic/codeclass/internal/model"
)

const schema = `
CREATE TABLE IF NOT EXISTS graphs (
	path       TEXT    NOT NULL,
	hash       TEXT    NOT NULL,
	language   TEXT    NOT NULL,
	graph      BLOB    NOT NULL,
	created_at INTEGER NOT NULL,
	PRIMARY KEY (path, hash)
);
`

// Cache is a SQLite-backed graph cache. It is safe for concurrent use.
type Cache struct {
	db *sql.DB
}

// Open opens or creates the cache database at path.
func Open(ctx context.Context, path string) (*Cache, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open cache: %w", err)
	}
	// SQLite allows a single writer.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create cache schema: %w", err)
	}
	return &Cache{db: db}, nil
}

// Close closes the database.
func (c *Cache) Close() error {
	return c.db.Close()
}

// Hash returns the content key of source.
func Hash(source []byte) string {
	sum := sha256.Sum256(source)
	return hex.EncodeToString(sum[:])
}

// Get returns the graph stored for path at content hash, if any.
func (c *Cache) Get(ctx context.Context, path, hash string) (*model.Graph, bool, error) {
	var blob []byte
	err := c.db.QueryRowContext(ctx,
		`SELECT graph FROM graphs WHERE path = ? AND hash = ?`, path, hash).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("query cache for %s: %w", path, err)
	}

	var g model.Graph
	if err := msgpack.Unmarshal(blob, &g); err != nil {
		return nil, false, fmt.Errorf("decode cached graph for %s: %w", path, err)
	}
	return &g, true, nil
}

// Put stores g for path at content hash and drops entries for older
// contents of the same path.
func (c *Cache) Put(ctx context.Context, path, hash, language string, g *model.Graph) error {
	blob, err := msgpack.Marshal(g)
	if err != nil {
		return fmt.Errorf("encode graph for %s: %w", path, err)
	}

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin cache write: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `DELETE FROM graphs WHERE path = ? AND hash <> ?`, path, hash); err != nil {
		return fmt.Errorf("evict stale graphs for %s: %w", path, err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT OR REPLACE INTO graphs (path, hash, language, graph, created_at) VALUES (?, ?, ?, ?, ?)`,
		path, hash, language, blob, time.Now().Unix()); err != nil {
		return fmt.Errorf("store graph for %s: %w", path, err)
	}
	return tx.Commit()
}

// Stats summarizes the cache contents.
type Stats struct {
	Entries    int
	Languages  map[string]int
	TotalBytes int64
}

// Stats counts cached graphs per language.
func (c *Cache) Stats(ctx context.Context) (Stats, error) {
	rows, err := c.db.QueryContext(ctx,
		`SELECT language, COUNT(*), COALESCE(SUM(LENGTH(graph)), 0) FROM graphs GROUP BY language`)
	if err != nil {
		return Stats{}, fmt.Errorf("query cache stats: %w", err)
	}
	defer rows.Close()

	s := Stats{Languages: make(map[string]int)}
	for rows.Next() {
		var (
			language string
			count    int
			size     int64
		)
		if err := rows.Scan(&language, &count, &size); err != nil {
			return Stats{}, fmt.Errorf("scan cache stats: %w", err)
		}
		s.Languages[language] = count
		s.Entries += count
		s.TotalBytes += size
	}
	return s, rows.Err()
}
