package bundle

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	goccyjson "github.com/goccy/go-json"
	_ "github.com/mattn/go-sqlite3"
)

// Store is the GraphBundleStore of spec.md section 4.5: a
// content-addressed cache keyed by (csv_hash, graph_name). Bundle bytes
// live as files under dir, named by bundleFilename; a sqlite3 index
// (grounded on pkg/agent/task_service_sql.go's database/sql +
// mattn/go-sqlite3 usage) maps the key to the file path so lookup does
// not need a directory scan.
type Store struct {
	dir      string
	analyzer *Analyzer
	log      *slog.Logger

	mu sync.Mutex
	db *sql.DB
}

const createIndexSQL = `
CREATE TABLE IF NOT EXISTS bundles (
	csv_hash   TEXT NOT NULL,
	graph_name TEXT NOT NULL,
	path       TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL,
	PRIMARY KEY (csv_hash, graph_name)
);
`

// NewStore opens (creating if absent) the sqlite3 index at
// filepath.Join(dir, "index.db") and returns a Store rooted at dir.
func NewStore(dir string, analyzer *Analyzer, log *slog.Logger) (*Store, error) {
	if log == nil {
		log = slog.Default()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("bundle store: %w", err)
	}
	db, err := sql.Open("sqlite3", filepath.Join(dir, "index.db"))
	if err != nil {
		return nil, fmt.Errorf("bundle store: open index: %w", err)
	}
	if _, err := db.Exec(createIndexSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("bundle store: init index: %w", err)
	}
	return &Store{dir: dir, analyzer: analyzer, log: log, db: db}, nil
}

// Close releases the sqlite3 index handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Lookup returns the cached bundle for (csvHash, graphName), or (nil,
// false) on a cache miss (spec.md section 4.5).
func (s *Store) Lookup(csvHash, graphName string) (*GraphBundle, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var path string
	err := s.db.QueryRow(
		`SELECT path FROM bundles WHERE csv_hash = ? AND graph_name = ?`,
		csvHash, graphName,
	).Scan(&path)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("bundle store: lookup: %w", err)
	}

	b, err := s.Load(path)
	if err != nil {
		return nil, false, err
	}
	return b, true, nil
}

// Save atomically writes bundle to its content-addressed path (temp
// file, fsync, rename) and records it in the index, returning the path
// (spec.md section 4.5: "save(bundle) -> path").
func (s *Store) Save(b *GraphBundle) (string, error) {
	path := filepath.Join(s.dir, bundleFilename(b.CSVHash, b.GraphName))

	data, err := goccyjson.MarshalIndent(b, "", "  ")
	if err != nil {
		return "", fmt.Errorf("bundle store: encode: %w", err)
	}

	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return "", fmt.Errorf("bundle store: write: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return "", fmt.Errorf("bundle store: write: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return "", fmt.Errorf("bundle store: sync: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("bundle store: close: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("bundle store: save: %w", err)
	}

	s.mu.Lock()
	_, err = s.db.Exec(
		`INSERT INTO bundles (csv_hash, graph_name, path, created_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(csv_hash, graph_name) DO UPDATE SET path = excluded.path, created_at = excluded.created_at`,
		b.CSVHash, b.GraphName, path, b.CreatedAt,
	)
	s.mu.Unlock()
	if err != nil {
		return "", fmt.Errorf("bundle store: index: %w", err)
	}

	s.log.Debug("bundle saved", "path", path, "graph_name", b.GraphName, "csv_hash", b.CSVHash)
	return path, nil
}

// Load decodes a bundle file, tolerating the absence of any agent
// implementation (spec.md section 4.5: bundles are portable metadata).
// Fails with CorruptBundleError on decode failure.
func (s *Store) Load(path string) (*GraphBundle, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var b GraphBundle
	if err := goccyjson.Unmarshal(data, &b); err != nil {
		return nil, &CorruptBundleError{Path: path, Err: err}
	}
	return &b, nil
}

// PathFor returns the on-disk path for (csvHash, graphName) without
// loading the bundle, for callers (the CLI) that only need to record a
// BundleInfo.BundlePath for later rehydration.
func (s *Store) PathFor(csvHash, graphName string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var path string
	err := s.db.QueryRow(
		`SELECT path FROM bundles WHERE csv_hash = ? AND graph_name = ?`,
		csvHash, graphName,
	).Scan(&path)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("bundle store: path lookup: %w", err)
	}
	return path, true, nil
}

// FindByGraphName returns the most recently saved bundle for
// graphName regardless of csv_hash, for CLI commands (export) that
// address a bundle by graph name alone once it has already been
// compiled at least once.
func (s *Store) FindByGraphName(graphName string) (*GraphBundle, bool, error) {
	s.mu.Lock()
	var path string
	err := s.db.QueryRow(
		`SELECT path FROM bundles WHERE graph_name = ? ORDER BY created_at DESC LIMIT 1`,
		graphName,
	).Scan(&path)
	s.mu.Unlock()
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("bundle store: find by graph name: %w", err)
	}
	b, err := s.Load(path)
	if err != nil {
		return nil, false, err
	}
	return b, true, nil
}

// GetOrCreate implements spec.md section 4.5's convenience operation:
// consult Lookup, and on a miss parse+analyze+save a fresh bundle.
func (s *Store) GetOrCreate(csvPath, graphName string) (*GraphBundle, error) {
	csvHash, err := computeCSVHash(csvPath)
	if err != nil {
		return nil, err
	}

	if b, ok, err := s.Lookup(csvHash, graphName); err != nil {
		return nil, err
	} else if ok {
		s.log.Debug("bundle cache hit", "csv_hash", csvHash, "graph_name", graphName)
		return b, nil
	}

	b, err := s.analyzer.CreateStaticBundle(csvPath, graphName)
	if err != nil {
		return nil, err
	}
	if _, err := s.Save(b); err != nil {
		return nil, err
	}
	return b, nil
}
