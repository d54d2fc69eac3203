// Package catalog serves the example movies offered by the prediction form.
package catalog

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"strings"
	"sync"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/kartoza/movie-predict/internal/models"
)

// FileName is the sample database looked up in the data directory
const FileName = "samples.db"

// SourceBuiltin is reported when no sample database was loaded
const SourceBuiltin = "builtin"

var builtin = []models.Sample{
	{Title: "Blockbuster Action", Budget: 200000000, Runtime: 150, ReleaseMonth: 6, Genres: []string{"Action", "Adventure", "Sci-Fi"}},
	{Title: "Indie Drama", Budget: 5000000, Runtime: 105, ReleaseMonth: 10, Genres: []string{"Drama"}},
	{Title: "Summer Comedy", Budget: 40000000, Runtime: 98, ReleaseMonth: 7, Genres: []string{"Comedy"}},
	{Title: "Holiday Horror", Budget: 15000000, Runtime: 95, ReleaseMonth: 10, Genres: []string{"Horror", "Thriller"}},
}

// Store reads samples from a sqlite database, or the built-in set
type Store struct {
	mu     sync.RWMutex
	db     *sql.DB
	source string
	logger *zap.Logger
}

// Open looks for samples.db in dataDir. A missing or invalid database is not
// an error; the store falls back to the built-in samples.
func Open(dataDir string, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.L().Named("catalog")
	}
	s := &Store{source: SourceBuiltin, logger: logger}

	path := filepath.Join(dataDir, FileName)
	if _, err := os.Stat(path); err != nil {
		logger.Debug("no sample database, using built-in samples", zap.String("path", path))
		return s
	}

	db, err := sql.Open("sqlite3", "file:"+path+"?mode=ro")
	if err != nil {
		logger.Warn("failed to open sample database", zap.String("path", path), zap.Error(err))
		return s
	}

	var count int
	err = db.QueryRow("SELECT count(*) FROM sqlite_master WHERE type IN ('table','view') AND name='samples'").Scan(&count)
	if err != nil || count == 0 {
		logger.Warn("not a valid sample database", zap.String("path", path), zap.Error(err))
		db.Close()
		return s
	}

	s.db = db
	s.source = path
	logger.Info("loaded sample database", zap.String("path", path))
	return s
}

// Source is the database path in use, or "builtin"
func (s *Store) Source() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.source
}

// List returns every sample in insertion order
func (s *Store) List(ctx context.Context) ([]models.Sample, error) {
	s.mu.RLock()
	db := s.db
	s.mu.RUnlock()

	if db == nil {
		out := make([]models.Sample, len(builtin))
		for i, sm := range builtin {
			sm.Genres = append([]string(nil), sm.Genres...)
			out[i] = sm
		}
		return out, nil
	}

	rows, err := db.QueryContext(ctx,
		"SELECT title, budget, runtime, release_month, genres FROM samples ORDER BY rowid")
	if err != nil {
		return nil, eris.Wrap(err, "catalog: query samples")
	}
	defer rows.Close()

	out := []models.Sample{}
	for rows.Next() {
		var (
			sm     models.Sample
			genres sql.NullString
		)
		if err := rows.Scan(&sm.Title, &sm.Budget, &sm.Runtime, &sm.ReleaseMonth, &genres); err != nil {
			return nil, eris.Wrap(err, "catalog: scan sample")
		}
		sm.Genres = splitGenres(genres.String)
		out = append(out, sm)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "catalog: read samples")
	}
	return out, nil
}

// Close releases the database, if any
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	s.source = SourceBuiltin
	if err != nil {
		return eris.Wrap(err, "catalog: close")
	}
	return nil
}

func splitGenres(s string) []string {
	out := []string{}
	for _, g := range strings.Split(s, ",") {
		if g = strings.TrimSpace(g); g != "" {
			out = append(out, g)
		}
	}
	return out
}
