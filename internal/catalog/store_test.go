package catalog

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// createTestSamples creates a samples.db in dir with the given statements
func createTestSamples(t *testing.T, dir string, statements ...string) string {
	t.Helper()

	dbPath := filepath.Join(dir, FileName)
	db, err := sql.Open("sqlite3", dbPath)
	require.NoError(t, err)
	defer db.Close()

	for _, stmt := range statements {
		_, err := db.Exec(stmt)
		require.NoError(t, err, stmt)
	}
	return dbPath
}

func TestOpenWithoutDatabase(t *testing.T) {
	t.Parallel()
	s := Open(t.TempDir(), zap.NewNop())
	defer s.Close()

	assert.Equal(t, SourceBuiltin, s.Source())

	samples, err := s.List(context.Background())
	require.NoError(t, err)
	require.Len(t, samples, 4)
	assert.Equal(t, "Blockbuster Action", samples[0].Title)
	assert.InDelta(t, 200000000, samples[0].Budget, 0.001)
	assert.Equal(t, 150, samples[0].Runtime)
	assert.Equal(t, []string{"Action", "Adventure", "Sci-Fi"}, samples[0].Genres)
	assert.Equal(t, "Holiday Horror", samples[3].Title)
}

func TestBuiltinSamplesAreCopied(t *testing.T) {
	t.Parallel()
	s := Open(t.TempDir(), zap.NewNop())

	first, err := s.List(context.Background())
	require.NoError(t, err)
	first[0].Genres[0] = "Changed"
	first[1].Title = "Changed"

	second, err := s.List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Action", second[0].Genres[0])
	assert.Equal(t, "Indie Drama", second[1].Title)
}

func TestOpenSampleDatabase(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := createTestSamples(t, dir,
		`CREATE TABLE samples (title TEXT, budget REAL, runtime INTEGER, release_month INTEGER, genres TEXT)`,
		`INSERT INTO samples VALUES ('Space Saga', 180000000, 142, 12, 'Sci-Fi, Adventure')`,
		`INSERT INTO samples VALUES ('Quiet Film', 1000000, 88, 3, NULL)`,
	)

	s := Open(dir, zap.NewNop())
	defer s.Close()
	assert.Equal(t, path, s.Source())

	samples, err := s.List(context.Background())
	require.NoError(t, err)
	require.Len(t, samples, 2)
	assert.Equal(t, "Space Saga", samples[0].Title)
	assert.Equal(t, 142, samples[0].Runtime)
	assert.Equal(t, 12, samples[0].ReleaseMonth)
	assert.Equal(t, []string{"Sci-Fi", "Adventure"}, samples[0].Genres)
	assert.Equal(t, []string{}, samples[1].Genres)
}

func TestOpenInvalidDatabaseFallsBack(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	createTestSamples(t, dir, `CREATE TABLE other (id INTEGER)`)

	s := Open(dir, zap.NewNop())
	defer s.Close()
	assert.Equal(t, SourceBuiltin, s.Source())

	samples, err := s.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, samples, 4)
}

func TestOpenGarbageFileFallsBack(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte("not sqlite"), 0o644))

	s := Open(dir, zap.NewNop())
	defer s.Close()
	assert.Equal(t, SourceBuiltin, s.Source())
}

func TestClose(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	createTestSamples(t, dir,
		`CREATE TABLE samples (title TEXT, budget REAL, runtime INTEGER, release_month INTEGER, genres TEXT)`,
	)

	s := Open(dir, zap.NewNop())
	require.NoError(t, s.Close())
	assert.Equal(t, SourceBuiltin, s.Source())
	require.NoError(t, s.Close())

	samples, err := s.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, samples, 4)
}
