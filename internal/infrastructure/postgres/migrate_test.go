package postgres

import (
	"errors"
	"io/fs"
	"regexp"
	"testing"

	"github.com/golang-migrate/migrate/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeMigrate struct {
	upErr      error
	downErr    error
	version    uint
	dirty      bool
	versionErr error
	closeSrc   error
	closeDB    error
}

func (f *fakeMigrate) Up() error   { return f.upErr }
func (f *fakeMigrate) Down() error { return f.downErr }
func (f *fakeMigrate) Version() (uint, bool, error) {
	return f.version, f.dirty, f.versionErr
}
func (f *fakeMigrate) Close() (error, error) { return f.closeSrc, f.closeDB }

func TestMigrator_Up_NoChangeIsNotAnError(t *testing.T) {
	m := &Migrator{m: &fakeMigrate{upErr: migrate.ErrNoChange}}
	assert.NoError(t, m.Up())
}

func TestMigrator_Up_Failure(t *testing.T) {
	m := &Migrator{m: &fakeMigrate{upErr: errors.New("boom")}}
	assert.ErrorContains(t, m.Up(), "migrate up: boom")
}

func TestMigrator_Down_NoChangeIsNotAnError(t *testing.T) {
	m := &Migrator{m: &fakeMigrate{downErr: migrate.ErrNoChange}}
	assert.NoError(t, m.Down())
}

func TestMigrator_Version_NilVersion(t *testing.T) {
	m := &Migrator{m: &fakeMigrate{versionErr: migrate.ErrNilVersion}}
	v, dirty, err := m.Version()
	require.NoError(t, err)
	assert.Zero(t, v)
	assert.False(t, dirty)
}

func TestMigrator_Version(t *testing.T) {
	m := &Migrator{m: &fakeMigrate{version: 3, dirty: true}}
	v, dirty, err := m.Version()
	require.NoError(t, err)
	assert.Equal(t, uint(3), v)
	assert.True(t, dirty)
}

func TestMigrator_Close_JoinsErrors(t *testing.T) {
	m := &Migrator{m: &fakeMigrate{closeSrc: errors.New("src"), closeDB: errors.New("db")}}
	err := m.Close()
	assert.ErrorContains(t, err, "src")
	assert.ErrorContains(t, err, "db")
}

func TestMigrateURL(t *testing.T) {
	assert.Equal(t, "pgx5://u:p@h/db", migrateURL("postgres://u:p@h/db"))
	assert.Equal(t, "pgx5://u:p@h/db", migrateURL("postgresql://u:p@h/db"))
	assert.Equal(t, "pgx5://u:p@h/db", migrateURL("pgx5://u:p@h/db"))
}

func TestMigrationsFS_PairedFiles(t *testing.T) {
	pattern := regexp.MustCompile(`^(\d{6})_[a-z_]+\.(up|down)\.sql$`)
	entries, err := fs.ReadDir(migrationsFS, "migrations")
	require.NoError(t, err)
	require.NotEmpty(t, entries)

	ups := map[string]bool{}
	downs := map[string]bool{}
	for _, e := range entries {
		m := pattern.FindStringSubmatch(e.Name())
		require.NotNil(t, m, "unexpected migration file %s", e.Name())
		if m[2] == "up" {
			ups[m[1]] = true
		} else {
			downs[m[1]] = true
		}
	}
	assert.Equal(t, ups, downs, "every up migration needs a down migration")
}
