package migration

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stockledger/backend/migrations"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeName(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"add ledger index", "add_ledger_index"},
		{"Add-Ledger-Index", "add_ledger_index"},
		{"ADD_LEDGER_INDEX", "add_ledger_index"},
		{"add__ledger__index", "add_ledger_index"},
		{"   spaces   ", "spaces"},
		{"special!@#$chars", "specialchars"},
		{"_leading", "leading"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, sanitizeName(tt.input))
		})
	}
}

func TestCreateMigration(t *testing.T) {
	dir := t.TempDir()
	pg := filepath.Join(dir, "postgres")
	require.NoError(t, os.MkdirAll(pg, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(pg, "000004_existing.up.sql"), []byte("--"), 0o644))

	files, err := CreateMigration(dir, "add ledger index", "Speed up history paging")
	require.NoError(t, err)
	require.Len(t, files, len(Drivers))

	for i, mf := range files {
		assert.Equal(t, Drivers[i], mf.Driver)
		assert.Equal(t, "000005", mf.Version, "every driver takes the next shared version")
		assert.Equal(t, "000005_add_ledger_index.up.sql", filepath.Base(mf.UpPath))
		assert.Equal(t, filepath.Join(dir, mf.Driver), filepath.Dir(mf.DownPath))

		up, err := os.ReadFile(mf.UpPath)
		require.NoError(t, err)
		assert.Contains(t, string(up), "Speed up history paging")
		assert.Contains(t, string(up), mf.Driver)

		down, err := os.ReadFile(mf.DownPath)
		require.NoError(t, err)
		assert.Contains(t, string(down), "rollback")
	}

	_, err = CreateMigration(dir, "!!!", "")
	assert.Error(t, err)
}

func TestListMigrations(t *testing.T) {
	dir := t.TempDir()
	for _, f := range []string{
		"000002_b.up.sql", "000002_b.down.sql",
		"000001_a.up.sql", "000001_a.down.sql",
		"README.md", ".gitkeep",
	} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, f), []byte("--"), 0o644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub.up.sql"), 0o755))

	names, err := ListMigrations(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"000001_a", "000002_b"}, names)

	names, err = ListMigrations(filepath.Join(dir, "missing"))
	require.NoError(t, err)
	assert.Empty(t, names)
}

// Every driver ships the same versions, each with an up and a down file.
func TestEmbeddedMigrationsArePaired(t *testing.T) {
	var reference []string
	for _, driver := range Drivers {
		entries, err := fs.ReadDir(migrations.FS, driver)
		require.NoError(t, err)

		ups, downs := map[string]bool{}, map[string]bool{}
		for _, e := range entries {
			if base, ok := strings.CutSuffix(e.Name(), ".up.sql"); ok {
				ups[base] = true
			}
			if base, ok := strings.CutSuffix(e.Name(), ".down.sql"); ok {
				downs[base] = true
			}
		}
		assert.Equal(t, ups, downs, driver)

		versions := make([]string, 0, len(ups))
		for base := range ups {
			v, _, _ := strings.Cut(base, "_")
			versions = append(versions, v)
		}
		assert.NotEmpty(t, versions)
		if reference == nil {
			reference = versions
			continue
		}
		assert.ElementsMatch(t, reference, versions, driver)
	}
}
