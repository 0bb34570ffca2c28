package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrationsDir(t *testing.T) {
	t.Setenv("MIGRATIONS_DIR", "")
	assert.Equal(t, "db/migrations", migrationsDir())

	t.Setenv("MIGRATIONS_DIR", "/custom/migrations")
	assert.Equal(t, "/custom/migrations", migrationsDir())
}

func TestLoadEnvFiles_EnvironmentWins(t *testing.T) {
	tmp := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(tmp, ".env"), []byte("DB_DSN=from_file\nMIGRATIONS_DIR=from_file\n"), 0o644))

	t.Setenv("DB_DSN", "from_env")
	// t.Setenv restores the variable; unset it so the file can supply it
	t.Setenv("MIGRATIONS_DIR", "")
	require.NoError(t, os.Unsetenv("MIGRATIONS_DIR"))

	cwd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(tmp))
	t.Cleanup(func() { _ = os.Chdir(cwd) })

	loadEnvFiles()

	assert.Equal(t, "from_env", os.Getenv("DB_DSN"))
	assert.Equal(t, "from_file", os.Getenv("MIGRATIONS_DIR"))
}

func TestMigrate_UnknownCommand(t *testing.T) {
	assert.Error(t, migrate(context.Background(), nil, "sideways", "db/migrations"))
}

func TestRun_CreateRequiresName(t *testing.T) {
	assert.Error(t, run("create", ""))
}
