package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Listen)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "admin", cfg.Bootstrap.AdminUsername)
	assert.True(t, cfg.Ledger.AllowCallerParams)
	assert.False(t, cfg.Ledger.EnforceOwnership)
	assert.Equal(t, 5*time.Second, cfg.Ledger.TxTimeout)
}

func TestLoadFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	path := filepath.Join(dir, "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(`
listen: ":9090"
database:
  driver: postgres
  host: db
bootstrap:
  admin_username: root
  admin_password: s3cret
ledger:
  enforce_ownership: true
  tx_timeout: 2s
`), 0o600))
	t.Setenv("LEDGER_BOOTSTRAP_ADMIN_PASSWORD", "from-env")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.Listen)
	assert.Equal(t, "pgx", cfg.Database.Driver)
	assert.Equal(t, "root", cfg.Bootstrap.AdminUsername)
	assert.Equal(t, "from-env", cfg.Bootstrap.AdminPassword)
	assert.True(t, cfg.Ledger.EnforceOwnership)
	assert.Equal(t, 2*time.Second, cfg.Ledger.TxTimeout)
	assert.Contains(t, cfg.Database.PostgresConnString(), "host=db")
}

func TestLoadRejectsUnknownDriver(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("LEDGER_DATABASE_DRIVER", "mysql")

	_, err := Load("")
	assert.Error(t, err)
}
