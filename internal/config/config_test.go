package config

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func useMemFs(t *testing.T) {
	t.Helper()
	orig := AppFs
	AppFs = afero.NewMemMapFs()
	t.Cleanup(func() { AppFs = orig })
}

func TestSaveAndLoadConfig(t *testing.T) {
	useMemFs(t)

	saved := &Config{
		Dialect:        "mysql",
		Schema:         "app",
		ServerVersion:  "8.0.36",
		LogFormat:      "json",
		MaxConnections: 4,
		ConnectTimeout: 3,
		BindValues:     true,
		Telemetry:      "prometheus",
	}
	file, err := SaveConfig(saved, "/work/.dbi.yaml")
	require.NoError(t, err)
	assert.Equal(t, "/work/.dbi.yaml", file)

	cfg, err := LoadConfig(file)
	require.NoError(t, err)
	assert.Equal(t, "mysql", cfg.Dialect)
	assert.Equal(t, "app", cfg.Schema)
	assert.Equal(t, "8.0.36", cfg.ServerVersion)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, 4, cfg.MaxConnections)
	assert.Equal(t, 3, cfg.ConnectTimeout)
	assert.True(t, cfg.BindValues)
	assert.Equal(t, "prometheus", cfg.Telemetry)

	db := cfg.Database()
	assert.Equal(t, "mysql", db.Provider)
	assert.Equal(t, "app", db.Schema)
	assert.True(t, db.BindValues)
}

func TestLoadConfig_Environment(t *testing.T) {
	useMemFs(t)
	require.NoError(t, afero.WriteFile(AppFs, "/work/.dbi.yaml", []byte("dialect: sqlite\n"), 0644))

	t.Setenv("DBI_SCHEMA", "reporting")
	t.Setenv("DBI_DATABASE_URL", "")
	t.Setenv("DATABASE_URL", "sqlite://test.db")

	cfg, err := LoadConfig("/work/.dbi.yaml")
	require.NoError(t, err)
	assert.Equal(t, "sqlite", cfg.Dialect)
	assert.Equal(t, "reporting", cfg.Schema)
	assert.Equal(t, "sqlite://test.db", cfg.DatabaseURL)
	assert.Equal(t, 10, cfg.MaxConnections)
	assert.Equal(t, "noop", cfg.Telemetry)

	t.Setenv("DBI_DATABASE_URL", "postgres://localhost/app")
	cfg, err = LoadConfig("/work/.dbi.yaml")
	require.NoError(t, err)
	assert.Equal(t, "postgres://localhost/app", cfg.DatabaseURL)
}

func TestLoadConfig_Errors(t *testing.T) {
	useMemFs(t)

	_, err := LoadConfig("/missing/.dbi.yaml")
	assert.Error(t, err)

	require.NoError(t, afero.WriteFile(AppFs, "/work/.dbi.yaml", []byte("dialect: oracle\n"), 0644))
	_, err = LoadConfig("/work/.dbi.yaml")
	assert.ErrorContains(t, err, "unsupported dialect: oracle")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{name: "postgres alias", cfg: Config{Dialect: "pgsql"}},
		{name: "mariadb alias", cfg: Config{Dialect: "mariadb"}},
		{name: "unknown dialect", cfg: Config{Dialect: "mssql"}, wantErr: true},
		{name: "log telemetry", cfg: Config{Dialect: "sqlite", Telemetry: "log"}},
		{name: "unknown telemetry", cfg: Config{Dialect: "sqlite", Telemetry: "statsd"}, wantErr: true},
		{name: "negative pool", cfg: Config{Dialect: "sqlite", MaxConnections: -1}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
