package postgres

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hazaarlabs/dbi/internal/adapters/database"
	"github.com/hazaarlabs/dbi/internal/core/query/domain"
)

func TestPostgresAdapter_ServerVersion(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SHOW server_version").
		WillReturnRows(sqlmock.NewRows([]string{"server_version"}).AddRow("9.4.26"))

	a, err := NewPostgresAdapter(database.Config{})
	require.NoError(t, err)
	a.db = sqlx.NewDb(db, "postgres")

	v, err := a.ServerVersion(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "9.4.26", v)

	features, err := database.FeaturesFor(domain.PostgreSQL, v)
	require.NoError(t, err)
	assert.False(t, features.Upsert)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresAdapter_NotConnected(t *testing.T) {
	a, err := NewPostgresAdapter(database.Config{})
	require.NoError(t, err)

	assert.Error(t, a.Ping(context.Background()))
	_, err = a.ServerVersion(context.Background())
	assert.Error(t, err)
	assert.NoError(t, a.Disconnect(context.Background()))
	assert.Nil(t, a.DB())
}

func TestPostgresAdapter_Builder(t *testing.T) {
	a, err := NewPostgresAdapter(database.Config{Schema: "app", ServerVersion: "9.4"})
	require.NoError(t, err)
	assert.Equal(t, domain.PostgreSQL, a.Dialect())

	sql, err := a.Builder().Select("id", "user").From("accounts").Where(domain.M{{Key: "order", Value: 1}}).ToString()
	require.NoError(t, err)
	assert.Equal(t, `SELECT id, "user" FROM "app"."accounts" WHERE "order" = 1`, sql)

	_, err = a.Builder().From("accounts").Insert(domain.M{{Key: "id", Value: 1}}).OnConflict([]string{"id"}, nil).ToString()
	assert.ErrorIs(t, err, domain.ErrUnsupported)
}
