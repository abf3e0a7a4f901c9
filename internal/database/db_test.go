package database

import (
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOptionsDSN(t *testing.T) {
	o := Options{User: "app", Pass: "p@ss:word", Host: "db.internal", Port: "3307", Name: "academy"}

	cfg, err := mysql.ParseDSN(o.DSN())
	require.NoError(t, err)
	assert.Equal(t, "app", cfg.User)
	assert.Equal(t, "p@ss:word", cfg.Passwd)
	assert.Equal(t, "db.internal:3307", cfg.Addr)
	assert.Equal(t, "academy", cfg.DBName)
	assert.True(t, cfg.ParseTime)
	assert.Equal(t, time.UTC, cfg.Loc)
}

func TestOptionsDefaults(t *testing.T) {
	o := Options{}.withDefaults()
	assert.Equal(t, 25, o.MaxOpenConns)
	assert.Equal(t, 25, o.MaxIdleConns)
	assert.Equal(t, 30*time.Minute, o.ConnMaxLifetime)
	assert.Equal(t, 5*time.Second, o.PingTimeout)

	o = Options{MaxOpenConns: 8, MaxIdleConns: 50}.withDefaults()
	assert.Equal(t, 8, o.MaxIdleConns)
}

func TestConfigurePool(t *testing.T) {
	raw, _, err := sqlmock.New()
	require.NoError(t, err)
	defer raw.Close()
	db := sqlx.NewDb(raw, "sqlmock")

	configurePool(db, Options{MaxOpenConns: 7, MaxIdleConns: 3, ConnMaxLifetime: time.Minute}.withDefaults())
	assert.Equal(t, 7, db.Stats().MaxOpenConnections)
}
