package db

import (
	"testing"

	"chatori-be/internal/config"

	"github.com/stretchr/testify/assert"
)

func TestBuildDSN(t *testing.T) {
	t.Run("From parts", func(t *testing.T) {
		cfg := &config.Config{
			DBHost:     "localhost",
			DBUser:     "test_user",
			DBPassword: "test_password",
			DBName:     "test_db",
			DBPort:     "5432",
		}

		expected := "host=localhost user=test_user password=test_password dbname=test_db port=5432 sslmode=disable"
		assert.Equal(t, expected, buildDSN(cfg))
	})

	t.Run("URL wins", func(t *testing.T) {
		cfg := &config.Config{
			DBHost: "ignored",
			DBURL:  "postgres://u:p@db:5432/chatori?sslmode=disable",
		}
		assert.Equal(t, cfg.DBURL, buildDSN(cfg))
	})
}

func TestNewDatabase_ConnectionFailure(t *testing.T) {
	cfg := &config.Config{
		DBHost: "invalid_host",
		DBPort: "5432",
	}

	db, err := NewDatabase(cfg)

	assert.Error(t, err)
	assert.Nil(t, db)
	assert.Contains(t, err.Error(), "failed to ping DB")
}

func TestNewDatabase_InvalidDriver(t *testing.T) {
	db, err := newDatabaseWithDriver(&config.Config{}, "invalid_driver_name")

	assert.Error(t, err)
	assert.Nil(t, db)
	assert.Contains(t, err.Error(), "failed to connect to DB")
}
