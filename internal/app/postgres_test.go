package app

import (
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/guttosm/fundpulse/config"
)

func testPostgresConfig() config.Config {
	return config.Config{Postgres: config.PostgresConfig{
		Host:     "127.0.0.1",
		Port:     54329, // unlikely mapped
		User:     "x",
		Password: "y",
		DBName:   "z",
		SSLMode:  "disable",
	}}
}

// TestInitPostgres_InvalidHost expects ping failure.
func TestInitPostgres_InvalidHost(t *testing.T) {
	db, err := InitPostgres(testPostgresConfig())
	if err == nil {
		_ = db.Close()
		t.Fatalf("expected error connecting to invalid DB")
	}
}

func TestInitPostgres_OpenError(t *testing.T) {
	old := sqlOpener
	sqlOpener = func(driverName, dsn string) (*sql.DB, error) {
		return nil, errors.New("open refused")
	}
	t.Cleanup(func() { sqlOpener = old })

	if _, err := InitPostgres(testPostgresConfig()); err == nil {
		t.Fatalf("expected open error to propagate")
	}
}

func TestInitPostgres_HappyPath(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	mock.ExpectPing()

	old := sqlOpener
	sqlOpener = func(driverName, dsn string) (*sql.DB, error) { return db, nil }
	t.Cleanup(func() {
		sqlOpener = old
		_ = db.Close()
	})

	got, err := InitPostgres(testPostgresConfig())
	if err != nil || got == nil {
		t.Fatalf("InitPostgres failed: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
