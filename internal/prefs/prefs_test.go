package prefs

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/pashagolub/pgxmock/v4"

	"github.com/sendrec/askvideo/internal/database"
)

func TestMemoryStore(t *testing.T) {
	s := NewMemoryStore(Defaults())
	ctx := context.Background()

	got, err := s.Load(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if got.BackendURL != DefaultBackendURL || got.DarkMode {
		t.Errorf("defaults = %+v", got)
	}

	want := Preferences{BackendURL: "https://qa.example.com", DarkMode: true}
	if err := s.Save(ctx, want); err != nil {
		t.Fatal(err)
	}
	if got, _ := s.Load(ctx); got != want {
		t.Errorf("loaded %+v, want %+v", got, want)
	}
}

func TestFromValues(t *testing.T) {
	tests := []struct {
		name    string
		values  map[string]string
		want    Preferences
		wantErr bool
	}{
		{"empty keeps defaults", map[string]string{}, Defaults(), false},
		{"blank url keeps default", map[string]string{"backendUrl": ""}, Defaults(), false},
		{"both set", map[string]string{"backendUrl": "http://10.0.0.2:5000", "darkMode": "true"},
			Preferences{BackendURL: "http://10.0.0.2:5000", DarkMode: true}, false},
		{"bad bool", map[string]string{"darkMode": "sometimes"}, Preferences{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := fromValues(tt.values, Defaults())
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestPostgresStore_Load(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatal(err)
	}
	defer mock.Close()

	mock.ExpectQuery(`SELECT key, value FROM preferences`).
		WillReturnRows(pgxmock.NewRows([]string{"key", "value"}).
			AddRow("backendUrl", "https://answers.example.com").
			AddRow("darkMode", "true"))

	got, err := NewPostgresStore(mock, Defaults()).Load(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	want := Preferences{BackendURL: "https://answers.example.com", DarkMode: true}
	if got != want {
		t.Errorf("got %+v, want %+v", got, want)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet pgxmock expectations: %v", err)
	}
}

func TestPostgresStore_LoadEmpty(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatal(err)
	}
	defer mock.Close()

	mock.ExpectQuery(`SELECT key, value FROM preferences`).
		WillReturnRows(pgxmock.NewRows([]string{"key", "value"}))

	got, err := NewPostgresStore(mock, Defaults()).Load(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got != Defaults() {
		t.Errorf("got %+v, want defaults", got)
	}
}

func TestPostgresStore_Save(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatal(err)
	}
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO preferences`).
		WithArgs("backendUrl", "http://localhost:6000").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`INSERT INTO preferences`).
		WithArgs("darkMode", "false").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	err = NewPostgresStore(mock, Defaults()).Save(context.Background(), Preferences{BackendURL: "http://localhost:6000"})
	if err != nil {
		t.Fatalf("save: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet pgxmock expectations: %v", err)
	}
}

func TestPostgresStore_SaveError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatal(err)
	}
	defer mock.Close()

	dbErr := errors.New("connection reset")
	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO preferences`).
		WithArgs("backendUrl", DefaultBackendURL).
		WillReturnError(dbErr)
	mock.ExpectRollback()

	err = NewPostgresStore(mock, Defaults()).Save(context.Background(), Defaults())
	if !errors.Is(err, dbErr) {
		t.Errorf("err = %v, want wrapped %v", err, dbErr)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet pgxmock expectations: %v", err)
	}
}

func TestPostgresStore_SaveSecondWriteRollsBack(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatal(err)
	}
	defer mock.Close()

	dbErr := errors.New("disk full")
	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO preferences`).
		WithArgs("backendUrl", DefaultBackendURL).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`INSERT INTO preferences`).
		WithArgs("darkMode", "true").
		WillReturnError(dbErr)
	mock.ExpectRollback()

	next := Defaults()
	next.DarkMode = true
	err = NewPostgresStore(mock, Defaults()).Save(context.Background(), next)
	if !errors.Is(err, dbErr) {
		t.Errorf("err = %v, want wrapped %v", err, dbErr)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet pgxmock expectations: %v", err)
	}
}

func TestPostgresStore_SaveBeginError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatal(err)
	}
	defer mock.Close()

	dbErr := errors.New("pool closed")
	mock.ExpectBegin().WillReturnError(dbErr)

	err = NewPostgresStore(mock, Defaults()).Save(context.Background(), Defaults())
	if !errors.Is(err, dbErr) {
		t.Errorf("err = %v, want wrapped %v", err, dbErr)
	}
}

func TestSQLiteStore_RoundTrip(t *testing.T) {
	db, err := database.OpenSQLite(filepath.Join(t.TempDir(), "prefs.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()

	s := NewSQLiteStore(db, Defaults())
	ctx := context.Background()

	got, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got != Defaults() {
		t.Errorf("fresh store = %+v, want defaults", got)
	}

	want := Preferences{BackendURL: "http://192.168.1.20:5000", DarkMode: true}
	if err := s.Save(ctx, want); err != nil {
		t.Fatalf("save: %v", err)
	}
	want.DarkMode = false
	if err := s.Save(ctx, want); err != nil {
		t.Fatalf("overwrite: %v", err)
	}

	got, err = s.Load(ctx)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if got != want {
		t.Errorf("got %+v, want %+v", got, want)
	}
}
