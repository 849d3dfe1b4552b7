package store

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/roach88/linkctl/internal/ir"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() failed: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return newWithDB(db), mock
}

func TestSave_RollsBackOnTransitionFailure(t *testing.T) {
	s, mock := newMockStore(t)

	state := createTestRun("run-1", 1)
	advance(state, "0x01")

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO runs").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO transitions").WillReturnError(errors.New("disk I/O error"))
	mock.ExpectRollback()

	err := s.Save(context.Background(), state)
	if err == nil {
		t.Fatal("Save() succeeded, want error")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestSave_StaleWhenNoRowChanged(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO runs").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := s.Save(context.Background(), createTestRun("run-1", 1))
	if !errors.Is(err, ir.ErrStaleSnapshot) {
		t.Fatalf("Save() error = %v, want ErrStaleSnapshot", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestSave_CommitFailure(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO runs").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit().WillReturnError(errors.New("database is locked"))

	err := s.Save(context.Background(), createTestRun("run-1", 1))
	if err == nil {
		t.Fatal("Save() succeeded, want commit error")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestLoad_CorruptSnapshot(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery("SELECT snapshot FROM runs").
		WithArgs("run-1").
		WillReturnRows(sqlmock.NewRows([]string{"snapshot"}).AddRow("{not json"))

	_, err := s.Load(context.Background(), "run-1")
	if err == nil {
		t.Fatal("Load() succeeded on corrupt snapshot")
	}
	if errors.Is(err, ir.ErrRunNotFound) {
		t.Errorf("corrupt snapshot reported as not found: %v", err)
	}
}
