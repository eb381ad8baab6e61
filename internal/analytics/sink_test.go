package analytics

import (
	"errors"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
)

var errUnavailable = errors.New("connection refused")

func TestNoopSinkRecordCallEndedIsSafe(t *testing.T) {
	var s NoopSink
	s.RecordCallEnded("room1", "caller", "callee", "ended", 0, 0)
}

func TestPostgresSinkRecordCallEndedInsertsRow(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	sink := &PostgresSink{db: db}
	mock.ExpectExec("INSERT INTO call_records").
		WithArgs("room1", "alice", "bob", "ended", int64(1000), int64(2000)).
		WillReturnResult(sqlmock.NewResult(1, 1))

	sink.RecordCallEnded("room1", "alice", "bob", "ended", 1000, 2000)

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPostgresSinkRecordCallEndedSwallowsError(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	sink := &PostgresSink{db: db}
	mock.ExpectExec("INSERT INTO call_records").
		WillReturnError(errUnavailable)

	// RecordCallEnded is best-effort: a failing insert must not panic or
	// otherwise propagate to the caller.
	sink.RecordCallEnded("room2", "alice", "bob", "disconnected", 1000, 2000)

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPostgresSinkCloseNilSafe(t *testing.T) {
	var s *PostgresSink
	if err := s.Close(); err != nil {
		t.Fatalf("expected nil-receiver Close to be a no-op, got %v", err)
	}
}
