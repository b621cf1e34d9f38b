package db

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestRecreateDatabaseRecordsStatements(t *testing.T) {
	_, mock, err := sqlmock.NewWithDSN("recreate_ok", sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	mock.ExpectExec("DROP DATABASE IF EXISTS database3").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE DATABASE database3 TEMPLATE template0").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectClose()

	var recorded []string
	err = RecreateDatabase(context.Background(), "sqlmock", "recreate_ok", "database3", " TEMPLATE template0 ", func(stmt string) {
		recorded = append(recorded, stmt)
	})
	if err != nil {
		t.Fatalf("recreate: %v", err)
	}
	if len(recorded) != 2 || recorded[1] != "CREATE DATABASE database3 TEMPLATE template0" {
		t.Fatalf("unexpected statements %v", recorded)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestRecreateDatabaseStopsOnError(t *testing.T) {
	_, mock, err := sqlmock.NewWithDSN("recreate_fail", sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	denied := errors.New("permission denied to create database")
	mock.ExpectExec("DROP DATABASE IF EXISTS database4").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE DATABASE database4").WillReturnError(denied)
	mock.ExpectClose()

	err = RecreateDatabase(context.Background(), "sqlmock", "recreate_fail", "database4", "", nil)
	if !errors.Is(err, denied) {
		t.Fatalf("expected create error, got %v", err)
	}
}
