package query

import (
	"context"
	"regexp"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
)

func TestInsertInto(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO resource (pool, name, state) VALUES (?, ?, ?)")).
		WithArgs("pool-a", "pool-a-00000001", "STARTING").
		WillReturnResult(sqlmock.NewResult(7, 1))

	id, err := InsertInto("resource").
		Set("pool", "pool-a").
		Set("name", "pool-a-00000001").
		Set("state", "STARTING").
		Exec(context.Background(), db)
	if err != nil {
		t.Fatalf("Exec: %v", err)
	}
	if id != 7 {
		t.Fatalf("id = %d, want 7", id)
	}
}

func TestInsertInto_NoSet(t *testing.T) {
	db, _ := newMockDB(t)
	if _, err := InsertInto("resource").Exec(context.Background(), db); err != ErrSetRequired {
		t.Fatalf("err = %v, want ErrSetRequired", err)
	}
}

func TestUpdateTable_RawExpr(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE resource SET releases_counter = releases_counter + 1, released_at = ? WHERE id = ?")).
		WithArgs(int64(1700000000), int64(5)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	n, err := UpdateTable("resource").
		Set("releases_counter", RawExpr("releases_counter + 1")).
		Set("released_at", int64(1700000000)).
		Where(Eq("id", int64(5))).
		Exec(context.Background(), db)
	if err != nil {
		t.Fatalf("Exec: %v", err)
	}
	if n != 1 {
		t.Fatalf("n = %d, want 1", n)
	}
}

// A Where-then-Exec chain compiles. Exec also compiles without Where, e.g.
//
//	UpdateTable("resource").Set("state", "UP").Exec(context.Background(), nil)
//
// and that call fails at run time with ErrWhereRequired.
func TestUpdateTable_WhereThenExecCompiles(t *testing.T) {
	var _ = func(db *sqlx.DB) {
		UpdateTable("resource").Set("state", "UP").Where(Eq("id", int64(1))).Exec(context.Background(), db)
	}
}

func TestDeleteFrom(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM ticket WHERE id = ?")).
		WithArgs(int64(3)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	n, err := DeleteFrom("ticket").Where(Eq("id", int64(3))).Exec(context.Background(), db)
	if err != nil {
		t.Fatalf("Exec: %v", err)
	}
	if n != 1 {
		t.Fatalf("n = %d, want 1", n)
	}
}
