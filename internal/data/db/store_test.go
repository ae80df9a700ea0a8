package db

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/yungbote/questionbank/internal/domain/question"
	"github.com/yungbote/questionbank/internal/platform/logger"
)

func openTemp(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "nested", "questions.db")
	s, err := Open(context.Background(), path, Options{Create: true, Log: logger.Nop()})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestOpenMissingWithoutCreate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "absent.db")
	_, err := Open(context.Background(), path, Options{Log: logger.Nop()})
	if !question.IsCode(err, question.CodeStoreNotFound) {
		t.Fatalf("expected store_not_found, got %v", err)
	}
	if _, statErr := os.Stat(path); !errors.Is(statErr, os.ErrNotExist) {
		t.Fatalf("store file must not be created: %v", statErr)
	}
}

func TestOpenCreatesStoreAndSchema(t *testing.T) {
	s := openTemp(t)
	if s.Dialect() != DialectSQLite {
		t.Fatalf("dialect: %s", s.Dialect())
	}
	for _, table := range Tables {
		if !s.DB().Migrator().HasTable(table) {
			t.Fatalf("missing table %s", table)
		}
	}
	var fk int
	if err := s.DB().Raw("PRAGMA foreign_keys").Scan(&fk).Error; err != nil || fk != 1 {
		t.Fatalf("foreign keys not enforced: fk=%d err=%v", fk, err)
	}

	// Reopening an existing store must not need Create and must tolerate the existing schema.
	loc := s.Location()
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	again, err := Open(context.Background(), loc, Options{Log: logger.Nop()})
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	_ = again.Close()
}

func TestCascadeDelete(t *testing.T) {
	s := openTemp(t)
	gdb := s.DB()
	stmts := []string{
		`INSERT INTO questions (uid, question_text, answer) VALUES ('q1', 'text', 'A')`,
		`INSERT INTO options (question_uid, option_key, option_text) VALUES ('q1', 'A', 'a')`,
		`INSERT INTO tags (name) VALUES ('shared')`,
		`INSERT INTO question_tags (question_uid, tag_id) VALUES ('q1', 1)`,
		`INSERT INTO explanations (question_uid, explanation_text) VALUES ('q1', 'why')`,
		`DELETE FROM questions WHERE uid = 'q1'`,
	}
	for _, stmt := range stmts {
		if err := gdb.Exec(stmt).Error; err != nil {
			t.Fatalf("%s: %v", stmt, err)
		}
	}
	for _, table := range []string{"options", "question_tags", "explanations"} {
		var n int64
		if err := gdb.Table(table).Where("question_uid = ?", "q1").Count(&n).Error; err != nil || n != 0 {
			t.Fatalf("%s not cascaded: n=%d err=%v", table, n, err)
		}
	}
	var tags int64
	if err := gdb.Table("tags").Count(&tags).Error; err != nil || tags != 1 {
		t.Fatalf("tag row must persist: n=%d err=%v", tags, err)
	}

	err := gdb.Exec(`INSERT INTO options (question_uid, option_key, option_text) VALUES ('ghost', 'A', 'a')`).Error
	if err == nil {
		t.Fatalf("expected foreign key violation")
	}
}

func TestUpdatedAtTrigger(t *testing.T) {
	s := openTemp(t)
	gdb := s.DB()
	old := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	if err := gdb.Exec(`INSERT INTO questions (uid, question_text, answer, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		"q1", "text", "A", old, old).Error; err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := gdb.Exec(`UPDATE questions SET question_text = 'edited' WHERE uid = 'q1'`).Error; err != nil {
		t.Fatalf("update: %v", err)
	}
	var row question.QuestionRow
	if err := gdb.Where("uid = ?", "q1").First(&row).Error; err != nil {
		t.Fatalf("read: %v", err)
	}
	if !row.UpdatedAt.After(old) {
		t.Fatalf("trigger did not refresh updated_at: %v", row.UpdatedAt)
	}
	if !row.CreatedAt.Equal(old) {
		t.Fatalf("created_at changed: %v", row.CreatedAt)
	}

	explicit := time.Date(2021, 6, 1, 0, 0, 0, 0, time.UTC)
	if err := gdb.Exec(`UPDATE questions SET updated_at = ? WHERE uid = 'q1'`, explicit).Error; err != nil {
		t.Fatalf("explicit update: %v", err)
	}
	if err := gdb.Where("uid = ?", "q1").First(&row).Error; err != nil {
		t.Fatalf("read: %v", err)
	}
	if !row.UpdatedAt.Equal(explicit) {
		t.Fatalf("explicit updated_at overridden: %v", row.UpdatedAt)
	}
}

func TestWithStoreClosesOnPanic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "q.db")
	var captured *Store
	func() {
		defer func() {
			if recover() == nil {
				t.Fatalf("expected panic to propagate")
			}
		}()
		_ = WithStore(context.Background(), path, Options{Create: true, Log: logger.Nop()}, func(s *Store) error {
			captured = s
			panic("boom")
		})
	}()
	sqlDB, err := captured.DB().DB()
	if err != nil {
		t.Fatalf("DB: %v", err)
	}
	if err := sqlDB.Ping(); err == nil {
		t.Fatalf("store should be closed after panic")
	}
}

func TestWithStorePropagatesError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "q.db")
	want := errors.New("fn failed")
	err := WithStore(context.Background(), path, Options{Create: true, Log: logger.Nop()}, func(s *Store) error {
		rows, err := s.QueryMaps(context.Background(), "SELECT COUNT(*) AS n FROM questions")
		if err != nil {
			return err
		}
		if len(rows) != 1 {
			t.Fatalf("QueryMaps rows: %v", rows)
		}
		if _, ok := rows[0]["n"]; !ok {
			t.Fatalf("QueryMaps must key by column name: %v", rows[0])
		}
		return want
	})
	if !errors.Is(err, want) {
		t.Fatalf("WithStore: %v", err)
	}
}

func TestIsPostgresLocation(t *testing.T) {
	cases := map[string]bool{
		"postgres://u:p@localhost/db":    true,
		"POSTGRESQL://localhost/db":      true,
		"data/questions.db":              false,
		"/var/lib/postgres/questions.db": false,
	}
	for loc, want := range cases {
		if got := IsPostgresLocation(loc); got != want {
			t.Fatalf("IsPostgresLocation(%q) = %v", loc, got)
		}
	}
}

func TestPostgresSchema(t *testing.T) {
	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("set TEST_POSTGRES_DSN to run postgres integration tests")
	}
	s, err := Open(context.Background(), dsn, Options{Log: logger.Nop()})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()
	if s.Dialect() != DialectPostgres {
		t.Fatalf("dialect: %s", s.Dialect())
	}
	for _, table := range Tables {
		if !s.DB().Migrator().HasTable(table) {
			t.Fatalf("missing table %s", table)
		}
	}
}
