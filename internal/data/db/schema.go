package db

import (
	"context"

	"gorm.io/gorm"

	"github.com/yungbote/questionbank/internal/domain/question"
)

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS questions (
		uid TEXT PRIMARY KEY,
		question_text TEXT NOT NULL,
		question_image TEXT,
		answer TEXT NOT NULL,
		difficulty TEXT,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS options (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		question_uid TEXT NOT NULL REFERENCES questions(uid) ON DELETE CASCADE,
		option_key TEXT NOT NULL,
		option_text TEXT NOT NULL,
		option_image TEXT,
		UNIQUE (question_uid, option_key)
	)`,
	`CREATE TABLE IF NOT EXISTS tags (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL UNIQUE
	)`,
	`CREATE TABLE IF NOT EXISTS question_tags (
		question_uid TEXT NOT NULL REFERENCES questions(uid) ON DELETE CASCADE,
		tag_id INTEGER NOT NULL REFERENCES tags(id) ON DELETE CASCADE,
		PRIMARY KEY (question_uid, tag_id)
	)`,
	`CREATE TABLE IF NOT EXISTS explanations (
		question_uid TEXT PRIMARY KEY REFERENCES questions(uid) ON DELETE CASCADE,
		explanation_text TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS migration_runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		source TEXT NOT NULL,
		mode TEXT NOT NULL,
		started_at DATETIME NOT NULL,
		finished_at DATETIME NOT NULL,
		attempted INTEGER NOT NULL DEFAULT 0,
		migrated INTEGER NOT NULL DEFAULT 0,
		skipped INTEGER NOT NULL DEFAULT 0,
		failures TEXT
	)`,
	`CREATE INDEX IF NOT EXISTS idx_questions_difficulty ON questions(difficulty)`,
	`CREATE INDEX IF NOT EXISTS idx_questions_created_at ON questions(created_at)`,
	`CREATE INDEX IF NOT EXISTS idx_question_tags_tag_id ON question_tags(tag_id)`,
	`CREATE INDEX IF NOT EXISTS idx_options_question_uid ON options(question_uid)`,
	`CREATE TRIGGER IF NOT EXISTS update_questions_timestamp
		AFTER UPDATE ON questions
		FOR EACH ROW WHEN NEW.updated_at IS OLD.updated_at
		BEGIN
			UPDATE questions SET updated_at = strftime('%Y-%m-%d %H:%M:%f', 'now') WHERE uid = NEW.uid;
		END`,
}

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS questions (
		uid TEXT PRIMARY KEY,
		question_text TEXT NOT NULL,
		question_image TEXT,
		answer TEXT NOT NULL,
		difficulty TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS options (
		id BIGSERIAL PRIMARY KEY,
		question_uid TEXT NOT NULL REFERENCES questions(uid) ON DELETE CASCADE,
		option_key TEXT NOT NULL,
		option_text TEXT NOT NULL,
		option_image TEXT,
		UNIQUE (question_uid, option_key)
	)`,
	`CREATE TABLE IF NOT EXISTS tags (
		id BIGSERIAL PRIMARY KEY,
		name TEXT NOT NULL UNIQUE
	)`,
	`CREATE TABLE IF NOT EXISTS question_tags (
		question_uid TEXT NOT NULL REFERENCES questions(uid) ON DELETE CASCADE,
		tag_id BIGINT NOT NULL REFERENCES tags(id) ON DELETE CASCADE,
		PRIMARY KEY (question_uid, tag_id)
	)`,
	`CREATE TABLE IF NOT EXISTS explanations (
		question_uid TEXT PRIMARY KEY REFERENCES questions(uid) ON DELETE CASCADE,
		explanation_text TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS migration_runs (
		id BIGSERIAL PRIMARY KEY,
		source TEXT NOT NULL,
		mode TEXT NOT NULL,
		started_at TIMESTAMPTZ NOT NULL,
		finished_at TIMESTAMPTZ NOT NULL,
		attempted INTEGER NOT NULL DEFAULT 0,
		migrated INTEGER NOT NULL DEFAULT 0,
		skipped INTEGER NOT NULL DEFAULT 0,
		failures JSONB
	)`,
	`CREATE INDEX IF NOT EXISTS idx_questions_difficulty ON questions(difficulty)`,
	`CREATE INDEX IF NOT EXISTS idx_questions_created_at ON questions(created_at)`,
	`CREATE INDEX IF NOT EXISTS idx_question_tags_tag_id ON question_tags(tag_id)`,
	`CREATE INDEX IF NOT EXISTS idx_options_question_uid ON options(question_uid)`,
	`CREATE OR REPLACE FUNCTION questions_touch_updated_at() RETURNS trigger AS $$
	BEGIN
		IF NEW.updated_at IS NOT DISTINCT FROM OLD.updated_at THEN
			NEW.updated_at := NOW();
		END IF;
		RETURN NEW;
	END;
	$$ LANGUAGE plpgsql`,
	`DROP TRIGGER IF EXISTS update_questions_timestamp ON questions`,
	`CREATE TRIGGER update_questions_timestamp
		BEFORE UPDATE ON questions
		FOR EACH ROW EXECUTE FUNCTION questions_touch_updated_at()`,
}

// Tables lists the schema's tables in dependency order.
var Tables = []string{"questions", "options", "tags", "question_tags", "explanations", "migration_runs"}

// EnsureSchema applies the DDL for dialect. Every statement is idempotent.
func EnsureSchema(ctx context.Context, gdb *gorm.DB, dialect Dialect) error {
	stmts := sqliteSchema
	if dialect == DialectPostgres {
		stmts = postgresSchema
	}
	return gdb.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, stmt := range stmts {
			if err := tx.Exec(stmt).Error; err != nil {
				return question.Wrap(question.CodeIOFailure, "db.ensure_schema", err)
			}
		}
		return nil
	})
}
