package migration

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/yungbote/questionbank/internal/data/db"
	"github.com/yungbote/questionbank/internal/data/repos/testutil"
	"github.com/yungbote/questionbank/internal/domain/question"
	"github.com/yungbote/questionbank/internal/observability"
)

func doc(uid, answer string, tags ...string) map[string]interface{} {
	d := map[string]interface{}{
		"question": map[string]string{"text": "question " + uid},
		"options": map[string]map[string]string{
			"A": {"text": "a"}, "B": {"text": "b"}, "C": {"text": "c"}, "D": {"text": "d"},
		},
		"answer":      answer,
		"difficulty":  "medium",
		"tags":        tags,
		"explanation": map[string]string{"text": "because"},
	}
	if uid != "" {
		d["uid"] = uid
	}
	return d
}

func writeCorpus(t *testing.T, docs ...map[string]interface{}) string {
	t.Helper()
	b, err := json.Marshal(docs)
	if err != nil {
		t.Fatalf("marshal corpus: %v", err)
	}
	path := filepath.Join(t.TempDir(), "questions.json")
	if err := os.WriteFile(path, b, 0o644); err != nil {
		t.Fatalf("write corpus: %v", err)
	}
	return path
}

func partialCorpus(t *testing.T) string {
	return writeCorpus(t,
		doc("q1", "A", "algebra"),
		doc("q2", "B", "algebra", "geometry"),
		doc("q3", "C"),
		doc("broken", "E", "algebra"),
		doc("q4", "D", "geometry"),
		doc("q5", "a"),
	)
}

func countQuestions(t *testing.T, location string) int64 {
	t.Helper()
	var n int64
	err := db.WithStore(context.Background(), location, db.Options{Log: testutil.Logger(t)}, func(s *db.Store) error {
		n = testutil.CountRows(t, s.DB(), "questions", "")
		return nil
	})
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	return n
}

func TestMigrateToleratesMalformedRecords(t *testing.T) {
	source := partialCorpus(t)
	location := filepath.Join(t.TempDir(), "store", "questions.db")
	metrics := observability.New()

	res, err := Migrate(context.Background(), source, location, Options{CreateStore: true, Metrics: metrics}, testutil.Logger(t))
	if err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	if res.Attempted != 6 || res.Migrated != 5 || res.Skipped != 0 {
		t.Fatalf("result: %+v", res)
	}
	if len(res.Failures) != 1 || res.Failures[0].UID != "broken" || res.Failures[0].Code != string(question.CodeMalformedRecord) {
		t.Fatalf("failures: %+v", res.Failures)
	}
	if n := countQuestions(t, location); n != 5 {
		t.Fatalf("store must hold exactly 5 questions, got %d", n)
	}

	var b strings.Builder
	if err := metrics.WritePrometheus(&b); err != nil {
		t.Fatalf("WritePrometheus: %v", err)
	}
	for _, want := range []string{`outcome="migrated"} 5`, `outcome="failed"} 1`} {
		if !strings.Contains(b.String(), want) {
			t.Fatalf("metrics missing %q:\n%s", want, b.String())
		}
	}
}

func TestMigrateRejectsAnswerOnAbsentOption(t *testing.T) {
	missingD := doc("missing-d", "D")
	delete(missingD["options"].(map[string]map[string]string), "D")
	noOptions := doc("no-options", "A")
	delete(noOptions, "options")
	source := writeCorpus(t, doc("ok", "A"), missingD, noOptions)
	location := filepath.Join(t.TempDir(), "questions.db")

	res, err := Migrate(context.Background(), source, location, Options{CreateStore: true}, testutil.Logger(t))
	if err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	if res.Attempted != 3 || res.Migrated != 1 || len(res.Failures) != 2 {
		t.Fatalf("result: %+v", res)
	}
	failed := map[string]string{}
	for _, f := range res.Failures {
		failed[f.UID] = f.Code
	}
	for _, uid := range []string{"missing-d", "no-options"} {
		if failed[uid] != string(question.CodeMalformedRecord) {
			t.Fatalf("%s must fail as malformed_record: %+v", uid, res.Failures)
		}
	}
	if n := countQuestions(t, location); n != 1 {
		t.Fatalf("only the complete record may be stored, got %d", n)
	}
}

func TestMigrateLeavesNoRowsForFailedRecord(t *testing.T) {
	source := partialCorpus(t)
	location := filepath.Join(t.TempDir(), "questions.db")
	if _, err := Migrate(context.Background(), source, location, Options{CreateStore: true}, testutil.Logger(t)); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	err := db.WithStore(context.Background(), location, db.Options{Log: testutil.Logger(t)}, func(s *db.Store) error {
		for _, table := range []string{"options", "question_tags", "explanations"} {
			if n := testutil.CountRows(t, s.DB(), table, "question_uid = ?", "broken"); n != 0 {
				t.Fatalf("%s rows for the failed record: %d", table, n)
			}
		}
		if n := testutil.CountRows(t, s.DB(), "tags", ""); n != 2 {
			t.Fatalf("tags: %d", n)
		}
		if n := testutil.CountRows(t, s.DB(), "question_tags", ""); n != 4 {
			t.Fatalf("question_tags: %d", n)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("inspect store: %v", err)
	}
}

func TestMigrateIsIdempotent(t *testing.T) {
	source := partialCorpus(t)
	location := filepath.Join(t.TempDir(), "questions.db")
	ctx := context.Background()
	log := testutil.Logger(t)

	if _, err := Migrate(ctx, source, location, Options{CreateStore: true}, log); err != nil {
		t.Fatalf("first run: %v", err)
	}
	res, err := Migrate(ctx, source, location, Options{}, log)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if res.Migrated != 0 || res.Skipped != 5 || len(res.Failures) != 1 {
		t.Fatalf("rerun result: %+v", res)
	}
	if n := countQuestions(t, location); n != 5 {
		t.Fatalf("rerun changed the store: %d questions", n)
	}

	err = db.WithStore(ctx, location, db.Options{Log: log}, func(s *db.Store) error {
		if n := testutil.CountRows(t, s.DB(), "migration_runs", ""); n != 2 {
			t.Fatalf("migration_runs: %d", n)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("inspect store: %v", err)
	}
}

func TestMigrateUpdateModeReplacesExisting(t *testing.T) {
	location := filepath.Join(t.TempDir(), "questions.db")
	ctx := context.Background()
	log := testutil.Logger(t)

	first := writeCorpus(t, doc("q1", "A", "algebra"))
	if _, err := Migrate(ctx, first, location, Options{CreateStore: true}, log); err != nil {
		t.Fatalf("first run: %v", err)
	}

	changed := doc("q1", "D", "geometry")
	changed["question"] = map[string]string{"text": "rewritten"}
	second := writeCorpus(t, changed)

	res, err := Migrate(ctx, second, location, Options{}, log)
	if err != nil || res.Skipped != 1 || res.Migrated != 0 {
		t.Fatalf("insert mode must not overwrite: res=%+v err=%v", res, err)
	}
	res, err = Migrate(ctx, second, location, Options{Update: true}, log)
	if err != nil || res.Migrated != 1 || res.Skipped != 0 {
		t.Fatalf("update run: res=%+v err=%v", res, err)
	}

	err = db.WithStore(ctx, location, db.Options{Log: log}, func(s *db.Store) error {
		rows, err := s.QueryMaps(ctx, "SELECT question_text, answer FROM questions WHERE uid = ?", "q1")
		if err != nil {
			return err
		}
		if len(rows) != 1 || fmt.Sprint(rows[0]["question_text"]) != "rewritten" || fmt.Sprint(rows[0]["answer"]) != "D" {
			t.Fatalf("question not replaced: %+v", rows)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("inspect store: %v", err)
	}
}

func TestMigrateWritesBackAssignedUIDs(t *testing.T) {
	source := writeCorpus(t, doc("", "A"), doc("kept", "B"))
	location := filepath.Join(t.TempDir(), "questions.db")
	ctx := context.Background()
	frozen := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	res, err := Migrate(ctx, source, location, Options{CreateStore: true, WriteBackUIDs: true, Now: func() time.Time { return frozen }}, testutil.Logger(t))
	if err != nil || res.Migrated != 2 {
		t.Fatalf("Migrate: res=%+v err=%v", res, err)
	}

	b, err := os.ReadFile(source)
	if err != nil {
		t.Fatalf("read source: %v", err)
	}
	var docs []map[string]interface{}
	if err := json.Unmarshal(b, &docs); err != nil {
		t.Fatalf("unmarshal source: %v", err)
	}
	assigned, _ := docs[0]["uid"].(string)
	if assigned == "" || docs[1]["uid"] != "kept" {
		t.Fatalf("uids not written back: %+v", docs)
	}

	res, err = Migrate(ctx, source, location, Options{}, testutil.Logger(t))
	if err != nil || res.Skipped != 2 || res.Migrated != 0 {
		t.Fatalf("rerun after write-back must skip both: res=%+v err=%v", res, err)
	}
}

func TestMigrateMissingSourceOrStore(t *testing.T) {
	dir := t.TempDir()
	_, err := Migrate(context.Background(), filepath.Join(dir, "missing.json"), filepath.Join(dir, "q.db"), Options{CreateStore: true}, nil)
	if !question.IsCode(err, question.CodeSourceNotFound) {
		t.Fatalf("expected source_not_found, got %v", err)
	}

	source := writeCorpus(t, doc("q1", "A"))
	location := filepath.Join(dir, "absent.db")
	_, err = Migrate(context.Background(), source, location, Options{}, nil)
	if !question.IsCode(err, question.CodeStoreNotFound) {
		t.Fatalf("expected store_not_found, got %v", err)
	}
	if _, statErr := os.Stat(location); !os.IsNotExist(statErr) {
		t.Fatalf("store must not be created without CreateStore")
	}
}
