// Package migration performs the one-shot import of a legacy JSON corpus into the relational store.
package migration

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/yungbote/questionbank/internal/data/aggregates"
	"github.com/yungbote/questionbank/internal/data/corpus"
	"github.com/yungbote/questionbank/internal/data/db"
	"github.com/yungbote/questionbank/internal/data/repos"
	"github.com/yungbote/questionbank/internal/domain/question"
	"github.com/yungbote/questionbank/internal/observability"
	"github.com/yungbote/questionbank/internal/pkg/dbctx"
	"github.com/yungbote/questionbank/internal/platform/logger"
)

const (
	ModeInsert = "insert"
	ModeUpdate = "update"

	outcomeMigrated = "migrated"
	outcomeSkipped  = "skipped"
	outcomeFailed   = "failed"
)

type Options struct {
	// CreateStore creates the store (and its schema) when it does not exist yet.
	CreateStore bool
	// WriteBackUIDs persists uids assigned to documents that had none into the source files.
	WriteBackUIDs bool
	// Update replaces questions that already exist instead of leaving them untouched.
	Update bool

	Now     func() time.Time
	Metrics *observability.Metrics
}

// RecordFailure describes one record that was not migrated.
type RecordFailure struct {
	UID     string `json:"uid,omitempty"`
	File    string `json:"file"`
	Index   int    `json:"index"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Result summarises a run. Migrated counts records written; Skipped counts records whose uid was
// already stored (insert mode only).
type Result struct {
	Attempted int             `json:"attempted"`
	Migrated  int             `json:"migrated"`
	Skipped   int             `json:"skipped"`
	Failures  []RecordFailure `json:"failures"`
}

// Migrate imports every record of the corpus at source into the store at location. Record-level
// failures are logged, reported in Result and never abort the run. The whole run, including its
// audit row, commits as one transaction; any failure outside a single record rolls it back and is
// returned as an error.
func Migrate(ctx context.Context, source, location string, opts Options, log *logger.Logger) (Result, error) {
	if log == nil {
		log = logger.Nop()
	}
	log = log.With("component", "Migration")
	res := Result{Failures: []RecordFailure{}}

	source = strings.TrimSpace(source)
	if _, err := os.Stat(source); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			log.Error("source corpus not found", "source", source)
			return res, question.NewError(question.CodeSourceNotFound, "migration.run", fmt.Sprintf("source %q not found", source), err)
		}
		return res, question.Wrap(question.CodeIOFailure, "migration.run", err)
	}

	ctx, span := observability.Tracer("github.com/yungbote/questionbank/internal/data/migration").Start(ctx, "migration.run")
	defer span.End()

	c, err := corpus.Load(ctx, source, log)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(question.CodeOf(err)))
		return res, err
	}
	if opts.WriteBackUIDs && c.Enriched() > 0 {
		if err := c.WriteBack(); err != nil {
			span.RecordError(err)
			return res, err
		}
		log.Info("assigned uids written back to source", "count", c.Enriched())
	}

	err = db.WithStore(ctx, location, db.Options{Create: opts.CreateStore, Log: log}, func(s *db.Store) error {
		var runErr error
		res, runErr = run(ctx, s, source, c, opts, log)
		return runErr
	})
	span.SetAttributes(
		attribute.Int("qb.migration.attempted", res.Attempted),
		attribute.Int("qb.migration.migrated", res.Migrated),
		attribute.Int("qb.migration.failed", len(res.Failures)),
	)
	if err != nil {
		err = aggregates.MapError("migration.run", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, string(question.CodeOf(err)))
		log.Error("migration failed", "source", source, "error", err)
		return res, err
	}
	log.Info("migration finished",
		"source", source,
		"attempted", res.Attempted,
		"migrated", res.Migrated,
		"skipped", res.Skipped,
		"failed", len(res.Failures),
	)
	return res, nil
}

func run(ctx context.Context, s *db.Store, source string, c *corpus.Corpus, opts Options, log *logger.Logger) (Result, error) {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	mode, writeMode := ModeInsert, aggregates.WriteInsertOnly
	if opts.Update {
		mode, writeMode = ModeUpdate, aggregates.WriteUpsert
	}
	bank := aggregates.NewQuestionBank(s.DB(), log, aggregates.Options{Now: now})
	runs := repos.NewMigrationRunRepo(s.DB(), log)

	res := Result{Failures: []RecordFailure{}}
	started := now().UTC()

	fail := func(f RecordFailure) {
		res.Failures = append(res.Failures, f)
		opts.Metrics.IncMigrationRecord(outcomeFailed)
		log.Error("record not migrated", "uid", f.UID, "file", f.File, "index", f.Index, "code", f.Code, "error", f.Message)
	}

	err := s.DB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, f := range c.Failures {
			res.Attempted++
			fail(RecordFailure{UID: f.UID, File: f.File, Index: f.Index, Code: string(question.CodeOf(f.Err)), Message: f.Err.Error()})
		}
		for _, rec := range c.Records {
			if err := ctx.Err(); err != nil {
				return err
			}
			res.Attempted++
			q := rec.Question
			var wrote bool
			// Each record gets its own savepoint so a failure leaves none of its rows behind.
			err := tx.Transaction(func(sp *gorm.DB) error {
				var err error
				wrote, err = bank.WriteInTx(dbctx.Context{Ctx: ctx, Tx: sp}, &q, writeMode)
				return err
			})
			if err != nil {
				err = aggregates.MapError("migration.record", err)
				if question.IsCode(err, question.CodeIOFailure) {
					return err
				}
				fail(RecordFailure{UID: q.UID, File: rec.File, Index: rec.Index, Code: string(question.CodeOf(err)), Message: err.Error()})
				continue
			}
			if wrote {
				res.Migrated++
				opts.Metrics.IncMigrationRecord(outcomeMigrated)
			} else {
				res.Skipped++
				opts.Metrics.IncMigrationRecord(outcomeSkipped)
				log.Debug("question already stored, skipped", "uid", q.UID)
			}
		}

		failures, err := json.Marshal(res.Failures)
		if err != nil {
			return err
		}
		return runs.Create(dbctx.Context{Ctx: ctx, Tx: tx}, &question.MigrationRun{
			Source:     source,
			Mode:       mode,
			StartedAt:  started,
			FinishedAt: now().UTC(),
			Attempted:  res.Attempted,
			Migrated:   res.Migrated,
			Skipped:    res.Skipped,
			Failures:   datatypes.JSON(failures),
		})
	})
	if err != nil {
		return Result{Failures: []RecordFailure{}}, err
	}
	return res, nil
}
