package migration

import (
	"context"
	"strings"

	"github.com/yungbote/questionbank/internal/data/aggregates"
	"github.com/yungbote/questionbank/internal/data/corpus"
	"github.com/yungbote/questionbank/internal/data/db"
	"github.com/yungbote/questionbank/internal/domain/question"
	"github.com/yungbote/questionbank/internal/platform/logger"
)

// ExportOptions selects the questions written out as a legacy corpus.
type ExportOptions struct {
	// UIDs exports exactly these questions in this order. Unknown uids are skipped.
	UIDs []string
	// Filter applies when UIDs is empty; matches are written newest first.
	Filter aggregates.Filter
	// Append adds the questions to the existing corpus file instead of replacing it.
	Append bool
}

// Export writes questions from the store at location into the corpus file dest and returns how
// many were written. The store must already exist.
func Export(ctx context.Context, location, dest string, opts ExportOptions, log *logger.Logger) (int, error) {
	if log == nil {
		log = logger.Nop()
	}
	log = log.With("component", "CorpusExport")

	var qs []question.Question
	err := db.WithStore(ctx, location, db.Options{Log: log}, func(s *db.Store) error {
		bank := aggregates.NewQuestionBank(s.DB(), log, aggregates.Options{})
		var err error
		if len(opts.UIDs) > 0 {
			qs, err = bank.Export(ctx, opts.UIDs)
		} else {
			qs, err = bank.List(ctx, aggregates.ListOptions{Filter: opts.Filter})
		}
		return err
	})
	if err != nil {
		return 0, aggregates.MapError("migration.export", err)
	}

	dest = strings.TrimSpace(dest)
	if opts.Append {
		for _, q := range qs {
			if err := corpus.Append(dest, q, log); err != nil {
				return 0, err
			}
		}
	} else if err := corpus.Save(dest, qs); err != nil {
		return 0, err
	}
	log.Info("corpus exported", "dest", dest, "questions", len(qs), "append", opts.Append)
	return len(qs), nil
}
