package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/yungbote/questionbank/internal/data/db"
	"github.com/yungbote/questionbank/internal/data/migration"
	"github.com/yungbote/questionbank/internal/observability"
	"github.com/yungbote/questionbank/internal/platform/config"
	"github.com/yungbote/questionbank/internal/platform/envutil"
	"github.com/yungbote/questionbank/internal/platform/logger"
	"github.com/yungbote/questionbank/internal/platform/shutdown"
)

var tables = []string{"questions", "options", "tags", "question_tags", "explanations"}

func main() {
	var source, location string
	var create, update, noWriteBack bool
	flag.StringVar(&source, "json", "data/questions.json", "legacy JSON corpus (file or directory of *.json)")
	flag.StringVar(&location, "db", "", "target store (SQLite path or postgres DSN); defaults to the configured store")
	flag.BoolVar(&create, "create", true, "create the store when it does not exist")
	flag.BoolVar(&update, "update", false, "replace questions that are already stored")
	flag.BoolVar(&noWriteBack, "no-writeback", false, "do not write generated uids back into the corpus")
	flag.Parse()

	log, err := logger.New(envutil.String("LOG_MODE", "development"))
	if err != nil {
		fmt.Printf("init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if strings.TrimSpace(location) == "" {
		cfg, err := config.Load(log)
		if err != nil {
			fmt.Printf("load config: %v\n", err)
			os.Exit(1)
		}
		location = cfg.DefaultDBPath
	}

	ctx, stop := shutdown.NotifyContext(context.Background())
	defer stop()

	res, err := migration.Migrate(ctx, source, location, migration.Options{
		CreateStore:   create,
		WriteBackUIDs: !noWriteBack,
		Update:        update,
		Metrics:       observability.New(),
	}, log)
	if err != nil {
		fmt.Printf("migration failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("migrated %d questions\n", res.Migrated)
	if res.Skipped > 0 {
		fmt.Printf("skipped %d already stored\n", res.Skipped)
	}
	for _, f := range res.Failures {
		fmt.Printf("  failed %s#%d %s: %s (%s)\n", f.File, f.Index, f.UID, f.Message, f.Code)
	}
	if err := printCounts(ctx, location, log); err != nil {
		log.Warn("could not read table counts", "error", err)
	}
}

func printCounts(ctx context.Context, location string, log *logger.Logger) error {
	return db.WithStore(ctx, location, db.Options{Log: log, SkipSchema: true}, func(s *db.Store) error {
		for _, table := range tables {
			rows, err := s.QueryMaps(ctx, "SELECT COUNT(*) AS n FROM "+table)
			if err != nil {
				return err
			}
			if len(rows) == 1 {
				fmt.Printf("  %-14s %v\n", table, rows[0]["n"])
			}
		}
		return nil
	})
}
