package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/yungbote/questionbank/internal/data/aggregates"
	"github.com/yungbote/questionbank/internal/data/migration"
	"github.com/yungbote/questionbank/internal/domain/question"
	"github.com/yungbote/questionbank/internal/platform/config"
	"github.com/yungbote/questionbank/internal/platform/envutil"
	"github.com/yungbote/questionbank/internal/platform/logger"
	"github.com/yungbote/questionbank/internal/platform/shutdown"
)

type listFlag []string

func (l *listFlag) String() string { return strings.Join(*l, ",") }
func (l *listFlag) Set(v string) error {
	v = strings.TrimSpace(v)
	if v != "" {
		*l = append(*l, v)
	}
	return nil
}

func main() {
	var uids, tags listFlag
	var location, out, difficulty string
	var appendMode bool
	flag.StringVar(&location, "db", "", "source store (SQLite path or postgres DSN); defaults to the configured store")
	flag.StringVar(&out, "out", "", "corpus file to write (required)")
	flag.Var(&uids, "uid", "question uid to export (repeatable); exports in the order given")
	flag.Var(&tags, "tag", "only questions carrying this tag (repeatable, ignored with -uid)")
	flag.StringVar(&difficulty, "difficulty", "", "only questions with this difficulty (ignored with -uid)")
	flag.BoolVar(&appendMode, "append", false, "append to the corpus file instead of replacing it")
	flag.Parse()

	if strings.TrimSpace(out) == "" {
		fmt.Println("-out is required")
		os.Exit(2)
	}

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

	n, err := migration.Export(ctx, location, out, migration.ExportOptions{
		UIDs:   uids,
		Filter: aggregates.Filter{Tags: question.NormalizeTags(tags), Difficulty: strings.TrimSpace(difficulty)},
		Append: appendMode,
	}, log)
	if err != nil {
		fmt.Printf("export failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("exported %d questions to %s\n", n, out)
}
