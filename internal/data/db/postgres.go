package db

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/yungbote/questionbank/internal/domain/question"
	"github.com/yungbote/questionbank/internal/platform/logger"
)

// invalid_catalog_name: the database named in the DSN does not exist.
const pgInvalidCatalog = "3D000"

func openPostgres(ctx context.Context, dsn string, log *logger.Logger) (*gorm.DB, error) {
	gdb, err := gorm.Open(postgres.Open(dsn), gormConfig(log))
	if err != nil {
		return nil, classifyPostgresOpen(err)
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, question.Wrap(question.CodeIOFailure, "db.open", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, classifyPostgresOpen(err)
	}
	return gdb, nil
}

func classifyPostgresOpen(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgInvalidCatalog {
		return question.NewError(question.CodeStoreNotFound, "db.open", pgErr.Message, err)
	}
	return question.Wrap(question.CodeIOFailure, "db.open", err)
}
