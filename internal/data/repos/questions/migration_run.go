package questions

import (
	"gorm.io/gorm"

	"github.com/yungbote/questionbank/internal/domain/question"
	"github.com/yungbote/questionbank/internal/pkg/dbctx"
	"github.com/yungbote/questionbank/internal/platform/logger"
)

type MigrationRunRepo interface {
	Create(dbc dbctx.Context, run *question.MigrationRun) error
	ListRecent(dbc dbctx.Context, limit int) ([]question.MigrationRun, error)
}

type migrationRunRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewMigrationRunRepo(db *gorm.DB, baseLog *logger.Logger) MigrationRunRepo {
	return &migrationRunRepo{db: db, log: baseLog.With("repo", "MigrationRunRepo")}
}

func (r *migrationRunRepo) Create(dbc dbctx.Context, run *question.MigrationRun) error {
	if run == nil {
		return nil
	}
	return dbc.DB(r.db).Create(run).Error
}

func (r *migrationRunRepo) ListRecent(dbc dbctx.Context, limit int) ([]question.MigrationRun, error) {
	out := []question.MigrationRun{}
	q := dbc.DB(r.db).Order("started_at DESC, id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
