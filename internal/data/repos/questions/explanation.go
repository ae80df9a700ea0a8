package questions

import (
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/yungbote/questionbank/internal/domain/question"
	"github.com/yungbote/questionbank/internal/pkg/dbctx"
	"github.com/yungbote/questionbank/internal/platform/logger"
)

type ExplanationRepo interface {
	Upsert(dbc dbctx.Context, row *question.ExplanationRow) error
	DeleteByQuestionUID(dbc dbctx.Context, uid string) error
	GetByQuestionUIDs(dbc dbctx.Context, uids []string) ([]question.ExplanationRow, error)
}

type explanationRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewExplanationRepo(db *gorm.DB, baseLog *logger.Logger) ExplanationRepo {
	return &explanationRepo{db: db, log: baseLog.With("repo", "ExplanationRepo")}
}

func (r *explanationRepo) Upsert(dbc dbctx.Context, row *question.ExplanationRow) error {
	if row == nil {
		return nil
	}
	return dbc.DB(r.db).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "question_uid"}},
			DoUpdates: clause.AssignmentColumns([]string{"explanation_text"}),
		}).
		Create(row).Error
}

func (r *explanationRepo) DeleteByQuestionUID(dbc dbctx.Context, uid string) error {
	return dbc.DB(r.db).Where("question_uid = ?", uid).Delete(&question.ExplanationRow{}).Error
}

func (r *explanationRepo) GetByQuestionUIDs(dbc dbctx.Context, uids []string) ([]question.ExplanationRow, error) {
	out := []question.ExplanationRow{}
	if len(uids) == 0 {
		return out, nil
	}
	if err := dbc.DB(r.db).Where("question_uid IN ?", uids).Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
