package questions

import (
	"gorm.io/gorm"

	"github.com/yungbote/questionbank/internal/domain/question"
	"github.com/yungbote/questionbank/internal/pkg/dbctx"
	"github.com/yungbote/questionbank/internal/platform/logger"
)

type OptionRepo interface {
	ReplaceForQuestion(dbc dbctx.Context, uid string, rows []question.OptionRow) error
	GetByQuestionUIDs(dbc dbctx.Context, uids []string) ([]question.OptionRow, error)
}

type optionRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewOptionRepo(db *gorm.DB, baseLog *logger.Logger) OptionRepo {
	return &optionRepo{db: db, log: baseLog.With("repo", "OptionRepo")}
}

// ReplaceForQuestion deletes every option row of uid and inserts rows in their place.
func (r *optionRepo) ReplaceForQuestion(dbc dbctx.Context, uid string, rows []question.OptionRow) error {
	t := dbc.DB(r.db)
	if err := t.Where("question_uid = ?", uid).Delete(&question.OptionRow{}).Error; err != nil {
		return err
	}
	if len(rows) == 0 {
		return nil
	}
	ins := make([]question.OptionRow, len(rows))
	for i, row := range rows {
		row.ID = 0
		row.QuestionUID = uid
		ins[i] = row
	}
	return t.Create(&ins).Error
}

func (r *optionRepo) GetByQuestionUIDs(dbc dbctx.Context, uids []string) ([]question.OptionRow, error) {
	out := []question.OptionRow{}
	if len(uids) == 0 {
		return out, nil
	}
	if err := dbc.DB(r.db).
		Where("question_uid IN ?", uids).
		Order("question_uid ASC, option_key ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
