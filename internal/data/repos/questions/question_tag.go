package questions

import (
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/yungbote/questionbank/internal/domain/question"
	"github.com/yungbote/questionbank/internal/pkg/dbctx"
	"github.com/yungbote/questionbank/internal/platform/logger"
)

type QuestionTagRepo interface {
	ReplaceForQuestion(dbc dbctx.Context, uid string, tagIDs []uint) error
	// ListByQuestionUIDs returns junction rows joined with their tag name, ordered by uid then name.
	ListByQuestionUIDs(dbc dbctx.Context, uids []string) ([]question.TaggedRow, error)
}

type questionTagRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewQuestionTagRepo(db *gorm.DB, baseLog *logger.Logger) QuestionTagRepo {
	return &questionTagRepo{db: db, log: baseLog.With("repo", "QuestionTagRepo")}
}

func (r *questionTagRepo) ReplaceForQuestion(dbc dbctx.Context, uid string, tagIDs []uint) error {
	t := dbc.DB(r.db)
	if err := t.Where("question_uid = ?", uid).Delete(&question.QuestionTagRow{}).Error; err != nil {
		return err
	}
	if len(tagIDs) == 0 {
		return nil
	}
	rows := make([]question.QuestionTagRow, 0, len(tagIDs))
	for _, id := range tagIDs {
		rows = append(rows, question.QuestionTagRow{QuestionUID: uid, TagID: id})
	}
	return t.Clauses(clause.OnConflict{DoNothing: true}).Create(&rows).Error
}

func (r *questionTagRepo) ListByQuestionUIDs(dbc dbctx.Context, uids []string) ([]question.TaggedRow, error) {
	out := []question.TaggedRow{}
	if len(uids) == 0 {
		return out, nil
	}
	if err := dbc.DB(r.db).
		Table("question_tags").
		Select("question_tags.question_uid, tags.name").
		Joins("JOIN tags ON tags.id = question_tags.tag_id").
		Where("question_tags.question_uid IN ?", uids).
		Order("question_tags.question_uid ASC, tags.name ASC").
		Scan(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
