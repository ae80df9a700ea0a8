package questions

import (
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/yungbote/questionbank/internal/domain/question"
	"github.com/yungbote/questionbank/internal/pkg/dbctx"
	"github.com/yungbote/questionbank/internal/platform/logger"
)

type TagRepo interface {
	// EnsureNames inserts any names not yet present and returns the rows for all of them.
	EnsureNames(dbc dbctx.Context, names []string) ([]question.TagRow, error)
	GetByNames(dbc dbctx.Context, names []string) ([]question.TagRow, error)
	ListNames(dbc dbctx.Context) ([]string, error)
	Count(dbc dbctx.Context) (int64, error)
	CountOrphans(dbc dbctx.Context) (int64, error)
}

type tagRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewTagRepo(db *gorm.DB, baseLog *logger.Logger) TagRepo {
	return &tagRepo{db: db, log: baseLog.With("repo", "TagRepo")}
}

func (r *tagRepo) EnsureNames(dbc dbctx.Context, names []string) ([]question.TagRow, error) {
	names = question.NormalizeTags(names)
	if len(names) == 0 {
		return []question.TagRow{}, nil
	}
	rows := make([]question.TagRow, len(names))
	for i, n := range names {
		rows[i] = question.TagRow{Name: n}
	}
	if err := dbc.DB(r.db).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "name"}},
			DoNothing: true,
		}).
		Create(&rows).Error; err != nil {
		return nil, err
	}
	return r.GetByNames(dbc, names)
}

func (r *tagRepo) GetByNames(dbc dbctx.Context, names []string) ([]question.TagRow, error) {
	out := []question.TagRow{}
	if len(names) == 0 {
		return out, nil
	}
	if err := dbc.DB(r.db).Where("name IN ?", names).Order("name ASC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *tagRepo) ListNames(dbc dbctx.Context) ([]string, error) {
	out := []string{}
	if err := dbc.DB(r.db).Model(&question.TagRow{}).Order("name ASC").Pluck("name", &out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *tagRepo) Count(dbc dbctx.Context) (int64, error) {
	var n int64
	err := dbc.DB(r.db).Model(&question.TagRow{}).Count(&n).Error
	return n, err
}

// CountOrphans counts tag rows no question references any more.
func (r *tagRepo) CountOrphans(dbc dbctx.Context) (int64, error) {
	var n int64
	err := dbc.DB(r.db).Model(&question.TagRow{}).
		Where("NOT EXISTS (SELECT 1 FROM question_tags qt WHERE qt.tag_id = tags.id)").
		Count(&n).Error
	return n, err
}
