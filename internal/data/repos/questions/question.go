package questions

import (
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/yungbote/questionbank/internal/domain/question"
	"github.com/yungbote/questionbank/internal/pkg/dbctx"
	"github.com/yungbote/questionbank/internal/platform/logger"
)

// Filter narrows a question listing. A question matches Tags if it carries ANY of them;
// Difficulty is an exact match. Zero values do not filter.
type Filter struct {
	Tags       []string
	Difficulty string
}

// Page bounds a listing. Limit <= 0 means unbounded.
type Page struct {
	Limit  int
	Offset int
}

type DifficultyCount struct {
	Difficulty *string `gorm:"column:difficulty"`
	N          int64   `gorm:"column:n"`
}

type QuestionRepo interface {
	Upsert(dbc dbctx.Context, row *question.QuestionRow) error
	InsertIgnore(dbc dbctx.Context, row *question.QuestionRow) (bool, error)

	GetByUID(dbc dbctx.Context, uid string) (*question.QuestionRow, error)
	GetByUIDs(dbc dbctx.Context, uids []string) ([]question.QuestionRow, error)

	List(dbc dbctx.Context, f Filter, p Page) ([]question.QuestionRow, error)
	Count(dbc dbctx.Context, f Filter) (int64, error)
	Search(dbc dbctx.Context, text string, p Page) ([]question.QuestionRow, error)
	CountByDifficulty(dbc dbctx.Context) ([]DifficultyCount, error)

	DeleteByUID(dbc dbctx.Context, uid string) (int64, error)
}

type questionRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewQuestionRepo(db *gorm.DB, baseLog *logger.Logger) QuestionRepo {
	return &questionRepo{db: db, log: baseLog.With("repo", "QuestionRepo")}
}

// Upsert inserts row or, when its uid exists, overwrites every column except created_at.
func (r *questionRepo) Upsert(dbc dbctx.Context, row *question.QuestionRow) error {
	if row == nil {
		return nil
	}
	return dbc.DB(r.db).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "uid"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"question_text", "question_image", "answer", "difficulty", "updated_at",
			}),
		}).
		Create(row).Error
}

// InsertIgnore inserts row unless its uid already exists. It reports whether a row was written.
func (r *questionRepo) InsertIgnore(dbc dbctx.Context, row *question.QuestionRow) (bool, error) {
	if row == nil {
		return false, nil
	}
	res := dbc.DB(r.db).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "uid"}},
			DoNothing: true,
		}).
		Create(row)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *questionRepo) GetByUID(dbc dbctx.Context, uid string) (*question.QuestionRow, error) {
	var out []question.QuestionRow
	if err := dbc.DB(r.db).Where("uid = ?", uid).Limit(1).Find(&out).Error; err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, nil
	}
	return &out[0], nil
}

func (r *questionRepo) GetByUIDs(dbc dbctx.Context, uids []string) ([]question.QuestionRow, error) {
	out := []question.QuestionRow{}
	if len(uids) == 0 {
		return out, nil
	}
	if err := dbc.DB(r.db).Where("uid IN ?", uids).Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *questionRepo) List(dbc dbctx.Context, f Filter, p Page) ([]question.QuestionRow, error) {
	t := dbc.DB(r.db)
	out := []question.QuestionRow{}
	q := applyFilter(t.Model(&question.QuestionRow{}), t, f)
	if err := paginate(newestFirst(q), p).Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *questionRepo) Count(dbc dbctx.Context, f Filter) (int64, error) {
	t := dbc.DB(r.db)
	var n int64
	if err := applyFilter(t.Model(&question.QuestionRow{}), t, f).Count(&n).Error; err != nil {
		return 0, err
	}
	return n, nil
}

const searchPredicate = `LOWER(questions.question_text) LIKE LOWER(@p) ESCAPE '\'
	OR LOWER(COALESCE(questions.difficulty, '')) LIKE LOWER(@p) ESCAPE '\'
	OR EXISTS (SELECT 1 FROM options o WHERE o.question_uid = questions.uid AND LOWER(o.option_text) LIKE LOWER(@p) ESCAPE '\')
	OR EXISTS (SELECT 1 FROM explanations e WHERE e.question_uid = questions.uid AND LOWER(e.explanation_text) LIKE LOWER(@p) ESCAPE '\')
	OR EXISTS (SELECT 1 FROM question_tags qt JOIN tags tg ON tg.id = qt.tag_id WHERE qt.question_uid = questions.uid AND LOWER(tg.name) LIKE LOWER(@p) ESCAPE '\')`

// Search matches text as a case-insensitive literal substring of the question body, any option
// text, the explanation, any tag name or the difficulty label. Case folding is done by the
// database's LOWER, which on SQLite only folds ASCII letters.
func (r *questionRepo) Search(dbc dbctx.Context, text string, p Page) ([]question.QuestionRow, error) {
	out := []question.QuestionRow{}
	q := dbc.DB(r.db).Model(&question.QuestionRow{}).
		Where(searchPredicate, map[string]interface{}{"p": "%" + EscapeLike(text) + "%"})
	if err := paginate(newestFirst(q), p).Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *questionRepo) CountByDifficulty(dbc dbctx.Context) ([]DifficultyCount, error) {
	out := []DifficultyCount{}
	if err := dbc.DB(r.db).Model(&question.QuestionRow{}).
		Select("difficulty, COUNT(*) AS n").
		Group("difficulty").
		Order("difficulty").
		Scan(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// DeleteByUID removes the question row; option, junction and explanation rows go with it by cascade.
func (r *questionRepo) DeleteByUID(dbc dbctx.Context, uid string) (int64, error) {
	res := dbc.DB(r.db).Where("uid = ?", uid).Delete(&question.QuestionRow{})
	return res.RowsAffected, res.Error
}

// EscapeLike escapes the LIKE wildcards in s so it matches literally under ESCAPE '\'.
func EscapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func applyFilter(q *gorm.DB, t *gorm.DB, f Filter) *gorm.DB {
	if tags := question.NormalizeTags(f.Tags); len(tags) > 0 {
		sub := t.Session(&gorm.Session{NewDB: true}).
			Table("question_tags").
			Select("question_tags.question_uid").
			Joins("JOIN tags ON tags.id = question_tags.tag_id").
			Where("tags.name IN ?", tags)
		q = q.Where("questions.uid IN (?)", sub)
	}
	if d := strings.TrimSpace(f.Difficulty); d != "" {
		q = q.Where("questions.difficulty = ?", d)
	}
	return q
}

func newestFirst(q *gorm.DB) *gorm.DB {
	return q.Order("questions.created_at DESC").Order("questions.uid DESC")
}

func paginate(q *gorm.DB, p Page) *gorm.DB {
	if p.Limit > 0 {
		q = q.Limit(p.Limit)
	}
	if p.Offset > 0 {
		q = q.Offset(p.Offset)
	}
	return q
}
