package repos

import (
	"gorm.io/gorm"

	"github.com/yungbote/questionbank/internal/data/repos/questions"
	"github.com/yungbote/questionbank/internal/platform/logger"
)

type QuestionRepo = questions.QuestionRepo
type OptionRepo = questions.OptionRepo
type TagRepo = questions.TagRepo
type QuestionTagRepo = questions.QuestionTagRepo
type ExplanationRepo = questions.ExplanationRepo
type MigrationRunRepo = questions.MigrationRunRepo

type Filter = questions.Filter
type Page = questions.Page

// Set bundles every repo over one store handle.
type Set struct {
	Questions     QuestionRepo
	Options       OptionRepo
	Tags          TagRepo
	QuestionTags  QuestionTagRepo
	Explanations  ExplanationRepo
	MigrationRuns MigrationRunRepo
}

func NewSet(db *gorm.DB, baseLog *logger.Logger) Set {
	return Set{
		Questions:     NewQuestionRepo(db, baseLog),
		Options:       NewOptionRepo(db, baseLog),
		Tags:          NewTagRepo(db, baseLog),
		QuestionTags:  NewQuestionTagRepo(db, baseLog),
		Explanations:  NewExplanationRepo(db, baseLog),
		MigrationRuns: NewMigrationRunRepo(db, baseLog),
	}
}

func NewQuestionRepo(db *gorm.DB, baseLog *logger.Logger) QuestionRepo {
	return questions.NewQuestionRepo(db, baseLog)
}
func NewOptionRepo(db *gorm.DB, baseLog *logger.Logger) OptionRepo {
	return questions.NewOptionRepo(db, baseLog)
}
func NewTagRepo(db *gorm.DB, baseLog *logger.Logger) TagRepo {
	return questions.NewTagRepo(db, baseLog)
}
func NewQuestionTagRepo(db *gorm.DB, baseLog *logger.Logger) QuestionTagRepo {
	return questions.NewQuestionTagRepo(db, baseLog)
}
func NewExplanationRepo(db *gorm.DB, baseLog *logger.Logger) ExplanationRepo {
	return questions.NewExplanationRepo(db, baseLog)
}
func NewMigrationRunRepo(db *gorm.DB, baseLog *logger.Logger) MigrationRunRepo {
	return questions.NewMigrationRunRepo(db, baseLog)
}
