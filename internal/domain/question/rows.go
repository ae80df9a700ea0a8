package question

import (
	"time"

	"gorm.io/datatypes"
)

// Relational projection of a Question. The DDL lives in internal/data/db; these models only map columns.

type QuestionRow struct {
	UID           string    `gorm:"column:uid;primaryKey" json:"uid"`
	QuestionText  string    `gorm:"column:question_text;not null" json:"question_text"`
	QuestionImage *string   `gorm:"column:question_image" json:"question_image"`
	Answer        string    `gorm:"column:answer;not null" json:"answer"`
	Difficulty    *string   `gorm:"column:difficulty" json:"difficulty"`
	CreatedAt     time.Time `gorm:"column:created_at;autoCreateTime:false" json:"created_at"`
	UpdatedAt     time.Time `gorm:"column:updated_at;autoUpdateTime:false" json:"updated_at"`
}

func (QuestionRow) TableName() string { return "questions" }

type OptionRow struct {
	ID          uint    `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	QuestionUID string  `gorm:"column:question_uid;not null" json:"question_uid"`
	OptionKey   string  `gorm:"column:option_key;not null" json:"option_key"`
	OptionText  string  `gorm:"column:option_text;not null" json:"option_text"`
	OptionImage *string `gorm:"column:option_image" json:"option_image"`
}

func (OptionRow) TableName() string { return "options" }

type TagRow struct {
	ID   uint   `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	Name string `gorm:"column:name;not null;uniqueIndex" json:"name"`
}

func (TagRow) TableName() string { return "tags" }

type QuestionTagRow struct {
	QuestionUID string `gorm:"column:question_uid;primaryKey" json:"question_uid"`
	TagID       uint   `gorm:"column:tag_id;primaryKey" json:"tag_id"`
}

func (QuestionTagRow) TableName() string { return "question_tags" }

// TaggedRow is a junction row joined with its tag name.
type TaggedRow struct {
	QuestionUID string `gorm:"column:question_uid"`
	Name        string `gorm:"column:name"`
}

type ExplanationRow struct {
	QuestionUID     string `gorm:"column:question_uid;primaryKey" json:"question_uid"`
	ExplanationText string `gorm:"column:explanation_text;not null" json:"explanation_text"`
}

func (ExplanationRow) TableName() string { return "explanations" }

// MigrationRun audits one legacy corpus import.
type MigrationRun struct {
	ID         uint           `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	Source     string         `gorm:"column:source;not null" json:"source"`
	Mode       string         `gorm:"column:mode;not null" json:"mode"`
	StartedAt  time.Time      `gorm:"column:started_at;not null" json:"started_at"`
	FinishedAt time.Time      `gorm:"column:finished_at;not null" json:"finished_at"`
	Attempted  int            `gorm:"column:attempted;not null" json:"attempted"`
	Migrated   int            `gorm:"column:migrated;not null" json:"migrated"`
	Skipped    int            `gorm:"column:skipped;not null" json:"skipped"`
	Failures   datatypes.JSON `gorm:"column:failures" json:"failures"`
}

func (MigrationRun) TableName() string { return "migration_runs" }
