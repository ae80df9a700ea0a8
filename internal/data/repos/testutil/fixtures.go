package testutil

import (
	"context"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/yungbote/questionbank/internal/data/mapper"
	"github.com/yungbote/questionbank/internal/domain/question"
)

// SampleQuestion builds a valid question. created_at is offset by minute so that several samples
// order deterministically newest-first.
func SampleQuestion(uid string, minute int, tags ...string) question.Question {
	ts := time.Date(2024, 1, 1, 9, minute, 0, 0, time.UTC)
	return question.Question{
		UID:     uid,
		Content: question.Content{Text: "What is " + uid + "?"},
		Options: question.Options{
			{Text: "first"}, {Text: "second"}, {Text: "third"}, {Text: "fourth"},
		},
		Answer:      question.OptionA,
		Difficulty:  "medium",
		Tags:        question.NormalizeTags(tags),
		Explanation: question.Explanation{Text: "because " + uid},
		CreatedAt:   ts,
		UpdatedAt:   ts,
	}
}

// SeedQuestion writes q's rows directly, bypassing the engine.
func SeedQuestion(tb testing.TB, ctx context.Context, tx *gorm.DB, q question.Question) question.Question {
	tb.Helper()
	r := mapper.ToRows(q)
	t := tx.WithContext(ctx)
	if err := t.Create(&r.Question).Error; err != nil {
		tb.Fatalf("seed question: %v", err)
	}
	opts := r.Options[:]
	if err := t.Create(&opts).Error; err != nil {
		tb.Fatalf("seed options: %v", err)
	}
	for _, name := range r.Tags {
		tag := question.TagRow{Name: name}
		if err := t.Where("name = ?", name).FirstOrCreate(&tag).Error; err != nil {
			tb.Fatalf("seed tag: %v", err)
		}
		if err := t.Create(&question.QuestionTagRow{QuestionUID: q.UID, TagID: tag.ID}).Error; err != nil {
			tb.Fatalf("seed question tag: %v", err)
		}
	}
	if r.Explanation != nil {
		if err := t.Create(r.Explanation).Error; err != nil {
			tb.Fatalf("seed explanation: %v", err)
		}
	}
	return q
}

// CountRows counts rows in table matching an optional condition.
func CountRows(tb testing.TB, tx *gorm.DB, table string, cond string, args ...interface{}) int64 {
	tb.Helper()
	var n int64
	q := tx.Table(table)
	if cond != "" {
		q = q.Where(cond, args...)
	}
	if err := q.Count(&n).Error; err != nil {
		tb.Fatalf("count %s: %v", table, err)
	}
	return n
}

func PtrString(v string) *string { return &v }

func PtrTime(v time.Time) *time.Time { return &v }
