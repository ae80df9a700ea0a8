// Package mapper converts between the in-memory Question and its four relational row-sets.
// Functions here are pure: no I/O, no clock, no logging.
package mapper

import (
	"fmt"
	"sort"
	"strings"

	"github.com/yungbote/questionbank/internal/domain/question"
)

// Rows is the relational projection of one Question.
type Rows struct {
	Question    question.QuestionRow
	Options     [question.NumOptions]question.OptionRow
	Tags        []string
	Explanation *question.ExplanationRow
}

// ToRows projects q onto its row-sets. Exactly one option row is produced per fixed key; the
// explanation row is absent when the explanation text is empty.
func ToRows(q question.Question) Rows {
	r := Rows{
		Question: question.QuestionRow{
			UID:           q.UID,
			QuestionText:  q.Content.Text,
			QuestionImage: nullable(q.Content.Image),
			Answer:        string(q.Answer),
			Difficulty:    nullable(q.Difficulty),
			CreatedAt:     q.CreatedAt,
			UpdatedAt:     q.UpdatedAt,
		},
		Tags: question.NormalizeTags(q.Tags),
	}
	for i, k := range question.OptionKeys {
		r.Options[i] = question.OptionRow{
			QuestionUID: q.UID,
			OptionKey:   string(k),
			OptionText:  q.Options[i].Text,
			OptionImage: nullable(q.Options[i].Image),
		}
	}
	if q.Explanation.Text != "" {
		r.Explanation = &question.ExplanationRow{
			QuestionUID:     q.UID,
			ExplanationText: q.Explanation.Text,
		}
	}
	return r
}

// FromRows reconstitutes a Question. Missing option rows default to empty options, missing tag
// rows give an empty tag set and a missing explanation row gives an empty explanation. Option rows
// keyed outside the fixed set, or rows owned by another question, are rejected.
func FromRows(qr question.QuestionRow, opts []question.OptionRow, tags []string, expl *question.ExplanationRow) (question.Question, error) {
	q := question.Question{
		UID:        qr.UID,
		Content:    question.Content{Text: qr.QuestionText, Image: deref(qr.QuestionImage)},
		Answer:     question.OptionKey(qr.Answer),
		Difficulty: deref(qr.Difficulty),
		Tags:       question.NormalizeTags(tags),
		CreatedAt:  qr.CreatedAt,
		UpdatedAt:  qr.UpdatedAt,
	}
	for _, o := range opts {
		if o.QuestionUID != "" && o.QuestionUID != qr.UID {
			return question.Question{}, question.NewError(question.CodeMalformedRecord, "mapper.from_rows",
				fmt.Sprintf("option row belongs to %s", o.QuestionUID), nil)
		}
		key := question.OptionKey(strings.TrimSpace(o.OptionKey))
		if err := q.Options.Set(key, question.Option{Text: o.OptionText, Image: deref(o.OptionImage)}); err != nil {
			return question.Question{}, question.Wrap(question.CodeMalformedRecord, "mapper.from_rows", err)
		}
	}
	if expl != nil {
		q.Explanation = question.Explanation{Text: expl.ExplanationText}
	}
	return q, nil
}

// Bundle groups the row-sets of several questions by uid, as produced by batched IN queries.
type Bundle struct {
	Options      map[string][]question.OptionRow
	Tags         map[string][]string
	Explanations map[string]*question.ExplanationRow
}

func NewBundle(opts []question.OptionRow, tags []question.TaggedRow, expls []question.ExplanationRow) Bundle {
	b := Bundle{
		Options:      make(map[string][]question.OptionRow),
		Tags:         make(map[string][]string),
		Explanations: make(map[string]*question.ExplanationRow, len(expls)),
	}
	for _, o := range opts {
		b.Options[o.QuestionUID] = append(b.Options[o.QuestionUID], o)
	}
	for _, t := range tags {
		b.Tags[t.QuestionUID] = append(b.Tags[t.QuestionUID], t.Name)
	}
	for i := range expls {
		e := expls[i]
		b.Explanations[e.QuestionUID] = &e
	}
	for uid := range b.Tags {
		sort.Strings(b.Tags[uid])
	}
	return b
}

// Hydrate maps one question row using the bundle's row-sets for its uid.
func (b Bundle) Hydrate(qr question.QuestionRow) (question.Question, error) {
	return FromRows(qr, b.Options[qr.UID], b.Tags[qr.UID], b.Explanations[qr.UID])
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
