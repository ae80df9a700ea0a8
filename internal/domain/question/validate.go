package question

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func validatorInstance() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New()
		_ = validate.RegisterValidation("optionkey", func(fl validator.FieldLevel) bool {
			return OptionKey(fl.Field().String()).Valid()
		})
		validate.RegisterStructValidation(func(sl validator.StructLevel) {
			q := sl.Current().Interface().(Question)
			if !q.Answer.Valid() {
				return
			}
			if opt, _ := q.Options.Get(q.Answer); !opt.Present() {
				sl.ReportError(q.Answer, "Answer", "Answer", "answeroption", "")
			}
		}, Question{})
	})
	return validate
}

// Validate checks the invariants that the schema does not enforce. Failures carry CodeMalformedRecord.
func (q *Question) Validate() error {
	if q == nil {
		return NewError(CodeMalformedRecord, "question.validate", "nil question", nil)
	}
	err := validatorInstance().Struct(q)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return Wrap(CodeMalformedRecord, "question.validate", err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch {
		case fe.Field() == "Answer" && fe.Tag() == "optionkey":
			msgs = append(msgs, fmt.Sprintf("answer %q is not one of %v", fe.Value(), OptionKeys))
		case fe.Field() == "Answer" && fe.Tag() == "answeroption":
			msgs = append(msgs, fmt.Sprintf("answer %q refers to an empty option", fe.Value()))
		default:
			msgs = append(msgs, fmt.Sprintf("%s failed %s", strings.ToLower(fe.Field()), fe.Tag()))
		}
	}
	return NewError(CodeMalformedRecord, "question.validate", strings.Join(msgs, "; "), err)
}
