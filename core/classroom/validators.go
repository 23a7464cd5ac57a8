package classroom

import (
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/schoolhub/core"
)

var (
	leaveDatesTag  = "leave_dates"
	leaveDatesText = "end date cannot be before start date"

	maxScoreTag  = "max_score"
	maxScoreText = "some scores exceed the max score"
)

// InitValidators registers the classroom validators.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	validate.RegisterStructValidation(leaveStructValidation, NewLeave{})
	validate.RegisterStructValidation(examStructValidation, NewExam{})

	core.RegisterCustomTranslation(validate, translator, leaveDatesTag, leaveDatesText)
	core.RegisterCustomTranslation(validate, translator, maxScoreTag, maxScoreText)
}

func leaveStructValidation(sl validator.StructLevel) {
	nl := sl.Current().Interface().(NewLeave)
	start, err := time.Parse(DateLayout, nl.StartDate)
	if err != nil {
		return // reported by `datetime`
	}
	end, err := time.Parse(DateLayout, nl.EndDate)
	if err != nil {
		return
	}
	if end.Before(start) {
		sl.ReportError(nl.EndDate, "end_date", "EndDate", leaveDatesTag, "")
	}
}

func examStructValidation(sl validator.StructLevel) {
	ne := sl.Current().Interface().(NewExam)
	if ne.MaxScore <= 0 {
		return
	}
	for _, score := range ne.Scores {
		if score > ne.MaxScore {
			sl.ReportError(ne.Scores, "scores", "Scores", maxScoreTag, "")
			return
		}
	}
}
