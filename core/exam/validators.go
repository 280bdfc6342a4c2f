package exam

import (
	"github.com/go-playground/validator/v10"
)

// InitValidators registers the exam validators. core.InitValidators must run first.
func InitValidators(validate *validator.Validate) {
	validate.RegisterStructValidation(questionStructValidation, NewQuestion{})
}

// questionStructValidation requires a correct answer on the questions that are scored automatically.
func questionStructValidation(sl validator.StructLevel) {
	nq, ok := sl.Current().Interface().(NewQuestion)
	if !ok {
		return
	}
	if (nq.QuestionType == QuestionMultipleChoice || nq.QuestionType == QuestionFillInTheBlank) && !nq.hasCorrectAnswer() {
		sl.ReportError(nq.CorrectAnswer, "correctAnswer", "CorrectAnswer", "required", "")
	}
	if nq.QuestionType == QuestionMultipleChoice && len(nq.Options) < 2 {
		sl.ReportError(nq.Options, "options", "Options", "min", "2")
	}
}
