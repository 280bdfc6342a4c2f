package exam

import (
	"encoding/json"
	"strconv"
	"strings"
)

// answersMatch reports whether userAnswer is the question's correct answer.
// Text is compared case-insensitively with whitespace collapsed. For multiple-choice questions an option
// index and the option text are interchangeable.
func answersMatch(q Question, userAnswer json.RawMessage) bool {
	if len(q.CorrectAnswer) == 0 || len(userAnswer) == 0 {
		return false
	}
	var want, got interface{}
	if err := json.Unmarshal(q.CorrectAnswer, &want); err != nil {
		return false
	}
	if err := json.Unmarshal(userAnswer, &got); err != nil {
		return false
	}
	if got == nil {
		return false
	}
	return valuesMatch(normalizeAnswer(q, want), normalizeAnswer(q, got))
}

// normalizeAnswer maps a decoded JSON answer to a comparable form.
func normalizeAnswer(q Question, v interface{}) interface{} {
	switch val := v.(type) {
	case string:
		return normalizeText(val)
	case float64:
		if q.QuestionType == QuestionMultipleChoice {
			if idx := int(val); float64(idx) == val && idx >= 0 && idx < len(q.Options) {
				return normalizeText(q.Options[idx])
			}
		}
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, item := range val {
			out[i] = normalizeAnswer(q, item)
		}
		return out
	default:
		return v
	}
}

func normalizeText(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

func valuesMatch(want, got interface{}) bool {
	wantList, wantIsList := want.([]interface{})
	gotList, gotIsList := got.([]interface{})
	switch {
	case wantIsList && gotIsList:
		if len(wantList) != len(gotList) {
			return false
		}
		for i := range wantList {
			if !valuesMatch(wantList[i], gotList[i]) {
				return false
			}
		}
		return true
	case wantIsList:
		// any of the accepted answers
		for _, w := range wantList {
			if valuesMatch(w, got) {
				return true
			}
		}
		return false
	case gotIsList:
		return len(gotList) == 1 && valuesMatch(want, gotList[0])
	default:
		return want == got
	}
}

// scoreAnswer auto-scores an answer to an objective question.
func scoreAnswer(q Question, a *Answer) {
	a.IsCorrect = answersMatch(q, a.UserAnswer)
	if a.IsCorrect {
		a.Score = q.Points
	} else {
		a.Score = 0
	}
}
