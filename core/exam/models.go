package exam

import (
	"encoding/json"
	"math"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/youpass/youpass/core"
)

// Test types
const (
	TypeMock      = "mock"
	TypeReading   = "reading"
	TypeWriting   = "writing"
	TypeListening = "listening"
	TypeSpeaking  = "speaking"
)

// Question types
const (
	QuestionMultipleChoice = "multiple-choice"
	QuestionFillInTheBlank = "fill-in-the-blank"
	QuestionEssay          = "essay"
	QuestionSpeaking       = "speaking"
)

// Submission statuses
const (
	StatusInProgress      = "in-progress"
	StatusCompleted       = "completed"
	StatusGraded          = "graded"
	StatusPartiallyGraded = "partially-graded"
)

const (
	DefaultInstructions = "Read all questions carefully before answering."
	DefaultPoints       = 1.0
	DefaultDifficulty   = "medium"
	passRatio           = 0.7
)

type (
	Test struct {
		ID           string     `json:"id"`
		Title        string     `json:"title"`
		Description  string     `json:"description"`
		Type         string     `json:"type"`
		Duration     int        `json:"duration"` // minutes
		Questions    []Question `json:"questions"`
		Instructions string     `json:"instructions"`
		TotalPoints  float64    `json:"totalPoints"`
		PassScore    float64    `json:"passScore"`
		CourseID     string     `json:"course,omitempty"`
		IsPublished  bool       `json:"isPublished"`
		CreatedBy    string     `json:"createdBy"`
		CreatedAt    time.Time  `json:"createdAt"`
		UpdatedAt    time.Time  `json:"updatedAt"`
	}

	Question struct {
		ID            string          `json:"id"`
		Text          string          `json:"text"`
		QuestionType  string          `json:"questionType"`
		Options       []string        `json:"options"`
		CorrectAnswer json.RawMessage `json:"correctAnswer,omitempty"`
		Points        float64         `json:"points"`
		Difficulty    string          `json:"difficulty"`
		Skill         string          `json:"skill"`
		AudioURL      string          `json:"audioUrl"`
		ImageURL      string          `json:"imageUrl"`
		Passage       string          `json:"passage"`
	}

	Submission struct {
		ID              string     `json:"id"`
		UserID          string     `json:"user"`
		TestID          string     `json:"test"`
		Answers         []Answer   `json:"answers"`
		StartTime       time.Time  `json:"startTime"`
		EndTime         *time.Time `json:"endTime"`
		TotalScore      float64    `json:"totalScore"`
		Status          string     `json:"status"`
		TimeSpent       int        `json:"timeSpent"` // seconds
		IsPassed        bool       `json:"isPassed"`
		Feedback        string     `json:"feedback"`
		GradedBy        string     `json:"gradedBy,omitempty"`
		PercentageScore float64    `json:"percentageScore"`
		CreatedAt       time.Time  `json:"createdAt"`
		UpdatedAt       time.Time  `json:"updatedAt"`
	}

	Answer struct {
		QuestionID string          `json:"questionId"`
		UserAnswer json.RawMessage `json:"userAnswer"`
		IsCorrect  bool            `json:"isCorrect"`
		Score      float64         `json:"score"`
		Feedback   string          `json:"feedback"`
		TimeSpent  int             `json:"timeSpent"` // seconds
	}
)

// IsObjective reports whether the question can be scored automatically.
func (q Question) IsObjective() bool {
	return q.QuestionType == QuestionMultipleChoice || q.QuestionType == QuestionFillInTheBlank
}

func (t *Test) question(id string) (Question, bool) {
	for _, q := range t.Questions {
		if q.ID == id {
			return q, true
		}
	}
	return Question{}, false
}

// IsObjective reports whether every question of the test can be scored automatically.
func (t *Test) IsObjective() bool {
	for _, q := range t.Questions {
		if !q.IsObjective() {
			return false
		}
	}
	return true
}

// computePoints sets TotalPoints to the sum of the question points and defaults PassScore to 70% of it.
func (t *Test) computePoints() {
	var total float64
	for _, q := range t.Questions {
		total += q.Points
	}
	t.TotalPoints = total
	if t.PassScore == 0 {
		t.PassScore = math.Floor(total * passRatio)
	}
}

// Redacted returns a copy of the test without the correct answers.
func (t Test) Redacted() Test {
	qs := make([]Question, len(t.Questions))
	for i, q := range t.Questions {
		q.CorrectAnswer = nil
		qs[i] = q
	}
	t.Questions = qs
	return t
}

func (s *Submission) answerIndex(questionID string) int {
	for i, a := range s.Answers {
		if a.QuestionID == questionID {
			return i
		}
	}
	return -1
}

// finalize computes the submission's derived fields against its test.
// TotalScore carries the auto-scored points while grading is pending; the pass decision is
// only taken once the submission is fully graded against a non-zero pass score.
func (s *Submission) finalize(t Test) {
	if s.Status != StatusInProgress && len(s.Answers) > 0 {
		var total float64
		for _, a := range s.Answers {
			total += a.Score
		}
		s.TotalScore = total

		if s.EndTime != nil {
			s.TimeSpent = int(math.Floor(s.EndTime.Sub(s.StartTime).Seconds()))
		}
		s.IsPassed = s.Status == StatusGraded && t.PassScore > 0 && s.TotalScore >= t.PassScore
	}
	s.setPercentage(t)
}

func (s *Submission) setPercentage(t Test) {
	if t.TotalPoints == 0 {
		s.PercentageScore = 0
		return
	}
	s.PercentageScore = core.Round(s.TotalScore/t.TotalPoints*100, 2)
}

// NewTest contains information needed to create a new Test.
type NewTest struct {
	Title        string        `json:"title" validate:"required"`
	Description  string        `json:"description" validate:"required"`
	Type         string        `json:"type" validate:"required,oneof=mock reading writing listening speaking"`
	Duration     int           `json:"duration" validate:"required,min=1"`
	Questions    []NewQuestion `json:"questions" validate:"omitempty,dive"`
	Instructions string        `json:"instructions"`
	PassScore    float64       `json:"passScore" validate:"min=0"`
	CourseID     string        `json:"course" validate:"omitempty,uuid"`
	IsPublished  bool          `json:"isPublished"`
}

func (nt *NewTest) Validate(validate *validator.Validate) error {
	nt.Title = core.CleanString(nt.Title)
	nt.Description = core.CleanString(nt.Description)
	nt.Type = core.CleanString(nt.Type, true /* lower */)
	nt.Instructions = core.CleanString(nt.Instructions)
	nt.CourseID = core.CleanString(nt.CourseID)
	for i := range nt.Questions {
		nt.Questions[i].clean()
	}
	return validate.Struct(nt)
}

// NewQuestion is a question as sent by clients. ID is only set when updating an existing question.
type NewQuestion struct {
	ID            string          `json:"id"`
	Text          string          `json:"text" validate:"required"`
	QuestionType  string          `json:"questionType" validate:"required,oneof=multiple-choice fill-in-the-blank essay speaking"`
	Options       []string        `json:"options"`
	CorrectAnswer json.RawMessage `json:"correctAnswer"`
	Points        *float64        `json:"points" validate:"omitempty,min=0"`
	Difficulty    string          `json:"difficulty" validate:"omitempty,oneof=easy medium hard"`
	Skill         string          `json:"skill" validate:"required,oneof=reading writing listening speaking"`
	AudioURL      string          `json:"audioUrl"`
	ImageURL      string          `json:"imageUrl"`
	Passage       string          `json:"passage"`
}

func (nq *NewQuestion) clean() {
	nq.Text = core.CleanString(nq.Text)
	nq.QuestionType = core.CleanString(nq.QuestionType, true /* lower */)
	nq.Difficulty = core.CleanString(nq.Difficulty, true /* lower */)
	nq.Skill = core.CleanString(nq.Skill, true /* lower */)
}

func (nq NewQuestion) hasCorrectAnswer() bool {
	v := string(nq.CorrectAnswer)
	return v != "" && v != "null" && v != `""`
}

func (nq NewQuestion) toQuestion(id string) Question {
	points := DefaultPoints
	if nq.Points != nil {
		points = *nq.Points
	}
	difficulty := nq.Difficulty
	if difficulty == "" {
		difficulty = DefaultDifficulty
	}
	options := nq.Options
	if options == nil {
		options = []string{}
	}
	var correct json.RawMessage
	if nq.hasCorrectAnswer() {
		correct = nq.CorrectAnswer
	}
	return Question{
		ID:            id,
		Text:          nq.Text,
		QuestionType:  nq.QuestionType,
		Options:       options,
		CorrectAnswer: correct,
		Points:        points,
		Difficulty:    difficulty,
		Skill:         nq.Skill,
		AudioURL:      nq.AudioURL,
		ImageURL:      nq.ImageURL,
		Passage:       nq.Passage,
	}
}

// UpdateTest defines what may be changed on a Test. Nil fields are left untouched;
// Questions, when set, replaces the whole list.
type UpdateTest struct {
	Title        *string       `json:"title" validate:"omitempty,notblank"`
	Description  *string       `json:"description" validate:"omitempty,notblank"`
	Type         *string       `json:"type" validate:"omitempty,oneof=mock reading writing listening speaking"`
	Duration     *int          `json:"duration" validate:"omitempty,min=1"`
	Questions    []NewQuestion `json:"questions" validate:"omitempty,dive"`
	Instructions *string       `json:"instructions"`
	PassScore    *float64      `json:"passScore" validate:"omitempty,min=0"`
	CourseID     *string       `json:"course" validate:"omitempty,uuid"`
	IsPublished  *bool         `json:"isPublished"`
}

func (ut *UpdateTest) Validate(validate *validator.Validate) error {
	for i := range ut.Questions {
		ut.Questions[i].clean()
	}
	return validate.Struct(ut)
}

type AnswerInput struct {
	QuestionID string          `json:"questionId" validate:"required"`
	UserAnswer json.RawMessage `json:"userAnswer"`
	TimeSpent  int             `json:"timeSpent" validate:"min=0"`
}

type SubmitAnswers struct {
	Answers []AnswerInput `json:"answers" validate:"omitempty,dive"`
}

func (sa SubmitAnswers) Validate(validate *validator.Validate) error { return validate.Struct(sa) }

type AnswerGrade struct {
	QuestionID string  `json:"questionId" validate:"required"`
	Score      float64 `json:"score" validate:"min=0"`
	Feedback   string  `json:"feedback"`
}

type GradeSubmission struct {
	Grades   []AnswerGrade `json:"grades" validate:"omitempty,dive"`
	Feedback string        `json:"feedback"`
}

func (gs *GradeSubmission) Validate(validate *validator.Validate) error {
	gs.Feedback = core.CleanString(gs.Feedback)
	return validate.Struct(gs)
}

type Filter struct {
	Type          string `query:"type"`
	CourseID      string `query:"course"`
	PublishedOnly bool   `query:"-"`
}

func (f *Filter) Clean() {
	f.Type = core.CleanString(f.Type, true /* lower */)
	f.CourseID = core.CleanString(f.CourseID)
}

type SubmissionFilter struct {
	TestID string
	UserID string
	Status string
	Passed *bool
}
