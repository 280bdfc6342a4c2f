package course

import (
	"math"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/youpass/youpass/core"
)

// Levels
const (
	LevelBeginner     = "beginner"
	LevelIntermediate = "intermediate"
	LevelAdvanced     = "advanced"
)

// Skills
const (
	SkillReading   = "reading"
	SkillWriting   = "writing"
	SkillListening = "listening"
	SkillSpeaking  = "speaking"
	SkillGeneral   = "general"
)

// DefaultLessonDuration is in minutes.
const DefaultLessonDuration = 30

type (
	Course struct {
		ID          string    `json:"id"`
		Title       string    `json:"title"`
		Description string    `json:"description"`
		Level       string    `json:"level"`
		Skill       string    `json:"skill"`
		Thumbnail   string    `json:"thumbnail"`
		Duration    int       `json:"duration"` // hours
		Lessons     []Lesson  `json:"lessons"`
		Instructors []string  `json:"instructors"`
		Students    []string  `json:"students"`
		Rating      float64   `json:"rating"`
		Reviews     []Review  `json:"reviews"`
		Price       float64   `json:"price"` // 0 means free
		IsPublished bool      `json:"isPublished"`
		CreatedAt   time.Time `json:"createdAt"`
		UpdatedAt   time.Time `json:"updatedAt"`
	}

	Lesson struct {
		ID          string     `json:"id"`
		Title       string     `json:"title"`
		Description string     `json:"description"`
		Content     string     `json:"content"`
		VideoURL    string     `json:"videoUrl"`
		Resources   []Resource `json:"resources"`
		Quiz        []QuizItem `json:"quiz"`
		Duration    int        `json:"duration"` // minutes
		Order       int        `json:"order"`
		CreatedAt   time.Time  `json:"createdAt"`
		UpdatedAt   time.Time  `json:"updatedAt"`
	}

	Resource struct {
		Title    string `json:"title" validate:"required"`
		FileURL  string `json:"fileUrl" validate:"required"`
		FileType string `json:"fileType" validate:"omitempty,oneof=pdf audio video image other"`
	}

	QuizItem struct {
		Question      string   `json:"question" validate:"required"`
		Options       []string `json:"options" validate:"required,min=2,dive,required"`
		CorrectAnswer int      `json:"correctAnswer" validate:"min=0"` // index in Options
		Explanation   string   `json:"explanation"`
	}

	Review struct {
		UserID    string    `json:"user"`
		Rating    int       `json:"rating"`
		Comment   string    `json:"comment"`
		CreatedAt time.Time `json:"createdAt"`
	}

	// Summary is the catalog view of a Course.
	Summary struct {
		ID          string    `json:"id"`
		Title       string    `json:"title"`
		Description string    `json:"description"`
		Level       string    `json:"level"`
		Skill       string    `json:"skill"`
		Thumbnail   string    `json:"thumbnail"`
		Duration    int       `json:"duration"`
		Rating      float64   `json:"rating"`
		Instructors []string  `json:"instructors"`
		LessonCount int       `json:"lessonCount"`
		Price       float64   `json:"price"`
		IsPublished bool      `json:"isPublished"`
		CreatedAt   time.Time `json:"createdAt"`
	}
)

func (c *Course) Summary() Summary {
	return Summary{
		ID:          c.ID,
		Title:       c.Title,
		Description: c.Description,
		Level:       c.Level,
		Skill:       c.Skill,
		Thumbnail:   c.Thumbnail,
		Duration:    c.Duration,
		Rating:      c.Rating,
		Instructors: c.Instructors,
		LessonCount: len(c.Lessons),
		Price:       c.Price,
		IsPublished: c.IsPublished,
		CreatedAt:   c.CreatedAt,
	}
}

func (c *Course) IsInstructor(userID string) bool {
	return core.ContainsString(c.Instructors, userID)
}

func (c *Course) HasStudent(userID string) bool {
	return core.ContainsString(c.Students, userID)
}

func (c *Course) lessonIndex(lessonID string) int {
	for i, l := range c.Lessons {
		if l.ID == lessonID {
			return i
		}
	}
	return -1
}

// computeDuration sets Duration to the lessons' total length in whole hours, rounded up.
func (c *Course) computeDuration() {
	var minutes int
	for _, l := range c.Lessons {
		minutes += l.Duration
	}
	c.Duration = int(math.Ceil(float64(minutes) / 60))
}

// renumberLessons sets lesson orders to 1..N in list order.
func (c *Course) renumberLessons() {
	for i := range c.Lessons {
		c.Lessons[i].Order = i + 1
	}
}

// computeRating sets Rating to the mean review rating rounded to one decimal.
func (c *Course) computeRating() {
	if len(c.Reviews) == 0 {
		c.Rating = 0
		return
	}
	var sum int
	for _, r := range c.Reviews {
		sum += r.Rating
	}
	c.Rating = core.Round(float64(sum)/float64(len(c.Reviews)), 1)
}

// NewCourse contains information needed to create a new Course.
type NewCourse struct {
	Title       string      `json:"title" validate:"required"`
	Description string      `json:"description" validate:"required"`
	Level       string      `json:"level" validate:"required,oneof=beginner intermediate advanced"`
	Skill       string      `json:"skill" validate:"required,oneof=reading writing listening speaking general"`
	Thumbnail   string      `json:"thumbnail"`
	Price       float64     `json:"price" validate:"min=0"`
	IsPublished bool        `json:"isPublished"`
	Lessons     []NewLesson `json:"lessons" validate:"omitempty,dive"`
}

func (nc *NewCourse) Validate(validate *validator.Validate) error {
	nc.Title = core.CleanString(nc.Title)
	nc.Description = core.CleanString(nc.Description)
	nc.Level = core.CleanString(nc.Level, true /* lower */)
	nc.Skill = core.CleanString(nc.Skill, true /* lower */)
	for i := range nc.Lessons {
		nc.Lessons[i].clean()
	}
	return validate.Struct(nc)
}

// UpdateCourse defines what may be changed on a Course. Nil fields are left untouched.
type UpdateCourse struct {
	Title       *string  `json:"title" validate:"omitempty,notblank"`
	Description *string  `json:"description" validate:"omitempty,notblank"`
	Level       *string  `json:"level" validate:"omitempty,oneof=beginner intermediate advanced"`
	Skill       *string  `json:"skill" validate:"omitempty,oneof=reading writing listening speaking general"`
	Thumbnail   *string  `json:"thumbnail"`
	Price       *float64 `json:"price" validate:"omitempty,min=0"`
	IsPublished *bool    `json:"isPublished"`
}

func (uc *UpdateCourse) Validate(validate *validator.Validate) error {
	cleanPtr(&uc.Title, false)
	cleanPtr(&uc.Description, false)
	cleanPtr(&uc.Level, true)
	cleanPtr(&uc.Skill, true)
	cleanPtr(&uc.Thumbnail, false)
	return validate.Struct(uc)
}

// NewLesson contains information needed to add a Lesson to a Course.
type NewLesson struct {
	Title       string     `json:"title" validate:"required"`
	Description string     `json:"description" validate:"required"`
	Content     string     `json:"content" validate:"required"`
	VideoURL    string     `json:"videoUrl"`
	Resources   []Resource `json:"resources" validate:"omitempty,dive"`
	Quiz        []QuizItem `json:"quiz" validate:"omitempty,dive"`
	Duration    *int       `json:"duration" validate:"omitempty,min=0"`
	Order       int        `json:"order" validate:"min=0"`
}

func (nl *NewLesson) clean() {
	nl.Title = core.CleanString(nl.Title)
	nl.Description = core.CleanString(nl.Description)
	nl.VideoURL = core.CleanString(nl.VideoURL)
}

func (nl *NewLesson) Validate(validate *validator.Validate) error {
	nl.clean()
	return validate.Struct(nl)
}

func (nl NewLesson) toLesson(id string, order int, now time.Time) Lesson {
	duration := DefaultLessonDuration
	if nl.Duration != nil {
		duration = *nl.Duration
	}
	if nl.Order > 0 {
		order = nl.Order
	}
	return Lesson{
		ID:          id,
		Title:       nl.Title,
		Description: nl.Description,
		Content:     nl.Content,
		VideoURL:    nl.VideoURL,
		Resources:   withResourceDefaults(nl.Resources),
		Quiz:        nonNilQuiz(nl.Quiz),
		Duration:    duration,
		Order:       order,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// UpdateLesson defines what may be changed on a Lesson. Nil fields are left untouched.
type UpdateLesson struct {
	Title       *string    `json:"title" validate:"omitempty,notblank"`
	Description *string    `json:"description" validate:"omitempty,notblank"`
	Content     *string    `json:"content" validate:"omitempty,notblank"`
	VideoURL    *string    `json:"videoUrl"`
	Resources   []Resource `json:"resources" validate:"omitempty,dive"`
	Quiz        []QuizItem `json:"quiz" validate:"omitempty,dive"`
	Duration    *int       `json:"duration" validate:"omitempty,min=0"`
	Order       *int       `json:"order" validate:"omitempty,min=1"`
}

func (ul *UpdateLesson) Validate(validate *validator.Validate) error {
	cleanPtr(&ul.Title, false)
	cleanPtr(&ul.Description, false)
	cleanPtr(&ul.VideoURL, false)
	return validate.Struct(ul)
}

func (ul UpdateLesson) apply(l *Lesson) {
	if ul.Title != nil {
		l.Title = *ul.Title
	}
	if ul.Description != nil {
		l.Description = *ul.Description
	}
	if ul.Content != nil {
		l.Content = *ul.Content
	}
	if ul.VideoURL != nil {
		l.VideoURL = *ul.VideoURL
	}
	if ul.Resources != nil {
		l.Resources = withResourceDefaults(ul.Resources)
	}
	if ul.Quiz != nil {
		l.Quiz = ul.Quiz
	}
	if ul.Duration != nil {
		l.Duration = *ul.Duration
	}
	if ul.Order != nil {
		l.Order = *ul.Order
	}
}

type NewReview struct {
	Rating  int    `json:"rating" validate:"required,min=1,max=5"`
	Comment string `json:"comment" validate:"required"`
}

func (nr *NewReview) Validate(validate *validator.Validate) error {
	nr.Comment = core.CleanString(nr.Comment)
	return validate.Struct(nr)
}

type Filter struct {
	Level         string `query:"level"`
	Skill         string `query:"skill"`
	Search        string `query:"search"`
	PublishedOnly bool   `query:"-"`
}

func (f *Filter) Clean() {
	f.Level = core.CleanString(f.Level, true /* lower */)
	f.Skill = core.CleanString(f.Skill, true /* lower */)
	f.Search = core.CleanString(f.Search)
}

func cleanPtr(s **string, lower bool) {
	if *s != nil {
		v := core.CleanString(**s, lower)
		*s = &v
	}
}

func withResourceDefaults(rs []Resource) []Resource {
	out := make([]Resource, 0, len(rs))
	for _, r := range rs {
		if r.FileType == "" {
			r.FileType = "other"
		}
		out = append(out, r)
	}
	return out
}

func nonNilQuiz(q []QuizItem) []QuizItem {
	if q == nil {
		return []QuizItem{}
	}
	return q
}
