package course

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func lessons(minutes ...int) []Lesson {
	ls := make([]Lesson, 0, len(minutes))
	for i, m := range minutes {
		ls = append(ls, Lesson{ID: string(rune('a' + i)), Duration: m, Order: i + 1})
	}
	return ls
}

func TestCourse_computeDuration(t *testing.T) {
	tests := []struct {
		name    string
		minutes []int
		want    int
	}{
		{name: "no lessons", want: 0},
		{name: "under an hour", minutes: []int{10, 20}, want: 1},
		{name: "exactly two hours", minutes: []int{60, 30, 30}, want: 2},
		{name: "rounds up", minutes: []int{45, 45, 40}, want: 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Course{Lessons: lessons(tt.minutes...)}
			c.computeDuration()
			assert.Equal(t, tt.want, c.Duration)
		})
	}
}

func TestCourse_renumberLessons(t *testing.T) {
	c := Course{Lessons: lessons(30, 30, 30)}
	c.Lessons = append(c.Lessons[:1], c.Lessons[2:]...) // drop order 2
	c.renumberLessons()

	assert.Len(t, c.Lessons, 2)
	assert.Equal(t, "a", c.Lessons[0].ID)
	assert.Equal(t, 1, c.Lessons[0].Order)
	assert.Equal(t, "c", c.Lessons[1].ID)
	assert.Equal(t, 2, c.Lessons[1].Order)
}

func TestCourse_computeRating(t *testing.T) {
	c := Course{}
	c.computeRating()
	assert.Equal(t, 0.0, c.Rating)

	c.Reviews = []Review{{Rating: 5}, {Rating: 4}, {Rating: 4}}
	c.computeRating()
	assert.Equal(t, 4.3, c.Rating)
}
