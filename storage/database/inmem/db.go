package inmemdb

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/youpass/youpass/core/course"
	"github.com/youpass/youpass/core/exam"
	"github.com/youpass/youpass/core/forum"
	"github.com/youpass/youpass/core/studygroup"
	"github.com/youpass/youpass/core/user"
)

// DB is an in-memory store holding every aggregate behind a single lock,
// so writes spanning several aggregates (enrollments, cascades) are atomic.
type DB struct {
	mutex       sync.RWMutex
	users       map[string]*user.User
	courses     map[string]*course.Course
	tests       map[string]*exam.Test
	submissions map[string]*exam.Submission
	posts       map[string]*forum.Post
	groups      map[string]*studygroup.Group
}

func Open() *DB {
	return &DB{
		users:       make(map[string]*user.User),
		courses:     make(map[string]*course.Course),
		tests:       make(map[string]*exam.Test),
		submissions: make(map[string]*exam.Submission),
		posts:       make(map[string]*forum.Post),
		groups:      make(map[string]*studygroup.Group),
	}
}

// Flush empties every table.
func (db *DB) Flush() {
	db.mutex.Lock()
	defer db.mutex.Unlock()
	db.users = make(map[string]*user.User)
	db.courses = make(map[string]*course.Course)
	db.tests = make(map[string]*exam.Test)
	db.submissions = make(map[string]*exam.Submission)
	db.posts = make(map[string]*forum.Post)
	db.groups = make(map[string]*studygroup.Group)
}

// sortNewestFirst sorts slice by creation time descending, breaking ties on id.
func sortNewestFirst(slice interface{}, createdAt func(i int) time.Time, id func(i int) string) {
	sort.SliceStable(slice, func(i, j int) bool {
		ti, tj := createdAt(i), createdAt(j)
		if ti.Equal(tj) {
			return id(i) > id(j)
		}
		return ti.After(tj)
	})
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
