package inmemdb

import (
	"context"
	"time"

	"github.com/youpass/youpass/core"
	"github.com/youpass/youpass/core/course"
	"github.com/youpass/youpass/core/user"
)

type courseRepository struct {
	db *DB
}

var _ course.Repository = (*courseRepository)(nil) // interface compliance check

func NewCourseRepository(db *DB) course.Repository {
	return &courseRepository{db: db}
}

func (repo *courseRepository) CreateCourse(_ context.Context, c course.Course) (course.Course, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	stored := cloneCourse(c)
	repo.db.courses[c.ID] = &stored
	return cloneCourse(stored), nil
}

func (repo *courseRepository) GetCourse(_ context.Context, id string) (course.Course, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if c, ok := repo.db.courses[id]; ok {
		return cloneCourse(*c), nil
	}
	return course.Course{}, course.ErrNotFound
}

func (repo *courseRepository) QueryCoursesByID(_ context.Context, ids ...string) ([]course.Course, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	courses := make([]course.Course, 0, len(ids))
	for _, id := range ids {
		if c, ok := repo.db.courses[id]; ok {
			courses = append(courses, cloneCourse(*c))
		}
	}
	return courses, nil
}

func matchesCourse(c *course.Course, filter course.Filter) bool {
	if filter.PublishedOnly && !c.IsPublished {
		return false
	}
	if filter.Level != "" && c.Level != filter.Level {
		return false
	}
	if filter.Skill != "" && c.Skill != filter.Skill {
		return false
	}
	if filter.Search != "" && !containsFold(c.Title, filter.Search) && !containsFold(c.Description, filter.Search) {
		return false
	}
	return true
}

func (repo *courseRepository) QueryCourses(_ context.Context, filter course.Filter, page core.Pagination) ([]course.Course, int, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	matches := make([]course.Course, 0)
	for _, c := range repo.db.courses {
		if matchesCourse(c, filter) {
			matches = append(matches, *c)
		}
	}
	sortNewestFirst(matches,
		func(i int) time.Time { return matches[i].CreatedAt },
		func(i int) string { return matches[i].ID })

	start, end := page.Window(len(matches))
	courses := make([]course.Course, 0, end-start)
	for _, c := range matches[start:end] {
		courses = append(courses, cloneCourse(c))
	}
	return courses, len(matches), nil
}

func (repo *courseRepository) UpdateCourse(_ context.Context, c course.Course) (course.Course, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	orig, ok := repo.db.courses[c.ID]
	if !ok {
		return course.Course{}, course.ErrNotFound
	}
	updated := cloneCourse(c)
	updated.Students = orig.Students
	updated.CreatedAt = orig.CreatedAt
	repo.db.courses[c.ID] = &updated
	return cloneCourse(updated), nil
}

func (repo *courseRepository) DeleteCourse(_ context.Context, id string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.courses[id]; !ok {
		return course.ErrNotFound
	}
	delete(repo.db.courses, id)
	for _, u := range repo.db.users {
		if core.ContainsString(u.EnrolledCourses, id) {
			u.EnrolledCourses = core.RemoveString(u.EnrolledCourses, id)
		}
	}
	for _, t := range repo.db.tests {
		if t.CourseID == id {
			t.CourseID = ""
		}
	}
	return nil
}

// lockPair loads the course and the user, with the write lock held.
func (repo *courseRepository) lockPair(courseID, userID string) (*course.Course, *user.User, error) {
	c, ok := repo.db.courses[courseID]
	if !ok {
		return nil, nil, course.ErrNotFound
	}
	u, ok := repo.db.users[userID]
	if !ok {
		return nil, nil, user.ErrNotFound
	}
	return c, u, nil
}

func (repo *courseRepository) Enroll(_ context.Context, courseID, userID string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	c, u, err := repo.lockPair(courseID, userID)
	if err != nil {
		return err
	}
	if c.HasStudent(userID) {
		return course.ErrAlreadyEnrolled
	}
	c.Students = append(c.Students, userID)
	if !core.ContainsString(u.EnrolledCourses, courseID) {
		u.EnrolledCourses = append(u.EnrolledCourses, courseID)
	}
	return nil
}

func (repo *courseRepository) Leave(_ context.Context, courseID, userID string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	c, u, err := repo.lockPair(courseID, userID)
	if err != nil {
		return err
	}
	if !c.HasStudent(userID) {
		return course.ErrNotEnrolled
	}
	c.Students = core.RemoveString(c.Students, userID)
	u.EnrolledCourses = core.RemoveString(u.EnrolledCourses, courseID)
	return nil
}

func (repo *courseRepository) CompleteLesson(_ context.Context, userID, lessonID string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	u, ok := repo.db.users[userID]
	if !ok {
		return user.ErrNotFound
	}
	if !core.ContainsString(u.CompletedLessons, lessonID) {
		u.CompletedLessons = append(u.CompletedLessons, lessonID)
	}
	return nil
}

func (repo *courseRepository) CountCourses(_ context.Context, publishedOnly bool) (int, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	var n int
	for _, c := range repo.db.courses {
		if !publishedOnly || c.IsPublished {
			n++
		}
	}
	return n, nil
}
