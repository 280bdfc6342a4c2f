package course

import (
	"context"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/youpass/youpass/core"
	"github.com/youpass/youpass/core/user"
)

var (
	// errors
	ErrNotFound           = core.NewNotFoundError("Course not found")
	ErrLessonNotFound     = core.NewNotFoundError("Lesson not found")
	ErrNotPublished       = core.NewForbiddenError("This course is not yet published")
	ErrNotAuthorized      = core.NewForbiddenError("Not authorized to modify this course")
	ErrEnrollmentRequired = core.NewForbiddenError("You are not enrolled in this course")
	ErrAlreadyEnrolled    = core.NewValidationError(errors.New("You are already enrolled in this course"))
	ErrNotEnrolled        = core.NewValidationError(errors.New("You are not enrolled in this course"))
)

type (
	Repository interface {
		CreateCourse(ctx context.Context, c Course) (Course, error)
		// GetCourse returns ErrNotFound if there is no Course with id.
		GetCourse(ctx context.Context, id string) (Course, error)
		QueryCoursesByID(ctx context.Context, ids ...string) ([]Course, error)
		// QueryCourses returns one page of the Courses matching filter, newest first, and the total number of matches.
		QueryCourses(ctx context.Context, filter Filter, page core.Pagination) ([]Course, int, error)
		// UpdateCourse replaces every field of c but Students.
		UpdateCourse(ctx context.Context, c Course) (Course, error)
		// DeleteCourse deletes the Course and removes it from its students' enrolled courses in one transaction.
		DeleteCourse(ctx context.Context, id string) error
		// Enroll adds the user to the Course students and the Course to the user's enrolled courses in one
		// transaction. It returns ErrAlreadyEnrolled if the user is a student already.
		Enroll(ctx context.Context, courseID, userID string) error
		// Leave undoes Enroll. It returns ErrNotEnrolled if the user is not a student.
		Leave(ctx context.Context, courseID, userID string) error
		// CompleteLesson adds lessonID to the user's completed lessons once.
		CompleteLesson(ctx context.Context, userID, lessonID string) error
		CountCourses(ctx context.Context, publishedOnly bool) (int, error)
	}

	Service interface {
		Query(ctx context.Context, requester *user.User, filter Filter, page core.Pagination) ([]Summary, int, error)
		Get(ctx context.Context, requester *user.User, id string) (Course, error)
		QueryByID(ctx context.Context, ids ...string) ([]Course, error)
		Count(ctx context.Context, publishedOnly bool) (int, error)
		Create(ctx context.Context, creator user.User, nc NewCourse) (Course, error)
		Update(ctx context.Context, requester user.User, id string, uc UpdateCourse) (Course, error)
		Delete(ctx context.Context, requester user.User, id string) error
		Enroll(ctx context.Context, usr user.User, id string) (Course, error)
		Leave(ctx context.Context, usr user.User, id string) error
		AddLesson(ctx context.Context, requester user.User, id string, nl NewLesson) (Lesson, error)
		UpdateLesson(ctx context.Context, requester user.User, id, lessonID string, ul UpdateLesson) (Lesson, error)
		DeleteLesson(ctx context.Context, requester user.User, id, lessonID string) error
		CompleteLesson(ctx context.Context, usr user.User, id, lessonID string) error
		AddReview(ctx context.Context, usr user.User, id string, nr NewReview) (Course, error)
	}

	service struct {
		repo Repository
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository) Service {
	return &service{repo: repo}
}

// canManage reports whether usr may change the course content.
func canManage(c Course, usr user.User) bool {
	return usr.IsAdmin() || c.IsInstructor(usr.ID)
}

// canView reports whether usr (nil for anonymous) may read the course.
func canView(c Course, usr *user.User) bool {
	return c.IsPublished || (usr != nil && canManage(c, *usr))
}

func (svc *service) Query(ctx context.Context, requester *user.User, filter Filter, page core.Pagination) ([]Summary, int, error) {
	filter.Clean()
	filter.PublishedOnly = requester == nil || !requester.IsAdmin()
	page.Clean()

	courses, total, err := svc.repo.QueryCourses(ctx, filter, page)
	if err != nil {
		return nil, 0, errors.Wrap(err, "querying courses")
	}
	summaries := make([]Summary, 0, len(courses))
	for i := range courses {
		summaries = append(summaries, courses[i].Summary())
	}
	return summaries, total, nil
}

func (svc *service) Get(ctx context.Context, requester *user.User, id string) (Course, error) {
	c, err := svc.repo.GetCourse(ctx, id)
	if err != nil {
		return Course{}, err
	}
	if !canView(c, requester) {
		return Course{}, ErrNotPublished
	}
	return c, nil
}

func (svc *service) QueryByID(ctx context.Context, ids ...string) ([]Course, error) {
	if len(ids) == 0 {
		return []Course{}, nil
	}
	return svc.repo.QueryCoursesByID(ctx, ids...)
}

func (svc *service) Count(ctx context.Context, publishedOnly bool) (int, error) {
	return svc.repo.CountCourses(ctx, publishedOnly)
}

func (svc *service) Create(ctx context.Context, creator user.User, nc NewCourse) (Course, error) {
	now := core.Now()
	c := Course{
		ID:          uuid.New().String(),
		Title:       nc.Title,
		Description: nc.Description,
		Level:       nc.Level,
		Skill:       nc.Skill,
		Thumbnail:   nc.Thumbnail,
		Lessons:     make([]Lesson, 0, len(nc.Lessons)),
		Instructors: []string{creator.ID},
		Students:    []string{},
		Reviews:     []Review{},
		Price:       nc.Price,
		IsPublished: nc.IsPublished,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	for i, nl := range nc.Lessons {
		c.Lessons = append(c.Lessons, nl.toLesson(uuid.New().String(), i+1, now))
	}
	c.computeDuration()

	c, err := svc.repo.CreateCourse(ctx, c)
	return c, errors.Wrap(err, "creating course")
}

// getManaged loads a Course requester may change.
func (svc *service) getManaged(ctx context.Context, requester user.User, id string) (Course, error) {
	c, err := svc.repo.GetCourse(ctx, id)
	if err != nil {
		return Course{}, err
	}
	if !canManage(c, requester) {
		return Course{}, ErrNotAuthorized
	}
	return c, nil
}

// save recomputes the derived fields then persists c.
func (svc *service) save(ctx context.Context, c Course) (Course, error) {
	c.computeDuration()
	c.computeRating()
	c.UpdatedAt = core.Now()
	c, err := svc.repo.UpdateCourse(ctx, c)
	return c, errors.Wrap(err, "updating course")
}

func (svc *service) Update(ctx context.Context, requester user.User, id string, uc UpdateCourse) (Course, error) {
	c, err := svc.getManaged(ctx, requester, id)
	if err != nil {
		return Course{}, err
	}

	if uc.Title != nil {
		c.Title = *uc.Title
	}
	if uc.Description != nil {
		c.Description = *uc.Description
	}
	if uc.Level != nil {
		c.Level = *uc.Level
	}
	if uc.Skill != nil {
		c.Skill = *uc.Skill
	}
	if uc.Thumbnail != nil {
		c.Thumbnail = *uc.Thumbnail
	}
	if uc.Price != nil {
		c.Price = *uc.Price
	}
	if uc.IsPublished != nil {
		c.IsPublished = *uc.IsPublished
	}
	return svc.save(ctx, c)
}

func (svc *service) Delete(ctx context.Context, requester user.User, id string) error {
	if _, err := svc.getManaged(ctx, requester, id); err != nil {
		return err
	}
	return errors.Wrap(svc.repo.DeleteCourse(ctx, id), "deleting course")
}

func (svc *service) Enroll(ctx context.Context, usr user.User, id string) (Course, error) {
	c, err := svc.repo.GetCourse(ctx, id)
	if err != nil {
		return Course{}, err
	}
	if !c.IsPublished {
		return Course{}, ErrNotPublished
	}
	if c.HasStudent(usr.ID) {
		return Course{}, ErrAlreadyEnrolled
	}

	if err = svc.repo.Enroll(ctx, id, usr.ID); err != nil {
		return Course{}, errors.Wrap(err, "enrolling")
	}
	return svc.repo.GetCourse(ctx, id)
}

func (svc *service) Leave(ctx context.Context, usr user.User, id string) error {
	c, err := svc.repo.GetCourse(ctx, id)
	if err != nil {
		return err
	}
	if !c.HasStudent(usr.ID) {
		return ErrNotEnrolled
	}
	return errors.Wrap(svc.repo.Leave(ctx, id, usr.ID), "leaving")
}

func (svc *service) AddLesson(ctx context.Context, requester user.User, id string, nl NewLesson) (Lesson, error) {
	c, err := svc.getManaged(ctx, requester, id)
	if err != nil {
		return Lesson{}, err
	}

	lesson := nl.toLesson(uuid.New().String(), len(c.Lessons)+1, core.Now())
	c.Lessons = append(c.Lessons, lesson)
	if _, err = svc.save(ctx, c); err != nil {
		return Lesson{}, err
	}
	return lesson, nil
}

func (svc *service) UpdateLesson(ctx context.Context, requester user.User, id, lessonID string, ul UpdateLesson) (Lesson, error) {
	c, err := svc.getManaged(ctx, requester, id)
	if err != nil {
		return Lesson{}, err
	}
	idx := c.lessonIndex(lessonID)
	if idx < 0 {
		return Lesson{}, ErrLessonNotFound
	}

	ul.apply(&c.Lessons[idx])
	c.Lessons[idx].UpdatedAt = core.Now()
	if _, err = svc.save(ctx, c); err != nil {
		return Lesson{}, err
	}
	return c.Lessons[idx], nil
}

func (svc *service) DeleteLesson(ctx context.Context, requester user.User, id, lessonID string) error {
	c, err := svc.getManaged(ctx, requester, id)
	if err != nil {
		return err
	}
	idx := c.lessonIndex(lessonID)
	if idx < 0 {
		return ErrLessonNotFound
	}

	c.Lessons = append(c.Lessons[:idx], c.Lessons[idx+1:]...)
	c.renumberLessons()
	_, err = svc.save(ctx, c)
	return err
}

func (svc *service) CompleteLesson(ctx context.Context, usr user.User, id, lessonID string) error {
	c, err := svc.repo.GetCourse(ctx, id)
	if err != nil {
		return err
	}
	if !c.HasStudent(usr.ID) {
		return ErrEnrollmentRequired
	}
	if c.lessonIndex(lessonID) < 0 {
		return ErrLessonNotFound
	}
	return errors.Wrap(svc.repo.CompleteLesson(ctx, usr.ID, lessonID), "completing lesson")
}

// AddReview records the user's review of a course they follow, replacing their previous one.
func (svc *service) AddReview(ctx context.Context, usr user.User, id string, nr NewReview) (Course, error) {
	c, err := svc.repo.GetCourse(ctx, id)
	if err != nil {
		return Course{}, err
	}
	if !c.HasStudent(usr.ID) {
		return Course{}, ErrEnrollmentRequired
	}

	review := Review{UserID: usr.ID, Rating: nr.Rating, Comment: nr.Comment, CreatedAt: core.Now()}
	replaced := false
	for i := range c.Reviews {
		if c.Reviews[i].UserID == usr.ID {
			c.Reviews[i] = review
			replaced = true
			break
		}
	}
	if !replaced {
		c.Reviews = append(c.Reviews, review)
	}
	return svc.save(ctx, c)
}
