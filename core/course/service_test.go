package course_test

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/youpass/youpass/core"
	"github.com/youpass/youpass/core/course"
	"github.com/youpass/youpass/core/user"
	"github.com/youpass/youpass/tests"
)

func TestService_Create(t *testing.T) {
	env := testutil.NewEnv(t)
	teacher := testutil.CreateUser(t, env.UserRepo, "Teacher", "teacher@test.io", "", "")

	c := testutil.CreateCourse(t, env.CourseSvc, teacher, "Reading 101", false, 45, 45, 40)

	assert.Equal(t, []string{teacher.ID}, c.Instructors)
	assert.Empty(t, c.Students)
	assert.Equal(t, 3, c.Duration)
	require.Len(t, c.Lessons, 3)
	for i, l := range c.Lessons {
		assert.Equal(t, i+1, l.Order)
	}
}

func TestService_Query(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	teacher := testutil.CreateUser(t, env.UserRepo, "Teacher", "teacher@test.io", "", "")
	admin := testutil.CreateUser(t, env.UserRepo, "Admin", "admin@test.io", "", user.RoleAdmin)

	published := testutil.CreateCourse(t, env.CourseSvc, teacher, "Published", true)
	draft := testutil.CreateCourse(t, env.CourseSvc, teacher, "Draft", false)

	tests := []struct {
		name      string
		requester *user.User
		filter    course.Filter
		want      []string
	}{
		{name: "anonymous", want: []string{published.ID}},
		{name: "student", requester: &teacher, want: []string{published.ID}},
		{name: "admin", requester: &admin, want: []string{draft.ID, published.ID}},
		{name: "search", requester: &admin, filter: course.Filter{Search: "dRaF"}, want: []string{draft.ID}},
		{name: "level mismatch", requester: &admin, filter: course.Filter{Level: "advanced"}, want: []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, total, err := env.CourseSvc.Query(ctx, tt.requester, tt.filter, core.Pagination{})
			require.NoError(t, err)
			ids := make([]string, 0, len(got))
			for _, s := range got {
				ids = append(ids, s.ID)
			}
			assert.ElementsMatch(t, tt.want, ids)
			assert.Equal(t, len(tt.want), total)
		})
	}
}

func TestService_Get_unpublished(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	teacher := testutil.CreateUser(t, env.UserRepo, "Teacher", "teacher@test.io", "", "")
	student := testutil.CreateUser(t, env.UserRepo, "Student", "student@test.io", "", "")
	draft := testutil.CreateCourse(t, env.CourseSvc, teacher, "Draft", false)

	_, err := env.CourseSvc.Get(ctx, nil, draft.ID)
	assert.Equal(t, course.ErrNotPublished, errors.Cause(err))
	_, err = env.CourseSvc.Get(ctx, &student, draft.ID)
	assert.Equal(t, course.ErrNotPublished, errors.Cause(err))
	_, err = env.CourseSvc.Get(ctx, &teacher, draft.ID)
	assert.NoError(t, err)
	_, err = env.CourseSvc.Get(ctx, nil, "unknown")
	assert.Equal(t, course.ErrNotFound, errors.Cause(err))
}

func TestService_Enroll(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	teacher := testutil.CreateUser(t, env.UserRepo, "Teacher", "teacher@test.io", "", "")
	student := testutil.CreateUser(t, env.UserRepo, "Student", "student@test.io", "", "")
	c := testutil.CreateCourse(t, env.CourseSvc, teacher, "Listening", true)
	draft := testutil.CreateCourse(t, env.CourseSvc, teacher, "Draft", false)

	got, err := env.CourseSvc.Enroll(ctx, student, c.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{student.ID}, got.Students)

	_, err = env.CourseSvc.Enroll(ctx, student, c.ID)
	assert.Equal(t, course.ErrAlreadyEnrolled, errors.Cause(err))

	_, err = env.CourseSvc.Enroll(ctx, student, draft.ID)
	assert.Equal(t, course.ErrNotPublished, errors.Cause(err))

	_, err = env.CourseSvc.Enroll(ctx, student, "unknown")
	assert.Equal(t, course.ErrNotFound, errors.Cause(err))

	c, err = env.CourseSvc.Get(ctx, &student, c.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{student.ID}, c.Students)
	assert.Equal(t, []string{c.ID}, testutil.ReloadUser(t, env.UserRepo, student.ID).EnrolledCourses)
}

func TestService_Leave(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	teacher := testutil.CreateUser(t, env.UserRepo, "Teacher", "teacher@test.io", "", "")
	student := testutil.CreateUser(t, env.UserRepo, "Student", "student@test.io", "", "")
	c := testutil.CreateCourse(t, env.CourseSvc, teacher, "Writing", true)

	err := env.CourseSvc.Leave(ctx, student, c.ID)
	assert.Equal(t, course.ErrNotEnrolled, errors.Cause(err))

	_, err = env.CourseSvc.Enroll(ctx, student, c.ID)
	require.NoError(t, err)
	require.NoError(t, env.CourseSvc.Leave(ctx, student, c.ID))

	c, err = env.CourseSvc.Get(ctx, &student, c.ID)
	require.NoError(t, err)
	assert.Empty(t, c.Students)
	assert.Empty(t, testutil.ReloadUser(t, env.UserRepo, student.ID).EnrolledCourses)
}

func TestService_Update_Delete_permissions(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	owner := testutil.CreateUser(t, env.UserRepo, "Owner", "owner@test.io", "", "")
	other := testutil.CreateUser(t, env.UserRepo, "Other", "other@test.io", "", "")
	admin := testutil.CreateUser(t, env.UserRepo, "Admin", "admin@test.io", "", user.RoleAdmin)
	c := testutil.CreateCourse(t, env.CourseSvc, owner, "Speaking", true)

	title := "Speaking 2"
	tests := []struct {
		name    string
		usr     user.User
		wantErr error
	}{
		{name: "other user", usr: other, wantErr: course.ErrNotAuthorized},
		{name: "owner", usr: owner},
		{name: "admin", usr: admin},
	}
	for _, tt := range tests {
		t.Run("update/"+tt.name, func(t *testing.T) {
			got, err := env.CourseSvc.Update(ctx, tt.usr, c.ID, course.UpdateCourse{Title: &title})
			if tt.wantErr != nil {
				assert.Equal(t, tt.wantErr, errors.Cause(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, title, got.Title)
		})
	}

	err := env.CourseSvc.Delete(ctx, other, c.ID)
	assert.Equal(t, course.ErrNotAuthorized, errors.Cause(err))
	assert.NoError(t, env.CourseSvc.Delete(ctx, admin, c.ID))
	err = env.CourseSvc.Delete(ctx, admin, c.ID)
	assert.Equal(t, course.ErrNotFound, errors.Cause(err))
}

func TestService_Delete_removesEnrollments(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	teacher := testutil.CreateUser(t, env.UserRepo, "Teacher", "teacher@test.io", "", "")
	student := testutil.CreateUser(t, env.UserRepo, "Student", "student@test.io", "", "")
	c1 := testutil.CreateCourse(t, env.CourseSvc, teacher, "One", true)
	c2 := testutil.CreateCourse(t, env.CourseSvc, teacher, "Two", true)

	for _, id := range []string{c1.ID, c2.ID} {
		_, err := env.CourseSvc.Enroll(ctx, student, id)
		require.NoError(t, err)
	}
	require.NoError(t, env.CourseSvc.Delete(ctx, teacher, c1.ID))

	assert.Equal(t, []string{c2.ID}, testutil.ReloadUser(t, env.UserRepo, student.ID).EnrolledCourses)
}

func TestService_Lessons(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	teacher := testutil.CreateUser(t, env.UserRepo, "Teacher", "teacher@test.io", "", "")
	other := testutil.CreateUser(t, env.UserRepo, "Other", "other@test.io", "", "")
	c := testutil.CreateCourse(t, env.CourseSvc, teacher, "Grammar", true, 30, 30, 30)

	t.Run("add defaults order and duration", func(t *testing.T) {
		l, err := env.CourseSvc.AddLesson(ctx, teacher, c.ID, course.NewLesson{Title: "New", Description: "d", Content: "c"})
		require.NoError(t, err)
		assert.Equal(t, 4, l.Order)
		assert.Equal(t, course.DefaultLessonDuration, l.Duration)

		got, err := env.CourseSvc.Get(ctx, &teacher, c.ID)
		require.NoError(t, err)
		assert.Equal(t, 2, got.Duration)
		require.NoError(t, env.CourseSvc.DeleteLesson(ctx, teacher, c.ID, l.ID))
	})

	t.Run("add requires instructor", func(t *testing.T) {
		_, err := env.CourseSvc.AddLesson(ctx, other, c.ID, course.NewLesson{Title: "x", Description: "d", Content: "c"})
		assert.Equal(t, course.ErrNotAuthorized, errors.Cause(err))
	})

	t.Run("update merges provided fields", func(t *testing.T) {
		title := "Renamed"
		l, err := env.CourseSvc.UpdateLesson(ctx, teacher, c.ID, c.Lessons[0].ID, course.UpdateLesson{Title: &title})
		require.NoError(t, err)
		assert.Equal(t, "Renamed", l.Title)
		assert.Equal(t, c.Lessons[0].Content, l.Content)

		_, err = env.CourseSvc.UpdateLesson(ctx, teacher, c.ID, "unknown", course.UpdateLesson{Title: &title})
		assert.Equal(t, course.ErrLessonNotFound, errors.Cause(err))
	})

	t.Run("delete renumbers", func(t *testing.T) {
		require.NoError(t, env.CourseSvc.DeleteLesson(ctx, teacher, c.ID, c.Lessons[1].ID))

		got, err := env.CourseSvc.Get(ctx, &teacher, c.ID)
		require.NoError(t, err)
		require.Len(t, got.Lessons, 2)
		assert.Equal(t, c.Lessons[0].ID, got.Lessons[0].ID)
		assert.Equal(t, 1, got.Lessons[0].Order)
		assert.Equal(t, c.Lessons[2].ID, got.Lessons[1].ID)
		assert.Equal(t, 2, got.Lessons[1].Order)
		assert.Equal(t, 1, got.Duration)
	})
}

func TestService_CompleteLesson(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	teacher := testutil.CreateUser(t, env.UserRepo, "Teacher", "teacher@test.io", "", "")
	student := testutil.CreateUser(t, env.UserRepo, "Student", "student@test.io", "", "")
	c := testutil.CreateCourse(t, env.CourseSvc, teacher, "Vocabulary", true, 20)
	lessonID := c.Lessons[0].ID

	err := env.CourseSvc.CompleteLesson(ctx, student, c.ID, lessonID)
	assert.Equal(t, course.ErrEnrollmentRequired, errors.Cause(err))

	_, err = env.CourseSvc.Enroll(ctx, student, c.ID)
	require.NoError(t, err)

	err = env.CourseSvc.CompleteLesson(ctx, student, c.ID, "unknown")
	assert.Equal(t, course.ErrLessonNotFound, errors.Cause(err))

	require.NoError(t, env.CourseSvc.CompleteLesson(ctx, student, c.ID, lessonID))
	require.NoError(t, env.CourseSvc.CompleteLesson(ctx, student, c.ID, lessonID))
	assert.Equal(t, []string{lessonID}, testutil.ReloadUser(t, env.UserRepo, student.ID).CompletedLessons)
}

func TestService_AddReview(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	teacher := testutil.CreateUser(t, env.UserRepo, "Teacher", "teacher@test.io", "", "")
	s1 := testutil.CreateUser(t, env.UserRepo, "S1", "s1@test.io", "", "")
	s2 := testutil.CreateUser(t, env.UserRepo, "S2", "s2@test.io", "", "")
	c := testutil.CreateCourse(t, env.CourseSvc, teacher, "Mock prep", true)

	_, err := env.CourseSvc.AddReview(ctx, s1, c.ID, course.NewReview{Rating: 5, Comment: "great"})
	assert.Equal(t, course.ErrEnrollmentRequired, errors.Cause(err))

	for _, s := range []user.User{s1, s2} {
		_, err = env.CourseSvc.Enroll(ctx, s, c.ID)
		require.NoError(t, err)
	}
	_, err = env.CourseSvc.AddReview(ctx, s1, c.ID, course.NewReview{Rating: 5, Comment: "great"})
	require.NoError(t, err)
	got, err := env.CourseSvc.AddReview(ctx, s2, c.ID, course.NewReview{Rating: 2, Comment: "meh"})
	require.NoError(t, err)
	assert.Equal(t, 3.5, got.Rating)

	// re-review replaces
	got, err = env.CourseSvc.AddReview(ctx, s2, c.ID, course.NewReview{Rating: 4, Comment: "better"})
	require.NoError(t, err)
	assert.Len(t, got.Reviews, 2)
	assert.Equal(t, 4.5, got.Rating)
}
