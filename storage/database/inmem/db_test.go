package inmemdb

import (
	"context"
	"sync"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/youpass/youpass/core/course"
	"github.com/youpass/youpass/core/exam"
	"github.com/youpass/youpass/core/studygroup"
	"github.com/youpass/youpass/core/user"
)

func TestUserRepository_Uniqueness(t *testing.T) {
	ctx := context.Background()
	repo := NewUserRepository(Open())

	_, err := repo.CreateUser(ctx, user.User{ID: "u1", Email: "a@example.com", GoogleID: "g1"})
	require.NoError(t, err)

	_, err = repo.CreateUser(ctx, user.User{ID: "u2", Email: "a@example.com"})
	assert.Equal(t, user.ErrEmailExists, err)
	_, err = repo.CreateUser(ctx, user.User{ID: "u2", Email: "b@example.com", GoogleID: "g1"})
	assert.Equal(t, user.ErrGoogleIDExists, err)

	u2, err := repo.CreateUser(ctx, user.User{ID: "u2", Email: "b@example.com"})
	require.NoError(t, err)
	u2.Email = "a@example.com"
	_, err = repo.UpdateUser(ctx, u2)
	assert.Equal(t, user.ErrEmailExists, err)

	_, err = repo.GetUser(ctx, user.GetFilter{})
	assert.Equal(t, user.ErrNotFound, err)
	got, err := repo.GetUser(ctx, user.GetFilter{GoogleID: "g1"})
	require.NoError(t, err)
	assert.Equal(t, "u1", got.ID)
}

func TestUserRepository_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	repo := NewUserRepository(Open())

	created, err := repo.CreateUser(ctx, user.User{ID: "u1", Email: "a@example.com", EnrolledCourses: []string{"c1"}})
	require.NoError(t, err)
	created.EnrolledCourses[0] = "tampered"

	got, err := repo.GetUser(ctx, user.GetFilter{ID: "u1"})
	require.NoError(t, err)
	assert.Equal(t, []string{"c1"}, got.EnrolledCourses)
}

func TestCourseRepository_EnrollConcurrently(t *testing.T) {
	ctx := context.Background()
	db := Open()
	users, courses := NewUserRepository(db), NewCourseRepository(db)

	_, err := users.CreateUser(ctx, user.User{ID: "u1", Email: "a@example.com"})
	require.NoError(t, err)
	_, err = courses.CreateCourse(ctx, course.Course{ID: "c1", IsPublished: true})
	require.NoError(t, err)

	const attempts = 20
	var wg sync.WaitGroup
	errs := make(chan error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- courses.Enroll(ctx, "c1", "u1")
		}()
	}
	wg.Wait()
	close(errs)

	var ok, dup int
	for err := range errs {
		switch errors.Cause(err) {
		case nil:
			ok++
		case course.ErrAlreadyEnrolled:
			dup++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, attempts-1, dup)

	c, err := courses.GetCourse(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, []string{"u1"}, c.Students)
	u, err := users.GetUser(ctx, user.GetFilter{ID: "u1"})
	require.NoError(t, err)
	assert.Equal(t, []string{"c1"}, u.EnrolledCourses)

	require.NoError(t, courses.DeleteCourse(ctx, "c1"))
	u, err = users.GetUser(ctx, user.GetFilter{ID: "u1"})
	require.NoError(t, err)
	assert.Empty(t, u.EnrolledCourses)
}

func TestExamRepository_DeleteCascades(t *testing.T) {
	ctx := context.Background()
	repo := NewExamRepository(Open())

	_, err := repo.CreateTest(ctx, exam.Test{ID: "t1"})
	require.NoError(t, err)
	_, err = repo.CreateTest(ctx, exam.Test{ID: "t2"})
	require.NoError(t, err)
	for _, s := range []exam.Submission{{ID: "s1", TestID: "t1"}, {ID: "s2", TestID: "t1"}, {ID: "s3", TestID: "t2"}} {
		_, err = repo.CreateSubmission(ctx, s)
		require.NoError(t, err)
	}

	require.NoError(t, repo.DeleteTest(ctx, "t1"))
	n, err := repo.CountSubmissions(ctx, exam.SubmissionFilter{})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	_, err = repo.GetSubmission(ctx, "s1")
	assert.Equal(t, exam.ErrSubmissionNotFound, err)
	assert.Equal(t, exam.ErrNotFound, repo.DeleteTest(ctx, "t1"))
}

func TestGroupRepository_JoinCodes(t *testing.T) {
	ctx := context.Background()
	repo := NewGroupRepository(Open())

	_, err := repo.CreateGroup(ctx, studygroup.Group{ID: "g1", JoinCode: "ABCD1234", Members: []string{"u1"}})
	require.NoError(t, err)
	_, err = repo.CreateGroup(ctx, studygroup.Group{ID: "g2", JoinCode: "ABCD1234"})
	assert.Equal(t, studygroup.ErrJoinCodeTaken, err)

	g, err := repo.GetGroupByJoinCode(ctx, "ABCD1234")
	require.NoError(t, err)
	assert.Equal(t, "g1", g.ID)
	_, err = repo.GetGroupByJoinCode(ctx, "NOPE")
	assert.Equal(t, studygroup.ErrNotFound, err)
}

func TestDB_Flush(t *testing.T) {
	ctx := context.Background()
	db := Open()
	repo := NewUserRepository(db)
	_, err := repo.CreateUser(ctx, user.User{ID: "u1", Email: "a@example.com"})
	require.NoError(t, err)

	db.Flush()
	n, err := repo.CountUsers(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}
