package progress_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/youpass/youpass/core/exam"
	"github.com/youpass/youpass/core/progress"
	"github.com/youpass/youpass/core/user"
	testutil "github.com/youpass/youpass/tests"
)

type progressFixture struct {
	env     *testutil.Env
	admin   user.User
	student user.User
	other   user.User
}

func setupProgress(t *testing.T) progressFixture {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	fx := progressFixture{
		env:     env,
		admin:   testutil.CreateUser(t, env.UserRepo, "Admin", "admin@example.com", "", user.RoleAdmin),
		student: testutil.CreateUser(t, env.UserRepo, "Student", "student@example.com", "", ""),
		other:   testutil.CreateUser(t, env.UserRepo, "Other", "other@example.com", "", ""),
	}

	c := testutil.CreateCourse(t, env.CourseSvc, fx.admin, "Academic reading", true, 30, 30, 30, 30)
	testutil.CreateCourse(t, env.CourseSvc, fx.admin, "Draft course", false)
	_, err := env.CourseSvc.Enroll(ctx, fx.student, c.ID)
	require.NoError(t, err)
	require.NoError(t, env.CourseSvc.CompleteLesson(ctx, fx.student, c.ID, c.Lessons[0].ID))

	pts := 1.0
	tst, err := env.ExamSvc.Create(ctx, fx.admin, exam.NewTest{
		Title:       "Quiz",
		Description: "Quick quiz",
		Type:        exam.TypeReading,
		Duration:    10,
		PassScore:   1,
		IsPublished: true,
		Questions: []exam.NewQuestion{{
			Text:          "Pick A",
			QuestionType:  exam.QuestionMultipleChoice,
			Options:       []string{"A", "B"},
			CorrectAnswer: json.RawMessage(`"A"`),
			Points:        &pts,
			Skill:         "reading",
		}},
	})
	require.NoError(t, err)
	qID := tst.Questions[0].ID

	for _, ans := range []string{`"A"`, `"B"`} {
		sub, err := env.ExamSvc.Start(ctx, fx.student, tst.ID)
		require.NoError(t, err)
		_, err = env.ExamSvc.Submit(ctx, fx.student, tst.ID, sub.ID, exam.SubmitAnswers{Answers: []exam.AnswerInput{
			{QuestionID: qID, UserAnswer: json.RawMessage(ans)},
		}})
		require.NoError(t, err)
	}
	_, err = env.ExamSvc.Start(ctx, fx.student, tst.ID)
	require.NoError(t, err)

	fx.student = testutil.ReloadUser(t, env.UserRepo, fx.student.ID)
	return fx
}

func TestService_UserProgress(t *testing.T) {
	fx := setupProgress(t)
	ctx := context.Background()

	_, err := fx.env.ProgressSvc.UserProgress(ctx, fx.other, fx.student.ID)
	assert.Equal(t, progress.ErrNotAuthorized, errors.Cause(err))

	_, err = fx.env.ProgressSvc.UserProgress(ctx, fx.admin, "missing")
	assert.Equal(t, user.ErrNotFound, errors.Cause(err))

	for _, requester := range []user.User{fx.student, fx.admin} {
		p, err := fx.env.ProgressSvc.UserProgress(ctx, requester, fx.student.ID)
		require.NoError(t, err)
		assert.Equal(t, fx.student.ID, p.UserID)
		assert.Equal(t, fx.student.StudyGoals.TargetScore, p.StudyGoals.TargetScore)
		assert.Equal(t, 1, p.CompletedLessons)

		require.Len(t, p.Courses, 1)
		assert.Equal(t, "Academic reading", p.Courses[0].Title)
		assert.Equal(t, 1, p.Courses[0].CompletedLessons)
		assert.Equal(t, 4, p.Courses[0].TotalLessons)
		assert.Equal(t, 25.0, p.Courses[0].Percentage)

		assert.Equal(t, progress.SubmissionSummary{Total: 3, Graded: 2, Passed: 1, AveragePercentage: 50}, p.Submissions)
		assert.Len(t, p.RecentSubmissions, 3)
	}
}

func TestService_UserProgressEmpty(t *testing.T) {
	fx := setupProgress(t)

	p, err := fx.env.ProgressSvc.UserProgress(context.Background(), fx.other, fx.other.ID)
	require.NoError(t, err)
	assert.Empty(t, p.Courses)
	assert.NotNil(t, p.Courses)
	assert.Zero(t, p.CompletedLessons)
	assert.Equal(t, progress.SubmissionSummary{}, p.Submissions)
}

func TestService_Stats(t *testing.T) {
	fx := setupProgress(t)

	st, err := fx.env.ProgressSvc.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, progress.Stats{
		Users:            3,
		Courses:          2,
		PublishedCourses: 1,
		Tests:            1,
		Submissions:      3,
		PassRate:         50,
	}, st)
}
