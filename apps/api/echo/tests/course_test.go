package tests

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/youpass/youpass/core"
	"github.com/youpass/youpass/core/course"
	"github.com/youpass/youpass/core/user"
	testutil "github.com/youpass/youpass/tests"
)

func Test_courseApi_catalog(t *testing.T) {
	app := setup(t)
	admin := app.createUser(t, "Admin", "admin@example.com", user.RoleAdmin)
	student := app.createUser(t, "Jane", "jane@example.com", "")

	published := testutil.CreateCourse(t, app.env.CourseSvc, admin, "Reading Basics", true, 30, 45)
	draft := testutil.CreateCourse(t, app.env.CourseSvc, admin, "Writing Draft", false)

	t.Run("anonymous list", func(t *testing.T) {
		res, rec := app.do(t, http.MethodGet, "/api/v1/courses", "")
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		require.NotNil(t, res.Count)
		require.NotNil(t, res.Total)
		assert.Equal(t, 1, *res.Count)
		assert.Equal(t, 1, *res.Total)
		require.NotNil(t, res.Pagination)
		assert.Equal(t, 1, res.Pagination.Pages)

		var summaries []course.Summary
		unmarshalData(t, res, &summaries)
		require.Len(t, summaries, 1)
		assert.Equal(t, published.ID, summaries[0].ID)
		assert.Equal(t, 2, summaries[0].LessonCount)
	})

	t.Run("admin sees drafts", func(t *testing.T) {
		res, rec := app.do(t, http.MethodGet, "/api/v1/courses?limit=1", app.getToken(t, admin))
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, 1, *res.Count)
		assert.Equal(t, 2, *res.Total)
		assert.Equal(t, 2, res.Pagination.Pages)
	})

	t.Run("page far past the end", func(t *testing.T) {
		res, rec := app.do(t, http.MethodGet, "/api/v1/courses?page=9223372036854775807", "")
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Equal(t, 0, *res.Count)
		assert.Equal(t, 1, *res.Total)
		assert.Equal(t, core.MaxPage, res.Pagination.Page)

		for _, path := range []string{"/api/v1/forum/posts", "/api/v1/groups", "/api/v1/tests"} {
			_, rec = app.do(t, http.MethodGet, path+"?page=9223372036854775807", app.getToken(t, student))
			assert.Equal(t, http.StatusOK, rec.Code, path)
		}
	})

	t.Run("filters", func(t *testing.T) {
		res, rec := app.do(t, http.MethodGet, "/api/v1/courses?skill=WRITING", app.getToken(t, admin))
		require.Equal(t, http.StatusOK, rec.Code)
		var summaries []course.Summary
		unmarshalData(t, res, &summaries)
		assert.Len(t, summaries, 0, "every fixture course is a reading course")

		res, _ = app.do(t, http.MethodGet, "/api/v1/courses?search=basics", "")
		unmarshalData(t, res, &summaries)
		assert.Len(t, summaries, 1)
	})

	app.runTests(t, []httpTest{
		{
			name: "draft hidden from students", method: http.MethodGet, path: "/api/v1/courses/" + draft.ID,
			token: app.getToken(t, student), wantCode: http.StatusForbidden,
			wantData: marchallObj(t, errMsg("This course is not yet published")),
		},
		{
			name: "draft hidden from anonymous", method: http.MethodGet, path: "/api/v1/courses/" + draft.ID,
			wantCode: http.StatusForbidden, wantData: marchallObj(t, errMsg("This course is not yet published")),
		},
		{
			name: "unknown course", method: http.MethodGet, path: "/api/v1/courses/nope",
			wantCode: http.StatusNotFound, wantData: marchallObj(t, errMsg("Course not found")),
		},
		{
			name: "bad token on public route", method: http.MethodGet, path: "/api/v1/courses", token: "garbage",
			wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMsg("invalid or expired jwt")),
		},
	})

	res, rec := app.do(t, http.MethodGet, "/api/v1/courses/"+published.ID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var c course.Course
	unmarshalData(t, res, &c)
	assert.Equal(t, published.Title, c.Title)
	assert.Len(t, c.Lessons, 2)
}

func Test_courseApi_manage(t *testing.T) {
	app := setup(t)
	instructor := app.createUser(t, "Ines", "ines@example.com", "")
	other := app.createUser(t, "Oscar", "oscar@example.com", "")
	token := app.getToken(t, instructor)
	path := "/api/v1/courses"

	app.runTests(t, []httpTest{
		{
			name: "auth required", method: http.MethodPost, path: path, body: []byte(`{}`),
			wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMsg("Not authorized, no token")),
		},
		{
			name: "invalid course", method: http.MethodPost, path: path, token: token, wantCode: http.StatusBadRequest,
			body: []byte(`{"title": "IELTS", "level": "expert", "skill": "reading"}`),
			wantData: marchallObj(t, errFields(map[string]string{
				"description": "this field is required",
				"level":       "level must be one of: beginner, intermediate, advanced",
			})),
		},
	})

	body := []byte(`{
		"title": " Listening Mastery ",
		"description": "Section by section",
		"level": "Intermediate",
		"skill": "listening",
		"isPublished": true,
		"lessons": [{"title": "Maps", "description": "Map labelling", "content": "...", "duration": 90}]
	}`)
	res, rec := app.do(t, http.MethodPost, path, token, body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var c course.Course
	unmarshalData(t, res, &c)
	assert.Equal(t, "Listening Mastery", c.Title)
	assert.Equal(t, "intermediate", c.Level)
	assert.Equal(t, []string{instructor.ID}, c.Instructors)
	require.Len(t, c.Lessons, 1)
	assert.Equal(t, 1, c.Lessons[0].Order)
	coursePath := path + "/" + c.ID

	app.runTests(t, []httpTest{
		{
			name: "update by outsider", method: http.MethodPut, path: coursePath, token: app.getToken(t, other),
			body:     []byte(`{"title": "Hijacked"}`),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, errMsg("Not authorized to modify this course")),
		},
		{
			name: "lesson by outsider", method: http.MethodPost, path: coursePath + "/lessons", token: app.getToken(t, other),
			body:     []byte(`{"title": "Extra", "description": "d", "content": "c"}`),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, errMsg("Not authorized to modify this course")),
		},
		{
			name: "lessons require auth", method: http.MethodPost, path: coursePath + "/lessons",
			body:     []byte(`{"title": "Extra", "description": "d", "content": "c"}`),
			wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMsg("Not authorized, no token")),
		},
		{
			name: "unknown lesson", method: http.MethodPut, path: coursePath + "/lessons/nope", token: token,
			body:     []byte(`{"title": "Renamed"}`),
			wantCode: http.StatusNotFound, wantData: marchallObj(t, errMsg("Lesson not found")),
		},
	})

	res, rec = app.do(t, http.MethodPut, coursePath, token, []byte(`{"title": "Listening Pro", "price": 10}`))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	unmarshalData(t, res, &c)
	assert.Equal(t, "Listening Pro", c.Title)
	assert.Equal(t, 10.0, c.Price)

	res, rec = app.do(t, http.MethodPost, coursePath+"/lessons", token,
		[]byte(`{"title": "Numbers", "description": "Spelling numbers", "content": "..."}`))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var lesson course.Lesson
	unmarshalData(t, res, &lesson)
	assert.Equal(t, 2, lesson.Order)

	res, rec = app.do(t, http.MethodPut, coursePath+"/lessons/"+lesson.ID, token, []byte(`{"title": "Numbers & dates"}`))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	unmarshalData(t, res, &lesson)
	assert.Equal(t, "Numbers & dates", lesson.Title)

	app.runTests(t, []httpTest{
		{
			name: "delete lesson", method: http.MethodDelete, path: coursePath + "/lessons/" + lesson.ID, token: token,
			wantData: []byte(`{"success": true, "message": "Lesson deleted successfully"}`),
		},
		{
			name: "delete course", method: http.MethodDelete, path: coursePath, token: token,
			wantData: []byte(`{"success": true, "message": "Course deleted successfully"}`),
		},
		{
			name: "deleted", method: http.MethodGet, path: coursePath,
			wantCode: http.StatusNotFound, wantData: marchallObj(t, errMsg("Course not found")),
		},
	})
}

func Test_courseApi_enrollment(t *testing.T) {
	app := setup(t)
	admin := app.createUser(t, "Admin", "admin@example.com", user.RoleAdmin)
	student := app.createUser(t, "Jane", "jane@example.com", "")
	token := app.getToken(t, student)

	c := testutil.CreateCourse(t, app.env.CourseSvc, admin, "Speaking", true, 20, 20)
	draft := testutil.CreateCourse(t, app.env.CourseSvc, admin, "Draft", false)
	coursePath := "/api/v1/courses/" + c.ID
	lessonID := c.Lessons[0].ID

	app.runTests(t, []httpTest{
		{
			name: "complete before enrolling", method: http.MethodPost, path: coursePath + "/lessons/" + lessonID + "/complete",
			token: token, wantCode: http.StatusForbidden, wantData: marchallObj(t, errMsg("You are not enrolled in this course")),
		},
		{
			name: "review before enrolling", method: http.MethodPost, path: coursePath + "/reviews", token: token,
			body:     []byte(`{"rating": 5, "comment": "great"}`),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, errMsg("You are not enrolled in this course")),
		},
		{
			name: "leave before enrolling", method: http.MethodPost, path: coursePath + "/leave", token: token,
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, errMsg("You are not enrolled in this course")),
		},
		{
			name: "enroll in draft", method: http.MethodPost, path: "/api/v1/courses/" + draft.ID + "/enroll", token: token,
			wantCode: http.StatusForbidden, wantData: marchallObj(t, errMsg("This course is not yet published")),
		},
	})

	res, rec := app.do(t, http.MethodPost, coursePath+"/enroll", token)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Successfully enrolled in the course", res.Message)
	var enrolled course.Course
	unmarshalData(t, res, &enrolled)
	assert.Equal(t, []string{student.ID}, enrolled.Students)
	assert.Equal(t, []string{c.ID}, testutil.ReloadUser(t, app.env.UserRepo, student.ID).EnrolledCourses)

	app.runTests(t, []httpTest{
		{
			name: "enroll twice", method: http.MethodPost, path: coursePath + "/enroll", token: token,
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, errMsg("You are already enrolled in this course")),
		},
		{
			name: "complete lesson", method: http.MethodPost, path: coursePath + "/lessons/" + lessonID + "/complete", token: token,
			wantData: []byte(`{"success": true, "message": "Lesson marked as completed"}`),
		},
		{
			name: "complete lesson again", method: http.MethodPost, path: coursePath + "/lessons/" + lessonID + "/complete", token: token,
			wantData: []byte(`{"success": true, "message": "Lesson marked as completed"}`),
		},
		{
			name: "invalid review", method: http.MethodPost, path: coursePath + "/reviews", token: token,
			body:     []byte(`{"rating": 6, "comment": "great"}`),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, errFields(map[string]string{"rating": "rating must be 5 or less"})),
		},
	})
	assert.Equal(t, []string{lessonID}, testutil.ReloadUser(t, app.env.UserRepo, student.ID).CompletedLessons)

	_, rec = app.do(t, http.MethodPost, coursePath+"/reviews", token, []byte(`{"rating": 2, "comment": "meh"}`))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	res, rec = app.do(t, http.MethodPost, coursePath+"/reviews", token, []byte(`{"rating": 4, "comment": "better"}`))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var reviewed course.Course
	unmarshalData(t, res, &reviewed)
	require.Len(t, reviewed.Reviews, 1, "a second review replaces the first")
	assert.Equal(t, 4.0, reviewed.Rating)

	res, rec = app.do(t, http.MethodPost, coursePath+"/leave", token)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Successfully left the course", res.Message)
	assert.Empty(t, testutil.ReloadUser(t, app.env.UserRepo, student.ID).EnrolledCourses)
}
