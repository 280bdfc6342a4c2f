package testutil

import (
	"context"
	"sync"
	"testing"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/youpass/youpass/core"
	"github.com/youpass/youpass/core/course"
	"github.com/youpass/youpass/core/exam"
	"github.com/youpass/youpass/core/forum"
	"github.com/youpass/youpass/core/progress"
	"github.com/youpass/youpass/core/studygroup"
	"github.com/youpass/youpass/core/user"
	appfs "github.com/youpass/youpass/fs"
	emailsvc "github.com/youpass/youpass/services/email"
	logsvc "github.com/youpass/youpass/services/logger"
	inmemdb "github.com/youpass/youpass/storage/database/inmem"
)

var (
	initOnce   sync.Once
	validate   *validator.Validate
	translator ut.Translator
)

// Env wires every service on top of a fresh in-memory database.
type Env struct {
	Conf       *core.Config
	Logger     core.Logger
	DB         *inmemdb.DB
	Mail       *emailsvc.ConsoleServiceMock
	Validate   *validator.Validate
	Translator ut.Translator

	UserRepo   user.Repository
	CourseRepo course.Repository
	ExamRepo   exam.Repository
	ForumRepo  forum.Repository
	GroupRepo  studygroup.Repository

	UserSvc     user.Service
	CourseSvc   course.Service
	ExamSvc     exam.Service
	ForumSvc    forum.Service
	GroupSvc    studygroup.Service
	ProgressSvc progress.Service
}

func NewEnv(t testing.TB) *Env {
	conf := core.NewTestConfig()
	logger, err := logsvc.NewRollbarLogger(conf)
	if err != nil {
		t.Fatalf("NewRollbarLogger(): %v", err)
	}

	initOnce.Do(func() {
		validate = validator.New()
		translator = core.NewTranslator()
		core.InitValidators(validate, translator)
		user.InitValidators(validate, translator)
		exam.InitValidators(validate)
		core.ParseEmailTemplates(appfs.FS, conf, logger)
	})

	db := inmemdb.Open()
	env := &Env{
		Conf:       conf,
		Logger:     logger,
		DB:         db,
		Mail:       emailsvc.NewConsoleServiceMock(conf, logger),
		Validate:   validate,
		Translator: translator,
		UserRepo:   inmemdb.NewUserRepository(db),
		CourseRepo: inmemdb.NewCourseRepository(db),
		ExamRepo:   inmemdb.NewExamRepository(db),
		ForumRepo:  inmemdb.NewForumRepository(db),
		GroupRepo:  inmemdb.NewGroupRepository(db),
	}
	env.UserSvc = user.NewService(env.UserRepo, env.Mail, conf)
	env.CourseSvc = course.NewService(env.CourseRepo)
	env.ExamSvc = exam.NewService(env.ExamRepo)
	env.ForumSvc = forum.NewService(env.ForumRepo)
	env.GroupSvc = studygroup.NewService(env.GroupRepo)
	env.ProgressSvc = progress.NewService(env.UserSvc, env.CourseSvc, env.ExamSvc)
	return env
}

// CreateUser stores a user directly, bypassing registration (no mail, no password policy).
func CreateUser(t testing.TB, repo user.Repository, name, email, pwd, role string, createdAt ...time.Time) user.User {
	tstamp := core.Now()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC().Truncate(time.Microsecond)
	}
	if role == "" {
		role = user.RoleStudent
	}
	usr := user.User{
		ID:               uuid.New().String(),
		Name:             name,
		Email:            email,
		Role:             role,
		StudyGoals:       user.DefaultStudyGoals(tstamp),
		EnrolledCourses:  []string{},
		CompletedLessons: []string{},
		CreatedAt:        tstamp,
		UpdatedAt:        tstamp,
	}
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("CreateUser(): %v", err)
		}
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("CreateUser(): %v", err)
	}
	return usr
}

// CreateCourse creates a course through the service, owned by instructor.
func CreateCourse(t testing.TB, svc course.Service, instructor user.User, title string, published bool, lessonMinutes ...int) course.Course {
	nc := course.NewCourse{
		Title:       title,
		Description: title + " description",
		Level:       "beginner",
		Skill:       "reading",
		IsPublished: published,
	}
	for i, mins := range lessonMinutes {
		m := mins
		nc.Lessons = append(nc.Lessons, course.NewLesson{
			Title:       title + " lesson",
			Description: "lesson",
			Content:     "content",
			Duration:    &m,
			Order:       i + 1,
		})
	}
	c, err := svc.Create(context.Background(), instructor, nc)
	if err != nil {
		t.Fatalf("CreateCourse(): %v", err)
	}
	return c
}

func ReloadUser(t testing.TB, repo user.Repository, id string) user.User {
	usr, err := repo.GetUser(context.Background(), user.GetFilter{ID: id})
	if err != nil {
		t.Fatalf("ReloadUser(): %v", err)
	}
	return usr
}
