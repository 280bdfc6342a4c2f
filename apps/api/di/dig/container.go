package dig_container

import (
	"fmt"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"go.uber.org/dig"

	echoapi "github.com/youpass/youpass/apps/api/echo"
	"github.com/youpass/youpass/core"
	"github.com/youpass/youpass/core/course"
	"github.com/youpass/youpass/core/exam"
	"github.com/youpass/youpass/core/forum"
	"github.com/youpass/youpass/core/progress"
	"github.com/youpass/youpass/core/studygroup"
	"github.com/youpass/youpass/core/user"
	emailsvc "github.com/youpass/youpass/services/email"
	logsvc "github.com/youpass/youpass/services/logger"
	oauthsvc "github.com/youpass/youpass/services/oauth"
	"github.com/youpass/youpass/storage/database"
	inmemdb "github.com/youpass/youpass/storage/database/inmem"
	sqlxrepos "github.com/youpass/youpass/storage/database/sqlx"
)

type (
	DBLoggerParam struct {
		dig.In
		Logger core.Logger `name:"dbLogger"`
	}

	// DBCloser releases the database connections, if any.
	DBCloser func() error

	Repositories struct {
		dig.Out
		Users   user.Repository
		Courses course.Repository
		Exams   exam.Repository
		Forum   forum.Repository
		Groups  studygroup.Repository
		Closer  DBCloser
	}

	serverParams struct {
		dig.In
		Conf        *core.Config
		Logger      core.Logger
		Validate    *validator.Validate
		Translator  ut.Translator
		UserSvc     user.Service
		CourseSvc   course.Service
		ExamSvc     exam.Service
		ForumSvc    forum.Service
		GroupSvc    studygroup.Service
		ProgressSvc progress.Service
		Google      user.IdentityProvider
	}
)

func newLogger(conf *core.Config) (core.Logger, error) {
	return logsvc.NewRollbarLogger(conf)
}

func newRepositories(conf *core.Config, loggerParam DBLoggerParam) (Repositories, error) {
	if conf.Database.IsMemory() {
		loggerParam.Logger.Warn("using the in-memory database: data is lost on exit")
		db := inmemdb.Open()
		return Repositories{
			Users:   inmemdb.NewUserRepository(db),
			Courses: inmemdb.NewCourseRepository(db),
			Exams:   inmemdb.NewExamRepository(db),
			Forum:   inmemdb.NewForumRepository(db),
			Groups:  inmemdb.NewGroupRepository(db),
			Closer:  func() error { return nil },
		}, nil
	}

	if err := database.CreateIfNotExist(conf); err != nil {
		return Repositories{}, errors.Wrap(err, "creating database")
	}
	db, err := database.Open(conf)
	if err != nil {
		return Repositories{}, err
	}
	if err = database.Migrate(db.DB); err != nil {
		_ = db.Close()
		return Repositories{}, err
	}
	loggerParam.Logger.Info(fmt.Sprintf("connected to database %q", conf.Database.Name))

	return Repositories{
		Users:   sqlxrepos.NewUserRepository(db),
		Courses: sqlxrepos.NewCourseRepository(db),
		Exams:   sqlxrepos.NewExamRepository(db),
		Forum:   sqlxrepos.NewForumRepository(db),
		Groups:  sqlxrepos.NewGroupRepository(db),
		Closer:  db.Close,
	}, nil
}

func newEmailService(conf *core.Config, logger core.Logger) core.EmailService {
	if conf.Debug || conf.SendgridApiKey == "" {
		return emailsvc.NewConsoleService(conf, logger)
	}
	return emailsvc.NewSendgridService(conf, logger)
}

func newServer(p serverParams) *echoapi.Server {
	return echoapi.NewServer(echoapi.ServerDeps{
		Conf:        p.Conf,
		Logger:      p.Logger,
		Validate:    p.Validate,
		Translator:  p.Translator,
		UserSvc:     p.UserSvc,
		CourseSvc:   p.CourseSvc,
		ExamSvc:     p.ExamSvc,
		ForumSvc:    p.ForumSvc,
		GroupSvc:    p.GroupSvc,
		ProgressSvc: p.ProgressSvc,
		Google:      p.Google,
	})
}

// New returns a new dependency injection dig.Container
func New() (*dig.Container, error) {
	c := dig.New()

	providers := []struct {
		constructor interface{}
		opts        []dig.ProvideOption
	}{
		{constructor: core.NewConfig},
		{constructor: newLogger},
		{constructor: newLogger, opts: []dig.ProvideOption{dig.Name("dbLogger")}},
		{constructor: newRepositories},
		{constructor: newEmailService},
		{constructor: validator.New},
		{constructor: core.NewTranslator},
		{constructor: oauthsvc.NewGoogleProvider},
		{constructor: user.NewService},
		{constructor: course.NewService},
		{constructor: exam.NewService},
		{constructor: forum.NewService},
		{constructor: studygroup.NewService},
		{constructor: progress.NewService},
		{constructor: newServer},
	}
	for _, p := range providers {
		if err := c.Provide(p.constructor, p.opts...); err != nil {
			return nil, errors.Wrap(err, "failed to provide dependency")
		}
	}
	return c, nil
}
