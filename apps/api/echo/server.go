package echoapi

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"

	"github.com/youpass/youpass/core"
	"github.com/youpass/youpass/core/course"
	"github.com/youpass/youpass/core/exam"
	"github.com/youpass/youpass/core/forum"
	"github.com/youpass/youpass/core/progress"
	"github.com/youpass/youpass/core/studygroup"
	"github.com/youpass/youpass/core/user"
)

type (
	ServerDeps struct {
		Conf           *core.Config
		Logger         core.Logger
		Validate       *validator.Validate
		Translator     ut.Translator
		UserSvc        user.Service
		CourseSvc      course.Service
		ExamSvc        exam.Service
		ForumSvc       forum.Service
		GroupSvc       studygroup.Service
		ProgressSvc    progress.Service
		Google         user.IdentityProvider
		DisableReqLogs bool
	}

	Server struct {
		deps     ServerDeps
		app      *echo.Echo
		errors   chan error
		shutdown chan os.Signal
	}
)

func NewServer(deps ServerDeps) *Server {
	s := &Server{
		deps:     deps,
		app:      echo.New(),
		errors:   make(chan error, 1),
		shutdown: make(chan os.Signal, 1),
	}
	s.setup()
	return s
}

func (s *Server) setup() {
	conf := s.deps.Conf

	s.app.HideBanner = true
	s.app.Debug = conf.Debug
	s.app.Server.ReadTimeout = conf.Server.ReadTimeout
	s.app.Server.WriteTimeout = conf.Server.WriteTimeout
	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.deps.Logger, s.deps.Translator, s.signalShutdown)

	s.app.Pre(middleware.RemoveTrailingSlash())
	if !s.deps.DisableReqLogs {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(conf.Debug || conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}
	s.app.Use(
		middleware.CORSWithConfig(middleware.CORSConfig{
			AllowOrigins: conf.Server.AllowOrigins,
			AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
		}),
		middleware.Secure(),
		middleware.BodyLimit(conf.Server.BodyLimit),
	)

	s.app.GET("/", home)
	s.app.GET("/health", health)

	v1 := s.app.Group("/api/v1")
	authn := newAuthenticator(conf, s.deps.UserSvc)
	limiter := newRateLimiter(conf.Limits.AuthRequests, conf.Limits.AuthWindow)

	registerUserAPI(v1, authn, limiter.middleware(), s.deps)
	registerCourseAPI(v1, authn, s.deps)
	registerExamAPI(v1, authn, s.deps)
	registerForumAPI(v1, authn, s.deps)
	registerGroupAPI(v1, authn, s.deps)
	registerProgressAPI(v1, authn, s.deps)
}

// Start blocks serving requests; failures are reported on Errors.
func (s *Server) Start() {
	signal.Notify(s.shutdown, os.Interrupt, syscall.SIGTERM)
	if err := s.app.Start(s.deps.Conf.Server.Addr()); err != nil && err != http.ErrServerClosed {
		s.errors <- err
	}
}

func (s *Server) Errors() <-chan error { return s.errors }

func (s *Server) ShutdownSignal() <-chan os.Signal { return s.shutdown }

func (s *Server) signalShutdown() {
	select {
	case s.shutdown <- syscall.SIGTERM:
	default: // already signaled
	}
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.Shutdown(ctx)
}

func (s *Server) Close() error {
	return s.app.Close()
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "YouPass API is running")
}

func health(ctx echo.Context) error {
	return respondMessage(ctx, http.StatusOK, "ok")
}
