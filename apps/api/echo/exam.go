package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/youpass/youpass/core/exam"
)

type examApi struct {
	svc      exam.Service
	validate *validator.Validate
}

func registerExamAPI(g *echo.Group, authn *authenticator, deps ServerDeps) {
	api := examApi{svc: deps.ExamSvc, validate: deps.Validate}

	tg := g.Group("/tests", authn.required())
	tg.GET("", api.query)
	tg.POST("", api.create, adminMiddleware())
	tg.GET("/:id", api.retrieve)
	tg.PUT("/:id", api.update)
	tg.DELETE("/:id", api.destroy)

	sg := tg.Group("/:id/submissions")
	sg.POST("", api.start)
	sg.GET("", api.listSubmissions)
	sg.GET("/:submissionId", api.retrieveSubmission)
	sg.PUT("/:submissionId/submit", api.submit)
	sg.PUT("/:submissionId/grade", api.grade, adminMiddleware())
}

func (api *examApi) query(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	var filter exam.Filter
	bindFilter(ctx, &filter)
	page := bindPagination(ctx)

	tests, total, err := api.svc.Query(ctx.Request().Context(), usr, filter, page)
	if err != nil {
		return errors.Wrap(err, "querying tests")
	}
	return respondPage(ctx, tests, len(tests), total, page)
}

func (api *examApi) retrieve(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	t, err := api.svc.Get(ctx.Request().Context(), usr, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting test")
	}
	return respond(ctx, http.StatusOK, t)
}

func (api *examApi) create(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	var data exam.NewTest
	if err = bindAndValidate(ctx, api.validate, &data, "NewTest"); err != nil {
		return err
	}

	t, err := api.svc.Create(ctx.Request().Context(), usr, data)
	if err != nil {
		return errors.Wrap(err, "creating test")
	}
	return respond(ctx, http.StatusCreated, t)
}

func (api *examApi) update(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	var data exam.UpdateTest
	if err = bindAndValidate(ctx, api.validate, &data, "UpdateTest"); err != nil {
		return err
	}

	t, err := api.svc.Update(ctx.Request().Context(), usr, ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating test")
	}
	return respond(ctx, http.StatusOK, t)
}

func (api *examApi) destroy(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	if err = api.svc.Delete(ctx.Request().Context(), usr, ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting test")
	}
	return respondMessage(ctx, http.StatusOK, "Test deleted successfully")
}

func (api *examApi) start(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	s, err := api.svc.Start(ctx.Request().Context(), usr, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "starting test")
	}
	return respond(ctx, http.StatusCreated, s)
}

func (api *examApi) listSubmissions(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	subs, err := api.svc.ListSubmissions(ctx.Request().Context(), usr, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "listing submissions")
	}
	return respondList(ctx, subs, len(subs))
}

func (api *examApi) retrieveSubmission(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	s, err := api.svc.GetSubmission(ctx.Request().Context(), usr, ctx.Param("id"), ctx.Param("submissionId"))
	if err != nil {
		return errors.Wrap(err, "getting submission")
	}
	return respond(ctx, http.StatusOK, s)
}

func (api *examApi) submit(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	var data exam.SubmitAnswers
	if err = bindAndValidate(ctx, api.validate, &data, "SubmitAnswers"); err != nil {
		return err
	}

	s, err := api.svc.Submit(ctx.Request().Context(), usr, ctx.Param("id"), ctx.Param("submissionId"), data)
	if err != nil {
		return errors.Wrap(err, "submitting answers")
	}
	return respond(ctx, http.StatusOK, s)
}

func (api *examApi) grade(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	var data exam.GradeSubmission
	if err = bindAndValidate(ctx, api.validate, &data, "GradeSubmission"); err != nil {
		return err
	}

	s, err := api.svc.Grade(ctx.Request().Context(), usr, ctx.Param("id"), ctx.Param("submissionId"), data)
	if err != nil {
		return errors.Wrap(err, "grading submission")
	}
	return respond(ctx, http.StatusOK, s)
}
