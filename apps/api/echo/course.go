package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/youpass/youpass/core/course"
)

type courseApi struct {
	svc      course.Service
	validate *validator.Validate
}

func registerCourseAPI(g *echo.Group, authn *authenticator, deps ServerDeps) {
	api := courseApi{svc: deps.CourseSvc, validate: deps.Validate}

	cg := g.Group("/courses")
	auth := authn.required()

	// public catalog
	cg.GET("", api.query, authn.optional())
	cg.GET("/:id", api.retrieve, authn.optional())

	// per-route auth: a group middleware would register catch-all routes shadowing the public ones
	cg.POST("", api.create, auth)
	cg.PUT("/:id", api.update, auth)
	cg.DELETE("/:id", api.destroy, auth)
	cg.POST("/:id/enroll", api.enroll, auth)
	cg.POST("/:id/leave", api.leave, auth)
	cg.POST("/:id/reviews", api.addReview, auth)

	lg := cg.Group("/:id/lessons", auth)
	lg.POST("", api.addLesson)
	lg.PUT("/:lessonId", api.updateLesson)
	lg.DELETE("/:lessonId", api.deleteLesson)
	lg.POST("/:lessonId/complete", api.completeLesson)
}

func (api *courseApi) query(ctx echo.Context) error {
	var filter course.Filter
	bindFilter(ctx, &filter)
	page := bindPagination(ctx)

	courses, total, err := api.svc.Query(ctx.Request().Context(), getOptionalUser(ctx), filter, page)
	if err != nil {
		return errors.Wrap(err, "querying courses")
	}
	return respondPage(ctx, courses, len(courses), total, page)
}

func (api *courseApi) retrieve(ctx echo.Context) error {
	c, err := api.svc.Get(ctx.Request().Context(), getOptionalUser(ctx), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting course")
	}
	return respond(ctx, http.StatusOK, c)
}

func (api *courseApi) create(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	var data course.NewCourse
	if err = bindAndValidate(ctx, api.validate, &data, "NewCourse"); err != nil {
		return err
	}

	c, err := api.svc.Create(ctx.Request().Context(), usr, data)
	if err != nil {
		return errors.Wrap(err, "creating course")
	}
	return respond(ctx, http.StatusCreated, c)
}

func (api *courseApi) update(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	var data course.UpdateCourse
	if err = bindAndValidate(ctx, api.validate, &data, "UpdateCourse"); err != nil {
		return err
	}

	c, err := api.svc.Update(ctx.Request().Context(), usr, ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating course")
	}
	return respond(ctx, http.StatusOK, c)
}

func (api *courseApi) destroy(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	if err = api.svc.Delete(ctx.Request().Context(), usr, ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting course")
	}
	return respondMessage(ctx, http.StatusOK, "Course deleted successfully")
}

func (api *courseApi) enroll(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	c, err := api.svc.Enroll(ctx.Request().Context(), usr, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "enrolling in course")
	}
	return respondMessage(ctx, http.StatusOK, "Successfully enrolled in the course", c)
}

func (api *courseApi) leave(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	if err = api.svc.Leave(ctx.Request().Context(), usr, ctx.Param("id")); err != nil {
		return errors.Wrap(err, "leaving course")
	}
	return respondMessage(ctx, http.StatusOK, "Successfully left the course")
}

func (api *courseApi) addReview(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	var data course.NewReview
	if err = bindAndValidate(ctx, api.validate, &data, "NewReview"); err != nil {
		return err
	}

	c, err := api.svc.AddReview(ctx.Request().Context(), usr, ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "reviewing course")
	}
	return respond(ctx, http.StatusCreated, c)
}

func (api *courseApi) addLesson(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	var data course.NewLesson
	if err = bindAndValidate(ctx, api.validate, &data, "NewLesson"); err != nil {
		return err
	}

	l, err := api.svc.AddLesson(ctx.Request().Context(), usr, ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "adding lesson")
	}
	return respond(ctx, http.StatusCreated, l)
}

func (api *courseApi) updateLesson(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	var data course.UpdateLesson
	if err = bindAndValidate(ctx, api.validate, &data, "UpdateLesson"); err != nil {
		return err
	}

	l, err := api.svc.UpdateLesson(ctx.Request().Context(), usr, ctx.Param("id"), ctx.Param("lessonId"), data)
	if err != nil {
		return errors.Wrap(err, "updating lesson")
	}
	return respond(ctx, http.StatusOK, l)
}

func (api *courseApi) deleteLesson(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	if err = api.svc.DeleteLesson(ctx.Request().Context(), usr, ctx.Param("id"), ctx.Param("lessonId")); err != nil {
		return errors.Wrap(err, "deleting lesson")
	}
	return respondMessage(ctx, http.StatusOK, "Lesson deleted successfully")
}

func (api *courseApi) completeLesson(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	if err = api.svc.CompleteLesson(ctx.Request().Context(), usr, ctx.Param("id"), ctx.Param("lessonId")); err != nil {
		return errors.Wrap(err, "completing lesson")
	}
	return respondMessage(ctx, http.StatusOK, "Lesson marked as completed")
}
