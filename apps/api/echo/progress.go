package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/youpass/youpass/core/progress"
)

type progressApi struct {
	svc progress.Service
}

func registerProgressAPI(g *echo.Group, authn *authenticator, deps ServerDeps) {
	api := progressApi{svc: deps.ProgressSvc}

	pg := g.Group("/progress", authn.required())
	pg.GET("/user/:userId", api.userProgress)
	pg.POST("/user/:userId", api.updateUserProgress)
	pg.GET("/stats", api.stats, adminMiddleware())
}

func (api *progressApi) userProgress(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	up, err := api.svc.UserProgress(ctx.Request().Context(), usr, ctx.Param("userId"))
	if err != nil {
		return errors.Wrap(err, "getting user progress")
	}
	return respond(ctx, http.StatusOK, up)
}

// updateUserProgress is reserved: progress is derived from enrollments, lessons and submissions.
func (api *progressApi) updateUserProgress(ctx echo.Context) error {
	return respondMessage(ctx, http.StatusOK,
		"Update progress for user ID: "+ctx.Param("userId")+" - endpoint to be implemented")
}

func (api *progressApi) stats(ctx echo.Context) error {
	stats, err := api.svc.Stats(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "getting stats")
	}
	return respond(ctx, http.StatusOK, stats)
}
