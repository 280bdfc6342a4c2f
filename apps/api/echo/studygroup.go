package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/youpass/youpass/core/studygroup"
)

type groupApi struct {
	svc      studygroup.Service
	validate *validator.Validate
}

func registerGroupAPI(g *echo.Group, authn *authenticator, deps ServerDeps) {
	api := groupApi{svc: deps.GroupSvc, validate: deps.Validate}

	gg := g.Group("/groups", authn.required())
	gg.GET("", api.query)
	gg.POST("", api.create)
	gg.POST("/join", api.join)
	gg.GET("/:id", api.retrieve)
	gg.PUT("/:id", api.update)
	gg.DELETE("/:id", api.destroy)
	gg.POST("/:id/leave", api.leave)
	gg.GET("/:id/messages", api.listMessages)
	gg.POST("/:id/messages", api.postMessage)
}

func (api *groupApi) query(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	var filter studygroup.Filter
	bindFilter(ctx, &filter)
	page := bindPagination(ctx)

	groups, total, err := api.svc.Query(ctx.Request().Context(), usr, filter, page)
	if err != nil {
		return errors.Wrap(err, "querying groups")
	}
	return respondPage(ctx, groups, len(groups), total, page)
}

func (api *groupApi) create(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	var data studygroup.NewGroup
	if err = bindAndValidate(ctx, api.validate, &data, "NewGroup"); err != nil {
		return err
	}

	grp, err := api.svc.Create(ctx.Request().Context(), usr, data)
	if err != nil {
		return errors.Wrap(err, "creating group")
	}
	return respond(ctx, http.StatusCreated, grp)
}

func (api *groupApi) join(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	var data studygroup.JoinRequest
	if err = bindAndValidate(ctx, api.validate, &data, "JoinRequest"); err != nil {
		return err
	}

	grp, err := api.svc.Join(ctx.Request().Context(), usr, data.JoinCode)
	if err != nil {
		return errors.Wrap(err, "joining group")
	}
	return respondMessage(ctx, http.StatusOK, "Successfully joined the group", grp)
}

func (api *groupApi) retrieve(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	grp, err := api.svc.Get(ctx.Request().Context(), usr, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting group")
	}
	return respond(ctx, http.StatusOK, grp)
}

func (api *groupApi) update(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	var data studygroup.UpdateGroup
	if err = bindAndValidate(ctx, api.validate, &data, "UpdateGroup"); err != nil {
		return err
	}

	grp, err := api.svc.Update(ctx.Request().Context(), usr, ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating group")
	}
	return respond(ctx, http.StatusOK, grp)
}

func (api *groupApi) destroy(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	if err = api.svc.Delete(ctx.Request().Context(), usr, ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting group")
	}
	return respondMessage(ctx, http.StatusOK, "Study group deleted successfully")
}

func (api *groupApi) leave(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	if err = api.svc.Leave(ctx.Request().Context(), usr, ctx.Param("id")); err != nil {
		return errors.Wrap(err, "leaving group")
	}
	return respondMessage(ctx, http.StatusOK, "Successfully left the group")
}

func (api *groupApi) listMessages(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	msgs, err := api.svc.ListMessages(ctx.Request().Context(), usr, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "listing messages")
	}
	return respondList(ctx, msgs, len(msgs))
}

func (api *groupApi) postMessage(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	var data studygroup.NewMessage
	if err = bindAndValidate(ctx, api.validate, &data, "NewMessage"); err != nil {
		return err
	}

	msg, err := api.svc.PostMessage(ctx.Request().Context(), usr, ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "posting message")
	}
	return respond(ctx, http.StatusCreated, msg)
}
