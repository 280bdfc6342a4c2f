package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/youpass/youpass/core/forum"
)

type forumApi struct {
	svc      forum.Service
	validate *validator.Validate
}

func registerForumAPI(g *echo.Group, authn *authenticator, deps ServerDeps) {
	api := forumApi{svc: deps.ForumSvc, validate: deps.Validate}

	pg := g.Group("/forum/posts")
	auth := authn.required()

	// anyone may read
	pg.GET("", api.query)
	pg.GET("/:id", api.retrieve)
	pg.GET("/:id/comments", api.listReplies)

	pg.POST("", api.create, auth)
	pg.PUT("/:id", api.update, auth)
	pg.DELETE("/:id", api.destroy, auth)
	pg.POST("/:id/comments", api.addReply, auth)
	pg.POST("/:id/like", api.toggleLike, auth)
	pg.POST("/:id/resolve", api.resolve, auth)
}

func (api *forumApi) query(ctx echo.Context) error {
	var filter forum.Filter
	bindFilter(ctx, &filter)
	page := bindPagination(ctx)

	posts, total, err := api.svc.Query(ctx.Request().Context(), filter, page)
	if err != nil {
		return errors.Wrap(err, "querying posts")
	}
	return respondPage(ctx, posts, len(posts), total, page)
}

func (api *forumApi) retrieve(ctx echo.Context) error {
	p, err := api.svc.Get(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting post")
	}
	return respond(ctx, http.StatusOK, p)
}

func (api *forumApi) create(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	var data forum.NewPost
	if err = bindAndValidate(ctx, api.validate, &data, "NewPost"); err != nil {
		return err
	}

	p, err := api.svc.Create(ctx.Request().Context(), usr, data)
	if err != nil {
		return errors.Wrap(err, "creating post")
	}
	return respond(ctx, http.StatusCreated, p)
}

func (api *forumApi) update(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	var data forum.UpdatePost
	if err = bindAndValidate(ctx, api.validate, &data, "UpdatePost"); err != nil {
		return err
	}

	p, err := api.svc.Update(ctx.Request().Context(), usr, ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating post")
	}
	return respond(ctx, http.StatusOK, p)
}

func (api *forumApi) destroy(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	if err = api.svc.Delete(ctx.Request().Context(), usr, ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting post")
	}
	return respondMessage(ctx, http.StatusOK, "Post deleted successfully")
}

func (api *forumApi) listReplies(ctx echo.Context) error {
	replies, err := api.svc.ListReplies(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "listing replies")
	}
	return respondList(ctx, replies, len(replies))
}

func (api *forumApi) addReply(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	var data forum.NewReply
	if err = bindAndValidate(ctx, api.validate, &data, "NewReply"); err != nil {
		return err
	}

	r, err := api.svc.AddReply(ctx.Request().Context(), usr, ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "adding reply")
	}
	return respond(ctx, http.StatusCreated, r)
}

func (api *forumApi) toggleLike(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	p, err := api.svc.ToggleLike(ctx.Request().Context(), usr, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "toggling like")
	}
	return respond(ctx, http.StatusOK, p)
}

func (api *forumApi) resolve(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	p, err := api.svc.Resolve(ctx.Request().Context(), usr, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "resolving post")
	}
	return respond(ctx, http.StatusOK, p)
}
