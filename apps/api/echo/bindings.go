package echoapi

import (
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/youpass/youpass/core"
)

// validatable is implemented by every request payload: Validate cleans and checks it.
type validatable interface {
	Validate(validate *validator.Validate) error
}

func bindAndValidate(ctx echo.Context, validate *validator.Validate, data validatable, name string) error {
	if err := ctx.Bind(data); err != nil {
		return errors.Wrap(err, "binding to "+name)
	}
	return data.Validate(validate)
}

// bindPagination reads ?page=&limit= and applies the defaults; bad values fall back to them.
func bindPagination(ctx echo.Context) core.Pagination {
	var page core.Pagination
	_ = ctx.Bind(&page)
	page.Clean()
	return page
}

// queryFilter is implemented by the list filters bound from ?query params.
type queryFilter interface {
	Clean()
}

// bindFilter is only used on GET requests.
func bindFilter(ctx echo.Context, filter queryFilter) {
	_ = ctx.Bind(filter)
	filter.Clean()
}
