package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/youpass/youpass/core"
)

type (
	// response is the envelope every endpoint answers with.
	response struct {
		Success    bool              `json:"success"`
		Message    string            `json:"message,omitempty"`
		Token      string            `json:"token,omitempty"`
		Count      *int              `json:"count,omitempty"`
		Total      *int              `json:"total,omitempty"`
		Pagination *pageInfo         `json:"pagination,omitempty"`
		Data       interface{}       `json:"data,omitempty"`
		Errors     map[string]string `json:"errors,omitempty"`
		Error      string            `json:"error,omitempty"`
	}

	pageInfo struct {
		Page  int `json:"page"`
		Limit int `json:"limit"`
		Pages int `json:"pages"`
	}
)

func respond(ctx echo.Context, code int, data interface{}) error {
	return ctx.JSON(code, response{Success: true, Data: data})
}

func respondMessage(ctx echo.Context, code int, msg string, data ...interface{}) error {
	res := response{Success: true, Message: msg}
	if len(data) > 0 {
		res.Data = data[0]
	}
	return ctx.JSON(code, res)
}

func respondList(ctx echo.Context, data interface{}, count int) error {
	return ctx.JSON(http.StatusOK, response{Success: true, Count: &count, Data: data})
}

func respondPage(ctx echo.Context, data interface{}, count, total int, page core.Pagination) error {
	return ctx.JSON(http.StatusOK, response{
		Success: true,
		Count:   &count,
		Total:   &total,
		Pagination: &pageInfo{
			Page:  page.Page,
			Limit: page.Limit,
			Pages: page.Pages(total),
		},
		Data: data,
	})
}

func respondToken(ctx echo.Context, code int, token string, usr interface{}) error {
	return ctx.JSON(code, response{Success: true, Token: token, Data: usr})
}
