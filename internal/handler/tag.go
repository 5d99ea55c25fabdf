package handler

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/imagiseum/gallery/internal/service"
)

type TagHandler struct {
	Search *service.Search
}

func NewTagHandler(search *service.Search) *TagHandler {
	return &TagHandler{Search: search}
}

type tagResp struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// Popular ranks every tag by the number of images carrying it.
func (h *TagHandler) Popular(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), storeTimeout)
	defer cancel()

	counts, err := h.Search.PopularTags(ctx)
	if err != nil {
		return err
	}
	out := make([]tagResp, 0, len(counts))
	for _, tc := range counts {
		out = append(out, tagResp{Name: tc.Name, Count: tc.Count})
	}
	return ok(c, http.StatusOK, echo.Map{"tags": out})
}
