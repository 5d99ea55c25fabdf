package handler

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/imagiseum/gallery/internal/middleware"
	"github.com/imagiseum/gallery/internal/model"
	"github.com/imagiseum/gallery/internal/provider"
	"github.com/imagiseum/gallery/internal/service"
	"github.com/imagiseum/gallery/internal/tags"
	"github.com/imagiseum/gallery/internal/validation"
)

// ImageHandler serves generation and the image catalog endpoints.
type ImageHandler struct {
	Catalog   *service.Catalog
	Search    *service.Search
	Generator provider.Generator
}

func NewImageHandler(catalog *service.Catalog, search *service.Search, gen provider.Generator) *ImageHandler {
	return &ImageHandler{Catalog: catalog, Search: search, Generator: gen}
}

type generateReq struct {
	Prompt string `json:"prompt" validate:"required,min=3,max=1000"`
}

type createImageReq struct {
	Name        string   `json:"name" validate:"required,min=1,max=100"`
	Description string   `json:"description" validate:"max=500"`
	Tags        []string `json:"tags" validate:"max=10,dive,min=1,max=30,tag"`
	ImageData   string   `json:"imageData" validate:"required"`
	UsedPrompt  string   `json:"used_prompt" validate:"max=1000"`
}

type updateImageReq struct {
	Name        *string   `json:"name" validate:"omitempty,min=1,max=100"`
	Description *string   `json:"description" validate:"omitempty,max=500"`
	Tags        *[]string `json:"tags" validate:"omitempty,max=10,dive,min=1,max=30,tag"`
	UsedPrompt  *string   `json:"used_prompt" validate:"omitempty,max=1000"`
	Path        *string   `json:"path" validate:"omitempty,min=1,max=512"`
}

func (r updateImageReq) patch() model.ImagePatch {
	return model.ImagePatch{
		Path:        r.Path,
		Name:        r.Name,
		UsedPrompt:  r.UsedPrompt,
		Description: r.Description,
		Tags:        r.Tags,
	}
}

type ownerResp struct {
	ID    uint64 `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

type imageResp struct {
	ID          uint64     `json:"id"`
	Path        string     `json:"path"`
	Name        string     `json:"name"`
	UsedPrompt  string     `json:"used_prompt"`
	Description string     `json:"description"`
	Tags        []string   `json:"tags"`
	User        *ownerResp `json:"user,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

func toImageResp(img model.Image, withOwner bool) imageResp {
	r := imageResp{
		ID:          img.ID,
		Path:        img.Path,
		Name:        img.Name,
		UsedPrompt:  img.UsedPrompt,
		Description: img.Description,
		Tags:        img.Tags,
		CreatedAt:   img.CreatedAt,
		UpdatedAt:   img.UpdatedAt,
	}
	if r.Tags == nil {
		r.Tags = []string{}
	}
	if withOwner && img.Owner != nil {
		r.User = &ownerResp{ID: img.Owner.ID, Name: img.Owner.Name, Email: img.Owner.Email}
	}
	return r
}

func toImageResps(imgs []model.Image) []imageResp {
	out := make([]imageResp, 0, len(imgs))
	for _, img := range imgs {
		out = append(out, toImageResp(img, false))
	}
	return out
}

var dataURLHeader = regexp.MustCompile(`^data:image/\w+;base64,`)

// decodeImageData accepts a data URL or bare base64 and returns the bytes.
func decodeImageData(raw string) ([]byte, error) {
	b64 := dataURLHeader.ReplaceAllString(strings.TrimSpace(raw), "")
	data, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		data, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(b64, "="))
	}
	if err != nil || len(data) == 0 {
		return nil, &validation.Error{
			Message: "Validation error",
			Fields:  map[string]string{"imageData": "must be base64 encoded image data"},
		}
	}
	return data, nil
}

func parseImageID(c echo.Context) (uint64, error) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return 0, fail(http.StatusBadRequest, "Invalid image id", err)
	}
	return id, nil
}

func imageError(err error, forbiddenMsg string) error {
	switch {
	case errors.Is(err, service.ErrNotFound):
		return fail(http.StatusNotFound, "Image not found", err)
	case errors.Is(err, service.ErrForbidden):
		return fail(http.StatusForbidden, forbiddenMsg, err)
	}
	return err
}

// Generate forwards the prompt to the provider and returns the image as a
// data URL. Nothing is stored.
func (h *ImageHandler) Generate(c echo.Context) error {
	var req generateReq
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	if h.Generator == nil {
		return provider.ErrNotConfigured
	}

	img, err := h.Generator.Generate(c.Request().Context(), req.Prompt)
	if err != nil {
		return err
	}
	mt := http.DetectContentType(img)
	if !strings.HasPrefix(mt, "image/") {
		mt = "image/png"
	}
	return ok(c, http.StatusOK, echo.Map{
		"dataUrl": "data:" + mt + ";base64," + base64.StdEncoding.EncodeToString(img),
	})
}

// Create stores the decoded image and its metadata for the caller.
func (h *ImageHandler) Create(c echo.Context) error {
	var req createImageReq
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	data, err := decodeImageData(req.ImageData)
	if err != nil {
		return err
	}
	owner, _ := middleware.IdentityFrom(c)

	ctx, cancel := context.WithTimeout(c.Request().Context(), storeTimeout)
	defer cancel()

	img, err := h.Catalog.Create(ctx, owner, service.NewImage{
		Name:        req.Name,
		Description: req.Description,
		UsedPrompt:  req.UsedPrompt,
		Tags:        req.Tags,
		Data:        data,
	})
	if err != nil {
		return err
	}
	return ok(c, http.StatusCreated, echo.Map{
		"message": "Image created successfully",
		"image":   toImageResp(img, false),
	})
}

// List serves the public gallery. search matches name, prompt or
// description; tags is a comma separated list the image must all carry.
func (h *ImageHandler) List(c echo.Context) error {
	term := strings.TrimSpace(c.QueryParam("search"))
	filter := tags.ParseFilter(c.QueryParam("tags"))

	ctx, cancel := context.WithTimeout(c.Request().Context(), storeTimeout)
	defer cancel()

	imgs, err := h.Search.List(ctx, term, filter)
	if err != nil {
		return err
	}
	return ok(c, http.StatusOK, echo.Map{
		"count":  len(imgs),
		"images": toImageResps(imgs),
	})
}

// Get returns one image with its owner summary.
func (h *ImageHandler) Get(c echo.Context) error {
	id, err := parseImageID(c)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), storeTimeout)
	defer cancel()

	img, err := h.Catalog.Get(ctx, id)
	if err != nil {
		return imageError(err, "")
	}
	return ok(c, http.StatusOK, echo.Map{"image": toImageResp(img, true)})
}

// Update applies a partial change; omitted fields stay as they are.
func (h *ImageHandler) Update(c echo.Context) error {
	id, err := parseImageID(c)
	if err != nil {
		return err
	}
	var req updateImageReq
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	patch := req.patch()
	if patch.Empty() {
		return fail(http.StatusBadRequest, "Please provide at least one field to update", nil)
	}
	caller, _ := middleware.IdentityFrom(c)

	ctx, cancel := context.WithTimeout(c.Request().Context(), storeTimeout)
	defer cancel()

	img, err := h.Catalog.Update(ctx, id, caller, patch)
	if err != nil {
		return imageError(err, "Not authorized to update this image")
	}
	return ok(c, http.StatusOK, echo.Map{
		"message": "Image updated successfully",
		"image":   toImageResp(img, false),
	})
}

// Delete removes the image and, best effort, its file.
func (h *ImageHandler) Delete(c echo.Context) error {
	id, err := parseImageID(c)
	if err != nil {
		return err
	}
	caller, _ := middleware.IdentityFrom(c)

	ctx, cancel := context.WithTimeout(c.Request().Context(), storeTimeout)
	defer cancel()

	if err := h.Catalog.Delete(ctx, id, caller); err != nil {
		return imageError(err, "Not authorized to delete this image")
	}
	return ok(c, http.StatusOK, echo.Map{"message": "Image deleted successfully"})
}
