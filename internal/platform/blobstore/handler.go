package blobstore

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/eyescreen/screening/internal/platform/auth"
)

type envelope struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data"`
	Message string      `json:"message,omitempty"`
}

// HandlerConfig adapts the handlers to the owning resource.
type HandlerConfig struct {
	// Types lists the accepted values of the "type" form field. Empty
	// accepts any non-empty type.
	Types []string
	// Lookup reports whether the registration exists. A nil Lookup accepts
	// every id.
	Lookup func(ctx context.Context, registrationID int64) (bool, error)
}

// BlobHandler serves attachments nested under an assessment resource.
type BlobHandler struct {
	store BlobStore
	cfg   HandlerConfig
}

func NewBlobHandler(store BlobStore, cfg HandlerConfig) *BlobHandler {
	return &BlobHandler{store: store, cfg: cfg}
}

// RegisterRoutes mounts the upload and list routes under prefix, which must
// end in a :registration_id segment, and the per-blob routes under
// /attachments.
func (h *BlobHandler) RegisterRoutes(g *echo.Group, prefix string, writers ...echo.MiddlewareFunc) {
	g.POST(prefix+"/attachments", h.handleUpload, writers...)
	g.GET(prefix+"/attachments", h.handleList)
	g.GET("/attachments/:id", h.handleDownload)
	g.GET("/attachments/:id/metadata", h.handleGetMetadata)
	g.DELETE("/attachments/:id", h.handleDelete, writers...)
}

func (h *BlobHandler) registrationID(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("registration_id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, echo.NewHTTPError(http.StatusNotFound, "The requested resource was not found.")
	}
	if h.cfg.Lookup == nil {
		return id, nil
	}
	ok, err := h.cfg.Lookup(c.Request().Context(), id)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, echo.NewHTTPError(http.StatusNotFound, "The requested resource was not found.")
	}
	return id, nil
}

func (h *BlobHandler) typeAllowed(t string) bool {
	if t == "" {
		return false
	}
	if len(h.cfg.Types) == 0 {
		return true
	}
	for _, allowed := range h.cfg.Types {
		if t == allowed {
			return true
		}
	}
	return false
}

func invalid(c echo.Context, field, msg string) error {
	return c.JSON(http.StatusUnprocessableEntity, map[string]interface{}{
		"success": false,
		"message": msg,
		"errors":  map[string][]string{field: {msg}},
	})
}

func (h *BlobHandler) handleUpload(c echo.Context) error {
	regID, err := h.registrationID(c)
	if err != nil {
		return err
	}

	attachmentType := c.FormValue("type")
	if !h.typeAllowed(attachmentType) {
		return invalid(c, "type", "The selected type is invalid.")
	}

	file, err := c.FormFile("file")
	if err != nil {
		return invalid(c, "file", "The file field is required.")
	}
	src, err := file.Open()
	if err != nil {
		return fmt.Errorf("open uploaded file: %w", err)
	}
	defer src.Close()

	meta := BlobMetadata{
		RegistrationID: regID,
		Type:           attachmentType,
		FileName:       file.Filename,
		ContentType:    file.Header.Get("Content-Type"),
		CreatedBy:      auth.OperatorIDFromContext(c.Request().Context()),
	}

	result, err := h.store.Put(c.Request().Context(), meta, src)
	if err != nil {
		switch {
		case errors.Is(err, ErrFileTooLarge):
			return echo.NewHTTPError(http.StatusRequestEntityTooLarge, "The file may not be greater than 20 MB.")
		case errors.Is(err, ErrMissingFileName):
			return invalid(c, "file", "The file must have a name.")
		case errors.Is(err, ErrInvalidContentType):
			return invalid(c, "file", "The file must be an image.")
		default:
			return err
		}
	}

	return c.JSON(http.StatusCreated, envelope{Success: true, Data: result, Message: "Attachment uploaded."})
}

func (h *BlobHandler) handleList(c echo.Context) error {
	regID, err := h.registrationID(c)
	if err != nil {
		return err
	}
	items, err := h.store.ListByRegistration(c.Request().Context(), regID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, envelope{Success: true, Data: items})
}

func (h *BlobHandler) handleDownload(c echo.Context) error {
	rc, meta, err := h.store.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return notFoundOr(err)
	}
	defer rc.Close()

	c.Response().Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename=%q`, meta.FileName))
	return c.Stream(http.StatusOK, meta.ContentType, rc)
}

func (h *BlobHandler) handleGetMetadata(c echo.Context) error {
	meta, err := h.store.GetMetadata(c.Request().Context(), c.Param("id"))
	if err != nil {
		return notFoundOr(err)
	}
	return c.JSON(http.StatusOK, envelope{Success: true, Data: meta})
}

func (h *BlobHandler) handleDelete(c echo.Context) error {
	if err := h.store.Delete(c.Request().Context(), c.Param("id")); err != nil {
		return notFoundOr(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func notFoundOr(err error) error {
	if errors.Is(err, ErrBlobNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "The requested resource was not found.")
	}
	return err
}
