package handler

import (
	"bytes"
	"errors"
	"io"
	"mime"
	"mime/multipart"
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"mediagateway/internal/model"
	"mediagateway/internal/service"
)

// uploadField is the multipart field carrying the file.
const uploadField = "file"

var errNoFilePart = errors.New("multipart body has no file part")

// fiberSink writes download headers and hands the transfer to fasthttp, which pulls
// from it while writing the response and closes it when done or disconnected.
type fiberSink struct {
	c *fiber.Ctx
}

func (s fiberSink) Send(meta service.ResponseMeta, body io.ReadCloser) error {
	writeMediaHeaders(s.c, meta)
	s.c.Context().SetBodyStream(body, int(meta.ContentLength))
	return nil
}

func writeMediaHeaders(c *fiber.Ctx, meta service.ResponseMeta) {
	c.Set(fiber.HeaderAcceptRanges, "bytes")
	c.Set(fiber.HeaderContentType, meta.ContentType)
	if meta.CacheControl != "" {
		c.Set(fiber.HeaderCacheControl, meta.CacheControl)
	}
	if meta.ETag != "" {
		c.Set(fiber.HeaderETag, meta.ETag)
	}
	if !meta.LastModified.IsZero() {
		c.Set(fiber.HeaderLastModified, meta.LastModified.UTC().Format(http.TimeFormat))
	}
	if meta.Partial {
		c.Set(fiber.HeaderContentRange, meta.ContentRange)
		c.Status(fiber.StatusPartialContent)
	} else {
		c.Status(fiber.StatusOK)
	}
}

func categoryParam(c *fiber.Ctx) (model.Category, bool) {
	return model.ParseCategory(c.Params("category"))
}

// DownloadMedia streams a media object, honouring a single byte range.
//
// @Summary Download media
// @Tags media
// @Param category path string true "book, audio, video or image"
// @Param id path string true "media record id"
// @Param Range header string false "bytes=<start>-<end>"
// @Success 200 {file} binary
// @Success 206 {file} binary
// @Failure 404 {object} errorPayload
// @Failure 416 {object} errorPayload
// @Failure 504 {object} errorPayload
// @Router /media/{category}/{id} [get]
func DownloadMedia(svc service.MediaService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		category, ok := categoryParam(c)
		if !ok {
			return writeError(c, fiber.StatusNotFound, "NOT_FOUND", "unknown media category")
		}

		err := svc.Download(c.UserContext(), category, c.Params("id"), c.Get(fiber.HeaderRange), fiberSink{c: c})
		if err != nil {
			return writeServiceError(c, err)
		}
		return nil
	}
}

// HeadMedia answers with the download headers and no body.
//
// @Summary Probe media
// @Tags media
// @Param category path string true "book, audio, video or image"
// @Param id path string true "media record id"
// @Success 200
// @Router /media/{category}/{id} [head]
func HeadMedia(svc service.MediaService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		category, ok := categoryParam(c)
		if !ok {
			return c.SendStatus(fiber.StatusNotFound)
		}

		meta, err := svc.Head(c.UserContext(), category, c.Params("id"), c.Get(fiber.HeaderRange))
		if err != nil {
			return writeServiceError(c, err)
		}
		writeMediaHeaders(c, *meta)
		c.Response().Header.SetContentLength(int(meta.ContentLength))
		return nil
	}
}

// UploadMedia stores a new object for the given owner (multipart/form-data, field: file).
//
// @Summary Upload media
// @Tags media
// @Accept multipart/form-data
// @Produce json
// @Param category path string true "book, audio, video or image"
// @Param owner_id query string true "owner id"
// @Param file formData file true "media file"
// @Success 201 {object} model.StoredObject
// @Failure 400 {object} errorPayload
// @Failure 413 {object} errorPayload
// @Router /media/{category} [post]
func UploadMedia(svc service.MediaService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		category, ok := categoryParam(c)
		if !ok {
			return writeError(c, fiber.StatusNotFound, "NOT_FOUND", "unknown media category")
		}
		ownerID := c.Query("owner_id")
		if _, err := uuid.Parse(ownerID); err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_OWNER_ID", "owner_id must be a UUID")
		}

		part, err := filePart(c)
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "FILE_REQUIRED", "file is required")
		}
		defer part.Close()

		obj, err := svc.Upload(c.UserContext(), uploadRequest(category, ownerID, part))
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(obj)
	}
}

// ReplaceMedia uploads a new object for an existing record; the old object is deleted.
//
// @Summary Replace media
// @Tags media
// @Accept multipart/form-data
// @Produce json
// @Param category path string true "book, audio, video or image"
// @Param id path string true "media record id"
// @Param file formData file true "media file"
// @Success 200 {object} model.StoredObject
// @Failure 400 {object} errorPayload
// @Failure 404 {object} errorPayload
// @Failure 413 {object} errorPayload
// @Router /media/{category}/{id} [put]
func ReplaceMedia(svc service.MediaService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		category, ok := categoryParam(c)
		if !ok {
			return writeError(c, fiber.StatusNotFound, "NOT_FOUND", "unknown media category")
		}
		id := c.Params("id")
		if _, err := uuid.Parse(id); err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
		}

		part, err := filePart(c)
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "FILE_REQUIRED", "file is required")
		}
		defer part.Close()

		obj, err := svc.Replace(c.UserContext(), id, uploadRequest(category, "", part))
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(obj)
	}
}

func uploadRequest(category model.Category, ownerID string, part *multipart.Part) service.UploadRequest {
	return service.UploadRequest{
		OwnerID:     ownerID,
		Category:    category,
		ContentType: part.Header.Get(fiber.HeaderContentType),
		Filename:    part.FileName(),
		Body:        part,
	}
}

// filePart walks the multipart body up to the file field without buffering it. With
// StreamRequestBody enabled the body is read straight off the connection.
func filePart(c *fiber.Ctx) (*multipart.Part, error) {
	mediaType, params, err := mime.ParseMediaType(string(c.Request().Header.ContentType()))
	if err != nil || mediaType != fiber.MIMEMultipartForm || params["boundary"] == "" {
		return nil, errNoFilePart
	}

	var body io.Reader = c.Context().RequestBodyStream()
	if body == nil {
		body = bytes.NewReader(c.Body())
	}

	mr := multipart.NewReader(body, params["boundary"])
	for {
		part, err := mr.NextPart()
		if err != nil {
			return nil, errNoFilePart
		}
		if part.FormName() == uploadField {
			return part, nil
		}
		_ = part.Close()
	}
}
