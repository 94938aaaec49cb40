package handler

import (
	"errors"
	"net/http"
	"strconv"

	"shopdesk-realtime/internal/domain/user"
	"shopdesk-realtime/internal/services"
	"shopdesk-realtime/internal/transport/httpdto"
	shopdesk_errors "shopdesk-realtime/pkg/errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// writeError renders a service error with the status its sentinel maps
// to. Unclassified errors are attached to the context for ErrorHandler to
// log and never echoed to the caller.
func writeError(c *gin.Context, err error) {
	status, body := httpdto.ErrorFrom(err)
	if status >= http.StatusInternalServerError && !errors.Is(err, shopdesk_errors.ErrUnavailable) {
		_ = c.Error(err)
	}
	c.JSON(status, body)
}

func badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse(message, "INVALID_REQUEST"))
}

func identity(c *gin.Context) (user.Profile, bool) {
	p, ok := services.IdentityFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
	}
	return p, ok
}

func paramUUID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		badRequest(c, "invalid "+name)
		return uuid.Nil, false
	}
	return id, true
}

func parseUUIDs(values []string) ([]uuid.UUID, error) {
	out := make([]uuid.UUID, 0, len(values))
	for _, v := range values {
		id, err := uuid.Parse(v)
		if err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, nil
}

func parseInt(value string) (int, error) {
	if value == "" {
		return 0, nil
	}
	return strconv.Atoi(value)
}

// pagination reads ?page= and ?limit=, clamping limit to maxPageSize.
func pagination(c *gin.Context) (int, int, bool) {
	page, err := parseInt(c.Query("page"))
	if err != nil || page < 0 {
		badRequest(c, "invalid page")
		return 0, 0, false
	}
	limit, err := parseInt(c.Query("limit"))
	if err != nil || limit < 0 {
		badRequest(c, "invalid limit")
		return 0, 0, false
	}
	if page == 0 {
		page = 1
	}
	if limit == 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	return page, limit, true
}

func toAttachmentInputs(in []httpdto.AttachmentRequest) []services.AttachmentInput {
	out := make([]services.AttachmentInput, 0, len(in))
	for _, a := range in {
		out = append(out, services.AttachmentInput{
			FileName:      a.FileName,
			FilePath:      a.FilePath,
			FileType:      a.FileType,
			FileSize:      a.FileSize,
			ThumbnailPath: a.ThumbnailPath,
		})
	}
	return out
}
